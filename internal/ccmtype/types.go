// Package ccmtype holds the fixed-width wire types shared by every layer of
// the commitment machine: crypto primitives, the Merkle index, the
// commitment engine, the settlement builder, and the RPC shim.
package ccmtype

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
)

// Address is a 20-byte account address.
type Address [20]byte

// Hash is a 32-byte keccak256 digest.
type Hash [32]byte

// Bytes32 is a generic 32-byte fixed-width value.
type Bytes32 = Hash

// Signature is a 65-byte r||s||v ECDSA signature, v in {27,28}.
type Signature [65]byte

// IsZero reports whether a is the zero address.
func (a Address) IsZero() bool {
	return a == Address{}
}

// MarshalText renders a as 0x-prefixed hex, matching go-ethereum's
// common.Address so the two interop cleanly over JSON.
func (a Address) MarshalText() ([]byte, error) { return marshalFixedHex(a[:]), nil }

// UnmarshalText parses 0x-prefixed hex into a.
func (a *Address) UnmarshalText(text []byte) error { return unmarshalFixedHex(a[:], text) }

// MarshalText renders h as 0x-prefixed hex.
func (h Hash) MarshalText() ([]byte, error) { return marshalFixedHex(h[:]), nil }

// UnmarshalText parses 0x-prefixed hex into h.
func (h *Hash) UnmarshalText(text []byte) error { return unmarshalFixedHex(h[:], text) }

// MarshalText renders s as 0x-prefixed hex.
func (s Signature) MarshalText() ([]byte, error) { return marshalFixedHex(s[:]), nil }

// UnmarshalText parses 0x-prefixed hex into s.
func (s *Signature) UnmarshalText(text []byte) error { return unmarshalFixedHex(s[:], text) }

func marshalFixedHex(b []byte) []byte {
	return []byte("0x" + hex.EncodeToString(b))
}

func unmarshalFixedHex(dst []byte, text []byte) error {
	s := strings.TrimPrefix(string(text), "0x")
	b, err := hex.DecodeString(s)
	if err != nil {
		return fmt.Errorf("ccmtype: invalid hex %q: %w", text, err)
	}
	if len(b) != len(dst) {
		return fmt.Errorf("ccmtype: expected %d bytes, got %d", len(dst), len(b))
	}
	copy(dst, b)
	return nil
}

// AssetKind enumerates the supported asset classes.
type AssetKind uint8

const (
	AssetNative AssetKind = iota
	AssetErc20
	AssetErc721
	AssetErc1155
)

func (k AssetKind) String() string {
	switch k {
	case AssetNative:
		return "native"
	case AssetErc20:
		return "erc20"
	case AssetErc721:
		return "erc721"
	case AssetErc1155:
		return "erc1155"
	default:
		return "unknown"
	}
}

// AssetIdentifier uniquely identifies a fungible or non-fungible asset on a
// given chain. Invariant: Kind == AssetNative iff Contract is nil.
type AssetIdentifier struct {
	ChainID  uint64
	Kind     AssetKind
	Contract *Address
	TokenID  *big.Int
}

// FulfillmentCondition describes what must be delivered on the destination
// chain for a lock to be considered fulfilled.
type FulfillmentCondition struct {
	TargetChainID uint64
	TargetAsset   AssetIdentifier
	TargetAmount  *big.Int
	Recipient     Address
	ExecutionData []byte // nil when absent
}

// LockStatus is the lifecycle state of a ResourceLock.
type LockStatus uint8

const (
	StatusPending LockStatus = iota
	StatusActive
	StatusFulfilled
	StatusSettled
	StatusExpired
	StatusCancelled
)

func (s LockStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusActive:
		return "active"
	case StatusFulfilled:
		return "fulfilled"
	case StatusSettled:
		return "settled"
	case StatusExpired:
		return "expired"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether s is one of the terminal statuses from which no
// further transition is permitted.
func (s LockStatus) IsTerminal() bool {
	return s == StatusFulfilled || s == StatusSettled || s == StatusExpired || s == StatusCancelled
}

// ResourceLock is the central entity of the commitment machine: a promise
// that Amount of Asset is reserved against Owner's smart account until
// ExpiresAt, to be released either to the fulfillment Recipient or back to
// Owner.
type ResourceLock struct {
	ID           Hash
	Owner        Address
	Asset        AssetIdentifier
	Amount       *big.Int
	LockedAt     uint64
	ExpiresAt    uint64
	Nonce        *big.Int
	Fulfillment  FulfillmentCondition
	Status       LockStatus
	UserSig      *Signature
	CCMSig       *Signature
}

// RiskLimits bounds the resources the enclave will reserve on behalf of a
// single account, and in aggregate per day.
type RiskLimits struct {
	MaxTotalLockedPerAccount *big.Int
	MaxSingleLockAmount      *big.Int
	MaxConcurrentLocks       int
	MaxDailyVolume           *big.Int
}

// DefaultRiskLimits holds the baseline production risk limits.
func DefaultRiskLimits() RiskLimits {
	return RiskLimits{
		MaxTotalLockedPerAccount: mustInt("1000000000000000000000000"),  // 1,000,000 * 1e18
		MaxSingleLockAmount:      mustInt("100000000000000000000000"),   // 100,000 * 1e18
		MaxConcurrentLocks:       100,
		MaxDailyVolume:           mustInt("10000000000000000000000000"), // 10,000,000 * 1e18
	}
}

func mustInt(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("ccmtype: invalid default constant " + s)
	}
	return v
}

// EnclaveConfig is loaded once at init and never mutated afterward.
type EnclaveConfig struct {
	MinLockDuration   uint64
	MaxLockDuration   uint64
	SupportedChains   map[uint64]struct{}
	SettlementBuffer  uint64
	RiskLimits        RiskLimits
}

// DefaultEnclaveConfig holds the baseline enclave configuration.
func DefaultEnclaveConfig() EnclaveConfig {
	return EnclaveConfig{
		MinLockDuration:  30,
		MaxLockDuration:  3600,
		SupportedChains:  map[uint64]struct{}{1: {}, 42161: {}},
		SettlementBuffer: 300,
		RiskLimits:       DefaultRiskLimits(),
	}
}

// FulfillmentProof is the format-checked payload handed to the
// FulfillmentVerifier capability.
type FulfillmentProof struct {
	TransactionHash Hash
	BlockHash       Hash
	BlockNumber     int64
}

// CCMAttestation is the enclave's co-signature over a commitment.
type CCMAttestation struct {
	EnclaveID      Bytes32
	Timestamp      uint64
	CommitmentHash Hash
	Signature      Signature
}

// Commitment is the externally-visible, co-signed attestation that a lock's
// assets are reserved.
type Commitment struct {
	LockID               Hash
	ProtocolVersion       uint8
	SourceChainID         uint64
	SmartAccount          Address
	LockedAsset           AssetIdentifier
	LockedAmount          *big.Int
	CreatedAt             uint64
	ExpiresAt             uint64
	SettlementDeadline    uint64
	FulfillmentCondition  FulfillmentCondition
	Nonce                 *big.Int
	StateRoot             Hash
	UserSignatureHash     Hash
	CCMAttestation        CCMAttestation
}

// BootAttestation binds the enclave's identity to a (possibly mock) measured
// code identity, produced once at startup.
type BootAttestation struct {
	EnclaveID           Bytes32
	PublicKey           []byte
	BootTime            uint64
	CodeHash            Hash
	AttestationDocument []byte
	IsRealAttestation   bool
	Signature           Signature
}

// LockApprovalMessage is the EIP-712 struct the owner signs to activate a
// Pending lock.
type LockApprovalMessage struct {
	LockID          Hash
	Owner           Address
	Asset           Hash // hashAsset(asset)
	Amount          *big.Int
	Nonce           *big.Int
	ExpiresAt       uint64
	FulfillmentHash Hash
}

// UserOperation is a populated ERC-4337-style settlement operation.
type UserOperation struct {
	Sender               Address
	Nonce                *big.Int
	InitCode             []byte
	CallData             []byte
	CallGasLimit         uint64
	VerificationGasLimit uint64
	PreVerificationGas   uint64
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
	PaymasterAndData     []byte
	Signature            []byte // 130 bytes: userSig || ccmSig
}
