// Package settlement builds the ERC-4337-style UserOperation that drains a
// fulfilled lock's reserved assets to the fulfillment recipient.
//
// Follows the hashOrder/eip712Digest pattern of building a canonical hash
// from abi-encoded fixed words and signing it with the enclave/session
// key; here the "struct" being hashed is the ERC-4337 v0.7 UserOperation
// tuple instead of an order, and the signer is a co-signature from two
// keys instead of one.
package settlement

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/credible-commitment/ccm-core/internal/ccmerr"
	"github.com/credible-commitment/ccm-core/internal/ccmtype"
	"github.com/credible-commitment/ccm-core/internal/cryptoprim"
)

// EntryPoint is the standard ERC-4337 EntryPoint address used for the v0.7
// outer UserOp hash.
var EntryPoint = parseAddress("0x5FF137D4b0FDCD49DcA30c7CF57E578a026d2789")

// ExecuteSelector is the smart account's execute(address,uint256,bytes) selector.
var ExecuteSelector = [4]byte{0xb6, 0x1d, 0x27, 0xf6}

// TransferSelector is ERC-20's transfer(address,uint256) selector.
var TransferSelector = [4]byte{0xa9, 0x05, 0x9c, 0xbb}

// Gas field development defaults.
const (
	DefaultCallGasLimit         uint64 = 100000
	DefaultVerificationGasLimit uint64 = 100000
	DefaultPreVerificationGas   uint64 = 21000
)

var (
	// DefaultMaxFeePerGas and DefaultMaxPriorityFeePerGas are both 1 gwei.
	DefaultMaxFeePerGas         = big.NewInt(1_000_000_000)
	DefaultMaxPriorityFeePerGas = big.NewInt(1_000_000_000)
)

func parseAddress(hexAddr string) ccmtype.Address {
	var out ccmtype.Address
	copy(out[:], common.HexToAddress(hexAddr).Bytes())
	return out
}

// Signer produces the CCM's co-signature over an outer UserOp hash. Satisfied
// by *enclave.Identity.
type Signer interface {
	Sign(hash ccmtype.Hash) (ccmtype.Signature, error)
}

// Build constructs the settlement UserOperation for a fulfilled lock and
// co-signs it with signer. sender is the owner's smart-account address
// (the lock's Owner), and userSig is the signature already stored on the
// lock.
func Build(lock ccmtype.ResourceLock, signer Signer) (ccmtype.UserOperation, error) {
	callData, err := buildCallData(lock.Fulfillment.Recipient, lock.Amount, lock.Asset)
	if err != nil {
		return ccmtype.UserOperation{}, err
	}

	op := ccmtype.UserOperation{
		Sender:               lock.Owner,
		Nonce:                lock.Nonce, // reuses the lock's nonce verbatim
		InitCode:             nil,
		CallData:             callData,
		CallGasLimit:         DefaultCallGasLimit,
		VerificationGasLimit: DefaultVerificationGasLimit,
		PreVerificationGas:   DefaultPreVerificationGas,
		MaxFeePerGas:         new(big.Int).Set(DefaultMaxFeePerGas),
		MaxPriorityFeePerGas: new(big.Int).Set(DefaultMaxPriorityFeePerGas),
		PaymasterAndData:     nil,
	}

	outerHash := HashUserOp(op, EntryPoint, lock.Asset.ChainID)
	ccmSig, err := signer.Sign(outerHash)
	if err != nil {
		return ccmtype.UserOperation{}, err
	}

	if lock.UserSig == nil {
		return ccmtype.UserOperation{}, ccmerr.New(ccmerr.Internal, "settlement: lock has no user signature")
	}

	sig := make([]byte, 0, 130)
	sig = append(sig, lock.UserSig[:]...)
	sig = append(sig, ccmSig[:]...)
	op.Signature = sig

	return op, nil
}

// buildCallData encodes the execute() call that drains amount of the lock's
// reserved asset to recipient.
func buildCallData(recipient ccmtype.Address, amount *big.Int, asset ccmtype.AssetIdentifier) ([]byte, error) {
	switch asset.Kind {
	case ccmtype.AssetNative:
		return encodeExecute(recipient, amount, nil), nil
	case ccmtype.AssetErc20:
		if asset.Contract == nil {
			return nil, ccmerr.New(ccmerr.Internal, "settlement: erc20 asset missing contract")
		}
		inner := encodeTransfer(recipient, amount)
		return encodeExecute(*asset.Contract, big.NewInt(0), inner), nil
	default:
		return nil, ccmerr.New(ccmerr.UnsupportedAssetKind, "settlement does not support asset kind %s", asset.Kind)
	}
}

// encodeExecute encodes execute(address,uint256,bytes).
func encodeExecute(target ccmtype.Address, value *big.Int, data []byte) []byte {
	out := make([]byte, 0, 4+96+len(data)+32)
	out = append(out, ExecuteSelector[:]...)
	out = append(out, cryptoprim.EncodeAddress(target)...)
	out = append(out, cryptoprim.EncodeUint256(value)...)
	out = append(out, cryptoprim.EncodeBytesTail(data)...)
	return out
}

// encodeTransfer encodes transfer(address,uint256).
func encodeTransfer(to ccmtype.Address, amount *big.Int) []byte {
	out := make([]byte, 0, 4+64)
	out = append(out, TransferSelector[:]...)
	out = append(out, cryptoprim.EncodeAddress(to)...)
	out = append(out, cryptoprim.EncodeUint256(amount)...)
	return out
}

// HashUserOp computes the ERC-4337 v0.7 UserOp hash: an inner hash over the
// op's own fields, then an outer hash binding it to entryPoint and chainID.
func HashUserOp(op ccmtype.UserOperation, entryPoint ccmtype.Address, chainID uint64) ccmtype.Hash {
	initCodeHash := cryptoprim.Keccak256(op.InitCode)
	callDataHash := cryptoprim.Keccak256(op.CallData)
	paymasterHash := cryptoprim.Keccak256(op.PaymasterAndData)

	inner := cryptoprim.Keccak256(
		cryptoprim.EncodeAddress(op.Sender),
		cryptoprim.EncodeUint256(op.Nonce),
		initCodeHash[:],
		callDataHash[:],
		cryptoprim.EncodeUint64(op.CallGasLimit),
		cryptoprim.EncodeUint64(op.VerificationGasLimit),
		cryptoprim.EncodeUint64(op.PreVerificationGas),
		cryptoprim.EncodeUint256(op.MaxFeePerGas),
		cryptoprim.EncodeUint256(op.MaxPriorityFeePerGas),
		paymasterHash[:],
	)

	return cryptoprim.Keccak256(
		inner[:],
		cryptoprim.EncodeAddress(entryPoint),
		cryptoprim.EncodeUint64(chainID),
	)
}
