package cryptoprim

import (
	"math/big"

	"github.com/credible-commitment/ccm-core/internal/ccmtype"
)

// eip712DomainTypeHash = keccak256("EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)")
var eip712DomainTypeHash = Keccak256([]byte(
	"EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)",
))

// lockApprovalTypeHash = keccak256("LockApproval(bytes32 lockId,address owner,bytes32 asset,uint256 amount,uint256 nonce,uint256 expiresAt,bytes32 fulfillmentHash)")
var lockApprovalTypeHash = Keccak256([]byte(
	"LockApproval(bytes32 lockId,address owner,bytes32 asset,uint256 amount,uint256 nonce,uint256 expiresAt,bytes32 fulfillmentHash)",
))

// Domain is the EIP-712 domain separator's input fields.
type Domain struct {
	Name              string
	Version           string
	ChainID           uint64
	VerifyingContract ccmtype.Address
}

// CCMDomain returns the fixed CCM EIP-712 domain for a lock on the given
// source chain.
func CCMDomain(chainID uint64) Domain {
	return Domain{
		Name:              "CredibleCommitmentMachine",
		Version:           "1.0.0",
		ChainID:           chainID,
		VerifyingContract: ccmtype.Address{},
	}
}

// HashDomain computes the EIP-712 domain separator.
func HashDomain(d Domain) [32]byte {
	return Keccak256(
		eip712DomainTypeHash[:],
		hashString(d.Name)[:],
		hashString(d.Version)[:],
		EncodeUint64(d.ChainID),
		EncodeAddress(d.VerifyingContract),
	)
}

func hashString(s string) [32]byte {
	return Keccak256([]byte(s))
}

// HashLockApproval computes the EIP-712 struct hash for a LockApproval.
func HashLockApproval(msg ccmtype.LockApprovalMessage) [32]byte {
	amount := msg.Amount
	if amount == nil {
		amount = new(big.Int)
	}
	nonce := msg.Nonce
	if nonce == nil {
		nonce = new(big.Int)
	}
	return Keccak256(
		lockApprovalTypeHash[:],
		EncodeBytes32(msg.LockID),
		EncodeAddress(msg.Owner),
		EncodeBytes32(msg.Asset),
		EncodeUint256(amount),
		EncodeUint256(nonce),
		EncodeUint64(msg.ExpiresAt),
		EncodeBytes32(msg.FulfillmentHash),
	)
}

// HashTypedData computes keccak256(0x1901 || domainSeparator || structHash).
func HashTypedData(domainSeparator, structHash [32]byte) [32]byte {
	return Keccak256([]byte{0x19, 0x01}, domainSeparator[:], structHash[:])
}
