// Package identity computes the stable, on-chain-consumed hashes of
// AssetIdentifier and FulfillmentCondition, and derives ResourceLock IDs.
// These encodings are normative: on-chain validators decode the same
// abi.encode layout.
package identity

import (
	"math/big"

	"github.com/credible-commitment/ccm-core/internal/ccmtype"
	"github.com/credible-commitment/ccm-core/internal/cryptoprim"
)

// HashAsset computes keccak(abi.encode(chainId, kind, contract?:zero, tokenId?:0)).
func HashAsset(a ccmtype.AssetIdentifier) ccmtype.Hash {
	var contract ccmtype.Address
	if a.Contract != nil {
		contract = *a.Contract
	}
	tokenID := a.TokenID
	if tokenID == nil {
		tokenID = new(big.Int)
	}
	return cryptoprim.Keccak256(
		cryptoprim.EncodeUint64(a.ChainID),
		cryptoprim.EncodeUint8(uint8(a.Kind)),
		cryptoprim.EncodeAddress(contract),
		cryptoprim.EncodeUint256(tokenID),
	)
}

// HashFulfillmentCondition computes the canonical hash of a
// FulfillmentCondition, including keccak(executionData) or 32 zero bytes
// when executionData is absent.
func HashFulfillmentCondition(f ccmtype.FulfillmentCondition) ccmtype.Hash {
	targetAmount := f.TargetAmount
	if targetAmount == nil {
		targetAmount = new(big.Int)
	}
	var execHash ccmtype.Hash
	if f.ExecutionData != nil {
		execHash = cryptoprim.Keccak256(f.ExecutionData)
	}
	return cryptoprim.Keccak256(
		cryptoprim.EncodeUint64(f.TargetChainID),
		HashAsset(f.TargetAsset)[:],
		cryptoprim.EncodeUint256(targetAmount),
		cryptoprim.EncodeAddress(f.Recipient),
		execHash[:],
	)
}

// DeriveLockID computes id = keccak(abi.encode(owner, assetHash, amount, nonce, lockedAt)).
func DeriveLockID(owner ccmtype.Address, assetHash ccmtype.Hash, amount, nonce *big.Int, lockedAt uint64) ccmtype.Hash {
	if amount == nil {
		amount = new(big.Int)
	}
	if nonce == nil {
		nonce = new(big.Int)
	}
	return cryptoprim.Keccak256(
		cryptoprim.EncodeAddress(owner),
		assetHash[:],
		cryptoprim.EncodeUint256(amount),
		cryptoprim.EncodeUint256(nonce),
		cryptoprim.EncodeUint64(lockedAt),
	)
}

// HashCancellation computes keccak(abi.encode(lockId, "CANCEL")) — the
// message a user signs to rage-quit a lock.
func HashCancellation(lockID ccmtype.Hash) ccmtype.Hash {
	return cryptoprim.Keccak256(lockID[:], cryptoprim.EncodeBytesTail([]byte("CANCEL")))
}

// LockApprovalOf builds the EIP-712 LockApproval message for a lock, using
// the lock's own stored fields rather than any client-supplied copy.
func LockApprovalOf(l ccmtype.ResourceLock) ccmtype.LockApprovalMessage {
	return ccmtype.LockApprovalMessage{
		LockID:          l.ID,
		Owner:           l.Owner,
		Asset:           HashAsset(l.Asset),
		Amount:          l.Amount,
		Nonce:           l.Nonce,
		ExpiresAt:       l.ExpiresAt,
		FulfillmentHash: HashFulfillmentCondition(l.Fulfillment),
	}
}
