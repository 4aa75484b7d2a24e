package commitment

import (
	"math/big"

	"github.com/credible-commitment/ccm-core/internal/ccmtype"
	"github.com/credible-commitment/ccm-core/internal/cryptoprim"
)

// AppAttestation is the enclave's signed acknowledgement of a non-signing
// lifecycle operation (currently only cancellation).
type AppAttestation struct {
	EnclaveID ccmtype.Bytes32
	Operation string
	Timestamp uint64
	DataHash  ccmtype.Hash
	Signature ccmtype.Signature
}

// CreateLockRequest is the input to CreateLock.
type CreateLockRequest struct {
	Owner       ccmtype.Address
	Asset       ccmtype.AssetIdentifier
	Amount      *big.Int
	ExpiresIn   uint64
	Fulfillment ccmtype.FulfillmentCondition
	// SessionKey is accepted but not yet consulted for any access-control
	// decision.
	SessionKey []byte
}

// CreateLockResponse carries the typed-data payload the owner must sign to
// activate the lock, plus the signing-window deadline.
type CreateLockResponse struct {
	LockID               ccmtype.Hash
	Status               ccmtype.LockStatus
	Nonce                *big.Int
	Domain               cryptoprim.Domain
	TypedData            ccmtype.LockApprovalMessage
	ExpirationTimestamp  uint64
}

// SignLockResponse carries the co-signed commitment produced once the owner's
// signature is accepted.
type SignLockResponse struct {
	Commitment ccmtype.Commitment
}

// FulfillLockResponse carries the settlement operation and refreshed
// commitment produced once a fulfillment proof is accepted.
type FulfillLockResponse struct {
	UserOperation ccmtype.UserOperation
	Commitment    ccmtype.Commitment
}
