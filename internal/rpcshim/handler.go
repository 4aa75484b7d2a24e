package rpcshim

import (
	"encoding/json"
	"math/big"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/credible-commitment/ccm-core/internal/ccmerr"
	"github.com/credible-commitment/ccm-core/internal/ccmtype"
	"github.com/credible-commitment/ccm-core/internal/commitment"
)

// Engine is the subset of *commitment.Engine the handler depends on.
type Engine interface {
	CreateLock(req commitment.CreateLockRequest) (commitment.CreateLockResponse, error)
	SignLock(lockID ccmtype.Hash, userSig ccmtype.Signature) (commitment.SignLockResponse, error)
	VerifyFulfillment(lockID ccmtype.Hash, proof ccmtype.FulfillmentProof) (commitment.FulfillLockResponse, error)
	CancelLock(lockID ccmtype.Hash, userSig ccmtype.Signature) (commitment.AppAttestation, error)
	GetLock(lockID ccmtype.Hash) (ccmtype.ResourceLock, error)
	GetActiveLocks() []ccmtype.ResourceLock
	GetLockedBalance(owner ccmtype.Address) *big.Int
	GetStateRoot() ccmtype.Hash
	GetEnclavePublicKey() []byte
	GetEnclaveID() ccmtype.Bytes32
	GetBootAttestation() ccmtype.BootAttestation
	CleanupExpiredLocks() int
}

// Handler dispatches JSON-RPC requests to an Engine, following a
// per-method validate-then-delegate shape, with the protobuf request/
// response types replaced by the wire structs in wire.go and a
// method-name switch in place of generated stubs.
type Handler struct {
	engine Engine
	log    *zap.Logger
}

// NewHandler wires a Handler to engine. A nil log defaults to a no-op logger.
func NewHandler(engine Engine, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{engine: engine, log: log}
}

// Handle dispatches a single JSON-RPC request and always returns a
// Response — protocol-level failures (wrong jsonrpc version, unknown method) are
// reported as JSON-RPC errors, never as a Go error, so the transport layer
// can always write a line back to the caller.
func (h *Handler) Handle(req Request) *Response {
	correlationID := uuid.NewString()
	log := h.log.With(zap.String("correlationId", correlationID), zap.String("method", req.Method))

	if req.JSONRPC != "2.0" {
		return &Response{JSONRPC: "2.0", ID: req.ID, Error: &RPCError{Code: codeInvalidRequest, Message: "jsonrpc must be \"2.0\""}}
	}

	result, err := h.dispatch(req.Method, req.Params)
	if err != nil {
		log.Warn("rpc call failed", zap.Error(err))
		if _, ok := err.(unknownMethodError); ok {
			return &Response{JSONRPC: "2.0", ID: req.ID, Error: &RPCError{Code: codeMethodNotFound, Message: err.Error()}}
		}
		return errorResponse(req.ID, err)
	}

	log.Info("rpc call succeeded")
	return &Response{JSONRPC: "2.0", ID: req.ID, Result: result}
}

func (h *Handler) dispatch(method string, raw json.RawMessage) (any, error) {
	switch method {
	case "health":
		return h.health()
	case "getBootAttestation":
		return h.getBootAttestation()
	case "createLock":
		return h.createLock(raw)
	case "signLock":
		return h.signLock(raw)
	case "verifyFulfillment":
		return h.verifyFulfillment(raw)
	case "cancelLock":
		return h.cancelLock(raw)
	case "getLock":
		return h.getLock(raw)
	case "getActiveLocks":
		return h.getActiveLocks()
	case "getLockedBalance":
		return h.getLockedBalance(raw)
	case "getStateRoot":
		return h.getStateRoot()
	case "cleanupExpiredLocks":
		return h.cleanupExpiredLocks()
	case "getEnclavePublicKey":
		return h.getEnclavePublicKey()
	case "getEnclaveId":
		return h.getEnclaveID()
	default:
		return nil, unknownMethod(method)
	}
}

type unknownMethodError string

func (e unknownMethodError) Error() string { return "unknown method: " + string(e) }
func unknownMethod(m string) error         { return unknownMethodError(m) }

func decodeParams[T any](raw json.RawMessage) (T, error) {
	var out T
	if len(raw) == 0 {
		return out, ccmerr.New(ccmerr.InvalidParams, "params required")
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, ccmerr.New(ccmerr.InvalidParams, "malformed params: %v", err)
	}
	return out, nil
}

func (h *Handler) createLock(raw json.RawMessage) (any, error) {
	p, err := decodeParams[createLockParams](raw)
	if err != nil {
		return nil, err
	}
	owner, err := parseAddress(p.Owner)
	if err != nil {
		return nil, err
	}
	asset, err := parseAsset(p.Asset)
	if err != nil {
		return nil, err
	}
	amount, err := parseAmount(p.Amount)
	if err != nil {
		return nil, err
	}
	fulfillment, err := parseFulfillment(p.Fulfillment)
	if err != nil {
		return nil, err
	}
	var sessionKey []byte
	if p.SessionKey != "" {
		sessionKey, _ = parseHex(p.SessionKey)
	}

	resp, err := h.engine.CreateLock(commitment.CreateLockRequest{
		Owner:       owner,
		Asset:       asset,
		Amount:      amount,
		ExpiresIn:   p.ExpiresIn,
		Fulfillment: fulfillment,
		SessionKey:  sessionKey,
	})
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"lockId":              hashHex(resp.LockID),
		"status":              resp.Status.String(),
		"nonce":               amountString(resp.Nonce),
		"domain":              resp.Domain,
		"typedData":           resp.TypedData,
		"expirationTimestamp": resp.ExpirationTimestamp,
	}, nil
}

func (h *Handler) signLock(raw json.RawMessage) (any, error) {
	p, err := decodeParams[signLockParams](raw)
	if err != nil {
		return nil, err
	}
	lockID, err := parseHash(p.LockID)
	if err != nil {
		return nil, err
	}
	sig, err := parseSignature(p.Signature)
	if err != nil {
		return nil, err
	}
	resp, err := h.engine.SignLock(lockID, sig)
	if err != nil {
		return nil, err
	}
	return resp.Commitment, nil
}

func (h *Handler) verifyFulfillment(raw json.RawMessage) (any, error) {
	p, err := decodeParams[verifyFulfillmentParams](raw)
	if err != nil {
		return nil, err
	}
	lockID, err := parseHash(p.LockID)
	if err != nil {
		return nil, err
	}
	txHash, err := parseHash(p.TransactionHash)
	if err != nil {
		return nil, err
	}
	blockHash, err := parseHash(p.BlockHash)
	if err != nil {
		return nil, err
	}
	resp, err := h.engine.VerifyFulfillment(lockID, ccmtype.FulfillmentProof{
		TransactionHash: txHash,
		BlockHash:       blockHash,
		BlockNumber:     p.BlockNumber,
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"userOperation": resp.UserOperation,
		"commitment":    resp.Commitment,
	}, nil
}

func (h *Handler) cancelLock(raw json.RawMessage) (any, error) {
	p, err := decodeParams[cancelLockParams](raw)
	if err != nil {
		return nil, err
	}
	lockID, err := parseHash(p.LockID)
	if err != nil {
		return nil, err
	}
	sig, err := parseSignature(p.Signature)
	if err != nil {
		return nil, err
	}
	return h.engine.CancelLock(lockID, sig)
}

func (h *Handler) getLock(raw json.RawMessage) (any, error) {
	p, err := decodeParams[lockIDParams](raw)
	if err != nil {
		return nil, err
	}
	lockID, err := parseHash(p.LockID)
	if err != nil {
		return nil, err
	}
	lock, err := h.engine.GetLock(lockID)
	if err != nil {
		return nil, err
	}
	return toWireLock(lock), nil
}

func (h *Handler) getActiveLocks() (any, error) {
	locks := h.engine.GetActiveLocks()
	out := make([]wireLock, 0, len(locks))
	for _, l := range locks {
		out = append(out, toWireLock(l))
	}
	return out, nil
}

func (h *Handler) getLockedBalance(raw json.RawMessage) (any, error) {
	p, err := decodeParams[ownerParams](raw)
	if err != nil {
		return nil, err
	}
	owner, err := parseAddress(p.Owner)
	if err != nil {
		return nil, err
	}
	return map[string]string{"balance": amountString(h.engine.GetLockedBalance(owner))}, nil
}

func (h *Handler) getStateRoot() (any, error) {
	return map[string]string{"stateRoot": hashHex(h.engine.GetStateRoot())}, nil
}

func (h *Handler) getEnclavePublicKey() (any, error) {
	return map[string]string{"publicKey": toHex(h.engine.GetEnclavePublicKey())}, nil
}

func (h *Handler) getEnclaveID() (any, error) {
	id := h.engine.GetEnclaveID()
	return map[string]string{"enclaveId": hashHex(id)}, nil
}

func (h *Handler) health() (any, error) {
	return map[string]string{"status": "ok"}, nil
}

func (h *Handler) getBootAttestation() (any, error) {
	return toWireBootAttestation(h.engine.GetBootAttestation()), nil
}

func (h *Handler) cleanupExpiredLocks() (any, error) {
	return map[string]int{"cleaned": h.engine.CleanupExpiredLocks()}, nil
}
