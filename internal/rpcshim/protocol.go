// Package rpcshim exposes the commitment engine over a line-framed
// JSON-RPC 2.0 protocol on a Unix domain socket, plus an HTTP compatibility
// shim, in place of a protobuf/gRPC service definition.
//
// Follows a Unix-socket server setup (MkdirAll, stale-socket removal,
// 0600 permissions) and a request-validate-then-delegate handler shape,
// with the protobuf service definition replaced by a method-name
// dispatch table.
package rpcshim

import (
	"encoding/json"

	"github.com/credible-commitment/ccm-core/internal/ccmerr"
)

// Request is a JSON-RPC 2.0 request object.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response is a JSON-RPC 2.0 response object. Exactly one of Result or
// Error is populated.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  any             `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError is a JSON-RPC 2.0 error object. Code follows the JSON-RPC
// reserved-range convention for protocol errors and a stable application
// range (starting at -32000) for domain errors, whose Data.code carries the
// ccmerr.Code verbatim so clients can branch on it without string matching.
type RPCError struct {
	Code    int           `json:"code"`
	Message string        `json:"message"`
	Data    *RPCErrorData `json:"data,omitempty"`
}

// RPCErrorData carries the domain error code and optional sub-reason.
type RPCErrorData struct {
	Code   string `json:"code"`
	Reason string `json:"reason,omitempty"`
}

const (
	codeParseError      = -32700
	codeInvalidRequest  = -32600
	codeMethodNotFound  = -32601
	codeInvalidParams   = -32602
	codeInternalError   = -32603
	codeApplicationBase = -32000
)

// errorResponse builds a Response carrying an RPCError for a domain err.
func errorResponse(id json.RawMessage, err error) *Response {
	return &Response{JSONRPC: "2.0", ID: id, Error: toRPCError(err)}
}

// toRPCError maps a domain error to a JSON-RPC error object. Non-*ccmerr.Error
// values are reported as opaque internal errors — the enclave never leaks
// arbitrary Go error strings that might carry key material.
func toRPCError(err error) *RPCError {
	ccErr, ok := err.(*ccmerr.Error)
	if !ok {
		return &RPCError{Code: codeInternalError, Message: "internal error"}
	}
	return &RPCError{
		Code:    codeApplicationBase - codeOffset(ccErr.Code),
		Message: ccErr.Error(),
		Data:    &RPCErrorData{Code: string(ccErr.Code), Reason: ccErr.Reason},
	}
}

// codeOffset assigns each ccmerr.Code a stable small offset from
// codeApplicationBase, so the same domain error always carries the same
// JSON-RPC code across restarts.
func codeOffset(c ccmerr.Code) int {
	switch c {
	case ccmerr.InvalidParams:
		return 1
	case ccmerr.UnsupportedChain:
		return 2
	case ccmerr.UnsupportedAssetKind:
		return 3
	case ccmerr.InvalidAsset:
		return 4
	case ccmerr.AmountOutOfRange:
		return 5
	case ccmerr.DurationOutOfRange:
		return 6
	case ccmerr.RiskLimitExceeded:
		return 7
	case ccmerr.LockNotFound:
		return 8
	case ccmerr.InvalidLockStatus:
		return 9
	case ccmerr.InvalidSignature:
		return 10
	case ccmerr.LockExpired:
		return 11
	case ccmerr.AttestorUnavailable:
		return 12
	case ccmerr.VerifierFailed:
		return 13
	default:
		return 99
	}
}
