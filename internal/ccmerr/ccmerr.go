// Package ccmerr implements the core's error taxonomy: distinct
// kinds rather than ad-hoc strings, so the RPC shim can map each to a stable
// machine-readable code instead of pattern-matching on messages.
package ccmerr

import "fmt"

// Code identifies an error kind. Codes are part of the wire contract: the
// RPC shim serializes them verbatim.
type Code string

const (
	InvalidParams        Code = "InvalidParams"
	UnsupportedChain      Code = "UnsupportedChain"
	UnsupportedAssetKind  Code = "UnsupportedAssetKind"
	InvalidAsset          Code = "InvalidAsset"
	AmountOutOfRange      Code = "AmountOutOfRange"
	DurationOutOfRange    Code = "DurationOutOfRange"
	RiskLimitExceeded     Code = "RiskLimitExceeded"
	LockNotFound          Code = "LockNotFound"
	InvalidLockStatus     Code = "InvalidLockStatus"
	InvalidSignature      Code = "InvalidSignature"
	LockExpired           Code = "LockExpired"
	AttestorUnavailable   Code = "AttestorUnavailable"
	VerifierFailed        Code = "VerifierFailed"
	Internal              Code = "Internal"
)

// Risk-limit sub-reasons, carried in Error.Reason when Code == RiskLimitExceeded.
const (
	ReasonConcurrent = "concurrent"
	ReasonAccount    = "account"
	ReasonDaily      = "daily"
)

// Error is the core's error type. It never wraps a signature or private key
// value — only identifiers and a human-readable message.
type Error struct {
	Code    Code
	Message string
	Reason  string // optional sub-reason, e.g. RiskLimitExceeded's
}

func (e *Error) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s(%s): %s", e.Code, e.Reason, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// New constructs an Error with no sub-reason.
func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// NewWithReason constructs an Error carrying a sub-reason (risk-limit kind).
func NewWithReason(code Code, reason, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Reason: reason}
}

// CodeOf extracts the Code from err, or Internal if err is not an *Error.
func CodeOf(err error) Code {
	var e *Error
	if as, ok := err.(*Error); ok {
		e = as
		return e.Code
	}
	return Internal
}
