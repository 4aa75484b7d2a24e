// Package capability defines the three abstract environment capabilities
// the core consumes (SecureTime, SecureRandom, Attestor) plus the
// FulfillmentVerifier injected into verifyFulfillment. Each has a host
// default; tests supply deterministic doubles instead.
//
// The injectable-clock shape mirrors a CircuitBreaker whose nowFunc field
// lets tests control staleness checks without sleeping in real time.
package capability

import (
	"crypto/rand"
	"time"

	"github.com/credible-commitment/ccm-core/internal/ccmtype"
)

// SecureTime yields the enclave's notion of current time, in Unix seconds.
type SecureTime interface {
	Now() uint64
}

// SecureRandom yields cryptographically secure random bytes.
type SecureRandom interface {
	Bytes(n int) ([]byte, error)
}

// Attestor produces a TEE attestation document binding a public key to a
// measured code identity. When the host has no real attestation service,
// GetAttestationDocument returns ok = false and the core falls back to a
// deterministic mock marked IsRealAttestation = false.
type Attestor interface {
	GetAttestationDocument(pub, userData, nonce []byte) (document []byte, pcrs map[string][]byte, ok bool)
}

// FulfillmentVerifier checks a solver-submitted proof that a fulfillment
// condition was satisfied on the destination chain.
type FulfillmentVerifier interface {
	Verify(lock ccmtype.ResourceLock, proof ccmtype.FulfillmentProof) error
}

// SystemTime is the default SecureTime, backed by the host's wall clock.
type SystemTime struct{}

func (SystemTime) Now() uint64 { return uint64(time.Now().Unix()) }

// FixedTime is a test double that returns a settable timestamp, grounded on
// a CircuitBreaker-style nowFunc injectable-clock pattern.
type FixedTime struct {
	t uint64
}

// NewFixedTime creates a FixedTime starting at t.
func NewFixedTime(t uint64) *FixedTime { return &FixedTime{t: t} }

func (f *FixedTime) Now() uint64 { return f.t }

// Advance moves the fixed clock forward by delta seconds.
func (f *FixedTime) Advance(delta uint64) { f.t += delta }

// Set pins the fixed clock to an absolute timestamp.
func (f *FixedTime) Set(t uint64) { f.t = t }

// CryptoRandom is the default SecureRandom, backed by crypto/rand.
type CryptoRandom struct{}

func (CryptoRandom) Bytes(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// UnavailableAttestor is the default Attestor: no real TEE attestation
// service is configured, so the core must fall back to a mock document.
// Grounded on luxfi-adx/pkg/tee's EnclaveSimulated fallback path.
type UnavailableAttestor struct{}

func (UnavailableAttestor) GetAttestationDocument(_, _, _ []byte) ([]byte, map[string][]byte, bool) {
	return nil, nil, false
}

// FormatOnlyVerifier is the default FulfillmentVerifier: it performs only
// the required format checks, with no external chain query.
type FormatOnlyVerifier struct{}

func (FormatOnlyVerifier) Verify(_ ccmtype.ResourceLock, proof ccmtype.FulfillmentProof) error {
	if proof.TransactionHash == (ccmtype.Hash{}) {
		return errFormat("transactionHash must be 32 non-zero bytes")
	}
	if proof.BlockHash == (ccmtype.Hash{}) {
		return errFormat("blockHash must be 32 non-zero bytes")
	}
	if proof.BlockNumber < 0 {
		return errFormat("blockNumber must be >= 0")
	}
	return nil
}

type errFormat string

func (e errFormat) Error() string { return string(e) }
