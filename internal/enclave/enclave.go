// Package enclave owns the ephemeral enclave identity: the private key,
// its derived address, the enclave ID, and boot-attestation generation.
// The private key never leaves this package; every other package that
// needs a signature calls Identity.Sign.
//
// Follows a SessionManager-style approach which seals a private key into
// a memguard.Enclave and opens it only momentarily during Sign. This
// package generalizes that pattern from a short-lived, operator-activated
// session key to a process-lifetime enclave key generated from
// SecureRandom at initialize().
package enclave

import (
	"fmt"

	"github.com/awnumar/memguard"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/credible-commitment/ccm-core/internal/capability"
	"github.com/credible-commitment/ccm-core/internal/ccmtype"
	"github.com/credible-commitment/ccm-core/internal/cryptoprim"
)

// Identity holds the enclave's ephemeral key in locked, zeroizable memory.
// It is process-singleton: callers never export the underlying key, only
// its derived Address.
type Identity struct {
	enclave   *memguard.Enclave
	address   ccmtype.Address
	enclaveID ccmtype.Bytes32
	bootTime  uint64
	pubKey    []byte
}

// New generates a fresh 256-bit private key via rnd, derives its address,
// assigns an enclave ID from rnd, and records bootTime from clock. The
// caller-visible Identity never exposes the raw key.
func New(rnd capability.SecureRandom, clock capability.SecureTime) (*Identity, error) {
	keyBytes, err := rnd.Bytes(32)
	if err != nil {
		return nil, fmt.Errorf("enclave: generate key: %w", err)
	}
	priv, err := crypto.ToECDSA(keyBytes)
	if err != nil {
		return nil, fmt.Errorf("enclave: derive key: %w", err)
	}
	addr := crypto.PubkeyToAddress(priv.PublicKey)
	pub := crypto.FromECDSAPub(&priv.PublicKey)

	idBytes, err := rnd.Bytes(32)
	if err != nil {
		return nil, fmt.Errorf("enclave: generate enclave id: %w", err)
	}

	id := &Identity{
		enclave:  memguard.NewEnclave(keyBytes),
		bootTime: clock.Now(),
		pubKey:   pub,
	}
	copy(id.address[:], addr.Bytes())
	copy(id.enclaveID[:], idBytes)
	return id, nil
}

// Address returns the enclave's derived address. Together with PublicKey,
// it is one of the two key-derived values permitted to leave the enclave.
func (id *Identity) Address() ccmtype.Address { return id.address }

// EnclaveID returns the enclave's random 32-byte identifier.
func (id *Identity) EnclaveID() ccmtype.Bytes32 { return id.enclaveID }

// BootTime returns the Unix-seconds timestamp recorded at initialize().
func (id *Identity) BootTime() uint64 { return id.bootTime }

// PublicKey returns the enclave's uncompressed public key bytes.
func (id *Identity) PublicKey() []byte {
	out := make([]byte, len(id.pubKey))
	copy(out, id.pubKey)
	return out
}

// Sign opens the enclave momentarily, signs hash, and immediately destroys
// the opened buffer. This is the only code path permitted to touch the raw
// private key.
func (id *Identity) Sign(hash ccmtype.Hash) (ccmtype.Signature, error) {
	buf, err := id.enclave.Open()
	if err != nil {
		return ccmtype.Signature{}, fmt.Errorf("enclave: open: %w", err)
	}
	defer buf.Destroy()

	priv, err := crypto.ToECDSA(buf.Bytes())
	if err != nil {
		return ccmtype.Signature{}, fmt.Errorf("enclave: parse key: %w", err)
	}
	return cryptoprim.Sign(hash, priv)
}
