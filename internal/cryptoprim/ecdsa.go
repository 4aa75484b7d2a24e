package cryptoprim

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/credible-commitment/ccm-core/internal/ccmtype"
)

// Sign produces a 65-byte r||s||v signature over hash using priv, with the
// Ethereum v convention (27 or 28).
func Sign(hash [32]byte, priv *ecdsa.PrivateKey) (ccmtype.Signature, error) {
	sig, err := crypto.Sign(hash[:], priv)
	if err != nil {
		return ccmtype.Signature{}, fmt.Errorf("cryptoprim: ecdsa sign: %w", err)
	}
	var out ccmtype.Signature
	copy(out[:], sig)
	out[64] += 27
	return out, nil
}

// Recover recovers the signing address from a 65-byte signature over hash.
func Recover(hash [32]byte, sig ccmtype.Signature) (ccmtype.Address, error) {
	raw := make([]byte, 65)
	copy(raw, sig[:])
	if raw[64] >= 27 {
		raw[64] -= 27
	}
	pub, err := crypto.SigToPub(hash[:], raw)
	if err != nil {
		return ccmtype.Address{}, fmt.Errorf("cryptoprim: recover: %w", err)
	}
	addr := crypto.PubkeyToAddress(*pub)
	var out ccmtype.Address
	copy(out[:], addr.Bytes())
	return out, nil
}

// VerifySignature reports whether sig over hash was produced by want's key.
// Comparison is case-insensitive by construction: Address is a fixed-width
// byte array, not a hex string.
func VerifySignature(hash [32]byte, sig ccmtype.Signature, want ccmtype.Address) bool {
	recovered, err := Recover(hash, sig)
	if err != nil {
		return false
	}
	return recovered == want
}
