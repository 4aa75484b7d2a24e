package cryptoprim

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/credible-commitment/ccm-core/internal/ccmtype"
)

func TestSignRecoverRoundTrip(t *testing.T) {
	priv, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	addr := crypto.PubkeyToAddress(priv.PublicKey)
	var want ccmtype.Address
	copy(want[:], addr.Bytes())

	hash := Keccak256([]byte("hello"))
	sig, err := Sign(hash, priv)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if sig[64] != 27 && sig[64] != 28 {
		t.Fatalf("expected v in {27,28}, got %d", sig[64])
	}

	got, err := Recover(hash, sig)
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if got != want {
		t.Fatalf("recovered address mismatch: got %x want %x", got, want)
	}
	if !VerifySignature(hash, sig, want) {
		t.Fatal("VerifySignature should accept the signer's own signature")
	}

	var other ccmtype.Address
	other[0] = 0xFF
	if VerifySignature(hash, sig, other) {
		t.Fatal("VerifySignature should reject an unrelated address")
	}
}

func TestHashTypedDataRoundTrip(t *testing.T) {
	priv, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	addr := crypto.PubkeyToAddress(priv.PublicKey)
	var owner ccmtype.Address
	copy(owner[:], addr.Bytes())

	domain := CCMDomain(1)
	msg := ccmtype.LockApprovalMessage{
		LockID:          Keccak256([]byte("lock-1")),
		Owner:           owner,
		Asset:           Keccak256([]byte("asset")),
		Amount:          big.NewInt(1000),
		Nonce:           big.NewInt(1),
		ExpiresAt:       1700000000,
		FulfillmentHash: Keccak256([]byte("fulfillment")),
	}

	digest := HashTypedData(HashDomain(domain), HashLockApproval(msg))
	sig, err := Sign(digest, priv)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	recovered, err := Recover(digest, sig)
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if recovered != owner {
		t.Fatalf("recovered signer mismatch: got %x want %x", recovered, owner)
	}
}

func TestEncodeBytesTailPadsToWordMultiple(t *testing.T) {
	out := EncodeBytesTail([]byte("abc"))
	// 32-byte length word + 32-byte padded payload.
	if len(out) != 64 {
		t.Fatalf("expected 64 bytes, got %d", len(out))
	}
	lengthWord := new(big.Int).SetBytes(out[:32])
	if lengthWord.Int64() != 3 {
		t.Fatalf("expected length word 3, got %d", lengthWord.Int64())
	}
}
