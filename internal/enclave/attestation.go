package enclave

import (
	"fmt"

	"github.com/credible-commitment/ccm-core/internal/capability"
	"github.com/credible-commitment/ccm-core/internal/ccmtype"
	"github.com/credible-commitment/ccm-core/internal/cryptoprim"
)

// GenerateBootAttestation returns a BootAttestation binding the enclave's
// public key and boot time to a (possibly mock) measured code identity, and
// signs the binding with the enclave key.
func (id *Identity) GenerateBootAttestation(att capability.Attestor) (ccmtype.BootAttestation, error) {
	hash := cryptoprim.Keccak256(
		id.enclaveID[:],
		id.pubKey,
		cryptoprim.EncodeUint64(id.bootTime),
	)

	sig, err := id.Sign(hash)
	if err != nil {
		return ccmtype.BootAttestation{}, fmt.Errorf("enclave: sign boot attestation: %w", err)
	}

	doc, pcrs, ok := att.GetAttestationDocument(id.pubKey, id.enclaveID[:], nil)
	codeHash := mockCodeHash(id.enclaveID, pcrs)

	return ccmtype.BootAttestation{
		EnclaveID:           id.enclaveID,
		PublicKey:           id.PublicKey(),
		BootTime:            id.bootTime,
		CodeHash:            codeHash,
		AttestationDocument: doc,
		IsRealAttestation:   ok,
		Signature:           sig,
	}, nil
}

// mockCodeHash derives a deterministic placeholder code measurement when no
// real attestation service is available, so BootAttestation.CodeHash is
// always populated even in the degraded (IsRealAttestation=false) path.
func mockCodeHash(enclaveID ccmtype.Bytes32, pcrs map[string][]byte) ccmtype.Hash {
	if len(pcrs) == 0 {
		return cryptoprim.Keccak256(enclaveID[:], []byte("mock-code-hash"))
	}
	parts := make([][]byte, 0, len(pcrs)+1)
	parts = append(parts, enclaveID[:])
	for _, v := range pcrs {
		parts = append(parts, v)
	}
	return cryptoprim.Keccak256(parts...)
}
