package commitment

import (
	"crypto/ecdsa"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/credible-commitment/ccm-core/internal/capability"
	"github.com/credible-commitment/ccm-core/internal/ccmerr"
	"github.com/credible-commitment/ccm-core/internal/ccmtype"
	"github.com/credible-commitment/ccm-core/internal/cryptoprim"
	"github.com/credible-commitment/ccm-core/internal/enclave"
	"github.com/credible-commitment/ccm-core/internal/identity"
)

// testOwner is a test double for a lock owner's EOA, used to sign
// LockApproval and cancellation messages the way a wallet would.
type testOwner struct {
	priv *ecdsa.PrivateKey
	addr ccmtype.Address
}

func newTestOwner(t *testing.T) *testOwner {
	t.Helper()
	priv, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate owner key: %v", err)
	}
	var addr ccmtype.Address
	copy(addr[:], crypto.PubkeyToAddress(priv.PublicKey).Bytes())
	return &testOwner{priv: priv, addr: addr}
}

func (o *testOwner) sign(hash ccmtype.Hash) ccmtype.Signature {
	sig, err := cryptoprim.Sign(hash, o.priv)
	if err != nil {
		panic(err)
	}
	return sig
}

func newTestEngine(t *testing.T) (*Engine, *capability.FixedTime) {
	t.Helper()
	clock := capability.NewFixedTime(1_700_000_000)
	id, err := enclave.New(capability.CryptoRandom{}, clock)
	if err != nil {
		t.Fatalf("enclave.New: %v", err)
	}
	cfg := ccmtype.DefaultEnclaveConfig()
	e, err := NewEngine(cfg, id, clock, capability.CryptoRandom{}, capability.FormatOnlyVerifier{}, capability.UnavailableAttestor{})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e, clock
}

func sampleRequest(owner ccmtype.Address) CreateLockRequest {
	// amount (the reserved source-chain asset) and the fulfillment's
	// TargetAmount (the destination-chain delivery amount) are deliberately
	// different values, so a settlement path that confuses the two trips a
	// test instead of passing by coincidence.
	amount, _ := new(big.Int).SetString("1000000000000000000", 10)      // 1 token, reserved
	targetAmount, _ := new(big.Int).SetString("999000000000000000", 10) // 0.999 token, delivered
	return CreateLockRequest{
		Owner:     owner,
		Asset:     ccmtype.AssetIdentifier{ChainID: 1, Kind: ccmtype.AssetNative},
		Amount:    amount,
		ExpiresIn: 60,
		Fulfillment: ccmtype.FulfillmentCondition{
			TargetChainID: 42161,
			TargetAsset:   ccmtype.AssetIdentifier{ChainID: 42161, Kind: ccmtype.AssetNative},
			TargetAmount:  targetAmount,
			Recipient:     ccmtype.Address{0xAA},
		},
	}
}

func signApproval(t *testing.T, e *Engine, owner *testOwner, resp CreateLockResponse) ccmtype.Signature {
	t.Helper()
	domainSep := cryptoprim.HashDomain(resp.Domain)
	structHash := cryptoprim.HashLockApproval(resp.TypedData)
	digest := cryptoprim.HashTypedData(domainSep, structHash)
	return owner.sign(digest)
}

func TestCreateLockThenSignLockActivatesAndUpdatesRoot(t *testing.T) {
	e, _ := newTestEngine(t)
	owner := newTestOwner(t)

	resp, err := e.CreateLock(sampleRequest(owner.addr))
	if err != nil {
		t.Fatalf("CreateLock: %v", err)
	}
	if resp.Status != ccmtype.StatusPending {
		t.Fatalf("expected pending status, got %s", resp.Status)
	}
	if e.GetStateRoot() != (ccmtype.Hash{}) {
		t.Fatal("state root should still be zero before activation")
	}

	sig := signApproval(t, e, owner, resp)
	signResp, err := e.SignLock(resp.LockID, sig)
	if err != nil {
		t.Fatalf("SignLock: %v", err)
	}
	if signResp.Commitment.LockID != resp.LockID {
		t.Fatal("commitment lock id mismatch")
	}
	if e.GetStateRoot() == (ccmtype.Hash{}) {
		t.Fatal("state root should be non-zero once a lock is active")
	}

	lock, err := e.GetLock(resp.LockID)
	if err != nil {
		t.Fatalf("GetLock: %v", err)
	}
	if lock.Status != ccmtype.StatusActive {
		t.Fatalf("expected active status, got %s", lock.Status)
	}
}

func TestSignLockRejectsWrongSigner(t *testing.T) {
	e, _ := newTestEngine(t)
	owner := newTestOwner(t)
	impostor := newTestOwner(t)

	resp, err := e.CreateLock(sampleRequest(owner.addr))
	if err != nil {
		t.Fatalf("CreateLock: %v", err)
	}

	badSig := signApproval(t, e, impostor, resp)
	_, err = e.SignLock(resp.LockID, badSig)
	if ccmerr.CodeOf(err) != ccmerr.InvalidSignature {
		t.Fatalf("expected InvalidSignature, got %v", err)
	}
}

func TestCreateLockRejectsConcurrentLimitBreach(t *testing.T) {
	e, _ := newTestEngine(t)
	owner := newTestOwner(t)
	e.cfg.RiskLimits.MaxConcurrentLocks = 1
	e.risk = newRiskGate(e.cfg.RiskLimits)

	req := sampleRequest(owner.addr)
	resp, err := e.CreateLock(req)
	if err != nil {
		t.Fatalf("first CreateLock: %v", err)
	}
	sig := signApproval(t, e, owner, resp)
	if _, err := e.SignLock(resp.LockID, sig); err != nil {
		t.Fatalf("SignLock: %v", err)
	}

	_, err = e.CreateLock(req)
	if ccmerr.CodeOf(err) != ccmerr.RiskLimitExceeded {
		t.Fatalf("expected RiskLimitExceeded, got %v", err)
	}
}

func TestSignLockRejectsExpiredPendingLock(t *testing.T) {
	e, clock := newTestEngine(t)
	owner := newTestOwner(t)

	resp, err := e.CreateLock(sampleRequest(owner.addr))
	if err != nil {
		t.Fatalf("CreateLock: %v", err)
	}
	clock.Advance(120)

	sig := signApproval(t, e, owner, resp)
	_, err = e.SignLock(resp.LockID, sig)
	if ccmerr.CodeOf(err) != ccmerr.LockExpired {
		t.Fatalf("expected LockExpired, got %v", err)
	}

	lock, _ := e.GetLock(resp.LockID)
	if lock.Status != ccmtype.StatusExpired {
		t.Fatalf("expected lock transitioned to expired, got %s", lock.Status)
	}
}

func TestVerifyFulfillmentBuildsSettlementAndRemovesFromIndex(t *testing.T) {
	e, _ := newTestEngine(t)
	owner := newTestOwner(t)

	resp, err := e.CreateLock(sampleRequest(owner.addr))
	if err != nil {
		t.Fatalf("CreateLock: %v", err)
	}
	sig := signApproval(t, e, owner, resp)
	if _, err := e.SignLock(resp.LockID, sig); err != nil {
		t.Fatalf("SignLock: %v", err)
	}
	rootBeforeFulfillment := e.GetStateRoot()

	proof := ccmtype.FulfillmentProof{
		TransactionHash: ccmtype.Hash{0x01},
		BlockHash:       ccmtype.Hash{0x02},
		BlockNumber:     100,
	}
	fulfillResp, err := e.VerifyFulfillment(resp.LockID, proof)
	if err != nil {
		t.Fatalf("VerifyFulfillment: %v", err)
	}
	if fulfillResp.UserOperation.Sender != owner.addr {
		t.Fatalf("expected sender %x, got %x", owner.addr, fulfillResp.UserOperation.Sender)
	}
	if len(fulfillResp.UserOperation.Signature) != 130 {
		t.Fatalf("expected 130-byte combined signature, got %d", len(fulfillResp.UserOperation.Signature))
	}

	callData := fulfillResp.UserOperation.CallData
	if len(callData) < 68 {
		t.Fatalf("callData too short: %d bytes", len(callData))
	}
	transferredAmount := new(big.Int).SetBytes(callData[36:68])
	gotLock, _ := e.GetLock(resp.LockID)
	if transferredAmount.Cmp(gotLock.Amount) != 0 {
		t.Fatalf("settlement transfers %s, want the reserved lock amount %s", transferredAmount, gotLock.Amount)
	}
	if transferredAmount.Cmp(gotLock.Fulfillment.TargetAmount) == 0 {
		t.Fatalf("settlement must drain the reserved lock amount, not the fulfillment's target amount")
	}

	if e.GetStateRoot() == rootBeforeFulfillment {
		t.Fatal("expected state root to change once the lock leaves the active set")
	}

	lock, _ := e.GetLock(resp.LockID)
	if lock.Status != ccmtype.StatusFulfilled {
		t.Fatalf("expected fulfilled status, got %s", lock.Status)
	}
}

func TestVerifyFulfillmentRejectsMalformedProof(t *testing.T) {
	e, _ := newTestEngine(t)
	owner := newTestOwner(t)

	resp, err := e.CreateLock(sampleRequest(owner.addr))
	if err != nil {
		t.Fatalf("CreateLock: %v", err)
	}
	sig := signApproval(t, e, owner, resp)
	if _, err := e.SignLock(resp.LockID, sig); err != nil {
		t.Fatalf("SignLock: %v", err)
	}

	_, err = e.VerifyFulfillment(resp.LockID, ccmtype.FulfillmentProof{})
	if ccmerr.CodeOf(err) != ccmerr.VerifierFailed {
		t.Fatalf("expected VerifierFailed, got %v", err)
	}
}

func TestCancelLockRageQuitRemovesActiveLockFromIndex(t *testing.T) {
	e, _ := newTestEngine(t)
	owner := newTestOwner(t)

	resp, err := e.CreateLock(sampleRequest(owner.addr))
	if err != nil {
		t.Fatalf("CreateLock: %v", err)
	}
	sig := signApproval(t, e, owner, resp)
	if _, err := e.SignLock(resp.LockID, sig); err != nil {
		t.Fatalf("SignLock: %v", err)
	}

	cancelDigest := identity.HashCancellation(resp.LockID)
	cancelSig := owner.sign(cancelDigest)
	att, err := e.CancelLock(resp.LockID, cancelSig)
	if err != nil {
		t.Fatalf("CancelLock: %v", err)
	}
	if att.Operation != "CANCEL" {
		t.Fatalf("expected CANCEL attestation, got %q", att.Operation)
	}
	if e.GetStateRoot() != (ccmtype.Hash{}) {
		t.Fatal("expected empty state root after cancelling the only active lock")
	}

	lock, _ := e.GetLock(resp.LockID)
	if lock.Status != ccmtype.StatusCancelled {
		t.Fatalf("expected cancelled status, got %s", lock.Status)
	}
}

func TestCancelLockRejectsAfterTerminalStatus(t *testing.T) {
	e, _ := newTestEngine(t)
	owner := newTestOwner(t)

	resp, err := e.CreateLock(sampleRequest(owner.addr))
	if err != nil {
		t.Fatalf("CreateLock: %v", err)
	}
	sig := signApproval(t, e, owner, resp)
	if _, err := e.SignLock(resp.LockID, sig); err != nil {
		t.Fatalf("SignLock: %v", err)
	}
	cancelSig := owner.sign(identity.HashCancellation(resp.LockID))
	if _, err := e.CancelLock(resp.LockID, cancelSig); err != nil {
		t.Fatalf("first CancelLock: %v", err)
	}

	_, err = e.CancelLock(resp.LockID, cancelSig)
	if ccmerr.CodeOf(err) != ccmerr.InvalidLockStatus {
		t.Fatalf("expected InvalidLockStatus, got %v", err)
	}
}

func TestReplaySignLockRejectedOnceActive(t *testing.T) {
	e, _ := newTestEngine(t)
	owner := newTestOwner(t)

	resp, err := e.CreateLock(sampleRequest(owner.addr))
	if err != nil {
		t.Fatalf("CreateLock: %v", err)
	}
	sig := signApproval(t, e, owner, resp)
	if _, err := e.SignLock(resp.LockID, sig); err != nil {
		t.Fatalf("SignLock: %v", err)
	}

	_, err = e.SignLock(resp.LockID, sig)
	if ccmerr.CodeOf(err) != ccmerr.InvalidLockStatus {
		t.Fatalf("expected InvalidLockStatus on replay, got %v", err)
	}
}

func TestCleanupExpiredLocksTransitionsPendingAndActive(t *testing.T) {
	e, clock := newTestEngine(t)
	ownerA := newTestOwner(t)
	ownerB := newTestOwner(t)

	respA, err := e.CreateLock(sampleRequest(ownerA.addr))
	if err != nil {
		t.Fatalf("CreateLock A: %v", err)
	}
	respB, err := e.CreateLock(sampleRequest(ownerB.addr))
	if err != nil {
		t.Fatalf("CreateLock B: %v", err)
	}
	sigB := signApproval(t, e, ownerB, respB)
	if _, err := e.SignLock(respB.LockID, sigB); err != nil {
		t.Fatalf("SignLock B: %v", err)
	}

	clock.Advance(3600)
	n := e.CleanupExpiredLocks()
	if n != 2 {
		t.Fatalf("expected 2 locks expired, got %d", n)
	}

	lockA, _ := e.GetLock(respA.LockID)
	lockB, _ := e.GetLock(respB.LockID)
	if lockA.Status != ccmtype.StatusExpired || lockB.Status != ccmtype.StatusExpired {
		t.Fatalf("expected both locks expired, got %s / %s", lockA.Status, lockB.Status)
	}
	if e.GetStateRoot() != (ccmtype.Hash{}) {
		t.Fatal("expected empty state root once the only active lock expires")
	}
}

func TestCreateLockRejectsUnsupportedChain(t *testing.T) {
	e, _ := newTestEngine(t)
	owner := newTestOwner(t)
	req := sampleRequest(owner.addr)
	req.Asset.ChainID = 999999

	_, err := e.CreateLock(req)
	if ccmerr.CodeOf(err) != ccmerr.UnsupportedChain {
		t.Fatalf("expected UnsupportedChain, got %v", err)
	}
}

func TestCreateLockRejectsAmountAboveSingleLockLimit(t *testing.T) {
	e, _ := newTestEngine(t)
	owner := newTestOwner(t)
	req := sampleRequest(owner.addr)
	req.Amount = new(big.Int).Add(e.cfg.RiskLimits.MaxSingleLockAmount, big.NewInt(1))

	_, err := e.CreateLock(req)
	if ccmerr.CodeOf(err) != ccmerr.AmountOutOfRange {
		t.Fatalf("expected AmountOutOfRange, got %v", err)
	}
}
