// Package commitment implements the enclave-resident commitment engine:
// lock creation, dual-signature activation, fulfillment verification,
// cancellation, and the Merkle state root over active locks.
//
// Follows a SessionManager-style shape, whose mutex-guarded map of open
// positions and check-then-mutate order placement generalize directly to
// a mutex-guarded map of ResourceLocks with a check-then-mutate lock
// lifecycle.
package commitment

import (
	"fmt"
	"math/big"
	"sync"

	"go.uber.org/zap"

	"github.com/credible-commitment/ccm-core/internal/capability"
	"github.com/credible-commitment/ccm-core/internal/ccmerr"
	"github.com/credible-commitment/ccm-core/internal/ccmtype"
	"github.com/credible-commitment/ccm-core/internal/cryptoprim"
	"github.com/credible-commitment/ccm-core/internal/enclave"
	"github.com/credible-commitment/ccm-core/internal/identity"
	"github.com/credible-commitment/ccm-core/internal/merkle"
	"github.com/credible-commitment/ccm-core/internal/obs"
	"github.com/credible-commitment/ccm-core/internal/settlement"
)

// signingWindow is added to the creation time to produce the
// ExpirationTimestamp returned by CreateLock. It is advisory only: SignLock
// and CleanupExpiredLocks expire a pending lock by its ExpiresAt, not by
// this window.
const signingWindow = 30

// Engine is the enclave's single-writer commitment engine. All mutating
// methods take the write lock; all read-only queries take the read lock.
type Engine struct {
	mu sync.RWMutex

	cfg      ccmtype.EnclaveConfig
	identity *enclave.Identity
	clock    capability.SecureTime
	rnd      capability.SecureRandom
	verifier capability.FulfillmentVerifier
	risk     *riskGate

	locks       map[ccmtype.Hash]*ccmtype.ResourceLock
	nonces      map[ccmtype.Address]*big.Int
	dailyVolume map[uint64]*big.Int // keyed by now/86400

	index     *merkle.Index
	stateRoot ccmtype.Hash

	// bootAttestation is generated once at construction and returned
	// unchanged on every GetBootAttestation call: its fields are fixed at
	// boot time.
	bootAttestation ccmtype.BootAttestation

	log     *zap.Logger
	metrics *obs.Metrics
}

// Option configures optional Engine dependencies.
type Option func(*Engine)

// WithLogger attaches a structured logger; lifecycle transitions are logged
// at Info, rejections at Warn. Defaults to zap.NewNop() if never set.
func WithLogger(log *zap.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// WithMetrics attaches Prometheus collectors updated on every lock
// transition. Defaults to a freshly registered obs.Metrics if never set.
func WithMetrics(m *obs.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// NewEngine constructs an Engine bound to a single enclave identity,
// generating its boot attestation via attestor before returning.
func NewEngine(
	cfg ccmtype.EnclaveConfig,
	id *enclave.Identity,
	clock capability.SecureTime,
	rnd capability.SecureRandom,
	verifier capability.FulfillmentVerifier,
	attestor capability.Attestor,
	opts ...Option,
) (*Engine, error) {
	boot, err := id.GenerateBootAttestation(attestor)
	if err != nil {
		return nil, fmt.Errorf("commitment: generate boot attestation: %w", err)
	}

	e := &Engine{
		cfg:             cfg,
		identity:        id,
		clock:           clock,
		rnd:             rnd,
		verifier:        verifier,
		risk:            newRiskGate(cfg.RiskLimits),
		bootAttestation: boot,
		locks:           make(map[ccmtype.Hash]*ccmtype.ResourceLock),
		nonces:          make(map[ccmtype.Address]*big.Int),
		dailyVolume:     make(map[uint64]*big.Int),
		index:           merkle.NewIndex(),
		log:             zap.NewNop(),
		metrics:         obs.NewMetrics(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// CreateLock validates and registers a new Pending lock, returning the
// EIP-712 typed data the owner must sign to activate it.
func (e *Engine) CreateLock(req CreateLockRequest) (CreateLockResponse, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.validateAsset(req.Asset); err != nil {
		return CreateLockResponse{}, err
	}
	if req.Amount == nil || req.Amount.Sign() <= 0 {
		return CreateLockResponse{}, ccmerr.New(ccmerr.AmountOutOfRange, "amount must be positive")
	}
	if req.Amount.Cmp(e.cfg.RiskLimits.MaxSingleLockAmount) > 0 {
		return CreateLockResponse{}, ccmerr.New(ccmerr.AmountOutOfRange,
			"amount %s exceeds the single-lock limit %s", req.Amount, e.cfg.RiskLimits.MaxSingleLockAmount)
	}
	if req.ExpiresIn < e.cfg.MinLockDuration || req.ExpiresIn > e.cfg.MaxLockDuration {
		return CreateLockResponse{}, ccmerr.New(ccmerr.DurationOutOfRange,
			"expiresIn %d outside [%d,%d]", req.ExpiresIn, e.cfg.MinLockDuration, e.cfg.MaxLockDuration)
	}
	if err := e.validateAsset(req.Fulfillment.TargetAsset); err != nil {
		return CreateLockResponse{}, err
	}

	activeCount, activeSum := e.activeTotalsFor(req.Owner)
	now := e.clock.Now()
	daily := e.dailyVolumeAt(now)
	if err := e.risk.checkCreate(activeCount, activeSum, req.Amount, daily); err != nil {
		if ccErr, ok := err.(*ccmerr.Error); ok {
			e.metrics.RiskRejectionsTotal.WithLabelValues(ccErr.Reason).Inc()
		}
		e.log.Warn("lock creation rejected by risk gate", zap.String("owner", fmt.Sprintf("%x", req.Owner)), zap.Error(err))
		return CreateLockResponse{}, err
	}

	nonce := e.nextNonce(req.Owner)
	assetHash := identity.HashAsset(req.Asset)
	lockID := identity.DeriveLockID(req.Owner, assetHash, req.Amount, nonce, now)

	lock := &ccmtype.ResourceLock{
		ID:          lockID,
		Owner:       req.Owner,
		Asset:       req.Asset,
		Amount:      new(big.Int).Set(req.Amount),
		LockedAt:    now,
		ExpiresAt:   now + req.ExpiresIn,
		Nonce:       nonce,
		Fulfillment: req.Fulfillment,
		Status:      ccmtype.StatusPending,
	}
	e.locks[lockID] = lock
	e.metrics.LocksCreatedTotal.Inc()
	e.log.Info("lock created", zap.String("lockId", fmt.Sprintf("%x", lockID)), zap.String("owner", fmt.Sprintf("%x", req.Owner)))

	domain := cryptoprim.CCMDomain(req.Asset.ChainID)
	return CreateLockResponse{
		LockID:              lockID,
		Status:              lock.Status,
		Nonce:               nonce,
		Domain:              domain,
		TypedData:           identity.LockApprovalOf(*lock),
		ExpirationTimestamp: now + signingWindow,
	}, nil
}

// SignLock accepts the owner's EIP-712 signature over the lock's typed data,
// recomputing the hash from the lock's stored fields, not from userSig's
// caller-supplied companions. On success it co-signs the lock,
// transitions it to Active, inserts it into the Merkle index, and reserves
// its amount against the day's volume.
func (e *Engine) SignLock(lockID ccmtype.Hash, userSig ccmtype.Signature) (SignLockResponse, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	lock, err := e.requireLock(lockID)
	if err != nil {
		return SignLockResponse{}, err
	}
	if lock.Status != ccmtype.StatusPending {
		return SignLockResponse{}, ccmerr.New(ccmerr.InvalidLockStatus,
			"lock %x is %s, expected pending", lockID, lock.Status)
	}

	now := e.clock.Now()
	if now > lock.ExpiresAt {
		lock.Status = ccmtype.StatusExpired
		return SignLockResponse{}, ccmerr.New(ccmerr.LockExpired, "lock %x expired before signing", lockID)
	}

	approval := identity.LockApprovalOf(*lock)
	domainSep := cryptoprim.HashDomain(cryptoprim.CCMDomain(lock.Asset.ChainID))
	structHash := cryptoprim.HashLockApproval(approval)
	digest := cryptoprim.HashTypedData(domainSep, structHash)

	if !cryptoprim.VerifySignature(digest, userSig, lock.Owner) {
		return SignLockResponse{}, ccmerr.New(ccmerr.InvalidSignature, "lock %x: signature does not recover to owner", lockID)
	}

	commitment, ccmSig, err := e.buildCommitment(*lock)
	if err != nil {
		return SignLockResponse{}, err
	}

	lock.UserSig = &userSig
	lock.CCMSig = &ccmSig
	lock.Status = ccmtype.StatusActive
	e.index.AddLeaf(merkle.Hash(lockID))
	e.stateRoot = ccmtype.Hash(e.index.GetRoot())
	commitment.StateRoot = e.stateRoot

	dateKey := now / 86400
	vol := e.dailyVolumeAt(now)
	e.dailyVolume[dateKey] = new(big.Int).Add(vol, lock.Amount)

	e.metrics.LocksActive.Inc()
	e.metrics.StateRootUpdates.Inc()
	e.log.Info("lock activated", zap.String("lockId", fmt.Sprintf("%x", lockID)))

	return SignLockResponse{Commitment: commitment}, nil
}

// VerifyFulfillment checks a solver-submitted proof that the lock's
// fulfillment condition was satisfied, and on success builds the settlement
// UserOperation that releases the locked assets. Lazy expiry is
// applied before the verifier runs; an expired lock is rejected even if the
// proof itself would otherwise verify.
func (e *Engine) VerifyFulfillment(lockID ccmtype.Hash, proof ccmtype.FulfillmentProof) (FulfillLockResponse, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	lock, err := e.requireLock(lockID)
	if err != nil {
		return FulfillLockResponse{}, err
	}

	now := e.clock.Now()
	if lock.Status == ccmtype.StatusActive && now > lock.ExpiresAt {
		e.expireLocked(lock)
		return FulfillLockResponse{}, ccmerr.New(ccmerr.LockExpired, "lock %x expired before fulfillment", lockID)
	}
	if lock.Status != ccmtype.StatusActive {
		return FulfillLockResponse{}, ccmerr.New(ccmerr.InvalidLockStatus,
			"lock %x is %s, expected active", lockID, lock.Status)
	}

	if err := e.verifier.Verify(*lock, proof); err != nil {
		return FulfillLockResponse{}, ccmerr.New(ccmerr.VerifierFailed, "fulfillment proof rejected: %v", err)
	}

	lock.Status = ccmtype.StatusFulfilled
	e.index.RemoveLeaf(merkle.Hash(lockID))
	e.stateRoot = ccmtype.Hash(e.index.GetRoot())

	commitment, _, err := e.buildCommitment(*lock)
	if err != nil {
		return FulfillLockResponse{}, err
	}
	commitment.StateRoot = e.stateRoot

	op, err := settlement.Build(*lock, e.identity)
	if err != nil {
		return FulfillLockResponse{}, err
	}

	e.metrics.LocksActive.Dec()
	e.metrics.LocksFulfilled.Inc()
	e.metrics.StateRootUpdates.Inc()
	e.log.Info("lock fulfilled", zap.String("lockId", fmt.Sprintf("%x", lockID)))

	return FulfillLockResponse{UserOperation: op, Commitment: commitment}, nil
}

// CancelLock lets the owner rage-quit a Pending or Active lock by signing a
// cancellation message over the lock ID. The enclave attests to
// the cancellation but performs no on-chain release itself.
func (e *Engine) CancelLock(lockID ccmtype.Hash, userSig ccmtype.Signature) (AppAttestation, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	lock, err := e.requireLock(lockID)
	if err != nil {
		return AppAttestation{}, err
	}
	if lock.Status != ccmtype.StatusPending && lock.Status != ccmtype.StatusActive {
		return AppAttestation{}, ccmerr.New(ccmerr.InvalidLockStatus,
			"lock %x is %s, cannot be cancelled", lockID, lock.Status)
	}

	digest := identity.HashCancellation(lockID)
	if !cryptoprim.VerifySignature(digest, userSig, lock.Owner) {
		return AppAttestation{}, ccmerr.New(ccmerr.InvalidSignature, "lock %x: cancellation signature does not recover to owner", lockID)
	}

	wasActive := lock.Status == ccmtype.StatusActive
	lock.Status = ccmtype.StatusCancelled
	if wasActive {
		e.index.RemoveLeaf(merkle.Hash(lockID))
		e.stateRoot = ccmtype.Hash(e.index.GetRoot())
		e.metrics.LocksActive.Dec()
		e.metrics.StateRootUpdates.Inc()
	}
	e.metrics.LocksCancelled.Inc()
	e.log.Info("lock cancelled", zap.String("lockId", fmt.Sprintf("%x", lockID)))

	now := e.clock.Now()
	dataHash := cryptoprim.Keccak256(lockID[:], cryptoprim.EncodeUint8(uint8(lock.Status)))
	sig, err := e.identity.Sign(dataHash)
	if err != nil {
		return AppAttestation{}, fmt.Errorf("commitment: sign cancellation attestation: %w", err)
	}

	return AppAttestation{
		EnclaveID: e.identity.EnclaveID(),
		Operation: "CANCEL",
		Timestamp: now,
		DataHash:  dataHash,
		Signature: sig,
	}, nil
}

// GetLock returns a copy of the lock with the given ID.
func (e *Engine) GetLock(lockID ccmtype.Hash) (ccmtype.ResourceLock, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	lock, ok := e.locks[lockID]
	if !ok {
		return ccmtype.ResourceLock{}, ccmerr.New(ccmerr.LockNotFound, "lock %x not found", lockID)
	}
	return *lock, nil
}

// GetActiveLocks returns a copy of every lock currently Active.
func (e *Engine) GetActiveLocks() []ccmtype.ResourceLock {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]ccmtype.ResourceLock, 0)
	for _, l := range e.locks {
		if l.Status == ccmtype.StatusActive {
			out = append(out, *l)
		}
	}
	return out
}

// GetLockedBalance returns the sum of Amount over owner's Active locks.
func (e *Engine) GetLockedBalance(owner ccmtype.Address) *big.Int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, sum := e.activeTotalsFor(owner)
	return sum
}

// GetStateRoot returns the current Merkle root over Active lock IDs.
func (e *Engine) GetStateRoot() ccmtype.Hash {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.stateRoot
}

// GetEnclavePublicKey returns the enclave's uncompressed public key.
func (e *Engine) GetEnclavePublicKey() []byte { return e.identity.PublicKey() }

// GetEnclaveID returns the enclave's random identifier.
func (e *Engine) GetEnclaveID() ccmtype.Bytes32 { return e.identity.EnclaveID() }

// GetBootAttestation returns the attestation generated once at construction.
func (e *Engine) GetBootAttestation() ccmtype.BootAttestation { return e.bootAttestation }

// CleanupExpiredLocks transitions every lock whose ExpiresAt has passed and
// that is still Pending or Active into Expired, removing Active ones from
// the Merkle index. It returns the number of locks transitioned.
func (e *Engine) CleanupExpiredLocks() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.Now()
	count := 0
	for _, lock := range e.locks {
		if lock.Status.IsTerminal() {
			continue
		}
		if now > lock.ExpiresAt {
			e.expireLocked(lock)
			count++
		}
	}
	return count
}

// expireLocked transitions lock to Expired and, if it was Active, removes it
// from the Merkle index and recomputes the state root. Caller must hold mu.
func (e *Engine) expireLocked(lock *ccmtype.ResourceLock) {
	wasActive := lock.Status == ccmtype.StatusActive
	lock.Status = ccmtype.StatusExpired
	if wasActive {
		e.index.RemoveLeaf(merkle.Hash(lock.ID))
		e.stateRoot = ccmtype.Hash(e.index.GetRoot())
		e.metrics.LocksActive.Dec()
		e.metrics.StateRootUpdates.Inc()
	}
	e.metrics.LocksExpired.Inc()
	e.log.Info("lock expired", zap.String("lockId", fmt.Sprintf("%x", lock.ID)))
}

// requireLock looks up a lock by ID or returns ccmerr.LockNotFound. Caller
// must hold mu.
func (e *Engine) requireLock(lockID ccmtype.Hash) (*ccmtype.ResourceLock, error) {
	lock, ok := e.locks[lockID]
	if !ok {
		return nil, ccmerr.New(ccmerr.LockNotFound, "lock %x not found", lockID)
	}
	return lock, nil
}

// activeTotalsFor returns owner's current Active lock count and amount sum.
// Caller must hold mu (read or write).
func (e *Engine) activeTotalsFor(owner ccmtype.Address) (int, *big.Int) {
	count := 0
	sum := new(big.Int)
	for _, l := range e.locks {
		if l.Owner == owner && l.Status == ccmtype.StatusActive {
			count++
			sum.Add(sum, l.Amount)
		}
	}
	return count, sum
}

// dailyVolumeAt returns the recorded volume for now's day bucket, or zero.
// Caller must hold mu.
func (e *Engine) dailyVolumeAt(now uint64) *big.Int {
	v, ok := e.dailyVolume[now/86400]
	if !ok {
		return new(big.Int)
	}
	return v
}

// nextNonce returns and records owner's next sequential nonce. Caller must
// hold mu.
func (e *Engine) nextNonce(owner ccmtype.Address) *big.Int {
	cur, ok := e.nonces[owner]
	if !ok {
		cur = new(big.Int)
	}
	next := new(big.Int).Add(cur, big.NewInt(1))
	e.nonces[owner] = next
	return next
}

// validateAsset enforces the Kind/Contract invariant and chain support.
func (e *Engine) validateAsset(a ccmtype.AssetIdentifier) error {
	if _, ok := e.cfg.SupportedChains[a.ChainID]; !ok {
		return ccmerr.New(ccmerr.UnsupportedChain, "chain %d is not supported", a.ChainID)
	}
	switch a.Kind {
	case ccmtype.AssetNative:
		if a.Contract != nil {
			return ccmerr.New(ccmerr.InvalidAsset, "native asset must not carry a contract address")
		}
	case ccmtype.AssetErc20, ccmtype.AssetErc721, ccmtype.AssetErc1155:
		if a.Contract == nil || a.Contract.IsZero() {
			return ccmerr.New(ccmerr.InvalidAsset, "asset kind %s requires a non-zero contract address", a.Kind)
		}
	default:
		return ccmerr.New(ccmerr.UnsupportedAssetKind, "unknown asset kind %d", a.Kind)
	}
	return nil
}

// buildCommitment constructs and co-signs a Commitment for lock's current
// stored fields. It does not mutate lock or the engine's index; callers
// update lock.CCMSig/Status/e.stateRoot themselves. Caller must hold mu.
func (e *Engine) buildCommitment(lock ccmtype.ResourceLock) (ccmtype.Commitment, ccmtype.Signature, error) {
	now := e.clock.Now()
	var userSigHash ccmtype.Hash
	if lock.UserSig != nil {
		userSigHash = cryptoprim.Keccak256(lock.UserSig[:])
	}

	commitment := ccmtype.Commitment{
		LockID:               lock.ID,
		ProtocolVersion:      1,
		SourceChainID:        lock.Asset.ChainID,
		SmartAccount:         lock.Owner,
		LockedAsset:          lock.Asset,
		LockedAmount:         lock.Amount,
		CreatedAt:            lock.LockedAt,
		ExpiresAt:            lock.ExpiresAt,
		SettlementDeadline:   lock.ExpiresAt + e.cfg.SettlementBuffer,
		FulfillmentCondition: lock.Fulfillment,
		Nonce:                lock.Nonce,
		StateRoot:            e.stateRoot,
		UserSignatureHash:    userSigHash,
	}

	lockDataHash := hashLockData(lock)
	commitmentHash := hashCommitmentDigest(e.identity.EnclaveID(), now, lockDataHash)
	sig, err := e.identity.Sign(commitmentHash)
	if err != nil {
		return ccmtype.Commitment{}, ccmtype.Signature{}, fmt.Errorf("commitment: sign commitment: %w", err)
	}

	commitment.CCMAttestation = ccmtype.CCMAttestation{
		EnclaveID:      e.identity.EnclaveID(),
		Timestamp:      now,
		CommitmentHash: commitmentHash,
		Signature:      sig,
	}
	return commitment, sig, nil
}

// hashLockData computes lockDataHash = keccak(abi.encode(lockId, owner,
// assetHash, amount, nonce, expiresAt, fulfillmentHash)), the identity of
// the reservation a commitment attests to.
func hashLockData(lock ccmtype.ResourceLock) ccmtype.Hash {
	assetHash := identity.HashAsset(lock.Asset)
	fulfillmentHash := identity.HashFulfillmentCondition(lock.Fulfillment)
	return cryptoprim.Keccak256(
		lock.ID[:],
		cryptoprim.EncodeAddress(lock.Owner),
		assetHash[:],
		cryptoprim.EncodeUint256(lock.Amount),
		cryptoprim.EncodeUint256(lock.Nonce),
		cryptoprim.EncodeUint64(lock.ExpiresAt),
		fulfillmentHash[:],
	)
}

// hashCommitmentDigest computes commitmentHash = keccak(abi.encode(enclaveId,
// timestamp, lockDataHash)) — the value the enclave actually signs, and the
// same value stored verbatim in CCMAttestation.CommitmentHash.
func hashCommitmentDigest(enclaveID ccmtype.Bytes32, timestamp uint64, lockDataHash ccmtype.Hash) ccmtype.Hash {
	return cryptoprim.Keccak256(
		enclaveID[:],
		cryptoprim.EncodeUint64(timestamp),
		lockDataHash[:],
	)
}
