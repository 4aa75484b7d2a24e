package commitment

import (
	"math/big"

	"github.com/credible-commitment/ccm-core/internal/ccmerr"
	"github.com/credible-commitment/ccm-core/internal/ccmtype"
)

// riskGate enforces the "conservation of risk" invariant: concurrent
// lock count and total locked amount per account, and the engine-wide
// daily volume, never exceed configured limits. Its check-before-mutate shape mirrors a
// CircuitBreaker.CanTrade style guard, generalized from connection/
// staleness health to lock-count/amount accounting.
type riskGate struct {
	limits ccmtype.RiskLimits
}

func newRiskGate(limits ccmtype.RiskLimits) *riskGate {
	return &riskGate{limits: limits}
}

// checkCreate validates a prospective new lock of size amount against the
// owner's current active-lock count, active-lock sum, and the day's
// cumulative volume so far. It mutates nothing — the caller decides whether
// and when to record usage.
func (g *riskGate) checkCreate(activeCount int, activeSum, amount, dailyVolume *big.Int) error {
	if activeCount >= g.limits.MaxConcurrentLocks {
		return ccmerr.NewWithReason(ccmerr.RiskLimitExceeded, ccmerr.ReasonConcurrent,
			"active lock count %d would reach the limit of %d", activeCount+1, g.limits.MaxConcurrentLocks)
	}

	projectedTotal := new(big.Int).Add(activeSum, amount)
	if projectedTotal.Cmp(g.limits.MaxTotalLockedPerAccount) > 0 {
		return ccmerr.NewWithReason(ccmerr.RiskLimitExceeded, ccmerr.ReasonAccount,
			"projected account total %s exceeds limit %s", projectedTotal, g.limits.MaxTotalLockedPerAccount)
	}

	projectedDaily := new(big.Int).Add(dailyVolume, amount)
	if projectedDaily.Cmp(g.limits.MaxDailyVolume) > 0 {
		return ccmerr.NewWithReason(ccmerr.RiskLimitExceeded, ccmerr.ReasonDaily,
			"projected daily volume %s exceeds limit %s", projectedDaily, g.limits.MaxDailyVolume)
	}

	return nil
}
