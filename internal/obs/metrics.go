package obs

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every Prometheus collector the commitment engine and RPC
// shim update, grouped by domain area following luxfi-adx's pkg/metric
// field grouping (auction/DA/network/security sections there; lock
// lifecycle/risk/state-root sections here).
type Metrics struct {
	registry *prometheus.Registry

	LocksCreatedTotal  prometheus.Counter
	LocksActive        prometheus.Gauge
	LocksFulfilled      prometheus.Counter
	LocksCancelled      prometheus.Counter
	LocksExpired        prometheus.Counter
	RiskRejectionsTotal *prometheus.CounterVec
	StateRootUpdates    prometheus.Counter
}

// NewMetrics registers and returns a fresh Metrics instance on its own
// registry, so tests can construct independent instances without clashing
// on prometheus.DefaultRegisterer.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		LocksCreatedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ccm_locks_created_total",
			Help: "Total number of resource locks created.",
		}),
		LocksActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ccm_locks_active",
			Help: "Current number of active resource locks.",
		}),
		LocksFulfilled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ccm_locks_fulfilled_total",
			Help: "Total number of locks transitioned to fulfilled.",
		}),
		LocksCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ccm_locks_cancelled_total",
			Help: "Total number of locks rage-quit by their owner.",
		}),
		LocksExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ccm_locks_expired_total",
			Help: "Total number of locks swept as expired.",
		}),
		RiskRejectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ccm_risk_rejections_total",
			Help: "Total number of lock creations rejected by a risk limit, by reason.",
		}, []string{"reason"}),
		StateRootUpdates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ccm_state_root_updates_total",
			Help: "Total number of times the Merkle state root changed.",
		}),
	}

	reg.MustRegister(
		m.LocksCreatedTotal,
		m.LocksActive,
		m.LocksFulfilled,
		m.LocksCancelled,
		m.LocksExpired,
		m.RiskRejectionsTotal,
		m.StateRootUpdates,
	)
	return m
}

// Registry returns the prometheus registry these metrics are registered on,
// for exposition via an HTTP handler.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }
