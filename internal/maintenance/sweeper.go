// Package maintenance runs the periodic background sweep that expires
// stale locks, following a circuit-breaker-style Run(ctx) shape: a single
// goroutine driven by a ticker, blocking until its context is cancelled.
package maintenance

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Cleaner is satisfied by *commitment.Engine.
type Cleaner interface {
	CleanupExpiredLocks() int
}

// Sweeper periodically calls Cleaner.CleanupExpiredLocks.
type Sweeper struct {
	cleaner  Cleaner
	interval time.Duration
	log      *zap.Logger
}

// NewSweeper creates a Sweeper that cleans up every interval. A nil log
// defaults to a no-op logger.
func NewSweeper(cleaner Cleaner, interval time.Duration, log *zap.Logger) *Sweeper {
	if log == nil {
		log = zap.NewNop()
	}
	return &Sweeper{cleaner: cleaner, interval: interval, log: log}
}

// Run blocks, sweeping every interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.cleaner.CleanupExpiredLocks(); n > 0 {
				s.log.Info("swept expired locks", zap.Int("count", n))
			}
		}
	}
}
