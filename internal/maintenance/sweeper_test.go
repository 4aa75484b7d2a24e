package maintenance

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

type countingCleaner struct {
	calls int32
	n     int
}

func (c *countingCleaner) CleanupExpiredLocks() int {
	atomic.AddInt32(&c.calls, 1)
	return c.n
}

func TestSweeperRunsUntilCancelled(t *testing.T) {
	cleaner := &countingCleaner{n: 1}
	sweeper := NewSweeper(cleaner, 5*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sweeper.Run(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Sweeper.Run did not return after cancellation")
	}

	if atomic.LoadInt32(&cleaner.calls) == 0 {
		t.Error("expected at least one sweep to run")
	}
}
