package collector

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Gate spaces provider calls at a fixed interval. It is safe for concurrent
// use, so fetchers sharing one Gate share one rate budget.
type Gate struct {
	interval time.Duration
	lim      *rate.Limiter
	mu       sync.Mutex
}

// NewGate creates a gate that admits one call per interval. A non-positive
// interval disables throttling.
func NewGate(interval time.Duration) *Gate {
	if interval <= 0 {
		return &Gate{lim: rate.NewLimiter(rate.Inf, 1)}
	}
	return &Gate{interval: interval, lim: rate.NewLimiter(rate.Every(interval), 1)}
}

// Acquire blocks until the next call slot or until ctx is done. Every call
// waits a full interval after the previous slot or after now, whichever is
// later; a token refilled while the gate sat idle is discarded, so N calls
// span at least N intervals no matter how long the gate was unused.
func (g *Gate) Acquire(ctx context.Context) error {
	if g.interval <= 0 {
		return ctx.Err()
	}

	g.mu.Lock()
	now := time.Now()
	if g.lim.TokensAt(now) >= 1 {
		g.lim.AllowN(now, 1)
	}
	r := g.lim.ReserveN(now, 1)
	g.mu.Unlock()

	t := time.NewTimer(r.DelayFrom(now))
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		r.Cancel()
		return ctx.Err()
	}
}

// Interval returns the configured spacing.
func (g *Gate) Interval() time.Duration { return g.interval }
