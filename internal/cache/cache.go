// Package cache memoizes the dashboard read queries for a fixed TTL.
package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"ReversalFlow/internal/metrics"
	"ReversalFlow/internal/model"
	"ReversalFlow/internal/store"
)

// DefaultTTL matches the dashboard refresh cadence.
const DefaultTTL = 5 * time.Minute

// maxEntries bounds the number of distinct history queries kept.
const maxEntries = 256

// QueryCache wraps History, LatestSnapshot and LatestOversold of a store.
// Failed queries are not cached.
type QueryCache struct {
	src     store.Reader
	ttl     time.Duration
	Metrics *metrics.Metrics

	lru *expirable.LRU[string, []model.EnrichedBar]

	// gen advances on Invalidate; a load started under an older
	// generation is returned but not stored.
	mu  sync.Mutex
	gen uint64
}

// NewQueryCache creates a cache over src. A non-positive ttl uses DefaultTTL.
func NewQueryCache(src store.Reader, ttl time.Duration) *QueryCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &QueryCache{
		src: src,
		ttl: ttl,
		lru: expirable.NewLRU[string, []model.EnrichedBar](maxEntries, nil, ttl),
	}
}

// History returns the newest-first daily history of symbol.
func (c *QueryCache) History(ctx context.Context, symbol string, limit int) ([]model.EnrichedBar, error) {
	key := fmt.Sprintf("history:%s:%d", symbol, limit)
	return c.get(ctx, "history", key, func(ctx context.Context) ([]model.EnrichedBar, error) {
		return c.src.History(ctx, symbol, model.TimeframeDaily, limit)
	})
}

// LatestSnapshot returns the latest daily bar of every symbol.
func (c *QueryCache) LatestSnapshot(ctx context.Context) ([]model.EnrichedBar, error) {
	return c.get(ctx, "snapshot", "snapshot", func(ctx context.Context) ([]model.EnrichedBar, error) {
		return c.src.LatestSnapshot(ctx, model.TimeframeDaily)
	})
}

// LatestOversold returns the latest oversold daily bars.
func (c *QueryCache) LatestOversold(ctx context.Context) ([]model.EnrichedBar, error) {
	return c.get(ctx, "oversold", "oversold", func(ctx context.Context) ([]model.EnrichedBar, error) {
		return c.src.LatestOversold(ctx, model.TimeframeDaily)
	})
}

// Invalidate drops every cached result, including loads still in flight.
func (c *QueryCache) Invalidate() {
	c.mu.Lock()
	c.gen++
	c.lru.Purge()
	c.mu.Unlock()
}

func (c *QueryCache) get(ctx context.Context, query, key string, load func(context.Context) ([]model.EnrichedBar, error)) ([]model.EnrichedBar, error) {
	if bars, ok := c.lru.Get(key); ok {
		c.Metrics.ObserveCache(query, true)
		return bars, nil
	}
	c.Metrics.ObserveCache(query, false)

	c.mu.Lock()
	gen := c.gen
	c.mu.Unlock()

	bars, err := load(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if gen == c.gen {
		c.lru.Add(key, bars)
	}
	c.mu.Unlock()
	return bars, nil
}
