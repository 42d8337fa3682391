package collector

import (
	"context"
	"fmt"
	"log"
	"time"

	"ReversalFlow/internal/metrics"
	"ReversalFlow/internal/model"
	"ReversalFlow/internal/strategy"
)

// DefaultLookbackDays is the calendar window re-fetched on every collection.
const DefaultLookbackDays = 100

// Store is the persistence the collector writes through.
type Store interface {
	ReplaceBars(ctx context.Context, bars []model.EnrichedBar) error
	MarkUpdated(ctx context.Context, symbol string) error
	SymbolsNeedingRefresh(ctx context.Context, watchlist []string, hours float64) ([]string, error)
}

// Outcome is the result of collecting one symbol.
type Outcome struct {
	Symbol   string
	Bars     int
	Oversold bool // latest stored bar is flagged oversold
	Err      error
}

// OK reports whether the symbol was fetched and stored.
func (o Outcome) OK() bool { return o.Err == nil }

// Results holds per-symbol outcomes in collection order.
type Results []Outcome

// Map returns symbol -> success.
func (r Results) Map() map[string]bool {
	m := make(map[string]bool, len(r))
	for _, o := range r {
		m[o.Symbol] = o.OK()
	}
	return m
}

// Succeeded counts successful symbols.
func (r Results) Succeeded() int {
	n := 0
	for _, o := range r {
		if o.OK() {
			n++
		}
	}
	return n
}

// Failed lists failed symbols in collection order.
func (r Results) Failed() []string {
	var failed []string
	for _, o := range r {
		if !o.OK() {
			failed = append(failed, o.Symbol)
		}
	}
	return failed
}

// Collector drives fetch -> enrich -> store for a watchlist.
type Collector struct {
	Fetcher      Fetcher
	Store        Store
	Engine       *strategy.Engine
	Watchlist    []string
	LookbackDays int
	Metrics      *metrics.Metrics
}

// NewCollector creates a new Collector.
func NewCollector(fetcher Fetcher, store Store, engine *strategy.Engine, watchlist []string, lookbackDays int) *Collector {
	if lookbackDays <= 0 {
		lookbackDays = DefaultLookbackDays
	}
	return &Collector{
		Fetcher:      fetcher,
		Store:        store,
		Engine:       engine,
		Watchlist:    watchlist,
		LookbackDays: lookbackDays,
	}
}

// CollectSymbol fetches, enriches and stores one symbol. On fetch failure
// the stored rows for the symbol are left untouched.
func (c *Collector) CollectSymbol(ctx context.Context, symbol string) error {
	return c.collect(ctx, symbol).Err
}

func (c *Collector) collect(ctx context.Context, symbol string) Outcome {
	log.Printf("[INFO] collecting data for %s", symbol)
	out := Outcome{Symbol: symbol}

	start := time.Now()
	bars, err := c.Fetcher.FetchDailyBars(ctx, symbol, c.LookbackDays)
	c.Metrics.ObserveFetch(time.Since(start), FailureReason(err))
	if err != nil {
		log.Printf("[WARN] no data retrieved for %s: %v", symbol, err)
		out.Err = fmt.Errorf("fetch: %w", err)
		c.Metrics.ObserveOutcome(false)
		return out
	}

	enriched := c.Engine.Enrich(bars)

	start = time.Now()
	err = c.Store.ReplaceBars(ctx, enriched)
	if err == nil {
		err = c.Store.MarkUpdated(ctx, symbol)
	}
	c.Metrics.ObserveStore(time.Since(start), len(enriched), err)
	if err != nil {
		log.Printf("[ERROR] storing data for %s: %v", symbol, err)
		out.Err = fmt.Errorf("store: %w", err)
		c.Metrics.ObserveOutcome(false)
		return out
	}

	out.Bars = len(enriched)
	if len(enriched) > 0 {
		out.Oversold = enriched[len(enriched)-1].Oversold()
	}
	c.Metrics.ObserveOutcome(true)
	log.Printf("[INFO] stored %d records for %s", len(enriched), symbol)
	return out
}

// CollectAll collects symbols sequentially; an empty list means the whole
// watchlist. A failing symbol never stops the batch.
func (c *Collector) CollectAll(ctx context.Context, symbols []string) Results {
	if len(symbols) == 0 {
		symbols = c.Watchlist
	}
	results := make(Results, 0, len(symbols))
	oversold := 0
	for _, symbol := range symbols {
		o := c.collect(ctx, symbol)
		if o.Oversold {
			oversold++
		}
		results = append(results, o)
	}
	c.Metrics.ObserveRun(oversold)
	return results
}

// UpdateStale collects only the watchlist symbols whose marker is missing or
// older than hours. Returns empty Results when everything is fresh.
func (c *Collector) UpdateStale(ctx context.Context, hours float64) (Results, error) {
	stale, err := c.Store.SymbolsNeedingRefresh(ctx, c.Watchlist, hours)
	if err != nil {
		return nil, fmt.Errorf("symbols needing refresh: %w", err)
	}
	if len(stale) == 0 {
		log.Println("[INFO] all data is up to date")
		return Results{}, nil
	}
	log.Printf("[INFO] updating %d stale symbols: %v", len(stale), stale)
	return c.CollectAll(ctx, stale), nil
}
