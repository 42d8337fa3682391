package collector

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"ReversalFlow/internal/metrics"
	"ReversalFlow/internal/model"
	"ReversalFlow/internal/store"
	"ReversalFlow/internal/strategy"
)

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "stocks.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// reversalBars rises for 20 sessions then falls 12% over the last 10.
func reversalBars(symbol string) []model.Bar {
	start := time.Date(2024, 1, 2, 5, 0, 0, 0, time.UTC)
	bars := make([]model.Bar, 30)
	peak := 100 + 0.2*19
	for i := range bars {
		c := 100 + 0.2*float64(i)
		if i >= 20 {
			c = peak * (1 - 0.012*float64(i-19))
		}
		bars[i] = model.Bar{
			Symbol:    symbol,
			Time:      start.AddDate(0, 0, i),
			Timeframe: model.TimeframeDaily,
			OHLCV:     model.OHLCV{Open: c, High: c, Low: c, Close: c, Volume: 1000},
		}
	}
	return bars
}

func TestCollectSymbol_EndToEndOversold(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	fetcher := &MockFetcher{Bars: map[string][]model.Bar{"TEST": reversalBars("TEST")}}
	c := NewCollector(fetcher, st, strategy.NewEngine(strategy.DefaultParams()), []string{"TEST"}, 0)

	if c.LookbackDays != DefaultLookbackDays {
		t.Errorf("lookback default: %d", c.LookbackDays)
	}
	if err := c.CollectSymbol(ctx, "TEST"); err != nil {
		t.Fatalf("collect: %v", err)
	}

	over, err := st.LatestOversold(ctx, model.TimeframeDaily)
	if err != nil {
		t.Fatal(err)
	}
	if len(over) != 1 || over[0].Symbol != "TEST" || !over[0].Oversold() {
		t.Fatalf("expected TEST in oversold set, got %+v", over)
	}

	stale, _ := st.SymbolsNeedingRefresh(ctx, []string{"TEST"}, 1)
	if len(stale) != 0 {
		t.Errorf("TEST should be marked fresh, got %v", stale)
	}
}

func TestCollectSymbol_FetchFailureKeepsRows(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	fetcher := &MockFetcher{Bars: map[string][]model.Bar{"ZZZ": reversalBars("ZZZ")}}
	c := NewCollector(fetcher, st, strategy.NewEngine(strategy.DefaultParams()), nil, 100)

	if err := c.CollectSymbol(ctx, "ZZZ"); err != nil {
		t.Fatal(err)
	}

	fetcher.Errors = map[string]error{"ZZZ": ErrNoData}
	err := c.CollectSymbol(ctx, "ZZZ")
	if !errors.Is(err, ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}

	rows, _ := st.History(ctx, "ZZZ", model.TimeframeDaily, 0)
	if len(rows) != 30 {
		t.Errorf("prior rows should be untouched, got %d", len(rows))
	}
}

func TestCollectAll_ContinuesPastFailures(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	fetcher := &MockFetcher{
		Price:  50,
		Errors: map[string]error{"BAD": ErrProviderStatus},
	}
	m := metrics.NewMetrics()
	c := NewCollector(fetcher, st, strategy.NewEngine(strategy.DefaultParams()), []string{"AAA", "BAD", "CCC"}, 60)
	c.Metrics = m

	results := c.CollectAll(ctx, nil)
	if len(results) != 3 {
		t.Fatalf("expected 3 outcomes, got %d", len(results))
	}
	if results.Succeeded() != 2 {
		t.Errorf("succeeded: %d", results.Succeeded())
	}
	if !reflect.DeepEqual(results.Failed(), []string{"BAD"}) {
		t.Errorf("failed: %v", results.Failed())
	}
	if want := map[string]bool{"AAA": true, "BAD": false, "CCC": true}; !reflect.DeepEqual(results.Map(), want) {
		t.Errorf("map: %v", results.Map())
	}
	if results[0].Bars != 60 {
		t.Errorf("AAA bars: %d", results[0].Bars)
	}
	if fetcher.Calls("CCC") != 1 {
		t.Error("CCC should be fetched after BAD fails")
	}

	if got := testutil.ToFloat64(m.SymbolsTotal.WithLabelValues("failure")); got != 1 {
		t.Errorf("failure metric: %v", got)
	}
	if got := testutil.ToFloat64(m.FetchErrors.WithLabelValues("status")); got != 1 {
		t.Errorf("status error metric: %v", got)
	}
	if got := testutil.ToFloat64(m.BarsStored); got != 120 {
		t.Errorf("bars stored metric: %v", got)
	}
}

func TestCollectAll_ExplicitSymbols(t *testing.T) {
	st := newTestStore(t)
	fetcher := &MockFetcher{}
	c := NewCollector(fetcher, st, strategy.NewEngine(strategy.DefaultParams()), []string{"AAA", "BBB"}, 30)

	results := c.CollectAll(context.Background(), []string{"BBB"})
	if len(results) != 1 || results[0].Symbol != "BBB" {
		t.Fatalf("expected only BBB, got %+v", results)
	}
	if fetcher.Calls("AAA") != 0 {
		t.Error("AAA should not be fetched")
	}
}

func TestUpdateStale(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	st := newTestStore(t).WithClock(func() time.Time { return now })
	fetcher := &MockFetcher{}
	c := NewCollector(fetcher, st, strategy.NewEngine(strategy.DefaultParams()), []string{"AAA", "BBB"}, 30)

	if err := st.MarkUpdated(ctx, "AAA"); err != nil {
		t.Fatal(err)
	}

	results, err := c.UpdateStale(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Symbol != "BBB" || !results[0].OK() {
		t.Fatalf("expected only BBB refreshed, got %+v", results)
	}

	results, err = c.UpdateStale(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if results == nil || len(results) != 0 {
		t.Errorf("expected empty results when fresh, got %+v", results)
	}
	if fetcher.Calls("AAA") != 0 || fetcher.Calls("BBB") != 1 {
		t.Errorf("calls: AAA=%d BBB=%d", fetcher.Calls("AAA"), fetcher.Calls("BBB"))
	}

	now = now.Add(2 * time.Hour)
	results, _ = c.UpdateStale(ctx, 1)
	if len(results) != 2 {
		t.Errorf("expected both stale after 2h, got %+v", results)
	}
}

type failingStore struct{ *store.SQLiteStore }

func (failingStore) ReplaceBars(context.Context, []model.EnrichedBar) error {
	return errors.New("disk full")
}

func TestCollectSymbol_StoreFailure(t *testing.T) {
	fs := failingStore{newTestStore(t)}
	c := NewCollector(&MockFetcher{}, fs, strategy.NewEngine(strategy.DefaultParams()), nil, 30)

	err := c.CollectSymbol(context.Background(), "AAA")
	if err == nil {
		t.Fatal("expected store error")
	}
	stale, _ := fs.SymbolsNeedingRefresh(context.Background(), []string{"AAA"}, 1)
	if len(stale) != 1 {
		t.Error("marker should not be written when the replace fails")
	}
}
