package metrics

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilReceiverSafe(t *testing.T) {
	var m *Metrics
	m.ObserveFetch(time.Second, "status")
	m.ObserveStore(time.Second, 10, nil)
	m.ObserveOutcome(true)
	m.ObserveRun(3)
	m.ObserveCache("snapshot", true)
	if m.Handler() == nil {
		t.Fatal("expected a handler from nil metrics")
	}
}

func TestObserve(t *testing.T) {
	m := NewMetrics()

	m.ObserveOutcome(true)
	m.ObserveOutcome(true)
	m.ObserveOutcome(false)
	if got := testutil.ToFloat64(m.SymbolsTotal.WithLabelValues("success")); got != 2 {
		t.Errorf("success count: got %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.SymbolsTotal.WithLabelValues("failure")); got != 1 {
		t.Errorf("failure count: got %v, want 1", got)
	}

	m.ObserveFetch(time.Millisecond, "")
	m.ObserveFetch(time.Millisecond, "no_data")
	if got := testutil.ToFloat64(m.FetchErrors.WithLabelValues("no_data")); got != 1 {
		t.Errorf("no_data count: got %v, want 1", got)
	}

	m.ObserveStore(time.Millisecond, 70, nil)
	m.ObserveStore(time.Millisecond, 50, errors.New("disk full"))
	if got := testutil.ToFloat64(m.BarsStored); got != 70 {
		t.Errorf("bars stored: got %v, want 70", got)
	}

	m.ObserveRun(4)
	if got := testutil.ToFloat64(m.OversoldLast); got != 4 {
		t.Errorf("oversold gauge: got %v, want 4", got)
	}
	if testutil.ToFloat64(m.LastRunUnix) == 0 {
		t.Error("expected last run timestamp to be set")
	}

	m.ObserveCache("oversold", false)
	m.ObserveCache("oversold", true)
	if got := testutil.ToFloat64(m.CacheRequests.WithLabelValues("oversold", "hit")); got != 1 {
		t.Errorf("cache hits: got %v, want 1", got)
	}
}

func TestHandler(t *testing.T) {
	m := NewMetrics()
	m.ObserveOutcome(true)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 200 {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "reversal_symbols_collected_total") {
		t.Error("expected collector counter in exposition output")
	}
}
