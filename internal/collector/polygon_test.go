package collector

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ReversalFlow/internal/model"
)

func newTestFetcher(t *testing.T, handler http.HandlerFunc) *PolygonFetcher {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	f := NewPolygonFetcher(srv.URL, "test-key", "", nil)
	f.now = func() time.Time { return time.Date(2024, 4, 10, 15, 30, 0, 0, time.UTC) }
	return f
}

func TestPolygonFetcher_RequestAndNormalize(t *testing.T) {
	var gotPath string
	var gotQuery map[string]string
	f := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		q := r.URL.Query()
		gotQuery = map[string]string{"adjusted": q.Get("adjusted"), "sort": q.Get("sort"), "apikey": q.Get("apikey")}
		w.Header().Set("Content-Type", "application/json")
		// Deliberately out of order
		w.Write([]byte(`{"status":"OK","ticker":"AAPL","results":[
			{"t":1712203200000,"o":170.1,"h":171.5,"l":169.8,"c":171.0,"v":51234567},
			{"t":1712116800000,"o":168.0,"h":170.2,"l":167.5,"c":169.9,"v":4.5e7}
		]}`))
	})

	bars, err := f.FetchDailyBars(context.Background(), "AAPL", 100)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}

	if want := "/v2/aggs/ticker/AAPL/range/1/day/2024-01-01/2024-04-10"; gotPath != want {
		t.Errorf("path: got %s, want %s", gotPath, want)
	}
	if gotQuery["adjusted"] != "true" || gotQuery["sort"] != "asc" || gotQuery["apikey"] != "test-key" {
		t.Errorf("query: %v", gotQuery)
	}

	if len(bars) != 2 {
		t.Fatalf("expected 2 bars, got %d", len(bars))
	}
	first := bars[0]
	if !first.Time.Equal(time.UnixMilli(1712116800000)) || first.Time.Location() != time.UTC {
		t.Errorf("first bar time: %v", first.Time)
	}
	if !bars[0].Time.Before(bars[1].Time) {
		t.Error("bars not ascending")
	}
	if first.Symbol != "AAPL" || first.Timeframe != model.TimeframeDaily {
		t.Errorf("identity: %s %s", first.Symbol, first.Timeframe)
	}
	if first.Open != 168.0 || first.High != 170.2 || first.Low != 167.5 || first.Close != 169.9 || first.Volume != 45000000 {
		t.Errorf("ohlcv: %+v", first.OHLCV)
	}
	if bars[1].Volume != 51234567 {
		t.Errorf("volume: %d", bars[1].Volume)
	}
}

func TestPolygonFetcher_Failures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"bad status", http.StatusInternalServerError, `{"error":"boom"}`, ErrProviderStatus},
		{"unauthorized", http.StatusUnauthorized, `{"status":"ERROR"}`, ErrProviderStatus},
		{"missing results", http.StatusOK, `{"status":"OK","ticker":"ZZZ"}`, ErrMissingResults},
		{"empty results", http.StatusOK, `{"status":"OK","results":[]}`, ErrNoData},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})
			bars, err := f.FetchDailyBars(context.Background(), "ZZZ", 100)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("got %v, want %v", err, tt.wantErr)
			}
			if bars != nil {
				t.Errorf("expected no bars on failure, got %d", len(bars))
			}
		})
	}
}

func TestPolygonFetcher_Undecodable(t *testing.T) {
	f := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	})
	if _, err := f.FetchDailyBars(context.Background(), "AAPL", 100); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestPolygonFetcher_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	f := NewPolygonFetcher(url, "k", "", nil)
	_, err := f.FetchDailyBars(context.Background(), "AAPL", 100)
	if err == nil {
		t.Fatal("expected transport error")
	}
	if got := FailureReason(err); got != "transport" {
		t.Errorf("reason: got %q, want transport", got)
	}
}

func TestFailureReason(t *testing.T) {
	tests := map[string]error{
		"":                nil,
		"status":          ErrProviderStatus,
		"missing_results": ErrMissingResults,
		"no_data":         ErrNoData,
		"canceled":        context.Canceled,
	}
	for want, err := range tests {
		if got := FailureReason(err); got != want {
			t.Errorf("%v: got %q, want %q", err, got, want)
		}
	}
}
