package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/go-resty/resty/v2"

	"ReversalFlow/internal/model"
)

const (
	// DefaultBaseURL is the Polygon REST endpoint.
	DefaultBaseURL = "https://api.polygon.io"

	aggsPath   = "/v2/aggs/ticker/{symbol}/range/1/day/{start}/{end}"
	dateLayout = "2006-01-02"
)

// PolygonFetcher implements Fetcher using the Polygon aggregates API.
type PolygonFetcher struct {
	APIKey string
	Client *resty.Client
	Gate   *Gate

	now func() time.Time
}

// NewPolygonFetcher creates a fetcher with optional proxy support.
// gate may be shared with other fetchers; nil disables throttling.
func NewPolygonFetcher(baseURL, apiKey, proxyURL string, gate *Gate) *PolygonFetcher {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if gate == nil {
		gate = NewGate(0)
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(30 * time.Second)
	if proxyURL != "" {
		client.SetProxy(proxyURL)
	}
	return &PolygonFetcher{
		APIKey: apiKey,
		Client: client,
		Gate:   gate,
		now:    time.Now,
	}
}

func (f *PolygonFetcher) Name() string { return "polygon" }

// aggsResponse is the expected JSON shape of the aggregates endpoint.
// Results is a pointer so a missing field is distinguishable from an empty one.
type aggsResponse struct {
	Status    string     `json:"status"`
	Ticker    string     `json:"ticker"`
	Results   *[]aggsBar `json:"results"`
	ErrorText string     `json:"error"`
}

type aggsBar struct {
	Timestamp int64   `json:"t"`
	Open      float64 `json:"o"`
	High      float64 `json:"h"`
	Low       float64 `json:"l"`
	Close     float64 `json:"c"`
	Volume    float64 `json:"v"`
}

// FetchDailyBars fetches `days` calendar days of daily bars ending today.
// One gated network call; no retries.
func (f *PolygonFetcher) FetchDailyBars(ctx context.Context, symbol string, days int) ([]model.Bar, error) {
	if err := f.Gate.Acquire(ctx); err != nil {
		return nil, fmt.Errorf("rate gate: %w", err)
	}

	end := f.now().UTC()
	start := end.AddDate(0, 0, -days)

	resp, err := f.Client.R().
		SetContext(ctx).
		SetPathParams(map[string]string{
			"symbol": symbol,
			"start":  start.Format(dateLayout),
			"end":    end.Format(dateLayout),
		}).
		SetQueryParams(map[string]string{
			"adjusted": "true",
			"sort":     "asc",
			"apikey":   f.APIKey,
		}).
		Get(aggsPath)
	if err != nil {
		return nil, fmt.Errorf("polygon fetch %s: %w", symbol, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("polygon fetch %s: %w: status %d, body: %s",
			symbol, ErrProviderStatus, resp.StatusCode(), resp.String())
	}

	var payload aggsResponse
	if err := json.Unmarshal(resp.Body(), &payload); err != nil {
		return nil, fmt.Errorf("polygon decode %s: %w", symbol, err)
	}
	if payload.Results == nil {
		return nil, fmt.Errorf("polygon fetch %s: %w", symbol, ErrMissingResults)
	}
	if len(*payload.Results) == 0 {
		return nil, fmt.Errorf("polygon fetch %s: %w", symbol, ErrNoData)
	}

	bars := make([]model.Bar, len(*payload.Results))
	for i, ab := range *payload.Results {
		bars[i] = model.Bar{
			Symbol:    symbol,
			Time:      time.UnixMilli(ab.Timestamp).UTC(),
			Timeframe: model.TimeframeDaily,
			OHLCV: model.OHLCV{
				Open:   ab.Open,
				High:   ab.High,
				Low:    ab.Low,
				Close:  ab.Close,
				Volume: int64(ab.Volume),
			},
		}
	}
	// Ensure chronological order
	sort.Slice(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
	return bars, nil
}
