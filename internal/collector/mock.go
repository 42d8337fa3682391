package collector

import (
	"context"
	"sync"
	"time"

	"ReversalFlow/internal/model"
)

// MockFetcher returns controllable fixed data for development and testing.
// Symbols with an entry in Errors fail; symbols with an entry in Bars return
// those bars; any other symbol gets generated bars around Price.
type MockFetcher struct {
	Price  float64
	Bars   map[string][]model.Bar
	Errors map[string]error

	mu    sync.Mutex
	calls map[string]int
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) FetchDailyBars(_ context.Context, symbol string, days int) ([]model.Bar, error) {
	m.mu.Lock()
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[symbol]++
	m.mu.Unlock()

	if err, ok := m.Errors[symbol]; ok {
		return nil, err
	}
	if bars, ok := m.Bars[symbol]; ok {
		return bars, nil
	}
	return generateMockBars(symbol, m.Price, days), nil
}

// Calls returns how many times symbol was fetched.
func (m *MockFetcher) Calls(symbol string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[symbol]
}

func generateMockBars(symbol string, basePrice float64, count int) []model.Bar {
	if basePrice <= 0 {
		basePrice = 100
	}
	today := time.Now().UTC().Truncate(24 * time.Hour)
	bars := make([]model.Bar, count)
	for i := 0; i < count; i++ {
		p := basePrice * (1 + float64(i-count/2)*0.001)
		bars[i] = model.Bar{
			Symbol:    symbol,
			Time:      today.AddDate(0, 0, -(count - i)),
			Timeframe: model.TimeframeDaily,
			OHLCV: model.OHLCV{
				Open:   p * 0.999,
				High:   p * 1.005,
				Low:    p * 0.995,
				Close:  p,
				Volume: 1000000,
			},
		}
	}
	return bars
}
