package calculator

import "errors"

// CalculatePctChange returns (p[t]-p[t-n])/p[t-n]*100 at every index.
// The first n entries are NaN; a zero base yields ±Inf or NaN.
func CalculatePctChange(prices []float64, n int) ([]float64, error) {
	if n <= 0 {
		return nil, errors.New("period must be positive")
	}
	out := nanSeries(len(prices))
	for i := n; i < len(prices); i++ {
		base := prices[i-n]
		out[i] = (prices[i] - base) / base * 100
	}
	return out, nil
}
