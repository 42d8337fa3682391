package calculator

import (
	"errors"
	"math"

	"ReversalFlow/internal/model"
)

// CalculateSMA computes the simple moving average of the last `period` prices.
func CalculateSMA(prices []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.New("period must be positive")
	}
	if len(prices) < period {
		return 0, errors.New("not enough data for SMA calculation")
	}
	sum := 0.0
	for i := len(prices) - period; i < len(prices); i++ {
		sum += prices[i]
	}
	return sum / float64(period), nil
}

// CalculateSMASeries returns the trailing SMA at every index.
// The first period-1 entries are NaN.
func CalculateSMASeries(prices []float64, period int) ([]float64, error) {
	if period <= 0 {
		return nil, errors.New("period must be positive")
	}
	out := nanSeries(len(prices))
	for i := period - 1; i < len(prices); i++ {
		v, err := CalculateSMA(prices[:i+1], period)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// ExtractCloses returns the closing prices of bars in order.
func ExtractCloses(bars []model.Bar) []float64 {
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	return closes
}

func nanSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
