package model

import (
	"time"

	"github.com/guregu/null/v6"
)

// Timeframe tags the bar interval. Only daily bars are collected.
type Timeframe string

const TimeframeDaily Timeframe = "daily"

// DateTimeLayout is the storage format of bar timestamps (UTC).
const DateTimeLayout = "2006-01-02 15:04:05"

// OHLCV represents a single candlestick bar.
type OHLCV struct {
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume int64   `json:"volume"`
}

// Bar is one OHLCV record keyed by (Symbol, Time, Timeframe).
type Bar struct {
	Symbol    string    `json:"symbol"`
	Time      time.Time `json:"datetime"`
	Timeframe Timeframe `json:"timeframe"`
	OHLCV
}

// EnrichedBar is a Bar with the derived indicator fields attached.
// A field is invalid (null) when there was not enough history to compute it.
type EnrichedBar struct {
	Bar
	RSI          null.Float `json:"rsi"`
	SMA          null.Float `json:"sma_20"`
	PctChange5d  null.Float `json:"pct_change_5d"`
	PctChange10d null.Float `json:"pct_change_10d"`
	IsOversold   null.Bool  `json:"is_oversold"`
}

// Oversold reports whether the bar was flagged oversold.
func (b EnrichedBar) Oversold() bool {
	return b.IsOversold.Valid && b.IsOversold.Bool
}
