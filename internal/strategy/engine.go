package strategy

import (
	"log"
	"sort"

	"ReversalFlow/internal/calculator"
	"ReversalFlow/internal/model"
)

// shortChangeDays is the window of the pct_change_5d column.
const shortChangeDays = 5

// Params holds the indicator windows and classification thresholds.
type Params struct {
	RSIPeriod           int
	SMAPeriod           int
	OversoldThreshold   float64
	OverboughtThreshold float64
	MinDeclinePercent   float64
	DeclineLookbackDays int
}

// DefaultParams returns RSI(14), SMA(20), oversold 30, overbought 70 and a 10% decline over 10 days.
func DefaultParams() Params {
	return Params{
		RSIPeriod:           14,
		SMAPeriod:           20,
		OversoldThreshold:   30,
		OverboughtThreshold: 70,
		MinDeclinePercent:   10,
		DeclineLookbackDays: 10,
	}
}

// MinBars is the shortest series that gets derived fields.
func (p Params) MinBars() int {
	if p.RSIPeriod > p.SMAPeriod {
		return p.RSIPeriod
	}
	return p.SMAPeriod
}

// Engine annotates bar series with indicators and the oversold flag.
type Engine struct {
	params Params
}

// NewEngine creates an Engine with the given parameters.
func NewEngine(params Params) *Engine {
	return &Engine{params: params}
}

// Params returns the engine parameters.
func (e *Engine) Params() Params { return e.params }

// Enrich returns bars sorted ascending by time with RSI, SMA, percentage
// changes and is_oversold attached. Series shorter than MinBars come back
// without derived fields. Enrich never fails; undefined values are null.
func (e *Engine) Enrich(bars []model.Bar) []model.EnrichedBar {
	sorted := make([]model.Bar, len(bars))
	copy(sorted, bars)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Time.Before(sorted[j].Time) })

	out := make([]model.EnrichedBar, len(sorted))
	for i, b := range sorted {
		out[i] = model.EnrichedBar{Bar: b}
	}
	if len(sorted) == 0 || len(sorted) < e.params.MinBars() {
		return out
	}

	closes := calculator.ExtractCloses(sorted)
	rsi, err := calculator.CalculateRSI(closes, e.params.RSIPeriod)
	if err != nil {
		log.Printf("[WARN] RSI calculation failed: %v, leaving series unenriched", err)
		return out
	}
	sma, err := calculator.CalculateSMASeries(closes, e.params.SMAPeriod)
	if err != nil {
		log.Printf("[WARN] SMA calculation failed: %v, leaving series unenriched", err)
		return out
	}
	pct5, err := calculator.CalculatePctChange(closes, shortChangeDays)
	if err != nil {
		log.Printf("[WARN] 5-day change calculation failed: %v, leaving series unenriched", err)
		return out
	}
	pctDecline, err := calculator.CalculatePctChange(closes, e.params.DeclineLookbackDays)
	if err != nil {
		log.Printf("[WARN] decline calculation failed: %v, leaving series unenriched", err)
		return out
	}

	for i := range out {
		out[i].RSI = toNull(rsi[i])
		out[i].SMA = toNull(sma[i])
		out[i].PctChange5d = toNull(pct5[i])
		out[i].PctChange10d = toNull(pctDecline[i])
		out[i].IsOversold = nullBool(e.isOversold(out[i]))
	}
	return out
}

// Classify maps an enriched bar to a signal.
func (e *Engine) Classify(b model.EnrichedBar) model.Signal {
	switch {
	case b.Oversold():
		return model.SignalOversold
	case b.RSI.Valid && b.RSI.Float64 > e.params.OverboughtThreshold:
		return model.SignalOverbought
	default:
		return model.SignalNeutral
	}
}
