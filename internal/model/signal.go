package model

// Signal is the read-time classification of an enriched bar.
type Signal string

const (
	SignalOversold   Signal = "OVERSOLD"
	SignalOverbought Signal = "OVERBOUGHT"
	SignalNeutral    Signal = "NEUTRAL"
)

// SymbolCount is the number of stored bars for one symbol.
type SymbolCount struct {
	Symbol string `json:"symbol"`
	Bars   int    `json:"bars"`
}

// StoreStats summarizes the contents of the bar table.
type StoreStats struct {
	TotalBars int           `json:"total_bars"`
	Symbols   int           `json:"symbols"`
	PerSymbol []SymbolCount `json:"per_symbol"`
}
