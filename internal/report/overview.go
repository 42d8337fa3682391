package report

import (
	"github.com/guregu/null/v6"

	"ReversalFlow/internal/model"
)

// declineAlertPercent marks symbols with a notable 10-day drop in the overview.
const declineAlertPercent = -5.0

// Overview is the market summary shown above the dashboard tables.
type Overview struct {
	Symbols        int        `json:"symbols"`
	OversoldCount  int        `json:"oversold_count"`
	AvgRSI         null.Float `json:"avg_rsi"`
	DecliningCount int        `json:"declining_count"`
	AvgChange10d   null.Float `json:"avg_change_10d"`
}

// Summarize builds the overview from the latest bar of every symbol.
// Averages skip absent values and are null when nothing contributes.
func Summarize(snapshot []model.EnrichedBar) Overview {
	o := Overview{Symbols: len(snapshot)}
	var rsiSum, chgSum float64
	var rsiN, chgN int
	for _, b := range snapshot {
		if b.Oversold() {
			o.OversoldCount++
		}
		if b.RSI.Valid {
			rsiSum += b.RSI.Float64
			rsiN++
		}
		if b.PctChange10d.Valid {
			chgSum += b.PctChange10d.Float64
			chgN++
			if b.PctChange10d.Float64 < declineAlertPercent {
				o.DecliningCount++
			}
		}
	}
	if rsiN > 0 {
		o.AvgRSI = null.FloatFrom(rsiSum / float64(rsiN))
	}
	if chgN > 0 {
		o.AvgChange10d = null.FloatFrom(chgSum / float64(chgN))
	}
	return o
}
