package strategy

import (
	"math"

	"github.com/guregu/null/v6"

	"ReversalFlow/internal/model"
)

// isOversold requires both a low RSI and a decline deeper than the minimum.
func (e *Engine) isOversold(b model.EnrichedBar) bool {
	if !b.RSI.Valid || !b.PctChange10d.Valid {
		return false
	}
	return b.RSI.Float64 < e.params.OversoldThreshold &&
		b.PctChange10d.Float64 < -e.params.MinDeclinePercent
}

func toNull(v float64) null.Float {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return null.Float{}
	}
	return null.FloatFrom(v)
}

func nullBool(v bool) null.Bool {
	return null.BoolFrom(v)
}
