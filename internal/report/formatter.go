// Package report renders collection results and indicator tables as text.
package report

import (
	"fmt"
	"strings"

	"github.com/guregu/null/v6"

	"ReversalFlow/internal/collector"
	"ReversalFlow/internal/model"
)

// FormatCollectionSummary reports symbol-level pass/fail for one batch.
func FormatCollectionSummary(results collector.Results) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Data collection complete: %d/%d symbols successful\n",
		results.Succeeded(), len(results)))
	if failed := results.Failed(); len(failed) > 0 {
		b.WriteString(fmt.Sprintf("Failed symbols: %s\n", strings.Join(failed, ", ")))
	}
	return b.String()
}

// FormatOversold renders the oversold table, most oversold first as given.
func FormatOversold(bars []model.EnrichedBar) string {
	if len(bars) == 0 {
		return "No oversold stocks found.\n"
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Oversold stocks (%d):\n", len(bars)))
	b.WriteString(fmt.Sprintf("  %-6s %10s %7s %8s %8s  %s\n", "Symbol", "Close", "RSI", "5d %", "10d %", "Date"))
	for _, bar := range bars {
		b.WriteString(fmt.Sprintf("  %-6s %10.2f %7s %8s %8s  %s\n",
			bar.Symbol, bar.Close,
			formatNull(bar.RSI, "%.1f"),
			formatNull(bar.PctChange5d, "%+.2f"),
			formatNull(bar.PctChange10d, "%+.2f"),
			bar.Time.Format("2006-01-02")))
	}
	return b.String()
}

// FormatOverview renders the market summary block.
func FormatOverview(o Overview) string {
	var b strings.Builder
	b.WriteString("Market overview\n")
	b.WriteString(fmt.Sprintf("  Symbols tracked:      %d\n", o.Symbols))
	b.WriteString(fmt.Sprintf("  Oversold:             %d\n", o.OversoldCount))
	b.WriteString(fmt.Sprintf("  Average RSI:          %s\n", formatNull(o.AvgRSI, "%.1f")))
	b.WriteString(fmt.Sprintf("  10d change < -5%%:     %d\n", o.DecliningCount))
	b.WriteString(fmt.Sprintf("  Average 10d change:   %s\n", formatNull(o.AvgChange10d, "%+.2f%%")))
	return b.String()
}

func formatNull(v null.Float, format string) string {
	if !v.Valid {
		return "-"
	}
	return fmt.Sprintf(format, v.Float64)
}
