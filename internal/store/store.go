// Package store persists enriched daily bars and per-symbol refresh markers.
package store

import (
	"context"

	"ReversalFlow/internal/model"
)

// Reader is the query surface the dashboard reads through.
type Reader interface {
	History(ctx context.Context, symbol string, timeframe model.Timeframe, limit int) ([]model.EnrichedBar, error)
	LatestSnapshot(ctx context.Context, timeframe model.Timeframe) ([]model.EnrichedBar, error)
	LatestOversold(ctx context.Context, timeframe model.Timeframe) ([]model.EnrichedBar, error)
	Stats(ctx context.Context) (*model.StoreStats, error)
	Ping(ctx context.Context) error
}

var _ Reader = (*SQLiteStore)(nil)
