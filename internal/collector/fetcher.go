package collector

import (
	"context"
	"errors"

	"ReversalFlow/internal/model"
)

// Provider failures. A fetch error wraps one of these or a transport error.
var (
	ErrProviderStatus = errors.New("provider returned non-success status")
	ErrMissingResults = errors.New("response missing results field")
	ErrNoData         = errors.New("no bars returned")
)

// FailureReason maps a fetch error to a short label. Nil maps to "".
func FailureReason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrProviderStatus):
		return "status"
	case errors.Is(err, ErrMissingResults):
		return "missing_results"
	case errors.Is(err, ErrNoData):
		return "no_data"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "transport"
	}
}

// Fetcher defines the interface for fetching daily bars.
type Fetcher interface {
	FetchDailyBars(ctx context.Context, symbol string, days int) ([]model.Bar, error)
	Name() string
}
