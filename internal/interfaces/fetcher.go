package interfaces

import (
	"context"

	"vol-spread-monitor/internal/types"
)

// Fetcher returns the latest close for a symbol, retrying transient failures.
type Fetcher interface {
	Fetch(ctx context.Context, symbol string) (types.PriceQuote, error)
}
