package marketobs

import (
	"context"
	"time"

	"vol-spread-monitor/internal/interfaces"
	"vol-spread-monitor/internal/logger"
	"vol-spread-monitor/internal/metrics"
	"vol-spread-monitor/internal/trace"
	"vol-spread-monitor/internal/types"
)

// observableFetcher wraps a Fetcher with observability (logging, tracing & metrics)
type observableFetcher struct {
	fetcher  interfaces.Fetcher
	recorder *metrics.Recorder
}

// Compile-time interface check
var _ interfaces.Fetcher = (*observableFetcher)(nil)

// Wrap wraps a fetcher with observability middleware. recorder may be nil.
func Wrap(fetcher interfaces.Fetcher, recorder *metrics.Recorder) interfaces.Fetcher {
	return &observableFetcher{
		fetcher:  fetcher,
		recorder: recorder,
	}
}

// Fetch fetches a quote with observability
func (of *observableFetcher) Fetch(ctx context.Context, symbol string) (types.PriceQuote, error) {
	ctx, span := trace.StartSpan(ctx, "marketdata.Fetch")
	defer span.End()

	logger.DebugSkip(ctx, 1, "Requesting quote", "symbol", symbol)

	start := time.Now()
	quote, err := of.fetcher.Fetch(ctx, symbol)
	if of.recorder != nil {
		of.recorder.RecordOperation("fetch", err, time.Since(start))
	}
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Quote unavailable", err, "symbol", symbol)
		return types.PriceQuote{}, err
	}

	if of.recorder != nil {
		of.recorder.RecordPrice(quote)
	}
	logger.DebugSkip(ctx, 1, "Quote received",
		"symbol", quote.Symbol,
		"value", quote.Value,
		"source", quote.Source,
	)
	return quote, nil
}
