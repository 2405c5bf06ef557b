package marketdata

import (
	"context"
	"errors"
	"fmt"
	"time"

	"vol-spread-monitor/internal/logger"
	"vol-spread-monitor/internal/retry"
	"vol-spread-monitor/internal/store"
	"vol-spread-monitor/internal/types"
)

type route struct {
	source       Source
	lookbackDays int
}

// Fetcher resolves a symbol to its provider and retries the lookup with the
// configured policy. It keeps no cache; every call hits the network.
type Fetcher struct {
	routes  map[string]route
	sources map[string]Source
	policy  retry.Policy
	clock   func() time.Time
}

type FetcherOption func(*Fetcher)

// WithClock sets the source of "today" for the lookup window.
func WithClock(clock func() time.Time) FetcherOption {
	return func(f *Fetcher) {
		f.clock = clock
	}
}

// WithSleep replaces the backoff sleep, mainly for tests.
func WithSleep(sleep retry.SleepFunc) FetcherOption {
	return func(f *Fetcher) {
		f.policy.Sleep = sleep
	}
}

// WithSource replaces the implementation behind a provider name.
func WithSource(provider string, src Source) FetcherOption {
	return func(f *Fetcher) {
		f.sources[provider] = src
	}
}

func NewFetcher(cfg *store.Config, opts ...FetcherOption) (*Fetcher, error) {
	f := &Fetcher{
		routes: make(map[string]route),
		sources: map[string]Source{
			store.ProviderYahoo: NewYahooSource(cfg.Providers.Yahoo.BaseURL, cfg.HTTP.Timeout),
			store.ProviderStooq: NewStooqSource(cfg.Providers.Stooq.BaseURL, cfg.HTTP.Timeout),
		},
		policy: cfg.RetryPolicy(),
		clock: time.Now,
	}

	for _, opt := range opts {
		opt(f)
	}

	for _, inst := range []store.Instrument{cfg.Instruments.VIX, cfg.Instruments.VSTOXX} {
		src, ok := f.sources[inst.Provider]
		if !ok {
			return nil, fmt.Errorf("unknown provider %q for %s", inst.Provider, inst.Symbol)
		}
		f.routes[inst.Symbol] = route{source: src, lookbackDays: inst.LookbackDays}
	}

	return f, nil
}

// Fetch returns the latest valid close for symbol. After the last failed
// attempt it returns *types.DataUnavailableError wrapping the final cause.
func (f *Fetcher) Fetch(ctx context.Context, symbol string) (types.PriceQuote, error) {
	r, ok := f.routes[symbol]
	if !ok {
		return types.PriceQuote{}, &types.DataUnavailableError{
			Symbol: symbol,
			Err:    fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol),
		}
	}

	asOf := f.clock()

	policy := f.policy
	policy.OnRetry = func(attempt int, _ error, wait time.Duration) {
		logger.Info(ctx, "Retrying price fetch", "symbol", symbol, "attempt", attempt, "wait", wait.String())
	}

	quote, err := retry.Do(ctx, policy, func(ctx context.Context, attempt int) (types.PriceQuote, error) {
		logger.Info(ctx, "Fetching price", "symbol", symbol, "source", r.source.Name(), "attempt", attempt)

		q, err := r.source.Latest(ctx, symbol, asOf, r.lookbackDays)
		if err != nil {
			logger.Warn(ctx, "Price fetch attempt failed",
				"symbol", symbol,
				"source", r.source.Name(),
				"attempt", attempt,
				"max_attempts", f.policy.MaxAttempts,
				"error", err,
			)
			return types.PriceQuote{}, err
		}
		return q, nil
	})
	if err != nil {
		attempts, cause := f.policy.MaxAttempts, err
		var exhausted *retry.ExhaustedError
		if errors.As(err, &exhausted) {
			attempts, cause = exhausted.Attempts, exhausted.Last
		}
		return types.PriceQuote{}, &types.DataUnavailableError{Symbol: symbol, Attempts: attempts, Err: cause}
	}

	logger.Info(ctx, "Price fetched",
		"symbol", quote.Symbol,
		"value", quote.Value,
		"as_of", quote.AsOf.Format("2006-01-02"),
		"source", quote.Source,
	)
	return quote, nil
}
