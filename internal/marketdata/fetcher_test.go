package marketdata

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vol-spread-monitor/internal/store"
	"vol-spread-monitor/internal/types"
)

type fakeSource struct {
	name    string
	results []error
	quote   types.PriceQuote
	calls   int
	asOf    []time.Time
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Latest(_ context.Context, symbol string, asOf time.Time, _ int) (types.PriceQuote, error) {
	f.calls++
	f.asOf = append(f.asOf, asOf)
	if f.calls <= len(f.results) && f.results[f.calls-1] != nil {
		return types.PriceQuote{}, f.results[f.calls-1]
	}
	q := f.quote
	q.Symbol = symbol
	return q, nil
}

type sleepRecorder struct {
	waits []time.Duration
}

func (s *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	s.waits = append(s.waits, d)
	return nil
}

var fixedNow = time.Date(2026, 10, 7, 18, 0, 0, 0, time.UTC)

func newTestFetcher(t *testing.T, yahoo, stooq Source, sleeper *sleepRecorder) *Fetcher {
	t.Helper()
	f, err := NewFetcher(store.Default(),
		WithSource(store.ProviderYahoo, yahoo),
		WithSource(store.ProviderStooq, stooq),
		WithSleep(sleeper.sleep),
		WithClock(func() time.Time { return fixedNow }),
	)
	require.NoError(t, err)
	return f
}

func TestFetcherRoutesBySymbol(t *testing.T) {
	yahoo := &fakeSource{name: "yahoo", quote: types.PriceQuote{Value: 15.2, Source: "yahoo"}}
	stooq := &fakeSource{name: "stooq", quote: types.PriceQuote{Value: 23.9, Source: "stooq"}}
	sleeper := &sleepRecorder{}
	f := newTestFetcher(t, yahoo, stooq, sleeper)

	vix, err := f.Fetch(context.Background(), "^VIX")
	require.NoError(t, err)
	vstoxx, err := f.Fetch(context.Background(), "^VSTOXX")
	require.NoError(t, err)

	assert.Equal(t, 15.2, vix.Value)
	assert.Equal(t, 23.9, vstoxx.Value)
	assert.Equal(t, 1, yahoo.calls)
	assert.Equal(t, 1, stooq.calls)
	assert.Equal(t, []time.Time{fixedNow}, yahoo.asOf)
	assert.Empty(t, sleeper.waits)
}

func TestFetcherRetriesWithLinearBackoff(t *testing.T) {
	yahoo := &fakeSource{
		name:    "yahoo",
		results: []error{ErrEmptyResponse, ErrMissingColumn},
		quote:   types.PriceQuote{Value: 16.4},
	}
	sleeper := &sleepRecorder{}
	f := newTestFetcher(t, yahoo, &fakeSource{name: "stooq"}, sleeper)

	q, err := f.Fetch(context.Background(), "^VIX")
	require.NoError(t, err)
	assert.Equal(t, 16.4, q.Value)
	assert.Equal(t, 3, yahoo.calls)
	assert.Equal(t, []time.Duration{5 * time.Second, 10 * time.Second}, sleeper.waits)
}

func TestFetcherExhaustsAttempts(t *testing.T) {
	stooq := &fakeSource{
		name:    "stooq",
		results: []error{ErrEmptyResponse, errors.New("connection reset"), ErrNoValidRows},
	}
	sleeper := &sleepRecorder{}
	f := newTestFetcher(t, &fakeSource{name: "yahoo"}, stooq, sleeper)

	_, err := f.Fetch(context.Background(), "^VSTOXX")
	require.Error(t, err)

	var unavailable *types.DataUnavailableError
	require.True(t, errors.As(err, &unavailable))
	assert.Equal(t, "^VSTOXX", unavailable.Symbol)
	assert.Equal(t, 3, unavailable.Attempts)
	assert.ErrorIs(t, err, ErrNoValidRows)
	assert.Equal(t, 3, stooq.calls)
	assert.Equal(t, []time.Duration{5 * time.Second, 10 * time.Second}, sleeper.waits)
}

func TestFetcherUnknownSymbol(t *testing.T) {
	yahoo := &fakeSource{name: "yahoo"}
	sleeper := &sleepRecorder{}
	f := newTestFetcher(t, yahoo, &fakeSource{name: "stooq"}, sleeper)

	_, err := f.Fetch(context.Background(), "^SPX")

	var unavailable *types.DataUnavailableError
	require.True(t, errors.As(err, &unavailable))
	assert.ErrorIs(t, err, ErrUnknownSymbol)
	assert.Zero(t, yahoo.calls)
	assert.Empty(t, sleeper.waits)
}

func TestNewFetcherRejectsUnknownProvider(t *testing.T) {
	cfg := store.Default()
	cfg.Instruments.VIX.Provider = "bloomberg"

	_, err := NewFetcher(cfg)
	assert.ErrorContains(t, err, "bloomberg")
}

func TestFetcherAgainstHTTPSources(t *testing.T) {
	hits := 0
	stooqSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if hits == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("Date,Open,High,Low,Close\n2026-10-06,24,25,23,24.4\n"))
	}))
	defer stooqSrv.Close()

	cfg := store.Default()
	cfg.Providers.Stooq.BaseURL = stooqSrv.URL
	sleeper := &sleepRecorder{}

	f, err := NewFetcher(cfg,
		WithSleep(sleeper.sleep),
		WithClock(func() time.Time { return fixedNow }),
	)
	require.NoError(t, err)

	q, err := f.Fetch(context.Background(), "^VSTOXX")
	require.NoError(t, err)
	assert.Equal(t, 24.4, q.Value)
	assert.Equal(t, 2, hits)
	assert.Equal(t, []time.Duration{5 * time.Second}, sleeper.waits)
}
