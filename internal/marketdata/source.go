package marketdata

import (
	"context"
	"errors"
	"sort"
	"time"

	"vol-spread-monitor/internal/types"
)

// Attempt failures. They differ only for diagnostics; the fetcher retries
// all of them the same way.
var (
	ErrEmptyResponse = errors.New("empty response")
	ErrMissingColumn = errors.New("price column missing from response")
	ErrNoValidRows   = errors.New("no valid close in response")
	ErrUnknownSymbol = errors.New("no price source configured for symbol")
)

// Source looks up the latest daily close of one symbol from one provider.
type Source interface {
	Name() string
	Latest(ctx context.Context, symbol string, asOf time.Time, lookbackDays int) (types.PriceQuote, error)
}

// bar is one daily row after parsing; Close <= 0 marks an unusable row.
type bar struct {
	Date  time.Time
	Close float64
}

// civilDate drops the clock so rows and "today" compare by calendar day.
func civilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// latestValid picks the chronologically last bar with a positive close dated
// on or before asOf. Position in the response is ignored.
func latestValid(bars []bar, asOf time.Time) (bar, error) {
	cutoff := civilDate(asOf)

	valid := make([]bar, 0, len(bars))
	for _, b := range bars {
		if b.Close > 0 && !b.Date.After(cutoff) {
			valid = append(valid, b)
		}
	}
	if len(valid) == 0 {
		return bar{}, ErrNoValidRows
	}

	sort.SliceStable(valid, func(i, j int) bool { return valid[i].Date.Before(valid[j].Date) })
	return valid[len(valid)-1], nil
}

// window returns the inclusive [from, to] calendar range ending at asOf.
func window(asOf time.Time, lookbackDays int) (time.Time, time.Time) {
	to := civilDate(asOf)
	return to.AddDate(0, 0, -lookbackDays), to
}
