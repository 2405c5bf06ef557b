package marketdata

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/shopspring/decimal"

	"vol-spread-monitor/internal/api"
	"vol-spread-monitor/internal/types"
)

const stooqDateLayout = "2006-01-02"

// StooqSource reads daily closes from the stooq.com CSV download. It carries
// the vStoxx index, which Yahoo does not.
type StooqSource struct {
	client *api.Client
}

func NewStooqSource(baseURL string, timeout time.Duration) *StooqSource {
	return &StooqSource{
		client: api.NewClient(
			api.WithBaseURL(baseURL),
			api.WithTimeout(timeout),
			api.WithHeaders(api.StooqHeaders()),
			api.WithLogging(true),
		),
	}
}

func (s *StooqSource) Name() string { return "stooq" }

func (s *StooqSource) Latest(ctx context.Context, symbol string, asOf time.Time, lookbackDays int) (types.PriceQuote, error) {
	from, to := window(asOf, lookbackDays)

	q := url.Values{}
	q.Set("s", strings.ToLower(symbol))
	q.Set("d1", from.Format("20060102"))
	q.Set("d2", to.Format("20060102"))
	q.Set("i", "d")

	resp, err := s.client.GET(ctx, "/q/d/l/?"+q.Encode())
	if err != nil {
		return types.PriceQuote{}, fmt.Errorf("stooq request for %s: %w", symbol, err)
	}

	bars, err := parseStooqCSV(resp.Body)
	if err != nil {
		return types.PriceQuote{}, fmt.Errorf("stooq response for %s: %w", symbol, err)
	}

	b, err := latestValid(bars, asOf)
	if err != nil {
		return types.PriceQuote{}, fmt.Errorf("stooq response for %s: %w", symbol, err)
	}

	return types.PriceQuote{Symbol: symbol, Value: b.Close, AsOf: b.Date, Source: s.Name()}, nil
}

// parseStooqCSV needs Date and Close columns; other columns are ignored.
// Rows with an unparsable date or close are dropped here and left for
// latestValid to report.
func parseStooqCSV(body []byte) ([]bar, error) {
	body = bytes.TrimSpace(bytes.TrimPrefix(body, []byte("\ufeff")))
	if len(body) == 0 {
		return nil, ErrEmptyResponse
	}

	rows, err := gocsv.CSVToMaps(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrEmptyResponse
	}

	dateKey, closeKey := findColumn(rows[0], "Date"), findColumn(rows[0], "Close")
	if dateKey == "" || closeKey == "" {
		return nil, ErrMissingColumn
	}

	bars := make([]bar, 0, len(rows))
	for _, row := range rows {
		d, err := time.Parse(stooqDateLayout, strings.TrimSpace(row[dateKey]))
		if err != nil {
			continue
		}
		c, err := decimal.NewFromString(strings.TrimSpace(row[closeKey]))
		if err != nil || !c.IsPositive() {
			continue
		}
		v, _ := c.Float64()
		bars = append(bars, bar{Date: d, Close: v})
	}
	return bars, nil
}

func findColumn(row map[string]string, name string) string {
	for k := range row {
		if strings.EqualFold(strings.TrimSpace(k), name) {
			return k
		}
	}
	return ""
}
