package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"vol-spread-monitor/internal/api"
	"vol-spread-monitor/internal/types"
)

// YahooSource reads daily closes from the Yahoo Finance chart API.
type YahooSource struct {
	client *api.Client
}

type yahooChartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol    string `json:"symbol"`
				GMTOffset int64  `json:"gmtoffset"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func NewYahooSource(baseURL string, timeout time.Duration) *YahooSource {
	return &YahooSource{
		client: api.NewClient(
			api.WithBaseURL(baseURL),
			api.WithTimeout(timeout),
			api.WithHeaders(api.YahooFinanceHeaders()),
			api.WithLogging(true),
		),
	}
}

func (y *YahooSource) Name() string { return "yahoo" }

func (y *YahooSource) Latest(ctx context.Context, symbol string, asOf time.Time, lookbackDays int) (types.PriceQuote, error) {
	from, to := window(asOf, lookbackDays)

	q := url.Values{}
	q.Set("period1", fmt.Sprintf("%d", from.Unix()))
	q.Set("period2", fmt.Sprintf("%d", to.AddDate(0, 0, 1).Unix()))
	q.Set("interval", "1d")
	q.Set("events", "history")
	path := fmt.Sprintf("/v8/finance/chart/%s?%s", url.PathEscape(symbol), q.Encode())

	resp, err := y.client.GET(ctx, path)
	if err != nil {
		return types.PriceQuote{}, fmt.Errorf("yahoo request for %s: %w", symbol, err)
	}

	bars, err := parseYahooChart(resp.Body)
	if err != nil {
		return types.PriceQuote{}, fmt.Errorf("yahoo response for %s: %w", symbol, err)
	}

	b, err := latestValid(bars, asOf)
	if err != nil {
		return types.PriceQuote{}, fmt.Errorf("yahoo response for %s: %w", symbol, err)
	}

	return types.PriceQuote{Symbol: symbol, Value: b.Close, AsOf: b.Date, Source: y.Name()}, nil
}

func parseYahooChart(body []byte) ([]bar, error) {
	if len(body) == 0 {
		return nil, ErrEmptyResponse
	}

	var chart yahooChartResponse
	if err := json.Unmarshal(body, &chart); err != nil {
		return nil, fmt.Errorf("decode chart: %w", err)
	}
	if e := chart.Chart.Error; e != nil {
		return nil, fmt.Errorf("chart error %s: %s", e.Code, e.Description)
	}
	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Timestamp) == 0 {
		return nil, ErrEmptyResponse
	}

	res := chart.Chart.Result[0]
	if len(res.Indicators.Quote) == 0 || res.Indicators.Quote[0].Close == nil {
		return nil, ErrMissingColumn
	}
	closes := res.Indicators.Quote[0].Close

	// Timestamps are session opens; shift to the exchange offset before
	// taking the calendar date.
	offset := time.Duration(res.Meta.GMTOffset) * time.Second

	n := len(res.Timestamp)
	if len(closes) < n {
		n = len(closes)
	}
	bars := make([]bar, 0, n)
	for i := 0; i < n; i++ {
		if closes[i] == nil {
			continue
		}
		ts := time.Unix(res.Timestamp[i], 0).UTC().Add(offset)
		bars = append(bars, bar{Date: civilDate(ts), Close: *closes[i]})
	}
	return bars, nil
}
