package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"

	"vol-spread-monitor/internal/types"
)

// Recorder holds the metrics of a single monitor run. Each run gets its own
// registry so a push carries only that run's values.
type Recorder struct {
	registry *prometheus.Registry

	lastPrice   *prometheus.GaugeVec
	spread      prometheus.Gauge
	signals     *prometheus.CounterVec
	errorsTotal *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	lastRun     prometheus.Gauge
	exitCode    prometheus.Gauge
}

// New creates a recorder backed by a fresh registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		lastPrice: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "volspread_last_close",
				Help: "Latest daily close used for the decision",
			},
			[]string{"symbol", "source"},
		),
		spread: factory.NewGauge(prometheus.GaugeOpts{
			Name: "volspread_spread_points",
			Help: "vStoxx minus VIX in index points",
		}),
		signals: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "volspread_signals_total",
				Help: "Decisions by outcome",
			},
			[]string{"outcome"},
		),
		errorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "volspread_errors_total",
				Help: "Failed operations by name",
			},
			[]string{"operation"},
		),
		latency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "volspread_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 20, 40, 80},
			},
			[]string{"operation"},
		),
		lastRun: factory.NewGauge(prometheus.GaugeOpts{
			Name: "volspread_last_run_timestamp_seconds",
			Help: "Unix time the run finished",
		}),
		exitCode: factory.NewGauge(prometheus.GaugeOpts{
			Name: "volspread_last_run_exit_code",
			Help: "Exit code of the last run (0 ok, 1 failed, 2 misconfigured)",
		}),
	}
}

// Registry exposes the underlying registry, mostly for tests.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// RecordPrice records the close fetched for a symbol.
func (r *Recorder) RecordPrice(q types.PriceQuote) {
	r.lastPrice.WithLabelValues(q.Symbol, q.Source).Set(q.Value)
}

// RecordSignal records the verdict of a completed decision.
func (r *Recorder) RecordSignal(outcome types.Outcome, v types.Verdict) {
	r.spread.Set(v.Spread)
	r.signals.WithLabelValues(string(outcome)).Inc()
}

// RecordOperation observes the duration of op and counts it as an error when
// err is non-nil.
func (r *Recorder) RecordOperation(op string, err error, d time.Duration) {
	r.latency.WithLabelValues(op).Observe(d.Seconds())
	if err != nil {
		r.errorsTotal.WithLabelValues(op).Inc()
	}
}

// RecordRun stamps the end of a run with its exit code.
func (r *Recorder) RecordRun(exitCode int, finished time.Time) {
	r.exitCode.Set(float64(exitCode))
	r.lastRun.Set(float64(finished.Unix()))
}

// Push sends the registry to a Prometheus Pushgateway under job, replacing
// the previous group for that job.
func (r *Recorder) Push(ctx context.Context, url, job string, timeout time.Duration) error {
	return push.New(url, job).
		Gatherer(r.registry).
		Client(&http.Client{Timeout: timeout}).
		PushContext(ctx)
}
