package monitor

import (
	"context"
	"fmt"
	"time"

	"vol-spread-monitor/internal/alert"
	"vol-spread-monitor/internal/interfaces"
	"vol-spread-monitor/internal/logger"
	"vol-spread-monitor/internal/metrics"
	"vol-spread-monitor/internal/signal"
	"vol-spread-monitor/internal/store"
	"vol-spread-monitor/internal/types"
)

// Monitor runs one fetch, decide, format and notify cycle.
type Monitor struct {
	cfg      *store.Config
	fetcher  interfaces.Fetcher
	notifier interfaces.Notifier
	recorder *metrics.Recorder
	clock    func() time.Time
	loc      *time.Location

	evaluate func(vix, vstoxx float64, today time.Time) types.Verdict
	format   func(vix, vstoxx float64, v types.Verdict, today time.Time) string
}

type Option func(*Monitor)

// WithClock sets the source of "today".
func WithClock(clock func() time.Time) Option {
	return func(m *Monitor) {
		m.clock = clock
	}
}

// WithRecorder records signal and run metrics on rec.
func WithRecorder(rec *metrics.Recorder) Option {
	return func(m *Monitor) {
		m.recorder = rec
	}
}

func New(cfg *store.Config, fetcher interfaces.Fetcher, notifier interfaces.Notifier, opts ...Option) (*Monitor, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	m := &Monitor{
		cfg:      cfg,
		fetcher:  fetcher,
		notifier: notifier,
		clock:    time.Now,
		loc:      loc,
		evaluate: signal.Evaluate,
		format:   alert.Format,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Run executes the cycle. It never panics and always returns a Result in a
// terminal state. Missing credentials stop the run before any network call.
func (m *Monitor) Run(ctx context.Context) (res Result) {
	op := logger.StartOperation(ctx, "monitor.Run")
	ctx = op.Context()

	res.enter(StateStart)

	defer func() {
		if m.recorder != nil {
			m.recorder.RecordRun(res.ExitCode(), m.clock())
		}
		fields := []any{"state", res.State, "exit_code", res.ExitCode(), "transitions", res.Transitions}
		if res.Err != nil {
			op.EndWithError(res.Err, fields...)
		} else {
			op.End(fields...)
		}
		logger.Info(ctx, "Monitor run finished", "state", res.State, "exit_code", res.ExitCode())
	}()

	if err := m.cfg.CheckSecrets(); err != nil {
		logger.ErrorWithErr(ctx, "Monitor misconfigured", err)
		res.Err = err
		res.enter(StateMisconfigured)
		return res
	}

	today := m.clock().In(m.loc)
	logger.Info(ctx, "Monitor run started", "date", today.Format("2006-01-02"), "timezone", m.loc.String())

	res.enter(StateFetchingVIX)
	vix, err := m.fetcher.Fetch(ctx, m.cfg.Instruments.VIX.Symbol)
	if err != nil {
		return m.abort(ctx, res, err)
	}
	res.VIX = vix

	res.enter(StateFetchingVStoxx)
	vstoxx, err := m.fetcher.Fetch(ctx, m.cfg.Instruments.VSTOXX.Symbol)
	if err != nil {
		return m.abort(ctx, res, err)
	}
	res.VStoxx = vstoxx

	res.enter(StateDeciding)
	verdict, err := guard(StateDeciding, func() types.Verdict {
		return m.evaluate(vix.Value, vstoxx.Value, today)
	})
	if err != nil {
		return m.abort(ctx, res, err)
	}
	res.Verdict = verdict
	res.Outcome = signal.Classify(verdict)
	logger.Signal(ctx, res.Outcome, vix.Value, vstoxx.Value, verdict,
		"vix_as_of", vix.AsOf.Format("2006-01-02"),
		"vstoxx_as_of", vstoxx.AsOf.Format("2006-01-02"),
	)
	if m.recorder != nil {
		m.recorder.RecordSignal(res.Outcome, verdict)
	}

	res.enter(StateFormatting)
	msg, err := guard(StateFormatting, func() string {
		return m.format(vix.Value, vstoxx.Value, verdict, today)
	})
	if err != nil {
		return m.abort(ctx, res, err)
	}
	res.Message = msg
	logger.Info(ctx, "Alert message built", "message", msg)

	res.enter(StateNotifying)
	receipt, err := m.notifier.Notify(ctx, msg)
	if err != nil {
		// the notifier already retried; a second message would fail the same way
		res.Err = err
		res.enter(StateFailed)
		return res
	}
	res.Receipt = receipt

	res.enter(StateDone)
	return res
}

// abort sends a best-effort error notification and fails the run. A failure
// to deliver it is logged only.
func (m *Monitor) abort(ctx context.Context, res Result, cause error) Result {
	logger.ErrorWithErr(ctx, "Monitor step failed", cause, "state", res.State)
	res.Err = cause

	res.enter(StateErrorNotifying)
	if _, err := m.notifier.Notify(ctx, alert.FormatError(cause)); err != nil {
		logger.ErrorWithErr(ctx, "Also failed to send error notification", err)
	}

	res.enter(StateFailed)
	return res
}

// guard runs a pure step and turns a panic into an error.
func guard[T any](step State, fn func() T) (out T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s step panicked: %v", step, r)
		}
	}()
	return fn(), nil
}
