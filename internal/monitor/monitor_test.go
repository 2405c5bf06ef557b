package monitor

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vol-spread-monitor/internal/metrics"
	"vol-spread-monitor/internal/store"
	"vol-spread-monitor/internal/types"
)

type fakeFetcher struct {
	quotes map[string]types.PriceQuote
	errs   map[string]error
	calls  []string
}

func (f *fakeFetcher) Fetch(_ context.Context, symbol string) (types.PriceQuote, error) {
	f.calls = append(f.calls, symbol)
	if err := f.errs[symbol]; err != nil {
		return types.PriceQuote{}, err
	}
	return f.quotes[symbol], nil
}

type fakeNotifier struct {
	errs     []error
	messages []string
}

func (n *fakeNotifier) Notify(_ context.Context, message string) (types.DeliveryReceipt, error) {
	n.messages = append(n.messages, message)
	if i := len(n.messages) - 1; i < len(n.errs) && n.errs[i] != nil {
		return types.DeliveryReceipt{}, n.errs[i]
	}
	return types.DeliveryReceipt{MessageID: int64(len(n.messages)), StatusCode: 200}, nil
}

func testConfig() *store.Config {
	cfg := store.Default()
	cfg.Timezone = "UTC"
	cfg.Telegram.BotToken = "token"
	cfg.Telegram.ChatID = "chat"
	return cfg
}

func quotes(vix, vstoxx float64) *fakeFetcher {
	return &fakeFetcher{quotes: map[string]types.PriceQuote{
		"^VIX":    {Symbol: "^VIX", Value: vix, Source: "yahoo"},
		"^VSTOXX": {Symbol: "^VSTOXX", Value: vstoxx, Source: "stooq"},
	}}
}

func clockAt(day int) Option {
	return WithClock(func() time.Time { return time.Date(2026, time.October, day, 8, 0, 0, 0, time.UTC) })
}

func newMonitor(t *testing.T, cfg *store.Config, f *fakeFetcher, n *fakeNotifier, opts ...Option) *Monitor {
	t.Helper()
	m, err := New(cfg, f, n, opts...)
	require.NoError(t, err)
	return m
}

func TestRunHappyPath(t *testing.T) {
	f, n := quotes(15.0, 20.0), &fakeNotifier{}

	res := newMonitor(t, testConfig(), f, n, clockAt(3)).Run(context.Background())

	assert.Equal(t, StateDone, res.State)
	assert.Equal(t, []State{
		StateStart, StateFetchingVIX, StateFetchingVStoxx, StateDeciding,
		StateFormatting, StateNotifying, StateDone,
	}, res.Transitions)
	assert.Equal(t, ExitOK, res.ExitCode())
	assert.NoError(t, res.Err)
	assert.Equal(t, []string{"^VIX", "^VSTOXX"}, f.calls)
	assert.Equal(t, types.OutcomeEnter, res.Outcome)
	assert.Equal(t, 5.0, res.Verdict.Spread)
	require.Len(t, n.messages, 1)
	assert.Equal(t, res.Message, n.messages[0])
	assert.Contains(t, res.Message, "ENTER TRADE")
	assert.Equal(t, int64(1), res.Receipt.MessageID)
}

func TestRunScenarios(t *testing.T) {
	tests := []struct {
		name    string
		vix     float64
		vstoxx  float64
		day     int
		outcome types.Outcome
		block   string
	}{
		{"enter", 15, 20, 3, types.OutcomeEnter, "ENTER TRADE"},
		{"skip crisis", 15, 27, 3, types.OutcomeSkipCrisis, "SKIP ENTRY"},
		{"no signal", 15, 20, 15, types.OutcomeNoSignal, "NO SIGNAL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := &fakeNotifier{}
			res := newMonitor(t, testConfig(), quotes(tt.vix, tt.vstoxx), n, clockAt(tt.day)).Run(context.Background())

			assert.Equal(t, StateDone, res.State)
			assert.Equal(t, tt.outcome, res.Outcome)
			require.Len(t, n.messages, 1)
			assert.Contains(t, n.messages[0], tt.block)
		})
	}
}

func TestRunMisconfiguredMakesNoCalls(t *testing.T) {
	for _, missing := range []string{"token", "chat", "both"} {
		t.Run(missing, func(t *testing.T) {
			cfg := testConfig()
			if missing != "chat" {
				cfg.Telegram.BotToken = ""
			}
			if missing != "token" {
				cfg.Telegram.ChatID = ""
			}
			f, n := quotes(15, 20), &fakeNotifier{}

			res := newMonitor(t, cfg, f, n, clockAt(3)).Run(context.Background())

			assert.Equal(t, StateMisconfigured, res.State)
			assert.Equal(t, []State{StateStart, StateMisconfigured}, res.Transitions)
			assert.Equal(t, ExitMisconfigured, res.ExitCode())
			var mis *types.MisconfiguredError
			assert.True(t, errors.As(res.Err, &mis))
			assert.Empty(t, f.calls)
			assert.Empty(t, n.messages)
		})
	}
}

func TestRunFetchFailureSendsErrorNotification(t *testing.T) {
	f := quotes(15, 20)
	f.errs = map[string]error{
		"^VSTOXX": &types.DataUnavailableError{Symbol: "^VSTOXX", Attempts: 3, Err: errors.New("no <data>")},
	}
	n := &fakeNotifier{}

	res := newMonitor(t, testConfig(), f, n, clockAt(3)).Run(context.Background())

	assert.Equal(t, StateFailed, res.State)
	assert.Equal(t, []State{
		StateStart, StateFetchingVIX, StateFetchingVStoxx, StateErrorNotifying, StateFailed,
	}, res.Transitions)
	assert.Equal(t, ExitFailed, res.ExitCode())
	var unavailable *types.DataUnavailableError
	assert.True(t, errors.As(res.Err, &unavailable))
	require.Len(t, n.messages, 1)
	assert.True(t, strings.HasPrefix(n.messages[0], "⚠️ VIX/vStoxx monitor error: "))
	assert.Contains(t, n.messages[0], "no &lt;data&gt;")
}

func TestRunFirstFetchFailureSkipsSecondFetch(t *testing.T) {
	f := quotes(15, 20)
	f.errs = map[string]error{"^VIX": errors.New("boom")}

	res := newMonitor(t, testConfig(), f, &fakeNotifier{}, clockAt(3)).Run(context.Background())

	assert.Equal(t, StateFailed, res.State)
	assert.Equal(t, []string{"^VIX"}, f.calls)
}

func TestRunErrorNotificationFailureIsSwallowed(t *testing.T) {
	f := quotes(15, 20)
	fetchErr := errors.New("yahoo down")
	f.errs = map[string]error{"^VIX": fetchErr}
	n := &fakeNotifier{errs: []error{errors.New("telegram down")}}

	res := newMonitor(t, testConfig(), f, n, clockAt(3)).Run(context.Background())

	assert.Equal(t, StateFailed, res.State)
	assert.Equal(t, ExitFailed, res.ExitCode())
	assert.ErrorIs(t, res.Err, fetchErr)
	assert.Len(t, n.messages, 1)
}

func TestRunNotifyFailureDoesNotSendErrorNotification(t *testing.T) {
	deliveryErr := &types.DeliveryFailedError{Attempts: 3, Err: errors.New("HTTP 502")}
	n := &fakeNotifier{errs: []error{deliveryErr}}

	res := newMonitor(t, testConfig(), quotes(15, 20), n, clockAt(3)).Run(context.Background())

	assert.Equal(t, StateFailed, res.State)
	assert.Equal(t, []State{
		StateStart, StateFetchingVIX, StateFetchingVStoxx, StateDeciding,
		StateFormatting, StateNotifying, StateFailed,
	}, res.Transitions)
	assert.Equal(t, ExitFailed, res.ExitCode())
	assert.Len(t, n.messages, 1)
	assert.NotEmpty(t, res.Message)
}

func TestRunRecoversPanicInPureSteps(t *testing.T) {
	t.Run("decide", func(t *testing.T) {
		n := &fakeNotifier{}
		m := newMonitor(t, testConfig(), quotes(15, 20), n, clockAt(3))
		m.evaluate = func(float64, float64, time.Time) types.Verdict { panic("bad input") }

		res := m.Run(context.Background())

		assert.Equal(t, StateFailed, res.State)
		assert.Contains(t, res.Transitions, StateErrorNotifying)
		assert.ErrorContains(t, res.Err, "deciding step panicked: bad input")
		require.Len(t, n.messages, 1)
	})

	t.Run("format", func(t *testing.T) {
		n := &fakeNotifier{}
		m := newMonitor(t, testConfig(), quotes(15, 20), n, clockAt(3))
		m.format = func(float64, float64, types.Verdict, time.Time) string { panic("template") }

		res := m.Run(context.Background())

		assert.Equal(t, StateFailed, res.State)
		assert.ErrorContains(t, res.Err, "formatting step panicked")
		assert.Equal(t, types.OutcomeEnter, res.Outcome)
	})
}

func TestRunUsesConfiguredTimezone(t *testing.T) {
	cfg := testConfig()
	cfg.Timezone = "Asia/Tokyo"
	// 2026-10-07 20:00 UTC is already the 8th in Tokyo
	clock := WithClock(func() time.Time { return time.Date(2026, time.October, 7, 20, 0, 0, 0, time.UTC) })

	res := newMonitor(t, cfg, quotes(15, 20), &fakeNotifier{}, clock).Run(context.Background())

	assert.Equal(t, types.OutcomeNoSignal, res.Outcome)
	assert.False(t, res.Verdict.WeekOne)
}

func TestRunRecordsMetrics(t *testing.T) {
	rec := metrics.New()

	res := newMonitor(t, testConfig(), quotes(15, 27), &fakeNotifier{}, clockAt(3), WithRecorder(rec)).Run(context.Background())
	require.Equal(t, StateDone, res.State)

	count, err := testutil.GatherAndCount(rec.Registry(), "volspread_signals_total", "volspread_last_run_exit_code")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestNewRejectsBadTimezone(t *testing.T) {
	cfg := testConfig()
	cfg.Timezone = "Mars/Olympus"

	_, err := New(cfg, quotes(1, 2), &fakeNotifier{})
	assert.Error(t, err)
}
