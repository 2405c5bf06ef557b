package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"vol-spread-monitor/internal/logger"
	"vol-spread-monitor/internal/metrics"
	"vol-spread-monitor/internal/monitor"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	os.Exit(run())
}

// run performs one monitor cycle and returns the process exit code.
func run() int {
	if err := initializeSystem(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return monitor.ExitFailed
	}
	defer shutdownTracer()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(ctx)
	if err != nil {
		return monitor.ExitMisconfigured
	}

	loc, err := cfg.Location()
	if err != nil {
		logger.ErrorWithErr(ctx, "Invalid timezone", err, "timezone", cfg.Timezone)
		return monitor.ExitMisconfigured
	}
	clock := func() time.Time { return time.Now().In(loc) }

	rec := metrics.New()

	fetcher, err := initializeFetcher(cfg, clock, rec)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to build fetcher", err)
		return monitor.ExitMisconfigured
	}
	notifier := initializeNotifier(cfg, rec)

	m, err := monitor.New(cfg, fetcher, notifier,
		monitor.WithClock(clock),
		monitor.WithRecorder(rec),
	)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to build monitor", err)
		return monitor.ExitMisconfigured
	}

	logger.Info(ctx, "VIX/vStoxx monitor starting", "version", version)
	res := m.Run(ctx)

	if res.State != monitor.StateMisconfigured {
		pushMetrics(cfg, rec)
	}

	return res.ExitCode()
}
