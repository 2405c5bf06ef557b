package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"vol-spread-monitor/internal/interfaces"
	"vol-spread-monitor/internal/logger"
	"vol-spread-monitor/internal/marketdata"
	"vol-spread-monitor/internal/marketdata/marketobs"
	"vol-spread-monitor/internal/metrics"
	"vol-spread-monitor/internal/notify/notifyobs"
	"vol-spread-monitor/internal/notify/telegram"
	"vol-spread-monitor/internal/store"
	"vol-spread-monitor/internal/trace"
)

const (
	envConfigPath     = "MONITOR_CONFIG"
	defaultConfigPath = "config.yaml"
	pushTimeout       = 10 * time.Second
)

// initializeSystem loads .env and sets up the logger and tracer
func initializeSystem() error {
	// A missing .env is normal in CI where secrets come from the environment
	_ = godotenv.Load()

	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	if err := trace.Init(version); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize tracer: %v\n", err)
	}

	return nil
}

// loadConfig loads and returns the configuration
func loadConfig(ctx context.Context) (*store.Config, error) {
	path := os.Getenv(envConfigPath)
	if path == "" {
		path = defaultConfigPath
	}

	cfg, err := store.LoadConfig(path)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to load config", err, "path", path)
		return nil, err
	}
	return cfg, nil
}

// initializeFetcher builds the resilient fetcher with observability
func initializeFetcher(cfg *store.Config, clock func() time.Time, rec *metrics.Recorder) (interfaces.Fetcher, error) {
	f, err := marketdata.NewFetcher(cfg, marketdata.WithClock(clock))
	if err != nil {
		return nil, err
	}
	return marketobs.Wrap(f, rec), nil
}

// initializeNotifier builds the Telegram notifier with observability
func initializeNotifier(cfg *store.Config, rec *metrics.Recorder) interfaces.Notifier {
	n := telegram.New(telegram.Config{
		BaseURL:   cfg.Telegram.BaseURL,
		BotToken:  cfg.Telegram.BotToken,
		ChatID:    cfg.Telegram.ChatID,
		ParseMode: cfg.Telegram.ParseMode,
		Timeout:   cfg.HTTP.Timeout,
		Retry:     cfg.RetryPolicy(),
	})
	return notifyobs.Wrap(n, rec)
}

// pushMetrics sends the run's metrics when a Pushgateway is configured.
// The run context may already be cancelled, so the push gets its own.
func pushMetrics(cfg *store.Config, rec *metrics.Recorder) {
	if cfg.Metrics.PushgatewayURL == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), pushTimeout)
	defer cancel()

	if err := rec.Push(ctx, cfg.Metrics.PushgatewayURL, cfg.Metrics.Job, pushTimeout); err != nil {
		logger.Warn(ctx, "Failed to push metrics", "url", cfg.Metrics.PushgatewayURL, "error", err)
		return
	}
	logger.Debug(ctx, "Metrics pushed", "url", cfg.Metrics.PushgatewayURL, "job", cfg.Metrics.Job)
}

// shutdownTracer flushes spans before the process exits
func shutdownTracer() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := trace.Shutdown(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to shut down tracer: %v\n", err)
	}
}
