package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"vol-spread-monitor/internal/api"
	"vol-spread-monitor/internal/logger"
	"vol-spread-monitor/internal/retry"
	"vol-spread-monitor/internal/types"
)

const redacted = "<redacted>"

// ErrNotDelivered is returned for a 2xx response whose body says ok=false.
var ErrNotDelivered = errors.New("telegram rejected message")

type sendMessageRequest struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode,omitempty"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

type sendMessageResponse struct {
	OK     bool `json:"ok"`
	Result struct {
		MessageID int64 `json:"message_id"`
	} `json:"result"`
	ErrorCode   int    `json:"error_code"`
	Description string `json:"description"`
}

// Config holds what the notifier needs from the process configuration.
type Config struct {
	BaseURL   string
	BotToken  string
	ChatID    string
	ParseMode string
	Timeout   time.Duration
	Retry     retry.Policy
}

// Notifier delivers messages with the Bot API sendMessage method.
type Notifier struct {
	client    *api.Client
	token     string
	chatID    string
	parseMode string
	policy    retry.Policy
	clock     func() time.Time
}

type Option func(*Notifier)

// WithSleep replaces the backoff sleep, mainly for tests.
func WithSleep(sleep retry.SleepFunc) Option {
	return func(n *Notifier) {
		n.policy.Sleep = sleep
	}
}

// WithClock sets the clock used to stamp receipts.
func WithClock(clock func() time.Time) Option {
	return func(n *Notifier) {
		n.clock = clock
	}
}

func New(cfg Config, opts ...Option) *Notifier {
	n := &Notifier{
		token:     cfg.BotToken,
		chatID:    cfg.ChatID,
		parseMode: cfg.ParseMode,
		policy:    cfg.Retry,
		clock:     time.Now,
	}
	n.client = api.NewClient(
		api.WithBaseURL(strings.TrimRight(cfg.BaseURL, "/")),
		api.WithTimeout(cfg.Timeout),
		api.WithLogging(true),
		api.WithRedactor(n.redact),
	)

	for _, opt := range opts {
		opt(n)
	}
	return n
}

// redact hides the bot token, which Telegram requires in the URL path.
func (n *Notifier) redact(s string) string {
	if n.token == "" {
		return s
	}
	return strings.ReplaceAll(s, n.token, redacted)
}

// Notify sends message to the configured chat. Each attempt is a new POST, so
// a retry after a lost response can deliver the message twice.
func (n *Notifier) Notify(ctx context.Context, message string) (types.DeliveryReceipt, error) {
	req := sendMessageRequest{
		ChatID:                n.chatID,
		Text:                  message,
		ParseMode:             n.parseMode,
		DisableWebPagePreview: true,
	}
	path := fmt.Sprintf("/bot%s/sendMessage", n.token)

	policy := n.policy
	policy.OnRetry = func(attempt int, _ error, wait time.Duration) {
		logger.Info(ctx, "Retrying Telegram send", "attempt", attempt, "wait", wait.String())
	}

	receipt, err := retry.Do(ctx, policy, func(ctx context.Context, attempt int) (types.DeliveryReceipt, error) {
		logger.Info(ctx, "Sending Telegram message", "attempt", attempt, "length", len(message))

		r, err := n.send(ctx, path, req)
		if err != nil {
			logger.Warn(ctx, "Telegram send attempt failed",
				"attempt", attempt,
				"max_attempts", n.policy.MaxAttempts,
				"error", n.redact(err.Error()),
			)
			return types.DeliveryReceipt{}, err
		}
		return r, nil
	})
	if err != nil {
		attempts, cause := n.policy.MaxAttempts, err
		var exhausted *retry.ExhaustedError
		if errors.As(err, &exhausted) {
			attempts, cause = exhausted.Attempts, exhausted.Last
		}
		return types.DeliveryReceipt{}, &types.DeliveryFailedError{Attempts: attempts, Err: cause}
	}

	logger.Info(ctx, "Telegram message sent", "message_id", receipt.MessageID, "status", receipt.StatusCode)
	return receipt, nil
}

func (n *Notifier) send(ctx context.Context, path string, req sendMessageRequest) (types.DeliveryReceipt, error) {
	resp, err := n.client.POST(ctx, path, req)
	if err != nil {
		return types.DeliveryReceipt{}, err
	}

	var body sendMessageResponse
	if err := resp.ParseJSON(&body); err != nil {
		return types.DeliveryReceipt{}, err
	}
	if !body.OK {
		return types.DeliveryReceipt{}, fmt.Errorf("%w: %d %s", ErrNotDelivered, body.ErrorCode, n.redact(body.Description))
	}

	return types.DeliveryReceipt{
		MessageID:  body.Result.MessageID,
		StatusCode: resp.StatusCode,
		SentAt:     n.clock(),
	}, nil
}
