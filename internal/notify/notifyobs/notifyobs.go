package notifyobs

import (
	"context"
	"time"

	"vol-spread-monitor/internal/interfaces"
	"vol-spread-monitor/internal/logger"
	"vol-spread-monitor/internal/metrics"
	"vol-spread-monitor/internal/trace"
	"vol-spread-monitor/internal/types"
)

// observableNotifier wraps a Notifier with observability (logging, tracing & metrics)
type observableNotifier struct {
	notifier interfaces.Notifier
	recorder *metrics.Recorder
}

// Compile-time interface check
var _ interfaces.Notifier = (*observableNotifier)(nil)

// Wrap wraps a notifier with observability middleware. recorder may be nil.
func Wrap(notifier interfaces.Notifier, recorder *metrics.Recorder) interfaces.Notifier {
	return &observableNotifier{
		notifier: notifier,
		recorder: recorder,
	}
}

// Notify delivers a message with observability
func (on *observableNotifier) Notify(ctx context.Context, message string) (types.DeliveryReceipt, error) {
	ctx, span := trace.StartSpan(ctx, "notify.Notify")
	defer span.End()

	logger.DebugSkip(ctx, 1, "Delivering notification", "length", len(message))

	start := time.Now()
	receipt, err := on.notifier.Notify(ctx, message)
	if on.recorder != nil {
		on.recorder.RecordOperation("notify", err, time.Since(start))
	}
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Notification not delivered", err)
		return types.DeliveryReceipt{}, err
	}

	logger.InfoSkip(ctx, 1, "Notification delivered",
		"message_id", receipt.MessageID,
		"status", receipt.StatusCode,
	)
	return receipt, nil
}
