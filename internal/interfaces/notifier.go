package interfaces

import (
	"context"

	"vol-spread-monitor/internal/types"
)

type Notifier interface {
	Notify(ctx context.Context, message string) (types.DeliveryReceipt, error)
}
