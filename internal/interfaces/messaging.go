package interfaces

import (
	"context"

	"orderpipe/internal/models"
)

// A MessagePublisher hands a serialized payload to the outbound channel and
// returns the transport message identifier assigned to it. Retry is the
// transport's responsibility via redelivery, never the sender's.
type MessagePublisher interface {
	Send(ctx context.Context, key string, payload []byte, headers map[string]string) (string, error)
	Close() error
}

// An OrderPublisher serializes an order snapshot into a message and publishes it
type OrderPublisher interface {
	PublishOrder(ctx context.Context, order *models.Order) (string, error)
}

// A SyncEventPublisher publishes best-effort cross-service sync events
type SyncEventPublisher interface {
	PublishSyncEvent(ctx context.Context, event *models.SyncEvent) error
}

// An OrderProcessor consumes order messages and records their processing outcome
type OrderProcessor interface {
	ProcessOrder(ctx context.Context, msg *models.OrderMessage, transportMessageID string) error
	HandleDeadLetter(ctx context.Context, msg *models.OrderMessage, transportMessageID string) error
}

// A SyncEventHandler reconciles state on receipt of a sync event
type SyncEventHandler interface {
	HandleSyncEvent(ctx context.Context, event *models.SyncEvent) error
}

// An Operation is the pluggable business logic executed for one processing
// attempt. Implementations must respect the attempt deadline on ctx.
type Operation interface {
	Execute(ctx context.Context, order *models.ProcessedOrder) error
}

// An Alerter delivers failure notifications for dead-lettered messages
type Alerter interface {
	NotifyFailure(ctx context.Context, msg *models.OrderMessage, reason string)
}
