// Package service implements the business logic of both pipeline services:
// order creation and publishing on the producer side, message processing,
// dead-letter handling and sync reconciliation on the consumer side.
package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"orderpipe/internal/interfaces"
	"orderpipe/internal/models"
)

// An OrderMessagePublisher serializes order snapshots into messages and hands
// them to the outbound channel. It never retries: redelivery is the
// transport's job.
type OrderMessagePublisher struct {
	channel   interfaces.MessagePublisher
	queueName string
	logger    *zerolog.Logger
}

// NewOrderMessagePublisher creates a publisher over the given channel
func NewOrderMessagePublisher(
	channel interfaces.MessagePublisher, queueName string, logger *zerolog.Logger,
) *OrderMessagePublisher {
	return &OrderMessagePublisher{channel: channel, queueName: queueName, logger: logger}
}

// PublishOrder builds a message carrying the full order snapshot plus a fresh
// message identifier and publish timestamp, and sends it. Returns the message
// identifier on success.
func (p *OrderMessagePublisher) PublishOrder(ctx context.Context, order *models.Order) (string, error) {
	msg := models.NewOrderMessage(order)

	payload, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("failed to serialize order message: %w", err)
	}

	if _, err := p.channel.Send(ctx, order.OrderNumber, payload, nil); err != nil {
		return "", &models.PublishError{Topic: p.queueName, Cause: err}
	}

	p.logger.Info().
		Str("order_number", order.OrderNumber).
		Str("message_id", msg.MessageID).
		Msg("Order message published")

	return msg.MessageID, nil
}

// A SyncPublisher sends best-effort cross-service sync events
type SyncPublisher struct {
	channel   interfaces.MessagePublisher
	queueName string
	logger    *zerolog.Logger
}

// NewSyncPublisher creates a sync event publisher over the given channel
func NewSyncPublisher(
	channel interfaces.MessagePublisher, queueName string, logger *zerolog.Logger,
) *SyncPublisher {
	return &SyncPublisher{channel: channel, queueName: queueName, logger: logger}
}

// PublishSyncEvent serializes and sends one sync event
func (p *SyncPublisher) PublishSyncEvent(ctx context.Context, event *models.SyncEvent) error {
	if err := event.Validate(); err != nil {
		return err
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to serialize sync event: %w", err)
	}

	if _, err := p.channel.Send(ctx, event.EntityKey, payload, nil); err != nil {
		return &models.PublishError{Topic: p.queueName, Cause: err}
	}

	p.logger.Info().
		Str("event_type", event.EventType).
		Str("entity_key", event.EntityKey).
		Str("target_service", event.TargetService).
		Msg("Sync event published")

	return nil
}
