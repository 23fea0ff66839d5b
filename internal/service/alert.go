package service

import (
	"context"

	"github.com/rs/zerolog"

	"orderpipe/internal/models"
)

// LogAlerter reports permanently failed orders through the structured log.
// A real deployment would swap this for a pager or ticketing integration.
type LogAlerter struct {
	logger *zerolog.Logger
}

func NewLogAlerter(logger *zerolog.Logger) *LogAlerter {
	return &LogAlerter{logger: logger}
}

func (a *LogAlerter) NotifyFailure(_ context.Context, msg *models.OrderMessage, reason string) {
	a.logger.Error().
		Str("order_number", msg.OrderNumber).
		Str("customer_name", msg.CustomerName).
		Str("message_id", msg.MessageID).
		Str("reason", reason).
		Msg("ALERT: order permanently failed")
}
