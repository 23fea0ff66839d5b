package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"orderpipe/internal/interfaces"
	"orderpipe/internal/models"
)

const (
	deadLetterReason       = "moved to dead-letter"
	deadLetterDirectReason = "moved directly to dead-letter"
)

// A ProcessingService consumes order messages and tracks their outcome:
// deduplication by transport message id, bounded business-logic retries, and
// dead-letter reconciliation. All cross-worker coordination is delegated to
// the repository's uniqueness constraints.
type ProcessingService struct {
	repo             interfaces.ProcessedOrderRepository
	syncPublisher    interfaces.SyncEventPublisher
	operation        interfaces.Operation
	alerter          interfaces.Alerter
	maxRetryAttempts int
	operationTimeout time.Duration
	logger           *zerolog.Logger
}

// NewProcessingService creates the consumer-side processing service
func NewProcessingService(
	repo interfaces.ProcessedOrderRepository, syncPublisher interfaces.SyncEventPublisher,
	operation interfaces.Operation, alerter interfaces.Alerter,
	maxRetryAttempts int, operationTimeout time.Duration, logger *zerolog.Logger,
) *ProcessingService {
	return &ProcessingService{
		repo:             repo,
		syncPublisher:    syncPublisher,
		operation:        operation,
		alerter:          alerter,
		maxRetryAttempts: maxRetryAttempts,
		operationTimeout: operationTimeout,
		logger:           logger,
	}
}

// HandleMessage decodes a raw channel payload and processes it. A payload
// that cannot be decoded is a permanent rejection.
func (s *ProcessingService) HandleMessage(ctx context.Context, payload []byte, transportMessageID string) error {
	var msg models.OrderMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		s.logger.Error().
			Err(err).
			Str("transport_message_id", transportMessageID).
			Msg("Failed to unmarshal order message")
		return models.NewMessageValidationError("payload", err.Error())
	}

	return s.ProcessOrder(ctx, &msg, transportMessageID)
}

// ProcessOrder runs one processing attempt for the message.
//
// A terminal record for the same transport message id makes the call an
// idempotent no-op. A still-PROCESSING record means the transport redelivered
// an attempt that failed retryably: processing resumes against the persisted
// retry state. Otherwise a fresh record is inserted; losing the insert race
// against a concurrent delivery folds this worker back to a no-op.
func (s *ProcessingService) ProcessOrder(ctx context.Context, msg *models.OrderMessage, transportMessageID string) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	record, err := s.claimRecord(ctx, msg, transportMessageID)
	if err != nil || record == nil {
		return err
	}

	attemptCtx, cancel := context.WithTimeout(ctx, s.operationTimeout)
	opErr := s.operation.Execute(attemptCtx, record)
	cancel()

	if opErr == nil {
		return s.complete(ctx, record)
	}
	return s.fail(ctx, record, opErr)
}

// claimRecord resolves the ProcessedOrder this attempt operates on, or nil
// when the message must be folded to a no-op
func (s *ProcessingService) claimRecord(
	ctx context.Context, msg *models.OrderMessage, transportMessageID string,
) (*models.ProcessedOrder, error) {
	existing, err := s.repo.GetByMessageID(ctx, transportMessageID)
	switch {
	case err == nil && existing.Status.IsTerminal():
		s.logger.Warn().
			Str("transport_message_id", transportMessageID).
			Str("order_number", existing.OrderNumber).
			Str("status", string(existing.Status)).
			Msg("Duplicate message for terminal record, skipping")
		return nil, nil

	case err == nil:
		s.logger.Info().
			Str("transport_message_id", transportMessageID).
			Str("order_number", existing.OrderNumber).
			Int("retry_count", existing.RetryCount).
			Msg("Resuming redelivered message")
		return existing, nil

	case !errors.Is(err, models.ErrProcessedOrderNotFound):
		return nil, err
	}

	record, err := models.NewProcessedOrder(msg, transportMessageID)
	if err != nil {
		return nil, err
	}

	created, err := s.repo.CreateProcessedOrder(ctx, record)
	if err != nil {
		return nil, err
	}
	if !created {
		// Lost the insert race against a concurrent delivery of the same
		// message: the winner owns this attempt sequence.
		s.logger.Warn().
			Str("transport_message_id", transportMessageID).
			Str("order_number", msg.OrderNumber).
			Msg("Concurrent delivery won the insert, skipping")
		return nil, nil
	}

	return record, nil
}

// complete marks the record COMPLETED and emits a best-effort sync event
func (s *ProcessingService) complete(ctx context.Context, record *models.ProcessedOrder) error {
	if err := record.MarkCompleted(); err != nil {
		return err
	}
	if err := s.repo.UpdateProcessedOrder(ctx, record); err != nil {
		return err
	}

	s.logger.Info().
		Str("order_number", record.OrderNumber).
		Int("retry_count", record.RetryCount).
		Msg("Order processing completed")

	s.publishProcessingSyncEvent(ctx, record.OrderNumber)
	return nil
}

// fail applies the retry policy: while budget remains the retry count is
// incremented and a retryable error re-raised for the transport to
// redeliver; once exhausted the record goes FAILED exactly once. The
// terminal attempt does not increment, so RetryCount never exceeds the
// budget.
func (s *ProcessingService) fail(ctx context.Context, record *models.ProcessedOrder, opErr error) error {
	if record.CanRetry(s.maxRetryAttempts) {
		record.IncrementRetryCount()
		if err := s.repo.UpdateProcessedOrder(ctx, record); err != nil {
			return err
		}

		s.logger.Warn().
			Err(opErr).
			Str("order_number", record.OrderNumber).
			Int("retry_count", record.RetryCount).
			Int("max_retry_attempts", s.maxRetryAttempts).
			Msg("Order processing failed, retry scheduled")

		return &models.RetryableProcessingError{
			OrderNumber: record.OrderNumber,
			RetryCount:  record.RetryCount,
			Cause:       opErr,
		}
	}

	if err := record.MarkFailed(opErr.Error()); err != nil {
		return err
	}
	if err := s.repo.UpdateProcessedOrder(ctx, record); err != nil {
		return err
	}

	s.logger.Error().
		Err(opErr).
		Str("order_number", record.OrderNumber).
		Int("retry_count", record.RetryCount).
		Msg("Order processing finally failed")

	return &models.TerminalProcessingError{
		OrderNumber: record.OrderNumber,
		RetryCount:  record.RetryCount,
		Cause:       opErr,
	}
}

// HandleDeadLetterMessage decodes a raw dead-letter payload and reconciles it
func (s *ProcessingService) HandleDeadLetterMessage(ctx context.Context, payload []byte, transportMessageID string) error {
	var msg models.OrderMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		s.logger.Error().
			Err(err).
			Str("transport_message_id", transportMessageID).
			Msg("Failed to unmarshal dead-letter payload, dropping")
		return nil
	}

	return s.HandleDeadLetter(ctx, &msg, transportMessageID)
}

// HandleDeadLetter reconciles a message that exhausted its redelivery budget
// against the existing processed-order state, keyed by order number. It never
// propagates an error upward: a dead-letter of a dead-letter would loop
// forever, so internal failures are logged only.
func (s *ProcessingService) HandleDeadLetter(ctx context.Context, msg *models.OrderMessage, transportMessageID string) error {
	existing, err := s.repo.GetByOrderNumber(ctx, msg.OrderNumber)
	switch {
	case err == nil:
		s.reconcileDeadLetter(ctx, existing)

	case errors.Is(err, models.ErrProcessedOrderNotFound):
		s.recordDeadLetter(ctx, msg, transportMessageID)

	default:
		s.logger.Error().
			Err(err).
			Str("order_number", msg.OrderNumber).
			Msg("Failed to look up processed order for dead-letter message")
	}

	s.alerter.NotifyFailure(ctx, msg, deadLetterReason)
	return nil
}

// reconcileDeadLetter marks a known record FAILED unless it already is
func (s *ProcessingService) reconcileDeadLetter(ctx context.Context, record *models.ProcessedOrder) {
	if record.IsFailed() {
		s.logger.Info().
			Str("order_number", record.OrderNumber).
			Msg("Dead-letter message for already failed order, skipping")
		return
	}

	if err := record.MarkFailed(deadLetterReason); err != nil {
		s.logger.Warn().
			Err(err).
			Str("order_number", record.OrderNumber).
			Str("status", string(record.Status)).
			Msg("Dead-letter message for terminal order, skipping")
		return
	}

	if err := s.repo.UpdateProcessedOrder(ctx, record); err != nil {
		s.logger.Error().
			Err(err).
			Str("order_number", record.OrderNumber).
			Msg("Failed to persist dead-letter failure")
	}
}

// recordDeadLetter stores a previously unseen dead-lettered message directly
// in FAILED status under the dead-letter transport message id
func (s *ProcessingService) recordDeadLetter(ctx context.Context, msg *models.OrderMessage, transportMessageID string) {
	record, err := models.NewProcessedOrder(msg, transportMessageID)
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("order_number", msg.OrderNumber).
			Msg("Failed to build record for dead-letter message")
		return
	}

	if err := record.MarkFailed(deadLetterDirectReason); err != nil {
		s.logger.Error().Err(err).Str("order_number", msg.OrderNumber).Msg("Failed to mark dead-letter record")
		return
	}

	if _, err := s.repo.CreateProcessedOrder(ctx, record); err != nil {
		s.logger.Error().
			Err(err).
			Str("order_number", msg.OrderNumber).
			Msg("Failed to persist dead-letter record")
		return
	}

	s.logger.Warn().
		Str("order_number", msg.OrderNumber).
		Str("transport_message_id", transportMessageID).
		Msg("Dead-letter message recorded as failed")
}

// GetProcessedOrder serves the consumer's synchronous lookup API
func (s *ProcessingService) GetProcessedOrder(ctx context.Context, orderNumber string) (*models.ProcessedOrder, error) {
	return s.repo.GetByOrderNumber(ctx, orderNumber)
}

// publishProcessingSyncEvent sends a best-effort PROCESSING_COMPLETED event;
// failures never propagate as processing failures
func (s *ProcessingService) publishProcessingSyncEvent(ctx context.Context, orderNumber string) {
	event := models.NewProcessingSyncEvent(orderNumber)
	if err := s.syncPublisher.PublishSyncEvent(ctx, event); err != nil {
		s.logger.Warn().
			Err(err).
			Str("order_number", orderNumber).
			Msg("Failed to publish processing sync event")
	}
}
