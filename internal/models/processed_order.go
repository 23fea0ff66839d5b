package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// A ProcessingStatus is one node of the consumer-side processing lifecycle
type ProcessingStatus string

const (
	ProcessingStatusProcessing ProcessingStatus = "PROCESSING"
	ProcessingStatusCompleted  ProcessingStatus = "COMPLETED"
	ProcessingStatusFailed     ProcessingStatus = "FAILED"
)

// IsTerminal reports whether the status has no outgoing transitions
func (s ProcessingStatus) IsTerminal() bool {
	return s == ProcessingStatusCompleted || s == ProcessingStatusFailed
}

// CanTransitionTo reports whether newStatus is reachable from s in one step.
// COMPLETED and FAILED are absorbing.
func (s ProcessingStatus) CanTransitionTo(newStatus ProcessingStatus) bool {
	if s != ProcessingStatusProcessing {
		return false
	}
	return newStatus == ProcessingStatusCompleted || newStatus == ProcessingStatusFailed
}

// A ProcessedOrder is the consumer-side aggregate: the per-message processing
// outcome of one order, with retry bookkeeping. The message identifier is the
// deduplication key; once COMPLETED or FAILED no further mutation is permitted.
type ProcessedOrder struct {
	ID                int64            `json:"id" db:"id"`
	OrderNumber       string           `json:"order_number" db:"order_number"`
	CustomerName      string           `json:"customer_name" db:"customer_name"`
	ProductName       string           `json:"product_name" db:"product_name"`
	Quantity          int              `json:"quantity" db:"quantity"`
	Price             decimal.Decimal  `json:"price" db:"price"`
	TotalAmount       decimal.Decimal  `json:"total_amount" db:"total_amount"`
	Status            ProcessingStatus `json:"status" db:"status"`
	MessageID         string           `json:"message_id" db:"message_id"`
	OriginalCreatedAt time.Time        `json:"original_created_at" db:"original_created_at"`
	ProcessedAt       time.Time        `json:"processed_at" db:"processed_at"`
	UpdatedAt         *time.Time       `json:"updated_at,omitempty" db:"updated_at"`
	ErrorMessage      *string          `json:"error_message,omitempty" db:"error_message"`
	RetryCount        int              `json:"retry_count" db:"retry_count"`
}

// NewProcessedOrder builds a PROCESSING record from the message snapshot,
// keyed by the transport message identifier.
func NewProcessedOrder(msg *OrderMessage, messageID string) (*ProcessedOrder, error) {
	if strings.TrimSpace(messageID) == "" {
		return nil, NewMessageValidationError("message_id", "is required")
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}

	return &ProcessedOrder{
		OrderNumber:       msg.OrderNumber,
		CustomerName:      msg.CustomerName,
		ProductName:       msg.ProductName,
		Quantity:          msg.Quantity,
		Price:             msg.Price,
		TotalAmount:       msg.TotalAmount,
		Status:            ProcessingStatusProcessing,
		MessageID:         messageID,
		OriginalCreatedAt: msg.CreatedAt,
		ProcessedAt:       time.Now().UTC(),
	}, nil
}

// MarkCompleted transitions the record to COMPLETED
func (p *ProcessedOrder) MarkCompleted() error {
	if !p.Status.CanTransitionTo(ProcessingStatusCompleted) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, p.Status, ProcessingStatusCompleted)
	}

	now := time.Now().UTC()
	p.Status = ProcessingStatusCompleted
	p.UpdatedAt = &now

	return nil
}

// MarkFailed transitions the record to FAILED and records the error detail
func (p *ProcessedOrder) MarkFailed(errorMessage string) error {
	if !p.Status.CanTransitionTo(ProcessingStatusFailed) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, p.Status, ProcessingStatusFailed)
	}

	now := time.Now().UTC()
	p.Status = ProcessingStatusFailed
	p.ErrorMessage = &errorMessage
	p.UpdatedAt = &now

	return nil
}

// IncrementRetryCount records one more failed business-logic attempt.
// The terminal attempt does not increment: RetryCount stays within
// [0, maxRetryAttempts].
func (p *ProcessedOrder) IncrementRetryCount() {
	now := time.Now().UTC()
	p.RetryCount++
	p.UpdatedAt = &now
}

// CanRetry reports whether another attempt fits the retry budget
func (p *ProcessedOrder) CanRetry(maxRetryAttempts int) bool {
	return p.Status == ProcessingStatusProcessing && p.RetryCount < maxRetryAttempts
}

// IsFailed reports whether the record ended in FAILED
func (p *ProcessedOrder) IsFailed() bool {
	return p.Status == ProcessingStatusFailed
}

// IsCompleted reports whether the record ended in COMPLETED
func (p *ProcessedOrder) IsCompleted() bool {
	return p.Status == ProcessingStatusCompleted
}
