package models

import (
	"errors"
	"fmt"
)

// ErrOrderNotFound is returned when no order exists for the requested order number
var ErrOrderNotFound = errors.New("order not found")

// ErrProcessedOrderNotFound is returned when no processed order exists for the requested key
var ErrProcessedOrderNotFound = errors.New("processed order not found")

// ErrInvalidTransition is returned when a status change is not reachable from the current status
var ErrInvalidTransition = errors.New("invalid status transition")

// ErrDuplicateMessage marks a redelivered transport message whose outcome is already terminal.
// It is a benign no-op signal, not a failure.
var ErrDuplicateMessage = errors.New("duplicate message")

// ErrPeerUnavailable is returned when the peer service cannot be reached; the transport should retry
var ErrPeerUnavailable = errors.New("peer service unavailable")

// ErrPeerNotFound is returned when the peer answered 404 for the requested entity.
// The sync reconciler treats it as a normal outcome and does not retry.
var ErrPeerNotFound = errors.New("entity not found on peer")

// A ValidationError is a custom error type for data validation
type ValidationError struct {
	Field   string
	Struct  string
	Message string
}

// Error is an interface implementation for errors
func (e ValidationError) Error() string {
	return fmt.Sprintf("Validation error in field %s.%s: %s", e.Struct, e.Field, e.Message)
}

// NewOrderValidationError is a validation error in the Order
func NewOrderValidationError(field, message string) ValidationError {
	return ValidationError{field, "order", message}
}

// NewMessageValidationError is a validation error in the OrderMessage
func NewMessageValidationError(field, message string) ValidationError {
	return ValidationError{field, "order_message", message}
}

// NewSyncEventValidationError is a validation error in the SyncEvent
func NewSyncEventValidationError(field, message string) ValidationError {
	return ValidationError{field, "sync_event", message}
}

// A RetryableProcessingError reports a failed processing attempt that still has retry budget.
// The transport is expected to redeliver the message.
type RetryableProcessingError struct {
	OrderNumber string
	RetryCount  int
	Cause       error
}

func (e *RetryableProcessingError) Error() string {
	return fmt.Sprintf(
		"processing failed for order %s, retry %d scheduled: %v", e.OrderNumber, e.RetryCount, e.Cause,
	)
}

func (e *RetryableProcessingError) Unwrap() error {
	return e.Cause
}

// A TerminalProcessingError reports an exhausted retry budget: the processed order is FAILED and
// the transport may dead-letter the message.
type TerminalProcessingError struct {
	OrderNumber string
	RetryCount  int
	Cause       error
}

func (e *TerminalProcessingError) Error() string {
	return fmt.Sprintf(
		"processing finally failed for order %s after %d retries: %v", e.OrderNumber, e.RetryCount, e.Cause,
	)
}

func (e *TerminalProcessingError) Unwrap() error {
	return e.Cause
}

// A PublishError reports a transport-level failure while sending a message.
// The caller decides whether it is fatal; order creation treats it as a warning.
type PublishError struct {
	Topic string
	Cause error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("failed to publish message to %s: %v", e.Topic, e.Cause)
}

func (e *PublishError) Unwrap() error {
	return e.Cause
}

// IsRetryableProcessing reports whether err carries a RetryableProcessingError
func IsRetryableProcessing(err error) bool {
	var retryable *RetryableProcessingError
	return errors.As(err, &retryable)
}

// IsTerminalProcessing reports whether err carries a TerminalProcessingError
func IsTerminalProcessing(err error) bool {
	var terminal *TerminalProcessingError
	return errors.As(err, &terminal)
}

// IsValidation reports whether err carries a ValidationError
func IsValidation(err error) bool {
	var validation ValidationError
	return errors.As(err, &validation)
}
