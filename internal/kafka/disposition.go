package kafka

import (
	"errors"

	"orderpipe/internal/models"
)

// A Disposition is what the transport does with a message after one handler attempt
type Disposition int

const (
	// DispositionAck acknowledges the message: success, a benign duplicate,
	// or a permanent rejection already routed elsewhere
	DispositionAck Disposition = iota
	// DispositionRedeliver re-enqueues the message with its redelivery count incremented
	DispositionRedeliver
	// DispositionDeadLetter routes the message to the dead-letter channel
	DispositionDeadLetter
)

// Classify maps a handler outcome to a transport disposition.
//
// Validation failures are permanent rejections and go straight to the
// dead-letter channel. A terminal processing error means the record is
// already FAILED: dead-letter immediately instead of burning the remaining
// redelivery budget. Everything else is retryable until the receive-attempt
// budget runs out.
func Classify(err error, attempt, maxReceiveAttempts int) Disposition {
	if err == nil || errors.Is(err, models.ErrDuplicateMessage) {
		return DispositionAck
	}

	if models.IsValidation(err) || models.IsTerminalProcessing(err) {
		return DispositionDeadLetter
	}

	if attempt < maxReceiveAttempts {
		return DispositionRedeliver
	}

	return DispositionDeadLetter
}
