package service

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"orderpipe/internal/models"
)

// SimulatedOperation stands in for the real downstream work (payment capture,
// warehouse reservation). It sleeps for a configured delay and fails a
// configured percentage of attempts, which exercises the full retry and
// dead-letter machinery without external systems.
type SimulatedOperation struct {
	failurePercentage int
	delay             time.Duration
}

func NewSimulatedOperation(failurePercentage int, delay time.Duration) *SimulatedOperation {
	return &SimulatedOperation{failurePercentage: failurePercentage, delay: delay}
}

func (o *SimulatedOperation) Execute(ctx context.Context, record *models.ProcessedOrder) error {
	if o.delay > 0 {
		timer := time.NewTimer(o.delay)
		defer timer.Stop()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	if rand.IntN(100) < o.failurePercentage {
		return fmt.Errorf("simulated processing failure for order %s", record.OrderNumber)
	}
	return nil
}
