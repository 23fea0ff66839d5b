package kafka

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/sony/gobreaker"

	"orderpipe/internal/config"
)

// HeaderDeadLetterReason records why a message was routed to the dead-letter topic
const HeaderDeadLetterReason = "dead_letter_reason"

// A Handler processes one inbound message. Returning an error drives the
// transport's redelivery/dead-letter decision through Classify.
type Handler func(ctx context.Context, payload []byte, transportMessageID string) error

// ConsumerOptions configure one consuming loop
type ConsumerOptions struct {
	Brokers []string
	Topic   string
	GroupID string
	// DeadLetterTopic receives messages that exhausted redelivery or were
	// permanently rejected; empty means such messages are dropped with a log
	DeadLetterTopic    string
	MaxReceiveAttempts int
	MaxConcurrent      int
	PollTimeout        time.Duration
	InterPollDelay     time.Duration
	AckBatchSize       int
	AckBatchInterval   time.Duration
	MessageTimeout     time.Duration
	Breaker            config.CircuitBreakerConfig
}

// A Consumer pulls messages from one topic and dispatches them to a bounded
// pool of workers. Redelivery is emulated by republishing with an incremented
// redelivery header; offsets are committed through a batching acknowledger.
type Consumer struct {
	opts    ConsumerOptions
	handler Handler
	logger  *zerolog.Logger

	reader      *kafka.Reader
	retryWriter *Publisher
	dlqWriter   *Publisher
	breaker     *gobreaker.CircuitBreaker

	sem  chan struct{}
	acks chan kafka.Message

	mu      sync.RWMutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewConsumer creates a consumer for the given topic and handler
func NewConsumer(opts ConsumerOptions, handler Handler, logger *zerolog.Logger) *Consumer {
	breaker := gobreaker.NewCircuitBreaker(
		gobreaker.Settings{
			Name:        fmt.Sprintf("kafka-consumer-%s", opts.Topic),
			MaxRequests: uint32(opts.Breaker.HalfOpenMaxCalls),
			Interval:    opts.Breaker.Timeout,
			Timeout:     opts.Breaker.Timeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= uint32(opts.Breaker.MaxFailures)
			},
		},
	)

	return &Consumer{
		opts:    opts,
		handler: handler,
		logger:  logger,
		breaker: breaker,
		sem:     make(chan struct{}, opts.MaxConcurrent),
		acks:    make(chan kafka.Message, opts.MaxConcurrent),
	}
}

// Start launches the consume loop and the acknowledger
func (c *Consumer) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return fmt.Errorf("consumer for %s is already running", c.opts.Topic)
	}

	c.reader = kafka.NewReader(
		kafka.ReaderConfig{
			Brokers:     c.opts.Brokers,
			Topic:       c.opts.Topic,
			GroupID:     c.opts.GroupID,
			StartOffset: kafka.LastOffset,
			MinBytes:    1,
			MaxBytes:    10e6,
			MaxWait:     c.opts.PollTimeout,
			ErrorLogger: kafka.LoggerFunc(
				func(msg string, args ...interface{}) {
					c.logger.Error().
						Str("kafka_error", fmt.Sprintf(msg, args...)).
						Msg("kafka reader error")
				},
			),
		},
	)

	c.retryWriter = NewPublisher(c.opts.Brokers, c.opts.Topic, c.logger)
	if c.opts.DeadLetterTopic != "" {
		c.dlqWriter = NewPublisher(c.opts.Brokers, c.opts.DeadLetterTopic, c.logger)
	}

	loopCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.running = true

	c.wg.Add(2)
	go c.consume(loopCtx)
	go c.acknowledge(loopCtx)

	return nil
}

// Stop drains the workers and closes the reader and writers
func (c *Consumer) Stop(ctx context.Context) error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return nil
	}
	c.running = false
	cancel := c.cancel
	c.mu.Unlock()

	cancel()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return fmt.Errorf("timed out waiting for consumer workers on %s", c.opts.Topic)
	}

	if err := c.reader.Close(); err != nil {
		return fmt.Errorf("failed to close reader for %s: %w", c.opts.Topic, err)
	}
	_ = c.retryWriter.Close()
	if c.dlqWriter != nil {
		_ = c.dlqWriter.Close()
	}

	return nil
}

// consume is the fetch loop: each fetched message is handed to a worker from
// the bounded pool so a slow message never blocks the others
func (c *Consumer) consume(ctx context.Context) {
	defer c.wg.Done()

	for {
		result, err := c.breaker.Execute(
			func() (any, error) {
				return c.reader.FetchMessage(ctx)
			},
		)

		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error().Err(err).Str("topic", c.opts.Topic).Msg("Error fetching message")

			select {
			case <-time.After(c.opts.InterPollDelay):
			case <-ctx.Done():
				return
			}
			continue
		}

		message := result.(kafka.Message)

		select {
		case c.sem <- struct{}{}:
		case <-ctx.Done():
			return
		}

		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			defer func() { <-c.sem }()
			c.handleMessage(ctx, message)
		}()
	}
}

// handleMessage runs one handler attempt under the per-message deadline and
// applies the resulting transport disposition
func (c *Consumer) handleMessage(ctx context.Context, message kafka.Message) {
	transportMessageID, attempt := messageIdentity(message)

	msgCtx, cancel := context.WithTimeout(ctx, c.opts.MessageTimeout)
	defer cancel()

	start := time.Now()
	err := c.handler(msgCtx, message.Value, transportMessageID)

	if err != nil {
		c.logger.Warn().
			Err(err).
			Str("topic", message.Topic).
			Str("transport_message_id", transportMessageID).
			Int("attempt", attempt).
			Dur("duration", time.Since(start)).
			Msg("Message handler returned error")
	}

	switch Classify(err, attempt, c.opts.MaxReceiveAttempts) {
	case DispositionRedeliver:
		c.redeliver(ctx, message, transportMessageID, attempt)
	case DispositionDeadLetter:
		c.deadLetter(ctx, message, transportMessageID, err)
	}

	select {
	case c.acks <- message:
	case <-ctx.Done():
	}
}

// redeliver republishes the message with the same transport message id and an
// incremented redelivery count; on persistent failure the message is
// dead-lettered instead of being lost
func (c *Consumer) redeliver(ctx context.Context, message kafka.Message, transportMessageID string, attempt int) {
	headers := map[string]string{
		HeaderMessageID:  transportMessageID,
		HeaderRedelivery: strconv.Itoa(attempt + 1),
	}

	err := retry.Do(
		func() error {
			_, sendErr := c.retryWriter.Send(ctx, string(message.Key), message.Value, headers)
			return sendErr
		},
		retry.Attempts(3),
		retry.Delay(500*time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.Context(ctx),
	)
	if err != nil {
		c.logger.Error().
			Err(err).
			Str("transport_message_id", transportMessageID).
			Msg("Failed to redeliver message, routing to dead letter")
		c.deadLetter(ctx, message, transportMessageID, err)
		return
	}

	c.logger.Info().
		Str("topic", c.opts.Topic).
		Str("transport_message_id", transportMessageID).
		Int("next_attempt", attempt+1).
		Msg("Message scheduled for redelivery")
}

// deadLetter routes the message to the dead-letter topic, or drops it with a
// log when the consumer has none configured
func (c *Consumer) deadLetter(ctx context.Context, message kafka.Message, transportMessageID string, cause error) {
	reason := "unknown"
	if cause != nil {
		reason = cause.Error()
	}

	if c.dlqWriter == nil {
		c.logger.Error().
			Str("topic", c.opts.Topic).
			Str("transport_message_id", transportMessageID).
			Str("reason", reason).
			Msg("No dead letter topic configured, dropping message")
		return
	}

	headers := map[string]string{
		HeaderMessageID:        transportMessageID,
		HeaderDeadLetterReason: reason,
	}

	_, err := c.dlqWriter.Send(ctx, string(message.Key), message.Value, headers)
	if err != nil {
		c.logger.Error().
			Err(err).
			Str("transport_message_id", transportMessageID).
			Msg("Failed to send message to dead letter topic")
		return
	}

	c.logger.Error().
		Str("topic", c.opts.Topic).
		Str("dead_letter_topic", c.opts.DeadLetterTopic).
		Str("transport_message_id", transportMessageID).
		Str("reason", reason).
		Msg("Message routed to dead letter topic")
}

// acknowledge batches offset commits by size and interval
func (c *Consumer) acknowledge(ctx context.Context) {
	defer c.wg.Done()

	batch := make([]kafka.Message, 0, c.opts.AckBatchSize)
	ticker := time.NewTicker(c.opts.AckBatchInterval)
	defer ticker.Stop()

	flush := func(flushCtx context.Context) {
		if len(batch) == 0 {
			return
		}

		err := retry.Do(
			func() error {
				return c.reader.CommitMessages(flushCtx, batch...)
			},
			retry.Attempts(5),
			retry.Delay(500*time.Millisecond),
			retry.DelayType(retry.BackOffDelay),
			retry.Context(flushCtx),
		)
		if err != nil {
			c.logger.Error().
				Err(err).
				Int("batch_size", len(batch)).
				Msg("Failed to commit messages after retries")
		}
		batch = batch[:0]
	}

	for {
		select {
		case message := <-c.acks:
			batch = append(batch, message)
			if len(batch) >= c.opts.AckBatchSize {
				flush(ctx)
			}
		case <-ticker.C:
			flush(ctx)
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			flush(flushCtx)
			cancel()
			return
		}
	}
}

// messageIdentity extracts the transport message id and the current delivery
// attempt from the message headers. Messages published outside the pipeline
// fall back to a positional identity.
func messageIdentity(message kafka.Message) (string, int) {
	transportMessageID := ""
	attempt := 1

	for _, header := range message.Headers {
		switch header.Key {
		case HeaderMessageID:
			transportMessageID = string(header.Value)
		case HeaderRedelivery:
			if n, err := strconv.Atoi(string(header.Value)); err == nil && n > 0 {
				attempt = n
			}
		}
	}

	if transportMessageID == "" {
		transportMessageID = fmt.Sprintf("%s-%d-%d", message.Topic, message.Partition, message.Offset)
	}

	return transportMessageID, attempt
}
