// Package kafka realizes the pipeline's abstract message channel on Kafka:
// publishing, consuming with a bounded worker pool, redelivery bookkeeping
// and dead-letter routing.
package kafka

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// Transport headers carried by every pipeline message
const (
	// HeaderMessageID identifies one transport message across redeliveries;
	// consumers deduplicate on it
	HeaderMessageID = "transport_message_id"
	// HeaderRedelivery counts transport-level delivery attempts
	HeaderRedelivery = "redelivery_count"
)

// A Publisher writes messages to one topic
type Publisher struct {
	writer *kafka.Writer
	topic  string
	logger *zerolog.Logger
}

// NewPublisher creates a publisher for the given topic
func NewPublisher(brokers []string, topic string, logger *zerolog.Logger) *Publisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}

	return &Publisher{writer: writer, topic: topic, logger: logger}
}

// Send hands the payload to the channel and returns the transport message id
// assigned to it. A caller-provided HeaderMessageID is preserved so that
// redeliveries keep their identity.
func (p *Publisher) Send(ctx context.Context, key string, payload []byte, headers map[string]string) (string, error) {
	transportMessageID := headers[HeaderMessageID]
	if transportMessageID == "" {
		transportMessageID = uuid.NewString()
	}

	kafkaHeaders := make([]kafka.Header, 0, len(headers)+1)
	kafkaHeaders = append(kafkaHeaders, kafka.Header{Key: HeaderMessageID, Value: []byte(transportMessageID)})
	for k, v := range headers {
		if k == HeaderMessageID {
			continue
		}
		kafkaHeaders = append(kafkaHeaders, kafka.Header{Key: k, Value: []byte(v)})
	}

	err := p.writer.WriteMessages(
		ctx, kafka.Message{
			Key:     []byte(key),
			Value:   payload,
			Headers: kafkaHeaders,
		},
	)
	if err != nil {
		return "", fmt.Errorf("failed to write message to %s: %w", p.topic, err)
	}

	p.logger.Debug().
		Str("topic", p.topic).
		Str("key", key).
		Str("transport_message_id", transportMessageID).
		Int("payload_size", len(payload)).
		Msg("Message published")

	return transportMessageID, nil
}

// Close closes the underlying writer
func (p *Publisher) Close() error {
	return p.writer.Close()
}
