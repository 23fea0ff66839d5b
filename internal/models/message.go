package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Sync event types exchanged between the two services
const (
	SyncEventOrderUpdated        = "ORDER_UPDATED"
	SyncEventProcessingCompleted = "PROCESSING_COMPLETED"
)

// Service names used as sync event source/target
const (
	ServiceProducer = "producer"
	ServiceConsumer = "consumer"
)

// Entity types carried by sync events
const (
	EntityTypeOrder          = "ORDER"
	EntityTypeProcessedOrder = "PROCESSED_ORDER"
)

// An OrderMessage is the wire snapshot of an order sent through the message channel
type OrderMessage struct {
	OrderNumber  string          `json:"orderNumber"`
	CustomerName string          `json:"customerName"`
	ProductName  string          `json:"productName"`
	Quantity     int             `json:"quantity"`
	Price        decimal.Decimal `json:"price"`
	TotalAmount  decimal.Decimal `json:"totalAmount"`
	Status       string          `json:"status"`
	CreatedAt    time.Time       `json:"createdAt"`
	MessageID    string          `json:"messageId"`
	Timestamp    time.Time       `json:"timestamp"`
}

// NewOrderMessage snapshots an order into a message with a fresh message
// identifier and publish timestamp
func NewOrderMessage(order *Order) *OrderMessage {
	return &OrderMessage{
		OrderNumber:  order.OrderNumber,
		CustomerName: order.CustomerName,
		ProductName:  order.ProductName,
		Quantity:     order.Quantity,
		Price:        order.Price,
		TotalAmount:  order.TotalAmount(),
		Status:       string(order.Status),
		CreatedAt:    order.CreatedAt,
		MessageID:    uuid.NewString(),
		Timestamp:    time.Now().UTC(),
	}
}

// Validate checks the message against the receipt rules. A violation is a
// permanent rejection: the message must not be retried.
func (m *OrderMessage) Validate() error {
	if strings.TrimSpace(m.OrderNumber) == "" {
		return NewMessageValidationError("orderNumber", "is required")
	}

	if strings.TrimSpace(m.CustomerName) == "" {
		return NewMessageValidationError("customerName", "is required")
	}

	if strings.TrimSpace(m.ProductName) == "" {
		return NewMessageValidationError("productName", "is required")
	}

	if m.Quantity <= 0 {
		return NewMessageValidationError("quantity", "must be positive")
	}

	if !m.Price.IsPositive() {
		return NewMessageValidationError("price", "must be positive")
	}

	if !m.TotalAmount.IsPositive() {
		return NewMessageValidationError("totalAmount", "must be positive")
	}

	return nil
}

// A SyncEvent is a lightweight cross-service notification. It carries no
// payload: consumption triggers a pull-based fetch from the peer, never a
// direct state copy.
type SyncEvent struct {
	EventType     string    `json:"eventType"`
	SourceService string    `json:"sourceService"`
	TargetService string    `json:"targetService"`
	EntityKey     string    `json:"entityKey"`
	EntityType    string    `json:"entityType"`
	Timestamp     time.Time `json:"timestamp"`
	MessageID     string    `json:"messageId"`
}

// NewOrderSyncEvent builds an ORDER_UPDATED event from producer to consumer
func NewOrderSyncEvent(orderNumber string) *SyncEvent {
	return &SyncEvent{
		EventType:     SyncEventOrderUpdated,
		SourceService: ServiceProducer,
		TargetService: ServiceConsumer,
		EntityKey:     orderNumber,
		EntityType:    EntityTypeOrder,
		Timestamp:     time.Now().UTC(),
		MessageID:     uuid.NewString(),
	}
}

// NewProcessingSyncEvent builds a PROCESSING_COMPLETED event from consumer to producer
func NewProcessingSyncEvent(orderNumber string) *SyncEvent {
	return &SyncEvent{
		EventType:     SyncEventProcessingCompleted,
		SourceService: ServiceConsumer,
		TargetService: ServiceProducer,
		EntityKey:     orderNumber,
		EntityType:    EntityTypeProcessedOrder,
		Timestamp:     time.Now().UTC(),
		MessageID:     uuid.NewString(),
	}
}

// Validate checks that all sync event fields are present
func (e *SyncEvent) Validate() error {
	if e.EventType != SyncEventOrderUpdated && e.EventType != SyncEventProcessingCompleted {
		return NewSyncEventValidationError("eventType", "must be ORDER_UPDATED or PROCESSING_COMPLETED")
	}

	if strings.TrimSpace(e.SourceService) == "" {
		return NewSyncEventValidationError("sourceService", "is required")
	}

	if strings.TrimSpace(e.TargetService) == "" {
		return NewSyncEventValidationError("targetService", "is required")
	}

	if strings.TrimSpace(e.EntityKey) == "" {
		return NewSyncEventValidationError("entityKey", "is required")
	}

	if strings.TrimSpace(e.EntityType) == "" {
		return NewSyncEventValidationError("entityType", "is required")
	}

	if e.Timestamp.IsZero() {
		return NewSyncEventValidationError("timestamp", "is required")
	}

	if strings.TrimSpace(e.MessageID) == "" {
		return NewSyncEventValidationError("messageId", "is required")
	}

	return nil
}
