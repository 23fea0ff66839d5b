package models

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOrderMessage(t *testing.T) {
	order, err := NewOrder("Alice", "Laptop", 5, decimal.RequireFromString("10000.00"))
	require.NoError(t, err)

	msg := NewOrderMessage(order)

	assert.Equal(t, order.OrderNumber, msg.OrderNumber)
	assert.Equal(t, string(OrderStatusPending), msg.Status)
	assert.True(t, msg.TotalAmount.Equal(decimal.RequireFromString("50000.00")))
	assert.NotEmpty(t, msg.MessageID)
	assert.False(t, msg.Timestamp.IsZero())
	require.NoError(t, msg.Validate())
}

func TestNewOrderMessage_UniqueMessageID(t *testing.T) {
	order, err := NewOrder("Alice", "Keyboard", 1, decimal.RequireFromString("10.00"))
	require.NoError(t, err)

	first := NewOrderMessage(order)
	second := NewOrderMessage(order)

	assert.NotEqual(t, first.MessageID, second.MessageID)
}

func TestOrderMessage_JSONFieldNames(t *testing.T) {
	order, err := NewOrder("Alice", "Keyboard", 1, decimal.RequireFromString("10.00"))
	require.NoError(t, err)

	payload, err := json.Marshal(NewOrderMessage(order))
	require.NoError(t, err)

	var decoded map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(payload, &decoded))

	for _, field := range []string{
		"orderNumber", "customerName", "productName", "quantity",
		"price", "totalAmount", "status", "createdAt", "messageId", "timestamp",
	} {
		assert.Contains(t, decoded, field)
	}
}

func TestOrderMessage_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*OrderMessage)
		field  string
	}{
		{"blank order number", func(m *OrderMessage) { m.OrderNumber = " " }, "orderNumber"},
		{"blank customer", func(m *OrderMessage) { m.CustomerName = "" }, "customerName"},
		{"blank product", func(m *OrderMessage) { m.ProductName = "" }, "productName"},
		{"zero quantity", func(m *OrderMessage) { m.Quantity = 0 }, "quantity"},
		{"zero price", func(m *OrderMessage) { m.Price = decimal.Zero }, "price"},
		{"negative total", func(m *OrderMessage) { m.TotalAmount = decimal.RequireFromString("-1") }, "totalAmount"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := validOrderMessage()
			tt.mutate(msg)

			err := msg.Validate()
			require.Error(t, err)

			var validationErr ValidationError
			require.ErrorAs(t, err, &validationErr)
			assert.Equal(t, tt.field, validationErr.Field)
		})
	}
}

func TestNewOrderSyncEvent(t *testing.T) {
	event := NewOrderSyncEvent("ORD-20260101-120000-DEADBEEF")

	assert.Equal(t, SyncEventOrderUpdated, event.EventType)
	assert.Equal(t, ServiceProducer, event.SourceService)
	assert.Equal(t, ServiceConsumer, event.TargetService)
	assert.Equal(t, EntityTypeOrder, event.EntityType)
	assert.Equal(t, "ORD-20260101-120000-DEADBEEF", event.EntityKey)
	require.NoError(t, event.Validate())
}

func TestNewProcessingSyncEvent(t *testing.T) {
	event := NewProcessingSyncEvent("ORD-20260101-120000-DEADBEEF")

	assert.Equal(t, SyncEventProcessingCompleted, event.EventType)
	assert.Equal(t, ServiceConsumer, event.SourceService)
	assert.Equal(t, ServiceProducer, event.TargetService)
	assert.Equal(t, EntityTypeProcessedOrder, event.EntityType)
	require.NoError(t, event.Validate())
}

func TestSyncEvent_Validate(t *testing.T) {
	event := NewOrderSyncEvent("ORD-1")
	event.EventType = "ORDER_DELETED"
	assert.Error(t, event.Validate())

	event = NewOrderSyncEvent("ORD-1")
	event.EntityKey = ""
	assert.Error(t, event.Validate())

	event = NewOrderSyncEvent("ORD-1")
	event.MessageID = ""
	assert.Error(t, event.Validate())
}
