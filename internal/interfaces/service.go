package interfaces

import (
	"context"

	"github.com/shopspring/decimal"

	"orderpipe/internal/models"
)

// An OrderService is the producer-side application service surface
type OrderService interface {
	CreateOrder(ctx context.Context, customerName, productName string, quantity int, price decimal.Decimal) (*models.Order, error)
	UpdateStatus(ctx context.Context, orderNumber string, newStatus models.OrderStatus) (*models.Order, error)
	GetOrder(ctx context.Context, orderNumber string) (*models.Order, error)
	ListByCustomer(ctx context.Context, customerName string) ([]models.Order, error)
	ListByStatus(ctx context.Context, status models.OrderStatus) ([]models.Order, error)
	ListAll(ctx context.Context) ([]models.Order, error)
}

// A ProcessedOrderReader serves the consumer's synchronous lookup API
type ProcessedOrderReader interface {
	GetProcessedOrder(ctx context.Context, orderNumber string) (*models.ProcessedOrder, error)
}

// A PeerClient calls the peer service's synchronous lookup API
type PeerClient interface {
	Healthy(ctx context.Context) bool
	FetchEntity(ctx context.Context, entityKey string) (*models.PeerSnapshot, error)
}

// A Cache is a bounded key-value store with eviction
type Cache[K comparable, V any] interface {
	Set(key K, value V)
	Get(key K) (V, bool)
	Delete(key K)
	Len() int
	Capacity() int
}
