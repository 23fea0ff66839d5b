package interfaces

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"orderpipe/internal/models"
)

// A Queryable abstracts over a pool, a connection and a transaction
type Queryable interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// An OrderRepository stores producer-side orders. The order number carries a
// uniqueness constraint at the persistence layer.
type OrderRepository interface {
	SaveOrder(ctx context.Context, order *models.Order) error
	UpdateOrder(ctx context.Context, order *models.Order) error
	GetOrder(ctx context.Context, orderNumber string) (*models.Order, error)
	GetOrdersByCustomer(ctx context.Context, customerName string) ([]models.Order, error)
	GetOrdersByStatus(ctx context.Context, status models.OrderStatus) ([]models.Order, error)
	GetAllOrders(ctx context.Context) ([]models.Order, error)
	GetNOrders(ctx context.Context, n int) ([]models.Order, error)
}

// A ProcessedOrderRepository stores consumer-side processing outcomes.
// Message id and order number both carry uniqueness constraints so that
// concurrent deliveries of the same message collapse to one row.
type ProcessedOrderRepository interface {
	// CreateProcessedOrder inserts the record unless a row for its message id
	// already exists. It reports whether this call won the insert; a loser
	// must fold back to a no-op by re-reading the row.
	CreateProcessedOrder(ctx context.Context, order *models.ProcessedOrder) (bool, error)
	UpdateProcessedOrder(ctx context.Context, order *models.ProcessedOrder) error
	GetByMessageID(ctx context.Context, messageID string) (*models.ProcessedOrder, error)
	GetByOrderNumber(ctx context.Context, orderNumber string) (*models.ProcessedOrder, error)
}
