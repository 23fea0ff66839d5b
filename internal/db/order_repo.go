package db

import (
	"context"
	"errors"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"orderpipe/internal/config"
	"orderpipe/internal/models"
)

// An OrderRepo persists producer-side orders. The order_number column carries
// a uniqueness constraint so an order number maps to exactly one row.
type OrderRepo struct {
	db *DB
}

// NewOrderRepo creates a new instance of OrderRepo over an existing DB
func NewOrderRepo(db *DB) *OrderRepo {
	return &OrderRepo{db}
}

// NewOrderRepoWithConfig creates a new instance of OrderRepo with specified configuration
func NewOrderRepoWithConfig(ctx context.Context, cfg *config.Config) (*OrderRepo, error) {
	db, err := NewDBWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &OrderRepo{db}, nil
}

// SaveOrder inserts a new order using a transaction
func (o *OrderRepo) SaveOrder(ctx context.Context, order *models.Order) error {
	query := `
		INSERT INTO orders (order_number, customer_name, product_name, quantity, price, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	_, err := o.db.WithTx(
		ctx, func(tx pgx.Tx) (any, error) {
			err := tx.QueryRow(
				ctx, query, order.OrderNumber, order.CustomerName, order.ProductName,
				order.Quantity, order.Price, order.Status, order.CreatedAt,
			).Scan(&order.ID)
			return nil, err
		},
	)
	return err
}

// UpdateOrder stores the mutated status of an existing order
func (o *OrderRepo) UpdateOrder(ctx context.Context, order *models.Order) error {
	query := `
		UPDATE orders
		SET status = $2, updated_at = $3
		WHERE order_number = $1
	`

	_, err := o.db.WithTx(
		ctx, func(tx pgx.Tx) (any, error) {
			tag, err := tx.Exec(ctx, query, order.OrderNumber, order.Status, order.UpdatedAt)
			if err != nil {
				return nil, err
			}
			if tag.RowsAffected() == 0 {
				return nil, models.ErrOrderNotFound
			}
			return nil, nil
		},
	)
	return err
}

// GetOrder returns order by order number
func (o *OrderRepo) GetOrder(ctx context.Context, orderNumber string) (*models.Order, error) {
	query := `
		SELECT id, order_number, customer_name, product_name, quantity, price, status, created_at, updated_at
		FROM orders
		WHERE order_number = $1
	`

	var order models.Order
	err := pgxscan.Get(ctx, o.db.pool, &order, query, orderNumber)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrOrderNotFound
		}
		return nil, err
	}

	return &order, nil
}

// GetOrdersByCustomer returns the customer's orders, newest first
func (o *OrderRepo) GetOrdersByCustomer(ctx context.Context, customerName string) ([]models.Order, error) {
	query := `
		SELECT id, order_number, customer_name, product_name, quantity, price, status, created_at, updated_at
		FROM orders
		WHERE customer_name = $1
		ORDER BY created_at DESC
	`

	return o.selectOrders(ctx, query, customerName)
}

// GetOrdersByStatus returns orders in the given status, newest first
func (o *OrderRepo) GetOrdersByStatus(ctx context.Context, status models.OrderStatus) ([]models.Order, error) {
	query := `
		SELECT id, order_number, customer_name, product_name, quantity, price, status, created_at, updated_at
		FROM orders
		WHERE status = $1
		ORDER BY created_at DESC
	`

	return o.selectOrders(ctx, query, status)
}

// GetAllOrders returns list of all orders
func (o *OrderRepo) GetAllOrders(ctx context.Context) ([]models.Order, error) {
	query := `
		SELECT id, order_number, customer_name, product_name, quantity, price, status, created_at, updated_at
		FROM orders
		ORDER BY created_at DESC
	`

	return o.selectOrders(ctx, query)
}

// GetNOrders returns at most n recent orders, used to warm the read cache
func (o *OrderRepo) GetNOrders(ctx context.Context, n int) ([]models.Order, error) {
	query := `
		SELECT id, order_number, customer_name, product_name, quantity, price, status, created_at, updated_at
		FROM orders
		ORDER BY created_at DESC
		LIMIT $1
	`

	return o.selectOrders(ctx, query, n)
}

func (o *OrderRepo) selectOrders(ctx context.Context, query string, args ...any) ([]models.Order, error) {
	var orders []models.Order
	err := pgxscan.Select(ctx, o.db.pool, &orders, query, args...)
	if err != nil {
		return nil, err
	}
	if orders == nil {
		return []models.Order{}, nil
	}
	return orders, nil
}
