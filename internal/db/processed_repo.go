package db

import (
	"context"
	"errors"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"orderpipe/internal/config"
	"orderpipe/internal/models"
)

// A ProcessedOrderRepo persists consumer-side processing outcomes. The
// message_id and order_number columns both carry uniqueness constraints:
// deduplication under concurrent redelivery is enforced here, not in memory.
type ProcessedOrderRepo struct {
	db *DB
}

// NewProcessedOrderRepo creates a new instance of ProcessedOrderRepo over an existing DB
func NewProcessedOrderRepo(db *DB) *ProcessedOrderRepo {
	return &ProcessedOrderRepo{db}
}

// NewProcessedOrderRepoWithConfig creates a new instance of ProcessedOrderRepo with specified configuration
func NewProcessedOrderRepoWithConfig(ctx context.Context, cfg *config.Config) (*ProcessedOrderRepo, error) {
	db, err := NewDBWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &ProcessedOrderRepo{db}, nil
}

// CreateProcessedOrder inserts the record unless a row with its message id
// already exists. At most one concurrent caller wins the insert; losers get
// created=false and must re-read the row instead of mutating anything.
func (p *ProcessedOrderRepo) CreateProcessedOrder(ctx context.Context, order *models.ProcessedOrder) (bool, error) {
	query := `
		INSERT INTO processed_orders (order_number, customer_name, product_name, quantity, price, total_amount,
			status, message_id, original_created_at, processed_at, error_message, retry_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (message_id) DO NOTHING
		RETURNING id
	`

	created, err := p.db.WithTx(
		ctx, func(tx pgx.Tx) (any, error) {
			err := tx.QueryRow(
				ctx, query, order.OrderNumber, order.CustomerName, order.ProductName,
				order.Quantity, order.Price, order.TotalAmount, order.Status, order.MessageID,
				order.OriginalCreatedAt, order.ProcessedAt, order.ErrorMessage, order.RetryCount,
			).Scan(&order.ID)
			if errors.Is(err, pgx.ErrNoRows) {
				return false, nil
			}
			if err != nil {
				return false, err
			}
			return true, nil
		},
	)
	if err != nil {
		return false, err
	}
	return created.(bool), nil
}

// UpdateProcessedOrder stores the mutated outcome of an existing record
func (p *ProcessedOrderRepo) UpdateProcessedOrder(ctx context.Context, order *models.ProcessedOrder) error {
	query := `
		UPDATE processed_orders
		SET status = $2, error_message = $3, retry_count = $4, updated_at = $5
		WHERE message_id = $1
	`

	_, err := p.db.WithTx(
		ctx, func(tx pgx.Tx) (any, error) {
			tag, err := tx.Exec(
				ctx, query, order.MessageID, order.Status, order.ErrorMessage,
				order.RetryCount, order.UpdatedAt,
			)
			if err != nil {
				return nil, err
			}
			if tag.RowsAffected() == 0 {
				return nil, models.ErrProcessedOrderNotFound
			}
			return nil, nil
		},
	)
	return err
}

// GetByMessageID returns the record keyed by the transport message identifier
func (p *ProcessedOrderRepo) GetByMessageID(ctx context.Context, messageID string) (*models.ProcessedOrder, error) {
	query := `
		SELECT id, order_number, customer_name, product_name, quantity, price, total_amount, status,
			message_id, original_created_at, processed_at, updated_at, error_message, retry_count
		FROM processed_orders
		WHERE message_id = $1
	`

	return p.getOne(ctx, query, messageID)
}

// GetByOrderNumber returns the record keyed by order number, which the
// dead-letter path reconciles against
func (p *ProcessedOrderRepo) GetByOrderNumber(ctx context.Context, orderNumber string) (*models.ProcessedOrder, error) {
	query := `
		SELECT id, order_number, customer_name, product_name, quantity, price, total_amount, status,
			message_id, original_created_at, processed_at, updated_at, error_message, retry_count
		FROM processed_orders
		WHERE order_number = $1
	`

	return p.getOne(ctx, query, orderNumber)
}

func (p *ProcessedOrderRepo) getOne(ctx context.Context, query string, arg any) (*models.ProcessedOrder, error) {
	var order models.ProcessedOrder
	err := pgxscan.Get(ctx, p.db.pool, &order, query, arg)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrProcessedOrderNotFound
		}
		return nil, err
	}

	return &order, nil
}
