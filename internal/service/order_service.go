package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"orderpipe/internal/cache"
	"orderpipe/internal/interfaces"
	"orderpipe/internal/models"
)

// An OrderService implements the producer-side business logic: order
// creation, status lifecycle and read projections
type OrderService struct {
	repo          interfaces.OrderRepository
	cacheManager  *cache.Manager
	publisher     interfaces.OrderPublisher
	syncPublisher interfaces.SyncEventPublisher
	logger        *zerolog.Logger
}

// NewOrderService creates the producer-side order service
func NewOrderService(
	repo interfaces.OrderRepository, cacheManager *cache.Manager,
	publisher interfaces.OrderPublisher, syncPublisher interfaces.SyncEventPublisher,
	logger *zerolog.Logger,
) *OrderService {
	return &OrderService{
		repo:          repo,
		cacheManager:  cacheManager,
		publisher:     publisher,
		syncPublisher: syncPublisher,
		logger:        logger,
	}
}

// CreateOrder validates the input, persists a PENDING order and publishes the
// order message plus an ORDER_UPDATED sync event. Publish failures do not
// roll back persistence: the order stays saved and the failure is surfaced as
// a warning only.
func (s *OrderService) CreateOrder(
	ctx context.Context, customerName, productName string, quantity int, price decimal.Decimal,
) (*models.Order, error) {
	start := time.Now()

	order, err := models.NewOrder(customerName, productName, quantity, price)
	if err != nil {
		return nil, err
	}

	if err := s.repo.SaveOrder(ctx, order); err != nil {
		s.logger.Error().
			Err(err).
			Str("order_number", order.OrderNumber).
			Msg("Failed to save order")
		return nil, err
	}
	s.cacheManager.StoreOrder(order)

	messageID, err := s.publisher.PublishOrder(ctx, order)
	if err != nil {
		s.logger.Warn().
			Err(err).
			Str("order_number", order.OrderNumber).
			Msg("Order saved but message publish failed")
	}

	s.publishOrderSyncEvent(ctx, order.OrderNumber)

	s.logger.Info().
		Str("order_number", order.OrderNumber).
		Str("message_id", messageID).
		Str("total_amount", order.TotalAmount().String()).
		Dur("duration", time.Since(start)).
		Msg("Order created")

	return order, nil
}

// UpdateStatus moves an order along its lifecycle and emits a best-effort
// sync event. Unknown order numbers fail with ErrOrderNotFound, unreachable
// statuses with ErrInvalidTransition.
func (s *OrderService) UpdateStatus(
	ctx context.Context, orderNumber string, newStatus models.OrderStatus,
) (*models.Order, error) {
	order, err := s.repo.GetOrder(ctx, orderNumber)
	if err != nil {
		return nil, err
	}

	if err := order.UpdateStatus(newStatus); err != nil {
		return nil, err
	}

	if err := s.repo.UpdateOrder(ctx, order); err != nil {
		s.cacheManager.Invalidate(orderNumber)
		return nil, err
	}
	s.cacheManager.StoreOrder(order)

	s.logger.Info().
		Str("order_number", orderNumber).
		Str("status", string(newStatus)).
		Msg("Order status updated")

	s.publishOrderSyncEvent(ctx, orderNumber)

	return order, nil
}

// GetOrder returns one order through the read cache
func (s *OrderService) GetOrder(ctx context.Context, orderNumber string) (*models.Order, error) {
	return s.cacheManager.GetOrder(ctx, orderNumber)
}

// ListByCustomer returns the customer's orders, newest first
func (s *OrderService) ListByCustomer(ctx context.Context, customerName string) ([]models.Order, error) {
	return s.repo.GetOrdersByCustomer(ctx, customerName)
}

// ListByStatus returns orders in the given status, newest first
func (s *OrderService) ListByStatus(ctx context.Context, status models.OrderStatus) ([]models.Order, error) {
	return s.repo.GetOrdersByStatus(ctx, status)
}

// ListAll returns all orders
func (s *OrderService) ListAll(ctx context.Context) ([]models.Order, error) {
	return s.repo.GetAllOrders(ctx)
}

// publishOrderSyncEvent sends a best-effort ORDER_UPDATED event; failures are
// swallowed since sync must never affect the primary operation
func (s *OrderService) publishOrderSyncEvent(ctx context.Context, orderNumber string) {
	event := models.NewOrderSyncEvent(orderNumber)
	if err := s.syncPublisher.PublishSyncEvent(ctx, event); err != nil {
		s.logger.Warn().
			Err(err).
			Str("order_number", orderNumber).
			Msg("Failed to publish order sync event")
	}
}
