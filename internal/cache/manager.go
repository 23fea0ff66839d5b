package cache

import (
	"context"

	"github.com/rs/zerolog"

	"orderpipe/internal/interfaces"
	"orderpipe/internal/models"
)

// A Manager is the read-through layer between the order repository and the
// LRU cache, keyed by order number
type Manager struct {
	cache  interfaces.Cache[string, *models.Order]
	repo   interfaces.OrderRepository
	logger *zerolog.Logger
}

// NewManager creates a new manager with specified cache, repo and logger
func NewManager(
	cache interfaces.Cache[string, *models.Order], repo interfaces.OrderRepository, logger *zerolog.Logger,
) *Manager {
	return &Manager{cache: cache, repo: repo, logger: logger}
}

// Warm loads at most capacity recent orders into the cache on startup
func (m *Manager) Warm(ctx context.Context) error {
	orders, err := m.repo.GetNOrders(ctx, m.cache.Capacity())
	if err != nil {
		return err
	}

	for i := range orders {
		m.cache.Set(orders[i].OrderNumber, &orders[i])
	}

	m.logger.Info().Int("orders", len(orders)).Msg("Order cache warmed")
	return nil
}

// GetOrder returns the order from cache, falling back to the repository
func (m *Manager) GetOrder(ctx context.Context, orderNumber string) (*models.Order, error) {
	if order, ok := m.cache.Get(orderNumber); ok {
		return order, nil
	}

	order, err := m.repo.GetOrder(ctx, orderNumber)
	if err != nil {
		return nil, err
	}

	m.cache.Set(order.OrderNumber, order)
	return order, nil
}

// StoreOrder refreshes the cached copy after a create or a status mutation
func (m *Manager) StoreOrder(order *models.Order) {
	m.cache.Set(order.OrderNumber, order)
}

// Invalidate drops the cached copy of one order
func (m *Manager) Invalidate(orderNumber string) {
	m.cache.Delete(orderNumber)
}
