package cache

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderpipe/internal/models"
)

// mockRepository is a not thread-safe in-memory order store for manager tests
type mockRepository struct {
	orders map[string]models.Order
	reads  int
	err    error
}

func newMockRepository(orders ...models.Order) *mockRepository {
	m := &mockRepository{orders: make(map[string]models.Order)}
	for _, order := range orders {
		m.orders[order.OrderNumber] = order
	}
	return m
}

func (m *mockRepository) SaveOrder(_ context.Context, order *models.Order) error {
	if m.err != nil {
		return m.err
	}
	m.orders[order.OrderNumber] = *order
	return nil
}

func (m *mockRepository) UpdateOrder(_ context.Context, order *models.Order) error {
	if m.err != nil {
		return m.err
	}
	m.orders[order.OrderNumber] = *order
	return nil
}

func (m *mockRepository) GetOrder(_ context.Context, orderNumber string) (*models.Order, error) {
	m.reads++
	if m.err != nil {
		return nil, m.err
	}
	order, ok := m.orders[orderNumber]
	if !ok {
		return nil, models.ErrOrderNotFound
	}
	return &order, nil
}

func (m *mockRepository) GetOrdersByCustomer(context.Context, string) ([]models.Order, error) {
	return nil, nil
}

func (m *mockRepository) GetOrdersByStatus(context.Context, models.OrderStatus) ([]models.Order, error) {
	return nil, nil
}

func (m *mockRepository) GetAllOrders(context.Context) ([]models.Order, error) {
	return nil, nil
}

func (m *mockRepository) GetNOrders(_ context.Context, n int) ([]models.Order, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []models.Order
	for _, order := range m.orders {
		if len(out) == n {
			break
		}
		out = append(out, order)
	}
	return out, nil
}

func testOrder(number string) models.Order {
	return models.Order{
		OrderNumber:  number,
		CustomerName: "Alice",
		ProductName:  "Keyboard",
		Quantity:     1,
		Price:        decimal.RequireFromString("10.00"),
		Status:       models.OrderStatusPending,
		CreatedAt:    time.Now().UTC(),
	}
}

func newTestManager(t *testing.T, repo *mockRepository) *Manager {
	t.Helper()

	lru, err := NewLRU[string, *models.Order](8)
	require.NoError(t, err)

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	return NewManager(lru, repo, &logger)
}

func TestManager_Warm(t *testing.T) {
	repo := newMockRepository(testOrder("ORD-1"), testOrder("ORD-2"))
	m := newTestManager(t, repo)

	require.NoError(t, m.Warm(context.Background()))

	_, err := m.GetOrder(context.Background(), "ORD-1")
	require.NoError(t, err)
	assert.Equal(t, 0, repo.reads, "warmed entries must be served from the cache")
}

func TestManager_Warm_RepoError(t *testing.T) {
	repo := newMockRepository()
	repo.err = errors.New("database down")
	m := newTestManager(t, repo)

	assert.Error(t, m.Warm(context.Background()))
}

func TestManager_GetOrder_ReadThrough(t *testing.T) {
	repo := newMockRepository(testOrder("ORD-1"))
	m := newTestManager(t, repo)

	first, err := m.GetOrder(context.Background(), "ORD-1")
	require.NoError(t, err)
	assert.Equal(t, 1, repo.reads)

	second, err := m.GetOrder(context.Background(), "ORD-1")
	require.NoError(t, err)
	assert.Equal(t, 1, repo.reads, "the second read must hit the cache")
	assert.Equal(t, first.OrderNumber, second.OrderNumber)
}

func TestManager_GetOrder_Unknown(t *testing.T) {
	m := newTestManager(t, newMockRepository())

	_, err := m.GetOrder(context.Background(), "ORD-MISSING")
	assert.ErrorIs(t, err, models.ErrOrderNotFound)
}

func TestManager_StoreAndInvalidate(t *testing.T) {
	repo := newMockRepository()
	m := newTestManager(t, repo)

	order := testOrder("ORD-1")
	m.StoreOrder(&order)

	found, err := m.GetOrder(context.Background(), "ORD-1")
	require.NoError(t, err)
	assert.Equal(t, "ORD-1", found.OrderNumber)
	assert.Equal(t, 0, repo.reads)

	m.Invalidate("ORD-1")

	_, err = m.GetOrder(context.Background(), "ORD-1")
	assert.ErrorIs(t, err, models.ErrOrderNotFound, "an invalidated entry falls back to the repository")
}
