package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderpipe/internal/config"
	"orderpipe/internal/models"
)

// stubOrderService is an in-memory OrderService for handler tests
type stubOrderService struct {
	orders map[string]*models.Order
}

func newStubOrderService() *stubOrderService {
	return &stubOrderService{orders: make(map[string]*models.Order)}
}

func (s *stubOrderService) CreateOrder(
	_ context.Context, customerName, productName string, quantity int, price decimal.Decimal,
) (*models.Order, error) {
	order, err := models.NewOrder(customerName, productName, quantity, price)
	if err != nil {
		return nil, err
	}
	s.orders[order.OrderNumber] = order
	return order, nil
}

func (s *stubOrderService) UpdateStatus(
	_ context.Context, orderNumber string, newStatus models.OrderStatus,
) (*models.Order, error) {
	order, ok := s.orders[orderNumber]
	if !ok {
		return nil, models.ErrOrderNotFound
	}
	if err := order.UpdateStatus(newStatus); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *stubOrderService) GetOrder(_ context.Context, orderNumber string) (*models.Order, error) {
	order, ok := s.orders[orderNumber]
	if !ok {
		return nil, models.ErrOrderNotFound
	}
	return order, nil
}

func (s *stubOrderService) ListByCustomer(_ context.Context, customerName string) ([]models.Order, error) {
	var out []models.Order
	for _, order := range s.orders {
		if order.CustomerName == customerName {
			out = append(out, *order)
		}
	}
	return out, nil
}

func (s *stubOrderService) ListByStatus(_ context.Context, status models.OrderStatus) ([]models.Order, error) {
	var out []models.Order
	for _, order := range s.orders {
		if order.Status == status {
			out = append(out, *order)
		}
	}
	return out, nil
}

func (s *stubOrderService) ListAll(_ context.Context) ([]models.Order, error) {
	var out []models.Order
	for _, order := range s.orders {
		out = append(out, *order)
	}
	return out, nil
}

type stubProcessedReader struct {
	records map[string]*models.ProcessedOrder
}

func (s *stubProcessedReader) GetProcessedOrder(_ context.Context, orderNumber string) (*models.ProcessedOrder, error) {
	record, ok := s.records[orderNumber]
	if !ok {
		return nil, models.ErrProcessedOrderNotFound
	}
	return record, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Port:         8081,
			ReadTimeout:  time.Second,
			WriteTimeout: time.Second,
			IdleTimeout:  time.Second,
		},
	}
}

func newProducerTestServer(svc *stubOrderService) *httptest.Server {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	s := NewProducer(testConfig(), svc, &logger)
	return httptest.NewServer(s.producerRoutes())
}

func newConsumerTestServer(reader *stubProcessedReader) *httptest.Server {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	s := NewConsumer(testConfig(), reader, &logger)
	return httptest.NewServer(s.consumerRoutes())
}

func TestCreateOrderEndpoint(t *testing.T) {
	svc := newStubOrderService()
	server := newProducerTestServer(svc)
	defer server.Close()

	body := `{"customerName":"Alice","productName":"Keyboard","quantity":2,"price":"49.99"}`
	resp, err := http.Post(server.URL+"/orders", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var order models.Order
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&order))
	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.NotEmpty(t, order.OrderNumber)
}

func TestCreateOrderEndpoint_ValidationError(t *testing.T) {
	server := newProducerTestServer(newStubOrderService())
	defer server.Close()

	body := `{"customerName":"","productName":"Keyboard","quantity":2,"price":"49.99"}`
	resp, err := http.Post(server.URL+"/orders", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreateOrderEndpoint_MalformedBody(t *testing.T) {
	server := newProducerTestServer(newStubOrderService())
	defer server.Close()

	resp, err := http.Post(server.URL+"/orders", "application/json", strings.NewReader("{broken"))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetOrderEndpoint(t *testing.T) {
	svc := newStubOrderService()
	created, err := svc.CreateOrder(context.Background(), "Alice", "Keyboard", 1, decimal.RequireFromString("10.00"))
	require.NoError(t, err)

	server := newProducerTestServer(svc)
	defer server.Close()

	resp, err := http.Get(server.URL + "/orders/" + created.OrderNumber)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var order models.Order
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&order))
	assert.Equal(t, created.OrderNumber, order.OrderNumber)
}

func TestGetOrderEndpoint_NotFound(t *testing.T) {
	server := newProducerTestServer(newStubOrderService())
	defer server.Close()

	resp, err := http.Get(server.URL + "/orders/ORD-MISSING")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestUpdateStatusEndpoint(t *testing.T) {
	svc := newStubOrderService()
	created, err := svc.CreateOrder(context.Background(), "Alice", "Keyboard", 1, decimal.RequireFromString("10.00"))
	require.NoError(t, err)

	server := newProducerTestServer(svc)
	defer server.Close()

	req, err := http.NewRequest(
		http.MethodPatch,
		server.URL+"/orders/"+created.OrderNumber+"/status",
		strings.NewReader(`{"status":"PROCESSING"}`),
	)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var order models.Order
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&order))
	assert.Equal(t, models.OrderStatusProcessing, order.Status)
}

func TestUpdateStatusEndpoint_IllegalTransition(t *testing.T) {
	svc := newStubOrderService()
	created, err := svc.CreateOrder(context.Background(), "Alice", "Keyboard", 1, decimal.RequireFromString("10.00"))
	require.NoError(t, err)

	server := newProducerTestServer(svc)
	defer server.Close()

	req, err := http.NewRequest(
		http.MethodPatch,
		server.URL+"/orders/"+created.OrderNumber+"/status",
		strings.NewReader(`{"status":"COMPLETED"}`),
	)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestUpdateStatusEndpoint_UnknownStatus(t *testing.T) {
	svc := newStubOrderService()
	created, err := svc.CreateOrder(context.Background(), "Alice", "Keyboard", 1, decimal.RequireFromString("10.00"))
	require.NoError(t, err)

	server := newProducerTestServer(svc)
	defer server.Close()

	req, err := http.NewRequest(
		http.MethodPatch,
		server.URL+"/orders/"+created.OrderNumber+"/status",
		strings.NewReader(`{"status":"SHIPPED"}`),
	)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestListOrdersEndpoint(t *testing.T) {
	svc := newStubOrderService()
	_, err := svc.CreateOrder(context.Background(), "Alice", "Keyboard", 1, decimal.RequireFromString("10.00"))
	require.NoError(t, err)
	_, err = svc.CreateOrder(context.Background(), "Bob", "Mouse", 1, decimal.RequireFromString("5.00"))
	require.NoError(t, err)

	server := newProducerTestServer(svc)
	defer server.Close()

	for path, want := range map[string]int{
		"/orders":                2,
		"/orders?customer=Alice": 1,
		"/orders?status=PENDING": 2,
		"/orders?customer=Carol": 0,
	} {
		resp, err := http.Get(server.URL + path)
		require.NoError(t, err)

		require.Equal(t, http.StatusOK, resp.StatusCode, path)

		var orders []models.Order
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&orders))
		_ = resp.Body.Close()
		assert.Len(t, orders, want, path)
	}
}

func TestListOrdersEndpoint_BadStatusFilter(t *testing.T) {
	server := newProducerTestServer(newStubOrderService())
	defer server.Close()

	resp, err := http.Get(server.URL + "/orders?status=SHIPPED")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSyncOrderEndpoint(t *testing.T) {
	svc := newStubOrderService()
	created, err := svc.CreateOrder(context.Background(), "Alice", "Keyboard", 1, decimal.RequireFromString("10.00"))
	require.NoError(t, err)

	server := newProducerTestServer(svc)
	defer server.Close()

	resp, err := http.Get(server.URL + "/sync/order/" + created.OrderNumber)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var snapshot models.PeerSnapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snapshot))
	assert.Equal(t, created.OrderNumber, snapshot.OrderNumber)
	assert.Equal(t, string(models.OrderStatusPending), snapshot.Status)
}

func TestSyncProcessedOrderEndpoint(t *testing.T) {
	msg := &models.OrderMessage{
		OrderNumber:  "ORD-20260101-120000-DEADBEEF",
		CustomerName: "Alice",
		ProductName:  "Keyboard",
		Quantity:     1,
		Price:        decimal.RequireFromString("10.00"),
		TotalAmount:  decimal.RequireFromString("10.00"),
		Status:       string(models.OrderStatusPending),
		CreatedAt:    time.Now().UTC(),
		MessageID:    "msg-1",
		Timestamp:    time.Now().UTC(),
	}
	record, err := models.NewProcessedOrder(msg, "transport-1")
	require.NoError(t, err)
	require.NoError(t, record.MarkCompleted())

	reader := &stubProcessedReader{records: map[string]*models.ProcessedOrder{record.OrderNumber: record}}
	server := newConsumerTestServer(reader)
	defer server.Close()

	resp, err := http.Get(server.URL + "/sync/processed-order/" + record.OrderNumber)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var snapshot models.PeerSnapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snapshot))
	assert.Equal(t, record.OrderNumber, snapshot.OrderNumber)
	assert.Equal(t, string(models.ProcessingStatusCompleted), snapshot.Status)
}

func TestSyncProcessedOrderEndpoint_NotFound(t *testing.T) {
	server := newConsumerTestServer(&stubProcessedReader{records: map[string]*models.ProcessedOrder{}})
	defer server.Close()

	resp, err := http.Get(server.URL + "/sync/processed-order/ORD-MISSING")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHealthEndpoints(t *testing.T) {
	producer := newProducerTestServer(newStubOrderService())
	defer producer.Close()
	consumer := newConsumerTestServer(&stubProcessedReader{records: map[string]*models.ProcessedOrder{}})
	defer consumer.Close()

	for _, url := range []string{
		producer.URL + "/health",
		producer.URL + "/sync/health",
		consumer.URL + "/health",
		consumer.URL + "/sync/health",
	} {
		resp, err := http.Get(url)
		require.NoError(t, err)

		assert.Equal(t, http.StatusOK, resp.StatusCode, url)

		var health HealthResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
		_ = resp.Body.Close()
		assert.Equal(t, "ok", health.Status)
	}
}
