package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"orderpipe/internal/models"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// HealthResponse represents a health check response
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

// CreateOrderRequest is the POST /orders body
type CreateOrderRequest struct {
	CustomerName string          `json:"customerName"`
	ProductName  string          `json:"productName"`
	Quantity     int             `json:"quantity"`
	Price        decimal.Decimal `json:"price"`
}

// UpdateStatusRequest is the PATCH /orders/{order_number}/status body
type UpdateStatusRequest struct {
	Status string `json:"status"`
}

// handleCreateOrder handles POST /orders requests
func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	order, err := s.orderService.CreateOrder(r.Context(), req.CustomerName, req.ProductName, req.Quantity, req.Price)
	if err != nil {
		s.writeServiceError(w, r, err, "Failed to create order")
		return
	}

	s.writeJSONResponse(w, http.StatusCreated, order)
}

// handleGetOrder handles GET /orders/{order_number} requests
func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	orderNumber := strings.TrimSpace(r.PathValue("order_number"))
	if orderNumber == "" {
		s.writeErrorResponse(w, http.StatusBadRequest, "Order number is required", "")
		return
	}

	order, err := s.orderService.GetOrder(r.Context(), orderNumber)
	if err != nil {
		s.writeServiceError(w, r, err, "Failed to get order")
		return
	}

	s.writeJSONResponse(w, http.StatusOK, order)
}

// handleListOrders handles GET /orders requests, optionally filtered by the
// customer or status query parameters
func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	customer := strings.TrimSpace(r.URL.Query().Get("customer"))
	statusParam := strings.TrimSpace(r.URL.Query().Get("status"))

	var (
		orders []models.Order
		err    error
	)

	switch {
	case customer != "":
		orders, err = s.orderService.ListByCustomer(r.Context(), customer)

	case statusParam != "":
		var status models.OrderStatus
		status, err = models.ParseOrderStatus(statusParam)
		if err != nil {
			s.writeErrorResponse(w, http.StatusBadRequest, "Invalid status filter", statusParam)
			return
		}
		orders, err = s.orderService.ListByStatus(r.Context(), status)

	default:
		orders, err = s.orderService.ListAll(r.Context())
	}

	if err != nil {
		s.writeServiceError(w, r, err, "Failed to list orders")
		return
	}

	if orders == nil {
		orders = []models.Order{}
	}

	s.writeJSONResponse(w, http.StatusOK, orders)
}

// handleUpdateStatus handles PATCH /orders/{order_number}/status requests
func (s *Server) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	orderNumber := strings.TrimSpace(r.PathValue("order_number"))
	if orderNumber == "" {
		s.writeErrorResponse(w, http.StatusBadRequest, "Order number is required", "")
		return
	}

	var req UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	status, err := models.ParseOrderStatus(req.Status)
	if err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "Invalid status", req.Status)
		return
	}

	order, err := s.orderService.UpdateStatus(r.Context(), orderNumber, status)
	if err != nil {
		s.writeServiceError(w, r, err, "Failed to update order status")
		return
	}

	s.writeJSONResponse(w, http.StatusOK, order)
}

// handleSyncOrder handles GET /sync/order/{order_number} requests from the
// peer service. The response is the reduced snapshot shape, not the full
// order record.
func (s *Server) handleSyncOrder(w http.ResponseWriter, r *http.Request) {
	orderNumber := strings.TrimSpace(r.PathValue("order_number"))
	if orderNumber == "" {
		s.writeErrorResponse(w, http.StatusBadRequest, "Order number is required", "")
		return
	}

	order, err := s.orderService.GetOrder(r.Context(), orderNumber)
	if err != nil {
		s.writeServiceError(w, r, err, "Failed to get order for sync")
		return
	}

	snapshot := models.PeerSnapshot{
		OrderNumber: order.OrderNumber,
		Status:      string(order.Status),
		CreatedAt:   &order.CreatedAt,
		UpdatedAt:   order.UpdatedAt,
	}

	s.writeJSONResponse(w, http.StatusOK, snapshot)
}

// handleSyncProcessedOrder handles GET /sync/processed-order/{order_number}
// requests from the peer service
func (s *Server) handleSyncProcessedOrder(w http.ResponseWriter, r *http.Request) {
	orderNumber := strings.TrimSpace(r.PathValue("order_number"))
	if orderNumber == "" {
		s.writeErrorResponse(w, http.StatusBadRequest, "Order number is required", "")
		return
	}

	record, err := s.processedReader.GetProcessedOrder(r.Context(), orderNumber)
	if err != nil {
		s.writeServiceError(w, r, err, "Failed to get processed order for sync")
		return
	}

	snapshot := models.PeerSnapshot{
		OrderNumber: record.OrderNumber,
		Status:      string(record.Status),
		CreatedAt:   &record.ProcessedAt,
		UpdatedAt:   record.UpdatedAt,
	}

	s.writeJSONResponse(w, http.StatusOK, snapshot)
}

// handleHealth handles GET /health and GET /sync/health requests
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	response := HealthResponse{
		Status: "ok",
		Time:   time.Now().UTC().Format(time.RFC3339),
	}

	s.writeJSONResponse(w, http.StatusOK, response)
}

// writeServiceError maps a service-layer error to an HTTP status
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error, message string) {
	s.logger.Error().
		Err(err).
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Msg(message)

	switch {
	case models.IsValidation(err):
		s.writeErrorResponse(w, http.StatusBadRequest, message, err.Error())

	case errors.Is(err, models.ErrOrderNotFound), errors.Is(err, models.ErrProcessedOrderNotFound):
		s.writeErrorResponse(w, http.StatusNotFound, message, err.Error())

	case errors.Is(err, models.ErrInvalidTransition):
		s.writeErrorResponse(w, http.StatusConflict, message, err.Error())

	default:
		s.writeErrorResponse(w, http.StatusInternalServerError, "Internal server error", "")
	}
}

// writeJSONResponse writes a JSON response
func (s *Server) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeErrorResponse writes an error response in JSON format
func (s *Server) writeErrorResponse(w http.ResponseWriter, statusCode int, message, details string) {
	errorResp := ErrorResponse{
		Error:   message,
		Message: details,
	}

	s.writeJSONResponse(w, statusCode, errorResp)
}
