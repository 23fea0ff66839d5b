// Package models holds the domain entities of the order pipeline and the
// invariants attached to them
package models

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// An OrderStatus is one node of the order lifecycle graph
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "PENDING"
	OrderStatusProcessing OrderStatus = "PROCESSING"
	OrderStatusCompleted  OrderStatus = "COMPLETED"
	OrderStatusFailed     OrderStatus = "FAILED"
)

const (
	// MaxOrderQuantity is the upper bound for a single order position
	MaxOrderQuantity = 1000
)

var (
	minOrderPrice = decimal.RequireFromString("0.01")
	maxOrderPrice = decimal.RequireFromString("999999.99")
)

// ParseOrderStatus converts a wire string into an OrderStatus
func ParseOrderStatus(s string) (OrderStatus, error) {
	switch status := OrderStatus(strings.ToUpper(strings.TrimSpace(s))); status {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusCompleted, OrderStatusFailed:
		return status, nil
	default:
		return "", NewOrderValidationError("status", fmt.Sprintf("unknown order status: %s", s))
	}
}

// IsTerminal reports whether the status has no outgoing transitions
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusFailed
}

// CanTransitionTo reports whether newStatus is reachable from s in one step.
// COMPLETED and FAILED are absorbing.
func (s OrderStatus) CanTransitionTo(newStatus OrderStatus) bool {
	switch s {
	case OrderStatusPending:
		return newStatus == OrderStatusProcessing || newStatus == OrderStatusFailed
	case OrderStatusProcessing:
		return newStatus == OrderStatusCompleted || newStatus == OrderStatusFailed
	default:
		return false
	}
}

// An Order is the producer-side aggregate: a validated order with its status lifecycle
type Order struct {
	ID           int64           `json:"id" db:"id"`
	OrderNumber  string          `json:"order_number" db:"order_number"`
	CustomerName string          `json:"customer_name" db:"customer_name"`
	ProductName  string          `json:"product_name" db:"product_name"`
	Quantity     int             `json:"quantity" db:"quantity"`
	Price        decimal.Decimal `json:"price" db:"price"`
	Status       OrderStatus     `json:"status" db:"status"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt    *time.Time      `json:"updated_at,omitempty" db:"updated_at"`
}

// NewOrder builds a PENDING order with a freshly generated order number.
// The order number is immutable once assigned.
func NewOrder(customerName, productName string, quantity int, price decimal.Decimal) (*Order, error) {
	order := &Order{
		OrderNumber:  GenerateOrderNumber(),
		CustomerName: strings.TrimSpace(customerName),
		ProductName:  strings.TrimSpace(productName),
		Quantity:     quantity,
		Price:        price,
		Status:       OrderStatusPending,
		CreatedAt:    time.Now().UTC(),
	}

	if err := order.Validate(); err != nil {
		return nil, err
	}

	return order, nil
}

// GenerateOrderNumber builds an order number from a timestamp component and an
// 8-character random hex suffix: ORD-<yyyyMMdd-HHmmss>-<8 hex>
func GenerateOrderNumber() string {
	suffix := make([]byte, 4)
	_, _ = rand.Read(suffix)

	return fmt.Sprintf(
		"ORD-%s-%s",
		time.Now().Format("20060102-150405"),
		strings.ToUpper(hex.EncodeToString(suffix)),
	)
}

// TotalAmount is the derived order total: price multiplied by quantity, exact fixed-point
func (o *Order) TotalAmount() decimal.Decimal {
	return o.Price.Mul(decimal.NewFromInt(int64(o.Quantity)))
}

// UpdateStatus moves the order along its lifecycle graph. Illegal transitions
// fail with ErrInvalidTransition and leave the order untouched.
func (o *Order) UpdateStatus(newStatus OrderStatus) error {
	if !o.Status.CanTransitionTo(newStatus) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, newStatus)
	}

	now := time.Now().UTC()
	o.Status = newStatus
	o.UpdatedAt = &now

	return nil
}

// Validate checks if the Order data is correct
func (o *Order) Validate() error {
	if strings.TrimSpace(o.OrderNumber) == "" {
		return NewOrderValidationError("order_number", "is required")
	}

	if strings.TrimSpace(o.CustomerName) == "" {
		return NewOrderValidationError("customer_name", "is required")
	}

	if strings.TrimSpace(o.ProductName) == "" {
		return NewOrderValidationError("product_name", "is required")
	}

	if o.Quantity <= 0 {
		return NewOrderValidationError("quantity", "must be positive")
	}

	if o.Quantity > MaxOrderQuantity {
		return NewOrderValidationError(
			"quantity", fmt.Sprintf("cannot exceed %d", MaxOrderQuantity),
		)
	}

	if o.Price.Exponent() < -2 {
		return NewOrderValidationError("price", "cannot have more than 2 fractional digits")
	}

	if o.Price.LessThan(minOrderPrice) {
		return NewOrderValidationError("price", fmt.Sprintf("must be at least %s", minOrderPrice))
	}

	if o.Price.GreaterThan(maxOrderPrice) {
		return NewOrderValidationError("price", fmt.Sprintf("cannot exceed %s", maxOrderPrice))
	}

	return nil
}
