// Package types carries the use-case inputs and results exchanged between
// the HTTP adapters, the workflow orchestrator, and the application service.
package types

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/deliverly/order-api/internal/domains/orders/domain"
)

// RequestedItem references a menu item by id; name and price are resolved
// and snapshotted by the use case, never trusted from the caller.
type RequestedItem struct {
	MenuItemID string
	Quantity   int
}

// CreateOrderInput is the CreateOrder command.
type CreateOrderInput struct {
	CustomerID   string
	RestaurantID string
	Items        []RequestedItem
	// DeliveryFee overrides the platform default when set.
	DeliveryFee *decimal.Decimal
	// Address overrides the customer's stored address when set.
	Address *domain.Address
	Notes   string
	// IdempotencyKey lets retried placement requests collapse to a single
	// durable workflow execution.
	IdempotencyKey string
}

// PayOrderInput is the PayOrder command.
type PayOrderInput struct {
	OrderID string
	Method  string
	// MethodData carries method-specific fields forwarded to the gateway
	// as metadata; the core never interprets them.
	MethodData map[string]string
	// IdempotencyKey is the caller-supplied key; when empty the use case
	// derives a deterministic one from the order.
	IdempotencyKey string
}

// PaymentSummary is the caller-facing view of a settlement attempt.
type PaymentSummary struct {
	TransactionID    string
	Status           string
	Message          string
	AlreadyProcessed bool
	Simulated        bool
}

// PayOrderResult pairs the updated order with its payment summary.
type PayOrderResult struct {
	Order   *domain.Order
	Payment PaymentSummary
}

// CancelOrderInput is the CancelOrder command.
type CancelOrderInput struct {
	OrderID    string
	Reason     string
	CanceledBy string
}

// UpdateStatusInput is the UpdateOrderStatus command.
type UpdateStatusInput struct {
	OrderID string
	Status  domain.Status
}

// ListOrdersFilter narrows ListOrders; zero values mean "any".
type ListOrdersFilter struct {
	CustomerID   string
	RestaurantID string
	Status       domain.Status
	PlacedFrom   *time.Time
	PlacedTo     *time.Time
}

// DashboardStats aggregates order counts and delivered revenue.
type DashboardStats struct {
	Pending        int64
	Confirmed      int64
	Delivered      int64
	DeliveredTotal decimal.Decimal
}
