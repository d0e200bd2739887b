package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event is the base interface for all domain events.
type Event interface {
	EventName() string
	OccurredAt() time.Time
}

// BaseEvent provides common event metadata.
type BaseEvent struct {
	Timestamp time.Time
}

// OccurredAt returns when the event occurred.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// EventLineItem is the slimmed line-item shape carried by events; subscribers
// never receive the full aggregate.
type EventLineItem struct {
	MenuItemID string          `json:"menuItemId"`
	Name       string          `json:"name"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unitPrice"`
}

// OrderCreated is raised after a new order is persisted.
type OrderCreated struct {
	BaseEvent
	OrderID      string          `json:"orderId"`
	Number       string          `json:"number"`
	CustomerID   string          `json:"customerId"`
	RestaurantID string          `json:"restaurantId"`
	Subtotal     decimal.Decimal `json:"subtotal"`
	GrandTotal   decimal.Decimal `json:"grandTotal"`
	Items        []EventLineItem `json:"items"`
}

// EventName returns the event type identifier.
func (e OrderCreated) EventName() string {
	return "orders.order.created"
}

// OrderPaid is raised after a payment settles, synchronously or via webhook.
type OrderPaid struct {
	BaseEvent
	OrderID       string          `json:"orderId"`
	Number        string          `json:"number"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentMethod string          `json:"paymentMethod"`
	TransactionID string          `json:"transactionId"`
}

// EventName returns the event type identifier.
func (e OrderPaid) EventName() string {
	return "orders.order.paid"
}

// OrderCanceled is raised after an order moves to CANCELED.
type OrderCanceled struct {
	BaseEvent
	OrderID    string `json:"orderId"`
	Number     string `json:"number"`
	Reason     string `json:"reason"`
	CanceledBy string `json:"canceledBy"`
}

// EventName returns the event type identifier.
func (e OrderCanceled) EventName() string {
	return "orders.order.canceled"
}
