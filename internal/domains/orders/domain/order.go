package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Status enumerates the order lifecycle states.
type Status string

const (
	StatusPending        Status = "PENDING"
	StatusPaid           Status = "PAID"
	StatusConfirmed      Status = "CONFIRMED"
	StatusPreparing      Status = "PREPARING"
	StatusReady          Status = "READY"
	StatusOutForDelivery Status = "OUT_FOR_DELIVERY"
	StatusDelivered      Status = "DELIVERED"
	StatusCanceled       Status = "CANCELED"
	StatusPaymentFailed  Status = "PAYMENT_FAILED"
)

// transitions is the adjacency table for legal status moves. Status may only
// ever change along these edges; every mutation path funnels through it.
var transitions = map[Status][]Status{
	StatusPending:        {StatusPaid, StatusConfirmed, StatusCanceled, StatusPaymentFailed},
	StatusPaid:           {StatusConfirmed, StatusCanceled},
	StatusConfirmed:      {StatusPreparing, StatusCanceled},
	StatusPreparing:      {StatusReady, StatusCanceled},
	StatusReady:          {StatusOutForDelivery},
	StatusOutForDelivery: {StatusDelivered},
	StatusDelivered:      {},
	StatusCanceled:       {},
	StatusPaymentFailed:  {StatusPending},
}

var (
	ErrEmptyItems        = errors.New("order must contain at least one item")
	ErrInvalidQuantity   = errors.New("item quantity must be at least one")
	ErrNegativePrice     = errors.New("item unit price must not be negative")
	ErrNotPayable        = errors.New("order is not payable in its current status")
	ErrNotCancelable     = errors.New("order cannot be canceled in its current status")
	ErrNotPendingPayment = errors.New("payment failure can only be recorded for a pending order")
	ErrUnknownStatus     = errors.New("unknown order status")
)

// InvalidTransitionError reports an attempted move that is not in the
// adjacency table, naming both endpoints.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid order transition from %s to %s", e.From, e.To)
}

// ValidStatus reports whether s names a known lifecycle state.
func ValidStatus(s Status) bool {
	_, ok := transitions[s]
	return ok
}

// LineItem is a value object embedded in the order. Name and unit price are
// snapshots taken at order time; later menu changes never touch placed orders.
type LineItem struct {
	MenuItemID string
	Name       string
	Quantity   int
	UnitPrice  decimal.Decimal
	Subtotal   decimal.Decimal
}

// NewLineItem validates and snapshots a single ordered item.
func NewLineItem(menuItemID, name string, quantity int, unitPrice decimal.Decimal) (LineItem, error) {
	if quantity < 1 {
		return LineItem{}, ErrInvalidQuantity
	}
	if unitPrice.IsNegative() {
		return LineItem{}, ErrNegativePrice
	}
	return LineItem{
		MenuItemID: menuItemID,
		Name:       name,
		Quantity:   quantity,
		UnitPrice:  unitPrice,
		Subtotal:   unitPrice.Mul(decimal.NewFromInt(int64(quantity))).Round(2),
	}, nil
}

// Address is the delivery address snapshot stored with the order.
type Address struct {
	Street     string
	Number     string
	Complement string
	District   string
	City       string
	State      string
	PostalCode string
}

// Payment is the settlement sub-record of an order.
type Payment struct {
	TransactionID string
	Method        string
	Provider      string
	PaidAt        *time.Time
	RefundedAt    *time.Time
	RefundID      string
}

// Order is the aggregate root of the ordering context.
type Order struct {
	ID           string
	Number       string
	CustomerID   string
	RestaurantID string
	Items        []LineItem
	Subtotal     decimal.Decimal
	DeliveryFee  decimal.Decimal
	GrandTotal   decimal.Decimal
	Status       Status
	Address      Address
	Notes        string
	PlacedAt     time.Time
	ConfirmedAt  *time.Time
	DeliveredAt  *time.Time
	Payment      Payment
	CreatedAt    time.Time
	UpdatedAt    time.Time

	// Version backs the repository's compare-and-swap update; it is never
	// interpreted by the domain itself.
	Version int64
}

// NewOrder assembles a pending order. Totals are computed once here and are
// fixed for the lifetime of the order.
func NewOrder(customerID, restaurantID string, items []LineItem, deliveryFee decimal.Decimal, address Address, notes string, now time.Time) (*Order, error) {
	if len(items) == 0 {
		return nil, ErrEmptyItems
	}
	subtotal := decimal.Zero
	for _, item := range items {
		if item.Quantity < 1 {
			return nil, ErrInvalidQuantity
		}
		subtotal = subtotal.Add(item.Subtotal)
	}
	subtotal = subtotal.Round(2)
	fee := deliveryFee.Round(2)
	return &Order{
		CustomerID:   customerID,
		RestaurantID: restaurantID,
		Items:        items,
		Subtotal:     subtotal,
		DeliveryFee:  fee,
		GrandTotal:   subtotal.Add(fee).Round(2),
		Status:       StatusPending,
		Address:      address,
		Notes:        notes,
		PlacedAt:     now,
	}, nil
}

// CanTransitionTo reports whether target is reachable from the current status.
func (o *Order) CanTransitionTo(target Status) bool {
	for _, next := range transitions[o.Status] {
		if next == target {
			return true
		}
	}
	return false
}

// TransitionTo moves the order along a legal edge, stamping the confirmation
// or delivery timestamp where the target requires one.
func (o *Order) TransitionTo(target Status, now time.Time) error {
	if !ValidStatus(target) {
		return fmt.Errorf("%w: %s", ErrUnknownStatus, target)
	}
	if !o.CanTransitionTo(target) {
		return &InvalidTransitionError{From: o.Status, To: target}
	}
	o.Status = target
	switch target {
	case StatusConfirmed:
		ts := now
		o.ConfirmedAt = &ts
	case StatusDelivered:
		ts := now
		o.DeliveredAt = &ts
	}
	return nil
}

// Cancelable reports whether the order may still move to CANCELED.
func (o *Order) Cancelable() bool {
	return o.Status != StatusDelivered && o.Status != StatusCanceled
}

// Payable reports whether a payment attempt may proceed.
func (o *Order) Payable() bool {
	switch o.Status {
	case StatusPending, StatusConfirmed, StatusPaymentFailed:
		return o.Payment.TransactionID == ""
	default:
		return false
	}
}

// Cancel moves the order to CANCELED.
func (o *Order) Cancel() error {
	if !o.Cancelable() {
		return ErrNotCancelable
	}
	o.Status = StatusCanceled
	return nil
}

// MarkPaid records the settlement and moves the order to PAID in one step.
// It is the only mutation allowed to set the transaction id.
func (o *Order) MarkPaid(transactionID, method, provider string, now time.Time) error {
	if !o.Payable() {
		return ErrNotPayable
	}
	o.Status = StatusPaid
	ts := now
	o.Payment = Payment{
		TransactionID: transactionID,
		Method:        method,
		Provider:      provider,
		PaidAt:        &ts,
	}
	return nil
}

// MarkPaymentFailed records a declined or failed payment attempt reported by
// the provider; only a pending order may fail this way.
func (o *Order) MarkPaymentFailed() error {
	if o.Status != StatusPending {
		return ErrNotPendingPayment
	}
	o.Status = StatusPaymentFailed
	return nil
}

// MarkRefunded stamps the refund metadata without changing status. A second
// notification for the same charge is a no-op; the return value reports
// whether the order changed.
func (o *Order) MarkRefunded(refundID string, now time.Time) bool {
	if o.Payment.RefundID != "" {
		return false
	}
	ts := now
	o.Payment.RefundID = refundID
	o.Payment.RefundedAt = &ts
	return true
}
