package httpapi

import (
	"time"

	"github.com/shopspring/decimal"

	orderstypes "github.com/deliverly/order-api/internal/domains/orders/application/types"
	"github.com/deliverly/order-api/internal/domains/orders/domain"
)

// AddressPayload is the HTTP representation of a delivery address.
type AddressPayload struct {
	Street     string `json:"street"`
	Number     string `json:"number"`
	Complement string `json:"complement,omitempty"`
	District   string `json:"district,omitempty"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postalCode"`
}

// CreateOrderRequest captures the order placement payload.
type CreateOrderRequest struct {
	CustomerID   string           `json:"customerId" binding:"required"`
	RestaurantID string           `json:"restaurantId" binding:"required"`
	Items        []RequestedItem  `json:"items" binding:"required"`
	DeliveryFee  *decimal.Decimal `json:"deliveryFee,omitempty"`
	Address      *AddressPayload  `json:"deliveryAddress,omitempty"`
	Notes        string           `json:"notes,omitempty"`
}

// RequestedItem references a menu item by id.
type RequestedItem struct {
	MenuItemID string `json:"menuItemId" binding:"required"`
	Quantity   int    `json:"quantity" binding:"required"`
}

// PayOrderRequest captures the settlement payload. The idempotency key rides
// in the Idempotency-Key header, not the body.
type PayOrderRequest struct {
	Method     string            `json:"method" binding:"required"`
	MethodData map[string]string `json:"methodData,omitempty"`
}

// CancelOrderRequest captures the cancellation payload.
type CancelOrderRequest struct {
	Reason     string `json:"reason,omitempty"`
	CanceledBy string `json:"canceledBy,omitempty"`
}

// UpdateStatusRequest captures a fulfillment transition.
type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// LineItemView is the HTTP representation of an order line.
type LineItemView struct {
	MenuItemID string          `json:"menuItemId"`
	Name       string          `json:"name"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unitPrice"`
	Subtotal   decimal.Decimal `json:"subtotal"`
}

// PaymentView is the settlement sub-record of an order response.
type PaymentView struct {
	TransactionID string     `json:"transactionId,omitempty"`
	Method        string     `json:"method,omitempty"`
	Provider      string     `json:"provider,omitempty"`
	PaidAt        *time.Time `json:"paidAt,omitempty"`
	RefundID      string     `json:"refundId,omitempty"`
	RefundedAt    *time.Time `json:"refundedAt,omitempty"`
}

// OrderView is the HTTP representation of an order.
type OrderView struct {
	ID           string          `json:"id"`
	Number       string          `json:"number"`
	CustomerID   string          `json:"customerId"`
	RestaurantID string          `json:"restaurantId"`
	Items        []LineItemView  `json:"items"`
	Subtotal     decimal.Decimal `json:"subtotal"`
	DeliveryFee  decimal.Decimal `json:"deliveryFee"`
	GrandTotal   decimal.Decimal `json:"grandTotal"`
	Status       string          `json:"status"`
	Address      AddressPayload  `json:"deliveryAddress"`
	Notes        string          `json:"notes,omitempty"`
	PlacedAt     time.Time       `json:"placedAt"`
	ConfirmedAt  *time.Time      `json:"confirmedAt,omitempty"`
	DeliveredAt  *time.Time      `json:"deliveredAt,omitempty"`
	Payment      *PaymentView    `json:"payment,omitempty"`
}

// PaymentSummaryView reports a settlement attempt's outcome.
type PaymentSummaryView struct {
	TransactionID    string `json:"transactionId"`
	Status           string `json:"status"`
	Message          string `json:"message,omitempty"`
	AlreadyProcessed bool   `json:"alreadyProcessed,omitempty"`
	Simulated        bool   `json:"simulated,omitempty"`
}

// PayOrderResponse pairs the updated order with its payment summary.
type PayOrderResponse struct {
	Order   OrderView          `json:"order"`
	Payment PaymentSummaryView `json:"payment"`
}

// DashboardView aggregates counts and delivered revenue.
type DashboardView struct {
	Pending        int64           `json:"pending"`
	Confirmed      int64           `json:"confirmed"`
	Delivered      int64           `json:"delivered"`
	DeliveredTotal decimal.Decimal `json:"deliveredTotal"`
}

func toCreateInput(req CreateOrderRequest, idempotencyKey string) orderstypes.CreateOrderInput {
	items := make([]orderstypes.RequestedItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, orderstypes.RequestedItem{
			MenuItemID: item.MenuItemID,
			Quantity:   item.Quantity,
		})
	}
	input := orderstypes.CreateOrderInput{
		CustomerID:     req.CustomerID,
		RestaurantID:   req.RestaurantID,
		Items:          items,
		DeliveryFee:    req.DeliveryFee,
		Notes:          req.Notes,
		IdempotencyKey: idempotencyKey,
	}
	if req.Address != nil {
		input.Address = &domain.Address{
			Street:     req.Address.Street,
			Number:     req.Address.Number,
			Complement: req.Address.Complement,
			District:   req.Address.District,
			City:       req.Address.City,
			State:      req.Address.State,
			PostalCode: req.Address.PostalCode,
		}
	}
	return input
}

func toOrderView(order *domain.Order) OrderView {
	items := make([]LineItemView, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, LineItemView{
			MenuItemID: item.MenuItemID,
			Name:       item.Name,
			Quantity:   item.Quantity,
			UnitPrice:  item.UnitPrice,
			Subtotal:   item.Subtotal,
		})
	}
	view := OrderView{
		ID:           order.ID,
		Number:       order.Number,
		CustomerID:   order.CustomerID,
		RestaurantID: order.RestaurantID,
		Items:        items,
		Subtotal:     order.Subtotal,
		DeliveryFee:  order.DeliveryFee,
		GrandTotal:   order.GrandTotal,
		Status:       string(order.Status),
		Address: AddressPayload{
			Street:     order.Address.Street,
			Number:     order.Address.Number,
			Complement: order.Address.Complement,
			District:   order.Address.District,
			City:       order.Address.City,
			State:      order.Address.State,
			PostalCode: order.Address.PostalCode,
		},
		Notes:       order.Notes,
		PlacedAt:    order.PlacedAt,
		ConfirmedAt: order.ConfirmedAt,
		DeliveredAt: order.DeliveredAt,
	}
	if order.Payment.TransactionID != "" || order.Payment.PaidAt != nil {
		view.Payment = &PaymentView{
			TransactionID: order.Payment.TransactionID,
			Method:        order.Payment.Method,
			Provider:      order.Payment.Provider,
			PaidAt:        order.Payment.PaidAt,
			RefundID:      order.Payment.RefundID,
			RefundedAt:    order.Payment.RefundedAt,
		}
	}
	return view
}

func toOrderViews(orders []*domain.Order) []OrderView {
	views := make([]OrderView, 0, len(orders))
	for _, order := range orders {
		views = append(views, toOrderView(order))
	}
	return views
}
