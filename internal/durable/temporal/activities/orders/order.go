package orders

import (
	"context"
	"errors"

	"go.temporal.io/sdk/activity"

	orderstypes "github.com/deliverly/order-api/internal/domains/orders/application/types"
	"github.com/deliverly/order-api/internal/domains/orders/domain"
	ordersports "github.com/deliverly/order-api/internal/domains/orders/ports"
)

// PlaceOrderActivityName persists a new order through the application service.
const PlaceOrderActivityName = "orders.activities.PlaceOrder"

// Activities groups activities that operate on the ordering bounded context.
type Activities struct {
	service ordersports.Service
}

// NewActivities wires the ordering service into the Temporal activities bundle.
func NewActivities(service ordersports.Service) *Activities {
	return &Activities{service: service}
}

// PlaceOrder runs the CreateOrder use case and returns the placed order.
func (a *Activities) PlaceOrder(ctx context.Context, input orderstypes.CreateOrderInput) (*domain.Order, error) {
	logger := activity.GetLogger(ctx)
	if a == nil || a.service == nil {
		logger.Error("order placement activity not initialized")
		return nil, errors.New("order placement activity not initialized")
	}
	logger.Info("PlaceOrder activity started", "customerId", input.CustomerID, "restaurantId", input.RestaurantID)
	order, err := a.service.CreateOrder(ctx, input)
	if err != nil {
		logger.Error("PlaceOrder activity failed", "customerId", input.CustomerID, "error", err)
		return nil, err
	}
	logger.Info("PlaceOrder activity completed", "orderId", order.ID, "orderNumber", order.Number)
	return order, nil
}
