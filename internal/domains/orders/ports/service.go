package ports

import (
	"context"

	orderstypes "github.com/deliverly/order-api/internal/domains/orders/application/types"
	"github.com/deliverly/order-api/internal/domains/orders/domain"
)

// Service exposes the ordering use cases to adapters.
type Service interface {
	CreateOrder(ctx context.Context, input orderstypes.CreateOrderInput) (*domain.Order, error)
	PayOrder(ctx context.Context, input orderstypes.PayOrderInput) (*orderstypes.PayOrderResult, error)
	CancelOrder(ctx context.Context, input orderstypes.CancelOrderInput) (*domain.Order, error)
	UpdateOrderStatus(ctx context.Context, input orderstypes.UpdateStatusInput) (*domain.Order, error)
	GetOrder(ctx context.Context, id string) (*domain.Order, error)
	ListOrders(ctx context.Context, filter orderstypes.ListOrdersFilter) ([]*domain.Order, error)
	DashboardStats(ctx context.Context) (*orderstypes.DashboardStats, error)
}
