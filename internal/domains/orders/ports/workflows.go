package ports

import (
	"context"

	orderstypes "github.com/deliverly/order-api/internal/domains/orders/application/types"
	"github.com/deliverly/order-api/internal/domains/orders/domain"
)

// WorkflowOrchestrator exposes durable workflow operations required by the
// ordering context.
type WorkflowOrchestrator interface {
	PlaceOrder(ctx context.Context, input orderstypes.CreateOrderInput) (*domain.Order, error)
}
