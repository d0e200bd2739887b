package ports

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	orderstypes "github.com/deliverly/order-api/internal/domains/orders/application/types"
	"github.com/deliverly/order-api/internal/domains/orders/domain"
)

var (
	// ErrNotFound signals the order does not exist.
	ErrNotFound = errors.New("order not found")
	// ErrConflict signals a compare-and-swap update lost against a
	// concurrent writer; callers reload and re-evaluate their guard.
	ErrConflict = errors.New("order modified concurrently")
)

// Repository is the persistence boundary of the ordering context. Updates are
// conditional writes: Update swaps on the aggregate version, UpdateStatus on
// the current status, so a concurrent pay and webhook reconcile can never
// both win.
type Repository interface {
	// Insert persists a new order, assigning its id and sequence number
	// from a monotonic source.
	Insert(ctx context.Context, order *domain.Order) (*domain.Order, error)
	FindByID(ctx context.Context, id string) (*domain.Order, error)
	// FindByTransactionID locates the order holding the given provider
	// transaction id, or ErrNotFound.
	FindByTransactionID(ctx context.Context, transactionID string) (*domain.Order, error)
	// Update writes the full record iff the stored version still matches
	// order.Version; on success the returned copy carries the new version.
	Update(ctx context.Context, order *domain.Order) (*domain.Order, error)
	// UpdateStatus atomically moves an order from one status to another,
	// stamping confirmation/delivery timestamps where the target requires
	// them. ErrConflict when the stored status is no longer from.
	UpdateStatus(ctx context.Context, id string, from, to domain.Status) (*domain.Order, error)
	List(ctx context.Context, filter orderstypes.ListOrdersFilter) ([]*domain.Order, error)
	CountByStatus(ctx context.Context, status domain.Status) (int64, error)
	SumTotalByStatus(ctx context.Context, status domain.Status) (decimal.Decimal, error)
}
