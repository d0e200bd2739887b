package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	orderstypes "github.com/deliverly/order-api/internal/domains/orders/application/types"
	"github.com/deliverly/order-api/internal/domains/orders/domain"
	"github.com/deliverly/order-api/internal/domains/orders/ports"
)

var _ ports.Repository = (*Repository)(nil)

// Repository is an in-memory order persistence adapter for development and
// tests. Sequence numbers and conditional-write semantics match the postgres
// adapter.
type Repository struct {
	mu     sync.RWMutex
	orders map[string]*domain.Order
	nextNo int64
	now    func() time.Time
}

func NewRepository() *Repository {
	return &Repository{
		orders: map[string]*domain.Order{},
		now:    time.Now,
	}
}

// WithClock overrides the time source for deterministic testing.
func (r *Repository) WithClock(now func() time.Time) {
	if now != nil {
		r.now = now
	}
}

func (r *Repository) Insert(_ context.Context, order *domain.Order) (*domain.Order, error) {
	if order == nil {
		return nil, errors.New("order is nil")
	}
	clone := cloneOrder(order)

	r.mu.Lock()
	defer r.mu.Unlock()
	if clone.ID == "" {
		clone.ID = uuid.NewString()
	}
	if clone.Number == "" {
		r.nextNo++
		clone.Number = fmt.Sprintf("ORD%06d", r.nextNo)
	}
	now := r.now()
	clone.CreatedAt = now
	clone.UpdatedAt = now
	clone.Version = 1
	r.orders[clone.ID] = clone
	return cloneOrder(clone), nil
}

func (r *Repository) FindByID(_ context.Context, id string) (*domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	order, ok := r.orders[id]
	if !ok {
		return nil, ports.ErrNotFound
	}
	return cloneOrder(order), nil
}

func (r *Repository) FindByTransactionID(_ context.Context, transactionID string) (*domain.Order, error) {
	if transactionID == "" {
		return nil, ports.ErrNotFound
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, order := range r.orders {
		if order.Payment.TransactionID == transactionID {
			return cloneOrder(order), nil
		}
	}
	return nil, ports.ErrNotFound
}

func (r *Repository) Update(_ context.Context, order *domain.Order) (*domain.Order, error) {
	if order == nil {
		return nil, errors.New("order is nil")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.orders[order.ID]
	if !ok {
		return nil, ports.ErrNotFound
	}
	if stored.Version != order.Version {
		return nil, ports.ErrConflict
	}
	clone := cloneOrder(order)
	clone.Version = stored.Version + 1
	clone.UpdatedAt = r.now()
	r.orders[clone.ID] = clone
	return cloneOrder(clone), nil
}

func (r *Repository) UpdateStatus(_ context.Context, id string, from, to domain.Status) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.orders[id]
	if !ok {
		return nil, ports.ErrNotFound
	}
	if stored.Status != from {
		return nil, ports.ErrConflict
	}
	now := r.now()
	clone := cloneOrder(stored)
	clone.Status = to
	switch to {
	case domain.StatusConfirmed:
		ts := now
		clone.ConfirmedAt = &ts
	case domain.StatusDelivered:
		ts := now
		clone.DeliveredAt = &ts
	}
	clone.Version = stored.Version + 1
	clone.UpdatedAt = now
	r.orders[id] = clone
	return cloneOrder(clone), nil
}

func (r *Repository) List(_ context.Context, filter orderstypes.ListOrdersFilter) ([]*domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := make([]*domain.Order, 0, len(r.orders))
	for _, order := range r.orders {
		if !matches(order, filter) {
			continue
		}
		list = append(list, cloneOrder(order))
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].PlacedAt.After(list[j].PlacedAt)
	})
	return list, nil
}

func (r *Repository) CountByStatus(_ context.Context, status domain.Status) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var count int64
	for _, order := range r.orders {
		if order.Status == status {
			count++
		}
	}
	return count, nil
}

func (r *Repository) SumTotalByStatus(_ context.Context, status domain.Status) (decimal.Decimal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	total := decimal.Zero
	for _, order := range r.orders {
		if order.Status == status {
			total = total.Add(order.GrandTotal)
		}
	}
	return total, nil
}

func matches(order *domain.Order, filter orderstypes.ListOrdersFilter) bool {
	if filter.CustomerID != "" && order.CustomerID != filter.CustomerID {
		return false
	}
	if filter.RestaurantID != "" && order.RestaurantID != filter.RestaurantID {
		return false
	}
	if filter.Status != "" && order.Status != filter.Status {
		return false
	}
	if filter.PlacedFrom != nil && order.PlacedAt.Before(*filter.PlacedFrom) {
		return false
	}
	if filter.PlacedTo != nil && order.PlacedAt.After(*filter.PlacedTo) {
		return false
	}
	return true
}

func cloneOrder(order *domain.Order) *domain.Order {
	clone := *order
	clone.Items = append([]domain.LineItem(nil), order.Items...)
	return &clone
}
