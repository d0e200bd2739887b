package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	orderstypes "github.com/deliverly/order-api/internal/domains/orders/application/types"
	"github.com/deliverly/order-api/internal/domains/orders/domain"
	"github.com/deliverly/order-api/internal/domains/orders/ports"
)

// DefaultDeliveryFee is the platform-wide fee applied when the caller does
// not supply one.
var DefaultDeliveryFee = decimal.RequireFromString("5.00")

// Event bus subjects for the ordering context.
const (
	SubjectOrderCreated  = "order.created"
	SubjectOrderPaid     = "order.paid"
	SubjectOrderCanceled = "order.canceled"
)

// Service orchestrates the ordering use cases.
type Service struct {
	repo        ports.Repository
	customers   ports.CustomerDirectory
	restaurants ports.RestaurantDirectory
	menu        ports.MenuCatalog
	gateway     ports.PaymentGateway
	policy      ports.PolicyClient
	bus         ports.MessageBus
	metrics     ports.PaymentMetrics
	logger      *slog.Logger
	now         func() time.Time
}

// Option configures optional service collaborators.
type Option func(*Service)

// WithPolicyClient plugs in the authorization gate.
func WithPolicyClient(policy ports.PolicyClient) Option {
	return func(s *Service) {
		if policy != nil {
			s.policy = policy
		}
	}
}

// WithMessageBus plugs in the event bus.
func WithMessageBus(bus ports.MessageBus) Option {
	return func(s *Service) {
		if bus != nil {
			s.bus = bus
		}
	}
}

// WithPaymentMetrics plugs in the payment metrics sink.
func WithPaymentMetrics(metrics ports.PaymentMetrics) Option {
	return func(s *Service) {
		if metrics != nil {
			s.metrics = metrics
		}
	}
}

// WithLogger injects a slog logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the time source for deterministic testing.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService wires the ordering service with its dependencies. Optional
// collaborators default to their no-op variants.
func NewService(
	repo ports.Repository,
	customers ports.CustomerDirectory,
	restaurants ports.RestaurantDirectory,
	menu ports.MenuCatalog,
	gateway ports.PaymentGateway,
	opts ...Option,
) *Service {
	s := &Service{
		repo:        repo,
		customers:   customers,
		restaurants: restaurants,
		menu:        menu,
		gateway:     gateway,
		policy:      ports.AllowAllPolicy{},
		bus:         ports.NoopBus{},
		metrics:     ports.NoopPaymentMetrics{},
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:         time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// CreateOrder validates the request against the catalog collaborators,
// snapshots prices into line items, computes totals once, and persists the
// pending order.
func (s *Service) CreateOrder(ctx context.Context, input orderstypes.CreateOrderInput) (*domain.Order, error) {
	if err := s.authorize(ctx, ports.AuthzRequest{
		Action:   "create_order",
		Resource: map[string]any{"type": "order", "restaurantId": input.RestaurantID},
		Subject:  map[string]any{"id": input.CustomerID, "type": "customer"},
	}); err != nil {
		return nil, err
	}

	customer, err := s.customers.FindByID(ctx, input.CustomerID)
	if err != nil {
		return nil, fmt.Errorf("resolve customer %s: %w", input.CustomerID, err)
	}
	restaurant, err := s.restaurants.FindByID(ctx, input.RestaurantID)
	if err != nil {
		return nil, fmt.Errorf("resolve restaurant %s: %w", input.RestaurantID, err)
	}
	if !restaurant.Active {
		return nil, fmt.Errorf("%w: restaurant %q is not active", ErrInvalidState, restaurant.Name)
	}

	items := make([]domain.LineItem, 0, len(input.Items))
	for _, requested := range input.Items {
		menuItem, err := s.menu.FindItemByID(ctx, requested.MenuItemID)
		if err != nil {
			return nil, fmt.Errorf("resolve menu item %s: %w", requested.MenuItemID, err)
		}
		if !menuItem.Available {
			return nil, fmt.Errorf("%w: menu item %q is not available", ErrInvalidState, menuItem.Name)
		}
		item, err := domain.NewLineItem(menuItem.ID, menuItem.Name, requested.Quantity, menuItem.Price)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	fee := DefaultDeliveryFee
	if input.DeliveryFee != nil {
		fee = *input.DeliveryFee
	}
	address := customer.Address
	if input.Address != nil {
		address = *input.Address
	}

	order, err := domain.NewOrder(input.CustomerID, input.RestaurantID, items, fee, address, input.Notes, s.now())
	if err != nil {
		return nil, err
	}
	saved, err := s.repo.Insert(ctx, order)
	if err != nil {
		return nil, fmt.Errorf("persist order: %w", err)
	}
	s.logger.LogAttrs(ctx, slog.LevelInfo, "order created",
		slog.String("order.id", saved.ID), slog.String("order.number", saved.Number))

	eventItems := make([]domain.EventLineItem, 0, len(saved.Items))
	for _, item := range saved.Items {
		eventItems = append(eventItems, domain.EventLineItem{
			MenuItemID: item.MenuItemID,
			Name:       item.Name,
			Quantity:   item.Quantity,
			UnitPrice:  item.UnitPrice,
		})
	}
	s.publish(ctx, SubjectOrderCreated, domain.OrderCreated{
		BaseEvent:    domain.BaseEvent{Timestamp: s.now()},
		OrderID:      saved.ID,
		Number:       saved.Number,
		CustomerID:   saved.CustomerID,
		RestaurantID: saved.RestaurantID,
		Subtotal:     saved.Subtotal,
		GrandTotal:   saved.GrandTotal,
		Items:        eventItems,
	})
	return saved, nil
}

// PayOrder charges the configured gateway for the order's grand total. A
// repeated request for an already-paid order returns the existing transaction
// without touching the gateway again.
func (s *Service) PayOrder(ctx context.Context, input orderstypes.PayOrderInput) (*orderstypes.PayOrderResult, error) {
	order, err := s.repo.FindByID(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}

	if order.Status == domain.StatusPaid && order.Payment.TransactionID != "" {
		s.logger.LogAttrs(ctx, slog.LevelInfo, "payment already processed",
			slog.String("order.id", order.ID), slog.String("transaction.id", order.Payment.TransactionID))
		return &orderstypes.PayOrderResult{
			Order: order,
			Payment: orderstypes.PaymentSummary{
				TransactionID:    order.Payment.TransactionID,
				Status:           ports.PaymentApproved,
				Message:          "payment already processed",
				AlreadyProcessed: true,
			},
		}, nil
	}
	if !order.Payable() {
		return nil, fmt.Errorf("%w: order %s cannot be paid in status %s", ErrInvalidState, order.ID, order.Status)
	}

	idempotencyKey := input.IdempotencyKey
	if idempotencyKey == "" {
		idempotencyKey = DerivePaymentIdempotencyKey(order)
	}

	metadata := map[string]string{
		"number":     order.Number,
		"customerId": order.CustomerID,
	}
	for k, v := range input.MethodData {
		metadata[k] = v
	}

	provider := s.gateway.ProviderName()
	s.metrics.RecordAttempt(ctx, provider)
	started := s.now()
	result, err := s.gateway.ProcessPayment(ctx, ports.PaymentRequest{
		Amount:         order.GrandTotal,
		Method:         input.Method,
		OrderID:        order.ID,
		IdempotencyKey: idempotencyKey,
		Metadata:       metadata,
	})
	s.metrics.ObserveLatency(ctx, provider, s.now().Sub(started))
	if err != nil {
		s.metrics.RecordOutcome(ctx, provider, ports.OutcomeError)
		s.logger.LogAttrs(ctx, slog.LevelError, "payment gateway call failed",
			slog.String("order.id", order.ID), slog.String("error", err.Error()))
		return nil, fmt.Errorf("process payment for order %s: %w", order.ID, err)
	}
	if !result.Success {
		s.metrics.RecordOutcome(ctx, provider, ports.OutcomeDeclined)
		s.logger.LogAttrs(ctx, slog.LevelWarn, "payment declined",
			slog.String("order.id", order.ID), slog.String("reason", result.Reason))
		return nil, &PaymentDeclinedError{
			Message: declineMessage(result),
			Reason:  result.Reason,
			Raw:     result.Raw,
		}
	}
	s.metrics.RecordOutcome(ctx, provider, ports.OutcomeApproved)

	if err := order.MarkPaid(result.TransactionID, input.Method, provider, s.now()); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidState, err)
	}
	saved, err := s.repo.Update(ctx, order)
	if errors.Is(err, ports.ErrConflict) {
		// The webhook reconciler won the write. With a shared idempotency key
		// both paths observed the same provider charge, so the stored record
		// is the answer.
		return s.resolvePayConflict(ctx, order.ID, result)
	}
	if err != nil {
		return nil, fmt.Errorf("persist paid order %s: %w", order.ID, err)
	}
	s.logger.LogAttrs(ctx, slog.LevelInfo, "payment processed",
		slog.String("order.id", saved.ID), slog.String("transaction.id", result.TransactionID))

	s.publish(ctx, SubjectOrderPaid, domain.OrderPaid{
		BaseEvent:     domain.BaseEvent{Timestamp: s.now()},
		OrderID:       saved.ID,
		Number:        saved.Number,
		Amount:        saved.GrandTotal,
		PaymentMethod: input.Method,
		TransactionID: result.TransactionID,
	})
	return &orderstypes.PayOrderResult{
		Order: saved,
		Payment: orderstypes.PaymentSummary{
			TransactionID: result.TransactionID,
			Status:        result.Status,
			Message:       result.Message,
			Simulated:     result.Simulated,
		},
	}, nil
}

func (s *Service) resolvePayConflict(ctx context.Context, orderID string, result *ports.PaymentResult) (*orderstypes.PayOrderResult, error) {
	current, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if current.Status == domain.StatusPaid && current.Payment.TransactionID != "" {
		return &orderstypes.PayOrderResult{
			Order: current,
			Payment: orderstypes.PaymentSummary{
				TransactionID:    current.Payment.TransactionID,
				Status:           ports.PaymentApproved,
				Message:          "payment already processed",
				AlreadyProcessed: true,
				Simulated:        result.Simulated,
			},
		}, nil
	}
	return nil, fmt.Errorf("%w: order %s changed while settling payment", ports.ErrConflict, orderID)
}

// CancelOrder moves a cancelable order to CANCELED after the policy gate
// approves the actor.
func (s *Service) CancelOrder(ctx context.Context, input orderstypes.CancelOrderInput) (*domain.Order, error) {
	order, err := s.repo.FindByID(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, ports.AuthzRequest{
		Action: "cancel_order",
		Resource: map[string]any{
			"type":       "order",
			"id":         order.ID,
			"status":     string(order.Status),
			"customerId": order.CustomerID,
		},
		Subject: map[string]any{"id": input.CanceledBy, "type": "user"},
	}); err != nil {
		return nil, err
	}
	from := order.Status
	if err := order.Cancel(); err != nil {
		return nil, fmt.Errorf("%w: order %s cannot be canceled in status %s", err, order.ID, from)
	}

	updated, err := s.repo.UpdateStatus(ctx, order.ID, from, domain.StatusCanceled)
	if err != nil {
		return nil, fmt.Errorf("cancel order %s: %w", order.ID, err)
	}
	s.logger.LogAttrs(ctx, slog.LevelInfo, "order canceled",
		slog.String("order.id", updated.ID), slog.String("reason", input.Reason))

	s.publish(ctx, SubjectOrderCanceled, domain.OrderCanceled{
		BaseEvent:  domain.BaseEvent{Timestamp: s.now()},
		OrderID:    updated.ID,
		Number:     updated.Number,
		Reason:     input.Reason,
		CanceledBy: input.CanceledBy,
	})
	return updated, nil
}

// UpdateOrderStatus moves an order along the state machine. Internal/admin
// operation: no authorization gate, no events.
func (s *Service) UpdateOrderStatus(ctx context.Context, input orderstypes.UpdateStatusInput) (*domain.Order, error) {
	order, err := s.repo.FindByID(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}
	if !domain.ValidStatus(input.Status) {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownStatus, input.Status)
	}
	if !order.CanTransitionTo(input.Status) {
		return nil, &domain.InvalidTransitionError{From: order.Status, To: input.Status}
	}
	updated, err := s.repo.UpdateStatus(ctx, order.ID, order.Status, input.Status)
	if err != nil {
		return nil, fmt.Errorf("update order %s status: %w", order.ID, err)
	}
	return updated, nil
}

// GetOrder loads a single order.
func (s *Service) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	return s.repo.FindByID(ctx, id)
}

// ListOrders returns orders matching the filter, newest first.
func (s *Service) ListOrders(ctx context.Context, filter orderstypes.ListOrdersFilter) ([]*domain.Order, error) {
	return s.repo.List(ctx, filter)
}

// DashboardStats aggregates counts and delivered revenue for the admin view.
func (s *Service) DashboardStats(ctx context.Context) (*orderstypes.DashboardStats, error) {
	pending, err := s.repo.CountByStatus(ctx, domain.StatusPending)
	if err != nil {
		return nil, err
	}
	confirmed, err := s.repo.CountByStatus(ctx, domain.StatusConfirmed)
	if err != nil {
		return nil, err
	}
	delivered, err := s.repo.CountByStatus(ctx, domain.StatusDelivered)
	if err != nil {
		return nil, err
	}
	total, err := s.repo.SumTotalByStatus(ctx, domain.StatusDelivered)
	if err != nil {
		return nil, err
	}
	return &orderstypes.DashboardStats{
		Pending:        pending,
		Confirmed:      confirmed,
		Delivered:      delivered,
		DeliveredTotal: total,
	}, nil
}

func (s *Service) authorize(ctx context.Context, req ports.AuthzRequest) error {
	if !s.policy.Enabled() {
		return nil
	}
	decision, err := s.policy.Authorize(ctx, req)
	if err != nil {
		return fmt.Errorf("authorize %s: %w", req.Action, err)
	}
	if !decision.Allowed {
		return &ForbiddenError{Action: req.Action, Reason: decision.Reason}
	}
	return nil
}

// publish emits a domain event when the bus is enabled. Failures are logged
// and swallowed: event publication never rolls back a committed use case.
func (s *Service) publish(ctx context.Context, subject string, event domain.Event) {
	if !s.bus.Enabled() {
		return
	}
	if err := s.bus.Publish(ctx, subject, event); err != nil {
		s.logger.LogAttrs(ctx, slog.LevelError, "event publish failed",
			slog.String("subject", subject), slog.String("error", err.Error()))
	}
}

func declineMessage(result *ports.PaymentResult) string {
	if result.Message != "" {
		return result.Message
	}
	return "payment declined by provider"
}

var _ ports.Service = (*Service)(nil)
