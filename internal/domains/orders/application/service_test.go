package application

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	ordersmemory "github.com/deliverly/order-api/internal/domains/orders/adapters/memory"
	orderstypes "github.com/deliverly/order-api/internal/domains/orders/application/types"
	"github.com/deliverly/order-api/internal/domains/orders/domain"
	"github.com/deliverly/order-api/internal/domains/orders/ports"
)

const (
	testCustomerID   = "11111111-1111-1111-1111-111111111111"
	testRestaurantID = "22222222-2222-2222-2222-222222222222"
	testPizzaID      = "33333333-3333-3333-3333-333333333333"
	testBreadID      = "44444444-4444-4444-4444-444444444444"
)

// fakeGateway scripts payment results and records every request it sees.
type fakeGateway struct {
	result   *ports.PaymentResult
	err      error
	requests []ports.PaymentRequest
}

func (g *fakeGateway) ProcessPayment(_ context.Context, req ports.PaymentRequest) (*ports.PaymentResult, error) {
	g.requests = append(g.requests, req)
	if g.err != nil {
		return nil, g.err
	}
	if g.result != nil {
		return g.result, nil
	}
	return &ports.PaymentResult{
		Success:       true,
		TransactionID: fmt.Sprintf("TX-%d", len(g.requests)),
		Status:        ports.PaymentApproved,
		Message:       "approved",
	}, nil
}

func (g *fakeGateway) Refund(context.Context, string, decimal.Decimal) (*ports.RefundResult, error) {
	return &ports.RefundResult{Success: true, RefundID: "RF-1"}, nil
}

func (g *fakeGateway) Enabled() bool { return true }

func (g *fakeGateway) ProviderName() string { return "fake" }

func (g *fakeGateway) Status(context.Context) ports.GatewayStatus {
	return ports.GatewayStatus{State: ports.GatewayHealthy}
}

// denyPolicy refuses every action.
type denyPolicy struct{ reason string }

func (denyPolicy) Enabled() bool { return true }

func (p denyPolicy) Authorize(context.Context, ports.AuthzRequest) (ports.AuthzDecision, error) {
	return ports.AuthzDecision{Allowed: false, Reason: p.reason}, nil
}

// captureBus records published subjects.
type captureBus struct{ subjects []string }

func (b *captureBus) Enabled() bool { return true }

func (b *captureBus) Publish(_ context.Context, subject string, _ any) error {
	b.subjects = append(b.subjects, subject)
	return nil
}

func (b *captureBus) Subscribe(context.Context, string, func([]byte)) error { return nil }

func (b *captureBus) Close(context.Context) error { return nil }

type testEnv struct {
	repo    *ordersmemory.Repository
	gateway *fakeGateway
	bus     *captureBus
	svc     *Service
}

func newTestEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()
	repo := ordersmemory.NewRepository()
	customers, restaurants, menu := ordersmemory.NewDemoCatalog()
	gateway := &fakeGateway{}
	bus := &captureBus{}
	allOpts := append([]Option{WithMessageBus(bus)}, opts...)
	svc := NewService(repo, customers, restaurants, menu, gateway, allOpts...)
	return &testEnv{repo: repo, gateway: gateway, bus: bus, svc: svc}
}

func createInput() orderstypes.CreateOrderInput {
	return orderstypes.CreateOrderInput{
		CustomerID:   testCustomerID,
		RestaurantID: testRestaurantID,
		Items: []orderstypes.RequestedItem{
			{MenuItemID: testPizzaID, Quantity: 2},
		},
	}
}

func placeOrder(t *testing.T, env *testEnv) *domain.Order {
	t.Helper()
	order, err := env.svc.CreateOrder(context.Background(), createInput())
	require.NoError(t, err)
	return order
}

func TestCreateOrder_Success(t *testing.T) {
	env := newTestEnv(t)

	order, err := env.svc.CreateOrder(context.Background(), createInput())
	require.NoError(t, err)
	require.NotEmpty(t, order.ID)
	require.Equal(t, "ORD000001", order.Number)
	require.Equal(t, domain.StatusPending, order.Status)
	// 2 x 45.90 plus the default delivery fee.
	require.Equal(t, "91.80", order.Subtotal.StringFixed(2))
	require.Equal(t, "96.80", order.GrandTotal.StringFixed(2))
	require.Len(t, order.Items, 1)
	require.Equal(t, "Margherita Pizza", order.Items[0].Name)
	// The delivery address defaults to the customer's stored one.
	require.Equal(t, "São Paulo", order.Address.City)
	require.Equal(t, []string{SubjectOrderCreated}, env.bus.subjects)
}

func TestCreateOrder_DeliveryFeeOverride(t *testing.T) {
	env := newTestEnv(t)
	fee := decimal.RequireFromString("0.00")
	input := createInput()
	input.DeliveryFee = &fee

	order, err := env.svc.CreateOrder(context.Background(), input)
	require.NoError(t, err)
	require.Equal(t, "91.80", order.GrandTotal.StringFixed(2))
}

func TestCreateOrder_UnknownCustomer(t *testing.T) {
	env := newTestEnv(t)
	input := createInput()
	input.CustomerID = "99999999-9999-9999-9999-999999999999"

	_, err := env.svc.CreateOrder(context.Background(), input)
	require.True(t, IsNotFound(err))
}

func TestCreateOrder_UnavailableItemPersistsNothing(t *testing.T) {
	repo := ordersmemory.NewRepository()
	customers, restaurants, menu := ordersmemory.NewDemoCatalog()
	menu.Put(ports.MenuItem{
		ID:           "55555555-5555-5555-5555-555555555555",
		RestaurantID: testRestaurantID,
		Name:         "Seasonal Special",
		Price:        decimal.RequireFromString("30.00"),
		Available:    false,
	})
	svc := NewService(repo, customers, restaurants, menu, &fakeGateway{})

	input := createInput()
	input.Items = append(input.Items, orderstypes.RequestedItem{
		MenuItemID: "55555555-5555-5555-5555-555555555555", Quantity: 1,
	})
	_, err := svc.CreateOrder(context.Background(), input)
	require.ErrorIs(t, err, ErrInvalidState)

	orders, err := repo.List(context.Background(), orderstypes.ListOrdersFilter{})
	require.NoError(t, err)
	require.Empty(t, orders)
}

func TestCreateOrder_Forbidden(t *testing.T) {
	env := newTestEnv(t, WithPolicyClient(denyPolicy{reason: "blocked customer"}))

	_, err := env.svc.CreateOrder(context.Background(), createInput())
	var forbidden *ForbiddenError
	require.ErrorAs(t, err, &forbidden)
	require.Equal(t, "create_order", forbidden.Action)
	require.Empty(t, env.bus.subjects)

	orders, listErr := env.repo.List(context.Background(), orderstypes.ListOrdersFilter{})
	require.NoError(t, listErr)
	require.Empty(t, orders)
}

func TestPayOrder_Success(t *testing.T) {
	env := newTestEnv(t)
	order := placeOrder(t, env)

	result, err := env.svc.PayOrder(context.Background(), orderstypes.PayOrderInput{
		OrderID: order.ID,
		Method:  "card",
	})
	require.NoError(t, err)
	require.Equal(t, domain.StatusPaid, result.Order.Status)
	require.Equal(t, "TX-1", result.Payment.TransactionID)
	require.False(t, result.Payment.AlreadyProcessed)
	require.Len(t, env.gateway.requests, 1)
	require.Equal(t, "96.80", env.gateway.requests[0].Amount.StringFixed(2))
	// Without a caller key the charge uses the derived deterministic one.
	require.Equal(t, DerivePaymentIdempotencyKey(order), env.gateway.requests[0].IdempotencyKey)
	require.Equal(t, []string{SubjectOrderCreated, SubjectOrderPaid}, env.bus.subjects)
}

func TestPayOrder_RepeatedRequestSkipsGateway(t *testing.T) {
	env := newTestEnv(t)
	order := placeOrder(t, env)

	first, err := env.svc.PayOrder(context.Background(), orderstypes.PayOrderInput{OrderID: order.ID, Method: "card"})
	require.NoError(t, err)

	second, err := env.svc.PayOrder(context.Background(), orderstypes.PayOrderInput{OrderID: order.ID, Method: "card"})
	require.NoError(t, err)
	require.True(t, second.Payment.AlreadyProcessed)
	require.Equal(t, first.Payment.TransactionID, second.Payment.TransactionID)
	require.Len(t, env.gateway.requests, 1)
}

func TestPayOrder_Declined(t *testing.T) {
	env := newTestEnv(t)
	env.gateway.result = &ports.PaymentResult{
		Success: false,
		Status:  ports.PaymentDeclined,
		Message: "insufficient funds",
		Reason:  "insufficient_funds",
	}
	order := placeOrder(t, env)

	_, err := env.svc.PayOrder(context.Background(), orderstypes.PayOrderInput{OrderID: order.ID, Method: "card"})
	var declined *PaymentDeclinedError
	require.ErrorAs(t, err, &declined)
	require.Equal(t, "insufficient_funds", declined.Reason)

	// A decline leaves the order untouched so the customer may retry.
	current, err := env.repo.FindByID(context.Background(), order.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusPending, current.Status)
	require.Empty(t, current.Payment.TransactionID)
}

func TestPayOrder_GatewayUnavailable(t *testing.T) {
	env := newTestEnv(t)
	env.gateway.err = fmt.Errorf("%w: connection refused", ports.ErrGatewayUnavailable)
	order := placeOrder(t, env)

	_, err := env.svc.PayOrder(context.Background(), orderstypes.PayOrderInput{OrderID: order.ID, Method: "card"})
	require.ErrorIs(t, err, ports.ErrGatewayUnavailable)

	current, findErr := env.repo.FindByID(context.Background(), order.ID)
	require.NoError(t, findErr)
	require.Equal(t, domain.StatusPending, current.Status)
}

func TestPayOrder_NotPayable(t *testing.T) {
	env := newTestEnv(t)
	order := placeOrder(t, env)
	_, err := env.svc.CancelOrder(context.Background(), orderstypes.CancelOrderInput{OrderID: order.ID, CanceledBy: "admin"})
	require.NoError(t, err)

	_, err = env.svc.PayOrder(context.Background(), orderstypes.PayOrderInput{OrderID: order.ID, Method: "card"})
	require.ErrorIs(t, err, ErrInvalidState)
	require.Empty(t, env.gateway.requests)
}

func TestPayOrder_SimulatedGateway(t *testing.T) {
	env := newTestEnv(t)
	env.gateway.result = &ports.PaymentResult{
		Success:       true,
		TransactionID: "SIM_123",
		Status:        ports.PaymentApproved,
		Message:       "simulated approval",
		Simulated:     true,
	}
	order := placeOrder(t, env)

	result, err := env.svc.PayOrder(context.Background(), orderstypes.PayOrderInput{OrderID: order.ID, Method: "card"})
	require.NoError(t, err)
	require.True(t, result.Payment.Simulated)
	require.Equal(t, "SIM_123", result.Order.Payment.TransactionID)
}

func TestPayOrder_WebhookSettledFirst(t *testing.T) {
	env := newTestEnv(t)
	order := placeOrder(t, env)

	// A webhook settles the order before the pay request reads it.
	reconciler := NewReconciler(env.repo)
	require.NoError(t, reconciler.PaymentSucceeded(context.Background(), PaymentIntentEvent{
		ID:          "pi_webhook",
		Description: "Order " + order.ID,
	}))

	result, err := env.svc.PayOrder(context.Background(), orderstypes.PayOrderInput{OrderID: order.ID, Method: "card"})
	require.NoError(t, err)
	require.True(t, result.Payment.AlreadyProcessed)
	require.Equal(t, "pi_webhook", result.Payment.TransactionID)
	// The order is already paid, so the gateway is never touched.
	require.Empty(t, env.gateway.requests)
}

// raceRepo lets a webhook settle the order between the pay path's read and
// its conditional write, forcing the write to lose exactly once.
type raceRepo struct {
	*ordersmemory.Repository
	fired bool
}

func (r *raceRepo) Update(ctx context.Context, order *domain.Order) (*domain.Order, error) {
	if !r.fired {
		r.fired = true
		stored, err := r.Repository.FindByID(ctx, order.ID)
		if err != nil {
			return nil, err
		}
		if err := stored.MarkPaid("pi_webhook", "card", "stripe", time.Now()); err != nil {
			return nil, err
		}
		if _, err := r.Repository.Update(ctx, stored); err != nil {
			return nil, err
		}
		return nil, ports.ErrConflict
	}
	return r.Repository.Update(ctx, order)
}

func TestPayOrder_LostWriteResolvesToStoredPayment(t *testing.T) {
	inner := ordersmemory.NewRepository()
	repo := &raceRepo{Repository: inner}
	customers, restaurants, menu := ordersmemory.NewDemoCatalog()
	gateway := &fakeGateway{}
	svc := NewService(repo, customers, restaurants, menu, gateway)

	order, err := svc.CreateOrder(context.Background(), createInput())
	require.NoError(t, err)

	result, err := svc.PayOrder(context.Background(), orderstypes.PayOrderInput{OrderID: order.ID, Method: "card"})
	require.NoError(t, err)
	require.Len(t, gateway.requests, 1)
	// The stored record holds the webhook's settlement; with a shared
	// idempotency key both paths observed the same provider charge.
	require.True(t, result.Payment.AlreadyProcessed)
	require.Equal(t, "pi_webhook", result.Payment.TransactionID)
}

func TestCancelOrder_PublishesEvent(t *testing.T) {
	env := newTestEnv(t)
	order := placeOrder(t, env)

	canceled, err := env.svc.CancelOrder(context.Background(), orderstypes.CancelOrderInput{
		OrderID:    order.ID,
		Reason:     "customer changed their mind",
		CanceledBy: testCustomerID,
	})
	require.NoError(t, err)
	require.Equal(t, domain.StatusCanceled, canceled.Status)
	require.Equal(t, []string{SubjectOrderCreated, SubjectOrderCanceled}, env.bus.subjects)
}

func TestCancelOrder_DeliveredIsFinal(t *testing.T) {
	env := newTestEnv(t)
	order := placeOrder(t, env)
	for _, status := range []domain.Status{
		domain.StatusConfirmed, domain.StatusPreparing, domain.StatusReady,
		domain.StatusOutForDelivery, domain.StatusDelivered,
	} {
		_, err := env.svc.UpdateOrderStatus(context.Background(), orderstypes.UpdateStatusInput{OrderID: order.ID, Status: status})
		require.NoError(t, err)
	}

	_, err := env.svc.CancelOrder(context.Background(), orderstypes.CancelOrderInput{OrderID: order.ID, CanceledBy: "admin"})
	require.ErrorIs(t, err, domain.ErrNotCancelable)
}

func TestCancelOrder_Forbidden(t *testing.T) {
	env := newTestEnv(t)
	order := placeOrder(t, env)

	repo, gateway := env.repo, env.gateway
	blocked := NewService(repo, nil, nil, nil, gateway, WithPolicyClient(denyPolicy{reason: "not the owner"}))
	_, err := blocked.CancelOrder(context.Background(), orderstypes.CancelOrderInput{OrderID: order.ID, CanceledBy: "someone-else"})
	var forbidden *ForbiddenError
	require.ErrorAs(t, err, &forbidden)

	current, findErr := repo.FindByID(context.Background(), order.ID)
	require.NoError(t, findErr)
	require.Equal(t, domain.StatusPending, current.Status)
}

func TestUpdateOrderStatus_RejectsIllegalMoves(t *testing.T) {
	env := newTestEnv(t)
	order := placeOrder(t, env)

	_, err := env.svc.UpdateOrderStatus(context.Background(), orderstypes.UpdateStatusInput{
		OrderID: order.ID,
		Status:  domain.StatusDelivered,
	})
	var invalid *domain.InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
	require.Equal(t, domain.StatusPending, invalid.From)

	_, err = env.svc.UpdateOrderStatus(context.Background(), orderstypes.UpdateStatusInput{
		OrderID: order.ID,
		Status:  domain.Status("SHIPPED"),
	})
	require.ErrorIs(t, err, domain.ErrUnknownStatus)
}

func TestUpdateOrderStatus_StampsConfirmation(t *testing.T) {
	env := newTestEnv(t)
	order := placeOrder(t, env)

	updated, err := env.svc.UpdateOrderStatus(context.Background(), orderstypes.UpdateStatusInput{
		OrderID: order.ID,
		Status:  domain.StatusConfirmed,
	})
	require.NoError(t, err)
	require.Equal(t, domain.StatusConfirmed, updated.Status)
	require.NotNil(t, updated.ConfirmedAt)
}

func TestListOrders_Filters(t *testing.T) {
	env := newTestEnv(t)
	first := placeOrder(t, env)
	second := placeOrder(t, env)
	_, err := env.svc.CancelOrder(context.Background(), orderstypes.CancelOrderInput{OrderID: second.ID, CanceledBy: "admin"})
	require.NoError(t, err)

	pending, err := env.svc.ListOrders(context.Background(), orderstypes.ListOrdersFilter{Status: domain.StatusPending})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, first.ID, pending[0].ID)

	all, err := env.svc.ListOrders(context.Background(), orderstypes.ListOrdersFilter{CustomerID: testCustomerID})
	require.NoError(t, err)
	require.Len(t, all, 2)
}

func TestDashboardStats(t *testing.T) {
	env := newTestEnv(t)
	placeOrder(t, env)
	order := placeOrder(t, env)
	for _, status := range []domain.Status{
		domain.StatusConfirmed, domain.StatusPreparing, domain.StatusReady,
		domain.StatusOutForDelivery, domain.StatusDelivered,
	} {
		_, err := env.svc.UpdateOrderStatus(context.Background(), orderstypes.UpdateStatusInput{OrderID: order.ID, Status: status})
		require.NoError(t, err)
	}

	stats, err := env.svc.DashboardStats(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(1), stats.Pending)
	require.Equal(t, int64(0), stats.Confirmed)
	require.Equal(t, int64(1), stats.Delivered)
	require.Equal(t, "96.80", stats.DeliveredTotal.StringFixed(2))
}

func TestGetOrder_NotFound(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.svc.GetOrder(context.Background(), "missing")
	require.True(t, IsNotFound(err))
	require.True(t, errors.Is(err, ports.ErrNotFound))
}

var _ ports.PaymentGateway = (*fakeGateway)(nil)
var _ ports.PolicyClient = denyPolicy{}
var _ ports.MessageBus = (*captureBus)(nil)
