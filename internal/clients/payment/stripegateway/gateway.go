// Package stripegateway adapts the Stripe API to the payment gateway port.
// Without a secret key the gateway runs disabled and simulates approvals.
package stripegateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"

	"github.com/deliverly/order-api/internal/domains/orders/ports"
)

var _ ports.PaymentGateway = (*Gateway)(nil)

const providerName = "stripe"

// testPaymentMethod keeps the charge flow confirmable without a collected
// card; real card collection happens in a frontend this service does not own.
const testPaymentMethod = "pm_card_visa"

// Gateway charges orders through Stripe payment intents.
type Gateway struct {
	api      *client.API
	currency stripe.Currency
	logger   *slog.Logger
}

type Option func(*Gateway)

// WithCurrency overrides the settlement currency.
func WithCurrency(currency string) Option {
	return func(g *Gateway) {
		if currency != "" {
			g.currency = stripe.Currency(currency)
		}
	}
}

// WithLogger injects a slog logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithBackends overrides the Stripe backends, used by tests to point the
// client at a stub server.
func WithBackends(secretKey string, backends *stripe.Backends) Option {
	return func(g *Gateway) {
		api := &client.API{}
		api.Init(secretKey, backends)
		g.api = api
	}
}

// New builds the gateway. An empty secret key yields a disabled, simulating
// gateway rather than an error.
func New(secretKey string, opts ...Option) *Gateway {
	g := &Gateway{
		currency: stripe.CurrencyBRL,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	if secretKey != "" {
		api := &client.API{}
		api.Init(secretKey, nil)
		g.api = api
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g
}

func (g *Gateway) Enabled() bool { return g != nil && g.api != nil }

func (g *Gateway) ProviderName() string { return providerName }

// ProcessPayment creates and confirms a payment intent. The intent
// description carries the order id so webhook reconciliation can find its way
// back.
func (g *Gateway) ProcessPayment(ctx context.Context, req ports.PaymentRequest) (*ports.PaymentResult, error) {
	if !g.Enabled() {
		return g.simulate(ctx, req), nil
	}
	amountMinor := req.Amount.Shift(2).Round(0).IntPart()
	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(amountMinor),
		Currency:      stripe.String(string(g.currency)),
		Description:   stripe.String("Order " + req.OrderID),
		Confirm:       stripe.Bool(true),
		PaymentMethod: stripe.String(testPaymentMethod),
	}
	params.Context = ctx
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}
	for key, value := range req.Metadata {
		params.AddMetadata(key, value)
	}

	intent, err := g.api.PaymentIntents.New(params)
	if err != nil {
		return g.declineFromError(ctx, req, err)
	}
	raw, _ := json.Marshal(map[string]any{"intentStatus": intent.Status})
	success := intent.Status == stripe.PaymentIntentStatusSucceeded
	status := ports.PaymentDeclined
	if success {
		status = ports.PaymentApproved
	}
	return &ports.PaymentResult{
		Success:       success,
		TransactionID: intent.ID,
		Status:        status,
		Message:       string(intent.Status),
		Raw:           raw,
	}, nil
}

// declineFromError turns a Stripe card error into a business decline; any
// other failure surfaces as gateway unavailability.
func (g *Gateway) declineFromError(ctx context.Context, req ports.PaymentRequest, err error) (*ports.PaymentResult, error) {
	var stripeErr *stripe.Error
	if !errors.As(err, &stripeErr) {
		return nil, fmt.Errorf("%w: %v", ports.ErrGatewayUnavailable, err)
	}
	if stripeErr.HTTPStatusCode >= 500 {
		return nil, fmt.Errorf("%w: stripe returned %d", ports.ErrGatewayUnavailable, stripeErr.HTTPStatusCode)
	}
	g.logger.LogAttrs(ctx, slog.LevelWarn, "stripe payment failed",
		slog.String("order.id", req.OrderID),
		slog.String("code", string(stripeErr.Code)),
		slog.String("error", stripeErr.Msg),
	)
	reason := string(stripeErr.DeclineCode)
	if reason == "" {
		reason = string(stripeErr.Code)
	}
	result := &ports.PaymentResult{
		Success: false,
		Status:  ports.PaymentDeclined,
		Message: stripeErr.Msg,
		Reason:  reason,
	}
	if stripeErr.PaymentIntent != nil {
		result.TransactionID = stripeErr.PaymentIntent.ID
	}
	return result, nil
}

// Refund reverses a settled payment intent.
func (g *Gateway) Refund(ctx context.Context, transactionID string, amount decimal.Decimal) (*ports.RefundResult, error) {
	if !g.Enabled() {
		return &ports.RefundResult{
			Success:   true,
			RefundID:  "SIM_REFUND_" + uuid.NewString(),
			Message:   "simulated refund",
			Simulated: true,
		}, nil
	}
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(transactionID),
		Amount:        stripe.Int64(amount.Shift(2).Round(0).IntPart()),
	}
	params.Context = ctx
	refund, err := g.api.Refunds.New(params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.HTTPStatusCode < 500 {
			return &ports.RefundResult{Success: false, Message: stripeErr.Msg}, nil
		}
		return nil, fmt.Errorf("%w: %v", ports.ErrGatewayUnavailable, err)
	}
	return &ports.RefundResult{
		Success:  refund.Status == stripe.RefundStatusSucceeded || refund.Status == stripe.RefundStatusPending,
		RefundID: refund.ID,
		Message:  string(refund.Status),
	}, nil
}

// Status checks reachability by retrieving the account.
func (g *Gateway) Status(ctx context.Context) ports.GatewayStatus {
	if !g.Enabled() {
		return ports.GatewayStatus{State: ports.GatewayDisabled, Message: "stripe not configured; payments are simulated"}
	}
	params := &stripe.AccountParams{}
	params.Context = ctx
	account, err := g.api.Accounts.Get(params)
	if err != nil {
		g.logger.LogAttrs(ctx, slog.LevelWarn, "stripe health check failed", slog.String("error", err.Error()))
		return ports.GatewayStatus{State: ports.GatewayUnhealthy, Message: err.Error()}
	}
	return ports.GatewayStatus{
		State:   ports.GatewayHealthy,
		Message: "stripe is operational",
		Details: map[string]any{"accountId": account.ID},
	}
}

func (g *Gateway) simulate(ctx context.Context, req ports.PaymentRequest) *ports.PaymentResult {
	transactionID := "SIM_" + uuid.NewString()
	g.logger.LogAttrs(ctx, slog.LevelWarn, "stripe disabled; simulating approval",
		slog.String("order.id", req.OrderID),
		slog.String("transaction.id", transactionID),
	)
	return &ports.PaymentResult{
		Success:       true,
		TransactionID: transactionID,
		Status:        ports.PaymentApproved,
		Message:       "simulated approval",
		Simulated:     true,
	}
}
