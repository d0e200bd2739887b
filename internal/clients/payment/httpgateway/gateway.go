// Package httpgateway talks to a generic acquirer-style payment API over
// HTTP. When no base URL is configured the gateway runs disabled and
// simulates approvals so local environments work without a provider account.
package httpgateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/deliverly/order-api/internal/domains/orders/ports"
)

var _ ports.PaymentGateway = (*Gateway)(nil)

const providerName = "http-gateway"

// Gateway is the HTTP payment provider adapter.
type Gateway struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

type Option func(*Gateway)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(g *Gateway) {
		if client != nil {
			g.httpClient = client
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

// New builds the gateway. An empty baseURL yields a disabled, simulating
// gateway rather than an error.
func New(baseURL, apiKey string, opts ...Option) *Gateway {
	g := &Gateway{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:     strings.TrimSpace(apiKey),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g
}

func (g *Gateway) Enabled() bool { return g != nil && g.baseURL != "" }

func (g *Gateway) ProviderName() string { return providerName }

type chargeRequest struct {
	Amount   string            `json:"amount"`
	Currency string            `json:"currency"`
	OrderID  string            `json:"orderId"`
	Method   string            `json:"method"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type chargeResponse struct {
	TransactionID string `json:"transactionId"`
	Status        string `json:"status"`
	Message       string `json:"message"`
	Reason        string `json:"reason"`
}

// ProcessPayment submits a charge. The Idempotency-Key header makes retried
// submissions safe on the provider side.
func (g *Gateway) ProcessPayment(ctx context.Context, req ports.PaymentRequest) (*ports.PaymentResult, error) {
	if !g.Enabled() {
		return g.simulate(ctx, req), nil
	}
	payload := chargeRequest{
		Amount:   req.Amount.StringFixed(2),
		Currency: "BRL",
		OrderID:  req.OrderID,
		Method:   req.Method,
		Metadata: req.Metadata,
	}
	body, raw, status, err := g.post(ctx, "/payments", req.IdempotencyKey, payload)
	if err != nil {
		return nil, err
	}
	result := &ports.PaymentResult{
		Success:       body.Status == ports.PaymentApproved,
		TransactionID: body.TransactionID,
		Status:        body.Status,
		Message:       body.Message,
		Reason:        body.Reason,
		Raw:           raw,
	}
	if status >= http.StatusBadRequest && result.Status == "" {
		result.Status = ports.PaymentDeclined
		result.Reason = fmt.Sprintf("http_%d", status)
	}
	return result, nil
}

type refundResponse struct {
	RefundID string `json:"refundId"`
	Status   string `json:"status"`
	Message  string `json:"message"`
}

// Refund asks the provider to reverse a settled charge.
func (g *Gateway) Refund(ctx context.Context, transactionID string, amount decimal.Decimal) (*ports.RefundResult, error) {
	if !g.Enabled() {
		return &ports.RefundResult{
			Success:   true,
			RefundID:  "SIM_REFUND_" + uuid.NewString(),
			Message:   "simulated refund",
			Simulated: true,
		}, nil
	}
	payload := map[string]string{"amount": amount.StringFixed(2)}
	path := fmt.Sprintf("/payments/%s/refunds", transactionID)
	raw, status, err := g.rawPost(ctx, path, "", payload)
	if err != nil {
		return nil, err
	}
	var body refundResponse
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("decode refund response: %w", err)
	}
	return &ports.RefundResult{
		Success:  status < http.StatusBadRequest,
		RefundID: body.RefundID,
		Message:  body.Message,
	}, nil
}

// Status probes the provider health endpoint.
func (g *Gateway) Status(ctx context.Context) ports.GatewayStatus {
	if !g.Enabled() {
		return ports.GatewayStatus{State: ports.GatewayDisabled, Message: "no gateway URL configured; payments are simulated"}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/health", nil)
	if err != nil {
		return ports.GatewayStatus{State: ports.GatewayUnhealthy, Message: err.Error()}
	}
	g.authorize(req)
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return ports.GatewayStatus{State: ports.GatewayUnhealthy, Message: err.Error()}
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusInternalServerError {
		return ports.GatewayStatus{State: ports.GatewayUnhealthy, Message: resp.Status}
	}
	return ports.GatewayStatus{State: ports.GatewayHealthy, Message: resp.Status}
}

// simulate approves locally with a synthetic transaction id so the rest of
// the flow behaves exactly as with a real provider.
func (g *Gateway) simulate(ctx context.Context, req ports.PaymentRequest) *ports.PaymentResult {
	transactionID := "SIM_" + uuid.NewString()
	g.logger.LogAttrs(ctx, slog.LevelWarn, "payment gateway disabled; simulating approval",
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

func (g *Gateway) post(ctx context.Context, path, idempotencyKey string, payload any) (*chargeResponse, json.RawMessage, int, error) {
	raw, status, err := g.rawPost(ctx, path, idempotencyKey, payload)
	if err != nil {
		return nil, nil, 0, err
	}
	var body chargeResponse
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &body); err != nil {
			return nil, nil, 0, fmt.Errorf("decode gateway response: %w", err)
		}
	}
	return &body, raw, status, nil
}

func (g *Gateway) rawPost(ctx context.Context, path, idempotencyKey string, payload any) (json.RawMessage, int, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, 0, fmt.Errorf("encode gateway request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return nil, 0, fmt.Errorf("build gateway request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}
	g.authorize(req)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ports.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, 0, fmt.Errorf("%w: read response: %v", ports.ErrGatewayUnavailable, err)
	}
	// 5xx means the provider gave no business answer; the caller must not
	// treat it as a decline.
	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, 0, fmt.Errorf("%w: gateway returned %s", ports.ErrGatewayUnavailable, resp.Status)
	}
	return raw, resp.StatusCode, nil
}

func (g *Gateway) authorize(req *http.Request) {
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}
}
