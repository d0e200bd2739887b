package ports

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/shopspring/decimal"
)

// ErrGatewayUnavailable marks transport failures and timeouts talking to a
// payment provider. It is distinct from a decline: the provider never gave a
// business answer, so the order must stay untouched.
var ErrGatewayUnavailable = errors.New("payment gateway unavailable")

// Normalized attempt statuses shared by all providers.
const (
	PaymentApproved = "APPROVED"
	PaymentDeclined = "DECLINED"
)

// Gateway health states.
const (
	GatewayDisabled  = "disabled"
	GatewayHealthy   = "healthy"
	GatewayUnhealthy = "unhealthy"
)

// PaymentRequest carries everything a provider needs for one charge attempt.
type PaymentRequest struct {
	Amount         decimal.Decimal
	Method         string
	OrderID        string
	IdempotencyKey string
	Metadata       map[string]string
}

// PaymentResult is the uniform result shape returned by every provider.
// Raw is the opaque provider payload, kept for logging only.
type PaymentResult struct {
	Success       bool
	TransactionID string
	Status        string
	Message       string
	Reason        string
	Simulated     bool
	Raw           json.RawMessage
}

// RefundResult reports a refund request's outcome.
type RefundResult struct {
	Success   bool
	RefundID  string
	Message   string
	Simulated bool
}

// GatewayStatus is a provider health descriptor.
type GatewayStatus struct {
	State   string         `json:"state"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// PaymentGateway is the capability boundary for payment providers. Disabled
// providers act as simulators: they approve with a synthetic transaction id
// flagged Simulated so telemetry can tell the two apart.
type PaymentGateway interface {
	ProcessPayment(ctx context.Context, req PaymentRequest) (*PaymentResult, error)
	Refund(ctx context.Context, transactionID string, amount decimal.Decimal) (*RefundResult, error)
	Enabled() bool
	ProviderName() string
	Status(ctx context.Context) GatewayStatus
}
