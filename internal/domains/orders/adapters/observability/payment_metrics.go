package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/deliverly/order-api/internal/domains/orders/ports"
)

var _ ports.PaymentMetrics = (*PaymentMetrics)(nil)

// PaymentMetrics records payment attempt counters and gateway latency against
// an OpenTelemetry meter.
type PaymentMetrics struct {
	attempts metric.Int64Counter
	outcomes metric.Int64Counter
	latency  metric.Float64Histogram
}

// NewPaymentMetrics registers the payment instruments on the meter.
func NewPaymentMetrics(m metric.Meter) *PaymentMetrics {
	if m == nil {
		return &PaymentMetrics{}
	}
	attempts, _ := m.Int64Counter("orders.payment.attempts", metric.WithDescription("Number of payment attempts sent to a provider"))
	outcomes, _ := m.Int64Counter("orders.payment.outcomes", metric.WithDescription("Payment attempt outcomes by provider and result"))
	latency, _ := m.Float64Histogram("orders.payment.gateway_latency_ms",
		metric.WithDescription("Round-trip latency of provider charge calls"),
		metric.WithUnit("ms"),
	)
	return &PaymentMetrics{attempts: attempts, outcomes: outcomes, latency: latency}
}

func (p *PaymentMetrics) RecordAttempt(ctx context.Context, provider string) {
	addCounter(ctx, p.attempts, 1, attribute.String("payment.provider", provider))
}

func (p *PaymentMetrics) RecordOutcome(ctx context.Context, provider, outcome string) {
	addCounter(ctx, p.outcomes, 1,
		attribute.String("payment.provider", provider),
		attribute.String("payment.outcome", outcome),
	)
}

func (p *PaymentMetrics) ObserveLatency(ctx context.Context, provider string, elapsed time.Duration) {
	if p.latency == nil {
		return
	}
	p.latency.Record(ctx, float64(elapsed.Milliseconds()),
		metric.WithAttributes(attribute.String("payment.provider", provider)))
}
