package ports

import (
	"context"
	"time"
)

// Payment attempt outcomes recorded against the metrics sink.
const (
	OutcomeApproved = "approved"
	OutcomeDeclined = "declined"
	OutcomeError    = "error"
)

// PaymentMetrics is the injected metrics sink for the payment path. The use
// case only knows about counters and a latency histogram; the otel wiring
// lives in the observability adapter.
type PaymentMetrics interface {
	RecordAttempt(ctx context.Context, provider string)
	RecordOutcome(ctx context.Context, provider, outcome string)
	ObserveLatency(ctx context.Context, provider string, elapsed time.Duration)
}

// NoopPaymentMetrics is the default sink when no meter is configured.
type NoopPaymentMetrics struct{}

func (NoopPaymentMetrics) RecordAttempt(context.Context, string) {}

func (NoopPaymentMetrics) RecordOutcome(context.Context, string, string) {}

func (NoopPaymentMetrics) ObserveLatency(context.Context, string, time.Duration) {}

var _ PaymentMetrics = NoopPaymentMetrics{}
