package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"time"

	"github.com/deliverly/order-api/internal/domains/orders/domain"
	"github.com/deliverly/order-api/internal/domains/orders/ports"
)

// Order-id extraction convention, owned by this package. The provider-side
// charge description must contain the literal prefix "Order " followed by the
// order's canonical UUID, e.g. "Order 4f9d…". Operators configuring the
// provider must preserve this format or webhook reconciliation cannot locate
// the order.
var orderRefPattern = regexp.MustCompile(`Order\s+([0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12})`)

// ExtractOrderID pulls the order id out of a provider description field,
// returning "" when the convention is not met.
func ExtractOrderID(description string) string {
	match := orderRefPattern.FindStringSubmatch(description)
	if match == nil {
		return ""
	}
	return match[1]
}

// Webhook provider label: reconciled settlements are always attributed to the
// card-network provider, and the method defaults to a generic label because
// card details are not always present in the event.
const (
	webhookProvider      = "stripe"
	webhookDefaultMethod = "card"
)

// PaymentIntentEvent is the slice of a provider payment-intent payload the
// reconciler consumes.
type PaymentIntentEvent struct {
	ID             string
	Description    string
	FailureMessage string
}

// ChargeEvent is the slice of a provider charge payload the reconciler
// consumes.
type ChargeEvent struct {
	ID              string
	PaymentIntentID string
	RefundID        string
}

// Reconciler applies asynchronous provider notifications to orders. It
// converges with the synchronous pay path through the same "mark paid iff
// payable" guard plus the repository's conditional writes, so double delivery
// in either direction is safe.
type Reconciler struct {
	repo      ports.Repository
	processed ports.ProcessedEventStore
	logger    *slog.Logger
	now       func() time.Time
}

// ReconcilerOption configures optional reconciler collaborators.
type ReconcilerOption func(*Reconciler)

// WithProcessedEventStore plugs in the webhook event dedup store.
func WithProcessedEventStore(store ports.ProcessedEventStore) ReconcilerOption {
	return func(r *Reconciler) {
		if store != nil {
			r.processed = store
		}
	}
}

// WithReconcilerLogger injects a slog logger.
func WithReconcilerLogger(logger *slog.Logger) ReconcilerOption {
	return func(r *Reconciler) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithReconcilerClock overrides the time source for deterministic testing.
func WithReconcilerClock(now func() time.Time) ReconcilerOption {
	return func(r *Reconciler) {
		if now != nil {
			r.now = now
		}
	}
}

// NewReconciler wires the webhook reconciliation handler.
func NewReconciler(repo ports.Repository, opts ...ReconcilerOption) *Reconciler {
	r := &Reconciler{
		repo:   repo,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// AlreadyProcessed claims the provider event id in the dedup store and
// reports whether it was seen before. Store failures are logged and treated
// as unseen: the per-order guards make double processing harmless, dropping
// an event would not be.
func (r *Reconciler) AlreadyProcessed(ctx context.Context, eventID string) bool {
	if r.processed == nil || eventID == "" {
		return false
	}
	first, err := r.processed.MarkProcessed(ctx, eventID)
	if err != nil {
		r.logger.LogAttrs(ctx, slog.LevelWarn, "event dedup store unavailable",
			slog.String("event.id", eventID), slog.String("error", err.Error()))
		return false
	}
	if !first {
		r.logger.LogAttrs(ctx, slog.LevelInfo, "webhook event already processed",
			slog.String("event.id", eventID))
	}
	return !first
}

// PaymentSucceeded settles an order from an asynchronous provider
// confirmation. Unknown orders and non-payable orders are logged and skipped:
// the provider expects a 2xx regardless of the business outcome.
func (r *Reconciler) PaymentSucceeded(ctx context.Context, intent PaymentIntentEvent) error {
	orderID := ExtractOrderID(intent.Description)
	if orderID == "" {
		r.logger.LogAttrs(ctx, slog.LevelWarn, "could not extract order id from payment intent",
			slog.String("intent.id", intent.ID), slog.String("description", intent.Description))
		return nil
	}
	order, err := r.repo.FindByID(ctx, orderID)
	if errors.Is(err, ports.ErrNotFound) {
		r.logger.LogAttrs(ctx, slog.LevelWarn, "order not found for payment intent",
			slog.String("order.id", orderID), slog.String("intent.id", intent.ID))
		return nil
	}
	if err != nil {
		return err
	}

	if order.Status == domain.StatusPaid && order.Payment.TransactionID == intent.ID {
		r.logger.LogAttrs(ctx, slog.LevelInfo, "order already marked paid",
			slog.String("order.id", orderID))
		return nil
	}
	if !order.Payable() {
		r.logger.LogAttrs(ctx, slog.LevelWarn, "order cannot be paid from current status",
			slog.String("order.id", orderID), slog.String("status", string(order.Status)))
		return nil
	}

	if err := order.MarkPaid(intent.ID, webhookDefaultMethod, webhookProvider, r.now()); err != nil {
		return fmt.Errorf("mark order %s paid: %w", orderID, err)
	}
	if _, err := r.repo.Update(ctx, order); err != nil {
		if errors.Is(err, ports.ErrConflict) {
			return r.recheckPaid(ctx, orderID, intent.ID)
		}
		return fmt.Errorf("persist paid order %s: %w", orderID, err)
	}
	r.logger.LogAttrs(ctx, slog.LevelInfo, "order marked paid from webhook",
		slog.String("order.id", orderID), slog.String("transaction.id", intent.ID))
	return nil
}

// recheckPaid resolves a lost conditional write: if the concurrent writer
// settled the same charge, this delivery converged and there is nothing to do.
func (r *Reconciler) recheckPaid(ctx context.Context, orderID, transactionID string) error {
	current, err := r.repo.FindByID(ctx, orderID)
	if err != nil {
		return err
	}
	if current.Status == domain.StatusPaid && current.Payment.TransactionID == transactionID {
		return nil
	}
	r.logger.LogAttrs(ctx, slog.LevelWarn, "order changed while reconciling payment",
		slog.String("order.id", orderID), slog.String("status", string(current.Status)))
	return nil
}

// PaymentFailed records a failed provider attempt. Only a pending order is
// moved to PAYMENT_FAILED; any other status is left untouched and logged.
func (r *Reconciler) PaymentFailed(ctx context.Context, intent PaymentIntentEvent) error {
	orderID := ExtractOrderID(intent.Description)
	if orderID == "" {
		r.logger.LogAttrs(ctx, slog.LevelWarn, "could not extract order id from payment intent",
			slog.String("intent.id", intent.ID), slog.String("description", intent.Description))
		return nil
	}
	order, err := r.repo.FindByID(ctx, orderID)
	if errors.Is(err, ports.ErrNotFound) {
		r.logger.LogAttrs(ctx, slog.LevelWarn, "order not found for failed payment",
			slog.String("order.id", orderID))
		return nil
	}
	if err != nil {
		return err
	}

	if order.Status != domain.StatusPending {
		r.logger.LogAttrs(ctx, slog.LevelInfo, "payment failure ignored for non-pending order",
			slog.String("order.id", orderID), slog.String("status", string(order.Status)))
		return nil
	}
	if _, err := r.repo.UpdateStatus(ctx, orderID, domain.StatusPending, domain.StatusPaymentFailed); err != nil {
		if errors.Is(err, ports.ErrConflict) {
			r.logger.LogAttrs(ctx, slog.LevelWarn, "order left pending state before failure was recorded",
				slog.String("order.id", orderID))
			return nil
		}
		return fmt.Errorf("mark order %s payment failed: %w", orderID, err)
	}
	r.logger.LogAttrs(ctx, slog.LevelInfo, "order marked payment failed",
		slog.String("order.id", orderID), slog.String("failure", intent.FailureMessage))
	return nil
}

// ChargeRefunded stamps refund metadata on the order holding the charge's
// originating payment reference. A second delivery for the same charge is a
// no-op.
func (r *Reconciler) ChargeRefunded(ctx context.Context, charge ChargeEvent) error {
	if charge.PaymentIntentID == "" {
		r.logger.LogAttrs(ctx, slog.LevelWarn, "no payment reference in refunded charge",
			slog.String("charge.id", charge.ID))
		return nil
	}
	refundID := charge.RefundID
	if refundID == "" {
		refundID = "refund_" + charge.ID
	}

	// Retry once on a lost conditional write; the idempotency guard decides
	// again on fresh state.
	for attempt := 0; attempt < 2; attempt++ {
		order, err := r.repo.FindByTransactionID(ctx, charge.PaymentIntentID)
		if errors.Is(err, ports.ErrNotFound) {
			r.logger.LogAttrs(ctx, slog.LevelWarn, "order not found for refunded charge",
				slog.String("payment.intent", charge.PaymentIntentID))
			return nil
		}
		if err != nil {
			return err
		}
		if !order.MarkRefunded(refundID, r.now()) {
			r.logger.LogAttrs(ctx, slog.LevelInfo, "order already marked refunded",
				slog.String("order.id", order.ID))
			return nil
		}
		if _, err := r.repo.Update(ctx, order); err != nil {
			if errors.Is(err, ports.ErrConflict) {
				continue
			}
			return fmt.Errorf("persist refund for order %s: %w", order.ID, err)
		}
		r.logger.LogAttrs(ctx, slog.LevelInfo, "order marked refunded",
			slog.String("order.id", order.ID), slog.String("refund.id", refundID))
		return nil
	}
	return fmt.Errorf("%w: refund for charge %s kept losing conditional writes", ports.ErrConflict, charge.ID)
}
