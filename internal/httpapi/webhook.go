package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/deliverly/order-api/internal/domains/orders/application"
)

// Provider event types the reconciler understands.
const (
	eventPaymentSucceeded = "payment_intent.succeeded"
	eventPaymentFailed    = "payment_intent.payment_failed"
	eventChargeRefunded   = "charge.refunded"
)

// webhookEvent is the envelope slice the dispatcher needs.
type webhookEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

type paymentIntentPayload struct {
	ID               string `json:"id"`
	Description      string `json:"description"`
	LastPaymentError *struct {
		Message string `json:"message"`
	} `json:"last_payment_error"`
}

type chargePayload struct {
	ID            string `json:"id"`
	PaymentIntent string `json:"payment_intent"`
	Refunds       *struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	} `json:"refunds"`
}

// PaymentWebhook handles POST /webhooks/payments. The provider gets a 2xx for
// every event it delivered correctly, including ones about unknown orders;
// only signature failures (400) and our own processing errors (500) deviate.
func (h *Handlers) PaymentWebhook(c *gin.Context) {
	rawBody, err := c.GetRawData()
	if err != nil {
		h.responder.BadRequest(c, "could not read request body")
		return
	}
	ctx := c.Request.Context()

	var event webhookEvent
	if h.webhookSecret != "" {
		verified, err := webhook.ConstructEvent(rawBody, c.GetHeader("Stripe-Signature"), h.webhookSecret)
		if err != nil {
			h.logger.LogAttrs(ctx, slog.LevelError, "webhook signature verification failed",
				slog.String("error", err.Error()))
			c.JSON(http.StatusBadRequest, gin.H{"error": "webhook signature verification failed"})
			return
		}
		event.ID = verified.ID
		event.Type = string(verified.Type)
		event.Data.Object = verified.Data.Raw
	} else {
		h.logger.LogAttrs(ctx, slog.LevelWarn,
			"webhook secret not configured, accepting event without verification (not recommended for production)")
		if err := json.Unmarshal(rawBody, &event); err != nil {
			h.responder.BadRequest(c, "malformed webhook payload")
			return
		}
	}

	h.logger.LogAttrs(ctx, slog.LevelInfo, "processing payment webhook",
		slog.String("event.id", event.ID), slog.String("event.type", event.Type))

	if h.reconciler.AlreadyProcessed(ctx, event.ID) {
		c.JSON(http.StatusOK, gin.H{"received": true, "duplicate": true})
		return
	}

	if err := h.dispatchWebhook(c, event); err != nil {
		h.logger.LogAttrs(ctx, slog.LevelError, "webhook processing failed",
			slog.String("event.id", event.ID), slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}

func (h *Handlers) dispatchWebhook(c *gin.Context, event webhookEvent) error {
	ctx := c.Request.Context()
	switch event.Type {
	case eventPaymentSucceeded, eventPaymentFailed:
		var intent paymentIntentPayload
		if err := json.Unmarshal(event.Data.Object, &intent); err != nil {
			return err
		}
		reconcileEvent := application.PaymentIntentEvent{
			ID:          intent.ID,
			Description: intent.Description,
		}
		if intent.LastPaymentError != nil {
			reconcileEvent.FailureMessage = intent.LastPaymentError.Message
		}
		if event.Type == eventPaymentSucceeded {
			return h.reconciler.PaymentSucceeded(ctx, reconcileEvent)
		}
		return h.reconciler.PaymentFailed(ctx, reconcileEvent)
	case eventChargeRefunded:
		var charge chargePayload
		if err := json.Unmarshal(event.Data.Object, &charge); err != nil {
			return err
		}
		reconcileEvent := application.ChargeEvent{
			ID:              charge.ID,
			PaymentIntentID: charge.PaymentIntent,
		}
		if charge.Refunds != nil && len(charge.Refunds.Data) > 0 {
			reconcileEvent.RefundID = charge.Refunds.Data[0].ID
		}
		return h.reconciler.ChargeRefunded(ctx, reconcileEvent)
	default:
		h.logger.LogAttrs(ctx, slog.LevelInfo, "unhandled webhook event type",
			slog.String("event.type", event.Type))
		return nil
	}
}
