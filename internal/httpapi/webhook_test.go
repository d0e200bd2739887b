package httpapi

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	stripe "github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/deliverly/order-api/internal/domains/orders/ports"
)

func paymentIntentEventBody(eventID, eventType, intentID, orderID string) []byte {
	payload := gin.H{
		"id":          eventID,
		"type":        eventType,
		"api_version": stripe.APIVersion,
		"data": gin.H{
			"object": gin.H{
				"id":          intentID,
				"description": fmt.Sprintf("Order %s", orderID),
			},
		},
	}
	raw, _ := json.Marshal(payload)
	return raw
}

func (e *apiEnv) postWebhook(t *testing.T, payload []byte, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/payments", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	recorder := httptest.NewRecorder()
	e.router.ServeHTTP(recorder, req)
	return recorder
}

func TestPaymentWebhook_SucceededMarksOrderPaid(t *testing.T) {
	env := newAPIEnv(t)
	placed := env.placeOrder(t)

	payload := paymentIntentEventBody("evt_1", eventPaymentSucceeded, "pi_hook_1", placed.ID)
	recorder := env.postWebhook(t, payload, nil)

	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())
	ack := decodeJSON[map[string]any](t, recorder)
	require.Equal(t, true, ack["received"])
	require.NotContains(t, ack, "duplicate")

	fetched := env.do(t, http.MethodGet, "/orders/"+placed.ID, nil, nil)
	order := decodeJSON[OrderView](t, fetched)
	require.Equal(t, "PAID", order.Status)
	require.NotNil(t, order.Payment)
	require.Equal(t, "pi_hook_1", order.Payment.TransactionID)
}

func TestPaymentWebhook_DuplicateEventAcknowledged(t *testing.T) {
	env := newAPIEnv(t)
	placed := env.placeOrder(t)

	payload := paymentIntentEventBody("evt_dup", eventPaymentSucceeded, "pi_hook_2", placed.ID)
	recorder := env.postWebhook(t, payload, nil)
	require.Equal(t, http.StatusOK, recorder.Code)

	recorder = env.postWebhook(t, payload, nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	ack := decodeJSON[map[string]any](t, recorder)
	require.Equal(t, true, ack["duplicate"])
}

func TestPaymentWebhook_FailedMovesOrderToPaymentFailed(t *testing.T) {
	env := newAPIEnv(t)
	placed := env.placeOrder(t)

	payload := gin.H{
		"id":   "evt_fail",
		"type": eventPaymentFailed,
		"data": gin.H{
			"object": gin.H{
				"id":          "pi_fail_1",
				"description": fmt.Sprintf("Order %s", placed.ID),
				"last_payment_error": gin.H{
					"message": "card declined",
				},
			},
		},
	}
	raw, err := json.Marshal(payload)
	require.NoError(t, err)

	recorder := env.postWebhook(t, raw, nil)
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())

	fetched := env.do(t, http.MethodGet, "/orders/"+placed.ID, nil, nil)
	order := decodeJSON[OrderView](t, fetched)
	require.Equal(t, "PAYMENT_FAILED", order.Status)
}

func TestPaymentWebhook_ChargeRefundedStampsRefund(t *testing.T) {
	env := newAPIEnv(t)
	placed := env.placeOrder(t)
	env.gateway.result = &ports.PaymentResult{
		Success:       true,
		TransactionID: "pi_live_9",
		Status:        ports.PaymentApproved,
	}
	recorder := env.do(t, http.MethodPost, "/orders/"+placed.ID+"/pay", gin.H{"method": "card"}, nil)
	require.Equal(t, http.StatusOK, recorder.Code)

	payload := gin.H{
		"id":   "evt_refund",
		"type": eventChargeRefunded,
		"data": gin.H{
			"object": gin.H{
				"id":             "ch_live_9",
				"payment_intent": "pi_live_9",
				"refunds": gin.H{
					"data": []gin.H{{"id": "re_live_9"}},
				},
			},
		},
	}
	raw, err := json.Marshal(payload)
	require.NoError(t, err)

	recorder = env.postWebhook(t, raw, nil)
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())

	fetched := env.do(t, http.MethodGet, "/orders/"+placed.ID, nil, nil)
	order := decodeJSON[OrderView](t, fetched)
	require.NotNil(t, order.Payment)
	require.Equal(t, "re_live_9", order.Payment.RefundID)
	require.NotNil(t, order.Payment.RefundedAt)
}

func TestPaymentWebhook_UnhandledEventAcknowledged(t *testing.T) {
	env := newAPIEnv(t)

	payload := paymentIntentEventBody("evt_odd", "customer.created", "cus_1", "irrelevant")
	recorder := env.postWebhook(t, payload, nil)

	require.Equal(t, http.StatusOK, recorder.Code)
}

func TestPaymentWebhook_UnknownOrderAcknowledged(t *testing.T) {
	env := newAPIEnv(t)

	payload := paymentIntentEventBody("evt_ghost", eventPaymentSucceeded, "pi_ghost",
		"99999999-9999-9999-9999-999999999999")
	recorder := env.postWebhook(t, payload, nil)

	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())
}

func TestPaymentWebhook_MalformedPayload(t *testing.T) {
	env := newAPIEnv(t)

	recorder := env.postWebhook(t, []byte("{not json"), nil)
	require.Equal(t, http.StatusBadRequest, recorder.Code)
}

func signWebhookPayload(payload []byte, secret string, at time.Time) string {
	signature := webhook.ComputeSignature(at, payload, secret)
	return fmt.Sprintf("t=%d,v1=%s", at.Unix(), hex.EncodeToString(signature))
}

func TestPaymentWebhook_SignatureVerified(t *testing.T) {
	const secret = "whsec_test_secret"
	env := newAPIEnv(t, WithWebhookSecret(secret))
	placed := env.placeOrder(t)

	payload := paymentIntentEventBody("evt_signed", eventPaymentSucceeded, "pi_signed_1", placed.ID)
	headers := map[string]string{
		"Stripe-Signature": signWebhookPayload(payload, secret, time.Now()),
	}
	recorder := env.postWebhook(t, payload, headers)

	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())
	fetched := env.do(t, http.MethodGet, "/orders/"+placed.ID, nil, nil)
	order := decodeJSON[OrderView](t, fetched)
	require.Equal(t, "PAID", order.Status)
}

func TestPaymentWebhook_RejectsBadSignature(t *testing.T) {
	env := newAPIEnv(t, WithWebhookSecret("whsec_test_secret"))
	placed := env.placeOrder(t)

	payload := paymentIntentEventBody("evt_forged", eventPaymentSucceeded, "pi_forged", placed.ID)
	headers := map[string]string{
		"Stripe-Signature": signWebhookPayload(payload, "whsec_wrong_secret", time.Now()),
	}
	recorder := env.postWebhook(t, payload, headers)

	require.Equal(t, http.StatusBadRequest, recorder.Code)

	fetched := env.do(t, http.MethodGet, "/orders/"+placed.ID, nil, nil)
	order := decodeJSON[OrderView](t, fetched)
	require.Equal(t, "PENDING", order.Status)
}
