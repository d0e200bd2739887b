package httpgateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/deliverly/order-api/internal/domains/orders/ports"
)

func paymentRequest() ports.PaymentRequest {
	return ports.PaymentRequest{
		Amount:         decimal.RequireFromString("96.80"),
		Method:         "card",
		OrderID:        "7f1f9df2-3a64-4c5e-9d76-2f8f4f1c2ab1",
		IdempotencyKey: "idem-1",
		Metadata:       map[string]string{"number": "ORD000001"},
	}
}

func TestProcessPayment_Approved(t *testing.T) {
	var got struct {
		header http.Header
		body   chargeRequest
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/payments", r.URL.Path)
		got.header = r.Header.Clone()
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got.body))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(chargeResponse{
			TransactionID: "TX-100",
			Status:        ports.PaymentApproved,
			Message:       "charge approved",
		})
	}))
	defer srv.Close()

	gateway := New(srv.URL, "secret-key")
	result, err := gateway.ProcessPayment(context.Background(), paymentRequest())
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Equal(t, "TX-100", result.TransactionID)
	require.False(t, result.Simulated)

	require.Equal(t, "idem-1", got.header.Get("Idempotency-Key"))
	require.Equal(t, "Bearer secret-key", got.header.Get("Authorization"))
	require.Equal(t, "96.80", got.body.Amount)
	require.Equal(t, "BRL", got.body.Currency)
	require.Equal(t, "card", got.body.Method)
}

func TestProcessPayment_Declined(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_ = json.NewEncoder(w).Encode(chargeResponse{
			Status:  ports.PaymentDeclined,
			Message: "insufficient funds",
			Reason:  "insufficient_funds",
		})
	}))
	defer srv.Close()

	gateway := New(srv.URL, "")
	result, err := gateway.ProcessPayment(context.Background(), paymentRequest())
	require.NoError(t, err)
	require.False(t, result.Success)
	require.Equal(t, ports.PaymentDeclined, result.Status)
	require.Equal(t, "insufficient_funds", result.Reason)
}

func TestProcessPayment_BareErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	gateway := New(srv.URL, "")
	result, err := gateway.ProcessPayment(context.Background(), paymentRequest())
	require.NoError(t, err)
	require.False(t, result.Success)
	require.Equal(t, ports.PaymentDeclined, result.Status)
	require.Equal(t, "http_400", result.Reason)
}

func TestProcessPayment_ServerErrorIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	gateway := New(srv.URL, "")
	_, err := gateway.ProcessPayment(context.Background(), paymentRequest())
	require.ErrorIs(t, err, ports.ErrGatewayUnavailable)
}

func TestProcessPayment_TransportErrorIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close()

	gateway := New(srv.URL, "")
	_, err := gateway.ProcessPayment(context.Background(), paymentRequest())
	require.ErrorIs(t, err, ports.ErrGatewayUnavailable)
}

func TestProcessPayment_DisabledSimulates(t *testing.T) {
	gateway := New("", "")
	require.False(t, gateway.Enabled())

	result, err := gateway.ProcessPayment(context.Background(), paymentRequest())
	require.NoError(t, err)
	require.True(t, result.Success)
	require.True(t, result.Simulated)
	require.Contains(t, result.TransactionID, "SIM_")
}

func TestRefund(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/payments/TX-100/refunds", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(refundResponse{RefundID: "RF-1", Status: "REFUNDED"})
	}))
	defer srv.Close()

	gateway := New(srv.URL, "")
	result, err := gateway.Refund(context.Background(), "TX-100", decimal.RequireFromString("96.80"))
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Equal(t, "RF-1", result.RefundID)
}

func TestRefund_DisabledSimulates(t *testing.T) {
	gateway := New("", "")
	result, err := gateway.Refund(context.Background(), "TX-100", decimal.RequireFromString("10.00"))
	require.NoError(t, err)
	require.True(t, result.Success)
	require.True(t, result.Simulated)
}

func TestStatus(t *testing.T) {
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/health", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer healthy.Close()
	require.Equal(t, ports.GatewayHealthy, New(healthy.URL, "").Status(context.Background()).State)

	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer broken.Close()
	require.Equal(t, ports.GatewayUnhealthy, New(broken.URL, "").Status(context.Background()).State)

	require.Equal(t, ports.GatewayDisabled, New("", "").Status(context.Background()).State)
}
