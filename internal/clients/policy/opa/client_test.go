package opa

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/deliverly/order-api/internal/domains/orders/ports"
)

func authzRequest() ports.AuthzRequest {
	return ports.AuthzRequest{
		Action:   "cancel_order",
		Resource: map[string]any{"type": "order", "id": "ord-1"},
		Subject:  map[string]any{"id": "user-1", "type": "user"},
	}
}

func TestAuthorize_BooleanResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/data/orders/allow", r.URL.Path)
		var body struct {
			Input ports.AuthzRequest `json:"input"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "cancel_order", body.Input.Action)
		_, _ = w.Write([]byte(`{"result": true}`))
	}))
	defer srv.Close()

	decision, err := New(srv.URL).Authorize(context.Background(), authzRequest())
	require.NoError(t, err)
	require.True(t, decision.Allowed)
}

func TestAuthorize_ObjectResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"result": {"allow": false, "reason": "outside cancellation window"}}`))
	}))
	defer srv.Close()

	decision, err := New(srv.URL).Authorize(context.Background(), authzRequest())
	require.NoError(t, err)
	require.False(t, decision.Allowed)
	require.Equal(t, "outside cancellation window", decision.Reason)
}

func TestAuthorize_UndefinedResultDenies(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	decision, err := New(srv.URL).Authorize(context.Background(), authzRequest())
	require.NoError(t, err)
	require.False(t, decision.Allowed)
}

func TestAuthorize_FailOpenByDefault(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	decision, err := New(srv.URL).Authorize(context.Background(), authzRequest())
	require.NoError(t, err)
	require.True(t, decision.Allowed)
	require.Contains(t, decision.Reason, "fail-open")
}

func TestAuthorize_FailClosedOption(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	decision, err := New(srv.URL, WithFailClosed()).Authorize(context.Background(), authzRequest())
	require.NoError(t, err)
	require.False(t, decision.Allowed)
	require.Contains(t, decision.Reason, "fail-closed")
}

func TestAuthorize_DisabledAllows(t *testing.T) {
	client := New("")
	require.False(t, client.Enabled())

	decision, err := client.Authorize(context.Background(), authzRequest())
	require.NoError(t, err)
	require.True(t, decision.Allowed)
}

func TestWithPolicyPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/data/deliverly/orders/cancel", r.URL.Path)
		_, _ = w.Write([]byte(`{"result": true}`))
	}))
	defer srv.Close()

	client := New(srv.URL, WithPolicyPath("/v1/data/deliverly/orders/cancel"))
	decision, err := client.Authorize(context.Background(), authzRequest())
	require.NoError(t, err)
	require.True(t, decision.Allowed)
}

func TestStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/health", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()
	require.Equal(t, ports.GatewayHealthy, New(srv.URL).Status(context.Background()).State)
	require.Equal(t, ports.GatewayDisabled, New("").Status(context.Background()).State)
}
