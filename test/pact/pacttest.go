//go:build pact
// +build pact

package pacttest

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

const (
	ProviderName = "payment-gateway"
	ConsumerName = "order-api"

	StateGatewayHealthy  = "gateway accepts charges"
	StateChargeDeclined  = "charges for the declined card are rejected"
	StateRefundAvailable = "charge TX-PACT-500 is refundable"
)

const (
	ExampleOrderID        = "7f1f9df2-3a64-4c5e-9d76-2f8f4f1c2ab1"
	ExampleTransactionID  = "TX-PACT-500"
	ExampleIdempotencyKey = "pact-idem-001"
	ExampleAmount         = "96.80"
	ExampleCurrency       = "BRL"
)

// PactDir returns the workspace-level directory for generated pact files.
func PactDir(t testing.TB) string {
	t.Helper()
	dir := filepath.Join(projectRoot(t), "pacts")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("create pact dir: %v", err)
	}
	return dir
}

// LogDir returns the log output directory for pact-go.
func LogDir(t testing.TB) string {
	t.Helper()
	dir := filepath.Join(projectRoot(t), "bin", "pact-logs")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("create pact log dir: %v", err)
	}
	return dir
}

// projectRoot walks up from this file to the workspace root.
func projectRoot(t testing.TB) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("cannot determine caller for pact paths")
	}
	return filepath.Clean(filepath.Join(filepath.Dir(file), "..", ".."))
}
