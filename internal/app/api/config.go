package api

import (
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"go.temporal.io/sdk/client"
)

// Payment provider selector values.
const (
	ProviderStripe      = "stripe"
	ProviderHTTPGateway = "http"
)

// Config carries environment-driven settings for the API process.
type Config struct {
	Port        string
	PostgresDSN string

	NatsURL   string
	RedisAddr string

	PaymentProvider      string
	PaymentGatewayURL    string
	PaymentGatewayAPIKey string
	StripeSecretKey      string
	StripeWebhookSecret  string

	OPAURL        string
	OPAPolicyPath string
	OPAFailClosed bool

	TemporalAddress   string
	TemporalNamespace string
	TemporalDisabled  bool

	DefaultDeliveryFee *decimal.Decimal
}

// LoadConfig reads environment variables, applies defaults, and validates
// basic constraints. Every external dependency is optional: a missing setting
// selects the corresponding in-memory or simulated fallback.
func LoadConfig() (Config, error) {
	cfg := Config{
		Port:                 envDefault("PORT", "8080"),
		PostgresDSN:          strings.TrimSpace(os.Getenv("POSTGRES_DSN")),
		NatsURL:              strings.TrimSpace(os.Getenv("NATS_URL")),
		RedisAddr:            strings.TrimSpace(os.Getenv("REDIS_ADDR")),
		PaymentProvider:      strings.ToLower(envDefault("PAYMENT_PROVIDER", ProviderStripe)),
		PaymentGatewayURL:    strings.TrimSpace(os.Getenv("PAYMENT_GATEWAY_URL")),
		PaymentGatewayAPIKey: strings.TrimSpace(os.Getenv("PAYMENT_GATEWAY_API_KEY")),
		StripeSecretKey:      strings.TrimSpace(os.Getenv("STRIPE_SECRET_KEY")),
		StripeWebhookSecret:  strings.TrimSpace(os.Getenv("STRIPE_WEBHOOK_SECRET")),
		OPAURL:               strings.TrimSpace(os.Getenv("OPA_URL")),
		OPAPolicyPath:        strings.TrimSpace(os.Getenv("OPA_POLICY_PATH")),
		OPAFailClosed:        isTruthy(os.Getenv("OPA_FAIL_CLOSED")),
		TemporalAddress:      envDefault("TEMPORAL_ADDRESS", client.DefaultHostPort),
		TemporalNamespace:    envDefault("TEMPORAL_NAMESPACE", client.DefaultNamespace),
		TemporalDisabled:     isTruthy(os.Getenv("TEMPORAL_DISABLED")),
	}
	if cfg.PaymentProvider != ProviderStripe && cfg.PaymentProvider != ProviderHTTPGateway {
		return Config{}, fmt.Errorf("PAYMENT_PROVIDER must be %q or %q", ProviderStripe, ProviderHTTPGateway)
	}
	if raw := strings.TrimSpace(os.Getenv("DELIVERY_FEE_DEFAULT")); raw != "" {
		fee, err := decimal.NewFromString(raw)
		if err != nil || fee.IsNegative() {
			return Config{}, fmt.Errorf("DELIVERY_FEE_DEFAULT must be a non-negative decimal")
		}
		cfg.DefaultDeliveryFee = &fee
	}
	return cfg, nil
}

func envDefault(key, fallback string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return fallback
}

func isTruthy(value string) bool {
	value = strings.TrimSpace(strings.ToLower(value))
	return value == "1" || value == "true" || value == "yes"
}
