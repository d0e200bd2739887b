package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.temporal.io/sdk/client"
	temporalotel "go.temporal.io/sdk/contrib/opentelemetry"
	workerlog "go.temporal.io/sdk/log"

	"github.com/deliverly/order-api/internal/clients/payment/httpgateway"
	"github.com/deliverly/order-api/internal/clients/payment/stripegateway"
	"github.com/deliverly/order-api/internal/clients/policy/opa"
	ordersmemory "github.com/deliverly/order-api/internal/domains/orders/adapters/memory"
	ordersobs "github.com/deliverly/order-api/internal/domains/orders/adapters/observability"
	orderspostgres "github.com/deliverly/order-api/internal/domains/orders/adapters/persistence/postgres"
	ordersredis "github.com/deliverly/order-api/internal/domains/orders/adapters/persistence/redis"
	ordersworkflows "github.com/deliverly/order-api/internal/domains/orders/adapters/workflows"
	ordersapp "github.com/deliverly/order-api/internal/domains/orders/application"
	ordersports "github.com/deliverly/order-api/internal/domains/orders/ports"
	"github.com/deliverly/order-api/internal/httpapi"
	"github.com/deliverly/order-api/internal/platform/messaging"
	"github.com/deliverly/order-api/internal/platform/migrations"
	platformobservability "github.com/deliverly/order-api/internal/platform/observability"
	platformpostgres "github.com/deliverly/order-api/internal/platform/postgres"
)

// Run boots the ordering HTTP API with observability, persistence, payment
// providers, and workflows wired.
func Run(ctx context.Context) error {
	const serviceName = "order-api"
	instruments, shutdown, err := platformobservability.Init(ctx, serviceName)
	if err != nil {
		return fmt.Errorf("failed to initialize observability: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			instruments.Logger.Error("failed to shutdown observability", slog.String("error", err.Error()))
		}
	}()
	logger := instruments.Logger

	cfg, err := LoadConfig()
	if err != nil {
		return err
	}
	if cfg.DefaultDeliveryFee != nil {
		ordersapp.DefaultDeliveryFee = *cfg.DefaultDeliveryFee
	}

	repo, cleanupRepo := buildOrderRepository(ctx, cfg, logger)
	defer cleanupRepo()

	customers, restaurants, menu := buildCatalog(logger)
	gateway := buildPaymentGateway(cfg, logger)
	policyClient := buildPolicyClient(cfg, logger)

	bus := messaging.NewNATSBus(cfg.NatsURL, messaging.WithLogger(logger))
	defer func() { _ = bus.Close(context.Background()) }()
	if !bus.Enabled() {
		logger.Warn("NATS_URL not set, domain events are disabled")
	}

	coreService := ordersapp.NewService(
		repo, customers, restaurants, menu, gateway,
		ordersapp.WithPolicyClient(policyClient),
		ordersapp.WithMessageBus(bus),
		ordersapp.WithPaymentMetrics(ordersobs.NewPaymentMetrics(instruments.Meter("internal.orders.payments"))),
		ordersapp.WithLogger(logger),
	)
	service := ordersobs.New(
		coreService,
		ordersobs.WithLogger(logger),
		ordersobs.WithTracer(instruments.Tracer("internal.orders.application")),
		ordersobs.WithMeter(instruments.Meter("internal.orders.application")),
	)

	var orchestrator ordersports.WorkflowOrchestrator = ordersworkflows.NewInlineOrderWorkflows(service)
	if temporalClient, err := connectTemporalClient(cfg, instruments); err != nil {
		logger.Warn("Temporal workflows unavailable, placing orders inline", slog.String("error", err.Error()))
	} else {
		defer temporalClient.Close()
		orchestrator = ordersworkflows.NewTemporalOrderWorkflows(temporalClient)
		logger.Info("Temporal workflows enabled", slog.String("namespace", cfg.TemporalNamespace))
	}

	eventStore, cleanupEvents := buildEventStore(cfg, logger)
	defer cleanupEvents()
	reconciler := ordersapp.NewReconciler(repo,
		ordersapp.WithProcessedEventStore(eventStore),
		ordersapp.WithReconcilerLogger(logger),
	)

	handlers := httpapi.NewHandlers(service, orchestrator, reconciler,
		httpapi.WithLogger(logger),
		httpapi.WithWebhookSecret(cfg.StripeWebhookSecret),
		httpapi.WithStatusProbe("paymentGateway", gateway.Status),
		httpapi.WithStatusProbe("policy", policyClient.Status),
		httpapi.WithStatusProbe("messageBus", bus.Status),
	)
	router := httpapi.NewRouter(handlers)
	router.Use(otelgin.Middleware(serviceName))

	addr := ":" + cfg.Port
	logger.Info("order API listening", slog.String("addr", addr))
	if err := router.Run(addr); err != nil {
		logger.Error("order API server exited", slog.String("addr", addr), slog.String("error", err.Error()))
		return err
	}
	return nil
}

func buildOrderRepository(ctx context.Context, cfg Config, logger *slog.Logger) (ordersports.Repository, func()) {
	if cfg.PostgresDSN == "" {
		logger.Warn("POSTGRES_DSN not set, falling back to in-memory order repository")
		return ordersmemory.NewRepository(), func() {}
	}
	db, err := platformpostgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Warn("failed to connect to postgres, falling back to memory", slog.String("error", err.Error()))
		return ordersmemory.NewRepository(), func() {}
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.Warn("failed to unwrap postgres connection, falling back to memory", slog.String("error", err.Error()))
		return ordersmemory.NewRepository(), func() {}
	}
	if err := migrations.Run(db); err != nil {
		logger.Warn("failed to run migrations, falling back to memory", slog.String("error", err.Error()))
		_ = sqlDB.Close()
		return ordersmemory.NewRepository(), func() {}
	}
	logger.Info("order repository configured with postgres")
	return orderspostgres.NewRepository(db), func() { _ = sqlDB.Close() }
}

// buildCatalog wires the in-memory catalog directories. Customer and menu
// ownership lives in other services; until their lookups are integrated the
// API boots with a demo catalog so the order flow is exercisable end to end.
func buildCatalog(logger *slog.Logger) (*ordersmemory.CustomerDirectory, *ordersmemory.RestaurantDirectory, *ordersmemory.MenuCatalog) {
	customers, restaurants, menu := ordersmemory.NewDemoCatalog()
	logger.Warn("catalog directories running in-memory with demo seed data")
	return customers, restaurants, menu
}

func buildPaymentGateway(cfg Config, logger *slog.Logger) ordersports.PaymentGateway {
	switch cfg.PaymentProvider {
	case ProviderHTTPGateway:
		gw := httpgateway.New(cfg.PaymentGatewayURL, cfg.PaymentGatewayAPIKey, httpgateway.WithLogger(logger))
		if !gw.Enabled() {
			logger.Warn("PAYMENT_GATEWAY_URL not set, payments are simulated")
		}
		return gw
	default:
		gw := stripegateway.New(cfg.StripeSecretKey, stripegateway.WithLogger(logger))
		if !gw.Enabled() {
			logger.Warn("STRIPE_SECRET_KEY not set, payments are simulated")
		}
		return gw
	}
}

func buildPolicyClient(cfg Config, logger *slog.Logger) *opa.Client {
	opts := []opa.Option{opa.WithLogger(logger)}
	if cfg.OPAPolicyPath != "" {
		opts = append(opts, opa.WithPolicyPath(cfg.OPAPolicyPath))
	}
	if cfg.OPAFailClosed {
		opts = append(opts, opa.WithFailClosed())
	}
	policyClient := opa.New(cfg.OPAURL, opts...)
	if !policyClient.Enabled() {
		logger.Warn("OPA_URL not set, authorization gate is disabled")
	}
	return policyClient
}

func buildEventStore(cfg Config, logger *slog.Logger) (ordersports.ProcessedEventStore, func()) {
	if cfg.RedisAddr == "" {
		logger.Warn("REDIS_ADDR not set, webhook dedup runs in-memory")
		return ordersmemory.NewProcessedEventStore(), func() {}
	}
	redisClient := goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr})
	logger.Info("webhook dedup configured with redis", slog.String("addr", cfg.RedisAddr))
	return ordersredis.NewProcessedEventStore(redisClient), func() { _ = redisClient.Close() }
}

func connectTemporalClient(cfg Config, instruments *platformobservability.Instruments) (client.Client, error) {
	if cfg.TemporalDisabled {
		return nil, errors.New("temporal disabled via TEMPORAL_DISABLED env")
	}
	tracerOptions := temporalotel.TracerOptions{}
	if instruments != nil {
		tracerOptions.Tracer = instruments.Tracer("temporal-client")
	}
	tracingInterceptor, err := temporalotel.NewTracingInterceptor(tracerOptions)
	if err != nil {
		return nil, err
	}
	logger := workerlog.NewStructuredLogger(effectiveLogger(instruments))
	options := client.Options{
		HostPort:  cfg.TemporalAddress,
		Namespace: cfg.TemporalNamespace,
		Logger:    logger,
	}
	options.Interceptors = append(options.Interceptors, tracingInterceptor)
	return client.Dial(options)
}

func effectiveLogger(instruments *platformobservability.Instruments) *slog.Logger {
	if instruments != nil && instruments.Logger != nil {
		return instruments.Logger
	}
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}
