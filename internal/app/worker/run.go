package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	temporalotel "go.temporal.io/sdk/contrib/opentelemetry"
	workerlog "go.temporal.io/sdk/log"
	temporalworker "go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/deliverly/order-api/internal/app/api"
	"github.com/deliverly/order-api/internal/clients/payment/httpgateway"
	"github.com/deliverly/order-api/internal/clients/payment/stripegateway"
	"github.com/deliverly/order-api/internal/clients/policy/opa"
	ordersmemory "github.com/deliverly/order-api/internal/domains/orders/adapters/memory"
	ordersobs "github.com/deliverly/order-api/internal/domains/orders/adapters/observability"
	orderspostgres "github.com/deliverly/order-api/internal/domains/orders/adapters/persistence/postgres"
	ordersapp "github.com/deliverly/order-api/internal/domains/orders/application"
	ordersports "github.com/deliverly/order-api/internal/domains/orders/ports"
	orderactivities "github.com/deliverly/order-api/internal/durable/temporal/activities/orders"
	orderworkflows "github.com/deliverly/order-api/internal/durable/temporal/workflows/orders"
	"github.com/deliverly/order-api/internal/platform/messaging"
	"github.com/deliverly/order-api/internal/platform/migrations"
	platformobservability "github.com/deliverly/order-api/internal/platform/observability"
	platformpostgres "github.com/deliverly/order-api/internal/platform/postgres"
)

// Run boots the Temporal worker that executes order placement workflows.
func Run(ctx context.Context) error {
	const serviceName = "order-worker"
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

	cfg, err := api.LoadConfig()
	if err != nil {
		return err
	}
	if cfg.DefaultDeliveryFee != nil {
		ordersapp.DefaultDeliveryFee = *cfg.DefaultDeliveryFee
	}

	repo, cleanupRepo := buildOrderRepository(ctx, cfg, logger)
	defer cleanupRepo()
	customers, restaurants, menu := ordersmemory.NewDemoCatalog()
	gateway := buildPaymentGateway(cfg, logger)

	opts := []opa.Option{opa.WithLogger(logger)}
	if cfg.OPAPolicyPath != "" {
		opts = append(opts, opa.WithPolicyPath(cfg.OPAPolicyPath))
	}
	if cfg.OPAFailClosed {
		opts = append(opts, opa.WithFailClosed())
	}
	policyClient := opa.New(cfg.OPAURL, opts...)

	bus := messaging.NewNATSBus(cfg.NatsURL, messaging.WithLogger(logger))
	defer func() { _ = bus.Close(context.Background()) }()
	if err := subscribeEventTrail(ctx, bus, logger); err != nil {
		logger.Warn("order event trail unavailable", slog.String("error", err.Error()))
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
	activities := orderactivities.NewActivities(service)

	tracerOptions := temporalotel.TracerOptions{Tracer: instruments.Tracer("temporal-worker")}
	tracingInterceptor, err := temporalotel.NewTracingInterceptor(tracerOptions)
	if err != nil {
		return fmt.Errorf("failed to configure Temporal tracing interceptor: %w", err)
	}
	clientOptions := client.Options{
		HostPort:  cfg.TemporalAddress,
		Namespace: cfg.TemporalNamespace,
		Logger:    workerlog.NewStructuredLogger(logger),
	}
	clientOptions.Interceptors = append(clientOptions.Interceptors, tracingInterceptor)
	temporalClient, err := client.Dial(clientOptions)
	if err != nil {
		return fmt.Errorf("failed to create Temporal client: %w", err)
	}
	defer temporalClient.Close()

	w := temporalworker.New(temporalClient, orderworkflows.OrderPlacementTaskQueue, temporalworker.Options{})
	w.RegisterWorkflowWithOptions(orderworkflows.OrderPlacementWorkflow, workflow.RegisterOptions{Name: orderworkflows.OrderPlacementWorkflowName})
	w.RegisterActivityWithOptions(activities.PlaceOrder, activity.RegisterOptions{Name: orderactivities.PlaceOrderActivityName})

	logger.Info("worker listening",
		slog.String("taskQueue", orderworkflows.OrderPlacementTaskQueue),
		slog.String("namespace", clientOptions.Namespace))
	if err := w.Run(temporalworker.InterruptCh()); err != nil {
		logger.Error("Temporal worker exited with error", slog.String("error", err.Error()))
		return err
	}
	logger.Info("Temporal worker stopped")
	return nil
}

// subscribeEventTrail mirrors the order event stream into the worker log so
// operators can follow placements and settlements next to workflow output.
func subscribeEventTrail(ctx context.Context, bus ordersports.MessageBus, logger *slog.Logger) error {
	if !bus.Enabled() {
		return nil
	}
	for _, subject := range []string{
		ordersapp.SubjectOrderCreated,
		ordersapp.SubjectOrderPaid,
		ordersapp.SubjectOrderCanceled,
	} {
		if err := bus.Subscribe(ctx, subject, func(data []byte) {
			logger.LogAttrs(ctx, slog.LevelInfo, "order event observed",
				slog.String("subject", subject), slog.Int("payload.bytes", len(data)))
		}); err != nil {
			return fmt.Errorf("subscribe to %s: %w", subject, err)
		}
	}
	return nil
}

func buildOrderRepository(ctx context.Context, cfg api.Config, logger *slog.Logger) (ordersports.Repository, func()) {
	if cfg.PostgresDSN == "" {
		logger.Warn("POSTGRES_DSN not set, worker falling back to in-memory order repository")
		return ordersmemory.NewRepository(), func() {}
	}
	db, err := platformpostgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Warn("worker failed to connect to postgres, falling back to memory", slog.String("error", err.Error()))
		return ordersmemory.NewRepository(), func() {}
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.Warn("worker failed to unwrap postgres connection, falling back to memory", slog.String("error", err.Error()))
		return ordersmemory.NewRepository(), func() {}
	}
	if err := migrations.Run(db); err != nil {
		logger.Warn("worker failed to run migrations, falling back to memory", slog.String("error", err.Error()))
		_ = sqlDB.Close()
		return ordersmemory.NewRepository(), func() {}
	}
	logger.Info("worker order repository configured with postgres")
	return orderspostgres.NewRepository(db), func() { _ = sqlDB.Close() }
}

func buildPaymentGateway(cfg api.Config, logger *slog.Logger) ordersports.PaymentGateway {
	switch cfg.PaymentProvider {
	case api.ProviderHTTPGateway:
		return httpgateway.New(cfg.PaymentGatewayURL, cfg.PaymentGatewayAPIKey, httpgateway.WithLogger(logger))
	default:
		return stripegateway.New(cfg.StripeSecretKey, stripegateway.WithLogger(logger))
	}
}
