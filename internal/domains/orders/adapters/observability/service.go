package observability

import (
	"context"
	"io"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"

	orderstypes "github.com/deliverly/order-api/internal/domains/orders/application/types"
	"github.com/deliverly/order-api/internal/domains/orders/domain"
	"github.com/deliverly/order-api/internal/domains/orders/ports"
)

const tracerName = "github.com/deliverly/order-api/internal/domains/orders/adapters/observability/service"

// Service decorates the ordering application port with tracing, logging, and
// metrics.
type Service struct {
	inner   ports.Service
	tracer  trace.Tracer
	logger  *slog.Logger
	metrics serviceMetrics
}

type Option func(*Service)

// WithLogger injects a slog logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithTracer injects a tracer implementation.
func WithTracer(tr trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = tr
	}
}

// WithMeter injects the meter used to create service metrics instruments.
func WithMeter(m metric.Meter) Option {
	return func(s *Service) {
		s.metrics = newServiceMetrics(m)
	}
}

// New wires a decorator around the core service.
func New(inner ports.Service, opts ...Option) ports.Service {
	s := &Service{
		inner:   inner,
		tracer:  nooptrace.NewTracerProvider().Tracer(tracerName),
		logger:  defaultLogger(),
		metrics: newServiceMetrics(nil),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.tracer == nil {
		s.tracer = nooptrace.NewTracerProvider().Tracer(tracerName)
	}
	if s.logger == nil {
		s.logger = defaultLogger()
	}
	return s
}

// CreateOrder places a new order with instrumentation.
func (s *Service) CreateOrder(ctx context.Context, input orderstypes.CreateOrderInput) (*domain.Order, error) {
	ctx, span := s.startSpan(ctx, "Service.CreateOrder",
		attribute.String("order.customer_id", input.CustomerID),
		attribute.String("order.restaurant_id", input.RestaurantID),
		attribute.Int("order.item_count", len(input.Items)),
	)
	defer span.End()

	s.logInfo(ctx, "creating order", slog.String("customer.id", input.CustomerID), slog.String("restaurant.id", input.RestaurantID))
	result, err := s.inner.CreateOrder(ctx, input)
	if err != nil {
		return nil, s.handleError(ctx, span, err, "failed to create order", slog.String("customer.id", input.CustomerID))
	}
	if result != nil {
		s.metrics.recordCreated(ctx)
		span.SetAttributes(attribute.String("order.id", result.ID), attribute.String("order.number", result.Number))
		s.logInfo(ctx, "order created", slog.String("order.id", result.ID), slog.String("order.number", result.Number))
	}
	return result, nil
}

// PayOrder settles an order with instrumentation.
func (s *Service) PayOrder(ctx context.Context, input orderstypes.PayOrderInput) (*orderstypes.PayOrderResult, error) {
	ctx, span := s.startSpan(ctx, "Service.PayOrder",
		attribute.String("order.id", input.OrderID),
		attribute.String("payment.method", input.Method),
	)
	defer span.End()

	s.logInfo(ctx, "paying order", slog.String("order.id", input.OrderID), slog.String("method", input.Method))
	result, err := s.inner.PayOrder(ctx, input)
	if err != nil {
		return nil, s.handleError(ctx, span, err, "failed to pay order", slog.String("order.id", input.OrderID))
	}
	if result != nil {
		span.SetAttributes(
			attribute.String("payment.status", result.Payment.Status),
			attribute.Bool("payment.already_processed", result.Payment.AlreadyProcessed),
			attribute.Bool("payment.simulated", result.Payment.Simulated),
		)
		if !result.Payment.AlreadyProcessed {
			s.metrics.recordPaid(ctx, result.Payment.Simulated)
		}
		s.logInfo(ctx, "order paid",
			slog.String("order.id", input.OrderID),
			slog.String("transaction.id", result.Payment.TransactionID),
			slog.Bool("already_processed", result.Payment.AlreadyProcessed),
		)
	}
	return result, nil
}

// CancelOrder cancels an order with instrumentation.
func (s *Service) CancelOrder(ctx context.Context, input orderstypes.CancelOrderInput) (*domain.Order, error) {
	ctx, span := s.startSpan(ctx, "Service.CancelOrder", attribute.String("order.id", input.OrderID))
	defer span.End()

	s.logInfo(ctx, "canceling order", slog.String("order.id", input.OrderID), slog.String("reason", input.Reason))
	result, err := s.inner.CancelOrder(ctx, input)
	if err != nil {
		return nil, s.handleError(ctx, span, err, "failed to cancel order", slog.String("order.id", input.OrderID))
	}
	if result != nil {
		s.metrics.recordCanceled(ctx)
		s.logInfo(ctx, "order canceled", slog.String("order.id", result.ID))
	}
	return result, nil
}

// UpdateOrderStatus advances the fulfillment status with instrumentation.
func (s *Service) UpdateOrderStatus(ctx context.Context, input orderstypes.UpdateStatusInput) (*domain.Order, error) {
	ctx, span := s.startSpan(ctx, "Service.UpdateOrderStatus",
		attribute.String("order.id", input.OrderID),
		attribute.String("order.status.requested", string(input.Status)),
	)
	defer span.End()

	s.logInfo(ctx, "updating order status", slog.String("order.id", input.OrderID), slog.String("status", string(input.Status)))
	result, err := s.inner.UpdateOrderStatus(ctx, input)
	if err != nil {
		return nil, s.handleError(ctx, span, err, "failed to update order status", slog.String("order.id", input.OrderID))
	}
	if result != nil {
		s.metrics.recordTransition(ctx, result.Status)
		s.logInfo(ctx, "order status updated", slog.String("order.id", result.ID), slog.String("status", string(result.Status)))
	}
	return result, nil
}

// GetOrder loads a single order.
func (s *Service) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	ctx, span := s.startSpan(ctx, "Service.GetOrder", attribute.String("order.id", id))
	defer span.End()

	result, err := s.inner.GetOrder(ctx, id)
	if err != nil {
		return nil, s.handleError(ctx, span, err, "failed to load order", slog.String("order.id", id))
	}
	return result, nil
}

// ListOrders queries orders by filter.
func (s *Service) ListOrders(ctx context.Context, filter orderstypes.ListOrdersFilter) ([]*domain.Order, error) {
	ctx, span := s.startSpan(ctx, "Service.ListOrders", attribute.String("order.status.filter", string(filter.Status)))
	defer span.End()

	result, err := s.inner.ListOrders(ctx, filter)
	if err != nil {
		return nil, s.handleError(ctx, span, err, "failed to list orders")
	}
	span.SetAttributes(attribute.Int("order.result.count", len(result)))
	return result, nil
}

// DashboardStats aggregates counters for the operations dashboard.
func (s *Service) DashboardStats(ctx context.Context) (*orderstypes.DashboardStats, error) {
	ctx, span := s.startSpan(ctx, "Service.DashboardStats")
	defer span.End()

	result, err := s.inner.DashboardStats(ctx)
	if err != nil {
		return nil, s.handleError(ctx, span, err, "failed to compute dashboard stats")
	}
	return result, nil
}

func (s *Service) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer := s.tracer
	if tracer == nil {
		tracer = nooptrace.NewTracerProvider().Tracer(tracerName)
	}
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func (s *Service) logInfo(ctx context.Context, msg string, attrs ...slog.Attr) {
	if s.logger == nil {
		return
	}
	s.logger.LogAttrs(ctx, slog.LevelInfo, msg, attrs...)
}

func (s *Service) logError(ctx context.Context, msg string, err error, attrs ...slog.Attr) {
	if s.logger == nil {
		return
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	s.logger.LogAttrs(ctx, slog.LevelError, msg, attrs...)
}

func (s *Service) handleError(ctx context.Context, span trace.Span, err error, msg string, attrs ...slog.Attr) error {
	if err == nil {
		return nil
	}
	if span != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	s.logError(ctx, msg, err, attrs...)
	return err
}

func defaultLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type serviceMetrics struct {
	ordersCreated    metric.Int64Counter
	ordersPaid       metric.Int64Counter
	ordersCanceled   metric.Int64Counter
	orderTransitions metric.Int64Counter
}

func newServiceMetrics(m metric.Meter) serviceMetrics {
	if m == nil {
		return serviceMetrics{}
	}
	ordersCreated, _ := m.Int64Counter("orders.service.created", metric.WithDescription("Number of orders placed"))
	ordersPaid, _ := m.Int64Counter("orders.service.paid", metric.WithDescription("Number of orders settled"))
	ordersCanceled, _ := m.Int64Counter("orders.service.canceled", metric.WithDescription("Number of orders canceled"))
	orderTransitions, _ := m.Int64Counter("orders.service.transitions", metric.WithDescription("Number of fulfillment status transitions"))
	return serviceMetrics{
		ordersCreated:    ordersCreated,
		ordersPaid:       ordersPaid,
		ordersCanceled:   ordersCanceled,
		orderTransitions: orderTransitions,
	}
}

func (m serviceMetrics) recordCreated(ctx context.Context) {
	addCounter(ctx, m.ordersCreated, 1)
}

func (m serviceMetrics) recordPaid(ctx context.Context, simulated bool) {
	addCounter(ctx, m.ordersPaid, 1, attribute.Bool("payment.simulated", simulated))
}

func (m serviceMetrics) recordCanceled(ctx context.Context) {
	addCounter(ctx, m.ordersCanceled, 1)
}

func (m serviceMetrics) recordTransition(ctx context.Context, status domain.Status) {
	addCounter(ctx, m.orderTransitions, 1, attribute.String("order.status", string(status)))
}

func addCounter(ctx context.Context, counter metric.Int64Counter, value int64, attrs ...attribute.KeyValue) {
	if counter == nil {
		return
	}
	counter.Add(ctx, value, metric.WithAttributes(attrs...))
}

var _ ports.Service = (*Service)(nil)
