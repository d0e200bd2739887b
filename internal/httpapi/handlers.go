package httpapi

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/deliverly/order-api/internal/domains/orders/application"
	orderstypes "github.com/deliverly/order-api/internal/domains/orders/application/types"
	"github.com/deliverly/order-api/internal/domains/orders/domain"
	"github.com/deliverly/order-api/internal/domains/orders/ports"
	sharederrors "github.com/deliverly/order-api/internal/shared/errors"
)

// StatusProbe reports the health of an external dependency.
type StatusProbe func(ctx context.Context) ports.GatewayStatus

// Handlers carries the ordering HTTP endpoints.
type Handlers struct {
	service       ports.Service
	workflows     ports.WorkflowOrchestrator
	reconciler    *application.Reconciler
	responder     *sharederrors.ChainedResponder
	logger        *slog.Logger
	webhookSecret string
	probes        map[string]StatusProbe
}

type HandlerOption func(*Handlers)

// WithLogger injects a slog logger.
func WithLogger(logger *slog.Logger) HandlerOption {
	return func(h *Handlers) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithWebhookSecret enables provider signature verification on the webhook
// endpoint.
func WithWebhookSecret(secret string) HandlerOption {
	return func(h *Handlers) {
		h.webhookSecret = secret
	}
}

// WithStatusProbe registers a named dependency probe for the payments health
// endpoint.
func WithStatusProbe(name string, probe StatusProbe) HandlerOption {
	return func(h *Handlers) {
		if probe != nil {
			h.probes[name] = probe
		}
	}
}

// NewHandlers wires the ordering endpoints.
func NewHandlers(service ports.Service, workflows ports.WorkflowOrchestrator, reconciler *application.Reconciler, opts ...HandlerOption) *Handlers {
	h := &Handlers{
		service:    service,
		workflows:  workflows,
		reconciler: reconciler,
		responder:  newResponder(),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		probes:     map[string]StatusProbe{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// CreateOrder handles POST /orders. Placement goes through the workflow
// orchestrator so retried requests with the same Idempotency-Key collapse
// onto one durable execution.
func (h *Handlers) CreateOrder(c *gin.Context) {
	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.responder.BadRequest(c, err.Error())
		return
	}
	if len(req.Items) == 0 {
		h.responder.ValidationFailed(c, map[string]string{"items": "at least one item is required"})
		return
	}
	input := toCreateInput(req, c.GetHeader("Idempotency-Key"))
	order, err := h.workflows.PlaceOrder(c.Request.Context(), input)
	if err != nil {
		h.responder.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toOrderView(order))
}

// GetOrder handles GET /orders/:id.
func (h *Handlers) GetOrder(c *gin.Context) {
	order, err := h.service.GetOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.responder.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderView(order))
}

// ListOrders handles GET /orders with optional filters.
func (h *Handlers) ListOrders(c *gin.Context) {
	filter := orderstypes.ListOrdersFilter{
		CustomerID:   c.Query("customerId"),
		RestaurantID: c.Query("restaurantId"),
		Status:       domain.Status(c.Query("status")),
	}
	if filter.Status != "" && !domain.ValidStatus(filter.Status) {
		h.responder.ValidationFailed(c, map[string]string{"status": "unknown order status"})
		return
	}
	var parseErr string
	filter.PlacedFrom, parseErr = parseTimeQuery(c.Query("from"))
	if parseErr != "" {
		h.responder.ValidationFailed(c, map[string]string{"from": parseErr})
		return
	}
	filter.PlacedTo, parseErr = parseTimeQuery(c.Query("to"))
	if parseErr != "" {
		h.responder.ValidationFailed(c, map[string]string{"to": parseErr})
		return
	}
	orders, err := h.service.ListOrders(c.Request.Context(), filter)
	if err != nil {
		h.responder.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": toOrderViews(orders), "count": len(orders)})
}

// Dashboard handles GET /orders/dashboard.
func (h *Handlers) Dashboard(c *gin.Context) {
	stats, err := h.service.DashboardStats(c.Request.Context())
	if err != nil {
		h.responder.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, DashboardView{
		Pending:        stats.Pending,
		Confirmed:      stats.Confirmed,
		Delivered:      stats.Delivered,
		DeliveredTotal: stats.DeliveredTotal,
	})
}

// PayOrder handles POST /orders/:id/pay.
func (h *Handlers) PayOrder(c *gin.Context) {
	var req PayOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.responder.BadRequest(c, err.Error())
		return
	}
	result, err := h.service.PayOrder(c.Request.Context(), orderstypes.PayOrderInput{
		OrderID:        c.Param("id"),
		Method:         req.Method,
		MethodData:     req.MethodData,
		IdempotencyKey: c.GetHeader("Idempotency-Key"),
	})
	if err != nil {
		h.responder.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, PayOrderResponse{
		Order: toOrderView(result.Order),
		Payment: PaymentSummaryView{
			TransactionID:    result.Payment.TransactionID,
			Status:           result.Payment.Status,
			Message:          result.Payment.Message,
			AlreadyProcessed: result.Payment.AlreadyProcessed,
			Simulated:        result.Payment.Simulated,
		},
	})
}

// CancelOrder handles POST /orders/:id/cancel.
func (h *Handlers) CancelOrder(c *gin.Context) {
	var req CancelOrderRequest
	// Cancellation accepts an empty body.
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		h.responder.BadRequest(c, err.Error())
		return
	}
	order, err := h.service.CancelOrder(c.Request.Context(), orderstypes.CancelOrderInput{
		OrderID:    c.Param("id"),
		Reason:     req.Reason,
		CanceledBy: req.CanceledBy,
	})
	if err != nil {
		h.responder.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderView(order))
}

// UpdateStatus handles PATCH /orders/:id/status.
func (h *Handlers) UpdateStatus(c *gin.Context) {
	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.responder.BadRequest(c, err.Error())
		return
	}
	order, err := h.service.UpdateOrderStatus(c.Request.Context(), orderstypes.UpdateStatusInput{
		OrderID: c.Param("id"),
		Status:  domain.Status(req.Status),
	})
	if err != nil {
		h.responder.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderView(order))
}

// PaymentsHealth handles GET /health/payments, reporting every registered
// dependency probe.
func (h *Handlers) PaymentsHealth(c *gin.Context) {
	ctx := c.Request.Context()
	statuses := make(map[string]ports.GatewayStatus, len(h.probes))
	healthy := true
	for name, probe := range h.probes {
		status := probe(ctx)
		statuses[name] = status
		if status.State == ports.GatewayUnhealthy {
			healthy = false
		}
	}
	code := http.StatusOK
	if !healthy {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{"healthy": healthy, "dependencies": statuses})
}

func parseTimeQuery(raw string) (*time.Time, string) {
	if raw == "" {
		return nil, ""
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, "must be an RFC 3339 timestamp"
	}
	return &parsed, ""
}
