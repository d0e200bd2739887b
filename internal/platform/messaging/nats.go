// Package messaging holds the NATS-backed message bus. The connection is
// established lazily on first use so the API can boot while the broker is
// still coming up.
package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/deliverly/order-api/internal/domains/orders/ports"
)

var _ ports.MessageBus = (*NATSBus)(nil)

// NATSBus publishes JSON-encoded events to NATS subjects.
type NATSBus struct {
	url       string
	timeout   time.Duration
	attempts  int
	retryWait time.Duration
	logger    *slog.Logger

	// dial is swapped out in tests; production dials the configured URL.
	dial func() (*nats.Conn, error)

	mu     sync.Mutex
	conn   *nats.Conn
	closed bool
}

type Option func(*NATSBus)

// WithConnectTimeout overrides the dial timeout.
func WithConnectTimeout(timeout time.Duration) Option {
	return func(b *NATSBus) {
		if timeout > 0 {
			b.timeout = timeout
		}
	}
}

// WithLogger injects a slog logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *NATSBus) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithConnectRetry overrides how often the first connect is attempted and
// how long to wait between attempts.
func WithConnectRetry(attempts int, wait time.Duration) Option {
	return func(b *NATSBus) {
		if attempts > 0 {
			b.attempts = attempts
		}
		if wait > 0 {
			b.retryWait = wait
		}
	}
}

// NewNATSBus builds the bus. An empty URL yields a disabled bus that drops
// every publish.
func NewNATSBus(url string, opts ...Option) *NATSBus {
	b := &NATSBus{
		url:       url,
		timeout:   5 * time.Second,
		attempts:  3,
		retryWait: 2 * time.Second,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	if b.dial == nil {
		b.dial = b.dialNATS
	}
	return b
}

func (b *NATSBus) dialNATS() (*nats.Conn, error) {
	return nats.Connect(b.url,
		nats.Timeout(b.timeout),
		nats.MaxReconnects(10),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				b.logger.Warn("nats disconnected", slog.String("error", err.Error()))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			b.logger.Info("nats reconnected", slog.String("server", nc.ConnectedUrl()))
		}),
	)
}

func (b *NATSBus) Enabled() bool { return b != nil && b.url != "" }

// ensureConnection dials on first use, making a bounded number of attempts
// before giving up. The mutex makes concurrent first publishes share one
// dial sequence instead of racing.
func (b *NATSBus) ensureConnection(ctx context.Context) (*nats.Conn, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, fmt.Errorf("message bus closed")
	}
	if b.conn != nil && b.conn.IsConnected() {
		return b.conn, nil
	}
	var lastErr error
	for attempt := 1; attempt <= b.attempts; attempt++ {
		b.logger.LogAttrs(ctx, slog.LevelInfo, "connecting to nats",
			slog.String("url", b.url), slog.Int("attempt", attempt))
		conn, err := b.dial()
		if err == nil {
			b.conn = conn
			b.logger.LogAttrs(ctx, slog.LevelInfo, "connected to nats", slog.String("server", conn.ConnectedUrl()))
			return conn, nil
		}
		lastErr = err
		if attempt < b.attempts {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(b.retryWait):
			}
		}
	}
	return nil, fmt.Errorf("connect to nats after %d attempts: %w", b.attempts, lastErr)
}

// Publish sends the payload as JSON. Errors are returned for the caller to
// log; event emission is best-effort by contract.
func (b *NATSBus) Publish(ctx context.Context, subject string, payload any) error {
	if !b.Enabled() {
		return nil
	}
	conn, err := b.ensureConnection(ctx)
	if err != nil {
		return err
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode event payload: %w", err)
	}
	if err := conn.Publish(subject, encoded); err != nil {
		return fmt.Errorf("publish to %s: %w", subject, err)
	}
	b.logger.LogAttrs(ctx, slog.LevelInfo, "published event", slog.String("subject", subject))
	return nil
}

// Subscribe registers a handler for a subject. Handler panics and decode
// problems stay inside the subscription callback.
func (b *NATSBus) Subscribe(ctx context.Context, subject string, handler func(data []byte)) error {
	if !b.Enabled() {
		return nil
	}
	conn, err := b.ensureConnection(ctx)
	if err != nil {
		return err
	}
	if _, err := conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(msg.Data)
	}); err != nil {
		return fmt.Errorf("subscribe to %s: %w", subject, err)
	}
	b.logger.LogAttrs(ctx, slog.LevelInfo, "subscribed to subject", slog.String("subject", subject))
	return nil
}

// Status reports broker reachability for the health endpoint.
func (b *NATSBus) Status(ctx context.Context) ports.GatewayStatus {
	if !b.Enabled() {
		return ports.GatewayStatus{State: ports.GatewayDisabled, Message: "nats not configured"}
	}
	conn, err := b.ensureConnection(ctx)
	if err != nil {
		return ports.GatewayStatus{State: ports.GatewayUnhealthy, Message: err.Error()}
	}
	return ports.GatewayStatus{
		State:   ports.GatewayHealthy,
		Message: "nats connection is active",
		Details: map[string]any{"server": conn.ConnectedUrl()},
	}
}

// Close drains in-flight messages and shuts the connection down once.
func (b *NATSBus) Close(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	if b.conn == nil {
		return nil
	}
	if err := b.conn.Drain(); err != nil {
		b.conn.Close()
		return fmt.Errorf("drain nats connection: %w", err)
	}
	return nil
}
