package messaging

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/require"
)

func TestEnsureConnection_BoundedAttempts(t *testing.T) {
	bus := NewNATSBus("nats://broker:4222", WithConnectRetry(3, time.Millisecond))
	calls := 0
	bus.dial = func() (*nats.Conn, error) {
		calls++
		return nil, errors.New("connection refused")
	}

	err := bus.Publish(context.Background(), "order.created", map[string]string{"orderId": "x"})

	require.Error(t, err)
	require.Contains(t, err.Error(), "after 3 attempts")
	require.Equal(t, 3, calls)
}

func TestEnsureConnection_RecoversOnRetry(t *testing.T) {
	bus := NewNATSBus("nats://broker:4222", WithConnectRetry(3, time.Millisecond))
	calls := 0
	bus.dial = func() (*nats.Conn, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("connection refused")
		}
		return &nats.Conn{}, nil
	}

	conn, err := bus.ensureConnection(context.Background())

	require.NoError(t, err)
	require.NotNil(t, conn)
	require.Equal(t, 2, calls)
}

func TestEnsureConnection_StopsWhenContextCanceled(t *testing.T) {
	bus := NewNATSBus("nats://broker:4222", WithConnectRetry(5, time.Minute))
	calls := 0
	bus.dial = func() (*nats.Conn, error) {
		calls++
		return nil, errors.New("connection refused")
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := bus.ensureConnection(ctx)

	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, calls)
}

func TestDisabledBusNeverDials(t *testing.T) {
	bus := NewNATSBus("")
	bus.dial = func() (*nats.Conn, error) {
		t.Fatal("disabled bus must not dial")
		return nil, nil
	}

	require.False(t, bus.Enabled())
	require.NoError(t, bus.Publish(context.Background(), "order.created", nil))
	require.NoError(t, bus.Subscribe(context.Background(), "order.created", func([]byte) {}))
}

func TestClosedBusRejectsPublish(t *testing.T) {
	bus := NewNATSBus("nats://broker:4222")
	require.NoError(t, bus.Close(context.Background()))

	err := bus.Publish(context.Background(), "order.created", nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "closed")

	// Close is idempotent.
	require.NoError(t, bus.Close(context.Background()))
}
