package ports

import "context"

// MessageBus publishes domain events at-least-once. Publish failures are the
// caller's to swallow: event emission never unwinds a use case.
type MessageBus interface {
	Enabled() bool
	Publish(ctx context.Context, subject string, payload any) error
	Subscribe(ctx context.Context, subject string, handler func(data []byte)) error
	Close(ctx context.Context) error
}

// NoopBus is the disabled variant of the message bus.
type NoopBus struct{}

func (NoopBus) Enabled() bool { return false }

func (NoopBus) Publish(context.Context, string, any) error { return nil }

func (NoopBus) Subscribe(context.Context, string, func([]byte)) error { return nil }

func (NoopBus) Close(context.Context) error { return nil }

var _ MessageBus = NoopBus{}
