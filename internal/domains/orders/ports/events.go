package ports

import "context"

// ProcessedEventStore remembers provider webhook event ids so redelivered
// events are dropped before dispatch.
type ProcessedEventStore interface {
	// MarkProcessed records the event id. It returns false when the id was
	// already recorded, true when this call claimed it first.
	MarkProcessed(ctx context.Context, eventID string) (bool, error)
}
