// Package redis holds the Redis-backed webhook dedup store. A provider event
// id is claimed with SET NX so exactly one delivery wins even across
// instances; keys expire after a retention window since providers stop
// redelivering long before that.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/deliverly/order-api/internal/domains/orders/ports"
)

var _ ports.ProcessedEventStore = (*ProcessedEventStore)(nil)

const defaultRetention = 72 * time.Hour

// ProcessedEventStore marks webhook event ids in Redis.
type ProcessedEventStore struct {
	client    *redis.Client
	retention time.Duration
}

// NewProcessedEventStore wires the store. Caller manages client lifecycle.
func NewProcessedEventStore(client *redis.Client) *ProcessedEventStore {
	return &ProcessedEventStore{client: client, retention: defaultRetention}
}

// WithRetention overrides how long claimed event ids are kept.
func (s *ProcessedEventStore) WithRetention(retention time.Duration) *ProcessedEventStore {
	if retention > 0 {
		s.retention = retention
	}
	return s
}

// MarkProcessed claims the event id, returning false when another delivery
// already holds it.
func (s *ProcessedEventStore) MarkProcessed(ctx context.Context, eventID string) (bool, error) {
	if s == nil || s.client == nil {
		return false, fmt.Errorf("redis event store not configured")
	}
	claimed, err := s.client.SetNX(ctx, "webhook:event:"+eventID, time.Now().UTC().Format(time.RFC3339), s.retention).Result()
	if err != nil {
		return false, fmt.Errorf("claim webhook event %s: %w", eventID, err)
	}
	return claimed, nil
}
