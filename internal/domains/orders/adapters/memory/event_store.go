package memory

import (
	"context"
	"sync"

	"github.com/deliverly/order-api/internal/domains/orders/ports"
)

var _ ports.ProcessedEventStore = (*ProcessedEventStore)(nil)

// ProcessedEventStore is an in-memory webhook dedup store. It never expires
// entries, so it is only suitable for development and tests.
type ProcessedEventStore struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewProcessedEventStore() *ProcessedEventStore {
	return &ProcessedEventStore{seen: map[string]struct{}{}}
}

func (s *ProcessedEventStore) MarkProcessed(_ context.Context, eventID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[eventID]; ok {
		return false, nil
	}
	s.seen[eventID] = struct{}{}
	return true, nil
}
