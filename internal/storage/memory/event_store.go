package memory

import (
	"context"
	"sort"
	"sync"

	"solana-lp-sync/internal/domain"
	"solana-lp-sync/internal/storage"
)

// EventStore is an in-memory implementation of storage.EventStore.
type EventStore struct {
	mu          sync.RWMutex
	bySignature map[string][]*domain.ProtocolEvent
	ids         map[string]struct{}
}

// NewEventStore creates a new in-memory event store.
func NewEventStore() *EventStore {
	return &EventStore{
		bySignature: make(map[string][]*domain.ProtocolEvent),
		ids:         make(map[string]struct{}),
	}
}

// InsertBulk appends decoded events. Events whose ID was already stored
// are skipped.
func (s *EventStore) InsertBulk(_ context.Context, events []*domain.ProtocolEvent) error {
	for _, e := range events {
		if e == nil || e.Signature == "" {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range events {
		if e.ID != "" {
			if _, ok := s.ids[e.ID]; ok {
				continue
			}
			s.ids[e.ID] = struct{}{}
		}
		c := *e
		s.bySignature[e.Signature] = append(s.bySignature[e.Signature], &c)
	}
	return nil
}

// GetBySignature returns one transaction's events ordered by position.
func (s *EventStore) GetBySignature(_ context.Context, signature string) ([]*domain.ProtocolEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.ProtocolEvent, 0, len(s.bySignature[signature]))
	for _, e := range s.bySignature[signature] {
		c := *e
		out = append(out, &c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].OuterIndex != out[j].OuterIndex {
			return out[i].OuterIndex < out[j].OuterIndex
		}
		return out[i].InnerIndex < out[j].InnerIndex
	})
	return out, nil
}

// Count returns the number of stored events.
func (s *EventStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, events := range s.bySignature {
		n += len(events)
	}
	return n
}

// Compile-time interface check.
var _ storage.EventStore = (*EventStore)(nil)
