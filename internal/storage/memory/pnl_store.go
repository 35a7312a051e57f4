package memory

import (
	"context"
	"sort"
	"sync"

	"solana-lp-sync/internal/domain"
	"solana-lp-sync/internal/storage"
)

type pnlKey struct {
	positionID string
	createdAt  int64 // unix nanos, UTC
}

// pnlTable is the shared keyed-upsert table behind PnLStore and PnLHistoryStore.
type pnlTable struct {
	mu   sync.RWMutex
	rows map[pnlKey]*domain.PnL
}

func newPnLTable() *pnlTable {
	return &pnlTable{rows: make(map[pnlKey]*domain.PnL)}
}

func (t *pnlTable) put(p *domain.PnL) error {
	if p == nil || p.PositionID == "" || p.CreatedAt.IsZero() {
		return storage.ErrInvalidInput
	}
	c := *p
	c.CreatedAt = p.CreatedAt.UTC()
	t.rows[pnlKey{positionID: p.PositionID, createdAt: c.CreatedAt.UnixNano()}] = &c
	return nil
}

func (t *pnlTable) list(positionID string) []*domain.PnL {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var out []*domain.PnL
	for k, p := range t.rows {
		if k.positionID == positionID {
			c := *p
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// PnLStore is an in-memory implementation of storage.PnLStore.
type PnLStore struct {
	table *pnlTable
}

// NewPnLStore creates a new in-memory pnl store.
func NewPnLStore() *PnLStore {
	return &PnLStore{table: newPnLTable()}
}

// Upsert writes the snapshot keyed by (position_id, created_at).
func (s *PnLStore) Upsert(_ context.Context, p *domain.PnL) error {
	s.table.mu.Lock()
	defer s.table.mu.Unlock()
	return s.table.put(p)
}

// ListByPosition returns snapshots ordered by created_at ASC.
func (s *PnLStore) ListByPosition(_ context.Context, positionID string) ([]*domain.PnL, error) {
	return s.table.list(positionID), nil
}

// Count returns the number of stored rows.
func (s *PnLStore) Count() int {
	s.table.mu.RLock()
	defer s.table.mu.RUnlock()
	return len(s.table.rows)
}

// PnLHistoryStore is an in-memory implementation of storage.PnLHistoryStore.
type PnLHistoryStore struct {
	table *pnlTable
}

// NewPnLHistoryStore creates a new in-memory history store.
func NewPnLHistoryStore() *PnLHistoryStore {
	return &PnLHistoryStore{table: newPnLTable()}
}

// InsertBulk appends snapshots; a repeated key keeps the latest.
func (s *PnLHistoryStore) InsertBulk(_ context.Context, rows []*domain.PnL) error {
	s.table.mu.Lock()
	defer s.table.mu.Unlock()
	for _, p := range rows {
		if err := s.table.put(p); err != nil {
			return err
		}
	}
	return nil
}

// ListByPosition returns snapshots ordered by created_at ASC.
func (s *PnLHistoryStore) ListByPosition(_ context.Context, positionID string) ([]*domain.PnL, error) {
	return s.table.list(positionID), nil
}

// Compile-time interface checks.
var (
	_ storage.PnLStore        = (*PnLStore)(nil)
	_ storage.PnLHistoryStore = (*PnLHistoryStore)(nil)
)
