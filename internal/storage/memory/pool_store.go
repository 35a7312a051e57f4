package memory

import (
	"context"
	"sync"
	"time"

	"solana-lp-sync/internal/domain"
	"solana-lp-sync/internal/storage"
)

// PoolStore is an in-memory implementation of storage.PoolStore.
type PoolStore struct {
	mu    sync.RWMutex
	pools map[string]*domain.Pool
	now   func() time.Time
}

// NewPoolStore creates a new in-memory pool store.
func NewPoolStore() *PoolStore {
	return &PoolStore{
		pools: make(map[string]*domain.Pool),
		now:   time.Now,
	}
}

// Upsert inserts the pool or replaces its mints and config.
func (s *PoolStore) Upsert(_ context.Context, p *domain.Pool) error {
	if p == nil || p.ID == "" || !p.Dex.IsValid() {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c := copyPool(p)
	now := s.now().UTC()
	if existing, ok := s.pools[p.ID]; ok {
		c.CreatedAt = existing.CreatedAt
	} else if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	s.pools[p.ID] = c
	return nil
}

// Get retrieves a pool by address. Returns ErrNotFound if not exists.
func (s *PoolStore) Get(_ context.Context, id string) (*domain.Pool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.pools[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return copyPool(p), nil
}

// UpdateExtra replaces config.extra.
func (s *PoolStore) UpdateExtra(_ context.Context, update domain.PoolSync) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pools[update.PoolID]
	if !ok {
		return storage.ErrNotFound
	}
	p.Config.Extra = update.Extra
	p.UpdatedAt = s.now().UTC()
	return nil
}

// Extra values are immutable structs, so a shallow config copy is enough.
func copyPool(p *domain.Pool) *domain.Pool {
	c := *p
	c.RewardMints = append([]string(nil), p.RewardMints...)
	return &c
}

// Compile-time interface check.
var _ storage.PoolStore = (*PoolStore)(nil)
