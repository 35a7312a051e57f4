package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"solana-lp-sync/internal/domain"
	"solana-lp-sync/internal/storage"
)

// PositionStore is an in-memory implementation of storage.PositionStore.
// Relations are resolved against the pool and mint stores it was built with.
type PositionStore struct {
	mu        sync.RWMutex
	positions map[string]*domain.Position
	pools     *PoolStore
	mints     *MintStore
	now       func() time.Time
}

// NewPositionStore creates a new in-memory position store.
func NewPositionStore(pools *PoolStore, mints *MintStore) *PositionStore {
	return &PositionStore{
		positions: make(map[string]*domain.Position),
		pools:     pools,
		mints:     mints,
		now:       time.Now,
	}
}

// Upsert inserts the position or replaces its mutable columns.
func (s *PositionStore) Upsert(_ context.Context, p *domain.Position) error {
	if p == nil || p.ID == "" || p.Wallet == "" {
		return storage.ErrInvalidInput
	}
	if !p.State.IsValid() || !p.Status.IsValid() {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c := copyPosition(p)
	now := s.now().UTC()
	if existing, ok := s.positions[p.ID]; ok {
		c.CreatedAt = existing.CreatedAt
	} else if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	s.positions[p.ID] = c
	return nil
}

// GetByID retrieves a position. Returns ErrNotFound if not exists.
func (s *PositionStore) GetByID(_ context.Context, id string) (*domain.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.positions[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return copyPosition(p), nil
}

// ListActiveByWallet returns non-terminal positions on dex, ordered by id.
func (s *PositionStore) ListActiveByWallet(ctx context.Context, wallet string, dex domain.Dex) ([]*domain.PositionWithRelations, error) {
	s.mu.RLock()
	var matched []*domain.Position
	for _, p := range s.positions {
		if p.Wallet == wallet && !p.Status.IsTerminal() && p.PoolID != nil {
			matched = append(matched, copyPosition(p))
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })

	var out []*domain.PositionWithRelations
	for _, p := range matched {
		pool, err := s.pools.Get(ctx, *p.PoolID)
		if err != nil {
			continue
		}
		if pool.Dex != dex {
			continue
		}
		rel := &domain.PositionWithRelations{Position: *p, Pool: pool}
		mints, err := s.mints.GetMany(ctx, append([]string{pool.BaseMint, pool.QuoteMint}, pool.RewardMints...))
		if err != nil {
			return nil, err
		}
		rel.BaseMint = mints[pool.BaseMint]
		rel.QuoteMint = mints[pool.QuoteMint]
		for _, r := range pool.RewardMints {
			if m, ok := mints[r]; ok {
				rel.RewardMints = append(rel.RewardMints, m)
			}
		}
		out = append(out, rel)
	}
	return out, nil
}

// ListWallets returns wallets holding non-terminal positions, sorted.
func (s *PositionStore) ListWallets(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, p := range s.positions {
		if !p.Status.IsTerminal() {
			seen[p.Wallet] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for w := range seen {
		out = append(out, w)
	}
	sort.Strings(out)
	return out, nil
}

// UpdateSync writes active and config.priceRange.
func (s *PositionStore) UpdateSync(_ context.Context, update domain.PositionSync) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.positions[update.PositionID]
	if !ok {
		return storage.ErrNotFound
	}
	r := update.PriceRange
	p.Active = update.Active
	p.Config.PriceRange = &r
	p.UpdatedAt = s.now().UTC()
	return nil
}

// UpdateStatus sets status.
func (s *PositionStore) UpdateStatus(_ context.Context, id string, status domain.PositionStatus) error {
	if !status.IsValid() {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.positions[id]
	if !ok {
		return storage.ErrNotFound
	}
	p.Status = status
	p.UpdatedAt = s.now().UTC()
	return nil
}

// UpdateState sets state.
func (s *PositionStore) UpdateState(_ context.Context, id string, state domain.PositionState) error {
	if !state.IsValid() {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.positions[id]
	if !ok {
		return storage.ErrNotFound
	}
	p.State = state
	p.UpdatedAt = s.now().UTC()
	return nil
}

func copyPosition(p *domain.Position) *domain.Position {
	c := *p
	if p.PoolID != nil {
		id := *p.PoolID
		c.PoolID = &id
	}
	if p.Config.PriceRange != nil {
		r := *p.Config.PriceRange
		c.Config.PriceRange = &r
	}
	return &c
}

// Compile-time interface check.
var _ storage.PositionStore = (*PositionStore)(nil)
