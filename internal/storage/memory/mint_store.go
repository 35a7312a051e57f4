package memory

import (
	"context"
	"sync"

	"solana-lp-sync/internal/domain"
	"solana-lp-sync/internal/storage"
)

// MintStore is an in-memory implementation of storage.MintStore.
type MintStore struct {
	mu    sync.RWMutex
	mints map[string]*domain.Mint
}

// NewMintStore creates a new in-memory mint store.
func NewMintStore() *MintStore {
	return &MintStore{mints: make(map[string]*domain.Mint)}
}

// Upsert inserts the mint. An existing row is left unchanged.
func (s *MintStore) Upsert(_ context.Context, m *domain.Mint) error {
	if m == nil || m.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.mints[m.ID]; exists {
		return nil
	}
	s.mints[m.ID] = copyMint(m)
	return nil
}

// Get retrieves a mint by address. Returns ErrNotFound if not exists.
func (s *MintStore) Get(_ context.Context, id string) (*domain.Mint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, exists := s.mints[id]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return copyMint(m), nil
}

// GetMany retrieves the mints that exist among ids.
func (s *MintStore) GetMany(_ context.Context, ids []string) (map[string]*domain.Mint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]*domain.Mint, len(ids))
	for _, id := range ids {
		if m, exists := s.mints[id]; exists {
			out[id] = copyMint(m)
		}
	}
	return out, nil
}

func copyMint(m *domain.Mint) *domain.Mint {
	c := *m
	if m.TransferFeeBasisPoints != nil {
		bps := *m.TransferFeeBasisPoints
		c.TransferFeeBasisPoints = &bps
	}
	if m.TransferFeeMax != nil {
		fee := *m.TransferFeeMax
		c.TransferFeeMax = &fee
	}
	return &c
}

// Compile-time interface check.
var _ storage.MintStore = (*MintStore)(nil)
