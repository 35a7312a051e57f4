package storage

import (
	"context"

	"solana-lp-sync/internal/domain"
)

// MintStore provides access to mints storage. Mints are immutable once stored.
type MintStore interface {
	// Upsert inserts the mint. An existing row is left unchanged.
	Upsert(ctx context.Context, m *domain.Mint) error

	// Get retrieves a mint by address. Returns ErrNotFound if not exists.
	Get(ctx context.Context, id string) (*domain.Mint, error)

	// GetMany retrieves the mints that exist among ids, keyed by address.
	GetMany(ctx context.Context, ids []string) (map[string]*domain.Mint, error)
}

// PoolStore provides access to pools storage.
type PoolStore interface {
	// Upsert inserts the pool or replaces its mints and config.
	Upsert(ctx context.Context, p *domain.Pool) error

	// Get retrieves a pool by address. Returns ErrNotFound if not exists.
	Get(ctx context.Context, id string) (*domain.Pool, error)

	// UpdateExtra replaces config.extra. Returns ErrNotFound if the pool does not exist.
	UpdateExtra(ctx context.Context, s domain.PoolSync) error
}

// PositionStore provides access to positions storage.
type PositionStore interface {
	// Upsert inserts the position or replaces its mutable columns.
	Upsert(ctx context.Context, p *domain.Position) error

	// GetByID retrieves a position. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, id string) (*domain.Position, error)

	// ListActiveByWallet returns the wallet's positions whose status is neither
	// closed nor idle and whose pool belongs to dex, joined with pool and mints.
	ListActiveByWallet(ctx context.Context, wallet string, dex domain.Dex) ([]*domain.PositionWithRelations, error)

	// ListWallets returns every wallet holding at least one position that is
	// neither closed nor idle, sorted.
	ListWallets(ctx context.Context) ([]string, error)

	// UpdateSync writes active and config.priceRange. Returns ErrNotFound if
	// the position does not exist.
	UpdateSync(ctx context.Context, s domain.PositionSync) error

	// UpdateStatus sets status. Returns ErrNotFound if the position does not exist.
	UpdateStatus(ctx context.Context, id string, status domain.PositionStatus) error

	// UpdateState sets state. Returns ErrNotFound if the position does not exist.
	UpdateState(ctx context.Context, id string, state domain.PositionState) error
}

// PnLStore provides access to pnl storage.
type PnLStore interface {
	// Upsert writes the snapshot keyed by (position_id, created_at); a second
	// write for the same key replaces every value column.
	Upsert(ctx context.Context, p *domain.PnL) error

	// ListByPosition returns snapshots ordered by created_at ASC.
	ListByPosition(ctx context.Context, positionID string) ([]*domain.PnL, error)
}

// PnLHistoryStore is an append-mostly analytics copy of pnl snapshots.
type PnLHistoryStore interface {
	// InsertBulk appends snapshots. Rows with the same (position_id, created_at)
	// collapse to the latest.
	InsertBulk(ctx context.Context, rows []*domain.PnL) error

	// ListByPosition returns snapshots ordered by created_at ASC.
	ListByPosition(ctx context.Context, positionID string) ([]*domain.PnL, error)
}

// EventStore provides access to decoded protocol events.
type EventStore interface {
	// InsertBulk appends decoded events.
	InsertBulk(ctx context.Context, events []*domain.ProtocolEvent) error

	// GetBySignature returns the events of one transaction ordered by
	// (outer_index, inner_index).
	GetBySignature(ctx context.Context, signature string) ([]*domain.ProtocolEvent, error)
}
