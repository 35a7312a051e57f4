package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"solana-lp-sync/internal/domain"
	"solana-lp-sync/internal/storage"
)

// PoolStore implements storage.PoolStore using PostgreSQL.
type PoolStore struct {
	pool *Pool
}

// NewPoolStore creates a new PoolStore.
func NewPoolStore(pool *Pool) *PoolStore {
	return &PoolStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PoolStore = (*PoolStore)(nil)

// Upsert inserts the pool or replaces its mints and config.
func (s *PoolStore) Upsert(ctx context.Context, p *domain.Pool) error {
	if p == nil || p.ID == "" || !p.Dex.IsValid() {
		return storage.ErrInvalidInput
	}

	config, err := json.Marshal(p.Config)
	if err != nil {
		return fmt.Errorf("encode pool config: %w", err)
	}
	rewards := p.RewardMints
	if rewards == nil {
		rewards = []string{}
	}

	query := `
		INSERT INTO pools (id, dex, base_mint, quote_mint, reward_mints, config)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			base_mint = EXCLUDED.base_mint,
			quote_mint = EXCLUDED.quote_mint,
			reward_mints = EXCLUDED.reward_mints,
			config = EXCLUDED.config,
			updated_at = now()
	`

	_, err = s.pool.Exec(ctx, query, p.ID, string(p.Dex), p.BaseMint, p.QuoteMint, rewards, config)
	if err != nil {
		return fmt.Errorf("upsert pool: %w", err)
	}
	return nil
}

// Get retrieves a pool by address. Returns ErrNotFound if not exists.
func (s *PoolStore) Get(ctx context.Context, id string) (*domain.Pool, error) {
	query := `
		SELECT id, dex, base_mint, quote_mint, reward_mints, config, created_at, updated_at
		FROM pools
		WHERE id = $1
	`

	p, err := scanPool(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get pool: %w", err)
	}
	return p, nil
}

// UpdateExtra replaces config.extra, leaving other config keys intact.
func (s *PoolStore) UpdateExtra(ctx context.Context, update domain.PoolSync) error {
	if update.Extra == nil {
		return storage.ErrInvalidInput
	}
	extra, err := domain.MarshalExtra(update.Extra)
	if err != nil {
		return err
	}

	query := `
		UPDATE pools
		SET config = jsonb_set(config, '{extra}', $2::jsonb, true), updated_at = now()
		WHERE id = $1
	`

	return keyedUpdate(ctx, s.pool, "update pool extra", query, update.PoolID, extra)
}

func scanPool(row pgx.Row) (*domain.Pool, error) {
	var (
		p      domain.Pool
		dex    string
		config []byte
	)
	if err := row.Scan(&p.ID, &dex, &p.BaseMint, &p.QuoteMint, &p.RewardMints, &config, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.Dex = domain.Dex(dex)
	if err := json.Unmarshal(config, &p.Config); err != nil {
		return nil, fmt.Errorf("decode pool %s config: %w", p.ID, err)
	}
	return &p, nil
}
