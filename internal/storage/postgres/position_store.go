package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"solana-lp-sync/internal/domain"
	"solana-lp-sync/internal/storage"
)

// PositionStore implements storage.PositionStore using PostgreSQL.
type PositionStore struct {
	pool *Pool
}

// NewPositionStore creates a new PositionStore.
func NewPositionStore(pool *Pool) *PositionStore {
	return &PositionStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PositionStore = (*PositionStore)(nil)

const positionColumns = `
	p.id, p.wallet, p.pool_id, p.amount_usd, p.base_amount, p.quote_amount,
	p.config, p.state, p.status, p.active, p.created_at, p.updated_at
`

// Upsert inserts the position or replaces its mutable columns.
func (s *PositionStore) Upsert(ctx context.Context, p *domain.Position) error {
	if p == nil || p.ID == "" || p.Wallet == "" {
		return storage.ErrInvalidInput
	}
	if !p.State.IsValid() || !p.Status.IsValid() {
		return storage.ErrInvalidInput
	}

	config, err := json.Marshal(p.Config)
	if err != nil {
		return fmt.Errorf("encode position config: %w", err)
	}

	query := `
		INSERT INTO positions (
			id, wallet, pool_id, amount_usd, base_amount, quote_amount,
			config, state, status, active
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			wallet = EXCLUDED.wallet,
			pool_id = EXCLUDED.pool_id,
			amount_usd = EXCLUDED.amount_usd,
			base_amount = EXCLUDED.base_amount,
			quote_amount = EXCLUDED.quote_amount,
			config = EXCLUDED.config,
			state = EXCLUDED.state,
			status = EXCLUDED.status,
			active = EXCLUDED.active,
			updated_at = now()
	`

	_, err = s.pool.Exec(ctx, query,
		p.ID,
		p.Wallet,
		p.PoolID,
		p.AmountUSD,
		p.BaseAmount,
		p.QuoteAmount,
		config,
		string(p.State),
		string(p.Status),
		p.Active,
	)
	if err != nil {
		return fmt.Errorf("upsert position: %w", err)
	}
	return nil
}

// GetByID retrieves a position. Returns ErrNotFound if not exists.
func (s *PositionStore) GetByID(ctx context.Context, id string) (*domain.Position, error) {
	query := `SELECT ` + positionColumns + ` FROM positions p WHERE p.id = $1`

	p, err := scanPosition(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get position: %w", err)
	}
	return p, nil
}

// ListActiveByWallet returns non-terminal positions on dex joined with their
// pool and mints, ordered by id.
func (s *PositionStore) ListActiveByWallet(ctx context.Context, wallet string, dex domain.Dex) ([]*domain.PositionWithRelations, error) {
	query := `
		SELECT ` + positionColumns + `,
			pl.id, pl.dex, pl.base_mint, pl.quote_mint, pl.reward_mints, pl.config, pl.created_at, pl.updated_at
		FROM positions p
		JOIN pools pl ON pl.id = p.pool_id
		WHERE p.wallet = $1
		  AND p.status NOT IN ('closed', 'idle')
		  AND pl.dex = $2
		ORDER BY p.id ASC
	`

	rows, err := s.pool.Query(ctx, query, wallet, string(dex))
	if err != nil {
		return nil, fmt.Errorf("query active positions: %w", err)
	}
	defer rows.Close()

	var (
		out     []*domain.PositionWithRelations
		mintIDs []string
	)
	for rows.Next() {
		rel, err := scanPositionWithPool(rows)
		if err != nil {
			return nil, fmt.Errorf("scan position: %w", err)
		}
		mintIDs = append(mintIDs, rel.Pool.BaseMint, rel.Pool.QuoteMint)
		mintIDs = append(mintIDs, rel.Pool.RewardMints...)
		out = append(out, rel)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate positions: %w", err)
	}

	mints, err := getMints(ctx, s.pool, mintIDs)
	if err != nil {
		return nil, err
	}
	for _, rel := range out {
		rel.BaseMint = mints[rel.Pool.BaseMint]
		rel.QuoteMint = mints[rel.Pool.QuoteMint]
		for _, r := range rel.Pool.RewardMints {
			if m, ok := mints[r]; ok {
				rel.RewardMints = append(rel.RewardMints, m)
			}
		}
	}
	return out, nil
}

// ListWallets returns wallets holding non-terminal positions, sorted.
func (s *PositionStore) ListWallets(ctx context.Context) ([]string, error) {
	query := `
		SELECT DISTINCT wallet
		FROM positions
		WHERE status NOT IN ('closed', 'idle')
		ORDER BY wallet ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query wallets: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var w string
		if err := rows.Scan(&w); err != nil {
			return nil, fmt.Errorf("scan wallet: %w", err)
		}
		out = append(out, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate wallets: %w", err)
	}
	return out, nil
}

// UpdateSync writes active and config.priceRange, leaving other config keys intact.
func (s *PositionStore) UpdateSync(ctx context.Context, update domain.PositionSync) error {
	priceRange, err := json.Marshal(update.PriceRange)
	if err != nil {
		return fmt.Errorf("encode price range: %w", err)
	}

	query := `
		UPDATE positions
		SET active = $2,
			config = jsonb_set(config, '{priceRange}', $3::jsonb, true),
			updated_at = now()
		WHERE id = $1
	`

	return keyedUpdate(ctx, s.pool, "update position sync", query, update.PositionID, update.Active, priceRange)
}

// UpdateStatus sets status.
func (s *PositionStore) UpdateStatus(ctx context.Context, id string, status domain.PositionStatus) error {
	if !status.IsValid() {
		return storage.ErrInvalidInput
	}

	query := `UPDATE positions SET status = $2, updated_at = now() WHERE id = $1`

	return keyedUpdate(ctx, s.pool, "update position status", query, id, string(status))
}

// UpdateState sets state.
func (s *PositionStore) UpdateState(ctx context.Context, id string, state domain.PositionState) error {
	if !state.IsValid() {
		return storage.ErrInvalidInput
	}

	query := `UPDATE positions SET state = $2, updated_at = now() WHERE id = $1`

	return keyedUpdate(ctx, s.pool, "update position state", query, id, string(state))
}

type positionScan struct {
	p      domain.Position
	config []byte
	state  string
	status string
}

func (ps *positionScan) dest() []any {
	p := &ps.p
	return []any{
		&p.ID, &p.Wallet, &p.PoolID, &p.AmountUSD, &p.BaseAmount, &p.QuoteAmount,
		&ps.config, &ps.state, &ps.status, &p.Active, &p.CreatedAt, &p.UpdatedAt,
	}
}

func (ps *positionScan) finish() (*domain.Position, error) {
	ps.p.State = domain.PositionState(ps.state)
	ps.p.Status = domain.PositionStatus(ps.status)
	if err := json.Unmarshal(ps.config, &ps.p.Config); err != nil {
		return nil, fmt.Errorf("decode position %s config: %w", ps.p.ID, err)
	}
	return &ps.p, nil
}

func scanPosition(row pgx.Row) (*domain.Position, error) {
	var ps positionScan
	if err := row.Scan(ps.dest()...); err != nil {
		return nil, err
	}
	return ps.finish()
}

func scanPositionWithPool(row pgx.Row) (*domain.PositionWithRelations, error) {
	var (
		ps         positionScan
		pool       domain.Pool
		dex        string
		poolConfig []byte
	)
	dest := append(ps.dest(),
		&pool.ID, &dex, &pool.BaseMint, &pool.QuoteMint, &pool.RewardMints, &poolConfig, &pool.CreatedAt, &pool.UpdatedAt,
	)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	p, err := ps.finish()
	if err != nil {
		return nil, err
	}
	pool.Dex = domain.Dex(dex)
	if err := json.Unmarshal(poolConfig, &pool.Config); err != nil {
		return nil, fmt.Errorf("decode pool %s config: %w", pool.ID, err)
	}
	return &domain.PositionWithRelations{Position: *p, Pool: &pool}, nil
}
