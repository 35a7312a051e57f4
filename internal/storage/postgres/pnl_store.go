package postgres

import (
	"context"
	"fmt"

	"solana-lp-sync/internal/domain"
	"solana-lp-sync/internal/storage"
)

// PnLStore implements storage.PnLStore using PostgreSQL.
type PnLStore struct {
	pool *Pool
}

// NewPnLStore creates a new PnLStore.
func NewPnLStore(pool *Pool) *PnLStore {
	return &PnLStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PnLStore = (*PnLStore)(nil)

// Upsert writes the snapshot; a rerun of the same cycle overwrites it.
func (s *PnLStore) Upsert(ctx context.Context, p *domain.PnL) error {
	if p == nil || p.PositionID == "" || p.CreatedAt.IsZero() {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO pnl (
			position_id, state, fee_usd, pnl_usd, reward_usd, amount_usd,
			base_amount_usd, quote_amount_usd,
			unclaimed_base_fee, unclaimed_base_fee_usd,
			unclaimed_quote_fee, unclaimed_quote_fee_usd,
			claimed_fee_usd, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (position_id, created_at) DO UPDATE SET
			state = EXCLUDED.state,
			fee_usd = EXCLUDED.fee_usd,
			pnl_usd = EXCLUDED.pnl_usd,
			reward_usd = EXCLUDED.reward_usd,
			amount_usd = EXCLUDED.amount_usd,
			base_amount_usd = EXCLUDED.base_amount_usd,
			quote_amount_usd = EXCLUDED.quote_amount_usd,
			unclaimed_base_fee = EXCLUDED.unclaimed_base_fee,
			unclaimed_base_fee_usd = EXCLUDED.unclaimed_base_fee_usd,
			unclaimed_quote_fee = EXCLUDED.unclaimed_quote_fee,
			unclaimed_quote_fee_usd = EXCLUDED.unclaimed_quote_fee_usd,
			claimed_fee_usd = EXCLUDED.claimed_fee_usd
	`

	_, err := s.pool.Exec(ctx, query,
		p.PositionID,
		string(p.State),
		p.FeeUSD,
		p.PnLUSD,
		p.RewardUSD,
		p.AmountUSD,
		p.BaseAmountUSD,
		p.QuoteAmountUSD,
		p.UnclaimedBaseFee,
		p.UnclaimedBaseFeeUSD,
		p.UnclaimedQuoteFee,
		p.UnclaimedQuoteFeeUSD,
		p.ClaimedFeeUSD,
		p.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("upsert pnl: %w", err)
	}
	return nil
}

// ListByPosition returns snapshots ordered by created_at ASC.
func (s *PnLStore) ListByPosition(ctx context.Context, positionID string) ([]*domain.PnL, error) {
	query := `
		SELECT position_id, state, fee_usd, pnl_usd, reward_usd, amount_usd,
			base_amount_usd, quote_amount_usd,
			unclaimed_base_fee, unclaimed_base_fee_usd,
			unclaimed_quote_fee, unclaimed_quote_fee_usd,
			claimed_fee_usd, created_at
		FROM pnl
		WHERE position_id = $1
		ORDER BY created_at ASC
	`

	rows, err := s.pool.Query(ctx, query, positionID)
	if err != nil {
		return nil, fmt.Errorf("query pnl: %w", err)
	}
	defer rows.Close()

	var out []*domain.PnL
	for rows.Next() {
		var (
			p     domain.PnL
			state string
		)
		err := rows.Scan(
			&p.PositionID, &state, &p.FeeUSD, &p.PnLUSD, &p.RewardUSD, &p.AmountUSD,
			&p.BaseAmountUSD, &p.QuoteAmountUSD,
			&p.UnclaimedBaseFee, &p.UnclaimedBaseFeeUSD,
			&p.UnclaimedQuoteFee, &p.UnclaimedQuoteFeeUSD,
			&p.ClaimedFeeUSD, &p.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan pnl: %w", err)
		}
		p.State = domain.PnLState(state)
		p.CreatedAt = p.CreatedAt.UTC()
		out = append(out, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pnl: %w", err)
	}
	return out, nil
}
