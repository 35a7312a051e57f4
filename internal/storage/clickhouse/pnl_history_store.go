package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"solana-lp-sync/internal/domain"
	"solana-lp-sync/internal/storage"
)

// moneyScale is the fractional precision of the Decimal(38, 18) columns.
const moneyScale = 18

// PnLHistoryStore implements storage.PnLHistoryStore using ClickHouse.
// The table is a ReplacingMergeTree on (position_id, created_at) versioned
// by inserted_at, so rewrites of one cycle collapse to the latest.
type PnLHistoryStore struct {
	conn *Conn
	now  func() time.Time
}

// NewPnLHistoryStore creates a new PnLHistoryStore.
func NewPnLHistoryStore(conn *Conn) *PnLHistoryStore {
	return &PnLHistoryStore{conn: conn, now: time.Now}
}

// Compile-time interface check.
var _ storage.PnLHistoryStore = (*PnLHistoryStore)(nil)

// InsertBulk appends snapshots in one batch.
func (s *PnLHistoryStore) InsertBulk(ctx context.Context, rows []*domain.PnL) error {
	if len(rows) == 0 {
		return nil
	}
	for _, p := range rows {
		if p == nil || p.PositionID == "" || p.CreatedAt.IsZero() {
			return storage.ErrInvalidInput
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO pnl_history (
			position_id, state, fee_usd, pnl_usd, reward_usd, amount_usd,
			base_amount_usd, quote_amount_usd,
			unclaimed_base_fee, unclaimed_base_fee_usd,
			unclaimed_quote_fee, unclaimed_quote_fee_usd,
			claimed_fee_usd, created_at, inserted_at
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	insertedAt := s.now().UTC()
	for _, p := range rows {
		err = batch.Append(
			p.PositionID, string(p.State),
			money(p.FeeUSD), money(p.PnLUSD), money(p.RewardUSD), money(p.AmountUSD),
			money(p.BaseAmountUSD), money(p.QuoteAmountUSD),
			money(p.UnclaimedBaseFee), money(p.UnclaimedBaseFeeUSD),
			money(p.UnclaimedQuoteFee), money(p.UnclaimedQuoteFeeUSD),
			money(p.ClaimedFeeUSD), p.CreatedAt.UTC(), insertedAt,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// ListByPosition returns the collapsed snapshots ordered by created_at ASC.
func (s *PnLHistoryStore) ListByPosition(ctx context.Context, positionID string) ([]*domain.PnL, error) {
	query := `
		SELECT position_id, state, fee_usd, pnl_usd, reward_usd, amount_usd,
			base_amount_usd, quote_amount_usd,
			unclaimed_base_fee, unclaimed_base_fee_usd,
			unclaimed_quote_fee, unclaimed_quote_fee_usd,
			claimed_fee_usd, created_at
		FROM pnl_history FINAL
		WHERE position_id = ?
		ORDER BY created_at ASC
	`

	rows, err := s.conn.Query(ctx, query, positionID)
	if err != nil {
		return nil, fmt.Errorf("query pnl history: %w", err)
	}
	defer rows.Close()

	var out []*domain.PnL
	for rows.Next() {
		var (
			p     domain.PnL
			state string
		)
		if err := rows.Scan(
			&p.PositionID, &state, &p.FeeUSD, &p.PnLUSD, &p.RewardUSD, &p.AmountUSD,
			&p.BaseAmountUSD, &p.QuoteAmountUSD,
			&p.UnclaimedBaseFee, &p.UnclaimedBaseFeeUSD,
			&p.UnclaimedQuoteFee, &p.UnclaimedQuoteFeeUSD,
			&p.ClaimedFeeUSD, &p.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan pnl history: %w", err)
		}
		p.State = domain.PnLState(state)
		p.CreatedAt = p.CreatedAt.UTC()
		out = append(out, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pnl history: %w", err)
	}
	return out, nil
}

func money(d decimal.Decimal) decimal.Decimal {
	return d.Round(moneyScale)
}
