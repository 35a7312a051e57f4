package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"solana-lp-sync/internal/domain"
	"solana-lp-sync/internal/storage"
)

// MintStore implements storage.MintStore using PostgreSQL.
type MintStore struct {
	pool *Pool
}

// NewMintStore creates a new MintStore.
func NewMintStore(pool *Pool) *MintStore {
	return &MintStore{pool: pool}
}

// Compile-time interface check.
var _ storage.MintStore = (*MintStore)(nil)

// Upsert inserts the mint. An existing row is left unchanged.
func (s *MintStore) Upsert(ctx context.Context, m *domain.Mint) error {
	if m == nil || m.ID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO mints (id, decimals, transfer_fee_bps, transfer_fee_max)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING
	`

	var bps *int32
	if m.TransferFeeBasisPoints != nil {
		v := int32(*m.TransferFeeBasisPoints)
		bps = &v
	}
	var feeMax decimal.NullDecimal
	if m.TransferFeeMax != nil {
		feeMax = decimal.NewNullDecimal(decimal.NewFromUint64(*m.TransferFeeMax))
	}

	if _, err := s.pool.Exec(ctx, query, m.ID, int16(m.Decimals), bps, feeMax); err != nil {
		return fmt.Errorf("upsert mint: %w", err)
	}
	return nil
}

// Get retrieves a mint by address. Returns ErrNotFound if not exists.
func (s *MintStore) Get(ctx context.Context, id string) (*domain.Mint, error) {
	query := `
		SELECT id, decimals, transfer_fee_bps, transfer_fee_max, created_at
		FROM mints
		WHERE id = $1
	`

	m, err := scanMint(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get mint: %w", err)
	}
	return m, nil
}

// GetMany retrieves the mints that exist among ids, keyed by address.
func (s *MintStore) GetMany(ctx context.Context, ids []string) (map[string]*domain.Mint, error) {
	return getMints(ctx, s.pool, ids)
}

func getMints(ctx context.Context, pool *Pool, ids []string) (map[string]*domain.Mint, error) {
	out := make(map[string]*domain.Mint, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	query := `
		SELECT id, decimals, transfer_fee_bps, transfer_fee_max, created_at
		FROM mints
		WHERE id = ANY($1)
	`

	rows, err := pool.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("query mints: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		m, err := scanMint(rows)
		if err != nil {
			return nil, fmt.Errorf("scan mint: %w", err)
		}
		out[m.ID] = m
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate mints: %w", err)
	}
	return out, nil
}

func scanMint(row pgx.Row) (*domain.Mint, error) {
	var (
		m        domain.Mint
		decimals int16
		bps      *int32
		feeMax   decimal.NullDecimal
	)
	if err := row.Scan(&m.ID, &decimals, &bps, &feeMax, &m.CreatedAt); err != nil {
		return nil, err
	}
	m.Decimals = uint8(decimals)
	if bps != nil {
		v := uint16(*bps)
		m.TransferFeeBasisPoints = &v
	}
	if feeMax.Valid {
		v := feeMax.Decimal.BigInt().Uint64()
		m.TransferFeeMax = &v
	}
	return &m, nil
}
