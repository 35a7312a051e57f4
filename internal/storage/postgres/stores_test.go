package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-lp-sync/internal/domain"
	"solana-lp-sync/internal/storage"
)

func TestMintStore(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewMintStore(pool)

	fee := &domain.Mint{
		ID:                     "fee-mint",
		Decimals:               6,
		TransferFeeBasisPoints: ptr(uint16(150)),
		TransferFeeMax:         ptr(uint64(18446744073709551615)),
	}
	require.NoError(t, store.Upsert(ctx, fee))
	require.NoError(t, store.Upsert(ctx, &domain.Mint{ID: "plain-mint", Decimals: 9}))

	// Mints are immutable: a second upsert does not change decimals.
	require.NoError(t, store.Upsert(ctx, &domain.Mint{ID: "plain-mint", Decimals: 2}))

	got, err := store.Get(ctx, "fee-mint")
	require.NoError(t, err)
	assert.Equal(t, uint8(6), got.Decimals)
	require.NotNil(t, got.TransferFeeBasisPoints)
	assert.Equal(t, uint16(150), *got.TransferFeeBasisPoints)
	require.NotNil(t, got.TransferFeeMax)
	assert.Equal(t, uint64(18446744073709551615), *got.TransferFeeMax)

	many, err := store.GetMany(ctx, []string{"plain-mint", "fee-mint", "missing"})
	require.NoError(t, err)
	assert.Len(t, many, 2)
	assert.Equal(t, uint8(9), many["plain-mint"].Decimals)
	assert.False(t, many["plain-mint"].HasTransferFee())

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestPoolStore_UpdateExtra(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewPoolStore(pool)
	seedPool(t, ctx, pool, "pool-1", domain.DexOrca)

	got, err := store.Get(ctx, "pool-1")
	require.NoError(t, err)
	assert.Equal(t, domain.DexOrca, got.Dex)
	assert.Empty(t, got.RewardMints)
	assert.Equal(t, domain.OrcaExtra{Price: 150, TickCurrentIndex: -20000, SqrtPrice: "1", Liquidity: "2"}, got.Config.Extra)

	extra := domain.OrcaExtra{Price: 151.5, TickCurrentIndex: -19990, SqrtPrice: "3", Liquidity: "4"}
	require.NoError(t, store.UpdateExtra(ctx, domain.PoolSync{PoolID: "pool-1", Extra: extra}))

	got, err = store.Get(ctx, "pool-1")
	require.NoError(t, err)
	assert.Equal(t, extra, got.Config.Extra)

	err = store.UpdateExtra(ctx, domain.PoolSync{PoolID: "missing", Extra: extra})
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestPositionStore_ListActiveByWallet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewPositionStore(pool)
	seedPool(t, ctx, pool, "orca-pool", domain.DexOrca)
	seedPool(t, ctx, pool, "ray-pool", domain.DexRaydium)

	positions := []*domain.Position{
		{ID: "pos-b", Wallet: "w1", PoolID: ptr("orca-pool"), State: domain.PositionStateSuccessful, Status: domain.PositionStatusOpen},
		{ID: "pos-a", Wallet: "w1", PoolID: ptr("orca-pool"), State: domain.PositionStateSuccessful, Status: domain.PositionStatusRebalanced},
		{ID: "pos-closed", Wallet: "w1", PoolID: ptr("orca-pool"), State: domain.PositionStateSuccessful, Status: domain.PositionStatusClosed},
		{ID: "pos-idle", Wallet: "w1", PoolID: ptr("orca-pool"), State: domain.PositionStatePending, Status: domain.PositionStatusIdle},
		{ID: "pos-ray", Wallet: "w1", PoolID: ptr("ray-pool"), State: domain.PositionStateSuccessful, Status: domain.PositionStatusOpen},
		{ID: "pos-other", Wallet: "w2", PoolID: ptr("orca-pool"), State: domain.PositionStateSuccessful, Status: domain.PositionStatusOpen},
	}
	for _, p := range positions {
		require.NoError(t, store.Upsert(ctx, p))
	}

	got, err := store.ListActiveByWallet(ctx, "w1", domain.DexOrca)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "pos-a", got[0].ID)
	assert.Equal(t, "pos-b", got[1].ID)
	require.NotNil(t, got[0].Pool)
	assert.Equal(t, "orca-pool", got[0].Pool.ID)
	require.NotNil(t, got[0].BaseMint)
	assert.Equal(t, uint8(9), got[0].BaseMint.Decimals)
	require.NotNil(t, got[0].QuoteMint)
	assert.Equal(t, uint8(6), got[0].QuoteMint.Decimals)

	ray, err := store.ListActiveByWallet(ctx, "w1", domain.DexRaydium)
	require.NoError(t, err)
	require.Len(t, ray, 1)
	assert.Equal(t, "pos-ray", ray[0].ID)

	wallets, err := store.ListWallets(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"w1", "w2"}, wallets)
}

func TestPositionStore_Updates(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewPositionStore(pool)
	seedPool(t, ctx, pool, "orca-pool", domain.DexOrca)

	require.NoError(t, store.Upsert(ctx, &domain.Position{
		ID:        "pos-1",
		Wallet:    "w1",
		PoolID:    ptr("orca-pool"),
		AmountUSD: decimal.RequireFromString("1000.25"),
		State:     domain.PositionStateSuccessful,
		Status:    domain.PositionStatusOpen,
	}))

	require.NoError(t, store.UpdateSync(ctx, domain.PositionSync{
		PositionID: "pos-1",
		Active:     true,
		PriceRange: domain.PriceRange{120.5, 180},
	}))

	got, err := store.GetByID(ctx, "pos-1")
	require.NoError(t, err)
	assert.True(t, got.Active)
	require.NotNil(t, got.Config.PriceRange)
	assert.Equal(t, domain.PriceRange{120.5, 180}, *got.Config.PriceRange)
	assert.True(t, decimal.RequireFromString("1000.25").Equal(got.AmountUSD))

	require.NoError(t, store.UpdateStatus(ctx, "pos-1", domain.PositionStatusClosed))
	got, err = store.GetByID(ctx, "pos-1")
	require.NoError(t, err)
	assert.Equal(t, domain.PositionStatusClosed, got.Status)

	require.NoError(t, store.UpdateState(ctx, "pos-1", domain.PositionStateError))
	got, err = store.GetByID(ctx, "pos-1")
	require.NoError(t, err)
	assert.Equal(t, domain.PositionStateError, got.State)
	assert.ErrorIs(t, store.UpdateState(ctx, "missing", domain.PositionStateSuccessful), storage.ErrNotFound)

	assert.ErrorIs(t, store.UpdateSync(ctx, domain.PositionSync{PositionID: "missing"}), storage.ErrNotFound)
	assert.ErrorIs(t, store.UpdateStatus(ctx, "missing", domain.PositionStatusOpen), storage.ErrNotFound)
	assert.ErrorIs(t, store.UpdateStatus(ctx, "pos-1", "bogus"), storage.ErrInvalidInput)
}

func TestPnLStore_UpsertIsIdempotent(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	seedPool(t, ctx, pool, "orca-pool", domain.DexOrca)
	require.NoError(t, NewPositionStore(pool).Upsert(ctx, &domain.Position{
		ID: "pos-1", Wallet: "w1", PoolID: ptr("orca-pool"),
		State: domain.PositionStateSuccessful, Status: domain.PositionStatusOpen,
	}))

	store := NewPnLStore(pool)
	cycle := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	first := &domain.PnL{
		PositionID: "pos-1",
		State:      domain.PnLStateOpened,
		FeeUSD:     decimal.RequireFromString("1.5"),
		PnLUSD:     decimal.RequireFromString("-2.25"),
		AmountUSD:  decimal.RequireFromString("998"),
		CreatedAt:  cycle,
	}
	require.NoError(t, store.Upsert(ctx, first))

	rerun := *first
	rerun.FeeUSD = decimal.RequireFromString("1.75")
	require.NoError(t, store.Upsert(ctx, &rerun))

	next := *first
	next.CreatedAt = cycle.Add(15 * time.Minute)
	require.NoError(t, store.Upsert(ctx, &next))

	got, err := store.ListByPosition(ctx, "pos-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, cycle, got[0].CreatedAt)
	assert.True(t, decimal.RequireFromString("1.75").Equal(got[0].FeeUSD))
	assert.True(t, decimal.RequireFromString("-2.25").Equal(got[0].PnLUSD))
	assert.Equal(t, domain.PnLStateOpened, got[0].State)
	assert.Equal(t, cycle.Add(15*time.Minute), got[1].CreatedAt)

	assert.ErrorIs(t, store.Upsert(ctx, &domain.PnL{PositionID: "pos-1"}), storage.ErrInvalidInput)
}
