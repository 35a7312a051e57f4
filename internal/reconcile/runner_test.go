package reconcile

import (
	"context"
	"errors"
	"testing"

	"github.com/alitto/pond/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-lp-sync/internal/domain"
)

func TestRunner_OneResultPerWalletAndEngine(t *testing.T) {
	f := newFixture(t)
	f.storePosition(t, "pos-1", "pool-1", 100)
	f.proto.addChainPosition("pos-1", idlePosition("pool-1"), chainPool("pool-1"))

	ctx := context.Background()
	pool2 := "pool-1"
	require.NoError(t, f.positions.Upsert(ctx, &domain.Position{
		ID: "pos-closed", Wallet: "wallet-closed", PoolID: &pool2,
		State: domain.PositionStateSuccessful, Status: domain.PositionStatusClosed,
	}))

	workers := pond.NewPool(4)
	defer workers.StopAndWait()
	runner := NewRunner(f.positions, workers, nil, f.engine())

	results, err := runner.Run(ctx)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "wallet-1", results[0].Wallet)
	assert.Equal(t, domain.DexOrca, results[0].Dex)
	require.NoError(t, results[0].Err)
	assert.Equal(t, 1, results[0].Summary.Synced)
	assert.Empty(t, Failed(results))
}

func TestRunner_TaskFailuresStayPerTask(t *testing.T) {
	f := newFixture(t)
	f.storePosition(t, "pos-1", "pool-1", 100)
	f.proto.addChainPosition("pos-1", idlePosition("pool-1"), chainPool("pool-1"))
	f.proto.fetchErr = errors.New("rpc down")

	workers := pond.NewPool(2)
	defer workers.StopAndWait()
	runner := NewRunner(f.positions, workers, nil, f.engine())

	results := runner.RunWallets(context.Background(), []string{"wallet-1", "wallet-empty"})
	require.Len(t, results, 2)
	failed := Failed(results)
	require.Len(t, failed, 1)
	assert.Equal(t, "wallet-1", failed[0].Wallet)
	assert.ErrorIs(t, failed[0].Err, f.proto.fetchErr)
	assert.NoError(t, results[1].Err)
}
