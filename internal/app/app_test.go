package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"solana-lp-sync/internal/config"
	"solana-lp-sync/internal/price"
	"solana-lp-sync/internal/protocol/orca"
	"solana-lp-sync/internal/protocol/raydium"
	"solana-lp-sync/internal/solana/stub"
)

func TestNewAdapter(t *testing.T) {
	rpc := stub.NewRPCClient()

	a, err := NewAdapter("orca", rpc, 100, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, orca.ProgramID, a.Descriptor().ProgramID)

	a, err = NewAdapter("raydium", rpc, 100, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, raydium.ProgramID, a.Descriptor().ProgramID)

	_, err = NewAdapter("meteora", rpc, 100, zap.NewNop())
	assert.Error(t, err)
}

func TestNewIngest_RegistersPrograms(t *testing.T) {
	cfg := config.Defaults()
	ingest, err := NewIngest(&cfg, MemoryStores(), stub.NewRPCClient(), zap.NewNop())
	require.NoError(t, err)
	defer ingest.Close()

	assert.Equal(t, []string{orca.ProgramID, raydium.ProgramID}, ingest.ProgramIDs)
}

func TestSync_RunOnceWithoutPositions(t *testing.T) {
	cfg := config.Defaults()
	a, err := NewSync(&cfg, MemoryStores(), stub.NewRPCClient(), price.Static{}, zap.NewNop())
	require.NoError(t, err)
	defer a.Stop()

	assert.False(t, a.Ready())
	results, err := a.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.True(t, a.Ready())
}

func TestSync_ConfiguredWallets(t *testing.T) {
	cfg := config.Defaults()
	cfg.Sync.Wallets = []string{"wallet-1"}
	a, err := NewSync(&cfg, MemoryStores(), stub.NewRPCClient(), price.Static{}, zap.NewNop())
	require.NoError(t, err)
	defer a.Stop()

	results, err := a.RunOnce(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 2, "one task per protocol")
	for _, r := range results {
		assert.Equal(t, "wallet-1", r.Wallet)
		require.NotNil(t, r.Summary)
		assert.Zero(t, r.Summary.Loaded)
	}
}

func TestSync_SchedulerRejectsBadSpec(t *testing.T) {
	cfg := config.Defaults()
	a, err := NewSync(&cfg, MemoryStores(), stub.NewRPCClient(), price.Static{}, zap.NewNop())
	require.NoError(t, err)
	defer a.Stop()

	a.CronSpec = "every now and then"
	assert.Error(t, a.SetupScheduler(context.Background()))

	a.CronSpec = cfg.Sync.Cron
	require.NoError(t, a.SetupScheduler(context.Background()))
	assert.Len(t, a.Cron.Entries(), 1)
}

func TestNewSync_UnknownProtocol(t *testing.T) {
	cfg := config.Defaults()
	cfg.Sync.Protocols = []string{"orca", "meteora"}
	_, err := NewSync(&cfg, MemoryStores(), stub.NewRPCClient(), price.Static{}, zap.NewNop())
	assert.Error(t, err)
}

func TestHandler(t *testing.T) {
	ready := false
	srv := httptest.NewServer(Handler(func() bool { return ready }))
	defer srv.Close()

	get := func(path string) int {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		return resp.StatusCode
	}

	assert.Equal(t, http.StatusOK, get("/health"))
	assert.Equal(t, http.StatusServiceUnavailable, get("/ready"))
	ready = true
	assert.Equal(t, http.StatusOK, get("/ready"))
	assert.Equal(t, http.StatusOK, get("/metrics"))
}

func TestMemoryStores_Close(t *testing.T) {
	s := MemoryStores()
	s.Close()
	assert.NotNil(t, s.History)
	assert.NotNil(t, s.Events)
}
