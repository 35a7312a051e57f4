package postgres

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"solana-lp-sync/internal/domain"
)

// setupTestDB starts a disposable Postgres with the lp-sync schema.
func setupTestDB(t *testing.T) (*Pool, func()) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("lp_sync"),
		postgres.WithUsername("lp"),
		postgres.WithPassword("lp"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := NewPool(ctx, dsn)
	require.NoError(t, err)

	runMigrations(t, ctx, pool)

	return pool, func() {
		pool.Close()
		if err := container.Terminate(ctx); err != nil {
			t.Logf("terminate postgres: %v", err)
		}
	}
}

// runMigrations applies the schema files in name order, the same order
// the migrate binary uses.
func runMigrations(t *testing.T, ctx context.Context, pool *Pool) {
	t.Helper()

	for _, file := range schemaFiles(t, "postgres") {
		sql, err := os.ReadFile(file)
		require.NoError(t, err)
		_, err = pool.Exec(ctx, string(sql))
		require.NoError(t, err, "apply %s", filepath.Base(file))
	}
}

// schemaFiles lists internal/storage/migrations/<dialect>/*.sql relative to
// this package.
func schemaFiles(t *testing.T, dialect string) []string {
	t.Helper()

	files, err := filepath.Glob(filepath.Join("..", "migrations", dialect, "*.sql"))
	require.NoError(t, err)
	require.NotEmpty(t, files, "no %s migrations found", dialect)
	sort.Strings(files)
	return files
}

// seedPool stores the two mints and a whirlpool referencing them.
func seedPool(t *testing.T, ctx context.Context, pool *Pool, id string, dex domain.Dex) *domain.Pool {
	t.Helper()

	mints := NewMintStore(pool)
	require.NoError(t, mints.Upsert(ctx, &domain.Mint{ID: "base-" + id, Decimals: 9}))
	require.NoError(t, mints.Upsert(ctx, &domain.Mint{ID: "quote-" + id, Decimals: 6}))

	p := &domain.Pool{
		ID:        id,
		Dex:       dex,
		BaseMint:  "base-" + id,
		QuoteMint: "quote-" + id,
		Config:    domain.PoolConfig{Extra: domain.OrcaExtra{Price: 150, TickCurrentIndex: -20000, SqrtPrice: "1", Liquidity: "2"}},
	}
	require.NoError(t, NewPoolStore(pool).Upsert(ctx, p))
	return p
}

func ptr[T any](v T) *T {
	return &v
}
