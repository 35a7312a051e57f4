package migrations

import (
	"context"

	"go.uber.org/zap"

	"solana-lp-sync/internal/storage/postgres"
)

// Postgres applies the embedded Postgres schema and returns the files run.
// pgx executes a whole file as one simple-protocol batch.
func Postgres(ctx context.Context, pool *postgres.Pool, logger *zap.Logger) ([]string, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	return apply(ctx, postgresFS, "postgres", false, func(ctx context.Context, stmt string) error {
		_, err := pool.Exec(ctx, stmt)
		return err
	}, logger)
}
