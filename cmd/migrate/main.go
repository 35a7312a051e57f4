// Command migrate applies the embedded Postgres and ClickHouse schemas.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"solana-lp-sync/internal/config"
	"solana-lp-sync/internal/logging"
	"solana-lp-sync/internal/storage/migrations"
	pgstore "solana-lp-sync/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "", "Path to TOML config file")
	skipClickhouse := flag.Bool("skip-clickhouse", false, "Only migrate PostgreSQL")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogEncoding)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, !*skipClickhouse && cfg.Clickhouse.Enabled, logger); err != nil {
		logger.Error("migration failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, clickhouse bool, logger *zap.Logger) error {
	pool, err := pgstore.NewPool(ctx, cfg.Postgres.DSN)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer pool.Close()

	applied, err := migrations.Postgres(ctx, pool, logger)
	if err != nil {
		return err
	}
	logger.Info("postgres migrated", zap.Strings("files", applied))

	if !clickhouse {
		return nil
	}
	conn, err := migrations.Clickhouse(ctx, cfg.Clickhouse.DSN, logger)
	if err != nil {
		return err
	}
	defer conn.Close()
	logger.Info("clickhouse migrated")
	return nil
}
