// Package app wires configuration into the stores, clients, engines and
// schedulers that the binaries run.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"solana-lp-sync/internal/config"
	"solana-lp-sync/internal/storage"
	chstore "solana-lp-sync/internal/storage/clickhouse"
	"solana-lp-sync/internal/storage/memory"
	"solana-lp-sync/internal/storage/migrations"
	pgstore "solana-lp-sync/internal/storage/postgres"
)

// Stores is every store a binary may need. History is nil when no
// analytics sink is configured.
type Stores struct {
	Mints     storage.MintStore
	Pools     storage.PoolStore
	Positions storage.PositionStore
	PnL       storage.PnLStore
	History   storage.PnLHistoryStore
	Events    storage.EventStore

	closers []func()
}

// Close releases database connections.
func (s *Stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

// MemoryStores returns process-local stores.
func MemoryStores() *Stores {
	mints := memory.NewMintStore()
	pools := memory.NewPoolStore()
	return &Stores{
		Mints:     mints,
		Pools:     pools,
		Positions: memory.NewPositionStore(pools, mints),
		PnL:       memory.NewPnLStore(),
		History:   memory.NewPnLHistoryStore(),
		Events:    memory.NewEventStore(),
	}
}

// OpenStores connects to Postgres and, when enabled, ClickHouse. Without
// ClickHouse the pnl history sink is disabled and decoded events stay in
// memory.
func OpenStores(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Stores, error) {
	pool, err := pgstore.NewPool(ctx, cfg.Postgres.DSN)
	if err != nil {
		return nil, err
	}
	s := &Stores{
		Mints:     pgstore.NewMintStore(pool),
		Pools:     pgstore.NewPoolStore(pool),
		Positions: pgstore.NewPositionStore(pool),
		PnL:       pgstore.NewPnLStore(pool),
		closers:   []func(){pool.Close},
	}

	if cfg.Postgres.RunMigrations {
		if _, err := migrations.Postgres(ctx, pool, logger); err != nil {
			s.Close()
			return nil, fmt.Errorf("postgres migrations: %w", err)
		}
	}

	if !cfg.Clickhouse.Enabled {
		logger.Warn("clickhouse disabled: pnl history off, decoded events kept in memory")
		s.Events = memory.NewEventStore()
		return s, nil
	}

	var conn *chstore.Conn
	if cfg.Postgres.RunMigrations {
		conn, err = migrations.Clickhouse(ctx, cfg.Clickhouse.DSN, logger)
	} else {
		conn, err = chstore.NewConn(ctx, cfg.Clickhouse.DSN)
	}
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("clickhouse: %w", err)
	}
	s.closers = append(s.closers, func() { _ = conn.Close() })
	s.History = chstore.NewPnLHistoryStore(conn)
	s.Events = chstore.NewEventStore(conn)
	return s, nil
}
