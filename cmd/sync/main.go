// Command sync reconciles CLMM positions against on-chain state and writes
// PnL snapshots, once or on a cron schedule.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"solana-lp-sync/internal/app"
	"solana-lp-sync/internal/config"
	"solana-lp-sync/internal/logging"
)

func main() {
	configPath := flag.String("config", "", "Path to TOML config file")
	once := flag.Bool("once", false, "Run a single sync and exit")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")
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

	if err := run(ctx, cfg, *once, *useMemory, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("sync failed", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, once, useMemory bool, logger *zap.Logger) error {
	var stores *app.Stores
	if useMemory {
		stores = app.MemoryStores()
	} else {
		var err error
		if stores, err = app.OpenStores(ctx, cfg, logger); err != nil {
			return err
		}
	}
	defer stores.Close()

	oracle, closeOracle, err := app.NewOracle(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("price oracle: %w", err)
	}
	defer closeOracle()

	s, err := app.NewSync(cfg, stores, app.NewRPC(cfg.RPC, logger), oracle, logger)
	if err != nil {
		return err
	}
	defer s.Stop()

	if once {
		results, err := s.RunOnce(ctx)
		for _, r := range results {
			fields := []zap.Field{
				zap.String("wallet", r.Wallet),
				zap.String("dex", r.Dex.String()),
				zap.Duration("duration", r.Duration),
			}
			if r.Summary != nil {
				fields = append(fields,
					zap.Int("loaded", r.Summary.Loaded),
					zap.Int("synced", r.Summary.Synced),
					zap.Strings("unknown_prices", r.Summary.UnknownPrices),
				)
			}
			if r.Err != nil {
				fields = append(fields, zap.Error(r.Err))
			}
			logger.Info("sync result", fields...)
		}
		return err
	}

	app.Serve(ctx, cfg.Metrics.Addr, s.Ready, logger)
	if err := s.SetupScheduler(ctx); err != nil {
		return fmt.Errorf("schedule %q: %w", cfg.Sync.Cron, err)
	}
	s.StartCron()

	<-ctx.Done()
	logger.Info("shutting down, waiting for the running sync")

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(30 * time.Second):
		logger.Warn("graceful shutdown timed out after 30s")
	}
	return nil
}
