// Command ingest decodes Orca and Raydium CLMM transactions into the event
// store and tracks position open and close. It either replays a historical
// range or follows program logs live.
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
	"solana-lp-sync/internal/ingestion"
	"solana-lp-sync/internal/logging"
	"solana-lp-sync/internal/solana"
)

func main() {
	configPath := flag.String("config", "", "Path to TOML config file")
	mode := flag.String("mode", "live", "Ingestion mode: live or backfill")
	since := flag.Duration("since", 24*time.Hour, "Backfill window ending now, used when --from is empty")
	fromTime := flag.String("from", "", "Backfill start (RFC3339)")
	toTime := flag.String("to", "", "Backfill end (RFC3339), defaults to now")
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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// A second signal forces exit.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received signal, shutting down", zap.Stringer("signal", sig))
		cancel()
		sig = <-sigCh
		logger.Warn("received second signal, forcing exit", zap.Stringer("signal", sig))
		os.Exit(1)
	}()

	var stores *app.Stores
	if *useMemory {
		stores = app.MemoryStores()
	} else if stores, err = app.OpenStores(ctx, cfg, logger); err != nil {
		logger.Fatal("open stores", zap.Error(err))
	}
	defer stores.Close()

	rpc := app.NewRPC(cfg.RPC, logger)
	ingest, err := app.NewIngest(cfg, stores, rpc, logger)
	if err != nil {
		logger.Fatal("register programs", zap.Error(err))
	}
	defer ingest.Close()
	logger.Info("ingesting programs", zap.Strings("programs", ingest.ProgramIDs))

	switch *mode {
	case "live":
		app.Serve(ctx, cfg.Metrics.Addr, nil, logger)
		err = runLive(ctx, cfg, rpc, ingest, logger)
	case "backfill":
		err = runBackfill(ctx, rpc, ingest, *since, *fromTime, *toTime, logger)
	default:
		err = fmt.Errorf("unknown mode %q", *mode)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("ingest failed", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

func runLive(ctx context.Context, cfg *config.Config, rpc *solana.HTTPClient, ingest *app.Ingest, logger *zap.Logger) error {
	ws, err := solana.NewWebSocketClient(ctx, cfg.RPC.WSEndpoint, nil, logger)
	if err != nil {
		return err
	}
	defer ws.Close()

	live := ingestion.NewLive(ingestion.LiveOptions{
		WS:       ws,
		RPC:      rpc,
		Pipeline: ingest.Pipeline,
		Programs: ingest.ProgramIDs,
		Logger:   logger,
	})
	return live.Run(ctx)
}

func runBackfill(ctx context.Context, rpc *solana.HTTPClient, ingest *app.Ingest, since time.Duration, fromStr, toStr string, logger *zap.Logger) error {
	to := time.Now()
	from := to.Add(-since)
	if fromStr != "" {
		var err error
		if from, err = time.Parse(time.RFC3339, fromStr); err != nil {
			return fmt.Errorf("parse --from: %w", err)
		}
	}
	if toStr != "" {
		var err error
		if to, err = time.Parse(time.RFC3339, toStr); err != nil {
			return fmt.Errorf("parse --to: %w", err)
		}
	}
	if !from.Before(to) {
		return fmt.Errorf("empty backfill range %s..%s", from.Format(time.RFC3339), to.Format(time.RFC3339))
	}

	backfiller := ingestion.NewBackfiller(ingestion.BackfillOptions{
		RPC:      rpc,
		Pipeline: ingest.Pipeline,
		Programs: ingest.ProgramIDs,
		Logger:   logger,
	})
	result, err := backfiller.BackfillRange(ctx, from, to)
	if err != nil {
		return err
	}
	logger.Info("backfill finished",
		zap.Int("signatures", result.Signatures),
		zap.Int("transactions", result.Transactions),
		zap.Int("missing", result.Missing),
		zap.Int("entries", result.Entries),
		zap.Int("failed_tasks", result.FailedTasks),
		zap.Duration("duration", result.Duration),
	)
	if result.FailedTasks > 0 {
		return fmt.Errorf("%d pipeline tasks failed", result.FailedTasks)
	}
	return nil
}
