package app

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"solana-lp-sync/internal/config"
	"solana-lp-sync/internal/price"
	"solana-lp-sync/internal/reconcile"
	"solana-lp-sync/internal/solana"
)

// Sync schedules reconciliation runs over every configured protocol.
type Sync struct {
	Runner   *reconcile.Runner
	Cron     *cron.Cron
	CronSpec string
	Logger   *zap.Logger

	wallets []string
	timeout time.Duration
	ready   atomic.Bool
	pools   []pond.Pool
}

// NewSync builds one engine per configured protocol. Wallet tasks and
// persistence statements run on separate pools so a task waiting on its
// statements never holds the worker they need.
func NewSync(cfg *config.Config, stores *Stores, rpc solana.AccountsGetter, oracle price.Oracle, logger *zap.Logger) (*Sync, error) {
	tasks := pond.NewPool(cfg.Sync.Workers)
	statements := pond.NewPool(cfg.Sync.Workers)

	mints := reconcile.NewMintResolver(rpc, stores.Mints, logger)
	engineStores := reconcile.Stores{
		Positions: stores.Positions,
		Pools:     stores.Pools,
		PnL:       stores.PnL,
		History:   stores.History,
	}

	engines := make([]*reconcile.Engine, 0, len(cfg.Sync.Protocols))
	for _, name := range cfg.Sync.Protocols {
		proto, err := NewProtocol(name, rpc, cfg.RPC.ChunkSize, logger)
		if err != nil {
			tasks.StopAndWait()
			statements.StopAndWait()
			return nil, err
		}
		engines = append(engines, reconcile.NewEngine(proto, engineStores, mints, oracle,
			reconcile.WithCycleInterval(cfg.Sync.CycleInterval.Duration),
			reconcile.WithWorkerPool(statements),
			reconcile.WithEngineLogger(logger),
		))
	}

	return &Sync{
		Runner:   reconcile.NewRunner(stores.Positions, tasks, logger, engines...),
		CronSpec: cfg.Sync.Cron,
		Logger:   logger,
		wallets:  cfg.Sync.Wallets,
		timeout:  cfg.Sync.CycleInterval.Duration,
		pools:    []pond.Pool{tasks, statements},
	}, nil
}

// Ready reports whether at least one run finished without failures.
func (a *Sync) Ready() bool {
	return a.ready.Load()
}

// RunOnce reconciles the configured wallets, or every wallet with active
// positions when none are configured.
func (a *Sync) RunOnce(ctx context.Context) ([]reconcile.Result, error) {
	var results []reconcile.Result
	if len(a.wallets) > 0 {
		results = a.Runner.RunWallets(ctx, a.wallets)
	} else {
		var err error
		if results, err = a.Runner.Run(ctx); err != nil {
			return nil, err
		}
	}
	if failed := reconcile.Failed(results); len(failed) > 0 {
		return results, fmt.Errorf("%d of %d sync tasks failed", len(failed), len(results))
	}
	a.ready.Store(true)
	return results, nil
}

// SetupScheduler registers the run on the cron spec. Each run is bounded
// by the cycle interval.
func (a *Sync) SetupScheduler(ctx context.Context) error {
	logger := cron.VerbosePrintfLogger(zap.NewStdLog(a.Logger.Named("cron")))
	// Seconds field, optional
	a.Cron = cron.New(cron.WithSeconds(), cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)))

	_, err := a.Cron.AddFunc(a.CronSpec, func() {
		rctx, cancel := context.WithTimeout(ctx, a.timeout)
		defer cancel()
		if _, err := a.RunOnce(rctx); err != nil {
			a.Logger.Warn("sync run incomplete", zap.Error(err))
		}
	})
	return err
}

// StartCron starts the scheduler.
func (a *Sync) StartCron() {
	a.Cron.Start()
	a.Logger.Info("cron started", zap.String("cronSpec", a.CronSpec))
}

// Stop waits for a running job and releases the worker pools.
func (a *Sync) Stop() {
	if a.Cron != nil {
		<-a.Cron.Stop().Done()
	}
	for _, p := range a.pools {
		p.StopAndWait()
	}
}
