package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/alitto/pond/v2"
	"go.uber.org/zap"

	"solana-lp-sync/internal/domain"
	"solana-lp-sync/internal/observability"
	"solana-lp-sync/internal/storage"
)

// Result is the outcome of one (wallet, engine) task.
type Result struct {
	Wallet   string
	Dex      domain.Dex
	Summary  *Summary
	Duration time.Duration
	Err      error
}

// Runner drives every engine over every wallet with active positions.
type Runner struct {
	engines   []*Engine
	positions storage.PositionStore
	pool      pond.Pool
	logger    *zap.Logger
}

// NewRunner creates a runner. Tasks run on pool.
func NewRunner(positions storage.PositionStore, pool pond.Pool, logger *zap.Logger, engines ...*Engine) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		engines:   engines,
		positions: positions,
		pool:      pool,
		logger:    logger.Named("runner"),
	}
}

// Run syncs all wallets holding active positions.
func (r *Runner) Run(ctx context.Context) ([]Result, error) {
	wallets, err := r.positions.ListWallets(ctx)
	if err != nil {
		return nil, fmt.Errorf("list wallets: %w", err)
	}
	return r.RunWallets(ctx, wallets), nil
}

// RunWallets syncs the given wallets, one task per (wallet, engine). Every
// task reports its own result.
func (r *Runner) RunWallets(ctx context.Context, wallets []string) []Result {
	results := make([]Result, len(wallets)*len(r.engines))
	group := r.pool.NewGroup()
	for i, wallet := range wallets {
		for j, engine := range r.engines {
			idx := i*len(r.engines) + j
			group.Submit(func() {
				results[idx] = r.run(ctx, engine, wallet)
			})
		}
	}
	if err := group.Wait(); err != nil {
		r.logger.Error("sync tasks interrupted", zap.Error(err))
	}

	synced, failed := 0, 0
	for _, res := range results {
		if res.Err != nil {
			failed++
			continue
		}
		if res.Summary != nil {
			synced += res.Summary.Synced
		}
	}
	r.logger.Info("sync run finished",
		zap.Int("wallets", len(wallets)),
		zap.Int("positions_synced", synced),
		zap.Int("tasks_failed", failed),
	)
	if failed == 0 {
		observability.MarkSyncSuccess(time.Now().Unix())
	}
	return results
}

func (r *Runner) run(ctx context.Context, engine *Engine, wallet string) (res Result) {
	res = Result{Wallet: wallet, Dex: engine.Dex()}
	start := time.Now()

	defer func() {
		if p := recover(); p != nil {
			res.Err = fmt.Errorf("sync %s/%s panicked: %v", res.Dex, wallet, p)
		}
		res.Duration = time.Since(start)
		status := "ok"
		if res.Err != nil {
			status = "error"
			r.logger.Warn("wallet sync failed",
				zap.String("wallet", wallet),
				zap.String("dex", res.Dex.String()),
				zap.Error(res.Err),
			)
		}
		observability.RecordSyncRun(res.Dex.String(), status, res.Duration.Seconds())
	}()

	if err := ctx.Err(); err != nil {
		res.Err = err
		return res
	}
	res.Summary, res.Err = engine.Sync(ctx, wallet)
	return res
}

// Failed returns the results that carry an error.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if r.Err != nil {
			out = append(out, r)
		}
	}
	return out
}
