package ingestion

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"solana-lp-sync/internal/decode"
	"solana-lp-sync/internal/observability"
	"solana-lp-sync/internal/solana"
)

// BackfillRPC is the node surface a backfill needs.
type BackfillRPC interface {
	SignatureLister
	TransactionGetter
}

// Backfiller replays historical program transactions through the pipeline.
type Backfiller struct {
	rpc        BackfillRPC
	pipeline   TxProcessor
	programs   []string
	pageSize   int
	batchSize  int
	retryDelay time.Duration
	logger     *zap.Logger
}

// BackfillOptions contains configuration for creating a Backfiller.
type BackfillOptions struct {
	RPC      BackfillRPC
	Pipeline TxProcessor
	// Programs are the program ids whose signatures are replayed.
	Programs   []string
	PageSize   int // Default: 1000
	BatchSize  int // Default: 100 transactions per pipeline call
	RetryDelay time.Duration
	Logger     *zap.Logger
}

// NewBackfiller creates a new historical backfiller.
func NewBackfiller(opts BackfillOptions) *Backfiller {
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = 1000
	}
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	retryDelay := opts.RetryDelay
	if retryDelay <= 0 {
		retryDelay = baseRetryDelay
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Backfiller{
		rpc:        opts.RPC,
		pipeline:   opts.Pipeline,
		programs:   opts.Programs,
		pageSize:   pageSize,
		batchSize:  batchSize,
		retryDelay: retryDelay,
		logger:     logger.Named("backfill"),
	}
}

// BackfillResult contains statistics from a backfill operation.
type BackfillResult struct {
	Signatures   int
	Transactions int
	Missing      int
	Entries      int
	FailedTasks  int
	Duration     time.Duration
}

// BackfillSince backfills from since until now.
func (b *Backfiller) BackfillSince(ctx context.Context, since time.Time) (*BackfillResult, error) {
	return b.BackfillRange(ctx, since, time.Now())
}

// BackfillRange replays successful transactions with block time in
// [from, to). Transactions are processed in chain order.
func (b *Backfiller) BackfillRange(ctx context.Context, from, to time.Time) (*BackfillResult, error) {
	start := time.Now()
	result := &BackfillResult{}

	b.logger.Info("starting backfill",
		zap.Time("from", from),
		zap.Time("to", to),
		zap.Strings("programs", b.programs),
	)

	seen := make(map[string]struct{})
	var signatures []string
	for _, program := range b.programs {
		sigs, err := b.listSignatures(ctx, program, from.Unix(), to.Unix())
		if err != nil {
			return result, fmt.Errorf("list signatures for %s: %w", program, err)
		}
		for _, sig := range sigs {
			if _, dup := seen[sig]; dup {
				continue
			}
			seen[sig] = struct{}{}
			signatures = append(signatures, sig)
		}
	}
	result.Signatures = len(signatures)

	txs := make([]*solana.Transaction, 0, len(signatures))
	for _, sig := range signatures {
		tx, err := fetchTransaction(ctx, b.rpc, sig, b.retryDelay, b.logger)
		if err != nil {
			return result, fmt.Errorf("get transaction %s: %w", sig, err)
		}
		if tx == nil || tx.Meta == nil {
			result.Missing++
			b.logger.Warn("transaction unavailable", zap.String("signature", sig))
			continue
		}
		txs = append(txs, tx)
	}
	SortTransactions(txs)
	result.Transactions = len(txs)

	for i := 0; i < len(txs); i += b.batchSize {
		end := min(i+b.batchSize, len(txs))
		results, err := b.pipeline.Process(ctx, txs[i:end])
		if err != nil {
			return result, fmt.Errorf("process batch at %d: %w", i, err)
		}
		for _, r := range results {
			result.Entries += r.Entries
		}
		result.FailedTasks += len(decode.Failed(results))
	}

	result.Duration = time.Since(start)
	if result.FailedTasks == 0 {
		observability.MarkIngestSuccess(time.Now().Unix())
	}
	b.logger.Info("backfill complete",
		zap.Int("signatures", result.Signatures),
		zap.Int("transactions", result.Transactions),
		zap.Int("missing", result.Missing),
		zap.Int("entries", result.Entries),
		zap.Int("failed_tasks", result.FailedTasks),
		zap.Duration("duration", result.Duration),
	)
	return result, nil
}

// listSignatures pages backwards from the newest signature and stops at the
// first one older than fromSec. Failed and timeless signatures are skipped.
func (b *Backfiller) listSignatures(ctx context.Context, program string, fromSec, toSec int64) ([]string, error) {
	var out []string
	var before string

	for {
		opts := &solana.SignaturesOpts{Limit: b.pageSize, Before: before}
		sigs, err := b.rpc.GetSignaturesForAddress(ctx, program, opts)
		if err != nil {
			return nil, err
		}
		if len(sigs) == 0 {
			return out, nil
		}

		for _, sig := range sigs {
			ts, ok := sig.Time()
			if !ok {
				continue
			}
			if ts.Unix() < fromSec {
				return out, nil
			}
			if ts.Unix() >= toSec || sig.Failed() {
				continue
			}
			out = append(out, sig.Signature)
		}

		if len(sigs) < b.pageSize {
			return out, nil
		}
		before = sigs[len(sigs)-1].Signature
	}
}
