// Package decode routes transactions through instruction and log processors
// on a bounded worker pool.
package decode

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/AlekSi/pointer"
	"github.com/alitto/pond/v2"
	"go.uber.org/zap"

	"solana-lp-sync/internal/observability"
	"solana-lp-sync/internal/solana"
)

// ErrMissingMeta is returned when a transaction carries no execution meta.
var ErrMissingMeta = errors.New("transaction has no meta")

// Result is the outcome of one (transaction, processor) task.
type Result struct {
	Signature string
	Processor string
	Entries   int
	Err       error
}

// Pipeline fans transactions out to registered processors.
type Pipeline struct {
	mu           sync.RWMutex
	instructions []Processor
	logs         []Processor

	pool   pond.Pool
	logger *zap.Logger
}

// Option configures a Pipeline.
type Option func(*pipelineOptions)

type pipelineOptions struct {
	workers int
	logger  *zap.Logger
}

// WithWorkers bounds the number of concurrently running tasks.
func WithWorkers(n int) Option {
	return func(o *pipelineOptions) {
		o.workers = n
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *pipelineOptions) {
		o.logger = logger
	}
}

// New creates a pipeline. Call Close to release its workers.
func New(opts ...Option) *Pipeline {
	o := pipelineOptions{workers: runtime.NumCPU() * 2}
	for _, opt := range opts {
		opt(&o)
	}
	if o.workers <= 0 {
		o.workers = 1
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	return &Pipeline{
		pool:   pond.NewPool(o.workers),
		logger: o.logger.Named("decode"),
	}
}

// Add files a processor under its declared kind.
func (p *Pipeline) Add(proc Processor) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch proc.Kind() {
	case KindInstruction:
		p.instructions = append(p.instructions, proc)
	case KindLog:
		p.logs = append(p.logs, proc)
	default:
		return fmt.Errorf("processor %s: unsupported kind %s", proc.Name(), proc.Kind())
	}
	return nil
}

// Process runs every processor over every transaction and waits for all of
// them. Task failures are reported per Result; the returned error is only
// set when the batch could not start.
func (p *Pipeline) Process(ctx context.Context, txs []*solana.Transaction) ([]Result, error) {
	for _, tx := range txs {
		if tx == nil || tx.Meta == nil {
			sig := ""
			if tx != nil {
				sig = tx.Signature
			}
			return nil, fmt.Errorf("process %s: %w", sig, ErrMissingMeta)
		}
	}

	p.mu.RLock()
	instructions := append([]Processor(nil), p.instructions...)
	logs := append([]Processor(nil), p.logs...)
	p.mu.RUnlock()

	type task struct {
		proc  Processor
		input *Input
	}
	tasks := make([]task, 0, len(txs)*(len(instructions)+len(logs)))
	for _, tx := range txs {
		in := &Input{
			Meta:         Meta{Signature: tx.Signature},
			Instructions: Flatten(tx),
			Logs:         tx.Meta.LogMessages,
		}
		if tx.BlockTime != nil {
			in.Meta.BlockTime = pointer.ToTime(time.Unix(*tx.BlockTime, 0).UTC())
		}
		for _, proc := range instructions {
			tasks = append(tasks, task{proc: proc, input: in})
		}
		if len(in.Logs) == 0 {
			continue
		}
		for _, proc := range logs {
			tasks = append(tasks, task{proc: proc, input: in})
		}
	}

	results := make([]Result, len(tasks))
	group := p.pool.NewGroup()
	for i, t := range tasks {
		group.Submit(func() {
			results[i] = p.run(ctx, t.proc, t.input)
		})
	}
	if err := group.Wait(); err != nil {
		// Tasks recover their own panics, so this is a pool shutdown.
		return results, fmt.Errorf("wait decode tasks: %w", err)
	}

	observability.RecordTransactions(len(txs))
	return results, nil
}

func (p *Pipeline) run(ctx context.Context, proc Processor, in *Input) (res Result) {
	res = Result{Signature: in.Meta.Signature, Processor: proc.Name()}
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			res.Err = fmt.Errorf("processor %s panicked: %v", proc.Name(), r)
		}
		observability.RecordDecodeTask(proc.Name(), time.Since(start).Seconds(), res.Err)
		if res.Err != nil {
			p.logger.Warn("processor failed",
				zap.String("processor", proc.Name()),
				zap.String("signature", in.Meta.Signature),
				zap.Error(res.Err),
			)
		}
	}()

	if err := ctx.Err(); err != nil {
		res.Err = err
		return res
	}
	res.Entries, res.Err = proc.Process(ctx, *in)
	return res
}

// Close stops the worker pool after queued tasks finish.
func (p *Pipeline) Close() {
	p.pool.StopAndWait()
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
