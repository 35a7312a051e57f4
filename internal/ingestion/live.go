package ingestion

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"solana-lp-sync/internal/decode"
	"solana-lp-sync/internal/observability"
	"solana-lp-sync/internal/solana"
)

const defaultRecentSignatures = 4096

// Live follows program logs over a websocket and feeds each successful
// transaction through the pipeline.
type Live struct {
	ws         solana.WSClient
	rpc        TransactionGetter
	pipeline   TxProcessor
	programs   []string
	retryDelay time.Duration
	recent     *recentSet
	logger     *zap.Logger
}

// LiveOptions contains configuration for creating a Live follower.
type LiveOptions struct {
	WS       solana.WSClient
	RPC      TransactionGetter
	Pipeline TxProcessor
	Programs []string
	// RecentSignatures bounds the dedup window for transactions that
	// mention more than one followed program. Default: 4096.
	RecentSignatures int
	RetryDelay       time.Duration
	Logger           *zap.Logger
}

// NewLive creates a live follower.
func NewLive(opts LiveOptions) *Live {
	recent := opts.RecentSignatures
	if recent <= 0 {
		recent = defaultRecentSignatures
	}
	retryDelay := opts.RetryDelay
	if retryDelay <= 0 {
		retryDelay = baseRetryDelay
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Live{
		ws:         opts.WS,
		rpc:        opts.RPC,
		pipeline:   opts.Pipeline,
		programs:   opts.Programs,
		retryDelay: retryDelay,
		recent:     newRecentSet(recent),
		logger:     logger.Named("live"),
	}
}

// Run subscribes to every program and blocks until ctx is cancelled or all
// subscriptions close. Per-transaction failures are logged and skipped.
func (l *Live) Run(ctx context.Context) error {
	// One subscription per program; some providers accept a single mention.
	channels := make([]<-chan solana.LogNotification, 0, len(l.programs))
	for _, program := range l.programs {
		ch, err := l.ws.SubscribeLogs(ctx, solana.LogsFilter{Mentions: []string{program}})
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", program, err)
		}
		channels = append(channels, ch)
		l.logger.Info("subscribed", zap.String("program", program))
	}

	merged := merge(ctx, channels)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case notif, ok := <-merged:
			if !ok {
				return nil
			}
			l.handle(ctx, notif)
		}
	}
}

func (l *Live) handle(ctx context.Context, notif solana.LogNotification) {
	if notif.Failed() || !l.recent.add(notif.Signature) {
		return
	}

	tx, err := fetchTransaction(ctx, l.rpc, notif.Signature, l.retryDelay, l.logger)
	if err != nil || tx == nil || tx.Meta == nil {
		l.logger.Warn("transaction unavailable",
			zap.String("signature", notif.Signature),
			zap.Int64("slot", notif.Slot),
			zap.Error(err),
		)
		return
	}

	results, err := l.pipeline.Process(ctx, []*solana.Transaction{tx})
	if err != nil {
		l.logger.Error("pipeline rejected transaction", zap.String("signature", tx.Signature), zap.Error(err))
		return
	}
	if len(decode.Failed(results)) == 0 {
		observability.MarkIngestSuccess(time.Now().Unix())
	}
}

// merge fans several notification channels into one that closes when all
// inputs have closed.
func merge(ctx context.Context, channels []<-chan solana.LogNotification) <-chan solana.LogNotification {
	out := make(chan solana.LogNotification)
	var wg sync.WaitGroup
	for _, ch := range channels {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for notif := range ch {
				select {
				case out <- notif:
				case <-ctx.Done():
					return
				}
			}
		}()
	}
	go func() {
		wg.Wait()
		close(out)
	}()
	return out
}

// recentSet remembers the last n signatures in insertion order.
type recentSet struct {
	mu    sync.Mutex
	ring  []string
	next  int
	index map[string]struct{}
}

func newRecentSet(n int) *recentSet {
	return &recentSet{ring: make([]string, n), index: make(map[string]struct{}, n)}
}

// add returns false when sig is already present.
func (s *recentSet) add(sig string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.index[sig]; ok {
		return false
	}
	if old := s.ring[s.next]; old != "" {
		delete(s.index, old)
	}
	s.ring[s.next] = sig
	s.index[sig] = struct{}{}
	s.next = (s.next + 1) % len(s.ring)
	return true
}
