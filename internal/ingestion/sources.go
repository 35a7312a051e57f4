// Package ingestion feeds Solana transactions into the decode pipeline,
// either from historical signatures or from a live log subscription, and
// provides the consumers that persist what the pipeline decodes.
package ingestion

import (
	"context"
	"time"

	"go.uber.org/zap"

	"solana-lp-sync/internal/decode"
	"solana-lp-sync/internal/solana"
)

// TxProcessor runs decoded transactions through registered processors.
// *decode.Pipeline implements it.
type TxProcessor interface {
	Process(ctx context.Context, txs []*solana.Transaction) ([]decode.Result, error)
}

// TransactionGetter fetches one transaction by signature.
type TransactionGetter interface {
	GetTransaction(ctx context.Context, signature string) (*solana.Transaction, error)
}

// SignatureLister pages through the signatures that touched an address.
type SignatureLister interface {
	GetSignaturesForAddress(ctx context.Context, address string, opts *solana.SignaturesOpts) ([]solana.SignatureInfo, error)
}

const (
	maxFetchAttempts = 3
	baseRetryDelay   = 500 * time.Millisecond
)

// fetchTransaction retries GetTransaction with exponential backoff. Nodes
// often lag a few hundred milliseconds behind log notifications.
func fetchTransaction(ctx context.Context, rpc TransactionGetter, signature string, retryDelay time.Duration, logger *zap.Logger) (*solana.Transaction, error) {
	var lastErr error
	for attempt := 0; attempt < maxFetchAttempts; attempt++ {
		tx, err := rpc.GetTransaction(ctx, signature)
		if err == nil && tx != nil {
			return tx, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if attempt == maxFetchAttempts-1 {
			break
		}

		delay := retryDelay * time.Duration(1<<attempt)
		logger.Debug("retrying transaction fetch",
			zap.String("signature", signature),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}
