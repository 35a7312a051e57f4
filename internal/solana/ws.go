package solana

import "context"

// WSClient streams program logs. The ingest live follower only needs the
// signature of each logged transaction; everything else comes from
// getTransaction.
type WSClient interface {
	// SubscribeLogs returns a channel that is closed when the client closes.
	SubscribeLogs(ctx context.Context, filter LogsFilter) (<-chan LogNotification, error)
	Close() error
}

// LogsFilter selects the transactions a logs subscription delivers.
type LogsFilter struct {
	// Mentions limits delivery to transactions touching these accounts.
	// Empty subscribes to all transactions.
	Mentions []string
	// Commitment defaults to "confirmed".
	Commitment string
}

// LogNotification is one logsNotification payload.
type LogNotification struct {
	Signature string
	Slot      int64
	Logs      []string
	Err       interface{}
}

// Failed reports whether the transaction errored on chain.
func (n LogNotification) Failed() bool {
	return n.Err != nil
}
