package ingestion

import (
	"cmp"
	"errors"
	"slices"

	"solana-lp-sync/internal/solana"
)

// ErrInvalidOrdering is returned when transactions are not in chain order.
var ErrInvalidOrdering = errors.New("transactions are not in deterministic order")

// SortTransactions orders transactions by (slot ASC, signature ASC) so that
// lifecycle instructions apply in the order the chain executed them.
func SortTransactions(txs []*solana.Transaction) {
	slices.SortStableFunc(txs, compareTransactions)
}

// ValidateOrdering checks that txs are strictly ordered.
func ValidateOrdering(txs []*solana.Transaction) error {
	for i := 1; i < len(txs); i++ {
		if compareTransactions(txs[i-1], txs[i]) >= 0 {
			return ErrInvalidOrdering
		}
	}
	return nil
}

func compareTransactions(a, b *solana.Transaction) int {
	if c := cmp.Compare(a.Slot, b.Slot); c != 0 {
		return c
	}
	return cmp.Compare(a.Signature, b.Signature)
}
