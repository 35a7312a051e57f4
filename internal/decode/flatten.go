package decode

import (
	"solana-lp-sync/internal/solana"
)

// Entry is one instruction in execution order, top-level or inner.
type Entry struct {
	ProgramID string
	Accounts  []string
	Data      []byte
	// OuterIndex is the top-level instruction the entry belongs to.
	OuterIndex int
	// InnerIndex is the position inside the inner group, -1 for top-level.
	InnerIndex int
}

// IsInner reports whether the entry was invoked through CPI.
func (e Entry) IsInner() bool {
	return e.InnerIndex >= 0
}

// Flatten lists top-level instructions followed by every inner group in the
// order the groups appear in the transaction meta.
func Flatten(tx *solana.Transaction) []Entry {
	if tx == nil || tx.Message == nil {
		return nil
	}

	size := len(tx.Message.Instructions)
	if tx.Meta != nil {
		for _, g := range tx.Meta.InnerInstructions {
			size += len(g.Instructions)
		}
	}

	out := make([]Entry, 0, size)
	for i, ix := range tx.Message.Instructions {
		out = append(out, Entry{
			ProgramID:  ix.ProgramID,
			Accounts:   ix.Accounts,
			Data:       ix.Data,
			OuterIndex: i,
			InnerIndex: -1,
		})
	}
	if tx.Meta == nil {
		return out
	}
	for _, g := range tx.Meta.InnerInstructions {
		for j, ix := range g.Instructions {
			out = append(out, Entry{
				ProgramID:  ix.ProgramID,
				Accounts:   ix.Accounts,
				Data:       ix.Data,
				OuterIndex: g.Index,
				InnerIndex: j,
			})
		}
	}
	return out
}
