// Package price provides USD quotes for token mints.
package price

import (
	"context"

	"github.com/shopspring/decimal"

	"solana-lp-sync/internal/valuation"
)

// Oracle quotes USD prices. Mints absent from the result are unknown; an
// error means the lookup itself failed.
type Oracle interface {
	Prices(ctx context.Context, mints []string) (valuation.Prices, error)
}

// Static is a fixed price table.
type Static map[string]decimal.Decimal

// Prices returns the quotes present in the table.
func (s Static) Prices(_ context.Context, mints []string) (valuation.Prices, error) {
	out := make(valuation.Prices, len(mints))
	for _, m := range mints {
		if p, ok := s[m]; ok {
			out[m] = p
		}
	}
	return out, nil
}

func dedupe(mints []string) []string {
	seen := make(map[string]struct{}, len(mints))
	out := make([]string, 0, len(mints))
	for _, m := range mints {
		if m == "" {
			continue
		}
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	return out
}

var _ Oracle = Static(nil)
