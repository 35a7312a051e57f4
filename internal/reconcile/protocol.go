// Package reconcile turns stored positions into fresh on-chain valuations
// and pnl snapshots.
package reconcile

import (
	"context"
	"time"

	"solana-lp-sync/internal/domain"
	"solana-lp-sync/internal/solana"
	"solana-lp-sync/internal/valuation"
)

// Protocol is the per-DEX account surface the engine needs. The orca and
// raydium protocol packages implement it.
type Protocol interface {
	Dex() domain.Dex

	// PositionAddress maps a position id to its position account.
	PositionAddress(positionID string) (string, error)

	// FetchAccounts loads accounts in chunks; missing ones are absent.
	FetchAccounts(ctx context.Context, keys []string) (map[string]*solana.AccountInfo, error)

	DecodePosition(address string, data []byte) (valuation.Position, error)

	// DecodePool returns pool state with reward growth rolled forward to now.
	DecodePool(address string, data []byte, now time.Time) (valuation.Pool, error)

	// TickArrayAddress derives the tick array account holding tick.
	TickArrayAddress(pool string, tickSpacing uint16, tick int32) (string, error)

	DecodeTick(data []byte, tick int32, tickSpacing uint16) (valuation.Tick, error)

	// Extra is the snapshot cached in the pool's config.
	Extra(pool valuation.Pool, price float64) domain.Extra
}
