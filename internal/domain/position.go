package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PositionState is the lifecycle of the transaction that created a position.
type PositionState string

const (
	PositionStatePending    PositionState = "pending"
	PositionStateError      PositionState = "error"
	PositionStateSuccessful PositionState = "successful"
)

// IsValid checks if the state is a valid value.
func (s PositionState) IsValid() bool {
	switch s {
	case PositionStatePending, PositionStateError, PositionStateSuccessful:
		return true
	}
	return false
}

// PositionStatus is the user-visible lifecycle of a position.
type PositionStatus string

const (
	PositionStatusIdle         PositionStatus = "idle"
	PositionStatusOpen         PositionStatus = "open"
	PositionStatusRebalanced   PositionStatus = "rebalanced"
	PositionStatusRepositioned PositionStatus = "repositioned"
	PositionStatusClosed       PositionStatus = "closed"
)

// IsValid checks if the status is a valid value.
func (s PositionStatus) IsValid() bool {
	switch s {
	case PositionStatusIdle, PositionStatusOpen, PositionStatusRebalanced,
		PositionStatusRepositioned, PositionStatusClosed:
		return true
	}
	return false
}

// IsTerminal reports whether reconciliation skips positions in this status.
func (s PositionStatus) IsTerminal() bool {
	return s == PositionStatusClosed || s == PositionStatusIdle
}

// PriceRange is a [lower, upper] quote-per-base price interval.
type PriceRange [2]float64

// Ordered returns the range as [min, max].
func (r PriceRange) Ordered() PriceRange {
	if r[0] > r[1] {
		return PriceRange{r[1], r[0]}
	}
	return r
}

// PositionConfig is the JSON config column of a position.
type PositionConfig struct {
	PriceRange *PriceRange `json:"priceRange,omitempty"`
}

// Position is a user's liquidity position in a pool.
// Corresponds to positions table in PostgreSQL.
type Position struct {
	ID          string          // position NFT mint, primary key
	Wallet      string          // owner wallet address
	PoolID      *string         // FK to pools, nil after pool deletion
	AmountUSD   decimal.Decimal // last known valuation
	BaseAmount  decimal.Decimal // last known base token amount
	QuoteAmount decimal.Decimal // last known quote token amount
	Config      PositionConfig
	State       PositionState
	Status      PositionStatus
	Active      bool // current price inside range
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// PositionWithRelations is a position joined with its pool and mints.
type PositionWithRelations struct {
	Position
	Pool        *Pool
	BaseMint    *Mint
	QuoteMint   *Mint
	RewardMints []*Mint
}

// PositionSync is the reconciliation write for a position.
type PositionSync struct {
	PositionID string
	Active     bool
	PriceRange PriceRange
}
