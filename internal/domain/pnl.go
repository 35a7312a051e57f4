package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PnLState marks whether a snapshot was taken on an open or closed position.
type PnLState string

const (
	PnLStateOpened PnLState = "opened"
	PnLStateClosed PnLState = "closed"
)

// PnL is a valuation snapshot for a position at one cycle timestamp.
// Corresponds to pnl table in PostgreSQL; unique on (position_id, created_at).
type PnL struct {
	PositionID           string
	State                PnLState
	FeeUSD               decimal.Decimal // unclaimed base + quote fees
	PnLUSD               decimal.Decimal // previous amount - (amount + fee + reward)
	RewardUSD            decimal.Decimal
	AmountUSD            decimal.Decimal // base + quote liquidity value
	BaseAmountUSD        decimal.Decimal
	QuoteAmountUSD       decimal.Decimal
	UnclaimedBaseFee     decimal.Decimal // human units
	UnclaimedBaseFeeUSD  decimal.Decimal
	UnclaimedQuoteFee    decimal.Decimal // human units
	UnclaimedQuoteFeeUSD decimal.Decimal
	ClaimedFeeUSD        decimal.Decimal
	CreatedAt            time.Time // cycle bucket
}

// PoolSync is the reconciliation write for a pool.
type PoolSync struct {
	PoolID string
	Extra  Extra
}
