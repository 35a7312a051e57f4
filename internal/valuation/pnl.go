package valuation

import (
	"math/big"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"solana-lp-sync/internal/domain"
)

// PriceLookupResult distinguishes a quoted price from a missing one. A
// quoted price of zero is Known.
type PriceLookupResult struct {
	USD   decimal.Decimal
	Known bool
}

// Prices maps mint address to its USD quote.
type Prices map[string]decimal.Decimal

// Lookup returns the quote for mint.
func (p Prices) Lookup(mint string) PriceLookupResult {
	usd, ok := p[mint]
	return PriceLookupResult{USD: usd, Known: ok}
}

// Valuation is a snapshot expressed in human units and USD.
type Valuation struct {
	BaseAmount           decimal.Decimal
	QuoteAmount          decimal.Decimal
	BaseAmountUSD        decimal.Decimal
	QuoteAmountUSD       decimal.Decimal
	AmountUSD            decimal.Decimal
	UnclaimedBaseFee     decimal.Decimal
	UnclaimedBaseFeeUSD  decimal.Decimal
	UnclaimedQuoteFee    decimal.Decimal
	UnclaimedQuoteFeeUSD decimal.Decimal
	FeeUSD               decimal.Decimal
	RewardUSD            decimal.Decimal
	// Unknown lists mints without a quote; each contributed zero USD.
	Unknown []string
}

// Units scales a raw token amount by decimals.
func Units(raw *big.Int, decimals uint8) decimal.Decimal {
	if raw == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(raw, -int32(decimals))
}

// Value prices a snapshot. Mints missing from prices count as zero and are
// reported in Valuation.Unknown so the caller can surface them.
func Value(s Snapshot, base, quote domain.Mint, rewardDecimals map[string]uint8, prices Prices) Valuation {
	unknown := make(map[string]struct{})
	usd := func(mint string) decimal.Decimal {
		res := prices.Lookup(mint)
		if !res.Known {
			unknown[mint] = struct{}{}
			return decimal.Zero
		}
		return res.USD
	}

	basePrice := usd(base.ID)
	quotePrice := usd(quote.ID)

	v := Valuation{
		BaseAmount:        Units(s.AmountA, base.Decimals),
		QuoteAmount:       Units(s.AmountB, quote.Decimals),
		UnclaimedBaseFee:  Units(s.FeeOwedA, base.Decimals),
		UnclaimedQuoteFee: Units(s.FeeOwedB, quote.Decimals),
		RewardUSD:         decimal.Zero,
	}
	v.BaseAmountUSD = v.BaseAmount.Mul(basePrice)
	v.QuoteAmountUSD = v.QuoteAmount.Mul(quotePrice)
	v.AmountUSD = v.BaseAmountUSD.Add(v.QuoteAmountUSD)
	v.UnclaimedBaseFeeUSD = v.UnclaimedBaseFee.Mul(basePrice)
	v.UnclaimedQuoteFeeUSD = v.UnclaimedQuoteFee.Mul(quotePrice)
	v.FeeUSD = v.UnclaimedBaseFeeUSD.Add(v.UnclaimedQuoteFeeUSD)

	for _, r := range s.Rewards {
		if r.Amount == nil || r.Amount.Sign() == 0 {
			continue
		}
		dec, ok := rewardDecimals[r.Mint]
		if !ok {
			unknown[r.Mint] = struct{}{}
			continue
		}
		v.RewardUSD = v.RewardUSD.Add(Units(r.Amount, dec).Mul(usd(r.Mint)))
	}

	for mint := range unknown {
		v.Unknown = append(v.Unknown, mint)
	}
	sort.Strings(v.Unknown)
	return v
}

// ComputePnL returns previous - (amount + fee + reward). Positive means the
// position lost value against the stored baseline.
func ComputePnL(previousAmountUSD decimal.Decimal, v Valuation) decimal.Decimal {
	return previousAmountUSD.Sub(v.AmountUSD.Add(v.FeeUSD).Add(v.RewardUSD))
}

// PnL builds the snapshot row for a position.
func (v Valuation) PnL(positionID string, previousAmountUSD decimal.Decimal, createdAt time.Time) domain.PnL {
	return domain.PnL{
		PositionID:           positionID,
		State:                domain.PnLStateOpened,
		FeeUSD:               v.FeeUSD,
		PnLUSD:               ComputePnL(previousAmountUSD, v),
		RewardUSD:            v.RewardUSD,
		AmountUSD:            v.AmountUSD,
		BaseAmountUSD:        v.BaseAmountUSD,
		QuoteAmountUSD:       v.QuoteAmountUSD,
		UnclaimedBaseFee:     v.UnclaimedBaseFee,
		UnclaimedBaseFeeUSD:  v.UnclaimedBaseFeeUSD,
		UnclaimedQuoteFee:    v.UnclaimedQuoteFee,
		UnclaimedQuoteFeeUSD: v.UnclaimedQuoteFeeUSD,
		ClaimedFeeUSD:        decimal.Zero,
		CreatedAt:            createdAt,
	}
}

// CycleTimestamp buckets t into the cycle it belongs to.
func CycleTimestamp(t time.Time, interval time.Duration) time.Time {
	t = t.UTC()
	if interval <= 0 {
		return t
	}
	return t.Truncate(interval)
}
