package valuation

import (
	"math/big"
)

// AmountsForLiquidity returns raw token amounts backing liquidity at the
// current price. The region is selected by tick; inside the range the pool's
// sqrt price is used.
func AmountsForLiquidity(liquidity, sqrtPrice, sqrtLower, sqrtUpper *big.Int, tickCurrent, tickLower, tickUpper int32) (amountA, amountB *big.Int) {
	amountA, amountB = new(big.Int), new(big.Int)
	if liquidity == nil || liquidity.Sign() == 0 {
		return amountA, amountB
	}

	switch {
	case tickCurrent < tickLower:
		amountA = amountADelta(liquidity, sqrtLower, sqrtUpper)
	case tickCurrent >= tickUpper:
		amountB = amountBDelta(liquidity, sqrtLower, sqrtUpper)
	default:
		amountA = amountADelta(liquidity, sqrtPrice, sqrtUpper)
		amountB = amountBDelta(liquidity, sqrtLower, sqrtPrice)
	}
	return amountA, amountB
}

// amountADelta = L * (upper - lower) * 2^64 / (lower * upper)
func amountADelta(liquidity, sqrtLower, sqrtUpper *big.Int) *big.Int {
	if sqrtLower.Sign() == 0 || sqrtUpper.Cmp(sqrtLower) <= 0 {
		return new(big.Int)
	}
	num := new(big.Int).Sub(sqrtUpper, sqrtLower)
	num.Mul(num, liquidity)
	num.Lsh(num, 64)
	den := new(big.Int).Mul(sqrtLower, sqrtUpper)
	return num.Quo(num, den)
}

// amountBDelta = L * (upper - lower) / 2^64
func amountBDelta(liquidity, sqrtLower, sqrtUpper *big.Int) *big.Int {
	if sqrtUpper.Cmp(sqrtLower) <= 0 {
		return new(big.Int)
	}
	out := new(big.Int).Sub(sqrtUpper, sqrtLower)
	out.Mul(out, liquidity)
	return out.Rsh(out, 64)
}

// GrowthInside derives the per-liquidity growth inside [lower, upper) from
// the global accumulator and the two boundary ticks' outside values. All
// arithmetic wraps at 2^128.
func GrowthInside(tickCurrent, tickLower, tickUpper int32, global, lowerOutside, upperOutside *big.Int) *big.Int {
	global = orZero(global)
	below := new(big.Int).Set(orZero(lowerOutside))
	if tickCurrent < tickLower {
		below.Sub(global, below)
	}
	above := new(big.Int).Set(orZero(upperOutside))
	if tickCurrent >= tickUpper {
		above.Sub(global, above)
	}

	inside := new(big.Int).Sub(global, below)
	inside.Sub(inside, above)
	return wrap128(inside)
}

// OwedDelta is liquidity * (inside - checkpoint) >> 64, with the growth
// difference wrapping at 2^128.
func OwedDelta(liquidity, growthInside, checkpoint *big.Int) *big.Int {
	if liquidity == nil || liquidity.Sign() == 0 {
		return new(big.Int)
	}
	delta := wrap128(new(big.Int).Sub(orZero(growthInside), orZero(checkpoint)))
	delta.Mul(delta, liquidity)
	return delta.Rsh(delta, 64)
}

// RollForwardGrowth adds emissions accrued since lastUpdated to a reward
// growth accumulator: emissionsX64 * elapsed / liquidity.
func RollForwardGrowth(growthX64, emissionsX64, liquidity *big.Int, elapsedSeconds int64) *big.Int {
	out := new(big.Int).Set(orZero(growthX64))
	if elapsedSeconds <= 0 || liquidity == nil || liquidity.Sign() == 0 || emissionsX64 == nil || emissionsX64.Sign() == 0 {
		return out
	}
	delta := new(big.Int).Mul(emissionsX64, big.NewInt(elapsedSeconds))
	delta.Quo(delta, liquidity)
	return wrap128(out.Add(out, delta))
}

func orZero(x *big.Int) *big.Int {
	if x == nil {
		return new(big.Int)
	}
	return x
}
