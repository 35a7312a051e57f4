// Package valuation implements concentrated-liquidity math and turns
// on-chain position state into USD figures and PnL.
package valuation

import (
	"fmt"
	"math"
	"math/big"
)

const (
	MinTick int32 = -443636
	MaxTick int32 = 443636

	floatPrec = 256
)

var (
	q64  = new(big.Int).Lsh(big.NewInt(1), 64)
	q128 = new(big.Int).Lsh(big.NewInt(1), 128)

	q64Float = new(big.Float).SetPrec(floatPrec).SetInt(q64)
	sqrtBase = func() *big.Float {
		base, _, err := big.ParseFloat("1.0001", 10, floatPrec, big.ToNearestEven)
		if err != nil {
			panic(err)
		}
		return new(big.Float).SetPrec(floatPrec).Sqrt(base)
	}()
)

// SqrtPriceX64FromTick returns sqrt(1.0001^tick) in Q64.64.
func SqrtPriceX64FromTick(tick int32) (*big.Int, error) {
	if tick < MinTick || tick > MaxTick {
		return nil, fmt.Errorf("tick %d outside [%d, %d]", tick, MinTick, MaxTick)
	}

	n := int64(tick)
	if n < 0 {
		n = -n
	}
	result := new(big.Float).SetPrec(floatPrec).SetInt64(1)
	base := new(big.Float).SetPrec(floatPrec).Set(sqrtBase)
	for n > 0 {
		if n&1 == 1 {
			result.Mul(result, base)
		}
		base.Mul(base, base)
		n >>= 1
	}
	if tick < 0 {
		result.Quo(new(big.Float).SetPrec(floatPrec).SetInt64(1), result)
	}

	result.Mul(result, q64Float)
	out, _ := result.Int(nil)
	return out, nil
}

// PriceFromSqrtX64 converts a Q64.64 sqrt price into a quote-per-base price
// in human units.
func PriceFromSqrtX64(sqrtPriceX64 *big.Int, decimalsA, decimalsB uint8) float64 {
	if sqrtPriceX64 == nil || sqrtPriceX64.Sign() == 0 {
		return 0
	}
	f := new(big.Float).SetPrec(floatPrec).SetInt(sqrtPriceX64)
	f.Quo(f, q64Float)
	f.Mul(f, f)
	price, _ := f.Float64()
	return price * math.Pow10(int(decimalsA)-int(decimalsB))
}

// PriceFromTick returns 1.0001^tick in human units.
func PriceFromTick(tick int32, decimalsA, decimalsB uint8) float64 {
	return math.Pow(1.0001, float64(tick)) * math.Pow10(int(decimalsA)-int(decimalsB))
}

// wrap128 reduces x modulo 2^128 into [0, 2^128).
func wrap128(x *big.Int) *big.Int {
	x.Mod(x, q128)
	return x
}
