package valuation

import (
	"fmt"
	"math/big"

	"solana-lp-sync/internal/domain"
)

// Pool is protocol-neutral pool state. Reward growth is already rolled
// forward to the sync time.
type Pool struct {
	Address          string
	MintA            string
	MintB            string
	TickSpacing      uint16
	TickCurrent      int32
	SqrtPriceX64     *big.Int
	Liquidity        *big.Int
	FeeGrowthGlobalA *big.Int
	FeeGrowthGlobalB *big.Int
	Rewards          []Reward
}

// Reward is one pool reward slot. Mint is empty for unused slots.
type Reward struct {
	Mint            string
	GrowthGlobalX64 *big.Int
}

// RewardMints returns the mints of used reward slots.
func (p Pool) RewardMints() []string {
	var out []string
	for _, r := range p.Rewards {
		if r.Mint != "" {
			out = append(out, r.Mint)
		}
	}
	return out
}

// Tick is the boundary tick state needed for growth-inside math.
type Tick struct {
	Index                int32
	Initialized          bool
	FeeGrowthOutsideA    *big.Int
	FeeGrowthOutsideB    *big.Int
	RewardGrowthsOutside []*big.Int
}

// Position is protocol-neutral position state.
type Position struct {
	Address              string
	NFTMint              string
	Pool                 string
	TickLower            int32
	TickUpper            int32
	Liquidity            *big.Int
	FeeGrowthCheckpointA *big.Int
	FeeGrowthCheckpointB *big.Int
	FeeOwedA             uint64
	FeeOwedB             uint64
	Rewards              []RewardCheckpoint
}

// RewardCheckpoint is a position's per-reward accounting.
type RewardCheckpoint struct {
	GrowthInsideCheckpoint *big.Int
	AmountOwed             uint64
}

// RewardOwed is the accrued amount of one reward mint, raw units.
type RewardOwed struct {
	Mint   string
	Amount *big.Int
}

// Snapshot is the computed state of one position, raw token units.
type Snapshot struct {
	PriceRange  domain.PriceRange
	Active      bool
	Price       float64
	TickCurrent int32
	AmountA     *big.Int
	AmountB     *big.Int
	FeeOwedA    *big.Int
	FeeOwedB    *big.Int
	Rewards     []RewardOwed
	Liquidity   *big.Int
}

// Compute derives price range, active flag, token amounts and accrued fees
// and rewards for a position. Zero liquidity yields zero amounts, not an error.
func Compute(pos Position, pool Pool, lower, upper Tick, decimalsA, decimalsB uint8) (Snapshot, error) {
	if pos.TickLower >= pos.TickUpper {
		return Snapshot{}, fmt.Errorf("position %s: invalid tick range [%d, %d)", pos.Address, pos.TickLower, pos.TickUpper)
	}

	sqrtLower, err := SqrtPriceX64FromTick(pos.TickLower)
	if err != nil {
		return Snapshot{}, fmt.Errorf("position %s: %w", pos.Address, err)
	}
	sqrtUpper, err := SqrtPriceX64FromTick(pos.TickUpper)
	if err != nil {
		return Snapshot{}, fmt.Errorf("position %s: %w", pos.Address, err)
	}

	liquidity := orZero(pos.Liquidity)
	current := pool.TickCurrent

	s := Snapshot{
		PriceRange: domain.PriceRange{
			PriceFromTick(pos.TickLower, decimalsA, decimalsB),
			PriceFromTick(pos.TickUpper, decimalsA, decimalsB),
		}.Ordered(),
		Active:      pos.TickLower <= current && current < pos.TickUpper,
		Price:       PriceFromSqrtX64(pool.SqrtPriceX64, decimalsA, decimalsB),
		TickCurrent: current,
		Liquidity:   new(big.Int).Set(liquidity),
	}

	s.AmountA, s.AmountB = AmountsForLiquidity(liquidity, orZero(pool.SqrtPriceX64), sqrtLower, sqrtUpper, current, pos.TickLower, pos.TickUpper)

	insideA := GrowthInside(current, pos.TickLower, pos.TickUpper, pool.FeeGrowthGlobalA, lower.FeeGrowthOutsideA, upper.FeeGrowthOutsideA)
	insideB := GrowthInside(current, pos.TickLower, pos.TickUpper, pool.FeeGrowthGlobalB, lower.FeeGrowthOutsideB, upper.FeeGrowthOutsideB)
	s.FeeOwedA = OwedDelta(liquidity, insideA, pos.FeeGrowthCheckpointA)
	s.FeeOwedA.Add(s.FeeOwedA, new(big.Int).SetUint64(pos.FeeOwedA))
	s.FeeOwedB = OwedDelta(liquidity, insideB, pos.FeeGrowthCheckpointB)
	s.FeeOwedB.Add(s.FeeOwedB, new(big.Int).SetUint64(pos.FeeOwedB))

	for i, r := range pool.Rewards {
		if r.Mint == "" {
			continue
		}
		var checkpoint RewardCheckpoint
		if i < len(pos.Rewards) {
			checkpoint = pos.Rewards[i]
		}
		inside := GrowthInside(current, pos.TickLower, pos.TickUpper, r.GrowthGlobalX64, outsideAt(lower, i), outsideAt(upper, i))
		owed := OwedDelta(liquidity, inside, checkpoint.GrowthInsideCheckpoint)
		owed.Add(owed, new(big.Int).SetUint64(checkpoint.AmountOwed))
		s.Rewards = append(s.Rewards, RewardOwed{Mint: r.Mint, Amount: owed})
	}

	return s, nil
}

func outsideAt(t Tick, i int) *big.Int {
	if i < len(t.RewardGrowthsOutside) {
		return t.RewardGrowthsOutside[i]
	}
	return nil
}
