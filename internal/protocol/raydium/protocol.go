package raydium

import (
	"math/big"
	"time"

	ag_binary "github.com/gagliardetto/binary"

	"solana-lp-sync/internal/domain"
	"solana-lp-sync/internal/idl"
	"solana-lp-sync/internal/protocol"
	"solana-lp-sync/internal/valuation"
)

// Protocol exposes CLMM accounts in protocol-neutral form for the
// reconciliation engine.
type Protocol struct {
	*protocol.Adapter
}

// NewProtocol wraps a CLMM adapter.
func NewProtocol(adapter *protocol.Adapter) *Protocol {
	return &Protocol{Adapter: adapter}
}

func (p *Protocol) Dex() domain.Dex { return domain.DexRaydium }

// PositionAddress maps a position id (its NFT mint) to the personal position.
func (p *Protocol) PositionAddress(positionID string) (string, error) {
	return PositionAddress(positionID)
}

// DecodePosition decodes a personal position account.
func (p *Protocol) DecodePosition(address string, data []byte) (valuation.Position, error) {
	pos, err := DecodePersonalPosition(data)
	if err != nil {
		return valuation.Position{}, err
	}
	out := valuation.Position{
		Address:              address,
		NFTMint:              pos.NftMint.String(),
		Pool:                 pos.PoolID.String(),
		TickLower:            pos.TickLowerIndex,
		TickUpper:            pos.TickUpperIndex,
		Liquidity:            u128(pos.Liquidity),
		FeeGrowthCheckpointA: u128(pos.FeeGrowthInside0LastX64),
		FeeGrowthCheckpointB: u128(pos.FeeGrowthInside1LastX64),
		FeeOwedA:             pos.TokenFeesOwed0,
		FeeOwedB:             pos.TokenFeesOwed1,
	}
	for _, r := range pos.RewardInfos {
		out.Rewards = append(out.Rewards, valuation.RewardCheckpoint{
			GrowthInsideCheckpoint: u128(r.GrowthInsideLastX64),
			AmountOwed:             r.RewardAmountOwed,
		})
	}
	return out, nil
}

// DecodePool decodes a pool with reward growth rolled forward to now.
func (p *Protocol) DecodePool(address string, data []byte, now time.Time) (valuation.Pool, error) {
	ps, err := DecodePoolState(data)
	if err != nil {
		return valuation.Pool{}, err
	}
	growth := RollForwardRewards(ps, now)

	out := valuation.Pool{
		Address:          address,
		MintA:            ps.TokenMint0.String(),
		MintB:            ps.TokenMint1.String(),
		TickSpacing:      ps.TickSpacing,
		TickCurrent:      ps.TickCurrent,
		SqrtPriceX64:     u128(ps.SqrtPriceX64),
		Liquidity:        u128(ps.Liquidity),
		FeeGrowthGlobalA: u128(ps.FeeGrowthGlobal0X64),
		FeeGrowthGlobalB: u128(ps.FeeGrowthGlobal1X64),
	}
	for i, r := range ps.RewardInfos {
		reward := valuation.Reward{GrowthGlobalX64: growth[i]}
		if r.Initialized() {
			reward.Mint = r.TokenMint.String()
		}
		out.Rewards = append(out.Rewards, reward)
	}
	return out, nil
}

// TickArrayAddress derives the array holding tick.
func (p *Protocol) TickArrayAddress(pool string, tickSpacing uint16, tick int32) (string, error) {
	return TickArrayAddress(pool, TickArrayStartIndex(tick, tickSpacing))
}

// DecodeTick decodes the array and returns the state of one tick.
func (p *Protocol) DecodeTick(data []byte, tick int32, tickSpacing uint16) (valuation.Tick, error) {
	arr, err := DecodeTickArrayState(data)
	if err != nil {
		return valuation.Tick{}, err
	}
	t, err := arr.Tick(tick, tickSpacing)
	if err != nil {
		return valuation.Tick{}, err
	}
	out := valuation.Tick{
		Index:             tick,
		Initialized:       t.Initialized(),
		FeeGrowthOutsideA: u128(t.FeeGrowthOutside0X64),
		FeeGrowthOutsideB: u128(t.FeeGrowthOutside1X64),
	}
	for _, g := range t.RewardGrowthsOutsideX64 {
		out.RewardGrowthsOutside = append(out.RewardGrowthsOutside, u128(g))
	}
	return out, nil
}

// Extra is the cached pool snapshot stored in pool config.
func (p *Protocol) Extra(pool valuation.Pool, price float64) domain.Extra {
	return domain.RaydiumExtra{
		Price:        price,
		TickCurrent:  pool.TickCurrent,
		SqrtPriceX64: pool.SqrtPriceX64.String(),
		Liquidity:    pool.Liquidity.String(),
	}
}

// RollForwardRewards returns each slot's growth accumulator advanced to now.
// A slot accrues only between its open and end times, and not at all while
// the pool has no liquidity.
func RollForwardRewards(ps *PoolState, now time.Time) [NumRewards]*big.Int {
	var out [NumRewards]*big.Int
	ts := uint64(max(now.Unix(), 0))
	liquidity := u128(ps.Liquidity)
	for i, r := range ps.RewardInfos {
		growth := u128(r.RewardGrowthGlobalX64)
		if r.Initialized() && ts > r.OpenTime {
			latest := min(ts, r.EndTime)
			if latest > r.LastUpdateTime {
				elapsed := int64(latest - r.LastUpdateTime)
				growth = valuation.RollForwardGrowth(growth, u128(r.EmissionsPerSecondX64), liquidity, elapsed)
			}
		}
		out[i] = growth
	}
	return out
}

func u128(v ag_binary.Uint128) *big.Int {
	return idl.U128FromWords(v.Lo, v.Hi)
}
