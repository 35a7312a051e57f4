package orca

import (
	"math/big"
	"time"

	ag_binary "github.com/gagliardetto/binary"

	"solana-lp-sync/internal/domain"
	"solana-lp-sync/internal/idl"
	"solana-lp-sync/internal/protocol"
	"solana-lp-sync/internal/valuation"
)

// Protocol exposes Whirlpool accounts in protocol-neutral form for the
// reconciliation engine.
type Protocol struct {
	*protocol.Adapter
}

// NewProtocol wraps a Whirlpool adapter.
func NewProtocol(adapter *protocol.Adapter) *Protocol {
	return &Protocol{Adapter: adapter}
}

func (p *Protocol) Dex() domain.Dex { return domain.DexOrca }

// PositionAddress maps a position id (its NFT mint) to the position account.
func (p *Protocol) PositionAddress(positionID string) (string, error) {
	return PositionAddress(positionID)
}

// DecodePosition decodes a position account.
func (p *Protocol) DecodePosition(address string, data []byte) (valuation.Position, error) {
	pos, err := DecodePosition(data)
	if err != nil {
		return valuation.Position{}, err
	}
	out := valuation.Position{
		Address:              address,
		NFTMint:              pos.PositionMint.String(),
		Pool:                 pos.Whirlpool.String(),
		TickLower:            pos.TickLowerIndex,
		TickUpper:            pos.TickUpperIndex,
		Liquidity:            u128(pos.Liquidity),
		FeeGrowthCheckpointA: u128(pos.FeeGrowthCheckpointA),
		FeeGrowthCheckpointB: u128(pos.FeeGrowthCheckpointB),
		FeeOwedA:             pos.FeeOwedA,
		FeeOwedB:             pos.FeeOwedB,
	}
	for _, r := range pos.RewardInfos {
		out.Rewards = append(out.Rewards, valuation.RewardCheckpoint{
			GrowthInsideCheckpoint: u128(r.GrowthInsideCheckpoint),
			AmountOwed:             r.AmountOwed,
		})
	}
	return out, nil
}

// DecodePool decodes a whirlpool with reward growth rolled forward to now.
func (p *Protocol) DecodePool(address string, data []byte, now time.Time) (valuation.Pool, error) {
	w, err := DecodeWhirlpool(data)
	if err != nil {
		return valuation.Pool{}, err
	}
	growth := RollForwardRewards(w, now)

	out := valuation.Pool{
		Address:          address,
		MintA:            w.TokenMintA.String(),
		MintB:            w.TokenMintB.String(),
		TickSpacing:      w.TickSpacing,
		TickCurrent:      w.TickCurrentIndex,
		SqrtPriceX64:     u128(w.SqrtPrice),
		Liquidity:        u128(w.Liquidity),
		FeeGrowthGlobalA: u128(w.FeeGrowthGlobalA),
		FeeGrowthGlobalB: u128(w.FeeGrowthGlobalB),
	}
	for i, r := range w.RewardInfos {
		reward := valuation.Reward{GrowthGlobalX64: growth[i]}
		if r.Initialized() {
			reward.Mint = r.Mint.String()
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
	arr, err := DecodeTickArray(data)
	if err != nil {
		return valuation.Tick{}, err
	}
	t, err := arr.Tick(tick, tickSpacing)
	if err != nil {
		return valuation.Tick{}, err
	}
	out := valuation.Tick{
		Index:             tick,
		Initialized:       t.Initialized,
		FeeGrowthOutsideA: u128(t.FeeGrowthOutsideA),
		FeeGrowthOutsideB: u128(t.FeeGrowthOutsideB),
	}
	for _, g := range t.RewardGrowthsOutside {
		out.RewardGrowthsOutside = append(out.RewardGrowthsOutside, u128(g))
	}
	return out, nil
}

// Extra is the cached pool snapshot stored in pool config.
func (p *Protocol) Extra(pool valuation.Pool, price float64) domain.Extra {
	return domain.OrcaExtra{
		Price:            price,
		TickCurrentIndex: pool.TickCurrent,
		SqrtPrice:        pool.SqrtPriceX64.String(),
		Liquidity:        pool.Liquidity.String(),
	}
}

// RollForwardRewards returns each slot's growth accumulator advanced from the
// last update to now. Slots stay unchanged when the pool has no liquidity.
func RollForwardRewards(w *Whirlpool, now time.Time) [NumRewards]*big.Int {
	var out [NumRewards]*big.Int
	elapsed := now.Unix() - int64(w.RewardLastUpdatedTimestamp)
	liquidity := u128(w.Liquidity)
	for i, r := range w.RewardInfos {
		growth := u128(r.GrowthGlobalX64)
		if r.Initialized() {
			growth = valuation.RollForwardGrowth(growth, u128(r.EmissionsPerSecondX64), liquidity, elapsed)
		}
		out[i] = growth
	}
	return out
}

func u128(v ag_binary.Uint128) *big.Int {
	return idl.U128FromWords(v.Lo, v.Hi)
}
