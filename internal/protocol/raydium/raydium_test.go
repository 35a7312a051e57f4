package raydium

import (
	"encoding/base64"
	"encoding/binary"
	"math/big"
	"strconv"
	"testing"
	"time"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-lp-sync/internal/domain"
	"solana-lp-sync/internal/idl"
	"solana-lp-sync/internal/protocol"
)

const (
	testPool = "Czfq3xZZDmsdGdUyrNLtRhGc47cXcZtLG4crryfu44zE"
	solMint  = "So11111111111111111111111111111111111111112"
	usdcMint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	rayMint  = "4k3Dyjzvzp8eMZWUXbBCjEvwSkkk59S5iCNLY3QrkX6R"
)

var le = binary.LittleEndian

func i32(v int32) uint32 { return uint32(v) }

func putU128(b []byte, lo, hi uint64) {
	le.PutUint64(b, lo)
	le.PutUint64(b[8:], hi)
}

func putKey(b []byte, key string) {
	copy(b, solanago.MustPublicKeyFromBase58(key).Bytes())
}

const rewardsOffset = 397

func poolBytes() []byte {
	b := make([]byte, PoolStateSize)
	copy(b, poolDiscriminator[:])
	putKey(b[73:], solMint)         // token_mint_0
	putKey(b[105:], usdcMint)       // token_mint_1
	b[233] = 9                      // mint_decimals_0
	b[234] = 6                      // mint_decimals_1
	le.PutUint16(b[235:], 10)       // tick_spacing
	putU128(b[237:], 1<<40, 0)      // liquidity
	putU128(b[253:], 0, 1)          // sqrt_price_x64 = 2^64
	le.PutUint32(b[269:], i32(-25)) // tick_current
	putU128(b[277:], 5, 0)          // fee_growth_global_0_x64
	putU128(b[293:], 6, 0)          // fee_growth_global_1_x64

	// Slot 0 is open from 1000 to 2000 and last updated at 1500.
	r := b[rewardsOffset:]
	r[0] = 1
	le.PutUint64(r[1:], 1000)
	le.PutUint64(r[9:], 2000)
	le.PutUint64(r[17:], 1500)
	putU128(r[25:], 0, 1)
	putKey(r[57:], rayMint)
	putU128(r[153:], 100, 0)

	// Slot 1 has not opened yet.
	r = b[rewardsOffset+169:]
	r[0] = 1
	le.PutUint64(r[1:], 5000)
	le.PutUint64(r[9:], 9000)
	le.PutUint64(r[17:], 5000)
	putU128(r[25:], 0, 1)
	putKey(r[57:], usdcMint)
	putU128(r[153:], 7, 0)
	return b
}

func TestDecodePoolState(t *testing.T) {
	ps, err := DecodePoolState(poolBytes())
	require.NoError(t, err)

	assert.Equal(t, solMint, ps.TokenMint0.String())
	assert.Equal(t, usdcMint, ps.TokenMint1.String())
	assert.Equal(t, uint8(9), ps.MintDecimals0)
	assert.Equal(t, uint8(6), ps.MintDecimals1)
	assert.Equal(t, uint16(10), ps.TickSpacing)
	assert.Equal(t, int32(-25), ps.TickCurrent)
	assert.Equal(t, uint64(1), ps.SqrtPriceX64.Hi)
	assert.Equal(t, uint64(6), ps.FeeGrowthGlobal1X64.Lo)
	assert.Equal(t, rayMint, ps.RewardInfos[0].TokenMint.String())
	assert.Equal(t, uint64(2000), ps.RewardInfos[0].EndTime)
	assert.False(t, ps.RewardInfos[2].Initialized())
}

func TestDecodeAccount_Errors(t *testing.T) {
	_, err := DecodePoolState(make([]byte, 100))
	assert.Error(t, err)

	_, err = DecodePersonalPosition(poolBytes())
	assert.ErrorIs(t, err, ErrWrongAccount)
}

func TestRollForwardRewards(t *testing.T) {
	ps, err := DecodePoolState(poolBytes())
	require.NoError(t, err)

	tests := []struct {
		name  string
		now   int64
		slot0 *big.Int
	}{
		// Capped at end_time: 500s * 2^64 / 2^40.
		{"past end", 3000, new(big.Int).Add(new(big.Int).Lsh(big.NewInt(500), 24), big.NewInt(100))},
		{"mid emission", 1600, new(big.Int).Add(new(big.Int).Lsh(big.NewInt(100), 24), big.NewInt(100))},
		{"before last update", 1400, big.NewInt(100)},
		{"before open", 500, big.NewInt(100)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			growth := RollForwardRewards(ps, time.Unix(tt.now, 0))
			assert.Equal(t, tt.slot0.String(), growth[0].String())
			assert.Equal(t, "7", growth[1].String(), "slot 1 not open")
			assert.Equal(t, "0", growth[2].String())
		})
	}
}

func TestRollForwardRewards_NoLiquidity(t *testing.T) {
	b := poolBytes()
	putU128(b[237:], 0, 0)
	ps, err := DecodePoolState(b)
	require.NoError(t, err)

	growth := RollForwardRewards(ps, time.Unix(3000, 0))
	assert.Equal(t, "100", growth[0].String())
}

func TestProtocol_DecodePool(t *testing.T) {
	p := NewProtocol(nil)
	pool, err := p.DecodePool(testPool, poolBytes(), time.Unix(1600, 0))
	require.NoError(t, err)

	assert.Equal(t, testPool, pool.Address)
	assert.Equal(t, solMint, pool.MintA)
	assert.Equal(t, usdcMint, pool.MintB)
	assert.Equal(t, "1099511627776", pool.Liquidity.String())
	assert.Equal(t, "5", pool.FeeGrowthGlobalA.String())
	assert.Equal(t, []string{rayMint, usdcMint}, pool.RewardMints())

	extra := p.Extra(pool, 150.25)
	ray, ok := extra.(domain.RaydiumExtra)
	require.True(t, ok)
	assert.Equal(t, domain.DexRaydium, ray.Protocol())
	assert.Equal(t, int32(-25), ray.TickCurrent)
	assert.Equal(t, "18446744073709551616", ray.SqrtPriceX64)
}

func TestProtocol_DecodePosition(t *testing.T) {
	b := make([]byte, PersonalPositionSize)
	copy(b, positionDiscriminator[:])
	putKey(b[9:], solMint)
	putKey(b[41:], testPool)
	le.PutUint32(b[73:], i32(-100))
	le.PutUint32(b[77:], 100)
	putU128(b[81:], 1_000_000_000_000, 0)
	putU128(b[97:], 31, 0)
	putU128(b[113:], 32, 0)
	le.PutUint64(b[129:], 41)
	le.PutUint64(b[137:], 42)
	putU128(b[145+24:], 51, 0)
	le.PutUint64(b[145+24+16:], 52)

	p := NewProtocol(nil)
	pos, err := p.DecodePosition("personal", b)
	require.NoError(t, err)

	assert.Equal(t, "personal", pos.Address)
	assert.Equal(t, solMint, pos.NFTMint)
	assert.Equal(t, testPool, pos.Pool)
	assert.Equal(t, int32(-100), pos.TickLower)
	assert.Equal(t, int32(100), pos.TickUpper)
	assert.Equal(t, "1000000000000", pos.Liquidity.String())
	assert.Equal(t, "31", pos.FeeGrowthCheckpointA.String())
	assert.Equal(t, "32", pos.FeeGrowthCheckpointB.String())
	assert.Equal(t, uint64(41), pos.FeeOwedA)
	assert.Equal(t, uint64(42), pos.FeeOwedB)
	require.Len(t, pos.Rewards, NumRewards)
	assert.Equal(t, "51", pos.Rewards[1].GrowthInsideCheckpoint.String())
	assert.Equal(t, uint64(52), pos.Rewards[1].AmountOwed)
}

func TestProtocol_DecodeTick(t *testing.T) {
	b := make([]byte, TickArrayStateSize)
	copy(b, tickArrayDiscriminator[:])
	putKey(b[8:], testPool)
	le.PutUint32(b[40:], i32(-600))

	tick := b[44+3*168:]
	le.PutUint32(tick, i32(-570))
	putU128(tick[20:], 1, 0) // liquidity_gross
	putU128(tick[36:], 61, 0)
	putU128(tick[52:], 62, 0)
	putU128(tick[68+32:], 63, 0)

	p := NewProtocol(nil)
	got, err := p.DecodeTick(b, -570, 10)
	require.NoError(t, err)
	assert.True(t, got.Initialized)
	assert.Equal(t, "61", got.FeeGrowthOutsideA.String())
	assert.Equal(t, "62", got.FeeGrowthOutsideB.String())
	assert.Equal(t, "63", got.RewardGrowthsOutside[2].String())

	empty, err := p.DecodeTick(b, -600, 10)
	require.NoError(t, err)
	assert.False(t, empty.Initialized)

	_, err = p.DecodeTick(b, 0, 10)
	assert.Error(t, err)
}

func TestTickArrayStartIndex(t *testing.T) {
	tests := []struct {
		tick    int32
		spacing uint16
		want    int32
	}{
		{0, 10, 0},
		{599, 10, 0},
		{600, 10, 600},
		{-1, 10, -600},
		{-600, 10, -600},
		{-601, 10, -1200},
		{-25, 1, -60},
	}
	for _, tt := range tests {
		t.Run(strconv.Itoa(int(tt.tick)), func(t *testing.T) {
			assert.Equal(t, tt.want, TickArrayStartIndex(tt.tick, tt.spacing))
		})
	}
}

func TestAddresses(t *testing.T) {
	program := solanago.MustPublicKeyFromBase58(ProgramID)
	pool := solanago.MustPublicKeyFromBase58(testPool)

	p := NewProtocol(nil)
	got, err := p.TickArrayAddress(testPool, 10, -1)
	require.NoError(t, err)
	want, _, err := solanago.FindProgramAddress([][]byte{[]byte("tick_array"), pool.Bytes(), binary.BigEndian.AppendUint32(nil, i32(-600))}, program)
	require.NoError(t, err)
	assert.Equal(t, want.String(), got)

	got, err = p.PositionAddress(solMint)
	require.NoError(t, err)
	want, _, err = solanago.FindProgramAddress([][]byte{[]byte("position"), solanago.MustPublicKeyFromBase58(solMint).Bytes()}, program)
	require.NoError(t, err)
	assert.Equal(t, want.String(), got)
}

func TestAdapter_DecodesSwapAndEventLog(t *testing.T) {
	a := NewAdapter(nil)

	event, err := IDL.EncodeEvent("DecreaseLiquidityEvent", idl.Record{
		"position_nft_mint": solMint,
		"liquidity":         big.NewInt(5000),
		"decrease_amount_0": uint64(10),
		"decrease_amount_1": uint64(20),
		"fee_amount_0":      uint64(1),
		"fee_amount_1":      uint64(2),
		"reward_amounts":    []any{uint64(3), uint64(0), uint64(0)},
		"transfer_fee_0":    uint64(0),
		"transfer_fee_1":    uint64(0),
	})
	require.NoError(t, err)

	events, ok := a.DecodeLogs([]string{
		"Program " + ProgramID + " invoke [1]",
		"Program log: Instruction: DecreaseLiquidityV2",
		"Program data: " + base64.StdEncoding.EncodeToString(event),
		"Program " + ProgramID + " success",
	})
	require.True(t, ok)
	require.Len(t, events, 1)
	assert.Equal(t, "DecreaseLiquidityEvent", events[0].Name)
	fee, err := events[0].Fields.Uint64("fee_amount_1")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), fee)

	swap, err := IDL.EncodeInstruction("swap_v2", idl.Record{
		"amount":                 uint64(1_000_000),
		"other_amount_threshold": uint64(990_000),
		"sqrt_price_limit_x64":   big.NewInt(0),
		"is_base_input":          true,
	})
	require.NoError(t, err)
	disc := idl.InstructionDiscriminator("swap_v2")
	assert.Equal(t, disc[:], swap[:8])

	ix, args, err := IDL.DecodeInstruction(swap)
	require.NoError(t, err)
	assert.Equal(t, "swap_v2", ix.Name)
	assert.Equal(t, 2, ix.AccountIndex("pool_state"))
	isBase, err := args.Bool("is_base_input")
	require.NoError(t, err)
	assert.True(t, isBase)
}

func TestDescriptor_NoEventInstructions(t *testing.T) {
	a := NewAdapter(nil)
	assert.False(t, a.Has(protocol.CapEventInstruction))
}

func TestDescriptor_LifecycleAccountsExist(t *testing.T) {
	lc := Descriptor().Lifecycle
	require.NotEmpty(t, lc.Opens)
	require.NotEmpty(t, lc.Closes)

	for _, m := range []map[string]string{lc.Opens, lc.Closes} {
		for name, account := range m {
			ix, ok := IDL.Instruction(name)
			require.True(t, ok, "instruction %s", name)
			assert.GreaterOrEqual(t, ix.AccountIndex(account), 0, "%s.%s", name, account)
		}
	}
}
