package raydium

import (
	"bytes"
	"errors"
	"fmt"

	ag_binary "github.com/gagliardetto/binary"
	solanago "github.com/gagliardetto/solana-go"

	"solana-lp-sync/internal/idl"
)

const (
	// TickArraySize is the number of ticks in one tick array account.
	TickArraySize = 60
	// NumRewards is the number of reward slots per pool.
	NumRewards = 3

	PoolStateSize        = 1544
	PersonalPositionSize = 281
	TickArrayStateSize   = 10240
)

var (
	poolDiscriminator      = idl.AccountDiscriminator("PoolState")
	positionDiscriminator  = idl.AccountDiscriminator("PersonalPositionState")
	tickArrayDiscriminator = idl.AccountDiscriminator("TickArrayState")

	// ErrWrongAccount is returned when the account discriminator does not match.
	ErrWrongAccount = errors.New("unexpected account discriminator")
)

// PoolState is the CLMM pool account.
type PoolState struct {
	Discriminator          [8]byte
	Bump                   [1]uint8
	AmmConfig              solanago.PublicKey
	Owner                  solanago.PublicKey
	TokenMint0             solanago.PublicKey
	TokenMint1             solanago.PublicKey
	TokenVault0            solanago.PublicKey
	TokenVault1            solanago.PublicKey
	ObservationKey         solanago.PublicKey
	MintDecimals0          uint8
	MintDecimals1          uint8
	TickSpacing            uint16
	Liquidity              ag_binary.Uint128
	SqrtPriceX64           ag_binary.Uint128
	TickCurrent            int32
	Padding3               uint16
	Padding4               uint16
	FeeGrowthGlobal0X64    ag_binary.Uint128
	FeeGrowthGlobal1X64    ag_binary.Uint128
	ProtocolFeesToken0     uint64
	ProtocolFeesToken1     uint64
	SwapInAmountToken0     ag_binary.Uint128
	SwapOutAmountToken1    ag_binary.Uint128
	SwapInAmountToken1     ag_binary.Uint128
	SwapOutAmountToken0    ag_binary.Uint128
	Status                 uint8
	Padding                [7]uint8
	RewardInfos            [NumRewards]RewardInfo
	TickArrayBitmap        [16]uint64
	TotalFeesToken0        uint64
	TotalFeesClaimedToken0 uint64
	TotalFeesToken1        uint64
	TotalFeesClaimedToken1 uint64
	FundFeesToken0         uint64
	FundFeesToken1         uint64
	OpenTime               uint64
	RecentEpoch            uint64
	Padding1               [24]uint64
	Padding2               [32]uint64
}

// RewardInfo is one pool reward slot.
type RewardInfo struct {
	RewardState           uint8
	OpenTime              uint64
	EndTime               uint64
	LastUpdateTime        uint64
	EmissionsPerSecondX64 ag_binary.Uint128
	RewardTotalEmissioned uint64
	RewardClaimed         uint64
	TokenMint             solanago.PublicKey
	TokenVault            solanago.PublicKey
	Authority             solanago.PublicKey
	RewardGrowthGlobalX64 ag_binary.Uint128
}

// Initialized reports whether the reward slot has a mint.
func (r RewardInfo) Initialized() bool {
	return !r.TokenMint.IsZero()
}

// PersonalPositionState is the position account owned by an NFT holder.
type PersonalPositionState struct {
	Discriminator           [8]byte
	Bump                    [1]uint8
	NftMint                 solanago.PublicKey
	PoolID                  solanago.PublicKey
	TickLowerIndex          int32
	TickUpperIndex          int32
	Liquidity               ag_binary.Uint128
	FeeGrowthInside0LastX64 ag_binary.Uint128
	FeeGrowthInside1LastX64 ag_binary.Uint128
	TokenFeesOwed0          uint64
	TokenFeesOwed1          uint64
	RewardInfos             [NumRewards]PositionRewardInfo
	RecentEpoch             uint64
	Padding                 [7]uint64
}

// PositionRewardInfo is a position's reward accounting.
type PositionRewardInfo struct {
	GrowthInsideLastX64 ag_binary.Uint128
	RewardAmountOwed    uint64
}

// TickState is one tick in a tick array.
type TickState struct {
	Tick                    int32
	LiquidityNet            ag_binary.Int128
	LiquidityGross          ag_binary.Uint128
	FeeGrowthOutside0X64    ag_binary.Uint128
	FeeGrowthOutside1X64    ag_binary.Uint128
	RewardGrowthsOutsideX64 [NumRewards]ag_binary.Uint128
	Padding                 [13]uint32
}

// Initialized reports whether any liquidity references the tick.
func (t TickState) Initialized() bool {
	return t.LiquidityGross.Lo != 0 || t.LiquidityGross.Hi != 0
}

// TickArrayState is a fixed tick array account.
type TickArrayState struct {
	Discriminator        [8]byte
	PoolID               solanago.PublicKey
	StartTickIndex       int32
	Ticks                [TickArraySize]TickState
	InitializedTickCount uint8
	RecentEpoch          uint64
	Padding              [107]uint8
}

// DecodePoolState decodes a pool account.
func DecodePoolState(data []byte) (*PoolState, error) {
	var p PoolState
	if err := decodeAccount(data, poolDiscriminator, PoolStateSize, &p); err != nil {
		return nil, fmt.Errorf("decode pool state: %w", err)
	}
	return &p, nil
}

// DecodePersonalPosition decodes a position account.
func DecodePersonalPosition(data []byte) (*PersonalPositionState, error) {
	var p PersonalPositionState
	if err := decodeAccount(data, positionDiscriminator, PersonalPositionSize, &p); err != nil {
		return nil, fmt.Errorf("decode personal position: %w", err)
	}
	return &p, nil
}

// DecodeTickArrayState decodes a tick array account.
func DecodeTickArrayState(data []byte) (*TickArrayState, error) {
	var t TickArrayState
	if err := decodeAccount(data, tickArrayDiscriminator, TickArrayStateSize, &t); err != nil {
		return nil, fmt.Errorf("decode tick array: %w", err)
	}
	return &t, nil
}

func decodeAccount(data []byte, disc idl.Discriminator, size int, v any) error {
	if len(data) < size {
		return fmt.Errorf("account has %d bytes, want %d", len(data), size)
	}
	if !bytes.Equal(data[:idl.DiscriminatorSize], disc[:]) {
		return ErrWrongAccount
	}
	return ag_binary.NewBorshDecoder(data).Decode(v)
}

// Tick returns the tick at index, which must lie in this array and on the
// spacing grid.
func (t *TickArrayState) Tick(index int32, tickSpacing uint16) (*TickState, error) {
	if tickSpacing == 0 {
		return nil, fmt.Errorf("zero tick spacing")
	}
	if index%int32(tickSpacing) != 0 {
		return nil, fmt.Errorf("tick %d not aligned to spacing %d", index, tickSpacing)
	}
	offset := (index - t.StartTickIndex) / int32(tickSpacing)
	if index < t.StartTickIndex || offset >= TickArraySize {
		return nil, fmt.Errorf("tick %d outside array starting at %d", index, t.StartTickIndex)
	}
	return &t.Ticks[offset], nil
}
