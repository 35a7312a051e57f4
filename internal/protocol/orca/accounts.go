package orca

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
	TickArraySize = 88
	// NumRewards is the number of reward slots per pool.
	NumRewards = 3

	WhirlpoolSize = 653
	PositionSize  = 216
	TickArrayLen  = 9988
)

var (
	whirlpoolDiscriminator = idl.AccountDiscriminator("Whirlpool")
	positionDiscriminator  = idl.AccountDiscriminator("Position")
	tickArrayDiscriminator = idl.AccountDiscriminator("TickArray")

	// ErrWrongAccount is returned when the account discriminator does not match.
	ErrWrongAccount = errors.New("unexpected account discriminator")
)

// Whirlpool is the pool account.
type Whirlpool struct {
	Discriminator              [8]byte
	WhirlpoolsConfig           solanago.PublicKey
	WhirlpoolBump              [1]uint8
	TickSpacing                uint16
	FeeTierIndexSeed           [2]uint8
	FeeRate                    uint16
	ProtocolFeeRate            uint16
	Liquidity                  ag_binary.Uint128
	SqrtPrice                  ag_binary.Uint128
	TickCurrentIndex           int32
	ProtocolFeeOwedA           uint64
	ProtocolFeeOwedB           uint64
	TokenMintA                 solanago.PublicKey
	TokenVaultA                solanago.PublicKey
	FeeGrowthGlobalA           ag_binary.Uint128
	TokenMintB                 solanago.PublicKey
	TokenVaultB                solanago.PublicKey
	FeeGrowthGlobalB           ag_binary.Uint128
	RewardLastUpdatedTimestamp uint64
	RewardInfos                [NumRewards]WhirlpoolRewardInfo
}

// WhirlpoolRewardInfo is one pool reward slot.
type WhirlpoolRewardInfo struct {
	Mint                  solanago.PublicKey
	Vault                 solanago.PublicKey
	Authority             solanago.PublicKey
	EmissionsPerSecondX64 ag_binary.Uint128
	GrowthGlobalX64       ag_binary.Uint128
}

// Initialized reports whether the reward slot is in use.
func (r WhirlpoolRewardInfo) Initialized() bool {
	return !r.Mint.IsZero()
}

// Position is the position account.
type Position struct {
	Discriminator        [8]byte
	Whirlpool            solanago.PublicKey
	PositionMint         solanago.PublicKey
	Liquidity            ag_binary.Uint128
	TickLowerIndex       int32
	TickUpperIndex       int32
	FeeGrowthCheckpointA ag_binary.Uint128
	FeeOwedA             uint64
	FeeGrowthCheckpointB ag_binary.Uint128
	FeeOwedB             uint64
	RewardInfos          [NumRewards]PositionRewardInfo
}

// PositionRewardInfo is a position's reward accounting.
type PositionRewardInfo struct {
	GrowthInsideCheckpoint ag_binary.Uint128
	AmountOwed             uint64
}

// Tick is one tick in a tick array.
type Tick struct {
	Initialized          bool
	LiquidityNet         ag_binary.Int128
	LiquidityGross       ag_binary.Uint128
	FeeGrowthOutsideA    ag_binary.Uint128
	FeeGrowthOutsideB    ag_binary.Uint128
	RewardGrowthsOutside [NumRewards]ag_binary.Uint128
}

// TickArray is a fixed tick array account.
type TickArray struct {
	Discriminator  [8]byte
	StartTickIndex int32
	Ticks          [TickArraySize]Tick
	Whirlpool      solanago.PublicKey
}

// DecodeWhirlpool decodes a pool account.
func DecodeWhirlpool(data []byte) (*Whirlpool, error) {
	var w Whirlpool
	if err := decodeAccount(data, whirlpoolDiscriminator, WhirlpoolSize, &w); err != nil {
		return nil, fmt.Errorf("decode whirlpool: %w", err)
	}
	return &w, nil
}

// DecodePosition decodes a position account.
func DecodePosition(data []byte) (*Position, error) {
	var p Position
	if err := decodeAccount(data, positionDiscriminator, PositionSize, &p); err != nil {
		return nil, fmt.Errorf("decode position: %w", err)
	}
	return &p, nil
}

// DecodeTickArray decodes a fixed tick array account.
func DecodeTickArray(data []byte) (*TickArray, error) {
	var t TickArray
	if err := decodeAccount(data, tickArrayDiscriminator, TickArrayLen, &t); err != nil {
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
func (t *TickArray) Tick(index int32, tickSpacing uint16) (*Tick, error) {
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
