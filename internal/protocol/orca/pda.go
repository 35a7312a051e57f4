package orca

import (
	"strconv"

	"solana-lp-sync/internal/solana"
)

// PositionAddress derives the position PDA from its NFT mint.
func PositionAddress(positionMint string) (string, error) {
	mint, err := solana.PublicKeyBytes(positionMint)
	if err != nil {
		return "", err
	}
	addr, _, err := solana.FindProgramAddress([][]byte{[]byte("position"), mint}, ProgramID)
	return addr, err
}

// TickArrayStartIndex returns the first tick of the array containing tick.
func TickArrayStartIndex(tick int32, tickSpacing uint16) int32 {
	ticksInArray := int32(tickSpacing) * TickArraySize
	start := tick / ticksInArray
	if tick < 0 && tick%ticksInArray != 0 {
		start--
	}
	return start * ticksInArray
}

// TickArrayAddress derives the tick array PDA; the start index seed is its
// decimal string.
func TickArrayAddress(whirlpool string, startTickIndex int32) (string, error) {
	pool, err := solana.PublicKeyBytes(whirlpool)
	if err != nil {
		return "", err
	}
	seed := []byte(strconv.FormatInt(int64(startTickIndex), 10))
	addr, _, err := solana.FindProgramAddress([][]byte{[]byte("tick_array"), pool, seed}, ProgramID)
	return addr, err
}
