package raydium

import (
	"encoding/binary"

	"solana-lp-sync/internal/solana"
)

// PositionAddress derives the personal position PDA from its NFT mint.
func PositionAddress(nftMint string) (string, error) {
	mint, err := solana.PublicKeyBytes(nftMint)
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

// TickArrayAddress derives the tick array PDA; the start index seed is a
// big-endian i32.
func TickArrayAddress(pool string, startTickIndex int32) (string, error) {
	poolKey, err := solana.PublicKeyBytes(pool)
	if err != nil {
		return "", err
	}
	seed := binary.BigEndian.AppendUint32(nil, uint32(startTickIndex))
	addr, _, err := solana.FindProgramAddress([][]byte{[]byte("tick_array"), poolKey, seed}, ProgramID)
	return addr, err
}
