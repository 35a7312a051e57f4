package protocol

import "solana-lp-sync/internal/domain"

// Lifecycle maps instruction names that open or close a position to the
// account holding the position NFT mint.
type Lifecycle struct {
	Opens  map[string]string
	Closes map[string]string
}

// Classify returns the position id touched by rec and the status it moves
// to. ok is false for instructions outside the lifecycle or records that
// failed to decode.
func (l Lifecycle) Classify(rec InstructionRecord) (positionID string, status domain.PositionStatus, ok bool) {
	if rec.Parsed == nil {
		return "", "", false
	}
	if account, found := l.Opens[rec.Name]; found {
		positionID, status = rec.Account(account), domain.PositionStatusOpen
	} else if account, found := l.Closes[rec.Name]; found {
		positionID, status = rec.Account(account), domain.PositionStatusClosed
	}
	return positionID, status, positionID != ""
}
