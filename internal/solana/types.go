package solana

import "time"

// SignatureInfo is one entry of getSignaturesForAddress.
type SignatureInfo struct {
	Signature string
	Slot      int64
	BlockTime *int64
	Err       interface{}
}

// Failed reports whether the transaction errored on chain.
func (s SignatureInfo) Failed() bool {
	return s.Err != nil
}

// Time returns the block time, if the node reported one.
func (s SignatureInfo) Time() (time.Time, bool) {
	if s.BlockTime == nil {
		return time.Time{}, false
	}
	return time.Unix(*s.BlockTime, 0).UTC(), true
}

// SignaturesOpts pages getSignaturesForAddress backwards in time.
type SignaturesOpts struct {
	Before string
	Until  string
	Limit  int
}

// Block is a confirmed block with its transactions.
type Block struct {
	Slot         int64
	BlockTime    *int64
	Transactions []Transaction
}

// Well-known program and sysvar addresses.
const (
	SystemProgramID    = "11111111111111111111111111111111"
	TokenProgramID     = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"
	Token2022ProgramID = "TokenzQdBNbLqP5VEhdkAS6EPFLC1PHnBqCXEpPxuEb"
)

// Commitment levels accepted by the RPC and websocket methods.
const (
	CommitmentConfirmed = "confirmed"
	CommitmentFinalized = "finalized"
)
