package solana

import "context"

// RPCClient defines the Solana RPC HTTP interface.
type RPCClient interface {
	// GetTransaction retrieves a transaction by signature. Returns nil if not found.
	GetTransaction(ctx context.Context, signature string) (*Transaction, error)

	// GetBlock retrieves a block by slot number.
	GetBlock(ctx context.Context, slot int64) (*Block, error)

	// GetSignaturesForAddress retrieves signatures for an address with pagination.
	GetSignaturesForAddress(ctx context.Context, address string, opts *SignaturesOpts) ([]SignatureInfo, error)

	AccountsGetter
}

// AccountsGetter fetches raw account data in one round-trip.
type AccountsGetter interface {
	// GetMultipleAccounts returns one entry per key, in key order.
	// Missing accounts are returned as nil entries.
	GetMultipleAccounts(ctx context.Context, keys []string) ([]*AccountInfo, error)
}

// Transaction represents a Solana transaction.
type Transaction struct {
	Slot      int64
	Signature string
	BlockTime *int64 // Unix timestamp (seconds), nil when the node has none
	Meta      *TransactionMeta
	Message   *TransactionMessage
}

// TransactionMeta contains transaction execution metadata.
type TransactionMeta struct {
	Err               interface{}
	LogMessages       []string
	InnerInstructions []InnerInstructionGroup
}

// TransactionMessage contains the parsed transaction message.
type TransactionMessage struct {
	AccountKeys  []string
	Instructions []Instruction
}

// InnerInstructionGroup holds the CPIs issued by one top-level instruction.
type InnerInstructionGroup struct {
	Index        int
	Instructions []Instruction
}

// Instruction is a partially decoded instruction: program id, resolved
// account addresses and opaque payload.
type Instruction struct {
	ProgramID string
	Accounts  []string
	Data      []byte
}

// AccountInfo represents Solana account information.
type AccountInfo struct {
	Lamports   uint64
	Owner      string
	Data       []byte
	Encoding   string
	Executable bool
	RentEpoch  uint64
}
