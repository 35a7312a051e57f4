// Package raydium decodes Raydium concentrated-liquidity instructions,
// events and accounts.
package raydium

import (
	_ "embed"

	"solana-lp-sync/internal/idl"
	"solana-lp-sync/internal/protocol"
	"solana-lp-sync/internal/solana"
)

// ProgramID is the CLMM program address.
const ProgramID = "CAMMCzo5YL8w4VFF8KVHrK22GGUsp5VTaW7grrKgrWqK"

// Name identifies the protocol in logs, metrics and stored events.
const Name = "raydium"

//go:embed amm_v3.json
var idlJSON []byte

// IDL is the embedded CLMM interface subset.
var IDL = idl.MustParse(idlJSON)

// Descriptor returns the CLMM descriptor. The program emits events through
// logs only.
func Descriptor() protocol.Descriptor {
	return protocol.Descriptor{
		Name:         Name,
		ProgramID:    ProgramID,
		IDL:          IDL,
		Capabilities: protocol.CapInstruction | protocol.CapEventLog,
		Lifecycle: protocol.Lifecycle{
			Opens: map[string]string{
				"open_position":                  "position_nft_mint",
				"open_position_v2":               "position_nft_mint",
				"open_position_with_token22_nft": "position_nft_mint",
			},
			Closes: map[string]string{
				"close_position": "position_nft_mint",
			},
		},
	}
}

// NewAdapter binds the CLMM descriptor to an RPC connection.
func NewAdapter(rpc solana.AccountsGetter, opts ...protocol.AdapterOption) *protocol.Adapter {
	return protocol.NewAdapter(rpc, Descriptor(), opts...)
}
