// Package orca decodes Orca Whirlpool instructions, events and accounts.
package orca

import (
	_ "embed"

	"solana-lp-sync/internal/idl"
	"solana-lp-sync/internal/protocol"
	"solana-lp-sync/internal/solana"
)

// ProgramID is the Whirlpool program address.
const ProgramID = "whirLbMiicVdio4qvUfM5KAg6Ct8VwpYzGff3uctyCc"

// Name identifies the protocol in logs, metrics and stored events.
const Name = "orca"

//go:embed whirlpool.json
var idlJSON []byte

// IDL is the embedded Whirlpool interface subset.
var IDL = idl.MustParse(idlJSON)

// Descriptor returns the Whirlpool descriptor with every decode capability.
func Descriptor() protocol.Descriptor {
	return protocol.Descriptor{
		Name:         Name,
		ProgramID:    ProgramID,
		IDL:          IDL,
		Capabilities: protocol.CapInstruction | protocol.CapEventInstruction | protocol.CapEventLog,
		Lifecycle: protocol.Lifecycle{
			Opens: map[string]string{
				"openPosition":                    "positionMint",
				"openPositionWithMetadata":        "positionMint",
				"openPositionWithTokenExtensions": "positionMint",
			},
			Closes: map[string]string{
				"closePosition":                    "positionMint",
				"closePositionWithTokenExtensions": "positionMint",
			},
		},
	}
}

// NewAdapter binds the Whirlpool descriptor to an RPC connection.
func NewAdapter(rpc solana.AccountsGetter, opts ...protocol.AdapterOption) *protocol.Adapter {
	return protocol.NewAdapter(rpc, Descriptor(), opts...)
}
