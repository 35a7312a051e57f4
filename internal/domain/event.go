package domain

import "time"

// ProtocolEvent is a decoded instruction or event emitted by the pipeline.
// Corresponds to protocol_events table in ClickHouse.
type ProtocolEvent struct {
	// ID is stable across re-ingestion of the same transaction.
	ID         string
	Signature  string
	BlockTime  *time.Time
	Program    string // protocol name
	Kind       string // "instruction" | "event"
	Name       string
	OuterIndex int
	InnerIndex int    // -1 for top-level
	Payload    string // JSON encoded arguments
}

// Protocol event kinds.
const (
	EventKindInstruction = "instruction"
	EventKindEvent       = "event"
)
