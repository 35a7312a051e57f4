// Package protocol binds an IDL and a program id into decoders for
// instructions, event-CPI instructions and log-emitted events.
package protocol

import (
	"bytes"
	"context"
	"encoding/base64"
	"strings"

	"go.uber.org/zap"

	"solana-lp-sync/internal/decode"
	"solana-lp-sync/internal/idl"
	"solana-lp-sync/internal/observability"
	"solana-lp-sync/internal/solana"
)

// EventIxTag prefixes self-invoked event-CPI instruction data.
var EventIxTag = []byte{0xe4, 0x45, 0xa5, 0x2e, 0x51, 0xcb, 0x9a, 0x1d}

// Capability is a set of decode modes an adapter offers.
type Capability uint8

const (
	CapInstruction Capability = 1 << iota
	CapEventInstruction
	CapEventLog
)

// Descriptor identifies a program and the schema used to decode it.
type Descriptor struct {
	Name         string
	ProgramID    string
	IDL          *idl.IDL
	Capabilities Capability
	Lifecycle    Lifecycle
}

// InstructionRecord is one matched instruction. Parsed is nil when the
// payload could not be decoded.
type InstructionRecord struct {
	Program  string
	Name     string
	Parsed   idl.Record
	Accounts map[string]string
	Entry    decode.Entry
}

// Account returns the named account, or "".
func (r InstructionRecord) Account(name string) string {
	return r.Accounts[name]
}

// EventRecord is one decoded event.
type EventRecord struct {
	Program string
	Name    string
	Fields  idl.Record // nil when the payload failed to decode
	// OuterIndex and InnerIndex locate event-CPI instructions; both are -1
	// for log-emitted events.
	OuterIndex int
	InnerIndex int
}

// Adapter decodes payloads for a single program.
type Adapter struct {
	desc      Descriptor
	rpc       solana.AccountsGetter
	chunkSize int
	logger    *zap.Logger
}

// AdapterOption configures an Adapter.
type AdapterOption func(*Adapter)

// WithLogger sets the adapter logger.
func WithLogger(logger *zap.Logger) AdapterOption {
	return func(a *Adapter) {
		a.logger = logger
	}
}

// WithChunkSize sets the getMultipleAccounts chunk size.
func WithChunkSize(n int) AdapterOption {
	return func(a *Adapter) {
		a.chunkSize = n
	}
}

// NewAdapter binds desc to an RPC connection.
func NewAdapter(rpc solana.AccountsGetter, desc Descriptor, opts ...AdapterOption) *Adapter {
	a := &Adapter{
		desc:      desc,
		rpc:       rpc,
		chunkSize: solana.MaxAccountsPerRequest,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.Named(desc.Name)
	return a
}

// Descriptor returns the bound descriptor.
func (a *Adapter) Descriptor() Descriptor {
	return a.desc
}

// IsProgram reports whether id is the bound program.
func (a *Adapter) IsProgram(id string) bool {
	return id == a.desc.ProgramID
}

// Has reports whether the adapter offers c.
func (a *Adapter) Has(c Capability) bool {
	return a.desc.Capabilities&c == c
}

// FetchAccounts loads accounts in chunks, keyed by address. Missing
// accounts are absent from the map.
func (a *Adapter) FetchAccounts(ctx context.Context, keys []string) (map[string]*solana.AccountInfo, error) {
	return solana.FetchAccountMap(ctx, a.rpc, keys, a.chunkSize)
}

// DecodeInstructions decodes every entry addressed to the program.
// Event-CPI self-invocations are left to DecodeEventInstructions.
func (a *Adapter) DecodeInstructions(entries []decode.Entry) []InstructionRecord {
	var out []InstructionRecord
	for _, e := range entries {
		if !a.IsProgram(e.ProgramID) || bytes.HasPrefix(e.Data, EventIxTag) {
			continue
		}

		rec := InstructionRecord{Program: a.desc.Name, Entry: e}
		ix, args, err := a.desc.IDL.DecodeInstruction(e.Data)
		if ix != nil {
			rec.Name = ix.Name
		}
		if err != nil {
			observability.RecordDecodeFailure(a.desc.Name, "instruction")
			a.logger.Debug("instruction decode failed",
				zap.String("instruction", rec.Name),
				zap.Int("outer_index", e.OuterIndex),
				zap.Int("inner_index", e.InnerIndex),
				zap.Error(err),
			)
			out = append(out, rec)
			continue
		}

		rec.Parsed = args
		rec.Accounts = make(map[string]string, len(ix.Accounts))
		for i, acc := range ix.Accounts {
			if i < len(e.Accounts) {
				rec.Accounts[acc.Name] = e.Accounts[i]
			}
		}
		out = append(out, rec)
	}
	return out
}

// DecodeEventInstructions decodes event-CPI instructions: the 8-byte tag is
// stripped and the remainder decoded against the event schema. A tagged entry
// that fails to decode still yields a record, with nil Fields.
func (a *Adapter) DecodeEventInstructions(entries []decode.Entry) []EventRecord {
	var out []EventRecord
	for _, e := range entries {
		if !a.IsProgram(e.ProgramID) || !bytes.HasPrefix(e.Data, EventIxTag) {
			continue
		}
		rec := EventRecord{Program: a.desc.Name, OuterIndex: e.OuterIndex, InnerIndex: e.InnerIndex}
		ev, err := a.desc.IDL.DecodeEvent(e.Data[len(EventIxTag):])
		if err != nil {
			observability.RecordDecodeFailure(a.desc.Name, "event_instruction")
			a.logger.Debug("event instruction decode failed",
				zap.Int("outer_index", e.OuterIndex),
				zap.Int("inner_index", e.InnerIndex),
				zap.Error(err),
			)
			out = append(out, rec)
			continue
		}
		rec.Name = ev.Name
		rec.Fields = ev.Fields
		out = append(out, rec)
	}
	return out
}

const (
	programDataPrefix = "Program data: "
	programPrefix     = "Program "
)

// DecodeLogs decodes "Program data:" lines emitted while the program is at
// the top of the invoke stack. ok is false when no such line exists.
func (a *Adapter) DecodeLogs(logs []string) (events []EventRecord, ok bool) {
	var stack []string
	for _, line := range logs {
		if data, found := strings.CutPrefix(line, programDataPrefix); found {
			if len(stack) == 0 || stack[len(stack)-1] != a.desc.ProgramID {
				continue
			}
			ok = true
			raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(data))
			if err != nil {
				observability.RecordDecodeFailure(a.desc.Name, "log")
				continue
			}
			ev, err := a.desc.IDL.DecodeEvent(raw)
			if err != nil {
				observability.RecordDecodeFailure(a.desc.Name, "log")
				a.logger.Debug("log event decode failed", zap.Error(err))
				continue
			}
			events = append(events, EventRecord{
				Program:    a.desc.Name,
				Name:       ev.Name,
				Fields:     ev.Fields,
				OuterIndex: -1,
				InnerIndex: -1,
			})
			continue
		}

		rest, found := strings.CutPrefix(line, programPrefix)
		if !found {
			continue
		}
		fields := strings.Fields(rest)
		if len(fields) < 2 {
			continue
		}
		switch {
		case fields[1] == "invoke":
			stack = append(stack, fields[0])
		case fields[1] == "success" || strings.HasPrefix(fields[1], "failed"):
			if len(stack) > 0 && stack[len(stack)-1] == fields[0] {
				stack = stack[:len(stack)-1]
			}
		}
	}
	return events, ok
}

// Processors returns one decode.Processor per enabled capability. Event
// consumers receive both event-CPI and log-emitted events.
func (a *Adapter) Processors(ixConsumers []decode.Consumer[InstructionRecord], evConsumers []decode.Consumer[EventRecord]) []decode.Processor {
	var procs []decode.Processor
	if a.Has(CapInstruction) {
		procs = append(procs, decode.NewInstructionProcessor(a.desc.Name+".instructions", a.DecodeInstructions, ixConsumers...))
	}
	if a.Has(CapEventInstruction) {
		procs = append(procs, decode.NewInstructionProcessor(a.desc.Name+".event_instructions", a.DecodeEventInstructions, evConsumers...))
	}
	if a.Has(CapEventLog) {
		procs = append(procs, decode.NewLogProcessor(a.desc.Name+".logs", a.DecodeLogs, evConsumers...))
	}
	return procs
}
