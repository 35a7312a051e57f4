package protocol

import (
	"context"
	"encoding/base64"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-lp-sync/internal/decode"
	"solana-lp-sync/internal/idl"
	"solana-lp-sync/internal/solana"
	"solana-lp-sync/internal/solana/stub"
)

const (
	testProgram  = "whirLbMiicVdio4qvUfM5KAg6Ct8VwpYzGff3uctyCc"
	otherProgram = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"
	testPool     = "Czfq3xZZDmsdGdUyrNLtRhGc47cXcZtLG4crryfu44zE"
)

const testSchema = `{
  "name": "tester",
  "instructions": [
    {"name": "touchPool", "accounts": [{"name": "pool"}, {"name": "owner"}], "args": [{"name": "amount", "type": "u64"}]}
  ],
  "events": [
    {"name": "Touched", "fields": [{"name": "pool", "type": "publicKey"}, {"name": "amount", "type": "u64"}]}
  ]
}`

func newTestAdapter(t *testing.T, caps Capability) (*Adapter, *idl.IDL) {
	t.Helper()
	schema, err := idl.Parse([]byte(testSchema))
	require.NoError(t, err)
	return NewAdapter(stub.NewRPCClient(), Descriptor{
		Name:         "tester",
		ProgramID:    testProgram,
		IDL:          schema,
		Capabilities: caps,
	}), schema
}

func touchData(t *testing.T, schema *idl.IDL, amount uint64) []byte {
	t.Helper()
	data, err := schema.EncodeInstruction("touchPool", idl.Record{"amount": amount})
	require.NoError(t, err)
	return data
}

func touchedEvent(t *testing.T, schema *idl.IDL, amount uint64) []byte {
	t.Helper()
	data, err := schema.EncodeEvent("Touched", idl.Record{"pool": testPool, "amount": amount})
	require.NoError(t, err)
	return data
}

func TestAdapter_IsProgram(t *testing.T) {
	a, _ := newTestAdapter(t, CapInstruction)
	assert.True(t, a.IsProgram(testProgram))
	assert.False(t, a.IsProgram(otherProgram))
	assert.True(t, a.Has(CapInstruction))
	assert.False(t, a.Has(CapEventLog))
}

func TestAdapter_DecodeInstructions(t *testing.T) {
	a, schema := newTestAdapter(t, CapInstruction)

	entries := []decode.Entry{
		{ProgramID: testProgram, Accounts: []string{testPool, "owner-1"}, Data: touchData(t, schema, 42), InnerIndex: -1},
		{ProgramID: otherProgram, Data: []byte{1, 2, 3}, InnerIndex: -1},
		{ProgramID: testProgram, Data: []byte{0xde, 0xad}, OuterIndex: 1, InnerIndex: -1},
		{ProgramID: testProgram, Data: append(append([]byte{}, EventIxTag...), touchedEvent(t, schema, 1)...), InnerIndex: 0},
	}

	records := a.DecodeInstructions(entries)
	require.Len(t, records, 2)

	assert.Equal(t, "touchPool", records[0].Name)
	require.NotNil(t, records[0].Parsed)
	amount, err := records[0].Parsed.Uint64("amount")
	require.NoError(t, err)
	assert.Equal(t, uint64(42), amount)
	assert.Equal(t, testPool, records[0].Account("pool"))
	assert.Equal(t, "owner-1", records[0].Account("owner"))

	assert.Nil(t, records[1].Parsed)
	assert.Equal(t, 1, records[1].Entry.OuterIndex)
}

func TestAdapter_DecodeEventInstructions(t *testing.T) {
	a, schema := newTestAdapter(t, CapEventInstruction)

	tagged := append(append([]byte{}, EventIxTag...), touchedEvent(t, schema, 7)...)
	events := a.DecodeEventInstructions([]decode.Entry{
		{ProgramID: testProgram, Data: touchData(t, schema, 1), InnerIndex: -1},
		{ProgramID: testProgram, Data: tagged, OuterIndex: 0, InnerIndex: 2},
		{ProgramID: otherProgram, Data: tagged, InnerIndex: 3},
	})

	require.Len(t, events, 1)
	assert.Equal(t, "Touched", events[0].Name)
	assert.Equal(t, 2, events[0].InnerIndex)
	pool, err := events[0].Fields.String("pool")
	require.NoError(t, err)
	assert.Equal(t, testPool, pool)
}

func TestAdapter_DecodeEventInstructions_UndecodedKept(t *testing.T) {
	a, _ := newTestAdapter(t, CapEventInstruction)

	garbled := append(append([]byte{}, EventIxTag...), 1, 2, 3, 4, 5, 6, 7, 8, 9)
	events := a.DecodeEventInstructions([]decode.Entry{
		{ProgramID: testProgram, Data: garbled, OuterIndex: 1, InnerIndex: 4},
	})

	require.Len(t, events, 1)
	assert.Empty(t, events[0].Name)
	assert.Nil(t, events[0].Fields)
	assert.Equal(t, 1, events[0].OuterIndex)
	assert.Equal(t, 4, events[0].InnerIndex)
}

func TestAdapter_DecodeLogs(t *testing.T) {
	a, schema := newTestAdapter(t, CapEventLog)
	encoded := base64.StdEncoding.EncodeToString(touchedEvent(t, schema, 99))

	t.Run("events under program", func(t *testing.T) {
		logs := []string{
			"Program " + testProgram + " invoke [1]",
			"Program log: Instruction: TouchPool",
			"Program " + otherProgram + " invoke [2]",
			"Program data: " + encoded,
			"Program " + otherProgram + " success",
			"Program data: " + encoded,
			"Program " + testProgram + " consumed 1200 of 200000 compute units",
			"Program " + testProgram + " success",
			"Program data: " + encoded,
		}
		events, ok := a.DecodeLogs(logs)
		assert.True(t, ok)
		require.Len(t, events, 1)
		amount, err := events[0].Fields.Uint64("amount")
		require.NoError(t, err)
		assert.Equal(t, uint64(99), amount)
		assert.Equal(t, -1, events[0].OuterIndex)
	})

	t.Run("no event lines", func(t *testing.T) {
		events, ok := a.DecodeLogs([]string{
			"Program " + testProgram + " invoke [1]",
			"Program log: hello",
			"Program " + testProgram + " success",
		})
		assert.False(t, ok)
		assert.Empty(t, events)
	})

	t.Run("event line that fails to decode", func(t *testing.T) {
		events, ok := a.DecodeLogs([]string{
			"Program " + testProgram + " invoke [1]",
			"Program data: " + base64.StdEncoding.EncodeToString([]byte("not an event")),
			"Program " + testProgram + " failed: custom program error: 0x1",
		})
		assert.True(t, ok)
		assert.Empty(t, events)
	})
}

func TestAdapter_ProcessorsInPipeline(t *testing.T) {
	a, schema := newTestAdapter(t, CapInstruction|CapEventInstruction|CapEventLog)

	var mu sync.Mutex
	var instructions []InstructionRecord
	var events []EventRecord
	ixConsumer := decode.ConsumerFunc[InstructionRecord](func(_ context.Context, recs []InstructionRecord, _ decode.Meta) error {
		mu.Lock()
		defer mu.Unlock()
		instructions = append(instructions, recs...)
		return nil
	})
	evConsumer := decode.ConsumerFunc[EventRecord](func(_ context.Context, recs []EventRecord, _ decode.Meta) error {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, recs...)
		return nil
	})

	procs := a.Processors([]decode.Consumer[InstructionRecord]{ixConsumer}, []decode.Consumer[EventRecord]{evConsumer})
	require.Len(t, procs, 3)

	p := decode.New(decode.WithWorkers(2))
	defer p.Close()
	for _, proc := range procs {
		require.NoError(t, p.Add(proc))
	}

	tx := &solana.Transaction{
		Signature: "sig-1",
		Meta: &solana.TransactionMeta{
			LogMessages: []string{
				"Program " + testProgram + " invoke [1]",
				"Program data: " + base64.StdEncoding.EncodeToString(touchedEvent(t, schema, 5)),
				"Program " + testProgram + " success",
			},
			InnerInstructions: []solana.InnerInstructionGroup{{
				Index: 0,
				Instructions: []solana.Instruction{{
					ProgramID: testProgram,
					Data:      append(append([]byte{}, EventIxTag...), touchedEvent(t, schema, 6)...),
				}},
			}},
		},
		Message: &solana.TransactionMessage{
			Instructions: []solana.Instruction{{ProgramID: testProgram, Accounts: []string{testPool, "o"}, Data: touchData(t, schema, 4)}},
		},
	}

	results, err := p.Process(context.Background(), []*solana.Transaction{tx})
	require.NoError(t, err)
	assert.Empty(t, decode.Failed(results))

	require.Len(t, instructions, 1)
	assert.Equal(t, "touchPool", instructions[0].Name)
	assert.Len(t, events, 2)
}

func TestAdapter_FetchAccounts(t *testing.T) {
	rpc := stub.NewRPCClient()
	rpc.SetAccount(testPool, testProgram, []byte{1, 2})
	schema, err := idl.Parse([]byte(testSchema))
	require.NoError(t, err)

	a := NewAdapter(rpc, Descriptor{Name: "tester", ProgramID: testProgram, IDL: schema}, WithChunkSize(1))
	got, err := a.FetchAccounts(context.Background(), []string{testPool, "missing"})
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Len(t, rpc.MultipleAccountsCalls(), 2)
}
