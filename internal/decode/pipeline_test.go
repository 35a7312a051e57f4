package decode

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-lp-sync/internal/solana"
)

func testTx(sig string) *solana.Transaction {
	blockTime := int64(1700000000)
	return &solana.Transaction{
		Signature: sig,
		BlockTime: &blockTime,
		Meta: &solana.TransactionMeta{
			LogMessages: []string{"Program log: a", "Program log: b"},
			InnerInstructions: []solana.InnerInstructionGroup{
				{Index: 1, Instructions: []solana.Instruction{
					{ProgramID: "inner-1", Data: []byte{3}},
					{ProgramID: "inner-2", Data: []byte{4}},
				}},
				{Index: 0, Instructions: []solana.Instruction{
					{ProgramID: "inner-0", Data: []byte{5}},
				}},
			},
		},
		Message: &solana.TransactionMessage{
			Instructions: []solana.Instruction{
				{ProgramID: "outer-0", Data: []byte{1}},
				{ProgramID: "outer-1", Data: []byte{2}},
			},
		},
	}
}

func TestFlatten_Order(t *testing.T) {
	entries := Flatten(testTx("sig"))

	var programs []string
	for _, e := range entries {
		programs = append(programs, e.ProgramID)
	}
	assert.Equal(t, []string{"outer-0", "outer-1", "inner-1", "inner-2", "inner-0"}, programs)

	assert.False(t, entries[1].IsInner())
	assert.Equal(t, 1, entries[3].OuterIndex)
	assert.Equal(t, 1, entries[3].InnerIndex)
	assert.Equal(t, 0, entries[4].OuterIndex)
}

func TestFlatten_NilMessage(t *testing.T) {
	assert.Nil(t, Flatten(&solana.Transaction{}))
	assert.Nil(t, Flatten(nil))
}

type recorder struct {
	mu    sync.Mutex
	calls []Meta
	n     []int
}

func (r *recorder) consumer() ConsumerFunc[string] {
	return func(_ context.Context, entries []string, meta Meta) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.calls = append(r.calls, meta)
		r.n = append(r.n, len(entries))
		return nil
	}
}

func matchPrefix(prefix string) func([]Entry) []string {
	return func(entries []Entry) []string {
		var out []string
		for _, e := range entries {
			if strings.HasPrefix(e.ProgramID, prefix) {
				out = append(out, e.ProgramID)
			}
		}
		return out
	}
}

func TestPipeline_RoutesByKind(t *testing.T) {
	p := New(WithWorkers(4))
	defer p.Close()

	ixRec := &recorder{}
	logRec := &recorder{}
	require.NoError(t, p.Add(NewInstructionProcessor("inner", matchPrefix("inner"), ixRec.consumer())))
	require.NoError(t, p.Add(NewLogProcessor("logs", func(logs []string) ([]string, bool) {
		return logs, true
	}, logRec.consumer())))

	results, err := p.Process(context.Background(), []*solana.Transaction{testTx("s1"), testTx("s2")})
	require.NoError(t, err)
	require.Len(t, results, 4)
	assert.Empty(t, Failed(results))

	require.Len(t, ixRec.calls, 2)
	for i, meta := range ixRec.calls {
		assert.Equal(t, 3, ixRec.n[i])
		require.NotNil(t, meta.BlockTime)
		assert.Equal(t, int64(1700000000), meta.BlockTime.Unix())
	}

	require.Len(t, logRec.calls, 2)
	for _, meta := range logRec.calls {
		assert.NotEmpty(t, meta.Signature)
		assert.Nil(t, meta.BlockTime)
	}
}

func TestPipeline_NoMatchSkipsConsumers(t *testing.T) {
	p := New()
	defer p.Close()

	rec := &recorder{}
	require.NoError(t, p.Add(NewInstructionProcessor("none", matchPrefix("whirl"), rec.consumer())))
	require.NoError(t, p.Add(NewLogProcessor("no-events", func([]string) ([]string, bool) {
		return nil, false
	}, rec.consumer())))

	results, err := p.Process(context.Background(), []*solana.Transaction{testTx("s1")})
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.Zero(t, r.Entries)
		assert.NoError(t, r.Err)
	}
	assert.Empty(t, rec.calls)
}

func TestPipeline_MissingMetaFailsFast(t *testing.T) {
	p := New()
	defer p.Close()

	rec := &recorder{}
	require.NoError(t, p.Add(NewInstructionProcessor("all", matchPrefix(""), rec.consumer())))

	bad := testTx("broken")
	bad.Meta = nil
	_, err := p.Process(context.Background(), []*solana.Transaction{testTx("ok"), bad})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingMeta))
	assert.Contains(t, err.Error(), "broken")
	assert.Empty(t, rec.calls)
}

func TestPipeline_FailureIsolated(t *testing.T) {
	p := New(WithWorkers(2))
	defer p.Close()

	boom := errors.New("consumer down")
	rec := &recorder{}
	require.NoError(t, p.Add(NewInstructionProcessor("failing", matchPrefix("outer"),
		ConsumerFunc[string](func(context.Context, []string, Meta) error { return boom }))))
	require.NoError(t, p.Add(NewInstructionProcessor("panicking", func([]Entry) []string {
		panic("bad payload")
	})))
	require.NoError(t, p.Add(NewInstructionProcessor("healthy", matchPrefix("inner"), rec.consumer())))

	results, err := p.Process(context.Background(), []*solana.Transaction{testTx("s1"), testTx("s2")})
	require.NoError(t, err)
	require.Len(t, results, 6)

	failed := Failed(results)
	require.Len(t, failed, 4)
	for _, r := range failed {
		if r.Processor == "failing" {
			assert.ErrorIs(t, r.Err, boom)
		} else {
			assert.Equal(t, "panicking", r.Processor)
			assert.Contains(t, r.Err.Error(), "panicked")
		}
	}
	assert.Len(t, rec.calls, 2)
}

func TestPipeline_ConsumerErrorsJoined(t *testing.T) {
	p := New()
	defer p.Close()

	first := errors.New("first")
	rec := &recorder{}
	require.NoError(t, p.Add(NewInstructionProcessor("multi", matchPrefix("outer"),
		ConsumerFunc[string](func(context.Context, []string, Meta) error { return first }),
		rec.consumer(),
	)))

	results, err := p.Process(context.Background(), []*solana.Transaction{testTx("s1")})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.ErrorIs(t, results[0].Err, first)
	assert.Equal(t, 2, results[0].Entries)
	assert.Len(t, rec.calls, 1)
}

type badKind struct{}

func (badKind) Name() string                                { return "bad" }
func (badKind) Kind() Kind                                  { return Kind(9) }
func (badKind) Process(context.Context, Input) (int, error) { return 0, nil }

func TestPipeline_AddRejectsUnknownKind(t *testing.T) {
	p := New()
	defer p.Close()
	assert.Error(t, p.Add(badKind{}))
}

func TestPipeline_CanceledContext(t *testing.T) {
	p := New()
	defer p.Close()

	rec := &recorder{}
	require.NoError(t, p.Add(NewInstructionProcessor("all", matchPrefix(""), rec.consumer())))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	results, err := p.Process(ctx, []*solana.Transaction{testTx("s1")})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.ErrorIs(t, results[0].Err, context.Canceled)
	assert.Empty(t, rec.calls)
}
