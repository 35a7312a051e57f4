package decode

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Kind separates instruction processors from log processors.
type Kind int

const (
	KindInstruction Kind = iota + 1
	KindLog
)

func (k Kind) String() string {
	switch k {
	case KindInstruction:
		return "instruction"
	case KindLog:
		return "log"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Meta is the transaction context handed to consumers. Log consumers only
// receive the signature.
type Meta struct {
	Signature string
	BlockTime *time.Time
}

// Input is everything a processor may read from one transaction.
type Input struct {
	Meta         Meta
	Instructions []Entry
	Logs         []string
}

// Processor decodes one transaction and forwards results to its consumers.
// It returns the number of decoded entries.
type Processor interface {
	Name() string
	Kind() Kind
	Process(ctx context.Context, in Input) (int, error)
}

// Consumer receives decoded entries together with transaction metadata.
type Consumer[T any] interface {
	Consume(ctx context.Context, entries []T, meta Meta) error
}

// ConsumerFunc adapts a function to Consumer.
type ConsumerFunc[T any] func(ctx context.Context, entries []T, meta Meta) error

// Consume calls f.
func (f ConsumerFunc[T]) Consume(ctx context.Context, entries []T, meta Meta) error {
	return f(ctx, entries, meta)
}

// InstructionProcessor decodes the flattened instruction list.
type InstructionProcessor[T any] struct {
	name      string
	decode    func(entries []Entry) []T
	consumers []Consumer[T]
}

// NewInstructionProcessor builds an instruction processor.
func NewInstructionProcessor[T any](name string, decode func([]Entry) []T, consumers ...Consumer[T]) *InstructionProcessor[T] {
	return &InstructionProcessor[T]{name: name, decode: decode, consumers: consumers}
}

func (p *InstructionProcessor[T]) Name() string { return p.name }
func (p *InstructionProcessor[T]) Kind() Kind   { return KindInstruction }

// Process decodes in.Instructions and runs consumers when anything decoded.
func (p *InstructionProcessor[T]) Process(ctx context.Context, in Input) (int, error) {
	decoded := p.decode(in.Instructions)
	if len(decoded) == 0 {
		return 0, nil
	}
	return len(decoded), consumeAll(ctx, p.consumers, decoded, in.Meta)
}

// LogProcessor decodes log lines. decode returns ok=false when no
// event-shaped line was present.
type LogProcessor[T any] struct {
	name      string
	decode    func(logs []string) ([]T, bool)
	consumers []Consumer[T]
}

// NewLogProcessor builds a log processor.
func NewLogProcessor[T any](name string, decode func([]string) ([]T, bool), consumers ...Consumer[T]) *LogProcessor[T] {
	return &LogProcessor[T]{name: name, decode: decode, consumers: consumers}
}

func (p *LogProcessor[T]) Name() string { return p.name }
func (p *LogProcessor[T]) Kind() Kind   { return KindLog }

// Process decodes in.Logs and runs consumers with the signature only.
func (p *LogProcessor[T]) Process(ctx context.Context, in Input) (int, error) {
	if len(in.Logs) == 0 {
		return 0, nil
	}
	decoded, ok := p.decode(in.Logs)
	if !ok || len(decoded) == 0 {
		return 0, nil
	}
	return len(decoded), consumeAll(ctx, p.consumers, decoded, Meta{Signature: in.Meta.Signature})
}

// consumeAll runs every consumer; one failing consumer does not stop the rest.
func consumeAll[T any](ctx context.Context, consumers []Consumer[T], entries []T, meta Meta) error {
	var errs []error
	for _, c := range consumers {
		if err := c.Consume(ctx, entries, meta); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
