// Package idl models Anchor-style interface definitions and decodes
// instruction and event payloads against them.
package idl

import (
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode"
)

var (
	// ErrUnknownDiscriminator is returned when a payload prefix matches no
	// instruction or event in the IDL.
	ErrUnknownDiscriminator = errors.New("unknown discriminator")

	// ErrShortBuffer is returned when a payload is shorter than its discriminator.
	ErrShortBuffer = errors.New("payload shorter than discriminator")
)

// DiscriminatorSize is the Anchor discriminator width in bytes.
const DiscriminatorSize = 8

// Discriminator is the 8-byte prefix selecting an instruction or event.
type Discriminator [DiscriminatorSize]byte

// InstructionDiscriminator returns sha256("global:" + snake_case(name))[:8].
// Legacy IDLs spell instruction names in camelCase; the hash always uses
// the snake_case form.
func InstructionDiscriminator(name string) Discriminator {
	return hashDiscriminator("global:" + SnakeCase(name))
}

// EventDiscriminator returns sha256("event:" + name)[:8].
func EventDiscriminator(name string) Discriminator {
	return hashDiscriminator("event:" + name)
}

// AccountDiscriminator returns sha256("account:" + Name)[:8].
func AccountDiscriminator(name string) Discriminator {
	return hashDiscriminator("account:" + name)
}

// SnakeCase converts camelCase identifiers: openPositionV2 -> open_position_v2.
func SnakeCase(name string) string {
	runes := []rune(name)
	var b strings.Builder
	b.Grow(len(name) + 4)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 {
				prev := runes[i-1]
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if prev != '_' && (unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower)) {
					b.WriteByte('_')
				}
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func hashDiscriminator(preimage string) Discriminator {
	sum := sha256.Sum256([]byte(preimage))
	var d Discriminator
	copy(d[:], sum[:DiscriminatorSize])
	return d
}

// IDL is a program interface definition.
type IDL struct {
	Name         string        `json:"name"`
	Version      string        `json:"version"`
	Instructions []Instruction `json:"instructions"`
	Events       []Event       `json:"events"`
	Types        []TypeDef     `json:"types"`

	instructions map[Discriminator]*Instruction
	events       map[Discriminator]*Event
	types        map[string]*TypeDef
}

// Instruction describes one program instruction.
type Instruction struct {
	Name          string        `json:"name"`
	Discriminator []byte        `json:"discriminator,omitempty"`
	Accounts      []AccountItem `json:"accounts"`
	Args          []Field       `json:"args"`
}

// AccountItem is one positional account of an instruction.
type AccountItem struct {
	Name     string `json:"name"`
	Writable bool   `json:"writable,omitempty"`
	Signer   bool   `json:"signer,omitempty"`
}

// Event describes one emitted event.
type Event struct {
	Name          string  `json:"name"`
	Discriminator []byte  `json:"discriminator,omitempty"`
	Fields        []Field `json:"fields"`
}

// Field is a named, typed member.
type Field struct {
	Name string `json:"name"`
	Type Type   `json:"type"`
}

// TypeDef is a named struct or enum.
type TypeDef struct {
	Name string   `json:"name"`
	Type TypeBody `json:"type"`
}

// TypeBody is the body of a defined type.
type TypeBody struct {
	Kind     string    `json:"kind"` // "struct" | "enum"
	Fields   []Field   `json:"fields,omitempty"`
	Variants []Variant `json:"variants,omitempty"`
}

// Variant is one enum variant, optionally carrying named fields.
type Variant struct {
	Name   string  `json:"name"`
	Fields []Field `json:"fields,omitempty"`
}

// Parse decodes and indexes an IDL document.
func Parse(data []byte) (*IDL, error) {
	var doc IDL
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse idl: %w", err)
	}
	if err := doc.index(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// MustParse is Parse for embedded documents known to be valid.
func MustParse(data []byte) *IDL {
	doc, err := Parse(data)
	if err != nil {
		panic(err)
	}
	return doc
}

func (d *IDL) index() error {
	d.instructions = make(map[Discriminator]*Instruction, len(d.Instructions))
	d.events = make(map[Discriminator]*Event, len(d.Events))
	d.types = make(map[string]*TypeDef, len(d.Types))

	for i := range d.Types {
		t := &d.Types[i]
		if t.Type.Kind != "struct" && t.Type.Kind != "enum" {
			return fmt.Errorf("idl %s: type %s has unsupported kind %q", d.Name, t.Name, t.Type.Kind)
		}
		d.types[t.Name] = t
	}

	for i := range d.Instructions {
		ix := &d.Instructions[i]
		disc, err := pickDiscriminator(ix.Discriminator, InstructionDiscriminator(ix.Name))
		if err != nil {
			return fmt.Errorf("idl %s: instruction %s: %w", d.Name, ix.Name, err)
		}
		if prev, ok := d.instructions[disc]; ok {
			return fmt.Errorf("idl %s: instructions %s and %s share a discriminator", d.Name, prev.Name, ix.Name)
		}
		d.instructions[disc] = ix
	}

	for i := range d.Events {
		ev := &d.Events[i]
		disc, err := pickDiscriminator(ev.Discriminator, EventDiscriminator(ev.Name))
		if err != nil {
			return fmt.Errorf("idl %s: event %s: %w", d.Name, ev.Name, err)
		}
		d.events[disc] = ev
	}

	return d.checkTypes()
}

func pickDiscriminator(explicit []byte, derived Discriminator) (Discriminator, error) {
	if len(explicit) == 0 {
		return derived, nil
	}
	if len(explicit) != DiscriminatorSize {
		return Discriminator{}, fmt.Errorf("discriminator has %d bytes", len(explicit))
	}
	var d Discriminator
	copy(d[:], explicit)
	return d, nil
}

// checkTypes verifies every defined reference resolves.
func (d *IDL) checkTypes() error {
	var walk func(t *Type) error
	walk = func(t *Type) error {
		switch {
		case t.Defined != "":
			if _, ok := d.types[t.Defined]; !ok {
				return fmt.Errorf("idl %s: undefined type %q", d.Name, t.Defined)
			}
		case t.Vec != nil:
			return walk(t.Vec)
		case t.Option != nil:
			return walk(t.Option)
		case t.Array != nil:
			return walk(t.Array)
		}
		return nil
	}
	walkFields := func(fields []Field) error {
		for i := range fields {
			if err := walk(&fields[i].Type); err != nil {
				return err
			}
		}
		return nil
	}

	for _, ix := range d.Instructions {
		if err := walkFields(ix.Args); err != nil {
			return err
		}
	}
	for _, ev := range d.Events {
		if err := walkFields(ev.Fields); err != nil {
			return err
		}
	}
	for _, td := range d.Types {
		if err := walkFields(td.Type.Fields); err != nil {
			return err
		}
		for _, v := range td.Type.Variants {
			if err := walkFields(v.Fields); err != nil {
				return err
			}
		}
	}
	return nil
}

// Instruction returns the instruction definition by name.
func (d *IDL) Instruction(name string) (*Instruction, bool) {
	for i := range d.Instructions {
		if d.Instructions[i].Name == name {
			return &d.Instructions[i], true
		}
	}
	return nil, false
}

// Event returns the event definition by name.
func (d *IDL) Event(name string) (*Event, bool) {
	for i := range d.Events {
		if d.Events[i].Name == name {
			return &d.Events[i], true
		}
	}
	return nil, false
}

// AccountIndex returns the position of a named account in an instruction, or -1.
func (ix *Instruction) AccountIndex(name string) int {
	for i, a := range ix.Accounts {
		if a.Name == name {
			return i
		}
	}
	return -1
}
