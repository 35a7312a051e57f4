package idl

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math/big"

	ag_binary "github.com/gagliardetto/binary"
	solanago "github.com/gagliardetto/solana-go"
)

// Decoded is an instruction or event payload decoded against the IDL.
type Decoded struct {
	Name   string
	Fields Record
}

// DecodeInstruction selects the instruction by discriminator and decodes its args.
func (d *IDL) DecodeInstruction(data []byte) (*Instruction, Record, error) {
	if len(data) < DiscriminatorSize {
		return nil, nil, ErrShortBuffer
	}
	var disc Discriminator
	copy(disc[:], data)
	ix, ok := d.instructions[disc]
	if !ok {
		return nil, nil, fmt.Errorf("%w: instruction %x", ErrUnknownDiscriminator, disc[:])
	}
	args, err := d.decodeFields(ag_binary.NewBorshDecoder(data[DiscriminatorSize:]), ix.Args)
	if err != nil {
		return ix, nil, fmt.Errorf("decode %s args: %w", ix.Name, err)
	}
	return ix, args, nil
}

// DecodeEvent selects the event by discriminator and decodes its fields.
func (d *IDL) DecodeEvent(data []byte) (*Decoded, error) {
	if len(data) < DiscriminatorSize {
		return nil, ErrShortBuffer
	}
	var disc Discriminator
	copy(disc[:], data)
	ev, ok := d.events[disc]
	if !ok {
		return nil, fmt.Errorf("%w: event %x", ErrUnknownDiscriminator, disc[:])
	}
	fields, err := d.decodeFields(ag_binary.NewBorshDecoder(data[DiscriminatorSize:]), ev.Fields)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", ev.Name, err)
	}
	return &Decoded{Name: ev.Name, Fields: fields}, nil
}

// EncodeInstruction serializes args for the named instruction, discriminator first.
func (d *IDL) EncodeInstruction(name string, args Record) ([]byte, error) {
	ix, ok := d.Instruction(name)
	if !ok {
		return nil, fmt.Errorf("unknown instruction %q", name)
	}
	disc, err := pickDiscriminator(ix.Discriminator, InstructionDiscriminator(ix.Name))
	if err != nil {
		return nil, err
	}
	return d.encode(disc, ix.Args, args)
}

// EncodeEvent serializes the named event, discriminator first.
func (d *IDL) EncodeEvent(name string, fields Record) ([]byte, error) {
	ev, ok := d.Event(name)
	if !ok {
		return nil, fmt.Errorf("unknown event %q", name)
	}
	disc, err := pickDiscriminator(ev.Discriminator, EventDiscriminator(ev.Name))
	if err != nil {
		return nil, err
	}
	return d.encode(disc, ev.Fields, fields)
}

func (d *IDL) encode(disc Discriminator, fields []Field, values Record) ([]byte, error) {
	buf := new(bytes.Buffer)
	buf.Write(disc[:])
	enc := ag_binary.NewBorshEncoder(buf)
	if err := d.encodeFields(enc, fields, values); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (d *IDL) decodeFields(dec *ag_binary.Decoder, fields []Field) (Record, error) {
	out := make(Record, len(fields))
	for _, f := range fields {
		v, err := d.decodeValue(dec, f.Type)
		if err != nil {
			return nil, fmt.Errorf("field %s (%s): %w", f.Name, f.Type, err)
		}
		out[f.Name] = v
	}
	return out, nil
}

func (d *IDL) decodeValue(dec *ag_binary.Decoder, t Type) (any, error) {
	le := binary.LittleEndian
	switch t.Primitive {
	case "bool":
		return dec.ReadBool()
	case "u8":
		return dec.ReadUint8()
	case "i8":
		return dec.ReadInt8()
	case "u16":
		return dec.ReadUint16(le)
	case "i16":
		return dec.ReadInt16(le)
	case "u32":
		return dec.ReadUint32(le)
	case "i32":
		return dec.ReadInt32(le)
	case "u64":
		return dec.ReadUint64(le)
	case "i64":
		return dec.ReadInt64(le)
	case "f32":
		return dec.ReadFloat32(le)
	case "f64":
		return dec.ReadFloat64(le)
	case "u128", "i128":
		lo, err := dec.ReadUint64(le)
		if err != nil {
			return nil, err
		}
		hi, err := dec.ReadUint64(le)
		if err != nil {
			return nil, err
		}
		if t.Primitive == "i128" {
			return I128FromWords(lo, hi), nil
		}
		return U128FromWords(lo, hi), nil
	case "string":
		n, err := dec.ReadUint32(le)
		if err != nil {
			return nil, err
		}
		b, err := dec.ReadNBytes(int(n))
		if err != nil {
			return nil, err
		}
		return string(b), nil
	case "bytes":
		n, err := dec.ReadUint32(le)
		if err != nil {
			return nil, err
		}
		return dec.ReadNBytes(int(n))
	case "pubkey":
		b, err := dec.ReadNBytes(solanago.PublicKeyLength)
		if err != nil {
			return nil, err
		}
		return solanago.PublicKeyFromBytes(b).String(), nil
	}

	switch {
	case t.Vec != nil:
		n, err := dec.ReadUint32(le)
		if err != nil {
			return nil, err
		}
		if int(n) > dec.Remaining() {
			return nil, fmt.Errorf("vec length %d exceeds remaining %d bytes", n, dec.Remaining())
		}
		return d.decodeSeq(dec, *t.Vec, int(n))
	case t.Array != nil:
		return d.decodeSeq(dec, *t.Array, t.Len)
	case t.Option != nil:
		tag, err := dec.ReadUint8()
		if err != nil {
			return nil, err
		}
		switch tag {
		case 0:
			return nil, nil
		case 1:
			return d.decodeValue(dec, *t.Option)
		default:
			return nil, fmt.Errorf("invalid option tag %d", tag)
		}
	case t.Defined != "":
		return d.decodeDefined(dec, t.Defined)
	}
	return nil, fmt.Errorf("unsupported type %s", t)
}

func (d *IDL) decodeSeq(dec *ag_binary.Decoder, elem Type, n int) ([]any, error) {
	out := make([]any, 0, n)
	for i := 0; i < n; i++ {
		v, err := d.decodeValue(dec, elem)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func (d *IDL) decodeDefined(dec *ag_binary.Decoder, name string) (any, error) {
	td := d.types[name]
	if td.Type.Kind == "struct" {
		return d.decodeFields(dec, td.Type.Fields)
	}
	idx, err := dec.ReadUint8()
	if err != nil {
		return nil, err
	}
	if int(idx) >= len(td.Type.Variants) {
		return nil, fmt.Errorf("enum %s: variant %d out of range", name, idx)
	}
	variant := td.Type.Variants[idx]
	ev := Enum{Variant: variant.Name}
	if len(variant.Fields) > 0 {
		fields, err := d.decodeFields(dec, variant.Fields)
		if err != nil {
			return nil, fmt.Errorf("enum %s::%s: %w", name, variant.Name, err)
		}
		ev.Fields = fields
	}
	return ev, nil
}

func (d *IDL) encodeFields(enc *ag_binary.Encoder, fields []Field, values Record) error {
	for _, f := range fields {
		v, ok := values[f.Name]
		if !ok && f.Type.Option == nil {
			return fmt.Errorf("missing field %s", f.Name)
		}
		if err := d.encodeValue(enc, f.Type, v); err != nil {
			return fmt.Errorf("field %s (%s): %w", f.Name, f.Type, err)
		}
	}
	return nil
}

func (d *IDL) encodeValue(enc *ag_binary.Encoder, t Type, v any) error {
	le := binary.LittleEndian
	switch t.Primitive {
	case "bool":
		b, ok := v.(bool)
		if !ok {
			return typeError(t, v)
		}
		return enc.WriteBool(b)
	case "u8", "i8", "u16", "i16", "u32", "i32", "u64", "i64":
		return encodeInt(enc, t.Primitive, v)
	case "f32":
		f, ok := v.(float32)
		if !ok {
			return typeError(t, v)
		}
		return enc.WriteFloat32(f, le)
	case "f64":
		f, ok := v.(float64)
		if !ok {
			return typeError(t, v)
		}
		return enc.WriteFloat64(f, le)
	case "u128", "i128":
		n, ok := v.(*big.Int)
		if !ok {
			return typeError(t, v)
		}
		lo, hi, err := Words128(n, t.Primitive == "i128")
		if err != nil {
			return err
		}
		if err := enc.WriteUint64(lo, le); err != nil {
			return err
		}
		return enc.WriteUint64(hi, le)
	case "string":
		s, ok := v.(string)
		if !ok {
			return typeError(t, v)
		}
		if err := enc.WriteUint32(uint32(len(s)), le); err != nil {
			return err
		}
		return enc.WriteBytes([]byte(s), false)
	case "bytes":
		b, ok := v.([]byte)
		if !ok {
			return typeError(t, v)
		}
		if err := enc.WriteUint32(uint32(len(b)), le); err != nil {
			return err
		}
		return enc.WriteBytes(b, false)
	case "pubkey":
		s, ok := v.(string)
		if !ok {
			return typeError(t, v)
		}
		key, err := solanago.PublicKeyFromBase58(s)
		if err != nil {
			return err
		}
		return enc.WriteBytes(key.Bytes(), false)
	}

	switch {
	case t.Vec != nil:
		items, ok := v.([]any)
		if !ok {
			return typeError(t, v)
		}
		if err := enc.WriteUint32(uint32(len(items)), le); err != nil {
			return err
		}
		return d.encodeSeq(enc, *t.Vec, items)
	case t.Array != nil:
		items, ok := v.([]any)
		if !ok || len(items) != t.Len {
			return typeError(t, v)
		}
		return d.encodeSeq(enc, *t.Array, items)
	case t.Option != nil:
		if v == nil {
			return enc.WriteUint8(0)
		}
		if err := enc.WriteUint8(1); err != nil {
			return err
		}
		return d.encodeValue(enc, *t.Option, v)
	case t.Defined != "":
		return d.encodeDefined(enc, t.Defined, v)
	}
	return fmt.Errorf("unsupported type %s", t)
}

func (d *IDL) encodeSeq(enc *ag_binary.Encoder, elem Type, items []any) error {
	for i, item := range items {
		if err := d.encodeValue(enc, elem, item); err != nil {
			return fmt.Errorf("element %d: %w", i, err)
		}
	}
	return nil
}

func (d *IDL) encodeDefined(enc *ag_binary.Encoder, name string, v any) error {
	td := d.types[name]
	if td.Type.Kind == "struct" {
		rec, ok := v.(Record)
		if !ok {
			return fmt.Errorf("struct %s: expected Record, got %T", name, v)
		}
		return d.encodeFields(enc, td.Type.Fields, rec)
	}
	ev, ok := v.(Enum)
	if !ok {
		return fmt.Errorf("enum %s: expected Enum, got %T", name, v)
	}
	for i, variant := range td.Type.Variants {
		if variant.Name != ev.Variant {
			continue
		}
		if err := enc.WriteUint8(uint8(i)); err != nil {
			return err
		}
		return d.encodeFields(enc, variant.Fields, ev.Fields)
	}
	return fmt.Errorf("enum %s: unknown variant %q", name, ev.Variant)
}

func encodeInt(enc *ag_binary.Encoder, prim string, v any) error {
	le := binary.LittleEndian
	var err error
	switch prim {
	case "u8":
		x, ok := v.(uint8)
		if !ok {
			return typeError(Type{Primitive: prim}, v)
		}
		err = enc.WriteUint8(x)
	case "i8":
		x, ok := v.(int8)
		if !ok {
			return typeError(Type{Primitive: prim}, v)
		}
		err = enc.WriteUint8(uint8(x))
	case "u16":
		x, ok := v.(uint16)
		if !ok {
			return typeError(Type{Primitive: prim}, v)
		}
		err = enc.WriteUint16(x, le)
	case "i16":
		x, ok := v.(int16)
		if !ok {
			return typeError(Type{Primitive: prim}, v)
		}
		err = enc.WriteInt16(x, le)
	case "u32":
		x, ok := v.(uint32)
		if !ok {
			return typeError(Type{Primitive: prim}, v)
		}
		err = enc.WriteUint32(x, le)
	case "i32":
		x, ok := v.(int32)
		if !ok {
			return typeError(Type{Primitive: prim}, v)
		}
		err = enc.WriteInt32(x, le)
	case "u64":
		x, ok := v.(uint64)
		if !ok {
			return typeError(Type{Primitive: prim}, v)
		}
		err = enc.WriteUint64(x, le)
	case "i64":
		x, ok := v.(int64)
		if !ok {
			return typeError(Type{Primitive: prim}, v)
		}
		err = enc.WriteInt64(x, le)
	}
	return err
}

func typeError(t Type, v any) error {
	return fmt.Errorf("cannot encode %T as %s", v, t)
}

var (
	two64  = new(big.Int).Lsh(big.NewInt(1), 64)
	two128 = new(big.Int).Lsh(big.NewInt(1), 128)
	two127 = new(big.Int).Lsh(big.NewInt(1), 127)
	mask64 = new(big.Int).Sub(two64, big.NewInt(1))
)

// U128FromWords assembles an unsigned 128-bit value from little-endian words.
func U128FromWords(lo, hi uint64) *big.Int {
	n := new(big.Int).SetUint64(hi)
	n.Lsh(n, 64)
	return n.Or(n, new(big.Int).SetUint64(lo))
}

// I128FromWords assembles a two's complement 128-bit value.
func I128FromWords(lo, hi uint64) *big.Int {
	n := U128FromWords(lo, hi)
	if hi>>63 == 1 {
		n.Sub(n, two128)
	}
	return n
}

// Words128 splits n into little-endian words, checking the range.
func Words128(n *big.Int, signed bool) (lo, hi uint64, err error) {
	v := new(big.Int).Set(n)
	if signed {
		if v.Cmp(two127) >= 0 || v.Cmp(new(big.Int).Neg(two127)) < 0 {
			return 0, 0, fmt.Errorf("%s overflows i128", n)
		}
		if v.Sign() < 0 {
			v.Add(v, two128)
		}
	} else if v.Sign() < 0 || v.Cmp(two128) >= 0 {
		return 0, 0, fmt.Errorf("%s overflows u128", n)
	}
	lo = new(big.Int).And(v, mask64).Uint64()
	hi = new(big.Int).Rsh(v, 64).Uint64()
	return lo, hi, nil
}
