package idl

import (
	"encoding/json"
	"fmt"
)

// Type is an IDL type expression: a primitive name or one of the
// vec/option/array/defined constructors.
type Type struct {
	Primitive string
	Vec       *Type
	Option    *Type
	Array     *Type
	Len       int
	Defined   string
}

var primitives = map[string]string{
	"bool": "bool", "u8": "u8", "i8": "i8", "u16": "u16", "i16": "i16",
	"u32": "u32", "i32": "i32", "u64": "u64", "i64": "i64",
	"u128": "u128", "i128": "i128", "f32": "f32", "f64": "f64",
	"string": "string", "bytes": "bytes",
	"pubkey": "pubkey", "publicKey": "pubkey",
}

// UnmarshalJSON accepts both the legacy and current Anchor type encodings.
func (t *Type) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		p, ok := primitives[name]
		if !ok {
			return fmt.Errorf("unknown primitive type %q", name)
		}
		t.Primitive = p
		return nil
	}

	var obj struct {
		Vec     *Type           `json:"vec"`
		Option  *Type           `json:"option"`
		Array   json.RawMessage `json:"array"`
		Defined json.RawMessage `json:"defined"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("decode type: %w", err)
	}

	switch {
	case obj.Vec != nil:
		t.Vec = obj.Vec
	case obj.Option != nil:
		t.Option = obj.Option
	case len(obj.Array) > 0:
		var parts []json.RawMessage
		if err := json.Unmarshal(obj.Array, &parts); err != nil || len(parts) != 2 {
			return fmt.Errorf("array type must be [type, len]")
		}
		var elem Type
		if err := json.Unmarshal(parts[0], &elem); err != nil {
			return err
		}
		if err := json.Unmarshal(parts[1], &t.Len); err != nil {
			return fmt.Errorf("array length: %w", err)
		}
		t.Array = &elem
	case len(obj.Defined) > 0:
		var name string
		if err := json.Unmarshal(obj.Defined, &name); err != nil {
			var ref struct {
				Name string `json:"name"`
			}
			if err := json.Unmarshal(obj.Defined, &ref); err != nil {
				return fmt.Errorf("defined type: %w", err)
			}
			name = ref.Name
		}
		t.Defined = name
	default:
		return fmt.Errorf("unsupported type %s", string(data))
	}
	return nil
}

// String renders the type for error messages.
func (t Type) String() string {
	switch {
	case t.Primitive != "":
		return t.Primitive
	case t.Vec != nil:
		return "vec<" + t.Vec.String() + ">"
	case t.Option != nil:
		return "option<" + t.Option.String() + ">"
	case t.Array != nil:
		return fmt.Sprintf("[%s; %d]", t.Array.String(), t.Len)
	default:
		return t.Defined
	}
}
