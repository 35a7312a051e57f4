package idl

import (
	"encoding/json"
	"fmt"
	"math/big"
)

// Record holds decoded named fields. Values are Go scalars, *big.Int for
// 128-bit integers, base58 strings for public keys, []any for sequences,
// nested Record for structs and Enum for enums.
type Record map[string]any

// Enum is a decoded enum value.
type Enum struct {
	Variant string `json:"variant"`
	Fields  Record `json:"fields,omitempty"`
}

// Uint64 reads an unsigned integer field of any width up to 64 bits.
func (r Record) Uint64(name string) (uint64, error) {
	switch v := r[name].(type) {
	case uint8:
		return uint64(v), nil
	case uint16:
		return uint64(v), nil
	case uint32:
		return uint64(v), nil
	case uint64:
		return v, nil
	case *big.Int:
		if v.IsUint64() {
			return v.Uint64(), nil
		}
		return 0, fmt.Errorf("field %s: %s overflows uint64", name, v)
	case nil:
		return 0, fmt.Errorf("field %s: missing", name)
	default:
		return 0, fmt.Errorf("field %s: %T is not unsigned", name, v)
	}
}

// Int64 reads a signed integer field of any width up to 64 bits.
func (r Record) Int64(name string) (int64, error) {
	switch v := r[name].(type) {
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case nil:
		return 0, fmt.Errorf("field %s: missing", name)
	default:
		return 0, fmt.Errorf("field %s: %T is not signed", name, v)
	}
}

// BigInt reads a 128-bit or narrower integer as *big.Int.
func (r Record) BigInt(name string) (*big.Int, error) {
	if v, ok := r[name].(*big.Int); ok {
		return new(big.Int).Set(v), nil
	}
	if u, err := r.Uint64(name); err == nil {
		return new(big.Int).SetUint64(u), nil
	}
	i, err := r.Int64(name)
	if err != nil {
		return nil, err
	}
	return big.NewInt(i), nil
}

// String reads a string or public key field.
func (r Record) String(name string) (string, error) {
	s, ok := r[name].(string)
	if !ok {
		return "", fmt.Errorf("field %s: %T is not a string", name, r[name])
	}
	return s, nil
}

// Bool reads a bool field.
func (r Record) Bool(name string) (bool, error) {
	b, ok := r[name].(bool)
	if !ok {
		return false, fmt.Errorf("field %s: %T is not a bool", name, r[name])
	}
	return b, nil
}

// JSON renders the record with 128-bit integers as decimal strings.
func (r Record) JSON() (string, error) {
	b, err := json.Marshal(jsonSafe(r))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func jsonSafe(v any) any {
	switch x := v.(type) {
	case Record:
		out := make(map[string]any, len(x))
		for k, val := range x {
			out[k] = jsonSafe(val)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, val := range x {
			out[i] = jsonSafe(val)
		}
		return out
	case Enum:
		if x.Fields == nil {
			return x.Variant
		}
		return map[string]any{x.Variant: jsonSafe(x.Fields)}
	case *big.Int:
		return x.String()
	case uint64:
		return fmt.Sprintf("%d", x)
	case int64:
		return fmt.Sprintf("%d", x)
	default:
		return v
	}
}
