package idl

import (
	"encoding/hex"
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testIDL = `{
  "name": "sample",
  "version": "0.1.0",
  "instructions": [
    {
      "name": "swap",
      "accounts": [
        {"name": "tokenProgram"},
        {"name": "tokenAuthority", "signer": true},
        {"name": "whirlpool", "writable": true}
      ],
      "args": [
        {"name": "amount", "type": "u64"},
        {"name": "otherAmountThreshold", "type": "u64"},
        {"name": "sqrtPriceLimit", "type": "u128"},
        {"name": "amountSpecifiedIsInput", "type": "bool"},
        {"name": "aToB", "type": "bool"}
      ]
    },
    {
      "name": "configure",
      "accounts": [],
      "args": [
        {"name": "owner", "type": "publicKey"},
        {"name": "delta", "type": "i128"},
        {"name": "label", "type": "string"},
        {"name": "limits", "type": {"array": ["u16", 3]}},
        {"name": "maybe", "type": {"option": "i32"}},
        {"name": "entries", "type": {"vec": {"defined": "Entry"}}},
        {"name": "mode", "type": {"defined": {"name": "Mode"}}}
      ]
    }
  ],
  "events": [
    {
      "name": "Traded",
      "fields": [
        {"name": "pool", "type": "pubkey"},
        {"name": "amountIn", "type": "u64"},
        {"name": "tick", "type": "i32"}
      ]
    }
  ],
  "types": [
    {"name": "Entry", "type": {"kind": "struct", "fields": [
      {"name": "index", "type": "u8"},
      {"name": "weight", "type": "u64"}
    ]}},
    {"name": "Mode", "type": {"kind": "enum", "variants": [
      {"name": "Off"},
      {"name": "Fixed", "fields": [{"name": "bps", "type": "u16"}]}
    ]}}
  ]
}`

func TestInstructionDiscriminator(t *testing.T) {
	d := InstructionDiscriminator("swap")
	assert.Equal(t, "f8c69e91e17587c8", hex.EncodeToString(d[:]))
}

func TestSnakeCase(t *testing.T) {
	tests := map[string]string{
		"swap":                       "swap",
		"openPosition":               "open_position",
		"openPositionV2":             "open_position_v2",
		"openPositionWithToken22Nft": "open_position_with_token22_nft",
		"increase_liquidity_v2":      "increase_liquidity_v2",
		"collectFees":                "collect_fees",
	}
	for in, want := range tests {
		assert.Equal(t, want, SnakeCase(in), in)
	}

	a := InstructionDiscriminator("collectFees")
	b := InstructionDiscriminator("collect_fees")
	assert.Equal(t, a, b)
}

func TestParse_UnknownDefinedType(t *testing.T) {
	_, err := Parse([]byte(`{"name":"x","instructions":[{"name":"a","accounts":[],"args":[{"name":"v","type":{"defined":"Nope"}}]}]}`))
	assert.ErrorContains(t, err, "undefined type")
}

func TestParse_UnknownPrimitive(t *testing.T) {
	_, err := Parse([]byte(`{"name":"x","instructions":[{"name":"a","accounts":[],"args":[{"name":"v","type":"u256"}]}]}`))
	assert.Error(t, err)
}

func TestDecodeInstruction_Swap(t *testing.T) {
	doc := MustParse([]byte(testIDL))

	limit := new(big.Int).Lsh(big.NewInt(1), 100)
	data, err := doc.EncodeInstruction("swap", Record{
		"amount":                 uint64(1_000_000),
		"otherAmountThreshold":   uint64(990_000),
		"sqrtPriceLimit":         limit,
		"amountSpecifiedIsInput": true,
		"aToB":                   false,
	})
	require.NoError(t, err)
	assert.Len(t, data, 8+8+8+16+1+1)

	ix, args, err := doc.DecodeInstruction(data)
	require.NoError(t, err)
	assert.Equal(t, "swap", ix.Name)
	assert.Equal(t, 2, ix.AccountIndex("whirlpool"))
	assert.Equal(t, -1, ix.AccountIndex("missing"))

	amount, err := args.Uint64("amount")
	require.NoError(t, err)
	assert.Equal(t, uint64(1_000_000), amount)

	got, err := args.BigInt("sqrtPriceLimit")
	require.NoError(t, err)
	assert.Equal(t, 0, limit.Cmp(got))

	aToB, err := args.Bool("aToB")
	require.NoError(t, err)
	assert.False(t, aToB)
}

func TestDecodeInstruction_NestedTypes(t *testing.T) {
	doc := MustParse([]byte(testIDL))

	in := Record{
		"owner":  "So11111111111111111111111111111111111111112",
		"delta":  big.NewInt(-42),
		"label":  "pos",
		"limits": []any{uint16(1), uint16(2), uint16(3)},
		"maybe":  int32(-7),
		"entries": []any{
			Record{"index": uint8(0), "weight": uint64(10)},
			Record{"index": uint8(1), "weight": uint64(20)},
		},
		"mode": Enum{Variant: "Fixed", Fields: Record{"bps": uint16(30)}},
	}
	data, err := doc.EncodeInstruction("configure", in)
	require.NoError(t, err)

	_, out, err := doc.DecodeInstruction(data)
	require.NoError(t, err)

	assert.Equal(t, in["owner"], out["owner"])
	assert.Equal(t, 0, big.NewInt(-42).Cmp(out["delta"].(*big.Int)))
	assert.Equal(t, in["label"], out["label"])
	assert.Equal(t, in["limits"], out["limits"])
	assert.Equal(t, in["maybe"], out["maybe"])
	assert.Equal(t, in["entries"], out["entries"])
	assert.Equal(t, in["mode"], out["mode"])
}

func TestDecode_FixedPayloadRoundTrip(t *testing.T) {
	doc := MustParse([]byte(testIDL))
	zeroKey := strings.Repeat("00", 32)

	tests := []struct {
		name  string
		hex   string
		event bool
		check func(t *testing.T, fields Record)
	}{
		{
			name: "swap",
			hex: "f8c69e91e17587c8" +
				"40420f0000000000" + "301b0f0000000000" +
				"0000000000000000" + "0100000000000000" +
				"01" + "00",
			check: func(t *testing.T, fields Record) {
				limit, err := fields.BigInt("sqrtPriceLimit")
				require.NoError(t, err)
				assert.Equal(t, 0, new(big.Int).Lsh(big.NewInt(1), 64).Cmp(limit))
			},
		},
		{
			name: "configure",
			hex: "f5076c755fc436d9" + zeroKey +
				"d6ffffffffffffff" + "ffffffffffffffff" +
				"02000000" + "6869" +
				"010002000300" +
				"01" + "f9ffffff" +
				"01000000" + "05" + "0a00000000000000" +
				"01" + "1e00",
			check: func(t *testing.T, fields Record) {
				assert.Equal(t, "11111111111111111111111111111111", fields["owner"])
				assert.Equal(t, "hi", fields["label"])
				assert.Equal(t, int32(-7), fields["maybe"])
				assert.Equal(t, Enum{Variant: "Fixed", Fields: Record{"bps": uint16(30)}}, fields["mode"])
			},
		},
		{
			name:  "Traded",
			hex:   "e1ca49af932ba096" + zeroKey + "0500000000000000" + "ffffffff",
			event: true,
			check: func(t *testing.T, fields Record) {
				assert.Equal(t, int32(-1), fields["tick"])
			},
		},
	}

	decode := func(t *testing.T, event bool, data []byte) Record {
		t.Helper()
		if event {
			ev, err := doc.DecodeEvent(data)
			require.NoError(t, err)
			return ev.Fields
		}
		_, args, err := doc.DecodeInstruction(data)
		require.NoError(t, err)
		return args
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, err := hex.DecodeString(tt.hex)
			require.NoError(t, err)

			first := decode(t, tt.event, payload)
			tt.check(t, first)

			var out []byte
			if tt.event {
				out, err = doc.EncodeEvent(tt.name, first)
			} else {
				out, err = doc.EncodeInstruction(tt.name, first)
			}
			require.NoError(t, err)
			assert.Equal(t, payload, out)
			assert.Equal(t, first, decode(t, tt.event, out))
		})
	}
}

func TestDecodeInstruction_NoneOption(t *testing.T) {
	doc := MustParse([]byte(testIDL))

	data, err := doc.EncodeInstruction("configure", Record{
		"owner":   "11111111111111111111111111111111",
		"delta":   big.NewInt(0),
		"label":   "",
		"limits":  []any{uint16(0), uint16(0), uint16(0)},
		"entries": []any{},
		"mode":    Enum{Variant: "Off"},
	})
	require.NoError(t, err)

	_, out, err := doc.DecodeInstruction(data)
	require.NoError(t, err)
	assert.Nil(t, out["maybe"])
	assert.Equal(t, Enum{Variant: "Off"}, out["mode"])
}

func TestDecodeInstruction_Errors(t *testing.T) {
	doc := MustParse([]byte(testIDL))

	_, _, err := doc.DecodeInstruction([]byte{1, 2, 3})
	assert.True(t, errors.Is(err, ErrShortBuffer))

	_, _, err = doc.DecodeInstruction(make([]byte, 16))
	assert.True(t, errors.Is(err, ErrUnknownDiscriminator))

	// Truncated args.
	disc := InstructionDiscriminator("swap")
	_, _, err = doc.DecodeInstruction(append(disc[:], 1, 2, 3))
	assert.Error(t, err)
}

func TestDecodeEvent(t *testing.T) {
	doc := MustParse([]byte(testIDL))

	data, err := doc.EncodeEvent("Traded", Record{
		"pool":     "whirLbMiicVdio4qvUfM5KAg6Ct8VwpYzGff3uctyCc",
		"amountIn": uint64(5),
		"tick":     int32(-443636),
	})
	require.NoError(t, err)

	ev, err := doc.DecodeEvent(data)
	require.NoError(t, err)
	assert.Equal(t, "Traded", ev.Name)

	tick, err := ev.Fields.Int64("tick")
	require.NoError(t, err)
	assert.Equal(t, int64(-443636), tick)

	js, err := ev.Fields.JSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"pool":"whirLbMiicVdio4qvUfM5KAg6Ct8VwpYzGff3uctyCc","amountIn":"5","tick":-443636}`, js)
}

func TestWords128(t *testing.T) {
	tests := []struct {
		name   string
		value  *big.Int
		signed bool
		ok     bool
	}{
		{"zero", big.NewInt(0), false, true},
		{"max u128", new(big.Int).Sub(two128, big.NewInt(1)), false, true},
		{"u128 overflow", new(big.Int).Set(two128), false, false},
		{"negative unsigned", big.NewInt(-1), false, false},
		{"min i128", new(big.Int).Neg(two127), true, true},
		{"i128 overflow", new(big.Int).Set(two127), true, false},
		{"minus one", big.NewInt(-1), true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lo, hi, err := Words128(tt.value, tt.signed)
			if !tt.ok {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			var back *big.Int
			if tt.signed {
				back = I128FromWords(lo, hi)
			} else {
				back = U128FromWords(lo, hi)
			}
			assert.Equal(t, 0, tt.value.Cmp(back))
		})
	}
}
