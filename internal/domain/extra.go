package domain

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnknownExtra is returned when a pool extra carries an unknown protocol tag.
var ErrUnknownExtra = errors.New("unknown pool extra protocol")

// Extra is the protocol-specific on-chain snapshot cached on a pool.
// The set of implementations is closed: OrcaExtra and RaydiumExtra.
type Extra interface {
	Protocol() Dex
	isExtra()
}

// OrcaExtra is the cached whirlpool state.
type OrcaExtra struct {
	Price            float64 `json:"price"`
	TickCurrentIndex int32   `json:"tickCurrentIndex"`
	SqrtPrice        string  `json:"sqrtPrice"` // Q64.64, decimal string
	Liquidity        string  `json:"liquidity"` // u128, decimal string
}

// Protocol returns DexOrca.
func (OrcaExtra) Protocol() Dex { return DexOrca }
func (OrcaExtra) isExtra()      {}

// RaydiumExtra is the cached CLMM pool state.
type RaydiumExtra struct {
	Price        float64 `json:"price"`
	TickCurrent  int32   `json:"tickCurrent"`
	SqrtPriceX64 string  `json:"sqrtPriceX64"`
	Liquidity    string  `json:"liquidity"`
}

// Protocol returns DexRaydium.
func (RaydiumExtra) Protocol() Dex { return DexRaydium }
func (RaydiumExtra) isExtra()      {}

type taggedExtra struct {
	Protocol Dex             `json:"protocol"`
	Data     json.RawMessage `json:"data"`
}

// MarshalExtra encodes an extra with its protocol tag.
func MarshalExtra(e Extra) ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode %s extra: %w", e.Protocol(), err)
	}
	return json.Marshal(taggedExtra{Protocol: e.Protocol(), Data: data})
}

// UnmarshalExtra decodes a tagged extra.
func UnmarshalExtra(raw []byte) (Extra, error) {
	var tagged taggedExtra
	if err := json.Unmarshal(raw, &tagged); err != nil {
		return nil, fmt.Errorf("decode extra tag: %w", err)
	}

	switch tagged.Protocol {
	case DexOrca:
		var e OrcaExtra
		if err := json.Unmarshal(tagged.Data, &e); err != nil {
			return nil, fmt.Errorf("decode orca extra: %w", err)
		}
		return e, nil
	case DexRaydium:
		var e RaydiumExtra
		if err := json.Unmarshal(tagged.Data, &e); err != nil {
			return nil, fmt.Errorf("decode raydium extra: %w", err)
		}
		return e, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownExtra, tagged.Protocol)
	}
}
