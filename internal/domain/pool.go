package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Dex identifies a supported CLMM protocol.
type Dex string

const (
	DexOrca    Dex = "orca"
	DexRaydium Dex = "raydium"
)

// String returns the string representation of Dex.
func (d Dex) String() string {
	return string(d)
}

// IsValid checks if the dex is a supported value.
func (d Dex) IsValid() bool {
	return d == DexOrca || d == DexRaydium
}

// Pool is a liquidity pool on one DEX protocol.
// Corresponds to pools table in PostgreSQL.
type Pool struct {
	ID          string     // pool account address
	Dex         Dex        // owning protocol
	BaseMint    string     // FK to mints
	QuoteMint   string     // FK to mints
	RewardMints []string   // 0..n FK to mints
	Config      PoolConfig // cached on-chain snapshot
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// PoolConfig is the JSON config column of a pool.
type PoolConfig struct {
	Extra Extra
}

type poolConfigJSON struct {
	Extra json.RawMessage `json:"extra,omitempty"`
}

// MarshalJSON encodes the config with a tagged extra payload.
func (c PoolConfig) MarshalJSON() ([]byte, error) {
	var out poolConfigJSON
	if c.Extra != nil {
		raw, err := MarshalExtra(c.Extra)
		if err != nil {
			return nil, err
		}
		out.Extra = raw
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes the config, rejecting unknown extra tags.
func (c *PoolConfig) UnmarshalJSON(data []byte) error {
	var in poolConfigJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return fmt.Errorf("decode pool config: %w", err)
	}
	c.Extra = nil
	if len(in.Extra) == 0 || string(in.Extra) == "null" {
		return nil
	}
	extra, err := UnmarshalExtra(in.Extra)
	if err != nil {
		return err
	}
	c.Extra = extra
	return nil
}
