package domain

import "time"

// Mint is a token identity. Immutable once observed.
// Corresponds to mints table in PostgreSQL.
type Mint struct {
	ID                     string    // mint address
	Decimals               uint8     // base-unit exponent
	TransferFeeBasisPoints *uint16   // Token-2022 transfer fee, nil when absent
	TransferFeeMax         *uint64   // Token-2022 max fee in base units
	CreatedAt              time.Time // first sighting
}

// HasTransferFee reports whether the mint carries a transfer-fee extension.
func (m *Mint) HasTransferFee() bool {
	return m != nil && m.TransferFeeBasisPoints != nil
}
