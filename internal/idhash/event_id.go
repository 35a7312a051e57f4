// Package idhash derives deterministic identifiers for stored records.
package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// EventID computes a deterministic event id using SHA256.
// Formula: SHA256(signature|kind|name|outer_index|inner_index)
// Returns hex-encoded hash (64 characters). Replaying a transaction yields
// the same ids, which lets the stores drop the repeats.
func EventID(signature, kind, name string, outerIndex, innerIndex int) string {
	data := fmt.Sprintf("%s|%s|%s|%d|%d",
		signature,
		kind,
		name,
		outerIndex,
		innerIndex,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
