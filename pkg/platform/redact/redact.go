// Package redact turns personal identifiers into stable, non-reversible
// digests for logs, metrics labels and notification audit fields.
package redact

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// Hasher produces keyed BLAKE2b-256 digests. A nil Hasher is valid and
// returns an unkeyed digest.
type Hasher struct {
	key []byte
}

// New creates a hasher. Keys longer than 64 bytes are truncated, the BLAKE2b
// maximum.
func New(key string) *Hasher {
	k := []byte(key)
	if len(k) > blake2b.Size {
		k = k[:blake2b.Size]
	}
	return &Hasher{key: k}
}

// Digest returns the first 16 hex characters of the keyed digest; empty
// input stays empty so absent fields remain visibly absent.
func (h *Hasher) Digest(value string) string {
	if value == "" {
		return ""
	}
	var key []byte
	if h != nil {
		key = h.key
	}
	mac, err := blake2b.New256(key)
	if err != nil {
		// only reachable with an oversize key, which New prevents
		sum := blake2b.Sum256([]byte(value))
		return hex.EncodeToString(sum[:8])
	}
	mac.Write([]byte(value))
	return hex.EncodeToString(mac.Sum(nil)[:8])
}
