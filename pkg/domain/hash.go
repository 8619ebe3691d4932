package domain

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// HashSize is the length of a content hash in bytes.
const HashSize = 32

// Hash is a 32-byte content hash identifying a ledger entry.
// This is a domain primitive; the zero value is never a legal identifier.
//
// Usage: construct via ParseHash at trust boundaries to enforce shape;
// direct conversion from [32]byte bypasses validation but cannot produce
// a malformed hash, only a zero one.
type Hash [HashSize]byte

// ParseHash validates and returns a Hash from its hex representation.
// A leading "0x" prefix is accepted. The zero hash parses successfully;
// callers that require a non-zero hash check IsZero separately so the
// error surface distinguishes "malformed" from "zero".
func ParseHash(s string) (Hash, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	raw, err := hex.DecodeString(s)
	if err != nil {
		return Hash{}, fmt.Errorf("malformed hash: %w", err)
	}
	if len(raw) != HashSize {
		return Hash{}, fmt.Errorf("malformed hash: expected %d bytes, got %d", HashSize, len(raw))
	}
	var h Hash
	copy(h[:], raw)
	return h, nil
}

// IsZero reports whether the hash is the all-zero value.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// String returns the 0x-prefixed hex representation.
func (h Hash) String() string {
	return "0x" + hex.EncodeToString(h[:])
}

// MarshalText implements encoding.TextMarshaler so hashes serialize as
// 0x-prefixed hex in JSON payloads and event envelopes.
func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (h *Hash) UnmarshalText(text []byte) error {
	parsed, err := ParseHash(string(text))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}
