package domain

import (
	"fmt"
	"strings"
)

// Identity names a caller on the ledger: an issuer, an oracle, the owner, or
// any third party reporting a fake. It is an opaque stable string (in the
// original deployment an Ethereum address; here whatever the token service
// authenticated).
//
// Invariant: non-empty, no surrounding whitespace, at most 128 characters.
type Identity string

// ParseIdentity validates and returns an Identity.
func ParseIdentity(s string) (Identity, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("identity cannot be empty")
	}
	if len(s) > 128 {
		return "", fmt.Errorf("identity must be 128 characters or less")
	}
	return Identity(s), nil
}

// IsNil reports whether the identity is unset.
func (i Identity) IsNil() bool {
	return i == ""
}

// String returns the string representation.
func (i Identity) String() string {
	return string(i)
}
