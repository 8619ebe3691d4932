// Package canonhash derives deterministic content hashes from attestation
// payloads. Both the registry and its callers agree on entry identifiers by
// hashing the same canonical encoding instead of transmitting full payloads
// on-chain.
package canonhash

import (
	"encoding/json"
	"fmt"

	"golang.org/x/crypto/sha3"

	"medchain/pkg/domain"
)

// SumObject canonically encodes v as JSON and returns its Keccak-256 digest.
// Keccak-256 keeps identifiers compatible with the ledger's original
// Ethereum address space. encoding/json emits struct fields in declaration
// order and map keys sorted, so equal payloads always hash equally.
func SumObject(v any) (domain.Hash, []byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return domain.Hash{}, nil, fmt.Errorf("canonical encode: %w", err)
	}
	return SumBytes(b), b, nil
}

// SumBytes returns the Keccak-256 digest of raw bytes as a domain hash.
func SumBytes(b []byte) domain.Hash {
	d := sha3.NewLegacyKeccak256()
	d.Write(b)
	var h domain.Hash
	d.Sum(h[:0])
	return h
}
