package common

import (
	"fmt"

	"github.com/google/uuid"
)

// NewJobHash returns a fresh 16-byte identity for an auto-generated job
// hash. A UUID's raw byte form is exactly HashMaxLen bytes, so it doubles
// as the hash generator with no separate random-bytes routine needed.
func NewJobHash() [16]byte {
	return uuid.New()
}

// NormalizeHash right-pads hash with NUL bytes up to width, or returns an
// error if hash is already longer than width.
func NormalizeHash(hash []byte, width int) ([]byte, error) {
	if len(hash) > width {
		return nil, fmt.Errorf("hash of length %d exceeds maximum of %d bytes", len(hash), width)
	}
	out := make([]byte, width)
	copy(out, hash)
	return out, nil
}
