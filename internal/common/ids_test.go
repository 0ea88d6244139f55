package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJobHash_Returns16DistinctBytes(t *testing.T) {
	a := NewJobHash()
	b := NewJobHash()
	assert.Len(t, a, 16)
	assert.NotEqual(t, a, b)
}

func TestNormalizeHash_PadsShortHash(t *testing.T) {
	out, err := NormalizeHash([]byte("abc"), 8)
	require.NoError(t, err)
	assert.Equal(t, []byte{'a', 'b', 'c', 0, 0, 0, 0, 0}, out)
}

func TestNormalizeHash_RejectsOverlongHash(t *testing.T) {
	_, err := NormalizeHash([]byte("123456789"), 8)
	assert.Error(t, err)
}

func TestNormalizeHash_ExactWidthPassesThrough(t *testing.T) {
	in := []byte("12345678")
	out, err := NormalizeHash(in, 8)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}
