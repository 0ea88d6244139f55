package common

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsFullyPopulated(t *testing.T) {
	cfg := Default()
	assert.NotEmpty(t, cfg.Database.Dir)
	assert.NotEmpty(t, cfg.Database.NameSuffix)
	assert.Positive(t, cfg.Database.BusyTimeoutMS)
	assert.Positive(t, cfg.Retry.MaxAttempts)
}

func TestLoadFromFile_EmptyPathReturnsDefault(t *testing.T) {
	cfg, err := LoadFromFile("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadFromFile_OverlaysTOMLOntoDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cjcs.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[database]
nameSuffix = "staging"
maxOpenConns = 16

[retry]
maxAttempts = 9
`), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "staging", cfg.Database.NameSuffix)
	assert.Equal(t, 16, cfg.Database.MaxOpenConns)
	assert.Equal(t, 9, cfg.Retry.MaxAttempts)
	// Untouched fields keep their defaults.
	assert.Equal(t, Default().Database.BusyTimeoutMS, cfg.Database.BusyTimeoutMS)
}

func TestLoadFromFile_MissingFileErrors(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}
