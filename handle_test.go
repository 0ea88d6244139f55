package cjcs

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ternarybob/cjcs/internal/common"
)

// setupTestHandle opens a Handle against a fresh t.TempDir()-scoped SQLite
// namespace.
func setupTestHandle(t *testing.T) *Handle {
	t.Helper()
	cfg := common.Default()
	cfg.Database.Dir = t.TempDir()
	cfg.Database.NameSuffix = "test"
	cfg.Database.WALMode = false

	h, err := OpenWithConfig(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { h.Close() })
	return h
}

func TestOpenWithConfig_CreatesNamespaceFile(t *testing.T) {
	cfg := common.Default()
	cfg.Database.Dir = t.TempDir()
	cfg.Database.NameSuffix = "acme-co"

	h, err := OpenWithConfig(context.Background(), cfg)
	require.NoError(t, err)
	defer h.Close()

	require.Equal(t, "client_jobs_v1_acme_co", h.Namespace())
	require.FileExists(t, filepath.Join(cfg.Database.Dir, h.Namespace()+".db"))
	require.NotEmpty(t, h.ConnID())
}

func TestGetDBName_MatchesOpenedNamespace(t *testing.T) {
	cfg := common.Default()
	cfg.Database.NameSuffix = "acme-co"
	require.Equal(t, "client_jobs_v1_acme_co", GetDBName(cfg))
}
