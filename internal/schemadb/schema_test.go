package schemadb

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	d, err := Open(context.Background(), Options{
		Dir:           t.TempDir(),
		NameSuffix:    "test",
		SchemaVersion: 1,
		RootName:      "client_jobs",
	}, arbor.NewLogger())
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	return d
}

func TestNamespace_ReplacesHyphensInSuffix(t *testing.T) {
	assert.Equal(t, "client_jobs_v1_acme_co", Namespace("client_jobs", 1, "acme-co"))
	assert.Equal(t, "client_jobs_v2_dev", Namespace("client_jobs", 2, "dev"))
}

func TestOpen_CreatesBothTables(t *testing.T) {
	d := setupTestDB(t)

	for _, table := range []string{"jobs", "models"} {
		row := d.Conn().QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table)
		var name string
		require.NoError(t, row.Scan(&name))
		assert.Equal(t, table, name)
	}
}

func TestOpen_InitSchemaIsIdempotent(t *testing.T) {
	d := setupTestDB(t)
	require.NoError(t, d.InitSchema(context.Background()))
	require.NoError(t, d.InitSchema(context.Background()))
}

func TestJobs_UniqueClientHashConstraint(t *testing.T) {
	d := setupTestDB(t)
	hash := make([]byte, 16)

	_, err := d.Conn().Exec(`INSERT INTO jobs (client, cmd_line, job_hash) VALUES (?, ?, ?)`,
		"acme", "run", hash)
	require.NoError(t, err)

	_, err = d.Conn().Exec(`INSERT INTO jobs (client, cmd_line, job_hash) VALUES (?, ?, ?)`,
		"acme", "run again", hash)
	assert.Error(t, err, "a second row with the same (client, job_hash) must violate the unique index")
}
