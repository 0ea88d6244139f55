package session

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func setupTestSessionDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", t.TempDir()+"/session.db")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestNew_MintsNonEmptyConnID(t *testing.T) {
	db := setupTestSessionDB(t)
	s, err := New(context.Background(), db)
	require.NoError(t, err)
	assert.NotEmpty(t, s.ConnID())
}

func TestNew_MintsDistinctConnIDsAcrossSessions(t *testing.T) {
	db := setupTestSessionDB(t)
	s1, err := New(context.Background(), db)
	require.NoError(t, err)
	s2, err := New(context.Background(), db)
	require.NoError(t, err)
	assert.NotEqual(t, s1.ConnID(), s2.ConnID())
}

func TestWithTx_CommitsOnSuccess(t *testing.T) {
	db := setupTestSessionDB(t)
	_, err := db.Exec(`CREATE TABLE t (v INTEGER)`)
	require.NoError(t, err)

	s, err := New(context.Background(), db)
	require.NoError(t, err)

	err = s.WithTx(context.Background(), func(tx *sql.Tx) error {
		_, execErr := tx.Exec(`INSERT INTO t (v) VALUES (1)`)
		return execErr
	})
	require.NoError(t, err)

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM t`).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	db := setupTestSessionDB(t)
	_, err := db.Exec(`CREATE TABLE t (v INTEGER)`)
	require.NoError(t, err)

	s, err := New(context.Background(), db)
	require.NoError(t, err)

	sentinel := assert.AnError
	err = s.WithTx(context.Background(), func(tx *sql.Tx) error {
		if _, execErr := tx.Exec(`INSERT INTO t (v) VALUES (1)`); execErr != nil {
			return execErr
		}
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM t`).Scan(&count))
	assert.Equal(t, 0, count)
}
