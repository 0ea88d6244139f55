package retry

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(errors.New("database is locked")))
	assert.True(t, IsTransient(errors.New("SQLITE_BUSY: database busy")))
	assert.True(t, IsTransient(errors.New("driver: bad connection")))
	assert.False(t, IsTransient(errors.New("UNIQUE constraint failed: jobs.client")))
	assert.False(t, IsTransient(nil))
}

// TestIsTransient_TypedSQLiteBusyError forces a genuine SQLITE_BUSY by
// holding a write transaction open on one connection while a second
// connection to the same file attempts a write with busy_timeout
// disabled, proving the typed *sqlite.Error branch actually fires rather
// than just the string fallback.
func TestIsTransient_TypedSQLiteBusyError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "busy.db")

	holder, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer holder.Close()
	holder.SetMaxOpenConns(1)
	_, err = holder.Exec(`PRAGMA busy_timeout=0`)
	require.NoError(t, err)
	_, err = holder.Exec(`CREATE TABLE t (v INTEGER)`)
	require.NoError(t, err)

	tx, err := holder.Begin()
	require.NoError(t, err)
	_, err = tx.Exec(`INSERT INTO t (v) VALUES (1)`)
	require.NoError(t, err)
	defer tx.Rollback()

	contender, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer contender.Close()
	contender.SetMaxOpenConns(1)
	_, err = contender.Exec(`PRAGMA busy_timeout=0`)
	require.NoError(t, err)

	_, execErr := contender.Exec(`INSERT INTO t (v) VALUES (2)`)
	require.Error(t, execErr)

	var serr *sqlite.Error
	require.ErrorAs(t, execErr, &serr, "modernc.org/sqlite should surface a typed *sqlite.Error")
	assert.Contains(t, []int{sqlite3.SQLITE_BUSY, sqlite3.SQLITE_BUSY_RECOVERY, sqlite3.SQLITE_BUSY_SNAPSHOT}, serr.Code())
	assert.True(t, IsTransient(execErr))
}

func TestIsDuplicateKey(t *testing.T) {
	assert.True(t, IsDuplicateKey(errors.New("UNIQUE constraint failed: jobs.client, jobs.job_hash")))
	assert.False(t, IsDuplicateKey(errors.New("database is locked")))
	assert.False(t, IsDuplicateKey(nil))
}

// TestIsDuplicateKey_TypedSQLiteConstraintError forces a genuine UNIQUE
// constraint violation through the driver, proving IsDuplicateKey's
// typed-error branch fires rather than just the string fallback.
func TestIsDuplicateKey_TypedSQLiteConstraintError(t *testing.T) {
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "dup.db"))
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`CREATE TABLE t (v INTEGER UNIQUE)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO t (v) VALUES (1)`)
	require.NoError(t, err)

	_, execErr := db.Exec(`INSERT INTO t (v) VALUES (1)`)
	require.Error(t, execErr)

	var serr *sqlite.Error
	require.ErrorAs(t, execErr, &serr, "modernc.org/sqlite should surface a typed *sqlite.Error")
	assert.Equal(t, sqlite3.SQLITE_CONSTRAINT_UNIQUE, serr.Code())
	assert.True(t, IsDuplicateKey(execErr))
}

func TestDo_RetriesTransientFaultsUntilSuccess(t *testing.T) {
	env := New(5, time.Millisecond, 0, nil)
	attempts := 0

	err := env.Do(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return errors.New("database is locked")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestDo_StopsImmediatelyOnNonTransientError(t *testing.T) {
	env := New(5, time.Millisecond, 0, nil)
	attempts := 0
	sentinel := errors.New("permanent failure")

	err := env.Do(context.Background(), func() error {
		attempts++
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)
	assert.Equal(t, 1, attempts)
}

func TestDo_ExhaustsMaxAttempts(t *testing.T) {
	env := New(3, time.Millisecond, 0, nil)
	attempts := 0

	err := env.Do(context.Background(), func() error {
		attempts++
		return errors.New("database is locked")
	})
	require.Error(t, err)
	assert.Equal(t, 3, attempts)
}

func TestDo_RespectsContextCancellation(t *testing.T) {
	env := New(10, 50*time.Millisecond, 0, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := env.Do(ctx, func() error {
		return errors.New("database is locked")
	})
	require.Error(t, err)
}

func TestDo_StopsAtMaxDeadlineBeforeExhaustingAttempts(t *testing.T) {
	env := New(1000, 20*time.Millisecond, 50*time.Millisecond, nil)
	attempts := 0

	err := env.Do(context.Background(), func() error {
		attempts++
		return errors.New("database is locked")
	})
	require.Error(t, err)
	assert.Less(t, attempts, 1000, "MaxDeadline should cut retries short of MaxAttempts")
}
