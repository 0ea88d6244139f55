// Package session manages the per-process storage session identity:
// opened once, memoized, used as the ownership token for gated writes
// in the Jobs and Models APIs.
package session

import (
	"context"
	"database/sql"
	"fmt"
)

// Session caches the connId for a process and hands out scoped
// transactions. It borrows a connection from the pool for the duration
// of a single operation and releases it on every exit path.
type Session struct {
	db     *sql.DB
	connID string
}

// New opens the session identity against db. SQLite has no server-side
// CONNECTION_ID() analogue, so the token is minted by the storage layer
// itself (a random hex string produced by a scalar query) and cached for
// the life of the process: assign once, memoize, reuse as the ownership
// token a traditional server-assigned session id would otherwise serve
// (see DESIGN.md, Open Questions).
func New(ctx context.Context, db *sql.DB) (*Session, error) {
	var connID string
	row := db.QueryRowContext(ctx, "SELECT lower(hex(randomblob(8)))")
	if err := row.Scan(&connID); err != nil {
		return nil, fmt.Errorf("failed to mint session identity: %w", err)
	}
	return &Session{db: db, connID: connID}, nil
}

// ConnID returns the memoized ownership token for this process.
func (s *Session) ConnID() string {
	return s.connID
}

// DB returns the underlying pool. Operations borrow a connection from it
// for exactly the duration of one statement or transaction; on any exit
// path the connection returns to the pool automatically via database/sql.
func (s *Session) DB() *sql.DB {
	return s.db
}

// WithTx runs fn inside a transaction borrowed from the pool, committing
// on success and rolling back on error or panic. A re-acquired
// connection after a transient failure may surface a different
// underlying driver connection than the one that minted connID; that is
// tolerated for idempotent reads, which is why ownership-gated writes
// embed ConnID() in their WHERE predicate rather than relying on the
// physical connection identity.
func (s *Session) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()

	err = fn(tx)
	return err
}
