// Package retry implements a bounded-retry envelope: idempotent storage
// operations are re-executed with back-off on transient faults.
// Non-idempotent operations (raw INSERTs) are never wrapped here; callers
// compose the envelope around the entire insert-plus-reconcile closure
// instead.
package retry

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Envelope re-executes an idempotent operation on transient storage
// faults with exponential back-off.
type Envelope struct {
	MaxAttempts  int
	InitialDelay time.Duration
	// MaxDeadline bounds the envelope's total wall-clock retry budget.
	// Zero means no deadline beyond MaxAttempts itself.
	MaxDeadline time.Duration
	Logger      arbor.ILogger
}

// New builds an Envelope with the given bounds. A nil logger is kept as
// is; Do skips logging when Logger is nil.
func New(maxAttempts int, initialDelay, maxDeadline time.Duration, logger arbor.ILogger) *Envelope {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	return &Envelope{MaxAttempts: maxAttempts, InitialDelay: initialDelay, MaxDeadline: maxDeadline, Logger: logger}
}

// Do runs op, retrying with exponential back-off while IsTransient(err)
// is true, up to MaxAttempts and within MaxDeadline. Non-transient errors
// return immediately. Once MaxDeadline elapses, the in-flight or next
// wait returns ctx.Err() rather than attempting another round.
func (e *Envelope) Do(ctx context.Context, op func() error) error {
	if e.MaxDeadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.MaxDeadline)
		defer cancel()
	}

	var lastErr error
	delay := e.InitialDelay

	for attempt := 1; attempt <= e.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			if lastErr != nil {
				return lastErr
			}
			return ctx.Err()
		}

		lastErr = op()
		if lastErr == nil {
			return nil
		}

		if !IsTransient(lastErr) {
			return lastErr
		}

		if attempt == e.MaxAttempts {
			break
		}

		if e.Logger != nil {
			e.Logger.Warn().
				Int("attempt", attempt).
				Int("maxAttempts", e.MaxAttempts).
				Str("delay", delay.String()).
				Err(lastErr).
				Msg("transient storage fault, retrying")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}

	if e.Logger != nil {
		e.Logger.Error().Int("maxAttempts", e.MaxAttempts).Err(lastErr).Msg("retry attempts exhausted")
	}
	return lastErr
}

// IsTransient classifies a storage-layer error as a connection loss,
// deadlock, or server restart versus a permanent fault. The typed
// modernc.org/sqlite result code is checked first; the substring match is
// the last-resort branch for drivers/wrappers that don't surface a typed
// *sqlite.Error (e.g. an error already wrapped into plain text by a
// layer upstream).
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var serr *sqlite.Error
	if errors.As(err, &serr) {
		switch serr.Code() {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_BUSY_RECOVERY, sqlite3.SQLITE_BUSY_SNAPSHOT,
			sqlite3.SQLITE_LOCKED, sqlite3.SQLITE_LOCKED_SHAREDCACHE, sqlite3.SQLITE_PROTOCOL:
			return true
		}
		return false
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "database is locked"):
		return true
	case strings.Contains(msg, "SQLITE_BUSY"):
		return true
	case strings.Contains(msg, "SQLITE_LOCKED"):
		return true
	case strings.Contains(msg, "connection reset"):
		return true
	case strings.Contains(msg, "driver: bad connection"):
		return true
	case strings.Contains(msg, "broken pipe"):
		return true
	default:
		return false
	}
}

// IsDuplicateKey reports whether err is a unique/primary-key constraint
// violation. The typed modernc.org/sqlite result code is checked first;
// the "UNIQUE constraint failed" / "Duplicate entry" substring match is
// the fallback for errors that reach here already stringified.
func IsDuplicateKey(err error) bool {
	if err == nil {
		return false
	}

	var serr *sqlite.Error
	if errors.As(err, &serr) {
		switch serr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		}
		return false
	}

	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "Duplicate entry")
}
