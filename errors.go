package cjcs

import "errors"

// ErrInvalidOwnership is returned when an ownership-gated write affected
// zero rows because the caller's session identity did not match the
// stored owner (engCjmConnId / engWorkerConnId).
var ErrInvalidOwnership = errors.New("cjcs: invalid ownership")

// ErrNotFound is returned by reads and precondition-qualified writes that
// target a key with no matching row.
var ErrNotFound = errors.New("cjcs: not found")

// ErrInvalidJobHash is a programming error: the supplied hash exceeds
// HashMaxLen bytes.
var ErrInvalidJobHash = errors.New("cjcs: job hash exceeds 16 bytes")

// ErrInvalidClient is a programming error: the supplied client tag
// exceeds ClientMaxLen characters.
var ErrInvalidClient = errors.New("cjcs: client exceeds 8 characters")

// ErrEmptyCommandLine is a programming error: cmdLine must be non-empty.
var ErrEmptyCommandLine = errors.New("cjcs: cmdLine must not be empty")

// ErrDuplicateIDs is a programming error: a bulk request named the same
// identifier more than once.
var ErrDuplicateIDs = errors.New("cjcs: duplicate identifiers in bulk request")

// ErrRowCountMismatch is raised when a write that is documented to be
// fatal-on-zero-rows affects zero rows for a reason other than an
// ownership mismatch (e.g. the row does not exist at all).
var ErrRowCountMismatch = errors.New("cjcs: update affected zero rows")
