// Package cjcs implements a durable coordination store mediating between
// job submitters, a job manager, and the worker processes that execute
// models within jobs. It owns the authoritative state of every job and
// model evaluation and exposes the atomic primitives workers need to
// claim work, publish progress, and recover orphans.
package cjcs

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/cjcs/internal/common"
	"github.com/ternarybob/cjcs/internal/retry"
	"github.com/ternarybob/cjcs/internal/schemadb"
	"github.com/ternarybob/cjcs/internal/session"
)

// Handle is the process-scoped entry point: constructed once and passed
// to collaborators. It carries the memoized session identity, the
// connection pool, and the schema binding; every Jobs/Models API method
// hangs off it.
type Handle struct {
	cfg     *common.Config
	db      *schemadb.DB
	session *session.Session
	retry   *retry.Envelope
	logger  arbor.ILogger
}

// Open builds a Handle: it loads configuration (or uses defaults when
// configPath is empty), provisions the namespace and tables, opens the
// process session identity, and constructs the retry envelope from the
// configured back-off bounds.
func Open(ctx context.Context, configPath string) (*Handle, error) {
	cfg, err := common.LoadFromFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return OpenWithConfig(ctx, cfg)
}

// OpenWithConfig builds a Handle from an already-constructed Config,
// useful for callers that assemble configuration from flags/env rather
// than a TOML file.
func OpenWithConfig(ctx context.Context, cfg *common.Config) (*Handle, error) {
	logger := common.SetupLogger(cfg)

	db, err := schemadb.Open(ctx, schemadb.Options{
		Dir:             cfg.Database.Dir,
		NameSuffix:      cfg.Database.NameSuffix,
		BusyTimeoutMS:   cfg.Database.BusyTimeoutMS,
		CacheSizeMB:     cfg.Database.CacheSizeMB,
		WALMode:         cfg.Database.WALMode,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		ResetOnStartup:  cfg.Database.ResetOnStartup,
		DropOldVersions: cfg.Database.DropOldVersions,
		Environment:     cfg.Database.Environment,
		SchemaVersion:   schemaVersion,
		RootName:        dbRootName,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open schema: %w", err)
	}

	sess, err := session.New(ctx, db.Conn())
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open session: %w", err)
	}

	initialDelay, err := time.ParseDuration(cfg.Retry.InitialDelay)
	if err != nil {
		initialDelay = 100 * time.Millisecond
	}
	maxDeadline, err := time.ParseDuration(cfg.Retry.MaxDeadline)
	if err != nil {
		maxDeadline = 10 * time.Second
	}
	env := retry.New(cfg.Retry.MaxAttempts, initialDelay, maxDeadline, logger)

	logger.Info().
		Str("namespace", db.Namespace).
		Str("connId", sess.ConnID()).
		Msg("CJCS handle ready")

	return &Handle{cfg: cfg, db: db, session: sess, retry: env, logger: logger}, nil
}

// Close releases the underlying connection pool.
func (h *Handle) Close() error {
	return h.db.Close()
}

// ConnID returns this process's memoized ownership token.
func (h *Handle) ConnID() string {
	return h.session.ConnID()
}

// Namespace returns the physical namespace this handle is bound to.
func (h *Handle) Namespace() string {
	return h.db.Namespace
}

// GetDBName returns the computed namespace, the operation backing the
// --getDBName CLI surface.
func GetDBName(cfg *common.Config) string {
	return schemadb.Namespace(dbRootName, schemaVersion, cfg.Database.NameSuffix)
}
