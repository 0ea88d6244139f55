package schemadb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ternarybob/arbor"
	_ "modernc.org/sqlite"
)

// jobsTableDDL and modelsTableDDL declare the two durable tables with
// their uniqueness constraints: UNIQUE(client, job_hash) on jobs;
// UNIQUE(job_id, _eng_params_hash) and UNIQUE(job_id, _eng_particle_hash)
// on models. Column order matches JobColumns/ModelColumns in columns.go.
const jobsTableDDL = `
CREATE TABLE IF NOT EXISTS jobs (
	job_id                        INTEGER PRIMARY KEY AUTOINCREMENT,
	client                        TEXT NOT NULL,
	client_info                   TEXT NOT NULL DEFAULT '',
	client_key                    TEXT NOT NULL DEFAULT '',
	cmd_line                      TEXT NOT NULL,
	params                        TEXT NOT NULL DEFAULT '',
	job_hash                      BLOB NOT NULL,
	status                        TEXT NOT NULL DEFAULT 'notStarted',
	completion_reason             TEXT,
	completion_msg                TEXT,
	worker_completion_reason      TEXT,
	worker_completion_msg         TEXT,
	cancel                        INTEGER NOT NULL DEFAULT 0,
	start_time                    INTEGER,
	end_time                      INTEGER,
	_eng_last_update_time         INTEGER NOT NULL DEFAULT 0,
	results                       TEXT,
	_eng_cjm_conn_id              TEXT,
	_eng_worker_state             TEXT,
	_eng_status                   TEXT,
	_eng_model_milestones         TEXT,
	minimum_workers               INTEGER NOT NULL DEFAULT 0,
	maximum_workers               INTEGER NOT NULL DEFAULT 0,
	priority                      INTEGER NOT NULL DEFAULT 0,
	_eng_allocate_new_workers     INTEGER NOT NULL DEFAULT 0,
	_eng_untended_dead_workers    INTEGER NOT NULL DEFAULT 0,
	num_failed_workers            INTEGER NOT NULL DEFAULT 0,
	last_failed_worker_error_msg  TEXT,
	_eng_job_type                 TEXT NOT NULL DEFAULT 'hypersearch',
	_eng_cleaning_status          TEXT NOT NULL DEFAULT 'notdone'
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_jobs_client_hash ON jobs(client, job_hash);
CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status);
CREATE INDEX IF NOT EXISTS idx_jobs_client_key ON jobs(client_key);
`

const modelsTableDDL = `
CREATE TABLE IF NOT EXISTS models (
	model_id              INTEGER PRIMARY KEY AUTOINCREMENT,
	job_id                INTEGER NOT NULL,
	params                TEXT NOT NULL DEFAULT '',
	_eng_params_hash      BLOB NOT NULL,
	_eng_particle_hash    BLOB NOT NULL,
	status                TEXT NOT NULL DEFAULT 'notStarted',
	completion_reason     TEXT,
	results               TEXT,
	optimized_metric      REAL,
	update_counter        INTEGER NOT NULL DEFAULT 0,
	num_records           INTEGER NOT NULL DEFAULT 0,
	cpu_time              REAL NOT NULL DEFAULT 0,
	model_checkpoint_id   TEXT,
	_eng_stop             TEXT,
	_eng_matured          INTEGER NOT NULL DEFAULT 0,
	_eng_last_update_time INTEGER NOT NULL DEFAULT 0,
	_eng_worker_conn_id   TEXT,
	start_time            INTEGER,
	end_time              INTEGER
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_models_job_params_hash ON models(job_id, _eng_params_hash);
CREATE UNIQUE INDEX IF NOT EXISTS idx_models_job_particle_hash ON models(job_id, _eng_particle_hash);
CREATE INDEX IF NOT EXISTS idx_models_job_id ON models(job_id);
CREATE INDEX IF NOT EXISTS idx_models_status ON models(status);
`

// Options configures namespace resolution and the underlying connection
// pool, plus the namespace versioning/reset controls.
type Options struct {
	Dir             string
	NameSuffix      string
	BusyTimeoutMS   int
	CacheSizeMB     int
	WALMode         bool
	MaxOpenConns    int
	ResetOnStartup  bool
	DropOldVersions bool
	Environment     string
	SchemaVersion   int
	RootName        string
}

// Namespace computes <root>_v<version>_<suffix> with hyphens in suffix
// replaced by underscores.
func Namespace(rootName string, version int, suffix string) string {
	safeSuffix := strings.ReplaceAll(suffix, "-", "_")
	return fmt.Sprintf("%s_v%d_%s", rootName, version, safeSuffix)
}

// DB wraps the SQLite connection pool backing one namespace.
type DB struct {
	db        *sql.DB
	logger    arbor.ILogger
	Namespace string
}

// Open provisions the namespace and its tables:
//  1. optionally drop all namespaces for versions < current
//  2. optionally drop the current namespace (full reset)
//  3. create the namespace if absent
//  4. create each table if absent
//  5. discover column names and derive public names (done once, at
//     package init, via columns.go / BuildNameMaps)
func Open(ctx context.Context, opts Options, logger arbor.ILogger) (*DB, error) {
	if opts.RootName == "" {
		opts.RootName = "client_jobs"
	}
	if opts.Dir == "" {
		opts.Dir = "."
	}
	if opts.SchemaVersion == 0 {
		opts.SchemaVersion = 1
	}

	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	ns := Namespace(opts.RootName, opts.SchemaVersion, opts.NameSuffix)
	path := filepath.Join(opts.Dir, ns+".db")

	if opts.DropOldVersions {
		dropOldVersionFiles(opts.Dir, opts.RootName, opts.SchemaVersion, opts.NameSuffix, logger)
	}

	if opts.ResetOnStartup {
		if opts.Environment != "development" {
			logger.Warn().
				Str("environment", opts.Environment).
				Msg("resetOnStartup is enabled but environment is not 'development' - ignoring reset request for safety")
		} else if err := resetNamespaceFile(path, logger); err != nil {
			return nil, fmt.Errorf("failed to reset namespace: %w", err)
		}
	}

	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	maxOpen := opts.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 8
	}
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(maxOpen)

	d := &DB{db: sqlDB, logger: logger, Namespace: ns}

	if err := d.configure(opts); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to configure database: %w", err)
	}

	if err := d.InitSchema(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info().Str("namespace", ns).Str("path", path).Msg("CJCS schema initialized")
	return d, nil
}

func (d *DB) configure(opts Options) error {
	busyTimeout := opts.BusyTimeoutMS
	if busyTimeout <= 0 {
		busyTimeout = 5000
	}
	cacheSizeMB := opts.CacheSizeMB
	if cacheSizeMB <= 0 {
		cacheSizeMB = 20
	}

	pragmas := []string{
		fmt.Sprintf("PRAGMA busy_timeout = %d", busyTimeout),
		fmt.Sprintf("PRAGMA cache_size = -%d", cacheSizeMB*1024),
		"PRAGMA foreign_keys = ON",
		"PRAGMA synchronous = NORMAL",
	}
	if opts.WALMode {
		pragmas = append(pragmas, "PRAGMA journal_mode = WAL")
	}

	for _, p := range pragmas {
		if _, err := d.db.Exec(p); err != nil {
			return fmt.Errorf("failed to execute %s: %w", p, err)
		}
	}
	return nil
}

// InitSchema creates each table if absent. Repeated calls are safe
// (IF NOT EXISTS throughout).
func (d *DB) InitSchema(ctx context.Context) error {
	if _, err := d.db.ExecContext(ctx, jobsTableDDL); err != nil {
		return fmt.Errorf("failed to create jobs table: %w", err)
	}
	if _, err := d.db.ExecContext(ctx, modelsTableDDL); err != nil {
		return fmt.Errorf("failed to create models table: %w", err)
	}
	return nil
}

// Conn returns the underlying pool.
func (d *DB) Conn() *sql.DB { return d.db }

// Close closes the connection pool.
func (d *DB) Close() error {
	if d.db != nil {
		return d.db.Close()
	}
	return nil
}

func resetNamespaceFile(path string, logger arbor.ILogger) error {
	logger.Warn().Str("path", path).Msg("resetting CJCS namespace (deleting all data)")
	for _, suffix := range []string{"", "-wal", "-shm"} {
		if err := os.Remove(path + suffix); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to delete %s%s: %w", path, suffix, err)
		}
	}
	return nil
}

func dropOldVersionFiles(dir, rootName string, currentVersion int, suffix string, logger arbor.ILogger) {
	prefix := fmt.Sprintf("%s_v", rootName)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ".db") {
			continue
		}
		older := false
		for v := 0; v < currentVersion; v++ {
			if name == Namespace(rootName, v, suffix)+".db" {
				older = true
				break
			}
		}
		if !older {
			continue
		}
		full := filepath.Join(dir, name)
		if err := os.Remove(full); err != nil {
			logger.Warn().Str("path", full).Err(err).Msg("failed to drop old namespace file")
		} else {
			logger.Info().Str("path", full).Msg("dropped old namespace file")
		}
	}
}
