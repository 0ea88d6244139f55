package common

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Config is the configuration recognized by CJCS: sensible defaults
// applied first, then a TOML file on top. Environment variables and
// flags are not read into it.
type Config struct {
	Database DatabaseConfig `toml:"database"`
	Logging  LoggingConfig  `toml:"logging"`
	Retry    RetryConfig    `toml:"retry"`
}

// DatabaseConfig controls the physical namespace and the SQLite
// connection beneath it. NameSuffix is the only field documented as part
// of the public contract; the rest are operational knobs in the
// teacher's own StorageConfig/SQLiteConfig shape.
type DatabaseConfig struct {
	// Dir is the directory the namespace file lives under.
	Dir string `toml:"dir"`
	// NameSuffix is appended to dbRootName to form the namespace, with
	// hyphens replaced by underscores.
	NameSuffix string `toml:"nameSuffix"`
	// BusyTimeoutMS bounds how long SQLite itself blocks before
	// returning SQLITE_BUSY to a writer contending for the single
	// write lock.
	BusyTimeoutMS int `toml:"busyTimeoutMs"`
	// CacheSizeMB sets SQLite's page cache size.
	CacheSizeMB int `toml:"cacheSizeMb"`
	// WALMode enables write-ahead logging, letting readers proceed
	// while a writer holds the lock.
	WALMode bool `toml:"walMode"`
	// MaxOpenConns bounds the connection pool; concurrent writers
	// beyond SQLite's single-writer lock queue behind busy_timeout
	// and the Retry Envelope.
	MaxOpenConns int `toml:"maxOpenConns"`
	// ResetOnStartup deletes the namespace file before provisioning.
	// Refused outside Environment == "development".
	ResetOnStartup bool `toml:"resetOnStartup"`
	// DropOldVersions drops every namespace file for schema versions
	// older than the compiled-in version before provisioning.
	DropOldVersions bool `toml:"dropOldVersions"`
	Environment     string `toml:"environment"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Output string `toml:"output"`
}

// RetryConfig bounds the Retry Envelope's back-off.
type RetryConfig struct {
	MaxAttempts  int    `toml:"maxAttempts"`
	InitialDelay string `toml:"initialDelay"`
	MaxDeadline  string `toml:"maxDeadline"`
}

// Default returns the baseline configuration: a fully-populated Config
// before any file or flag overrides are applied.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Dir:             "./data",
			NameSuffix:      "dev",
			BusyTimeoutMS:   5000,
			CacheSizeMB:     20,
			WALMode:         true,
			MaxOpenConns:    8,
			ResetOnStartup:  false,
			DropOldVersions: false,
			Environment:     "development",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: "console",
		},
		Retry: RetryConfig{
			MaxAttempts:  5,
			InitialDelay: "100ms",
			MaxDeadline:  "10s",
		},
	}
}

// LoadFromFile loads a TOML file on top of Default() (defaults -> file);
// no environment or CLI overrides are applied.
// An empty path is a no-op: Default() alone is returned.
func LoadFromFile(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return cfg, nil
}
