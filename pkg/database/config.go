package database

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	// Path is the SQLite database file. Empty means ~/.novelhub/library.db.
	Path string `env:"NOVELHUB_DB_PATH"`

	// BackupDir is where pre-migration snapshots land. Empty means a
	// "backups" directory next to the database file.
	BackupDir string `env:"NOVELHUB_BACKUP_DIR"`

	// BusyTimeoutMS is handed to PRAGMA busy_timeout.
	BusyTimeoutMS int `env:"NOVELHUB_DB_BUSY_TIMEOUT_MS" envDefault:"5000"`
}

// LoadConfig reads the database configuration from the environment and fills
// in local defaults.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse database env: %w", err)
	}
	return cfg.withDefaults(), nil
}

// DefaultConfig is LoadConfig without the error, for the small cmd tools.
func DefaultConfig() Config {
	cfg, err := LoadConfig()
	if err != nil {
		return Config{BusyTimeoutMS: 5000}.withDefaults()
	}
	return cfg
}

func (c Config) withDefaults() Config {
	if c.Path == "" {
		home, err := os.UserHomeDir()
		if err != nil || home == "" {
			home = "."
		}
		c.Path = filepath.Join(home, ".novelhub", "library.db")
	}
	if c.BackupDir == "" {
		c.BackupDir = filepath.Join(filepath.Dir(c.Path), "backups")
	}
	return c
}

func EnsureDataDir(cfg Config) error {
	return os.MkdirAll(filepath.Dir(cfg.Path), 0o755)
}
