package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"novelhub/pkg/dberr"
)

// DB is the connection-lifecycle service. Every component receives one of
// these; nothing in the repository holds a package-level database handle.
type DB struct {
	mu   sync.Mutex
	db   *sql.DB
	path string
	cfg  Config
}

// Open opens (creating if needed) the SQLite database and applies the
// required pragmas. It does NOT migrate; call Migrate, or use OpenAndMigrate
// when no backup guard is wanted.
func Open(cfg Config) (*DB, error) {
	cfg = cfg.withDefaults()
	if err := EnsureDataDir(cfg); err != nil {
		return nil, fmt.Errorf("ensure data dir: %w", err)
	}

	db, err := sql.Open("sqlite3", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite has one writer at a time; a single pooled connection avoids
	// SQLITE_BUSY between our own goroutines.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeoutMS),
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("pragma %q: %w", p, err)
		}
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &DB{db: db, path: cfg.Path, cfg: cfg}, nil
}

// OpenAndMigrate is Open followed by Migrate to the current target version.
func OpenAndMigrate(ctx context.Context, cfg Config) (*DB, error) {
	d, err := Open(cfg)
	if err != nil {
		return nil, err
	}
	if err := d.Migrate(ctx); err != nil {
		_ = d.Close()
		return nil, err
	}
	return d, nil
}

func MustOpen(ctx context.Context, cfg Config) *DB {
	d, err := OpenAndMigrate(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to open db: %v", err)
	}
	return d
}

// Path returns the database file path.
func (d *DB) Path() string { return d.path }

// Config returns the configuration the database was opened with.
func (d *DB) Config() Config { return d.cfg }

// SQL exposes the raw handle for the repositories. Prefer WithReadTxn /
// WithWriteTxn for anything that writes.
func (d *DB) SQL() *sql.DB { return d.db }

func (d *DB) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.db == nil {
		return nil
	}
	err := d.db.Close()
	d.db = nil
	return err
}

// SchemaVersion reads the persisted schema version (PRAGMA user_version).
func (d *DB) SchemaVersion(ctx context.Context) (int, error) {
	var v int
	if err := d.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("read user_version: %w", err)
	}
	return v, nil
}

// Reset closes the handle and deletes the database files (including WAL
// side files). Used by restore; destructive.
func (d *DB) Reset() error {
	if err := d.Close(); err != nil {
		return fmt.Errorf("close before reset: %w", err)
	}
	return DeleteDatabase(d.path)
}

// DeleteDatabase removes a SQLite database and its -wal/-shm side files.
func DeleteDatabase(path string) error {
	for _, p := range []string{path, path + "-wal", path + "-shm"} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return dberr.New(dberr.Permission, "database", "delete", err)
		}
	}
	return nil
}
