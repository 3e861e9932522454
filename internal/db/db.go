// Package db provides SQLite database initialization and access.
package db

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// DefaultPath returns $XDG_CONFIG_HOME/johap/johap.db, falling back to
// ~/.config/johap/johap.db.
func DefaultPath() (string, error) {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "johap", "johap.db"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".config", "johap", "johap.db"), nil
}

// dsn builds the go-sqlite3 connection string. Foreign keys and the busy
// timeout are per connection, so they go in the DSN rather than a pragma.
// _txlock=immediate takes the write lock at BEGIN so concurrent conflict
// resolutions queue on the busy timeout instead of failing on upgrade.
func dsn(path string) string {
	return path + "?_foreign_keys=on&_txlock=immediate&_busy_timeout=5000"
}

// Open opens (or creates) the database at path, switches it to WAL and runs
// migrations.
func Open(path string) (*sql.DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory %s: %w", dir, err)
	}

	d, err := sql.Open("sqlite3", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := d.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, closeOnErr(d, fmt.Errorf("enabling WAL: %w", err))
	}
	if err := migrate(d); err != nil {
		return nil, closeOnErr(d, fmt.Errorf("running migrations: %w", err))
	}

	return d, nil
}

func closeOnErr(d *sql.DB, err error) error {
	if cerr := d.Close(); cerr != nil {
		return errors.Join(err, fmt.Errorf("closing database: %w", cerr))
	}
	return err
}
