package db

import (
	"database/sql"
	"fmt"
	"log/slog"
)

// migrations is an ordered list of SQL statements to run.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS unions (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		slug       TEXT    NOT NULL UNIQUE,
		name       TEXT    NOT NULL,
		status     TEXT    NOT NULL DEFAULT 'ACTIVE' CHECK (status IN ('ACTIVE', 'INACTIVE')),
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS auth_users (
		id           TEXT PRIMARY KEY,
		email        TEXT NOT NULL DEFAULT '',
		display_name TEXT NOT NULL DEFAULT '',
		created_at   DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS identities (
		id               INTEGER PRIMARY KEY AUTOINCREMENT,
		auth_user_id     TEXT    NOT NULL REFERENCES auth_users(id) ON DELETE CASCADE,
		provider         TEXT    NOT NULL,
		provider_user_id TEXT    NOT NULL,
		created_at       DATETIME DEFAULT CURRENT_TIMESTAMP,
		last_login_at    DATETIME,
		UNIQUE (provider, provider_user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS users (
		id              TEXT    PRIMARY KEY,
		union_id        INTEGER REFERENCES unions(id) ON DELETE CASCADE,
		name            TEXT    NOT NULL DEFAULT '',
		phone           TEXT    NOT NULL DEFAULT '',
		birth_date      TEXT    NOT NULL DEFAULT '',
		role            TEXT    NOT NULL DEFAULT 'USER' CHECK (role IN ('SYSTEM_ADMIN', 'ADMIN', 'USER')),
		user_status     TEXT    NOT NULL DEFAULT 'PENDING_PROFILE'
			CHECK (user_status IN ('PENDING_PROFILE', 'PENDING_APPROVAL', 'APPROVED', 'REJECTED')),
		claimed_pnu     TEXT    NOT NULL DEFAULT '',
		claimed_dong    TEXT    NOT NULL DEFAULT '',
		claimed_ho      TEXT    NOT NULL DEFAULT '',
		claimed_address TEXT    NOT NULL DEFAULT '',
		rejected_reason TEXT    NOT NULL DEFAULT '',
		approved_at     DATETIME,
		created_at      DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at      DATETIME DEFAULT CURRENT_TIMESTAMP,
		CHECK ((role = 'SYSTEM_ADMIN') = (union_id IS NULL))
	)`,
	`CREATE INDEX IF NOT EXISTS idx_users_union_status ON users(union_id, user_status)`,
	`CREATE TABLE IF NOT EXISTS user_auth_links (
		auth_user_id TEXT NOT NULL REFERENCES auth_users(id) ON DELETE CASCADE,
		user_id      TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		created_at   DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (auth_user_id, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS property_units (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		union_id      INTEGER NOT NULL REFERENCES unions(id) ON DELETE CASCADE,
		pnu           TEXT    NOT NULL,
		dong          TEXT    NOT NULL DEFAULT '',
		ho            TEXT    NOT NULL DEFAULT '',
		address       TEXT    NOT NULL,
		land_area     REAL,
		building_area REAL,
		latitude      REAL,
		longitude     REAL,
		raw_json      TEXT    NOT NULL DEFAULT '{}',
		created_at    DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (union_id, pnu, dong, ho)
	)`,
	`CREATE TABLE IF NOT EXISTS ownerships (
		id               INTEGER PRIMARY KEY AUTOINCREMENT,
		property_unit_id INTEGER NOT NULL REFERENCES property_units(id) ON DELETE CASCADE,
		user_id          TEXT    NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		ownership_type   TEXT    NOT NULL CHECK (ownership_type IN ('OWNER', 'CO_OWNER', 'FAMILY')),
		is_active        INTEGER NOT NULL DEFAULT 1,
		created_at       DATETIME DEFAULT CURRENT_TIMESTAMP,
		ended_at         DATETIME
	)`,
	`CREATE INDEX IF NOT EXISTS idx_ownerships_unit ON ownerships(property_unit_id, is_active)`,
	`CREATE TABLE IF NOT EXISTS ownership_events (
		id               INTEGER PRIMARY KEY AUTOINCREMENT,
		property_unit_id INTEGER NOT NULL REFERENCES property_units(id) ON DELETE CASCADE,
		user_id          TEXT    NOT NULL,
		event            TEXT    NOT NULL,
		note             TEXT    NOT NULL DEFAULT '',
		created_at       DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS conflicts (
		id               INTEGER PRIMARY KEY AUTOINCREMENT,
		union_id         INTEGER NOT NULL REFERENCES unions(id) ON DELETE CASCADE,
		property_unit_id INTEGER NOT NULL REFERENCES property_units(id) ON DELETE CASCADE,
		pending_user_id  TEXT    NOT NULL,
		existing_user_id TEXT    NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		kind             TEXT    NOT NULL CHECK (kind IN ('OWNERSHIP', 'DUPLICATE')),
		status           TEXT    NOT NULL DEFAULT 'OPEN' CHECK (status IN ('OPEN', 'RESOLVED', 'DISMISSED')),
		action           TEXT    NOT NULL DEFAULT '',
		note             TEXT    NOT NULL DEFAULT '',
		resolved_by      TEXT    NOT NULL DEFAULT '',
		resolved_at      DATETIME,
		created_at       DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (property_unit_id, pending_user_id, existing_user_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_conflicts_union_status ON conflicts(union_id, status)`,
	`CREATE TABLE IF NOT EXISTS notices (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		union_id   INTEGER NOT NULL REFERENCES unions(id) ON DELETE CASCADE,
		title      TEXT    NOT NULL,
		body       TEXT    NOT NULL,
		author_id  TEXT    NOT NULL DEFAULT '',
		pinned     INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME
	)`,
	`CREATE TABLE IF NOT EXISTS auth_tokens (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		token_hash TEXT     NOT NULL UNIQUE,
		email      TEXT     NOT NULL,
		expires_at DATETIME NOT NULL,
		used       INTEGER  DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS sessions (
		id           TEXT     PRIMARY KEY,
		auth_user_id TEXT     NOT NULL REFERENCES auth_users(id) ON DELETE CASCADE,
		expires_at   DATETIME NOT NULL,
		created_at   DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS passkey_credentials (
		id              TEXT    PRIMARY KEY,
		auth_user_id    TEXT    NOT NULL REFERENCES auth_users(id) ON DELETE CASCADE,
		name            TEXT    NOT NULL DEFAULT '',
		credential_json TEXT    NOT NULL,
		created_at      DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS api_keys (
		id           INTEGER  PRIMARY KEY AUTOINCREMENT,
		name         TEXT     NOT NULL,
		key_prefix   TEXT     NOT NULL,
		key_hash     TEXT     NOT NULL UNIQUE,
		auth_user_id TEXT     NOT NULL REFERENCES auth_users(id) ON DELETE CASCADE,
		created_at   DATETIME DEFAULT CURRENT_TIMESTAMP,
		last_used_at DATETIME
	)`,
	`CREATE TABLE IF NOT EXISTS access_tokens (
		id           INTEGER  PRIMARY KEY AUTOINCREMENT,
		union_id     INTEGER  NOT NULL REFERENCES unions(id) ON DELETE CASCADE,
		name         TEXT     NOT NULL,
		key_prefix   TEXT     NOT NULL,
		token_hash   TEXT     NOT NULL UNIQUE,
		expires_at   DATETIME,
		max_uses     INTEGER,
		use_count    INTEGER  NOT NULL DEFAULT 0,
		revoked_at   DATETIME,
		created_at   DATETIME DEFAULT CURRENT_TIMESTAMP,
		created_by   TEXT     NOT NULL DEFAULT '',
		last_used_at DATETIME
	)`,
}

type columnMigration struct {
	table, column, definition string
}

// columnMigrations add columns to tables created by an earlier schema.
// Fresh databases get every column from the CREATE statements above.
var columnMigrations []columnMigration

// migrate runs all migrations in order.
func migrate(db *sql.DB) error {
	for i, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}

	return addColumns(db, columnMigrations)
}

func addColumns(db *sql.DB, cms []columnMigration) error {
	for _, cm := range cms {
		if err := addColumnIfNotExists(db, cm.table, cm.column, cm.definition); err != nil {
			return fmt.Errorf("adding %s.%s: %w", cm.table, cm.column, err)
		}
	}
	return nil
}

// addColumnIfNotExists adds a column to a table if it doesn't already exist.
func addColumnIfNotExists(db *sql.DB, table, column, definition string) error {
	exists, err := columnExists(db, table, column)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	_, err = db.Exec(fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, definition))
	return err
}

func columnExists(db *sql.DB, table, column string) (bool, error) {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false, fmt.Errorf("checking table info: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			slog.Warn("closing rows", "err", cerr)
		}
	}()

	for rows.Next() {
		var cid int
		var name, colType string
		var notNull, pk int
		var dfltValue interface{}
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dfltValue, &pk); err != nil {
			return false, fmt.Errorf("scanning column info: %w", err)
		}
		if name == column {
			return true, nil
		}
	}
	if err := rows.Err(); err != nil {
		return false, fmt.Errorf("iterating columns: %w", err)
	}

	return false, nil
}
