// Copyright 2026 The Gantry Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"errors"
	"fmt"
	"log/slog"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/gantry-foundation/gantry/lib/sqlitepool"
)

// ErrAlreadyExists is returned by insert methods when the row is
// already present. Hitting it means the caller created without
// resolving first; the caller must surface it, not retry.
var ErrAlreadyExists = errors.New("store: row already exists")

// migrations is the ordered schema history. PRAGMA user_version
// records how many entries have been applied; never reorder or edit an
// entry that has shipped, only append.
var migrations = []string{
	// Identity mapping: ghosts and bridge users.
	`CREATE TABLE puppet (
		remote_id  TEXT PRIMARY KEY,
		name       TEXT NOT NULL DEFAULT '',
		registered INTEGER NOT NULL DEFAULT 0
	);
	CREATE TABLE user (
		mxid        TEXT PRIMARY KEY,
		notice_room TEXT NOT NULL DEFAULT ''
	);`,

	// Avatar state on puppets.
	`ALTER TABLE puppet ADD COLUMN avatar_path TEXT NOT NULL DEFAULT '';
	ALTER TABLE puppet ADD COLUMN avatar_mxc TEXT NOT NULL DEFAULT '';
	ALTER TABLE puppet ADD COLUMN name_set INTEGER NOT NULL DEFAULT 0;
	ALTER TABLE puppet ADD COLUMN avatar_set INTEGER NOT NULL DEFAULT 0;`,

	// Media dedup cache: remote path → content hash → MXC.
	`CREATE TABLE media (
		remote_path  TEXT PRIMARY KEY,
		content_hash TEXT NOT NULL,
		mxc          TEXT NOT NULL,
		uploaded_at  INTEGER NOT NULL
	);
	CREATE INDEX idx_media_hash ON media(content_hash);`,

	// Placeholder identities with a profile-keyed reuse pool.
	`CREATE TABLE stranger (
		remote_id   TEXT PRIMARY KEY,
		name        TEXT NOT NULL,
		avatar_path TEXT NOT NULL,
		available   INTEGER NOT NULL DEFAULT 0
	);
	CREATE UNIQUE INDEX idx_stranger_profile ON stranger(name, avatar_path);`,

	// Remote-network login credentials, password sealed with age.
	`CREATE TABLE login_credential (
		mxid            TEXT PRIMARY KEY,
		email           TEXT NOT NULL,
		password_sealed TEXT NOT NULL
	);`,
}

// Config holds the parameters for opening the bridge store.
type Config struct {
	// Path is the filesystem path to the SQLite database file. The
	// parent directory must exist. Required.
	Path string

	// PoolSize is the connection pool size. Defaults to 4 if zero or
	// negative.
	PoolSize int

	// Logger receives operational messages. Nil means discard.
	Logger *slog.Logger
}

// Store provides typed access to the bridge database. Safe for
// concurrent use; every method borrows a pooled connection for its
// duration.
type Store struct {
	pool   *sqlitepool.Pool
	logger *slog.Logger
}

// Open opens (creating if needed) the bridge database and brings the
// schema up to date. The caller must call Close when done.
func Open(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("store: Path is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:      cfg.Path,
		PoolSize:  cfg.PoolSize,
		Logger:    logger,
		OnConnect: applyMigrations,
	})
	if err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}

	return &Store{pool: pool, logger: logger}, nil
}

// Close closes the underlying connection pool. Blocks until all
// borrowed connections are returned.
func (s *Store) Close() error {
	return s.pool.Close()
}

// applyMigrations runs the pending tail of the migration list. It runs
// once per pooled connection; the IMMEDIATE transaction makes the
// version check and the schema changes atomic against other
// connections doing the same.
func applyMigrations(conn *sqlite.Conn) (err error) {
	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return fmt.Errorf("store: begin migration transaction: %w", err)
	}
	defer endTransaction(&err)

	version, err := schemaVersion(conn)
	if err != nil {
		return err
	}
	if version > len(migrations) {
		return fmt.Errorf("store: database schema version %d is newer than this binary (max %d)", version, len(migrations))
	}
	if version == len(migrations) {
		return nil
	}

	for index := version; index < len(migrations); index++ {
		if err := sqlitex.ExecuteScript(conn, migrations[index], nil); err != nil {
			return fmt.Errorf("store: applying migration %d: %w", index+1, err)
		}
	}

	// PRAGMA does not accept bound parameters; the value is a trusted
	// constant.
	setVersion := fmt.Sprintf("PRAGMA user_version = %d", len(migrations))
	if err := sqlitex.ExecuteTransient(conn, setVersion, nil); err != nil {
		return fmt.Errorf("store: recording schema version: %w", err)
	}

	return nil
}

func schemaVersion(conn *sqlite.Conn) (int, error) {
	var version int
	err := sqlitex.ExecuteTransient(conn, "PRAGMA user_version", &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			version = stmt.ColumnInt(0)
			return nil
		},
	})
	if err != nil {
		return 0, fmt.Errorf("store: reading schema version: %w", err)
	}
	return version, nil
}

// isConstraintViolation reports whether err is a SQLite constraint
// failure (primary key or unique index).
func isConstraintViolation(err error) bool {
	return sqlite.ErrCode(err).ToPrimary() == sqlite.ResultConstraint
}
