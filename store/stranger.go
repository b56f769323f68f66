// Copyright 2026 The Gantry Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// StrangerIDPrefix marks placeholder remote ids minted for
// participants whose true id the remote network hides. The prefix is
// lowercase so placeholder ids encode to valid ghost localparts.
const StrangerIDPrefix = "_stranger_"

// Stranger is one row of the stranger table: a placeholder identity
// standing in for a hidden remote user, recognized by its profile.
type Stranger struct {
	// RemoteID is the minted placeholder id (StrangerIDPrefix plus 32
	// hex characters). It doubles as the puppet table key for the
	// stranger's ghost.
	RemoteID string

	// Name and AvatarPath form the profile key: a hidden participant
	// is assumed to be the same stranger as long as both match.
	Name       string
	AvatarPath string

	// Available marks the row as reusable: its former profile
	// disappeared and a new hidden participant may claim the
	// placeholder instead of minting another ghost.
	Available bool
}

// NewStrangerID mints a fresh placeholder remote id.
func NewStrangerID() string {
	identifier := uuid.New()
	return StrangerIDPrefix + hex.EncodeToString(identifier[:])
}

// IsStrangerID reports whether a remote id is a minted placeholder
// rather than a real remote-network id.
func IsStrangerID(remoteID string) bool {
	return strings.HasPrefix(remoteID, StrangerIDPrefix)
}

// Stranger returns the row for a placeholder id, or (nil, nil).
func (s *Store) Stranger(ctx context.Context, remoteID string) (*Stranger, error) {
	return s.queryStranger(ctx, "WHERE remote_id = ?", remoteID)
}

// StrangerByProfile returns the row whose profile key matches, or
// (nil, nil).
func (s *Store) StrangerByProfile(ctx context.Context, name, avatarPath string) (*Stranger, error) {
	return s.queryStranger(ctx, "WHERE name = ? AND avatar_path = ?", name, avatarPath)
}

// AvailableStranger returns a reusable row from the pool, or
// (nil, nil) when none is available.
func (s *Store) AvailableStranger(ctx context.Context) (*Stranger, error) {
	return s.queryStranger(ctx, "WHERE available = 1 LIMIT 1")
}

func (s *Store) queryStranger(ctx context.Context, clause string, args ...any) (*Stranger, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("store: get stranger: %w", err)
	}
	defer s.pool.Put(conn)

	var stranger *Stranger
	query := "SELECT remote_id, name, avatar_path, available FROM stranger " + clause
	err = sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
		Args: args,
		ResultFunc: func(stmt *sqlite.Stmt) error {
			stranger = &Stranger{
				RemoteID:   stmt.ColumnText(0),
				Name:       stmt.ColumnText(1),
				AvatarPath: stmt.ColumnText(2),
				Available:  stmt.ColumnInt(3) != 0,
			}
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("store: get stranger: %w", err)
	}
	return stranger, nil
}

// InsertStranger creates a new placeholder row. Returns an error
// wrapping ErrAlreadyExists when either the placeholder id or the
// profile key is already taken.
func (s *Store) InsertStranger(ctx context.Context, stranger *Stranger) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("store: insert stranger: %w", err)
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn, `INSERT INTO stranger (remote_id, name, avatar_path, available)
		VALUES (?, ?, ?, ?)`, &sqlitex.ExecOptions{
		Args: []any{stranger.RemoteID, stranger.Name, stranger.AvatarPath, boolInt(stranger.Available)},
	})
	if err != nil {
		if isConstraintViolation(err) {
			return fmt.Errorf("store: insert stranger %q: %w", stranger.RemoteID, ErrAlreadyExists)
		}
		return fmt.Errorf("store: insert stranger %q: %w", stranger.RemoteID, err)
	}
	return nil
}

// UpdateStranger overwrites the row identified by RemoteID. Used when
// a pooled placeholder is claimed for a new profile. Errors if the row
// does not exist.
func (s *Store) UpdateStranger(ctx context.Context, stranger *Stranger) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("store: update stranger: %w", err)
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn, `UPDATE stranger SET name = ?, avatar_path = ?, available = ?
		WHERE remote_id = ?`, &sqlitex.ExecOptions{
		Args: []any{stranger.Name, stranger.AvatarPath, boolInt(stranger.Available), stranger.RemoteID},
	})
	if err != nil {
		return fmt.Errorf("store: update stranger %q: %w", stranger.RemoteID, err)
	}
	if conn.Changes() == 0 {
		return fmt.Errorf("store: update stranger %q: row does not exist", stranger.RemoteID)
	}
	return nil
}

// MarkStrangerAvailable moves a placeholder into or out of the reuse
// pool.
func (s *Store) MarkStrangerAvailable(ctx context.Context, remoteID string, available bool) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("store: mark stranger: %w", err)
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn, "UPDATE stranger SET available = ? WHERE remote_id = ?", &sqlitex.ExecOptions{
		Args: []any{boolInt(available), remoteID},
	})
	if err != nil {
		return fmt.Errorf("store: mark stranger %q: %w", remoteID, err)
	}
	if conn.Changes() == 0 {
		return fmt.Errorf("store: mark stranger %q: row does not exist", remoteID)
	}
	return nil
}
