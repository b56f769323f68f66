// Copyright 2026 The Gantry Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"fmt"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/gantry-foundation/gantry/lib/ref"
)

// Puppet is one row of the puppet table: the bridge's durable record
// of a ghosted remote user.
type Puppet struct {
	// RemoteID is the user's identifier on the remote network.
	RemoteID string

	// Name is the last observed remote display name. Empty means the
	// remote profile carries no name.
	Name string

	// AvatarPath is the remote network's reference for the avatar
	// image (its download path). Empty means no avatar. Profile sync
	// compares this, not image bytes.
	AvatarPath string

	// AvatarMXC is the Matrix content URI the avatar was uploaded to.
	// Zero when the puppet has no avatar on the homeserver.
	AvatarMXC ref.ContentURI

	// NameSet records whether the formatted displayname is currently
	// applied on the homeserver.
	NameSet bool

	// AvatarSet records whether AvatarMXC is currently applied on the
	// homeserver.
	AvatarSet bool

	// Registered records whether the ghost account exists on the
	// homeserver.
	Registered bool
}

const puppetColumns = "remote_id, name, avatar_path, avatar_mxc, name_set, avatar_set, registered"

// Puppet returns the puppet row for a remote id, or (nil, nil) when no
// row exists.
func (s *Store) Puppet(ctx context.Context, remoteID string) (*Puppet, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("store: get puppet: %w", err)
	}
	defer s.pool.Put(conn)

	var puppet *Puppet
	err = sqlitex.Execute(conn, "SELECT "+puppetColumns+" FROM puppet WHERE remote_id = ?", &sqlitex.ExecOptions{
		Args: []any{remoteID},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			scanned, err := scanPuppet(stmt)
			if err != nil {
				return err
			}
			puppet = scanned
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("store: get puppet %q: %w", remoteID, err)
	}
	return puppet, nil
}

// InsertPuppet creates a new puppet row. Returns an error wrapping
// ErrAlreadyExists if a row with the same remote id is present — the
// caller created without resolving first.
func (s *Store) InsertPuppet(ctx context.Context, puppet *Puppet) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("store: insert puppet: %w", err)
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn, `INSERT INTO puppet
		(remote_id, name, avatar_path, avatar_mxc, name_set, avatar_set, registered)
		VALUES (?, ?, ?, ?, ?, ?, ?)`, &sqlitex.ExecOptions{
		Args: []any{
			puppet.RemoteID,
			puppet.Name,
			puppet.AvatarPath,
			puppet.AvatarMXC.String(),
			boolInt(puppet.NameSet),
			boolInt(puppet.AvatarSet),
			boolInt(puppet.Registered),
		},
	})
	if err != nil {
		if isConstraintViolation(err) {
			return fmt.Errorf("store: insert puppet %q: %w", puppet.RemoteID, ErrAlreadyExists)
		}
		return fmt.Errorf("store: insert puppet %q: %w", puppet.RemoteID, err)
	}
	return nil
}

// UpdatePuppet overwrites the puppet row identified by RemoteID.
// Errors if the row does not exist.
func (s *Store) UpdatePuppet(ctx context.Context, puppet *Puppet) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("store: update puppet: %w", err)
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn, `UPDATE puppet SET
		name = ?, avatar_path = ?, avatar_mxc = ?,
		name_set = ?, avatar_set = ?, registered = ?
		WHERE remote_id = ?`, &sqlitex.ExecOptions{
		Args: []any{
			puppet.Name,
			puppet.AvatarPath,
			puppet.AvatarMXC.String(),
			boolInt(puppet.NameSet),
			boolInt(puppet.AvatarSet),
			boolInt(puppet.Registered),
			puppet.RemoteID,
		},
	})
	if err != nil {
		return fmt.Errorf("store: update puppet %q: %w", puppet.RemoteID, err)
	}
	if conn.Changes() == 0 {
		return fmt.Errorf("store: update puppet %q: row does not exist", puppet.RemoteID)
	}
	return nil
}

// Puppets returns every puppet row. Used by the setup binary's resync
// pass.
func (s *Store) Puppets(ctx context.Context) ([]*Puppet, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("store: list puppets: %w", err)
	}
	defer s.pool.Put(conn)

	var puppets []*Puppet
	err = sqlitex.Execute(conn, "SELECT "+puppetColumns+" FROM puppet ORDER BY remote_id", &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			scanned, err := scanPuppet(stmt)
			if err != nil {
				return err
			}
			puppets = append(puppets, scanned)
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("store: list puppets: %w", err)
	}
	return puppets, nil
}

func scanPuppet(stmt *sqlite.Stmt) (*Puppet, error) {
	puppet := &Puppet{
		RemoteID:   stmt.ColumnText(0),
		Name:       stmt.ColumnText(1),
		AvatarPath: stmt.ColumnText(2),
		NameSet:    stmt.ColumnInt(4) != 0,
		AvatarSet:  stmt.ColumnInt(5) != 0,
		Registered: stmt.ColumnInt(6) != 0,
	}

	if raw := stmt.ColumnText(3); raw != "" {
		mxc, err := ref.ParseContentURI(raw)
		if err != nil {
			return nil, fmt.Errorf("puppet %q has corrupt avatar_mxc: %w", puppet.RemoteID, err)
		}
		puppet.AvatarMXC = mxc
	}

	return puppet, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
