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

// User is one row of the user table: a real Matrix account that uses
// the bridge.
type User struct {
	// MXID is the user's Matrix ID.
	MXID ref.UserID

	// NoticeRoom is the room where the bridge posts status notices to
	// this user. Zero until the bridge creates one.
	NoticeRoom ref.RoomID
}

// User returns the row for a Matrix ID, or (nil, nil) when the user is
// unknown to the bridge.
func (s *Store) User(ctx context.Context, mxid ref.UserID) (*User, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("store: get user: %w", err)
	}
	defer s.pool.Put(conn)

	var user *User
	err = sqlitex.Execute(conn, "SELECT mxid, notice_room FROM user WHERE mxid = ?", &sqlitex.ExecOptions{
		Args: []any{mxid.String()},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			scanned, err := scanUser(stmt)
			if err != nil {
				return err
			}
			user = scanned
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("store: get user %s: %w", mxid, err)
	}
	return user, nil
}

// UpsertUser creates or overwrites the row for user.MXID.
func (s *Store) UpsertUser(ctx context.Context, user *User) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("store: upsert user: %w", err)
	}
	defer s.pool.Put(conn)

	var noticeRoom string
	if !user.NoticeRoom.IsZero() {
		noticeRoom = user.NoticeRoom.String()
	}

	err = sqlitex.Execute(conn, `INSERT INTO user (mxid, notice_room) VALUES (?, ?)
		ON CONFLICT(mxid) DO UPDATE SET notice_room = excluded.notice_room`, &sqlitex.ExecOptions{
		Args: []any{user.MXID.String(), noticeRoom},
	})
	if err != nil {
		return fmt.Errorf("store: upsert user %s: %w", user.MXID, err)
	}
	return nil
}

func scanUser(stmt *sqlite.Stmt) (*User, error) {
	mxid, err := ref.ParseUserID(stmt.ColumnText(0))
	if err != nil {
		return nil, fmt.Errorf("user row has corrupt mxid: %w", err)
	}

	user := &User{MXID: mxid}
	if raw := stmt.ColumnText(1); raw != "" {
		room, err := ref.ParseRoomID(raw)
		if err != nil {
			return nil, fmt.Errorf("user %s has corrupt notice_room: %w", mxid, err)
		}
		user.NoticeRoom = room
	}
	return user, nil
}
