// Copyright 2026 The Gantry Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gantry-foundation/gantry/lib/ref"
	"github.com/gantry-foundation/gantry/lib/secret"
	"github.com/gantry-foundation/gantry/messaging"
	"github.com/gantry-foundation/gantry/store"
)

// UsersConfig carries the dependencies for a Users registry.
type UsersConfig struct {
	Store      *store.Store
	Client     *messaging.Client
	AppService *messaging.AppService

	// SharedSecret enables double puppeting: with it the bridge can
	// log in as its users through the homeserver's shared-secret auth.
	// Nil leaves double puppeting disabled.
	SharedSecret *secret.Buffer

	Logger *slog.Logger
}

// Users tracks the real Matrix users the bridge acts for. Unlike
// puppets these rows are not created eagerly: a user exists in memory
// from first contact and is persisted once the bridge has something to
// remember about them.
type Users struct {
	store        *store.Store
	client       *messaging.Client
	appservice   *messaging.AppService
	sharedSecret *secret.Buffer
	logger       *slog.Logger

	mu    sync.Mutex
	users map[string]*User
}

// NewUsers builds the user registry.
func NewUsers(cfg UsersConfig) (*Users, error) {
	if cfg.Store == nil {
		return nil, errors.New("bridge: users store is required")
	}
	if cfg.Client == nil {
		return nil, errors.New("bridge: users client is required")
	}
	if cfg.AppService == nil {
		return nil, errors.New("bridge: users appservice is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Users{
		store:        cfg.Store,
		client:       cfg.Client,
		appservice:   cfg.AppService,
		sharedSecret: cfg.SharedSecret,
		logger:       logger,
		users:        make(map[string]*User),
	}, nil
}

// Get returns the live User for a Matrix ID, loading the persisted row
// if one exists. Every call for the same ID returns the same value.
func (u *Users) Get(ctx context.Context, mxid ref.UserID) (*User, error) {
	if mxid.IsZero() {
		return nil, errors.New("bridge: get user: user ID is required")
	}

	u.mu.Lock()
	defer u.mu.Unlock()

	if user, ok := u.users[mxid.String()]; ok {
		return user, nil
	}
	row, err := u.store.User(ctx, mxid)
	if err != nil {
		return nil, err
	}
	if row == nil {
		row = &store.User{MXID: mxid}
	}
	user := &User{users: u, row: row}
	u.users[mxid.String()] = user
	return user, nil
}

// Close shuts down every double-puppet session.
func (u *Users) Close() {
	u.mu.Lock()
	defer u.mu.Unlock()
	for _, user := range u.users {
		user.mu.Lock()
		if user.session != nil {
			user.session.Close()
			user.session = nil
		}
		user.mu.Unlock()
	}
}

// User is one real Matrix user from the bridge's point of view: their
// persisted row plus, when double puppeting is connected, a session
// acting as them.
type User struct {
	users *Users

	mu      sync.Mutex
	row     *store.User
	session *messaging.UserSession
}

// MXID returns the user's Matrix ID.
func (u *User) MXID() ref.UserID {
	return u.row.MXID
}

// NoticeRoom returns the user's bridge-notice room, zero when none has
// been set.
func (u *User) NoticeRoom() ref.RoomID {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.row.NoticeRoom
}

// SetNoticeRoom records where bridge notices for this user go. This is
// the first write for a fresh user, so it persists the row.
func (u *User) SetNoticeRoom(ctx context.Context, roomID ref.RoomID) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	updated := *u.row
	updated.NoticeRoom = roomID
	if err := u.users.store.UpsertUser(ctx, &updated); err != nil {
		return err
	}
	*u.row = updated
	return nil
}

// ConnectDoublePuppet logs in as the user through the homeserver's
// shared-secret auth and caches the session. It returns (nil, nil)
// when double puppeting is disabled. The homeserver's answer is
// checked against the requested ID; a mismatch means the secret
// belongs to a different auth provider and the session is discarded.
func (u *User) ConnectDoublePuppet(ctx context.Context) (*messaging.UserSession, error) {
	if u.users.sharedSecret == nil {
		return nil, nil
	}

	u.mu.Lock()
	defer u.mu.Unlock()

	if u.session != nil {
		return u.session, nil
	}
	session, err := u.users.client.LoginSharedSecret(ctx, u.row.MXID, u.users.sharedSecret)
	if err != nil {
		return nil, fmt.Errorf("bridge: double puppet %s: %w", u.row.MXID, err)
	}
	if session.UserID() != u.row.MXID {
		session.Close()
		return nil, fmt.Errorf("bridge: double puppet %s: homeserver logged in %s instead",
			u.row.MXID, session.UserID())
	}
	u.session = session
	u.users.logger.Info("connected double puppet", "user_id", u.row.MXID)
	return session, nil
}

// SendBridgeNotice posts a status notice to the user's notice room as
// the bridge bot. Without a notice room the notice is dropped.
func (u *User) SendBridgeNotice(ctx context.Context, text string) error {
	room := u.NoticeRoom()
	if room.IsZero() {
		return nil
	}
	_, err := u.users.appservice.Bot().SendNotice(ctx, room, text)
	return err
}
