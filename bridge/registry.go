// Copyright 2026 The Gantry Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gantry-foundation/gantry/lib/identity"
	"github.com/gantry-foundation/gantry/lib/ref"
	"github.com/gantry-foundation/gantry/messaging"
	"github.com/gantry-foundation/gantry/store"
)

// Config holds the dependencies of a Registry.
type Config struct {
	// Store persists puppet, stranger, and media state.
	Store *store.Store

	// Codec translates remote ids to ghost user IDs and back.
	Codec *identity.Codec

	// Formatter renders observed remote names into ghost display names.
	Formatter *identity.DisplayNameFormatter

	// AppService issues per-ghost intents.
	AppService *messaging.AppService

	// Avatars applies observed avatar images to the homeserver's media
	// repository. Required: a puppet with an observed avatar always
	// gets one.
	Avatars AvatarApplier

	// Logger is used for structured logging. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// Registry resolves remote-network identities to live puppets. It
// backs the in-memory cache with the store and creates rows lazily, so
// a resolve for a never-seen identity returns a fully persisted
// puppet. Safe for concurrent use; concurrent resolves of the same
// remote id are serialized and share one result.
type Registry struct {
	store      *store.Store
	codec      *identity.Codec
	formatter  *identity.DisplayNameFormatter
	appservice *messaging.AppService
	avatars    AvatarApplier
	logger     *slog.Logger

	// mu guards puppets and resolving. Resolve work (store reads,
	// inserts) happens outside mu, under the per-key mutex from
	// resolving, so slow resolves of different ids do not block each
	// other.
	mu        sync.Mutex
	puppets   map[string]*Puppet
	resolving map[string]*sync.Mutex

	// strangerMu serializes stranger allocation. Claiming a pooled
	// placeholder and minting a fresh one are read-then-write
	// sequences on the same table, so they run one at a time.
	strangerMu sync.Mutex
}

// New creates a Registry from its dependencies.
func New(cfg Config) (*Registry, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("bridge: Store is required")
	}
	if cfg.Codec == nil {
		return nil, fmt.Errorf("bridge: Codec is required")
	}
	if cfg.Formatter == nil {
		return nil, fmt.Errorf("bridge: Formatter is required")
	}
	if cfg.AppService == nil {
		return nil, fmt.Errorf("bridge: AppService is required")
	}
	if cfg.Avatars == nil {
		return nil, fmt.Errorf("bridge: Avatars is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Registry{
		store:      cfg.Store,
		codec:      cfg.Codec,
		formatter:  cfg.Formatter,
		appservice: cfg.AppService,
		avatars:    cfg.Avatars,
		logger:     logger,
		puppets:    make(map[string]*Puppet),
		resolving:  make(map[string]*sync.Mutex),
	}, nil
}

// Codec returns the identity codec the registry resolves with.
func (r *Registry) Codec() *identity.Codec {
	return r.codec
}

// GetByRemoteID resolves the puppet for a remote-network user id.
//
// Resolution is layered: a live puppet is returned as is; otherwise
// the store row is loaded and wrapped; otherwise, when createIfMissing
// is set, a blank row is inserted and wrapped. With createIfMissing
// false a never-seen id returns (nil, nil) and nothing is written.
//
// Errors only for invalid remote ids (ones that cannot form a ghost
// user ID) and for store failures.
func (r *Registry) GetByRemoteID(ctx context.Context, remoteID string, createIfMissing bool) (*Puppet, error) {
	// Reject ids that cannot have a ghost before touching any state.
	userID, err := r.codec.UserID(remoteID)
	if err != nil {
		return nil, fmt.Errorf("bridge: resolve %q: %w", remoteID, err)
	}

	r.mu.Lock()
	if puppet, ok := r.puppets[remoteID]; ok {
		r.mu.Unlock()
		return puppet, nil
	}
	keyLock, ok := r.resolving[remoteID]
	if !ok {
		keyLock = new(sync.Mutex)
		r.resolving[remoteID] = keyLock
	}
	r.mu.Unlock()

	keyLock.Lock()
	defer keyLock.Unlock()

	// A concurrent resolve may have finished while we waited on the
	// key lock.
	r.mu.Lock()
	if puppet, ok := r.puppets[remoteID]; ok {
		r.mu.Unlock()
		return puppet, nil
	}
	r.mu.Unlock()

	row, err := r.store.Puppet(ctx, remoteID)
	if err != nil {
		return nil, err
	}
	if row == nil {
		if !createIfMissing {
			return nil, nil
		}
		row = &store.Puppet{RemoteID: remoteID}
		if err := r.store.InsertPuppet(ctx, row); err != nil {
			return nil, err
		}
		r.logger.Info("created puppet", "remote_id", remoteID, "user_id", userID)
	}

	puppet := &Puppet{
		registry: r,
		row:      row,
		remoteID: remoteID,
		userID:   userID,
		intent:   r.appservice.Intent(userID),
	}

	r.mu.Lock()
	r.puppets[remoteID] = puppet
	r.mu.Unlock()
	return puppet, nil
}

// GetByUserID resolves the puppet behind a Matrix user ID. A user ID
// that is not one of this bridge's ghosts — wrong server, localpart
// outside the username template, or an id segment encoding could not
// have produced — is a miss: (nil, nil), never an error. The bot and
// real Matrix users land here constantly and must not look like
// failures.
func (r *Registry) GetByUserID(ctx context.Context, userID ref.UserID, createIfMissing bool) (*Puppet, error) {
	remoteID, ok := r.codec.RemoteID(userID)
	if !ok {
		return nil, nil
	}
	return r.GetByRemoteID(ctx, remoteID, createIfMissing)
}

// StrangerPuppet resolves the puppet for a remote user whose true id
// the network hides, identified only by profile (name and avatar
// path). An existing placeholder with the same profile is reused; an
// available pooled placeholder is claimed and rebound; otherwise a
// fresh placeholder id is minted. The returned puppet behaves like any
// other — its remote id just happens to be synthetic.
func (r *Registry) StrangerPuppet(ctx context.Context, name, avatarPath string) (*Puppet, error) {
	r.strangerMu.Lock()
	defer r.strangerMu.Unlock()

	stranger, err := r.store.StrangerByProfile(ctx, name, avatarPath)
	if err != nil {
		return nil, err
	}
	switch {
	case stranger == nil:
		stranger, err = r.claimOrMintStranger(ctx, name, avatarPath)
		if err != nil {
			return nil, err
		}
	case stranger.Available:
		// A released placeholder keeps its last profile. The same
		// profile showing up again reclaims it before the pool can
		// hand it to someone else.
		stranger.Available = false
		if err := r.store.UpdateStranger(ctx, stranger); err != nil {
			return nil, err
		}
	}
	return r.GetByRemoteID(ctx, stranger.RemoteID, true)
}

// claimOrMintStranger binds a placeholder id to the given profile,
// reusing a pooled one when available.
func (r *Registry) claimOrMintStranger(ctx context.Context, name, avatarPath string) (*store.Stranger, error) {
	pooled, err := r.store.AvailableStranger(ctx)
	if err != nil {
		return nil, err
	}
	if pooled != nil {
		pooled.Name = name
		pooled.AvatarPath = avatarPath
		pooled.Available = false
		if err := r.store.UpdateStranger(ctx, pooled); err != nil {
			return nil, err
		}
		r.logger.Info("claimed pooled stranger", "remote_id", pooled.RemoteID)
		return pooled, nil
	}

	minted := &store.Stranger{RemoteID: store.NewStrangerID(), Name: name, AvatarPath: avatarPath}
	err = r.store.InsertStranger(ctx, minted)
	if errors.Is(err, store.ErrAlreadyExists) {
		// Another process bound this profile between our lookup and the
		// insert. Use its row.
		existing, lookupErr := r.store.StrangerByProfile(ctx, name, avatarPath)
		if lookupErr != nil {
			return nil, lookupErr
		}
		if existing != nil {
			return existing, nil
		}
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	r.logger.Info("minted stranger", "remote_id", minted.RemoteID)
	return minted, nil
}

// ReleaseStranger returns a placeholder to the reuse pool. Call when
// the conversation that produced the stranger ends; the next unknown
// participant claims the same ghost instead of minting a new account.
func (r *Registry) ReleaseStranger(ctx context.Context, remoteID string) error {
	if !store.IsStrangerID(remoteID) {
		return fmt.Errorf("bridge: %q is not a stranger id", remoteID)
	}
	r.strangerMu.Lock()
	defer r.strangerMu.Unlock()
	return r.store.MarkStrangerAvailable(ctx, remoteID, true)
}
