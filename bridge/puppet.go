// Copyright 2026 The Gantry Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"context"
	"fmt"
	"sync"

	"github.com/gantry-foundation/gantry/lib/ref"
	"github.com/gantry-foundation/gantry/messaging"
	"github.com/gantry-foundation/gantry/remote"
	"github.com/gantry-foundation/gantry/store"
)

// Puppet is a live ghost: the persisted record of one remote user's
// Matrix account plus the intent that acts as it. Obtain puppets from
// the Registry only — it guarantees one live value per remote id, and
// that singleton is what makes the in-memory record trustworthy.
type Puppet struct {
	registry *Registry
	remoteID string
	userID   ref.UserID
	intent   *messaging.Intent

	// mu serializes profile sync and guards row. Two syncs for the
	// same puppet never interleave their homeserver calls.
	mu  sync.Mutex
	row *store.Puppet
}

// RemoteID returns the remote-network user id this puppet mirrors.
func (p *Puppet) RemoteID() string {
	return p.remoteID
}

// UserID returns the ghost's Matrix user ID.
func (p *Puppet) UserID() ref.UserID {
	return p.userID
}

// Intent returns the messaging intent acting as this ghost.
func (p *Puppet) Intent() *messaging.Intent {
	return p.intent
}

// Record returns a copy of the puppet's persisted state.
func (p *Puppet) Record() store.Puppet {
	p.mu.Lock()
	defer p.mu.Unlock()
	return *p.row
}

// SyncProfile reconciles an observed profile snapshot against the
// ghost's persisted state and reports whether anything changed.
//
// For each differing field the homeserver call runs first; the record
// is mutated and persisted only after every call succeeded. On error
// the record is untouched — calls that already went through are
// idempotent profile sets, so the next sync simply repeats them. When
// nothing differs, no homeserver call and no store write happen at
// all.
//
// The observed name is stored raw; the display name pushed to the
// homeserver is the formatted rendering of it. Avatars are compared by
// the remote content path and applied through the registry's
// AvatarApplier; an observed snapshot without an avatar clears the
// ghost's.
func (p *Puppet) SyncProfile(ctx context.Context, participant remote.Participant) (changed bool, err error) {
	if participant.ID != p.remoteID {
		return false, fmt.Errorf("bridge: participant %q synced against puppet %q", participant.ID, p.remoteID)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	pending := *p.row
	dirty := false

	if !pending.Registered {
		if err := p.intent.EnsureRegistered(ctx); err != nil {
			return false, err
		}
		pending.Registered = true
		dirty = true
	}

	if nameDiffers(&pending, participant.Name) {
		displayName := ""
		if participant.Name != "" {
			displayName = p.registry.formatter.Format(participant.Name)
		}
		if err := p.intent.SetDisplayName(ctx, displayName); err != nil {
			return false, fmt.Errorf("bridge: sync name for %q: %w", p.remoteID, err)
		}
		pending.Name = participant.Name
		pending.NameSet = participant.Name != ""
		changed = true
	}

	// An image without a content path cannot be compared or deduped;
	// treat it as no avatar.
	avatar := participant.Avatar
	if avatar != nil && avatar.Path == "" {
		avatar = nil
	}

	if avatarDiffers(&pending, avatar) {
		if avatar == nil {
			if err := p.intent.SetAvatarURL(ctx, ref.ContentURI{}); err != nil {
				return false, fmt.Errorf("bridge: clear avatar for %q: %w", p.remoteID, err)
			}
			pending.AvatarPath = ""
			pending.AvatarMXC = ref.ContentURI{}
			pending.AvatarSet = false
		} else {
			contentURI, err := p.registry.avatars.Apply(ctx, p.intent, *avatar)
			if err != nil {
				return false, fmt.Errorf("bridge: sync avatar for %q: %w", p.remoteID, err)
			}
			if err := p.intent.SetAvatarURL(ctx, contentURI); err != nil {
				return false, fmt.Errorf("bridge: sync avatar for %q: %w", p.remoteID, err)
			}
			pending.AvatarPath = avatar.Path
			pending.AvatarMXC = contentURI
			pending.AvatarSet = true
		}
		changed = true
	}

	if changed {
		dirty = true
	}
	if dirty {
		if err := p.registry.store.UpdatePuppet(ctx, &pending); err != nil {
			return false, err
		}
		*p.row = pending
	}
	return changed, nil
}

// nameDiffers reports whether the observed name requires a homeserver
// update. Besides a plain mismatch this catches records persisted
// before name tracking existed: a non-empty stored name whose push was
// never confirmed.
func nameDiffers(row *store.Puppet, observedName string) bool {
	if observedName != row.Name {
		return true
	}
	return observedName != "" && !row.NameSet
}

// avatarDiffers compares by remote content path: the path changes
// exactly when the image content changes. The nil observation means
// the user has no avatar, which differs from any set one.
func avatarDiffers(row *store.Puppet, observed *remote.Image) bool {
	if observed == nil {
		return row.AvatarPath != "" || row.AvatarSet
	}
	if observed.Path != row.AvatarPath {
		return true
	}
	return !row.AvatarSet
}
