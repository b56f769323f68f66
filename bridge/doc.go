// Copyright 2026 The Gantry Authors
// SPDX-License-Identifier: Apache-2.0

// Package bridge maintains the mapping between remote-network users
// and their Matrix ghosts.
//
// The Registry is the entry point. It resolves remote identities to
// live *Puppet values through three layers — in-memory cache, SQLite
// store, lazy creation — and guarantees at most one live *Puppet per
// remote id no matter how many goroutines resolve concurrently.
// Resolution by Matrix user ID goes through the identity codec first;
// a user ID that is not one of this bridge's ghosts is a miss, never
// an error.
//
// Puppet.SyncProfile reconciles one observed profile snapshot against
// the persisted state. The ordering invariant is strict: homeserver
// calls happen first, and the record is mutated and persisted only
// after they succeed, so the store never claims a profile the
// homeserver does not have. A failed sync leaves the record untouched
// and the next identical snapshot retries the same calls.
//
// Avatar content flows through the AvatarApplier boundary. The
// production MediaApplier downloads the image, dedups it against the
// media cache by remote path and by content hash, and uploads to the
// homeserver only when the bytes have never been seen.
//
// Users tracks the bridge's real Matrix users: notice room plumbing
// and optional double puppeting via the homeserver's shared login
// secret. User accounts are never involved in puppet resolution.
package bridge
