// Copyright 2026 The Gantry Authors
// SPDX-License-Identifier: Apache-2.0

// Package store persists the bridge's identity state in SQLite.
//
// The database is the durable half of puppet resolution: the in-memory
// registry consults it on cache misses and writes through on creation
// and profile changes. Five tables cover the domain:
//
//   - puppet: one row per remote user the bridge has ghosted. Keyed by
//     the remote id; carries the last observed profile (name, avatar
//     path), the Matrix-side artifacts (avatar MXC, name_set and
//     avatar_set flags), and whether the ghost account is registered.
//   - user: bridge users (real Matrix accounts), keyed by mxid, with
//     their notice room.
//   - media: remote path → content hash → MXC dedup cache, so an
//     avatar seen on two profiles is downloaded once and uploaded
//     once.
//   - stranger: placeholder identities for remote participants whose
//     true id is hidden, with a profile-keyed reuse pool.
//   - login_credential: per-user remote-network credentials, password
//     sealed with age before it reaches disk.
//
// Schema changes append a migration; the PRAGMA user_version tracks
// how many have been applied. Migrations run inside an IMMEDIATE
// transaction on connection setup, so concurrent opens of the same
// database race safely.
//
// All methods take a context and return wrapped errors. A duplicate
// insert surfaces ErrAlreadyExists: a caller that hits it has broken
// the resolve-before-create invariant and must not retry. Lookups that
// find nothing return (nil, nil).
package store
