// Copyright 2026 The Gantry Authors
// SPDX-License-Identifier: Apache-2.0

// Package identity implements the deterministic, reversible mapping
// between remote-network user identities and the Matrix user IDs of
// their ghost accounts, plus the display-name formatting applied when
// ghost profiles are synchronized.
//
// The mapping is driven by a username template configured once at
// startup (e.g. "line_{id}" on server "example.com" maps remote id
// "u123" to "@line_u123:example.com" and back). Encoding is strict: a
// remote id that would produce an invalid Matrix localpart is an
// error. Decoding is forgiving: a user ID that is not one of ours —
// wrong server, wrong shape, foreign account — is a miss, not an
// error, because "is this ghost ours?" is a routine question asked
// about arbitrary user IDs.
//
// [Codec] values are immutable after construction and safe for
// concurrent use.
package identity
