// Copyright 2026 The Gantry Authors
// SPDX-License-Identifier: Apache-2.0

// Package ref provides strongly typed, immutable references for the
// Matrix identifiers Gantry works with: user IDs, server names, room
// IDs, and mxc:// content URIs.
//
// Bridge code handles identifiers from three sources — configuration,
// the homeserver, and its own ghost-identity encoding — and mixing
// them up as bare strings is how bridges corrupt profiles. Every
// identifier is therefore parsed into a validated value type at the
// boundary and passed through as that type.
//
// All constructors validate their inputs and return errors for
// malformed identifiers. Once constructed, a ref is immutable;
// accessors return the parsed parts. The zero value of every type is
// "unset" — valid to store and compare, invalid to use as an
// identifier — and IsZero reports it.
//
// JSON and YAML marshaling use the canonical Matrix string form via
// encoding.TextMarshaler / TextUnmarshaler, with the empty string
// mapping to the zero value in both directions.
package ref
