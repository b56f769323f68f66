// Copyright 2026 The Gantry Authors
// SPDX-License-Identifier: Apache-2.0

package identity

import (
	"fmt"
	"strings"

	"github.com/gantry-foundation/gantry/lib/ref"
)

// idPlaceholder is the token in a username template that the remote
// identity replaces.
const idPlaceholder = "{id}"

// Codec translates between remote-network user identities and the
// Matrix user IDs of their ghosts. It is configured once from the
// bridge's username template and homeserver name and never mutated.
type Codec struct {
	server ref.ServerName

	// localpartPrefix and localpartSuffix are the template split
	// around the {id} placeholder. The full ghost user ID is
	// "@" + localpartPrefix + remoteID + localpartSuffix + ":" + server.
	localpartPrefix string
	localpartSuffix string
}

// NewCodec builds a codec from a username template and homeserver
// name. The template must contain the {id} placeholder exactly once,
// and its fixed parts must be valid localpart material so that every
// valid remote id encodes to a valid Matrix user ID.
func NewCodec(usernameTemplate string, server ref.ServerName) (*Codec, error) {
	if server.IsZero() {
		return nil, fmt.Errorf("identity: server name is unset")
	}
	prefix, suffix, found := strings.Cut(usernameTemplate, idPlaceholder)
	if !found {
		return nil, fmt.Errorf("identity: username template %q does not contain %s", usernameTemplate, idPlaceholder)
	}
	if strings.Contains(suffix, idPlaceholder) {
		return nil, fmt.Errorf("identity: username template %q contains %s more than once", usernameTemplate, idPlaceholder)
	}
	for _, part := range []string{prefix, suffix} {
		if part == "" {
			continue
		}
		if err := ref.ValidateLocalpart(part); err != nil {
			return nil, fmt.Errorf("identity: username template %q: %w", usernameTemplate, err)
		}
	}
	if prefix == "" && suffix == "" {
		return nil, fmt.Errorf("identity: username template %q has no fixed part; ghost IDs would be indistinguishable from real accounts", usernameTemplate)
	}
	return &Codec{
		server:          server,
		localpartPrefix: prefix,
		localpartSuffix: suffix,
	}, nil
}

// Server returns the homeserver name the codec encodes for.
func (c *Codec) Server() ref.ServerName { return c.server }

// Localpart returns the ghost localpart for a remote identity
// (template applied, no sigil or server). Errors if the remote id is
// empty or contains characters that are not valid in a Matrix
// localpart.
func (c *Codec) Localpart(remoteID string) (string, error) {
	if remoteID == "" {
		return "", fmt.Errorf("identity: remote id is empty")
	}
	localpart := c.localpartPrefix + remoteID + c.localpartSuffix
	if err := ref.ValidateLocalpart(localpart); err != nil {
		return "", fmt.Errorf("identity: remote id %q: %w", remoteID, err)
	}
	return localpart, nil
}

// UserID returns the full Matrix user ID for a remote identity. Pure
// string work; the only failure mode is a remote id that cannot form
// a valid localpart.
func (c *Codec) UserID(remoteID string) (ref.UserID, error) {
	localpart, err := c.Localpart(remoteID)
	if err != nil {
		return ref.UserID{}, err
	}
	userID, err := ref.MakeUserID(localpart, c.server)
	if err != nil {
		return ref.UserID{}, fmt.Errorf("identity: remote id %q: %w", remoteID, err)
	}
	return userID, nil
}

// RemoteID inverts UserID. The boolean is false — never an error —
// when the user ID is not a ghost of this bridge: different server,
// localpart not matching the template, or an id segment that encode
// could not have produced. Callers use the miss to tell "one of ours"
// from "someone else's account".
func (c *Codec) RemoteID(userID ref.UserID) (string, bool) {
	if userID.IsZero() {
		return "", false
	}
	if userID.Server() != c.server.String() {
		return "", false
	}
	localpart := userID.Localpart()
	rest, ok := strings.CutPrefix(localpart, c.localpartPrefix)
	if !ok {
		return "", false
	}
	remoteID, ok := strings.CutSuffix(rest, c.localpartSuffix)
	if !ok || remoteID == "" {
		return "", false
	}
	// Encode validates localpart characters, so anything outside that
	// set cannot round-trip and is not ours.
	for i := 0; i < len(remoteID); i++ {
		if !ref.LocalpartAllowed(remoteID[i]) {
			return "", false
		}
	}
	return remoteID, true
}

// RemoteIDFromString is RemoteID for raw strings that may not even be
// well-formed Matrix user IDs. Malformed input is a miss.
func (c *Codec) RemoteIDFromString(raw string) (string, bool) {
	userID, err := ref.ParseUserID(raw)
	if err != nil {
		return "", false
	}
	return c.RemoteID(userID)
}
