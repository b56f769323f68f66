// Copyright 2026 The Gantry Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/gantry-foundation/gantry/lib/ref"
	"github.com/gantry-foundation/gantry/lib/secret"
)

// UserSession is an authenticated session on a bridge user's own
// Matrix account, obtained through shared-secret login. It acts with
// the user's real access token, not the appservice token, so actions
// appear as the user themselves. Ghost identity management never goes
// through a UserSession.
//
// The access token is stored in a secret.Buffer (mmap-backed, locked
// against swap, excluded from core dumps). The caller must call Close
// when the session is no longer needed.
type UserSession struct {
	client      *Client
	accessToken *secret.Buffer
	userID      ref.UserID
	deviceID    string
}

// UserID returns the Matrix user this session belongs to.
func (s *UserSession) UserID() ref.UserID {
	return s.userID
}

// DeviceID returns the device ID the login created.
func (s *UserSession) DeviceID() string {
	return s.deviceID
}

// Close releases the access token memory (zeros, unlocks, unmaps).
// Idempotent — safe to call multiple times.
func (s *UserSession) Close() error {
	if s.accessToken != nil {
		return s.accessToken.Close()
	}
	return nil
}

// WhoAmI validates the access token and returns the user ID the
// homeserver attributes it to.
func (s *UserSession) WhoAmI(ctx context.Context) (ref.UserID, error) {
	body, err := s.client.doRequest(ctx, http.MethodGet, "/_matrix/client/v3/account/whoami", s.accessToken, nil)
	if err != nil {
		return ref.UserID{}, fmt.Errorf("messaging: whoami failed: %w", err)
	}

	var response WhoAmIResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return ref.UserID{}, fmt.Errorf("messaging: failed to parse whoami response: %w", err)
	}
	return response.UserID, nil
}

// SetDisplayName sets the user's own display name. An empty name
// clears it.
func (s *UserSession) SetDisplayName(ctx context.Context, displayName string) error {
	path := "/_matrix/client/v3/profile/" + url.PathEscape(s.userID.String()) + "/displayname"
	requestBody := map[string]string{"displayname": displayName}

	_, err := s.client.doRequest(ctx, http.MethodPut, path, s.accessToken, requestBody)
	if err != nil {
		return fmt.Errorf("messaging: set display name for %q failed: %w", s.userID, err)
	}
	return nil
}

// SetAvatarURL sets the user's own avatar. A zero ContentURI clears it.
func (s *UserSession) SetAvatarURL(ctx context.Context, avatarURL ref.ContentURI) error {
	path := "/_matrix/client/v3/profile/" + url.PathEscape(s.userID.String()) + "/avatar_url"
	requestBody := map[string]string{"avatar_url": avatarURL.String()}

	_, err := s.client.doRequest(ctx, http.MethodPut, path, s.accessToken, requestBody)
	if err != nil {
		return fmt.Errorf("messaging: set avatar for %q failed: %w", s.userID, err)
	}
	return nil
}
