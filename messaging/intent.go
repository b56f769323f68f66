// Copyright 2026 The Gantry Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/gantry-foundation/gantry/lib/ref"
)

// Intent performs Matrix API calls as one specific user. Ghost intents
// impersonate their user through the appservice token and a user_id
// query parameter; the homeserver enforces that the user is inside the
// appservice's namespace.
//
// Intents are lightweight and safe to create per call site; they hold
// no state beyond the user binding.
type Intent struct {
	appservice *AppService
	userID     ref.UserID
}

// UserID returns the Matrix user this intent acts as.
func (i *Intent) UserID() ref.UserID {
	return i.userID
}

// impersonation returns the query parameters that make the homeserver
// attribute the request to this intent's user.
func (i *Intent) impersonation() url.Values {
	return url.Values{"user_id": []string{i.userID.String()}}
}

// EnsureRegistered registers this intent's user on the homeserver if
// it does not exist yet. Registration of an already existing user
// fails with M_USER_IN_USE, which is swallowed: the ghost being there
// is the goal, not the act of creating it. Any other error (including
// M_EXCLUSIVE for a localpart outside the appservice namespace) is
// returned.
func (i *Intent) EnsureRegistered(ctx context.Context) error {
	request := registerRequest{
		Type:         "m.login.application_service",
		Username:     i.userID.Localpart(),
		InhibitLogin: true,
	}
	_, err := i.appservice.client.doRequest(ctx, http.MethodPost,
		"/_matrix/client/v3/register", i.appservice.client.asToken, request)
	if err != nil {
		if IsMatrixError(err, ErrCodeUserInUse) {
			return nil
		}
		return fmt.Errorf("messaging: register %q failed: %w", i.userID, err)
	}

	i.appservice.client.logger.Info("registered ghost account", "user_id", i.userID)
	return nil
}

// SetDisplayName sets this user's display name. An empty name clears it.
func (i *Intent) SetDisplayName(ctx context.Context, displayName string) error {
	path := "/_matrix/client/v3/profile/" + url.PathEscape(i.userID.String()) + "/displayname"
	requestBody := map[string]string{"displayname": displayName}

	_, err := i.appservice.client.doRequest(ctx, http.MethodPut, path,
		i.appservice.client.asToken, requestBody, i.impersonation())
	if err != nil {
		return fmt.Errorf("messaging: set display name for %q failed: %w", i.userID, err)
	}
	return nil
}

// SetAvatarURL sets this user's avatar to the given content URI. A
// zero ContentURI clears the avatar.
func (i *Intent) SetAvatarURL(ctx context.Context, avatarURL ref.ContentURI) error {
	path := "/_matrix/client/v3/profile/" + url.PathEscape(i.userID.String()) + "/avatar_url"
	requestBody := map[string]string{"avatar_url": avatarURL.String()}

	_, err := i.appservice.client.doRequest(ctx, http.MethodPut, path,
		i.appservice.client.asToken, requestBody, i.impersonation())
	if err != nil {
		return fmt.Errorf("messaging: set avatar for %q failed: %w", i.userID, err)
	}
	return nil
}

// Profile fetches this user's current profile from the homeserver.
func (i *Intent) Profile(ctx context.Context) (*ProfileResponse, error) {
	path := "/_matrix/client/v3/profile/" + url.PathEscape(i.userID.String())

	body, err := i.appservice.client.doRequest(ctx, http.MethodGet, path,
		i.appservice.client.asToken, nil, i.impersonation())
	if err != nil {
		return nil, fmt.Errorf("messaging: get profile for %q failed: %w", i.userID, err)
	}

	var response ProfileResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("messaging: failed to parse profile response: %w", err)
	}
	return &response, nil
}

// UploadMedia uploads content to the homeserver's media repository as
// this user. Returns the content URI the homeserver assigned.
func (i *Intent) UploadMedia(ctx context.Context, contentType string, data []byte) (ref.ContentURI, error) {
	responseBody, _, err := i.appservice.client.doRequestRaw(ctx, http.MethodPost,
		"/_matrix/media/v3/upload", i.appservice.client.asToken,
		contentType, bytes.NewReader(data), i.impersonation())
	if err != nil {
		return ref.ContentURI{}, fmt.Errorf("messaging: media upload failed: %w", err)
	}

	var response UploadResponse
	if err := json.Unmarshal(responseBody, &response); err != nil {
		return ref.ContentURI{}, fmt.Errorf("messaging: failed to parse upload response: %w", err)
	}
	if response.ContentURI.IsZero() {
		return ref.ContentURI{}, fmt.Errorf("messaging: upload response carries no content URI")
	}
	return response.ContentURI, nil
}

// DownloadMedia fetches content from the homeserver's media repository.
// Returns the media bytes and their Content-Type.
func (i *Intent) DownloadMedia(ctx context.Context, contentURI ref.ContentURI) ([]byte, string, error) {
	if contentURI.IsZero() {
		return nil, "", fmt.Errorf("messaging: download requires a content URI")
	}
	path := "/_matrix/media/v3/download/" +
		url.PathEscape(contentURI.Server()) + "/" + url.PathEscape(contentURI.MediaID())

	data, contentType, err := i.appservice.client.doRequestRaw(ctx, http.MethodGet, path,
		i.appservice.client.asToken, "", nil, i.impersonation())
	if err != nil {
		return nil, "", fmt.Errorf("messaging: media download %s failed: %w", contentURI, err)
	}
	return data, contentType, nil
}

// SendNotice sends an m.notice message to a room as this user. Uses
// Matrix's idempotent PUT with a transaction ID. Returns the event ID.
func (i *Intent) SendNotice(ctx context.Context, roomID ref.RoomID, text string) (string, error) {
	transactionID := i.appservice.nextTransactionID()
	path := fmt.Sprintf("/_matrix/client/v3/rooms/%s/send/m.room.message/%s",
		url.PathEscape(roomID.String()),
		url.PathEscape(transactionID),
	)
	content := MessageContent{MsgType: "m.notice", Body: text}

	body, err := i.appservice.client.doRequest(ctx, http.MethodPut, path,
		i.appservice.client.asToken, content, i.impersonation())
	if err != nil {
		return "", fmt.Errorf("messaging: send notice to %q failed: %w", roomID, err)
	}

	var response SendEventResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return "", fmt.Errorf("messaging: failed to parse send response: %w", err)
	}
	return response.EventID, nil
}
