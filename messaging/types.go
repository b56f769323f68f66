// Copyright 2026 The Gantry Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"github.com/gantry-foundation/gantry/lib/ref"
)

// registerRequest is the body of POST /register for appservice ghost
// registration. The appservice token authorizes the creation, so the
// account has no password; inhibit_login skips the access token the
// bridge would only throw away.
type registerRequest struct {
	Type         string `json:"type"`
	Username     string `json:"username"`
	InhibitLogin bool   `json:"inhibit_login"`
}

// loginRequest is the body of POST /login for shared-secret login.
type loginRequest struct {
	Type                     string         `json:"type"`
	Identifier               userIdentifier `json:"identifier"`
	Password                 string         `json:"password"`
	InitialDeviceDisplayName string         `json:"initial_device_display_name,omitempty"`
}

// userIdentifier names the account being logged in, in the m.id.user
// identifier form.
type userIdentifier struct {
	Type string `json:"type"`
	User string `json:"user"`
}

// AuthResponse is returned by the homeserver for a successful login.
type AuthResponse struct {
	UserID      ref.UserID `json:"user_id"`
	AccessToken string     `json:"access_token"`
	DeviceID    string     `json:"device_id"`
}

// WhoAmIResponse is returned by GET /account/whoami.
type WhoAmIResponse struct {
	UserID ref.UserID `json:"user_id"`
}

// ProfileResponse is a user's profile as returned by GET /profile.
// Fields the user never set are absent from the response and decode to
// their zero values.
type ProfileResponse struct {
	DisplayName string         `json:"displayname"`
	AvatarURL   ref.ContentURI `json:"avatar_url"`
}

// UploadResponse is returned by the media upload endpoint.
type UploadResponse struct {
	ContentURI ref.ContentURI `json:"content_uri"`
}

// SendEventResponse is returned when an event is sent to a room.
type SendEventResponse struct {
	EventID string `json:"event_id"`
}

// MessageContent is the content body of an m.room.message event. The
// bridge only ever sends service notices, so the type carries just the
// fields those need.
type MessageContent struct {
	MsgType string `json:"msgtype"`
	Body    string `json:"body"`
}

// ServerVersionsResponse lists the Matrix protocol versions the
// homeserver supports. Returned by the unauthenticated /versions
// endpoint, which doubles as a reachability probe during setup.
type ServerVersionsResponse struct {
	Versions         []string        `json:"versions"`
	UnstableFeatures map[string]bool `json:"unstable_features,omitempty"`
}
