// Copyright 2026 The Gantry Authors
// SPDX-License-Identifier: Apache-2.0

package ref_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/gantry-foundation/gantry/lib/ref"
)

const testServer = "example.com"

func TestParseUserID(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{name: "simple", raw: "@alice:example.com"},
		{name: "ghost", raw: "@line_u123:example.com"},
		{name: "port-in-server", raw: "@bot:matrix.example.com:8448"},
		{name: "empty", raw: "", wantErr: true},
		{name: "missing-sigil", raw: "alice:example.com", wantErr: true},
		{name: "wrong-sigil", raw: "#alice:example.com", wantErr: true},
		{name: "missing-server", raw: "@alice", wantErr: true},
		{name: "empty-localpart", raw: "@:example.com", wantErr: true},
		{name: "empty-server", raw: "@alice:", wantErr: true},
		{name: "overlong", raw: "@" + strings.Repeat("a", 260) + ":example.com", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			userID, err := ref.ParseUserID(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %v", userID)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if userID.String() != tt.raw {
				t.Errorf("String() = %q, want %q", userID.String(), tt.raw)
			}
			if userID.IsZero() {
				t.Error("IsZero() = true for valid user ID")
			}
		})
	}
}

func TestUserIDParts(t *testing.T) {
	userID, err := ref.ParseUserID("@line_u123:matrix.example.com:8448")
	if err != nil {
		t.Fatalf("ParseUserID: %v", err)
	}
	if got := userID.Localpart(); got != "line_u123" {
		t.Errorf("Localpart() = %q, want %q", got, "line_u123")
	}
	// The server includes the port; only the first colon splits.
	if got := userID.Server(); got != "matrix.example.com:8448" {
		t.Errorf("Server() = %q, want %q", got, "matrix.example.com:8448")
	}
}

func TestMakeUserID(t *testing.T) {
	server := ref.MustParseServerName(testServer)
	tests := []struct {
		name      string
		localpart string
		want      string
		wantErr   bool
	}{
		{name: "simple", localpart: "line_u123", want: "@line_u123:example.com"},
		{name: "all-allowed-symbols", localpart: "a.b_c=d-e/f0", want: "@a.b_c=d-e/f0:example.com"},
		{name: "empty", localpart: "", wantErr: true},
		{name: "uppercase", localpart: "Alice", wantErr: true},
		{name: "space", localpart: "a b", wantErr: true},
		{name: "colon", localpart: "a:b", wantErr: true},
		{name: "sigil", localpart: "@a", wantErr: true},
		{name: "overlong", localpart: strings.Repeat("a", 250), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			userID, err := ref.MakeUserID(tt.localpart, server)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %v", userID)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if userID.String() != tt.want {
				t.Errorf("MakeUserID(%q) = %q, want %q", tt.localpart, userID.String(), tt.want)
			}
		})
	}
}

func TestMakeUserIDZeroServer(t *testing.T) {
	if _, err := ref.MakeUserID("alice", ref.ServerName{}); err == nil {
		t.Fatal("expected error for zero server name")
	}
}

func TestUserIDZeroPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic from Localpart on zero UserID")
		}
	}()
	var zero ref.UserID
	_ = zero.Localpart()
}

func TestUserIDJSONRoundTrip(t *testing.T) {
	original := ref.MustParseUserID("@line_u123:example.com")
	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded ref.UserID
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded != original {
		t.Errorf("round trip = %v, want %v", decoded, original)
	}

	var zero ref.UserID
	data, err = json.Marshal(zero)
	if err != nil {
		t.Fatalf("Marshal zero: %v", err)
	}
	if string(data) != `""` {
		t.Errorf("zero value marshals to %s, want empty string", data)
	}
}

func TestParseServerName(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{name: "simple", raw: "example.com"},
		{name: "with-port", raw: "matrix.example.com:8448"},
		{name: "localhost", raw: "localhost"},
		{name: "empty", raw: "", wantErr: true},
		{name: "space", raw: "exa mple.com", wantErr: true},
		{name: "user-sigil", raw: "@example.com", wantErr: true},
		{name: "room-sigil", raw: "#example.com", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, err := ref.ParseServerName(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %v", server)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if server.String() != tt.raw {
				t.Errorf("String() = %q, want %q", server.String(), tt.raw)
			}
		})
	}
}

func TestParseRoomID(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{name: "simple", raw: "!abc123:example.com"},
		{name: "empty", raw: "", wantErr: true},
		{name: "wrong-sigil", raw: "@abc123:example.com", wantErr: true},
		{name: "missing-server", raw: "!abc123", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			roomID, err := ref.ParseRoomID(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %v", roomID)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if roomID.String() != tt.raw {
				t.Errorf("String() = %q, want %q", roomID.String(), tt.raw)
			}
		})
	}
}

func TestParseContentURI(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		server  string
		mediaID string
		wantErr bool
	}{
		{name: "simple", raw: "mxc://example.com/FnAbCdEf123", server: "example.com", mediaID: "FnAbCdEf123"},
		{name: "with-port", raw: "mxc://matrix.example.com:8448/xyz", server: "matrix.example.com:8448", mediaID: "xyz"},
		{name: "empty", raw: "", wantErr: true},
		{name: "wrong-scheme", raw: "https://example.com/FnAbc", wantErr: true},
		{name: "missing-media-id", raw: "mxc://example.com", wantErr: true},
		{name: "empty-media-id", raw: "mxc://example.com/", wantErr: true},
		{name: "empty-server", raw: "mxc:///FnAbc", wantErr: true},
		{name: "extra-segment", raw: "mxc://example.com/a/b", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uri, err := ref.ParseContentURI(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %v", uri)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if uri.String() != tt.raw {
				t.Errorf("String() = %q, want %q", uri.String(), tt.raw)
			}
			if uri.Server() != tt.server {
				t.Errorf("Server() = %q, want %q", uri.Server(), tt.server)
			}
			if uri.MediaID() != tt.mediaID {
				t.Errorf("MediaID() = %q, want %q", uri.MediaID(), tt.mediaID)
			}
		})
	}
}

func TestContentURIZero(t *testing.T) {
	var zero ref.ContentURI
	if !zero.IsZero() {
		t.Error("IsZero() = false for zero value")
	}
	if zero.String() != "" {
		t.Errorf("String() = %q, want empty", zero.String())
	}

	// An empty text input unmarshals to the zero value: a cleared
	// avatar round-trips through JSON as "".
	var decoded ref.ContentURI
	if err := json.Unmarshal([]byte(`""`), &decoded); err != nil {
		t.Fatalf("Unmarshal empty: %v", err)
	}
	if !decoded.IsZero() {
		t.Error("empty string should decode to zero value")
	}
}

func TestValidateLocalpart(t *testing.T) {
	if err := ref.ValidateLocalpart("line_u123"); err != nil {
		t.Errorf("valid localpart rejected: %v", err)
	}
	if err := ref.ValidateLocalpart(""); err == nil {
		t.Error("empty localpart accepted")
	}
	if err := ref.ValidateLocalpart("über"); err == nil {
		t.Error("non-ASCII localpart accepted")
	}
}
