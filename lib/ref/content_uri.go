// Copyright 2026 The Gantry Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import (
	"fmt"
	"strings"
)

// contentURIScheme is the URI scheme for Matrix content repository
// references.
const contentURIScheme = "mxc://"

// ContentURI is a validated Matrix content URI
// (e.g., "mxc://example.com/FnAbCdEf123").
//
// Content URIs reference media stored in a homeserver's content
// repository. Gantry receives them from media uploads and persists
// them as puppet avatar references. The zero value means "no media" —
// a puppet whose avatar was cleared stores a zero ContentURI.
//
// ContentURI is an immutable value type; use IsZero to check for the
// unset state.
type ContentURI struct {
	uri string
}

// ParseContentURI validates and wraps a raw mxc:// URI string.
// Returns an error if the scheme is wrong or the server or media ID
// part is empty or malformed.
func ParseContentURI(raw string) (ContentURI, error) {
	rest, ok := strings.CutPrefix(raw, contentURIScheme)
	if !ok {
		return ContentURI{}, fmt.Errorf("invalid content URI %q: must start with %s", raw, contentURIScheme)
	}
	server, mediaID, found := strings.Cut(rest, "/")
	if !found {
		return ContentURI{}, fmt.Errorf("invalid content URI %q: missing media ID", raw)
	}
	if err := validateServer(server); err != nil {
		return ContentURI{}, fmt.Errorf("invalid content URI %q: %w", raw, err)
	}
	if mediaID == "" || strings.Contains(mediaID, "/") {
		return ContentURI{}, fmt.Errorf("invalid content URI %q: media ID must be a single non-empty segment", raw)
	}
	return ContentURI{uri: raw}, nil
}

// MustParseContentURI is like ParseContentURI but panics on error. Use
// in tests where the input is known-valid.
func MustParseContentURI(raw string) ContentURI {
	c, err := ParseContentURI(raw)
	if err != nil {
		panic(fmt.Sprintf("ref.MustParseContentURI(%q): %v", raw, err))
	}
	return c
}

// String returns the full URI string (e.g., "mxc://example.com/FnAbc").
// The zero value returns "".
func (c ContentURI) String() string { return c.uri }

// IsZero reports whether the ContentURI is the zero value (no media).
func (c ContentURI) IsZero() bool { return c.uri == "" }

// Server returns the homeserver that stores the media. Panics if
// called on a zero-value ContentURI.
func (c ContentURI) Server() string {
	server, _ := c.split()
	return server
}

// MediaID returns the opaque media identifier. Panics if called on a
// zero-value ContentURI.
func (c ContentURI) MediaID() string {
	_, mediaID := c.split()
	return mediaID
}

func (c ContentURI) split() (server, mediaID string) {
	if c.uri == "" {
		panic("ContentURI accessor called on zero value")
	}
	rest := strings.TrimPrefix(c.uri, contentURIScheme)
	server, mediaID, _ = strings.Cut(rest, "/")
	return server, mediaID
}

// MarshalText implements encoding.TextMarshaler for JSON and other
// text-based serialization formats. The zero value marshals to the
// empty string.
func (c ContentURI) MarshalText() ([]byte, error) {
	if c.uri == "" {
		return []byte{}, nil
	}
	return []byte(c.uri), nil
}

// UnmarshalText implements encoding.TextUnmarshaler for JSON and other
// text-based serialization formats. Validates the URI format. An empty
// input produces the zero value (no media).
func (c *ContentURI) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*c = ContentURI{}
		return nil
	}
	parsed, err := ParseContentURI(string(data))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
