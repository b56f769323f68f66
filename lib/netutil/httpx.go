// Copyright 2026 The Gantry Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil provides HTTP I/O helpers shared by Gantry's Matrix
// client and remote image fetching.
//
// Response body reads are bounded at MaxResponseSize to prevent
// unbounded memory allocation from a misbehaving or malicious server.
// The bound covers both JSON API responses (Matrix client-server and
// media APIs) and avatar image downloads; anything larger should be
// streamed with io.Copy instead.
package netutil

import "io"

// MaxResponseSize is the bound on response body reads: 256 MB. This
// exists solely to prevent a pathological response from exhausting
// system memory. Legitimate API responses and avatar images are orders
// of magnitude smaller; the limit is intentionally generous so that it
// never interferes with normal operation.
const MaxResponseSize int64 = 256 << 20

// ReadResponse reads an HTTP response body up to MaxResponseSize bytes.
// Use instead of io.ReadAll when reading HTTP response bodies.
func ReadResponse(body io.Reader) ([]byte, error) {
	return io.ReadAll(io.LimitReader(body, MaxResponseSize))
}

// ErrorBody reads an HTTP error response body and returns it as a
// string for diagnostic error messages. Read errors are silently
// ignored, a partial or empty body is still useful in an error message.
func ErrorBody(body io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(body, MaxResponseSize))
	return string(data)
}
