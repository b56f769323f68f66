// Copyright 2026 The Gantry Authors
// SPDX-License-Identifier: Apache-2.0

package remote

import "context"

// Participant is a profile snapshot of a remote-network user as
// observed at one moment: who they are, what they call themselves, and
// what they look like. Snapshots are inputs to profile sync; they carry
// no liveness and no connection state.
type Participant struct {
	// ID is the stable remote-network user identifier. It never
	// changes for a given user and is the key puppets are stored
	// under.
	ID string

	// Name is the observed profile name, exactly as the network
	// reported it. May be empty when the user has no name set.
	Name string

	// Avatar is the observed profile image, nil when the user has
	// none.
	Avatar *Image
}

// Image is a reference to a remote profile image.
type Image struct {
	// Path is the network's stable content reference for the image.
	// It changes exactly when the image content changes, which makes
	// it the comparison key for avatar change detection.
	Path string

	// URL is the fetchable location of the image bytes.
	URL string
}

// ImageData is fetched image content.
type ImageData struct {
	Bytes []byte
	MIME  string
}

// ImageFetcher retrieves image bytes from the remote network. Avatar
// sync consumes this interface; the transport that implements it is
// free to authenticate, cache, or proxy however it likes.
type ImageFetcher interface {
	ReadImage(ctx context.Context, url string) (*ImageData, error)
}
