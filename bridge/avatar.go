// Copyright 2026 The Gantry Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gantry-foundation/gantry/lib/ref"
	"github.com/gantry-foundation/gantry/messaging"
	"github.com/gantry-foundation/gantry/remote"
	"github.com/gantry-foundation/gantry/store"
)

// An AvatarApplier turns a remote avatar image into a Matrix content
// URI ready to set on a profile. Implementations own the download and
// upload; SyncProfile only decides when an avatar needs applying.
type AvatarApplier interface {
	Apply(ctx context.Context, intent *messaging.Intent, image remote.Image) (ref.ContentURI, error)
}

// MediaApplier applies avatars through the media cache. It reuploads
// nothing the content repository already has: a known remote path is
// answered from the cache without touching the network, and known
// bytes under a new path get an alias row instead of a second upload.
type MediaApplier struct {
	store   *store.Store
	fetcher remote.ImageFetcher
	logger  *slog.Logger
}

var _ AvatarApplier = (*MediaApplier)(nil)

// NewMediaApplier returns a MediaApplier backed by the given store and
// image fetcher.
func NewMediaApplier(st *store.Store, fetcher remote.ImageFetcher, logger *slog.Logger) (*MediaApplier, error) {
	if st == nil {
		return nil, fmt.Errorf("bridge: media applier store is required")
	}
	if fetcher == nil {
		return nil, fmt.Errorf("bridge: media applier fetcher is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &MediaApplier{store: st, fetcher: fetcher, logger: logger}, nil
}

// Apply resolves an image to a Matrix content URI, downloading and
// uploading only when the cache cannot answer. The intent performs the
// upload, so the media is owned by the ghost whose profile it lands
// on.
func (a *MediaApplier) Apply(ctx context.Context, intent *messaging.Intent, image remote.Image) (ref.ContentURI, error) {
	if image.Path == "" {
		return ref.ContentURI{}, fmt.Errorf("bridge: apply avatar: image has no content path")
	}

	cached, err := a.store.Media(ctx, image.Path)
	if err != nil {
		return ref.ContentURI{}, err
	}
	if cached != nil {
		return cached.MXC, nil
	}

	data, err := a.fetcher.ReadImage(ctx, image.URL)
	if err != nil {
		return ref.ContentURI{}, fmt.Errorf("bridge: fetch avatar %q: %w", image.Path, err)
	}

	contentHash := store.HashContent(data.Bytes)
	known, err := a.store.MediaByHash(ctx, contentHash)
	if err != nil {
		return ref.ContentURI{}, err
	}
	if known != nil {
		// Same bytes under a new remote path. Alias the path to the
		// existing upload so the next sync skips the download too.
		alias := &store.Media{
			RemotePath:  image.Path,
			ContentHash: contentHash,
			MXC:         known.MXC,
			UploadedAt:  known.UploadedAt,
		}
		if err := a.store.PutMedia(ctx, alias); err != nil {
			return ref.ContentURI{}, err
		}
		a.logger.Debug("aliased avatar to existing upload",
			"path", image.Path, "mxc", known.MXC)
		return known.MXC, nil
	}

	contentURI, err := intent.UploadMedia(ctx, data.MIME, data.Bytes)
	if err != nil {
		return ref.ContentURI{}, fmt.Errorf("bridge: upload avatar %q: %w", image.Path, err)
	}
	record := &store.Media{
		RemotePath:  image.Path,
		ContentHash: contentHash,
		MXC:         contentURI,
		UploadedAt:  time.Now().UTC(),
	}
	if err := a.store.PutMedia(ctx, record); err != nil {
		return ref.ContentURI{}, err
	}
	a.logger.Info("uploaded avatar",
		"path", image.Path, "mxc", contentURI, "bytes", len(data.Bytes))
	return contentURI, nil
}
