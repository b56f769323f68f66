// Copyright 2026 The Gantry Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/zeebo/blake3"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/gantry-foundation/gantry/lib/ref"
)

// mediaDomainKey is the 32-byte key for BLAKE3 keyed hashing of media
// content. Fixed constant — changing it invalidates every stored
// content hash. The bytes are the ASCII domain name zero-padded to 32,
// readable in hex dumps without weakening the keyed mode.
var mediaDomainKey = [32]byte{
	'g', 'a', 'n', 't', 'r', 'y', '.', 'm', 'e', 'd', 'i', 'a', '.',
	'c', 'o', 'n', 't', 'e', 'n', 't', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// HashContent computes the hex-encoded keyed BLAKE3 digest of media
// bytes. This is the content_hash stored in the media table and used
// for upload dedup: two remote paths serving identical bytes share one
// MXC.
func HashContent(data []byte) string {
	hasher, err := blake3.NewKeyed(mediaDomainKey[:])
	if err != nil {
		// NewKeyed fails only on wrong key length, which the fixed
		// array rules out.
		panic("store: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write(data)
	return hex.EncodeToString(hasher.Sum(nil))
}

// Media is one row of the media dedup cache.
type Media struct {
	// RemotePath is the remote network's reference for the media (the
	// path its API serves the bytes from).
	RemotePath string

	// ContentHash is the keyed BLAKE3 digest of the bytes, from
	// HashContent.
	ContentHash string

	// MXC is where the bytes live in the Matrix content repository.
	MXC ref.ContentURI

	// UploadedAt records when the upload happened.
	UploadedAt time.Time
}

// Media returns the cache row for a remote path, or (nil, nil).
// A hit means the bytes are already in the content repository and
// neither download nor upload is needed.
func (s *Store) Media(ctx context.Context, remotePath string) (*Media, error) {
	return s.queryMedia(ctx, "WHERE remote_path = ?", remotePath)
}

// MediaByHash returns a cache row whose content hash matches, or
// (nil, nil). A hit after downloading means the same bytes were
// already uploaded under a different remote path, so the upload can be
// skipped.
func (s *Store) MediaByHash(ctx context.Context, contentHash string) (*Media, error) {
	return s.queryMedia(ctx, "WHERE content_hash = ? LIMIT 1", contentHash)
}

func (s *Store) queryMedia(ctx context.Context, clause string, args ...any) (*Media, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("store: get media: %w", err)
	}
	defer s.pool.Put(conn)

	var media *Media
	query := "SELECT remote_path, content_hash, mxc, uploaded_at FROM media " + clause
	err = sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
		Args: args,
		ResultFunc: func(stmt *sqlite.Stmt) error {
			scanned, err := scanMedia(stmt)
			if err != nil {
				return err
			}
			media = scanned
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("store: get media: %w", err)
	}
	return media, nil
}

// PutMedia creates or overwrites the cache row for media.RemotePath.
// Overwrite handles the remote network serving new bytes from an old
// path.
func (s *Store) PutMedia(ctx context.Context, media *Media) error {
	if media.MXC.IsZero() {
		return fmt.Errorf("store: put media %q: MXC is required", media.RemotePath)
	}

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("store: put media: %w", err)
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn, `INSERT INTO media (remote_path, content_hash, mxc, uploaded_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(remote_path) DO UPDATE SET
			content_hash = excluded.content_hash,
			mxc = excluded.mxc,
			uploaded_at = excluded.uploaded_at`, &sqlitex.ExecOptions{
		Args: []any{
			media.RemotePath,
			media.ContentHash,
			media.MXC.String(),
			media.UploadedAt.Unix(),
		},
	})
	if err != nil {
		return fmt.Errorf("store: put media %q: %w", media.RemotePath, err)
	}
	return nil
}

func scanMedia(stmt *sqlite.Stmt) (*Media, error) {
	media := &Media{
		RemotePath:  stmt.ColumnText(0),
		ContentHash: stmt.ColumnText(1),
		UploadedAt:  time.Unix(stmt.ColumnInt64(3), 0).UTC(),
	}

	mxc, err := ref.ParseContentURI(stmt.ColumnText(2))
	if err != nil {
		return nil, fmt.Errorf("media %q has corrupt mxc: %w", media.RemotePath, err)
	}
	media.MXC = mxc

	return media, nil
}
