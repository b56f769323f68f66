// Copyright 2026 The Gantry Authors
// SPDX-License-Identifier: Apache-2.0

package store_test

import (
	"context"
	"testing"

	"github.com/gantry-foundation/gantry/lib/ref"
	"github.com/gantry-foundation/gantry/store"
)

func TestUserUpsertAndGet(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	mxid := ref.MustParseUserID("@alice:example.com")

	missing, err := s.User(ctx, mxid)
	if err != nil {
		t.Fatalf("User: %v", err)
	}
	if missing != nil {
		t.Fatalf("User = %+v, want nil before upsert", missing)
	}

	if err := s.UpsertUser(ctx, &store.User{MXID: mxid}); err != nil {
		t.Fatalf("UpsertUser: %v", err)
	}

	got, err := s.User(ctx, mxid)
	if err != nil {
		t.Fatalf("User: %v", err)
	}
	if got == nil {
		t.Fatal("User returned nil after upsert")
	}
	if !got.NoticeRoom.IsZero() {
		t.Errorf("NoticeRoom = %v, want zero", got.NoticeRoom)
	}

	// Second upsert overwrites.
	room := ref.MustParseRoomID("!notices:example.com")
	if err := s.UpsertUser(ctx, &store.User{MXID: mxid, NoticeRoom: room}); err != nil {
		t.Fatalf("second UpsertUser: %v", err)
	}
	got, err = s.User(ctx, mxid)
	if err != nil {
		t.Fatalf("User: %v", err)
	}
	if got.NoticeRoom != room {
		t.Errorf("NoticeRoom = %v, want %v", got.NoticeRoom, room)
	}
}
