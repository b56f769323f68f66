// Copyright 2026 The Gantry Authors
// SPDX-License-Identifier: Apache-2.0

package store_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/gantry-foundation/gantry/lib/ref"
	"github.com/gantry-foundation/gantry/store"
)

func TestNewStrangerID(t *testing.T) {
	first := store.NewStrangerID()
	second := store.NewStrangerID()

	if first == second {
		t.Error("two minted stranger ids are identical")
	}
	for _, id := range []string{first, second} {
		if !store.IsStrangerID(id) {
			t.Errorf("IsStrangerID(%q) = false for a minted id", id)
		}
		hexPart, ok := strings.CutPrefix(id, store.StrangerIDPrefix)
		if !ok {
			t.Fatalf("minted id %q missing prefix %q", id, store.StrangerIDPrefix)
		}
		if len(hexPart) != 32 {
			t.Errorf("minted id %q has %d hex characters, want 32", id, len(hexPart))
		}
		// The placeholder must survive ghost localpart validation once
		// a username template is wrapped around it.
		if err := ref.ValidateLocalpart("line_" + id); err != nil {
			t.Errorf("minted id %q does not form a valid localpart: %v", id, err)
		}
	}

	if store.IsStrangerID("u1234") {
		t.Error("IsStrangerID(\"u1234\") = true for a real remote id")
	}
}

func TestStrangerLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	stranger := &store.Stranger{
		RemoteID:   store.NewStrangerID(),
		Name:       "Hidden Sender",
		AvatarPath: "/profile/hidden/picture",
	}
	if err := s.InsertStranger(ctx, stranger); err != nil {
		t.Fatalf("InsertStranger: %v", err)
	}

	byID, err := s.Stranger(ctx, stranger.RemoteID)
	if err != nil {
		t.Fatalf("Stranger: %v", err)
	}
	if byID == nil || *byID != *stranger {
		t.Errorf("Stranger = %+v, want %+v", byID, stranger)
	}

	byProfile, err := s.StrangerByProfile(ctx, "Hidden Sender", "/profile/hidden/picture")
	if err != nil {
		t.Fatalf("StrangerByProfile: %v", err)
	}
	if byProfile == nil || byProfile.RemoteID != stranger.RemoteID {
		t.Errorf("StrangerByProfile = %+v, want id %q", byProfile, stranger.RemoteID)
	}

	// Nothing is in the reuse pool yet.
	available, err := s.AvailableStranger(ctx)
	if err != nil {
		t.Fatalf("AvailableStranger: %v", err)
	}
	if available != nil {
		t.Errorf("AvailableStranger = %+v, want nil", available)
	}

	// Release, then claim for a new profile.
	if err := s.MarkStrangerAvailable(ctx, stranger.RemoteID, true); err != nil {
		t.Fatalf("MarkStrangerAvailable: %v", err)
	}
	available, err = s.AvailableStranger(ctx)
	if err != nil {
		t.Fatalf("AvailableStranger: %v", err)
	}
	if available == nil || available.RemoteID != stranger.RemoteID {
		t.Fatalf("AvailableStranger = %+v, want id %q", available, stranger.RemoteID)
	}

	available.Name = "Different Sender"
	available.AvatarPath = "/profile/other/picture"
	available.Available = false
	if err := s.UpdateStranger(ctx, available); err != nil {
		t.Fatalf("UpdateStranger: %v", err)
	}

	reassigned, err := s.StrangerByProfile(ctx, "Different Sender", "/profile/other/picture")
	if err != nil {
		t.Fatalf("StrangerByProfile after claim: %v", err)
	}
	if reassigned == nil || reassigned.RemoteID != stranger.RemoteID {
		t.Errorf("claimed stranger = %+v, want id %q", reassigned, stranger.RemoteID)
	}

	// The old profile no longer resolves.
	stale, err := s.StrangerByProfile(ctx, "Hidden Sender", "/profile/hidden/picture")
	if err != nil {
		t.Fatalf("StrangerByProfile stale: %v", err)
	}
	if stale != nil {
		t.Errorf("stale profile still resolves to %+v", stale)
	}
}

func TestInsertStrangerDuplicateProfile(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.InsertStranger(ctx, &store.Stranger{
		RemoteID:   store.NewStrangerID(),
		Name:       "Twin",
		AvatarPath: "/p/a",
	}); err != nil {
		t.Fatalf("InsertStranger: %v", err)
	}

	err := s.InsertStranger(ctx, &store.Stranger{
		RemoteID:   store.NewStrangerID(),
		Name:       "Twin",
		AvatarPath: "/p/a",
	})
	if !errors.Is(err, store.ErrAlreadyExists) {
		t.Errorf("duplicate profile InsertStranger error = %v, want ErrAlreadyExists", err)
	}
}

func TestMarkStrangerAvailableMissingRow(t *testing.T) {
	s := openTestStore(t)

	err := s.MarkStrangerAvailable(context.Background(), store.NewStrangerID(), true)
	if err == nil {
		t.Fatal("MarkStrangerAvailable on missing row succeeded, want error")
	}
}
