// Copyright 2026 The Gantry Authors
// SPDX-License-Identifier: Apache-2.0

// Package remote defines the bridge's view of the remote network:
// profile snapshots observed from the wire and the image fetching
// boundary.
//
// The types here are deliberately passive. A Participant is what some
// transport saw at one moment, not a live handle; the bridge compares
// snapshots against persisted puppet state to decide what changed.
// ImageFetcher is the only outward dependency — profile sync needs
// avatar bytes but must not care how the network delivers them, so
// tests substitute a fake and production wires HTTPImageFetcher.
package remote
