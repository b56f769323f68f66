// Copyright 2026 The Gantry Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"fmt"
	"sync/atomic"
)

var uniqueCounter atomic.Uint64

// UniqueID returns a string of the form "prefixN" where N is a
// monotonically increasing integer. Handy for minting remote user IDs
// that stay distinct across subtests sharing a store.
//
//	mid := testutil.UniqueID("u")       // "u1", "u2", ...
//	name := testutil.UniqueID("Alice")  // "Alice3", ...
func UniqueID(prefix string) string {
	return fmt.Sprintf("%s%d", prefix, uniqueCounter.Add(1))
}
