// Copyright 2026 The Gantry Authors
// SPDX-License-Identifier: Apache-2.0

// Package sealed provides age encryption for login credentials at
// rest. The bridge stores remote-network passwords in its database so
// it can reconnect users after a restart; those passwords are sealed
// to an operator-controlled age x25519 recipient before they ever
// touch disk, and unsealed only when a connection is being
// established.
//
// Ciphertext is base64-encoded so it can live in a TEXT column or a
// JSON field without escaping concerns. Callers pass plaintext bytes
// in and get base64 strings out, and vice versa for decryption.
//
// Private keys and unsealed plaintext travel in *secret.Buffer values
// (mmap-backed memory outside the Go heap, locked against swap,
// excluded from core dumps, zeroed on close).
//
// Used by:
//   - gantry-credentials (seal passwords when registering a login)
//   - the bridge connector (unseal at connect time)
package sealed
