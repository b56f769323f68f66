// Copyright 2026 The Gantry Authors
// SPDX-License-Identifier: Apache-2.0

// Gantry-credentials manages remote-network login credentials for
// bridge users. Passwords are sealed to the operator's age public key
// before they reach the database; only show, given the private key,
// ever sees plaintext again.
// Subcommands: generate, seal, show, delete.
package main
