// Copyright 2026 The Gantry Authors
// SPDX-License-Identifier: Apache-2.0

// Package messaging is Gantry's Matrix client-server API surface.
//
// The bridge talks to the homeserver as an application service: a
// single Client holds the appservice token, an AppService binds the
// bridge bot account, and an Intent performs API calls as one ghost
// user via user_id impersonation. Intents cover exactly what identity
// management needs: idempotent ghost registration, profile reads and
// writes, and media transfer. LoginSharedSecret produces a UserSession
// for a real bridge user's own account, used for double puppeting.
//
// Every non-2xx homeserver response is surfaced as a *MatrixError
// carrying the Matrix errcode, the server's message, and the HTTP
// status. Callers that tolerate a specific failure (for example
// M_USER_IN_USE during re-registration) match it with IsMatrixError;
// everything else propagates.
package messaging
