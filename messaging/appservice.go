// Copyright 2026 The Gantry Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/gantry-foundation/gantry/lib/ref"
)

// AppService binds a Client to the bridge's bot account. It is the
// factory for Intents: one for the bot itself, one per ghost user.
// AppService is safe for concurrent use.
type AppService struct {
	client    *Client
	botUserID ref.UserID

	// transactionCounter generates unique transaction IDs for
	// idempotent event sends, shared by all intents.
	transactionCounter atomic.Int64
}

// NewAppService creates an AppService for the given bot user.
func NewAppService(client *Client, botUserID ref.UserID) (*AppService, error) {
	if client == nil {
		return nil, fmt.Errorf("messaging: client is required")
	}
	if botUserID.IsZero() {
		return nil, fmt.Errorf("messaging: bot user ID is required")
	}
	return &AppService{client: client, botUserID: botUserID}, nil
}

// BotUserID returns the bridge bot's Matrix user ID.
func (a *AppService) BotUserID() ref.UserID {
	return a.botUserID
}

// Bot returns the Intent that acts as the bridge bot.
func (a *AppService) Bot() *Intent {
	return a.Intent(a.botUserID)
}

// Intent returns an Intent that acts as the given user. The user must
// be in the appservice's registered namespace (or be the bot); the
// homeserver rejects impersonation outside it with M_FORBIDDEN.
func (a *AppService) Intent(userID ref.UserID) *Intent {
	return &Intent{appservice: a, userID: userID}
}

// nextTransactionID generates a unique transaction ID for idempotent
// event sending. Format: "gantry-<timestamp_ms>-<counter>" to ensure
// uniqueness across restarts.
func (a *AppService) nextTransactionID() string {
	counter := a.transactionCounter.Add(1)
	return fmt.Sprintf("gantry-%d-%d", time.Now().UnixMilli(), counter)
}
