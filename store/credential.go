// Copyright 2026 The Gantry Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"fmt"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/gantry-foundation/gantry/lib/ref"
)

// LoginCredential is one row of the login_credential table: the
// remote-network login for a bridge user. The password is age
// ciphertext (lib/sealed) — plaintext never reaches this package.
type LoginCredential struct {
	// MXID is the bridge user the credential belongs to.
	MXID ref.UserID

	// Email is the remote-network account email.
	Email string

	// PasswordSealed is the base64 age ciphertext of the password,
	// sealed to the operator's recipient key.
	PasswordSealed string
}

// LoginCredential returns the credential row for a user, or
// (nil, nil).
func (s *Store) LoginCredential(ctx context.Context, mxid ref.UserID) (*LoginCredential, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("store: get credential: %w", err)
	}
	defer s.pool.Put(conn)

	var credential *LoginCredential
	err = sqlitex.Execute(conn, "SELECT mxid, email, password_sealed FROM login_credential WHERE mxid = ?", &sqlitex.ExecOptions{
		Args: []any{mxid.String()},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			parsed, err := ref.ParseUserID(stmt.ColumnText(0))
			if err != nil {
				return fmt.Errorf("credential row has corrupt mxid: %w", err)
			}
			credential = &LoginCredential{
				MXID:           parsed,
				Email:          stmt.ColumnText(1),
				PasswordSealed: stmt.ColumnText(2),
			}
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("store: get credential %s: %w", mxid, err)
	}
	return credential, nil
}

// PutLoginCredential creates or overwrites the credential row for
// credential.MXID.
func (s *Store) PutLoginCredential(ctx context.Context, credential *LoginCredential) error {
	if credential.PasswordSealed == "" {
		return fmt.Errorf("store: put credential %s: sealed password is required", credential.MXID)
	}

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("store: put credential: %w", err)
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn, `INSERT INTO login_credential (mxid, email, password_sealed)
		VALUES (?, ?, ?)
		ON CONFLICT(mxid) DO UPDATE SET
			email = excluded.email,
			password_sealed = excluded.password_sealed`, &sqlitex.ExecOptions{
		Args: []any{credential.MXID.String(), credential.Email, credential.PasswordSealed},
	})
	if err != nil {
		return fmt.Errorf("store: put credential %s: %w", credential.MXID, err)
	}
	return nil
}

// DeleteLoginCredential removes the credential row for a user. Missing
// rows are not an error — delete is idempotent.
func (s *Store) DeleteLoginCredential(ctx context.Context, mxid ref.UserID) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("store: delete credential: %w", err)
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn, "DELETE FROM login_credential WHERE mxid = ?", &sqlitex.ExecOptions{
		Args: []any{mxid.String()},
	})
	if err != nil {
		return fmt.Errorf("store: delete credential %s: %w", mxid, err)
	}
	return nil
}
