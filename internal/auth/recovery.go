// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Acesso Contributors

package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/samber/oops"
)

// DefaultRecoveryTokenTTL is used when no TTL is configured.
const DefaultRecoveryTokenTTL = 60 * time.Minute

// RecoveryTokenBytes is the entropy of a reset token; it is hex encoded.
const RecoveryTokenBytes = 32

// RecoveryToken is a single-use password reset credential. ID is the SHA-256
// digest of the token mailed to the user; the plaintext is never stored.
// Email correlates the token with a user loosely, without a foreign key.
type RecoveryToken struct {
	ID        string
	Email     string
	CreatedAt time.Time
}

// Expired reports whether the token is older than ttl at now.
func (t *RecoveryToken) Expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(t.CreatedAt) > ttl
}

// GenerateRecoveryToken returns a random plaintext token and its digest.
func GenerateRecoveryToken() (token, digest string, err error) {
	b := make([]byte, RecoveryTokenBytes)
	if _, err = rand.Read(b); err != nil {
		return "", "", oops.Code("RESET_TOKEN_GENERATE_FAILED").Wrap(err)
	}
	token = hex.EncodeToString(b)
	return token, DigestRecoveryToken(token), nil
}

// DigestRecoveryToken computes the store key for a plaintext token.
func DigestRecoveryToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// RecoveryTokenStore persists reset tokens. At most one token exists per
// e-mail: Create replaces any token already stored for the same e-mail.
type RecoveryTokenStore interface {
	// FindByID returns the token with digest id, or ErrNotFound.
	FindByID(ctx context.Context, id string) (*RecoveryToken, error)

	// DeleteByEmail removes every token for email and returns how many went.
	DeleteByEmail(ctx context.Context, email string) (int64, error)

	// DeleteByID removes the token with digest id and returns how many went.
	// Zero means another caller consumed it first.
	DeleteByID(ctx context.Context, id string) (int64, error)

	// Create stores token, superseding any token for the same e-mail.
	Create(ctx context.Context, token *RecoveryToken) error

	// DeleteCreatedBefore removes tokens created before cutoff.
	DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Stores is the set of stores bound to one transaction.
type Stores struct {
	Users  UserStore
	Tokens RecoveryTokenStore
}

// Transactor runs fn with stores bound to a single transaction. The
// transaction commits when fn returns nil and rolls back otherwise.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context, stores Stores) error) error
}
