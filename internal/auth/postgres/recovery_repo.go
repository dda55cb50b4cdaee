// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Acesso Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"

	"github.com/codelab/acesso/internal/auth"
)

// RecoveryTokenRepository implements auth.RecoveryTokenStore using PostgreSQL.
// The UNIQUE constraint on email keeps at most one token per account.
type RecoveryTokenRepository struct {
	db querier
}

// NewRecoveryTokenRepository creates a new RecoveryTokenRepository.
func NewRecoveryTokenRepository(db querier) *RecoveryTokenRepository {
	return &RecoveryTokenRepository{db: db}
}

// FindByID retrieves a token by digest.
func (r *RecoveryTokenRepository) FindByID(ctx context.Context, id string) (*auth.RecoveryToken, error) {
	var t auth.RecoveryToken
	err := r.db.QueryRow(ctx, `
		SELECT id, email, created_at FROM recovery_tokens WHERE id = $1
	`, id).Scan(&t.ID, &t.Email, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("RESET_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("RESET_QUERY_FAILED").With("operation", "select recovery token").Wrap(err)
	}
	return &t, nil
}

// DeleteByEmail removes the tokens issued for email.
func (r *RecoveryTokenRepository) DeleteByEmail(ctx context.Context, email string) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM recovery_tokens WHERE email = $1`, auth.NormalizeEmail(email))
	if err != nil {
		return 0, oops.Code("RESET_DELETE_FAILED").
			With("operation", "delete recovery tokens by email").
			With("email", email).
			Wrap(err)
	}
	return tag.RowsAffected(), nil
}

// DeleteByID removes one token. Zero rows affected means it was already gone.
func (r *RecoveryTokenRepository) DeleteByID(ctx context.Context, id string) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM recovery_tokens WHERE id = $1`, id)
	if err != nil {
		return 0, oops.Code("RESET_DELETE_FAILED").
			With("operation", "delete recovery token").
			Wrap(err)
	}
	return tag.RowsAffected(), nil
}

// Create stores token, replacing whatever token the e-mail already had.
func (r *RecoveryTokenRepository) Create(ctx context.Context, token *auth.RecoveryToken) error {
	token.Email = auth.NormalizeEmail(token.Email)
	_, err := r.db.Exec(ctx, `
		INSERT INTO recovery_tokens (id, email, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (email) DO UPDATE SET
			id = EXCLUDED.id,
			created_at = EXCLUDED.created_at
	`, token.ID, token.Email, token.CreatedAt)
	if err != nil {
		return oops.Code("RESET_CREATE_FAILED").
			With("operation", "upsert recovery token").
			With("email", token.Email).
			Wrap(err)
	}
	return nil
}

// DeleteCreatedBefore removes tokens created before cutoff.
func (r *RecoveryTokenRepository) DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM recovery_tokens WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, oops.Code("RESET_DELETE_EXPIRED_FAILED").
			With("operation", "delete stale recovery tokens").
			Wrap(err)
	}
	return tag.RowsAffected(), nil
}

var _ auth.RecoveryTokenStore = (*RecoveryTokenRepository)(nil)
