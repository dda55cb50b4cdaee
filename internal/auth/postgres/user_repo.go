// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Acesso Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/codelab/acesso/internal/auth"
)

const userColumns = `id, name, email, password_hash, active, is_admin, created_at, updated_at`

// UserRepository implements auth.UserStore using PostgreSQL.
type UserRepository struct {
	db querier
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db querier) *UserRepository {
	return &UserRepository{db: db}
}

// FindByEmail retrieves a user by case-insensitive e-mail.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE LOWER(email) = LOWER($1)`, email)
	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").With("email", email).Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_QUERY_FAILED").With("operation", "select user by email").Wrap(err)
	}
	if err := r.loadPermissions(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// FindByID retrieves a user by ID.
func (r *UserRepository) FindByID(ctx context.Context, id ulid.ULID) (*auth.User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id.String())
	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").With("user_id", id.String()).Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_QUERY_FAILED").With("operation", "select user by id").Wrap(err)
	}
	if err := r.loadPermissions(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Save upserts the user and replaces its permissions in one transaction
// (a savepoint when r already runs inside one).
func (r *UserRepository) Save(ctx context.Context, user *auth.User) error {
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	user.Email = auth.NormalizeEmail(user.Email)

	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO users (`+userColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name,
				email = EXCLUDED.email,
				password_hash = EXCLUDED.password_hash,
				active = EXCLUDED.active,
				is_admin = EXCLUDED.is_admin,
				updated_at = EXCLUDED.updated_at
		`, user.ID.String(), user.Name, user.Email, user.PasswordHash,
			user.Active, user.IsAdmin, user.CreatedAt, user.UpdatedAt)
		if err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, `DELETE FROM user_permissions WHERE user_id = $1`, user.ID.String()); err != nil {
			return err
		}
		for i, p := range user.Permissions {
			if p.ID.IsZero() {
				user.Permissions[i].ID = ulid.Make()
			}
			if _, err := tx.Exec(ctx, `
				INSERT INTO user_permissions (id, user_id, module, position)
				VALUES ($1, $2, $3, $4)
			`, user.Permissions[i].ID.String(), user.ID.String(), p.Module, i); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation && pgErr.ConstraintName == "users_email_key" {
			return auth.ErrDuplicateEmail(user.Email)
		}
		return oops.Code("USER_SAVE_FAILED").
			With("operation", "upsert user").
			With("user_id", user.ID.String()).
			Wrap(err)
	}
	return nil
}

// UpdatePasswordHash writes the hash column alone, leaving status and
// permissions as they are in the database.
func (r *UserRepository) UpdatePasswordHash(ctx context.Context, id ulid.ULID, hash string) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE users SET password_hash = $2, updated_at = $3
		WHERE id = $1
	`, id.String(), hash, time.Now().UTC())
	if err != nil {
		return 0, oops.Code("USER_SAVE_FAILED").
			With("operation", "update password hash").
			With("user_id", id.String()).
			Wrap(err)
	}
	return tag.RowsAffected(), nil
}

func (r *UserRepository) loadPermissions(ctx context.Context, user *auth.User) error {
	rows, err := r.db.Query(ctx, `
		SELECT id, module FROM user_permissions
		WHERE user_id = $1
		ORDER BY position
	`, user.ID.String())
	if err != nil {
		return oops.Code("USER_QUERY_FAILED").With("operation", "select permissions").Wrap(err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			idStr  string
			module int
		)
		if err := rows.Scan(&idStr, &module); err != nil {
			return oops.Code("USER_QUERY_FAILED").With("operation", "scan permission").Wrap(err)
		}
		id, err := ulid.Parse(idStr)
		if err != nil {
			return oops.Code("USER_QUERY_FAILED").With("permission_id", idStr).Wrap(err)
		}
		user.Permissions = append(user.Permissions, auth.Permission{ID: id, Module: module})
	}
	if err := rows.Err(); err != nil {
		return oops.Code("USER_QUERY_FAILED").With("operation", "iterate permissions").Wrap(err)
	}
	return nil
}

// scanUser scans one users row. Callers handle pgx.ErrNoRows.
func scanUser(row pgx.Row) (*auth.User, error) {
	var (
		idStr string
		u     auth.User
	)
	if err := row.Scan(&idStr, &u.Name, &u.Email, &u.PasswordHash, &u.Active, &u.IsAdmin, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.With("user_id", idStr).Wrap(err)
	}
	u.ID = id
	return &u, nil
}

var _ auth.UserStore = (*UserRepository)(nil)
