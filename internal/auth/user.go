// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Acesso Contributors

package auth

import (
	"context"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Permission grants access to one module. A user owns its permissions; they
// are removed with it.
type Permission struct {
	ID     ulid.ULID
	Module int
}

// User is an account that can log in. Users are deactivated, never deleted.
type User struct {
	ID           ulid.ULID
	Name         string
	Email        string
	PasswordHash string `json:"-"`
	Active       bool
	IsAdmin      bool
	Permissions  []Permission
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewUser creates an active user with a fresh ID. The e-mail is normalized.
func NewUser(name, email, passwordHash string) (*User, error) {
	email = NormalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, oops.Code("USER_INVALID_EMAIL").With("email", email).Errorf("email is invalid")
	}
	if passwordHash == "" {
		return nil, oops.Code("USER_INVALID_PASSWORD").Errorf("password hash cannot be empty")
	}
	now := time.Now().UTC()
	return &User{
		ID:           ulid.Make(),
		Name:         strings.TrimSpace(name),
		Email:        email,
		PasswordHash: passwordHash,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// Grant appends a permission for module unless the user already has one.
func (u *User) Grant(module int) {
	for _, p := range u.Permissions {
		if p.Module == module {
			return
		}
	}
	u.Permissions = append(u.Permissions, Permission{ID: ulid.Make(), Module: module})
}

// Modules returns the granted module identifiers in grant order.
func (u *User) Modules() []int {
	modules := make([]int, 0, len(u.Permissions))
	for _, p := range u.Permissions {
		modules = append(modules, p.Module)
	}
	return modules
}

// NormalizeEmail lower-cases and trims an e-mail address. Stores compare
// e-mails in this form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// UserStore persists users. Lookups return ErrNotFound (possibly wrapped)
// when no user matches.
type UserStore interface {
	// FindByEmail looks a user up by case-insensitive e-mail.
	FindByEmail(ctx context.Context, email string) (*User, error)

	// FindByID looks a user up by ID.
	FindByID(ctx context.Context, id ulid.ULID) (*User, error)

	// Save inserts or updates the user together with its permissions.
	// A clash on e-mail yields CodeDuplicateEmail.
	Save(ctx context.Context, user *User) error

	// UpdatePasswordHash replaces only the password hash of user id and
	// returns the number of users changed.
	UpdatePasswordHash(ctx context.Context, id ulid.ULID, hash string) (int64, error)
}
