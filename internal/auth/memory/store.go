// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Acesso Contributors

// Package memory provides in-process implementations of the auth stores,
// used by tests and by the memory store driver.
package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/codelab/acesso/internal/auth"
)

type state struct {
	users  map[ulid.ULID]auth.User
	tokens map[string]auth.RecoveryToken
}

func (st *state) clone() *state {
	out := &state{
		users:  make(map[ulid.ULID]auth.User, len(st.users)),
		tokens: make(map[string]auth.RecoveryToken, len(st.tokens)),
	}
	for id, u := range st.users {
		out.users[id] = copyUser(u)
	}
	for id, t := range st.tokens {
		out.tokens[id] = t
	}
	return out
}

func copyUser(u auth.User) auth.User {
	u.Permissions = slices.Clone(u.Permissions)
	return u
}

// Store holds users and recovery tokens in memory. Transactions work on a
// copy of the data that replaces the original on commit, and run one at a
// time.
type Store struct {
	mu   sync.Mutex
	data *state
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{data: &state{
		users:  map[ulid.ULID]auth.User{},
		tokens: map[string]auth.RecoveryToken{},
	}}
}

func (s *Store) locked(fn func(*state) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.data)
}

// Users returns the store's UserStore.
func (s *Store) Users() auth.UserStore {
	return &users{with: s.locked}
}

// Tokens returns the store's RecoveryTokenStore.
func (s *Store) Tokens() auth.RecoveryTokenStore {
	return &tokens{with: s.locked}
}

// InTx runs fn against a copy of the data and publishes the copy if fn
// returns nil.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, stores auth.Stores) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return oops.Code("TX_BEGIN_FAILED").Wrap(err)
	}

	work := s.data.clone()
	direct := func(f func(*state) error) error { return f(work) }
	err := fn(ctx, auth.Stores{
		Users:  &users{with: direct},
		Tokens: &tokens{with: direct},
	})
	if err != nil {
		return err
	}
	s.data = work
	return nil
}

type users struct {
	with func(func(*state) error) error
}

func (u *users) FindByEmail(_ context.Context, email string) (*auth.User, error) {
	email = auth.NormalizeEmail(email)
	var found *auth.User
	err := u.with(func(st *state) error {
		for _, user := range st.users {
			if user.Email == email {
				c := copyUser(user)
				found = &c
				return nil
			}
		}
		return oops.Code("USER_NOT_FOUND").With("email", email).Wrap(auth.ErrNotFound)
	})
	return found, err
}

func (u *users) FindByID(_ context.Context, id ulid.ULID) (*auth.User, error) {
	var found *auth.User
	err := u.with(func(st *state) error {
		user, ok := st.users[id]
		if !ok {
			return oops.Code("USER_NOT_FOUND").With("user_id", id.String()).Wrap(auth.ErrNotFound)
		}
		c := copyUser(user)
		found = &c
		return nil
	})
	return found, err
}

func (u *users) Save(_ context.Context, user *auth.User) error {
	return u.with(func(st *state) error {
		email := auth.NormalizeEmail(user.Email)
		for id, other := range st.users {
			if id != user.ID && other.Email == email {
				return auth.ErrDuplicateEmail(email)
			}
		}
		now := time.Now().UTC()
		if user.CreatedAt.IsZero() {
			user.CreatedAt = now
		}
		user.UpdatedAt = now
		user.Email = email
		st.users[user.ID] = copyUser(*user)
		return nil
	})
}

func (u *users) UpdatePasswordHash(_ context.Context, id ulid.ULID, hash string) (int64, error) {
	var n int64
	err := u.with(func(st *state) error {
		user, ok := st.users[id]
		if !ok {
			return nil
		}
		user.PasswordHash = hash
		user.UpdatedAt = time.Now().UTC()
		st.users[id] = user
		n = 1
		return nil
	})
	return n, err
}

type tokens struct {
	with func(func(*state) error) error
}

func (t *tokens) FindByID(_ context.Context, id string) (*auth.RecoveryToken, error) {
	var found *auth.RecoveryToken
	err := t.with(func(st *state) error {
		token, ok := st.tokens[id]
		if !ok {
			return oops.Code("RESET_NOT_FOUND").Wrap(auth.ErrNotFound)
		}
		found = &token
		return nil
	})
	return found, err
}

func (t *tokens) DeleteByEmail(_ context.Context, email string) (int64, error) {
	email = auth.NormalizeEmail(email)
	var n int64
	err := t.with(func(st *state) error {
		for id, token := range st.tokens {
			if token.Email == email {
				delete(st.tokens, id)
				n++
			}
		}
		return nil
	})
	return n, err
}

func (t *tokens) DeleteByID(_ context.Context, id string) (int64, error) {
	var n int64
	err := t.with(func(st *state) error {
		if _, ok := st.tokens[id]; ok {
			delete(st.tokens, id)
			n = 1
		}
		return nil
	})
	return n, err
}

func (t *tokens) Create(_ context.Context, token *auth.RecoveryToken) error {
	return t.with(func(st *state) error {
		token.Email = auth.NormalizeEmail(token.Email)
		for id, existing := range st.tokens {
			if existing.Email == token.Email {
				delete(st.tokens, id)
			}
		}
		st.tokens[token.ID] = *token
		return nil
	})
}

func (t *tokens) DeleteCreatedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	var n int64
	err := t.with(func(st *state) error {
		for id, token := range st.tokens {
			if token.CreatedAt.Before(cutoff) {
				delete(st.tokens, id)
				n++
			}
		}
		return nil
	})
	return n, err
}

var (
	_ auth.UserStore          = (*users)(nil)
	_ auth.RecoveryTokenStore = (*tokens)(nil)
	_ auth.Transactor         = (*Store)(nil)
)
