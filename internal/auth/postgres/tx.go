// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Acesso Contributors

package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/codelab/acesso/internal/auth"
)

// Transactor implements auth.Transactor with pgx transactions.
type Transactor struct {
	db querier
}

// NewTransactor creates a new Transactor.
func NewTransactor(db querier) *Transactor {
	return &Transactor{db: db}
}

// InTx begins a transaction, runs fn with repositories bound to it, and
// commits when fn returns nil. Any error rolls back.
func (t *Transactor) InTx(ctx context.Context, fn func(ctx context.Context, stores auth.Stores) error) error {
	return pgx.BeginFunc(ctx, t.db, func(tx pgx.Tx) error {
		return fn(ctx, auth.Stores{
			Users:  NewUserRepository(tx),
			Tokens: NewRecoveryTokenRepository(tx),
		})
	})
}

var _ auth.Transactor = (*Transactor)(nil)
