// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Acesso Contributors

// Package store connects to PostgreSQL and manages the schema.
package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// DefaultConnectTimeout bounds how long Connect keeps retrying.
const DefaultConnectTimeout = 30 * time.Second

const connectBaseDelay = 250 * time.Millisecond

type pinger interface {
	Ping(ctx context.Context) error
	Close()
}

// Connect opens a pool for databaseURL and waits until the database answers,
// retrying with exponential backoff for up to timeout. A malformed URL fails
// immediately.
func Connect(ctx context.Context, databaseURL string, timeout time.Duration) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, oops.Code("DB_CONFIG_INVALID").Wrap(err)
	}
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}

	return connectWithRetry(ctx, newBackoff(timeout), func(ctx context.Context) (*pgxpool.Pool, error) {
		return pgxpool.NewWithConfig(ctx, cfg)
	})
}

func newBackoff(timeout time.Duration) retry.Backoff {
	b := retry.NewExponential(connectBaseDelay)
	b = retry.WithCappedDuration(5*time.Second, b)
	return retry.WithMaxDuration(timeout, b)
}

func connectWithRetry[P pinger](ctx context.Context, b retry.Backoff, open func(context.Context) (P, error)) (P, error) {
	var pool P
	attempt := 0
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		p, err := open(ctx)
		if err != nil {
			return retry.RetryableError(err)
		}
		if err := p.Ping(ctx); err != nil {
			p.Close()
			slog.WarnContext(ctx, "database not ready", "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		pool = p
		return nil
	})
	if err != nil {
		var zero P
		return zero, oops.Code("DB_CONNECT_FAILED").With("attempts", attempt).Wrap(err)
	}
	return pool, nil
}
