// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Acesso Contributors

package main

import (
	"context"
	"time"

	"github.com/samber/oops"

	"github.com/codelab/acesso/internal/auth"
	"github.com/codelab/acesso/internal/auth/memory"
	"github.com/codelab/acesso/internal/auth/postgres"
	"github.com/codelab/acesso/internal/config"
	"github.com/codelab/acesso/internal/store"
)

// backend bundles the stores of one driver.
type backend struct {
	users  auth.UserStore
	tokens auth.RecoveryTokenStore
	tx     auth.Transactor
	ready  func(ctx context.Context) bool
	close  func()
}

func openBackend(ctx context.Context, cfg config.StoreConfig) (*backend, error) {
	switch cfg.Driver {
	case config.DriverMemory:
		s := memory.NewStore()
		return &backend{
			users:  s.Users(),
			tokens: s.Tokens(),
			tx:     s,
			ready:  func(context.Context) bool { return true },
			close:  func() {},
		}, nil
	case config.DriverPostgres:
		return openPostgres(ctx, cfg.DatabaseURL, cfg.ConnectTimeout, cfg.AutoMigrate)
	default:
		return nil, oops.Code("CONFIG_INVALID").With("driver", cfg.Driver).Errorf("unknown store driver")
	}
}

func openPostgres(ctx context.Context, url string, timeout time.Duration, migrate bool) (*backend, error) {
	if migrate {
		m, err := store.NewMigrator(url)
		if err != nil {
			return nil, err
		}
		upErr := m.Up()
		closeErr := m.Close()
		if upErr != nil {
			return nil, upErr
		}
		if closeErr != nil {
			return nil, oops.Code("MIGRATION_CLOSE_FAILED").Wrap(closeErr)
		}
	}

	pool, err := store.Connect(ctx, url, timeout)
	if err != nil {
		return nil, err
	}
	return &backend{
		users:  postgres.NewUserRepository(pool),
		tokens: postgres.NewRecoveryTokenRepository(pool),
		tx:     postgres.NewTransactor(pool),
		ready: func(ctx context.Context) bool {
			return pool.Ping(ctx) == nil
		},
		close: pool.Close,
	}, nil
}
