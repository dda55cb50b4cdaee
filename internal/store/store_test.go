// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Acesso Contributors

package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codelab/acesso/pkg/errutil"
)

type fakePool struct {
	pingErrs []error
	closed   int
}

func (f *fakePool) Ping(context.Context) error {
	if len(f.pingErrs) == 0 {
		return nil
	}
	err := f.pingErrs[0]
	f.pingErrs = f.pingErrs[1:]
	return err
}

func (f *fakePool) Close() { f.closed++ }

func fastBackoff(retries uint64) retry.Backoff {
	return retry.WithMaxRetries(retries, retry.NewConstant(time.Millisecond))
}

func TestConnect_InvalidURL(t *testing.T) {
	_, err := Connect(context.Background(), "postgres://u:p@localhost:notaport/acesso", time.Second)
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "DB_CONFIG_INVALID")
}

func TestConnectWithRetry(t *testing.T) {
	ctx := context.Background()

	t.Run("retries until ping succeeds", func(t *testing.T) {
		pool := &fakePool{pingErrs: []error{errors.New("starting up"), errors.New("starting up")}}
		got, err := connectWithRetry(ctx, fastBackoff(5), func(context.Context) (*fakePool, error) {
			return pool, nil
		})
		require.NoError(t, err)
		assert.Same(t, pool, got)
		assert.Equal(t, 2, pool.closed)
	})

	t.Run("retries open errors", func(t *testing.T) {
		calls := 0
		_, err := connectWithRetry(ctx, fastBackoff(5), func(context.Context) (*fakePool, error) {
			calls++
			if calls < 3 {
				return nil, errors.New("dial tcp: connection refused")
			}
			return &fakePool{}, nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("gives up after budget", func(t *testing.T) {
		_, err := connectWithRetry(ctx, fastBackoff(2), func(context.Context) (*fakePool, error) {
			return nil, errors.New("connection refused")
		})
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "DB_CONNECT_FAILED")
		errutil.AssertErrorContext(t, err, "attempts", 3)
	})

	t.Run("stops when context is cancelled", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := connectWithRetry(cctx, retry.NewConstant(time.Hour), func(context.Context) (*fakePool, error) {
			return nil, errors.New("connection refused")
		})
		require.Error(t, err)
	})
}
