// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Acesso Contributors

package auth_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/codelab/acesso/internal/auth"
	"github.com/codelab/acesso/internal/auth/memory"
	"github.com/codelab/acesso/internal/auth/mocks"
	"github.com/codelab/acesso/pkg/errutil"
)

// outbox records reset notifications instead of sending them.
type outbox struct {
	mu     sync.Mutex
	tokens map[string][]string
}

func (o *outbox) NotifyPasswordResetRequested(_ context.Context, email, token string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.tokens == nil {
		o.tokens = map[string][]string{}
	}
	o.tokens[email] = append(o.tokens[email], token)
	return nil
}

func (o *outbox) last(email string) string {
	o.mu.Lock()
	defer o.mu.Unlock()
	sent := o.tokens[email]
	if len(sent) == 0 {
		return ""
	}
	return sent[len(sent)-1]
}

func (o *outbox) count(email string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.tokens[email])
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// interleavedUsers calls after on every successful FindByEmail, standing
// in for an administrator editing the account mid-request.
type interleavedUsers struct {
	auth.UserStore
	after func(u *auth.User)
}

func (s *interleavedUsers) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	u, err := s.UserStore.FindByEmail(ctx, email)
	if err == nil {
		s.after(u)
	}
	return u, err
}

type harness struct {
	store    *memory.Store
	hasher   *auth.Argon2idHasher
	signer   *auth.JWTSigner
	clock    *clock
	mail     *outbox
	login    *auth.AuthService
	recovery *auth.RecoveryService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		store:  memory.NewStore(),
		hasher: auth.NewArgon2idHasher(),
		clock:  &clock{now: time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)},
		mail:   &outbox{},
	}
	var err error
	h.signer, err = auth.NewJWTSigner("test-secret", time.Hour)
	require.NoError(t, err)
	h.signer.WithClock(h.clock.Now)

	gateway := mocks.NewMockGatewayCredentialClient(t)
	gateway.On("GetOrCreateCredential", mock.Anything, mock.AnythingOfType("string")).
		Return(func(_ context.Context, userID string) (auth.GatewayCredential, error) {
			return auth.GatewayCredential{ID: "cred-" + userID, Key: "key-" + userID}, nil
		}).Maybe()

	h.login, err = auth.NewAuthService(h.store.Users(), gateway, h.signer, h.hasher)
	require.NoError(t, err)
	h.recovery, err = auth.NewRecoveryService(
		h.store.Users(), h.store.Tokens(), h.store, h.hasher, h.mail,
		auth.WithClock(h.clock.Now),
		auth.WithTokenTTL(60*time.Minute),
	)
	require.NoError(t, err)
	return h
}

func (h *harness) register(t *testing.T, email, password string, modules ...int) *auth.User {
	t.Helper()
	hash, err := h.hasher.Hash(password)
	require.NoError(t, err)
	u, err := auth.NewUser("Teste", email, hash)
	require.NoError(t, err)
	for _, m := range modules {
		u.Grant(m)
	}
	require.NoError(t, h.store.Users().Save(context.Background(), u))
	return u
}

func TestLoginScenarios(t *testing.T) {
	ctx := context.Background()

	t.Run("correct password signs token, wrong password is rejected", func(t *testing.T) {
		h := newHarness(t)
		u := h.register(t, "email@example.com", "senha123", 2, 5)

		token, err := h.login.Login(ctx, "email@example.com", "senha123")
		require.NoError(t, err)
		assert.NotEmpty(t, token)

		claims, err := h.signer.Parse(token)
		require.NoError(t, err)
		assert.Equal(t, u.ID.String(), claims.UserID)
		assert.Equal(t, "key-"+u.ID.String(), claims.CredentialKey)
		assert.Equal(t, []int{2, 5}, claims.Permissions)

		_, err = h.login.Login(ctx, "email@example.com", "wrong")
		errutil.AssertErrorCode(t, err, auth.CodeInvalidCredentials)

		_, err = h.login.Login(ctx, "email@example.com", "senha123x")
		errutil.AssertErrorCode(t, err, auth.CodeInvalidCredentials)
	})

	t.Run("deactivated user cannot log in", func(t *testing.T) {
		h := newHarness(t)
		u := h.register(t, "email@example.com", "senha123")
		u.Active = false
		require.NoError(t, h.store.Users().Save(ctx, u))

		_, err := h.login.Login(ctx, "email@example.com", "senha123")
		errutil.AssertErrorCode(t, err, auth.CodeInvalidCredentials)
	})

	t.Run("unknown email is rejected", func(t *testing.T) {
		h := newHarness(t)
		_, err := h.login.Login(ctx, "ghost@example.com", "senha123")
		errutil.AssertErrorCode(t, err, auth.CodeInvalidCredentials)
	})
}

func TestRecoveryScenarios(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown email succeeds and creates nothing", func(t *testing.T) {
		h := newHarness(t)
		require.NoError(t, h.recovery.RequestReset(ctx, "ghost@example.com"))
		assert.Zero(t, h.mail.count("ghost@example.com"))

		n, err := h.store.Tokens().DeleteByEmail(ctx, "ghost@example.com")
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("second request supersedes the first", func(t *testing.T) {
		h := newHarness(t)
		h.register(t, "email@example.com", "senha123")

		require.NoError(t, h.recovery.RequestReset(ctx, "email@example.com"))
		first := h.mail.last("email@example.com")
		require.NoError(t, h.recovery.RequestReset(ctx, "email@example.com"))
		second := h.mail.last("email@example.com")
		require.NotEqual(t, first, second)

		_, err := h.store.Tokens().FindByID(ctx, auth.DigestRecoveryToken(first))
		assert.True(t, errors.Is(err, auth.ErrNotFound))
		_, err = h.store.Tokens().FindByID(ctx, auth.DigestRecoveryToken(second))
		require.NoError(t, err)

		n, err := h.store.Tokens().DeleteByEmail(ctx, "email@example.com")
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	})

	t.Run("token redeemed after 61 minutes expires and is consumed", func(t *testing.T) {
		h := newHarness(t)
		h.register(t, "email@example.com", "senha123")

		require.NoError(t, h.recovery.RequestReset(ctx, "email@example.com"))
		t0 := h.mail.last("email@example.com")

		h.clock.Advance(61 * time.Minute)
		err := h.recovery.RedeemToken(ctx, "email@example.com", "nova-senha", t0)
		errutil.AssertErrorCode(t, err, auth.CodeTokenExpired)

		_, err = h.store.Tokens().FindByID(ctx, auth.DigestRecoveryToken(t0))
		assert.True(t, errors.Is(err, auth.ErrNotFound))

		err = h.recovery.RedeemToken(ctx, "email@example.com", "nova-senha", t0)
		errutil.AssertErrorCode(t, err, auth.CodeInvalidToken)

		_, err = h.login.Login(ctx, "email@example.com", "senha123")
		require.NoError(t, err)
	})

	t.Run("redeemed token changes password once", func(t *testing.T) {
		h := newHarness(t)
		h.register(t, "email@example.com", "senha123")

		require.NoError(t, h.recovery.RequestReset(ctx, "email@example.com"))
		token := h.mail.last("email@example.com")

		h.clock.Advance(5 * time.Minute)
		require.NoError(t, h.recovery.RedeemToken(ctx, "email@example.com", "nova-senha", token))

		_, err := h.login.Login(ctx, "email@example.com", "nova-senha")
		require.NoError(t, err)
		_, err = h.login.Login(ctx, "email@example.com", "senha123")
		errutil.AssertErrorCode(t, err, auth.CodeInvalidCredentials)

		err = h.recovery.RedeemToken(ctx, "email@example.com", "terceira", token)
		errutil.AssertErrorCode(t, err, auth.CodeInvalidToken)
	})

	t.Run("redemption changes only the password", func(t *testing.T) {
		h := newHarness(t)
		h.register(t, "email@example.com", "senha123", 1, 2)
		require.NoError(t, h.recovery.RequestReset(ctx, "email@example.com"))
		token := h.mail.last("email@example.com")

		users := &interleavedUsers{UserStore: h.store.Users(), after: func(u *auth.User) {
			locked := *u
			locked.Active = false
			locked.IsAdmin = false
			locked.Permissions = nil
			require.NoError(t, h.store.Users().Save(ctx, &locked))
		}}
		recovery, err := auth.NewRecoveryService(users, h.store.Tokens(), h.store, h.hasher, h.mail,
			auth.WithClock(h.clock.Now),
		)
		require.NoError(t, err)

		require.NoError(t, recovery.RedeemToken(ctx, "email@example.com", "nova-senha", token))

		after, err := h.store.Users().FindByEmail(ctx, "email@example.com")
		require.NoError(t, err)
		assert.False(t, after.Active)
		assert.Empty(t, after.Modules())
		assert.True(t, h.hasher.Verify("nova-senha", after.PasswordHash))

		_, err = h.login.Login(ctx, "email@example.com", "nova-senha")
		errutil.AssertErrorCode(t, err, auth.CodeInvalidCredentials)
	})

	t.Run("legacy hash upgrade keeps a concurrent deactivation", func(t *testing.T) {
		h := newHarness(t)
		u := h.register(t, "email@example.com", "senha123", 4)
		legacy, err := bcrypt.GenerateFromPassword([]byte("senha123"), bcrypt.MinCost)
		require.NoError(t, err)
		u.PasswordHash = string(legacy)
		require.NoError(t, h.store.Users().Save(ctx, u))

		users := &interleavedUsers{UserStore: h.store.Users(), after: func(u *auth.User) {
			locked := *u
			locked.Active = false
			require.NoError(t, h.store.Users().Save(ctx, &locked))
		}}
		gateway := mocks.NewMockGatewayCredentialClient(t)
		gateway.On("GetOrCreateCredential", mock.Anything, u.ID.String()).
			Return(auth.GatewayCredential{ID: "c", Key: "k"}, nil)
		login, err := auth.NewAuthService(users, gateway, h.signer, h.hasher)
		require.NoError(t, err)

		_, err = login.Login(ctx, "email@example.com", "senha123")
		require.NoError(t, err)

		after, err := h.store.Users().FindByID(ctx, u.ID)
		require.NoError(t, err)
		assert.False(t, after.Active)
		assert.Equal(t, []int{4}, after.Modules())
		assert.False(t, h.hasher.NeedsUpgrade(after.PasswordHash))
	})

	t.Run("concurrent redemptions apply one password", func(t *testing.T) {
		h := newHarness(t)
		h.register(t, "email@example.com", "senha123")
		require.NoError(t, h.recovery.RequestReset(ctx, "email@example.com"))
		token := h.mail.last("email@example.com")

		passwords := []string{"alpha", "bravo", "charlie", "delta"}
		errs := make([]error, len(passwords))
		var wg sync.WaitGroup
		for i, p := range passwords {
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs[i] = h.recovery.RedeemToken(ctx, "email@example.com", p, token)
			}()
		}
		wg.Wait()

		winner := ""
		for i, err := range errs {
			if err == nil {
				require.Empty(t, winner, "more than one redemption succeeded")
				winner = passwords[i]
				continue
			}
			errutil.AssertErrorCode(t, err, auth.CodeInvalidToken)
		}
		require.NotEmpty(t, winner)

		for _, p := range passwords {
			_, err := h.login.Login(ctx, "email@example.com", p)
			if p == winner {
				assert.NoError(t, err)
			} else {
				errutil.AssertErrorCode(t, err, auth.CodeInvalidCredentials)
			}
		}
	})

	t.Run("concurrent requests leave one token", func(t *testing.T) {
		h := newHarness(t)
		h.register(t, "email@example.com", "senha123")

		var wg sync.WaitGroup
		for range 6 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.NoError(t, h.recovery.RequestReset(ctx, "email@example.com"))
			}()
		}
		wg.Wait()

		n, err := h.store.Tokens().DeleteByEmail(ctx, "email@example.com")
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	})

	t.Run("purge removes stale tokens", func(t *testing.T) {
		h := newHarness(t)
		h.register(t, "email@example.com", "senha123")
		require.NoError(t, h.recovery.RequestReset(ctx, "email@example.com"))

		n, err := h.recovery.PurgeExpired(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)

		h.clock.Advance(2 * time.Hour)
		n, err = h.recovery.PurgeExpired(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	})
}
