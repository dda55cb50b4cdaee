// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Acesso Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel/attribute"

	"github.com/codelab/acesso/internal/observability"
	"github.com/codelab/acesso/pkg/errutil"
)

// dummyPasswordHash is verified when no user matches, so unknown e-mails
// take as long as wrong passwords. It matches no password.
//
//nolint:gosec // G101: not a credential
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// AuthService logs users in.
type AuthService struct {
	users   UserStore
	gateway GatewayCredentialClient
	signer  TokenSigner
	hasher  PasswordHasher
	logger  *slog.Logger
}

// NewAuthService creates an AuthService. All collaborators are required.
func NewAuthService(
	users UserStore,
	gateway GatewayCredentialClient,
	signer TokenSigner,
	hasher PasswordHasher,
	opts ...Option,
) (*AuthService, error) {
	if users == nil {
		return nil, oops.Errorf("user store is required")
	}
	if gateway == nil {
		return nil, oops.Errorf("gateway credential client is required")
	}
	if signer == nil {
		return nil, oops.Errorf("token signer is required")
	}
	if hasher == nil {
		return nil, oops.Errorf("password hasher is required")
	}
	o := buildOptions(opts)
	return &AuthService{
		users:   users,
		gateway: gateway,
		signer:  signer,
		hasher:  hasher,
		logger:  o.logger,
	}, nil
}

// Login verifies the password of the user registered under email and
// returns a signed session token.
//
// An unknown e-mail, an inactive account and a wrong password all fail with
// CodeInvalidCredentials. A gateway failure fails with
// CodeCredentialUnavailable; no token is issued without a credential.
func (s *AuthService) Login(ctx context.Context, email, password string) (token string, err error) {
	ctx, span := startSpan(ctx, "auth.login")
	defer func() {
		observability.RecordLogin(loginOutcome(err))
		endSpan(span, err)
	}()

	user, lookupErr := s.users.FindByEmail(ctx, NormalizeEmail(email))
	if lookupErr != nil {
		if !errors.Is(lookupErr, ErrNotFound) {
			return "", oops.Code(CodeLoginFailed).
				With("operation", "find user by email").
				Wrap(lookupErr)
		}
		s.hasher.Verify(password, dummyPasswordHash)
		return "", ErrInvalidCredentials()
	}

	// Verify before looking at Active so inactive accounts cost the same.
	valid := s.hasher.Verify(password, user.PasswordHash)
	if !valid || !user.Active {
		return "", ErrInvalidCredentials()
	}

	userID := user.ID.String()
	span.SetAttributes(attribute.String("user.id", userID))

	cred, err := s.gateway.GetOrCreateCredential(ctx, userID)
	if err != nil {
		return "", ErrCredentialUnavailable(userID, err)
	}

	token, err = s.signer.Sign(SessionClaims{
		UserID:        userID,
		CredentialKey: cred.Key,
		Name:          user.Name,
		Email:         user.Email,
		Admin:         user.IsAdmin,
		Permissions:   user.Modules(),
	})
	if err != nil {
		return "", oops.Code(CodeLoginFailed).
			With("operation", "sign session token").
			With("user_id", userID).
			Wrap(err)
	}

	if s.hasher.NeedsUpgrade(user.PasswordHash) {
		s.upgradeHash(ctx, user, password)
	}

	return token, nil
}

// upgradeHash re-hashes a legacy password. Login has already succeeded, so
// failures are only logged.
func (s *AuthService) upgradeHash(ctx context.Context, user *User, password string) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		errutil.LogWarn(s.logger, "password hash upgrade failed", err)
		return
	}
	if _, err := s.users.UpdatePasswordHash(ctx, user.ID, hash); err != nil {
		errutil.LogWarn(s.logger, "password hash upgrade not saved", err)
		return
	}
	s.logger.InfoContext(ctx, "password hash upgraded", "user_id", user.ID.String())
}

func loginOutcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case IsCode(err, CodeInvalidCredentials):
		return "invalid_credentials"
	case IsCode(err, CodeCredentialUnavailable):
		return "credential_unavailable"
	default:
		return "error"
	}
}
