// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Acesso Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/oops"

	"github.com/codelab/acesso/internal/observability"
	"github.com/codelab/acesso/pkg/errutil"
)

// mailHandoffTimeout bounds the mail hand-off, which runs detached from the
// request's cancellation.
const mailHandoffTimeout = 5 * time.Second

// RecoveryService issues and redeems password reset tokens.
type RecoveryService struct {
	users  UserStore
	tokens RecoveryTokenStore
	tx     Transactor
	hasher PasswordHasher
	mail   MailDispatcher
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger
}

// NewRecoveryService creates a RecoveryService. All collaborators are
// required.
func NewRecoveryService(
	users UserStore,
	tokens RecoveryTokenStore,
	tx Transactor,
	hasher PasswordHasher,
	mail MailDispatcher,
	opts ...Option,
) (*RecoveryService, error) {
	switch {
	case users == nil:
		return nil, oops.Errorf("user store is required")
	case tokens == nil:
		return nil, oops.Errorf("recovery token store is required")
	case tx == nil:
		return nil, oops.Errorf("transactor is required")
	case hasher == nil:
		return nil, oops.Errorf("password hasher is required")
	case mail == nil:
		return nil, oops.Errorf("mail dispatcher is required")
	}
	o := buildOptions(opts)
	return &RecoveryService{
		users:  users,
		tokens: tokens,
		tx:     tx,
		hasher: hasher,
		mail:   mail,
		ttl:    o.tokenTTL,
		now:    o.now,
		logger: o.logger,
	}, nil
}

// TokenTTL returns how long a token stays redeemable.
func (s *RecoveryService) TokenTTL() time.Duration {
	return s.ttl
}

// RequestReset issues a reset token for the user registered under email and
// hands it to the mail pipeline. Unknown e-mails succeed without creating a
// token. A failed hand-off is logged and does not fail the request.
func (s *RecoveryService) RequestReset(ctx context.Context, email string) (err error) {
	ctx, span := startSpan(ctx, "auth.request_reset")
	outcome := "issued"
	defer func() {
		if err != nil {
			outcome = "error"
		}
		observability.RecordResetRequest(outcome)
		endSpan(span, err)
	}()

	user, err := s.users.FindByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			outcome = "unknown_email"
			return nil
		}
		return oops.Code(CodeResetRequestFailed).
			With("operation", "find user by email").
			Wrap(err)
	}

	token, digest, err := GenerateRecoveryToken()
	if err != nil {
		return oops.Code(CodeResetRequestFailed).
			With("operation", "generate token").
			Wrap(err)
	}

	record := &RecoveryToken{
		ID:        digest,
		Email:     NormalizeEmail(user.Email),
		CreatedAt: s.now().UTC(),
	}

	err = s.tx.InTx(ctx, func(ctx context.Context, stores Stores) error {
		if _, err := stores.Tokens.DeleteByEmail(ctx, record.Email); err != nil {
			return oops.With("operation", "delete previous tokens").Wrap(err)
		}
		if err := stores.Tokens.Create(ctx, record); err != nil {
			return oops.With("operation", "create token").Wrap(err)
		}
		return nil
	})
	if err != nil {
		return oops.Code(CodeResetRequestFailed).
			With("email", record.Email).
			Wrap(err)
	}

	s.dispatch(ctx, record.Email, token)
	return nil
}

func (s *RecoveryService) dispatch(ctx context.Context, email, token string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), mailHandoffTimeout)
	defer cancel()

	if err := s.mail.NotifyPasswordResetRequested(ctx, email, token); err != nil {
		observability.RecordMailDispatchFailure()
		errutil.LogError(s.logger, "password reset mail hand-off failed", err)
	}
}

// RedeemToken sets a new password for the account a reset token was issued
// to, consuming the token.
//
// Checks run in order and stop at the first failure: the token must exist
// and belong to email (CodeInvalidToken), must not be older than the TTL
// (CodeTokenExpired, and the token is deleted), and its account must still
// exist (CodeInvalidToken). The password write and the token delete share a
// transaction; if another redemption deleted the token first the write is
// rolled back and CodeInvalidToken is returned.
func (s *RecoveryService) RedeemToken(ctx context.Context, email, newPassword, token string) (err error) {
	ctx, span := startSpan(ctx, "auth.redeem_token")
	defer func() {
		observability.RecordResetRedemption(redeemOutcome(err))
		endSpan(span, err)
	}()

	if newPassword == "" {
		return oops.Code(CodeResetPasswordEmpty).Errorf("new password cannot be empty")
	}
	if token == "" {
		return ErrInvalidToken()
	}

	record, err := s.tokens.FindByID(ctx, DigestRecoveryToken(token))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrInvalidToken()
		}
		return oops.Code(CodeResetRedeemFailed).
			With("operation", "find token").
			Wrap(err)
	}

	// A token presented with another account's e-mail is left untouched.
	if NormalizeEmail(email) != NormalizeEmail(record.Email) {
		return ErrInvalidToken()
	}

	if record.Expired(s.now(), s.ttl) {
		if _, err := s.tokens.DeleteByID(ctx, record.ID); err != nil {
			return oops.Code(CodeResetRedeemFailed).
				With("operation", "delete expired token").
				Wrap(err)
		}
		return ErrTokenExpired()
	}

	user, err := s.users.FindByEmail(ctx, record.Email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrInvalidToken()
		}
		return oops.Code(CodeResetRedeemFailed).
			With("operation", "find user by email").
			Wrap(err)
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return oops.Code(CodeResetRedeemFailed).
			With("operation", "hash password").
			Wrap(err)
	}

	err = s.tx.InTx(ctx, func(ctx context.Context, stores Stores) error {
		updated, err := stores.Users.UpdatePasswordHash(ctx, user.ID, hash)
		if err != nil {
			return oops.Code(CodeResetRedeemFailed).
				With("operation", "save password").
				Wrap(err)
		}
		if updated == 0 {
			return ErrInvalidToken()
		}
		deleted, err := stores.Tokens.DeleteByID(ctx, record.ID)
		if err != nil {
			return oops.Code(CodeResetRedeemFailed).
				With("operation", "consume token").
				Wrap(err)
		}
		if deleted == 0 {
			return ErrInvalidToken()
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "password reset", "user_id", user.ID.String())
	return nil
}

// PurgeExpired deletes tokens older than the TTL and returns how many went.
func (s *RecoveryService) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := s.tokens.DeleteCreatedBefore(ctx, s.now().Add(-s.ttl))
	if err != nil {
		return 0, oops.Code("RESET_PURGE_FAILED").Wrap(err)
	}
	if n > 0 {
		s.logger.InfoContext(ctx, "purged expired reset tokens", "count", n)
	}
	return n, nil
}

func redeemOutcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case IsCode(err, CodeInvalidToken):
		return "invalid_token"
	case IsCode(err, CodeTokenExpired):
		return "expired"
	case IsCode(err, CodeResetPasswordEmpty):
		return "rejected"
	default:
		return "error"
	}
}
