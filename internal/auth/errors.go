// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Acesso Contributors

package auth

import (
	"errors"

	"github.com/samber/oops"

	"github.com/codelab/acesso/pkg/errutil"
)

// ErrNotFound is returned by stores when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// Stable error codes. The boundary layer maps these to status codes and
// passes them through as machine-readable message identifiers.
const (
	CodeInvalidCredentials    = "AUTH_INVALID_CREDENTIALS"
	CodeCredentialUnavailable = "AUTH_CREDENTIAL_UNAVAILABLE"
	CodeLoginFailed           = "AUTH_LOGIN_FAILED"
	CodeEmptyPassword         = "AUTH_EMPTY_PASSWORD"
	CodeInvalidHash           = "AUTH_INVALID_HASH"
	CodeSignFailed            = "AUTH_SIGN_FAILED"

	CodeInvalidToken       = "RESET_TOKEN_INVALID"
	CodeTokenExpired       = "RESET_TOKEN_EXPIRED"
	CodeResetPasswordEmpty = "RESET_PASSWORD_EMPTY"
	CodeResetRequestFailed = "RESET_REQUEST_FAILED"
	CodeResetRedeemFailed  = "RESET_REDEEM_FAILED"

	CodeDuplicateEmail = "USER_DUPLICATE_EMAIL"
)

// ErrInvalidCredentials is the single failure reported for an unknown
// e-mail, an inactive account or a wrong password.
func ErrInvalidCredentials() error {
	return oops.Code(CodeInvalidCredentials).Errorf("invalid email or password")
}

// ErrCredentialUnavailable reports that the gateway could not provide a
// credential for userID. A cause that already carries another oops code is
// recorded as context instead of wrapped, since oops reports the innermost
// code of a chain.
func ErrCredentialUnavailable(userID string, cause error) error {
	b := oops.Code(CodeCredentialUnavailable).With("user_id", userID)
	switch {
	case cause == nil:
		return b.Errorf("gateway credential unavailable")
	case errutil.Code(cause) == "" || errutil.Code(cause) == CodeCredentialUnavailable:
		return b.Wrapf(cause, "gateway credential unavailable")
	default:
		return b.With("cause", cause.Error()).Errorf("gateway credential unavailable")
	}
}

// ErrInvalidToken reports an absent, consumed or orphaned reset token.
func ErrInvalidToken() error {
	return oops.Code(CodeInvalidToken).Errorf("reset token is invalid")
}

// ErrTokenExpired reports a reset token older than the configured TTL.
func ErrTokenExpired() error {
	return oops.Code(CodeTokenExpired).Errorf("reset token has expired")
}

// ErrDuplicateEmail reports a unique-email violation when saving a user.
func ErrDuplicateEmail(email string) error {
	return oops.Code(CodeDuplicateEmail).With("email", email).Errorf("email already registered")
}

// IsCode reports whether err carries code.
func IsCode(err error, code string) bool {
	return err != nil && errutil.Code(err) == code
}
