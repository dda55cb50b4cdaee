// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Acesso Contributors

package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/samber/oops"
)

// DefaultSessionTTL is the session token lifetime when none is configured.
const DefaultSessionTTL = 12 * time.Hour

// SessionClaims is what a session token asserts about its bearer.
type SessionClaims struct {
	UserID        string
	CredentialKey string
	Name          string
	Email         string
	Admin         bool
	Permissions   []int
}

// TokenSigner issues signed session tokens. Verification belongs to the
// API gateway, which trusts the signing key.
type TokenSigner interface {
	Sign(claims SessionClaims) (string, error)
}

// jwtClaims is the wire form. Issuer carries the gateway credential key,
// which is the claim the gateway uses to select the verifying credential.
type jwtClaims struct {
	jwt.RegisteredClaims
	Name        string `json:"name"`
	Email       string `json:"email"`
	Admin       bool   `json:"admin"`
	Permissions []int  `json:"permissions"`
}

// JWTSigner signs HS256 JWTs with a shared secret.
type JWTSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewJWTSigner creates a JWTSigner. A zero ttl selects DefaultSessionTTL.
func NewJWTSigner(secret string, ttl time.Duration) (*JWTSigner, error) {
	if secret == "" {
		return nil, oops.Code(CodeSignFailed).Errorf("signing secret is required")
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &JWTSigner{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// WithClock replaces the signer's time source.
func (s *JWTSigner) WithClock(now func() time.Time) *JWTSigner {
	s.now = now
	return s
}

// Sign produces a token carrying the complete claim set.
func (s *JWTSigner) Sign(claims SessionClaims) (string, error) {
	if claims.UserID == "" {
		return "", oops.Code(CodeSignFailed).Errorf("user id is required")
	}
	if claims.CredentialKey == "" {
		return "", oops.Code(CodeSignFailed).With("user_id", claims.UserID).Errorf("credential key is required")
	}

	permissions := claims.Permissions
	if permissions == nil {
		permissions = []int{}
	}

	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwtClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   claims.UserID,
			Issuer:    claims.CredentialKey,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
		Name:        claims.Name,
		Email:       claims.Email,
		Admin:       claims.Admin,
		Permissions: permissions,
	})

	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", oops.Code(CodeSignFailed).With("user_id", claims.UserID).Wrap(err)
	}
	return signed, nil
}

// Parse verifies a token signed by s and returns its claims. The gateway
// does this in production; the CLI and tests use it to inspect tokens.
func (s *JWTSigner) Parse(token string) (SessionClaims, error) {
	var parsed jwtClaims
	_, err := jwt.ParseWithClaims(token, &parsed, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return SessionClaims{}, oops.Code("AUTH_TOKEN_INVALID").Wrap(err)
	}
	return SessionClaims{
		UserID:        parsed.Subject,
		CredentialKey: parsed.Issuer,
		Name:          parsed.Name,
		Email:         parsed.Email,
		Admin:         parsed.Admin,
		Permissions:   parsed.Permissions,
	}, nil
}
