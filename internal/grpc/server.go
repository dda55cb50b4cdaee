// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Acesso Contributors

// Package grpc exposes the auth and recovery services as acesso.v1.Auth.
package grpc

import (
	"context"
	"crypto/tls"
	"errors"
	"log/slog"

	"github.com/oklog/ulid/v2"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/codelab/acesso/internal/auth"
	"github.com/codelab/acesso/pkg/errutil"
)

// Response messages.
const (
	MessageAuthenticated      = "AUTHENTICATED"
	MessageVerifyEmailAddress = "VERIFY_EMAIL_ADDRESS"
	MessagePasswordChanged    = "PASSWORD_CHANGED"
)

// Authenticator logs users in.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (string, error)
}

// Recoverer issues and redeems reset tokens.
type Recoverer interface {
	RequestReset(ctx context.Context, email string) error
	RedeemToken(ctx context.Context, email, newPassword, token string) error
}

// UserFinder looks users up by ID.
type UserFinder interface {
	FindByID(ctx context.Context, id ulid.ULID) (*auth.User, error)
}

// AuthHandler implements AuthServer.
type AuthHandler struct {
	auth     Authenticator
	recovery Recoverer
	users    UserFinder
	logger   *slog.Logger
}

// HandlerOption configures an AuthHandler.
type HandlerOption func(*AuthHandler)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) HandlerOption {
	return func(h *AuthHandler) {
		if l != nil {
			h.logger = l
		}
	}
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(a Authenticator, r Recoverer, users UserFinder, opts ...HandlerOption) *AuthHandler {
	h := &AuthHandler{auth: a, recovery: r, users: users, logger: slog.Default()}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Login expects {"email", "password"} and answers {"data": token, "message"}.
func (h *AuthHandler) Login(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	token, err := h.auth.Login(ctx, stringField(req, "email"), stringField(req, "password"))
	if err != nil {
		return nil, h.toStatus(ctx, err)
	}
	return newStruct(map[string]any{
		"data":    token,
		"message": MessageAuthenticated,
	})
}

// RequestReset expects {"email"}. The answer is the same whether or not the
// e-mail is registered.
func (h *AuthHandler) RequestReset(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if err := h.recovery.RequestReset(ctx, stringField(req, "email")); err != nil {
		return nil, h.toStatus(ctx, err)
	}
	return newStruct(map[string]any{
		"ok":      true,
		"message": MessageVerifyEmailAddress,
	})
}

// RedeemToken expects {"email", "password", "token"}.
func (h *AuthHandler) RedeemToken(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	err := h.recovery.RedeemToken(ctx,
		stringField(req, "email"),
		stringField(req, "password"),
		stringField(req, "token"),
	)
	if err != nil {
		return nil, h.toStatus(ctx, err)
	}
	return newStruct(map[string]any{
		"ok":      true,
		"message": MessagePasswordChanged,
	})
}

// GetUser expects {"id"} and answers with the user, or an empty message
// when the id is malformed or unknown.
func (h *AuthHandler) GetUser(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := ulid.Parse(stringField(req, "id"))
	if err != nil {
		return &structpb.Struct{Fields: map[string]*structpb.Value{}}, nil
	}
	user, err := h.users.FindByID(ctx, id)
	if errors.Is(err, auth.ErrNotFound) {
		return &structpb.Struct{Fields: map[string]*structpb.Value{}}, nil
	}
	if err != nil {
		return nil, h.toStatus(ctx, err)
	}

	modules := make([]any, 0, len(user.Permissions))
	for _, m := range user.Modules() {
		modules = append(modules, m)
	}
	return newStruct(map[string]any{
		"id":          user.ID.String(),
		"name":        user.Name,
		"email":       user.Email,
		"active":      user.Active,
		"admin":       user.IsAdmin,
		"permissions": modules,
	})
}

func (h *AuthHandler) toStatus(ctx context.Context, err error) error {
	st := statusFromError(err)
	if isServerFault(st.Code()) {
		errutil.LogError(h.logger.With("request_id", requestID(ctx)), "request failed", err)
	}
	return st.Err()
}

func stringField(s *structpb.Struct, key string) string {
	if s == nil {
		return ""
	}
	return s.GetFields()[key].GetStringValue()
}

func newStruct(m map[string]any) (*structpb.Struct, error) {
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, statusFromError(err).Err()
	}
	return s, nil
}

// NewServer creates a gRPC server with the request interceptor installed.
// A nil tlsConfig serves plaintext.
func NewServer(tlsConfig *tls.Config, logger *slog.Logger, opts ...grpc.ServerOption) *grpc.Server {
	base := []grpc.ServerOption{grpc.ChainUnaryInterceptor(UnaryInterceptor(logger))}
	if tlsConfig != nil {
		base = append(base, grpc.Creds(credentials.NewTLS(tlsConfig)))
	}
	return grpc.NewServer(append(base, opts...)...)
}

var _ AuthServer = (*AuthHandler)(nil)
