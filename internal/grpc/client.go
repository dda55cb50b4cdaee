// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Acesso Contributors

package grpc

import (
	"context"
	"crypto/tls"
	"time"

	"github.com/samber/oops"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client calls acesso.v1.Auth.
type Client struct {
	conn *grpc.ClientConn
}

// ClientConfig holds configuration for the gRPC client.
type ClientConfig struct {
	// Address is the target server address (e.g., "localhost:9090")
	Address string

	// TLSConfig enables TLS. If nil, an insecure connection is used.
	TLSConfig *tls.Config

	// KeepaliveTime is how often to ping the server (default: 10s)
	KeepaliveTime time.Duration

	// KeepaliveTimeout is how long to wait for ping response (default: 5s)
	KeepaliveTimeout time.Duration

	// DialOptions are appended after the defaults.
	DialOptions []grpc.DialOption
}

// NewClient creates a client. The connection is established lazily.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.Address == "" {
		return nil, oops.Code("GRPC_CONFIG_INVALID").Errorf("address is required")
	}
	if cfg.KeepaliveTime == 0 {
		cfg.KeepaliveTime = 10 * time.Second
	}
	if cfg.KeepaliveTimeout == 0 {
		cfg.KeepaliveTimeout = 5 * time.Second
	}

	opts := []grpc.DialOption{
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                cfg.KeepaliveTime,
			Timeout:             cfg.KeepaliveTimeout,
			PermitWithoutStream: true,
		}),
	}
	if cfg.TLSConfig != nil {
		opts = append(opts, grpc.WithTransportCredentials(credentials.NewTLS(cfg.TLSConfig)))
	} else {
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}
	opts = append(opts, cfg.DialOptions...)

	conn, err := grpc.NewClient(cfg.Address, opts...)
	if err != nil {
		return nil, oops.Code("GRPC_DIAL_FAILED").With("address", cfg.Address).Wrap(err)
	}
	return &Client{conn: conn}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// Login returns the session token. RPC errors are returned unwrapped so
// callers can inspect the status.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	resp, err := c.call(ctx, LoginMethod, map[string]any{"email": email, "password": password})
	if err != nil {
		return "", err
	}
	return resp.GetFields()["data"].GetStringValue(), nil
}

// RequestReset asks for a reset e-mail.
func (c *Client) RequestReset(ctx context.Context, email string) error {
	_, err := c.call(ctx, RequestResetMethod, map[string]any{"email": email})
	return err
}

// RedeemToken sets a new password with a reset token.
func (c *Client) RedeemToken(ctx context.Context, email, newPassword, token string) error {
	_, err := c.call(ctx, RedeemTokenMethod, map[string]any{
		"email":    email,
		"password": newPassword,
		"token":    token,
	})
	return err
}

// GetUser returns the raw user message; it is empty when the user is unknown.
func (c *Client) GetUser(ctx context.Context, id string) (*structpb.Struct, error) {
	return c.call(ctx, GetUserMethod, map[string]any{"id": id})
}

func (c *Client) call(ctx context.Context, method string, fields map[string]any) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, oops.With("method", method).Wrap(err)
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, method, in, out); err != nil {
		return nil, err
	}
	return out, nil
}
