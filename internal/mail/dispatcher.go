// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Acesso Contributors

// Package mail hands password-reset notifications to the delivery pipeline
// over a Redis stream. A separate mailer consumes the stream and renders the
// message; this service only records that one is due.
package mail

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"

	"github.com/codelab/acesso/internal/auth"
)

// DefaultStream is the stream password-reset requests are appended to.
const DefaultStream = "mail.password-reset"

// DefaultMaxLen approximately caps the stream length.
const DefaultMaxLen = 10000

// Stream entry fields.
const (
	FieldEmail       = "email"
	FieldToken       = "token"
	FieldRequestedAt = "requested_at"
)

// RedisDispatcher implements auth.MailDispatcher with XADD.
type RedisDispatcher struct {
	client redis.Cmdable
	stream string
	maxLen int64
	now    func() time.Time
}

// DispatcherOption configures a RedisDispatcher.
type DispatcherOption func(*RedisDispatcher)

// WithStream overrides DefaultStream.
func WithStream(stream string) DispatcherOption {
	return func(d *RedisDispatcher) {
		if stream != "" {
			d.stream = stream
		}
	}
}

// WithMaxLen overrides DefaultMaxLen. Zero disables trimming.
func WithMaxLen(n int64) DispatcherOption {
	return func(d *RedisDispatcher) {
		if n >= 0 {
			d.maxLen = n
		}
	}
}

// WithClock replaces time.Now for the requested_at field.
func WithClock(now func() time.Time) DispatcherOption {
	return func(d *RedisDispatcher) {
		if now != nil {
			d.now = now
		}
	}
}

// NewRedisDispatcher creates a dispatcher writing through client.
func NewRedisDispatcher(client redis.Cmdable, opts ...DispatcherOption) *RedisDispatcher {
	d := &RedisDispatcher{
		client: client,
		stream: DefaultStream,
		maxLen: DefaultMaxLen,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// NotifyPasswordResetRequested appends one entry carrying the raw token.
func (d *RedisDispatcher) NotifyPasswordResetRequested(ctx context.Context, email, token string) error {
	args := &redis.XAddArgs{
		Stream: d.stream,
		Values: map[string]any{
			FieldEmail:       email,
			FieldToken:       token,
			FieldRequestedAt: d.now().UTC().Format(time.RFC3339),
		},
	}
	if d.maxLen > 0 {
		args.MaxLen = d.maxLen
		args.Approx = true
	}
	if err := d.client.XAdd(ctx, args).Err(); err != nil {
		return oops.Code("MAIL_DISPATCH_FAILED").
			With("stream", d.stream).
			With("email", email).
			Wrap(err)
	}
	return nil
}

// Ping checks the Redis connection.
func (d *RedisDispatcher) Ping(ctx context.Context) error {
	if err := d.client.Ping(ctx).Err(); err != nil {
		return oops.Code("MAIL_UNAVAILABLE").With("stream", d.stream).Wrap(err)
	}
	return nil
}

var _ auth.MailDispatcher = (*RedisDispatcher)(nil)
