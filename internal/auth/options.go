// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Acesso Contributors

package auth

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("acesso/auth")

type serviceOptions struct {
	logger   *slog.Logger
	now      func() time.Time
	tokenTTL time.Duration
}

// Option configures AuthService and RecoveryService.
type Option func(*serviceOptions)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *serviceOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *serviceOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// WithTokenTTL sets how long a reset token stays redeemable. Non-positive
// values keep DefaultRecoveryTokenTTL.
func WithTokenTTL(ttl time.Duration) Option {
	return func(o *serviceOptions) {
		if ttl > 0 {
			o.tokenTTL = ttl
		}
	}
}

func buildOptions(opts []Option) serviceOptions {
	o := serviceOptions{
		logger:   slog.Default(),
		now:      time.Now,
		tokenTTL: DefaultRecoveryTokenTTL,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return tracer.Start(ctx, name)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
