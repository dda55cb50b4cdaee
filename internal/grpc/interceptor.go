// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Acesso Contributors

package grpc

import (
	"context"
	"log/slog"
	"path"
	"time"

	"github.com/oklog/ulid/v2"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/codelab/acesso/internal/observability"
)

// RequestIDHeader is the metadata key carrying the caller's request id.
const RequestIDHeader = "x-request-id"

type requestIDKey struct{}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// UnaryInterceptor tags each call with a request id, counts it by method
// and status code, and logs it at debug level.
func UnaryInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		id := ""
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if v := md.Get(RequestIDHeader); len(v) > 0 {
				id = v[0]
			}
		}
		if id == "" {
			id = ulid.Make().String()
		}
		ctx = context.WithValue(ctx, requestIDKey{}, id)
		_ = grpc.SetHeader(ctx, metadata.Pairs(RequestIDHeader, id))

		start := time.Now()
		resp, err := handler(ctx, req)
		code := status.Code(err)

		method := path.Base(info.FullMethod)
		observability.RecordGRPCRequest(method, code.String())
		logger.DebugContext(ctx, "grpc request",
			"request_id", id,
			"method", method,
			"code", code.String(),
			"duration", time.Since(start),
		)
		return resp, err
	}
}
