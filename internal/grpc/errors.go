// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Acesso Contributors

package grpc

import (
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/codelab/acesso/internal/auth"
	"github.com/codelab/acesso/pkg/errutil"
)

// statusFromError maps domain error codes to gRPC statuses. Rejections carry
// the stable code as message; internal failures never leak details.
func statusFromError(err error) *status.Status {
	if err == nil {
		return status.New(codes.OK, "")
	}
	if st, ok := status.FromError(err); ok && st.Code() != codes.Unknown {
		return st
	}

	code := errutil.Code(err)
	switch code {
	case auth.CodeInvalidCredentials:
		return status.New(codes.Unauthenticated, code)
	case auth.CodeInvalidToken, auth.CodeTokenExpired, auth.CodeResetPasswordEmpty, auth.CodeEmptyPassword:
		return status.New(codes.InvalidArgument, code)
	case auth.CodeCredentialUnavailable:
		return status.New(codes.Unavailable, code)
	default:
		return status.New(codes.Internal, "INTERNAL")
	}
}

func isServerFault(c codes.Code) bool {
	switch c {
	case codes.Internal, codes.Unavailable, codes.Unknown, codes.DataLoss:
		return true
	default:
		return false
	}
}
