// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Acesso Contributors

package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "acesso.v1.Auth"

// Full method names.
const (
	LoginMethod        = "/" + ServiceName + "/Login"
	RequestResetMethod = "/" + ServiceName + "/RequestReset"
	RedeemTokenMethod  = "/" + ServiceName + "/RedeemToken"
	GetUserMethod      = "/" + ServiceName + "/GetUser"
)

// AuthServer is the server API for acesso.v1.Auth. Every message is a
// google.protobuf.Struct.
type AuthServer interface {
	Login(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	RequestReset(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	RedeemToken(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GetUser(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// ServiceDesc describes acesso.v1.Auth for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AuthServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Login", Handler: unaryHandler(LoginMethod, AuthServer.Login)},
		{MethodName: "RequestReset", Handler: unaryHandler(RequestResetMethod, AuthServer.RequestReset)},
		{MethodName: "RedeemToken", Handler: unaryHandler(RedeemTokenMethod, AuthServer.RedeemToken)},
		{MethodName: "GetUser", Handler: unaryHandler(GetUserMethod, AuthServer.GetUser)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "acesso/v1/auth.proto",
}

// RegisterAuthServer registers srv on s.
func RegisterAuthServer(s grpc.ServiceRegistrar, srv AuthServer) {
	s.RegisterService(&ServiceDesc, srv)
}

type unaryCall func(AuthServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, call unaryCall) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(AuthServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(AuthServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}
