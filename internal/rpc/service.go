// internal/rpc/service.go

// Package rpc defines the sessiond.v1.SessionService gRPC contract. Messages
// are plain Go structs carried by a JSON codec, so the service descriptor and
// client stub are written by hand instead of generated.
package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "sessiond.v1.SessionService"

const (
	methodGetInputs    = "/" + ServiceName + "/GetInputs"
	methodGetOutputs   = "/" + ServiceName + "/GetOutputs"
	methodGetModelMeta = "/" + ServiceName + "/GetModelMeta"
	methodRun          = "/" + ServiceName + "/Run"
	methodEndProfiling = "/" + ServiceName + "/EndProfiling"
)

// SessionServiceServer is the server API for SessionService.
type SessionServiceServer interface {
	GetInputs(context.Context, *Empty) (*ValueInfosResponse, error)
	GetOutputs(context.Context, *Empty) (*ValueInfosResponse, error)
	GetModelMeta(context.Context, *Empty) (*ModelMetaResponse, error)
	Run(context.Context, *RunRequest) (*RunResponse, error)
	EndProfiling(context.Context, *Empty) (*EndProfilingResponse, error)
}

// UnimplementedSessionServiceServer can be embedded to have forward
// compatible implementations.
type UnimplementedSessionServiceServer struct{}

func (UnimplementedSessionServiceServer) GetInputs(context.Context, *Empty) (*ValueInfosResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method GetInputs not implemented")
}

func (UnimplementedSessionServiceServer) GetOutputs(context.Context, *Empty) (*ValueInfosResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method GetOutputs not implemented")
}

func (UnimplementedSessionServiceServer) GetModelMeta(context.Context, *Empty) (*ModelMetaResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method GetModelMeta not implemented")
}

func (UnimplementedSessionServiceServer) Run(context.Context, *RunRequest) (*RunResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method Run not implemented")
}

func (UnimplementedSessionServiceServer) EndProfiling(context.Context, *Empty) (*EndProfilingResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method EndProfiling not implemented")
}

// RegisterSessionServiceServer registers srv with s.
func RegisterSessionServiceServer(s grpc.ServiceRegistrar, srv SessionServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// unary builds a method handler for a request type Req.
func unary[Req any, Resp any](method string, call func(SessionServiceServer, context.Context, *Req) (*Resp, error)) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(SessionServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(SessionServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// ServiceDesc is the grpc.ServiceDesc for SessionService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SessionServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetInputs", Handler: unary(methodGetInputs, SessionServiceServer.GetInputs)},
		{MethodName: "GetOutputs", Handler: unary(methodGetOutputs, SessionServiceServer.GetOutputs)},
		{MethodName: "GetModelMeta", Handler: unary(methodGetModelMeta, SessionServiceServer.GetModelMeta)},
		{MethodName: "Run", Handler: unary(methodRun, SessionServiceServer.Run)},
		{MethodName: "EndProfiling", Handler: unary(methodEndProfiling, SessionServiceServer.EndProfiling)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "sessiond/v1/session.json",
}

// SessionServiceClient is the client API for SessionService.
type SessionServiceClient interface {
	GetInputs(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*ValueInfosResponse, error)
	GetOutputs(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*ValueInfosResponse, error)
	GetModelMeta(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*ModelMetaResponse, error)
	Run(ctx context.Context, in *RunRequest, opts ...grpc.CallOption) (*RunResponse, error)
	EndProfiling(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*EndProfilingResponse, error)
}

type sessionServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewSessionServiceClient returns a client that always uses the JSON codec.
func NewSessionServiceClient(cc grpc.ClientConnInterface) SessionServiceClient {
	return &sessionServiceClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *sessionServiceClient) GetInputs(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*ValueInfosResponse, error) {
	return invoke[ValueInfosResponse](ctx, c.cc, methodGetInputs, in, opts)
}

func (c *sessionServiceClient) GetOutputs(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*ValueInfosResponse, error) {
	return invoke[ValueInfosResponse](ctx, c.cc, methodGetOutputs, in, opts)
}

func (c *sessionServiceClient) GetModelMeta(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*ModelMetaResponse, error) {
	return invoke[ModelMetaResponse](ctx, c.cc, methodGetModelMeta, in, opts)
}

func (c *sessionServiceClient) Run(ctx context.Context, in *RunRequest, opts ...grpc.CallOption) (*RunResponse, error) {
	return invoke[RunResponse](ctx, c.cc, methodRun, in, opts)
}

func (c *sessionServiceClient) EndProfiling(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*EndProfilingResponse, error) {
	return invoke[EndProfilingResponse](ctx, c.cc, methodEndProfiling, in, opts)
}
