// Package gatewayv1 defines the jib.gateway.v1.PolicyService gRPC service.
// Messages travel as google.protobuf.Struct and map onto the Go types in
// messages.go, so no generated code is needed.
package gatewayv1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "jib.gateway.v1.PolicyService"

// Method names.
const (
	MethodCheckAccess      = "CheckAccess"
	MethodCheckBranch      = "CheckBranch"
	MethodCheckPullRequest = "CheckPullRequest"
	MethodCheckFork        = "CheckFork"
	MethodGetVisibility    = "GetVisibility"
)

// FullMethod returns the "/service/method" path of m.
func FullMethod(m string) string { return "/" + ServiceName + "/" + m }

// PolicyServer is the server API for PolicyService.
type PolicyServer interface {
	CheckAccess(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CheckBranch(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CheckPullRequest(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CheckFork(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetVisibility(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryCall func(PolicyServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unary(name string, call unaryCall) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(PolicyServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(name)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(PolicyServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// ServiceDesc describes PolicyService for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*PolicyServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(MethodCheckAccess, PolicyServer.CheckAccess),
		unary(MethodCheckBranch, PolicyServer.CheckBranch),
		unary(MethodCheckPullRequest, PolicyServer.CheckPullRequest),
		unary(MethodCheckFork, PolicyServer.CheckFork),
		unary(MethodGetVisibility, PolicyServer.GetVisibility),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "jib/gateway/v1/policy.proto",
}

// RegisterPolicyServer registers srv on s.
func RegisterPolicyServer(s grpc.ServiceRegistrar, srv PolicyServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// PolicyClient is the client API for PolicyService.
type PolicyClient interface {
	CheckAccess(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	CheckBranch(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	CheckPullRequest(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	CheckFork(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	GetVisibility(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type policyClient struct {
	cc grpc.ClientConnInterface
}

// NewPolicyClient creates a PolicyClient over cc.
func NewPolicyClient(cc grpc.ClientConnInterface) PolicyClient {
	return &policyClient{cc: cc}
}

func (c *policyClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts []grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, FullMethod(method), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *policyClient) CheckAccess(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodCheckAccess, in, opts)
}

func (c *policyClient) CheckBranch(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodCheckBranch, in, opts)
}

func (c *policyClient) CheckPullRequest(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodCheckPullRequest, in, opts)
}

func (c *policyClient) CheckFork(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodCheckFork, in, opts)
}

func (c *policyClient) GetVisibility(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodGetVisibility, in, opts)
}
