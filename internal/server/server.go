// Package server exposes the gateway's dry-run policy checks over gRPC and
// hot-reloads configuration.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	gatewayv1 "github.com/jibsandbox/jib-gateway/api/gateway/v1"
	"github.com/jibsandbox/jib-gateway/internal/auth"
	"github.com/jibsandbox/jib-gateway/internal/gateway"
	"github.com/jibsandbox/jib-gateway/internal/model"
)

// Config holds gRPC server configuration.
type Config struct {
	Addr   string
	Logger *slog.Logger
}

// Server implements gatewayv1.PolicyServer on top of a Gateway.
type Server struct {
	gw     *gateway.Gateway
	auth   *auth.Authenticator
	cfg    Config
	logger *slog.Logger

	grpcServer *grpc.Server
}

// New creates a gRPC server. Every call must carry the shared secret as
// "authorization: Bearer <secret>" metadata.
func New(gw *gateway.Gateway, authn *auth.Authenticator, cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	s := &Server{gw: gw, auth: authn, cfg: cfg, logger: cfg.Logger}
	s.grpcServer = grpc.NewServer(grpc.ChainUnaryInterceptor(s.recoverInterceptor, s.authInterceptor))
	gatewayv1.RegisterPolicyServer(s.grpcServer, s)
	return s
}

// Serve listens on the configured address. Blocks until stopped.
func (s *Server) Serve() error {
	lis, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
	}
	return s.ServeOn(lis)
}

// ServeOn serves on lis.
func (s *Server) ServeOn(lis net.Listener) error {
	s.logger.Info("grpc api listening", "addr", lis.Addr().String())
	return s.grpcServer.Serve(lis)
}

// GracefulStop stops accepting calls and waits for in-flight ones.
func (s *Server) GracefulStop() {
	s.grpcServer.GracefulStop()
}

func (s *Server) authInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	var header string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if v := md.Get("authorization"); len(v) > 0 {
			header = v[0]
		}
	}
	if err := s.auth.Verify(header); err != nil {
		s.logger.Warn("authentication failed", "method", info.FullMethod, "error", err)
		return nil, status.Error(codes.Unauthenticated, "unauthorized")
	}
	ctx = gateway.WithTransport(gateway.WithRequestID(ctx, uuid.NewString()), "grpc")
	if rl, refused := s.gw.Admit(ctx, gateway.CheckOperation); refused != nil {
		return nil, status.Error(codes.ResourceExhausted, rl.Reason)
	}
	return handler(ctx, req)
}

func (s *Server) recoverInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
	defer func() {
		if v := recover(); v != nil {
			s.logger.Error("handler panic", "method", info.FullMethod, "panic", fmt.Sprint(v))
			err = status.Error(codes.Internal, "internal error")
		}
	}()
	return handler(ctx, req)
}

func decodeRequest(in *structpb.Struct, v any) error {
	if err := gatewayv1.Decode(in, v); err != nil {
		return status.Error(codes.InvalidArgument, err.Error())
	}
	return nil
}

func parseOp(name string, fallback model.Operation) (model.Operation, error) {
	if name == "" {
		return fallback, nil
	}
	op, ok := model.ParseOperation(name)
	if !ok {
		return "", status.Errorf(codes.InvalidArgument, "unknown operation %q", name)
	}
	return op, nil
}

// decision converts an Outcome to the wire reply.
func decision(o *gateway.Outcome) (*structpb.Struct, error) {
	d := gatewayv1.Decision{
		Allowed:    o.Result.Allowed,
		Kind:       string(o.Result.Kind),
		Reason:     o.Result.Reason,
		Details:    o.Result.Details,
		Operation:  string(o.Operation),
		Repository: o.Repository,
		RequestID:  o.RequestID,
	}
	if o.Denial != nil {
		d.Message = o.Denial.Message
		d.Hints = o.Denial.Hints
	}
	out, err := gatewayv1.Encode(d)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

// CheckAccess implements gatewayv1.PolicyServer.
func (s *Server) CheckAccess(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req gatewayv1.AccessRequest
	if err := decodeRequest(in, &req); err != nil {
		return nil, err
	}
	op, err := parseOp(req.Operation, model.OpFetch)
	if err != nil {
		return nil, err
	}
	return decision(s.gw.CheckAccess(ctx, op, req.Repository, req.ForWrite || op.IsWrite()))
}

// CheckBranch implements gatewayv1.PolicyServer.
func (s *Server) CheckBranch(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req gatewayv1.BranchRequest
	if err := decodeRequest(in, &req); err != nil {
		return nil, err
	}
	return decision(s.gw.CheckBranch(ctx, req.Repository, req.Branch))
}

// CheckPullRequest implements gatewayv1.PolicyServer.
func (s *Server) CheckPullRequest(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req gatewayv1.PullRequestRequest
	if err := decodeRequest(in, &req); err != nil {
		return nil, err
	}
	op, err := parseOp(req.Operation, model.OpPREdit)
	if err != nil {
		return nil, err
	}
	if op.Family() != "pr" || op == model.OpPRCreate {
		return nil, status.Errorf(codes.InvalidArgument, "%s is not a pull request mutation", op)
	}
	return decision(s.gw.CheckPullRequest(ctx, op, req.Repository, req.PRNumber))
}

// CheckFork implements gatewayv1.PolicyServer.
func (s *Server) CheckFork(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req gatewayv1.ForkRequest
	if err := decodeRequest(in, &req); err != nil {
		return nil, err
	}
	return decision(s.gw.CheckFork(ctx, req.Repository, req.Org, req.Private))
}

// GetVisibility implements gatewayv1.PolicyServer. Unknown visibility is
// reported in the reply, not as an RPC error.
func (s *Server) GetVisibility(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req gatewayv1.VisibilityRequest
	if err := decodeRequest(in, &req); err != nil {
		return nil, err
	}
	info, vis, err := s.gw.VisibilityOf(ctx, req.Repository)
	if errors.Is(err, gateway.ErrBadRequest) {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	resp := gatewayv1.VisibilityResponse{Repository: info.FullName(), Visibility: string(vis)}
	if err != nil {
		resp.Error = err.Error()
	}
	out, err := gatewayv1.Encode(resp)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}
