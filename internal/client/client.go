// Package client calls a remote gateway's PolicyService.
package client

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	gatewayv1 "github.com/jibsandbox/jib-gateway/api/gateway/v1"
	"github.com/jibsandbox/jib-gateway/internal/model"
)

// DefaultTimeout bounds each call.
const DefaultTimeout = 10 * time.Second

// bearer attaches the shared secret to every call. The gateway listens on
// loopback inside the sandbox network, so plaintext transport is allowed.
type bearer string

func (b bearer) GetRequestMetadata(context.Context, ...string) (map[string]string, error) {
	return map[string]string{"authorization": "Bearer " + string(b)}, nil
}

func (bearer) RequireTransportSecurity() bool { return false }

// Client connects to a gateway gRPC policy server.
type Client struct {
	conn    *grpc.ClientConn
	client  gatewayv1.PolicyClient
	Timeout time.Duration
}

// New creates a client for addr that authenticates with secret.
func New(addr, secret string) (*Client, error) {
	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithPerRPCCredentials(bearer(secret)))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to policy server: %w", err)
	}
	return &Client{conn: conn, client: gatewayv1.NewPolicyClient(conn), Timeout: DefaultTimeout}, nil
}

// Close closes the gRPC connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

type rpc func(context.Context, *structpb.Struct, ...grpc.CallOption) (*structpb.Struct, error)

func (c *Client) do(ctx context.Context, call rpc, req, resp any) error {
	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()
	in, err := gatewayv1.Encode(req)
	if err != nil {
		return err
	}
	out, err := call(ctx, in)
	if err != nil {
		return err
	}
	return gatewayv1.Decode(out, resp)
}

// check runs a Check RPC. Fail-closed: a transport or server error yields
// a denial. Authentication and argument errors are returned so the caller
// can report them.
func (c *Client) check(ctx context.Context, call rpc, req any, op string) (gatewayv1.Decision, error) {
	var d gatewayv1.Decision
	err := c.do(ctx, call, req, &d)
	if err == nil {
		return d, nil
	}
	switch status.Code(err) {
	case codes.Unauthenticated, codes.InvalidArgument:
		return gatewayv1.Decision{}, err
	}
	return gatewayv1.Decision{
		Allowed:   false,
		Kind:      string(model.KindPolicyViolation),
		Reason:    fmt.Sprintf("policy server unreachable: %v", err),
		Operation: op,
	}, nil
}

// CheckAccess asks whether op may touch repository.
func (c *Client) CheckAccess(ctx context.Context, repository string, op model.Operation, forWrite bool) (gatewayv1.Decision, error) {
	req := gatewayv1.AccessRequest{Repository: repository, Operation: string(op), ForWrite: forWrite}
	return c.check(ctx, c.client.CheckAccess, req, string(op))
}

// CheckBranch asks whether the agent may push to branch.
func (c *Client) CheckBranch(ctx context.Context, repository, branch string) (gatewayv1.Decision, error) {
	return c.check(ctx, c.client.CheckBranch, gatewayv1.BranchRequest{Repository: repository, Branch: branch}, string(model.OpPush))
}

// CheckPullRequest asks whether op may mutate PR number.
func (c *Client) CheckPullRequest(ctx context.Context, repository string, op model.Operation, number int) (gatewayv1.Decision, error) {
	req := gatewayv1.PullRequestRequest{Repository: repository, Operation: string(op), PRNumber: number}
	return c.check(ctx, c.client.CheckPullRequest, req, string(op))
}

// CheckFork asks whether repository may be forked.
func (c *Client) CheckFork(ctx context.Context, repository, org string, private bool) (gatewayv1.Decision, error) {
	req := gatewayv1.ForkRequest{Repository: repository, Org: org, Private: private}
	return c.check(ctx, c.client.CheckFork, req, string(model.OpFork))
}

// Visibility returns the repository's visibility as the server sees it.
func (c *Client) Visibility(ctx context.Context, repository string) (gatewayv1.VisibilityResponse, error) {
	var v gatewayv1.VisibilityResponse
	err := c.do(ctx, c.client.GetVisibility, gatewayv1.VisibilityRequest{Repository: repository}, &v)
	return v, err
}
