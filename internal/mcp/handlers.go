package mcp

import (
	"context"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/jibsandbox/jib-gateway/internal/gateway"
	"github.com/jibsandbox/jib-gateway/internal/model"
)

// --- Input/Output types ---

// AccessInput defines parameters for gateway_check_access.
type AccessInput struct {
	Repository string `json:"repository" jsonschema:"target repository as owner/repo or a GitHub URL"`
	Operation  string `json:"operation,omitempty" jsonschema:"push, fetch, pr_create, pr_comment, pr_edit, pr_close, pr_merge, execute or fork; default fetch"`
	ForWrite   bool   `json:"for_write,omitempty" jsonschema:"bypass the read cache as a write would"`
}

// BranchInput defines parameters for gateway_check_branch.
type BranchInput struct {
	Repository string `json:"repository" jsonschema:"target repository as owner/repo"`
	Branch     string `json:"branch" jsonschema:"branch to push"`
}

// PRInput defines parameters for gateway_check_pr.
type PRInput struct {
	Repository string `json:"repository" jsonschema:"target repository as owner/repo"`
	PRNumber   int    `json:"pr_number" jsonschema:"pull request number"`
	Operation  string `json:"operation,omitempty" jsonschema:"pr_comment, pr_edit, pr_close or pr_merge; default pr_edit"`
}

// ForkInput defines parameters for gateway_check_fork.
type ForkInput struct {
	Repository string `json:"repository" jsonschema:"repository to fork as owner/repo"`
	Org        string `json:"org,omitempty" jsonschema:"organization to fork into"`
	Private    bool   `json:"private,omitempty" jsonschema:"create the fork private"`
}

// VisibilityInput defines parameters for gateway_visibility.
type VisibilityInput struct {
	Repository string `json:"repository" jsonschema:"repository as owner/repo"`
}

// DecisionOutput is the result of every check tool.
type DecisionOutput struct {
	Allowed    bool           `json:"allowed"`
	Kind       string         `json:"kind,omitempty"`
	Reason     string         `json:"reason"`
	Message    string         `json:"message,omitempty"`
	Hints      []string       `json:"hints,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
	Repository string         `json:"repository,omitempty"`
	RequestID  string         `json:"request_id,omitempty"`
}

// VisibilityOutput reports a repository's visibility.
type VisibilityOutput struct {
	Repository string `json:"repository"`
	Visibility string `json:"visibility,omitempty"`
	Error      string `json:"error,omitempty"`
}

// --- Handlers ---

// respond converts an Outcome. Denials are tool errors so agents notice.
func respond(o *gateway.Outcome) (*mcpsdk.CallToolResult, DecisionOutput, error) {
	out := DecisionOutput{
		Allowed:    o.Result.Allowed,
		Kind:       string(o.Result.Kind),
		Reason:     o.Result.Reason,
		Details:    o.Result.Details,
		Repository: o.Repository,
		RequestID:  o.RequestID,
	}
	if o.Denial != nil {
		out.Message = o.Denial.Message
		out.Hints = o.Denial.Hints
	}
	if !out.Allowed {
		return &mcpsdk.CallToolResult{IsError: true}, out, nil
	}
	return nil, out, nil
}

// admit charges a check against the rate limiter.
func (s *Server) admit(ctx context.Context) (*mcpsdk.CallToolResult, DecisionOutput, bool) {
	if _, refused := s.gw.Admit(ctx, gateway.CheckOperation); refused != nil {
		r, out, _ := respond(refused)
		return r, out, false
	}
	return nil, DecisionOutput{}, true
}

func operation(name string, fallback model.Operation) (model.Operation, error) {
	if name == "" {
		return fallback, nil
	}
	op, ok := model.ParseOperation(name)
	if !ok {
		return "", fmt.Errorf("unknown operation %q", name)
	}
	return op, nil
}

func (s *Server) handleCheckAccess(ctx context.Context, req *mcpsdk.CallToolRequest, input AccessInput) (*mcpsdk.CallToolResult, DecisionOutput, error) {
	op, err := operation(input.Operation, model.OpFetch)
	if err != nil {
		return nil, DecisionOutput{}, err
	}
	ctx = callContext(ctx)
	if r, out, ok := s.admit(ctx); !ok {
		return r, out, nil
	}
	return respond(s.gw.CheckAccess(ctx, op, input.Repository, input.ForWrite || op.IsWrite()))
}

func (s *Server) handleCheckBranch(ctx context.Context, req *mcpsdk.CallToolRequest, input BranchInput) (*mcpsdk.CallToolResult, DecisionOutput, error) {
	ctx = callContext(ctx)
	if r, out, ok := s.admit(ctx); !ok {
		return r, out, nil
	}
	return respond(s.gw.CheckBranch(ctx, input.Repository, input.Branch))
}

func (s *Server) handleCheckPR(ctx context.Context, req *mcpsdk.CallToolRequest, input PRInput) (*mcpsdk.CallToolResult, DecisionOutput, error) {
	op, err := operation(input.Operation, model.OpPREdit)
	if err != nil {
		return nil, DecisionOutput{}, err
	}
	if op.Family() != "pr" || op == model.OpPRCreate {
		return nil, DecisionOutput{}, fmt.Errorf("%s is not a pull request mutation", op)
	}
	ctx = callContext(ctx)
	if r, out, ok := s.admit(ctx); !ok {
		return r, out, nil
	}
	return respond(s.gw.CheckPullRequest(ctx, op, input.Repository, input.PRNumber))
}

func (s *Server) handleCheckFork(ctx context.Context, req *mcpsdk.CallToolRequest, input ForkInput) (*mcpsdk.CallToolResult, DecisionOutput, error) {
	ctx = callContext(ctx)
	if r, out, ok := s.admit(ctx); !ok {
		return r, out, nil
	}
	return respond(s.gw.CheckFork(ctx, input.Repository, input.Org, input.Private))
}

func (s *Server) handleVisibility(ctx context.Context, req *mcpsdk.CallToolRequest, input VisibilityInput) (*mcpsdk.CallToolResult, VisibilityOutput, error) {
	ctx = callContext(ctx)
	if _, refused := s.gw.Admit(ctx, gateway.CheckOperation); refused != nil {
		return &mcpsdk.CallToolResult{IsError: true}, VisibilityOutput{Repository: input.Repository, Error: refused.Result.Reason}, nil
	}
	info, vis, err := s.gw.VisibilityOf(ctx, input.Repository)
	if err != nil {
		s.logger.Debug("visibility lookup failed", "repository", input.Repository, "error", err)
		return &mcpsdk.CallToolResult{IsError: true}, VisibilityOutput{Repository: input.Repository, Error: err.Error()}, nil
	}
	return nil, VisibilityOutput{Repository: info.FullName(), Visibility: string(vis)}, nil
}
