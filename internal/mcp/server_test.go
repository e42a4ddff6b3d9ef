package mcp

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/jibsandbox/jib-gateway/internal/fork"
	"github.com/jibsandbox/jib-gateway/internal/gateway"
	"github.com/jibsandbox/jib-gateway/internal/github"
	"github.com/jibsandbox/jib-gateway/internal/ownership"
	"github.com/jibsandbox/jib-gateway/internal/ratelimit"
	"github.com/jibsandbox/jib-gateway/internal/repomode"
	"github.com/jibsandbox/jib-gateway/internal/visibility"
)

type visTable map[string]string

func (v visTable) RepoVisibility(_ context.Context, owner, repo string) (string, error) {
	if vis, ok := v[owner+"/"+repo]; ok {
		return vis, nil
	}
	return "", &github.StatusError{StatusCode: 404}
}

type prTable map[int]github.PullRequest

func (p prTable) PullRequest(_ context.Context, _, _ string, n int) (github.PullRequest, error) {
	if pr, ok := p[n]; ok {
		return pr, nil
	}
	return github.PullRequest{}, &github.StatusError{StatusCode: 404}
}

func (p prTable) ListPullRequestsForBranch(context.Context, string, string, string, string) ([]github.PullRequest, error) {
	return nil, nil
}

func newTestServer(t *testing.T, mode repomode.Mode, limits ratelimit.Config) *Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	checker := visibility.New([]visibility.Source{{Name: "bot", Fetcher: visTable{
		"acme/secret": "private",
		"acme/open":   "public",
	}}}, visibility.Config{Logger: logger})
	policy := repomode.New(checker, mode, logger)
	prs := prTable{7: {Number: 7, Author: "jib", State: "open"}, 8: {Number: 8, Author: "carol", State: "open"}}
	gw := gateway.New(gateway.Deps{
		Mode:       policy,
		Ownership:  ownership.New(prs, ownership.Config{Logger: logger}),
		Fork:       fork.New(checker, policy, logger),
		Visibility: checker,
		Limiter:    ratelimit.New(limits, nil),
		Logger:     logger,
	})
	return New(gw, Config{Version: "test", Logger: logger})
}

func TestCheckAccessTool(t *testing.T) {
	s := newTestServer(t, repomode.Private, ratelimit.DefaultConfig())
	ctx := context.Background()

	result, out, err := s.handleCheckAccess(ctx, &mcpsdk.CallToolRequest{}, AccessInput{Repository: "acme/secret", Operation: "push"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != nil && result.IsError {
		t.Fatal("expected success, got error result")
	}
	if !out.Allowed || out.RequestID == "" {
		t.Fatalf("out = %+v", out)
	}

	result, out, err = s.handleCheckAccess(ctx, &mcpsdk.CallToolRequest{}, AccessInput{Repository: "https://github.com/acme/open"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result == nil || !result.IsError {
		t.Fatal("expected IsError result for denial")
	}
	if out.Kind != "fetch_public" || out.Message == "" || len(out.Hints) == 0 {
		t.Fatalf("out = %+v", out)
	}
}

func TestCheckAccessUnknownOperation(t *testing.T) {
	s := newTestServer(t, repomode.Private, ratelimit.DefaultConfig())
	if _, _, err := s.handleCheckAccess(context.Background(), &mcpsdk.CallToolRequest{}, AccessInput{Repository: "acme/secret", Operation: "drop"}); err == nil {
		t.Fatal("expected error for unknown operation")
	}
}

func TestCheckBranchTool(t *testing.T) {
	s := newTestServer(t, repomode.Public, ratelimit.DefaultConfig())
	_, out, err := s.handleCheckBranch(context.Background(), &mcpsdk.CallToolRequest{}, BranchInput{Repository: "acme/open", Branch: "jib/docs"})
	if err != nil || !out.Allowed {
		t.Fatalf("owned prefix: %+v, %v", out, err)
	}
	if out.Details["method"] != "prefix" {
		t.Fatalf("details = %v", out.Details)
	}
}

func TestCheckPRTool(t *testing.T) {
	s := newTestServer(t, repomode.Private, ratelimit.DefaultConfig())
	ctx := context.Background()

	if _, out, _ := s.handleCheckPR(ctx, &mcpsdk.CallToolRequest{}, PRInput{Repository: "acme/secret", PRNumber: 7, Operation: "pr_comment"}); !out.Allowed {
		t.Fatalf("own PR: %+v", out)
	}
	if _, out, _ := s.handleCheckPR(ctx, &mcpsdk.CallToolRequest{}, PRInput{Repository: "acme/secret", PRNumber: 8}); out.Allowed || out.Kind != "pr_not_owned" {
		t.Fatalf("foreign PR: %+v", out)
	}
	if _, out, _ := s.handleCheckPR(ctx, &mcpsdk.CallToolRequest{}, PRInput{Repository: "acme/secret", PRNumber: 7, Operation: "pr_merge"}); out.Allowed || out.Kind != "merge_blocked" {
		t.Fatalf("merge: %+v", out)
	}
	if _, _, err := s.handleCheckPR(ctx, &mcpsdk.CallToolRequest{}, PRInput{Repository: "acme/secret", PRNumber: 7, Operation: "push"}); err == nil {
		t.Fatal("push accepted as a PR operation")
	}
}

func TestCheckForkTool(t *testing.T) {
	s := newTestServer(t, repomode.Private, ratelimit.DefaultConfig())
	ctx := context.Background()

	if _, out, _ := s.handleCheckFork(ctx, &mcpsdk.CallToolRequest{}, ForkInput{Repository: "acme/secret", Private: false}); out.Allowed || out.Kind != "fork_target_public" {
		t.Fatalf("public target: %+v", out)
	}
	if _, out, _ := s.handleCheckFork(ctx, &mcpsdk.CallToolRequest{}, ForkInput{Repository: "acme/secret", Private: true}); !out.Allowed {
		t.Fatalf("private fork: %+v", out)
	}
}

func TestVisibilityTool(t *testing.T) {
	s := newTestServer(t, repomode.Private, ratelimit.DefaultConfig())
	ctx := context.Background()

	result, out, err := s.handleVisibility(ctx, &mcpsdk.CallToolRequest{}, VisibilityInput{Repository: "acme/open"})
	if err != nil || (result != nil && result.IsError) || out.Visibility != "public" {
		t.Fatalf("visibility = %+v, %v", out, err)
	}
	result, out, _ = s.handleVisibility(ctx, &mcpsdk.CallToolRequest{}, VisibilityInput{Repository: "acme/gone"})
	if result == nil || !result.IsError || out.Error == "" {
		t.Fatalf("missing repo = %+v", out)
	}
}

func TestToolsAreRateLimited(t *testing.T) {
	limits := ratelimit.Config{Window: time.Hour, Operations: map[string]int{ratelimit.DefaultKey: 1}}
	s := newTestServer(t, repomode.Private, limits)
	ctx := context.Background()

	if _, out, _ := s.handleCheckFork(ctx, &mcpsdk.CallToolRequest{}, ForkInput{Repository: "acme/secret", Private: true}); !out.Allowed {
		t.Fatalf("first call: %+v", out)
	}
	result, out, _ := s.handleCheckFork(ctx, &mcpsdk.CallToolRequest{}, ForkInput{Repository: "acme/secret", Private: true})
	if result == nil || !result.IsError || out.Allowed {
		t.Fatalf("second call: %+v", out)
	}
}
