package scenario

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	gatewayv1 "github.com/jibsandbox/jib-gateway/api/gateway/v1"
	"github.com/jibsandbox/jib-gateway/internal/model"
)

// Checker answers the dry-run questions a scenario asks. It is satisfied by
// both the in-process gateway adapter and the gRPC client.
type Checker interface {
	CheckAccess(ctx context.Context, repository string, op model.Operation, forWrite bool) (gatewayv1.Decision, error)
	CheckBranch(ctx context.Context, repository, branch string) (gatewayv1.Decision, error)
	CheckPullRequest(ctx context.Context, repository string, op model.Operation, number int) (gatewayv1.Decision, error)
	CheckFork(ctx context.Context, repository, org string, private bool) (gatewayv1.Decision, error)
}

// Run evaluates every case against c. Cases are independent; a case that
// cannot be asked at all is recorded as failed with actual "error".
func Run(ctx context.Context, s *Scenario, c Checker) *RunResult {
	result := &RunResult{Name: s.Name, Total: len(s.Cases)}

	for i, tc := range s.Cases {
		cr := CaseResult{
			Index:    i + 1,
			Check:    tc.Check,
			Repo:     tc.Repo,
			Expected: strings.ToLower(tc.Expect),
		}
		d, err := ask(ctx, c, tc)
		switch {
		case err != nil:
			cr.Actual = "error"
			cr.Reason = err.Error()
		default:
			cr.Actual = string(model.Deny)
			if d.Allowed {
				cr.Actual = string(model.Allow)
			}
			cr.Kind = d.Kind
			cr.Reason = d.Reason
			cr.Passed = cr.Actual == cr.Expected && (tc.Kind == "" || tc.Kind == d.Kind)
		}

		if cr.Passed {
			result.Passed++
		} else {
			result.Failed++
		}
		result.Cases = append(result.Cases, cr)
	}
	return result
}

func ask(ctx context.Context, c Checker, tc Case) (gatewayv1.Decision, error) {
	op := model.Operation(tc.Op)
	if tc.Op != "" {
		parsed, ok := model.ParseOperation(tc.Op)
		if !ok {
			return gatewayv1.Decision{}, fmt.Errorf("unknown operation %q", tc.Op)
		}
		op = parsed
	}

	switch tc.Check {
	case CheckAccess:
		if op == "" {
			op = model.OpExecute
		}
		return c.CheckAccess(ctx, tc.Repo, op, tc.Write)
	case CheckBranch:
		return c.CheckBranch(ctx, tc.Repo, tc.Branch)
	case CheckPR:
		if op == "" {
			op = model.OpPRComment
		}
		return c.CheckPullRequest(ctx, tc.Repo, op, tc.PR)
	case CheckFork:
		return c.CheckFork(ctx, tc.Repo, tc.Org, tc.Private)
	default:
		return gatewayv1.Decision{}, fmt.Errorf("unknown check %q", tc.Check)
	}
}

// Load parses a scenario YAML file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario %s: %w", path, err)
	}

	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}
	if s.Name == "" {
		s.Name = path
	}
	for i, tc := range s.Cases {
		e := strings.ToLower(tc.Expect)
		if e != string(model.Allow) && e != string(model.Deny) {
			return nil, fmt.Errorf("scenario %s case %d: expect must be allow or deny, got %q", path, i+1, tc.Expect)
		}
	}
	return &s, nil
}

// LoadAndRun loads a scenario file and runs it against c.
func LoadAndRun(ctx context.Context, path string, c Checker) (*RunResult, error) {
	s, err := Load(path)
	if err != nil {
		return nil, err
	}
	result := Run(ctx, s, c)
	result.File = path
	return result, nil
}
