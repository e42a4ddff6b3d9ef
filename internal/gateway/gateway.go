// Package gateway composes the policy engines into the operations exposed
// to sandboxed agents: push, pull request mutations, gh execution and fork.
// Transports (HTTP, gRPC, MCP) call into a *Gateway and only translate.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jibsandbox/jib-gateway/internal/alert"
	"github.com/jibsandbox/jib-gateway/internal/audit"
	"github.com/jibsandbox/jib-gateway/internal/cmdguard"
	"github.com/jibsandbox/jib-gateway/internal/denial"
	"github.com/jibsandbox/jib-gateway/internal/fork"
	"github.com/jibsandbox/jib-gateway/internal/model"
	"github.com/jibsandbox/jib-gateway/internal/ownership"
	"github.com/jibsandbox/jib-gateway/internal/ratelimit"
	"github.com/jibsandbox/jib-gateway/internal/redact"
	"github.com/jibsandbox/jib-gateway/internal/repomode"
	"github.com/jibsandbox/jib-gateway/internal/visibility"
)

var (
	// ErrBadRequest marks malformed input. Transports map it to 400.
	ErrBadRequest = errors.New("bad request")
	// ErrExecFailed marks a git or gh failure after policy allowed the
	// operation. Transports map it to 502.
	ErrExecFailed = errors.New("execution failed")
)

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrBadRequest, fmt.Sprintf(format, args...))
}

// Executor runs git and gh. *cmdguard.Guard implements it.
type Executor interface {
	CheckGH(args []string) error
	GH(ctx context.Context, dir string, args []string) (*cmdguard.Result, error)
	Push(ctx context.Context, dir string, spec cmdguard.PushSpec) (*cmdguard.Result, error)
}

// Outcome is the result of one gateway operation.
type Outcome struct {
	Operation  model.Operation
	Repository string
	Result     model.PolicyResult
	Denial     *denial.Denial
	Exec       *cmdguard.Result
	RequestID  string
	// Err is set for bad requests and execution failures.
	Err error
}

// OK reports whether policy allowed the operation and it ran cleanly.
func (o *Outcome) OK() bool {
	return o.Err == nil && o.Result.Allowed
}

// Deps are the collaborators of a Gateway.
type Deps struct {
	Mode       *repomode.Policy
	Ownership  *ownership.Engine
	Fork       *fork.Policy
	Visibility *visibility.Checker
	Exec       Executor
	Limiter    *ratelimit.Limiter
	Audit      audit.Recorder
	Health     HealthChecker
	// Scrub masks credentials in command output and error text. Optional.
	Scrub *redact.Scrubber
	// Alerts receives every finished decision. Optional.
	Alerts *alert.Dispatcher
	Logger *slog.Logger
}

// Gateway is safe for concurrent use.
type Gateway struct {
	mode       *repomode.Policy
	ownership  *ownership.Engine
	fork       *fork.Policy
	visibility *visibility.Checker
	exec       Executor
	limiter    *ratelimit.Limiter
	audit      audit.Recorder
	health     HealthChecker
	scrub      *redact.Scrubber
	alerts     *alert.Dispatcher
	logger     *slog.Logger
}

// New creates a Gateway.
func New(d Deps) *Gateway {
	if d.Audit == nil {
		d.Audit = audit.Nop{}
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return &Gateway{
		mode:       d.Mode,
		ownership:  d.Ownership,
		fork:       d.Fork,
		visibility: d.Visibility,
		exec:       d.Exec,
		limiter:    d.Limiter,
		audit:      d.Audit,
		health:     d.Health,
		scrub:      d.Scrub,
		alerts:     d.Alerts,
		logger:     d.Logger,
	}
}

// Mode returns the active repo mode.
func (g *Gateway) Mode() repomode.Mode { return g.mode.Mode() }

// Limiter returns the rate limiter shared by all transports.
func (g *Gateway) Limiter() *ratelimit.Limiter { return g.limiter }

// finish fills the denial, writes the audit entry and logs the decision.
func (g *Gateway) finish(ctx context.Context, o *Outcome) *Outcome {
	if !o.Result.Allowed && o.Err == nil {
		d := denial.FromResult(o.Result, o.Operation, o.Repository)
		o.Denial = &d
	}

	entry := audit.Entry{
		RequestID:  RequestID(ctx),
		Transport:  Transport(ctx),
		Operation:  string(o.Operation),
		Repository: o.Repository,
		Decision:   string(o.Result.Decision()),
		Kind:       string(o.Result.Kind),
		Reason:     o.Result.Reason,
	}
	if vis, ok := o.Result.Detail("visibility").(string); ok {
		entry.Visibility = vis
	}
	if target, ok := o.Result.Detail("target").(string); ok {
		entry.Target = target
	}
	container, _ := o.Result.Detail("container").(string)
	if o.Err != nil {
		entry.Reason = o.Err.Error()
	}
	entry.Reason = g.scrub.String(entry.Reason)
	written, err := g.audit.Record(entry)
	if err != nil {
		g.logger.Error("audit write failed", "operation", string(o.Operation), "error", err)
	}
	o.RequestID = written.RequestID
	if written.Timestamp == "" {
		written.Timestamp = time.Now().UTC().Format(audit.TimestampFormat)
	}
	g.alerts.Dispatch(alert.Event{
		Timestamp:  written.Timestamp,
		RequestID:  written.RequestID,
		Transport:  entry.Transport,
		Operation:  entry.Operation,
		Repository: entry.Repository,
		Decision:   entry.Decision,
		Kind:       entry.Kind,
		Reason:     entry.Reason,
	})

	level := slog.LevelInfo
	if !o.OK() {
		level = slog.LevelWarn
	}
	g.logger.Log(ctx, level, "gateway decision",
		"request_id", o.RequestID,
		"operation", string(o.Operation),
		"repository", o.Repository,
		"visibility", entry.Visibility,
		"container", container,
		"decision", entry.Decision,
		"reason", entry.Reason)
	return o
}

// deny builds an Outcome for a policy denial.
func (g *Gateway) deny(ctx context.Context, op model.Operation, repo string, res model.PolicyResult) *Outcome {
	return g.finish(ctx, &Outcome{Operation: op, Repository: repo, Result: res})
}

// fail builds an Outcome for a bad request, which is recorded as a denial.
func (g *Gateway) fail(ctx context.Context, op model.Operation, repo string, err error) *Outcome {
	res := model.Denied(model.KindPolicyViolation, err.Error(), nil)
	return g.finish(ctx, &Outcome{Operation: op, Repository: repo, Result: res, Err: err})
}

// ran records an executed operation, converting non-zero exits and runner
// errors into ErrExecFailed.
func (g *Gateway) ran(ctx context.Context, op model.Operation, repo string, res model.PolicyResult, out *cmdguard.Result, err error) *Outcome {
	if out != nil {
		out.Stdout = g.scrub.String(out.Stdout)
		out.Stderr = g.scrub.String(out.Stderr)
	}
	o := &Outcome{Operation: op, Repository: repo, Result: res, Exec: out}
	var blocked *cmdguard.BlockedError
	switch {
	case errors.As(err, &blocked):
		o.Result = model.Denied(model.KindCommandBlocked, blocked.Reason,
			map[string]any{"category": string(blocked.Category), "command": blocked.Command})
	case err != nil:
		o.Err = fmt.Errorf("%w: %s", ErrExecFailed, g.scrub.String(err.Error()))
	case !out.Success():
		o.Err = fmt.Errorf("%w: exit code %d", ErrExecFailed, out.ExitCode)
	}
	return g.finish(ctx, o)
}

// Admit charges op against the rate limiter. A refused request is audited
// and returned as a denied Outcome; nil means proceed.
func (g *Gateway) Admit(ctx context.Context, op model.Operation) (ratelimit.CheckResult, *Outcome) {
	if g.limiter == nil {
		return ratelimit.CheckResult{Allowed: true}, nil
	}
	rl := g.limiter.Allow(string(op))
	if rl.Allowed {
		return rl, nil
	}
	res := model.Denied(model.KindPolicyViolation, rl.Reason, map[string]any{
		"scope":   rl.Scope,
		"limit":   rl.Limit,
		"current": rl.Current,
	})
	return rl, g.deny(ctx, op, "", res)
}
