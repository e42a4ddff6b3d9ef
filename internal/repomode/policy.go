// Package repomode enforces the global private-repo-mode switch: in private
// mode only private and internal repositories are reachable, in public mode
// only public ones.
package repomode

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/jibsandbox/jib-gateway/internal/denial"
	"github.com/jibsandbox/jib-gateway/internal/model"
	"github.com/jibsandbox/jib-gateway/internal/repo"
)

// Mode is the active visibility restriction. There is no disabled mode.
type Mode string

const (
	Private Mode = "private"
	Public  Mode = "public"
)

// ModeFromBool maps the PRIVATE_REPO_MODE flag to a Mode.
func ModeFromBool(private bool) Mode {
	if private {
		return Private
	}
	return Public
}

// ParseMode accepts "private" or "public".
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case Private, Public:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("invalid repo mode %q (want private or public)", s)
	}
}

// Oracle answers repository visibility; any error means unknown.
type Oracle interface {
	Visibility(ctx context.Context, owner, repo string, forWrite bool) (model.Visibility, error)
}

// Policy is safe for concurrent use. The mode can be swapped while requests
// are in flight.
type Policy struct {
	oracle  Oracle
	logger  *slog.Logger
	private atomic.Bool
}

// New creates a Policy in the given mode.
func New(oracle Oracle, mode Mode, logger *slog.Logger) *Policy {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Policy{oracle: oracle, logger: logger}
	p.SetMode(mode)
	return p
}

// Mode returns the active mode.
func (p *Policy) Mode() Mode {
	return ModeFromBool(p.private.Load())
}

// SetMode switches the active mode.
func (p *Policy) SetMode(m Mode) {
	prev := p.private.Swap(m == Private)
	if prev != (m == Private) {
		p.logger.Info("repo mode changed", "mode", string(m))
	}
}

// CheckAccess decides whether op may touch repo. A nil repo or an unknown
// visibility is denied.
func (p *Policy) CheckAccess(ctx context.Context, op model.Operation, r *model.RepoInfo, forWrite bool) model.PolicyResult {
	mode := p.Mode()
	if r == nil || r.Owner == "" || r.Repo == "" {
		res := model.Denied(model.KindVisibilityUnknown, "could not determine target repository",
			map[string]any{"mode": string(mode)})
		p.audit(op, "", "", mode, res)
		return res
	}
	name := r.FullName()

	vis, err := p.oracle.Visibility(ctx, r.Owner, r.Repo, forWrite)
	if err != nil {
		lookup := LookupClass(err)
		res := model.Denied(model.KindVisibilityUnknown,
			fmt.Sprintf("could not determine visibility of %s: %s", name, lookupText[lookup]),
			map[string]any{"repository": name, "mode": string(mode), "error": err.Error(), "lookup": lookup})
		p.audit(op, name, "", mode, res)
		return res
	}

	details := map[string]any{"repository": name, "visibility": string(vis), "mode": string(mode)}
	allowed := vis.IsPrivateClass()
	if mode == Public {
		allowed = vis == model.Public
	}

	var res model.PolicyResult
	if allowed {
		res = model.Allowed(fmt.Sprintf("%s repository allowed in %s mode", vis, mode), details)
	} else {
		res = model.Denied(denial.KindForOperation(op, vis),
			fmt.Sprintf("%s %s repository %s blocked in %s repo mode", describe(op), vis, name, mode), details)
	}
	p.audit(op, name, vis, mode, res)
	return res
}

// Lookup failure classes reported in the "lookup" detail.
const (
	LookupRateLimited = "rate_limited"
	LookupNoAccess    = "no_access"
	LookupUnavailable = "unavailable"
)

var lookupText = map[string]string{
	LookupRateLimited: "every credential is rate limited",
	LookupNoAccess:    "no credential has access",
	LookupUnavailable: "GitHub did not answer",
}

// LookupClass tells a throttled lookup from one where no credential can see
// the repository. Errors that do not classify are unavailable.
func LookupClass(err error) string {
	var le interface {
		AllRateLimited() bool
		NoneHasAccess() bool
	}
	if !errors.As(err, &le) {
		return LookupUnavailable
	}
	switch {
	case le.AllRateLimited():
		return LookupRateLimited
	case le.NoneHasAccess():
		return LookupNoAccess
	default:
		return LookupUnavailable
	}
}

// describe phrases op for a denial reason, e.g. "push to".
func describe(op model.Operation) string {
	switch op {
	case model.OpPush:
		return "push to"
	case model.OpFetch:
		return "fetch from"
	case model.OpFork:
		return "fork of"
	case model.OpExecute:
		return "gh command against"
	case "":
		return "access to"
	default:
		return string(op) + " on"
	}
}

// CheckRepository resolves the target from in, then applies CheckAccess.
func (p *Policy) CheckRepository(ctx context.Context, op model.Operation, in repo.Inputs, forWrite bool) model.PolicyResult {
	info, ok := repo.Resolve(ctx, in)
	if !ok {
		p.logger.Debug("repository resolution failed", "operation", string(op),
			"repo", in.Repo, "url", in.URL, "repo_path", in.RepoPath)
		return p.CheckAccess(ctx, op, nil, forWrite)
	}
	return p.CheckAccess(ctx, op, &info, forWrite)
}

func (p *Policy) audit(op model.Operation, name string, vis model.Visibility, mode Mode, res model.PolicyResult) {
	level := slog.LevelInfo
	if !res.Allowed {
		level = slog.LevelWarn
	}
	p.logger.Log(context.Background(), level, "repo mode decision",
		"operation", string(op),
		"repository", name,
		"visibility", string(vis),
		"mode", string(mode),
		"decision", string(res.Decision()),
		"reason", res.Reason)
}
