// Package fork keeps public code from being forked into the agent's reach
// while private repo mode is active.
package fork

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jibsandbox/jib-gateway/internal/model"
	"github.com/jibsandbox/jib-gateway/internal/repomode"
)

// ModeSource reports the active repo mode.
type ModeSource interface {
	Mode() repomode.Mode
}

// Policy evaluates fork requests.
type Policy struct {
	oracle repomode.Oracle
	mode   ModeSource
	logger *slog.Logger
}

// New creates a fork Policy.
func New(oracle repomode.Oracle, mode ModeSource, logger *slog.Logger) *Policy {
	if logger == nil {
		logger = slog.Default()
	}
	return &Policy{oracle: oracle, mode: mode, logger: logger}
}

// CheckFork runs the source check, then the target check. A source denial
// short-circuits. Outside private mode every fork is allowed.
func (p *Policy) CheckFork(ctx context.Context, sourceOwner, sourceRepo, targetOrg string, makePrivate bool) model.PolicyResult {
	name := sourceOwner + "/" + sourceRepo
	if p.mode.Mode() != repomode.Private {
		res := model.Allowed("fork policy applies only in private repo mode",
			map[string]any{"source": name, "mode": string(p.mode.Mode())})
		p.log(name, targetOrg, res)
		return res
	}

	src := p.CheckForkSource(ctx, sourceOwner, sourceRepo)
	if !src.Allowed {
		p.log(name, targetOrg, src)
		return src
	}
	dst := p.CheckForkTarget(sourceOwner, sourceRepo, targetOrg, makePrivate)
	if !dst.Allowed {
		dst.Details["source_visibility"] = src.Detail("source_visibility")
		p.log(name, targetOrg, dst)
		return dst
	}

	details := map[string]any{
		"source":            name,
		"source_visibility": src.Detail("source_visibility"),
		"target_visibility": dst.Detail("target_visibility"),
	}
	if targetOrg != "" {
		details["target_org"] = targetOrg
	}
	res := model.Allowed(fmt.Sprintf("private fork of %s allowed", name), details)
	p.log(name, targetOrg, res)
	return res
}

// CheckForkSource denies forking public or unknown-visibility repositories.
// A fork copies code, so the lookup never uses a cached answer.
func (p *Policy) CheckForkSource(ctx context.Context, owner, repo string) model.PolicyResult {
	name := owner + "/" + repo
	if owner == "" || repo == "" {
		return model.Denied(model.KindVisibilityUnknown, "could not determine fork source repository", nil)
	}
	vis, err := p.oracle.Visibility(ctx, owner, repo, true)
	if err != nil {
		return model.Denied(model.KindVisibilityUnknown,
			fmt.Sprintf("could not determine visibility of fork source %s", name),
			map[string]any{"source": name, "error": err.Error(), "lookup": repomode.LookupClass(err)})
	}
	if vis == model.Public {
		return model.Denied(model.KindForkPublicSource,
			fmt.Sprintf("%s is public and cannot be forked in private repo mode", name),
			map[string]any{"source": name, "source_visibility": string(vis)})
	}
	return model.Allowed(fmt.Sprintf("fork source %s is %s", name, vis),
		map[string]any{"source": name, "source_visibility": string(vis)})
}

// CheckForkTarget requires the fork to be created private.
func (p *Policy) CheckForkTarget(owner, repo, targetOrg string, makePrivate bool) model.PolicyResult {
	details := map[string]any{"source": owner + "/" + repo}
	if targetOrg != "" {
		details["target_org"] = targetOrg
	}
	if !makePrivate {
		details["target_visibility"] = string(model.Public)
		return model.Denied(model.KindForkTargetPublic,
			"forks must be private: pass the private flag explicitly", details)
	}
	details["target_visibility"] = string(model.Private)
	return model.Allowed("fork will be created private", details)
}

func (p *Policy) log(source, targetOrg string, res model.PolicyResult) {
	vis, _ := res.Detail("source_visibility").(string)
	p.logger.Info("fork decision",
		"operation", string(model.OpFork),
		"repository", source,
		"target_org", targetOrg,
		"visibility", vis,
		"decision", string(res.Decision()),
		"reason", res.Reason)
}
