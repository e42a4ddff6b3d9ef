package gateway

import (
	"context"

	"github.com/jibsandbox/jib-gateway/internal/model"
	"github.com/jibsandbox/jib-gateway/internal/repo"
)

// Dry-run checks evaluate policy without executing anything. They are
// audited under "check_<operation>".

// CheckOperation is the rate-limit key dry-run checks are charged to. It has
// no budget of its own, so the default budget applies.
const CheckOperation model.Operation = "check"

func checkOp(op model.Operation) model.Operation { return "check_" + op }

// CheckAccess evaluates repo mode for op against repository.
func (g *Gateway) CheckAccess(ctx context.Context, op model.Operation, repository string, forWrite bool) *Outcome {
	var target *model.RepoInfo
	if info, ok := repo.Resolve(ctx, repo.Inputs{Repo: repository}); ok {
		target = &info
	}
	res := g.mode.CheckAccess(ctx, op, target, forWrite)
	return g.finish(ctx, &Outcome{Operation: checkOp(op), Repository: nameOf(target, repository), Result: res})
}

// CheckBranch evaluates repo mode and branch ownership for a push.
func (g *Gateway) CheckBranch(ctx context.Context, repository, branch string) *Outcome {
	op := checkOp(model.OpPush)
	info, ok := repo.Resolve(ctx, repo.Inputs{Repo: repository})
	if !ok {
		res := g.mode.CheckAccess(ctx, model.OpPush, nil, true)
		return g.finish(ctx, &Outcome{Operation: op, Repository: repository, Result: res})
	}
	if res := g.mode.CheckAccess(ctx, model.OpPush, &info, true); !res.Allowed {
		return g.finish(ctx, &Outcome{Operation: op, Repository: info.FullName(), Result: res})
	}
	res := g.ownership.CheckBranchOwnership(ctx, info, branch)
	return g.finish(ctx, &Outcome{Operation: op, Repository: info.FullName(), Result: res})
}

// CheckPullRequest evaluates repo mode and PR ownership for a mutation.
// Merge is always denied.
func (g *Gateway) CheckPullRequest(ctx context.Context, op model.Operation, repository string, number int) *Outcome {
	info, ok := repo.Resolve(ctx, repo.Inputs{Repo: repository})
	if op == model.OpPRMerge {
		res := g.ownership.CheckMergeAllowed(info, number)
		return g.finish(ctx, &Outcome{Operation: checkOp(op), Repository: repository, Result: res})
	}
	if !ok {
		res := g.mode.CheckAccess(ctx, op, nil, true)
		return g.finish(ctx, &Outcome{Operation: checkOp(op), Repository: repository, Result: res})
	}
	if res := g.mode.CheckAccess(ctx, op, &info, true); !res.Allowed {
		return g.finish(ctx, &Outcome{Operation: checkOp(op), Repository: info.FullName(), Result: res})
	}
	res := g.ownership.CheckPROwnership(ctx, info, number)
	return g.finish(ctx, &Outcome{Operation: checkOp(op), Repository: info.FullName(), Result: res})
}

// CheckFork evaluates the fork policy.
func (g *Gateway) CheckFork(ctx context.Context, repository, org string, private bool) *Outcome {
	op := checkOp(model.OpFork)
	info, ok := repo.Resolve(ctx, repo.Inputs{Repo: repository})
	if !ok {
		res := model.Denied(model.KindVisibilityUnknown, "could not parse fork source", nil)
		return g.finish(ctx, &Outcome{Operation: op, Repository: repository, Result: res})
	}
	res := g.checkFork(ctx, info, org, private)
	return g.finish(ctx, &Outcome{Operation: op, Repository: info.FullName(), Result: res})
}

// checkFork applies the fork policy, then repo mode to the source. The fork
// policy only restricts private mode; repo mode also keeps private
// repositories out of reach in public mode.
func (g *Gateway) checkFork(ctx context.Context, source model.RepoInfo, org string, private bool) model.PolicyResult {
	res := g.fork.CheckFork(ctx, source.Owner, source.Repo, org, private)
	if !res.Allowed {
		return res
	}
	if modeRes := g.mode.CheckAccess(ctx, model.OpFork, &source, true); !modeRes.Allowed {
		return modeRes
	}
	return res
}

// VisibilityOf returns the repository's visibility for reads. Any error
// means unknown.
func (g *Gateway) VisibilityOf(ctx context.Context, repository string) (model.RepoInfo, model.Visibility, error) {
	info, ok := repo.Resolve(ctx, repo.Inputs{Repo: repository})
	if !ok {
		return model.RepoInfo{}, "", badRequest("invalid repository %q", repository)
	}
	vis, err := g.visibility.Visibility(ctx, info.Owner, info.Repo, false)
	return info, vis, err
}
