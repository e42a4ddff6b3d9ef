package gateway

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jibsandbox/jib-gateway/internal/cmdguard"
	"github.com/jibsandbox/jib-gateway/internal/denylist"
	"github.com/jibsandbox/jib-gateway/internal/model"
	"github.com/jibsandbox/jib-gateway/internal/repo"
)

// PushRequest pushes the checkout at RepoPath.
type PushRequest struct {
	RepoPath string `json:"repo_path"`
	Remote   string `json:"remote"`
	Refspec  string `json:"refspec"`
	Force    bool   `json:"force"`
}

// PRCreateRequest opens a pull request.
type PRCreateRequest struct {
	Repo  string `json:"repo"`
	Title string `json:"title"`
	Body  string `json:"body"`
	Base  string `json:"base"`
	Head  string `json:"head"`
	Draft bool   `json:"draft"`
}

// PRRequest targets an existing pull request. Title and Body are used by
// edit; Body is the comment for comment and close.
type PRRequest struct {
	Repo     string `json:"repo"`
	PRNumber int    `json:"pr_number"`
	Title    string `json:"title,omitempty"`
	Body     string `json:"body,omitempty"`
}

// ExecuteRequest runs a gh command. Args exclude the leading "gh".
type ExecuteRequest struct {
	Args []string `json:"args"`
	Cwd  string   `json:"cwd,omitempty"`
}

// ForkRequest forks Repo, optionally into Org.
type ForkRequest struct {
	Repo     string `json:"repo"`
	Org      string `json:"org,omitempty"`
	Name     string `json:"name,omitempty"`
	Private  bool   `json:"private"`
	CloneDir string `json:"clone_dir,omitempty"`
}

func parseRepo(ctx context.Context, s string) (*model.RepoInfo, error) {
	if strings.TrimSpace(s) == "" {
		return nil, badRequest("repo is required")
	}
	info, ok := repo.Resolve(ctx, repo.Inputs{Repo: s})
	if !ok {
		return nil, nil
	}
	return &info, nil
}

func nameOf(r *model.RepoInfo, fallback string) string {
	if r == nil {
		return fallback
	}
	return r.FullName()
}

// withVisibility copies the visibility found by the repo mode check onto
// a later result so the audit entry records it.
func withVisibility(res, modeRes model.PolicyResult) model.PolicyResult {
	vis, ok := modeRes.Detail("visibility").(string)
	if !ok {
		return res
	}
	if res.Details == nil {
		res.Details = map[string]any{}
	}
	res.Details["visibility"] = vis
	return res
}

// Push applies repo mode and branch ownership, then runs git push.
func (g *Gateway) Push(ctx context.Context, req PushRequest) *Outcome {
	op := model.OpPush
	if strings.TrimSpace(req.RepoPath) == "" {
		return g.fail(ctx, op, "", badRequest("repo_path is required"))
	}

	var target *model.RepoInfo
	if info, ok := repo.FromPath(req.RepoPath, req.Remote); ok {
		target = &info
	}
	name := nameOf(target, "")
	modeRes := g.mode.CheckAccess(ctx, op, target, true)
	if !modeRes.Allowed {
		return g.deny(ctx, op, name, modeRes)
	}

	if repo.IsDeleteRefspec(req.Refspec) {
		return g.deny(ctx, op, name, model.Denied(model.KindPolicyViolation,
			"deleting remote branches is not permitted", map[string]any{"refspec": req.Refspec}))
	}
	if hazards := repo.PushConfigHazards(req.RepoPath, req.Remote, *target); len(hazards) > 0 {
		return g.deny(ctx, op, name, model.Denied(model.KindPolicyViolation,
			"local git config could redirect the push: "+strings.Join(hazards, "; "),
			map[string]any{"config": hazards}))
	}
	branch := repo.ParseRefspec(req.Refspec)
	refspec := strings.TrimSpace(req.Refspec)
	if branch == "" && refspec == "" {
		branch, _ = repo.CurrentBranch(req.RepoPath)
		if branch != "" {
			refspec = "HEAD:refs/heads/" + branch
		}
	}
	res := withVisibility(g.ownership.CheckBranchOwnership(ctx, *target, branch), modeRes)
	if !res.Allowed {
		return g.deny(ctx, op, name, res)
	}

	spec := cmdguard.PushSpec{URL: repo.PushURL(*target), Refspec: refspec, Force: req.Force}
	if req.Force {
		// An empty expected value requires the remote branch not to exist.
		sha, _ := repo.TrackingHash(req.RepoPath, req.Remote, branch)
		spec.Lease = "refs/heads/" + branch + ":" + sha
	}
	res.Details["force"] = req.Force
	res.Details["target"] = spec.URL
	if wt, ok := repo.ParseWorktreePath(req.RepoPath); ok {
		res.Details["container"] = wt.ContainerID
	}

	out, err := g.exec.Push(ctx, req.RepoPath, spec)
	o := g.ran(ctx, op, name, res, out, err)
	if o.OK() {
		g.ownership.InvalidateBranch(*target, branch)
	}
	return o
}

// PRCreate applies repo mode and runs gh pr create.
func (g *Gateway) PRCreate(ctx context.Context, req PRCreateRequest) *Outcome {
	op := model.OpPRCreate
	target, err := parseRepo(ctx, req.Repo)
	if err != nil {
		return g.fail(ctx, op, req.Repo, err)
	}
	if strings.TrimSpace(req.Title) == "" {
		return g.fail(ctx, op, req.Repo, badRequest("title is required"))
	}
	name := nameOf(target, req.Repo)
	res := g.mode.CheckAccess(ctx, op, target, true)
	if !res.Allowed {
		return g.deny(ctx, op, name, res)
	}

	args := []string{"pr", "create", "--repo", name, "--title", req.Title, "--body", req.Body}
	if req.Base != "" {
		args = append(args, "--base", req.Base)
	}
	if req.Head != "" {
		args = append(args, "--head", req.Head)
	}
	if req.Draft {
		args = append(args, "--draft")
	}
	out, err := g.exec.GH(ctx, "", args)
	o := g.ran(ctx, op, name, res, out, err)
	if o.OK() && req.Head != "" {
		g.ownership.InvalidateBranch(*target, req.Head)
	}
	return o
}

// PRComment comments on a PR the agent owns.
func (g *Gateway) PRComment(ctx context.Context, req PRRequest) *Outcome {
	if strings.TrimSpace(req.Body) == "" {
		return g.fail(ctx, model.OpPRComment, req.Repo, badRequest("body is required"))
	}
	return g.prMutation(ctx, model.OpPRComment, req, []string{"pr", "comment", "--body", req.Body})
}

// PREdit edits the title or body of a PR the agent owns.
func (g *Gateway) PREdit(ctx context.Context, req PRRequest) *Outcome {
	if req.Title == "" && req.Body == "" {
		return g.fail(ctx, model.OpPREdit, req.Repo, badRequest("title or body is required"))
	}
	args := []string{"pr", "edit"}
	if req.Title != "" {
		args = append(args, "--title", req.Title)
	}
	if req.Body != "" {
		args = append(args, "--body", req.Body)
	}
	return g.prMutation(ctx, model.OpPREdit, req, args)
}

// PRClose closes a PR the agent owns, with an optional comment.
func (g *Gateway) PRClose(ctx context.Context, req PRRequest) *Outcome {
	args := []string{"pr", "close"}
	if req.Body != "" {
		args = append(args, "--comment", req.Body)
	}
	return g.prMutation(ctx, model.OpPRClose, req, args)
}

// PRMerge is always denied.
func (g *Gateway) PRMerge(ctx context.Context, req PRRequest) *Outcome {
	var target model.RepoInfo
	if info, ok := repo.Resolve(ctx, repo.Inputs{Repo: req.Repo}); ok {
		target = info
	}
	return g.deny(ctx, model.OpPRMerge, req.Repo, g.ownership.CheckMergeAllowed(target, req.PRNumber))
}

func (g *Gateway) prMutation(ctx context.Context, op model.Operation, req PRRequest, args []string) *Outcome {
	target, err := parseRepo(ctx, req.Repo)
	if err != nil {
		return g.fail(ctx, op, req.Repo, err)
	}
	if req.PRNumber <= 0 {
		return g.fail(ctx, op, req.Repo, badRequest("pr_number must be positive"))
	}
	name := nameOf(target, req.Repo)
	modeRes := g.mode.CheckAccess(ctx, op, target, true)
	if !modeRes.Allowed {
		return g.deny(ctx, op, name, modeRes)
	}
	res := withVisibility(g.ownership.CheckPROwnership(ctx, *target, req.PRNumber), modeRes)
	if !res.Allowed {
		return g.deny(ctx, op, name, res)
	}

	// Insert the PR number after the subcommand, then pin the repository.
	full := append([]string{args[0], args[1], strconv.Itoa(req.PRNumber)}, args[2:]...)
	full = append(full, "--repo", name)
	out, err := g.exec.GH(ctx, "", full)
	o := g.ran(ctx, op, name, res, out, err)
	if o.OK() && op == model.OpPRClose {
		g.ownership.InvalidatePR(*target, req.PRNumber)
	}
	return o
}

// Execute runs a gh command after the denylist, then applies repo mode to
// the command's target repository when one can be determined.
func (g *Gateway) Execute(ctx context.Context, req ExecuteRequest) *Outcome {
	op := model.OpExecute
	if len(req.Args) > 0 && req.Args[0] == "gh" {
		req.Args = req.Args[1:]
	}
	if len(req.Args) == 0 {
		return g.fail(ctx, op, "", badRequest("args are required"))
	}
	if err := g.exec.CheckGH(req.Args); err != nil {
		return g.ran(ctx, op, "", model.PolicyResult{}, nil, err)
	}

	target, explicit := TargetRepo(ctx, req.Args, req.Cwd)
	name := nameOf(target, "")
	write := IsWriteCommand(req.Args)
	res := model.Allowed("no repository target", nil)
	switch {
	case target != nil || explicit:
		res = g.mode.CheckAccess(ctx, op, target, write)
		if !res.Allowed {
			return g.deny(ctx, op, name, res)
		}
	case write:
		return g.deny(ctx, op, name, model.Denied(model.KindVisibilityUnknown,
			"could not determine the repository this command writes to: pass --repo OWNER/REPO",
			map[string]any{"command": strings.Join(denylist.Subcommand(req.Args), " ")}))
	}

	out, err := g.exec.GH(ctx, req.Cwd, req.Args)
	return g.ran(ctx, op, name, res, out, err)
}

// Fork applies the fork policy and runs gh repo fork.
func (g *Gateway) Fork(ctx context.Context, req ForkRequest) *Outcome {
	op := model.OpFork
	target, err := parseRepo(ctx, req.Repo)
	if err != nil {
		return g.fail(ctx, op, req.Repo, err)
	}
	if target == nil {
		return g.deny(ctx, op, req.Repo, model.Denied(model.KindVisibilityUnknown,
			fmt.Sprintf("could not parse fork source %q", req.Repo), nil))
	}
	name := target.FullName()
	res := g.checkFork(ctx, *target, req.Org, req.Private)
	if !res.Allowed {
		return g.deny(ctx, op, name, res)
	}

	args := []string{"repo", "fork", name, "--clone=false"}
	if req.Org != "" {
		args = append(args, "--org", req.Org)
	}
	if req.Name != "" {
		args = append(args, "--fork-name", req.Name)
	}
	out, err := g.exec.GH(ctx, req.CloneDir, args)
	return g.ran(ctx, op, name, res, out, err)
}
