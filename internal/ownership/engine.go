// Package ownership decides whether the agent owns a branch or pull request,
// using the owned-prefix convention and open PR authorship.
package ownership

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jibsandbox/jib-gateway/internal/boundedcache"
	"github.com/jibsandbox/jib-gateway/internal/clock"
	"github.com/jibsandbox/jib-gateway/internal/github"
	"github.com/jibsandbox/jib-gateway/internal/model"
)

const (
	DefaultBranchTTL = 120 * time.Second
	DefaultPRTTL     = 5 * time.Minute
	DefaultCapacity  = 1000
)

// PRSource is the GitHub surface the engine reads.
type PRSource interface {
	PullRequest(ctx context.Context, owner, repo string, number int) (github.PullRequest, error)
	ListPullRequestsForBranch(ctx context.Context, owner, repo, branch, state string) ([]github.PullRequest, error)
}

// Config tunes an Engine. Zero values select defaults.
type Config struct {
	Identities []string
	Prefixes   []string
	BranchTTL  time.Duration
	PRTTL      time.Duration
	Capacity   int
	Clock      clock.Clock
	Logger     *slog.Logger
}

// Engine is safe for concurrent use.
type Engine struct {
	source     PRSource
	identities IdentitySet
	prefixes   []string
	branchTTL  time.Duration
	prTTL      time.Duration
	clock      clock.Clock
	logger     *slog.Logger

	branches *boundedcache.Cache[[]int]
	prs      *boundedcache.Cache[github.PullRequest]
}

// New creates an Engine reading PR metadata from source.
func New(source PRSource, cfg Config) *Engine {
	if len(cfg.Identities) == 0 {
		cfg.Identities = DefaultIdentities
	}
	if cfg.Prefixes == nil {
		cfg.Prefixes = DefaultPrefixes
	}
	if cfg.BranchTTL <= 0 {
		cfg.BranchTTL = DefaultBranchTTL
	}
	if cfg.PRTTL <= 0 {
		cfg.PRTTL = DefaultPRTTL
	}
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultCapacity
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Engine{
		source:     source,
		identities: NewIdentitySet(cfg.Identities),
		prefixes:   append([]string(nil), cfg.Prefixes...),
		branchTTL:  cfg.BranchTTL,
		prTTL:      cfg.PRTTL,
		clock:      cfg.Clock,
		logger:     cfg.Logger,
		branches:   boundedcache.New[[]int](cfg.Capacity),
		prs:        boundedcache.New[github.PullRequest](cfg.Capacity),
	}
}

// Identities returns the accepted agent logins.
func (e *Engine) Identities() []string { return e.identities.List() }

// IsAgent reports whether login is an agent identity.
func (e *Engine) IsAgent(login string) bool { return e.identities.Contains(login) }

// HasOwnedPrefix reports whether branch follows the owned naming convention.
func (e *Engine) HasOwnedPrefix(branch string) bool { return HasOwnedPrefix(branch, e.prefixes) }

// CheckBranchOwnership allows pushes to owned-prefix branches and to
// branches with an open PR authored by the agent.
func (e *Engine) CheckBranchOwnership(ctx context.Context, repo model.RepoInfo, branch string) model.PolicyResult {
	if branch == "" {
		return model.Denied(model.KindBranchNotOwned, "could not determine target branch",
			map[string]any{"repository": repo.FullName()})
	}
	if e.HasOwnedPrefix(branch) {
		e.logDecision("branch_ownership", repo, "branch", branch, true, "owned prefix")
		return model.Allowed(fmt.Sprintf("branch %q uses an agent-owned prefix", branch),
			map[string]any{"branch": branch, "method": "prefix"})
	}

	numbers, err := e.openPRNumbers(ctx, repo, branch)
	if err != nil {
		e.logger.Warn("listing pull requests failed",
			"repository", repo.FullName(), "branch", branch, "error", err)
		return model.Denied(model.KindPRLookupFailed,
			fmt.Sprintf("could not list pull requests for branch %q", branch),
			map[string]any{"branch": branch, "repository": repo.FullName(), "error": err.Error()})
	}

	for _, n := range numbers {
		pr, err := e.pullRequest(ctx, repo, n)
		if err != nil {
			e.logger.Warn("pull request lookup failed",
				"repository", repo.FullName(), "pr_number", n, "error", err)
			continue
		}
		if e.identities.Contains(pr.Author) {
			e.logDecision("branch_ownership", repo, "branch", branch, true, fmt.Sprintf("open PR #%d", n))
			return model.Allowed(fmt.Sprintf("branch %q has open PR #%d authored by %s", branch, n, pr.Author),
				map[string]any{"branch": branch, "method": "pull_request", "pr_number": n, "author": pr.Author})
		}
	}

	e.logDecision("branch_ownership", repo, "branch", branch, false, "not owned")
	return model.Denied(model.KindBranchNotOwned,
		fmt.Sprintf("branch %q is not owned by the agent: use a %s branch name or open a PR from it first",
			branch, strings.Join(e.prefixes, " or ")),
		map[string]any{
			"branch":     branch,
			"repository": repo.FullName(),
			"open_prs":   append([]int(nil), numbers...),
			"prefixes":   append([]string(nil), e.prefixes...),
		})
}

// CheckPROwnership allows mutations on PRs authored by an agent identity.
func (e *Engine) CheckPROwnership(ctx context.Context, repo model.RepoInfo, number int) model.PolicyResult {
	if number <= 0 {
		return model.Denied(model.KindPRNotOwned, fmt.Sprintf("invalid pull request number %d", number),
			map[string]any{"repository": repo.FullName()})
	}
	pr, err := e.pullRequest(ctx, repo, number)
	if err != nil {
		e.logger.Warn("pull request lookup failed",
			"repository", repo.FullName(), "pr_number", number, "error", err)
		return model.Denied(model.KindPRLookupFailed,
			fmt.Sprintf("could not look up PR #%d", number),
			map[string]any{"pr_number": number, "repository": repo.FullName(), "error": err.Error()})
	}

	accepted := e.identities.List()
	if e.identities.Contains(pr.Author) {
		e.logDecision("pr_ownership", repo, "pr_number", number, true, "agent author")
		return model.Allowed(fmt.Sprintf("PR #%d is authored by %s", number, pr.Author),
			map[string]any{"pr_number": number, "author": pr.Author})
	}

	e.logDecision("pr_ownership", repo, "pr_number", number, false, "foreign author")
	return model.Denied(model.KindPRNotOwned,
		fmt.Sprintf("PR #%d is authored by %q, not by the agent (%s)", number, pr.Author, strings.Join(accepted, ", ")),
		map[string]any{"pr_number": number, "author": pr.Author, "accepted_identities": accepted})
}

// CheckMergeAllowed always denies: merging stays a human action.
func (e *Engine) CheckMergeAllowed(repo model.RepoInfo, number int) model.PolicyResult {
	e.logDecision("pr_merge", repo, "pr_number", number, false, "merge is human-only")
	return model.Denied(model.KindMergeBlocked,
		fmt.Sprintf("merging PR #%d is not permitted: a human must merge", number),
		map[string]any{"pr_number": number, "repository": repo.FullName()})
}

// InvalidatePR drops a cached PR.
func (e *Engine) InvalidatePR(repo model.RepoInfo, number int) {
	e.prs.Invalidate(prKey(repo, number))
}

// InvalidateBranch drops a cached branch PR list.
func (e *Engine) InvalidateBranch(repo model.RepoInfo, branch string) {
	e.branches.Invalidate(branchKey(repo, branch))
}

func (e *Engine) openPRNumbers(ctx context.Context, repo model.RepoInfo, branch string) ([]int, error) {
	key := branchKey(repo, branch)
	if nums, ok := e.branches.Get(key, e.branchTTL, e.clock.Now()); ok {
		return nums, nil
	}
	prs, err := e.source.ListPullRequestsForBranch(ctx, repo.Owner, repo.Repo, branch, "open")
	if err != nil {
		return nil, err
	}
	now := e.clock.Now()
	nums := make([]int, 0, len(prs))
	for _, pr := range prs {
		nums = append(nums, pr.Number)
		e.prs.Set(prKey(repo, pr.Number), pr, now)
	}
	e.branches.Set(key, nums, now)
	return nums, nil
}

func (e *Engine) pullRequest(ctx context.Context, repo model.RepoInfo, number int) (github.PullRequest, error) {
	key := prKey(repo, number)
	if pr, ok := e.prs.Get(key, e.prTTL, e.clock.Now()); ok {
		return pr, nil
	}
	pr, err := e.source.PullRequest(ctx, repo.Owner, repo.Repo, number)
	if err != nil {
		return github.PullRequest{}, err
	}
	e.prs.Set(key, pr, e.clock.Now())
	return pr, nil
}

func (e *Engine) logDecision(op string, repo model.RepoInfo, subjectKey string, subject any, allowed bool, reason string) {
	decision := model.Deny
	if allowed {
		decision = model.Allow
	}
	e.logger.Info("ownership decision",
		"operation", op,
		"repository", repo.FullName(),
		subjectKey, subject,
		"decision", string(decision),
		"reason", reason)
}

func branchKey(repo model.RepoInfo, branch string) string {
	return repo.Key() + "@" + branch
}

func prKey(repo model.RepoInfo, number int) string {
	return fmt.Sprintf("%s#%d", repo.Key(), number)
}
