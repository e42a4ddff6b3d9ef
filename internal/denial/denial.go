// Package denial renders policy denials into messages a calling agent can
// act on: a sentence, a stable reason key and remediation hints.
package denial

import (
	"fmt"

	"github.com/jibsandbox/jib-gateway/internal/model"
)

// Denial is the user-facing form of a denied PolicyResult.
type Denial struct {
	Reason  model.DenialKind `json:"reason"`
	Message string           `json:"message"`
	Hints   []string         `json:"hints,omitempty"`
}

var (
	hintsVisibility = []string{
		"The gateway could not confirm the repository's visibility and denies by default.",
		"Check that the GitHub token is valid and has access to the repository.",
		"GitHub may be rate limiting or unreachable; retry in a few minutes.",
	}
	hintsRateLimited = []string{
		"Every GitHub credential is rate limited, so visibility could not be confirmed.",
		"Wait for the rate limit window to reset and retry.",
	}
	hintsNoAccess = []string{
		"No gateway credential can see this repository: it may not exist or the tokens lack access.",
		"Check the repository name, or grant the gateway's GitHub App or token access to it.",
	}
	hintsPublicInPrivateMode = []string{
		"Private repo mode is active: only private and internal repositories are reachable.",
		"Ask the repository owner to perform this operation, or work in a private fork.",
	}
	hintsPrivateInPublicMode = []string{
		"Public repo mode is active: only public repositories are reachable.",
		"Private repository access requires restarting the gateway with PRIVATE_REPO_MODE=true.",
	}
	hintsForkSource = []string{
		"Forking public repositories is blocked while private repo mode is active.",
		"Ask the repository owner to grant access to a private copy instead.",
	}
	hintsForkTarget = []string{
		"Forks must be created private.",
		"Retry with the private flag set explicitly (gh repo fork --private).",
	}
	hintsBranch = []string{
		"Push to a branch named jib-<topic> or jib/<topic>.",
		"Or open a pull request from this branch first.",
	}
	hintsPR = []string{
		"Only pull requests opened by the agent can be modified.",
		"Leave a comment asking the PR author to make the change.",
	}
	hintsPRLookup = []string{
		"The gateway could not read pull request metadata from GitHub.",
		"Check the token and retry; ownership cannot be assumed.",
	}
	hintsMerge = []string{
		"Merging is a human action. Request a review and let a maintainer merge.",
	}
	hintsCommand = []string{
		"This command is on the gateway's destructive-command denylist and cannot be enabled.",
		"Ask a human to run it if it is really needed.",
	}
	hintsGeneric = []string{
		"The operation was denied by gateway policy.",
	}
)

// Format returns the denial for kind. Unknown kinds fall back to the generic
// policy-violation denial.
func Format(kind model.DenialKind, op model.Operation, repo string) Denial {
	target := repo
	if target == "" {
		target = "the target repository"
	}
	action := string(op)
	if action == "" {
		action = "operation"
	}

	switch kind {
	case model.KindVisibilityUnknown:
		return Denial{kind, fmt.Sprintf("Blocked %s on %s: repository visibility could not be determined.", action, target), hintsVisibility}
	case model.KindPushPublic:
		return Denial{kind, fmt.Sprintf("Blocked push to public repository %s.", target), hintsPublicInPrivateMode}
	case model.KindPushPrivate:
		return Denial{kind, fmt.Sprintf("Blocked push to private repository %s.", target), hintsPrivateInPublicMode}
	case model.KindPRPublic:
		return Denial{kind, fmt.Sprintf("Blocked %s on public repository %s.", action, target), hintsPublicInPrivateMode}
	case model.KindPRPrivate:
		return Denial{kind, fmt.Sprintf("Blocked %s on private repository %s.", action, target), hintsPrivateInPublicMode}
	case model.KindFetchPublic:
		return Denial{kind, fmt.Sprintf("Blocked fetch from public repository %s.", target), hintsPublicInPrivateMode}
	case model.KindFetchPrivate:
		return Denial{kind, fmt.Sprintf("Blocked fetch from private repository %s.", target), hintsPrivateInPublicMode}
	case model.KindGHPublic:
		return Denial{kind, fmt.Sprintf("Blocked gh command against public repository %s.", target), hintsPublicInPrivateMode}
	case model.KindGHPrivate:
		return Denial{kind, fmt.Sprintf("Blocked gh command against private repository %s.", target), hintsPrivateInPublicMode}
	case model.KindForkPublicSource:
		return Denial{kind, fmt.Sprintf("Blocked fork of public repository %s.", target), hintsForkSource}
	case model.KindForkTargetPublic:
		return Denial{kind, fmt.Sprintf("Blocked public fork of %s.", target), hintsForkTarget}
	case model.KindBranchNotOwned:
		return Denial{kind, fmt.Sprintf("Blocked push to %s: the branch is not owned by the agent.", target), hintsBranch}
	case model.KindPRNotOwned:
		return Denial{kind, fmt.Sprintf("Blocked %s on %s: the pull request is not owned by the agent.", action, target), hintsPR}
	case model.KindPRLookupFailed:
		return Denial{kind, fmt.Sprintf("Blocked %s on %s: pull request ownership could not be verified.", action, target), hintsPRLookup}
	case model.KindMergeBlocked:
		return Denial{kind, fmt.Sprintf("Blocked merge on %s: merging is reserved for humans.", target), hintsMerge}
	case model.KindCommandBlocked:
		return Denial{kind, fmt.Sprintf("Blocked destructive command on %s.", target), hintsCommand}
	default:
		return Denial{model.KindPolicyViolation, fmt.Sprintf("Blocked %s on %s: policy violation.", action, target), hintsGeneric}
	}
}

// FromResult formats a denied PolicyResult, keeping its reason as the first
// hint when it adds detail beyond the canned message.
func FromResult(res model.PolicyResult, op model.Operation, repo string) Denial {
	d := Format(res.Kind, op, repo)
	if d.Reason == model.KindVisibilityUnknown {
		switch res.Detail("lookup") {
		case "rate_limited":
			d.Hints = hintsRateLimited
		case "no_access":
			d.Hints = hintsNoAccess
		}
	}
	if res.Reason != "" {
		d.Hints = append([]string{res.Reason}, d.Hints...)
	}
	return d
}

// KindForOperation maps a visibility-based denial to its operation-specific
// kind. An empty visibility means the lookup failed.
func KindForOperation(op model.Operation, vis model.Visibility) model.DenialKind {
	if vis == "" {
		return model.KindVisibilityUnknown
	}
	public := vis == model.Public
	switch op.Family() {
	case "push":
		return pick(public, model.KindPushPublic, model.KindPushPrivate)
	case "pr":
		return pick(public, model.KindPRPublic, model.KindPRPrivate)
	case "fetch":
		return pick(public, model.KindFetchPublic, model.KindFetchPrivate)
	case "fork":
		if public {
			return model.KindForkPublicSource
		}
		return model.KindPolicyViolation
	default:
		return pick(public, model.KindGHPublic, model.KindGHPrivate)
	}
}

func pick(public bool, pub, priv model.DenialKind) model.DenialKind {
	if public {
		return pub
	}
	return priv
}
