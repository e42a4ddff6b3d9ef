package gateway

import (
	"context"
	"strconv"
	"strings"

	"github.com/jibsandbox/jib-gateway/internal/denylist"
	"github.com/jibsandbox/jib-gateway/internal/model"
	"github.com/jibsandbox/jib-gateway/internal/repo"
)

// TargetRepo finds the repository a gh command acts on: the --repo/-R flag,
// a positional OWNER/REPO or GitHub URL, a repos/{owner}/{repo} API path,
// or the git remote of cwd. explicit is true when the command named a
// target that did not parse, which must be denied rather than treated as
// repository-less.
func TargetRepo(ctx context.Context, args []string, cwd string) (target *model.RepoInfo, explicit bool) {
	if v, ok := flagValue(args, "-R", "--repo"); ok {
		if info, ok := repo.Resolve(ctx, repo.Inputs{Repo: v}); ok {
			return &info, true
		}
		return nil, true
	}

	words := denylist.Subcommand(args)
	if len(words) >= 2 && words[0] == "api" {
		if info, ok := apiRepo(words[1]); ok {
			return &info, true
		}
	}
	if arg, ok := positionalRepo(words); ok {
		if info, ok := repo.Resolve(ctx, repo.Inputs{Repo: arg}); ok {
			return &info, true
		}
		if info, ok := urlRepo(arg); ok {
			return &info, true
		}
		if arg != "" && !isNumber(arg) {
			return nil, true
		}
	}

	if cwd != "" {
		if info, ok := repo.FromPath(cwd, ""); ok {
			return &info, false
		}
	}
	return nil, false
}

// repoPositional are "gh repo" verbs whose first argument names the
// repository.
var repoPositional = map[string]bool{
	"view": true, "clone": true, "fork": true, "edit": true, "sync": true,
	"archive": true, "unarchive": true, "delete": true, "set-default": true,
}

// positionalRepo returns the argument naming the repository a command acts
// on, if the command takes one.
func positionalRepo(words []string) (string, bool) {
	if len(words) < 3 {
		return "", false
	}
	switch words[0] {
	case "repo":
		if repoPositional[words[1]] {
			return words[2], true
		}
	case "pr", "issue":
		// Numbers and branch names fall back to -R or cwd.
		if strings.Contains(words[2], "://") {
			return words[2], true
		}
	}
	return "", false
}

// urlRepo reads owner/repo from a browser URL such as
// https://github.com/o/r/pull/1.
func urlRepo(s string) (model.RepoInfo, bool) {
	rest, ok := strings.CutPrefix(s, "https://github.com/")
	if !ok {
		return model.RepoInfo{}, false
	}
	parts := strings.Split(rest, "/")
	if len(parts) < 2 {
		return model.RepoInfo{}, false
	}
	return repo.ParseFullName(parts[0] + "/" + parts[1])
}

func isNumber(s string) bool {
	_, err := strconv.Atoi(s)
	return err == nil
}

func apiRepo(endpoint string) (model.RepoInfo, bool) {
	parts := strings.Split(strings.Trim(endpoint, "/"), "/")
	if len(parts) < 3 || parts[0] != "repos" {
		return model.RepoInfo{}, false
	}
	return repo.ParseFullName(parts[1] + "/" + parts[2])
}

func flagValue(args []string, names ...string) (string, bool) {
	for i, a := range args {
		for _, n := range names {
			if a == n && i+1 < len(args) {
				return args[i+1], true
			}
			if strings.HasPrefix(a, n+"=") {
				return strings.TrimPrefix(a, n+"="), true
			}
		}
	}
	return "", false
}

// readVerbs never mutate remote state.
var readVerbs = map[string]bool{
	"view": true, "list": true, "status": true, "diff": true, "checks": true,
	"search": true, "browse": true, "get": true, "watch": true,
}

// readCommands are top-level commands that never mutate remote state.
var readCommands = map[string]bool{
	"search": true, "version": true, "help": true, "status": true, "completion": true,
}

// IsWriteCommand reports whether gh args may mutate remote state. Unknown
// commands count as writes so the visibility check never uses a stale
// cached answer.
func IsWriteCommand(args []string) bool {
	words := denylist.Subcommand(args)
	if len(words) == 0 {
		return true
	}
	if words[0] == "api" {
		if len(words) >= 2 && strings.Trim(words[1], "/") == "graphql" {
			return !denylist.IsGraphQLQuery(args)
		}
		m, _ := flagValue(args, "-X", "--method")
		if m == "" {
			// gh api defaults to POST when fields are supplied.
			for _, a := range args {
				if a == "-f" || a == "-F" || a == "--field" || a == "--raw-field" {
					return true
				}
			}
			return false
		}
		return !strings.EqualFold(m, "GET")
	}
	if readCommands[words[0]] {
		return false
	}
	return len(words) < 2 || !readVerbs[words[1]]
}
