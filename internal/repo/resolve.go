// Package repo extracts repository identity from URLs, owner/repo strings
// and local worktree paths.
package repo

import (
	"context"
	"regexp"
	"strings"

	git "github.com/go-git/go-git/v6"

	"github.com/jibsandbox/jib-gateway/internal/model"
)

// DefaultRemote is read when Inputs.Remote is empty.
const DefaultRemote = "origin"

var urlPatterns = []*regexp.Regexp{
	// https://github.com/o/r[.git], http://, git://
	regexp.MustCompile(`^(?:https?|git)://(?:[^@/]+@)?github\.com/([^/]+)/([^/]+?)(?:\.git)?/?$`),
	// ssh://git@github.com[:port]/o/r[.git]
	regexp.MustCompile(`^ssh://(?:[^@/]+@)?github\.com(?::\d+)?/([^/]+)/([^/]+?)(?:\.git)?/?$`),
	// git@github.com:o/r[.git]
	regexp.MustCompile(`^[^@/:]+@github\.com:([^/]+)/([^/]+?)(?:\.git)?/?$`),
}

var segmentPattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// Inputs are the candidate sources of a repository identity, tried in
// priority order: Repo, then URL, then RepoPath.
type Inputs struct {
	Repo     string
	URL      string
	RepoPath string
	Remote   string
}

// ParseURL extracts owner/repo from a GitHub remote URL.
func ParseURL(url string) (model.RepoInfo, bool) {
	url = strings.TrimSpace(url)
	for _, re := range urlPatterns {
		m := re.FindStringSubmatch(url)
		if m == nil {
			continue
		}
		return build(m[1], m[2])
	}
	return model.RepoInfo{}, false
}

// ParseFullName parses a bare "owner/repo" string.
func ParseFullName(s string) (model.RepoInfo, bool) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, "/")
	if len(parts) != 2 {
		return model.RepoInfo{}, false
	}
	return build(parts[0], strings.TrimSuffix(parts[1], ".git"))
}

func build(owner, name string) (model.RepoInfo, bool) {
	if owner == "" || name == "" {
		return model.RepoInfo{}, false
	}
	if !segmentPattern.MatchString(owner) || !segmentPattern.MatchString(name) {
		return model.RepoInfo{}, false
	}
	if name == "." || name == ".." || owner == "." || owner == ".." {
		return model.RepoInfo{}, false
	}
	return model.RepoInfo{Owner: owner, Repo: name}, true
}

// RemoteURL returns the first configured URL of the named remote of the git
// repository containing path. Linked worktrees are supported.
func RemoteURL(path, remote string) (string, bool) {
	if remote == "" {
		remote = DefaultRemote
	}
	r, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{
		DetectDotGit:          true,
		EnableDotGitCommonDir: true,
	})
	if err != nil {
		return "", false
	}
	rem, err := r.Remote(remote)
	if err != nil {
		return "", false
	}
	urls := rem.Config().URLs
	if len(urls) == 0 {
		return "", false
	}
	return urls[0], true
}

// FromPath resolves the repository of a local checkout via its git remote.
func FromPath(path, remote string) (model.RepoInfo, bool) {
	if strings.TrimSpace(path) == "" {
		return model.RepoInfo{}, false
	}
	url, ok := RemoteURL(path, remote)
	if !ok {
		return model.RepoInfo{}, false
	}
	if info, ok := ParseURL(url); ok {
		return info, true
	}
	return model.RepoInfo{}, false
}

// Resolve returns the repository identified by in. It never fails loudly:
// unresolvable inputs return false.
func Resolve(_ context.Context, in Inputs) (model.RepoInfo, bool) {
	if in.Repo != "" {
		if info, ok := ParseFullName(in.Repo); ok {
			return info, true
		}
		// Callers sometimes pass a URL in the repo field.
		if info, ok := ParseURL(in.Repo); ok {
			return info, true
		}
	}
	if in.URL != "" {
		if info, ok := ParseURL(in.URL); ok {
			return info, true
		}
	}
	if in.RepoPath != "" {
		return FromPath(in.RepoPath, in.Remote)
	}
	return model.RepoInfo{}, false
}

// CurrentBranch returns the short name of the branch checked out at path.
func CurrentBranch(path string) (string, bool) {
	r, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{
		DetectDotGit:          true,
		EnableDotGitCommonDir: true,
	})
	if err != nil {
		return "", false
	}
	head, err := r.Head()
	if err != nil || !head.Name().IsBranch() {
		return "", false
	}
	return head.Name().Short(), true
}
