package repo

import (
	"path/filepath"
	"strings"
)

// worktreeRoot is the directory under $HOME holding per-container worktrees.
const worktreeRoot = ".jib-worktrees"

// WorktreeInfo is parsed from ~/.jib-worktrees/{containerID}/{repoName}.
// It is diagnostic context only and never used for trust decisions.
type WorktreeInfo struct {
	ContainerID string `json:"container_id"`
	RepoName    string `json:"repo_name"`
}

// ParseWorktreePath extracts container and repo names from a worktree path.
// Any subdirectory below the repo root is accepted.
func ParseWorktreePath(path string) (WorktreeInfo, bool) {
	clean := filepath.ToSlash(filepath.Clean(path))
	parts := strings.Split(clean, "/")
	for i, p := range parts {
		if p != worktreeRoot {
			continue
		}
		if i+2 >= len(parts) {
			return WorktreeInfo{}, false
		}
		container, name := parts[i+1], parts[i+2]
		if container == "" || name == "" {
			return WorktreeInfo{}, false
		}
		return WorktreeInfo{ContainerID: container, RepoName: name}, true
	}
	return WorktreeInfo{}, false
}
