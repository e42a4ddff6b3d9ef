package repo

import (
	"fmt"
	"strings"

	git "github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/plumbing"

	"github.com/jibsandbox/jib-gateway/internal/model"
)

// PushURL is the address a verified push for info is sent to. Pushes never
// go through a remote name, so pushurl and insteadOf settings cannot move
// them to another repository.
func PushURL(info model.RepoInfo) string {
	return "https://github.com/" + info.FullName() + ".git"
}

// sensitiveHTTPKeys are http.* options that can divert or expose the
// credential header.
var sensitiveHTTPKeys = []string{
	"proxy", "sslverify", "sslcainfo", "sslcapath", "sslcert", "sslkey",
	"extraheader", "cookiefile", "curloptresolve", "emptyauth",
}

// PushConfigHazards lists settings in the local git config at path that
// could redirect a push to target or leak its credential. An empty result
// means the checkout is safe to push from. Unreadable repositories report a
// single hazard.
func PushConfigHazards(path, remote string, target model.RepoInfo) []string {
	if remote == "" {
		remote = DefaultRemote
	}
	r, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{
		DetectDotGit:          true,
		EnableDotGitCommonDir: true,
	})
	if err != nil {
		return []string{"not a git repository"}
	}
	cfg, err := r.Config()
	if err != nil {
		return []string{fmt.Sprintf("unreadable git config: %v", err)}
	}

	var hazards []string
	for _, s := range cfg.Raw.Sections {
		name := strings.ToLower(s.Name)
		switch name {
		case "url", "include", "includeif", "credential":
			hazards = append(hazards, fmt.Sprintf("[%s] sections are not permitted", name))
		case "http":
			if len(s.Subsections) > 0 {
				hazards = append(hazards, "URL-specific [http] settings are not permitted")
			}
			for _, key := range sensitiveHTTPKeys {
				if s.Options.Has(key) {
					hazards = append(hazards, "http."+key+" is not permitted")
				}
			}
		case "extensions":
			if strings.EqualFold(s.Options.Get("worktreeconfig"), "true") {
				hazards = append(hazards, "per-worktree config is not permitted")
			}
		case "remote":
			for _, sub := range s.Subsections {
				if sub.Name != remote {
					continue
				}
				for _, u := range sub.Options.GetAll("pushurl") {
					info, ok := ParseURL(u)
					if !ok || !strings.EqualFold(info.FullName(), target.FullName()) {
						hazards = append(hazards, fmt.Sprintf("remote %s pushurl %q does not point at %s", remote, u, target.FullName()))
					}
				}
			}
		}
	}
	return hazards
}

// TrackingHash returns the commit the remote-tracking ref
// refs/remotes/<remote>/<branch> points at.
func TrackingHash(path, remote, branch string) (string, bool) {
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
	ref, err := r.Reference(plumbing.NewRemoteReferenceName(remote, branch), true)
	if err != nil {
		return "", false
	}
	return ref.Hash().String(), true
}
