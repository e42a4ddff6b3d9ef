package model

import (
	"fmt"
	"strings"
)

// Visibility is GitHub's classification of a repository.
type Visibility string

const (
	Public   Visibility = "public"
	Private  Visibility = "private"
	Internal Visibility = "internal"
)

// ParseVisibility maps an API string onto the enum. Anything outside the
// three known values is rejected so a malformed upstream response can never
// be cached as a verdict.
func ParseVisibility(s string) (Visibility, error) {
	switch Visibility(strings.ToLower(strings.TrimSpace(s))) {
	case Public:
		return Public, nil
	case Private:
		return Private, nil
	case Internal:
		return Internal, nil
	default:
		return "", fmt.Errorf("invalid visibility %q", s)
	}
}

// IsPrivateClass reports whether v is private or internal.
func (v Visibility) IsPrivateClass() bool {
	return v == Private || v == Internal
}

// RepoInfo identifies a GitHub repository.
type RepoInfo struct {
	Owner string `json:"owner"`
	Repo  string `json:"repo"`
}

// FullName returns "owner/repo".
func (r RepoInfo) FullName() string {
	return r.Owner + "/" + r.Repo
}

func (r RepoInfo) String() string {
	return r.FullName()
}

// Key returns the case-insensitive cache key for the repository.
func (r RepoInfo) Key() string {
	return strings.ToLower(r.Owner) + "/" + strings.ToLower(r.Repo)
}

// Decision is the policy enforcement outcome recorded in logs and audit entries.
type Decision string

const (
	Allow Decision = "allow"
	Deny  Decision = "deny"
)

// PolicyResult is the decision object returned by every policy check.
type PolicyResult struct {
	Allowed bool           `json:"allowed"`
	Reason  string         `json:"reason"`
	Kind    DenialKind     `json:"kind,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// Decision returns Allow or Deny.
func (r PolicyResult) Decision() Decision {
	if r.Allowed {
		return Allow
	}
	return Deny
}

// Detail returns a details value, or nil.
func (r PolicyResult) Detail(key string) any {
	if r.Details == nil {
		return nil
	}
	return r.Details[key]
}

// Allowed builds an allowing result.
func Allowed(reason string, details map[string]any) PolicyResult {
	if details == nil {
		details = map[string]any{}
	}
	return PolicyResult{Allowed: true, Reason: reason, Details: details}
}

// Denied builds a denying result.
func Denied(kind DenialKind, reason string, details map[string]any) PolicyResult {
	if details == nil {
		details = map[string]any{}
	}
	return PolicyResult{Allowed: false, Reason: reason, Kind: kind, Details: details}
}
