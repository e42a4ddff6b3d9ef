package ownership

import (
	"sort"
	"strings"
)

// DefaultIdentities are the logins the agent acts under.
var DefaultIdentities = []string{"jib", "james-in-a-box"}

// DefaultPrefixes mark branches the agent owns by convention.
var DefaultPrefixes = []string{"jib-", "jib/"}

// NormalizeLogin lowercases a login and strips app and bot decorations, so
// "app/jib", "apps/jib" and "jib[bot]" all become "jib".
func NormalizeLogin(login string) string {
	s := strings.ToLower(strings.TrimSpace(login))
	for _, p := range []string{"apps/", "app/"} {
		if strings.HasPrefix(s, p) {
			s = s[len(p):]
			break
		}
	}
	return strings.TrimSuffix(s, "[bot]")
}

// IdentitySet is a normalized set of agent logins.
type IdentitySet map[string]struct{}

// NewIdentitySet normalizes logins into a set. Empty entries are skipped.
func NewIdentitySet(logins []string) IdentitySet {
	set := make(IdentitySet, len(logins))
	for _, l := range logins {
		if n := NormalizeLogin(l); n != "" {
			set[n] = struct{}{}
		}
	}
	return set
}

// Contains reports whether login normalizes to a member.
func (s IdentitySet) Contains(login string) bool {
	n := NormalizeLogin(login)
	if n == "" {
		return false
	}
	_, ok := s[n]
	return ok
}

// List returns members sorted.
func (s IdentitySet) List() []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// HasOwnedPrefix reports whether branch starts with one of prefixes.
func HasOwnedPrefix(branch string, prefixes []string) bool {
	for _, p := range prefixes {
		if p != "" && strings.HasPrefix(branch, p) {
			return true
		}
	}
	return false
}
