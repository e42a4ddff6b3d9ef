package repo

import "strings"

// ParseRefspec returns the destination branch named by a push refspec.
// Accepted forms: "branch", "+branch", "src:dst", "HEAD:refs/heads/dst",
// "refs/heads/branch". Tags and deletions ("":dst) yield "".
func ParseRefspec(refspec string) string {
	spec := strings.TrimSpace(refspec)
	spec = strings.TrimPrefix(spec, "+")
	if spec == "" {
		return ""
	}

	dst := spec
	if i := strings.LastIndex(spec, ":"); i >= 0 {
		if i == 0 {
			// ":branch" deletes the remote branch.
			return ""
		}
		dst = spec[i+1:]
	}
	if strings.HasPrefix(dst, "refs/tags/") {
		return ""
	}
	dst = strings.TrimPrefix(dst, "refs/heads/")
	if dst == "HEAD" {
		return ""
	}
	return dst
}

// IsDeleteRefspec reports whether refspec deletes a remote ref.
func IsDeleteRefspec(refspec string) bool {
	return strings.HasPrefix(strings.TrimPrefix(strings.TrimSpace(refspec), "+"), ":")
}
