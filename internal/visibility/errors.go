package visibility

import (
	"fmt"
	"strings"
)

// FailureReason classifies why one credential could not answer.
type FailureReason string

const (
	ReasonNotFound        FailureReason = "not_found"
	ReasonForbidden       FailureReason = "forbidden"
	ReasonUnauthorized    FailureReason = "unauthorized"
	ReasonRateLimited     FailureReason = "rate_limited"
	ReasonUpstream        FailureReason = "upstream_error"
	ReasonTransport       FailureReason = "transport"
	ReasonInvalidResponse FailureReason = "invalid_response"
	ReasonNoCredentials   FailureReason = "no_credentials"
)

// Attempt records one credential's failed lookup.
type Attempt struct {
	Source string
	Reason FailureReason
	Err    error
}

// LookupError is returned when no credential could determine visibility.
// Callers must treat it as "cannot determine" and fail closed.
type LookupError struct {
	Repo     string
	Attempts []Attempt
}

func (e *LookupError) Error() string {
	if len(e.Attempts) == 0 {
		return fmt.Sprintf("visibility of %s unknown: no credential sources", e.Repo)
	}
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s: %s", a.Source, a.Reason))
	}
	return fmt.Sprintf("visibility of %s unknown (%s)", e.Repo, strings.Join(parts, ", "))
}

// Unwrap exposes per-attempt errors to errors.Is / errors.As.
func (e *LookupError) Unwrap() []error {
	errs := make([]error, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		if a.Err != nil {
			errs = append(errs, a.Err)
		}
	}
	return errs
}

// AllRateLimited reports whether every credential was throttled, as opposed
// to lacking access.
func (e *LookupError) AllRateLimited() bool {
	return e.all(ReasonRateLimited)
}

// NoneHasAccess reports whether every credential got a 404 or 403.
func (e *LookupError) NoneHasAccess() bool {
	if len(e.Attempts) == 0 {
		return false
	}
	for _, a := range e.Attempts {
		if a.Reason != ReasonNotFound && a.Reason != ReasonForbidden {
			return false
		}
	}
	return true
}

// Reasons returns the per-attempt reasons in order.
func (e *LookupError) Reasons() []string {
	out := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		out = append(out, string(a.Reason))
	}
	return out
}

func (e *LookupError) all(r FailureReason) bool {
	if len(e.Attempts) == 0 {
		return false
	}
	for _, a := range e.Attempts {
		if a.Reason != r {
			return false
		}
	}
	return true
}
