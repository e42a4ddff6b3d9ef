package github

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	gh "github.com/google/go-github/v71/github"
)

// StatusError is a non-2xx response from the GitHub API.
type StatusError struct {
	StatusCode int
	Message    string
	// RetryAfter is the server-requested backoff, zero if none was sent.
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("github: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("github: HTTP %d: %s", e.StatusCode, e.Message)
}

// StatusCode returns the HTTP status carried by err, or 0 if err is not a
// StatusError (transport failures, timeouts).
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}

// IsNotFound reports whether err is a 404.
func IsNotFound(err error) bool {
	return StatusCode(err) == http.StatusNotFound
}

// IsForbidden reports whether err is a 403.
func IsForbidden(err error) bool {
	return StatusCode(err) == http.StatusForbidden
}

// IsTooManyRequests reports whether err is a 429.
func IsTooManyRequests(err error) bool {
	return StatusCode(err) == http.StatusTooManyRequests
}

// RetryAfter returns the backoff carried by err, zero if none.
func RetryAfter(err error) time.Duration {
	var se *StatusError
	if errors.As(err, &se) {
		return se.RetryAfter
	}
	return 0
}

// convertError maps go-github error types onto StatusError. Errors without
// an HTTP response (DNS, timeout, connection reset) pass through unchanged.
func convertError(err error) error {
	if err == nil {
		return nil
	}

	var (
		resp *http.Response
		msg  string
		wait time.Duration
	)

	var abuse *gh.AbuseRateLimitError
	var rate *gh.RateLimitError
	var er *gh.ErrorResponse
	switch {
	case errors.As(err, &abuse):
		resp, msg = abuse.Response, abuse.Message
		if abuse.RetryAfter != nil {
			wait = *abuse.RetryAfter
		}
	case errors.As(err, &rate):
		resp, msg = rate.Response, rate.Message
	case errors.As(err, &er):
		resp, msg = er.Response, er.Message
	default:
		return err
	}

	if resp == nil {
		return err
	}
	if wait == 0 {
		wait = parseRetryAfter(resp.Header)
	}
	return &StatusError{StatusCode: resp.StatusCode, Message: msg, RetryAfter: wait}
}

// parseRetryAfter reads a Retry-After header given in seconds.
func parseRetryAfter(h http.Header) time.Duration {
	v := strings.TrimSpace(h.Get("Retry-After"))
	if v == "" {
		return 0
	}
	seconds, err := strconv.Atoi(v)
	if err != nil || seconds <= 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}
