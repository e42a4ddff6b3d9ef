package jibgateway

import (
	"fmt"
	"strings"
	"time"

	"github.com/jibsandbox/jib-gateway/internal/gateway"
)

// Request bodies accepted by the gateway.
type (
	PushRequest     = gateway.PushRequest
	PRCreateRequest = gateway.PRCreateRequest
	PRRequest       = gateway.PRRequest
	ExecuteRequest  = gateway.ExecuteRequest
	ForkRequest     = gateway.ForkRequest
)

// Result is a successful gateway call.
type Result struct {
	RequestID  string
	Operation  string
	Repository string
	Message    string
	Stdout     string
	Stderr     string
	ExitCode   int
}

// Health is the gateway's health report.
type Health = gateway.Health

// BlockedError is returned when the gateway refuses a request: a policy
// denial (403), a rate limit (429) or an authentication failure (401).
type BlockedError struct {
	Status     int
	Reason     string
	Message    string
	Hints      []string
	Details    map[string]any
	RequestID  string
	RetryAfter time.Duration
}

func (e *BlockedError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("jib gateway blocked (%s): %s", e.Reason, e.Message)
	}
	return fmt.Sprintf("jib gateway blocked (HTTP %d): %s", e.Status, e.Message)
}

// Hint returns the hints as one indented block, for printing to an agent.
func (e *BlockedError) Hint() string {
	var b strings.Builder
	for _, h := range e.Hints {
		b.WriteString("  - ")
		b.WriteString(h)
		b.WriteString("\n")
	}
	return b.String()
}

// RequestError is a bad request (400) or a failed git/gh run (502). Stdout
// and Stderr carry the command output when it ran.
type RequestError struct {
	Status    int
	Message   string
	RequestID string
	Stdout    string
	Stderr    string
	ExitCode  int
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("jib gateway error (HTTP %d): %s", e.Status, e.Message)
}
