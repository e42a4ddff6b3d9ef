package gateway

import (
	"context"
	"time"

	"github.com/jibsandbox/jib-gateway/internal/auth"
	"github.com/jibsandbox/jib-gateway/internal/github"
)

// TokenStatus describes one GitHub credential.
type TokenStatus struct {
	Name       string `json:"name"`
	Configured bool   `json:"configured"`
	Valid      bool   `json:"valid"`
	Login      string `json:"login,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Health is the unauthenticated status report.
type Health struct {
	Status        string        `json:"status"`
	Mode          string        `json:"mode"`
	SecretPresent bool          `json:"secret_present"`
	Tokens        []TokenStatus `json:"tokens"`
	Version       string        `json:"version,omitempty"`
}

// HealthChecker reports credential state.
type HealthChecker interface {
	Tokens(ctx context.Context) []TokenStatus
	SecretPresent() bool
}

// healthTimeout bounds the credential checks of one health request.
const healthTimeout = 10 * time.Second

// Health reports whether the gateway can serve requests. Status is "ok"
// when a secret is set and at least one token is valid.
func (g *Gateway) Health(ctx context.Context, version string) Health {
	h := Health{Status: "degraded", Mode: string(g.mode.Mode()), Version: version}
	if g.health == nil {
		return h
	}
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	h.SecretPresent = g.health.SecretPresent()
	h.Tokens = g.health.Tokens(ctx)
	valid := false
	for _, t := range h.Tokens {
		valid = valid || t.Valid
	}
	if h.SecretPresent && valid {
		h.Status = "ok"
	}
	return h
}

// CredentialHealth checks GitHub tokens with a viewer lookup.
type CredentialHealth struct {
	Clients []*github.TokenClient
	Auth    *auth.Authenticator
}

// SecretPresent reports whether the shared secret is configured.
func (c CredentialHealth) SecretPresent() bool {
	return c.Auth != nil && c.Auth.Configured()
}

// Tokens checks every client in order.
func (c CredentialHealth) Tokens(ctx context.Context) []TokenStatus {
	out := make([]TokenStatus, 0, len(c.Clients))
	for _, tc := range c.Clients {
		st := TokenStatus{Name: tc.Name(), Configured: tc.Source.Configured()}
		if st.Configured {
			login, err := tc.Viewer(ctx)
			if err != nil {
				st.Error = err.Error()
			} else {
				st.Valid, st.Login = true, login
			}
		}
		out = append(out, st)
	}
	return out
}
