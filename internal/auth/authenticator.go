package auth

import (
	"crypto/subtle"
	"errors"
	"strings"
	"sync"
)

var (
	// ErrNoSecret means the gateway has no secret configured and denies
	// every request.
	ErrNoSecret = errors.New("gateway secret not configured")
	// ErrMissingToken means no bearer token was presented.
	ErrMissingToken = errors.New("missing bearer token")
	// ErrInvalidToken means the bearer token did not match.
	ErrInvalidToken = errors.New("invalid bearer token")
)

// Authenticator checks bearer tokens against the shared secret.
type Authenticator struct {
	mu     sync.RWMutex
	secret []byte
}

// NewAuthenticator creates an Authenticator. An empty secret denies all.
func NewAuthenticator(secret string) *Authenticator {
	a := &Authenticator{}
	a.SetSecret(secret)
	return a
}

// SetSecret replaces the secret.
func (a *Authenticator) SetSecret(secret string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.secret = []byte(strings.TrimSpace(secret))
}

// Configured reports whether a secret is set.
func (a *Authenticator) Configured() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.secret) > 0
}

// Verify checks an Authorization header value of the form "Bearer <token>".
func (a *Authenticator) Verify(header string) error {
	token, ok := BearerToken(header)
	if !ok {
		if !a.Configured() {
			return ErrNoSecret
		}
		return ErrMissingToken
	}
	return a.VerifyToken(token)
}

// VerifyToken compares token to the secret in constant time.
func (a *Authenticator) VerifyToken(token string) error {
	a.mu.RLock()
	secret := a.secret
	a.mu.RUnlock()

	if len(secret) == 0 {
		return ErrNoSecret
	}
	if token == "" {
		return ErrMissingToken
	}
	if subtle.ConstantTimeCompare([]byte(token), secret) != 1 {
		return ErrInvalidToken
	}
	return nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	const prefix = "bearer "
	header = strings.TrimSpace(header)
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}
