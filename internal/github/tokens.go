package github

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrNoToken is returned when a source has neither a value nor a readable file.
var ErrNoToken = errors.New("github: no token configured")

// TokenSource loads one credential. An inline Value wins over File. The
// file is re-read on every call so an external refresher can rotate it.
type TokenSource struct {
	// Name labels the source in logs ("bot", "user").
	Name  string
	Value string
	File  string
}

// Token returns the current credential.
func (s TokenSource) Token() (string, error) {
	if v := strings.TrimSpace(s.Value); v != "" {
		return v, nil
	}
	if s.File == "" {
		return "", ErrNoToken
	}
	data, err := os.ReadFile(s.File)
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNoToken
		}
		return "", fmt.Errorf("github: read %s token file: %w", s.Name, err)
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", ErrNoToken
	}
	return token, nil
}

// Configured reports whether the source could yield a token without error.
func (s TokenSource) Configured() bool {
	_, err := s.Token()
	return err == nil
}
