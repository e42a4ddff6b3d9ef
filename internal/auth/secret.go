// Package auth holds the gateway's shared-secret bearer authentication.
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SecretBytes is the entropy of a generated secret before hex encoding.
const SecretBytes = 32

// DefaultSecretPath returns ~/.jib-gateway/gateway-secret.
func DefaultSecretPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".jib-gateway", "gateway-secret")
	}
	return filepath.Join(home, ".jib-gateway", "gateway-secret")
}

// LoadSecret reads the secret at path. A missing file returns "", nil.
func LoadSecret(path string) (string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read gateway secret: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// LoadOrCreateSecret returns the secret at path, generating and persisting
// one with mode 0600 if the file is missing or empty.
func LoadOrCreateSecret(path string) (string, error) {
	secret, err := LoadSecret(path)
	if err != nil {
		return "", err
	}
	if secret != "" {
		return secret, nil
	}

	secret, err = GenerateSecret()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return "", fmt.Errorf("create secret dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(secret+"\n"), 0600); err != nil {
		return "", fmt.Errorf("write gateway secret: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("install gateway secret: %w", err)
	}
	return secret, nil
}

// GenerateSecret returns SecretBytes of randomness, hex encoded.
func GenerateSecret() (string, error) {
	buf := make([]byte, SecretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
