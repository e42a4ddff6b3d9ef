package auth

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadOrCreateSecretGenerates(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cfg")
	path := filepath.Join(dir, "gateway-secret")

	s1, err := LoadOrCreateSecret(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(s1) != SecretBytes*2 {
		t.Errorf("secret length = %d", len(s1))
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("file mode = %o", perm)
	}
	dinfo, err := os.Stat(dir)
	if err != nil {
		t.Fatal(err)
	}
	if perm := dinfo.Mode().Perm(); perm != 0700 {
		t.Errorf("dir mode = %o", perm)
	}

	s2, err := LoadOrCreateSecret(path)
	if err != nil {
		t.Fatal(err)
	}
	if s1 != s2 {
		t.Error("existing secret should be reused")
	}
}

func TestLoadSecretMissing(t *testing.T) {
	s, err := LoadSecret(filepath.Join(t.TempDir(), "nope"))
	if err != nil || s != "" {
		t.Errorf("got %q, %v", s, err)
	}
}

func TestVerify(t *testing.T) {
	a := NewAuthenticator("s3cret")
	tests := []struct {
		header string
		want   error
	}{
		{"Bearer s3cret", nil},
		{"bearer s3cret", nil},
		{"Bearer  s3cret ", nil},
		{"Bearer wrong", ErrInvalidToken},
		{"Bearer s3cre", ErrInvalidToken},
		{"Basic s3cret", ErrMissingToken},
		{"", ErrMissingToken},
		{"Bearer ", ErrMissingToken},
	}
	for _, tt := range tests {
		if err := a.Verify(tt.header); !errors.Is(err, tt.want) {
			t.Errorf("Verify(%q) = %v, want %v", tt.header, err, tt.want)
		}
	}
}

func TestEmptySecretDeniesEverything(t *testing.T) {
	a := NewAuthenticator("")
	for _, h := range []string{"", "Bearer ", "Bearer anything"} {
		if err := a.Verify(h); !errors.Is(err, ErrNoSecret) {
			t.Errorf("Verify(%q) = %v, want ErrNoSecret", h, err)
		}
	}
	if a.Configured() {
		t.Error("empty secret reported as configured")
	}
}
