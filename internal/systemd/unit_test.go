package systemd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func testOptions() UnitOptions {
	return UnitOptions{
		Binary:     "/usr/local/bin/jib-gateway",
		ConfigPath: "/home/jib/.jib-gateway/config.yaml",
		User:       "jib",
		StateDir:   "/home/jib/.jib-gateway",
	}
}

func TestUnit(t *testing.T) {
	unit, err := Unit(testOptions())
	if err != nil {
		t.Fatalf("Unit: %v", err)
	}
	for _, section := range []string{"[Unit]", "[Service]", "[Install]"} {
		if !strings.Contains(unit, section) {
			t.Errorf("unit missing section %s", section)
		}
	}
	if !strings.Contains(unit, "ExecStart=/usr/local/bin/jib-gateway serve --config /home/jib/.jib-gateway/config.yaml") {
		t.Error("unit missing serve command")
	}
	for _, directive := range []string{"User=jib", "NoNewPrivileges=true", "ProtectSystem=strict", "ReadWritePaths=/home/jib/.jib-gateway"} {
		if !strings.Contains(unit, directive) {
			t.Errorf("unit missing directive %s", directive)
		}
	}
}

func TestUnitRequiresFields(t *testing.T) {
	opts := testOptions()
	opts.User = ""
	if _, err := Unit(opts); err == nil {
		t.Fatal("expected error for missing user")
	}
}

func TestInstallAndCheckIntegrity(t *testing.T) {
	dir := t.TempDir()
	unitPath := filepath.Join(dir, "jib-gateway.service")
	hashPath := filepath.Join(dir, "state", "unit.sha256")

	unit, err := Unit(testOptions())
	if err != nil {
		t.Fatal(err)
	}
	if err := Install(unitPath, hashPath, unit); err != nil {
		t.Fatalf("Install: %v", err)
	}
	if msg := CheckIntegrity(unitPath, hashPath); msg != "" {
		t.Errorf("expected intact unit, got %q", msg)
	}

	if err := os.WriteFile(unitPath, []byte(unit+"ExecStartPre=/bin/true\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if msg := CheckIntegrity(unitPath, hashPath); !strings.Contains(msg, "modified") {
		t.Errorf("expected modification warning, got %q", msg)
	}
}

func TestCheckIntegrityNothingToCompare(t *testing.T) {
	dir := t.TempDir()
	if msg := CheckIntegrity(filepath.Join(dir, "missing.service"), filepath.Join(dir, "h")); msg != "" {
		t.Errorf("missing unit: got %q", msg)
	}
	unitPath := filepath.Join(dir, "u.service")
	os.WriteFile(unitPath, []byte("[Unit]\n"), 0o644)
	if msg := CheckIntegrity(unitPath, filepath.Join(dir, "h")); msg != "" {
		t.Errorf("missing hash: got %q", msg)
	}
	hashPath := filepath.Join(dir, "bad")
	os.WriteFile(hashPath, []byte("short\n"), 0o600)
	if msg := CheckIntegrity(unitPath, hashPath); msg != "" {
		t.Errorf("invalid hash: got %q", msg)
	}
}
