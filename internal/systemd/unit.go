// Package systemd renders and installs the gateway's systemd unit.
package systemd

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
)

// DefaultUnitPath is where init --install-systemd writes the unit.
const DefaultUnitPath = "/etc/systemd/system/jib-gateway.service"

// UnitOptions fill the unit template.
type UnitOptions struct {
	Binary     string
	ConfigPath string
	// User runs the service. The gateway keeps its secret and tokens in
	// this user's home, so it must not be root.
	User string
	// StateDir is the only writable path (secret, audit log).
	StateDir string
}

var unitTemplate = template.Must(template.New("unit").Parse(`[Unit]
Description=jib gateway (GitHub policy sidecar)
After=network-online.target
Wants=network-online.target

[Service]
Type=simple
User={{.User}}
ExecStart={{.Binary}} serve --config {{.ConfigPath}}
Restart=on-failure
RestartSec=2
NoNewPrivileges=true
PrivateTmp=true
ProtectSystem=strict
ProtectHome=read-only
ReadWritePaths={{.StateDir}}
ProtectKernelTunables=true
RestrictNamespaces=true
MemoryDenyWriteExecute=true

[Install]
WantedBy=multi-user.target
`))

// Unit renders the service unit.
func Unit(opts UnitOptions) (string, error) {
	if opts.Binary == "" || opts.ConfigPath == "" || opts.User == "" || opts.StateDir == "" {
		return "", fmt.Errorf("systemd unit: binary, config path, user and state dir are required")
	}
	var b bytes.Buffer
	if err := unitTemplate.Execute(&b, opts); err != nil {
		return "", fmt.Errorf("render unit: %w", err)
	}
	return b.String(), nil
}

// Install writes content to unitPath and records its hash at hashPath.
func Install(unitPath, hashPath, content string) error {
	if err := os.WriteFile(unitPath, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write systemd unit: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(hashPath), 0o700); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	return os.WriteFile(hashPath, []byte(hashOf([]byte(content))+"\n"), 0o600)
}

// CheckIntegrity compares the unit file against the install-time hash.
// It returns a warning when the unit was modified, or "" when it matches
// or there is nothing to compare.
func CheckIntegrity(unitPath, hashPath string) string {
	data, err := os.ReadFile(unitPath)
	if err != nil {
		return ""
	}
	stored, err := os.ReadFile(hashPath)
	if err != nil {
		return ""
	}
	want := strings.TrimSpace(string(stored))
	if len(want) != sha256.Size*2 {
		return ""
	}
	got := hashOf(data)
	if got == want {
		return ""
	}
	return fmt.Sprintf("systemd unit file %s has been modified since installation (expected %s, got %s)",
		unitPath, want[:16], got[:16])
}

func hashOf(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
