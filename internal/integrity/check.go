// Package integrity verifies the gateway binary's checksum at startup.
// The expected hash is embedded at build time via ldflags or pinned in a
// checksum file. A mismatch is recorded as a tamper event and the gateway
// refuses to start.
package integrity

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jibsandbox/jib-gateway/internal/alert"
)

// ExpectedHash is set at build time via:
//
//	-ldflags "-X github.com/jibsandbox/jib-gateway/internal/integrity.ExpectedHash=<sha256hex>"
//
// When empty, verification falls back to the checksum file.
var ExpectedHash string

// KindTamper is the alert kind for a checksum mismatch.
const KindTamper = "binary_tamper"

// ErrTampered is returned when the binary does not match its pinned hash.
var ErrTampered = errors.New("binary checksum mismatch")

// TamperEvent records a binary integrity violation.
type TamperEvent struct {
	Timestamp    string `json:"timestamp"`
	Binary       string `json:"binary"`
	ExpectedHash string `json:"expected_hash"`
	ActualHash   string `json:"actual_hash"`
	Hostname     string `json:"hostname"`
	Type         string `json:"type"`
}

// Checker verifies one binary. Zero fields fall back to defaults: Binary to
// the running executable and Expected to ExpectedHash.
type Checker struct {
	Binary       string
	Expected     string
	ChecksumFile string
	TamperLog    string
	Alerts       *alert.Dispatcher
	Logger       *slog.Logger
}

// Result describes a completed check.
type Result struct {
	Skipped bool
	Binary  string
	Actual  string
}

// Verify hashes the binary and compares it to the pinned hash. With no
// pinned hash the check is skipped and a warning is logged.
func (c Checker) Verify() (Result, error) {
	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}

	expected := c.Expected
	if expected == "" {
		expected = ExpectedHash
	}
	if expected == "" {
		expected = readChecksumFile(c.ChecksumFile)
	}

	binary := c.Binary
	if binary == "" {
		exe, err := os.Executable()
		if err != nil {
			return Result{}, fmt.Errorf("integrity: cannot resolve executable path: %w", err)
		}
		binary = exe
	}
	if expected == "" {
		logger.Warn("no pinned binary hash, integrity check skipped", "binary", binary)
		return Result{Skipped: true, Binary: binary}, nil
	}

	actual, err := HashFile(binary)
	if err != nil {
		return Result{}, fmt.Errorf("integrity: cannot hash binary: %w", err)
	}
	res := Result{Binary: binary, Actual: actual}
	if strings.EqualFold(actual, expected) {
		logger.Info("binary checksum verified", "sha256", actual[:8]+"..."+actual[len(actual)-8:])
		return res, nil
	}

	event := TamperEvent{
		Timestamp:    time.Now().UTC().Format("2006-01-02T15:04:05.000Z"),
		Binary:       binary,
		ExpectedHash: expected,
		ActualHash:   actual,
		Type:         KindTamper,
	}
	event.Hostname, _ = os.Hostname()
	c.record(logger, event)

	return res, fmt.Errorf("integrity: %w (expected %s, got %s)", ErrTampered, expected, actual)
}

// record appends event to the tamper log, logs it and fires alerts.
func (c Checker) record(logger *slog.Logger, event TamperEvent) {
	logger.Error("binary tamper detected",
		"binary", event.Binary,
		"expected", event.ExpectedHash,
		"actual", event.ActualHash)

	if c.TamperLog != "" {
		if err := appendEvent(c.TamperLog, event); err != nil {
			logger.Error("tamper log write failed", "path", c.TamperLog, "error", err)
		}
	}

	c.Alerts.Dispatch(alert.Event{
		Timestamp: event.Timestamp,
		Operation: "startup",
		Decision:  "deny",
		Kind:      KindTamper,
		Reason:    fmt.Sprintf("binary %s checksum mismatch: expected %s, got %s", event.Binary, event.ExpectedHash, event.ActualHash),
	})
	c.Alerts.Wait()
}

func appendEvent(path string, event TamperEvent) error {
	line, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.Write(append(line, '\n')); err != nil {
		return err
	}
	return f.Sync()
}

// Pin writes the running binary's hash to path.
func Pin(path string) (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("integrity: cannot resolve executable path: %w", err)
	}
	sum, err := HashFile(exe)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, []byte(sum+"\n"), 0o600); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return sum, nil
}

// readChecksumFile returns the hash stored in path, or "" when the file is
// missing or does not hold a SHA-256 hex digest.
func readChecksumFile(path string) string {
	if path == "" {
		return ""
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	hash := strings.TrimSpace(string(data))
	if len(hash) == 64 && isHex(hash) {
		return hash
	}
	return ""
}

func isHex(s string) bool {
	for _, c := range s {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')) {
			return false
		}
	}
	return true
}

// HashFile returns the SHA-256 hex digest of the file at path.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
