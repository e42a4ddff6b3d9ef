package integrity

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jibsandbox/jib-gateway/internal/alert"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func writeBinary(t *testing.T, content string) (string, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "jib-gateway")
	if err := os.WriteFile(path, []byte(content), 0o755); err != nil {
		t.Fatal(err)
	}
	sum := sha256.Sum256([]byte(content))
	return path, hex.EncodeToString(sum[:])
}

func TestVerifySkipsWithoutPinnedHash(t *testing.T) {
	bin, _ := writeBinary(t, "binary")
	res, err := Checker{Binary: bin, ChecksumFile: "/nonexistent/binary.sha256", Logger: quiet}.Verify()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Skipped {
		t.Error("expected skipped result")
	}
}

func TestVerifyPassesWithChecksumFile(t *testing.T) {
	bin, sum := writeBinary(t, "binary")
	file := filepath.Join(t.TempDir(), "binary.sha256")
	if err := os.WriteFile(file, []byte(strings.ToUpper(sum)+"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	res, err := Checker{Binary: bin, ChecksumFile: file, Logger: quiet}.Verify()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Skipped || res.Actual != sum {
		t.Errorf("result = %+v", res)
	}
}

func TestMalformedChecksumFileIgnored(t *testing.T) {
	file := filepath.Join(t.TempDir(), "binary.sha256")
	if err := os.WriteFile(file, []byte("not-a-hash"), 0o600); err != nil {
		t.Fatal(err)
	}
	if got := readChecksumFile(file); got != "" {
		t.Errorf("readChecksumFile = %q", got)
	}
}

func TestVerifyMismatchRecordsTamper(t *testing.T) {
	got := make(chan alert.Event, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var e alert.Event
		json.NewDecoder(r.Body).Decode(&e)
		got <- e
	}))
	defer srv.Close()

	bin, _ := writeBinary(t, "binary")
	tamperLog := filepath.Join(t.TempDir(), "state", "tamper.jsonl")
	c := Checker{
		Binary:    bin,
		Expected:  strings.Repeat("ab", 32),
		TamperLog: tamperLog,
		Alerts:    alert.NewDispatcher([]alert.Config{{URL: srv.URL, Events: []string{KindTamper}}}, quiet),
		Logger:    quiet,
	}
	_, err := c.Verify()
	if !errors.Is(err, ErrTampered) {
		t.Fatalf("err = %v", err)
	}

	data, err := os.ReadFile(tamperLog)
	if err != nil {
		t.Fatalf("tamper log: %v", err)
	}
	var event TamperEvent
	if err := json.Unmarshal(data, &event); err != nil {
		t.Fatalf("tamper log line: %v", err)
	}
	if event.Type != KindTamper || event.Binary != bin {
		t.Errorf("event = %+v", event)
	}

	select {
	case e := <-got:
		if e.Kind != KindTamper || e.Decision != "deny" {
			t.Errorf("alert = %+v", e)
		}
	default:
		t.Fatal("no alert delivered")
	}
}

func TestExpectedHashVariableUsed(t *testing.T) {
	bin, sum := writeBinary(t, "pinned at build")
	old := ExpectedHash
	ExpectedHash = sum
	defer func() { ExpectedHash = old }()

	res, err := Checker{Binary: bin, Logger: quiet}.Verify()
	if err != nil || res.Skipped {
		t.Fatalf("res = %+v err = %v", res, err)
	}
}

func TestPinWritesRunningBinaryHash(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pin", "binary.sha256")
	sum, err := Pin(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := readChecksumFile(path); got != sum {
		t.Errorf("pinned %q, read back %q", sum, got)
	}
}
