package audit

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jibsandbox/jib-gateway/internal/clock"
)

func openTemp(t *testing.T) (*Log, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "logs", "audit.jsonl")
	l, err := OpenWithClock(path, clock.Fake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { l.Close() })
	return l, path
}

func TestRecordChainsEntries(t *testing.T) {
	l, path := openTemp(t)

	first, err := l.Record(Entry{Operation: "push", Repository: "acme/widgets", Decision: "allow"})
	if err != nil {
		t.Fatal(err)
	}
	if first.PrevHash != GenesisHash {
		t.Errorf("first prev_hash = %s", first.PrevHash)
	}
	if first.RequestID == "" {
		t.Error("request id not assigned")
	}
	if first.Timestamp != "2026-03-01T12:00:00.000Z" {
		t.Errorf("timestamp = %s", first.Timestamp)
	}

	second, err := l.Record(Entry{Operation: "pr_comment", Decision: "deny", RequestID: "req-2"})
	if err != nil {
		t.Fatal(err)
	}
	if second.PrevHash == GenesisHash || second.RequestID != "req-2" {
		t.Errorf("second = %+v", second)
	}

	res := Verify(path)
	if !res.Valid || res.Lines != 2 {
		t.Errorf("verify = %+v", res)
	}
}

func TestReopenContinuesChain(t *testing.T) {
	l, path := openTemp(t)
	l.Record(Entry{Operation: "push", Decision: "allow"})
	l.Close()

	l2, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer l2.Close()
	if _, err := l2.Record(Entry{Operation: "push", Decision: "deny"}); err != nil {
		t.Fatal(err)
	}
	if res := Verify(path); !res.Valid || res.Lines != 2 {
		t.Errorf("verify after reopen = %+v", res)
	}
}

func TestVerifyDetectsTampering(t *testing.T) {
	l, path := openTemp(t)
	l.Record(Entry{Operation: "push", Repository: "acme/a", Decision: "deny"})
	l.Record(Entry{Operation: "push", Repository: "acme/b", Decision: "deny"})
	l.Record(Entry{Operation: "push", Repository: "acme/c", Decision: "deny"})
	l.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	tampered := strings.Replace(string(data), `"acme/a","decision":"deny"`, `"acme/a","decision":"allow"`, 1)
	if tampered == string(data) {
		t.Fatal("tamper replacement did not apply")
	}
	if err := os.WriteFile(path, []byte(tampered), 0600); err != nil {
		t.Fatal(err)
	}

	res := Verify(path)
	if res.Valid {
		t.Fatal("tampering not detected")
	}
	if res.ErrorLine != 2 {
		t.Errorf("error line = %d, want 2", res.ErrorLine)
	}
}

func TestVerifyReaderRejectsBadFirstLine(t *testing.T) {
	res := VerifyReader(strings.NewReader(`{"prev_hash":"sha256:abc"}` + "\n"))
	if res.Valid || res.ErrorLine != 1 {
		t.Errorf("res = %+v", res)
	}
	res = VerifyReader(strings.NewReader("not json\n"))
	if res.Valid || !strings.Contains(res.Error, "parse") {
		t.Errorf("res = %+v", res)
	}
	if res := VerifyReader(strings.NewReader("")); !res.Valid || res.Lines != 0 {
		t.Errorf("empty log = %+v", res)
	}
}

func TestConcurrentRecordKeepsChain(t *testing.T) {
	l, path := openTemp(t)
	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := l.Record(Entry{Operation: "execute", Decision: "allow"}); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()
	if res := Verify(path); !res.Valid || res.Lines != 40 {
		t.Errorf("verify = %+v", res)
	}
}

func TestQueryAndFormat(t *testing.T) {
	l, path := openTemp(t)
	l.Record(Entry{Operation: "push", Repository: "acme/widgets", Decision: "allow", Reason: "owned prefix"})
	l.Record(Entry{Operation: "push", Repository: "acme/oss-lib", Decision: "deny", Kind: "push_public", Reason: "public"})
	l.Record(Entry{Operation: "pr_comment", Repository: "acme/widgets", Decision: "deny", Kind: "pr_not_owned", Reason: "foreign"})

	res, err := Query(path, Filter{Repository: "ACME/widgets"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Summary.Total != 2 || res.Summary.AllowCount != 1 || res.Summary.DenyCount != 1 {
		t.Errorf("summary = %+v", res.Summary)
	}

	res, err = Query(path, Filter{Decision: "deny", Limit: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Entries) != 1 || res.Entries[0].Kind != "pr_not_owned" {
		t.Errorf("entries = %+v", res.Entries)
	}

	all, _ := Query(path, Filter{})
	text := FormatTimeline(all)
	if !strings.Contains(text, "DENY") || !strings.Contains(text, "push_public=1") {
		t.Errorf("timeline:\n%s", text)
	}
	if FormatTimeline(&Result{}) != "No audit entries found.\n" {
		t.Error("empty timeline")
	}
	if _, err := FormatJSON(all); err != nil {
		t.Fatal(err)
	}
}

func TestNopRecorder(t *testing.T) {
	var r Recorder = Nop{}
	e, err := r.Record(Entry{Operation: "push"})
	if err != nil || e.Operation != "push" {
		t.Errorf("got %+v, %v", e, err)
	}
}
