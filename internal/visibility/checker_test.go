package visibility

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/jibsandbox/jib-gateway/internal/clock"
	"github.com/jibsandbox/jib-gateway/internal/github"
	"github.com/jibsandbox/jib-gateway/internal/model"
)

type stubFetcher struct {
	mu      sync.Mutex
	results []stubResult
	calls   int
}

type stubResult struct {
	value string
	err   error
}

func (s *stubFetcher) RepoVisibility(_ context.Context, _, _ string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	s.calls++
	if i >= len(s.results) {
		i = len(s.results) - 1
	}
	r := s.results[i]
	return r.value, r.err
}

func (s *stubFetcher) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func answer(v string) *stubFetcher {
	return &stubFetcher{results: []stubResult{{value: v}}}
}

func failing(code int) *stubFetcher {
	return &stubFetcher{results: []stubResult{{err: &github.StatusError{StatusCode: code}}}}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newChecker(fc *clock.FakeClock, sources ...Source) *Checker {
	return New(sources, Config{
		ReadTTL:  60 * time.Second,
		WriteTTL: 0,
		Clock:    fc,
		Logger:   testLogger(),
	})
}

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestReadLookupIsCached(t *testing.T) {
	fc := clock.Fake(epoch)
	f := answer("private")
	c := newChecker(fc, Source{Name: "bot", Fetcher: f})

	for i := 0; i < 3; i++ {
		v, err := c.Visibility(context.Background(), "Acme", "Widgets", false)
		if err != nil {
			t.Fatalf("lookup %d: %v", i, err)
		}
		if v != model.Private {
			t.Fatalf("lookup %d: got %q", i, v)
		}
	}
	if f.Calls() != 1 {
		t.Errorf("expected 1 API call, got %d", f.Calls())
	}

	// Key is case-insensitive.
	if _, err := c.Visibility(context.Background(), "acme", "widgets", false); err != nil {
		t.Fatal(err)
	}
	if f.Calls() != 1 {
		t.Errorf("case variant missed cache: %d calls", f.Calls())
	}
}

func TestReadCacheExpires(t *testing.T) {
	fc := clock.Fake(epoch)
	f := answer("public")
	c := newChecker(fc, Source{Name: "bot", Fetcher: f})

	if _, err := c.Visibility(context.Background(), "o", "r", false); err != nil {
		t.Fatal(err)
	}
	fc.Advance(59 * time.Second)
	if _, err := c.Visibility(context.Background(), "o", "r", false); err != nil {
		t.Fatal(err)
	}
	if f.Calls() != 1 {
		t.Fatalf("expected cache hit before TTL, got %d calls", f.Calls())
	}
	fc.Advance(time.Second)
	if _, err := c.Visibility(context.Background(), "o", "r", false); err != nil {
		t.Fatal(err)
	}
	if f.Calls() != 2 {
		t.Errorf("expected refetch at TTL, got %d calls", f.Calls())
	}
}

func TestWriteLookupAlwaysRefetches(t *testing.T) {
	fc := clock.Fake(epoch)
	f := answer("private")
	c := newChecker(fc, Source{Name: "bot", Fetcher: f})

	for i := 0; i < 3; i++ {
		if _, err := c.Visibility(context.Background(), "o", "r", true); err != nil {
			t.Fatal(err)
		}
	}
	if f.Calls() != 3 {
		t.Errorf("expected 3 API calls for writes, got %d", f.Calls())
	}

	// A write lookup refreshes the entry for later reads.
	if _, err := c.Visibility(context.Background(), "o", "r", false); err != nil {
		t.Fatal(err)
	}
	if f.Calls() != 3 {
		t.Errorf("read after write should hit cache, got %d calls", f.Calls())
	}
}

func TestFallsBackToNextCredential(t *testing.T) {
	fc := clock.Fake(epoch)
	bot := failing(http.StatusNotFound)
	user := answer("private")
	c := newChecker(fc,
		Source{Name: "bot", Fetcher: bot},
		Source{Name: "user", Fetcher: user},
	)

	v, err := c.Visibility(context.Background(), "o", "r", false)
	if err != nil {
		t.Fatal(err)
	}
	if v != model.Private {
		t.Errorf("got %q, want private", v)
	}
	if bot.Calls()+user.Calls() != 2 {
		t.Errorf("expected 2 API calls, got %d", bot.Calls()+user.Calls())
	}
}

func TestAllCredentialsFail(t *testing.T) {
	fc := clock.Fake(epoch)
	c := newChecker(fc,
		Source{Name: "bot", Fetcher: failing(http.StatusNotFound)},
		Source{Name: "user", Fetcher: failing(http.StatusForbidden)},
	)

	_, err := c.Visibility(context.Background(), "o", "r", false)
	var lerr *LookupError
	if !errors.As(err, &lerr) {
		t.Fatalf("expected LookupError, got %v", err)
	}
	if len(lerr.Attempts) != 2 {
		t.Fatalf("expected 2 attempts, got %d", len(lerr.Attempts))
	}
	if !lerr.NoneHasAccess() {
		t.Error("expected NoneHasAccess")
	}
	if lerr.AllRateLimited() {
		t.Error("did not expect AllRateLimited")
	}
	if c.CacheLen() != 0 {
		t.Error("failure must not populate the cache")
	}
}

func TestInvalidValueIsNotCached(t *testing.T) {
	fc := clock.Fake(epoch)
	bot := answer("secret")
	user := answer("public")
	c := newChecker(fc,
		Source{Name: "bot", Fetcher: bot},
		Source{Name: "user", Fetcher: user},
	)

	_, err := c.Visibility(context.Background(), "o", "r", false)
	var lerr *LookupError
	if !errors.As(err, &lerr) {
		t.Fatalf("expected LookupError, got %v", err)
	}
	if lerr.Attempts[0].Reason != ReasonInvalidResponse {
		t.Errorf("reason = %s", lerr.Attempts[0].Reason)
	}
	if user.Calls() != 0 {
		t.Error("invalid response should end the lookup")
	}
	if c.CacheLen() != 0 {
		t.Error("invalid response must not be cached")
	}
}

func TestRateLimitRetriesOnce(t *testing.T) {
	fc := clock.Fake(epoch)
	f := &stubFetcher{results: []stubResult{
		{err: &github.StatusError{StatusCode: http.StatusTooManyRequests, RetryAfter: 3 * time.Second}},
		{value: "internal"},
	}}
	c := newChecker(fc, Source{Name: "bot", Fetcher: f})

	v, err := c.Visibility(context.Background(), "o", "r", false)
	if err != nil {
		t.Fatal(err)
	}
	if v != model.Internal {
		t.Errorf("got %q", v)
	}
	sleeps := fc.Sleeps()
	if len(sleeps) != 1 || sleeps[0] != 3*time.Second {
		t.Errorf("sleeps = %v, want [3s]", sleeps)
	}
}

func TestRateLimitWaitIsCapped(t *testing.T) {
	fc := clock.Fake(epoch)
	f := &stubFetcher{results: []stubResult{
		{err: &github.StatusError{StatusCode: http.StatusTooManyRequests, RetryAfter: time.Hour}},
	}}
	c := newChecker(fc, Source{Name: "bot", Fetcher: f})

	_, err := c.Visibility(context.Background(), "o", "r", false)
	var lerr *LookupError
	if !errors.As(err, &lerr) {
		t.Fatalf("expected LookupError, got %v", err)
	}
	if !lerr.AllRateLimited() {
		t.Errorf("reasons = %v", lerr.Reasons())
	}
	if f.Calls() != 2 {
		t.Errorf("expected initial call plus one retry, got %d", f.Calls())
	}
	sleeps := fc.Sleeps()
	if len(sleeps) != 1 || sleeps[0] != DefaultMaxRetryWait {
		t.Errorf("sleeps = %v, want [%s]", sleeps, DefaultMaxRetryWait)
	}
}

func TestTransportAndMissingToken(t *testing.T) {
	fc := clock.Fake(epoch)
	c := newChecker(fc,
		Source{Name: "bot", Fetcher: &stubFetcher{results: []stubResult{{err: errors.New("dial tcp: refused")}}}},
		Source{Name: "user", Fetcher: &stubFetcher{results: []stubResult{{err: github.ErrNoToken}}}},
	)

	_, err := c.Visibility(context.Background(), "o", "r", false)
	var lerr *LookupError
	if !errors.As(err, &lerr) {
		t.Fatalf("expected LookupError, got %v", err)
	}
	got := lerr.Reasons()
	if len(got) != 2 || got[0] != string(ReasonTransport) || got[1] != string(ReasonNoCredentials) {
		t.Errorf("reasons = %v", got)
	}
	if !errors.Is(err, github.ErrNoToken) {
		t.Error("LookupError should unwrap to ErrNoToken")
	}
}

func TestInvalidateAndClear(t *testing.T) {
	fc := clock.Fake(epoch)
	f := answer("public")
	c := newChecker(fc, Source{Name: "bot", Fetcher: f})
	ctx := context.Background()

	_, _ = c.Visibility(ctx, "o", "a", false)
	_, _ = c.Visibility(ctx, "o", "b", false)
	c.Invalidate("O", "A")
	_, _ = c.Visibility(ctx, "o", "a", false)
	if f.Calls() != 3 {
		t.Errorf("expected refetch after invalidate, got %d calls", f.Calls())
	}
	c.Clear()
	if c.CacheLen() != 0 {
		t.Error("clear left entries")
	}
}

func TestCanceledRequestDoesNotAbortLookup(t *testing.T) {
	fc := clock.Fake(epoch)
	c := newChecker(fc, Source{Name: "bot", Fetcher: answer("private")})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	v, err := c.Visibility(ctx, "o", "r", true)
	if err != nil || v != model.Private {
		t.Fatalf("got %q, %v", v, err)
	}
}

func TestEmptyRepoFails(t *testing.T) {
	c := newChecker(clock.Fake(epoch), Source{Name: "bot", Fetcher: answer("public")})
	if _, err := c.Visibility(context.Background(), "", "r", false); err == nil {
		t.Fatal("expected error")
	}
}
