package github

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewClient(Config{Token: "tok", BaseURL: srv.URL, Timeout: 2 * time.Second})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestNewClientRequiresToken(t *testing.T) {
	if _, err := NewClient(Config{}); err == nil {
		t.Error("expected error for empty token")
	}
}

func TestRepoVisibility(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/acme/widgets" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("unexpected auth header %q", got)
		}
		json.NewEncoder(w).Encode(map[string]any{"name": "widgets", "visibility": "internal", "private": true})
	})

	v, err := c.RepoVisibility(context.Background(), "acme", "widgets")
	if err != nil {
		t.Fatalf("RepoVisibility: %v", err)
	}
	if v != "internal" {
		t.Errorf("expected internal, got %q", v)
	}
}

func TestRepoVisibilityFallsBackToPrivateFlag(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"name": "widgets", "private": false})
	})
	v, err := c.RepoVisibility(context.Background(), "acme", "widgets")
	if err != nil {
		t.Fatal(err)
	}
	if v != "public" {
		t.Errorf("expected public, got %q", v)
	}
}

func TestRepoVisibilityNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]any{"message": "Not Found"})
	})
	_, err := c.RepoVisibility(context.Background(), "acme", "secret")
	if !IsNotFound(err) {
		t.Fatalf("expected 404 StatusError, got %v", err)
	}
}

func TestRepoVisibilityTooManyRequests(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "3")
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]any{"message": "slow down"})
	})
	_, err := c.RepoVisibility(context.Background(), "acme", "widgets")
	if !IsTooManyRequests(err) {
		t.Fatalf("expected 429, got %v", err)
	}
	if RetryAfter(err) != 3*time.Second {
		t.Errorf("expected Retry-After 3s, got %s", RetryAfter(err))
	}
}

func TestListPullRequestsForBranch(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/acme/widgets/pulls" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("head") != "acme:feature-x" || q.Get("state") != "open" {
			t.Errorf("unexpected query %v", q)
		}
		json.NewEncoder(w).Encode([]map[string]any{
			{"number": 42, "state": "open", "user": map[string]any{"login": "jib[bot]"}, "head": map[string]any{"ref": "feature-x"}},
			{"number": 43, "state": "open", "user": map[string]any{"login": "alice"}, "head": map[string]any{"ref": "other"}},
		})
	})

	prs, err := c.ListPullRequestsForBranch(context.Background(), "acme", "widgets", "feature-x", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(prs) != 1 || prs[0].Number != 42 || prs[0].Author != "jib[bot]" {
		t.Errorf("unexpected prs %+v", prs)
	}
}

func TestPullRequest(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"number": 7, "state": "closed",
			"user": map[string]any{"login": "alice"},
			"head": map[string]any{"ref": "fix"},
		})
	})
	pr, err := c.PullRequest(context.Background(), "acme", "widgets", 7)
	if err != nil {
		t.Fatal(err)
	}
	if pr != (PullRequest{Number: 7, Author: "alice", State: "closed", HeadRef: "fix"}) {
		t.Errorf("unexpected %+v", pr)
	}
}

func TestTransportErrorIsNotStatusError(t *testing.T) {
	c, err := NewClient(Config{Token: "tok", BaseURL: "http://127.0.0.1:1", Timeout: time.Second})
	if err != nil {
		t.Fatal(err)
	}
	_, err = c.RepoVisibility(context.Background(), "acme", "widgets")
	if err == nil {
		t.Fatal("expected transport error")
	}
	if StatusCode(err) != 0 {
		t.Errorf("expected no status code, got %d", StatusCode(err))
	}
}

func TestStatusErrorHelpers(t *testing.T) {
	err := &StatusError{StatusCode: 403, Message: "forbidden"}
	if !IsForbidden(err) || IsNotFound(err) {
		t.Error("status helpers mismatch")
	}
	if StatusCode(errors.New("plain")) != 0 {
		t.Error("plain error has no status")
	}
	if err.Error() != "github: HTTP 403: forbidden" {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestTokenSource(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "token")
	if err := os.WriteFile(path, []byte("  from-file\n"), 0600); err != nil {
		t.Fatal(err)
	}

	if tok, err := (TokenSource{Value: "inline", File: path}).Token(); err != nil || tok != "inline" {
		t.Errorf("inline should win, got %q %v", tok, err)
	}
	if tok, err := (TokenSource{File: path}).Token(); err != nil || tok != "from-file" {
		t.Errorf("expected trimmed file token, got %q %v", tok, err)
	}
	if _, err := (TokenSource{File: filepath.Join(dir, "missing")}).Token(); !errors.Is(err, ErrNoToken) {
		t.Errorf("expected ErrNoToken, got %v", err)
	}
	if (TokenSource{}).Configured() {
		t.Error("empty source should not be configured")
	}
}
