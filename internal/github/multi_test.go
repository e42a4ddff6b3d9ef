package github

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestFallbackSkipsMissingToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer user-tok" {
			t.Errorf("unexpected auth header %q", got)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"number": 5,
			"state":  "open",
			"user":   map[string]any{"login": "jib"},
			"head":   map[string]any{"ref": "jib/x"},
		})
	}))
	t.Cleanup(srv.Close)

	f := Fallback{
		NewTokenClient(TokenSource{Name: "bot"}, srv.URL, time.Second),
		NewTokenClient(TokenSource{Name: "user", Value: "user-tok"}, srv.URL, time.Second),
	}
	pr, err := f.PullRequest(context.Background(), "acme", "widgets", 5)
	if err != nil {
		t.Fatalf("PullRequest: %v", err)
	}
	if pr.Number != 5 || pr.Author != "jib" {
		t.Errorf("pr = %+v", pr)
	}

	tok, err := f.Token()
	if err != nil || tok != "user-tok" {
		t.Errorf("Token = %q, %v", tok, err)
	}
}

func TestFallbackAllMissing(t *testing.T) {
	f := Fallback{NewTokenClient(TokenSource{Name: "bot"}, "", time.Second)}
	if _, err := f.ListPullRequestsForBranch(context.Background(), "a", "b", "c", "open"); !errors.Is(err, ErrNoToken) {
		t.Errorf("err = %v, want ErrNoToken", err)
	}
	if _, err := f.Token(); !errors.Is(err, ErrNoToken) {
		t.Errorf("Token err = %v", err)
	}
	if _, err := (Fallback{}).Token(); !errors.Is(err, ErrNoToken) {
		t.Errorf("empty Token err = %v", err)
	}
}
