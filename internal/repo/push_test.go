package repo

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	git "github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/plumbing"

	"github.com/jibsandbox/jib-gateway/internal/model"
)

var secretRepo = model.RepoInfo{Owner: "acme", Repo: "secret"}

func appendConfig(t *testing.T, dir, text string) {
	t.Helper()
	f, err := os.OpenFile(filepath.Join(dir, ".git", "config"), os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if _, err := f.WriteString(text); err != nil {
		t.Fatal(err)
	}
}

func TestPushURL(t *testing.T) {
	if got := PushURL(secretRepo); got != "https://github.com/acme/secret.git" {
		t.Errorf("PushURL = %q", got)
	}
}

func TestPushConfigHazardsCleanCheckout(t *testing.T) {
	dir := initRepo(t, "origin", "https://github.com/acme/secret.git")
	if h := PushConfigHazards(dir, "origin", secretRepo); len(h) != 0 {
		t.Errorf("hazards = %v", h)
	}
}

func TestPushConfigHazardsPushURLElsewhere(t *testing.T) {
	dir := initRepo(t, "origin", "https://github.com/acme/secret.git")
	appendConfig(t, dir, "\tpushurl = https://github.com/acme/oss-lib.git\n")

	// The fetch URL still resolves to the private repository.
	if info, ok := FromPath(dir, "origin"); !ok || info.FullName() != "acme/secret" {
		t.Fatalf("FromPath = %v, %v", info, ok)
	}
	h := PushConfigHazards(dir, "origin", secretRepo)
	if len(h) != 1 || !strings.Contains(h[0], "acme/oss-lib") {
		t.Errorf("hazards = %v", h)
	}
}

func TestPushConfigHazardsMatchingPushURL(t *testing.T) {
	dir := initRepo(t, "origin", "https://github.com/acme/secret.git")
	appendConfig(t, dir, "\tpushurl = git@github.com:acme/secret.git\n")
	if h := PushConfigHazards(dir, "origin", secretRepo); len(h) != 0 {
		t.Errorf("hazards = %v", h)
	}
}

func TestPushConfigHazardsRedirects(t *testing.T) {
	tests := []struct {
		name   string
		config string
		want   string
	}{
		{"insteadOf", "[url \"https://evil.example/\"]\n\tinsteadOf = https://github.com/\n", "[url]"},
		{"pushInsteadOf", "[url \"https://evil.example/\"]\n\tpushInsteadOf = https://github.com/\n", "[url]"},
		{"include", "[include]\n\tpath = /tmp/other\n", "[include]"},
		{"url http", "[http \"https://github.com/\"]\n\tsslVerify = false\n", "URL-specific"},
		{"proxy", "[http]\n\tproxy = http://evil.example:8080\n", "http.proxy"},
		{"helper", "[credential]\n\thelper = !cat\n", "[credential]"},
	}
	for _, tt := range tests {
		dir := initRepo(t, "origin", "https://github.com/acme/secret.git")
		appendConfig(t, dir, tt.config)
		h := PushConfigHazards(dir, "origin", secretRepo)
		if len(h) == 0 || !strings.Contains(strings.Join(h, ";"), tt.want) {
			t.Errorf("%s: hazards = %v", tt.name, h)
		}
	}
}

func TestPushConfigHazardsNotARepo(t *testing.T) {
	if h := PushConfigHazards(t.TempDir(), "origin", secretRepo); len(h) != 1 {
		t.Errorf("hazards = %v", h)
	}
}

func TestTrackingHash(t *testing.T) {
	dir := initRepo(t, "origin", "https://github.com/acme/secret.git")
	if _, ok := TrackingHash(dir, "origin", "jib/fix"); ok {
		t.Fatal("missing tracking ref reported")
	}

	r, err := git.PlainOpen(dir)
	if err != nil {
		t.Fatal(err)
	}
	hash := plumbing.NewHash("0123456789abcdef0123456789abcdef01234567")
	if err := r.Storer.SetReference(plumbing.NewHashReference(plumbing.NewRemoteReferenceName("origin", "jib/fix"), hash)); err != nil {
		t.Fatal(err)
	}
	got, ok := TrackingHash(dir, "", "jib/fix")
	if !ok || got != hash.String() {
		t.Errorf("TrackingHash = %q, %v", got, ok)
	}
}
