package repomode

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/jibsandbox/jib-gateway/internal/model"
	"github.com/jibsandbox/jib-gateway/internal/repo"
)

type fakeOracle struct {
	mu    sync.Mutex
	vis   map[string]model.Visibility
	calls []bool
}

func (f *fakeOracle) Visibility(_ context.Context, owner, name string, forWrite bool) (model.Visibility, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, forWrite)
	v, ok := f.vis[owner+"/"+name]
	if !ok {
		return "", errors.New("all tokens failed")
	}
	return v, nil
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func oracle() *fakeOracle {
	return &fakeOracle{vis: map[string]model.Visibility{
		"acme/oss-lib":   model.Public,
		"acme/secret":    model.Private,
		"acme/corp-only": model.Internal,
	}}
}

func TestCheckAccessMatrix(t *testing.T) {
	tests := []struct {
		mode    Mode
		repo    string
		allowed bool
		kind    model.DenialKind
		reason  string
	}{
		{Private, "oss-lib", false, model.KindPushPublic, "push to public repository acme/oss-lib blocked in private repo mode"},
		{Private, "secret", true, "", "private repository allowed in private mode"},
		{Private, "corp-only", true, "", "internal repository allowed in private mode"},
		{Public, "oss-lib", true, "", "public repository allowed in public mode"},
		{Public, "secret", false, model.KindPushPrivate, "push to private repository acme/secret blocked in public repo mode"},
		{Public, "corp-only", false, model.KindPushPrivate, "push to internal repository acme/corp-only blocked in public repo mode"},
		{Private, "unknown", false, model.KindVisibilityUnknown, "could not determine visibility of acme/unknown: GitHub did not answer"},
		{Public, "unknown", false, model.KindVisibilityUnknown, "could not determine visibility of acme/unknown: GitHub did not answer"},
	}
	for _, tt := range tests {
		p := New(oracle(), tt.mode, quiet())
		res := p.CheckAccess(context.Background(), model.OpPush, &model.RepoInfo{Owner: "acme", Repo: tt.repo}, true)
		if res.Allowed != tt.allowed || res.Kind != tt.kind {
			t.Errorf("%s/%s: allowed=%v kind=%q, want %v %q", tt.mode, tt.repo, res.Allowed, res.Kind, tt.allowed, tt.kind)
		}
		if res.Reason != tt.reason {
			t.Errorf("%s/%s: reason = %q, want %q", tt.mode, tt.repo, res.Reason, tt.reason)
		}
	}
}

type classified struct{ limited, noAccess bool }

func (c classified) Error() string { return "lookup failed" }
func (c classified) AllRateLimited() bool { return c.limited }
func (c classified) NoneHasAccess() bool { return c.noAccess }

type errOracle struct{ err error }

func (e errOracle) Visibility(context.Context, string, string, bool) (model.Visibility, error) {
	return "", e.err
}

func TestLookupFailureIsClassified(t *testing.T) {
	tests := []struct {
		err    error
		lookup string
		reason string
	}{
		{classified{limited: true}, LookupRateLimited, "every credential is rate limited"},
		{fmt.Errorf("wrapped: %w", classified{noAccess: true}), LookupNoAccess, "no credential has access"},
		{classified{}, LookupUnavailable, "GitHub did not answer"},
		{errors.New("boom"), LookupUnavailable, "GitHub did not answer"},
	}
	for _, tt := range tests {
		p := New(errOracle{tt.err}, Private, quiet())
		res := p.CheckAccess(context.Background(), model.OpFetch, &model.RepoInfo{Owner: "acme", Repo: "x"}, false)
		if res.Allowed || res.Kind != model.KindVisibilityUnknown {
			t.Fatalf("%v: %+v", tt.err, res)
		}
		if res.Detail("lookup") != tt.lookup {
			t.Errorf("%v: lookup = %v, want %s", tt.err, res.Detail("lookup"), tt.lookup)
		}
		if !strings.HasSuffix(res.Reason, tt.reason) {
			t.Errorf("%v: reason = %q", tt.err, res.Reason)
		}
	}
}

func TestNilRepoFailsClosed(t *testing.T) {
	o := oracle()
	for _, mode := range []Mode{Private, Public} {
		p := New(o, mode, quiet())
		res := p.CheckAccess(context.Background(), model.OpExecute, nil, false)
		if res.Allowed || res.Kind != model.KindVisibilityUnknown {
			t.Errorf("%s: got allowed=%v kind=%s", mode, res.Allowed, res.Kind)
		}
	}
	if len(o.calls) != 0 {
		t.Error("oracle must not be consulted without a repository")
	}
}

func TestForWriteIsPassedThrough(t *testing.T) {
	o := oracle()
	p := New(o, Private, quiet())
	p.CheckAccess(context.Background(), model.OpFetch, &model.RepoInfo{Owner: "acme", Repo: "secret"}, false)
	p.CheckAccess(context.Background(), model.OpPush, &model.RepoInfo{Owner: "acme", Repo: "secret"}, true)
	if len(o.calls) != 2 || o.calls[0] || !o.calls[1] {
		t.Errorf("forWrite calls = %v", o.calls)
	}
}

func TestDenialKindFollowsOperation(t *testing.T) {
	p := New(oracle(), Private, quiet())
	r := &model.RepoInfo{Owner: "acme", Repo: "oss-lib"}
	if k := p.CheckAccess(context.Background(), model.OpPRComment, r, true).Kind; k != model.KindPRPublic {
		t.Errorf("pr kind = %s", k)
	}
	if k := p.CheckAccess(context.Background(), model.OpExecute, r, false).Kind; k != model.KindGHPublic {
		t.Errorf("gh kind = %s", k)
	}
}

func TestSetMode(t *testing.T) {
	p := New(oracle(), Public, quiet())
	r := &model.RepoInfo{Owner: "acme", Repo: "secret"}
	if p.CheckAccess(context.Background(), model.OpPush, r, true).Allowed {
		t.Fatal("public mode should deny private repo")
	}
	p.SetMode(Private)
	if p.Mode() != Private {
		t.Fatalf("mode = %s", p.Mode())
	}
	if !p.CheckAccess(context.Background(), model.OpPush, r, true).Allowed {
		t.Error("private mode should allow private repo")
	}
}

func TestCheckRepositoryResolves(t *testing.T) {
	p := New(oracle(), Private, quiet())
	res := p.CheckRepository(context.Background(), model.OpPush,
		repo.Inputs{URL: "git@github.com:acme/oss-lib.git"}, true)
	if res.Allowed || res.Kind != model.KindPushPublic {
		t.Errorf("got allowed=%v kind=%s", res.Allowed, res.Kind)
	}
	if res.Detail("visibility") != "public" {
		t.Errorf("visibility = %v", res.Detail("visibility"))
	}

	res = p.CheckRepository(context.Background(), model.OpPush, repo.Inputs{Repo: "not a repo"}, true)
	if res.Allowed || res.Kind != model.KindVisibilityUnknown {
		t.Errorf("unresolvable: allowed=%v kind=%s", res.Allowed, res.Kind)
	}
}

func TestParseMode(t *testing.T) {
	if m, err := ParseMode("private"); err != nil || m != Private {
		t.Errorf("ParseMode(private) = %v, %v", m, err)
	}
	if _, err := ParseMode("off"); err == nil {
		t.Error("expected error for off")
	}
	if ModeFromBool(false) != Public {
		t.Error("false should be public")
	}
}
