package fork

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/jibsandbox/jib-gateway/internal/model"
	"github.com/jibsandbox/jib-gateway/internal/repomode"
)

type fakeOracle struct {
	vis    map[string]model.Visibility
	calls  int
	writes int
}

func (f *fakeOracle) Visibility(_ context.Context, owner, repo string, forWrite bool) (model.Visibility, error) {
	f.calls++
	if forWrite {
		f.writes++
	}
	if v, ok := f.vis[owner+"/"+repo]; ok {
		return v, nil
	}
	return "", errors.New("unknown")
}

type fixedMode repomode.Mode

func (m fixedMode) Mode() repomode.Mode { return repomode.Mode(m) }

func newPolicy(mode repomode.Mode) (*Policy, *fakeOracle) {
	o := &fakeOracle{vis: map[string]model.Visibility{
		"acme/oss-lib": model.Public,
		"acme/secret":  model.Private,
	}}
	return New(o, fixedMode(mode), slog.New(slog.NewTextHandler(io.Discard, nil))), o
}

func TestForkFromPublicSourceDeniedAtSource(t *testing.T) {
	p, _ := newPolicy(repomode.Private)
	res := p.CheckFork(context.Background(), "acme", "oss-lib", "", true)
	if res.Allowed {
		t.Fatal("expected deny")
	}
	if res.Kind != model.KindForkPublicSource {
		t.Errorf("kind = %s", res.Kind)
	}
	if res.Detail("source_visibility") != "public" {
		t.Errorf("source_visibility = %v", res.Detail("source_visibility"))
	}
	if res.Detail("target_visibility") != nil {
		t.Error("target check should not have run")
	}
}

func TestForkUnknownSourceDenied(t *testing.T) {
	p, _ := newPolicy(repomode.Private)
	res := p.CheckFork(context.Background(), "acme", "missing", "", true)
	if res.Allowed || res.Kind != model.KindVisibilityUnknown {
		t.Errorf("got allowed=%v kind=%s", res.Allowed, res.Kind)
	}
	if res.Detail("lookup") != repomode.LookupUnavailable {
		t.Errorf("lookup = %v", res.Detail("lookup"))
	}
}

func TestForkSourceLookupBypassesCache(t *testing.T) {
	p, o := newPolicy(repomode.Private)
	p.CheckForkSource(context.Background(), "acme", "secret")
	if o.calls != 1 || o.writes != 1 {
		t.Errorf("calls=%d writes=%d, want a write lookup", o.calls, o.writes)
	}
}

func TestForkPublicTargetDenied(t *testing.T) {
	p, _ := newPolicy(repomode.Private)
	res := p.CheckFork(context.Background(), "acme", "secret", "jib-org", false)
	if res.Allowed || res.Kind != model.KindForkTargetPublic {
		t.Fatalf("got allowed=%v kind=%s", res.Allowed, res.Kind)
	}
	if res.Detail("source_visibility") != "private" {
		t.Errorf("source_visibility = %v", res.Detail("source_visibility"))
	}
}

func TestForkPrivateAllowed(t *testing.T) {
	p, _ := newPolicy(repomode.Private)
	res := p.CheckFork(context.Background(), "acme", "secret", "jib-org", true)
	if !res.Allowed {
		t.Fatalf("expected allow: %s", res.Reason)
	}
	if res.Detail("source_visibility") != "private" || res.Detail("target_visibility") != "private" {
		t.Errorf("details = %v", res.Details)
	}
	if res.Detail("target_org") != "jib-org" {
		t.Errorf("target_org = %v", res.Detail("target_org"))
	}
}

func TestPublicModeAllowsEverything(t *testing.T) {
	p, o := newPolicy(repomode.Public)
	res := p.CheckFork(context.Background(), "acme", "oss-lib", "", false)
	if !res.Allowed {
		t.Fatalf("expected allow: %s", res.Reason)
	}
	if o.calls != 0 {
		t.Error("public mode should not consult the oracle")
	}
}
