package denial

import (
	"strings"
	"testing"

	"github.com/jibsandbox/jib-gateway/internal/model"
)

func TestFormatEveryKnownKind(t *testing.T) {
	for _, k := range model.Kinds {
		d := Format(k, model.OpPush, "acme/widgets")
		if d.Reason != k {
			t.Errorf("%s: reason = %s", k, d.Reason)
		}
		if d.Message == "" || len(d.Hints) == 0 {
			t.Errorf("%s: empty message or hints", k)
		}
	}
}

func TestFormatNamesRepository(t *testing.T) {
	d := Format(model.KindPushPublic, model.OpPush, "acme/oss-lib")
	if !strings.Contains(d.Message, "acme/oss-lib") {
		t.Errorf("message %q does not name repository", d.Message)
	}
	d = Format(model.KindVisibilityUnknown, model.OpPRComment, "")
	if !strings.Contains(d.Message, "pr_comment") || !strings.Contains(d.Message, "the target repository") {
		t.Errorf("message = %q", d.Message)
	}
}

func TestFormatUnknownKindFallsBack(t *testing.T) {
	d := Format("panic: nil map", model.OpExecute, "acme/widgets")
	if d.Reason != model.KindPolicyViolation {
		t.Errorf("reason = %s", d.Reason)
	}
	if strings.Contains(d.Message, "nil map") {
		t.Error("internal error text leaked into message")
	}
}

func TestHintsAreCategorySpecific(t *testing.T) {
	vis := Format(model.KindVisibilityUnknown, model.OpPush, "r")
	if !strings.Contains(strings.Join(vis.Hints, " "), "token") {
		t.Errorf("visibility hints should mention tokens: %v", vis.Hints)
	}
	fork := Format(model.KindForkTargetPublic, model.OpFork, "r")
	if !strings.Contains(strings.Join(fork.Hints, " "), "--private") {
		t.Errorf("fork hints should mention --private: %v", fork.Hints)
	}
	pub := Format(model.KindGHPublic, model.OpExecute, "r")
	if !strings.Contains(strings.Join(pub.Hints, " "), "owner") {
		t.Errorf("public hints should mention the owner: %v", pub.Hints)
	}
}

func TestFromResult(t *testing.T) {
	res := model.Denied(model.KindBranchNotOwned, "branch \"main\" is not owned", nil)
	d := FromResult(res, model.OpPush, "acme/widgets")
	if d.Hints[0] != res.Reason {
		t.Errorf("first hint = %q", d.Hints[0])
	}
	if len(hintsBranch) != 2 {
		t.Error("FromResult mutated the shared hint list")
	}
}

func TestLookupHints(t *testing.T) {
	tests := []struct {
		lookup string
		want   []string
	}{
		{"rate_limited", hintsRateLimited},
		{"no_access", hintsNoAccess},
		{"unavailable", hintsVisibility},
	}
	for _, tt := range tests {
		res := model.Denied(model.KindVisibilityUnknown, "could not determine visibility of acme/widgets",
			map[string]any{"lookup": tt.lookup})
		d := FromResult(res, model.OpPush, "acme/widgets")
		if len(d.Hints) != len(tt.want)+1 || d.Hints[1] != tt.want[0] {
			t.Errorf("%s: hints = %v", tt.lookup, d.Hints)
		}
	}
}

func TestKindForOperation(t *testing.T) {
	tests := []struct {
		op   model.Operation
		vis  model.Visibility
		want model.DenialKind
	}{
		{model.OpPush, model.Public, model.KindPushPublic},
		{model.OpPush, model.Private, model.KindPushPrivate},
		{model.OpPush, model.Internal, model.KindPushPrivate},
		{model.OpPRComment, model.Public, model.KindPRPublic},
		{model.OpPRCreate, model.Private, model.KindPRPrivate},
		{model.OpFetch, model.Public, model.KindFetchPublic},
		{model.OpExecute, model.Private, model.KindGHPrivate},
		{model.OpFork, model.Public, model.KindForkPublicSource},
		{model.OpPush, "", model.KindVisibilityUnknown},
	}
	for _, tt := range tests {
		if got := KindForOperation(tt.op, tt.vis); got != tt.want {
			t.Errorf("KindForOperation(%s, %q) = %s, want %s", tt.op, tt.vis, got, tt.want)
		}
	}
}
