package model

import "testing"

func TestParseVisibility(t *testing.T) {
	tests := []struct {
		in      string
		want    Visibility
		wantErr bool
	}{
		{"public", Public, false},
		{"PRIVATE", Private, false},
		{" internal ", Internal, false},
		{"secret", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ParseVisibility(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseVisibility(%q) err=%v, wantErr=%v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseVisibility(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestIsPrivateClass(t *testing.T) {
	if Public.IsPrivateClass() {
		t.Error("public must not be private-class")
	}
	if !Private.IsPrivateClass() || !Internal.IsPrivateClass() {
		t.Error("private and internal must be private-class")
	}
}

func TestRepoInfoKeyIsCaseInsensitive(t *testing.T) {
	a := RepoInfo{Owner: "Acme", Repo: "Widgets"}
	b := RepoInfo{Owner: "acme", Repo: "WIDGETS"}
	if a.Key() != b.Key() {
		t.Errorf("expected equal keys, got %q and %q", a.Key(), b.Key())
	}
	if a.FullName() != "Acme/Widgets" {
		t.Errorf("FullName preserves case, got %q", a.FullName())
	}
}

func TestPolicyResultDecision(t *testing.T) {
	if Allowed("ok", nil).Decision() != Allow {
		t.Error("expected allow")
	}
	r := Denied(KindMergeBlocked, "no", nil)
	if r.Decision() != Deny {
		t.Error("expected deny")
	}
	if r.Details == nil {
		t.Error("expected non-nil details map")
	}
	if r.Detail("missing") != nil {
		t.Error("expected nil for missing detail")
	}
}

func TestDenialKindKnown(t *testing.T) {
	for _, k := range Kinds {
		if !k.Known() {
			t.Errorf("%q should be known", k)
		}
	}
	if DenialKind("nope").Known() {
		t.Error("unexpected known kind")
	}
}

func TestParseOperation(t *testing.T) {
	for _, op := range Operations {
		if got, ok := ParseOperation(string(op)); !ok || got != op {
			t.Errorf("ParseOperation(%q) = %q, %v", op, got, ok)
		}
	}
	if _, ok := ParseOperation("delete_everything"); ok {
		t.Error("unknown operation accepted")
	}
	if OpFetch.IsWrite() || !OpPush.IsWrite() {
		t.Error("IsWrite mismatch")
	}
	if OpPRClose.Family() != "pr" || OpExecute.Family() != "gh" {
		t.Error("Family mismatch")
	}
}
