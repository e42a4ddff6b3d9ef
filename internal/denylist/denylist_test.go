package denylist

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultBlocks(t *testing.T) {
	dl := NewDefault()
	tests := []struct {
		args []string
		cat  Category
	}{
		{[]string{"pr", "merge", "42"}, CategoryMerge},
		{[]string{"pr", "merge", "--squash", "-R", "acme/widgets", "42"}, CategoryMerge},
		{[]string{"-R", "acme/widgets", "pr", "merge", "42"}, CategoryMerge},
		{[]string{"repo", "delete", "acme/widgets", "--yes"}, CategoryRepoDelete},
		{[]string{"repo", "archive", "acme/widgets"}, CategoryRepoArchive},
		{[]string{"release", "delete", "v1.0.0"}, CategoryReleaseDelete},
		{[]string{"auth", "login"}, CategoryAuthLogin},
		{[]string{"auth", "logout"}, CategoryAuthLogout},
		{[]string{"config", "set", "editor", "vim"}, CategoryConfigSet},
		{[]string{"PR", "Merge", "1"}, CategoryMerge},
		{[]string{"api", "repos/acme/widgets/pulls/1/merge", "-X", "PUT"}, CategoryMerge},
		{[]string{"api", "-X", "DELETE", "repos/acme/widgets"}, CategoryRepoDelete},
		{[]string{"alias", "set", "m", "pr merge"}, CategoryAlias},
		{[]string{"alias", "import", "aliases.yml"}, CategoryAlias},
		{[]string{"extension", "install", "owner/gh-merge"}, CategoryExtension},
		{[]string{"ext", "exec", "merge"}, CategoryExtension},
		{[]string{"extensions", "upgrade", "--all"}, CategoryExtension},
		{[]string{"extension", "create", "gh-x"}, CategoryExtension},
	}
	for _, tt := range tests {
		m, ok := dl.Check(tt.args)
		if !ok {
			t.Errorf("%v: expected blocked", tt.args)
			continue
		}
		if m.Rule.Category != tt.cat {
			t.Errorf("%v: category = %s, want %s", tt.args, m.Rule.Category, tt.cat)
		}
	}
}

func TestSafeCommandsAllowed(t *testing.T) {
	dl := NewDefault()
	for _, args := range [][]string{
		{"pr", "view", "42"},
		{"pr", "list", "--state", "open"},
		{"repo", "view", "acme/widgets"},
		{"release", "list"},
		{"auth", "status"},
		{"config", "get", "editor"},
		{"api", "repos/acme/widgets"},
		{"pr", "create", "--title", "merge the thing"},
		{"alias", "list"},
		{"extension", "list"},
		{"api", "graphql", "-f", "query=query { viewer { login } }"},
		{"api", "graphql", "-F", "owner=acme", "-f", "query=query($owner: String!) { organization(login: $owner) { name } }"},
		{},
	} {
		if blocked, reason := dl.IsBlocked(args); blocked {
			t.Errorf("%v: unexpected block (%s)", args, reason)
		}
	}
}

func TestGraphQLMutations(t *testing.T) {
	dl := NewDefault()
	tests := []struct {
		args []string
		cat  Category
	}{
		{[]string{"api", "graphql", "-f", "query=mutation { mergePullRequest(input: {pullRequestId: \"PR_1\"}) { clientMutationId } }"}, CategoryMerge},
		{[]string{"api", "graphql", "--raw-field=query=mutation{m:enablePullRequestAutoMerge(input:{pullRequestId:\"PR_1\"}){clientMutationId}}"}, CategoryMerge},
		{[]string{"api", "/graphql", "-F", "query=mutation { deleteRepository(input: {repositoryId: \"R_1\"}) { clientMutationId } }"}, CategoryRepoDelete},
		{[]string{"api", "graphql", "-f", "query=mutation { archiveRepository(input: {repositoryId: \"R_1\"}) { clientMutationId } }"}, CategoryRepoArchive},
		{[]string{"api", "graphql", "-fquery=mutation{deleteRelease(input:{releaseId:\"RE_1\"}){clientMutationId}}"}, CategoryReleaseDelete},
		{[]string{"api", "graphql", "-f", "query=mutation { MergeBranch(input: {}) { clientMutationId } }"}, CategoryMerge},
		{[]string{"api", "graphql", "-F", "query=@mutation.graphql"}, CategoryGraphQL},
		{[]string{"api", "graphql", "--field=query=@-"}, CategoryGraphQL},
		{[]string{"api", "graphql", "--input", "body.json"}, CategoryGraphQL},
	}
	for _, tt := range tests {
		m, ok := dl.Check(tt.args)
		if !ok {
			t.Errorf("%v: expected blocked", tt.args)
			continue
		}
		if m.Rule.Category != tt.cat {
			t.Errorf("%v: category = %s, want %s", tt.args, m.Rule.Category, tt.cat)
		}
	}

	// A raw field is sent as a literal string, never read from a file.
	if _, ok := dl.Check([]string{"api", "graphql", "-f", "query=query { viewer { login } }", "-f", "note=@home"}); ok {
		t.Error("raw @ field blocked")
	}
}

func TestExtraRules(t *testing.T) {
	path := filepath.Join(t.TempDir(), "denylist.yaml")
	data := []byte(`commands:
  - command: "secret *"
    reason: "secrets are managed out of band"
  - command: "  Workflow   Disable "
`)
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatal(err)
	}
	dl, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	m, ok := dl.Check([]string{"secret", "set", "TOKEN"})
	if !ok || m.Rule.Category != CategoryCustom {
		t.Errorf("secret set: ok=%v rule=%+v", ok, m.Rule)
	}
	if _, ok := dl.Check([]string{"workflow", "disable", "ci.yml"}); !ok {
		t.Error("workflow disable should be blocked")
	}
	// Defaults survive extras.
	if _, ok := dl.Check([]string{"pr", "merge", "1"}); !ok {
		t.Error("default rule lost")
	}
	if got := len(dl.Rules()); got != len(DefaultRules)+2 {
		t.Errorf("rules = %d", got)
	}
}

func TestLoadMissingFile(t *testing.T) {
	dl, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if len(dl.Rules()) != len(DefaultRules) {
		t.Error("expected defaults only")
	}
}

func TestSubcommand(t *testing.T) {
	got := Subcommand([]string{"--repo", "a/b", "issue", "--json=title", "list", "--", "merge"})
	if len(got) != 2 || got[0] != "issue" || got[1] != "list" {
		t.Errorf("Subcommand = %v", got)
	}
}

func FuzzCheck(f *testing.F) {
	dl := NewDefault()
	for _, s := range []string{"pr merge 1", "api -X DELETE repos/a/b", "repo view", "-R"} {
		f.Add(s)
	}
	f.Fuzz(func(t *testing.T, s string) {
		dl.Check(strings.Fields(s))
	})
}
