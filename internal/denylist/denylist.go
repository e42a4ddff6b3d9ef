// Package denylist blocks destructive gh subcommands regardless of
// ownership or visibility.
package denylist

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Rule blocks one gh subcommand path, e.g. "repo delete". Words may use
// path.Match wildcards ("secret *").
type Rule struct {
	Category Category `yaml:"category"`
	Command  string   `yaml:"command"`
	Reason   string   `yaml:"reason"`
}

// Patterns is the YAML form of extra rules.
type Patterns struct {
	Commands []Rule `yaml:"commands"`
}

// Match is a blocked command.
type Match struct {
	Rule    Rule
	Command string
}

// Denylist is safe for concurrent use.
type Denylist struct {
	mu    sync.RWMutex
	extra []Rule
}

// New creates a Denylist with DefaultRules plus extra.
func New(p Patterns) *Denylist {
	d := &Denylist{}
	d.SetExtra(p.Commands)
	return d
}

// NewDefault creates a Denylist with only DefaultRules.
func NewDefault() *Denylist {
	return New(Patterns{})
}

// Load reads extra rules from a YAML file. A missing file yields defaults.
func Load(path string) (*Denylist, error) {
	p, err := LoadPatterns(path)
	if err != nil {
		return nil, err
	}
	return New(p), nil
}

// LoadPatterns parses a denylist YAML file. A missing file is not an error.
func LoadPatterns(path string) (Patterns, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Patterns{}, nil
		}
		path = filepath.Join(home, ".jib-gateway", "denylist.yaml")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Patterns{}, nil
		}
		return Patterns{}, err
	}
	var p Patterns
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Patterns{}, fmt.Errorf("parse denylist %s: %w", path, err)
	}
	return p, nil
}

// SetExtra replaces the configured extra rules. Defaults are unaffected.
func (d *Denylist) SetExtra(rules []Rule) {
	clean := make([]Rule, 0, len(rules))
	for _, r := range rules {
		r.Command = strings.Join(strings.Fields(strings.ToLower(r.Command)), " ")
		if r.Command == "" {
			continue
		}
		if r.Category == "" {
			r.Category = CategoryCustom
		}
		if r.Reason == "" {
			r.Reason = "blocked by gateway configuration"
		}
		clean = append(clean, r)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.extra = clean
}

// Rules returns every enforced rule, defaults first.
func (d *Denylist) Rules() []Rule {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Rule, 0, len(DefaultRules)+len(d.extra))
	out = append(out, DefaultRules...)
	return append(out, d.extra...)
}

// Check reports whether gh args (without the leading "gh") are blocked.
func (d *Denylist) Check(args []string) (Match, bool) {
	words := Subcommand(args)
	if len(words) == 0 {
		return Match{}, false
	}
	if m, ok := checkAPI(words, args); ok {
		return m, true
	}
	for _, r := range d.Rules() {
		if matchWords(strings.Fields(r.Command), words) {
			return Match{Rule: r, Command: strings.Join(words, " ")}, true
		}
	}
	return Match{}, false
}

// IsBlocked is Check with a reason string.
func (d *Denylist) IsBlocked(args []string) (bool, string) {
	m, ok := d.Check(args)
	if !ok {
		return false, ""
	}
	return true, fmt.Sprintf("gh %s is blocked: %s", m.Command, m.Rule.Reason)
}

// flagsWithValue are gh global or common flags that consume the next arg.
var flagsWithValue = map[string]bool{
	"-R": true, "--repo": true,
	"-X": true, "--method": true,
	"-H": true, "--header": true,
	"-f": true, "--field": true, "-F": true, "--raw-field": true,
	"-b": true, "--body": true, "-t": true, "--title": true,
	"--hostname": true, "-q": true, "--jq": true, "--input": true,
}

// Subcommand returns the positional words of args, lowercased, skipping
// flags and their values.
func Subcommand(args []string) []string {
	var words []string
	for i := 0; i < len(args); i++ {
		a := args[i]
		if a == "--" {
			break
		}
		if strings.HasPrefix(a, "-") {
			if !strings.Contains(a, "=") && flagsWithValue[a] {
				i++
			}
			continue
		}
		words = append(words, strings.ToLower(a))
	}
	return words
}

func matchWords(rule, words []string) bool {
	if len(rule) == 0 || len(words) < len(rule) {
		return false
	}
	for i, r := range rule {
		ok, err := path.Match(r, words[i])
		if err != nil || !ok {
			return false
		}
	}
	return true
}

// checkAPI blocks "gh api" calls that reach the merge or repo delete
// endpoints directly, and GraphQL documents that name a destructive
// mutation.
func checkAPI(words, args []string) (Match, bool) {
	if words[0] != "api" || len(words) < 2 {
		return Match{}, false
	}
	endpoint := strings.Trim(words[1], "/")
	if endpoint == "graphql" {
		return checkGraphQL(args)
	}
	method := strings.ToUpper(flagValue(args, "-X", "--method"))
	if strings.HasSuffix(endpoint, "/merge") {
		return Match{
			Rule:    Rule{Category: CategoryMerge, Command: "api */merge", Reason: "merging is reserved for humans"},
			Command: "api " + endpoint,
		}, true
	}
	if method == "DELETE" && strings.HasPrefix(endpoint, "repos/") && strings.Count(endpoint, "/") == 2 {
		return Match{
			Rule:    Rule{Category: CategoryRepoDelete, Command: "api -X DELETE repos/*/*", Reason: "repository deletion is irreversible"},
			Command: "api " + endpoint,
		}, true
	}
	return Match{}, false
}

// graphqlMutations maps destructive GraphQL mutation fields to the
// category of the gh command that does the same thing.
var graphqlMutations = map[string]Category{
	"mergepullrequest":           CategoryMerge,
	"enablepullrequestautomerge": CategoryMerge,
	"mergebranch":                CategoryMerge,
	"deleterepository":           CategoryRepoDelete,
	"archiverepository":          CategoryRepoArchive,
	"deleterelease":              CategoryReleaseDelete,
	"deletereleaseasset":         CategoryReleaseDelete,
}

var graphqlName = regexp.MustCompile(`[_A-Za-z][_0-9A-Za-z]*`)

// checkGraphQL scans every field sent to the graphql endpoint. A document
// read from a file or stdin cannot be inspected and is blocked.
func checkGraphQL(args []string) (Match, bool) {
	for i, a := range args {
		if a == "--input" || strings.HasPrefix(a, "--input=") {
			return graphqlBlocked(CategoryGraphQL, "--input",
				"GraphQL documents read from a file cannot be inspected"), true
		}
		name, value, typed, ok := fieldArg(args, i)
		if !ok {
			continue
		}
		if typed && strings.HasPrefix(value, "@") {
			return graphqlBlocked(CategoryGraphQL, name+"=@",
				"GraphQL documents read from a file cannot be inspected"), true
		}
		for _, ident := range graphqlName.FindAllString(value, -1) {
			if cat, bad := graphqlMutations[strings.ToLower(ident)]; bad {
				return graphqlBlocked(cat, ident,
					fmt.Sprintf("the %s mutation is not permitted", ident)), true
			}
		}
	}
	return Match{}, false
}

// IsGraphQLQuery reports whether a "gh api graphql" call sends only
// inspectable documents with no mutation operation.
func IsGraphQLQuery(args []string) bool {
	sawQuery := false
	for i, a := range args {
		if a == "--input" || strings.HasPrefix(a, "--input=") {
			return false
		}
		name, value, typed, ok := fieldArg(args, i)
		if !ok {
			continue
		}
		if typed && strings.HasPrefix(value, "@") {
			return false
		}
		if name != "query" {
			continue
		}
		sawQuery = true
		for _, ident := range graphqlName.FindAllString(value, -1) {
			if ident == "mutation" || ident == "subscription" {
				return false
			}
		}
	}
	return sawQuery
}

func graphqlBlocked(cat Category, what, reason string) Match {
	return Match{
		Rule:    Rule{Category: cat, Command: "api graphql", Reason: reason},
		Command: "api graphql " + what,
	}
}

// fieldArg reads a -f/-F style field at args[i]. typed is true for -F and
// --field, whose "@path" values gh reads from a file.
func fieldArg(args []string, i int) (name, value string, typed, ok bool) {
	a := args[i]
	var kv string
	switch {
	case a == "-f" || a == "--raw-field" || a == "-F" || a == "--field":
		if i+1 >= len(args) {
			return "", "", false, false
		}
		kv = args[i+1]
		typed = a == "-F" || a == "--field"
	case strings.HasPrefix(a, "--raw-field="):
		kv = strings.TrimPrefix(a, "--raw-field=")
	case strings.HasPrefix(a, "--field="):
		kv, typed = strings.TrimPrefix(a, "--field="), true
	case strings.HasPrefix(a, "-F") && len(a) > 2:
		kv, typed = a[2:], true
	case strings.HasPrefix(a, "-f") && len(a) > 2:
		kv = a[2:]
	default:
		return "", "", false, false
	}
	name, value, _ = strings.Cut(kv, "=")
	return name, value, typed, true
}

func flagValue(args []string, names ...string) string {
	for i, a := range args {
		for _, n := range names {
			if a == n && i+1 < len(args) {
				return args[i+1]
			}
			if strings.HasPrefix(a, n+"=") {
				return strings.TrimPrefix(a, n+"=")
			}
		}
	}
	return ""
}

// ToMap returns the enforced rules for display.
func (d *Denylist) ToMap() map[string]any {
	rules := d.Rules()
	out := make([]map[string]string, 0, len(rules))
	for _, r := range rules {
		out = append(out, map[string]string{
			"category": string(r.Category),
			"command":  r.Command,
			"reason":   r.Reason,
		})
	}
	return map[string]any{"commands": out}
}
