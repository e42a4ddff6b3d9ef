package scenario

// Check names the dry-run question a case asks.
type Check string

const (
	CheckAccess Check = "access"
	CheckBranch Check = "branch"
	CheckPR     Check = "pr"
	CheckFork   Check = "fork"
)

// Case is one expected policy decision.
type Case struct {
	Check   Check  `yaml:"check"`
	Repo    string `yaml:"repo"`
	Op      string `yaml:"op,omitempty"`
	Write   bool   `yaml:"write,omitempty"`
	Branch  string `yaml:"branch,omitempty"`
	PR      int    `yaml:"pr,omitempty"`
	Org     string `yaml:"org,omitempty"`
	Private bool   `yaml:"private,omitempty"`
	Expect  string `yaml:"expect"`
	// Kind, when set, must equal the denial kind.
	Kind string `yaml:"kind,omitempty"`
}

// Scenario is a named collection of policy expectations.
type Scenario struct {
	Name  string `yaml:"name"`
	Cases []Case `yaml:"cases"`
}

// CaseResult is the outcome of evaluating one case.
type CaseResult struct {
	Index    int    `json:"index"`
	Passed   bool   `json:"passed"`
	Check    Check  `json:"check"`
	Repo     string `json:"repo"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
	Kind     string `json:"kind,omitempty"`
	Reason   string `json:"reason"`
}

// RunResult is the outcome of running all cases in one scenario file.
type RunResult struct {
	File   string       `json:"file"`
	Name   string       `json:"name"`
	Total  int          `json:"total"`
	Passed int          `json:"passed"`
	Failed int          `json:"failed"`
	Cases  []CaseResult `json:"cases"`
}
