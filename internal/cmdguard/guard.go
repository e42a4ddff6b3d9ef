// Package cmdguard runs git and gh on behalf of sandboxed agents, with the
// gateway's credentials injected and destructive gh commands refused.
package cmdguard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/jibsandbox/jib-gateway/internal/denylist"
)

const (
	// DefaultPushTimeout bounds git push.
	DefaultPushTimeout = 120 * time.Second
	// DefaultExecTimeout bounds gh commands and other git calls.
	DefaultExecTimeout = 60 * time.Second
	// DefaultMaxOutput caps captured stdout and stderr each.
	DefaultMaxOutput = 1 << 20
)

// TokenFunc returns the credential injected into subprocesses.
type TokenFunc func() (string, error)

// Config holds executor configuration. Zero values select defaults.
type Config struct {
	GHPath      string
	GitPath     string
	Token       TokenFunc
	Denylist    *denylist.Denylist
	PushTimeout time.Duration
	ExecTimeout time.Duration
	MaxOutput   int
}

// Result captures subprocess execution outcome. Output is redacted.
type Result struct {
	Stdout   string        `json:"stdout"`
	Stderr   string        `json:"stderr"`
	ExitCode int           `json:"exit_code"`
	Duration time.Duration `json:"duration"`
	Redacted int           `json:"redacted,omitempty"`
}

// Success reports a zero exit code.
func (r *Result) Success() bool { return r != nil && r.ExitCode == 0 }

// BlockedError is returned when the denylist refuses a gh command.
type BlockedError struct {
	Command  string
	Category denylist.Category
	Reason   string
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("command blocked (%s): %s", e.Category, e.Reason)
}

// ErrTimeout wraps subprocesses killed by their deadline.
var ErrTimeout = errors.New("command timed out")

// Guard executes commands. It holds no per-call state and is safe for
// concurrent use.
type Guard struct {
	cfg Config
}

// NewGuard creates a Guard.
func NewGuard(cfg Config) *Guard {
	if cfg.GHPath == "" {
		cfg.GHPath = "gh"
	}
	if cfg.GitPath == "" {
		cfg.GitPath = "git"
	}
	if cfg.Denylist == nil {
		cfg.Denylist = denylist.NewDefault()
	}
	if cfg.PushTimeout <= 0 {
		cfg.PushTimeout = DefaultPushTimeout
	}
	if cfg.ExecTimeout <= 0 {
		cfg.ExecTimeout = DefaultExecTimeout
	}
	if cfg.MaxOutput <= 0 {
		cfg.MaxOutput = DefaultMaxOutput
	}
	return &Guard{cfg: cfg}
}

// Denylist returns the gh denylist in force.
func (g *Guard) Denylist() *denylist.Denylist { return g.cfg.Denylist }

// CheckGH reports whether gh args would be refused, without running them.
func (g *Guard) CheckGH(args []string) error {
	if m, blocked := g.cfg.Denylist.Check(args); blocked {
		return &BlockedError{
			Command:  "gh " + strings.Join(args, " "),
			Category: m.Rule.Category,
			Reason:   m.Rule.Reason,
		}
	}
	return nil
}

// ghGitEnv disables hooks and fsmonitor for any git that gh spawns.
var ghGitEnv = []string{
	"GIT_CONFIG_COUNT=2",
	"GIT_CONFIG_KEY_0=core.hooksPath", "GIT_CONFIG_VALUE_0=/dev/null",
	"GIT_CONFIG_KEY_1=core.fsmonitor", "GIT_CONFIG_VALUE_1=false",
}

// GH runs gh with args in dir after the denylist check. gh receives the
// token as GH_TOKEN.
func (g *Guard) GH(ctx context.Context, dir string, args []string) (*Result, error) {
	if err := g.CheckGH(args); err != nil {
		return nil, err
	}
	return g.Run(ctx, g.cfg.GHPath, args, RunOptions{
		Dir:         dir,
		Timeout:     g.cfg.ExecTimeout,
		Env:         ghGitEnv,
		InjectToken: true,
	})
}

// Push runs git push from dir to spec.URL. The token travels only in the
// HTTP header; hooks, system and global config are disabled and credential
// variables are stripped from git's environment.
func (g *Guard) Push(ctx context.Context, dir string, spec PushSpec) (*Result, error) {
	if spec.URL == "" {
		return nil, errors.New("push URL is required")
	}
	token, err := g.token()
	if err != nil {
		return nil, err
	}
	args := PushArgs(token, spec)
	return g.Run(ctx, g.cfg.GitPath, args, RunOptions{Dir: dir, Timeout: g.cfg.PushTimeout, Git: true})
}

// RunOptions tune one Run call.
type RunOptions struct {
	Dir     string
	Timeout time.Duration
	Stdin   io.Reader
	Env     []string
	// InjectToken sets GH_TOKEN and GITHUB_TOKEN for the child.
	InjectToken bool
	// Git strips credential variables and disables system and global config.
	Git bool
}

// Run executes name with args. A non-zero exit is reported in Result, not
// as an error.
func (g *Guard) Run(ctx context.Context, name string, args []string, opts RunOptions) (*Result, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = g.cfg.ExecTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	env := os.Environ()
	if opts.Git {
		env = gitEnv(env)
	}
	env = append(env, "GH_PROMPT_DISABLED=1", "GIT_TERMINAL_PROMPT=0")
	if opts.InjectToken && g.cfg.Token != nil {
		token, err := g.token()
		if err != nil {
			return nil, err
		}
		env = append(env, "GH_TOKEN="+token, "GITHUB_TOKEN="+token)
	}
	env = append(env, opts.Env...)

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = opts.Dir
	cmd.Env = env
	stdout := newLimitedWriter(g.cfg.MaxOutput)
	stderr := newLimitedWriter(g.cfg.MaxOutput)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	if opts.Stdin != nil {
		cmd.Stdin = opts.Stdin
	}

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	if ctx.Err() == context.DeadlineExceeded {
		return nil, fmt.Errorf("%s after %s: %w", Describe(name, args), timeout, ErrTimeout)
	}

	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, fmt.Errorf("run %s: %w", name, err)
		}
		exitCode = exitErr.ExitCode()
	}

	out, n1 := ScrubOutput(stdout.String())
	errOut, n2 := ScrubOutput(stderr.String())
	return &Result{
		Stdout:   out,
		Stderr:   errOut,
		ExitCode: exitCode,
		Duration: elapsed,
		Redacted: n1 + n2,
	}, nil
}

func (g *Guard) token() (string, error) {
	if g.cfg.Token == nil {
		return "", errors.New("no GitHub token configured")
	}
	token, err := g.cfg.Token()
	if err != nil {
		return "", fmt.Errorf("load GitHub token: %w", err)
	}
	return token, nil
}
