package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	gatewayv1 "github.com/jibsandbox/jib-gateway/api/gateway/v1"
	"github.com/jibsandbox/jib-gateway/internal/auth"
	"github.com/jibsandbox/jib-gateway/internal/client"
	"github.com/jibsandbox/jib-gateway/internal/gateway"
	"github.com/jibsandbox/jib-gateway/internal/model"
)

// errDenied makes the process exit 1 without printing an error line.
var errDenied = errors.New("denied")

var (
	checkServer   string
	checkFormat   string
	checkAccessOp string
	checkPROp     string
	checkWrite    bool
	checkOrg      string
	checkPrivate  bool
)

func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.PersistentFlags().StringVar(&checkServer, "server", "", "gRPC address of a running gateway (default: evaluate locally)")
	checkCmd.PersistentFlags().StringVarP(&checkFormat, "format", "f", "text", "Output format (text|json)")

	checkCmd.AddCommand(checkAccessCmd, checkBranchCmd, checkPRCmd, checkForkCmd, checkVisibilityCmd)
	checkAccessCmd.Flags().StringVar(&checkAccessOp, "op", string(model.OpExecute), "Operation name")
	checkAccessCmd.Flags().BoolVar(&checkWrite, "write", false, "Treat the access as a write")
	checkPRCmd.Flags().StringVar(&checkPROp, "op", string(model.OpPRComment), "PR operation (pr_comment|pr_edit|pr_close|pr_merge)")
	checkForkCmd.Flags().StringVar(&checkOrg, "org", "", "Organization the fork is created in")
	checkForkCmd.Flags().BoolVar(&checkPrivate, "private", false, "Request a private fork")
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Dry-run policy decisions",
	Long: "Evaluates a policy decision without running anything. With --server the\n" +
		"question goes to a running gateway over gRPC; otherwise the config is\n" +
		"loaded and the decision is made in-process.\n\n" +
		"Exit code 0 if allowed, 1 if denied.",
}

var checkAccessCmd = &cobra.Command{
	Use:   "access <owner/repo>",
	Short: "Check repo mode for an operation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		op, err := parseOpFlag(checkAccessOp)
		if err != nil {
			return err
		}
		return runCheck(cmd, func(ctx context.Context, c checker) (gatewayv1.Decision, error) {
			return c.CheckAccess(ctx, args[0], op, checkWrite)
		})
	},
}

var checkBranchCmd = &cobra.Command{
	Use:   "branch <owner/repo> <branch>",
	Short: "Check whether the agent may push to a branch",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCheck(cmd, func(ctx context.Context, c checker) (gatewayv1.Decision, error) {
			return c.CheckBranch(ctx, args[0], args[1])
		})
	},
}

var checkPRCmd = &cobra.Command{
	Use:   "pr <owner/repo> <number>",
	Short: "Check whether the agent may mutate a pull request",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		op, err := parseOpFlag(checkPROp)
		if err != nil {
			return err
		}
		number, err := strconv.Atoi(args[1])
		if err != nil || number <= 0 {
			return fmt.Errorf("invalid PR number %q", args[1])
		}
		return runCheck(cmd, func(ctx context.Context, c checker) (gatewayv1.Decision, error) {
			return c.CheckPullRequest(ctx, args[0], op, number)
		})
	},
}

var checkForkCmd = &cobra.Command{
	Use:   "fork <owner/repo>",
	Short: "Check whether a repository may be forked",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCheck(cmd, func(ctx context.Context, c checker) (gatewayv1.Decision, error) {
			return c.CheckFork(ctx, args[0], checkOrg, checkPrivate)
		})
	},
}

var checkVisibilityCmd = &cobra.Command{
	Use:   "visibility <owner/repo>",
	Short: "Look up a repository's visibility",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, closeFn, err := openChecker()
		if err != nil {
			return err
		}
		defer closeFn()
		ctx, cancel := context.WithTimeout(cmd.Context(), client.DefaultTimeout)
		defer cancel()
		resp, err := c.Visibility(ctx, args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if checkFormat == "json" {
			return writeJSON(out, resp)
		}
		if resp.Error != "" {
			fmt.Fprintf(out, "%s: unknown (%s)\n", resp.Repository, resp.Error)
			return errDenied
		}
		fmt.Fprintf(out, "%s: %s\n", resp.Repository, resp.Visibility)
		return nil
	},
}

// checker answers dry-run questions, locally or over gRPC.
type checker interface {
	CheckAccess(ctx context.Context, repository string, op model.Operation, forWrite bool) (gatewayv1.Decision, error)
	CheckBranch(ctx context.Context, repository, branch string) (gatewayv1.Decision, error)
	CheckPullRequest(ctx context.Context, repository string, op model.Operation, number int) (gatewayv1.Decision, error)
	CheckFork(ctx context.Context, repository, org string, private bool) (gatewayv1.Decision, error)
	Visibility(ctx context.Context, repository string) (gatewayv1.VisibilityResponse, error)
}

func parseOpFlag(name string) (model.Operation, error) {
	op, ok := model.ParseOperation(name)
	if !ok {
		return "", fmt.Errorf("unknown operation %q", name)
	}
	return op, nil
}

func runCheck(cmd *cobra.Command, ask func(context.Context, checker) (gatewayv1.Decision, error)) error {
	c, closeFn, err := openChecker()
	if err != nil {
		return err
	}
	defer closeFn()

	ctx, cancel := context.WithTimeout(cmd.Context(), client.DefaultTimeout)
	defer cancel()
	d, err := ask(ctx, c)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if checkFormat == "json" {
		if err := writeJSON(out, d); err != nil {
			return err
		}
	} else {
		fmt.Fprint(out, formatDecision(d))
	}
	if !d.Allowed {
		return errDenied
	}
	return nil
}

func openChecker() (checker, func(), error) {
	cfg, _, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	if checkServer != "" {
		secret := cfg.Secret.Value
		if secret == "" {
			if secret, err = auth.LoadSecret(cfg.Secret.File); err != nil {
				return nil, nil, err
			}
		}
		c, err := client.New(checkServer, secret)
		if err != nil {
			return nil, nil, err
		}
		return c, func() { c.Close() }, nil
	}

	rt, err := gateway.Build(cfg, gateway.BuildOptions{Logger: newLogger(cfg.LogLevel)})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build gateway: %w", err)
	}
	return localChecker{gw: rt.Gateway}, func() { rt.Close() }, nil
}

// localChecker evaluates checks in-process.
type localChecker struct {
	gw *gateway.Gateway
}

func (l localChecker) CheckAccess(ctx context.Context, repository string, op model.Operation, forWrite bool) (gatewayv1.Decision, error) {
	return toDecision(l.gw.CheckAccess(ctx, op, repository, forWrite)), nil
}

func (l localChecker) CheckBranch(ctx context.Context, repository, branch string) (gatewayv1.Decision, error) {
	return toDecision(l.gw.CheckBranch(ctx, repository, branch)), nil
}

func (l localChecker) CheckPullRequest(ctx context.Context, repository string, op model.Operation, number int) (gatewayv1.Decision, error) {
	return toDecision(l.gw.CheckPullRequest(ctx, op, repository, number)), nil
}

func (l localChecker) CheckFork(ctx context.Context, repository, org string, private bool) (gatewayv1.Decision, error) {
	return toDecision(l.gw.CheckFork(ctx, repository, org, private)), nil
}

func (l localChecker) Visibility(ctx context.Context, repository string) (gatewayv1.VisibilityResponse, error) {
	info, vis, err := l.gw.VisibilityOf(ctx, repository)
	if errors.Is(err, gateway.ErrBadRequest) {
		return gatewayv1.VisibilityResponse{}, err
	}
	resp := gatewayv1.VisibilityResponse{Repository: info.FullName(), Visibility: string(vis)}
	if err != nil {
		resp.Error = err.Error()
	}
	return resp, nil
}

func toDecision(o *gateway.Outcome) gatewayv1.Decision {
	d := gatewayv1.Decision{
		Allowed:    o.Result.Allowed,
		Kind:       string(o.Result.Kind),
		Reason:     o.Result.Reason,
		Details:    o.Result.Details,
		Operation:  string(o.Operation),
		Repository: o.Repository,
		RequestID:  o.RequestID,
	}
	if o.Denial != nil {
		d.Message = o.Denial.Message
		d.Hints = o.Denial.Hints
	}
	return d
}

func formatDecision(d gatewayv1.Decision) string {
	var b strings.Builder
	if d.Allowed {
		fmt.Fprintf(&b, "ALLOW %s %s: %s\n", d.Operation, d.Repository, d.Reason)
		return b.String()
	}
	fmt.Fprintf(&b, "DENY  %s %s [%s]: %s\n", d.Operation, d.Repository, d.Kind, d.Reason)
	if d.Message != "" {
		fmt.Fprintf(&b, "  %s\n", d.Message)
	}
	for _, h := range d.Hints {
		fmt.Fprintf(&b, "  - %s\n", h)
	}
	return b.String()
}

func writeJSON(w io.Writer, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}
