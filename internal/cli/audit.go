package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jibsandbox/jib-gateway/internal/audit"
)

var (
	tailLines      int
	queryRepo      string
	queryOp        string
	queryDecision  string
	queryRequestID string
	querySince     time.Duration
	queryLimit     int
	queryFormat    string
	queryIndex     bool
	indexDB        string
)

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditVerifyCmd, auditTailCmd, auditQueryCmd, auditIndexCmd)
	auditTailCmd.Flags().IntVarP(&tailLines, "lines", "n", 10, "Number of recent entries to show")
	auditQueryCmd.Flags().StringVar(&queryRepo, "repo", "", "Filter by repository (owner/repo)")
	auditQueryCmd.Flags().StringVar(&queryOp, "op", "", "Filter by operation")
	auditQueryCmd.Flags().StringVar(&queryDecision, "decision", "", "Filter by decision (allow|deny)")
	auditQueryCmd.Flags().StringVar(&queryRequestID, "request-id", "", "Filter by request ID")
	auditQueryCmd.Flags().DurationVar(&querySince, "since", 0, "Only entries newer than this (e.g. 1h)")
	auditQueryCmd.Flags().IntVar(&queryLimit, "limit", 0, "Keep only the last N matches")
	auditQueryCmd.Flags().StringVarP(&queryFormat, "format", "f", "text", "Output format (text|json)")
	auditQueryCmd.Flags().BoolVar(&queryIndex, "index", false, "Sync and query the SQLite index instead of scanning the log")
	auditCmd.PersistentFlags().StringVar(&indexDB, "db", "", "SQLite index path (default <log>.db)")
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Audit log operations",
	Long: "Commands for verifying and inspecting the hash-chained audit log.\n" +
		"The path defaults to audit_log from the config.",
}

var auditVerifyCmd = &cobra.Command{
	Use:   "verify [path]",
	Short: "Verify hash chain integrity of an audit log",
	Long:  "Walks the JSONL audit log and validates that every entry's prev_hash\nmatches the SHA-256 of the previous entry. Exits 0 if valid, 1 if tampered.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runAuditVerify,
}

var auditTailCmd = &cobra.Command{
	Use:   "tail [path]",
	Short: "Show recent audit log entries",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runAuditTail,
}

var auditQueryCmd = &cobra.Command{
	Use:   "query [path]",
	Short: "Filter audit log entries",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runAuditQuery,
}

var auditIndexCmd = &cobra.Command{
	Use:   "index [path]",
	Short: "Build or extend the SQLite index of an audit log",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runAuditIndex,
}

func auditPath(args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	cfg, _, err := loadConfig()
	if err != nil {
		return "", err
	}
	if cfg.AuditLog == "" {
		return "", fmt.Errorf("no audit log path given and audit_log is not configured")
	}
	return cfg.AuditLog, nil
}

func runAuditVerify(cmd *cobra.Command, args []string) error {
	path, err := auditPath(args)
	if err != nil {
		return err
	}
	result := audit.Verify(path)
	if result.Valid {
		fmt.Fprintf(cmd.OutOrStdout(), "OK: %d entries verified\n", result.Lines)
		return nil
	}
	fmt.Fprintf(os.Stderr, "FAILED at line %d: %s\n", result.ErrorLine, result.Error)
	return errDenied
}

func runAuditTail(cmd *cobra.Command, args []string) error {
	path, err := auditPath(args)
	if err != nil {
		return err
	}
	res, err := audit.Query(path, audit.Filter{Limit: tailLines})
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), audit.FormatTimeline(res))
	return nil
}

func runAuditQuery(cmd *cobra.Command, args []string) error {
	path, err := auditPath(args)
	if err != nil {
		return err
	}
	f := audit.Filter{
		Repository: queryRepo,
		Operation:  queryOp,
		Decision:   queryDecision,
		RequestID:  queryRequestID,
		Limit:      queryLimit,
	}
	if querySince > 0 {
		f.From = time.Now().UTC().Add(-querySince)
	}
	var res *audit.Result
	if queryIndex {
		res, err = queryViaIndex(cmd, path, f)
	} else {
		res, err = audit.Query(path, f)
	}
	if err != nil {
		return err
	}
	if queryFormat == "json" {
		out, err := audit.FormatJSON(res)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), out)
		return nil
	}
	fmt.Fprint(cmd.OutOrStdout(), audit.FormatTimeline(res))
	return nil
}

func indexPath(logPath string) string {
	if indexDB != "" {
		return indexDB
	}
	return logPath + ".db"
}

func runAuditIndex(cmd *cobra.Command, args []string) error {
	path, err := auditPath(args)
	if err != nil {
		return err
	}
	x, err := audit.OpenIndex(indexPath(path))
	if err != nil {
		return err
	}
	defer x.Close()
	n, err := x.Sync(cmd.Context(), path)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d new entries into %s\n", n, indexPath(path))
	return nil
}

func queryViaIndex(cmd *cobra.Command, path string, f audit.Filter) (*audit.Result, error) {
	x, err := audit.OpenIndex(indexPath(path))
	if err != nil {
		return nil, err
	}
	defer x.Close()
	if _, err := x.Sync(cmd.Context(), path); err != nil {
		return nil, err
	}
	return x.Query(cmd.Context(), f)
}
