package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jibsandbox/jib-gateway/internal/client"
	"github.com/jibsandbox/jib-gateway/internal/scenario"
)

func init() {
	checkCmd.AddCommand(checkScenarioCmd)
}

var checkScenarioCmd = &cobra.Command{
	Use:   "scenario <file.yaml>...",
	Short: "Run policy expectations from scenario files",
	Long: "Each scenario file lists dry-run checks and the decision expected for\n" +
		"each. Useful as a regression suite after changing repo mode or ownership\n" +
		"settings.\n\n" +
		"Exit code 0 if every case passes, 1 otherwise.",
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, closeFn, err := openChecker()
		if err != nil {
			return err
		}
		defer closeFn()

		ctx, cancel := context.WithTimeout(cmd.Context(), client.DefaultTimeout)
		defer cancel()

		var results []*scenario.RunResult
		failed := false
		for _, path := range args {
			r, err := scenario.LoadAndRun(ctx, path, c)
			if err != nil {
				return err
			}
			failed = failed || r.Failed > 0
			results = append(results, r)
		}

		out := cmd.OutOrStdout()
		if checkFormat == "json" {
			s, err := scenario.FormatJSON(results)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, s)
		} else {
			fmt.Fprint(out, scenario.FormatText(results))
		}
		if failed {
			return errDenied
		}
		return nil
	},
}
