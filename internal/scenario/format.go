package scenario

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FormatText renders run results as a PASS/FAIL report. Only failing cases
// are listed individually.
func FormatText(results []*RunResult) string {
	var b strings.Builder
	plural := "s"
	if len(results) == 1 {
		plural = ""
	}
	fmt.Fprintf(&b, "Checking %d scenario file%s...\n\n", len(results), plural)

	var cases, passed, failedFiles int
	for _, r := range results {
		cases += r.Total
		passed += r.Passed
		status := "PASS"
		if r.Failed > 0 {
			status = "FAIL"
			failedFiles++
		}
		fmt.Fprintf(&b, "  %s  %s (%d/%d)\n", status, r.Name, r.Passed, r.Total)
		for _, c := range r.Cases {
			if c.Passed {
				continue
			}
			got := c.Actual
			if c.Kind != "" {
				got = fmt.Sprintf("%s [%s]", got, c.Kind)
			}
			fmt.Fprintf(&b, "    case %d: %s %s expected %s, got %s: %s\n",
				c.Index, c.Check, c.Repo, c.Expected, got, c.Reason)
		}
	}

	fmt.Fprintf(&b, "\n%d of %d cases passed.", passed, cases)
	if failedFiles > 0 {
		fmt.Fprintf(&b, " %d of %d scenarios failed.", failedFiles, len(results))
	}
	b.WriteByte('\n')
	return b.String()
}

// FormatJSON renders run results as indented JSON.
func FormatJSON(results []*RunResult) (string, error) {
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal results: %w", err)
	}
	return string(data), nil
}
