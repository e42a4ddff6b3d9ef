package audit

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

const separator = "──────────────────────────────────────────────────────────────────"

// FormatTimeline renders a Result as a text table.
func FormatTimeline(res *Result) string {
	if len(res.Entries) == 0 {
		return "No audit entries found.\n"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Audit: %s – %s UTC\n", formatStamp(res.Summary.FirstTimestamp, "2006-01-02 15:04:05"),
		formatStamp(res.Summary.LastTimestamp, "15:04:05"))
	b.WriteString(separator + "\n")
	for _, e := range res.Entries {
		fmt.Fprintf(&b, "%-10s %-6s %-11s %-32s %s\n",
			formatStamp(e.Timestamp, "15:04:05"),
			strings.ToUpper(e.Decision),
			truncate(e.Operation, 11),
			truncate(e.Repository, 32),
			truncate(e.Reason, 60))
	}
	b.WriteString(separator + "\n")
	b.WriteString(formatSummary(res.Summary))
	return b.String()
}

// FormatJSON renders a Result as indented JSON.
func FormatJSON(res *Result) (string, error) {
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal audit result: %w", err)
	}
	return string(data), nil
}

func formatStamp(ts, layout string) string {
	t, err := time.Parse(TimestampFormat, ts)
	if err != nil {
		return ts
	}
	return t.Format(layout)
}

func formatSummary(s Summary) string {
	out := fmt.Sprintf("Summary: %d allow, %d deny", s.AllowCount, s.DenyCount)
	if len(s.ByKind) == 0 {
		return out + "\n"
	}
	kinds := make([]string, 0, len(s.ByKind))
	for k := range s.ByKind {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	parts := make([]string, 0, len(kinds))
	for _, k := range kinds {
		parts = append(parts, fmt.Sprintf("%s=%d", k, s.ByKind[k]))
	}
	return out + " | " + strings.Join(parts, ", ") + "\n"
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
