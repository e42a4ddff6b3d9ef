package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"
)

// Filter selects entries. Empty fields match everything.
type Filter struct {
	Repository string
	Operation  string
	Decision   string
	RequestID  string
	From       time.Time
	To         time.Time
	// Limit keeps only the last Limit matches when > 0.
	Limit int
}

// Summary counts decisions across a set of entries.
type Summary struct {
	Total          int            `json:"total"`
	AllowCount     int            `json:"allow_count"`
	DenyCount      int            `json:"deny_count"`
	ByKind         map[string]int `json:"by_kind,omitempty"`
	FirstTimestamp string         `json:"first_timestamp"`
	LastTimestamp  string         `json:"last_timestamp"`
}

// Result holds matching entries and their summary.
type Result struct {
	Entries []Entry `json:"entries"`
	Summary Summary `json:"summary"`
}

// Matches reports whether e passes f.
func (f Filter) Matches(e Entry) bool {
	if f.Repository != "" && !strings.EqualFold(f.Repository, e.Repository) {
		return false
	}
	if f.Operation != "" && f.Operation != e.Operation {
		return false
	}
	if f.Decision != "" && !strings.EqualFold(f.Decision, e.Decision) {
		return false
	}
	if f.RequestID != "" && f.RequestID != e.RequestID {
		return false
	}
	if f.From.IsZero() && f.To.IsZero() {
		return true
	}
	ts, err := time.Parse(TimestampFormat, e.Timestamp)
	if err != nil {
		return false
	}
	if !f.From.IsZero() && ts.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && ts.After(f.To) {
		return false
	}
	return true
}

// Query reads the log at path and returns entries matching f. Malformed
// lines are skipped.
func Query(path string, f Filter) (*Result, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	defer file.Close()

	var entries []Entry
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var e Entry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			continue
		}
		if f.Matches(e) {
			entries = append(entries, e)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read audit log: %w", err)
	}

	if f.Limit > 0 && len(entries) > f.Limit {
		entries = entries[len(entries)-f.Limit:]
	}
	res := &Result{Entries: entries}
	for _, e := range entries {
		res.Summary.add(e)
	}
	return res, nil
}

func (s *Summary) add(e Entry) {
	s.Total++
	switch strings.ToLower(e.Decision) {
	case "allow":
		s.AllowCount++
	case "deny":
		s.DenyCount++
	}
	if e.Kind != "" {
		if s.ByKind == nil {
			s.ByKind = make(map[string]int)
		}
		s.ByKind[e.Kind]++
	}
	if s.FirstTimestamp == "" {
		s.FirstTimestamp = e.Timestamp
	}
	s.LastTimestamp = e.Timestamp
}
