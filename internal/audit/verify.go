package audit

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// VerifyResult is the outcome of a chain verification.
type VerifyResult struct {
	Valid     bool   `json:"valid"`
	Lines     int    `json:"lines"`
	Error     string `json:"error,omitempty"`
	ErrorLine int    `json:"error_line,omitempty"`
}

// Verify checks that every entry in the log at path references the hash of
// the line before it, and the first references GenesisHash.
func Verify(path string) VerifyResult {
	f, err := os.Open(path)
	if err != nil {
		return VerifyResult{Error: fmt.Sprintf("open: %v", err)}
	}
	defer f.Close()
	return VerifyReader(f)
}

// VerifyReader is Verify over an arbitrary reader.
func VerifyReader(rd io.Reader) VerifyResult {
	r := bufio.NewReader(rd)
	want := GenesisHash
	n := 0
	for {
		raw, readErr := r.ReadBytes('\n')
		line := bytes.TrimRight(raw, "\r\n")
		if len(line) > 0 {
			n++
			var e Entry
			if err := json.Unmarshal(line, &e); err != nil {
				return VerifyResult{Lines: n - 1, Error: fmt.Sprintf("parse error: %v", err), ErrorLine: n}
			}
			if e.PrevHash != want {
				return VerifyResult{
					Lines:     n - 1,
					Error:     fmt.Sprintf("hash mismatch: expected %s, got %s", want, e.PrevHash),
					ErrorLine: n,
				}
			}
			want = HashLine(line)
		}
		if readErr == io.EOF {
			return VerifyResult{Valid: true, Lines: n}
		}
		if readErr != nil {
			return VerifyResult{Lines: n, Error: fmt.Sprintf("read: %v", readErr)}
		}
	}
}
