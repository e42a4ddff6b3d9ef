package audit

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/jibsandbox/jib-gateway/internal/clock"
)

// GenesisHash is the prev_hash of the first entry in a log.
const GenesisHash = "sha256:0000000000000000000000000000000000000000000000000000000000000000"

// TimestampFormat is the layout of Entry.Timestamp.
const TimestampFormat = "2006-01-02T15:04:05.000Z"

// Log appends entries to a JSONL file, each carrying the hash of the line
// before it. Safe for concurrent use.
type Log struct {
	mu    sync.Mutex
	path  string
	file  *os.File
	tail  string
	clock clock.Clock
}

// Open opens or creates the log at path and recovers the chain tail.
func Open(path string) (*Log, error) {
	return OpenWithClock(path, clock.Real())
}

// OpenWithClock is Open with an injected clock for timestamps.
func OpenWithClock(path string, c clock.Clock) (*Log, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("audit: create directory: %w", err)
	}
	tail, err := chainTail(path)
	if err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("audit: open file: %w", err)
	}
	return &Log{path: path, file: f, tail: tail, clock: c}, nil
}

// chainTail hashes the last non-empty line of path, or returns GenesisHash.
func chainTail(path string) (string, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return GenesisHash, nil
	}
	if err != nil {
		return "", fmt.Errorf("audit: read existing log: %w", err)
	}
	defer f.Close()

	tail := GenesisHash
	r := bufio.NewReader(f)
	for {
		line, err := r.ReadBytes('\n')
		if trimmed := bytes.TrimRight(line, "\r\n"); len(trimmed) > 0 {
			tail = HashLine(trimmed)
		}
		if err == io.EOF {
			return tail, nil
		}
		if err != nil {
			return "", fmt.Errorf("audit: scan existing log: %w", err)
		}
	}
}

// Path returns the file path of the log.
func (l *Log) Path() string { return l.path }

// Record chains and appends e, filling Timestamp and RequestID when empty,
// and returns the entry as written.
func (l *Log) Record(e Entry) (Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if e.Timestamp == "" {
		e.Timestamp = l.clock.Now().UTC().Format(TimestampFormat)
	}
	if e.RequestID == "" {
		e.RequestID = uuid.NewString()
	}
	e.PrevHash = l.tail

	line, err := json.Marshal(e)
	if err != nil {
		return e, fmt.Errorf("audit: marshal entry: %w", err)
	}
	if _, err := l.file.Write(append(line, '\n')); err != nil {
		return e, fmt.Errorf("audit: write entry: %w", err)
	}
	if err := l.file.Sync(); err != nil {
		return e, fmt.Errorf("audit: sync: %w", err)
	}
	l.tail = HashLine(line)
	return e, nil
}

// Close closes the underlying file.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}

// HashLine returns "sha256:<hex>" of line.
func HashLine(line []byte) string {
	h := sha256.Sum256(line)
	return "sha256:" + hex.EncodeToString(h[:])
}
