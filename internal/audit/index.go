package audit

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	_ "modernc.org/sqlite"
)

const indexSchema = `
CREATE TABLE IF NOT EXISTS entries (
	line       INTEGER PRIMARY KEY,
	ts         TEXT NOT NULL,
	request_id TEXT NOT NULL,
	transport  TEXT NOT NULL,
	operation  TEXT NOT NULL,
	repository TEXT NOT NULL,
	target     TEXT NOT NULL,
	visibility TEXT NOT NULL,
	decision   TEXT NOT NULL,
	kind       TEXT NOT NULL,
	reason     TEXT NOT NULL,
	prev_hash  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS entries_repository ON entries (repository COLLATE NOCASE);
CREATE INDEX IF NOT EXISTS entries_request_id ON entries (request_id);
CREATE INDEX IF NOT EXISTS entries_ts ON entries (ts);
`

// Index is a SQLite copy of an audit log for fast queries. The log stays
// the source of truth; the index is rebuilt or extended from it.
type Index struct {
	db *sql.DB
}

// OpenIndex opens or creates the index database at path.
func OpenIndex(path string) (*Index, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open audit index: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(indexSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create audit index schema: %w", err)
	}
	return &Index{db: db}, nil
}

// Close closes the database.
func (x *Index) Close() error { return x.db.Close() }

// Sync appends log lines not yet indexed and returns how many were added.
// Lines are keyed by their 1-based position, so the log must only grow.
func (x *Index) Sync(ctx context.Context, logPath string) (int, error) {
	var last int
	if err := x.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(line), 0) FROM entries`).Scan(&last); err != nil {
		return 0, fmt.Errorf("read audit index position: %w", err)
	}

	file, err := os.Open(logPath)
	if err != nil {
		return 0, fmt.Errorf("open audit log: %w", err)
	}
	defer file.Close()

	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO entries
		(line, ts, request_id, transport, operation, repository, target, visibility, decision, kind, reason, prev_hash)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	added, line := 0, 0
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line++
		if line <= last {
			continue
		}
		var e Entry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			continue
		}
		if _, err := stmt.ExecContext(ctx, line, e.Timestamp, e.RequestID, e.Transport, e.Operation,
			e.Repository, e.Target, e.Visibility, e.Decision, e.Kind, e.Reason, e.PrevHash); err != nil {
			return 0, fmt.Errorf("index line %d: %w", line, err)
		}
		added++
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("read audit log: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit audit index: %w", err)
	}
	return added, nil
}

// Query returns indexed entries matching f, in log order.
func (x *Index) Query(ctx context.Context, f Filter) (*Result, error) {
	var where []string
	var args []any
	if f.Repository != "" {
		where = append(where, "repository = ? COLLATE NOCASE")
		args = append(args, f.Repository)
	}
	if f.Operation != "" {
		where = append(where, "operation = ?")
		args = append(args, f.Operation)
	}
	if f.Decision != "" {
		where = append(where, "decision = ? COLLATE NOCASE")
		args = append(args, f.Decision)
	}
	if f.RequestID != "" {
		where = append(where, "request_id = ?")
		args = append(args, f.RequestID)
	}
	// TimestampFormat is fixed width UTC, so text order is time order.
	if !f.From.IsZero() {
		where = append(where, "ts >= ?")
		args = append(args, f.From.UTC().Format(TimestampFormat))
	}
	if !f.To.IsZero() {
		where = append(where, "ts <= ?")
		args = append(args, f.To.UTC().Format(TimestampFormat))
	}

	q := `SELECT ts, request_id, transport, operation, repository, target, visibility, decision, kind, reason, prev_hash FROM entries`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY line DESC"
	if f.Limit > 0 {
		q += fmt.Sprintf(" LIMIT %d", f.Limit)
	}

	rows, err := x.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit index: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Timestamp, &e.RequestID, &e.Transport, &e.Operation, &e.Repository,
			&e.Target, &e.Visibility, &e.Decision, &e.Kind, &e.Reason, &e.PrevHash); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}

	res := &Result{Entries: entries}
	for _, e := range entries {
		res.Summary.add(e)
	}
	return res, nil
}
