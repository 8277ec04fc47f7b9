// Package history persists a journal of detected issues and remediation
// actions in SQLite so operators can review what the agent did across runs.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/hostwatch/hostwatch/internal/issue"
)

const schema = `
CREATE TABLE IF NOT EXISTS issues (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id     TEXT NOT NULL,
	created_at TEXT NOT NULL,
	type       TEXT NOT NULL,
	severity   TEXT NOT NULL,
	message    TEXT NOT NULL,
	pid        TEXT NOT NULL DEFAULT '',
	command    TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS actions (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id     TEXT NOT NULL,
	created_at TEXT NOT NULL,
	action     TEXT NOT NULL,
	target     TEXT NOT NULL,
	outcome    TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_issues_created ON issues(created_at);
CREATE INDEX IF NOT EXISTS idx_actions_created ON actions(created_at);
`

// Journal records issues and actions. All writes are best-effort: a broken
// journal must never abort a health check, so errors are logged and
// swallowed by the caller-facing methods.
type Journal struct {
	db    *sql.DB
	runID string
	log   *slog.Logger
	now   func() time.Time
}

// Open creates or opens the journal database at path.
func Open(path, runID string, log *slog.Logger) (*Journal, error) {
	if log == nil {
		log = slog.Default()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}

	db, err := sql.Open("sqlite3", "file:"+path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize history schema: %w", err)
	}

	return &Journal{db: db, runID: runID, log: log, now: time.Now}, nil
}

func (j *Journal) Close() error {
	if j == nil {
		return nil
	}
	return j.db.Close()
}

// LogIssue records a detected issue.
func (j *Journal) LogIssue(ctx context.Context, iss issue.Issue) {
	if j == nil {
		return
	}
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO issues (run_id, created_at, type, severity, message, pid, command)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		j.runID, j.now().UTC().Format(time.RFC3339), string(iss.Type), string(iss.Severity),
		iss.Message, iss.PID, iss.Command)
	if err != nil {
		j.log.Warn("failed to journal issue", "type", iss.Type, "err", err)
	}
}

// LogAction records the outcome of a remediation action.
func (j *Journal) LogAction(ctx context.Context, action, target, outcome string) {
	if j == nil {
		return
	}
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO actions (run_id, created_at, action, target, outcome)
		 VALUES (?, ?, ?, ?, ?)`,
		j.runID, j.now().UTC().Format(time.RFC3339), action, target, outcome)
	if err != nil {
		j.log.Warn("failed to journal action", "action", action, "err", err)
	}
}

// IssueRecord is a journaled issue row.
type IssueRecord struct {
	RunID     string
	CreatedAt time.Time
	Type      string
	Severity  string
	Message   string
	PID       string
	Command   string
}

// ActionRecord is a journaled action row.
type ActionRecord struct {
	RunID     string
	CreatedAt time.Time
	Action    string
	Target    string
	Outcome   string
}

// RecentIssues returns up to limit issues, newest first.
func (j *Journal) RecentIssues(ctx context.Context, limit int) ([]IssueRecord, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT run_id, created_at, type, severity, message, pid, command
		 FROM issues ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query issues: %w", err)
	}
	defer rows.Close()

	var out []IssueRecord
	for rows.Next() {
		var r IssueRecord
		var ts string
		if err := rows.Scan(&r.RunID, &ts, &r.Type, &r.Severity, &r.Message, &r.PID, &r.Command); err != nil {
			return nil, fmt.Errorf("scan issue row: %w", err)
		}
		r.CreatedAt, _ = time.Parse(time.RFC3339, ts)
		out = append(out, r)
	}
	return out, rows.Err()
}

// RecentActions returns up to limit actions, newest first.
func (j *Journal) RecentActions(ctx context.Context, limit int) ([]ActionRecord, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT run_id, created_at, action, target, outcome
		 FROM actions ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query actions: %w", err)
	}
	defer rows.Close()

	var out []ActionRecord
	for rows.Next() {
		var r ActionRecord
		var ts string
		if err := rows.Scan(&r.RunID, &ts, &r.Action, &r.Target, &r.Outcome); err != nil {
			return nil, fmt.Errorf("scan action row: %w", err)
		}
		r.CreatedAt, _ = time.Parse(time.RFC3339, ts)
		out = append(out, r)
	}
	return out, rows.Err()
}
