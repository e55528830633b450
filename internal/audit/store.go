// Package audit keeps a local history of runs in SQLite.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/agentstation/librarian/pkg/constants"
	"github.com/agentstation/librarian/pkg/errors"
	"github.com/agentstation/librarian/pkg/library"
	"github.com/agentstation/librarian/pkg/report"
)

const schema = `
CREATE TABLE IF NOT EXISTS reports (
	run_id      TEXT NOT NULL,
	stage       TEXT NOT NULL,
	mode        TEXT NOT NULL,
	started_at  TEXT NOT NULL,
	finished_at TEXT,
	changed     INTEGER NOT NULL DEFAULT 0,
	no_op       INTEGER NOT NULL DEFAULT 0,
	failed      INTEGER NOT NULL DEFAULT 0,
	pending     INTEGER NOT NULL DEFAULT 0,
	body        TEXT NOT NULL,
	PRIMARY KEY (run_id, stage)
);
CREATE INDEX IF NOT EXISTS idx_reports_started ON reports(started_at DESC);

CREATE TABLE IF NOT EXISTS failures (
	run_id  TEXT NOT NULL,
	stage   TEXT NOT NULL,
	kind    TEXT NOT NULL,
	subject INTEGER NOT NULL,
	name    TEXT,
	parent  INTEGER,
	error   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_failures_run ON failures(run_id);
`

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Run summarises the stages recorded under one run id.
type Run struct {
	ID        string      `json:"run_id" yaml:"run_id"`
	Mode      report.Mode `json:"mode" yaml:"mode"`
	StartedAt time.Time   `json:"started_at" yaml:"started_at"`
	Stages    int         `json:"stages" yaml:"stages"`
	Changed   int         `json:"changed" yaml:"changed"`
	NoOp      int         `json:"no_op" yaml:"no_op"`
	Failed    int         `json:"failed" yaml:"failed"`
	Pending   int         `json:"pending" yaml:"pending"`
}

// Store persists sealed reports.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), constants.SecureDirPermissions); err != nil {
		return nil, errors.WrapIO("mkdir", filepath.Dir(path), err)
	}
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, errors.WrapIO("open", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, errors.WrapIO("migrate", path, err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record stores reports and their failures in one transaction. Reports
// must be sealed and carry a run id; re-recording a stage replaces it.
func (s *Store) Record(ctx context.Context, reports ...*report.Report) (err error) {
	for _, r := range reports {
		if !r.Sealed() {
			return errors.NewValidationError("report", r.Stage, "report is not sealed")
		}
		if r.RunID == "" {
			return errors.NewValidationError("run_id", r.Stage, "report has no run id")
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, r := range reports {
		body, err := json.Marshal(r)
		if err != nil {
			return errors.WrapParse("json", r.Stage, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM failures WHERE run_id = ? AND stage = ?`, r.RunID, r.Stage); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO reports
				(run_id, stage, mode, started_at, finished_at, changed, no_op, failed, pending, body)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.RunID, r.Stage, string(r.Mode),
			formatTime(r.StartedAt), formatTime(r.FinishedAt),
			r.Summary.Changed, r.Summary.NoOp, r.Summary.Failed, r.Summary.Pending,
			string(body))
		if err != nil {
			return err
		}
		for _, f := range r.Failures {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO failures (run_id, stage, kind, subject, name, parent, error)
				VALUES (?, ?, ?, ?, ?, ?, ?)`,
				r.RunID, r.Stage, string(f.Kind), int64(f.Subject), f.Name, int64(f.Parent), f.Error)
			if err != nil {
				return err
			}
		}
	}
	return tx.Commit()
}

// Runs lists the most recent runs first. limit <= 0 returns all.
func (s *Store) Runs(ctx context.Context, limit int) ([]Run, error) {
	query := `
		SELECT run_id, MIN(mode), MIN(started_at), COUNT(*),
		       SUM(changed), SUM(no_op), SUM(failed), SUM(pending)
		FROM reports
		GROUP BY run_id
		ORDER BY MIN(started_at) DESC, run_id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run     Run
			mode    string
			started string
		)
		if err := rows.Scan(&run.ID, &mode, &started, &run.Stages, &run.Changed, &run.NoOp, &run.Failed, &run.Pending); err != nil {
			return nil, err
		}
		run.Mode = report.Mode(mode)
		run.StartedAt = parseTime(started)
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Reports loads the stage reports of one run in the order they started.
func (s *Store) Reports(ctx context.Context, runID string) ([]*report.Report, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT body FROM reports WHERE run_id = ? ORDER BY started_at, stage`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*report.Report
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		r, err := report.Decode([]byte(body))
		if err != nil {
			return nil, errors.WrapParse("json", runID, err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, errors.NewNotFoundError("run", runID)
	}
	return out, nil
}

// Failures returns the failures recorded for a run.
func (s *Store) Failures(ctx context.Context, runID string) ([]report.Failure, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT kind, subject, name, parent, error FROM failures WHERE run_id = ? ORDER BY rowid`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []report.Failure
	for rows.Next() {
		var (
			f       report.Failure
			kind    string
			name    sql.NullString
			subject int64
			parent  int64
		)
		if err := rows.Scan(&kind, &subject, &name, &parent, &f.Error); err != nil {
			return nil, err
		}
		f.Kind = report.Kind(kind)
		f.Subject = library.ID(subject)
		f.Parent = library.ID(parent)
		f.Name = name.String
		out = append(out, f)
	}
	return out, rows.Err()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
