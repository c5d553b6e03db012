// Package history keeps a sqlite log of update check runs.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/pushchain/push-updater/internal/checker"

	_ "modernc.org/sqlite" // pure Go driver, no cgo
)

// FileName is the database file inside the home directory.
const FileName = "history.db"

const schema = `
CREATE TABLE IF NOT EXISTS checks (
	run_id      TEXT PRIMARY KEY,
	origin      TEXT NOT NULL DEFAULT '',
	outcome     TEXT NOT NULL,
	step        TEXT NOT NULL DEFAULT '',
	error       TEXT NOT NULL DEFAULT '',
	manifest_id TEXT NOT NULL DEFAULT '',
	version     TEXT NOT NULL DEFAULT '',
	started_at  TEXT NOT NULL,
	finished_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS checks_started_at ON checks (started_at);
`

// Entry is one recorded run.
type Entry struct {
	RunID      string          `json:"run_id" yaml:"run_id"`
	Trigger    string          `json:"trigger,omitempty" yaml:"trigger,omitempty"`
	Outcome    checker.Outcome `json:"outcome" yaml:"outcome"`
	Step       string          `json:"step,omitempty" yaml:"step,omitempty"`
	Error      string          `json:"error,omitempty" yaml:"error,omitempty"`
	ManifestID string          `json:"manifest_id,omitempty" yaml:"manifest_id,omitempty"`
	Version    string          `json:"version,omitempty" yaml:"version,omitempty"`
	StartedAt  time.Time       `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time       `json:"finished_at" yaml:"finished_at"`
}

// FromResult converts a checker result. trigger names what started the run
// (cli, schedule, push, api).
func FromResult(r checker.Result, trigger string) Entry {
	e := Entry{
		RunID:      r.RunID,
		Trigger:    trigger,
		Outcome:    r.Outcome,
		Error:      r.Error,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
	}
	e.Step = string(r.FailedStep())
	if r.Manifest != nil {
		e.ManifestID = r.Manifest.ID
		e.Version = r.Manifest.Version
	}
	return e
}

// Store is a handle on the history database.
type Store struct {
	db *sql.DB
}

// Path returns the database location for homeDir.
func Path(homeDir string) string {
	return filepath.Join(homeDir, FileName)
}

// Open creates or opens the database at path and applies the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	//nolint:gosec // G301: state directory needs standard permissions
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}
	db, err := sql.Open("sqlite", buildDSN(path))
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	// one writer; the watch loop and the control API share it
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping history db: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply history schema: %w", err)
	}
	return &Store{db: db}, nil
}

func buildDSN(path string) string {
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(path)}
	q := url.Values{}
	q.Add("_pragma", "busy_timeout(3000)")
	q.Add("_pragma", "journal_mode(WAL)")
	u.RawQuery = q.Encode()
	return u.String()
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// Record stores e, replacing an earlier row with the same run id.
func (s *Store) Record(ctx context.Context, e Entry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO checks
			(run_id, origin, outcome, step, error, manifest_id, version, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.RunID, e.Trigger, e.Outcome.String(), e.Step, e.Error, e.ManifestID, e.Version,
		e.StartedAt.UTC().Format(time.RFC3339Nano), e.FinishedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record check %s: %w", e.RunID, err)
	}
	return nil
}

// Recent returns up to limit entries, newest first. limit <= 0 means 20.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, origin, outcome, step, error, manifest_id, version, started_at, finished_at
		FROM checks
		ORDER BY started_at DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Entry
	for rows.Next() {
		var (
			e                 Entry
			outcome           string
			started, finished string
		)
		if err := rows.Scan(&e.RunID, &e.Trigger, &outcome, &e.Step, &e.Error,
			&e.ManifestID, &e.Version, &started, &finished); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		if e.Outcome, err = checker.ParseOutcome(outcome); err != nil {
			return nil, err
		}
		e.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
		e.FinishedAt, _ = time.Parse(time.RFC3339Nano, finished)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Prune deletes entries that started before cutoff and reports how many.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM checks WHERE started_at < ?`,
		cutoff.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("prune history: %w", err)
	}
	return res.RowsAffected()
}
