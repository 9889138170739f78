// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package registry persists the run index and the cumulative bibliography
// shared by every run. Keys are unique across the bibliography: a paper
// cited again reuses its key, a new paper whose key collides gets the next
// a/b/... suffix.
package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/citation-engine/internal/candidates"
	"github.com/pdiddy/citation-engine/internal/cite"
	"github.com/pdiddy/citation-engine/pkg/types"
)

const (
	dbFile  = "citations.db"
	bibFile = "references.bib"
)

// Registry manages the citations SQLite database and references.bib.
type Registry struct {
	db  *sql.DB
	dir string

	// mu serialises reconciliation and the references.bib rewrite.
	mu sync.Mutex
}

// Open opens or creates the registry database at dir/citations.db. It
// creates the schema if it does not exist.
func Open(dir string) (*Registry, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating results directory: %w", err)
	}

	dbPath := filepath.Join(dir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	r := &Registry{db: db, dir: dir}
	if err := r.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return r, nil
}

// Close releases the database connection.
func (r *Registry) Close() error {
	return r.db.Close()
}

// Dir returns the directory holding the database and references.bib.
func (r *Registry) Dir() string { return r.dir }

// BibPath returns the path of the cumulative BibTeX file.
func (r *Registry) BibPath() string { return filepath.Join(r.dir, bibFile) }

func (r *Registry) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			dir TEXT NOT NULL,
			paragraph TEXT,
			state TEXT NOT NULL,
			failed_phase TEXT,
			error TEXT,
			entries INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS bibliography (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			key TEXT NOT NULL UNIQUE,
			paper_key TEXT NOT NULL UNIQUE,
			paper TEXT NOT NULL,
			run_id TEXT,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at)`,
	}
	for _, stmt := range statements {
		if _, err := r.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// RunRecord is one row of the run index.
type RunRecord struct {
	ID          string    `json:"id" yaml:"id"`
	Dir         string    `json:"dir" yaml:"dir"`
	Paragraph   string    `json:"paragraph" yaml:"paragraph"`
	State       string    `json:"state" yaml:"state"`
	FailedPhase string    `json:"failed_phase,omitempty" yaml:"failed_phase,omitempty"`
	Error       string    `json:"error,omitempty" yaml:"error,omitempty"`
	Entries     int       `json:"entries" yaml:"entries"`
	CreatedAt   time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" yaml:"updated_at"`
}

// RecordRun inserts or updates a run. CreatedAt is kept from the first
// insert.
func (r *Registry) RecordRun(ctx context.Context, rec RunRecord) error {
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO runs (id, dir, paragraph, state, failed_phase, error, entries, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			dir = excluded.dir,
			paragraph = excluded.paragraph,
			state = excluded.state,
			failed_phase = excluded.failed_phase,
			error = excluded.error,
			entries = excluded.entries,
			updated_at = excluded.updated_at`,
		rec.ID, rec.Dir, rec.Paragraph, rec.State, rec.FailedPhase, rec.Error, rec.Entries,
		rec.CreatedAt.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("recording run %s: %w", rec.ID, err)
	}
	return nil
}

// ListRuns returns recorded runs, newest first. A limit of 0 returns all.
func (r *Registry) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	query := `SELECT id, dir, paragraph, state, failed_phase, error, entries, created_at, updated_at
		FROM runs ORDER BY created_at DESC, id DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		var (
			rec              RunRecord
			failed, errText  sql.NullString
			created, updated string
		)
		if err := rows.Scan(&rec.ID, &rec.Dir, &rec.Paragraph, &rec.State, &failed, &errText, &rec.Entries, &created, &updated); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		rec.FailedPhase = failed.String
		rec.Error = errText.String
		rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		rec.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
		runs = append(runs, rec)
	}
	return runs, rows.Err()
}

// Reconcile makes the keys of res unique across the cumulative
// bibliography, records new entries and rewrites references.bib. The
// returned result carries the final keys.
func (r *Registry) Reconcile(ctx context.Context, runID string, res types.CitationResult) (types.CitationResult, error) {
	if len(res.Entries) == 0 {
		return res, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return res, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	mapping := make(map[string]string, len(res.Entries))
	now := time.Now().UTC().Format(time.RFC3339Nano)
	for _, e := range res.Entries {
		paperKey := candidates.Key(e.Paper)

		var existing string
		err := tx.QueryRowContext(ctx, `SELECT key FROM bibliography WHERE paper_key = ?`, paperKey).Scan(&existing)
		switch {
		case err == nil:
			mapping[e.Key] = existing
			continue
		case !errors.Is(err, sql.ErrNoRows):
			return res, fmt.Errorf("looking up %s: %w", paperKey, err)
		}

		var lookupErr error
		key := cite.Disambiguate(cite.BaseKey(e.Paper), func(k string) bool {
			var n int
			if err := tx.QueryRowContext(ctx, `SELECT count(*) FROM bibliography WHERE key = ?`, k).Scan(&n); err != nil {
				lookupErr = err
				return false
			}
			return n > 0
		})
		if lookupErr != nil {
			return res, fmt.Errorf("checking key %s: %w", key, lookupErr)
		}

		paperJSON, err := json.Marshal(e.Paper)
		if err != nil {
			return res, fmt.Errorf("marshaling paper %s: %w", paperKey, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO bibliography (key, paper_key, paper, run_id, created_at) VALUES (?, ?, ?, ?, ?)`,
			key, paperKey, string(paperJSON), runID, now,
		); err != nil {
			return res, fmt.Errorf("inserting %s: %w", key, err)
		}
		mapping[e.Key] = key
	}

	if err := tx.Commit(); err != nil {
		return res, fmt.Errorf("committing bibliography: %w", err)
	}

	if err := r.writeBibFile(ctx); err != nil {
		return res, err
	}
	return cite.Rekey(res, mapping), nil
}

// Entries returns the cumulative bibliography in insertion order.
func (r *Registry) Entries(ctx context.Context) ([]types.BibEntry, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT key, paper FROM bibliography ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("querying bibliography: %w", err)
	}
	defer rows.Close()

	var entries []types.BibEntry
	for rows.Next() {
		var key, paperJSON string
		if err := rows.Scan(&key, &paperJSON); err != nil {
			return nil, fmt.Errorf("scanning entry: %w", err)
		}
		var p types.Paper
		if err := json.Unmarshal([]byte(paperJSON), &p); err != nil {
			return nil, fmt.Errorf("decoding entry %s: %w", key, err)
		}
		entries = append(entries, types.BibEntry{Key: key, Paper: p, BibTeX: cite.RenderBibTeX(key, p)})
	}
	return entries, rows.Err()
}

// writeBibFile rewrites references.bib through a temp file and rename so
// readers never see a partial file. Callers hold r.mu.
func (r *Registry) writeBibFile(ctx context.Context) error {
	entries, err := r.Entries(ctx)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(r.dir, bibFile+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp bibliography: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(joinBibTeX(entries)); err != nil {
		tmp.Close()
		return fmt.Errorf("writing bibliography: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing bibliography: %w", err)
	}
	if err := os.Rename(tmp.Name(), r.BibPath()); err != nil {
		return fmt.Errorf("replacing %s: %w", bibFile, err)
	}
	return nil
}

func joinBibTeX(entries []types.BibEntry) string {
	if len(entries) == 0 {
		return ""
	}
	parts := make([]string, len(entries))
	for i, e := range entries {
		parts[i] = e.BibTeX
	}
	return strings.Join(parts, "\n\n") + "\n"
}
