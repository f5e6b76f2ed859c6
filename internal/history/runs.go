package history

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/starford/orgsync/internal/apperr"
	"github.com/starford/orgsync/internal/merge"
)

// Run is one recorded sync.
type Run struct {
	ID         string       `json:"id" yaml:"id"`
	Repo       string       `json:"repo" yaml:"repo"`
	Provider   string       `json:"provider" yaml:"provider"`
	Document   string       `json:"document" yaml:"document"`
	StartedAt  time.Time    `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time    `json:"finished_at" yaml:"finished_at"`
	DryRun     bool         `json:"dry_run" yaml:"dry_run"`
	Written    bool         `json:"written" yaml:"written"`
	Backup     string       `json:"backup,omitempty" yaml:"backup,omitempty"`
	Report     merge.Report `json:"report" yaml:"report"`
	Error      string       `json:"error,omitempty" yaml:"error,omitempty"`
}

const runColumns = `id, repo, provider, document, started_at, finished_at, dry_run, written,
	backup, total_issues, total_headings, added, updated, unchanged, preserved, warnings, error`

// RecordRun stores r and its entries in one transaction. An empty r.ID is
// replaced by a new UUID; the stored ID is returned.
func (db *DB) RecordRun(r *Run) (string, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	warnings, err := json.Marshal(nonNil(r.Report.Errors))
	if err != nil {
		return "", fmt.Errorf("history: encode warnings: %w", err)
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return "", fmt.Errorf("history: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	rep := r.Report
	_, err = tx.Exec(`INSERT INTO runs (`+runColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Repo, r.Provider, r.Document, r.StartedAt.UTC(), r.FinishedAt.UTC(),
		r.DryRun, r.Written, r.Backup,
		rep.TotalIssues, rep.TotalHeadings, rep.Added, rep.Updated, rep.Unchanged, rep.Preserved,
		string(warnings), r.Error)
	if err != nil {
		return "", fmt.Errorf("history: insert run: %w", err)
	}

	if len(rep.Entries) > 0 {
		stmt, err := tx.Prepare(`INSERT INTO run_entries (run_id, seq, number, title, action, details) VALUES (?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return "", fmt.Errorf("history: prepare entry insert: %w", err)
		}
		defer stmt.Close()
		for i, e := range rep.Entries {
			if _, err := stmt.Exec(r.ID, i, e.Number, e.Title, string(e.Action), e.Details); err != nil {
				return "", fmt.Errorf("history: insert entry: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("history: commit: %w", err)
	}
	return r.ID, nil
}

// ListRuns returns the most recent runs, newest first, without entries.
func (db *DB) ListRuns(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.Query(`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("history: list runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// GetRun returns one run with its entries. Unknown ids yield apperr.ErrNotFound.
func (db *DB) GetRun(id string) (*Run, error) {
	r, err := scanRun(db.conn.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("history: run %s: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	rows, err := db.conn.Query(`SELECT number, title, action, details FROM run_entries WHERE run_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("history: run entries: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var e merge.Entry
		var action string
		if err := rows.Scan(&e.Number, &e.Title, &action, &e.Details); err != nil {
			return nil, fmt.Errorf("history: scan entry: %w", err)
		}
		e.Action = merge.Action(action)
		r.Report.Entries = append(r.Report.Entries, e)
	}
	return r, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*Run, error) {
	var r Run
	var warnings string
	rep := &r.Report
	err := s.Scan(&r.ID, &r.Repo, &r.Provider, &r.Document, &r.StartedAt, &r.FinishedAt,
		&r.DryRun, &r.Written, &r.Backup,
		&rep.TotalIssues, &rep.TotalHeadings, &rep.Added, &rep.Updated, &rep.Unchanged, &rep.Preserved,
		&warnings, &r.Error)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("history: scan run: %w", err)
	}
	if err := json.Unmarshal([]byte(warnings), &rep.Errors); err != nil {
		return nil, fmt.Errorf("history: decode warnings: %w", err)
	}
	return &r, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
