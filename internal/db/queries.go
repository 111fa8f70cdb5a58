package db

import (
	"database/sql"
	"fmt"
)

// Run modes.
const (
	ModeNarrative  = "narrative"
	ModeStructured = "structured"
)

// Run statuses.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Step outcomes.
const (
	OutcomeAnalyzed    = "analyzed"
	OutcomeUnparseable = "unparseable"
	OutcomeQuestion    = "question"
)

// Run represents a row in the runs table.
type Run struct {
	ID         string
	Target     string
	Model      string
	Mode       string
	Resumed    bool
	TotalFiles int
	Status     string
	StartedAt  string
	FinishedAt string
	// Steps is the number of analysis_events rows for the run; filled by RecentRuns.
	Steps int
}

// AnalysisEvent represents a row in the analysis_events table.
type AnalysisEvent struct {
	ID         int
	RunID      string
	Target     string
	File       string
	Model      string
	Outcome    string
	Attempts   int
	DurationMs int64
	Relevance  *float64
	Timestamp  string
}

// StartRun inserts a run in the running state.
func (d *DB) StartRun(r Run) error {
	_, err := d.conn.Exec(
		`INSERT INTO runs (id, target, model, mode, resumed, total_files) VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID, r.Target, r.Model, r.Mode, r.Resumed, r.TotalFiles,
	)
	if err != nil {
		return fmt.Errorf("start run: %w", err)
	}
	return nil
}

// FinishRun sets the final status of a run and stamps finished_at.
func (d *DB) FinishRun(id, status string) error {
	res, err := d.conn.Exec(
		`UPDATE runs SET status = ?, finished_at = datetime('now') WHERE id = ?`,
		status, id,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish run rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("run %q not found", id)
	}
	return nil
}

// GetRun returns a run by ID, or nil if it does not exist.
func (d *DB) GetRun(id string) (*Run, error) {
	row := d.conn.QueryRow(
		`SELECT r.id, r.target, r.model, r.mode, r.resumed, r.total_files, r.status, r.started_at, r.finished_at,
		        (SELECT COUNT(*) FROM analysis_events e WHERE e.run_id = r.id)
		 FROM runs r WHERE r.id = ?`,
		id,
	)
	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return r, nil
}

// RecentRuns returns up to limit runs, newest first.
func (d *DB) RecentRuns(limit int) ([]Run, error) {
	rows, err := d.conn.Query(
		`SELECT r.id, r.target, r.model, r.mode, r.resumed, r.total_files, r.status, r.started_at, r.finished_at,
		        (SELECT COUNT(*) FROM analysis_events e WHERE e.run_id = r.id)
		 FROM runs r ORDER BY r.started_at DESC, r.rowid DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query recent runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*Run, error) {
	var r Run
	var finished sql.NullString
	if err := s.Scan(&r.ID, &r.Target, &r.Model, &r.Mode, &r.Resumed, &r.TotalFiles, &r.Status, &r.StartedAt, &finished, &r.Steps); err != nil {
		return nil, err
	}
	if finished.Valid {
		r.FinishedAt = finished.String
	}
	return &r, nil
}

// LogAnalysisEvent inserts one completed step.
func (d *DB) LogAnalysisEvent(e AnalysisEvent) error {
	attempts := e.Attempts
	if attempts == 0 {
		attempts = 1
	}
	_, err := d.conn.Exec(
		`INSERT INTO analysis_events (run_id, target, file, model, outcome, attempts, duration_ms, relevance)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.RunID, e.Target, e.File, e.Model, e.Outcome, attempts, e.DurationMs, e.Relevance,
	)
	if err != nil {
		return fmt.Errorf("log analysis event: %w", err)
	}
	return nil
}

// GetRunEvents returns the steps of a run in the order they were logged.
func (d *DB) GetRunEvents(runID string) ([]AnalysisEvent, error) {
	rows, err := d.conn.Query(
		`SELECT id, run_id, target, file, model, outcome, attempts, duration_ms, relevance, timestamp
		 FROM analysis_events WHERE run_id = ? ORDER BY id ASC`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("query run events: %w", err)
	}
	defer rows.Close()

	var events []AnalysisEvent
	for rows.Next() {
		var e AnalysisEvent
		var relevance sql.NullFloat64
		if err := rows.Scan(&e.ID, &e.RunID, &e.Target, &e.File, &e.Model, &e.Outcome, &e.Attempts, &e.DurationMs, &relevance, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan analysis event: %w", err)
		}
		if relevance.Valid {
			v := relevance.Float64
			e.Relevance = &v
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
