package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/fixity/internal/models"
	"github.com/desertthunder/fixity/internal/shared"
)

const runColumns = `
	id, sequence, mode, status, objects_queued, objects_processed, datastreams, versions,
	ok, invalid, missing, errors, updated, skipped, started_at, finished_at
`

// RunRepository stores audit runs and the results they produced.
type RunRepository struct {
	db *sql.DB
}

// NewRunRepository creates a new RunRepository with the given database connection
func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

// Create inserts a running run for mode with a generated ID and sequence.
func (r *RunRepository) Create(mode models.Mode, started time.Time) (*models.Run, error) {
	if mode.String() == "" {
		return nil, fmt.Errorf("%w: unknown mode %d", shared.ErrInvalidArgument, mode)
	}

	sequence, err := NextSequence(r.db, "runs")
	if err != nil {
		return nil, fmt.Errorf("failed to generate sequence: %w", err)
	}

	run := &models.Run{
		ID:       shared.GenerateID(),
		Sequence: sequence,
		Status:   models.RunRunning,
		Summary:  models.Summary{Mode: mode, Started: started.UTC()},
	}

	query := `INSERT INTO runs (id, sequence, mode, status, started_at) VALUES (?, ?, ?, ?, ?)`
	if _, err := r.db.Exec(query, run.ID, run.Sequence, mode.String(), string(run.Status), run.Summary.Started); err != nil {
		return nil, fmt.Errorf("failed to insert run: %w", err)
	}
	return run, nil
}

// SaveResult appends one result to a run.
func (r *RunRepository) SaveResult(runID string, res models.Result) error {
	var detail any = res.Detail()
	if detail == "" {
		detail = nil
	}

	query := `INSERT INTO results (run_id, pid, dsid, outcome, detail, recorded_at) VALUES (?, ?, ?, ?, ?, ?)`
	if _, err := r.db.Exec(query, runID, res.Parent(), res.Item(), res.Outcome(), detail, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to insert result: %w", err)
	}
	return nil
}

// Finish stores the final counters of a run and marks it completed or interrupted.
func (r *RunRepository) Finish(runID string, s models.Summary) error {
	finished := s.Finished
	if finished.IsZero() {
		finished = time.Now()
	}

	query := `
		UPDATE runs
		SET status = ?, objects_queued = ?, objects_processed = ?, datastreams = ?, versions = ?,
			ok = ?, invalid = ?, missing = ?, errors = ?, updated = ?, skipped = ?, finished_at = ?
		WHERE id = ?
	`
	result, err := r.db.Exec(query,
		string(models.StatusFor(s)),
		s.ObjectsQueued,
		s.ObjectsProcessed,
		s.Datastreams,
		s.Versions,
		s.OK,
		s.Invalid,
		s.Missing,
		s.Errors,
		s.Updated,
		s.Skipped,
		finished.UTC(),
		runID,
	)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrRunNotFound, runID)
	}
	return nil
}

// Delete removes a run and its results. Results are deleted explicitly since foreign keys are not
// enforced on every connection.
func (r *RunRepository) Delete(id string) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM results WHERE run_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete results: %w", err)
	}
	result, err := tx.Exec(`DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrRunNotFound, id)
	}
	return tx.Commit()
}

// Get retrieves a run by ID.
func (r *RunRepository) Get(id string) (*models.Run, error) {
	run, err := scanRun(r.db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrRunNotFound, id)
	}
	return run, err
}

// List returns the most recent runs, newest first. A limit of zero returns every run.
func (r *RunRepository) List(limit int) ([]*models.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY sequence DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return runs, nil
}

// CountResults counts the stored results of a run, optionally only those with outcome.
func (r *RunRepository) CountResults(runID, outcome string) (int, error) {
	query := `SELECT COUNT(*) FROM results WHERE run_id = ?`
	args := []any{runID}
	if outcome != "" {
		query += " AND outcome = ?"
		args = append(args, outcome)
	}

	var n int
	if err := r.db.QueryRow(query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count results: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanRun scans a single row selected with runColumns into a [models.Run]
func scanRun(row rowScanner) (*models.Run, error) {
	var (
		run        models.Run
		mode       string
		status     string
		startedAt  time.Time
		finishedAt sql.NullTime
	)
	s := &run.Summary

	err := row.Scan(
		&run.ID, &run.Sequence, &mode, &status, &s.ObjectsQueued, &s.ObjectsProcessed, &s.Datastreams, &s.Versions,
		&s.OK, &s.Invalid, &s.Missing, &s.Errors, &s.Updated, &s.Skipped, &startedAt, &finishedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	s.Mode, _ = models.ParseMode(mode)
	run.Status = models.RunStatus(status)
	s.Interrupted = run.Status == models.RunInterrupted
	s.Started = startedAt
	if finishedAt.Valid {
		s.Finished = finishedAt.Time
	}
	return &run, nil
}

// RunRecorder stores every result of one run. It is used from the pipeline's reporter goroutine only.
type RunRecorder struct {
	repo  *RunRepository
	runID string
}

func NewRunRecorder(repo *RunRepository, runID string) *RunRecorder {
	return &RunRecorder{repo: repo, runID: runID}
}

func (rr *RunRecorder) RecordResult(res models.Result) error {
	return rr.repo.SaveResult(rr.runID, res)
}
