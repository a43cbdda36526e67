package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"
)

// Run statuses
const (
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// ErrRunNotFound is returned when a run ID has no row.
var ErrRunNotFound = errors.New("run not found")

// Run is a row of the runs table.
type Run struct {
	ID           string
	Mode         string // "batch" or "stream"
	Library      string
	Module       string
	Stocks       int
	Steps        int
	Status       string
	ErrorMessage string
	Duration     time.Duration
	StartedAt    time.Time
	FinishedAt   time.Time // zero while running
}

// FactorValue is one output cell: buffer value for stock at step.
// NaN values (engine warm-up) are stored as NULL and read back as NaN.
type FactorValue struct {
	RunID  string
	Buffer string
	Step   int
	Stock  int
	Value  float32
}

// Repository reads and writes runs and their values.
type Repository struct {
	db *Database
}

// NewRepository creates a repository over an open Database.
func NewRepository(database *Database) *Repository {
	return &Repository{db: database}
}

// CreateRun inserts run with status running.
func (r *Repository) CreateRun(ctx context.Context, run Run) error {
	if run.ID == "" {
		return fmt.Errorf("run ID is required")
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}

	_, err := r.db.DB().ExecContext(ctx, `
		INSERT INTO runs (id, mode, library, module, stocks, steps, status, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Mode, run.Library, run.Module, run.Stocks, run.Steps,
		StatusRunning, run.StartedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", run.ID, err)
	}
	return nil
}

// FinishRun records the outcome of a run. A nil runErr marks it succeeded.
func (r *Repository) FinishRun(ctx context.Context, id string, steps int, duration time.Duration, runErr error) error {
	status, msg := StatusSucceeded, ""
	if runErr != nil {
		status, msg = StatusFailed, runErr.Error()
	}

	res, err := r.db.DB().ExecContext(ctx, `
		UPDATE runs
		SET status = ?, error_message = ?, steps = ?, duration_ms = ?, finished_at = ?
		WHERE id = ?`,
		status, msg, steps, duration.Milliseconds(), time.Now().UnixMilli(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finish run %s: %w", id, ErrRunNotFound)
	}
	return nil
}

// GetRun returns a single run.
func (r *Repository) GetRun(ctx context.Context, id string) (*Run, error) {
	row := r.db.DB().QueryRowContext(ctx, `
		SELECT id, mode, library, module, stocks, steps, status, error_message,
		       duration_ms, started_at, finished_at
		FROM runs WHERE id = ?`, id)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get run %s: %w", id, ErrRunNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read run %s: %w", id, err)
	}
	return run, nil
}

// ListRuns returns the most recent runs first. limit <= 0 means 50.
func (r *Repository) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.DB().QueryContext(ctx, `
		SELECT id, mode, library, module, stocks, steps, status, error_message,
		       duration_ms, started_at, finished_at
		FROM runs ORDER BY started_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// DeleteRun removes a run and, through the foreign key, its values.
func (r *Repository) DeleteRun(ctx context.Context, id string) error {
	res, err := r.db.DB().ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("delete run %s: %w", id, ErrRunNotFound)
	}
	return nil
}

// InsertValues writes values in one transaction. Writing a cell twice keeps
// the latest value.
func (r *Repository) InsertValues(ctx context.Context, values []FactorValue) error {
	if len(values) == 0 {
		return nil
	}

	tx, err := r.db.DB().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO factor_values (run_id, buffer, step, stock, value)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (run_id, buffer, step, stock) DO UPDATE SET value = excluded.value`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, v := range values {
		if _, err := stmt.ExecContext(ctx, v.RunID, v.Buffer, v.Step, v.Stock, nullableValue(v.Value)); err != nil {
			return fmt.Errorf("failed to insert value %s[%d][%d]: %w", v.Buffer, v.Step, v.Stock, err)
		}
	}

	return tx.Commit()
}

// Values returns the stored values of one buffer ordered by step then stock.
func (r *Repository) Values(ctx context.Context, runID, buffer string) ([]FactorValue, error) {
	rows, err := r.db.DB().QueryContext(ctx, `
		SELECT step, stock, value FROM factor_values
		WHERE run_id = ? AND buffer = ?
		ORDER BY step, stock`, runID, buffer)
	if err != nil {
		return nil, fmt.Errorf("failed to query values: %w", err)
	}
	defer rows.Close()

	var out []FactorValue
	for rows.Next() {
		v := FactorValue{RunID: runID, Buffer: buffer}
		var value sql.NullFloat64
		if err := rows.Scan(&v.Step, &v.Stock, &value); err != nil {
			return nil, fmt.Errorf("failed to scan value: %w", err)
		}
		v.Value = float32(math.NaN())
		if value.Valid {
			v.Value = float32(value.Float64)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// CountValues returns how many cells a run has stored.
func (r *Repository) CountValues(ctx context.Context, runID string) (int, error) {
	var n int
	err := r.db.DB().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM factor_values WHERE run_id = ?`, runID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count values: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(s rowScanner) (*Run, error) {
	var (
		run        Run
		durationMS int64
		startedAt  int64
		finishedAt sql.NullInt64
	)
	err := s.Scan(&run.ID, &run.Mode, &run.Library, &run.Module, &run.Stocks, &run.Steps,
		&run.Status, &run.ErrorMessage, &durationMS, &startedAt, &finishedAt)
	if err != nil {
		return nil, err
	}

	run.Duration = time.Duration(durationMS) * time.Millisecond
	run.StartedAt = time.UnixMilli(startedAt)
	if finishedAt.Valid {
		run.FinishedAt = time.UnixMilli(finishedAt.Int64)
	}
	return &run, nil
}

func nullableValue(v float32) interface{} {
	if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
		return nil
	}
	return float64(v)
}
