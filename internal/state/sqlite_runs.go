package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ErrRunNotFound is returned for an unknown run id.
var ErrRunNotFound = errors.New("sync run not found")

const runColumns = `id, target, status, started_at, completed_at, error`

// CreateRun starts a sync run against target.
func (s *SQLiteStore) CreateRun(ctx context.Context, target string) (*Run, error) {
	if s.db == nil {
		return nil, ErrNotOpen
	}
	run := &Run{
		ID:        generateID(),
		Target:    target,
		Status:    RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}
	s.logger.Debug("creating sync run", slog.String("id", run.ID), slog.String("target", target))

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sync_runs (id, target, status, started_at) VALUES (?, ?, ?, ?)`,
		run.ID, run.Target, string(run.Status), run.StartedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}
	return run, nil
}

// CompleteRun records the outcome of a run.
func (s *SQLiteStore) CompleteRun(ctx context.Context, id string, status RunStatus, errMsg string) error {
	if s.db == nil {
		return ErrNotOpen
	}
	var errValue *string
	if errMsg != "" {
		errValue = &errMsg
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE sync_runs SET status = ?, completed_at = ?, error = ? WHERE id = ?`,
		string(status), time.Now().UTC(), errValue, id,
	)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}

// GetRun returns a run by id.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	if s.db == nil {
		return nil, ErrNotOpen
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM sync_runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// LatestRun returns the most recent run against target, or nil when there
// is none.
func (s *SQLiteStore) LatestRun(ctx context.Context, target string) (*Run, error) {
	if s.db == nil {
		return nil, ErrNotOpen
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM sync_runs WHERE target = ? ORDER BY started_at DESC, rowid DESC LIMIT 1`, target)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest run: %w", err)
	}
	return run, nil
}

func scanRun(row *sql.Row) (*Run, error) {
	var (
		run         Run
		status      string
		completedAt sql.NullTime
		errMsg      sql.NullString
	)
	if err := row.Scan(&run.ID, &run.Target, &status, &run.StartedAt, &completedAt, &errMsg); err != nil {
		return nil, err
	}
	run.Status = RunStatus(status)
	if completedAt.Valid {
		run.CompletedAt = &completedAt.Time
	}
	run.Error = errMsg.String
	return &run, nil
}
