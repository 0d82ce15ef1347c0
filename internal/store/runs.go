package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/johnwards/insights/internal/domain"
)

// SQLiteRunStore persists the history of scheduled report runs.
type SQLiteRunStore struct {
	db *sql.DB
}

// NewSQLiteRunStore creates a new SQLiteRunStore.
func NewSQLiteRunStore(db *sql.DB) *SQLiteRunStore {
	return &SQLiteRunStore{db: db}
}

// Record appends a run.
func (s *SQLiteRunStore) Record(ctx context.Context, run domain.ScheduleRun) error {
	var errText sql.NullString
	if run.Error != "" {
		errText = sql.NullString{String: run.Error, Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO schedule_runs (schedule_id, report_id, ran_at, status, error, rows, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ScheduleID, run.ReportID, run.RanAt.UTC().Format(timestampLayout), run.Status, errText, run.Rows, run.DurationMs,
	)
	if err != nil {
		return fmt.Errorf("record run of %s: %w", run.ScheduleID, err)
	}
	return nil
}

// List returns the most recent runs of a schedule, newest first. limit <= 0
// returns at most 50.
func (s *SQLiteRunStore) List(ctx context.Context, scheduleID string, limit int) ([]domain.ScheduleRun, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, schedule_id, report_id, ran_at, status, error, rows, duration_ms
		 FROM schedule_runs WHERE schedule_id = ?
		 ORDER BY ran_at DESC, id DESC LIMIT ?`,
		scheduleID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list runs of %s: %w", scheduleID, err)
	}
	defer func() { _ = rows.Close() }()

	runs := []domain.ScheduleRun{}
	for rows.Next() {
		var (
			run     domain.ScheduleRun
			ranAt   string
			errText sql.NullString
		)
		if err := rows.Scan(&run.ID, &run.ScheduleID, &run.ReportID, &ranAt, &run.Status, &errText, &run.Rows, &run.DurationMs); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.RanAt, err = time.Parse(timestampLayout, ranAt)
		if err != nil {
			return nil, fmt.Errorf("parse ran_at %q: %w", ranAt, err)
		}
		run.Error = errText.String
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
