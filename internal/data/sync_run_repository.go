package data

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// SyncRunRepository records synchronization attempts.
type SyncRunRepository struct {
	DB *sqlx.DB
}

// NewSyncRunRepository creates a new SyncRunRepository.
func NewSyncRunRepository(db *sqlx.DB) *SyncRunRepository {
	return &SyncRunRepository{DB: db}
}

// Create stores a started run.
func (r *SyncRunRepository) Create(ctx context.Context, run *SyncRun) error {
	_, err := r.DB.NamedExecContext(ctx, `INSERT INTO moodle_sync_runs
		(id, kind, triggered_by, started_at, finished_at, items, courses, success, message, errors)
		VALUES (:id, :kind, :triggered_by, :started_at, :finished_at, :items, :courses, :success, :message, :errors)`, run)
	if err != nil {
		return fmt.Errorf("failed to create sync run: %w", err)
	}
	return nil
}

// Finish stores the outcome of a run.
func (r *SyncRunRepository) Finish(ctx context.Context, run *SyncRun) error {
	_, err := r.DB.NamedExecContext(ctx, `UPDATE moodle_sync_runs SET
		finished_at = :finished_at, items = :items, courses = :courses,
		success = :success, message = :message, errors = :errors
		WHERE id = :id`, run)
	if err != nil {
		return fmt.Errorf("failed to finish sync run %s: %w", run.ID, err)
	}
	return nil
}

// Latest returns the most recent runs, newest first.
func (r *SyncRunRepository) Latest(ctx context.Context, limit int) ([]*SyncRun, error) {
	var runs []*SyncRun
	err := r.DB.SelectContext(ctx, &runs, `SELECT id, kind, triggered_by, started_at, finished_at, items, courses, success, message, errors
		FROM moodle_sync_runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	return runs, nil
}
