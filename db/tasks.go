package db

import (
	"context"
	"time"
)

// ReviewTask is one queued unit of human verification work.
type ReviewTask struct {
	ID        int64
	LicenseID int64
	SourceID  *int64 // catalog source to verify against, if one is active
	Priority  int    // 0-10
	DueAt     time.Time
}

// HasPendingReviewTask is the orchestrator's idempotency guard: a
// license must never accumulate two simultaneously-pending tasks.
func (d *DB) HasPendingReviewTask(ctx context.Context, licenseID int64) (bool, error) {
	var exists bool
	err := d.pool.QueryRowContext(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM review_tasks WHERE license_id = $1 AND status = 'pending'
		)`, licenseID).Scan(&exists)
	return exists, err
}

// CreateReviewTask inserts a pending manual-review task.
func (d *DB) CreateReviewTask(ctx context.Context, task ReviewTask) error {
	_, err := d.pool.ExecContext(ctx,
		`INSERT INTO review_tasks (license_id, source_id, priority, status, due_at)
		 VALUES ($1, $2, $3, 'pending', $4)`,
		task.LicenseID, task.SourceID, task.Priority, task.DueAt)
	return err
}
