package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Verification job states. Terminal states are reached exactly once.
const (
	JobPending   = "pending"
	JobRunning   = "running"
	JobCompleted = "completed"
	JobFailed    = "failed"
)

// JobError is one append-only error entry on a job.
type JobError struct {
	LicenseID int64     `json:"license_id"`
	Message   string    `json:"message"`
	At        time.Time `json:"at"`
}

// Job is the durable record of one batch sweep. Counters only ever grow;
// Errors is append-only.
type Job struct {
	ID            string
	Status        string
	TotalLicenses int
	Processed     int
	AutoVerified  int
	TasksCreated  int
	ErrorCount    int
	Errors        []JobError
	StartedAt     time.Time
	CompletedAt   *time.Time
}

// CreateJob inserts the initial job record.
func (d *DB) CreateJob(ctx context.Context, job *Job) error {
	_, err := d.pool.ExecContext(ctx,
		`INSERT INTO verification_jobs (id, status, total_licenses, started_at)
		 VALUES ($1, $2, $3, $4)`,
		job.ID, job.Status, job.TotalLicenses, job.StartedAt)
	return err
}

// UpdateJobProgress flushes the job's current counters and error list.
// Called periodically mid-run so a crash leaves an accurate partial
// record rather than silence.
func (d *DB) UpdateJobProgress(ctx context.Context, job *Job) error {
	details, err := json.Marshal(job.Errors)
	if err != nil {
		return fmt.Errorf("db: marshal job errors: %w", err)
	}
	_, err = d.pool.ExecContext(ctx,
		`UPDATE verification_jobs
		 SET status = $2, total_licenses = $3, processed = $4, auto_verified = $5,
		     tasks_created = $6, error_count = $7, error_details = $8
		 WHERE id = $1`,
		job.ID, job.Status, job.TotalLicenses, job.Processed, job.AutoVerified,
		job.TasksCreated, job.ErrorCount, details)
	return err
}

// FinalizeJob writes the terminal state and completion timestamp.
func (d *DB) FinalizeJob(ctx context.Context, job *Job) error {
	if err := d.UpdateJobProgress(ctx, job); err != nil {
		return err
	}
	_, err := d.pool.ExecContext(ctx,
		`UPDATE verification_jobs SET completed_at = NOW() WHERE id = $1`, job.ID)
	return err
}

// GetJob loads one job record, or nil if it doesn't exist.
func (d *DB) GetJob(ctx context.Context, id string) (*Job, error) {
	var job Job
	var details []byte
	err := d.pool.QueryRowContext(ctx,
		`SELECT id, status, total_licenses, processed, auto_verified,
		        tasks_created, error_count, error_details, started_at, completed_at
		 FROM verification_jobs WHERE id = $1`, id).
		Scan(&job.ID, &job.Status, &job.TotalLicenses, &job.Processed, &job.AutoVerified,
			&job.TasksCreated, &job.ErrorCount, &details, &job.StartedAt, &job.CompletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(details) > 0 {
		if err := json.Unmarshal(details, &job.Errors); err != nil {
			return nil, fmt.Errorf("db: unmarshal job errors: %w", err)
		}
	}
	return &job, nil
}
