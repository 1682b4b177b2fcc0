// Package batch sweeps the full license roster: it auto-verifies what it
// can and queues manual-review tasks for the rest, tracking progress in a
// durable job record across a potentially multi-hour run.
package batch

import (
	"context"
	"time"

	"license-watch-go/db"
	"license-watch-go/scrapers"
)

// The orchestrator's collaborators, defined consumer-side so the sweep
// logic can be exercised against fakes. *db.DB satisfies all the store
// interfaces.

// RosterStore is paged, read-only access to non-archived licenses
// ordered by a stable key.
type RosterStore interface {
	CountActiveLicenses(ctx context.Context) (int, error)
	ListActiveLicenses(ctx context.Context, afterID int64, limit int) ([]db.License, error)
	TouchLastChecked(ctx context.Context, licenseID int64) error
	TouchLastVerified(ctx context.Context, licenseID int64) error
}

// TaskStore creates manual-review tasks and answers the pending-task
// idempotency check.
type TaskStore interface {
	HasPendingReviewTask(ctx context.Context, licenseID int64) (bool, error)
	CreateReviewTask(ctx context.Context, task db.ReviewTask) error
}

// VerificationStore records lookup outcomes and passive placeholders.
type VerificationStore interface {
	RecordResult(ctx context.Context, licenseID int64, jobID string, res scrapers.Result) error
	RecordPassivePlaceholder(ctx context.Context, licenseID int64, jobID string) error
}

// JobStore persists job lifecycle and incremental progress.
type JobStore interface {
	CreateJob(ctx context.Context, job *db.Job) error
	UpdateJobProgress(ctx context.Context, job *db.Job) error
	FinalizeJob(ctx context.Context, job *db.Job) error
}

// EnrollmentStore reads the per-license passive-notification flag.
type EnrollmentStore interface {
	IsPassivelyEnrolled(ctx context.Context, licenseID int64) (bool, error)
}

// SourceCatalog resolves the active verification source for a
// (jurisdiction, category) pair.
type SourceCatalog interface {
	ActiveSourceID(ctx context.Context, jurisdiction, category string) (int64, bool, error)
}

// Verifier is the lookup entry point; satisfied by *scrapers.Registry.
type Verifier interface {
	VerifyLicense(ctx context.Context, req scrapers.LookupRequest) scrapers.Result
	TimeoutFor(jurisdiction string) time.Duration
}

// Publisher receives job lifecycle events for anyone watching (the
// websocket hub). Optional.
type Publisher interface {
	Publish(eventType string, data any)
}
