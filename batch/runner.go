package batch

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"license-watch-go/db"
	"license-watch-go/scrapers"
)

// Job lifecycle events published to watchers.
const (
	EventJobStarted   = "job_started"
	EventJobProgress  = "job_progress"
	EventJobCompleted = "job_completed"
	EventJobFailed    = "job_failed"
)

// JobEvent is the payload for all job lifecycle events.
type JobEvent struct {
	JobID        string `json:"job_id"`
	Status       string `json:"status"`
	Total        int    `json:"total"`
	Processed    int    `json:"processed"`
	AutoVerified int    `json:"auto_verified"`
	TasksCreated int    `json:"tasks_created"`
	ErrorCount   int    `json:"error_count"`
}

// Config bounds the sweep. Workers stays small because each lookup owns
// a browser session and board sites rate-limit aggressive parallelism.
type Config struct {
	PageSize      int
	Workers       int
	LookupTimeout time.Duration // fallback when the verifier has no per-board timeout
}

func (c Config) withDefaults() Config {
	if c.PageSize <= 0 {
		c.PageSize = 50
	}
	if c.Workers <= 0 {
		c.Workers = 3
	}
	if c.LookupTimeout <= 0 {
		c.LookupTimeout = 90 * time.Second
	}
	return c
}

// Deps are the orchestrator's collaborators.
type Deps struct {
	Roster        RosterStore
	Tasks         TaskStore
	Verifications VerificationStore
	Jobs          JobStore
	Enrollments   EnrollmentStore
	Catalog       SourceCatalog
	Verifier      Verifier
	Events        Publisher // optional
}

// Runner executes batch verification sweeps.
type Runner struct {
	deps Deps
	cfg  Config
}

// NewRunner builds a sweep runner.
func NewRunner(deps Deps, cfg Config) *Runner {
	return &Runner{deps: deps, cfg: cfg.withDefaults()}
}

// Run performs one full sweep: Begin then Execute.
func (r *Runner) Run(ctx context.Context) (*db.Job, error) {
	job, err := r.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return job, r.Execute(ctx, job)
}

// Begin creates the durable job record with the roster total counted up
// front, so the job is addressable before any license is processed.
func (r *Runner) Begin(ctx context.Context) (*db.Job, error) {
	total, err := r.deps.Roster.CountActiveLicenses(ctx)
	if err != nil {
		return nil, fmt.Errorf("batch: count roster: %w", err)
	}
	job := &db.Job{
		ID:            uuid.NewString(),
		Status:        db.JobPending,
		TotalLicenses: total,
		StartedAt:     time.Now().UTC(),
	}
	if err := r.deps.Jobs.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("batch: create job: %w", err)
	}
	return job, nil
}

// Execute runs the sweep for a job created by Begin. The job always
// reaches exactly one terminal state, even under partial failure or
// cancellation; per-license failures never stop the sweep.
func (r *Runner) Execute(ctx context.Context, job *db.Job) error {
	lg := log.With().Str("job_id", job.ID).Logger()
	lg.Info().Int("total", job.TotalLicenses).Msg("sweep started")

	job.Status = db.JobRunning
	prog := &progress{}
	r.flush(ctx, job, prog)
	r.publish(EventJobStarted, job, prog)

	var loopErr error
	var afterID int64
	scheduled := 0
	for scheduled < job.TotalLicenses {
		if err := ctx.Err(); err != nil {
			loopErr = fmt.Errorf("sweep cancelled: %w", err)
			break
		}
		page, err := r.deps.Roster.ListActiveLicenses(ctx, afterID, r.cfg.PageSize)
		if err != nil {
			loopErr = fmt.Errorf("list roster page after id %d: %w", afterID, err)
			break
		}
		if len(page) == 0 {
			break
		}
		// The total counted at Begin bounds the sweep: rows added to a
		// live roster mid-run wait for the next sweep, so Processed can
		// never exceed TotalLicenses.
		if remaining := job.TotalLicenses - scheduled; len(page) > remaining {
			page = page[:remaining]
		}

		g := new(errgroup.Group)
		g.SetLimit(r.cfg.Workers)
		for _, lic := range page {
			// Cancellation stops scheduling immediately; licenses
			// already in flight run to their own timeout.
			if ctx.Err() != nil {
				break
			}
			lic := lic
			scheduled++
			g.Go(func() error {
				r.processLicense(ctx, job.ID, lic, prog)
				return nil
			})
		}
		_ = g.Wait()

		afterID = page[len(page)-1].ID
		r.flush(ctx, job, prog)
		r.publish(EventJobProgress, job, prog)
	}

	now := time.Now().UTC()
	if loopErr != nil {
		prog.fail(0, "sweep aborted: "+loopErr.Error())
		job.Status = db.JobFailed
	} else {
		job.Status = db.JobCompleted
	}
	prog.snapshotInto(job)
	job.CompletedAt = &now

	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
	defer cancel()
	if err := r.deps.Jobs.FinalizeJob(fctx, job); err != nil {
		lg.Error().Err(err).Msg("finalize job failed")
	}

	event := EventJobCompleted
	if job.Status == db.JobFailed {
		event = EventJobFailed
	}
	r.publish(event, job, prog)

	lg.Info().
		Str("status", job.Status).
		Int("processed", job.Processed).
		Int("auto_verified", job.AutoVerified).
		Int("tasks_created", job.TasksCreated).
		Int("errors", job.ErrorCount).
		Msg("sweep finished")
	return loopErr
}

// processLicense handles one license inside its own fault boundary: any
// panic or store error becomes a job error entry, never an aborted sweep.
func (r *Runner) processLicense(ctx context.Context, jobID string, lic db.License, prog *progress) {
	defer prog.licenseDone()
	defer func() {
		if p := recover(); p != nil {
			log.Error().Str("job_id", jobID).Int64("license_id", lic.ID).Interface("panic", p).Msg("license processing panicked")
			prog.fail(lic.ID, fmt.Sprintf("panic: %v", p))
		}
	}()

	enrolled, err := r.deps.Enrollments.IsPassivelyEnrolled(ctx, lic.ID)
	if err != nil {
		prog.fail(lic.ID, "read passive enrollment: "+err.Error())
		return
	}
	if enrolled {
		// The source notifies us of status changes; record the
		// placeholder and move on without touching an adapter.
		if err := r.deps.Verifications.RecordPassivePlaceholder(ctx, lic.ID, jobID); err != nil {
			prog.fail(lic.ID, "record passive placeholder: "+err.Error())
			return
		}
		if err := r.deps.Roster.TouchLastChecked(ctx, lic.ID); err != nil {
			prog.fail(lic.ID, "touch last checked: "+err.Error())
			return
		}
		prog.autoVerify()
		return
	}

	res := r.lookup(ctx, lic)
	if err := r.deps.Verifications.RecordResult(ctx, lic.ID, jobID, res); err != nil {
		prog.fail(lic.ID, "record result: "+err.Error())
		return
	}

	if res.Success && res.Status == scrapers.StatusActive && res.Unencumbered {
		if err := r.deps.Roster.TouchLastVerified(ctx, lic.ID); err != nil {
			prog.fail(lic.ID, "touch last verified: "+err.Error())
			return
		}
		prog.autoVerify()
		return
	}
	if err := r.deps.Roster.TouchLastChecked(ctx, lic.ID); err != nil {
		prog.fail(lic.ID, "touch last checked: "+err.Error())
		return
	}

	// Inconclusive or negative: queue for a human, unless one is
	// already waiting.
	pending, err := r.deps.Tasks.HasPendingReviewTask(ctx, lic.ID)
	if err != nil {
		prog.fail(lic.ID, "check pending task: "+err.Error())
		return
	}
	if pending {
		return
	}

	now := time.Now().UTC()
	task := db.ReviewTask{
		LicenseID: lic.ID,
		Priority:  PriorityScore(lic.Status, lic.ExpiresAt, now),
		DueAt:     DueDate(now),
	}
	sourceID, ok, err := r.deps.Catalog.ActiveSourceID(ctx, lic.Jurisdiction, lic.CredentialType.SourceCategory())
	if err != nil {
		prog.fail(lic.ID, "resolve verification source: "+err.Error())
		return
	}
	if ok {
		task.SourceID = &sourceID
	}
	if err := r.deps.Tasks.CreateReviewTask(ctx, task); err != nil {
		prog.fail(lic.ID, "create review task: "+err.Error())
		return
	}
	prog.taskCreated()
}

// lookup dispatches one verification with a per-license deadline derived
// from the adapter's timeout. The deadline is detached from job
// cancellation so in-flight browser work is never killed mid-interaction.
func (r *Runner) lookup(ctx context.Context, lic db.License) scrapers.Result {
	timeout := r.deps.Verifier.TimeoutFor(lic.Jurisdiction)
	if timeout <= 0 {
		timeout = r.cfg.LookupTimeout
	}
	lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	return r.deps.Verifier.VerifyLicense(lctx, scrapers.LookupRequest{
		LicenseNumber:  lic.LicenseNumber,
		LastName:       lastNameOf(lic.HolderName),
		Jurisdiction:   lic.Jurisdiction,
		CredentialType: lic.CredentialType,
	})
}

func lastNameOf(holderName string) string {
	parts := strings.Fields(holderName)
	if len(parts) < 2 {
		return ""
	}
	return parts[len(parts)-1]
}

// flush writes a progress snapshot; detached from cancellation so a
// cancelled job still leaves an accurate partial record.
func (r *Runner) flush(ctx context.Context, job *db.Job, prog *progress) {
	prog.snapshotInto(job)
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := r.deps.Jobs.UpdateJobProgress(fctx, job); err != nil {
		log.Error().Str("job_id", job.ID).Err(err).Msg("progress flush failed")
	}
}

func (r *Runner) publish(event string, job *db.Job, prog *progress) {
	if r.deps.Events == nil {
		return
	}
	prog.snapshotInto(job)
	r.deps.Events.Publish(event, JobEvent{
		JobID:        job.ID,
		Status:       job.Status,
		Total:        job.TotalLicenses,
		Processed:    job.Processed,
		AutoVerified: job.AutoVerified,
		TasksCreated: job.TasksCreated,
		ErrorCount:   job.ErrorCount,
	})
}

// progress is the only state shared across concurrent workers; every
// mutation takes the mutex, counters are never read-modify-written
// outside it.
type progress struct {
	mu           sync.Mutex
	processed    int
	autoVerified int
	tasksCreated int
	errors       []db.JobError
}

func (p *progress) licenseDone() {
	p.mu.Lock()
	p.processed++
	p.mu.Unlock()
}

func (p *progress) autoVerify() {
	p.mu.Lock()
	p.autoVerified++
	p.mu.Unlock()
}

func (p *progress) taskCreated() {
	p.mu.Lock()
	p.tasksCreated++
	p.mu.Unlock()
}

func (p *progress) fail(licenseID int64, msg string) {
	p.mu.Lock()
	p.errors = append(p.errors, db.JobError{LicenseID: licenseID, Message: msg, At: time.Now().UTC()})
	p.mu.Unlock()
}

// snapshotInto copies the accumulator into the job record.
func (p *progress) snapshotInto(job *db.Job) {
	p.mu.Lock()
	defer p.mu.Unlock()
	job.Processed = p.processed
	job.AutoVerified = p.autoVerified
	job.TasksCreated = p.tasksCreated
	job.ErrorCount = len(p.errors)
	job.Errors = append([]db.JobError(nil), p.errors...)
}
