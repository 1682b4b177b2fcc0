package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"license-watch-go/batch"
	"license-watch-go/config"
	"license-watch-go/db"
	"license-watch-go/scrapers"
)

// sweepStore is the minimal in-memory backing a detached sweep needs.
type sweepStore struct {
	mu   sync.Mutex
	jobs map[string]*db.Job
}

func newSweepStore() *sweepStore { return &sweepStore{jobs: map[string]*db.Job{}} }

func (s *sweepStore) put(job *db.Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *job
	s.jobs[job.ID] = &copied
}

func (s *sweepStore) status(id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.jobs[id]; ok {
		return job.Status
	}
	return ""
}

func (s *sweepStore) CountActiveLicenses(ctx context.Context) (int, error) { return 1, nil }

func (s *sweepStore) ListActiveLicenses(ctx context.Context, afterID int64, limit int) ([]db.License, error) {
	if afterID > 0 {
		return nil, nil
	}
	return []db.License{{
		ID:             1,
		LicenseNumber:  "RN00001",
		Jurisdiction:   "CA",
		CredentialType: scrapers.CredentialRN,
		Status:         db.LicenseActive,
	}}, nil
}

func (s *sweepStore) TouchLastChecked(ctx context.Context, id int64) error  { return nil }
func (s *sweepStore) TouchLastVerified(ctx context.Context, id int64) error { return nil }

func (s *sweepStore) HasPendingReviewTask(ctx context.Context, id int64) (bool, error) {
	return true, nil
}
func (s *sweepStore) CreateReviewTask(ctx context.Context, task db.ReviewTask) error { return nil }

func (s *sweepStore) RecordResult(ctx context.Context, id int64, jobID string, res scrapers.Result) error {
	return nil
}
func (s *sweepStore) RecordPassivePlaceholder(ctx context.Context, id int64, jobID string) error {
	return nil
}

func (s *sweepStore) IsPassivelyEnrolled(ctx context.Context, id int64) (bool, error) {
	return false, nil
}

func (s *sweepStore) ActiveSourceID(ctx context.Context, jurisdiction, category string) (int64, bool, error) {
	return 0, false, nil
}

func (s *sweepStore) CreateJob(ctx context.Context, job *db.Job) error         { s.put(job); return nil }
func (s *sweepStore) UpdateJobProgress(ctx context.Context, job *db.Job) error { s.put(job); return nil }
func (s *sweepStore) FinalizeJob(ctx context.Context, job *db.Job) error       { s.put(job); return nil }

type stubVerifier struct{}

func (stubVerifier) VerifyLicense(ctx context.Context, req scrapers.LookupRequest) scrapers.Result {
	return scrapers.Result{Success: true, Status: scrapers.StatusActive, Unencumbered: true}
}

func (stubVerifier) TimeoutFor(jurisdiction string) time.Duration { return time.Second }

// A sweep started over the API rides the server lifecycle: shutdown
// cancels it and the job record is finalized as failed, never left
// stuck in running.
func TestStartJobSweepStopsWithServerLifecycle(t *testing.T) {
	store := newSweepStore()
	runner := batch.NewRunner(batch.Deps{
		Roster:        store,
		Tasks:         store,
		Verifications: store,
		Jobs:          store,
		Enrollments:   store,
		Catalog:       store,
		Verifier:      stubVerifier{},
	}, batch.Config{})

	s := NewServer(&config.Config{APIToken: "secret", APIPort: "0"}, nil, nil, runner, nil)
	lifecycle, cancel := context.WithCancel(context.Background())
	s.lifecycle = lifecycle
	cancel() // the server is already shutting down

	rec := httptest.NewRecorder()
	s.handleStartJob(rec, httptest.NewRequest(http.MethodPost, "/api/v1/jobs", nil))
	require.Equal(t, http.StatusAccepted, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	jobID, _ := body["job_id"].(string)
	require.NotEmpty(t, jobID)

	require.Eventually(t, func() bool {
		return store.status(jobID) == db.JobFailed
	}, 2*time.Second, 10*time.Millisecond, "shutdown must finalize the job")
	require.Eventually(t, func() bool {
		return !s.sweeping.Load()
	}, 2*time.Second, 10*time.Millisecond, "the singleflight guard must release")
}
