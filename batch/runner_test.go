package batch

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"license-watch-go/db"
	"license-watch-go/scrapers"
)

// fakeStore backs every store interface in memory.
type fakeStore struct {
	mu           sync.Mutex
	licenses     []db.License
	enrolled     map[int64]bool
	pending      map[int64]bool
	sources      map[string]int64
	tasks        []db.ReviewTask
	results      map[int64]scrapers.Result
	placeholders []int64
	lastVerified []int64
	lastChecked  []int64
	jobs         map[string]*db.Job
	flushes      int
}

func newFakeStore(licenses []db.License) *fakeStore {
	return &fakeStore{
		licenses: licenses,
		enrolled: map[int64]bool{},
		pending:  map[int64]bool{},
		sources:  map[string]int64{},
		results:  map[int64]scrapers.Result{},
		jobs:     map[string]*db.Job{},
	}
}

func (s *fakeStore) CountActiveLicenses(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.licenses), nil
}

func (s *fakeStore) ListActiveLicenses(ctx context.Context, afterID int64, limit int) ([]db.License, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var page []db.License
	for _, lic := range s.licenses {
		if lic.ID > afterID {
			page = append(page, lic)
		}
		if len(page) == limit {
			break
		}
	}
	return page, nil
}

func (s *fakeStore) addLicense(lic db.License) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.licenses = append(s.licenses, lic)
}

func (s *fakeStore) TouchLastChecked(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastChecked = append(s.lastChecked, id)
	return nil
}

func (s *fakeStore) TouchLastVerified(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastVerified = append(s.lastVerified, id)
	return nil
}

func (s *fakeStore) HasPendingReviewTask(ctx context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending[id], nil
}

func (s *fakeStore) CreateReviewTask(ctx context.Context, task db.ReviewTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = append(s.tasks, task)
	s.pending[task.LicenseID] = true
	return nil
}

func (s *fakeStore) RecordResult(ctx context.Context, id int64, jobID string, res scrapers.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[id] = res
	return nil
}

func (s *fakeStore) RecordPassivePlaceholder(ctx context.Context, id int64, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.placeholders = append(s.placeholders, id)
	return nil
}

func (s *fakeStore) IsPassivelyEnrolled(ctx context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enrolled[id], nil
}

func (s *fakeStore) ActiveSourceID(ctx context.Context, jurisdiction, category string) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.sources[jurisdiction+"|"+category]
	return id, ok, nil
}

func (s *fakeStore) CreateJob(ctx context.Context, job *db.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *job
	s.jobs[job.ID] = &copied
	return nil
}

func (s *fakeStore) UpdateJobProgress(ctx context.Context, job *db.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *job
	s.jobs[job.ID] = &copied
	s.flushes++
	return nil
}

func (s *fakeStore) FinalizeJob(ctx context.Context, job *db.Job) error {
	return s.UpdateJobProgress(ctx, job)
}

// fakeVerifier scripts per-license outcomes.
type fakeVerifier struct {
	mu      sync.Mutex
	outcome func(req scrapers.LookupRequest) scrapers.Result
	calls   []scrapers.LookupRequest
}

func (v *fakeVerifier) VerifyLicense(ctx context.Context, req scrapers.LookupRequest) scrapers.Result {
	v.mu.Lock()
	v.calls = append(v.calls, req)
	v.mu.Unlock()
	return v.outcome(req)
}

func (v *fakeVerifier) TimeoutFor(jurisdiction string) time.Duration { return time.Second }

func (v *fakeVerifier) callCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.calls)
}

type fakePublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *fakePublisher) Publish(eventType string, data any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, eventType)
}

func cleanResult() scrapers.Result {
	return scrapers.Result{Success: true, Status: scrapers.StatusActive, Unencumbered: true}
}

func makeLicenses(n int) []db.License {
	out := make([]db.License, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, db.License{
			ID:             int64(i),
			HolderName:     fmt.Sprintf("Holder %d", i),
			LicenseNumber:  fmt.Sprintf("RN%05d", i),
			Jurisdiction:   "CA",
			CredentialType: scrapers.CredentialRN,
			Status:         db.LicenseActive,
		})
	}
	return out
}

func newTestRunner(store *fakeStore, verifier *fakeVerifier, pub *fakePublisher) *Runner {
	var events Publisher
	if pub != nil {
		events = pub
	}
	return NewRunner(Deps{
		Roster:        store,
		Tasks:         store,
		Verifications: store,
		Jobs:          store,
		Enrollments:   store,
		Catalog:       store,
		Verifier:      verifier,
		Events:        events,
	}, Config{PageSize: 10, Workers: 3, LookupTimeout: time.Second})
}

func TestRunAllClean(t *testing.T) {
	store := newFakeStore(makeLicenses(25))
	verifier := &fakeVerifier{outcome: func(scrapers.LookupRequest) scrapers.Result { return cleanResult() }}
	pub := &fakePublisher{}

	job, err := newTestRunner(store, verifier, pub).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, db.JobCompleted, job.Status)
	assert.Equal(t, 25, job.TotalLicenses)
	assert.Equal(t, 25, job.Processed)
	assert.Equal(t, 25, job.AutoVerified)
	assert.Zero(t, job.TasksCreated)
	assert.Zero(t, job.ErrorCount)
	require.NotNil(t, job.CompletedAt)
	assert.Equal(t, 25, verifier.callCount())
	assert.Len(t, store.lastVerified, 25)
	assert.Empty(t, store.tasks)

	require.NotEmpty(t, pub.events)
	assert.Equal(t, EventJobStarted, pub.events[0])
	assert.Equal(t, EventJobCompleted, pub.events[len(pub.events)-1])
}

// One license throwing mid-lookup must cost exactly one error entry, not
// the sweep.
func TestRunSurvivesPanicOnOneLicense(t *testing.T) {
	store := newFakeStore(makeLicenses(100))
	verifier := &fakeVerifier{outcome: func(req scrapers.LookupRequest) scrapers.Result {
		if req.LicenseNumber == "RN00047" {
			panic("board site redesigned overnight")
		}
		return cleanResult()
	}}

	job, err := newTestRunner(store, verifier, nil).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, db.JobCompleted, job.Status)
	assert.Equal(t, 100, job.Processed)
	assert.Equal(t, 99, job.AutoVerified)
	assert.Equal(t, 1, job.ErrorCount)
	require.Len(t, job.Errors, 1)
	assert.Equal(t, int64(47), job.Errors[0].LicenseID)
	assert.Contains(t, job.Errors[0].Message, "panic")
}

func TestRunPassiveEnrollmentSkipsLookup(t *testing.T) {
	store := newFakeStore(makeLicenses(3))
	store.enrolled[2] = true
	verifier := &fakeVerifier{outcome: func(scrapers.LookupRequest) scrapers.Result { return cleanResult() }}

	job, err := newTestRunner(store, verifier, nil).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, job.Processed)
	assert.Equal(t, 3, job.AutoVerified)
	assert.Equal(t, 2, verifier.callCount(), "enrolled license never reaches an adapter")
	assert.Equal(t, []int64{2}, store.placeholders)
}

func TestRunInconclusiveCreatesTask(t *testing.T) {
	exp := time.Now().UTC().Add(20 * 24 * time.Hour)
	licenses := makeLicenses(2)
	licenses[1].ExpiresAt = &exp
	store := newFakeStore(licenses)
	store.sources["CA|nursing"] = 77

	verifier := &fakeVerifier{outcome: func(req scrapers.LookupRequest) scrapers.Result {
		if req.LicenseNumber == "RN00002" {
			return scrapers.Failure(scrapers.FailureNotFound, "board reported no match")
		}
		return cleanResult()
	}}

	job, err := newTestRunner(store, verifier, nil).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, job.AutoVerified)
	assert.Equal(t, 1, job.TasksCreated)
	require.Len(t, store.tasks, 1)

	task := store.tasks[0]
	assert.Equal(t, int64(2), task.LicenseID)
	assert.Equal(t, 5, task.Priority, "expires within 30 days")
	require.NotNil(t, task.SourceID)
	assert.Equal(t, int64(77), *task.SourceID)
	assert.WithinDuration(t, time.Now().UTC().Add(reviewWindow), task.DueAt, time.Minute)

	res, ok := store.results[2]
	require.True(t, ok, "the failed lookup is still recorded")
	assert.Equal(t, scrapers.FailureNotFound, res.FailureKind)
}

func TestRunExistingPendingTaskNotDuplicated(t *testing.T) {
	store := newFakeStore(makeLicenses(1))
	store.pending[1] = true
	verifier := &fakeVerifier{outcome: func(scrapers.LookupRequest) scrapers.Result {
		return scrapers.Failure(scrapers.FailureScraperError, "timeout")
	}}

	job, err := newTestRunner(store, verifier, nil).Run(context.Background())
	require.NoError(t, err)

	assert.Zero(t, job.TasksCreated)
	assert.Empty(t, store.tasks)
	assert.Equal(t, []int64{1}, store.lastChecked, "last-checked still advances")
}

// A second sweep over an unchanged roster must not pile up duplicate
// tasks: the first run's pending task satisfies the dedupe check.
func TestRunTwiceIsIdempotentForTasks(t *testing.T) {
	store := newFakeStore(makeLicenses(5))
	verifier := &fakeVerifier{outcome: func(scrapers.LookupRequest) scrapers.Result {
		return scrapers.Failure(scrapers.FailureParseError, "no extractable fields")
	}}
	runner := newTestRunner(store, verifier, nil)

	_, err := runner.Run(context.Background())
	require.NoError(t, err)
	_, err = runner.Run(context.Background())
	require.NoError(t, err)

	assert.Len(t, store.tasks, 5, "second sweep adds no duplicates")
}

func TestRunActiveButEncumberedGoesToReview(t *testing.T) {
	store := newFakeStore(makeLicenses(1))
	verifier := &fakeVerifier{outcome: func(scrapers.LookupRequest) scrapers.Result {
		return scrapers.Result{Success: true, Status: scrapers.StatusActive, Unencumbered: false}
	}}

	job, err := newTestRunner(store, verifier, nil).Run(context.Background())
	require.NoError(t, err)

	assert.Zero(t, job.AutoVerified)
	assert.Equal(t, 1, job.TasksCreated)
}

func TestRunCancellationFailsJobWithPartialRecord(t *testing.T) {
	store := newFakeStore(makeLicenses(30))
	ctx, cancel := context.WithCancel(context.Background())

	verifier := &fakeVerifier{}
	verifier.outcome = func(scrapers.LookupRequest) scrapers.Result {
		if verifier.callCount() >= 10 {
			cancel()
		}
		return cleanResult()
	}

	job, err := newTestRunner(store, verifier, nil).Run(ctx)
	require.Error(t, err)

	assert.Equal(t, db.JobFailed, job.Status)
	require.NotNil(t, job.CompletedAt)
	require.NotEmpty(t, job.Errors)
	last := job.Errors[len(job.Errors)-1]
	assert.Zero(t, last.LicenseID)
	assert.Contains(t, last.Message, "sweep aborted")

	stored := store.jobs[job.ID]
	require.NotNil(t, stored)
	assert.Equal(t, db.JobFailed, stored.Status, "partial record is durable")
	assert.Greater(t, stored.Processed, 0)
}

// Licenses added to a live roster while a sweep is running wait for the
// next sweep: processed never exceeds the total counted at job start.
func TestRunBoundedByTotalAtStart(t *testing.T) {
	store := newFakeStore(makeLicenses(2))
	var grown sync.Once
	verifier := &fakeVerifier{}
	verifier.outcome = func(scrapers.LookupRequest) scrapers.Result {
		grown.Do(func() {
			store.addLicense(db.License{
				ID:             3,
				HolderName:     "Late Arrival",
				LicenseNumber:  "RN00003",
				Jurisdiction:   "CA",
				CredentialType: scrapers.CredentialRN,
				Status:         db.LicenseActive,
			})
		})
		return cleanResult()
	}

	job, err := newTestRunner(store, verifier, nil).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, db.JobCompleted, job.Status)
	assert.Equal(t, 2, job.TotalLicenses)
	assert.Equal(t, 2, job.Processed)
	assert.LessOrEqual(t, job.Processed, job.TotalLicenses)
	assert.Equal(t, 2, verifier.callCount(), "the late row is not swept this run")
}

func TestRunEmptyRoster(t *testing.T) {
	store := newFakeStore(nil)
	verifier := &fakeVerifier{outcome: func(scrapers.LookupRequest) scrapers.Result { return cleanResult() }}

	job, err := newTestRunner(store, verifier, nil).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, db.JobCompleted, job.Status)
	assert.Zero(t, job.TotalLicenses)
	assert.Zero(t, job.Processed)
}

// Counters must reconcile: every license is processed exactly once and
// lands in exactly one bucket.
func TestRunCountersConsistent(t *testing.T) {
	store := newFakeStore(makeLicenses(40))
	verifier := &fakeVerifier{outcome: func(req scrapers.LookupRequest) scrapers.Result {
		switch {
		case req.LicenseNumber == "RN00007":
			panic("boom")
		case req.LicenseNumber < "RN00020":
			return cleanResult()
		default:
			return scrapers.Failure(scrapers.FailureScraperError, "selector drift")
		}
	}}

	job, err := newTestRunner(store, verifier, nil).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 40, job.Processed)
	assert.Equal(t, job.Processed, job.AutoVerified+job.TasksCreated+job.ErrorCount)
}

func TestRunPagesInOrder(t *testing.T) {
	store := newFakeStore(makeLicenses(25))
	verifier := &fakeVerifier{outcome: func(scrapers.LookupRequest) scrapers.Result { return cleanResult() }}

	_, err := newTestRunner(store, verifier, nil).Run(context.Background())
	require.NoError(t, err)

	seen := make([]string, 0, len(verifier.calls))
	verifier.mu.Lock()
	for _, c := range verifier.calls {
		seen = append(seen, c.LicenseNumber)
	}
	verifier.mu.Unlock()
	sort.Strings(seen)
	require.Len(t, seen, 25)
	assert.Equal(t, "RN00001", seen[0])
	assert.Equal(t, "RN00025", seen[len(seen)-1])
}

func TestLastNameOf(t *testing.T) {
	assert.Equal(t, "Doe", lastNameOf("Jane Doe"))
	assert.Equal(t, "Garcia", lastNameOf("Maria de los Angeles Garcia"))
	assert.Equal(t, "", lastNameOf("Cher"))
	assert.Equal(t, "", lastNameOf(""))
}
