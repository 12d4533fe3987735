package retrypolicy_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketpulse/scheduler/internal/domain"
	"github.com/marketpulse/scheduler/internal/retrypolicy"
)

type fakeStore struct {
	job          *domain.Job
	exists       bool
	statusSet    string
	attemptSet   int
	nextRunAtSet *time.Time
}

func (f *fakeStore) GetJob(ctx context.Context, jobID string) (*domain.Job, error) {
	return f.job, nil
}
func (f *fakeStore) Exists(ctx context.Context, jobID string) (bool, error) { return f.exists, nil }
func (f *fakeStore) SetStatus(ctx context.Context, jobID, status string, nextRunAt *time.Time) error {
	f.statusSet = status
	f.nextRunAtSet = nextRunAt
	return nil
}
func (f *fakeStore) SetCurrentRetryAttempt(ctx context.Context, jobID string, attempt int) error {
	f.attemptSet = attempt
	return nil
}

type fakeScheduler struct {
	scheduledJobID string
	scheduledAt    time.Time
	retryAttempt   int
}

func (f *fakeScheduler) ScheduleOneShot(jobID string, at time.Time, retryAttempt int) {
	f.scheduledJobID = jobID
	f.scheduledAt = at
	f.retryAttempt = retryAttempt
}

func TestHandleTransientFailure_SchedulesRetryWithinLimit(t *testing.T) {
	store := &fakeStore{job: &domain.Job{
		JobID: "job-1", MaxRetries: 3, RetryDelaySeconds: 60, RetryBackoffMultiplier: 2,
	}}
	sched := &fakeScheduler{}
	c := retrypolicy.New(store, sched, nil)

	require.NoError(t, c.HandleTransientFailure(context.Background(), "job-1", 0))

	assert.Equal(t, "job-1", sched.scheduledJobID)
	assert.Equal(t, 1, sched.retryAttempt)
	assert.Equal(t, 1, store.attemptSet)
	assert.Empty(t, store.statusSet)
}

func TestHandleTransientFailure_ExhaustsRetriesMarksFailed(t *testing.T) {
	store := &fakeStore{job: &domain.Job{JobID: "job-1", MaxRetries: 2}}
	sched := &fakeScheduler{}
	c := retrypolicy.New(store, sched, nil)

	require.NoError(t, c.HandleTransientFailure(context.Background(), "job-1", 2))

	assert.Equal(t, domain.JobStatusFailed, store.statusSet)
	assert.Empty(t, sched.scheduledJobID)
}

func TestBackoffDelay_Exponential(t *testing.T) {
	store := &fakeStore{job: &domain.Job{JobID: "job-1", MaxRetries: 5, RetryDelaySeconds: 10, RetryBackoffMultiplier: 2}}
	sched := &fakeScheduler{}
	c := retrypolicy.New(store, sched, nil)

	start := time.Now()
	require.NoError(t, c.HandleTransientFailure(context.Background(), "job-1", 1))
	// attempt=1 -> delay = 10 * 2^1 = 20s
	assert.WithinDuration(t, start.Add(20*time.Second), sched.scheduledAt, 2*time.Second)
}

func TestShouldFire_FalseWhenJobDeleted(t *testing.T) {
	store := &fakeStore{exists: false}
	c := retrypolicy.New(store, &fakeScheduler{}, nil)

	ok, err := c.ShouldFire(context.Background(), "gone")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestShouldFire_FalseWhenJobPaused(t *testing.T) {
	store := &fakeStore{exists: true, job: &domain.Job{Status: domain.JobStatusPaused}}
	c := retrypolicy.New(store, &fakeScheduler{}, nil)

	ok, err := c.ShouldFire(context.Background(), "job-1")
	require.NoError(t, err)
	assert.False(t, ok)
}
