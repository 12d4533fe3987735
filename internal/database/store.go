package database

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/marketpulse/scheduler/internal/domain"
)

// Store bundles the individual repositories behind the single facade the
// scheduler and pipeline depend on. Jobs, Executions,
// Dependencies and Collection Log rows are exclusively owned here; the
// scheduler only ever holds ids.
type Store struct {
	Assets     *AssetRepository
	Jobs       *JobRepository
	Deps       *DependencyRepository
	Executions *ExecutionRepository
	Logs       *CollectionLogRepository
}

// NewStore wires every repository onto a shared connection pool.
func NewStore(db *sqlx.DB) *Store {
	return &Store{
		Assets:     NewAssetRepository(db),
		Jobs:       NewJobRepository(db),
		Deps:       NewDependencyRepository(db),
		Executions: NewExecutionRepository(db),
		Logs:       NewCollectionLogRepository(db),
	}
}

// The methods below delegate to the owning repository so that *Store alone
// satisfies the narrow interfaces the scheduler depends on, letting it swap
// in a fake store in tests without reaching into individual repositories.

// GetJob delegates to Jobs.
func (s *Store) GetJob(ctx context.Context, jobID string) (*domain.Job, error) {
	return s.Jobs.GetJob(ctx, jobID)
}

// LoadActiveJobs delegates to Jobs.
func (s *Store) LoadActiveJobs(ctx context.Context) ([]*domain.Job, error) {
	return s.Jobs.LoadActiveJobs(ctx)
}

// SetStatus delegates to Jobs.
func (s *Store) SetStatus(ctx context.Context, jobID, status string, nextRunAt *time.Time) error {
	return s.Jobs.SetStatus(ctx, jobID, status, nextRunAt)
}

// Exists delegates to Jobs.
func (s *Store) Exists(ctx context.Context, jobID string) (bool, error) {
	return s.Jobs.Exists(ctx, jobID)
}

// SetCurrentRetryAttempt delegates to Jobs.
func (s *Store) SetCurrentRetryAttempt(ctx context.Context, jobID string, attempt int) error {
	return s.Jobs.SetCurrentRetryAttempt(ctx, jobID, attempt)
}

// GetDependencies delegates to Deps.
func (s *Store) GetDependencies(ctx context.Context, jobID string) ([]domain.JobDependency, error) {
	return s.Deps.GetDependencies(ctx, jobID)
}

// GetDependents delegates to Deps.
func (s *Store) GetDependents(ctx context.Context, jobID string) ([]domain.JobDependency, error) {
	return s.Deps.GetDependents(ctx, jobID)
}

// LastExecution delegates to Executions.
func (s *Store) LastExecution(ctx context.Context, jobID string) (*domain.Execution, error) {
	return s.Executions.LastExecution(ctx, jobID)
}

// RecordExecution delegates to Executions, supplying Jobs so last_run_at is
// touched in the same call.
func (s *Store) RecordExecution(ctx context.Context, e *domain.Execution) error {
	return s.Executions.RecordExecution(ctx, s.Jobs, e)
}

// CreateJob delegates to Jobs.
func (s *Store) CreateJob(ctx context.Context, j *domain.Job) error {
	return s.Jobs.CreateJob(ctx, j)
}

// CreateJobWithDependencies delegates to Jobs, which wraps both writes in
// one transaction.
func (s *Store) CreateJobWithDependencies(ctx context.Context, j *domain.Job, deps []domain.JobDependency) error {
	return s.Jobs.CreateJobWithDependencies(ctx, j, deps)
}

// ListJobs delegates to Jobs, pre-loading dependencies via Deps.
func (s *Store) ListJobs(ctx context.Context, params ListJobsParams) ([]*domain.Job, error) {
	return s.Jobs.ListJobs(ctx, s.Deps, params)
}

// UpdateJob delegates to Jobs.
func (s *Store) UpdateJob(ctx context.Context, jobID string, fields map[string]any) (*domain.Job, error) {
	return s.Jobs.UpdateJob(ctx, jobID, fields)
}

// DeleteJob delegates to Jobs.
func (s *Store) DeleteJob(ctx context.Context, jobID string) error {
	return s.Jobs.DeleteJob(ctx, jobID)
}

// WouldCreateCycle delegates to Deps.
func (s *Store) WouldCreateCycle(ctx context.Context, childJobID, parentJobID string) (bool, error) {
	return s.Deps.WouldCreateCycle(ctx, childJobID, parentJobID)
}

// ListExecutions delegates to Executions.
func (s *Store) ListExecutions(ctx context.Context, jobID string, limit, offset int) ([]*domain.Execution, error) {
	return s.Executions.ListExecutions(ctx, jobID, limit, offset)
}
