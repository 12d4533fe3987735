package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/marketpulse/scheduler/internal/domain"
)

// ErrJobNotFound is returned when a lookup finds no matching job.
var ErrJobNotFound = errors.New("database: job not found")

// JobRepository persists Job rows.
type JobRepository struct {
	db *sqlx.DB
}

// NewJobRepository constructs a JobRepository.
func NewJobRepository(db *sqlx.DB) *JobRepository {
	return &JobRepository{db: db}
}

const jobSelectColumns = `job_id, symbol, asset_type, trigger_type, trigger_config,
	start_date, end_date, collector_kwargs, asset_metadata, status,
	max_retries, retry_delay_seconds, retry_backoff_multiplier, current_retry_attempt,
	next_run_at, last_run_at, created_at, updated_at`

// CreateJob inserts a new job row.
func (r *JobRepository) CreateJob(ctx context.Context, j *domain.Job) error {
	query := `
		INSERT INTO scheduler_jobs (
			job_id, symbol, asset_type, trigger_type, trigger_config,
			start_date, end_date, collector_kwargs, asset_metadata, status,
			max_retries, retry_delay_seconds, retry_backoff_multiplier, current_retry_attempt,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, now(), now()
		)
		RETURNING created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		j.JobID, j.Symbol, j.AssetType, j.TriggerType, j.TriggerConfig,
		j.StartDate, j.EndDate, j.CollectorKwargs, j.AssetMetadata, j.Status,
		j.MaxRetries, j.RetryDelaySeconds, j.RetryBackoffMultiplier, j.CurrentRetryAttempt,
	).Scan(&j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create job: %w", err)
	}
	return nil
}

// GetJob fetches one job by id.
func (r *JobRepository) GetJob(ctx context.Context, jobID string) (*domain.Job, error) {
	var j domain.Job
	query := `SELECT ` + jobSelectColumns + ` FROM scheduler_jobs WHERE job_id = $1`
	err := r.db.GetContext(ctx, &j, query, jobID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return &j, nil
}

// ListJobsParams filters and paginates ListJobs.
type ListJobsParams struct {
	Status    string
	AssetType string
	Limit     int
	Offset    int
}

// ListJobs returns a page of jobs with their dependencies pre-loaded in a
// single batch fetch.
func (r *JobRepository) ListJobs(ctx context.Context, deps *DependencyRepository, params ListJobsParams) ([]*domain.Job, error) {
	var (
		conditions []string
		args       []any
	)

	if params.Status != "" {
		args = append(args, params.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if params.AssetType != "" {
		args = append(args, params.AssetType)
		conditions = append(conditions, fmt.Sprintf("asset_type = $%d", len(args)))
	}

	query := `SELECT ` + jobSelectColumns + ` FROM scheduler_jobs`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC"

	limit := params.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit)
	query += fmt.Sprintf(" LIMIT $%d", len(args))
	args = append(args, params.Offset)
	query += fmt.Sprintf(" OFFSET $%d", len(args))

	var jobs []*domain.Job
	if err := r.db.SelectContext(ctx, &jobs, query, args...); err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}

	if deps != nil && len(jobs) > 0 {
		ids := make([]string, len(jobs))
		for i, j := range jobs {
			ids[i] = j.JobID
		}
		byJob, err := deps.GetDependenciesForJobs(ctx, ids)
		if err != nil {
			return nil, fmt.Errorf("list jobs: preload dependencies: %w", err)
		}
		for _, j := range jobs {
			j.Dependencies = byJob[j.JobID]
		}
	}

	return jobs, nil
}

// UpdateJob applies a partial update, rejecting any field not present in
// domain.UpdatableFields.
func (r *JobRepository) UpdateJob(ctx context.Context, jobID string, fields map[string]any) (*domain.Job, error) {
	if len(fields) == 0 {
		return r.GetJob(ctx, jobID)
	}

	var (
		setClauses []string
		args       []any
	)
	for field, value := range fields {
		if !domain.UpdatableFields[field] {
			return nil, fmt.Errorf("database: field %q is not updatable", field)
		}
		args = append(args, value)
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", field, len(args)))
	}
	setClauses = append(setClauses, "updated_at = now()")

	args = append(args, jobID)
	query := fmt.Sprintf(
		"UPDATE scheduler_jobs SET %s WHERE job_id = $%d",
		strings.Join(setClauses, ", "), len(args),
	)

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("update job: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("update job: %w", err)
	}
	if rows == 0 {
		return nil, ErrJobNotFound
	}

	return r.GetJob(ctx, jobID)
}

// SetStatus transitions a job's status and, optionally, its next_run_at.
func (r *JobRepository) SetStatus(ctx context.Context, jobID, status string, nextRunAt *time.Time) error {
	query := `UPDATE scheduler_jobs SET status = $1, next_run_at = COALESCE($2, next_run_at), updated_at = now() WHERE job_id = $3`
	res, err := r.db.ExecContext(ctx, query, status, nextRunAt, jobID)
	if err != nil {
		return fmt.Errorf("set status: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set status: %w", err)
	}
	if rows == 0 {
		return ErrJobNotFound
	}
	return nil
}

// TouchLastRun updates last_run_at after an execution is recorded.
func (r *JobRepository) TouchLastRun(ctx context.Context, jobID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE scheduler_jobs SET last_run_at = $1, updated_at = now() WHERE job_id = $2`, at, jobID)
	if err != nil {
		return fmt.Errorf("touch last run: %w", err)
	}
	return nil
}

// SetCurrentRetryAttempt records the attempt count the retry controller
// will use for its next one-shot fire.
func (r *JobRepository) SetCurrentRetryAttempt(ctx context.Context, jobID string, attempt int) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE scheduler_jobs SET current_retry_attempt = $1, updated_at = now() WHERE job_id = $2`, attempt, jobID)
	if err != nil {
		return fmt.Errorf("set current retry attempt: %w", err)
	}
	return nil
}

// DeleteJob removes a job row. Dependency edges referencing it cascade at
// the schema level.
func (r *JobRepository) DeleteJob(ctx context.Context, jobID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM scheduler_jobs WHERE job_id = $1`, jobID)
	if err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	if rows == 0 {
		return ErrJobNotFound
	}
	return nil
}

// LoadActiveJobs returns every job with status in {active, pending}, used
// at scheduler startup.
func (r *JobRepository) LoadActiveJobs(ctx context.Context) ([]*domain.Job, error) {
	query := `SELECT ` + jobSelectColumns + ` FROM scheduler_jobs WHERE status IN ('active', 'pending') ORDER BY created_at ASC`
	var jobs []*domain.Job
	if err := r.db.SelectContext(ctx, &jobs, query); err != nil {
		return nil, fmt.Errorf("load active jobs: %w", err)
	}
	return jobs, nil
}

// Exists reports whether a job row is still present, used by the retry
// controller to abort scheduling a retry for a deleted job.
func (r *JobRepository) Exists(ctx context.Context, jobID string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM scheduler_jobs WHERE job_id = $1)`, jobID)
	if err != nil {
		return false, fmt.Errorf("check job exists: %w", err)
	}
	return exists, nil
}

// CreateJobWithDependencies inserts the job row and every dependency edge
// in one transaction: job creation with its dependency edges is the one
// cross-entity write that must be atomic.
func (r *JobRepository) CreateJobWithDependencies(ctx context.Context, j *domain.Job, deps []domain.JobDependency) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("create job with dependencies: begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	query := `
		INSERT INTO scheduler_jobs (
			job_id, symbol, asset_type, trigger_type, trigger_config,
			start_date, end_date, collector_kwargs, asset_metadata, status,
			max_retries, retry_delay_seconds, retry_backoff_multiplier, current_retry_attempt,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, now(), now()
		)
		RETURNING created_at, updated_at`

	if err := tx.QueryRowxContext(ctx, query,
		j.JobID, j.Symbol, j.AssetType, j.TriggerType, j.TriggerConfig,
		j.StartDate, j.EndDate, j.CollectorKwargs, j.AssetMetadata, j.Status,
		j.MaxRetries, j.RetryDelaySeconds, j.RetryBackoffMultiplier, j.CurrentRetryAttempt,
	).Scan(&j.CreatedAt, &j.UpdatedAt); err != nil {
		return fmt.Errorf("create job with dependencies: insert job: %w", err)
	}

	for i := range deps {
		d := &deps[i]
		d.JobID = j.JobID
		if d.JobID == d.DependsOnJobID {
			return fmt.Errorf("database: self-dependency rejected for job %s", d.JobID)
		}
		depQuery := `INSERT INTO job_dependencies (job_id, depends_on_job_id, condition) VALUES ($1, $2, $3) RETURNING id`
		if err := tx.QueryRowxContext(ctx, depQuery, d.JobID, d.DependsOnJobID, d.Condition).Scan(&d.ID); err != nil {
			return fmt.Errorf("create job with dependencies: insert dependency: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("create job with dependencies: commit: %w", err)
	}
	j.Dependencies = deps
	return nil
}
