package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/marketpulse/scheduler/internal/domain"
)

// ExecutionRepository persists Execution rows: immutable records of one
// attempt at running a job.
type ExecutionRepository struct {
	db *sqlx.DB
}

// NewExecutionRepository constructs an ExecutionRepository.
func NewExecutionRepository(db *sqlx.DB) *ExecutionRepository {
	return &ExecutionRepository{db: db}
}

const executionSelectColumns = `execution_id, job_id, log_id, execution_status, started_at,
	completed_at, error_message, error_category, recovery_suggestion, execution_time_ms, retry_attempt`

// RecordExecution inserts an execution row and touches the parent job's
// last_run_at in the same call. The two writes are not wrapped in an
// explicit transaction: each store operation is its own transaction, and a
// crash between them simply leaves last_run_at stale until the next
// successful execution.
func (r *ExecutionRepository) RecordExecution(ctx context.Context, jobs *JobRepository, e *domain.Execution) error {
	if e.ExecutionID == "" {
		e.ExecutionID = uuid.NewString()
	}

	query := `
		INSERT INTO scheduler_job_executions (
			execution_id, job_id, log_id, execution_status, started_at, completed_at,
			error_message, error_category, recovery_suggestion, execution_time_ms, retry_attempt
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := r.db.ExecContext(ctx, query,
		e.ExecutionID, e.JobID, e.LogID, e.ExecutionStatus, e.StartedAt, e.CompletedAt,
		e.ErrorMessage, e.ErrorCategory, e.RecoverySuggestion, e.ExecutionTimeMs, e.RetryAttempt,
	)
	if err != nil {
		return fmt.Errorf("record execution: %w", err)
	}

	touchAt := e.StartedAt
	if e.CompletedAt != nil {
		touchAt = *e.CompletedAt
	}
	if err := jobs.TouchLastRun(ctx, e.JobID, touchAt); err != nil {
		return fmt.Errorf("record execution: %w", err)
	}

	return nil
}

// ListExecutions returns a page of executions for a job, most recent first.
func (r *ExecutionRepository) ListExecutions(ctx context.Context, jobID string, limit, offset int) ([]*domain.Execution, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + executionSelectColumns + ` FROM scheduler_job_executions
		WHERE job_id = $1 ORDER BY started_at DESC LIMIT $2 OFFSET $3`
	var execs []*domain.Execution
	if err := r.db.SelectContext(ctx, &execs, query, jobID, limit, offset); err != nil {
		return nil, fmt.Errorf("list executions: %w", err)
	}
	return execs, nil
}

// LastExecution returns the most recent execution for a job, or nil if the
// job has never run.
func (r *ExecutionRepository) LastExecution(ctx context.Context, jobID string) (*domain.Execution, error) {
	query := `SELECT ` + executionSelectColumns + ` FROM scheduler_job_executions
		WHERE job_id = $1 ORDER BY started_at DESC LIMIT 1`
	var e domain.Execution
	if err := r.db.GetContext(ctx, &e, query, jobID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("last execution: %w", err)
	}
	return &e, nil
}
