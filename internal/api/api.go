// Package api exposes the scheduler's REST surface: job CRUD plus the
// pause/resume/trigger actions that delegate straight into the running
// scheduler.
package api

import (
	"context"

	"github.com/marketpulse/scheduler/internal/database"
	"github.com/marketpulse/scheduler/internal/domain"
)

// Store is the subset of database.Store the API layer needs. Handlers
// never reach into individual repositories.
type Store interface {
	CreateJobWithDependencies(ctx context.Context, j *domain.Job, deps []domain.JobDependency) error
	GetJob(ctx context.Context, jobID string) (*domain.Job, error)
	ListJobs(ctx context.Context, params database.ListJobsParams) ([]*domain.Job, error)
	UpdateJob(ctx context.Context, jobID string, fields map[string]any) (*domain.Job, error)
	DeleteJob(ctx context.Context, jobID string) error
	WouldCreateCycle(ctx context.Context, childJobID, parentJobID string) (bool, error)
	ListExecutions(ctx context.Context, jobID string, limit, offset int) ([]*domain.Execution, error)
}

// Scheduler is the subset of scheduler.Scheduler the API layer drives.
type Scheduler interface {
	AddFromStore(ctx context.Context, jobID string) error
	UpdateInScheduler(ctx context.Context, jobID string) error
	Remove(jobID string) error
	Pause(ctx context.Context, jobID string) error
	Resume(ctx context.Context, jobID string) error
	TriggerNow(ctx context.Context, jobID string) error
}
