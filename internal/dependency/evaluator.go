// Package dependency decides whether a job's inter-job dependencies are
// satisfied, without ever mutating state.
package dependency

import (
	"context"
	"fmt"

	"github.com/marketpulse/scheduler/internal/domain"
)

// JobReader looks up a job by id.
type JobReader interface {
	GetJob(ctx context.Context, jobID string) (*domain.Job, error)
}

// DependencyReader looks up the dependency edges for a job.
type DependencyReader interface {
	GetDependencies(ctx context.Context, jobID string) ([]domain.JobDependency, error)
}

// ExecutionReader looks up the most recent execution for a job.
type ExecutionReader interface {
	LastExecution(ctx context.Context, jobID string) (*domain.Execution, error)
}

// Evaluator decides whether a job's dependencies are satisfied.
type Evaluator struct {
	jobs  JobReader
	deps  DependencyReader
	execs ExecutionReader
}

// New builds an Evaluator.
func New(jobs JobReader, deps DependencyReader, execs ExecutionReader) *Evaluator {
	return &Evaluator{jobs: jobs, deps: deps, execs: execs}
}

// Evaluate returns whether jobID's dependencies are all satisfied, and the
// list of parent job ids that are not.
func (e *Evaluator) Evaluate(ctx context.Context, jobID string) (ready bool, unmet []string, err error) {
	edges, err := e.deps.GetDependencies(ctx, jobID)
	if err != nil {
		return false, nil, fmt.Errorf("dependency: get dependencies for %s: %w", jobID, err)
	}
	if len(edges) == 0 {
		return true, nil, nil
	}

	for _, edge := range edges {
		met, err := e.edgeMet(ctx, edge)
		if err != nil {
			return false, nil, err
		}
		if !met {
			unmet = append(unmet, edge.DependsOnJobID)
		}
	}

	return len(unmet) == 0, unmet, nil
}

func (e *Evaluator) edgeMet(ctx context.Context, edge domain.JobDependency) (bool, error) {
	parent, err := e.jobs.GetJob(ctx, edge.DependsOnJobID)
	if err != nil {
		// Missing parents are unconditionally unmet, never "ready by absence".
		return false, nil
	}

	switch edge.Condition {
	case domain.DependencyConditionAny:
		return parent.LastRunAt != nil, nil

	case domain.DependencyConditionComplete:
		if parent.Status == domain.JobStatusCompleted || parent.Status == domain.JobStatusFailed {
			return true, nil
		}
		last, err := e.execs.LastExecution(ctx, parent.JobID)
		if err != nil {
			return false, fmt.Errorf("dependency: last execution for %s: %w", parent.JobID, err)
		}
		return last != nil && last.ExecutionStatus != "running", nil

	case domain.DependencyConditionSuccess:
		last, err := e.execs.LastExecution(ctx, parent.JobID)
		if err != nil {
			return false, fmt.Errorf("dependency: last execution for %s: %w", parent.JobID, err)
		}
		return last != nil && last.ExecutionStatus == domain.ExecutionStatusSuccess, nil

	default:
		return false, fmt.Errorf("dependency: unknown condition %q on edge %d", edge.Condition, edge.ID)
	}
}
