package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/marketpulse/scheduler/internal/domain"
)

// DependencyRepository persists JobDependency edges and answers the graph
// queries the dependency evaluator and the scheduler's cascade logic need.
type DependencyRepository struct {
	db *sqlx.DB
}

// NewDependencyRepository constructs a DependencyRepository.
func NewDependencyRepository(db *sqlx.DB) *DependencyRepository {
	return &DependencyRepository{db: db}
}

const dependencySelectColumns = `id, job_id, depends_on_job_id, condition`

// CreateDependency inserts one edge. Callers must have already rejected
// self-edges and cycles (see WouldCreateCycle) — the store enforces the
// self-edge check again via a CHECK constraint as a last line of defense.
func (r *DependencyRepository) CreateDependency(ctx context.Context, dep *domain.JobDependency) error {
	if dep.JobID == dep.DependsOnJobID {
		return fmt.Errorf("database: self-dependency rejected for job %s", dep.JobID)
	}
	query := `INSERT INTO job_dependencies (job_id, depends_on_job_id, condition) VALUES ($1, $2, $3) RETURNING id`
	if err := r.db.QueryRowContext(ctx, query, dep.JobID, dep.DependsOnJobID, dep.Condition).Scan(&dep.ID); err != nil {
		return fmt.Errorf("create dependency: %w", err)
	}
	return nil
}

// GetDependencies returns the edges where job_id == jobID (this job's
// parents).
func (r *DependencyRepository) GetDependencies(ctx context.Context, jobID string) ([]domain.JobDependency, error) {
	var deps []domain.JobDependency
	query := `SELECT ` + dependencySelectColumns + ` FROM job_dependencies WHERE job_id = $1`
	if err := r.db.SelectContext(ctx, &deps, query, jobID); err != nil {
		return nil, fmt.Errorf("get dependencies: %w", err)
	}
	return deps, nil
}

// GetDependents returns the edges where depends_on_job_id == jobID (jobs
// that depend on this one), used by notify_dependents_completed.
func (r *DependencyRepository) GetDependents(ctx context.Context, jobID string) ([]domain.JobDependency, error) {
	var deps []domain.JobDependency
	query := `SELECT ` + dependencySelectColumns + ` FROM job_dependencies WHERE depends_on_job_id = $1`
	if err := r.db.SelectContext(ctx, &deps, query, jobID); err != nil {
		return nil, fmt.Errorf("get dependents: %w", err)
	}
	return deps, nil
}

// GetDependenciesForJobs batch-fetches dependencies for many jobs at once,
// avoiding the N+1 pattern ListJobs must avoid.
func (r *DependencyRepository) GetDependenciesForJobs(ctx context.Context, jobIDs []string) (map[string][]domain.JobDependency, error) {
	out := make(map[string][]domain.JobDependency, len(jobIDs))
	if len(jobIDs) == 0 {
		return out, nil
	}

	query, args, err := sqlx.In(`SELECT `+dependencySelectColumns+` FROM job_dependencies WHERE job_id IN (?)`, jobIDs)
	if err != nil {
		return nil, fmt.Errorf("get dependencies for jobs: %w", err)
	}
	query = r.db.Rebind(query)

	var deps []domain.JobDependency
	if err := r.db.SelectContext(ctx, &deps, query, args...); err != nil {
		return nil, fmt.Errorf("get dependencies for jobs: %w", err)
	}
	for _, d := range deps {
		out[d.JobID] = append(out[d.JobID], d)
	}
	return out, nil
}

// WouldCreateCycle reports whether adding an edge childJobID -> parentJobID
// would introduce a cycle, via depth-first search from the proposed parent
// through its own dependencies, looking for a path back to the would-be
// child.
func (r *DependencyRepository) WouldCreateCycle(ctx context.Context, childJobID, parentJobID string) (bool, error) {
	if childJobID == parentJobID {
		return true, nil
	}

	visited := map[string]bool{}
	stack := []string{parentJobID}

	for len(stack) > 0 {
		n := len(stack) - 1
		current := stack[n]
		stack = stack[:n]

		if current == childJobID {
			return true, nil
		}
		if visited[current] {
			continue
		}
		visited[current] = true

		parents, err := r.GetDependencies(ctx, current)
		if err != nil {
			return false, fmt.Errorf("would create cycle: %w", err)
		}
		for _, p := range parents {
			stack = append(stack, p.DependsOnJobID)
		}
	}

	return false, nil
}

// DeleteForJob removes every edge where job_id == jobID, used when
// replacing a job's dependency set on update.
func (r *DependencyRepository) DeleteForJob(ctx context.Context, jobID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM job_dependencies WHERE job_id = $1`, jobID); err != nil {
		return fmt.Errorf("delete dependencies for job: %w", err)
	}
	return nil
}
