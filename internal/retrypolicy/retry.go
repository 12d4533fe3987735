// Package retrypolicy schedules one-shot retries with exponential backoff
// after a transient failure.
package retrypolicy

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/marketpulse/scheduler/internal/domain"
	"github.com/marketpulse/scheduler/internal/logger"
)

// JobStore is the subset of the store the retry controller needs.
type JobStore interface {
	GetJob(ctx context.Context, jobID string) (*domain.Job, error)
	Exists(ctx context.Context, jobID string) (bool, error)
	SetStatus(ctx context.Context, jobID, status string, nextRunAt *time.Time) error
	SetCurrentRetryAttempt(ctx context.Context, jobID string, attempt int) error
}

// Scheduler installs a one-shot timer fire. The persistent scheduler
// implements this.
type Scheduler interface {
	ScheduleOneShot(jobID string, at time.Time, retryAttempt int)
}

// Controller decides whether to retry a transiently-failed execution, and
// if so, schedules the one-shot fire.
type Controller struct {
	store     JobStore
	scheduler Scheduler
	log       logger.Interface
}

// New builds a Controller.
func New(store JobStore, scheduler Scheduler, log logger.Interface) *Controller {
	if log == nil {
		log = logger.NewNop()
	}
	return &Controller{store: store, scheduler: scheduler, log: log}
}

// HandleTransientFailure is invoked only after an execution is recorded
// failed with error_category=transient. currentRetryAttempt is the
// attempt number of the execution that just failed (0 = first try).
func (c *Controller) HandleTransientFailure(ctx context.Context, jobID string, currentRetryAttempt int) error {
	job, err := c.store.GetJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("retrypolicy: get job %s: %w", jobID, err)
	}

	if currentRetryAttempt >= job.MaxRetries {
		if err := c.store.SetStatus(ctx, jobID, domain.JobStatusFailed, nil); err != nil {
			return fmt.Errorf("retrypolicy: mark job %s failed: %w", jobID, err)
		}
		c.log.Info("retrypolicy: retries exhausted, job marked failed",
			"job_id", jobID, "max_retries", job.MaxRetries)
		return nil
	}

	delay := backoffDelay(job.RetryDelaySeconds, job.RetryBackoffMultiplier, currentRetryAttempt)
	nextAttempt := currentRetryAttempt + 1

	if err := c.store.SetCurrentRetryAttempt(ctx, jobID, nextAttempt); err != nil {
		return fmt.Errorf("retrypolicy: set retry attempt for %s: %w", jobID, err)
	}

	fireAt := time.Now().Add(delay)
	c.scheduler.ScheduleOneShot(jobID, fireAt, nextAttempt)

	c.log.Info("retrypolicy: scheduled one-shot retry",
		"job_id", jobID, "retry_attempt", nextAttempt, "fire_at", fireAt)

	return nil
}

// backoffDelay computes retry_delay × multiplier ^ attempt.
func backoffDelay(retryDelaySeconds, multiplier float64, attempt int) time.Duration {
	seconds := retryDelaySeconds * math.Pow(multiplier, float64(attempt))
	return time.Duration(seconds * float64(time.Second))
}

// ShouldFire reports whether a scheduled one-shot should still execute:
// the job must still exist and be active. On pause, in-flight retries
// must abort at fire time rather than run against a paused job.
func (c *Controller) ShouldFire(ctx context.Context, jobID string) (bool, error) {
	exists, err := c.store.Exists(ctx, jobID)
	if err != nil {
		return false, fmt.Errorf("retrypolicy: check job exists %s: %w", jobID, err)
	}
	if !exists {
		return false, nil
	}

	job, err := c.store.GetJob(ctx, jobID)
	if err != nil {
		return false, fmt.Errorf("retrypolicy: get job %s: %w", jobID, err)
	}
	return job.Status == domain.JobStatusActive, nil
}
