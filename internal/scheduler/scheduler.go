// Package scheduler is the centerpiece: a persistent timer wheel over
// scheduler_jobs that fires each job's ingestion through a bounded
// executor pool, evaluates dependencies before and after every run, and
// hands transient failures off to the retry controller.
package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/marketpulse/scheduler/internal/classifier"
	"github.com/marketpulse/scheduler/internal/coordinator"
	"github.com/marketpulse/scheduler/internal/domain"
	"github.com/marketpulse/scheduler/internal/ingestion"
	"github.com/marketpulse/scheduler/internal/logger"
	"github.com/marketpulse/scheduler/internal/metrics"
	"github.com/marketpulse/scheduler/internal/provider"
	"github.com/marketpulse/scheduler/internal/worker"
)

const defaultLookback = 24 * time.Hour

// Store is the narrow persistence surface the scheduler depends on.
// *database.Store satisfies this directly.
type Store interface {
	GetJob(ctx context.Context, jobID string) (*domain.Job, error)
	LoadActiveJobs(ctx context.Context) ([]*domain.Job, error)
	SetStatus(ctx context.Context, jobID, status string, nextRunAt *time.Time) error
	GetDependents(ctx context.Context, jobID string) ([]domain.JobDependency, error)
	RecordExecution(ctx context.Context, e *domain.Execution) error
}

// DependencyChecker decides whether a job is ready to run.
type DependencyChecker interface {
	Evaluate(ctx context.Context, jobID string) (ready bool, unmet []string, err error)
}

// RetryHandler schedules one-shot retries after a transient failure.
type RetryHandler interface {
	HandleTransientFailure(ctx context.Context, jobID string, currentRetryAttempt int) error
}

// Pipeline runs fetch → map → load for one job fire.
type Pipeline interface {
	Ingest(ctx context.Context, symbol, assetType string, start, end time.Time,
		adapter provider.Adapter, fetcher ingestion.Fetcher, providerName string,
		collectorKwargs, assetMetadata domain.JSONBMap) ingestion.Result
}

// ProviderResolver resolves a job's adapter and the provider class used for
// rate-limiting and request-coordinator grouping. Concrete provider wiring
// (Alpha Vantage, FRED, etc.) lives outside this package.
type ProviderResolver interface {
	Resolve(ctx context.Context, job *domain.Job) (adapter provider.Adapter, providerClass string, err error)
}

// Executor runs fired jobs in a bounded pool. *worker.Pool satisfies this.
type Executor interface {
	Start() error
	Submit(ctx context.Context, task worker.Task) error
	Stop(ctx context.Context) error
}

// Locker guards a fire across multiple scheduler instances sharing the
// same store. When set, submitFire proceeds past the in-process inFlight
// check only once the distributed lock is also acquired, except that a
// TryLock error is logged and the fire proceeds without the lock; release
// un-does the hold once the fire completes. Nil means single-instance
// operation, relying on inFlight alone.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error)
}

// RetryChecker reports whether a scheduled one-shot retry should still run.
// *retrypolicy.Controller satisfies this. When unset, ScheduleOneShot falls
// back to a bare existence/active-status check of its own.
type RetryChecker interface {
	ShouldFire(ctx context.Context, jobID string) (bool, error)
}

// Config configures a Scheduler.
type Config struct {
	// FetchTimeout bounds how long a coordinator-routed fetch waits for its
	// batch result before failing just that job's future.
	FetchTimeout time.Duration
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = 30 * time.Second
	}
}

// Scheduler holds the timer wheel and wires every fired job through
// dependency evaluation, the ingestion pipeline, and the retry controller.
type Scheduler struct {
	cfg Config

	store        Store
	pipeline     Pipeline
	deps         DependencyChecker
	retry        RetryHandler
	resolver     ProviderResolver
	coord        *coordinator.Coordinator // nil when the request coordinator is disabled
	metrics      metrics.Hook
	pool         Executor
	log          logger.Interface
	locker       Locker
	retryChecker RetryChecker

	cronRunner *cron.Cron

	mu         sync.Mutex
	cronJobs   map[string]cron.EntryID
	timers     map[string]*time.Timer
	inFlight   map[string]bool
	stopped    atomic.Bool
	rootCtx    context.Context
	rootCancel context.CancelFunc
}

// New builds a Scheduler. coord may be nil, meaning every fetch goes
// directly through the resolved adapter.
func New(
	cfg Config,
	store Store,
	pipeline Pipeline,
	deps DependencyChecker,
	retry RetryHandler,
	resolver ProviderResolver,
	coord *coordinator.Coordinator,
	metricsHook metrics.Hook,
	pool Executor,
	log logger.Interface,
) *Scheduler {
	cfg.SetDefaults()
	if metricsHook == nil {
		metricsHook = metrics.NewNop()
	}
	if log == nil {
		log = logger.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cfg:        cfg,
		store:      store,
		pipeline:   pipeline,
		deps:       deps,
		retry:      retry,
		resolver:   resolver,
		coord:      coord,
		metrics:    metrics.Safe(metricsHook),
		pool:       pool,
		log:        log,
		cronRunner: cron.New(cron.WithSeconds()),
		cronJobs:   make(map[string]cron.EntryID),
		timers:     make(map[string]*time.Timer),
		inFlight:   make(map[string]bool),
		rootCtx:    ctx,
		rootCancel: cancel,
	}
}

// SetLocker installs a distributed lock used to dedup fires across
// scheduler instances. Must be called before Start; nil disables it.
func (s *Scheduler) SetLocker(l Locker) {
	s.locker = l
}

// SetRetryChecker installs the retry controller's fire-time check so
// ScheduleOneShot's callback defers to it instead of its own fallback.
// Must be called before the first retry fires; nil restores the fallback.
func (s *Scheduler) SetRetryChecker(rc RetryChecker) {
	s.retryChecker = rc
}

// Start loads every {active, pending} job from the store, installs its
// trigger, and starts the executor pool and the cron runner.
func (s *Scheduler) Start(ctx context.Context) error {
	if err := s.pool.Start(); err != nil {
		return fmt.Errorf("scheduler: start pool: %w", err)
	}
	s.cronRunner.Start()

	jobs, err := s.store.LoadActiveJobs(ctx)
	if err != nil {
		return fmt.Errorf("scheduler: load active jobs: %w", err)
	}

	for _, job := range jobs {
		if err := s.installJob(ctx, job); err != nil {
			s.log.Error("scheduler: failed to install job at startup, skipping",
				"job_id", job.JobID, "error", err)
			continue
		}
	}

	s.log.Info("scheduler started", "jobs_loaded", len(jobs))
	return nil
}

// Shutdown rejects new triggers and waits (bounded) for in-flight
// executions to finish.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.stopped.Store(true)
	s.rootCancel()

	cronCtx := s.cronRunner.Stop()
	select {
	case <-cronCtx.Done():
	case <-ctx.Done():
	}

	return s.pool.Stop(ctx)
}

// AddFromStore installs job_id's trigger from the store. Idempotent:
// re-adding an already-installed job is a no-op returning success.
func (s *Scheduler) AddFromStore(ctx context.Context, jobID string) error {
	if s.isInstalled(jobID) {
		return nil
	}
	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("scheduler: add %s: %w", jobID, err)
	}
	return s.installJob(ctx, job)
}

// UpdateInScheduler replaces job_id's installed trigger with its current
// store definition.
func (s *Scheduler) UpdateInScheduler(ctx context.Context, jobID string) error {
	s.uninstall(jobID)
	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("scheduler: update %s: %w", jobID, err)
	}
	return s.installJob(ctx, job)
}

// Remove uninstalls job_id's trigger, tolerating "not installed".
func (s *Scheduler) Remove(jobID string) error {
	s.uninstall(jobID)
	return nil
}

// Pause removes job_id's upcoming fires and marks it paused. An
// already-running execution is not aborted.
func (s *Scheduler) Pause(ctx context.Context, jobID string) error {
	s.uninstall(jobID)
	return s.store.SetStatus(ctx, jobID, domain.JobStatusPaused, nil)
}

// Resume reinstalls job_id's trigger from the store, calling AddFromStore
// under the hood since pause may have fully removed it.
func (s *Scheduler) Resume(ctx context.Context, jobID string) error {
	if err := s.store.SetStatus(ctx, jobID, domain.JobStatusActive, nil); err != nil {
		return fmt.Errorf("scheduler: resume %s: %w", jobID, err)
	}
	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("scheduler: resume %s: %w", jobID, err)
	}
	return s.installJob(ctx, job)
}

// TriggerNow fires job_id immediately, working even for jobs not in the
// timer wheel (execute_now jobs, or wheel/store drift).
func (s *Scheduler) TriggerNow(ctx context.Context, jobID string) error {
	if s.isInstalled(jobID) {
		return s.submitFire(jobID)
	}

	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("scheduler: trigger %s: %w", jobID, err)
	}
	if job.Status != domain.JobStatusActive && job.Status != domain.JobStatusPending {
		return fmt.Errorf("scheduler: job %s is not active or pending", jobID)
	}
	return s.submitFire(jobID)
}

// ScheduleOneShot installs a one-time fire for a retry, satisfying
// retrypolicy.Scheduler.
func (s *Scheduler) ScheduleOneShot(jobID string, at time.Time, retryAttempt int) {
	delay := time.Until(at)
	if delay < 0 {
		delay = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.timers[retryTimerKey(jobID)]; ok {
		existing.Stop()
	}
	s.timers[retryTimerKey(jobID)] = time.AfterFunc(delay, func() {
		if ok, err := s.shouldFireRetry(jobID); err != nil || !ok {
			return
		}
		_ = s.submitFire(jobID)
	})
}

func retryTimerKey(jobID string) string { return "retry:" + jobID }

// shouldFireRetry defers to the installed RetryChecker when present; absent
// one, it falls back to a bare existence/active-status check of its own.
func (s *Scheduler) shouldFireRetry(jobID string) (bool, error) {
	if s.retryChecker != nil {
		return s.retryChecker.ShouldFire(s.rootCtx, jobID)
	}
	job, err := s.store.GetJob(s.rootCtx, jobID)
	if err != nil {
		return false, err
	}
	return job.Status == domain.JobStatusActive, nil
}

// installJob applies the startup decision table for one job: execute_now
// jobs get no timer (marked completed if they have already run, pending ones
// become active), and cron/interval jobs get their trigger installed on the
// wheel with status active and next_run_at persisted. The job's current
// status is not checked here, and an interval job's first fire is one full
// interval after installation.
func (s *Scheduler) installJob(ctx context.Context, job *domain.Job) error {
	trigger, err := parseJobTrigger(job)
	if err != nil {
		return fmt.Errorf("parse trigger for job %s: %w", job.JobID, err)
	}

	if trigger.ExecuteNow {
		if job.LastRunAt != nil {
			return s.store.SetStatus(ctx, job.JobID, domain.JobStatusCompleted, nil)
		}
		if job.Status == domain.JobStatusPending {
			return s.store.SetStatus(ctx, job.JobID, domain.JobStatusActive, nil)
		}
		return nil
	}

	switch {
	case trigger.Cron != nil:
		return s.installCron(ctx, job, trigger.Cron)
	case trigger.Interval != nil:
		return s.installInterval(ctx, job, trigger.Interval)
	default:
		return fmt.Errorf("job %s has neither cron nor interval fields", job.JobID)
	}
}

func (s *Scheduler) installCron(ctx context.Context, job *domain.Job, c *domain.CronFields) error {
	spec := cronSpec(c)

	entryID, err := s.cronRunner.AddFunc(spec, func() {
		_ = s.submitFire(job.JobID)
	})
	if err != nil {
		return fmt.Errorf("parse cron spec %q for job %s: %w", spec, job.JobID, err)
	}

	s.mu.Lock()
	s.cronJobs[job.JobID] = entryID
	s.mu.Unlock()

	nextRun := s.cronRunner.Entry(entryID).Next
	return s.store.SetStatus(ctx, job.JobID, domain.JobStatusActive, &nextRun)
}

func (s *Scheduler) installInterval(ctx context.Context, job *domain.Job, iv *domain.IntervalFields) error {
	if iv.IsZero() {
		return fmt.Errorf("job %s has an empty interval", job.JobID)
	}
	d := intervalDuration(iv)

	s.armIntervalTimer(job.JobID, d)

	nextRun := time.Now().Add(d)
	return s.store.SetStatus(ctx, job.JobID, domain.JobStatusActive, &nextRun)
}

// armIntervalTimer installs a self-rearming timer: each fire resets its own
// timer for the next tick before submitting the current one, so the cadence
// holds steady independent of how long a given fire's execution takes.
func (s *Scheduler) armIntervalTimer(jobID string, d time.Duration) {
	var fire func()
	fire = func() {
		if s.stopped.Load() {
			return
		}
		s.mu.Lock()
		if _, installed := s.timers[jobID]; installed {
			s.timers[jobID] = time.AfterFunc(d, fire)
		}
		s.mu.Unlock()
		_ = s.submitFire(jobID)
	}

	s.mu.Lock()
	s.timers[jobID] = time.AfterFunc(d, fire)
	s.mu.Unlock()
}

func (s *Scheduler) isInstalled(jobID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, hasCron := s.cronJobs[jobID]
	_, hasTimer := s.timers[jobID]
	return hasCron || hasTimer
}

func (s *Scheduler) uninstall(jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.cronJobs[jobID]; ok {
		s.cronRunner.Remove(id)
		delete(s.cronJobs, jobID)
	}
	if t, ok := s.timers[jobID]; ok {
		t.Stop()
		delete(s.timers, jobID)
	}
}

// submitFire coalesces overlapping fires for one job and hands the execution to the pool.
func (s *Scheduler) submitFire(jobID string) error {
	if s.stopped.Load() {
		return fmt.Errorf("scheduler: shutting down, rejecting trigger for %s", jobID)
	}

	s.mu.Lock()
	if s.inFlight[jobID] {
		s.mu.Unlock()
		s.log.Debug("scheduler: coalescing overlapping fire", "job_id", jobID)
		return nil
	}
	s.inFlight[jobID] = true
	s.mu.Unlock()

	var release func()
	if s.locker != nil {
		rel, ok, err := s.locker.TryLock(s.rootCtx, "scheduler:fire:"+jobID, s.cfg.FetchTimeout)
		if err != nil {
			s.log.Warn("scheduler: distributed lock error, proceeding single-instance", "job_id", jobID, "error", err)
		} else if !ok {
			s.mu.Lock()
			delete(s.inFlight, jobID)
			s.mu.Unlock()
			s.log.Debug("scheduler: another instance holds the fire lock", "job_id", jobID)
			return nil
		} else {
			release = rel
		}
	}

	err := s.pool.Submit(s.rootCtx, func(ctx context.Context) {
		defer func() {
			s.mu.Lock()
			delete(s.inFlight, jobID)
			s.mu.Unlock()
			if release != nil {
				release()
			}
		}()
		s.executeJob(ctx, jobID)
	})
	if err != nil {
		s.mu.Lock()
		delete(s.inFlight, jobID)
		s.mu.Unlock()
		if release != nil {
			release()
		}
	}
	return err
}

// executeJob is the execution wrapper run inside a pool slot.
func (s *Scheduler) executeJob(ctx context.Context, jobID string) {
	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		s.log.Error("scheduler: fire for unknown job", "job_id", jobID, "error", err)
		return
	}

	// Step 1: dependency check.
	ready, unmet, err := s.deps.Evaluate(ctx, jobID)
	if err != nil {
		s.log.Error("scheduler: dependency evaluation failed", "job_id", jobID, "error", err)
		return
	}
	if !ready {
		now := time.Now()
		msg := fmt.Sprintf("Unmet: %v", unmet)
		_ = s.store.RecordExecution(ctx, &domain.Execution{
			JobID:           jobID,
			ExecutionStatus: domain.ExecutionStatusSkipped,
			StartedAt:       now,
			CompletedAt:     &now,
			ErrorMessage:    &msg,
			RetryAttempt:    job.CurrentRetryAttempt,
		})
		return
	}

	// Step 2: effective range.
	start, end := effectiveRange(job)

	adapter, providerClass, err := s.resolver.Resolve(ctx, job)
	started := time.Now()
	if err != nil {
		s.recordFailure(ctx, job, started, err.Error())
		return
	}
	fetcher := s.buildFetcher(adapter, providerClass)

	// Step 3: invoke the pipeline.
	result := s.pipeline.Ingest(ctx, job.Symbol, job.AssetType, start, end,
		adapter, fetcher, providerClass, job.CollectorKwargs, job.AssetMetadata)

	// Step 4: record execution.
	errorCategory := result.ErrorCategory
	if result.Status == domain.ExecutionStatusFailed && errorCategory == nil {
		cat, _ := classifier.Classify(nil, derefMsg(result.ErrorMessage))
		errorCategory = &cat
	}
	completedAt := time.Now()
	execTimeMs := result.ExecutionTimeMs
	exec := &domain.Execution{
		JobID:           jobID,
		LogID:           result.LogID,
		ExecutionStatus: result.Status,
		StartedAt:       started,
		CompletedAt:     &completedAt,
		ErrorMessage:    result.ErrorMessage,
		ErrorCategory:   errorCategory,
		ExecutionTimeMs: &execTimeMs,
		RetryAttempt:    job.CurrentRetryAttempt,
	}
	if err := s.store.RecordExecution(ctx, exec); err != nil {
		s.log.Error("scheduler: failed to record execution", "job_id", jobID, "error", err)
	}

	s.metrics.RecordExecution(job.AssetType, result.Status, float64(execTimeMs)/1000.0, derefMsg(errorCategory))

	// Step 5: retry handoff on transient failure.
	if result.Status == domain.ExecutionStatusFailed && errorCategory != nil && *errorCategory == classifier.CategoryTransient {
		if err := s.retry.HandleTransientFailure(ctx, jobID, job.CurrentRetryAttempt); err != nil {
			s.log.Error("scheduler: retry handoff failed", "job_id", jobID, "error", err)
		} else {
			s.metrics.RecordRetry(jobID, job.AssetType)
		}
	}

	// execute_now jobs settle into a terminal status on their one and only run.
	if trigger, terr := parseJobTrigger(job); terr == nil && trigger.ExecuteNow {
		finalStatus := domain.JobStatusFailed
		if result.Status == domain.ExecutionStatusSuccess {
			finalStatus = domain.JobStatusCompleted
		}
		if err := s.store.SetStatus(ctx, jobID, finalStatus, nil); err != nil {
			s.log.Error("scheduler: failed to settle execute_now job status", "job_id", jobID, "error", err)
		}
	}

	// Step 6: cascade to dependents, only from a successful execution.
	if result.Status == domain.ExecutionStatusSuccess {
		s.notifyDependentsCompleted(ctx, jobID)
	}
}

func (s *Scheduler) recordFailure(ctx context.Context, job *domain.Job, started time.Time, message string) {
	category, _ := classifier.Classify(nil, message)
	completedAt := time.Now()
	execTimeMs := completedAt.Sub(started).Milliseconds()
	exec := &domain.Execution{
		JobID:           job.JobID,
		ExecutionStatus: domain.ExecutionStatusFailed,
		StartedAt:       started,
		CompletedAt:     &completedAt,
		ErrorMessage:    &message,
		ErrorCategory:   &category,
		ExecutionTimeMs: &execTimeMs,
		RetryAttempt:    job.CurrentRetryAttempt,
	}
	if err := s.store.RecordExecution(ctx, exec); err != nil {
		s.log.Error("scheduler: failed to record execution", "job_id", job.JobID, "error", err)
	}
	s.metrics.RecordExecution(job.AssetType, domain.ExecutionStatusFailed, float64(execTimeMs)/1000.0, category)

	if category == classifier.CategoryTransient {
		if err := s.retry.HandleTransientFailure(ctx, job.JobID, job.CurrentRetryAttempt); err != nil {
			s.log.Error("scheduler: retry handoff failed", "job_id", job.JobID, "error", err)
		} else {
			s.metrics.RecordRetry(job.JobID, job.AssetType)
		}
	}
}

// notifyDependentsCompleted triggers every dependent whose dependencies are
// now met and whose status is still active|pending. Evaluation re-checks the store at fire time, so a dependent
// that's no longer ready between this call and its own fire simply
// re-evaluates and is skipped there.
func (s *Scheduler) notifyDependentsCompleted(ctx context.Context, jobID string) {
	dependents, err := s.store.GetDependents(ctx, jobID)
	if err != nil {
		s.log.Error("scheduler: failed to load dependents", "job_id", jobID, "error", err)
		return
	}

	for _, edge := range dependents {
		ready, _, err := s.deps.Evaluate(ctx, edge.JobID)
		if err != nil || !ready {
			continue
		}
		dependent, err := s.store.GetJob(ctx, edge.JobID)
		if err != nil {
			continue
		}
		if dependent.Status != domain.JobStatusActive && dependent.Status != domain.JobStatusPending {
			continue
		}
		if err := s.submitFire(edge.JobID); err != nil {
			s.log.Warn("scheduler: failed to cascade-trigger dependent", "job_id", edge.JobID, "error", err)
		}
	}
}

func (s *Scheduler) buildFetcher(adapter provider.Adapter, providerClass string) ingestion.Fetcher {
	if s.coord == nil {
		return ingestion.DirectFetcher{Adapter: adapter}
	}
	return coordinatorFetcher{
		coord:         s.coord,
		adapter:       adapter,
		providerClass: providerClass,
		timeout:       s.cfg.FetchTimeout,
	}
}

// coordinatorFetcher adapts the request coordinator to ingestion.Fetcher.
type coordinatorFetcher struct {
	coord         *coordinator.Coordinator
	adapter       provider.Adapter
	providerClass string
	timeout       time.Duration
}

func (f coordinatorFetcher) Fetch(ctx context.Context, symbol string, start, end time.Time, kwargs domain.JSONBMap) ([]domain.ProviderRow, error) {
	result, err := f.coord.SubmitAndWait(ctx, coordinator.Request{
		Symbol:          symbol,
		ProviderClass:   f.providerClass,
		Adapter:         f.adapter,
		Start:           start,
		End:             end,
		CollectorKwargs: kwargs,
	}, f.timeout)
	if err != nil {
		return nil, err
	}
	if result.Err != nil {
		return nil, result.Err
	}
	return result.Rows, nil
}

// effectiveRange computes [start, end] for a fire: missing end defaults to
// now, missing start defaults to end minus one day.
func effectiveRange(job *domain.Job) (time.Time, time.Time) {
	end := time.Now()
	if job.EndDate != nil {
		end = *job.EndDate
	}
	start := end.Add(-defaultLookback)
	if job.StartDate != nil {
		start = *job.StartDate
	}
	return start, end
}

// parseJobTrigger decodes a job's trigger_type + trigger_config into the
// tagged Trigger variant.
func parseJobTrigger(job *domain.Job) (*domain.Trigger, error) {
	raw := map[string]any{"type": job.TriggerType}
	for k, v := range job.TriggerConfig {
		raw[k] = v
	}
	encoded, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	return domain.ParseTrigger(encoded)
}

// cronSpec builds a 6-field (seconds-first) cron expression, defaulting
// empty fields to "*" ("every"). robfig/cron has no year field;
// a configured Year is accepted by the data model but not enforceable here
// (see DESIGN.md).
func cronSpec(c *domain.CronFields) string {
	field := func(v string) string {
		if v == "" {
			return "*"
		}
		return v
	}
	return field(c.Second) + " " + field(c.Minute) + " " + field(c.Hour) + " " +
		field(c.Day) + " " + field(c.Month) + " " + field(c.DayOfWeek)
}

func intervalDuration(iv *domain.IntervalFields) time.Duration {
	return time.Duration(iv.Weeks)*7*24*time.Hour +
		time.Duration(iv.Days)*24*time.Hour +
		time.Duration(iv.Hours)*time.Hour +
		time.Duration(iv.Minutes)*time.Minute +
		time.Duration(iv.Seconds)*time.Second
}

func derefMsg(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
