// Package worker provides the bounded-concurrency executor pool the
// scheduler runs fired jobs in.
package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marketpulse/scheduler/internal/logger"
)

// PoolState is the current lifecycle state of a Pool.
type PoolState int32

const (
	PoolStateStopped PoolState = iota
	PoolStateRunning
	PoolStateDraining
)

const percentageMultiplier = 100

func (s PoolState) String() string {
	switch s {
	case PoolStateStopped:
		return "stopped"
	case PoolStateRunning:
		return "running"
	case PoolStateDraining:
		return "draining"
	default:
		return "unknown"
	}
}

// Task is one unit of work submitted to the pool: a fired job's full
// execution wrapper.
type Task func(ctx context.Context)

// Config configures a Pool.
type Config struct {
	PoolSize     int
	DrainTimeout time.Duration
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.PoolSize <= 0 {
		c.PoolSize = 5
	}
	if c.DrainTimeout <= 0 {
		c.DrainTimeout = 30 * time.Second
	}
}

// Pool bounds concurrent job executions by a semaphore of size PoolSize.
// Each fired job runs end-to-end in one slot; independent jobs run in
// parallel.
type Pool struct {
	config Config
	log    logger.Interface

	state  atomic.Int32
	sem    chan struct{}
	wg     sync.WaitGroup
	stopCh chan struct{}

	jobsProcessed atomic.Int64
	jobsSucceeded atomic.Int64
	jobsFailed    atomic.Int64
}

// NewPool builds a Pool.
func NewPool(cfg Config, log logger.Interface) *Pool {
	cfg.SetDefaults()
	if log == nil {
		log = logger.NewNop()
	}
	return &Pool{
		config: cfg,
		log:    log,
		sem:    make(chan struct{}, cfg.PoolSize),
		stopCh: make(chan struct{}),
	}
}

// Start transitions the pool to running.
func (p *Pool) Start() error {
	if !p.state.CompareAndSwap(int32(PoolStateStopped), int32(PoolStateRunning)) {
		return errors.New("worker: pool is already running")
	}
	p.log.Info("worker pool started", "pool_size", p.config.PoolSize)
	return nil
}

// Stop drains in-flight tasks, waiting up to ctx's deadline or
// DrainTimeout, whichever is sooner. Already-running tasks are never
// force-cancelled; Stop only stops accepting new submissions.
func (p *Pool) Stop(ctx context.Context) error {
	if !p.state.CompareAndSwap(int32(PoolStateRunning), int32(PoolStateDraining)) {
		return errors.New("worker: pool is not running")
	}

	p.log.Info("worker pool draining")
	close(p.stopCh)

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.log.Info("worker pool stopped gracefully")
	case <-ctx.Done():
		p.log.Warn("worker pool stop timed out by context")
	case <-time.After(p.config.DrainTimeout):
		p.log.Warn("worker pool drain timeout exceeded")
	}

	p.state.Store(int32(PoolStateStopped))
	return nil
}

// Submit runs task in a pool slot, blocking until one is free, ctx is
// cancelled, or the pool is stopping. New triggers are rejected while
// draining or stopped.
func (p *Pool) Submit(ctx context.Context, task Task) error {
	if p.State() != PoolStateRunning {
		return errors.New("worker: pool is not running")
	}

	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	case <-p.stopCh:
		return errors.New("worker: pool is stopping")
	}

	p.wg.Add(1)
	go func() {
		defer func() {
			<-p.sem
			p.wg.Done()
		}()

		succeeded := true
		func() {
			defer func() {
				if r := recover(); r != nil {
					succeeded = false
					p.log.Error("worker: task panicked", "panic", r)
				}
			}()
			task(ctx)
		}()

		p.jobsProcessed.Add(1)
		if succeeded {
			p.jobsSucceeded.Add(1)
		} else {
			p.jobsFailed.Add(1)
		}
	}()

	return nil
}

// State returns the pool's current lifecycle state.
func (p *Pool) State() PoolState { return PoolState(p.state.Load()) }

// Size returns the configured pool size.
func (p *Pool) Size() int { return p.config.PoolSize }

// BusyCount returns the number of slots currently occupied.
func (p *Pool) BusyCount() int { return len(p.sem) }

// IdleCount returns the number of free slots.
func (p *Pool) IdleCount() int { return p.Size() - p.BusyCount() }

// Stats reports pool-wide counters.
type Stats struct {
	State         PoolState
	PoolSize      int
	BusyWorkers   int
	IdleWorkers   int
	JobsProcessed int64
	JobsSucceeded int64
	JobsFailed    int64
}

// Stats snapshots the pool's counters.
func (p *Pool) Stats() Stats {
	return Stats{
		State:         p.State(),
		PoolSize:      p.Size(),
		BusyWorkers:   p.BusyCount(),
		IdleWorkers:   p.IdleCount(),
		JobsProcessed: p.jobsProcessed.Load(),
		JobsSucceeded: p.jobsSucceeded.Load(),
		JobsFailed:    p.jobsFailed.Load(),
	}
}

// SuccessRate returns the share of processed jobs that succeeded, as a
// percentage.
func (s Stats) SuccessRate() float64 {
	if s.JobsProcessed == 0 {
		return 0
	}
	return float64(s.JobsSucceeded) / float64(s.JobsProcessed) * percentageMultiplier
}

// Utilization returns the share of pool slots currently busy, as a
// percentage.
func (s Stats) Utilization() float64 {
	if s.PoolSize == 0 {
		return 0
	}
	return float64(s.BusyWorkers) / float64(s.PoolSize) * percentageMultiplier
}
