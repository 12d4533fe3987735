// Package coordinator collapses bursts of similar outbound provider
// fetches into batches, trading a small buffering delay for fewer,
// larger calls against rate-limited providers.
package coordinator

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/marketpulse/scheduler/internal/domain"
	"github.com/marketpulse/scheduler/internal/logger"
	"github.com/marketpulse/scheduler/internal/provider"
	"github.com/marketpulse/scheduler/internal/ratelimiter"
)

// DefaultWindow is the buffering delay used when none is configured.
const DefaultWindow = time.Second

// Request is one caller's outbound fetch, submitted to the coordinator's
// queue.
type Request struct {
	Symbol          string
	ProviderClass   string
	Adapter         provider.Adapter
	Start           time.Time
	End             time.Time
	CollectorKwargs domain.JSONBMap

	resultCh chan Result
}

// Result is the outcome delivered to a request's future.
type Result struct {
	Rows []domain.ProviderRow
	Err  error
}

// Future is the handle a caller waits on for a submitted request's result.
type Future struct {
	ch chan Result
}

// Wait blocks for the result, respecting ctx cancellation and an optional
// timeout. An elapsed timeout fails the future without cancelling the
// in-flight batch — other futures in the same batch still receive their
// results.
func (f *Future) Wait(ctx context.Context, timeout time.Duration) (Result, error) {
	var timeoutCh <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	select {
	case r := <-f.ch:
		return r, nil
	case <-timeoutCh:
		return Result{}, fmt.Errorf("coordinator: request timed out waiting for batch result")
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Coordinator is a single-threaded cooperative processor: one goroutine
// drains the pending queue per window tick. External submitters only ever touch the queue through Submit.
type Coordinator struct {
	enabled bool
	window  time.Duration
	log     logger.Interface

	mu         sync.Mutex
	pending    map[string][]*Request
	processing bool

	limiter       *ratelimiter.Registry
	limiterCalls  int
	limiterPeriod time.Duration

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// Config configures a Coordinator, mirroring the
// ENABLE_REQUEST_COORDINATOR / REQUEST_COORDINATOR_WINDOW_SECONDS settings.
type Config struct {
	Enabled bool
	Window  time.Duration

	// Limiter, when set, is acquired once per outbound fetch (single or
	// batch), keyed by the request's ProviderClass, before the provider is
	// called.
	Limiter       *ratelimiter.Registry
	LimiterCalls  int
	LimiterPeriod time.Duration
}

const (
	defaultLimiterCalls  = 5
	defaultLimiterPeriod = time.Second
)

// New builds a Coordinator. A disabled coordinator still accepts Submit
// calls; it simply executes each request immediately instead of batching
// it with others.
func New(cfg Config, log logger.Interface) *Coordinator {
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.LimiterCalls <= 0 {
		cfg.LimiterCalls = defaultLimiterCalls
	}
	if cfg.LimiterPeriod <= 0 {
		cfg.LimiterPeriod = defaultLimiterPeriod
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Coordinator{
		enabled:       cfg.Enabled,
		window:        cfg.Window,
		log:           log,
		pending:       make(map[string][]*Request),
		stopCh:        make(chan struct{}),
		limiter:       cfg.Limiter,
		limiterCalls:  cfg.LimiterCalls,
		limiterPeriod: cfg.LimiterPeriod,
	}
}

// acquire blocks for a rate-limiter token keyed by providerClass, when a
// limiter is configured. A nil limiter means rate limiting is the adapter's
// own responsibility.
func (c *Coordinator) acquire(ctx context.Context, providerClass string) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Acquire(ctx, providerClass, c.limiterCalls, c.limiterPeriod)
}

// Submit enqueues a request and returns a Future for its result. When the
// coordinator is disabled, the request still runs asynchronously (in its
// own goroutine) but bypasses batching entirely — preserving the same API
// shape for callers regardless of configuration.
func (c *Coordinator) Submit(req Request) *Future {
	req.resultCh = make(chan Result, 1)
	future := &Future{ch: req.resultCh}

	if !c.enabled {
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			c.executeSingle(&req)
		}()
		return future
	}

	c.mu.Lock()
	c.pending[req.ProviderClass] = append(c.pending[req.ProviderClass], &req)
	shouldStart := !c.processing
	if shouldStart {
		c.processing = true
	}
	c.mu.Unlock()

	if shouldStart {
		c.wg.Add(1)
		go c.processAfterWindow()
	}

	return future
}

// SubmitAndWait submits and blocks for the result, for callers that need
// synchronous semantics regardless of whether the coordinator is enabled.
func (c *Coordinator) SubmitAndWait(ctx context.Context, req Request, timeout time.Duration) (Result, error) {
	if !c.enabled {
		if err := c.acquire(ctx, req.ProviderClass); err != nil {
			return Result{Err: err}, err
		}
		result := Result{}
		fetchErr := make(chan struct{})
		go func() {
			rows, err := req.Adapter.FetchRange(ctx, req.Symbol, req.Start, req.End, req.CollectorKwargs)
			result = Result{Rows: rows, Err: err}
			close(fetchErr)
		}()
		select {
		case <-fetchErr:
			return result, result.Err
		case <-ctx.Done():
			return Result{}, ctx.Err()
		}
	}

	future := c.Submit(req)
	return future.Wait(ctx, timeout)
}

func (c *Coordinator) processAfterWindow() {
	defer c.wg.Done()

	select {
	case <-time.After(c.window):
	case <-c.stopCh:
	}

	c.mu.Lock()
	batch := c.pending
	c.pending = make(map[string][]*Request)
	c.processing = false
	c.mu.Unlock()

	for providerClass, requests := range batch {
		if len(requests) == 0 {
			continue
		}
		c.processProviderClass(providerClass, requests)
	}
}

func (c *Coordinator) processProviderClass(providerClass string, requests []*Request) {
	groups := groupByKey(requests)
	for _, group := range groups {
		if len(group) > 1 {
			c.executeBatch(providerClass, group)
		} else {
			c.executeSingle(group[0])
		}
	}
}

// groupingKey groups requests by (provider_class, start_date, end_date,
// canonical(collector_kwargs)) so overlapping fetches can share one call.
func groupingKey(req *Request) string {
	canon := canonicalKwargs(req.CollectorKwargs)
	return fmt.Sprintf("%s|%s|%s|%s", req.ProviderClass, req.Start.UTC().Format(time.RFC3339Nano), req.End.UTC().Format(time.RFC3339Nano), canon)
}

func canonicalKwargs(kwargs domain.JSONBMap) string {
	if len(kwargs) == 0 {
		return "{}"
	}
	keys := make([]string, 0, len(kwargs))
	for k := range kwargs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ordered := make(map[string]any, len(kwargs))
	for _, k := range keys {
		ordered[k] = kwargs[k]
	}
	b, err := json.Marshal(ordered)
	if err != nil {
		return fmt.Sprintf("%v", kwargs)
	}
	return string(b)
}

func groupByKey(requests []*Request) [][]*Request {
	order := make([]string, 0)
	groups := make(map[string][]*Request)
	for _, req := range requests {
		key := groupingKey(req)
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], req)
	}

	out := make([][]*Request, 0, len(order))
	for _, key := range order {
		out = append(out, groups[key])
	}
	return out
}

func (c *Coordinator) executeSingle(req *Request) {
	ctx := context.Background()
	if err := c.acquire(ctx, req.ProviderClass); err != nil {
		req.resultCh <- Result{Err: err}
		return
	}
	rows, err := req.Adapter.FetchRange(ctx, req.Symbol, req.Start, req.End, req.CollectorKwargs)
	req.resultCh <- Result{Rows: rows, Err: err}
}

// executeBatch calls the provider's batch method if it supports one;
// otherwise falls back to sequential calls.
func (c *Coordinator) executeBatch(providerClass string, group []*Request) {
	batchAdapter, ok := group[0].Adapter.(provider.BatchAdapter)
	if !ok {
		c.log.Warn("coordinator: provider does not support batch fetch, executing sequentially", "provider_class", providerClass)
		for _, req := range group {
			c.executeSingle(req)
		}
		return
	}

	symbols := make([]string, len(group))
	for i, req := range group {
		symbols[i] = req.Symbol
	}

	first := group[0]
	ctx := context.Background()
	if err := c.acquire(ctx, providerClass); err != nil {
		for _, req := range group {
			req.resultCh <- Result{Err: err}
		}
		return
	}
	rowsBySymbol, err := batchAdapter.FetchRangeBatch(ctx, symbols, first.Start, first.End, first.CollectorKwargs)
	if err != nil {
		// The batch raised: broadcast the error to every future in the batch.
		for _, req := range group {
			req.resultCh <- Result{Err: err}
		}
		return
	}

	for _, req := range group {
		rows, found := rowsBySymbol[req.Symbol]
		if !found {
			// Batch succeeded overall but this symbol had nothing: an empty
			// result outcome, not an error.
			req.resultCh <- Result{Rows: nil}
			continue
		}
		req.resultCh <- Result{Rows: rows}
	}
}

// Shutdown stops accepting new window timers and waits for in-flight
// submissions to finish delivering their results.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	c.stopOnce.Do(func() { close(c.stopCh) })

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
