// Package ratelimiter provides a process-wide, keyed token-bucket limiter
// shared by every job whose provider falls under the same class.
package ratelimiter

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/marketpulse/scheduler/internal/logger"
)

// Registry is a process-singleton set of token-bucket limiters keyed by
// provider class. It has explicit init/reset so tests never depend on
// hidden module-level state.
type Registry struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	log     logger.Interface
}

type bucket struct {
	limiter *rate.Limiter
	calls   int
	period  time.Duration
}

// New builds an empty Registry.
func New(log logger.Interface) *Registry {
	if log == nil {
		log = logger.NewNop()
	}
	return &Registry{buckets: make(map[string]*bucket), log: log}
}

// Acquire blocks until a token is available for key, registering a new
// token bucket the first time key is seen. Subsequent calls for the same
// key must use identical (calls, period); the first writer wins and later
// differing parameters are ignored with a warning.
func (r *Registry) Acquire(ctx context.Context, key string, calls int, period time.Duration) error {
	b := r.bucketFor(key, calls, period)
	return b.limiter.Wait(ctx)
}

// TryAcquire attempts a non-blocking acquisition, returning false if no
// token is immediately available.
func (r *Registry) TryAcquire(key string, calls int, period time.Duration) bool {
	b := r.bucketFor(key, calls, period)
	return b.limiter.Allow()
}

func (r *Registry) bucketFor(key string, calls int, period time.Duration) *bucket {
	r.mu.Lock()
	defer r.mu.Unlock()

	if b, ok := r.buckets[key]; ok {
		if b.calls != calls || b.period != period {
			r.log.Warn("ratelimiter: ignoring differing parameters for existing key",
				"key", key, "existing_calls", b.calls, "existing_period", b.period,
				"requested_calls", calls, "requested_period", period)
		}
		return b
	}

	limit := rate.Every(period / time.Duration(calls))
	b := &bucket{
		limiter: rate.NewLimiter(limit, calls),
		calls:   calls,
		period:  period,
	}
	r.buckets[key] = b
	return b
}

// Reset clears all registered buckets. Intended for test isolation.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buckets = make(map[string]*bucket)
}

// Keys returns the currently registered provider-class keys, for
// diagnostics.
func (r *Registry) Keys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := make([]string, 0, len(r.buckets))
	for k := range r.buckets {
		keys = append(keys, k)
	}
	return keys
}
