package ratelimiter_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketpulse/scheduler/internal/ratelimiter"
)

func TestRegistry_SharesSingleBucketPerKey(t *testing.T) {
	reg := ratelimiter.New(nil)

	require.True(t, reg.TryAcquire("alpha-vantage", 2, time.Second))
	require.True(t, reg.TryAcquire("alpha-vantage", 2, time.Second))
	assert.False(t, reg.TryAcquire("alpha-vantage", 2, time.Second))
}

func TestRegistry_FirstWriterWinsOnDifferingParams(t *testing.T) {
	reg := ratelimiter.New(nil)

	require.True(t, reg.TryAcquire("yfinance", 1, time.Second))
	// Second call requests a much looser limit; it should be ignored, not applied.
	assert.False(t, reg.TryAcquire("yfinance", 100, time.Second))
}

func TestRegistry_IndependentKeysDoNotShareBuckets(t *testing.T) {
	reg := ratelimiter.New(nil)

	require.True(t, reg.TryAcquire("provider-a", 1, time.Second))
	require.True(t, reg.TryAcquire("provider-b", 1, time.Second))
}

func TestRegistry_AcquireBlocksUntilTokenAvailable(t *testing.T) {
	reg := ratelimiter.New(nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	require.NoError(t, reg.Acquire(ctx, "slow", 1, 50*time.Millisecond))
	start := time.Now()
	require.NoError(t, reg.Acquire(ctx, "slow", 1, 50*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestRegistry_Reset(t *testing.T) {
	reg := ratelimiter.New(nil)
	require.True(t, reg.TryAcquire("x", 1, time.Second))
	reg.Reset()
	assert.Empty(t, reg.Keys())
	assert.True(t, reg.TryAcquire("x", 1, time.Second))
}
