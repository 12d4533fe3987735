package coordinator_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketpulse/scheduler/internal/coordinator"
	"github.com/marketpulse/scheduler/internal/domain"
	"github.com/marketpulse/scheduler/internal/provider"
)

type fakeAdapter struct {
	mu          sync.Mutex
	fetchCalls  int
	rows        []domain.ProviderRow
	err         error
	batchRows   map[string][]domain.ProviderRow
	batchErr    error
	batchCalled bool
}

func (f *fakeAdapter) FetchRange(ctx context.Context, symbol string, start, end time.Time, kwargs domain.JSONBMap) ([]domain.ProviderRow, error) {
	f.mu.Lock()
	f.fetchCalls++
	f.mu.Unlock()
	return f.rows, f.err
}

func (f *fakeAdapter) AssetInfo(ctx context.Context, symbol string) (domain.JSONBMap, error) {
	return domain.JSONBMap{}, nil
}

func (f *fakeAdapter) Name() string { return "fake" }

type fakeBatchAdapter struct {
	fakeAdapter
}

func (f *fakeBatchAdapter) FetchRangeBatch(ctx context.Context, symbols []string, start, end time.Time, kwargs domain.JSONBMap) (map[string][]domain.ProviderRow, error) {
	f.mu.Lock()
	f.batchCalled = true
	f.mu.Unlock()
	return f.batchRows, f.batchErr
}

var _ provider.Adapter = (*fakeAdapter)(nil)
var _ provider.BatchAdapter = (*fakeBatchAdapter)(nil)

func TestCoordinator_Disabled_ExecutesSynchronously(t *testing.T) {
	adapter := &fakeAdapter{rows: []domain.ProviderRow{{Time: time.Now()}}}
	c := coordinator.New(coordinator.Config{Enabled: false}, nil)

	result, err := c.SubmitAndWait(context.Background(), coordinator.Request{
		Symbol: "AAPL", ProviderClass: "StockCollector", Adapter: adapter,
		Start: time.Now(), End: time.Now(),
	}, 2*time.Second)

	require.NoError(t, err)
	assert.Len(t, result.Rows, 1)
}

func TestCoordinator_GroupsAndBatches(t *testing.T) {
	adapter := &fakeBatchAdapter{
		fakeAdapter: fakeAdapter{},
	}
	adapter.batchRows = map[string][]domain.ProviderRow{
		"AAPL": {{Time: time.Now()}},
		"MSFT": {{Time: time.Now()}, {Time: time.Now()}},
	}

	c := coordinator.New(coordinator.Config{Enabled: true, Window: 50 * time.Millisecond}, nil)

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)

	f1 := c.Submit(coordinator.Request{Symbol: "AAPL", ProviderClass: "StockCollector", Adapter: adapter, Start: start, End: end})
	f2 := c.Submit(coordinator.Request{Symbol: "MSFT", ProviderClass: "StockCollector", Adapter: adapter, Start: start, End: end})

	r1, err := f1.Wait(context.Background(), 2*time.Second)
	require.NoError(t, err)
	assert.Len(t, r1.Rows, 1)

	r2, err := f2.Wait(context.Background(), 2*time.Second)
	require.NoError(t, err)
	assert.Len(t, r2.Rows, 2)

	assert.True(t, adapter.batchCalled)
	assert.Equal(t, 0, adapter.fetchCalls)
}

func TestCoordinator_BatchError_BroadcastsToAllFutures(t *testing.T) {
	adapter := &fakeBatchAdapter{fakeAdapter: fakeAdapter{}}
	adapter.batchErr = errors.New("provider exploded")

	c := coordinator.New(coordinator.Config{Enabled: true, Window: 20 * time.Millisecond}, nil)

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)

	f1 := c.Submit(coordinator.Request{Symbol: "AAPL", ProviderClass: "StockCollector", Adapter: adapter, Start: start, End: end})
	f2 := c.Submit(coordinator.Request{Symbol: "MSFT", ProviderClass: "StockCollector", Adapter: adapter, Start: start, End: end})

	_, err1 := f1.Wait(context.Background(), 2*time.Second)
	_, err2 := f2.Wait(context.Background(), 2*time.Second)

	assert.Error(t, err1)
	assert.Error(t, err2)
}

func TestCoordinator_SingleRequestNotBatched(t *testing.T) {
	adapter := &fakeAdapter{rows: []domain.ProviderRow{{Time: time.Now()}}}
	c := coordinator.New(coordinator.Config{Enabled: true, Window: 20 * time.Millisecond}, nil)

	f := c.Submit(coordinator.Request{
		Symbol: "AAPL", ProviderClass: "StockCollector", Adapter: adapter,
		Start: time.Now(), End: time.Now(),
	})

	result, err := f.Wait(context.Background(), 2*time.Second)
	require.NoError(t, err)
	assert.Len(t, result.Rows, 1)
}

func TestCoordinator_Shutdown_WaitsForInFlight(t *testing.T) {
	adapter := &fakeAdapter{rows: []domain.ProviderRow{{Time: time.Now()}}}
	c := coordinator.New(coordinator.Config{Enabled: true, Window: 10 * time.Millisecond}, nil)

	c.Submit(coordinator.Request{Symbol: "AAPL", ProviderClass: "StockCollector", Adapter: adapter, Start: time.Now(), End: time.Now()})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, c.Shutdown(ctx))
}
