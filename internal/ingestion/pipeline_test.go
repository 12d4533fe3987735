package ingestion_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketpulse/scheduler/internal/domain"
	"github.com/marketpulse/scheduler/internal/ingestion"
	"github.com/marketpulse/scheduler/internal/loader"
	"github.com/marketpulse/scheduler/internal/rangecalc"
)

type fakeAssets struct {
	assetID string
	err     error
	gotMeta domain.JSONBMap
}

func (f *fakeAssets) UpsertAsset(ctx context.Context, symbol, assetType string, metadata domain.JSONBMap) (string, error) {
	f.gotMeta = metadata
	if f.err != nil {
		return "", f.err
	}
	return f.assetID, nil
}

type fakeLogs struct {
	created []*domain.CollectionLog
}

func (f *fakeLogs) Create(ctx context.Context, l *domain.CollectionLog) error {
	l.LogID = "log-1"
	f.created = append(f.created, l)
	return nil
}

type fakeRanges struct {
	existing domain.TimeRange
	has      bool
	err      error
}

func (f *fakeRanges) ExistingRange(ctx context.Context, assetID, assetType string) (domain.TimeRange, bool, error) {
	return f.existing, f.has, f.err
}

type fakeAdapter struct {
	rows []domain.ProviderRow
	err  error
	info domain.JSONBMap
}

func (a *fakeAdapter) FetchRange(ctx context.Context, symbol string, start, end time.Time, kwargs domain.JSONBMap) ([]domain.ProviderRow, error) {
	if a.err != nil {
		return nil, a.err
	}
	return a.rows, nil
}

func (a *fakeAdapter) AssetInfo(ctx context.Context, symbol string) (domain.JSONBMap, error) {
	return a.info, nil
}

func (a *fakeAdapter) Name() string { return "fake" }

func newPipeline(t *testing.T, assets ingestion.AssetStore, ranges *rangecalc.Calculator, logs ingestion.LogStore, incremental bool) *ingestion.Pipeline {
	t.Helper()
	return ingestion.New(assets, ranges, loader.NewMapper(), nil, logs, ingestion.Config{
		IncrementalEnabled: incremental,
		ConflictPolicy:     loader.ConflictDoNothing,
	}, nil)
}

func TestIngest_RejectsInvertedRange(t *testing.T) {
	assets := &fakeAssets{assetID: "asset-1"}
	logs := &fakeLogs{}
	p := newPipeline(t, assets, rangecalc.New(&fakeRanges{}), logs, false)

	start := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	res := p.Ingest(context.Background(), "AAPL", domain.AssetTypeStock, start, end,
		&fakeAdapter{}, ingestion.DirectFetcher{Adapter: &fakeAdapter{}}, "fake", nil, nil)

	assert.Equal(t, domain.ExecutionStatusFailed, res.Status)
	require.NotNil(t, res.ErrorCategory)
	assert.Equal(t, domain.ErrorCategoryPermanent, *res.ErrorCategory)
	// No asset was resolved, so no collection log row should be written.
	assert.Empty(t, logs.created)
}

func TestIngest_MergesDerivedAndCallerMetadata_CallerWins(t *testing.T) {
	assets := &fakeAssets{assetID: "asset-1"}
	logs := &fakeLogs{}
	p := newPipeline(t, assets, rangecalc.New(&fakeRanges{}), logs, false)

	adapter := &fakeAdapter{info: domain.JSONBMap{"exchange": "NASDAQ", "sector": "tech"}}
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	res := p.Ingest(context.Background(), "AAPL", domain.AssetTypeStock, start, end,
		adapter, ingestion.DirectFetcher{Adapter: adapter}, "fake",
		nil, domain.JSONBMap{"sector": "override"})

	require.Equal(t, "asset-1", res.AssetID)
	assert.Equal(t, "NASDAQ", assets.gotMeta["exchange"])
	assert.Equal(t, "override", assets.gotMeta["sector"])
}

func TestIngest_IncrementalMode_SkipsFetchWhenNothingMissing(t *testing.T) {
	assets := &fakeAssets{assetID: "asset-1"}
	logs := &fakeLogs{}
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)

	ranges := &fakeRanges{has: true, existing: domain.TimeRange{Start: start, End: end}}
	p := newPipeline(t, assets, rangecalc.New(ranges), logs, true)

	adapter := &fakeAdapter{rows: []domain.ProviderRow{{Time: start}}}
	res := p.Ingest(context.Background(), "AAPL", domain.AssetTypeStock, start, end,
		adapter, ingestion.DirectFetcher{Adapter: adapter}, "fake", nil, nil)

	assert.Equal(t, domain.ExecutionStatusSuccess, res.Status)
	assert.Equal(t, 0, res.RecordsCollected)
	require.Len(t, logs.created, 1)
	assert.Equal(t, domain.CollectionLogStatusSuccess, logs.created[0].Status)
}

func TestIngest_ClassifiesProviderErrorAndStillLogs(t *testing.T) {
	assets := &fakeAssets{assetID: "asset-1"}
	logs := &fakeLogs{}
	p := newPipeline(t, assets, rangecalc.New(&fakeRanges{}), logs, false)

	adapter := &fakeAdapter{err: errors.New("connection timeout talking to provider")}
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	res := p.Ingest(context.Background(), "AAPL", domain.AssetTypeStock, start, end,
		adapter, ingestion.DirectFetcher{Adapter: adapter}, "fake", nil, nil)

	assert.Equal(t, domain.ExecutionStatusFailed, res.Status)
	require.NotNil(t, res.ErrorCategory)
	assert.Equal(t, domain.ErrorCategoryTransient, *res.ErrorCategory)
	require.Len(t, logs.created, 1)
	assert.Equal(t, domain.CollectionLogStatusFailed, logs.created[0].Status)
}

func TestIngest_AssetResolutionFailure_SkipsLogButClassifies(t *testing.T) {
	assets := &fakeAssets{err: errors.New("database: connection refused")}
	logs := &fakeLogs{}
	p := newPipeline(t, assets, rangecalc.New(&fakeRanges{}), logs, false)

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	res := p.Ingest(context.Background(), "AAPL", domain.AssetTypeStock, start, end,
		&fakeAdapter{}, ingestion.DirectFetcher{Adapter: &fakeAdapter{}}, "fake", nil, nil)

	assert.Equal(t, domain.ExecutionStatusFailed, res.Status)
	require.NotNil(t, res.ErrorCategory)
	assert.Equal(t, domain.ErrorCategoryTransient, *res.ErrorCategory)
	assert.Empty(t, logs.created)
}

// newPipelineWithLoader wires a real *loader.Loader against sqlmock so the
// step-5 status computation can be exercised past the fetch/map stage,
// forcing the row-by-row path (disableBulk=true) so a single INSERT per
// row can be mocked directly, matching loader_test.go's own pattern.
func newPipelineWithLoader(t *testing.T, assets ingestion.AssetStore, logs ingestion.LogStore) (*ingestion.Pipeline, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	db := sqlx.NewDb(mockDB, "postgres")
	ld := loader.NewLoader(db, true)

	p := ingestion.New(assets, rangecalc.New(&fakeRanges{}), loader.NewMapper(), ld, logs, ingestion.Config{
		IncrementalEnabled: false,
		ConflictPolicy:     loader.ConflictDoNothing,
	}, nil)
	return p, mock
}

func TestIngest_AllRowsLoaded_Succeeds(t *testing.T) {
	assets := &fakeAssets{assetID: "asset-1"}
	logs := &fakeLogs{}
	p, mock := newPipelineWithLoader(t, assets, logs)

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	mock.ExpectPrepare("INSERT INTO forex_rates").
		ExpectExec().
		WithArgs("asset-1", sqlmock.AnyArg(), 1.1).
		WillReturnResult(sqlmock.NewResult(1, 1))

	adapter := &fakeAdapter{rows: []domain.ProviderRow{
		{Time: start, Columns: map[string]any{"rate": 1.1}},
	}}

	res := p.Ingest(context.Background(), "EURUSD", domain.AssetTypeForex, start, end,
		adapter, ingestion.DirectFetcher{Adapter: adapter}, "fake", nil, nil)

	assert.Equal(t, domain.ExecutionStatusSuccess, res.Status)
	assert.Equal(t, 1, res.RecordsCollected)
	assert.Equal(t, 1, res.RecordsLoaded)
	assert.Nil(t, res.ErrorMessage)
	require.Len(t, logs.created, 1)
	assert.Equal(t, domain.CollectionLogStatusSuccess, logs.created[0].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIngest_SomeRowsRejectedByLoader_FailsPartialWithDistinctMessage(t *testing.T) {
	assets := &fakeAssets{assetID: "asset-1"}
	logs := &fakeLogs{}
	p, mock := newPipelineWithLoader(t, assets, logs)

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)

	prep := mock.ExpectPrepare("INSERT INTO forex_rates")
	prep.ExpectExec().
		WithArgs("asset-1", sqlmock.AnyArg(), 1.1).
		WillReturnResult(sqlmock.NewResult(1, 1))
	prep.ExpectExec().
		WithArgs("asset-1", sqlmock.AnyArg(), 1.2).
		WillReturnResult(sqlmock.NewResult(0, 0)) // conflict: no rows affected

	adapter := &fakeAdapter{rows: []domain.ProviderRow{
		{Time: start, Columns: map[string]any{"rate": 1.1}},
		{Time: start.Add(24 * time.Hour), Columns: map[string]any{"rate": 1.2}},
	}}

	res := p.Ingest(context.Background(), "EURUSD", domain.AssetTypeForex, start, end,
		adapter, ingestion.DirectFetcher{Adapter: adapter}, "fake", nil, nil)

	assert.Equal(t, domain.ExecutionStatusFailed, res.Status)
	assert.Equal(t, 2, res.RecordsCollected)
	assert.Equal(t, 1, res.RecordsLoaded)
	require.NotNil(t, res.ErrorMessage)
	assert.Equal(t, "partial load; 1 rows rejected", *res.ErrorMessage)
	require.Len(t, logs.created, 1)
	assert.Equal(t, domain.CollectionLogStatusFailed, logs.created[0].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}
