package rangecalc_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketpulse/scheduler/internal/domain"
	"github.com/marketpulse/scheduler/internal/rangecalc"
)

type fakeRangeProvider struct {
	rng domain.TimeRange
	ok  bool
	err error
}

func (f *fakeRangeProvider) ExistingRange(ctx context.Context, assetID, assetType string) (domain.TimeRange, bool, error) {
	return f.rng, f.ok, f.err
}

func mustParse(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse("2006-01-02 15:04:05", s)
	require.NoError(t, err)
	return ts.UTC()
}

func TestMissing_NoExistingData_ReturnsWholeRange(t *testing.T) {
	provider := &fakeRangeProvider{ok: false}
	calc := rangecalc.New(provider)

	start := mustParse(t, "2024-01-01 00:00:00")
	end := mustParse(t, "2024-01-10 00:00:00")

	ranges, err := calc.Missing(context.Background(), "asset-1", domain.AssetTypeStock, start, end)
	require.NoError(t, err)
	require.Len(t, ranges, 1)
	assert.Equal(t, start, ranges[0].Start)
	assert.Equal(t, end, ranges[0].End)
}

func TestMissing_S5_SingleInteriorPoint_TwoGaps(t *testing.T) {
	stored := mustParse(t, "2024-01-05 10:30:00")
	provider := &fakeRangeProvider{rng: domain.TimeRange{Start: stored, End: stored}, ok: true}
	calc := rangecalc.New(provider)

	start := mustParse(t, "2024-01-01 00:00:00")
	end := mustParse(t, "2024-01-10 00:00:00")

	ranges, err := calc.Missing(context.Background(), "asset-1", domain.AssetTypeStock, start, end)
	require.NoError(t, err)
	require.Len(t, ranges, 2)

	assert.Equal(t, start, ranges[0].Start)
	assert.Equal(t, stored.Add(-time.Microsecond), ranges[0].End)

	assert.Equal(t, stored.Add(time.Microsecond), ranges[1].Start)
	assert.Equal(t, end, ranges[1].End)
}

func TestMissing_RequestFullyCovered_NoGaps(t *testing.T) {
	provider := &fakeRangeProvider{
		rng: domain.TimeRange{
			Start: mustParse(t, "2024-01-01 00:00:00"),
			End:   mustParse(t, "2024-01-10 00:00:00"),
		},
		ok: true,
	}
	calc := rangecalc.New(provider)

	ranges, err := calc.Missing(context.Background(), "asset-1", domain.AssetTypeStock,
		mustParse(t, "2024-01-02 00:00:00"), mustParse(t, "2024-01-09 00:00:00"))
	require.NoError(t, err)
	assert.Empty(t, ranges)
}

func TestMissing_OnlyTrailingGap(t *testing.T) {
	provider := &fakeRangeProvider{
		rng: domain.TimeRange{
			Start: mustParse(t, "2024-01-01 00:00:00"),
			End:   mustParse(t, "2024-01-05 00:00:00"),
		},
		ok: true,
	}
	calc := rangecalc.New(provider)

	start := mustParse(t, "2024-01-01 00:00:00")
	end := mustParse(t, "2024-01-10 00:00:00")

	ranges, err := calc.Missing(context.Background(), "asset-1", domain.AssetTypeStock, start, end)
	require.NoError(t, err)
	require.Len(t, ranges, 1)
	assert.Equal(t, mustParse(t, "2024-01-05 00:00:00").Add(time.Microsecond), ranges[0].Start)
	assert.Equal(t, end, ranges[0].End)
}
