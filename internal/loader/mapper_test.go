package loader_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketpulse/scheduler/internal/domain"
	"github.com/marketpulse/scheduler/internal/loader"
)

func TestMapper_MarketData_FillsMissingOptionalColumns(t *testing.T) {
	m := loader.NewMapper()

	rows := []domain.ProviderRow{
		{
			Time: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			Columns: map[string]any{
				"Open": 100.0, "High": 105.0, "Low": 99.0, "Close": 104.0, "Volume": 1000.5,
			},
		},
	}

	mapped, err := m.Map(domain.AssetTypeStock, "asset-1", rows)
	require.NoError(t, err)
	require.Len(t, mapped, 1)

	assert.Equal(t, 100.0, mapped[0].Columns["open"])
	assert.Equal(t, int64(1000), mapped[0].Columns["volume"])
	assert.Nil(t, mapped[0].Columns["dividends"])
	assert.Nil(t, mapped[0].Columns["stock_splits"])
}

func TestMapper_EconomicData_ResolvesValueByPriority(t *testing.T) {
	m := loader.NewMapper()

	rows := []domain.ProviderRow{
		{Time: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Columns: map[string]any{"value": 3.5}},
		{Time: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), Columns: map[string]any{"rate": 3.6}},
	}

	mapped, err := m.Map(domain.AssetTypeEconomicIndicator, "asset-2", rows)
	require.NoError(t, err)
	require.Len(t, mapped, 2)

	assert.Equal(t, 3.5, mapped[0].Columns["value"])
	assert.Equal(t, 3.6, mapped[1].Columns["value"])
}

func TestMapper_DropsRowsWithNullValue(t *testing.T) {
	m := loader.NewMapper()

	rows := []domain.ProviderRow{
		{Time: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Columns: map[string]any{"label": "n/a"}},
		{Time: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), Columns: map[string]any{"value": 1.2}},
	}

	mapped, err := m.Map(domain.AssetTypeBond, "asset-3", rows)
	require.NoError(t, err)
	require.Len(t, mapped, 1)
	assert.Equal(t, 1.2, mapped[0].Columns["rate"])
}

func TestMapper_RejectsUnrecognizedAssetType(t *testing.T) {
	m := loader.NewMapper()
	_, err := m.Map("unknown", "asset-4", []domain.ProviderRow{{Time: time.Now()}})
	assert.Error(t, err)
}
