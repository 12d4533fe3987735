package loader_test

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/marketpulse/scheduler/internal/domain"
	"github.com/marketpulse/scheduler/internal/loader"
)

func TestLoader_RowByRow_UpdatePolicy(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	db := sqlx.NewDb(mockDB, "postgres")
	ld := loader.NewLoader(db, false)

	mock.ExpectPrepare("INSERT INTO forex_rates").
		ExpectExec().
		WithArgs("asset-1", "2024-01-01T00:00:00Z", 1.1).
		WillReturnResult(sqlmock.NewResult(1, 1))

	rows := []loader.NormalizedRow{
		{
			AssetID: "asset-1",
			Time:    "2024-01-01T00:00:00Z",
			Columns: map[string]any{"rate": 1.1},
		},
	}

	result, err := ld.Load(context.Background(), domain.AssetTypeForex, rows, loader.ConflictUpdate)
	require.NoError(t, err)
	require.Equal(t, 1, result.Attempted)
	require.Equal(t, 1, result.Affected)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLoader_RowByRow_DoNothingSkipsDuplicate(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	db := sqlx.NewDb(mockDB, "postgres")
	ld := loader.NewLoader(db, true) // disableBulk forces row-by-row even under do_nothing

	mock.ExpectPrepare("INSERT INTO forex_rates").
		ExpectExec().
		WithArgs("asset-1", "2024-01-01T00:00:00Z", 1.1).
		WillReturnResult(sqlmock.NewResult(0, 0)) // conflict: no rows affected

	rows := []loader.NormalizedRow{
		{AssetID: "asset-1", Time: "2024-01-01T00:00:00Z", Columns: map[string]any{"rate": 1.1}},
	}

	result, err := ld.Load(context.Background(), domain.AssetTypeForex, rows, loader.ConflictDoNothing)
	require.NoError(t, err)
	require.Equal(t, 1, result.Attempted)
	require.Equal(t, 0, result.Affected)
	require.Equal(t, 1, result.Skipped)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLoader_EmptyInput_NoOp(t *testing.T) {
	mockDB, _, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	db := sqlx.NewDb(mockDB, "postgres")
	ld := loader.NewLoader(db, false)

	result, err := ld.Load(context.Background(), domain.AssetTypeForex, nil, loader.ConflictDoNothing)
	require.NoError(t, err)
	require.Equal(t, loader.Result{}, result)
}
