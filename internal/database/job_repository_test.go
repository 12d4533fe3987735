package database_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketpulse/scheduler/internal/database"
	"github.com/marketpulse/scheduler/internal/domain"
)

func newTestJob(jobID string) *domain.Job {
	return &domain.Job{
		JobID:         jobID,
		Symbol:        "AAPL",
		AssetType:     domain.AssetTypeStock,
		TriggerType:   domain.TriggerExecuteNow,
		TriggerConfig: domain.JSONBMap{},
		Status:        domain.JobStatusPending,
		MaxRetries:    3,
	}
}

func TestCreateJobWithDependencies_InsertsJobAndEdgesInOneTransaction(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	db := sqlx.NewDb(mockDB, "postgres")
	repo := database.NewJobRepository(db)

	job := newTestJob("job-1")
	deps := []domain.JobDependency{{DependsOnJobID: "parent-1", Condition: domain.DependencyConditionSuccess}}

	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO scheduler_jobs").
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
	mock.ExpectQuery("INSERT INTO job_dependencies").
		WithArgs("job-1", "parent-1", domain.DependencyConditionSuccess).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))
	mock.ExpectCommit()

	err = repo.CreateJobWithDependencies(context.Background(), job, deps)

	require.NoError(t, err)
	assert.Equal(t, now, job.CreatedAt)
	require.Len(t, job.Dependencies, 1)
	assert.Equal(t, "job-1", job.Dependencies[0].JobID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateJobWithDependencies_RejectsSelfDependencyAndRollsBack(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	db := sqlx.NewDb(mockDB, "postgres")
	repo := database.NewJobRepository(db)

	job := newTestJob("job-1")
	deps := []domain.JobDependency{{DependsOnJobID: "job-1", Condition: domain.DependencyConditionSuccess}}

	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO scheduler_jobs").
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
	mock.ExpectRollback()

	err = repo.CreateJobWithDependencies(context.Background(), job, deps)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "self-dependency")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateJobWithDependencies_RollsBackOnDependencyInsertError(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	db := sqlx.NewDb(mockDB, "postgres")
	repo := database.NewJobRepository(db)

	job := newTestJob("job-1")
	deps := []domain.JobDependency{{DependsOnJobID: "parent-1", Condition: domain.DependencyConditionSuccess}}

	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO scheduler_jobs").
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
	mock.ExpectQuery("INSERT INTO job_dependencies").
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	err = repo.CreateJobWithDependencies(context.Background(), job, deps)

	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateJob_RejectsFieldNotInAllowList(t *testing.T) {
	mockDB, _, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	db := sqlx.NewDb(mockDB, "postgres")
	repo := database.NewJobRepository(db)

	_, err = repo.UpdateJob(context.Background(), "job-1", map[string]any{"job_id": "job-2"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "not updatable")
}

func TestUpdateJob_AppliesWhitelistedFieldsAndReloadsRow(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	db := sqlx.NewDb(mockDB, "postgres")
	repo := database.NewJobRepository(db)

	mock.ExpectExec("UPDATE scheduler_jobs SET").
		WithArgs(domain.JobStatusActive, "job-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	rows := sqlmock.NewRows([]string{
		"job_id", "symbol", "asset_type", "trigger_type", "trigger_config",
		"start_date", "end_date", "collector_kwargs", "asset_metadata", "status",
		"max_retries", "retry_delay_seconds", "retry_backoff_multiplier", "current_retry_attempt",
		"next_run_at", "last_run_at", "created_at", "updated_at",
	}).AddRow(
		"job-1", "AAPL", "stock", "execute_now", []byte("{}"),
		nil, nil, nil, nil, "active",
		3, 0.0, 1.0, 0,
		nil, nil, time.Now(), time.Now(),
	)
	mock.ExpectQuery("SELECT").WillReturnRows(rows)

	got, err := repo.UpdateJob(context.Background(), "job-1", map[string]any{"status": domain.JobStatusActive})

	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusActive, got.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateJob_NoRowsAffectedReturnsNotFound(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	db := sqlx.NewDb(mockDB, "postgres")
	repo := database.NewJobRepository(db)

	mock.ExpectExec("UPDATE scheduler_jobs SET").
		WillReturnResult(sqlmock.NewResult(0, 0))

	_, err = repo.UpdateJob(context.Background(), "missing-job", map[string]any{"status": domain.JobStatusActive})

	require.ErrorIs(t, err, database.ErrJobNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
