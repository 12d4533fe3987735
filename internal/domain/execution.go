package domain

import "time"

// Execution status values.
const (
	ExecutionStatusSuccess = "success"
	ExecutionStatusFailed  = "failed"
	ExecutionStatusSkipped = "skipped"
)

// Error category values.
const (
	ErrorCategoryTransient = "transient"
	ErrorCategoryPermanent = "permanent"
	ErrorCategorySystem    = "system"
)

// Execution is an immutable record of one attempt at running a job.
type Execution struct {
	ExecutionID      string     `db:"execution_id"      json:"execution_id"`
	JobID            string     `db:"job_id"             json:"job_id"`
	LogID            *string    `db:"log_id"             json:"log_id,omitempty"`
	ExecutionStatus  string     `db:"execution_status"   json:"execution_status"`
	StartedAt        time.Time  `db:"started_at"         json:"started_at"`
	CompletedAt      *time.Time `db:"completed_at"       json:"completed_at,omitempty"`
	ErrorMessage     *string    `db:"error_message"      json:"error_message,omitempty"`
	ErrorCategory    *string    `db:"error_category"     json:"error_category,omitempty"`
	RecoverySuggestion *string  `db:"recovery_suggestion" json:"recovery_suggestion,omitempty"`
	ExecutionTimeMs  *int64     `db:"execution_time_ms"  json:"execution_time_ms,omitempty"`
	RetryAttempt     int        `db:"retry_attempt"      json:"retry_attempt"`
}

// Collection Log status values.
const (
	CollectionLogStatusSuccess = "success"
	CollectionLogStatusFailed  = "failed"
	CollectionLogStatusPartial = "partial"
)

// CollectionLog is per-ingestion accounting for one (asset, range) fetch.
type CollectionLog struct {
	LogID            string     `db:"log_id"             json:"log_id"`
	AssetID          string     `db:"asset_id"           json:"asset_id"`
	ProviderName     string     `db:"provider_name"      json:"provider_name"`
	StartDate        time.Time  `db:"start_date"         json:"start_date"`
	EndDate          time.Time  `db:"end_date"           json:"end_date"`
	RecordsCollected int        `db:"records_collected"  json:"records_collected"`
	Status           string     `db:"status"             json:"status"`
	ErrorMessage     *string    `db:"error_message"      json:"error_message,omitempty"`
	DurationMs       *int64     `db:"duration_ms"        json:"duration_ms,omitempty"`
	CreatedAt        time.Time  `db:"created_at"         json:"created_at"`
}

// JobStats is aggregate per-job statistics, derived from execution history.
type JobStats struct {
	JobID             string     `json:"job_id"`
	TotalExecutions   int        `json:"total_executions"`
	SuccessfulRuns    int        `json:"successful_runs"`
	FailedRuns        int        `json:"failed_runs"`
	SkippedRuns       int        `json:"skipped_runs"`
	AverageDurationMs float64    `json:"average_duration_ms"`
	LastExecutionAt   *time.Time `json:"last_execution_at"`
	NextScheduledAt   *time.Time `json:"next_scheduled_at"`
	SuccessRate       float64    `json:"success_rate"`
}
