package domain

import "time"

// Job status values.
const (
	JobStatusPending   = "pending"
	JobStatusActive    = "active"
	JobStatusPaused    = "paused"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

// Job is a declarative description of a recurring or one-shot ingestion.
type Job struct {
	JobID     string `db:"job_id"     json:"job_id"`
	Symbol    string `db:"symbol"     json:"symbol"`
	AssetType string `db:"asset_type" json:"asset_type"`

	TriggerType   string `db:"trigger_type"   json:"trigger_type"`
	TriggerConfig JSONBMap `db:"trigger_config" json:"trigger_config"`

	StartDate *time.Time `db:"start_date" json:"start_date,omitempty"`
	EndDate   *time.Time `db:"end_date"   json:"end_date,omitempty"`

	CollectorKwargs JSONBMap `db:"collector_kwargs" json:"collector_kwargs,omitempty"`
	AssetMetadata   JSONBMap `db:"asset_metadata"   json:"asset_metadata,omitempty"`

	Status string `db:"status" json:"status"`

	MaxRetries             int     `db:"max_retries"               json:"max_retries"`
	RetryDelaySeconds       float64 `db:"retry_delay_seconds"       json:"retry_delay_seconds"`
	RetryBackoffMultiplier  float64 `db:"retry_backoff_multiplier"  json:"retry_backoff_multiplier"`
	CurrentRetryAttempt     int     `db:"current_retry_attempt"     json:"current_retry_attempt"`

	NextRunAt   *time.Time `db:"next_run_at"   json:"next_run_at,omitempty"`
	LastRunAt   *time.Time `db:"last_run_at"   json:"last_run_at,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`

	// Dependencies is populated by batch preload in ListJobs; nil unless
	// explicitly loaded.
	Dependencies []JobDependency `db:"-" json:"dependencies,omitempty"`
}

// UpdatableFields is the allow-list enforced by update_job. Any
// field not listed here is rejected by the store layer.
var UpdatableFields = map[string]bool{
	"symbol":                   true,
	"asset_type":               true,
	"trigger_type":             true,
	"trigger_config":           true,
	"start_date":               true,
	"end_date":                 true,
	"collector_kwargs":         true,
	"asset_metadata":           true,
	"status":                   true,
	"max_retries":              true,
	"retry_delay_seconds":      true,
	"retry_backoff_multiplier": true,
}

// Dependency condition kinds.
const (
	DependencyConditionSuccess  = "success"
	DependencyConditionComplete = "complete"
	DependencyConditionAny      = "any"
)

// JobDependency is a directed edge: JobID depends on DependsOnJobID.
type JobDependency struct {
	ID              int64  `db:"id"                 json:"id"`
	JobID           string `db:"job_id"              json:"job_id"`
	DependsOnJobID  string `db:"depends_on_job_id"   json:"depends_on_job_id"`
	Condition       string `db:"condition"           json:"condition"`
}
