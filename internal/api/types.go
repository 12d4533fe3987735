package api

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/marketpulse/scheduler/internal/domain"
)

// DependencySpec is one dependency edge in a job create request.
type DependencySpec struct {
	DependsOnJobID string `json:"depends_on_job_id"`
	Condition      string `json:"condition"`
}

// CreateJobRequest is the JobCreate body.
type CreateJobRequest struct {
	JobID                  string            `json:"job_id,omitempty"`
	Symbol                 string            `json:"symbol"`
	AssetType              string            `json:"asset_type"`
	Trigger                json.RawMessage   `json:"trigger"`
	StartDate              *time.Time        `json:"start_date,omitempty"`
	EndDate                *time.Time        `json:"end_date,omitempty"`
	CollectorKwargs        domain.JSONBMap   `json:"collector_kwargs,omitempty"`
	AssetMetadata          domain.JSONBMap   `json:"asset_metadata,omitempty"`
	MaxRetries             *int              `json:"max_retries,omitempty"`
	RetryDelaySeconds      *float64          `json:"retry_delay_seconds,omitempty"`
	RetryBackoffMultiplier *float64          `json:"retry_backoff_multiplier,omitempty"`
	Dependencies           []DependencySpec  `json:"dependencies,omitempty"`
}

// UpdateJobRequest is the JobUpdate body: any subset of the fields in
// domain.UpdatableFields.
type UpdateJobRequest map[string]any

const (
	defaultMaxRetries             = 3
	defaultRetryDelaySeconds      = 60.0
	defaultRetryBackoffMultiplier = 2.0
)

// toJob validates the request and builds the domain.Job + dependency edges
// to persist. Trigger parsing is strict about shape.
func (r CreateJobRequest) toJob() (*domain.Job, []domain.JobDependency, error) {
	if r.Symbol == "" {
		return nil, nil, fmt.Errorf("symbol is required")
	}
	if !domain.ValidAssetType(r.AssetType) {
		return nil, nil, fmt.Errorf("unrecognized asset_type %q", r.AssetType)
	}
	if len(r.Trigger) == 0 {
		return nil, nil, fmt.Errorf("trigger is required")
	}

	trigger, err := domain.ParseTrigger(r.Trigger)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid trigger: %w", err)
	}

	triggerType, triggerConfig, err := flattenTrigger(trigger)
	if err != nil {
		return nil, nil, err
	}

	if r.EndDate != nil && r.StartDate != nil && r.EndDate.Before(*r.StartDate) {
		return nil, nil, fmt.Errorf("end_date before start_date")
	}

	jobID := r.JobID
	if jobID == "" {
		jobID = generateJobID(triggerType, r.Symbol)
	}

	job := &domain.Job{
		JobID:                  jobID,
		Symbol:                 r.Symbol,
		AssetType:              r.AssetType,
		TriggerType:            triggerType,
		TriggerConfig:          triggerConfig,
		StartDate:              r.StartDate,
		EndDate:                r.EndDate,
		CollectorKwargs:        r.CollectorKwargs,
		AssetMetadata:          r.AssetMetadata,
		Status:                 domain.JobStatusPending,
		MaxRetries:             defaultMaxRetries,
		RetryDelaySeconds:      defaultRetryDelaySeconds,
		RetryBackoffMultiplier: defaultRetryBackoffMultiplier,
	}
	if r.MaxRetries != nil {
		job.MaxRetries = *r.MaxRetries
	}
	if r.RetryDelaySeconds != nil {
		job.RetryDelaySeconds = *r.RetryDelaySeconds
	}
	if r.RetryBackoffMultiplier != nil {
		job.RetryBackoffMultiplier = *r.RetryBackoffMultiplier
	}

	deps := make([]domain.JobDependency, 0, len(r.Dependencies))
	for _, d := range r.Dependencies {
		if d.DependsOnJobID == jobID {
			return nil, nil, fmt.Errorf("self-dependency rejected for job %s", jobID)
		}
		condition := d.Condition
		if condition == "" {
			condition = domain.DependencyConditionSuccess
		}
		deps = append(deps, domain.JobDependency{DependsOnJobID: d.DependsOnJobID, Condition: condition})
	}

	return job, deps, nil
}

// flattenTrigger re-derives (trigger_type, trigger_config) from the parsed
// Trigger so what's stored round-trips cleanly through
// scheduler.parseJobTrigger.
func flattenTrigger(t *domain.Trigger) (string, domain.JSONBMap, error) {
	if t.ExecuteNow {
		return domain.TriggerExecuteNow, domain.JSONBMap{}, nil
	}
	switch {
	case t.Cron != nil:
		cfg, err := toMap(t.Cron)
		return domain.TriggerCron, cfg, err
	case t.Interval != nil:
		cfg, err := toMap(t.Interval)
		return domain.TriggerInterval, cfg, err
	default:
		return "", nil, fmt.Errorf(`trigger "type" must be one of "cron", "interval"`)
	}
}

func toMap(v any) (domain.JSONBMap, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m domain.JSONBMap
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// generateJobID builds an id of the shape "{type}_{symbol}_{epoch}_{rand}".
func generateJobID(triggerType, symbol string) string {
	return fmt.Sprintf("%s_%s_%d_%04d", triggerType, symbol, time.Now().Unix(), rand.Intn(10000)) //nolint:gosec
}
