// Package ingestion orchestrates fetch → map → load for one
// (symbol, range) request.
package ingestion

import (
	"context"
	"fmt"
	"time"

	"github.com/marketpulse/scheduler/internal/classifier"
	"github.com/marketpulse/scheduler/internal/domain"
	"github.com/marketpulse/scheduler/internal/loader"
	"github.com/marketpulse/scheduler/internal/logger"
	"github.com/marketpulse/scheduler/internal/provider"
	"github.com/marketpulse/scheduler/internal/rangecalc"
)

// Result is the ingestion pipeline's outcome contract.
type Result struct {
	AssetID          string
	RecordsCollected int
	RecordsLoaded    int
	Status           string
	ErrorMessage     *string
	ErrorCategory    *string
	ExecutionTimeMs  int64
	LogID            *string
}

// AssetStore is the subset of the asset repository the pipeline needs.
type AssetStore interface {
	UpsertAsset(ctx context.Context, symbol, assetType string, metadata domain.JSONBMap) (string, error)
}

// LogStore records collection-log rows.
type LogStore interface {
	Create(ctx context.Context, l *domain.CollectionLog) error
}

// Fetcher abstracts how a range is actually fetched: either directly
// against the adapter, or via the request coordinator. Pipeline callers
// supply whichever is wired for the job's provider.
type Fetcher interface {
	Fetch(ctx context.Context, symbol string, start, end time.Time, kwargs domain.JSONBMap) ([]domain.ProviderRow, error)
}

// DirectFetcher calls the adapter with no coordination, used when the
// request coordinator is disabled for this job.
type DirectFetcher struct {
	Adapter provider.Adapter
}

// Fetch implements Fetcher.
func (d DirectFetcher) Fetch(ctx context.Context, symbol string, start, end time.Time, kwargs domain.JSONBMap) ([]domain.ProviderRow, error) {
	return d.Adapter.FetchRange(ctx, symbol, start, end, kwargs)
}

// Pipeline wires the range calculator, fetch path, schema mapper and
// loader together for one ingest call.
type Pipeline struct {
	assets             AssetStore
	ranges             *rangecalc.Calculator
	mapper             *loader.Mapper
	loader             *loader.Loader
	logs               LogStore
	incrementalEnabled bool
	conflictPolicy     string
	log                logger.Interface
}

// Config configures a Pipeline.
type Config struct {
	IncrementalEnabled bool
	ConflictPolicy     string
}

// New builds a Pipeline.
func New(assets AssetStore, ranges *rangecalc.Calculator, mapper *loader.Mapper, ld *loader.Loader, logs LogStore, cfg Config, log logger.Interface) *Pipeline {
	if cfg.ConflictPolicy == "" {
		cfg.ConflictPolicy = loader.ConflictDoNothing
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Pipeline{
		assets:             assets,
		ranges:             ranges,
		mapper:             mapper,
		loader:             ld,
		logs:               logs,
		incrementalEnabled: cfg.IncrementalEnabled,
		conflictPolicy:     cfg.ConflictPolicy,
		log:                log,
	}
}

// Ingest runs fetch → map → load for one (symbol, range) request.
func (p *Pipeline) Ingest(
	ctx context.Context,
	symbol, assetType string,
	start, end time.Time,
	adapter provider.Adapter,
	fetcher Fetcher,
	providerName string,
	collectorKwargs, assetMetadata domain.JSONBMap,
) Result {
	started := time.Now()

	// Step 1: fail-fast on inverted range.
	if end.Before(start) {
		return p.fail(ctx, "", providerName, start, end, started,
			"invalid range: end before start", classifier.CategoryPermanent)
	}

	// Step 2: resolve asset. Derived metadata from the adapter is merged
	// with caller-supplied metadata; caller wins on conflict.
	derivedMetadata := domain.JSONBMap{}
	if adapter != nil {
		if info, err := adapter.AssetInfo(ctx, symbol); err == nil {
			derivedMetadata = info
		}
	}
	mergedMetadata := domain.Merge(derivedMetadata, assetMetadata)

	assetID, err := p.assets.UpsertAsset(ctx, symbol, assetType, mergedMetadata)
	if err != nil {
		return p.failWithClassification(ctx, "", providerName, start, end, started, err)
	}

	// Step 3: narrow to missing ranges if incremental mode is enabled.
	ranges := []domain.TimeRange{{Start: start, End: end}}
	if p.incrementalEnabled {
		missing, err := p.ranges.Missing(ctx, assetID, assetType, start, end)
		if err != nil {
			return p.failWithClassification(ctx, assetID, providerName, start, end, started, err)
		}
		if len(missing) == 0 {
			return p.succeed(ctx, assetID, providerName, start, end, started, 0, 0)
		}
		ranges = missing
	}

	// Step 4: fetch, normalize, load per range.
	var recordsCollected, recordsLoaded int
	for _, rng := range ranges {
		rows, err := fetcher.Fetch(ctx, symbol, rng.Start, rng.End, collectorKwargs)
		if err != nil {
			return p.failWithClassification(ctx, assetID, providerName, start, end, started, err)
		}
		recordsCollected += len(rows)

		if len(rows) == 0 {
			continue
		}

		normalized, err := p.mapper.Map(assetType, assetID, rows)
		if err != nil {
			return p.failWithClassification(ctx, assetID, providerName, start, end, started, err)
		}

		loadResult, err := p.loader.Load(ctx, assetType, normalized, p.conflictPolicy)
		if err != nil {
			return p.failWithClassification(ctx, assetID, providerName, start, end, started, err)
		}
		recordsLoaded += loadResult.Affected
	}

	// Step 5: compute status.
	switch {
	case recordsCollected > 0 && recordsLoaded == recordsCollected:
		return p.succeed(ctx, assetID, providerName, start, end, started, recordsCollected, recordsLoaded)
	case recordsLoaded > 0 && recordsLoaded < recordsCollected:
		dropped := recordsCollected - recordsLoaded
		msg := fmt.Sprintf("partial load; %d rows rejected", dropped)
		return p.failPartial(ctx, assetID, providerName, start, end, started, recordsCollected, recordsLoaded, msg)
	default:
		msg := "no data returned by provider"
		if recordsCollected > 0 {
			msg = "data returned but rejected by loader"
		}
		return p.failPartial(ctx, assetID, providerName, start, end, started, recordsCollected, recordsLoaded, msg)
	}
}

func (p *Pipeline) succeed(ctx context.Context, assetID, providerName string, start, end time.Time, started time.Time, collected, loaded int) Result {
	logID := p.writeLog(ctx, assetID, providerName, start, end, collected, domain.CollectionLogStatusSuccess, nil, time.Since(started))
	return Result{
		AssetID:          assetID,
		RecordsCollected: collected,
		RecordsLoaded:    loaded,
		Status:           domain.ExecutionStatusSuccess,
		ExecutionTimeMs:  time.Since(started).Milliseconds(),
		LogID:            logID,
	}
}

// failPartial records a failed result that nonetheless collected some
// data: a partial load is a failure to investigate, not a third status.
func (p *Pipeline) failPartial(ctx context.Context, assetID, providerName string, start, end time.Time, started time.Time, collected, loaded int, msg string) Result {
	category, _ := classifier.Classify(nil, msg)
	logID := p.writeLog(ctx, assetID, providerName, start, end, collected, domain.CollectionLogStatusFailed, &msg, time.Since(started))
	return Result{
		AssetID:          assetID,
		RecordsCollected: collected,
		RecordsLoaded:    loaded,
		Status:           domain.ExecutionStatusFailed,
		ErrorMessage:     &msg,
		ErrorCategory:    &category,
		ExecutionTimeMs:  time.Since(started).Milliseconds(),
		LogID:            logID,
	}
}

// failWithClassification handles an unexpected exception: classify,
// wrap into the result, and still emit a collection log row.
func (p *Pipeline) failWithClassification(ctx context.Context, assetID, providerName string, start, end time.Time, started time.Time, err error) Result {
	category, _ := classifier.Classify(err, "")
	msg := err.Error()
	logID := p.writeLog(ctx, assetID, providerName, start, end, 0, domain.CollectionLogStatusFailed, &msg, time.Since(started))
	return Result{
		AssetID:         assetID,
		Status:          domain.ExecutionStatusFailed,
		ErrorMessage:    &msg,
		ErrorCategory:   &category,
		ExecutionTimeMs: time.Since(started).Milliseconds(),
		LogID:           logID,
	}
}

func (p *Pipeline) fail(ctx context.Context, assetID, providerName string, start, end time.Time, started time.Time, msg, category string) Result {
	logID := p.writeLog(ctx, assetID, providerName, start, end, 0, domain.CollectionLogStatusFailed, &msg, time.Since(started))
	return Result{
		AssetID:         assetID,
		Status:          domain.ExecutionStatusFailed,
		ErrorMessage:    &msg,
		ErrorCategory:   &category,
		ExecutionTimeMs: time.Since(started).Milliseconds(),
		LogID:           logID,
	}
}

func (p *Pipeline) writeLog(ctx context.Context, assetID, providerName string, start, end time.Time, recordsCollected int, status string, errMsg *string, duration time.Duration) *string {
	if assetID == "" {
		// Step 7: if the asset couldn't even be resolved, there's nothing to
		// log against; the caller's execution record still carries the error.
		return nil
	}

	durationMs := duration.Milliseconds()
	l := &domain.CollectionLog{
		AssetID:          assetID,
		ProviderName:     providerName,
		StartDate:        start,
		EndDate:          end,
		RecordsCollected: recordsCollected,
		Status:           status,
		ErrorMessage:     errMsg,
		DurationMs:       &durationMs,
	}

	if err := p.logs.Create(ctx, l); err != nil {
		p.log.Error("ingestion: failed to write collection log", "error", err, "asset_id", assetID)
		return nil
	}
	return &l.LogID
}
