package main

import (
	"context"
	"time"

	"github.com/marketpulse/scheduler/internal/database"
	"github.com/marketpulse/scheduler/internal/domain"
	"github.com/marketpulse/scheduler/internal/scheduler"
	"github.com/marketpulse/scheduler/internal/searchindex"
)

// mirroringStore wraps *database.Store so that every recorded execution is
// also mirrored into the search index, without the scheduler or API layer
// needing to know the index exists. index may be nil, in which case this
// is a pass-through.
type mirroringStore struct {
	*database.Store
	index *searchindex.Client
}

// RecordExecution shadows the embedded Store's method, recording to
// Postgres first and mirroring into Elasticsearch only once that succeeds.
func (m *mirroringStore) RecordExecution(ctx context.Context, e *domain.Execution) error {
	if err := m.Store.RecordExecution(ctx, e); err != nil {
		return err
	}
	if m.index != nil {
		m.index.IndexExecution(ctx, e)
	}
	return nil
}

// mirroringLogStore wraps *database.CollectionLogRepository, mirroring
// every collection log row into the search index alongside the row of
// record in Postgres. Satisfies ingestion.LogStore.
type mirroringLogStore struct {
	repo  *database.CollectionLogRepository
	index *searchindex.Client
}

func (m *mirroringLogStore) Create(ctx context.Context, l *domain.CollectionLog) error {
	if err := m.repo.Create(ctx, l); err != nil {
		return err
	}
	if m.index != nil {
		m.index.IndexCollectionLog(ctx, l)
	}
	return nil
}

// schedulerHolder breaks the construction cycle between scheduler.Scheduler
// (which needs a scheduler.RetryHandler) and retrypolicy.Controller (which
// needs a retrypolicy.Scheduler): the holder is built first, handed to
// the retry controller, then populated once the real scheduler exists.
type schedulerHolder struct {
	inner *scheduler.Scheduler
}

func (h *schedulerHolder) ScheduleOneShot(jobID string, at time.Time, retryAttempt int) {
	h.inner.ScheduleOneShot(jobID, at, retryAttempt)
}
