package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/marketpulse/scheduler/internal/domain"
)

// CollectionLogRepository persists CollectionLog rows: per-ingestion
// accounting for one (asset, range) fetch.
type CollectionLogRepository struct {
	db *sqlx.DB
}

// NewCollectionLogRepository constructs a CollectionLogRepository.
func NewCollectionLogRepository(db *sqlx.DB) *CollectionLogRepository {
	return &CollectionLogRepository{db: db}
}

// Create inserts a collection log row. end must be >= start; callers are expected to have already validated this.
func (r *CollectionLogRepository) Create(ctx context.Context, l *domain.CollectionLog) error {
	if l.LogID == "" {
		l.LogID = uuid.NewString()
	}
	query := `
		INSERT INTO data_collection_log (
			log_id, asset_id, provider_name, start_date, end_date,
			records_collected, status, error_message, duration_ms, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
		RETURNING created_at`

	err := r.db.QueryRowContext(ctx, query,
		l.LogID, l.AssetID, l.ProviderName, l.StartDate, l.EndDate,
		l.RecordsCollected, l.Status, l.ErrorMessage, l.DurationMs,
	).Scan(&l.CreatedAt)
	if err != nil {
		return fmt.Errorf("create collection log: %w", err)
	}
	return nil
}
