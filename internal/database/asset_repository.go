package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/marketpulse/scheduler/internal/domain"
)

// ErrAssetNotFound is returned when a lookup finds no matching asset.
var ErrAssetNotFound = errors.New("database: asset not found")

// AssetRepository persists Asset rows and answers range queries against
// the time-series tables keyed by asset type.
type AssetRepository struct {
	db *sqlx.DB
}

// NewAssetRepository constructs an AssetRepository.
func NewAssetRepository(db *sqlx.DB) *AssetRepository {
	return &AssetRepository{db: db}
}

const assetSelectColumns = `asset_id, symbol, asset_type, display_name, data_source,
	exchange, currency, base_currency, quote_currency, series_id,
	metadata, is_active, created_at, updated_at`

// GetBySymbol looks up an asset by its natural key.
func (r *AssetRepository) GetBySymbol(ctx context.Context, symbol, assetType string) (*domain.Asset, error) {
	var a domain.Asset
	query := `SELECT ` + assetSelectColumns + ` FROM assets WHERE symbol = $1 AND asset_type = $2`
	err := r.db.GetContext(ctx, &a, query, symbol, assetType)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAssetNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get asset by symbol: %w", err)
	}
	return &a, nil
}

// GetByID looks up an asset by its surrogate key.
func (r *AssetRepository) GetByID(ctx context.Context, assetID string) (*domain.Asset, error) {
	var a domain.Asset
	query := `SELECT ` + assetSelectColumns + ` FROM assets WHERE asset_id = $1`
	err := r.db.GetContext(ctx, &a, query, assetID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAssetNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get asset by id: %w", err)
	}
	return &a, nil
}

// UpsertAsset creates the asset on first ingest of a symbol, or updates its
// metadata when it already exists. Returns the
// resolved asset_id.
func (r *AssetRepository) UpsertAsset(ctx context.Context, symbol, assetType string, metadata domain.JSONBMap) (string, error) {
	if !domain.ValidAssetType(assetType) {
		return "", fmt.Errorf("database: unrecognized asset type %q", assetType)
	}

	assetID := uuid.NewString()
	query := `
		INSERT INTO assets (asset_id, symbol, asset_type, metadata, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, true, now(), now())
		ON CONFLICT (symbol, asset_type) DO UPDATE
			SET metadata = assets.metadata || EXCLUDED.metadata,
			    updated_at = now()
		RETURNING asset_id`

	var resolvedID string
	if err := r.db.GetContext(ctx, &resolvedID, query, assetID, symbol, assetType, metadata); err != nil {
		return "", fmt.Errorf("upsert asset: %w", err)
	}
	return resolvedID, nil
}

// ExistingRange returns the stored (min, max) time bounds for an asset's
// time-series table. ok is false when the asset has no rows yet.
func (r *AssetRepository) ExistingRange(ctx context.Context, assetID, assetType string) (rng domain.TimeRange, ok bool, err error) {
	table, known := domain.TableForAssetType(assetType)
	if !known {
		return domain.TimeRange{}, false, fmt.Errorf("database: unrecognized asset type %q", assetType)
	}

	query := fmt.Sprintf(`SELECT min(time), max(time) FROM %s WHERE asset_id = $1`, table)

	var minTime, maxTime sql.NullTime
	if err := r.db.QueryRowContext(ctx, query, assetID).Scan(&minTime, &maxTime); err != nil {
		return domain.TimeRange{}, false, fmt.Errorf("existing range: %w", err)
	}
	if !minTime.Valid || !maxTime.Valid {
		return domain.TimeRange{}, false, nil
	}
	return domain.TimeRange{Start: minTime.Time.UTC(), End: maxTime.Time.UTC()}, true, nil
}

// Deactivate flips is_active false (soft delete). Cascade to time-series
// rows is enforced by the foreign key at the schema level.
func (r *AssetRepository) Deactivate(ctx context.Context, assetID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE assets SET is_active = false, updated_at = now() WHERE asset_id = $1`, assetID)
	if err != nil {
		return fmt.Errorf("deactivate asset: %w", err)
	}
	return nil
}
