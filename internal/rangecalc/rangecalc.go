// Package rangecalc computes the subset of a requested time window that is
// not already present in a time-series table, so the ingestion pipeline
// only re-fetches what's missing.
package rangecalc

import (
	"context"
	"time"

	"github.com/marketpulse/scheduler/internal/domain"
)

// epsilon separates a gap boundary from the nearest stored extremum. A
// full-day epsilon (as used by some incremental trackers) loses data at
// sub-day granularity, so this is fixed at one microsecond regardless of
// the data's nominal frequency.
const epsilon = time.Microsecond

// RangeProvider answers the existing (min, max) stored time bounds for an
// asset. database.AssetRepository satisfies this.
type RangeProvider interface {
	ExistingRange(ctx context.Context, assetID, assetType string) (domain.TimeRange, bool, error)
}

// Calculator computes missing time windows.
type Calculator struct {
	ranges RangeProvider
}

// New builds a Calculator.
func New(ranges RangeProvider) *Calculator {
	return &Calculator{ranges: ranges}
}

// Missing returns the ordered list of [start, end] intervals within
// [requestedStart, requestedEnd] that are not already present in the
// asset's table. Both requested bounds are coerced to UTC, and compared
// against the stored extrema, themselves coerced to UTC, so timezone-naive
// and timezone-aware inputs are treated consistently.
func (c *Calculator) Missing(ctx context.Context, assetID, assetType string, requestedStart, requestedEnd time.Time) ([]domain.TimeRange, error) {
	requestedStart = requestedStart.UTC()
	requestedEnd = requestedEnd.UTC()

	existing, ok, err := c.ranges.ExistingRange(ctx, assetID, assetType)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []domain.TimeRange{{Start: requestedStart, End: requestedEnd}}, nil
	}

	existingMin := existing.Start.UTC()
	existingMax := existing.End.UTC()

	var gaps []domain.TimeRange

	if requestedStart.Before(existingMin) {
		gaps = append(gaps, domain.TimeRange{
			Start: requestedStart,
			End:   existingMin.Add(-epsilon),
		})
	}
	if requestedEnd.After(existingMax) {
		gaps = append(gaps, domain.TimeRange{
			Start: existingMax.Add(epsilon),
			End:   requestedEnd,
		})
	}

	return gaps, nil
}
