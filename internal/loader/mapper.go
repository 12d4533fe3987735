// Package loader normalizes provider rows into each time-series table's
// canonical column vector and bulk-inserts them under a conflict policy.
package loader

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/marketpulse/scheduler/internal/domain"
)

// NormalizedRow is a provider row after mapping: one row keyed by
// (asset_id, time) with only the destination table's canonical columns.
type NormalizedRow struct {
	AssetID string
	Time    string // RFC3339Nano, bound as a parameter, never interpolated
	Columns map[string]any
}

// canonicalColumns lists each table's non-key columns, in insert order.
// This is the single source of truth the mapper and the loader share.
var canonicalColumns = map[string][]string{
	domain.TableMarketData:   {"open", "high", "low", "close", "volume", "dividends", "stock_splits"},
	domain.TableForexRates:   {"rate"},
	domain.TableBondRates:    {"rate"},
	domain.TableEconomicData: {"value"},
}

// valueColumnPriority is the search order used for value-bearing tables
// (bond_rates, economic_data) when the provider's own column name for the
// value doesn't match the canonical one.
var valueColumnPriority = []string{"value", "rate", "close"}

// Mapper normalizes an adapter's row set for one asset type.
type Mapper struct{}

// NewMapper constructs a Mapper.
func NewMapper() *Mapper { return &Mapper{} }

// Map applies the five normalization steps and returns one NormalizedRow
// per input row. Rows whose value column resolves to null on a
// value-bearing table are dropped (the downstream column is NOT NULL).
func (m *Mapper) Map(assetType, assetID string, rows []domain.ProviderRow) ([]NormalizedRow, error) {
	table, ok := domain.TableForAssetType(assetType)
	if !ok {
		return nil, fmt.Errorf("loader: unrecognized asset type %q", assetType)
	}
	columns, ok := canonicalColumns[table]
	if !ok {
		return nil, fmt.Errorf("loader: no canonical columns for table %q", table)
	}

	isValueTable := table == domain.TableBondRates || table == domain.TableEconomicData

	out := make([]NormalizedRow, 0, len(rows))
	for _, row := range rows {
		// Step 1: ensure a timestamp column/index is present.
		if row.Time.IsZero() {
			return nil, fmt.Errorf("loader: row missing timestamp for asset %s", assetID)
		}

		// Step 2: lowercase column names.
		lowered := make(map[string]any, len(row.Columns))
		for k, v := range row.Columns {
			lowered[strings.ToLower(k)] = v
		}

		// Step 3: coerce volume-like columns to integer.
		if v, present := lowered["volume"]; present {
			lowered["volume"] = coerceToInteger(v)
		}

		mapped := make(map[string]any, len(columns))
		for _, col := range columns {
			if v, present := lowered[col]; present {
				mapped[col] = v
			} else {
				// Step 4: fill canonical optional columns with null when absent.
				mapped[col] = nil
			}
		}

		if isValueTable {
			value := resolveValueColumn(lowered, columns[0])
			if value == nil {
				continue // dropped: downstream NOT NULL
			}
			mapped[columns[0]] = value
		}

		out = append(out, NormalizedRow{
			AssetID: assetID,
			Time:    row.Time.UTC().Format("2006-01-02T15:04:05.999999999Z07:00"),
			Columns: mapped,
		})
	}

	return out, nil
}

// resolveValueColumn finds the value for a value-bearing row by priority
// list, then falls back to the sole remaining numeric column.
func resolveValueColumn(row map[string]any, canonicalName string) any {
	for _, candidate := range valueColumnPriority {
		if v, ok := row[candidate]; ok && v != nil {
			return v
		}
	}

	var numericValue any
	numericCount := 0
	for k, v := range row {
		if k == "time" {
			continue
		}
		if isNumeric(v) {
			numericCount++
			numericValue = v
		}
	}
	if numericCount == 1 {
		return numericValue
	}

	if v, ok := row[canonicalName]; ok {
		return v
	}
	return nil
}

func isNumeric(v any) bool {
	switch v.(type) {
	case int, int32, int64, float32, float64:
		return true
	default:
		return false
	}
}

func coerceToInteger(v any) any {
	switch t := v.(type) {
	case int, int32, int64:
		return t
	case float32:
		return int64(t)
	case float64:
		return int64(t)
	case string:
		if i, err := strconv.ParseInt(t, 10, 64); err == nil {
			return i
		}
		if f, err := strconv.ParseFloat(t, 64); err == nil {
			return int64(f)
		}
		return v
	default:
		return v
	}
}
