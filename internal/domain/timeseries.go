package domain

import "time"

// MarketDataRow is one OHLCV bar for a stock/crypto/commodity asset.
// Invariant (enforced by check constraint at the store): high ≥
// max(open,close) ≥ min(open,close) ≥ low, volume ≥ 0.
type MarketDataRow struct {
	AssetID      string    `db:"asset_id" json:"asset_id"`
	Time         time.Time `db:"time"     json:"time"`
	Open         float64   `db:"open"     json:"open"`
	High         float64   `db:"high"     json:"high"`
	Low          float64   `db:"low"      json:"low"`
	Close        float64   `db:"close"    json:"close"`
	Volume       int64     `db:"volume"   json:"volume"`
	Dividends    *float64  `db:"dividends"    json:"dividends,omitempty"`
	StockSplits  *float64  `db:"stock_splits" json:"stock_splits,omitempty"`
}

// RateRow is a single named value keyed by (asset_id, time): forex and
// bond rates, rate > 0.
type RateRow struct {
	AssetID string    `db:"asset_id" json:"asset_id"`
	Time    time.Time `db:"time"     json:"time"`
	Rate    float64   `db:"rate"     json:"rate"`
}

// EconomicDataRow is a single observed value for an economic indicator.
type EconomicDataRow struct {
	AssetID string    `db:"asset_id" json:"asset_id"`
	Time    time.Time `db:"time"     json:"time"`
	Value   float64   `db:"value"    json:"value"`
}

// ProviderRow is the canonical, pre-mapping row shape a provider adapter
// returns: a timestamp plus arbitrary named columns. The schema mapper
// normalizes these into a concrete table row.
type ProviderRow struct {
	Time    time.Time
	Columns map[string]any
}

// TimeRange is an inclusive [Start, End] window.
type TimeRange struct {
	Start time.Time
	End   time.Time
}
