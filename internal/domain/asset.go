// Package domain provides the persistent models shared across the
// scheduler's core components.
package domain

import "time"

// Asset types. AssetType determines which time-series table holds an
// asset's rows; TableForAssetType is the single source of truth for that
// mapping, shared by the range calculator and the loader.
const (
	AssetTypeStock             = "stock"
	AssetTypeCrypto            = "crypto"
	AssetTypeCommodity         = "commodity"
	AssetTypeForex             = "forex"
	AssetTypeBond              = "bond"
	AssetTypeEconomicIndicator = "economic_indicator"
)

// Time-series table names.
const (
	TableMarketData  = "market_data"
	TableForexRates  = "forex_rates"
	TableBondRates   = "bond_rates"
	TableEconomicData = "economic_data"
)

// assetTypeTable is the compile-time whitelist mapping an asset type to its
// time-series table. Dynamic SQL never resolves a table name from request
// data any other way.
var assetTypeTable = map[string]string{
	AssetTypeStock:             TableMarketData,
	AssetTypeCrypto:            TableMarketData,
	AssetTypeCommodity:         TableMarketData,
	AssetTypeForex:             TableForexRates,
	AssetTypeBond:              TableBondRates,
	AssetTypeEconomicIndicator: TableEconomicData,
}

// TableForAssetType resolves the time-series table for an asset type. The
// second return value is false for an unrecognized type.
func TableForAssetType(assetType string) (string, bool) {
	t, ok := assetTypeTable[assetType]
	return t, ok
}

// ValidAssetType reports whether assetType is one of the recognized kinds.
func ValidAssetType(assetType string) bool {
	_, ok := assetTypeTable[assetType]
	return ok
}

// Asset is an external time-series identity: a symbol plus its type.
type Asset struct {
	AssetID      string     `db:"asset_id"      json:"asset_id"`
	Symbol       string     `db:"symbol"        json:"symbol"`
	AssetType    string     `db:"asset_type"    json:"asset_type"`
	DisplayName  *string    `db:"display_name"  json:"display_name,omitempty"`
	DataSource   *string    `db:"data_source"   json:"data_source,omitempty"`
	Exchange     *string    `db:"exchange"      json:"exchange,omitempty"`
	Currency     *string    `db:"currency"      json:"currency,omitempty"`
	BaseCurrency *string    `db:"base_currency"  json:"base_currency,omitempty"`
	QuoteCurrency *string   `db:"quote_currency" json:"quote_currency,omitempty"`
	SeriesID     *string    `db:"series_id"     json:"series_id,omitempty"`
	Metadata     JSONBMap   `db:"metadata"      json:"metadata,omitempty"`
	IsActive     bool       `db:"is_active"     json:"is_active"`
	CreatedAt    time.Time  `db:"created_at"    json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at"    json:"updated_at"`
}
