// Package provider defines the adapter contract external data sources
// implement, and the small error taxonomy the core treats as well-defined
//. Concrete adapters (Alpha Vantage, yfinance-equivalent, FRED,
// etc.) are out of scope; this package only specifies their shape.
package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/marketpulse/scheduler/internal/domain"
)

// Adapter fetches historical rows and asset metadata for one provider.
type Adapter interface {
	// FetchRange returns the canonical row set for symbol within
	// [start, end]. An empty result is valid (no error).
	FetchRange(ctx context.Context, symbol string, start, end time.Time, kwargs domain.JSONBMap) ([]domain.ProviderRow, error)

	// AssetInfo returns provider-derived metadata for symbol, merged by
	// the pipeline with caller-supplied metadata (caller wins).
	AssetInfo(ctx context.Context, symbol string) (domain.JSONBMap, error)

	// Name identifies the provider for collection-log accounting and
	// rate-limiter keying.
	Name() string
}

// BatchAdapter is an optional capability: when a provider implements it,
// the request coordinator may fetch multiple symbols in one call
// instead of issuing them sequentially.
type BatchAdapter interface {
	Adapter

	FetchRangeBatch(ctx context.Context, symbols []string, start, end time.Time, kwargs domain.JSONBMap) (map[string][]domain.ProviderRow, error)
}

// ConfigError indicates the adapter itself is misconfigured (missing API
// key, bad base URL). Never retried.
type ConfigError struct {
	Provider string
	Message  string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: config error: %s", e.Provider, e.Message)
}

// APIError wraps a provider's HTTP/API-level failure. StatusCode is 0 when
// the provider doesn't expose one.
type APIError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: api error %d: %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: api error: %s", e.Provider, e.Message)
}

// RateLimitError indicates the provider itself rejected the call for
// exceeding its rate limit, distinct from our own shared limiter.
type RateLimitError struct {
	Provider   string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s: rate limited, retry after %s", e.Provider, e.RetryAfter)
}

// ValidationError indicates the request itself was malformed (unknown
// symbol, inverted range).
type ValidationError struct {
	Provider string
	Message  string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: validation error: %s", e.Provider, e.Message)
}
