package searchindex_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketpulse/scheduler/internal/searchindex"
)

func TestConfig_SetDefaults(t *testing.T) {
	cfg := searchindex.Config{}
	cfg.SetDefaults()

	assert.Equal(t, "http://127.0.0.1:9200", cfg.URL)
	assert.Equal(t, 3, cfg.MaxRetries)
}

func TestConfig_SetDefaults_PreservesExplicitValues(t *testing.T) {
	cfg := searchindex.Config{URL: "http://es.internal:9200", MaxRetries: 5}
	cfg.SetDefaults()

	assert.Equal(t, "http://es.internal:9200", cfg.URL)
	assert.Equal(t, 5, cfg.MaxRetries)
}

// TestNewClient_UnreachableHostFails does not require a running
// Elasticsearch instance: a ping against a closed local port fails fast.
func TestNewClient_UnreachableHostFails(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := searchindex.NewClient(ctx, searchindex.Config{URL: "127.0.0.1:1"}, nil)
	require.Error(t, err)
}
