// Package searchindex mirrors execution and collection-log records into
// Elasticsearch for operational search and dashboards. It is a
// best-effort sink: a write here never blocks or fails the scheduler's own
// persistence path.
package searchindex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	es "github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/marketpulse/scheduler/internal/domain"
	"github.com/marketpulse/scheduler/internal/logger"
)

// Index names the mirror indices live under.
const (
	ExecutionsIndex     = "scheduler-executions"
	CollectionLogsIndex = "scheduler-collection-logs"
)

// Config configures the Elasticsearch client.
type Config struct {
	URL        string
	MaxRetries int
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.URL == "" {
		c.URL = "http://127.0.0.1:9200"
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
}

// Client wraps an Elasticsearch client scoped to the scheduler's mirror
// indices.
type Client struct {
	es  *es.Client
	log logger.Interface
}

// NewClient builds a Client and verifies connectivity with a ping.
func NewClient(ctx context.Context, cfg Config, log logger.Interface) (*Client, error) {
	cfg.SetDefaults()
	if log == nil {
		log = logger.NewNop()
	}

	url := cfg.URL
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		url = "http://" + url
	}

	esClient, err := es.NewClient(es.Config{
		Addresses:  []string{url},
		MaxRetries: cfg.MaxRetries,
	})
	if err != nil {
		return nil, fmt.Errorf("searchindex: create client: %w", err)
	}

	c := &Client{es: esClient, log: log}
	if err := c.ping(ctx); err != nil {
		return nil, fmt.Errorf("searchindex: ping: %w", err)
	}
	return c, nil
}

func (c *Client) ping(ctx context.Context) error {
	res, err := c.es.Ping(c.es.Ping.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return fmt.Errorf("ping returned %s: %s", res.Status(), string(body))
	}
	return nil
}

// executionDoc is the flattened document shape indexed for an execution.
type executionDoc struct {
	ExecutionID     string     `json:"execution_id"`
	JobID           string     `json:"job_id"`
	ExecutionStatus string     `json:"execution_status"`
	StartedAt       time.Time  `json:"started_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	ErrorMessage    *string    `json:"error_message,omitempty"`
	ErrorCategory   *string    `json:"error_category,omitempty"`
	ExecutionTimeMs *int64     `json:"execution_time_ms,omitempty"`
	RetryAttempt    int        `json:"retry_attempt"`
	IndexedAt       time.Time  `json:"indexed_at"`
}

// IndexExecution mirrors a recorded execution into Elasticsearch. Errors
// are logged, not returned, so a search-index outage never fails a job
// fire.
func (c *Client) IndexExecution(ctx context.Context, e *domain.Execution) {
	doc := executionDoc{
		ExecutionID:     e.ExecutionID,
		JobID:           e.JobID,
		ExecutionStatus: e.ExecutionStatus,
		StartedAt:       e.StartedAt,
		CompletedAt:     e.CompletedAt,
		ErrorMessage:    e.ErrorMessage,
		ErrorCategory:   e.ErrorCategory,
		ExecutionTimeMs: e.ExecutionTimeMs,
		RetryAttempt:    e.RetryAttempt,
		IndexedAt:       time.Now(),
	}
	c.index(ctx, ExecutionsIndex, e.ExecutionID, doc)
}

// collectionLogDoc is the flattened document shape indexed for a
// collection log row.
type collectionLogDoc struct {
	LogID            string    `json:"log_id"`
	AssetID          string    `json:"asset_id"`
	ProviderName     string    `json:"provider_name"`
	StartDate        time.Time `json:"start_date"`
	EndDate          time.Time `json:"end_date"`
	RecordsCollected int       `json:"records_collected"`
	Status           string    `json:"status"`
	ErrorMessage     *string   `json:"error_message,omitempty"`
	DurationMs       *int64    `json:"duration_ms,omitempty"`
	IndexedAt        time.Time `json:"indexed_at"`
}

// IndexCollectionLog mirrors a collection log row into Elasticsearch.
func (c *Client) IndexCollectionLog(ctx context.Context, l *domain.CollectionLog) {
	doc := collectionLogDoc{
		LogID:            l.LogID,
		AssetID:          l.AssetID,
		ProviderName:     l.ProviderName,
		StartDate:        l.StartDate,
		EndDate:          l.EndDate,
		RecordsCollected: l.RecordsCollected,
		Status:           l.Status,
		ErrorMessage:     l.ErrorMessage,
		DurationMs:       l.DurationMs,
		IndexedAt:        time.Now(),
	}
	c.index(ctx, CollectionLogsIndex, l.LogID, doc)
}

func (c *Client) index(ctx context.Context, index, docID string, doc any) {
	body, err := json.Marshal(doc)
	if err != nil {
		c.log.Error("searchindex: failed to marshal document", "index", index, "doc_id", docID, "error", err)
		return
	}

	req := esapi.IndexRequest{
		Index:      index,
		DocumentID: docID,
		Body:       bytes.NewReader(body),
		Refresh:    "false",
	}

	res, err := req.Do(ctx, c.es)
	if err != nil {
		c.log.Error("searchindex: index request failed", "index", index, "doc_id", docID, "error", err)
		return
	}
	defer res.Body.Close()

	if res.IsError() {
		respBody, _ := io.ReadAll(res.Body)
		c.log.Error("searchindex: index request returned error",
			"index", index, "doc_id", docID, "status", res.Status(), "body", string(respBody))
	}
}
