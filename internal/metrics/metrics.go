// Package metrics is a fire-and-forget emission hook: emission must never
// fail the hosting operation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Hook is the interface the scheduler, pipeline and retry controller emit
// through. A nil-safe no-op implementation is available via NewNop.
type Hook interface {
	// RecordExecution is emitted once per completed execution.
	RecordExecution(assetType, finalStatus string, durationSeconds float64, errorCategory string)
	// RecordRetry is emitted once per retry fire.
	RecordRetry(jobID, assetType string)
}

// PrometheusHook implements Hook with client_golang counters/histograms.
type PrometheusHook struct {
	executionsTotal   *prometheus.CounterVec
	executionDuration *prometheus.HistogramVec
	retriesTotal      *prometheus.CounterVec
}

// NewPrometheusHook registers the scheduler's metrics on reg. Pass
// prometheus.DefaultRegisterer to use the global registry.
func NewPrometheusHook(reg prometheus.Registerer) (*PrometheusHook, error) {
	h := &PrometheusHook{
		executionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scheduler_executions_total",
			Help: "Total number of job executions, by asset type, final status and error category.",
		}, []string{"asset_type", "status", "error_category"}),

		executionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "scheduler_execution_duration_seconds",
			Help:    "Execution duration in seconds, by asset type and final status.",
			Buckets: prometheus.DefBuckets,
		}, []string{"asset_type", "status"}),

		retriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scheduler_retries_total",
			Help: "Total number of one-shot retry fires, by job and asset type.",
		}, []string{"job_id", "asset_type"}),
	}

	for _, c := range []prometheus.Collector{h.executionsTotal, h.executionDuration, h.retriesTotal} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return h, nil
}

// RecordExecution implements Hook.
func (h *PrometheusHook) RecordExecution(assetType, finalStatus string, durationSeconds float64, errorCategory string) {
	h.executionsTotal.WithLabelValues(assetType, finalStatus, errorCategory).Inc()
	h.executionDuration.WithLabelValues(assetType, finalStatus).Observe(durationSeconds)
}

// RecordRetry implements Hook.
func (h *PrometheusHook) RecordRetry(jobID, assetType string) {
	h.retriesTotal.WithLabelValues(jobID, assetType).Inc()
}

// nopHook discards every call. Used when metrics aren't wired, so callers
// never need a nil check.
type nopHook struct{}

func (nopHook) RecordExecution(string, string, float64, string) {}
func (nopHook) RecordRetry(string, string)                       {}

// NewNop returns a Hook that discards all calls.
func NewNop() Hook { return nopHook{} }

// Safe wraps a Hook so that a panic inside it never escapes to the
// caller — emission must never fail the hosting operation.
func Safe(h Hook) Hook { return &safeHook{inner: h} }

type safeHook struct{ inner Hook }

func (s *safeHook) RecordExecution(assetType, finalStatus string, durationSeconds float64, errorCategory string) {
	defer func() { _ = recover() }()
	s.inner.RecordExecution(assetType, finalStatus, durationSeconds, errorCategory)
}

func (s *safeHook) RecordRetry(jobID, assetType string) {
	defer func() { _ = recover() }()
	s.inner.RecordRetry(jobID, assetType)
}
