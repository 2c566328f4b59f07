// Package metrics collects Prometheus metrics for the generation pipeline
// and the serve-mode HTTP surface.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/BaSui01/meshflow/types"
)

// DefaultNamespace prefixes every metric family.
const DefaultNamespace = "meshflow"

// Collector registers and records the process metrics. It satisfies the
// pipeline metrics sink, so stage timings and token usage flow in without
// the pipeline importing this package.
type Collector struct {
	namespace string

	// Pipeline metrics.
	stageExecutionsTotal *prometheus.CounterVec
	stageDuration        *prometheus.HistogramVec
	llmTokensUsed        *prometheus.CounterVec
	generationsTotal     *prometheus.CounterVec
	generationDuration   prometheus.Histogram

	// HTTP metrics.
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpRequestSize     *prometheus.HistogramVec
	httpResponseSize    *prometheus.HistogramVec

	// Database pool gauges, fed by the server stats loop.
	dbConnectionsOpen *prometheus.GaugeVec
	dbConnectionsIdle *prometheus.GaugeVec

	logger *zap.Logger
}

// NewCollector registers the metric families under namespace on the
// default registry. An empty namespace falls back to DefaultNamespace.
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Collector{
		namespace: namespace,
		logger:    logger.With(zap.String("component", "metrics")),
	}

	c.stageExecutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_executions_total",
			Help:      "Total number of pipeline stage executions",
		},
		[]string{"stage", "status"},
	)

	c.stageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Pipeline stage duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"stage"},
	)

	c.llmTokensUsed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_tokens_used_total",
			Help:      "Total number of LLM tokens consumed",
		},
		[]string{"stage", "model", "type"}, // type: prompt, completion
	)

	c.generationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generations_total",
			Help:      "Total number of generation runs",
		},
		[]string{"status"},
	)

	c.generationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_duration_seconds",
			Help:      "End to end generation duration in seconds",
			Buckets:   []float64{1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
	)

	c.httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	c.httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	c.httpRequestSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_size_bytes",
			Help:      "HTTP request size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "path"},
	)

	c.httpResponseSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_response_size_bytes",
			Help:      "HTTP response size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "path"},
	)

	c.dbConnectionsOpen = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_connections_open",
			Help:      "Number of open database connections",
		},
		[]string{"database"},
	)

	c.dbConnectionsIdle = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_connections_idle",
			Help:      "Number of idle database connections",
		},
		[]string{"database"},
	)

	logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// ObserveStage records one pipeline stage execution.
func (c *Collector) ObserveStage(stage string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	c.stageExecutionsTotal.WithLabelValues(stage, status).Inc()
	c.stageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// ObserveUsage records the token spend of one LLM-backed stage.
func (c *Collector) ObserveUsage(usage types.StageUsage) {
	c.llmTokensUsed.WithLabelValues(usage.Stage, usage.Model, "prompt").Add(float64(usage.PromptTokens))
	c.llmTokensUsed.WithLabelValues(usage.Stage, usage.Model, "completion").Add(float64(usage.CompletionTokens))
}

// RecordGeneration records the outcome of one end to end run. Status is a
// store status string: completed, rejected or failed.
func (c *Collector) RecordGeneration(status string, duration time.Duration) {
	c.generationsTotal.WithLabelValues(status).Inc()
	c.generationDuration.Observe(duration.Seconds())
}

// RecordHTTPRequest records one served request.
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration, requestSize, responseSize int64) {
	c.httpRequestsTotal.WithLabelValues(method, path, statusClass(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	c.httpRequestSize.WithLabelValues(method, path).Observe(float64(requestSize))
	c.httpResponseSize.WithLabelValues(method, path).Observe(float64(responseSize))
}

// RecordDBConnections reflects a connection pool snapshot.
func (c *Collector) RecordDBConnections(database string, open, idle int) {
	c.dbConnectionsOpen.WithLabelValues(database).Set(float64(open))
	c.dbConnectionsIdle.WithLabelValues(database).Set(float64(idle))
}

// RegisterCacheStats exposes the response cache counters, read at scrape
// time. The cache owns its cumulative counts, so they surface as gauges
// instead of counters this package would have to mirror.
func (c *Collector) RegisterCacheStats(snapshot func() (l1Hits, l2Hits, misses uint64)) {
	promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: c.namespace,
		Name:      "llm_cache_l1_hits",
		Help:      "Cumulative in-memory cache hits",
	}, func() float64 {
		l1, _, _ := snapshot()
		return float64(l1)
	})
	promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: c.namespace,
		Name:      "llm_cache_l2_hits",
		Help:      "Cumulative redis cache hits",
	}, func() float64 {
		_, l2, _ := snapshot()
		return float64(l2)
	})
	promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: c.namespace,
		Name:      "llm_cache_misses",
		Help:      "Cumulative cache misses",
	}, func() float64 {
		_, _, misses := snapshot()
		return float64(misses)
	})
}

// statusClass buckets an HTTP status code to keep label cardinality down.
func statusClass(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
