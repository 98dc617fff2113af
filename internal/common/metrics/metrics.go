package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type (
	CacheTier  string
	CacheEvent string
)

const (
	CacheTierShort CacheTier = "short"
	CacheTierLong  CacheTier = "long"

	CacheEventHit     CacheEvent = "hit"
	CacheEventMiss    CacheEvent = "miss"
	CacheEventCorrupt CacheEvent = "corrupt"
)

const InsightsMetricsPrefix = "insights_"

type Metrics struct {
	cacheEvents      *prometheus.CounterVec
	cacheWriteErrors *prometheus.CounterVec
	httpRetries      *prometheus.CounterVec
	exceptions       *prometheus.CounterVec
	queryDuration    *prometheus.HistogramVec
}

func NewMetrics(prefix string) *Metrics {
	return &Metrics{
		cacheEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "cache_events",
			Help: "Number of cache lookups grouped by cache, tier and outcome",
		}, []string{"cache", "tier", "event"}),
		cacheWriteErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "cache_write_errors",
			Help: "Number of failed cache writes grouped by cache",
		}, []string{"cache"}),
		httpRetries: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "http_retries",
			Help: "Number of retried upstream requests grouped by host",
		}, []string{"host"}),
		exceptions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "exceptions",
			Help: "Number of errors reported to the observability sink grouped by source",
		}, []string{"source"}),
		queryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    prefix + "query_duration_seconds",
			Help:    "Time taken to generate and execute a metrics query",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"resource", "query_type", "outcome"}),
	}
}

var m = NewMetrics(InsightsMetricsPrefix)

// Get returns the process-wide metrics. Collectors are registered with the default registry once.
func Get() *Metrics {
	return m
}

func (m *Metrics) RecordCacheEvent(cache string, tier CacheTier, event CacheEvent) {
	m.cacheEvents.With(map[string]string{"cache": cache, "tier": string(tier), "event": string(event)}).Inc()
}

func (m *Metrics) RecordCacheWriteError(cache string) {
	m.cacheWriteErrors.With(map[string]string{"cache": cache}).Inc()
}

func (m *Metrics) RecordHttpRetry(host string) {
	m.httpRetries.With(map[string]string{"host": host}).Inc()
}

func (m *Metrics) RecordException(source string) {
	m.exceptions.With(map[string]string{"source": source}).Inc()
}

func (m *Metrics) RecordQuery(resource, queryType string, err error, duration time.Duration) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.queryDuration.
		With(map[string]string{"resource": resource, "query_type": queryType, "outcome": outcome}).
		Observe(duration.Seconds())
}
