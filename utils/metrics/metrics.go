// Package metrics provides Prometheus metrics for the image proxy.
package metrics

import (
	"context"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const namespace = "imgproxy"

var (
	// RequestsTotal counts proxy responses by status code.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total number of proxy responses by status code",
		},
		[]string{"status"},
	)

	// CacheLookupsTotal counts cache lookups by result.
	CacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Total number of cache lookups by result (hit, miss)",
		},
		[]string{"result"},
	)

	// CacheEntries tracks the number of live cache entries after the last sweep.
	CacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cache_entries",
			Help:      "Number of entries held by the image cache",
		},
	)

	// CacheEvictedTotal counts entries removed by the expiry sweep.
	CacheEvictedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_evicted_total",
			Help:      "Total number of expired cache entries reclaimed by the sweep",
		},
	)

	// RateLimitedTotal counts requests rejected by the client rate limiter.
	RateLimitedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Total number of requests rejected by the client rate limiter",
		},
	)

	// UpstreamFetchDuration measures upstream fetch latency.
	UpstreamFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_fetch_duration_seconds",
			Help:      "Duration of upstream image fetches in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)

	// TransformDuration measures transform pipeline latency.
	TransformDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "transform_duration_seconds",
			Help:      "Duration of image transforms in seconds",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"output_format"},
	)
)

// outputBytes is an OTel instrument; it is exported through whatever meter
// provider is installed globally (Prometheus exporter when OTel is enabled).
var outputBytes, _ = otel.Meter("imgproxy/metrics").Int64Counter(
	"imgproxy.image.output_bytes",
	metric.WithDescription("Bytes produced by the transform pipeline"),
	metric.WithUnit("By"),
)

// RecordRequest records a finished proxy response.
func RecordRequest(status int) {
	RequestsTotal.WithLabelValues(strconv.Itoa(status)).Inc()
}

// RecordCacheLookup records a cache hit or miss.
func RecordCacheLookup(hit bool) {
	if hit {
		CacheLookupsTotal.WithLabelValues("hit").Inc()
		return
	}
	CacheLookupsTotal.WithLabelValues("miss").Inc()
}

// RecordRateLimited records a rejected request.
func RecordRateLimited() {
	RateLimitedTotal.Inc()
}

// RecordUpstreamFetch records an upstream fetch with its outcome (ok, error).
func RecordUpstreamFetch(outcome string, seconds float64) {
	UpstreamFetchDuration.WithLabelValues(outcome).Observe(seconds)
}

// RecordTransform records a completed transform.
func RecordTransform(ctx context.Context, outputFormat string, seconds float64, size int) {
	TransformDuration.WithLabelValues(outputFormat).Observe(seconds)
	if outputBytes != nil {
		outputBytes.Add(ctx, int64(size), metric.WithAttributes(attribute.String("format", outputFormat)))
	}
}

// RecordSweep records the result of a cache sweep.
func RecordSweep(evicted int64, remaining int) {
	CacheEvictedTotal.Add(float64(evicted))
	CacheEntries.Set(float64(remaining))
}
