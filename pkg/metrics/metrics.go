// Package metrics holds the HTTP-level Prometheus metrics and the scrape handler.
// Component metrics are defined in their respective packages (cache, invoker,
// lookup, ratelimit) and registered via promauto on the default registry.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the proxy.
var Registry = prometheus.DefaultRegisterer

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recht_http_requests_total",
		Help: "Total HTTP requests by route and status",
	}, []string{"route", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "recht_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds by route",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
)

// Known routes. Anything else is reported as "other" to bound label cardinality.
var knownRoutes = map[string]bool{
	"/":        true,
	"/map":     true,
	"/health":  true,
	"/ready":   true,
	"/metrics": true,
}

// Route maps a request path onto a metrics label.
func Route(path string) string {
	if knownRoutes[path] {
		return path
	}
	return "other"
}

// ObserveRequest records one served HTTP request.
func ObserveRequest(path string, status int, seconds float64) {
	route := Route(path)
	httpRequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(route).Observe(seconds)
}

// Handler returns the Prometheus scrape handler for the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Metrics Documentation
//
// HTTP Metrics (pkg/metrics):
//   - recht_http_requests_total{route, status} (Counter): Served requests
//   - recht_http_request_duration_seconds{route} (Histogram): Request duration
//
// Lookup Metrics (pkg/lookup):
//   - recht_lookups_total{source, status} (Counter): Lookups by source (validation, cache, tool)
//   - recht_lookup_duration_seconds{source} (Histogram): Lookup duration
//   - recht_lookup_errors_total{kind} (Counter): Classified failures (binary_missing, timeout, lookup_failed)
//
// Cache Metrics (pkg/cache):
//   - recht_cache_hits_total{kind} (Counter): Hits by payload kind (success, error)
//   - recht_cache_misses_total (Counter): Misses, absent or expired
//   - recht_cache_evictions_total{reason} (Counter): Removals (capacity, expired, sweep)
//   - recht_cache_entries (Gauge): Resident entries
//
// Invoker Metrics (pkg/invoker):
//   - recht_invocations_total{outcome} (Counter): Tool runs by outcome
//   - recht_invocation_duration_seconds (Histogram): Tool run duration
//
// Rate Limit Metrics (pkg/ratelimit):
//   - recht_rate_limit_blocks_total (Counter): Requests rejected with 429
//   - recht_rate_limit_clients (Gauge): Tracked clients
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(recht_cache_hits_total[5m])) /
//   (sum(rate(recht_cache_hits_total[5m])) + sum(rate(recht_cache_misses_total[5m])))
//
//   # Tool Timeouts
//   rate(recht_lookup_errors_total{kind="timeout"}[5m])
//
//   # P95 Tool Latency
//   histogram_quantile(0.95, rate(recht_invocation_duration_seconds_bucket[5m]))
