// Package metrics exposes the proxy's Prometheus metrics.
// All metrics are defined in their respective packages (cache, client, proxy)
// and registered via promauto on the default registry.
//
// This package provides the /metrics handler and documents what it serves.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the proxy.
var Registry = prometheus.DefaultRegisterer

// Gatherer collects what was registered with Registry.
var Gatherer = prometheus.DefaultGatherer

// Handler serves everything Gatherer collects in the Prometheus text format.
// Scrapes of the handler itself are counted on Registry.
func Handler() http.Handler {
	return promhttp.InstrumentMetricHandler(
		Registry,
		promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{}),
	)
}

// Metrics Documentation
//
// Cache Metrics (pkg/cache, pkg/client):
//   - swproxy_cache_hits_total{class} (Counter): Fresh cache hits by TTL class (api, image)
//   - swproxy_cache_misses_total{class} (Counter): Misses and expired entries by TTL class
//   - swproxy_cache_entries (Gauge): Entries currently held, expired ones included
//
// Upstream Metrics (pkg/client):
//   - swproxy_upstream_requests_total{class, status} (Counter): Completed upstream requests by HTTP status
//   - swproxy_upstream_duration_seconds{class} (Histogram): Upstream attempt duration
//   - swproxy_upstream_errors_total{class, error_class} (Counter): Transport failures (network, timeout, cancelled)
//   - swproxy_coalesced_fetches_total (Counter): Fetches that shared an in-flight request
//
// Route Metrics (pkg/proxy):
//   - swproxy_not_modified_total{route} (Counter): 304 responses by route (api, img)
//   - swproxy_image_stage_total{stage, outcome} (Counter): Fallback stage results (primary, secondary, cdn)
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(swproxy_cache_hits_total[5m])) /
//   (sum(rate(swproxy_cache_hits_total[5m])) + sum(rate(swproxy_cache_misses_total[5m])))
//
//   # Share of images served by the CDN stage
//   rate(swproxy_image_stage_total{stage="cdn",outcome="resolved"}[5m]) /
//   sum(rate(swproxy_image_stage_total{outcome="resolved"}[5m]))
//
//   # Placeholder rate (every stage advanced)
//   rate(swproxy_image_stage_total{stage="cdn",outcome="advance"}[5m])
//
//   # P95 Upstream Latency
//   histogram_quantile(0.95, rate(swproxy_upstream_duration_seconds_bucket[5m]))
