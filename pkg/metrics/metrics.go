// Package metrics exposes the Prometheus registry shared by the search packages
// and writes its contents to a node_exporter textfile after a run.
// Collectors are defined in their own packages (client, pagination, cache,
// ratelimit) and register themselves via promauto.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the registerer all repo-search collectors use.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the source WriteTextfile reads from by default.
var Gatherer prometheus.Gatherer = prometheus.DefaultGatherer

// WriteTextfile writes all metrics gathered from g in text exposition format
// to path. A nil g uses Gatherer. The file is replaced atomically.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	if path == "" {
		return fmt.Errorf("metrics file path is empty")
	}
	if g == nil {
		g = Gatherer
	}
	if dir := filepath.Dir(path); dir != "." {
		if _, err := os.Stat(dir); err != nil {
			return fmt.Errorf("metrics directory: %w", err)
		}
	}
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - reposearch_requests_total{status} (Counter): Search API requests by HTTP status or "network_error"
//   - reposearch_request_duration_seconds (Histogram): Search API request duration
//   - reposearch_errors_total{kind} (Counter): Failed page fetches by error kind
//
// Pagination Metrics (pkg/pagination):
//   - reposearch_pages_fetched_total (Counter): Pages successfully fetched
//   - reposearch_items_fetched_total (Counter): Items accumulated
//
// Cache Metrics (pkg/cache):
//   - reposearch_cache_hits_total{layer="redis"} (Counter): Cache hits by layer
//   - reposearch_cache_misses_total (Counter): Cache misses
//   - reposearch_cache_size_bytes{layer="redis"} (Gauge): Bytes read from and written to the cache
//   - reposearch_cache_errors_total{operation} (Counter): Cache operation errors
//
// Rate Limit Metrics (pkg/ratelimit):
//   - reposearch_rate_limit_remaining{resource} (Gauge): Requests remaining in the current window
//   - reposearch_rate_limit_exhausted_total{resource} (Counter): Responses observed with no requests remaining
//
// Run Metrics (internal/exporter):
//   - reposearch_last_run_success (Gauge): 1 if the last run wrote its output file
//   - reposearch_last_run_timestamp_seconds (Gauge): Unix time the last run finished
//   - reposearch_last_run_items (Gauge): Names written by the last successful run
//
// Example Prometheus Queries:
//
//   # Export failing or stale (textfile collector)
//   reposearch_last_run_success == 0 or time() - reposearch_last_run_timestamp_seconds > 86400
//
//
//   # Search requests failing
//   sum by (kind) (increase(reposearch_errors_total[1h]))
//
//   # Cache Hit Rate
//   sum(rate(reposearch_cache_hits_total[1h])) /
//   (sum(rate(reposearch_cache_hits_total[1h])) + sum(rate(reposearch_cache_misses_total[1h])))
//
//   # Search quota running low
//   reposearch_rate_limit_remaining{resource="search"} < 5
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(reposearch_request_duration_seconds_bucket[1h]))
