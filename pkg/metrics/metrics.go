// Package metrics holds the Prometheus registry shared by the WHOOP client packages.
// Collectors are defined next to the code that updates them (client, token,
// pagination, fanout, ratelimit) and registered here through promauto.With(Registry).
//
// A CLI invocation is short-lived, so nothing is scraped. WriteTextfile dumps the
// registry in the text exposition format, suitable for the node_exporter textfile
// collector.
package metrics

import (
	"fmt"
	"regexp"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the registry all whoop_* collectors are registered with.
var Registry = prometheus.NewRegistry()

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - whoop_requests_total{endpoint, status} (Counter): GET requests by endpoint and HTTP status
//   - whoop_request_duration_seconds{endpoint} (Histogram): GET duration by endpoint
//   - whoop_errors_total{kind} (Counter): errors by kind (api, shape, token_exchange, configuration)
//   - whoop_unauthorized_retries_total (Counter): requests retried after a 401
//
// Token Metrics (pkg/token):
//   - whoop_token_refreshes_total{result} (Counter): refresh-token exchanges by result
//   - whoop_token_refresh_shared_total (Counter): callers that joined an in-flight refresh
//
// Pagination Metrics (pkg/pagination):
//   - whoop_pages_fetched_total{endpoint} (Counter): collection pages fetched
//
// Fan-out Metrics (pkg/fanout):
//   - whoop_fanout_items_total{result} (Counter): fan-out items by result
//
// Rate Limit Metrics (pkg/ratelimit):
//   - whoop_ratelimit_remaining (Gauge): requests left in the current window
//   - whoop_ratelimit_limit (Gauge): requests allowed in the current window
//   - whoop_ratelimit_exhausted_total (Counter): responses rejected with 429

// WriteTextfile writes every registered metric to path, atomically.
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, Registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

var numericSegment = regexp.MustCompile(`/\d+(/|$)`)

// EndpointLabel normalizes numeric path segments so per-record paths share a label.
//
// Example:
//
//	/developer/v2/cycle/101/recovery -> /developer/v2/cycle/{id}/recovery
func EndpointLabel(path string) string {
	// ReplaceAll does not revisit the shared slash, so run until stable.
	for {
		next := numericSegment.ReplaceAllString(path, "/{id}$1")
		if next == path {
			return next
		}
		path = next
	}
}
