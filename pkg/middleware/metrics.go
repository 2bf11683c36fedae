// Package middleware provides the HTTP middleware shared by the services:
// request IDs, access logging, Prometheus instrumentation and timeouts.
package middleware

import (
	"net/http"
	"slices"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/pkg/metrics"
)

// otherPath labels every request outside knownPaths.
const otherPath = "other"

// knownPaths bounds the path label cardinality.
var knownPaths = []string{
	"/api/v1/compile",
	"/api/v1/search",
	"/api/v1/explain",
	"/api/v1/cache/stats",
	"/api/v1/cache/invalidate",
	"/api/v1/analytics",
	"/api/v1/analytics/snapshots",
	"/health/live",
	"/health/ready",
	"/metrics",
}

// Metrics instruments next with promhttp. One instrumented handler is built
// per known path up front, with the path curried into the vectors, so a
// request only pays a lookup.
func Metrics(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		routes := make(map[string]http.Handler, len(knownPaths)+1)
		for _, p := range append(slices.Clone(knownPaths), otherPath) {
			labels := prometheus.Labels{"path": p}
			routes[p] = promhttp.InstrumentHandlerDuration(
				m.HTTPRequestDuration.MustCurryWith(labels),
				promhttp.InstrumentHandlerCounter(m.HTTPRequestsTotal.MustCurryWith(labels), next),
			)
		}
		return promhttp.InstrumentHandlerInFlight(m.HTTPRequestsInFlight,
			http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				routes[normalizePath(r.URL.Path)].ServeHTTP(w, r)
			}))
	}
}

func normalizePath(path string) string {
	if slices.Contains(knownPaths, path) {
		return path
	}
	return otherPath
}
