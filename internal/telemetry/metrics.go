// Package telemetry registers the Prometheus collectors shared by the store,
// provider clients, lookup coordinators and HTTP layer.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	storeQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "explorer_store_query_duration_seconds",
			Help:    "Store statement execution time in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"operation", "table", "status"},
	)

	providerRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "explorer_provider_requests_total",
			Help: "Total number of outbound provider requests",
		},
		[]string{"provider", "status"},
	)

	providerRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "explorer_provider_request_duration_seconds",
			Help:    "Outbound provider request latency in seconds",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"provider"},
	)

	lookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "explorer_lookups_total",
			Help: "Lookups by resource and outcome (hit, cached, persisted, failed)",
		},
		[]string{"resource", "outcome"},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "explorer_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "explorer_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "route"},
	)
)

// Lookup outcomes.
const (
	OutcomeHit       = "hit"
	OutcomeCached    = "cached"
	OutcomePersisted = "persisted"
	OutcomeFailed    = "failed"
)

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// ObserveStore records one store statement.
func ObserveStore(operation, table string, start time.Time, err error) {
	storeQueryDuration.WithLabelValues(operation, table, status(err)).Observe(time.Since(start).Seconds())
}

// ObserveProvider records one outbound provider call.
func ObserveProvider(provider string, start time.Time, err error) {
	providerRequestsTotal.WithLabelValues(provider, status(err)).Inc()
	providerRequestDuration.WithLabelValues(provider).Observe(time.Since(start).Seconds())
}

// ObserveLookup counts a coordinator outcome.
func ObserveLookup(resource, outcome string) {
	lookupsTotal.WithLabelValues(resource, outcome).Inc()
}

// ObserveHTTP records one served request. route is the router pattern, not the raw path.
func ObserveHTTP(method, route, statusCode string, d time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, statusCode).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
