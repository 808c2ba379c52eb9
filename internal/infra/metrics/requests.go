package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(apiRequestsTotal, apiRetriesTotal, apiRequestLatencyMs) }

var apiRequestsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "enhance_api_requests_total",
		Help: "Total outbound API requests, labeled by endpoint and outcome.",
	},
	[]string{"endpoint", "outcome"}, // outcome: 'ok', 'network', 'client', 'server', 'rate_limited'
)

var apiRetriesTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "enhance_api_retries_total",
		Help: "Total retry attempts made after transient request failures.",
	},
)

var apiRequestLatencyMs = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "enhance_api_request_latency_ms",
		Help:    "Outbound API request latency distribution in milliseconds.",
		Buckets: []float64{10, 25, 50, 100, 200, 400, 800, 1600, 3000, 5000},
	},
	[]string{"endpoint"},
)

func IncRequest(endpoint, outcome string) {
	apiRequestsTotal.WithLabelValues(norm(endpoint), norm(outcome)).Inc()
}

func IncRetry() { apiRetriesTotal.Inc() }

func ObserveRequestLatency(endpoint string, ms float64) {
	apiRequestLatencyMs.WithLabelValues(norm(endpoint)).Observe(ms)
}
