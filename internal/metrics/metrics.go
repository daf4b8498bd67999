// Package metrics provides Prometheus metrics for the edge proxy.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Default histogram buckets for request latency.
var defaultBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}

// Metrics holds all Prometheus metric collectors for the proxy.
type Metrics struct {
	Registry *prometheus.Registry

	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	OriginDuration  *prometheus.HistogramVec
	OriginResponses *prometheus.CounterVec

	CacheLookups *prometheus.CounterVec // result: hit|miss|error
	CacheWrites  *prometheus.CounterVec // result: stored|failed

	TelemetryEvents *prometheus.CounterVec // result: sent|dropped|failed

	TableReloads *prometheus.CounterVec // result: ok|error
}

// New creates a Metrics instance with a custom registry and all collectors registered.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		Registry: reg,

		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "edge_proxy_http_requests_total",
			Help: "Total inbound HTTP requests.",
		}, []string{"method", "status_code", "route"}),

		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "edge_proxy_http_request_duration_seconds",
			Help:    "Inbound HTTP request latency in seconds.",
			Buckets: defaultBuckets,
		}, []string{"method", "status_code", "route"}),

		RequestsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "edge_proxy_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed.",
		}),

		OriginDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "edge_proxy_origin_request_duration_seconds",
			Help:    "Origin call latency in seconds.",
			Buckets: defaultBuckets,
		}, []string{"method"}),

		OriginResponses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "edge_proxy_origin_responses_total",
			Help: "Total origin responses by method and status code.",
		}, []string{"method", "status_code"}),

		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "edge_proxy_cache_lookups_total",
			Help: "Edge cache lookups by result.",
		}, []string{"result"}),

		CacheWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "edge_proxy_cache_writes_total",
			Help: "Edge cache writes by result.",
		}, []string{"result"}),

		TelemetryEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "edge_proxy_telemetry_events_total",
			Help: "Telemetry events by delivery result.",
		}, []string{"result"}),

		TableReloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "edge_proxy_routing_table_reloads_total",
			Help: "Routing table reloads by result.",
		}, []string{"result"}),
	}

	reg.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.RequestsInFlight,
		m.OriginDuration,
		m.OriginResponses,
		m.CacheLookups,
		m.CacheWrites,
		m.TelemetryEvents,
		m.TableReloads,
	)

	return m
}

// knownMethods lists the allowed HTTP method label values (bounded cardinality).
var knownMethods = map[string]bool{
	"GET": true, "POST": true, "PUT": true, "DELETE": true,
	"PATCH": true, "HEAD": true, "OPTIONS": true,
}

// NormalizeMethod returns a bounded HTTP method label for Prometheus metrics.
// Non-standard methods are mapped to "other" to prevent cardinality explosion.
func NormalizeMethod(method string) string {
	if knownMethods[method] {
		return method
	}
	return "other"
}

// specialRoutes lists the operational paths kept as distinct labels. Every
// other path is customer traffic; labelling by path would be unbounded, so it
// all collapses into "proxy".
var specialRoutes = map[string]string{
	"/health":  "/health",
	"/_health": "/health",
	"/debug":   "/debug",
	"/_debug":  "/debug",
	"/metrics": "/metrics",
}

// NormalizeRoute returns a bounded route label for Prometheus metrics.
func NormalizeRoute(path string) string {
	if r, ok := specialRoutes[path]; ok {
		return r
	}
	return "proxy"
}
