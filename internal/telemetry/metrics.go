package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// HTTPRequestDuration tracks HTTP request latency, shared across all routes.
var HTTPRequestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "cogserve",
		Subsystem: "api",
		Name:      "request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"method", "path", "status"},
)

// CredentialAcquisitions counts credential acquisition attempts per
// resource scope and outcome, fed by the credential providers (C2).
var CredentialAcquisitions = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "cogserve",
		Subsystem: "credential",
		Name:      "acquisitions_total",
		Help:      "Total credential acquisition attempts, by scope and outcome.",
	},
	[]string{"scope", "outcome"},
)

// CredentialAcquireDuration tracks latency of identity-service round trips.
var CredentialAcquireDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "cogserve",
		Subsystem: "credential",
		Name:      "acquire_duration_seconds",
		Help:      "Duration of credential acquisition calls, by scope.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"scope"},
)

// TokenTTLSeconds reports the remaining TTL of each cached token as of
// its last successful acquisition, by resource scope.
var TokenTTLSeconds = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "cogserve",
		Subsystem: "credential",
		Name:      "token_ttl_seconds",
		Help:      "Remaining TTL of the cached token, by resource scope.",
	},
	[]string{"scope"},
)

// PoolRotationsTotal counts pool rotation attempts by outcome.
var PoolRotationsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "cogserve",
		Subsystem: "dbpool",
		Name:      "rotations_total",
		Help:      "Total pool rotation attempts, by outcome.",
	},
	[]string{"outcome"},
)

// PoolConnectionsInUse reports in-use connections per logical pool (sync/async).
var PoolConnectionsInUse = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "cogserve",
		Subsystem: "dbpool",
		Name:      "connections_in_use",
		Help:      "Connections currently checked out, by pool kind.",
	},
	[]string{"pool"},
)

// CatalogCollections reports the number of collections currently published.
var CatalogCollections = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "cogserve",
		Subsystem: "catalog",
		Name:      "collections",
		Help:      "Number of OGC collections currently published by the catalog service.",
	},
)

// RefreshCyclesTotal counts background refresh cycles by substep and outcome.
var RefreshCyclesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "cogserve",
		Subsystem: "refresher",
		Name:      "cycles_total",
		Help:      "Total background refresh cycles, by substep and outcome.",
	},
	[]string{"substep", "outcome"},
)

// All returns the service-specific collectors for registration alongside
// the shared HTTPRequestDuration metric.
func All() []prometheus.Collector {
	return []prometheus.Collector{
		CredentialAcquisitions,
		CredentialAcquireDuration,
		TokenTTLSeconds,
		PoolRotationsTotal,
		PoolConnectionsInUse,
		CatalogCollections,
		RefreshCyclesTotal,
	}
}

// NewMetricsRegistry creates a Prometheus registry with Go/process collectors,
// the shared HTTPRequestDuration metric, and any additional collectors
// passed as arguments.
func NewMetricsRegistry(extra ...prometheus.Collector) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		HTTPRequestDuration,
	)
	for _, c := range extra {
		reg.MustRegister(c)
	}
	return reg
}
