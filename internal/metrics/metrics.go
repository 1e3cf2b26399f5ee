// Package metrics exposes Prometheus instrumentation for the tracker.
//
// Metrics are registered on the default registry and served at /metrics by the
// broadcast server:
//   - geolock_fetch_total: fetch cycles by result (located, empty, error)
//   - geolock_coordinate_updates_total: coordinates written to the store
//   - geolock_resolve_total: reverse geocoding calls by result
//   - geolock_resolve_duration_seconds: reverse geocoding latency
//   - geolock_sessions_active: connected viewers by transport
//   - geolock_broadcast_lines_total: lines sent by transport
//   - geolock_circuit_breaker_state: 0=closed, 1=half-open, 2=open
//   - geolock_server_state: control plane state
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geolock_fetch_total",
			Help: "Total number of message fetch cycles by result",
		},
		[]string{"result"}, // "located", "empty", "error"
	)

	CoordinateUpdates = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "geolock_coordinate_updates_total",
			Help: "Total number of coordinates written to the current coordinate store",
		},
	)

	ResolveTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geolock_resolve_total",
			Help: "Total number of reverse geocoding calls by result",
		},
		[]string{"result"}, // "success", "network", "rate_limited", "no_result", "unavailable"
	)

	ResolveDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "geolock_resolve_duration_seconds",
			Help:    "Duration of reverse geocoding calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	SessionsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "geolock_sessions_active",
			Help: "Number of connected viewer sessions",
		},
		[]string{"transport"}, // "websocket", "tcp"
	)

	BroadcastLines = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geolock_broadcast_lines_total",
			Help: "Total number of coordinate lines sent to viewers",
		},
		[]string{"transport"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "geolock_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	ServerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "geolock_server_state",
			Help: "Control plane state (0=starting, 1=running, 2=shutting down, 3=stopped)",
		},
	)
)
