package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Connection metrics
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "flow_gateway_connections_active",
		Help: "Number of active client connections",
	})

	TotalConnections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flow_gateway_connections_total",
		Help: "Total number of client connections",
	})

	// Connection rejection metrics
	ConnectionRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flow_gateway_connection_rejected_total",
		Help: "Total number of connections rejected",
	}, []string{"reason"})

	// Flow table occupancy, refreshed periodically from the table
	FlowTableSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "flow_gateway_flow_table_size",
		Help: "Number of flows currently bound to a slot",
	})

	FlowTableAvailable = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "flow_gateway_flow_table_available",
		Help: "Number of free flow slots",
	})

	FlowTableCapacity = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "flow_gateway_flow_table_capacity",
		Help: "Fixed number of flow slots",
	})

	// Flow table activity, labelled by outcome
	FlowLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flow_gateway_flow_lookups_total",
		Help: "Flow table acquisitions by result (hit, miss)",
	}, []string{"result"})

	FlowsRemoved = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flow_gateway_flows_removed_total",
		Help: "Flows unbound from the table by reason (evicted, expired, closed)",
	}, []string{"reason"})

	// Frame processing
	FramesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flow_gateway_frames_processed_total",
		Help: "Total number of client frames processed",
	}, []string{"type"})

	BytesProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flow_gateway_bytes_processed_total",
		Help: "Total number of client bytes processed, headers included",
	})

	// Event publishing
	EventsPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flow_gateway_events_published_total",
		Help: "Total number of flow events delivered to the sink",
	})

	EventsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flow_gateway_events_dropped_total",
		Help: "Total number of flow events not delivered to the sink",
	}, []string{"reason"})

	// Circuit breaker metrics
	CircuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "flow_gateway_circuit_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
	}, []string{"target"})

	// Configuration reload metrics
	ConfigReloads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flow_gateway_config_reloads_total",
		Help: "Configuration reloads by result",
	}, []string{"result"})
)

// IncConnectionRejected increments the connection rejected counter
func IncConnectionRejected(reason string) {
	ConnectionRejected.WithLabelValues(reason).Inc()
}
