package telemetry

import "github.com/prometheus/client_golang/prometheus"

var HTTPRequestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "cs2kz",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	},
	[]string{"method", "route", "status"},
)

var ConnectedServersTotal = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "cs2kz",
		Subsystem: "servers",
		Name:      "connected_total",
		Help:      "Number of game servers currently connected.",
	},
)

var ServerMessagesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "cs2kz",
		Subsystem: "servers",
		Name:      "messages_total",
		Help:      "Total number of server-protocol messages processed, by direction and kind.",
	},
	[]string{"direction", "kind"},
)

var RecordsIngestedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "cs2kz",
		Subsystem: "records",
		Name:      "ingested_total",
		Help:      "Total number of records accepted or rejected during ingest.",
	},
	[]string{"outcome"},
)

var PointsWorkerQueueDepth = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "cs2kz",
		Subsystem: "points",
		Name:      "worker_queue_depth",
		Help:      "Number of pending distribution-fit requests queued for the numerical worker.",
	},
)

var PointsWorkerDuration = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: "cs2kz",
		Subsystem: "points",
		Name:      "worker_duration_seconds",
		Help:      "Duration of a single distribution fit on the numerical worker.",
		Buckets:   prometheus.DefBuckets,
	},
)

var EventBusLagTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "cs2kz",
		Subsystem: "events",
		Name:      "subscriber_lag_total",
		Help:      "Total number of times a slow event subscriber was skipped ahead.",
	},
)

// All returns every cs2kz-specific metric for registration.
func All() []prometheus.Collector {
	return []prometheus.Collector{
		HTTPRequestDuration,
		ConnectedServersTotal,
		ServerMessagesTotal,
		RecordsIngestedTotal,
		PointsWorkerQueueDepth,
		PointsWorkerDuration,
		EventBusLagTotal,
	}
}
