package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Event store metrics
	EventsAppendedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grain_events_appended_total",
			Help: "Total number of events appended by event type",
		},
		[]string{"type"},
	)

	AppendBatchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grain_append_batches_total",
			Help: "Total number of append batches by status",
		},
		[]string{"status"},
	)

	AppendDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "grain_append_duration_seconds",
			Help:    "Event store append duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Pub/sub metrics
	PublishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grain_pubsub_published_total",
			Help: "Total number of messages published by topic",
		},
		[]string{"topic"},
	)

	SubscribersTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "grain_pubsub_subscribers_total",
			Help: "Current number of active subscriptions",
		},
	)

	// Dispatch metrics
	CommandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grain_commands_total",
			Help: "Total number of commands processed by name and status",
		},
		[]string{"name", "status"},
	)

	CommandDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "grain_command_duration_seconds",
			Help:    "Command processing duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"name"},
	)

	QueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grain_queries_total",
			Help: "Total number of queries processed by name and status",
		},
		[]string{"name", "status"},
	)

	QueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "grain_query_duration_seconds",
			Help:    "Query processing duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"name"},
	)

	// Todo processor metrics. Per-processor rates are the operational
	// signal for runaway reactor recursion.
	TodoEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grain_todo_events_total",
			Help: "Total number of events handled by todo processors, by processor and outcome",
		},
		[]string{"processor", "outcome"},
	)

	// Projector metrics
	ProjectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grain_projections_total",
			Help: "Total number of projection runs by name and cache outcome",
		},
		[]string{"name", "cache"},
	)

	ProjectionEventsFolded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grain_projection_events_folded_total",
			Help: "Total number of events folded by projection name",
		},
		[]string{"name"},
	)

	SnapshotWritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grain_snapshot_writes_total",
			Help: "Total number of snapshot writebacks by projection name",
		},
		[]string{"name"},
	)

	// API metrics
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grain_http_requests_total",
			Help: "Total number of HTTP requests by endpoint and status",
		},
		[]string{"endpoint", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "grain_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)
)

func init() {
	prometheus.MustRegister(
		EventsAppendedTotal,
		AppendBatchesTotal,
		AppendDuration,
		PublishedTotal,
		SubscribersTotal,
		CommandsTotal,
		CommandDuration,
		QueriesTotal,
		QueryDuration,
		TodoEventsTotal,
		ProjectionsTotal,
		ProjectionEventsFolded,
		SnapshotWritesTotal,
		HTTPRequestsTotal,
		HTTPRequestDuration,
	)
}

// Handler returns the HTTP handler serving /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
