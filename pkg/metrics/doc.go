/*
Package metrics provides Prometheus metrics for Grain.

All metrics are package-level collectors registered in init and shared
across the runtime; the Handler function exposes them at /metrics via
promhttp.

# Metric Families

Event store:
  - grain_events_appended_total{type}
  - grain_append_batches_total{status}
  - grain_append_duration_seconds

Pub/sub:
  - grain_pubsub_published_total{topic}
  - grain_pubsub_subscribers_total

Dispatch:
  - grain_commands_total{name,status} / grain_command_duration_seconds{name}
  - grain_queries_total{name,status} / grain_query_duration_seconds{name}

Todo processors:
  - grain_todo_events_total{processor,outcome}

A todo processor may emit events that wake further processors; there is
deliberately no loop guard in the runtime, so per-processor rates are
the way to spot a reactor cycle: alert when the rate of a processor far
exceeds the rate of externally-driven commands.

Projector:
  - grain_projections_total{name,cache} (cache = hit | miss)
  - grain_projection_events_folded_total{name}
  - grain_snapshot_writes_total{name}

HTTP:
  - grain_http_requests_total{endpoint,status}
  - grain_http_request_duration_seconds{endpoint}

# Usage

	metrics.CommandsTotal.WithLabelValues(name, "ok").Inc()

	mux.Handle("/metrics", metrics.Handler())

# See Also

  - pkg/api wires the /metrics endpoint
  - pkg/log for the textual side of observability
*/
package metrics
