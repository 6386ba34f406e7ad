/*
Package todo provides Grain's asynchronous event reactors.

A todo processor subscribes to one or more topics on the pub/sub bus
and invokes its handler for every delivered event. It is the "do this
whenever that happens" half of the runtime: send the welcome email when
a user registers, kick off the next workflow step when the previous one
completes.

# Processing Model

  - One subscription per topic, one worker goroutine per processor.
  - Events are handled sequentially in delivery order, so each
    processor sees a linear history of its subscribed types.
  - Handler-returned events are appended to the event store, which may
    in turn wake other processors. Recursion has no built-in guard;
    watch grain_todo_events_total rates for cycles.
  - Anomalies and panics are logged and skipped; the worker keeps
    going. There is no caller to report to.
  - Delivery is at-least-once. Handlers must be idempotent.

# Lifecycle

Stop unsubscribes from the bus (closing the subscription queues), lets
the in-flight handler invocation finish, and joins the worker. The bus
guarantees no events are dropped while the processor is subscribed, so
anything published before Stop is either handled or discarded with the
drained queue, never silently lost while running.

# Usage

	proc, err := todo.Start(todo.Config{
		Name:   "counter-auditor",
		Bus:    bus,
		Topics: []string{"example/counter-created"},
		Store:  store,
		Handler: func(ctx context.Context, gc *dispatch.Context) ([]types.Event, error) {
			return []types.Event{{
				Type: "example/counter-audited",
				Body: map[string]any{"counter-id": gc.Event.Body["counter-id"]},
			}}, nil
		},
	})
	defer proc.Stop()

# See Also

  - pkg/pubsub for the delivery contract
  - pkg/metrics for per-processor outcome counters
*/
package todo
