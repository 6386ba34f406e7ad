/*
Package dispatch provides Grain's command and query processing
pipelines and the registries that name their handlers.

# Write Pipeline (ProcessCommand)

 1. Look up the command name in the registry; unknown names fail with
    a not-found anomaly ("Unknown Command").
 2. Validate the generic envelope (name, id, timestamp) and the payload
    schema registered with the handler; failures are incorrect
    anomalies with an explain map.
 3. Invoke the handler inside an error boundary: panics become faults,
    a nil result with nil error becomes a fault, handler-returned
    anomalies are forwarded unchanged.
 4. Append emitted events in one batch via the event store, unless the
    context sets SkipEventStorage. Append failures fail the command
    with "Error storing events". Assigned identifiers are merged back
    into the result.

SkipEventStorage is the composition mechanism: a parent handler invokes
ProcessCommand on a child command with storage skipped, collects the
child's emitted events into its own result, and the parent's append
remains the single atomic write. No nested-transaction machinery.

# Read Pipeline (ProcessQuery)

Steps 1–3 of the write pipeline with the query registry; there is no
emission step. Query handlers must be pure with respect to the event
store.

# Registries

Handlers are registered explicitly at startup:

	dispatch.DefaultCommands.Register("example/create-counter",
		createCounter,
		schema.Fields{{Name: "name", Kind: schema.String, Required: true}}.Validator(),
	)

The process-wide defaults serve the common case; a Context carrying its
own registries overrides them, which is how tests isolate themselves.

# Context

Context is the structured value threaded through every layer: the
command or query being processed, the effective registries, the event
store, the bus, the snapshot cache, and an open Extra bag for
transport-supplied context such as auth identity.

# See Also

  - pkg/api maps HTTP requests onto these pipelines
  - pkg/todo invokes handlers for asynchronously delivered events
*/
package dispatch
