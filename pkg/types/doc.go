/*
Package types defines the core data structures used throughout Grain.

This package contains the fundamental types of Grain's CQRS + event
sourcing model: events, commands, queries, tags, and handler results.
These types are shared by the event store, the dispatch pipeline, the
pub/sub bus, the todo processors, and the read-model projector.

# Core Types

Event Model:
  - Event: Immutable fact with UUIDv7 identifier, type, timestamp, body, tags
  - Tag: (kind, value) pair used as a secondary index
  - TxEventType: Synthetic "grain/tx" event closing each append batch

Write Model:
  - Command: Transient intent to change state, dispatched by name
  - CommandResult: Emitted events plus an optional result value

Read Model:
  - Query: Transient request for data, dispatched by name
  - QueryResult: The handler's result value

# Identifier Ordering

Event identifiers are UUIDv7, so their bytewise order equals their
creation order. CompareIDs is the single comparison point; the event
store's read cursors and the projector's watermark both rely on it.

# Wire Shape

Commands and queries cross the HTTP boundary as flat JSON maps: the
namespaced envelope fields (command/name, command/id,
command/timestamp; query/* for queries) sit beside the open payload
fields, so a payload field called "name" never collides. Custom
(Un)MarshalJSON implementations split and re-flatten the envelope so
in-process code sees a typed struct with a Body map.

# Usage

	ev := types.Event{
		Type: "example/counter-created",
		Body: map[string]any{"counter-id": id, "name": "visits"},
		Tags: []types.Tag{{Kind: "counter-id", Value: id.String()}},
	}

All types are plain data: serializable with encoding/json, safe to copy,
and free of behavior beyond small helpers (IsTx, HasTag, CompareIDs).

# See Also

  - pkg/eventstore for the log these types are appended to
  - pkg/dispatch for command and query processing
  - pkg/anomaly for the error half of handler results
*/
package types
