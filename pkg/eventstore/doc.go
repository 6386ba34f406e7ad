/*
Package eventstore provides Grain's ordered, append-only event log.

The store is the single source of truth of the runtime: commands append
events here, todo processors react to what gets appended, and read
models fold over what Read returns.

# Architecture

	┌────────────────── EVENT STORE ───────────────────────┐
	│                                                        │
	│  Append(events)                                        │
	│    1. validate bodies against registered schemas       │
	│    2. assign UUIDv7 ids (strictly increasing)          │
	│    3. append batch + one grain/tx marker atomically    │
	│    4. publish each event to the bus, still holding     │
	│       the write lock                                   │
	│                                                        │
	│  Read(query)                                           │
	│    - Types: match any of the given type names          │
	│    - Tags: match all (posting-list intersection)       │
	│    - After/Before: half-open id range (after, before]  │
	│    - Limit                                             │
	│    ascending id order; tx markers included unless      │
	│    the caller filters them                             │
	└────────────────────────────────────────────────────────┘

# Guarantees

  - Identifiers are UUIDv7 and strictly increasing in append order, so
    id order equals append time order even across restarts.
  - Append batches are atomic: a concurrent Read sees all events of a
    batch or none of them.
  - Publication happens inside the append critical section, so an event
    observed on the bus is already durable.
  - The same identifier is never appended twice; duplicates and
    out-of-order preassigned ids fail the batch with a conflict.

# Backends

MemoryStore defines the reference semantics and backs tests and small
deployments. PGStore stores the log in postgres (events plus a tag
relation, one database transaction per append batch); it serializes
appends with a store-level mutex, which assumes a single process owns
the log.

# Usage

	store, err := eventstore.Open(ctx, eventstore.Config{
		Conn:    eventstore.ConnConfig{Type: eventstore.ConnInMemory},
		Bus:     bus,
		Schemas: schemas,
	})

	ids, err := store.Append(ctx, []types.Event{{
		Type: "example/counter-created",
		Body: map[string]any{"counter-id": id.String()},
		Tags: []types.Tag{{Kind: "counter-id", Value: id.String()}},
	}})

	evs, err := store.Read(ctx, eventstore.Query{
		Types: []string{"example/counter-created"},
	})

# See Also

  - pkg/pubsub for the publication hook
  - pkg/projector for folding reads into cached state
*/
package eventstore
