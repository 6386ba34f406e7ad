/*
Package projector folds events into cached read-model state.

A projection is a left fold over the events matching a store query. The
projector makes that fold incremental: it caches (state, watermark)
pairs in the snapshot store, where the watermark is the identifier of
the last event folded in, and on each call only reads and folds events
newer than the watermark.

# Algorithm

 1. key = "name@vN"
 2. cached = cache.Get(key); on a hit, decode (state, watermark)
 3. events = store.Read(query + {after: watermark})
 4. fold the events into the state, advancing the watermark
 5. write back: always on a miss; on a hit only when ≥10 events were
    folded
 6. return the state

# Invariant

For a fixed (name, version, fold, query), the returned state equals the
fold of every event matching the query at call time, in ascending
identifier order, whether the cache hit or missed. Deleting a snapshot changes
latency, never results. A corrupt snapshot is treated as a miss.

Changing the fold function without bumping Version silently reuses
stale state; bump Version to force a rebuild under a fresh key.

# Usage

	counter := projector.Projection[int]{
		Name:    "counter/total",
		Version: 1,
		Query:   eventstore.Query{Types: []string{"t/inc"}},
		Fold:    func(s int, ev types.Event) int { return s + 1 },
	}

	total, err := projector.Project(ctx, store, cache, counter)

State is any JSON-round-trippable type; the snapshot payload is a JSON
{state, watermark} envelope.

# See Also

  - pkg/snapshot for the cache contract
  - pkg/eventstore for read semantics
*/
package projector
