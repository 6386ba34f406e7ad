package projector

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/grainstack/grain/pkg/anomaly"
	"github.com/grainstack/grain/pkg/eventstore"
	"github.com/grainstack/grain/pkg/log"
	"github.com/grainstack/grain/pkg/metrics"
	"github.com/grainstack/grain/pkg/snapshot"
	"github.com/grainstack/grain/pkg/types"
)

// writebackThreshold is the minimum number of newly folded events that
// justifies rewriting an existing snapshot. Amortizes serialization
// cost against projection frequency.
const writebackThreshold = 10

// FoldFn folds one event into the projection state.
type FoldFn[S any] func(state S, ev types.Event) S

// Projection describes a read model: a fold over the events matching
// Query, cached under (Name, Version). Incrementing Version changes
// the snapshot key and forces a full rebuild, which is the correct way
// to deploy a fold change.
type Projection[S any] struct {
	Name    string
	Version int
	Query   eventstore.Query
	Fold    FoldFn[S]
	// Initial is the state a rebuild starts from.
	Initial S
}

// envelope is the persisted snapshot payload.
type envelope struct {
	State     json.RawMessage `json:"state"`
	Watermark uuid.UUID       `json:"watermark"`
}

// Key returns the snapshot key for the projection.
func (p Projection[S]) Key() []byte {
	return []byte(fmt.Sprintf("%s@v%d", p.Name, p.Version))
}

// Project returns the fold of the projection's query at the time of
// call, consulting and opportunistically refreshing the snapshot
// cache. The cache only ever changes latency, never the result.
func Project[S any](ctx context.Context, store eventstore.Store, cache snapshot.Store, p Projection[S]) (S, error) {
	logger := log.WithComponent("projector")
	key := p.Key()

	state := p.Initial
	var watermark uuid.UUID
	hit := false

	if cache != nil {
		raw, err := cache.Get(key)
		if err != nil {
			return state, anomaly.Fault("Error reading snapshot").WithCause(err)
		}
		if raw != nil {
			var env envelope
			var cached S
			if err := json.Unmarshal(raw, &env); err == nil {
				err = json.Unmarshal(env.State, &cached)
			}
			if err != nil {
				// A corrupt snapshot costs a rebuild, nothing more.
				logger.Warn().
					Err(err).
					Str("projection", p.Name).
					Msg("Snapshot decode failed, rebuilding")
			} else {
				state = cached
				watermark = env.Watermark
				hit = true
			}
		}
	}

	q := p.Query
	if watermark != uuid.Nil {
		q.After = watermark
	}
	events, err := store.Read(ctx, q)
	if err != nil {
		return p.Initial, err
	}

	for _, ev := range events {
		state = p.Fold(state, ev)
		watermark = ev.ID
	}

	cacheLabel := "miss"
	if hit {
		cacheLabel = "hit"
	}
	metrics.ProjectionsTotal.WithLabelValues(p.Name, cacheLabel).Inc()
	metrics.ProjectionEventsFolded.WithLabelValues(p.Name).Add(float64(len(events)))

	if cache != nil && (!hit || len(events) >= writebackThreshold) {
		if err := writeback(cache, key, state, watermark); err != nil {
			// The snapshot is a cache; failing to refresh it is not a
			// projection failure.
			logger.Warn().
				Err(err).
				Str("projection", p.Name).
				Msg("Snapshot writeback failed")
		} else {
			metrics.SnapshotWritesTotal.WithLabelValues(p.Name).Inc()
		}
	}

	return state, nil
}

func writeback[S any](cache snapshot.Store, key []byte, state S, watermark uuid.UUID) error {
	rawState, err := json.Marshal(state)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(envelope{State: rawState, Watermark: watermark})
	if err != nil {
		return err
	}
	return cache.Put(key, raw)
}
