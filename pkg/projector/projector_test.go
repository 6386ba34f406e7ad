package projector

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/grainstack/grain/pkg/eventstore"
	"github.com/grainstack/grain/pkg/pubsub"
	"github.com/grainstack/grain/pkg/snapshot"
	"github.com/grainstack/grain/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixture(t *testing.T) (*eventstore.MemoryStore, *snapshot.MemoryStore) {
	t.Helper()
	bus := pubsub.NewBus(pubsub.Config{})
	t.Cleanup(bus.Close)
	return eventstore.NewMemoryStore(bus, nil), snapshot.NewMemoryStore()
}

func appendInc(t *testing.T, store *eventstore.MemoryStore, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		_, err := store.Append(context.Background(), []types.Event{
			{Type: "t/inc", Body: map[string]any{"index": i}},
		})
		require.NoError(t, err)
	}
}

func countProjection() Projection[int] {
	return Projection[int]{
		Name:    "cnt",
		Version: 1,
		Query:   eventstore.Query{Types: []string{"t/inc"}},
		Fold:    func(s int, ev types.Event) int { return s + 1 },
	}
}

func TestProjectIncrementalWithSnapshot(t *testing.T) {
	store, cache := fixture(t)
	ctx := context.Background()
	p := countProjection()

	appendInc(t, store, 25)

	state, err := Project(ctx, store, cache, p)
	require.NoError(t, err)
	assert.Equal(t, 25, state)

	// Cache miss: snapshot written, watermark = id of the last event
	raw, err := cache.Get(p.Key())
	require.NoError(t, err)
	require.NotNil(t, raw)

	var env struct {
		State     int    `json:"state"`
		Watermark string `json:"watermark"`
	}
	require.NoError(t, json.Unmarshal(raw, &env))
	assert.Equal(t, 25, env.State)

	evs, err := store.Read(ctx, eventstore.Query{Types: []string{"t/inc"}})
	require.NoError(t, err)
	assert.Equal(t, evs[len(evs)-1].ID.String(), env.Watermark)

	// 3 more events: correct result, but below the writeback threshold
	appendInc(t, store, 3)
	state, err = Project(ctx, store, cache, p)
	require.NoError(t, err)
	assert.Equal(t, 28, state)

	after, err := cache.Get(p.Key())
	require.NoError(t, err)
	assert.Equal(t, raw, after, "snapshot rewritten below the threshold")

	// 10 more events: threshold reached, snapshot rewritten
	appendInc(t, store, 10)
	state, err = Project(ctx, store, cache, p)
	require.NoError(t, err)
	assert.Equal(t, 38, state)

	rewritten, err := cache.Get(p.Key())
	require.NoError(t, err)
	assert.NotEqual(t, raw, rewritten, "snapshot not rewritten at the threshold")
}

// Deleting the snapshot must never change the projected value, only
// the latency of the next call.
func TestProjectCacheTransparency(t *testing.T) {
	store, cache := fixture(t)
	ctx := context.Background()
	p := countProjection()

	appendInc(t, store, 17)

	cached, err := Project(ctx, store, cache, p)
	require.NoError(t, err)

	require.NoError(t, cache.Delete(p.Key()))
	rebuilt, err := Project(ctx, store, cache, p)
	require.NoError(t, err)
	assert.Equal(t, cached, rebuilt)
}

func TestProjectWithoutCache(t *testing.T) {
	store, _ := fixture(t)
	appendInc(t, store, 4)

	state, err := Project(context.Background(), store, nil, countProjection())
	require.NoError(t, err)
	assert.Equal(t, 4, state)
}

func TestProjectCorruptSnapshotRebuilds(t *testing.T) {
	store, cache := fixture(t)
	ctx := context.Background()
	p := countProjection()

	appendInc(t, store, 12)
	require.NoError(t, cache.Put(p.Key(), []byte("not json")))

	state, err := Project(ctx, store, cache, p)
	require.NoError(t, err)
	assert.Equal(t, 12, state)
}

func TestProjectStructuredState(t *testing.T) {
	store, cache := fixture(t)
	ctx := context.Background()

	type totals struct {
		Count int `json:"count"`
		Sum   int `json:"sum"`
	}
	p := Projection[totals]{
		Name:    "totals",
		Version: 1,
		Query:   eventstore.Query{Types: []string{"t/inc"}},
		Fold: func(s totals, ev types.Event) totals {
			s.Count++
			s.Sum += ev.Body["index"].(int)
			return s
		},
	}

	appendInc(t, store, 5)

	state, err := Project(ctx, store, cache, p)
	require.NoError(t, err)
	assert.Equal(t, totals{Count: 5, Sum: 10}, state)

	// Second call folds from the snapshot; JSON round-tripping the
	// state must not change the result.
	appendInc(t, store, 1)
	state, err = Project(ctx, store, cache, p)
	require.NoError(t, err)
	assert.Equal(t, totals{Count: 6, Sum: 10}, state)
}

func TestVersionBumpForcesRebuild(t *testing.T) {
	store, cache := fixture(t)
	ctx := context.Background()

	v1 := countProjection()
	appendInc(t, store, 6)
	_, err := Project(ctx, store, cache, v1)
	require.NoError(t, err)

	// A new version uses a fresh key: the old snapshot stays behind,
	// the new fold sees the full history.
	v2 := v1
	v2.Version = 2
	v2.Fold = func(s int, ev types.Event) int { return s + 2 }

	state, err := Project(ctx, store, cache, v2)
	require.NoError(t, err)
	assert.Equal(t, 12, state)
	assert.NotEqual(t, v1.Key(), v2.Key())
}
