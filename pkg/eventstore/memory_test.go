package eventstore

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/grainstack/grain/pkg/anomaly"
	"github.com/grainstack/grain/pkg/pubsub"
	"github.com/grainstack/grain/pkg/schema"
	"github.com/grainstack/grain/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*MemoryStore, *pubsub.Bus) {
	t.Helper()
	bus := pubsub.NewBus(pubsub.Config{})
	t.Cleanup(bus.Close)
	return NewMemoryStore(bus, nil), bus
}

func TestAppendAssignsMonotonicIDs(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := store.Append(ctx, []types.Event{
			{Type: "t/a"},
			{Type: "t/b"},
		})
		require.NoError(t, err)
	}

	evs, err := store.Read(ctx, Query{})
	require.NoError(t, err)
	// 5 batches of 2 events plus one tx marker each
	assert.Len(t, evs, 15)

	for i := 1; i < len(evs); i++ {
		assert.Equal(t, 1, types.CompareIDs(evs[i].ID, evs[i-1].ID),
			"identifiers must be strictly increasing in append order")
	}
}

func TestAppendWritesTxMarker(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	_, err := store.Append(ctx, []types.Event{{Type: "t/a"}})
	require.NoError(t, err)

	evs, err := store.Read(ctx, Query{})
	require.NoError(t, err)
	require.Len(t, evs, 2)
	assert.Equal(t, "t/a", evs[0].Type)
	assert.True(t, evs[1].IsTx(), "batch must close with a grain/tx marker")
	assert.Equal(t, types.TxEventType, evs[1].Type)
}

func TestAppendReturnsAssignedIDs(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	ids, err := store.Append(ctx, []types.Event{{Type: "t/a"}, {Type: "t/b"}})
	require.NoError(t, err)
	require.Len(t, ids, 2)

	evs, err := store.Read(ctx, Query{})
	require.NoError(t, err)
	assert.Equal(t, ids[0], evs[0].ID)
	assert.Equal(t, ids[1], evs[1].ID)
}

func TestAppendRejectsDuplicateID(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	ids, err := store.Append(ctx, []types.Event{{Type: "t/a"}})
	require.NoError(t, err)

	_, err = store.Append(ctx, []types.Event{{ID: ids[0], Type: "t/a"}})
	assert.True(t, anomaly.Is(err, anomaly.CategoryConflict))

	// The failed batch must not be visible.
	evs, err := store.Read(ctx, Query{})
	require.NoError(t, err)
	assert.Len(t, evs, 2)
}

func TestAppendValidatesSchemas(t *testing.T) {
	bus := pubsub.NewBus(pubsub.Config{})
	defer bus.Close()
	schemas := schema.NewRegistry()
	schemas.Register("t/strict", schema.Fields{
		{Name: "name", Kind: schema.String, Required: true},
	}.Validator())
	store := NewMemoryStore(bus, schemas)
	ctx := context.Background()

	_, err := store.Append(ctx, []types.Event{
		{Type: "t/other"},
		{Type: "t/strict", Body: map[string]any{}},
	})
	require.True(t, anomaly.Is(err, anomaly.CategoryIncorrect))

	var a *anomaly.Anomaly
	require.ErrorAs(t, err, &a)
	assert.NotNil(t, a.Explain)

	// Validation failure rejects the whole batch.
	evs, err := store.Read(ctx, Query{})
	require.NoError(t, err)
	assert.Empty(t, evs)
}

func TestReadByTypes(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	_, err := store.Append(ctx, []types.Event{
		{Type: "t/a"}, {Type: "t/b"}, {Type: "t/c"},
	})
	require.NoError(t, err)

	evs, err := store.Read(ctx, Query{Types: []string{"t/a", "t/c"}})
	require.NoError(t, err)
	require.Len(t, evs, 2)
	assert.Equal(t, "t/a", evs[0].Type)
	assert.Equal(t, "t/c", evs[1].Type)
}

func TestReadByTagsAndSemantics(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	both := []types.Tag{{Kind: "user", Value: "u1"}, {Kind: "org", Value: "o1"}}
	_, err := store.Append(ctx, []types.Event{
		{Type: "t/a", Tags: []types.Tag{{Kind: "user", Value: "u1"}}},
		{Type: "t/b", Tags: both},
		{Type: "t/c", Tags: []types.Tag{{Kind: "org", Value: "o1"}}},
		{Type: "t/d", Tags: both},
	})
	require.NoError(t, err)

	// Single tag
	evs, err := store.Read(ctx, Query{Tags: []types.Tag{{Kind: "user", Value: "u1"}}})
	require.NoError(t, err)
	assert.Len(t, evs, 3)

	// AND semantics: the event must carry all queried tags
	evs, err = store.Read(ctx, Query{Tags: both})
	require.NoError(t, err)
	require.Len(t, evs, 2)
	assert.Equal(t, "t/b", evs[0].Type)
	assert.Equal(t, "t/d", evs[1].Type)

	// Unknown tag matches nothing
	evs, err = store.Read(ctx, Query{Tags: []types.Tag{{Kind: "user", Value: "nope"}}})
	require.NoError(t, err)
	assert.Empty(t, evs)
}

func TestReadRangeAndLimit(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	var ids []uuid.UUID
	for i := 0; i < 5; i++ {
		batch, err := store.Append(ctx, []types.Event{{Type: "t/a"}})
		require.NoError(t, err)
		ids = append(ids, batch[0])
	}

	// (after, before] is half-open: after is excluded, before included
	evs, err := store.Read(ctx, Query{Types: []string{"t/a"}, After: ids[1], Before: ids[3]})
	require.NoError(t, err)
	require.Len(t, evs, 2)
	assert.Equal(t, ids[2], evs[0].ID)
	assert.Equal(t, ids[3], evs[1].ID)

	evs, err = store.Read(ctx, Query{Types: []string{"t/a"}, Limit: 2})
	require.NoError(t, err)
	require.Len(t, evs, 2)
	assert.Equal(t, ids[0], evs[0].ID)
}

// Every event observed by a subscriber must already be readable from
// the store, and batches must be visible all-or-nothing.
func TestPublishImpliesDurable(t *testing.T) {
	bus := pubsub.NewBus(pubsub.Config{})
	defer bus.Close()
	store := NewMemoryStore(bus, nil)
	ctx := context.Background()

	sub := bus.Subscribe("t/a")
	var wg sync.WaitGroup
	wg.Add(1)
	var violations int
	go func() {
		defer wg.Done()
		for ev := range sub.Events() {
			evs, err := store.Read(ctx, Query{Types: []string{"t/a"}})
			if err != nil {
				violations++
				continue
			}
			found := false
			for _, stored := range evs {
				if stored.ID == ev.ID {
					found = true
					break
				}
			}
			if !found {
				violations++
			}
		}
	}()

	for i := 0; i < 50; i++ {
		_, err := store.Append(ctx, []types.Event{{Type: "t/a"}})
		require.NoError(t, err)
	}

	bus.Unsubscribe(sub)
	wg.Wait()
	assert.Zero(t, violations, "subscriber observed an event not yet durable")
}

func TestBatchAtomicity(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 20; i++ {
			_, err := store.Append(ctx, []types.Event{
				{Type: "t/batch"}, {Type: "t/batch"}, {Type: "t/batch"},
			})
			assert.NoError(t, err)
		}
	}()

	// Concurrent readers must always see a multiple of the batch size.
	for i := 0; i < 100; i++ {
		evs, err := store.Read(ctx, Query{Types: []string{"t/batch"}})
		require.NoError(t, err)
		assert.Zero(t, len(evs)%3, "read observed a partial batch")
	}
	<-done
}

func TestCloseRejectsOperations(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Close())
	_, err := store.Append(ctx, []types.Event{{Type: "t/a"}})
	assert.True(t, anomaly.Is(err, anomaly.CategoryUnavailable))
	_, err = store.Read(ctx, Query{})
	assert.True(t, anomaly.Is(err, anomaly.CategoryUnavailable))
}

func TestOpenDefaultsToMemory(t *testing.T) {
	bus := pubsub.NewBus(pubsub.Config{})
	defer bus.Close()

	store, err := Open(context.Background(), Config{Bus: bus})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, store)

	_, err = Open(context.Background(), Config{Conn: ConnConfig{Type: "bogus"}, Bus: bus})
	assert.Error(t, err)
}
