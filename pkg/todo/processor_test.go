package todo

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/grainstack/grain/pkg/anomaly"
	"github.com/grainstack/grain/pkg/dispatch"
	"github.com/grainstack/grain/pkg/eventstore"
	"github.com/grainstack/grain/pkg/pubsub"
	"github.com/grainstack/grain/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixture(t *testing.T) (*pubsub.Bus, *eventstore.MemoryStore) {
	t.Helper()
	bus := pubsub.NewBus(pubsub.Config{})
	t.Cleanup(bus.Close)
	return bus, eventstore.NewMemoryStore(bus, nil)
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestProcessorHandlesEventsInOrder(t *testing.T) {
	bus, store := fixture(t)

	var mu sync.Mutex
	var seen []int
	proc, err := Start(Config{
		Name:   "orderer",
		Bus:    bus,
		Topics: []string{"t/seq"},
		Store:  store,
		Handler: func(ctx context.Context, gc *dispatch.Context) ([]types.Event, error) {
			mu.Lock()
			defer mu.Unlock()
			seen = append(seen, gc.Event.Body["seq"].(int))
			return nil, nil
		},
	})
	require.NoError(t, err)
	defer proc.Stop()

	const n = 100
	for i := 0; i < n; i++ {
		_, err := store.Append(context.Background(), []types.Event{
			{Type: "t/seq", Body: map[string]any{"seq": i}},
		})
		require.NoError(t, err)
	}

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == n
	}, "not all events were handled")

	mu.Lock()
	defer mu.Unlock()
	for i, seq := range seen {
		assert.Equal(t, i, seq, "events handled out of publish order")
	}
}

func TestProcessorAppendsResultEvents(t *testing.T) {
	bus, store := fixture(t)

	proc, err := Start(Config{
		Name:   "reactor",
		Bus:    bus,
		Topics: []string{"t/trigger"},
		Store:  store,
		Handler: func(ctx context.Context, gc *dispatch.Context) ([]types.Event, error) {
			return []types.Event{{
				Type: "t/reaction",
				Body: map[string]any{"cause": gc.Event.ID.String()},
			}}, nil
		},
	})
	require.NoError(t, err)
	defer proc.Stop()

	ids, err := store.Append(context.Background(), []types.Event{{Type: "t/trigger"}})
	require.NoError(t, err)

	waitFor(t, func() bool {
		evs, err := store.Read(context.Background(), eventstore.Query{Types: []string{"t/reaction"}})
		return err == nil && len(evs) == 1
	}, "reaction event was not appended")

	evs, err := store.Read(context.Background(), eventstore.Query{Types: []string{"t/reaction"}})
	require.NoError(t, err)
	assert.Equal(t, ids[0].String(), evs[0].Body["cause"])
}

func TestProcessorSurvivesAnomaliesAndPanics(t *testing.T) {
	bus, store := fixture(t)

	var mu sync.Mutex
	var handled []string
	proc, err := Start(Config{
		Name:   "flaky",
		Bus:    bus,
		Topics: []string{"t/x"},
		Store:  store,
		Handler: func(ctx context.Context, gc *dispatch.Context) ([]types.Event, error) {
			mode := gc.Event.Body["mode"].(string)
			mu.Lock()
			handled = append(handled, mode)
			mu.Unlock()
			switch mode {
			case "anomaly":
				return nil, anomaly.Fault("handler failed")
			case "panic":
				panic("handler exploded")
			}
			return nil, nil
		},
	})
	require.NoError(t, err)
	defer proc.Stop()

	for _, mode := range []string{"anomaly", "panic", "ok"} {
		_, err := store.Append(context.Background(), []types.Event{
			{Type: "t/x", Body: map[string]any{"mode": mode}},
		})
		require.NoError(t, err)
	}

	// The processor keeps going past failures.
	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(handled) == 3
	}, "processor died on a failing handler")

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"anomaly", "panic", "ok"}, handled)
}

func TestProcessorMultipleTopics(t *testing.T) {
	bus, store := fixture(t)

	var mu sync.Mutex
	seen := make(map[string]int)
	proc, err := Start(Config{
		Name:   "multi",
		Bus:    bus,
		Topics: []string{"t/a", "t/b"},
		Store:  store,
		Handler: func(ctx context.Context, gc *dispatch.Context) ([]types.Event, error) {
			mu.Lock()
			defer mu.Unlock()
			seen[gc.Event.Type]++
			return nil, nil
		},
	})
	require.NoError(t, err)
	defer proc.Stop()

	_, err = store.Append(context.Background(), []types.Event{
		{Type: "t/a"}, {Type: "t/b"}, {Type: "t/c"},
	})
	require.NoError(t, err)

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return seen["t/a"] == 1 && seen["t/b"] == 1
	}, "subscribed topics were not delivered")

	mu.Lock()
	defer mu.Unlock()
	assert.Zero(t, seen["t/c"], "received an event from an unsubscribed topic")
}

func TestProcessorStop(t *testing.T) {
	bus, store := fixture(t)

	started := make(chan struct{})
	release := make(chan struct{})
	proc, err := Start(Config{
		Name:   "stopper",
		Bus:    bus,
		Topics: []string{"t/slow"},
		Store:  store,
		Handler: func(ctx context.Context, gc *dispatch.Context) ([]types.Event, error) {
			close(started)
			<-release
			return nil, nil
		},
	})
	require.NoError(t, err)

	_, err = store.Append(context.Background(), []types.Event{{Type: "t/slow"}})
	require.NoError(t, err)
	<-started

	stopped := make(chan struct{})
	go func() {
		proc.Stop()
		close(stopped)
	}()

	// Stop must wait for the in-flight invocation.
	select {
	case <-stopped:
		t.Fatal("Stop returned while a handler was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return after the handler finished")
	}

	// Stop is idempotent.
	proc.Stop()
}

func TestStartValidatesConfig(t *testing.T) {
	bus, store := fixture(t)

	_, err := Start(Config{Name: "bad", Bus: bus, Store: store})
	assert.Error(t, err, "handler is required")

	_, err = Start(Config{
		Name: "bad", Bus: bus, Store: store,
		Handler: func(ctx context.Context, gc *dispatch.Context) ([]types.Event, error) { return nil, nil },
	})
	assert.Error(t, err, "at least one topic is required")
}
