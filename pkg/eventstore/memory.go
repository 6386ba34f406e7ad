package eventstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/grainstack/grain/pkg/anomaly"
	"github.com/grainstack/grain/pkg/log"
	"github.com/grainstack/grain/pkg/metrics"
	"github.com/grainstack/grain/pkg/pubsub"
	"github.com/grainstack/grain/pkg/schema"
	"github.com/grainstack/grain/pkg/types"
)

// MemoryStore is the in-memory Store backend. It defines the
// reference semantics for append atomicity, identifier ordering, and
// the tag index; durable backends implement the same contract.
type MemoryStore struct {
	bus     *pubsub.Bus
	schemas *schema.Registry

	mu       sync.Mutex
	eventLog []types.Event
	byID     map[uuid.UUID]int
	tagIndex map[types.Tag][]uuid.UUID
	lastID   uuid.UUID
	closed   bool
}

// NewMemoryStore creates an empty in-memory store publishing to bus.
func NewMemoryStore(bus *pubsub.Bus, schemas *schema.Registry) *MemoryStore {
	return &MemoryStore{
		bus:      bus,
		schemas:  schemas,
		byID:     make(map[uuid.UUID]int),
		tagIndex: make(map[types.Tag][]uuid.UUID),
	}
}

// Append implements Store.
func (s *MemoryStore) Append(ctx context.Context, events []types.Event) ([]uuid.UUID, error) {
	start := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, anomaly.Unavailable("event store is closed")
	}

	// Validate the whole batch before anything becomes visible.
	if err := s.validate(events); err != nil {
		metrics.AppendBatchesTotal.WithLabelValues("invalid").Inc()
		return nil, err
	}

	batch := make([]types.Event, 0, len(events)+1)
	batch = append(batch, events...)
	batch = append(batch, txMarker())

	prepared, err := s.prepare(batch)
	if err != nil {
		metrics.AppendBatchesTotal.WithLabelValues("conflict").Inc()
		return nil, err
	}

	ids := make([]uuid.UUID, 0, len(events))
	for i, ev := range prepared {
		idx := len(s.eventLog)
		s.eventLog = append(s.eventLog, ev)
		s.byID[ev.ID] = idx
		for _, tag := range ev.Tags {
			s.tagIndex[tag] = append(s.tagIndex[tag], ev.ID)
		}
		s.lastID = ev.ID
		if i < len(events) {
			ids = append(ids, ev.ID)
		}
		metrics.EventsAppendedTotal.WithLabelValues(ev.Type).Inc()
	}

	// Publish inside the critical section: a subscriber observing an
	// event may assume it is already in the log.
	for _, ev := range prepared {
		s.bus.Publish(ev)
	}

	metrics.AppendBatchesTotal.WithLabelValues("ok").Inc()
	metrics.AppendDuration.Observe(time.Since(start).Seconds())
	logger := log.WithComponent("event-store")
	logger.Debug().
		Int("events", len(events)).
		Msg("Batch appended")

	return ids, nil
}

// validate checks each event body against the schema registered for
// its type.
func (s *MemoryStore) validate(events []types.Event) error {
	if s.schemas == nil {
		return nil
	}
	for _, ev := range events {
		if explain := s.schemas.Validate(ev.Type, ev.Body); explain != nil {
			return anomaly.Incorrect("Invalid event: " + ev.Type).WithExplain(explain)
		}
	}
	return nil
}

// prepare assigns identifiers and timestamps, enforcing that ids are
// strictly increasing in append order. Called with the lock held.
func (s *MemoryStore) prepare(batch []types.Event) ([]types.Event, error) {
	prepared := make([]types.Event, len(batch))
	last := s.lastID
	for i, ev := range batch {
		if ev.ID == uuid.Nil {
			id, err := nextID(last)
			if err != nil {
				return nil, anomaly.Fault("Error assigning event id").WithCause(err)
			}
			ev.ID = id
		} else {
			if _, dup := s.byID[ev.ID]; dup {
				return nil, anomaly.Conflict("Event id already appended: " + ev.ID.String())
			}
			if types.CompareIDs(ev.ID, last) <= 0 {
				return nil, anomaly.Conflict("Event id out of order: " + ev.ID.String())
			}
		}
		if ev.Timestamp.IsZero() {
			ev.Timestamp = time.Now().UTC()
		}
		last = ev.ID
		prepared[i] = ev
	}
	// Ids within the batch must not collide either.
	for i, ev := range prepared {
		for j := i + 1; j < len(prepared); j++ {
			if ev.ID == prepared[j].ID {
				return nil, anomaly.Conflict("Duplicate event id in batch: " + ev.ID.String())
			}
		}
	}
	return prepared, nil
}

// nextID generates a UUIDv7 strictly greater than last. UUIDv7 carries
// a sub-millisecond sequence, so the loop terminates immediately in
// practice.
func nextID(last uuid.UUID) (uuid.UUID, error) {
	for {
		id, err := uuid.NewV7()
		if err != nil {
			return uuid.Nil, err
		}
		if types.CompareIDs(id, last) > 0 {
			return id, nil
		}
	}
}

// Read implements Store.
func (s *MemoryStore) Read(ctx context.Context, q Query) ([]types.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, anomaly.Unavailable("event store is closed")
	}

	if len(q.Tags) > 0 {
		return s.readByTags(q), nil
	}
	return s.scan(q), nil
}

// scan walks the main log from the first event after q.After.
func (s *MemoryStore) scan(q Query) []types.Event {
	start := 0
	if q.After != uuid.Nil {
		start = sort.Search(len(s.eventLog), func(i int) bool {
			return types.CompareIDs(s.eventLog[i].ID, q.After) > 0
		})
	}

	var out []types.Event
	for _, ev := range s.eventLog[start:] {
		if !q.inRange(ev.ID) {
			if q.Before != uuid.Nil && types.CompareIDs(ev.ID, q.Before) > 0 {
				break
			}
			continue
		}
		if !q.matches(ev) {
			continue
		}
		out = append(out, ev)
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
	}
	return out
}

// readByTags intersects the posting lists of the queried tags (AND
// semantics) and joins the surviving identifiers back to the log.
func (s *MemoryStore) readByTags(q Query) []types.Event {
	// Start from the shortest posting list.
	var base []uuid.UUID
	for _, tag := range q.Tags {
		list, ok := s.tagIndex[tag]
		if !ok {
			return nil
		}
		if base == nil || len(list) < len(base) {
			base = list
		}
	}

	var out []types.Event
	for _, id := range base {
		ev := s.eventLog[s.byID[id]]
		if !q.inRange(ev.ID) || !q.matches(ev) {
			continue
		}
		out = append(out, ev)
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
	}
	return out
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
