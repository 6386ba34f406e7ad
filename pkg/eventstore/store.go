package eventstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/grainstack/grain/pkg/pubsub"
	"github.com/grainstack/grain/pkg/schema"
	"github.com/grainstack/grain/pkg/types"
)

// Conn types supported by Open.
const (
	ConnInMemory = "in_memory"
	ConnPostgres = "postgres"
)

// Query selects events from the log. All fields are optional; the
// zero query matches every event, transaction markers included.
type Query struct {
	// Types matches events whose type is any of the given names.
	Types []string
	// Tags matches events carrying all of the given tags.
	Tags []types.Tag
	// After and Before bound the half-open identifier range
	// (after, before]. Zero values leave the bound open.
	After  uuid.UUID
	Before uuid.UUID
	// Limit caps the number of returned events; zero means no cap.
	Limit int
}

// Store is an ordered, append-only log of typed events with a tag
// index and a publication hook into the pub/sub bus.
type Store interface {
	// Append validates each event, assigns identifiers where absent,
	// and appends the batch plus one trailing transaction marker
	// atomically. Each appended event is published to the bus inside
	// the append critical section, so a subscriber observing an event
	// may assume it is durable. Returns the identifiers assigned to
	// the input events.
	Append(ctx context.Context, events []types.Event) ([]uuid.UUID, error)

	// Read returns events matching q in ascending identifier order.
	Read(ctx context.Context, q Query) ([]types.Event, error)

	// Close releases backend resources. Closing the bus (and with it
	// the outstanding subscriptions) is the runtime's job.
	Close() error
}

// ConnConfig selects and configures the storage backend.
type ConnConfig struct {
	Type string `yaml:"type"`
	// URL is the connection string for the postgres backend.
	URL string `yaml:"url,omitempty"`
}

// Config holds event store configuration.
type Config struct {
	Conn ConnConfig
	// Bus receives every appended event. Required.
	Bus *pubsub.Bus
	// Schemas validates event bodies by event type on append. May be
	// nil, in which case all bodies are accepted.
	Schemas *schema.Registry
}

// Open starts a store for the configured backend.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Conn.Type {
	case ConnInMemory, "":
		return NewMemoryStore(cfg.Bus, cfg.Schemas), nil
	case ConnPostgres:
		return OpenPGStore(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown event store conn type: %q", cfg.Conn.Type)
	}
}

// txMarker builds the synthetic event closing an append batch.
func txMarker() types.Event {
	return types.Event{Type: types.TxEventType}
}

// matches reports whether ev passes the type and tag filters of q.
// Identifier bounds are handled by the backends.
func (q Query) matches(ev types.Event) bool {
	if len(q.Types) > 0 {
		found := false
		for _, t := range q.Types {
			if ev.Type == t {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	for _, tag := range q.Tags {
		if !ev.HasTag(tag) {
			return false
		}
	}
	return true
}

// inRange reports whether id lies in the half-open range (after, before].
func (q Query) inRange(id uuid.UUID) bool {
	if q.After != uuid.Nil && types.CompareIDs(id, q.After) <= 0 {
		return false
	}
	if q.Before != uuid.Nil && types.CompareIDs(id, q.Before) > 0 {
		return false
	}
	return true
}
