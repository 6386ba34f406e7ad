package types

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// TxEventType marks the synthetic event appended at the end of every
// append batch to delimit transactional groups. Readers that only want
// domain events filter it out.
const TxEventType = "grain/tx"

// Tag is a (kind, value) pair attached to an event for secondary-index
// lookups, e.g. ("counter-id", "7f3a...").
type Tag struct {
	Kind  string `json:"kind"`
	Value string `json:"value"`
}

// Event is an immutable fact recorded in the event store.
//
// IDs are UUIDv7, assigned by the store at append time when absent, so
// sorting by ID equals sorting by append time even across restarts.
type Event struct {
	ID        uuid.UUID      `json:"event/id"`
	Type      string         `json:"event/type"`
	Timestamp time.Time      `json:"event/timestamp"`
	Body      map[string]any `json:"event/body,omitempty"`
	Tags      []Tag          `json:"event/tags,omitempty"`
}

// IsTx reports whether the event is a transaction marker.
func (e Event) IsTx() bool {
	return e.Type == TxEventType
}

// HasTag reports whether the event carries the given tag.
func (e Event) HasTag(tag Tag) bool {
	for _, t := range e.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// CompareIDs orders two event identifiers. UUIDv7 sorts bytewise by
// creation time, so this is also append order.
func CompareIDs(a, b uuid.UUID) int {
	return bytes.Compare(a[:], b[:])
}

// Command is an intent to change state. Commands are transient: they
// exist only for the duration of processing and are never persisted.
type Command struct {
	Name      string
	ID        uuid.UUID
	Timestamp time.Time
	Body      map[string]any
}

// Query is a request for data. Same envelope shape as Command.
type Query struct {
	Name      string
	ID        uuid.UUID
	Timestamp time.Time
	Body      map[string]any
}

// CommandResult is the success value of a command handler. A handler
// signals failure by returning an *anomaly.Anomaly error instead.
type CommandResult struct {
	// EmittedEvents are appended to the event store by the command
	// processor unless storage is skipped by the caller.
	EmittedEvents []Event `json:"emitted-events,omitempty"`
	// Result is an optional value returned to the caller.
	Result any `json:"result,omitempty"`
}

// QueryResult is the success value of a query handler.
type QueryResult struct {
	Result any `json:"result,omitempty"`
}

// Envelope keys are namespaced ("command/name", "query/id") so they
// can never collide with payload fields, which share the same flat
// map on the wire.
const (
	CommandPrefix = "command/"
	QueryPrefix   = "query/"
)

// UnmarshalJSON decodes the wire shape {"command/name": ...,
// "command/id": ..., "command/timestamp": ..., <payload fields>...}
// splitting the well-known envelope fields from the open payload.
func (c *Command) UnmarshalJSON(data []byte) error {
	name, id, ts, body, err := decodeEnvelope(data, CommandPrefix)
	if err != nil {
		return err
	}
	c.Name, c.ID, c.Timestamp, c.Body = name, id, ts, body
	return nil
}

// MarshalJSON flattens the payload back into the envelope map.
func (c Command) MarshalJSON() ([]byte, error) {
	return encodeEnvelope(CommandPrefix, c.Name, c.ID, c.Timestamp, c.Body)
}

func (q *Query) UnmarshalJSON(data []byte) error {
	name, id, ts, body, err := decodeEnvelope(data, QueryPrefix)
	if err != nil {
		return err
	}
	q.Name, q.ID, q.Timestamp, q.Body = name, id, ts, body
	return nil
}

func (q Query) MarshalJSON() ([]byte, error) {
	return encodeEnvelope(QueryPrefix, q.Name, q.ID, q.Timestamp, q.Body)
}

func decodeEnvelope(data []byte, prefix string) (name string, id uuid.UUID, ts time.Time, body map[string]any, err error) {
	var raw map[string]json.RawMessage
	if err = json.Unmarshal(data, &raw); err != nil {
		return
	}
	body = make(map[string]any, len(raw))
	for k, v := range raw {
		switch k {
		case prefix + "name":
			err = json.Unmarshal(v, &name)
		case prefix + "id":
			err = json.Unmarshal(v, &id)
		case prefix + "timestamp":
			err = json.Unmarshal(v, &ts)
		default:
			var val any
			if err = json.Unmarshal(v, &val); err == nil {
				body[k] = val
			}
		}
		if err != nil {
			return
		}
	}
	return
}

func encodeEnvelope(prefix, name string, id uuid.UUID, ts time.Time, body map[string]any) ([]byte, error) {
	out := make(map[string]any, len(body)+3)
	for k, v := range body {
		out[k] = v
	}
	out[prefix+"name"] = name
	out[prefix+"id"] = id
	out[prefix+"timestamp"] = ts
	return json.Marshal(out)
}
