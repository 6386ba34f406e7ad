package eventstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/grainstack/grain/pkg/anomaly"
	"github.com/grainstack/grain/pkg/log"
	"github.com/grainstack/grain/pkg/metrics"
	"github.com/grainstack/grain/pkg/pubsub"
	"github.com/grainstack/grain/pkg/schema"
	"github.com/grainstack/grain/pkg/types"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Identifiers are stored as canonical UUID strings: fixed-length
// lowercase hex sorts the same as the raw bytes, so ORDER BY id is
// append order.
const pgSchema = `
CREATE TABLE IF NOT EXISTS grain_events (
	id    TEXT PRIMARY KEY,
	type  TEXT NOT NULL,
	ts    TIMESTAMPTZ NOT NULL,
	body  JSONB,
	tags  JSONB
);
CREATE INDEX IF NOT EXISTS grain_events_type_idx ON grain_events (type);
CREATE TABLE IF NOT EXISTS grain_event_tags (
	kind     TEXT NOT NULL,
	value    TEXT NOT NULL,
	event_id TEXT NOT NULL REFERENCES grain_events (id),
	PRIMARY KEY (kind, value, event_id)
);
`

// PGStore is the postgres-backed Store. Appends are serialized by a
// store-level mutex in addition to the database transaction, so the
// publish-under-lock guarantee of the contract holds for a single
// process owning the log.
type PGStore struct {
	pool    *pgxpool.Pool
	bus     *pubsub.Bus
	schemas *schema.Registry

	mu     sync.Mutex
	lastID uuid.UUID
	known  map[uuid.UUID]struct{}
}

// OpenPGStore connects to postgres, ensures the schema, and recovers
// the append cursor from the existing log.
func OpenPGStore(ctx context.Context, cfg Config) (*PGStore, error) {
	pool, err := pgxpool.New(ctx, cfg.Conn.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, pgSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	s := &PGStore{
		pool:    pool,
		bus:     cfg.Bus,
		schemas: cfg.Schemas,
		known:   make(map[uuid.UUID]struct{}),
	}

	var last *string
	if err := pool.QueryRow(ctx, `SELECT MAX(id) FROM grain_events`).Scan(&last); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to recover append cursor: %w", err)
	}
	if last != nil {
		id, err := uuid.Parse(*last)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("corrupt event id %q: %w", *last, err)
		}
		s.lastID = id
	}

	logger := log.WithComponent("event-store")
	logger.Info().
		Str("backend", ConnPostgres).
		Msg("Event store opened")
	return s, nil
}

// Append implements Store.
func (s *PGStore) Append(ctx context.Context, events []types.Event) ([]uuid.UUID, error) {
	start := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.schemas != nil {
		for _, ev := range events {
			if explain := s.schemas.Validate(ev.Type, ev.Body); explain != nil {
				metrics.AppendBatchesTotal.WithLabelValues("invalid").Inc()
				return nil, anomaly.Incorrect("Invalid event: " + ev.Type).WithExplain(explain)
			}
		}
	}

	batch := make([]types.Event, 0, len(events)+1)
	batch = append(batch, events...)
	batch = append(batch, txMarker())

	prepared, err := s.prepare(batch)
	if err != nil {
		metrics.AppendBatchesTotal.WithLabelValues("conflict").Inc()
		return nil, err
	}

	if err := s.insert(ctx, prepared); err != nil {
		metrics.AppendBatchesTotal.WithLabelValues("fault").Inc()
		return nil, anomaly.Fault("Error storing events").WithCause(err)
	}

	ids := make([]uuid.UUID, 0, len(events))
	for i, ev := range prepared {
		s.known[ev.ID] = struct{}{}
		s.lastID = ev.ID
		if i < len(events) {
			ids = append(ids, ev.ID)
		}
		metrics.EventsAppendedTotal.WithLabelValues(ev.Type).Inc()
	}

	// The batch is committed; publish before releasing the lock so
	// subscribers can rely on durability.
	for _, ev := range prepared {
		s.bus.Publish(ev)
	}

	metrics.AppendBatchesTotal.WithLabelValues("ok").Inc()
	metrics.AppendDuration.Observe(time.Since(start).Seconds())
	return ids, nil
}

func (s *PGStore) prepare(batch []types.Event) ([]types.Event, error) {
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
			if _, dup := s.known[ev.ID]; dup {
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
	return prepared, nil
}

// insert writes the batch in one database transaction.
func (s *PGStore) insert(ctx context.Context, batch []types.Event) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, ev := range batch {
		body, err := json.Marshal(ev.Body)
		if err != nil {
			return err
		}
		tags, err := json.Marshal(ev.Tags)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO grain_events (id, type, ts, body, tags) VALUES ($1, $2, $3, $4, $5)`,
			ev.ID.String(), ev.Type, ev.Timestamp, body, tags)
		if err != nil {
			return err
		}
		for _, tag := range ev.Tags {
			_, err = tx.Exec(ctx,
				`INSERT INTO grain_event_tags (kind, value, event_id) VALUES ($1, $2, $3)`,
				tag.Kind, tag.Value, ev.ID.String())
			if err != nil {
				return err
			}
		}
	}

	return tx.Commit(ctx)
}

// Read implements Store.
func (s *PGStore) Read(ctx context.Context, q Query) ([]types.Event, error) {
	sql, args := buildReadQuery(q)
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, anomaly.Fault("Error reading events").WithCause(err)
	}
	defer rows.Close()

	var out []types.Event
	for rows.Next() {
		var (
			idStr string
			ev    types.Event
			body  []byte
			tags  []byte
		)
		if err := rows.Scan(&idStr, &ev.Type, &ev.Timestamp, &body, &tags); err != nil {
			return nil, anomaly.Fault("Error scanning event").WithCause(err)
		}
		id, err := uuid.Parse(idStr)
		if err != nil {
			return nil, anomaly.Fault("Corrupt event id").WithCause(err)
		}
		ev.ID = id
		if len(body) > 0 {
			if err := json.Unmarshal(body, &ev.Body); err != nil {
				return nil, anomaly.Fault("Corrupt event body").WithCause(err)
			}
		}
		if len(tags) > 0 {
			if err := json.Unmarshal(tags, &ev.Tags); err != nil {
				return nil, anomaly.Fault("Corrupt event tags").WithCause(err)
			}
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, anomaly.Fault("Error reading events").WithCause(err)
	}
	return out, nil
}

func buildReadQuery(q Query) (string, []any) {
	var (
		sb   strings.Builder
		args []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	sb.WriteString(`SELECT id, type, ts, body, tags FROM grain_events WHERE TRUE`)

	if len(q.Types) > 0 {
		placeholders := make([]string, len(q.Types))
		for i, t := range q.Types {
			placeholders[i] = arg(t)
		}
		fmt.Fprintf(&sb, " AND type IN (%s)", strings.Join(placeholders, ", "))
	}
	if q.After != uuid.Nil {
		fmt.Fprintf(&sb, " AND id > %s", arg(q.After.String()))
	}
	if q.Before != uuid.Nil {
		fmt.Fprintf(&sb, " AND id <= %s", arg(q.Before.String()))
	}
	if len(q.Tags) > 0 {
		// AND semantics: the event must carry every queried tag.
		preds := make([]string, len(q.Tags))
		for i, tag := range q.Tags {
			preds[i] = fmt.Sprintf("(kind = %s AND value = %s)", arg(tag.Kind), arg(tag.Value))
		}
		fmt.Fprintf(&sb,
			" AND id IN (SELECT event_id FROM grain_event_tags WHERE %s GROUP BY event_id HAVING COUNT(*) = %s)",
			strings.Join(preds, " OR "), arg(len(q.Tags)))
	}

	sb.WriteString(" ORDER BY id ASC")
	if q.Limit > 0 {
		fmt.Fprintf(&sb, " LIMIT %s", arg(q.Limit))
	}
	return sb.String(), args
}

// Close implements Store.
func (s *PGStore) Close() error {
	s.pool.Close()
	return nil
}
