package dispatch

import (
	"context"
	"sync"

	"github.com/grainstack/grain/pkg/eventstore"
	"github.com/grainstack/grain/pkg/pubsub"
	"github.com/grainstack/grain/pkg/schema"
	"github.com/grainstack/grain/pkg/snapshot"
	"github.com/grainstack/grain/pkg/types"
)

// CommandHandler executes a command and returns the events to emit
// plus an optional result value. Failures are reported as errors,
// typically *anomaly.Anomaly.
type CommandHandler func(ctx context.Context, gc *Context) (*types.CommandResult, error)

// QueryHandler answers a query. Query handlers must be pure with
// respect to the event store: they read, they never append.
type QueryHandler func(ctx context.Context, gc *Context) (*types.QueryResult, error)

// Context is the structured value threaded through every processing
// layer. Well-known collaborators get typed fields; application
// extensions ride in Extra.
type Context struct {
	// Command is set when processing a command.
	Command types.Command
	// Query is set when processing a query.
	Query types.Query
	// Event is set when a todo processor invokes a handler.
	Event types.Event

	// Commands and Queries override the process-wide default
	// registries when non-nil.
	Commands *CommandRegistry
	Queries  *QueryRegistry

	Store eventstore.Store
	Bus   *pubsub.Bus
	Cache snapshot.Store

	// SkipEventStorage returns emitted events to the caller without
	// appending them. A parent handler uses this to aggregate events
	// from a child command invocation and own the single atomic
	// append itself.
	SkipEventStorage bool

	// Extra is the open bag for application-specific context, e.g.
	// the transport's additional context (auth identity).
	Extra map[string]any
}

// commandRegistry resolves the effective command registry.
func (gc *Context) commandRegistry() *CommandRegistry {
	if gc.Commands != nil {
		return gc.Commands
	}
	return DefaultCommands
}

// queryRegistry resolves the effective query registry.
func (gc *Context) queryRegistry() *QueryRegistry {
	if gc.Queries != nil {
		return gc.Queries
	}
	return DefaultQueries
}

// registration pairs a handler with its payload schema.
type registration[H any] struct {
	handler H
	schema  schema.Validator
}

// Registry maps names to handlers. Registries are populated at
// startup and read concurrently afterwards; the lock makes late
// registration safe but populate-then-serve is the contract.
type Registry[H any] struct {
	mu      sync.RWMutex
	entries map[string]registration[H]
}

// CommandRegistry maps command names to command handlers.
type CommandRegistry = Registry[CommandHandler]

// QueryRegistry maps query names to query handlers.
type QueryRegistry = Registry[QueryHandler]

// Process-wide default registries, used when the context does not
// carry an override.
var (
	DefaultCommands = NewCommandRegistry()
	DefaultQueries  = NewQueryRegistry()
)

// NewCommandRegistry creates an empty command registry.
func NewCommandRegistry() *CommandRegistry {
	return &CommandRegistry{entries: make(map[string]registration[CommandHandler])}
}

// NewQueryRegistry creates an empty query registry.
func NewQueryRegistry() *QueryRegistry {
	return &QueryRegistry{entries: make(map[string]registration[QueryHandler])}
}

// Register associates a handler and an optional payload schema with
// name, replacing any previous registration.
func (r *Registry[H]) Register(name string, handler H, payloadSchema schema.Validator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[name] = registration[H]{handler: handler, schema: payloadSchema}
}

// lookup returns the registration for name.
func (r *Registry[H]) lookup(name string) (registration[H], bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.entries[name]
	return reg, ok
}

// Names returns the registered names, for startup logging.
func (r *Registry[H]) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	return names
}
