package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/grainstack/grain/pkg/anomaly"
	"github.com/grainstack/grain/pkg/log"
	"github.com/grainstack/grain/pkg/metrics"
	"github.com/grainstack/grain/pkg/types"
)

// ProcessCommand runs the write pipeline: registry lookup, envelope
// and payload validation, handler invocation inside an error boundary,
// and the atomic append of emitted events.
func ProcessCommand(ctx context.Context, gc *Context) (*types.CommandResult, error) {
	start := time.Now()
	name := gc.Command.Name

	result, err := processCommand(ctx, gc)

	status := "ok"
	if err != nil {
		status = string(anomaly.CategoryOf(err))
	}
	metrics.CommandsTotal.WithLabelValues(name, status).Inc()
	metrics.CommandDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	return result, err
}

func processCommand(ctx context.Context, gc *Context) (*types.CommandResult, error) {
	reg, ok := gc.commandRegistry().lookup(gc.Command.Name)
	if !ok {
		return nil, anomaly.NotFound("Unknown Command")
	}

	if explain := validateEnvelope(gc.Command.Name, gc.Command.ID, gc.Command.Timestamp); explain != nil {
		return nil, anomaly.Incorrect("Invalid command").WithExplain(explain)
	}
	if reg.schema != nil {
		if explain := reg.schema(gc.Command.Body); explain != nil {
			return nil, anomaly.Incorrect("Invalid command: " + gc.Command.Name).WithExplain(explain)
		}
	}

	result, err := invokeCommandHandler(ctx, reg.handler, gc)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, anomaly.Fault("Command handler returned nil")
	}

	if len(result.EmittedEvents) > 0 && !gc.SkipEventStorage {
		ids, err := gc.Store.Append(ctx, result.EmittedEvents)
		if err != nil {
			logger := log.WithCommand(gc.Command.Name)
			logger.Error().
				Err(err).
				Msg("Failed to store emitted events")
			return nil, anomaly.Fault("Error storing events").WithCause(err)
		}
		// Merge the assigned identifiers back into the result.
		for i := range result.EmittedEvents {
			if i < len(ids) {
				result.EmittedEvents[i].ID = ids[i]
			}
		}
	}

	return result, nil
}

// invokeCommandHandler runs the handler, converting panics to faults
// so a broken handler cannot take down the processor.
func invokeCommandHandler(ctx context.Context, handler CommandHandler, gc *Context) (result *types.CommandResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger := log.WithCommand(gc.Command.Name)
			logger.Error().
				Any("panic", r).
				Msg("Command handler panicked")
			result = nil
			err = anomaly.Fault(fmt.Sprintf("Error executing command handler: %v", r))
		}
	}()
	return handler(ctx, gc)
}

// validateEnvelope checks the generic envelope: name, id and
// timestamp must be present with the right types.
func validateEnvelope(name string, id uuid.UUID, ts time.Time) map[string]any {
	var explain map[string]any
	fail := func(field, problem string) {
		if explain == nil {
			explain = make(map[string]any)
		}
		explain[field] = problem
	}
	if name == "" {
		fail("name", "missing required field")
	}
	if id == uuid.Nil {
		fail("id", "missing required field")
	}
	if ts.IsZero() {
		fail("timestamp", "missing required field")
	}
	return explain
}
