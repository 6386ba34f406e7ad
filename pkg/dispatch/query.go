package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/grainstack/grain/pkg/anomaly"
	"github.com/grainstack/grain/pkg/log"
	"github.com/grainstack/grain/pkg/metrics"
	"github.com/grainstack/grain/pkg/types"
)

// ProcessQuery runs the read pipeline: registry lookup, envelope and
// payload validation, handler invocation inside an error boundary.
// There is no event-emission step; query handlers only read.
func ProcessQuery(ctx context.Context, gc *Context) (*types.QueryResult, error) {
	start := time.Now()
	name := gc.Query.Name

	result, err := processQuery(ctx, gc)

	status := "ok"
	if err != nil {
		status = string(anomaly.CategoryOf(err))
	}
	metrics.QueriesTotal.WithLabelValues(name, status).Inc()
	metrics.QueryDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	return result, err
}

func processQuery(ctx context.Context, gc *Context) (*types.QueryResult, error) {
	reg, ok := gc.queryRegistry().lookup(gc.Query.Name)
	if !ok {
		return nil, anomaly.NotFound("Unknown Query")
	}

	if explain := validateEnvelope(gc.Query.Name, gc.Query.ID, gc.Query.Timestamp); explain != nil {
		return nil, anomaly.Incorrect("Invalid query").WithExplain(explain)
	}
	if reg.schema != nil {
		if explain := reg.schema(gc.Query.Body); explain != nil {
			return nil, anomaly.Incorrect("Invalid query: " + gc.Query.Name).WithExplain(explain)
		}
	}

	result, err := invokeQueryHandler(ctx, reg.handler, gc)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, anomaly.Fault("Query handler returned nil")
	}
	return result, nil
}

func invokeQueryHandler(ctx context.Context, handler QueryHandler, gc *Context) (result *types.QueryResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger := log.WithQuery(gc.Query.Name)
			logger.Error().
				Any("panic", r).
				Msg("Query handler panicked")
			result = nil
			err = anomaly.Fault(fmt.Sprintf("Error executing query handler: %v", r))
		}
	}()
	return handler(ctx, gc)
}
