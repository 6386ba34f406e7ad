package todo

import (
	"context"
	"fmt"
	"sync"

	"github.com/grainstack/grain/pkg/anomaly"
	"github.com/grainstack/grain/pkg/dispatch"
	"github.com/grainstack/grain/pkg/eventstore"
	"github.com/grainstack/grain/pkg/log"
	"github.com/grainstack/grain/pkg/metrics"
	"github.com/grainstack/grain/pkg/pubsub"
	"github.com/grainstack/grain/pkg/types"
	"github.com/rs/zerolog"
)

// Handler reacts to one event. Returned events are appended to the
// store by the processor; an error is logged and processing continues
// with the next event.
type Handler func(ctx context.Context, gc *dispatch.Context) ([]types.Event, error)

// Config holds processor configuration.
type Config struct {
	// Name identifies the processor in logs and metrics.
	Name string
	// Bus to subscribe on. Required.
	Bus *pubsub.Bus
	// Topics to subscribe to, one subscription each.
	Topics []string
	// Handler invoked for every delivered event. Required.
	Handler Handler
	// Store receives handler-emitted events. Required.
	Store eventstore.Store
	// Context is the base dispatch context handed to the handler;
	// the processor fills in Event and Store per invocation. May be
	// nil.
	Context *dispatch.Context
}

// Processor subscribes to topics and invokes its handler for each
// delivered event, sequentially, on a single worker goroutine.
// Delivery is at-least-once; handlers are expected to be idempotent.
// Parallelism comes from running multiple processors, each with
// independent progress.
type Processor struct {
	name    string
	bus     *pubsub.Bus
	handler Handler
	store   eventstore.Store
	base    *dispatch.Context
	logger  zerolog.Logger

	subs       []*pubsub.Subscription
	merged     chan types.Event
	workerDone chan struct{}
	stopOnce   sync.Once
}

// Start subscribes to the configured topics and launches the worker.
func Start(cfg Config) (*Processor, error) {
	if cfg.Bus == nil || cfg.Handler == nil || cfg.Store == nil {
		return nil, fmt.Errorf("todo processor %q: bus, handler and store are required", cfg.Name)
	}
	if len(cfg.Topics) == 0 {
		return nil, fmt.Errorf("todo processor %q: at least one topic is required", cfg.Name)
	}

	p := &Processor{
		name:       cfg.Name,
		bus:        cfg.Bus,
		handler:    cfg.Handler,
		store:      cfg.Store,
		base:       cfg.Context,
		logger:     log.WithProcessor(cfg.Name),
		merged:     make(chan types.Event),
		workerDone: make(chan struct{}),
	}

	// One forwarder per subscription feeds the unbuffered merge
	// channel; backpressure flows from the worker straight back to
	// the bus queues.
	var forwarders sync.WaitGroup
	for _, topic := range cfg.Topics {
		sub := cfg.Bus.Subscribe(topic)
		p.subs = append(p.subs, sub)
		forwarders.Add(1)
		go func(sub *pubsub.Subscription) {
			defer forwarders.Done()
			for ev := range sub.Events() {
				p.merged <- ev
			}
		}(sub)
	}
	go func() {
		forwarders.Wait()
		close(p.merged)
	}()

	go p.run()

	p.logger.Info().Strs("topics", cfg.Topics).Msg("Todo processor started")
	return p, nil
}

// run is the single worker loop: events are handled strictly in
// delivery order, giving the processor a linear view of its topics.
func (p *Processor) run() {
	defer close(p.workerDone)
	for ev := range p.merged {
		p.handle(ev)
	}
}

func (p *Processor) handle(ev types.Event) {
	gc := p.handlerContext(ev)

	events, err := p.invoke(gc)
	if err != nil {
		// No caller to report to: log and continue.
		p.logger.Error().
			Err(err).
			Str("event_type", ev.Type).
			Str("event_id", ev.ID.String()).
			Msg("Handler returned anomaly")
		metrics.TodoEventsTotal.WithLabelValues(p.name, string(anomaly.CategoryOf(err))).Inc()
		return
	}

	if len(events) > 0 {
		if _, err := p.store.Append(context.Background(), events); err != nil {
			p.logger.Error().
				Err(anomaly.Fault("Error storing events.").WithCause(err)).
				Str("event_type", ev.Type).
				Msg("Failed to store handler events")
			metrics.TodoEventsTotal.WithLabelValues(p.name, "store-error").Inc()
			return
		}
	}

	p.logger.Debug().
		Str("event_type", ev.Type).
		Int("emitted", len(events)).
		Msg("Event handled")
	metrics.TodoEventsTotal.WithLabelValues(p.name, "ok").Inc()
}

// handlerContext builds the per-invocation context: the base context
// plus the delivered event and the store.
func (p *Processor) handlerContext(ev types.Event) *dispatch.Context {
	gc := &dispatch.Context{}
	if p.base != nil {
		copied := *p.base
		gc = &copied
	}
	gc.Event = ev
	gc.Store = p.store
	gc.Bus = p.bus
	return gc
}

// invoke runs the handler with a panic boundary so one bad event
// cannot kill the worker.
func (p *Processor) invoke(gc *dispatch.Context) (events []types.Event, err error) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error().
				Any("panic", r).
				Str("event_type", gc.Event.Type).
				Msg("Handler panicked")
			events = nil
			err = anomaly.Fault(fmt.Sprintf("Error executing todo handler: %v", r))
		}
	}()
	return p.handler(context.Background(), gc)
}

// Stop unsubscribes from the bus, waits for the in-flight handler
// invocation to finish, and joins the worker.
func (p *Processor) Stop() {
	p.stopOnce.Do(func() {
		for _, sub := range p.subs {
			p.bus.Unsubscribe(sub)
		}
		<-p.workerDone
		p.logger.Info().Msg("Todo processor stopped")
	})
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return p.name
}
