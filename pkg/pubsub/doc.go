/*
Package pubsub provides Grain's in-memory topic fan-out bus.

The bus connects the event store's append path to the asynchronous
reactors: every appended event is published under the store's write
lock, and every todo processor pulls from one bounded subscription per
topic it cares about.

# Architecture

	┌──────────────────── PUB/SUB BUS ─────────────────────┐
	│                                                        │
	│  Publisher (event store append path)                   │
	│       │  topic = topic_fn(event), default event type   │
	│       ▼                                                │
	│  Fan-out: blocking send to every subscription          │
	│  of the topic (bounded channel, 1024 slots)            │
	│       │                                                │
	│       ▼                                                │
	│  Subscriptions (one per processor per topic)           │
	└────────────────────────────────────────────────────────┘

# Delivery Contract

  - Publish blocks until all matching subscriptions accept the message;
    a slow subscriber slows the publisher but never causes loss. The bus
    chooses latency over drops.
  - Delivery is FIFO per subscription. Ordering across subscriptions is
    not coordinated.
  - Unsubscribe drains the queue and closes the Events channel, which is
    how subscribers observe end-of-stream.
  - A subscriber observing an event may assume the event is already
    durable in the store, because the store publishes inside its append
    critical section.

# Usage

	bus := pubsub.NewBus(pubsub.Config{Buffer: 1024})
	sub := bus.Subscribe("example/counter-created")
	defer bus.Unsubscribe(sub)

	go func() {
		for ev := range sub.Events() {
			handle(ev)
		}
	}()

	bus.Publish(ev) // blocks if sub's queue is full

# See Also

  - pkg/eventstore publishes appended events here
  - pkg/todo consumes subscriptions with one worker per processor
*/
package pubsub
