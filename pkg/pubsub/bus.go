package pubsub

import (
	"sync"

	"github.com/grainstack/grain/pkg/metrics"
	"github.com/grainstack/grain/pkg/types"
)

// DefaultBuffer is the per-subscription queue capacity.
const DefaultBuffer = 1024

// TopicFn derives the topic of a published message.
type TopicFn func(types.Event) string

// DefaultTopicFn topics messages by event type.
func DefaultTopicFn(ev types.Event) string {
	return ev.Type
}

// Config holds bus configuration.
type Config struct {
	TopicFn TopicFn
	Buffer  int
}

// Bus is a topic-keyed fan-out with per-subscription bounded queues.
//
// Publish blocks until every matching subscription has accepted the
// message: a slow subscriber slows the publisher but never causes
// loss. Delivery is FIFO per subscription; ordering across
// subscriptions is not coordinated.
type Bus struct {
	topicFn TopicFn
	buffer  int

	mu   sync.RWMutex // guards subs
	pub  sync.Mutex   // serializes fan-out
	subs map[string][]*Subscription
}

// Subscription is one bounded queue bound to a topic. It is owned by
// the subscriber that created it and released via Unsubscribe, which
// closes the Events channel (end-of-stream).
type Subscription struct {
	bus   *Bus
	topic string
	ch    chan types.Event
	done  chan struct{}
	once  sync.Once
}

// Topic returns the topic the subscription is bound to.
func (s *Subscription) Topic() string {
	return s.topic
}

// Events returns the receive side of the subscription queue. The
// channel is closed when the subscription is released.
func (s *Subscription) Events() <-chan types.Event {
	return s.ch
}

// NewBus creates a bus. A nil TopicFn defaults to event type; a
// non-positive Buffer defaults to DefaultBuffer.
func NewBus(cfg Config) *Bus {
	topicFn := cfg.TopicFn
	if topicFn == nil {
		topicFn = DefaultTopicFn
	}
	buffer := cfg.Buffer
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Bus{
		topicFn: topicFn,
		buffer:  buffer,
		subs:    make(map[string][]*Subscription),
	}
}

// Subscribe creates a new bounded subscription for topic.
func (b *Bus) Subscribe(topic string) *Subscription {
	sub := &Subscription{
		bus:   b,
		topic: topic,
		ch:    make(chan types.Event, b.buffer),
		done:  make(chan struct{}),
	}

	b.mu.Lock()
	b.subs[topic] = append(b.subs[topic], sub)
	b.mu.Unlock()

	metrics.SubscribersTotal.Inc()
	return sub
}

// Publish delivers msg to every subscription of its topic, blocking
// until each one has accepted it.
func (b *Bus) Publish(msg types.Event) {
	topic := b.topicFn(msg)

	// The fan-out lock keeps concurrent publishes from interleaving
	// differently across subscriptions of the same topic.
	b.pub.Lock()
	defer b.pub.Unlock()

	b.mu.RLock()
	subs := b.subs[topic]
	b.mu.RUnlock()

	for _, sub := range subs {
		select {
		case sub.ch <- msg:
		case <-sub.done:
			// Released while we were blocked; skip it.
		}
	}

	metrics.PublishedTotal.WithLabelValues(topic).Inc()
}

// Unsubscribe releases sub: pending messages are dropped and the
// Events channel is closed. Safe to call more than once.
func (b *Bus) Unsubscribe(sub *Subscription) {
	sub.once.Do(func() {
		b.mu.Lock()
		subs := b.subs[sub.topic]
		for i, s := range subs {
			if s == sub {
				b.subs[sub.topic] = append(subs[:i:i], subs[i+1:]...)
				break
			}
		}
		if len(b.subs[sub.topic]) == 0 {
			delete(b.subs, sub.topic)
		}
		b.mu.Unlock()

		// Unblock any publisher waiting on this queue, then wait for
		// in-flight fan-out to finish before draining and closing.
		close(sub.done)
		b.pub.Lock()
		b.pub.Unlock() //nolint:staticcheck // empty section: barrier only

		for {
			select {
			case <-sub.ch:
			default:
				close(sub.ch)
				metrics.SubscribersTotal.Dec()
				return
			}
		}
	})
}

// Close releases every subscription. Subscribers observe end-of-stream
// on their Events channels.
func (b *Bus) Close() {
	b.mu.RLock()
	var all []*Subscription
	for _, subs := range b.subs {
		all = append(all, subs...)
	}
	b.mu.RUnlock()

	for _, sub := range all {
		b.Unsubscribe(sub)
	}
}

// SubscriberCount returns the number of active subscriptions.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n := 0
	for _, subs := range b.subs {
		n += len(subs)
	}
	return n
}
