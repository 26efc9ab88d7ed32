// Package pubsub provides a small in-process event bus.
//
// Circuit state transitions, connection lifecycle changes, and unsolicited
// peer events are published here so listeners (metrics, logs, the HTTP status
// surface) can observe them without coupling publishers to any one consumer.
// Delivery is best-effort: a subscriber that stops draining its channel loses
// events rather than blocking the publisher.
package pubsub

import (
	"sync"
	"time"
)

// KindAll subscribes to every event kind.
const KindAll = "*"

// Event is a single published occurrence.
type Event struct {
	Kind    string                 `json:"kind"`
	Payload map[string]interface{} `json:"payload,omitempty"`
	Time    time.Time              `json:"time"`
}

type subscriber struct {
	kind string
	ch   chan Event
}

// Bus fans events out to subscribers by kind.
type Bus struct {
	mu     sync.RWMutex
	subs   map[int]*subscriber
	nextID int
	buffer int
	closed bool
}

// New creates a bus with the default per-subscriber buffer.
func New() *Bus {
	return NewWithBuffer(16)
}

// NewWithBuffer creates a bus with a custom per-subscriber channel buffer.
func NewWithBuffer(buffer int) *Bus {
	if buffer < 1 {
		buffer = 1
	}
	return &Bus{
		subs:   make(map[int]*subscriber),
		buffer: buffer,
	}
}

// Subscribe registers a listener for the given event kind (or KindAll).
// The returned cancel func is idempotent and closes the channel.
func (b *Bus) Subscribe(kind string) (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, b.buffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}

	id := b.nextID
	b.nextID++
	b.subs[id] = &subscriber{kind: kind, ch: ch}

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if sub, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(sub.ch)
			}
		})
	}
	return ch, cancel
}

// Publish delivers an event to all matching subscribers without blocking.
func (b *Bus) Publish(kind string, payload map[string]interface{}) {
	evt := Event{Kind: kind, Payload: payload, Time: time.Now()}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	for _, sub := range b.subs {
		if sub.kind != KindAll && sub.kind != kind {
			continue
		}
		select {
		case sub.ch <- evt:
		default:
			// Subscriber is not draining; drop rather than block the publisher.
		}
	}
}

// Close shuts the bus down and closes all subscriber channels.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, sub := range b.subs {
		delete(b.subs, id)
		close(sub.ch)
	}
}
