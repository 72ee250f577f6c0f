// Package events provides a simple publish-subscribe bus for document events.
// The SSE endpoint and the websocket surfaces are its subscribers.
package events

import (
	"sync"

	"github.com/micro-nova/slidered/internal/models"
)

// Slider drags emit an edit event per step, so subscribers get some slack.
const subBufferSize = 64

type subscription struct {
	ch       chan models.Event
	document string // "" receives events of every document
}

// Bus is a non-blocking publish-subscribe event bus.
// Subscribers that are slow to consume events will have events dropped rather
// than blocking publishers.
type Bus struct {
	mu      sync.Mutex
	subs    map[string]subscription
	dropped uint64
}

// NewBus creates a new event bus.
func NewBus() *Bus {
	return &Bus{
		subs: make(map[string]subscription),
	}
}

// Subscribe registers subscriber id for the events of one document, or of
// all documents when document is empty. Subscribing an id again replaces its
// previous subscription. Call Unsubscribe when done to clean up.
func (b *Bus) Subscribe(id, document string) <-chan models.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	if old, ok := b.subs[id]; ok {
		close(old.ch)
	}
	ch := make(chan models.Event, subBufferSize)
	b.subs[id] = subscription{ch: ch, document: document}
	return ch
}

// Unsubscribe removes a subscription and closes its channel.
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if sub, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(sub.ch)
	}
}

// Publish sends ev to every subscriber interested in ev.Document.
// If a subscriber's channel is full, the event is dropped (non-blocking).
func (b *Bus) Publish(ev models.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, sub := range b.subs {
		if sub.document != "" && sub.document != ev.Document {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			b.dropped++
		}
	}
}

// SubscriberCount returns the current number of subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Dropped returns how many deliveries were dropped because a subscriber
// was full.
func (b *Bus) Dropped() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}
