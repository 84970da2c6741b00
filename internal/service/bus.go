package service

import (
	"sync"

	"github.com/joeblew999/plat-forest/internal/mapview"
)

// Event kinds.
const (
	EventMounted    = "mounted"
	EventUnmounted  = "unmounted"
	EventReconciled = "reconciled"
)

// Event is a change to the hosted map view.
type Event struct {
	Kind       string              `json:"kind"`
	Generation uint64              `json:"generation"`
	Report     mapview.Report      `json:"report"`
	Context    mapview.ViewContext `json:"context"`
	Boundary   string              `json:"boundary,omitempty"` // fit outcome, when the pass touched it
}

// EventBus is a simple fan-out pub/sub for view events.
type EventBus struct {
	mu   sync.RWMutex
	subs map[chan Event]struct{}
}

// NewEventBus creates a new event bus.
func NewEventBus() *EventBus {
	return &EventBus{subs: make(map[chan Event]struct{})}
}

// Publish sends an event to all subscribers (non-blocking).
func (b *EventBus) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- e:
		default:
			// subscriber too slow, skip
		}
	}
}

// Subscribe returns a buffered channel that receives events.
func (b *EventBus) Subscribe() chan Event {
	ch := make(chan Event, 16)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *EventBus) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	delete(b.subs, ch)
	b.mu.Unlock()
	close(ch)
}
