// Package pubsub dispatches named events to subscribed handlers so state
// changes can reach the page without direct references between them.
package pubsub

import (
	"fmt"
	"log/slog"
	"sync"
)

// Handler receives the payload of a published event. A returned error is
// logged by the bus.
type Handler func(payload any) error

// Bus is a synchronous publish/subscribe dispatcher.
type Bus struct {
	mu     sync.Mutex
	subs   map[string][]*Subscription
	nextID uint64
	logger *slog.Logger
}

// Subscription is the token returned by Subscribe.
type Subscription struct {
	bus     *Bus
	event   string
	id      uint64
	handler Handler
}

// New creates an empty bus. A nil logger discards handler failures.
func New(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Bus{
		subs:   make(map[string][]*Subscription),
		logger: logger,
	}
}

// Subscribe registers handler for event.
func (b *Bus) Subscribe(event string, handler Handler) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	sub := &Subscription{bus: b, event: event, id: b.nextID, handler: handler}
	b.subs[event] = append(b.subs[event], sub)
	return sub
}

// Unsubscribe removes this registration. Calling it again is a no-op.
func (s *Subscription) Unsubscribe() {
	if s == nil || s.bus == nil {
		return
	}
	b := s.bus
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subs[s.event]
	for i, candidate := range subs {
		if candidate.id != s.id {
			continue
		}
		subs = append(subs[:i:i], subs[i+1:]...)
		if len(subs) == 0 {
			delete(b.subs, s.event)
		} else {
			b.subs[s.event] = subs
		}
		return
	}
}

// Publish calls every handler subscribed to event, in subscription order.
// A failing handler does not stop the others. A nil bus drops the event.
func (b *Bus) Publish(event string, payload any) {
	if b == nil {
		return
	}
	b.mu.Lock()
	subs := append([]*Subscription(nil), b.subs[event]...)
	b.mu.Unlock()

	for _, sub := range subs {
		if err := sub.call(payload); err != nil {
			b.logger.Error("event handler failed", "event", event, "subscription", sub.id, "error", err)
		}
	}
}

// Count returns the number of handlers subscribed to event.
func (b *Bus) Count(event string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[event])
}

// Events returns how many event names have at least one subscriber.
func (b *Bus) Events() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

func (s *Subscription) call(payload any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return s.handler(payload)
}

// Nop is a publisher that drops every event.
type Nop struct{}

func (Nop) Publish(string, any) {}
