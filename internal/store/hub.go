package store

import (
	"strings"
	"sync"
)

const subscriberBuffer = 256

// Hub fans committed events out to in-process subscribers. Each subscriber is
// served by its own goroutine so a slow consumer never blocks writers of other keys.
type Hub struct {
	mu   sync.RWMutex
	next int
	subs map[int]*subscription
}

type subscription struct {
	prefix string
	fn     func(Event)
	events chan Event
	done   chan struct{}
	once   sync.Once
}

// NewHub constructs an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[int]*subscription)}
}

// Subscribe registers fn for events whose key starts with prefix.
func (h *Hub) Subscribe(prefix string, fn func(Event)) func() {
	sub := &subscription{
		prefix: prefix,
		fn:     fn,
		events: make(chan Event, subscriberBuffer),
		done:   make(chan struct{}),
	}
	h.mu.Lock()
	id := h.next
	h.next++
	h.subs[id] = sub
	h.mu.Unlock()

	go sub.run()

	return func() {
		h.mu.Lock()
		delete(h.subs, id)
		h.mu.Unlock()
		sub.once.Do(func() { close(sub.done) })
	}
}

// Publish delivers ev to every matching subscriber.
func (h *Hub) Publish(ev Event) {
	h.mu.RLock()
	targets := make([]*subscription, 0, len(h.subs))
	for _, sub := range h.subs {
		if strings.HasPrefix(ev.Key, sub.prefix) {
			targets = append(targets, sub)
		}
	}
	h.mu.RUnlock()

	for _, sub := range targets {
		select {
		case sub.events <- ev:
		case <-sub.done:
		}
	}
}

// Close drops every subscription.
func (h *Hub) Close() {
	h.mu.Lock()
	subs := h.subs
	h.subs = make(map[int]*subscription)
	h.mu.Unlock()
	for _, sub := range subs {
		sub.once.Do(func() { close(sub.done) })
	}
}

func (s *subscription) run() {
	for {
		select {
		case <-s.done:
			return
		case ev := <-s.events:
			s.fn(ev)
		}
	}
}
