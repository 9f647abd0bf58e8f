// Package realtime pushes fresh query results to subscribers whenever the
// underlying rows change.
//
// Stores call Hub.Notify after a write commits. Every Subscription listening
// on an affected topic reloads its full result set and delivers it as a
// Snapshot. Notifications carry no payload; they only mean "reload".
package realtime

import (
	"context"
	"sync"
	"time"

	"pocketledger/internal/logger"
)

// BooksTopic is notified whenever any book owned by userID changes.
func BooksTopic(userID string) string { return "books:" + userID }

// EntriesTopic is notified whenever an entry of bookID is added or removed.
func EntriesTopic(bookID string) string { return "entries:" + bookID }

// Relay forwards notifications to other service instances.
type Relay interface {
	Publish(ctx context.Context, topics []string) error
}

const relayTimeout = 5 * time.Second

// Hub is a concurrency-safe topic notifier. Notify never blocks: each
// listener has a one-slot buffer, so bursts of changes coalesce into one
// pending reload.
type Hub struct {
	mu        sync.RWMutex
	listeners map[string]map[uint64]chan struct{}
	nextID    uint64
	relay     Relay
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{
		listeners: make(map[string]map[uint64]chan struct{}),
	}
}

// SetRelay installs a relay that receives every local notification.
func (h *Hub) SetRelay(r Relay) {
	h.mu.Lock()
	h.relay = r
	h.mu.Unlock()
}

// Listen registers interest in topic. The returned channel receives a value
// after each notification; unlisten removes the registration.
func (h *Hub) Listen(topic string) (signal <-chan struct{}, unlisten func()) {
	ch := make(chan struct{}, 1)

	h.mu.Lock()
	h.nextID++
	id := h.nextID
	if h.listeners[topic] == nil {
		h.listeners[topic] = make(map[uint64]chan struct{})
	}
	h.listeners[topic][id] = ch
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if ls := h.listeners[topic]; ls != nil {
				delete(ls, id)
				if len(ls) == 0 {
					delete(h.listeners, topic)
				}
			}
		})
	}
}

// Notify signals local listeners of topics and forwards them to the relay.
func (h *Hub) Notify(topics ...string) {
	h.Deliver(topics...)

	h.mu.RLock()
	relay := h.relay
	h.mu.RUnlock()
	if relay == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), relayTimeout)
	defer cancel()
	if err := relay.Publish(ctx, topics); err != nil {
		logger.Named("realtime").Warnw("relay publish failed", "topics", topics, "error", err)
	}
}

// Deliver signals local listeners only. Used for notifications that arrive
// from other instances.
func (h *Hub) Deliver(topics ...string) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, topic := range topics {
		for _, ch := range h.listeners[topic] {
			select {
			case ch <- struct{}{}:
			default:
				// a reload is already pending
			}
		}
	}
}

// DeliverAll signals every local listener so each subscription reloads.
// Used after the relay reconnects, since peer messages sent during the outage
// are lost.
func (h *Hub) DeliverAll() {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, ls := range h.listeners {
		for _, ch := range ls {
			select {
			case ch <- struct{}{}:
			default:
			}
		}
	}
}

// ListenerCount returns the number of listeners on topic.
func (h *Hub) ListenerCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.listeners[topic])
}
