// Package notify fans out "collection changed" signals to the live views
// of this process and, through Redis, of every other instance.
package notify

import (
	"context"
	"sync"
)

// Notifier delivers change signals per topic. Signals carry no payload and
// bursts coalesce: a listener that has not drained its channel sees one
// pending signal.
type Notifier interface {
	Notify(ctx context.Context, topic string) error
	Listen(topic string) (<-chan struct{}, func())
}

// Hub is an in-process Notifier.
type Hub struct {
	mu        sync.RWMutex
	listeners map[string]map[int64]chan struct{}
	nextID    int64
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{listeners: make(map[string]map[int64]chan struct{})}
}

// Listen registers a listener for topic. The returned func unregisters it and
// closes the channel.
func (h *Hub) Listen(topic string) (<-chan struct{}, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.listeners[topic]; !ok {
		h.listeners[topic] = make(map[int64]chan struct{})
	}
	h.nextID++
	id := h.nextID
	ch := make(chan struct{}, 1)
	h.listeners[topic][id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() { h.unlisten(topic, id) })
	}
}

func (h *Hub) unlisten(topic string, id int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns, ok := h.listeners[topic]
	if !ok {
		return
	}
	if ch, ok := conns[id]; ok {
		close(ch)
		delete(conns, id)
	}
	if len(conns) == 0 {
		delete(h.listeners, topic)
	}
}

// Notify signals every listener of topic without blocking.
func (h *Hub) Notify(ctx context.Context, topic string) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.listeners[topic] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	return nil
}

// Listeners returns the number of listeners on topic.
func (h *Hub) Listeners(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.listeners[topic])
}
