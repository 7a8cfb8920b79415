package events

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Conn is a connected client handle. Send must not block; a slow or dead
// connection returns an error and the hub drops it from the registry.
type Conn interface {
	Send(Event) error
}

// Hub is the channel-subscription registry and push delivery layer.
type Hub struct {
	mu   sync.RWMutex
	subs map[Channel]map[Conn]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[Channel]map[Conn]struct{})}
}

// Subscribe registers the connection on a channel. Fails with
// ErrUnknownChannel for channels outside the known set.
func (h *Hub) Subscribe(c Conn, channel Channel) error {
	if !channel.Valid() {
		return ErrUnknownChannel
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[channel] == nil {
		h.subs[channel] = make(map[Conn]struct{})
	}
	h.subs[channel][c] = struct{}{}
	return nil
}

// Unsubscribe removes the connection from one channel.
func (h *Hub) Unsubscribe(c Conn, channel Channel) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs[channel], c)
}

// UnsubscribeAll clears every channel membership for a connection. Called by
// the transport layer when the underlying connection closes so the registry
// never accumulates stale subscribers.
func (h *Hub) UnsubscribeAll(c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, conns := range h.subs {
		delete(conns, c)
	}
}

// Publish delivers the event to every subscriber of its channel. Each
// delivery is independent and best-effort: one failing connection is logged
// and dropped without affecting the others.
func (h *Hub) Publish(channel Channel, ev Event) {
	ev.Channel = channel
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	h.mu.RLock()
	targets := make([]Conn, 0, len(h.subs[channel]))
	for c := range h.subs[channel] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	var failed []Conn
	for _, c := range targets {
		if err := c.Send(ev); err != nil {
			log.Printf("events: dropping subscriber on %s: %v", channel, err)
			failed = append(failed, c)
		}
	}
	for _, c := range failed {
		h.UnsubscribeAll(c)
	}
}

// Subscribers returns the current subscriber count for a channel.
func (h *Hub) Subscribers(channel Channel) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[channel])
}
