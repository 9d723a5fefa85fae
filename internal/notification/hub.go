package notification

import (
	"context"
	"sync"
)

const defaultHubBuffer = 64

// Hub fans out messages to subscribers via buffered channels.
type Hub struct {
	mu     sync.RWMutex
	subs   map[chan Message]struct{}
	buffer int
}

// NewHub creates a hub with the given per-subscriber buffer.
func NewHub(buffer int) *Hub {
	if buffer < 1 {
		buffer = defaultHubBuffer
	}
	return &Hub{
		subs:   make(map[chan Message]struct{}),
		buffer: buffer,
	}
}

// Send publishes the message to all subscribers, dropping it for any reader
// whose buffer is full.
func (h *Hub) Send(_ context.Context, message Message) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs {
		select {
		case ch <- message:
		default:
			// drop slow consumer
		}
	}
	return nil
}

// Subscribe returns a channel that receives messages until Unsubscribe is called.
func (h *Hub) Subscribe() chan Message {
	ch := make(chan Message, h.buffer)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

// Unsubscribe removes the channel and closes it.
func (h *Hub) Unsubscribe(ch chan Message) {
	h.mu.Lock()
	if _, ok := h.subs[ch]; ok {
		delete(h.subs, ch)
		close(ch)
	}
	h.mu.Unlock()
}

// Subscribers returns the number of live subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
