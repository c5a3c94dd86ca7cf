package events

import "sync"

const subscriberBuffer = 32

// Hub fans run events out to SSE subscribers. A subscriber whose buffer is
// full misses the event; publishing never blocks a scrape.
type Hub struct {
	mu      sync.Mutex
	clients map[chan []byte]struct{}
	dropped int
}

func NewHub() *Hub {
	return &Hub{clients: make(map[chan []byte]struct{})}
}

func (h *Hub) Subscribe() chan []byte {
	ch := make(chan []byte, subscriberBuffer)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

// Unsubscribe closes ch. Calling it twice is a no-op.
func (h *Hub) Unsubscribe(ch chan []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[ch]; ok {
		delete(h.clients, ch)
		close(ch)
	}
}

func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Dropped counts deliveries skipped because a subscriber was behind.
func (h *Hub) Dropped() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dropped
}

// Publish encodes e once and offers it to every subscriber. A nil Hub discards.
func (h *Hub) Publish(e Event) {
	if h == nil {
		return
	}
	msg := e.Encode()
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.clients {
		select {
		case ch <- msg:
		default:
			h.dropped++
		}
	}
}
