package app

import (
	"sync"

	"stepcounter/internal/domain"
)

// Hub delivers step updates to per-user channel subscribers.
type Hub struct {
	mu     sync.Mutex
	subs   map[int64]map[chan domain.StepUpdate]struct{}
	closed bool
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[int64]map[chan domain.StepUpdate]struct{})}
}

// Subscribe returns a buffered channel receiving userID's updates and a
// cancel function that closes it.
func (h *Hub) Subscribe(userID int64, buffer int) (<-chan domain.StepUpdate, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan domain.StepUpdate, buffer)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	if h.subs[userID] == nil {
		h.subs[userID] = make(map[chan domain.StepUpdate]struct{})
	}
	h.subs[userID][ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if _, ok := h.subs[userID][ch]; !ok {
				return
			}
			delete(h.subs[userID], ch)
			if len(h.subs[userID]) == 0 {
				delete(h.subs, userID)
			}
			close(ch)
		})
	}
}

// Publish sends u to the subscribers of u.UserID without blocking. When a
// subscriber's buffer is full its oldest update is dropped.
func (h *Hub) Publish(u domain.StepUpdate) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs[u.UserID] {
		select {
		case ch <- u:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- u:
		default:
		}
	}
}

// Close closes every subscriber channel. Later subscriptions get a closed
// channel.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for userID, chans := range h.subs {
		for ch := range chans {
			close(ch)
		}
		delete(h.subs, userID)
	}
}
