package realtime

import (
	"context"
	"sync"
	"sync/atomic"
)

const defaultBuffer = 32

// Hub fans changes out to in-process subscribers keyed by user id.
// Slow subscribers lose changes instead of blocking delivery.
type Hub struct {
	mu      sync.RWMutex
	subs    map[string]map[*subscription]struct{}
	buffer  int
	dropped atomic.Int64
}

type subscription struct {
	ch chan Change
}

func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Hub{subs: make(map[string]map[*subscription]struct{}), buffer: buffer}
}

// Subscribe registers a listener for userID. The returned cancel func must be
// called once; it closes the channel.
func (h *Hub) Subscribe(userID string) (<-chan Change, func()) {
	sub := &subscription{ch: make(chan Change, h.buffer)}
	h.mu.Lock()
	if h.subs[userID] == nil {
		h.subs[userID] = make(map[*subscription]struct{})
	}
	h.subs[userID][sub] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs[userID], sub)
			if len(h.subs[userID]) == 0 {
				delete(h.subs, userID)
			}
			h.mu.Unlock()
			close(sub.ch)
		})
	}
	return sub.ch, cancel
}

// Deliver implements Sink.
func (h *Hub) Deliver(_ context.Context, change Change) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, user := range change.Audience {
		for sub := range h.subs[user] {
			select {
			case sub.ch <- change:
			default:
				h.dropped.Add(1)
			}
		}
	}
	return nil
}

// Subscribers counts live subscriptions for userID.
func (h *Hub) Subscribers(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[userID])
}

func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}

var _ Sink = (*Hub)(nil)
