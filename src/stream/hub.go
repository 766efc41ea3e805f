package stream

import (
	"sync"
	"sync/atomic"
)

type Subscription[T any] struct {
	C    <-chan T
	ch   chan T
	once sync.Once
}

// Hub fans values out to subscribers. A subscriber whose buffer is full
// misses the value rather than stalling the publisher.
type Hub[T any] struct {
	mu      sync.RWMutex
	subs    map[*Subscription[T]]struct{}
	dropped atomic.Uint64
}

func NewHub[T any]() *Hub[T] {
	return &Hub[T]{subs: make(map[*Subscription[T]]struct{})}
}

func (h *Hub[T]) Subscribe(buffer int) *Subscription[T] {
	ch := make(chan T, buffer)
	sub := &Subscription[T]{C: ch, ch: ch}
	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()
	return sub
}

func (h *Hub[T]) Unsubscribe(sub *Subscription[T]) {
	sub.once.Do(func() {
		h.mu.Lock()
		delete(h.subs, sub)
		h.mu.Unlock()
		close(sub.ch)
	})
}

func (h *Hub[T]) Broadcast(value T) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs {
		select {
		case sub.ch <- value:
		default:
			h.dropped.Add(1)
		}
	}
}

func (h *Hub[T]) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Dropped counts values lost to slow subscribers.
func (h *Hub[T]) Dropped() uint64 {
	return h.dropped.Load()
}
