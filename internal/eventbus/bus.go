// Package eventbus provides a small in-process publish/subscribe bus.
package eventbus

import "sync"

// Bus fans events of type T out to subscribers. Delivery is
// non-blocking: a subscriber that stops draining loses events rather
// than stalling the publisher.
type Bus[T any] struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]chan T
	closed bool
}

// New creates an empty bus.
func New[T any]() *Bus[T] {
	return &Bus[T]{subs: make(map[int]chan T)}
}

// Publish sends the event to every subscriber.
func (b *Bus[T]) Publish(e T) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// Subscribe registers a subscriber with the given channel buffer and
// returns its channel plus a cancel function. Cancel is idempotent and
// safe after Close.
func (b *Bus[T]) Subscribe(buffer int) (<-chan T, func()) {
	if buffer <= 0 {
		buffer = 8
	}
	ch := make(chan T, buffer)
	b.mu.Lock()
	if b.closed {
		close(ch)
		b.mu.Unlock()
		return ch, func() {}
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if sub, ok := b.subs[id]; ok {
				delete(b.subs, id)
				if !b.closed {
					close(sub)
				}
			}
		})
	}
	return ch, cancel
}

// Close closes every subscriber channel and rejects further publishes.
func (b *Bus[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		close(ch)
		delete(b.subs, id)
	}
}
