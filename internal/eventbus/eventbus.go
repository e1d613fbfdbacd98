// Package eventbus fans progress events out to any number of listeners
// without ever blocking the publisher.
package eventbus

import (
	"sync"
	"sync/atomic"
)

// DefaultBuffer is the channel capacity of a subscriber.
const DefaultBuffer = 16

// Bus is a type-safe publish/subscribe bus for events of type T. A slow
// subscriber loses events instead of stalling the publisher; the number of
// lost deliveries is reported by Dropped.
type Bus[T any] struct {
	mu      sync.RWMutex
	subs    []chan T
	closed  bool
	buffer  int
	dropped atomic.Uint64
}

// New creates a Bus whose subscriber channels hold buffer events. A buffer
// below 1 selects DefaultBuffer.
func New[T any](buffer int) *Bus[T] {
	if buffer < 1 {
		buffer = DefaultBuffer
	}
	return &Bus[T]{buffer: buffer}
}

// Publish sends e to all subscribers. Delivery is non-blocking.
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
			b.dropped.Add(1)
		}
	}
}

// Subscribe registers a subscriber and returns its channel. Subscribing to
// a closed bus returns a closed channel.
func (b *Bus[T]) Subscribe() <-chan T {
	ch := make(chan T, b.buffer)
	b.mu.Lock()
	if b.closed {
		close(ch)
	} else {
		b.subs = append(b.subs, ch)
	}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes the subscriber and closes its channel.
func (b *Bus[T]) Unsubscribe(sub <-chan T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, ch := range b.subs {
		if ch == sub {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			if !b.closed {
				close(ch)
			}
			return
		}
	}
}

// Dropped returns how many deliveries were skipped because a subscriber
// channel was full.
func (b *Bus[T]) Dropped() uint64 { return b.dropped.Load() }

// Close closes the bus and all subscriber channels.
func (b *Bus[T]) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	for _, ch := range b.subs {
		close(ch)
	}
	b.subs = nil
	b.mu.Unlock()
}
