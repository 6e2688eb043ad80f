// Package eventbus provides in-process publish/subscribe plumbing
// between the scheduling service and its observers.
package eventbus

import (
	"sync"
	"time"

	"github.com/homebatt/homebatt/core/model"
)

// StrategyComputed is published after every scheduling tick.
type StrategyComputed struct {
	Strategy *model.Strategy
	Time     time.Time
}

// ModeChanged is published when the commanded battery mode changes.
type ModeChanged struct {
	Previous model.BatteryMode
	Current  model.BatteryMode
	Time     time.Time
}

// PricesRefreshed is published after a successful spot price refresh.
type PricesRefreshed struct {
	Intervals int
	Horizon   time.Time
	Time      time.Time
}

// Bus is a type-safe fan-out bus for events of type T. Publishing never
// blocks; slow subscribers miss events once their buffer is full.
type Bus[T any] struct {
	mu     sync.RWMutex
	subs   []chan T
	closed bool
}

// New creates an empty bus.
func New[T any]() *Bus[T] { return &Bus[T]{} }

// Publish delivers the event to every subscriber without blocking.
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

// Subscribe registers a subscriber and returns its receive channel.
func (b *Bus[T]) Subscribe() <-chan T {
	ch := make(chan T, 8)
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

// Close closes every subscriber channel. Further publishes are dropped.
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
