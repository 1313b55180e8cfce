// Package observable provides a replay-of-latest broadcast cell.
//
// A [Value] holds exactly one current value. Every subscriber receives that
// value immediately on subscription and then every later value published with
// [Value.Set]. Consumers that only need to read get the [Observable] view,
// which has no way to publish.
//
// Delivery never blocks the publisher. Each subscriber owns a one-slot
// mailbox: when a new value arrives before the subscriber read the previous
// one, the unread value is replaced. A slow subscriber may therefore skip
// intermediate values, but the last value it reads is always the latest one.
package observable

import (
	"sync"
)

// Observable is the read-only view of a [Value].
type Observable[T any] interface {
	// Get returns the current value.
	Get() T

	// Version returns how many times the value has been published. A freshly
	// constructed Value reports 0.
	Version() uint64

	// Subscribe returns a channel that immediately holds the current value
	// and then receives every later publish. The returned function cancels
	// the subscription and closes the channel; it is safe to call repeatedly.
	Subscribe() (<-chan T, func())
}

// Value is a single-writer, multi-reader cell with replay-of-latest semantics.
//
// The zero Value is not usable; construct one with [New].
type Value[T any] struct {
	mu      sync.Mutex
	current T
	version uint64
	subs    map[chan T]struct{}
	closed  bool
}

// New creates a Value holding initial.
func New[T any](initial T) *Value[T] {
	return &Value[T]{
		current: initial,
		subs:    make(map[chan T]struct{}),
	}
}

// Get returns the current value.
func (v *Value[T]) Get() T {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.current
}

// Version returns the number of publishes so far.
func (v *Value[T]) Version() uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.version
}

// Set publishes next as the current value and delivers it to all subscribers.
// Set after [Value.Close] is a no-op.
func (v *Value[T]) Set(next T) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed {
		return
	}
	v.current = next
	v.version++

	for ch := range v.subs {
		offer(ch, next)
	}
}

// Subscribe implements [Observable].
//
// Subscribing to a closed Value returns a channel that yields the final value
// once and is then closed.
func (v *Value[T]) Subscribe() (<-chan T, func()) {
	ch := make(chan T, 1)

	v.mu.Lock()
	defer v.mu.Unlock()

	ch <- v.current
	if v.closed {
		close(ch)
		return ch, func() {}
	}
	v.subs[ch] = struct{}{}

	var once sync.Once
	return ch, func() {
		once.Do(func() { v.unsubscribe(ch) })
	}
}

// Subscribers returns the number of active subscriptions.
func (v *Value[T]) Subscribers() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.subs)
}

// Close ends every subscription. The current value stays readable through
// [Value.Get]. Close is idempotent.
func (v *Value[T]) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed {
		return
	}
	v.closed = true
	for ch := range v.subs {
		delete(v.subs, ch)
		close(ch)
	}
}

func (v *Value[T]) unsubscribe(ch chan T) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if _, ok := v.subs[ch]; !ok {
		return
	}
	delete(v.subs, ch)
	close(ch)
}

// offer replaces whatever is waiting in the one-slot mailbox with val.
// The caller holds the Value lock, so no other sender can fill the slot
// between the drain and the send.
func offer[T any](ch chan T, val T) {
	select {
	case <-ch:
	default:
	}
	ch <- val
}
