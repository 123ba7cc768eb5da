// Package broadcast fans published messages out to every live subscriber.
//
// Delivery is at-most-once: each subscription has a bounded buffer, and a
// consumer that falls behind loses the messages that no longer fit. That is
// the chosen tradeoff, not a failure — history gaps are covered by the
// message store replay at connect time only. The router itself knows
// nothing about sessions; visibility filtering happens at the consuming
// edge.
package broadcast

import (
	"sync"
	"sync/atomic"

	"github.com/zhouzirui/chat-relay/internal/model/chat"
)

// DefaultBuffer is the per-subscriber channel capacity used when the
// caller does not override it.
const DefaultBuffer = 100

// Router is the shared fan-out channel: one logical producer side fed by
// every connection's read loop plus the auto-responder, one consumer side
// per open connection.
type Router struct {
	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	buffer int
}

// Subscription is one consumer handle, bound to the lifetime of a single
// connection.
type Subscription struct {
	ch      chan chat.Message
	router  *Router
	once    sync.Once
	dropped atomic.Uint64
}

// NewRouter creates a router whose subscriptions buffer up to buffer
// messages each.
func NewRouter(buffer int) *Router {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Router{
		subs:   make(map[*Subscription]struct{}),
		buffer: buffer,
	}
}

// Subscribe registers a new consumer. It receives every message published
// from this point on, in publish order.
func (r *Router) Subscribe() *Subscription {
	sub := &Subscription{
		ch:     make(chan chat.Message, r.buffer),
		router: r,
	}

	r.mu.Lock()
	r.subs[sub] = struct{}{}
	r.mu.Unlock()

	return sub
}

// Publish delivers msg to all current subscribers without blocking. A
// subscriber whose buffer is full misses this message; with zero
// subscribers the call is a no-op. Fan-out happens under the router lock
// so every subscriber observes the same global publish order.
func (r *Router) Publish(msg chat.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for sub := range r.subs {
		select {
		case sub.ch <- msg:
		default:
			sub.dropped.Add(1)
		}
	}
}

// Subscribers reports the number of live consumer handles.
func (r *Router) Subscribers() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}

// C is the receive side of the subscription. It is closed by Close.
func (s *Subscription) C() <-chan chat.Message {
	return s.ch
}

// Dropped reports how many messages this subscriber missed because its
// buffer was full.
func (s *Subscription) Dropped() uint64 {
	return s.dropped.Load()
}

// Close unregisters the subscription and closes its channel. Safe to call
// more than once and safe against concurrent Publish.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.router.mu.Lock()
		delete(s.router.subs, s)
		s.router.mu.Unlock()
		// No publisher can hold a reference anymore; closing is safe.
		close(s.ch)
	})
}
