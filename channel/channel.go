// Package channel provides the typed broadcast primitive that connects
// pipeline nodes.
//
// A Channel has one producer (the owning node's output slot) and any number
// of subscribers, one per downstream edge. Every subscriber owns a bounded
// buffer; a publish that finds a full buffer drops that subscriber's oldest
// item and counts it as lag. Publishing never blocks on a slow consumer.
package channel

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Project-NEURIA/OpenNeuro/errors"
)

// DefaultCapacity is the per-subscriber buffer capacity used when no
// explicit capacity is configured.
const DefaultCapacity = 64

// Sizer is implemented by items that can report their payload size.
// Items without a natural size contribute zero bytes to channel counters.
type Sizer interface {
	SizeBytes() int
}

// SizeOf returns the byte size attributed to an item by the channel
// counters: length for []byte and string, SizeBytes() for Sizer
// implementations, zero otherwise.
func SizeOf(item any) int {
	switch v := item.(type) {
	case []byte:
		return len(v)
	case string:
		return len(v)
	case Sizer:
		return v.SizeBytes()
	default:
		return 0
	}
}

// Channel is a one-to-many broadcast buffer attached to one output slot of
// one node. All methods are safe for concurrent use.
type Channel struct {
	name     string
	elemType string
	capacity int

	mu        sync.Mutex
	subs      map[string]*Subscription
	msgCount  uint64
	byteCount uint64
	lastSend  float64
	closed    bool
	closedCh  chan struct{}
}

// New creates a channel with the given name (conventionally
// "<node_id>.<slot>"), declared element type, and per-subscriber buffer
// capacity. A capacity below one falls back to DefaultCapacity.
func New(name, elemType string, capacity int) *Channel {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	return &Channel{
		name:     name,
		elemType: elemType,
		capacity: capacity,
		subs:     make(map[string]*Subscription),
		closedCh: make(chan struct{}),
	}
}

// Name returns the channel name.
func (c *Channel) Name() string { return c.name }

// ElemType returns the declared element type string.
func (c *Channel) ElemType() string { return c.elemType }

// Subscribe attaches a new subscriber and returns its consume handle.
// Subscriber ids identify the consuming node; subscribing the same id twice
// fails with AlreadySubscribed. Subscribing to a closed channel fails with
// ChannelClosed.
func (c *Channel) Subscribe(id string) (*Subscription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, errors.New(errors.KindChannelClosed, "channel %s is closed", c.name)
	}
	if _, ok := c.subs[id]; ok {
		return nil, errors.New(errors.KindAlreadySubscribed, "subscriber %s already attached to %s", id, c.name)
	}

	sub := &Subscription{
		id:       id,
		buf:      make(chan any, c.capacity),
		closedCh: c.closedCh,
		done:     make(chan struct{}),
	}
	c.subs[id] = sub
	return sub, nil
}

// Unsubscribe detaches the subscriber and discards its buffered items.
// Idempotent.
func (c *Channel) Unsubscribe(id string) {
	c.mu.Lock()
	sub, ok := c.subs[id]
	if ok {
		delete(c.subs, id)
	}
	c.mu.Unlock()

	if ok {
		close(sub.done)
		sub.drain()
	}
}

// Publish pushes item into every subscriber's buffer. A full buffer loses
// its oldest item first, counted on that subscriber's lag. Publishing to a
// closed channel is a no-op; publishing with zero subscribers still updates
// the channel-level counters for observability.
func (c *Channel) Publish(item any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	c.msgCount++
	c.byteCount += uint64(SizeOf(item))
	c.lastSend = float64(time.Now().UnixNano()) / float64(time.Second)

	for _, sub := range c.subs {
		sub.enqueue(item)
	}
}

// Close wakes all receivers and makes subsequent publishes no-ops.
// Buffered items are retained for inspection. Idempotent.
func (c *Channel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.closedCh)
}

// Closed reports whether the channel has been closed.
func (c *Channel) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Subscription is a subscriber's consume handle. The producer enqueues into
// its bounded buffer; the owning node's input loop receives from it.
type Subscription struct {
	id       string
	buf      chan any
	closedCh chan struct{}
	done     chan struct{}

	msgCount  atomic.Uint64
	byteCount atomic.Uint64
	lag       atomic.Uint64
}

// ID returns the subscriber id.
func (s *Subscription) ID() string { return s.id }

// enqueue adds item to the buffer, dropping the oldest buffered item when
// full. Only the producer inserts, so after removing one item the second
// send cannot block.
func (s *Subscription) enqueue(item any) {
	select {
	case s.buf <- item:
		return
	default:
	}
	select {
	case <-s.buf:
		s.lag.Add(1)
	default:
		// consumer drained concurrently; there is room now
	}
	s.buf <- item
}

// Receive returns the next item for this subscriber, blocking until one is
// available, the channel is closed, the subscriber is detached, or ctx is
// canceled. The second return is false when no item was delivered. Items
// buffered at the time of closure are deliberately not delivered,
// preserving them for inspection.
func (s *Subscription) Receive(ctx context.Context) (any, bool) {
	// Closure wins over buffered items.
	select {
	case <-s.closedCh:
		return nil, false
	case <-s.done:
		return nil, false
	case <-ctx.Done():
		return nil, false
	default:
	}

	select {
	case item := <-s.buf:
		s.msgCount.Add(1)
		s.byteCount.Add(uint64(SizeOf(item)))
		return item, true
	case <-s.closedCh:
		return nil, false
	case <-s.done:
		return nil, false
	case <-ctx.Done():
		return nil, false
	}
}

// Lag returns the number of items dropped from this subscriber's buffer.
func (s *Subscription) Lag() uint64 { return s.lag.Load() }

// drain discards all buffered items.
func (s *Subscription) drain() {
	for {
		select {
		case <-s.buf:
		default:
			return
		}
	}
}
