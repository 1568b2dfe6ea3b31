package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/oklog/ulid/v2"

	"github.com/roach88/loadorder/internal/ir"
)

// EventKind distinguishes change notifications.
type EventKind int

const (
	LoadoutAdded EventKind = iota + 1
	LoadoutRemoved
	CollectionAdded
	CollectionRemoved
	// MembersChanged is published when membership of a loadout changes.
	// CollectionGroupID is set when the changed members belong to a collection.
	MembersChanged
	SortOrderChanged
	SortOrderDeleted
)

func (k EventKind) String() string {
	switch k {
	case LoadoutAdded:
		return "loadout_added"
	case LoadoutRemoved:
		return "loadout_removed"
	case CollectionAdded:
		return "collection_added"
	case CollectionRemoved:
		return "collection_removed"
	case MembersChanged:
		return "members_changed"
	case SortOrderChanged:
		return "sort_order_changed"
	case SortOrderDeleted:
		return "sort_order_deleted"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event is one committed change.
type Event struct {
	ID                string // ULID, sortable by publish time
	Seq               int64  // broker-wide, strictly increasing
	Kind              EventKind
	GameID            string
	LoadoutID         ir.LoadoutID
	CollectionGroupID ir.CollectionGroupID
	SortOrderID       ir.SortOrderID
}

// Broker fans committed changes out to subscriptions.
//
// Thread-safety: all methods are safe for concurrent use. Publish never
// blocks on subscribers.
type Broker struct {
	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	seq    atomic.Int64
	closed bool
}

// NewBroker creates a broker with no subscribers.
func NewBroker() *Broker {
	return &Broker{subs: make(map[*Subscription]struct{})}
}

// Subscribe returns a subscription receiving events for gameID.
// An empty gameID receives every event.
func (b *Broker) Subscribe(gameID string) *Subscription {
	sub := &Subscription{
		gameID: gameID,
		queue:  newEventQueue(),
		broker: b,
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		sub.queue.Close()
		return sub
	}
	b.subs[sub] = struct{}{}
	return sub
}

// Publish stamps events with an id and sequence number and delivers them
// to every matching subscription.
func (b *Broker) Publish(events ...Event) {
	if len(events) == 0 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}

	for _, e := range events {
		e.ID = ulid.Make().String()
		e.Seq = b.seq.Add(1)
		for sub := range b.subs {
			if sub.gameID == "" || sub.gameID == e.GameID {
				sub.queue.Enqueue(e)
			}
		}
	}
}

// Close ends every subscription. Pending events can still be drained.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for sub := range b.subs {
		sub.queue.Close()
	}
	b.subs = nil
}

func (b *Broker) remove(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, sub)
}

// Subscription receives events from a Broker.
type Subscription struct {
	gameID string
	queue  *eventQueue
	broker *Broker
	once   sync.Once
}

// ErrSubscriptionClosed is returned by Next after Close once all pending
// events have been consumed.
var ErrSubscriptionClosed = errors.New("subscription closed")

// Next blocks until an event is available, the context is done, or the
// subscription is closed and drained.
func (s *Subscription) Next(ctx context.Context) (Event, error) {
	for {
		if e, ok := s.queue.TryDequeue(); ok {
			return e, nil
		}
		if s.queue.IsClosed() {
			return Event{}, ErrSubscriptionClosed
		}
		select {
		case <-ctx.Done():
			return Event{}, ctx.Err()
		case <-s.queue.Wait():
		}
	}
}

// Drain returns every event currently queued without blocking.
func (s *Subscription) Drain() []Event {
	var events []Event
	for {
		e, ok := s.queue.TryDequeue()
		if !ok {
			return events
		}
		events = append(events, e)
	}
}

// Len returns the number of pending events.
func (s *Subscription) Len() int {
	return s.queue.Len()
}

// Close detaches the subscription from its broker. Safe to call twice.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.broker.remove(s)
		s.queue.Close()
	})
}

// eventQueue is a thread-safe unbounded FIFO.
//
// The queue uses a channel for signaling to enable context-aware waiting
// in consumers (prevents goroutine hangs on context cancellation).
type eventQueue struct {
	mu     sync.Mutex
	events []Event
	closed bool
	signal chan struct{} // buffered, size 1
}

func newEventQueue() *eventQueue {
	return &eventQueue{
		events: make([]Event, 0, 16),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds an event to the back of the queue.
// Returns false if the queue is closed.
func (q *eventQueue) Enqueue(e Event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.events = append(q.events, e)

	// Non-blocking: buffer of 1 coalesces multiple signals
	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// TryDequeue removes the front event without blocking.
func (q *eventQueue) TryDequeue() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) == 0 {
		return Event{}, false
	}
	e := q.events[0]
	if len(q.events) == 1 {
		q.events = q.events[:0]
	} else {
		q.events = q.events[1:]
	}
	return e, true
}

// Wait returns a channel that signals when events may be available.
// The channel is closed once the queue is closed.
func (q *eventQueue) Wait() <-chan struct{} {
	return q.signal
}

func (q *eventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

func (q *eventQueue) IsClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Close wakes any blocked waiters by closing the signal channel.
func (q *eventQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}
