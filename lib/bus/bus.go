// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bus

import (
	"context"
	"errors"
	"sync"

	"github.com/bureau-foundation/ceremony-monitor/lib/ceremony"
)

// ErrClosed is returned by Publish after Close.
var ErrClosed = errors.New("bus: closed")

// Bus is a multi-producer, multi-consumer event broadcaster. The zero
// value is not usable; call New.
type Bus struct {
	// publishMu serializes Publish calls so that every subscriber
	// observes the same total order of events.
	publishMu sync.Mutex

	// subscriberMu protects subscribers. Publish snapshots the slice
	// under RLock; Subscribe and unsubscribe write under Lock.
	subscriberMu sync.RWMutex
	subscribers  []*Subscription

	closeOnce sync.Once
	closed    chan struct{}
}

// New returns an open Bus with no subscribers.
func New() *Bus {
	return &Bus{closed: make(chan struct{})}
}

// Subscription receives events from a Bus. Read from Events until it
// is closed (by Close or by the bus closing).
type Subscription struct {
	bus    *Bus
	events chan ceremony.Event

	doneOnce sync.Once
	done     chan struct{}
}

// Subscribe registers a new subscriber with the given buffer capacity.
// Subscribing to a closed bus returns a subscription whose Events
// channel is already closed.
func (b *Bus) Subscribe(buffer int) *Subscription {
	if buffer < 0 {
		buffer = 0
	}
	subscription := &Subscription{
		bus:    b,
		events: make(chan ceremony.Event, buffer),
		done:   make(chan struct{}),
	}

	// Hold publishMu so the subscriber list does not change while a
	// publish is mid-delivery, and so a concurrent Close cannot race
	// with the registration.
	b.publishMu.Lock()
	defer b.publishMu.Unlock()

	select {
	case <-b.closed:
		close(subscription.events)
		return subscription
	default:
	}

	b.subscriberMu.Lock()
	b.subscribers = append(b.subscribers, subscription)
	b.subscriberMu.Unlock()
	return subscription
}

// Publish delivers event to every current subscriber, in subscription
// order. Concurrent publishers are serialized. A subscriber with buffer
// space always receives the event, even when ctx is already done; ctx
// only bounds waiting on a full subscriber.
func (b *Bus) Publish(ctx context.Context, event ceremony.Event) error {
	b.publishMu.Lock()
	defer b.publishMu.Unlock()

	select {
	case <-b.closed:
		return ErrClosed
	default:
	}

	b.subscriberMu.RLock()
	subscribers := make([]*Subscription, len(b.subscribers))
	copy(subscribers, b.subscribers)
	b.subscriberMu.RUnlock()

	for _, subscriber := range subscribers {
		select {
		case subscriber.events <- event:
			continue
		default:
		}
		select {
		case subscriber.events <- event:
		case <-subscriber.done:
			// Unsubscribed while we were delivering; skip it.
		case <-b.closed:
			return ErrClosed
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// SubscriberCount returns the number of active subscriptions.
func (b *Bus) SubscriberCount() int {
	b.subscriberMu.RLock()
	defer b.subscriberMu.RUnlock()
	return len(b.subscribers)
}

// Close shuts the bus down. Pending and future Publish calls return
// ErrClosed, and every subscription's Events channel is closed.
func (b *Bus) Close() {
	b.closeOnce.Do(func() {
		close(b.closed)

		// Wait for any in-flight Publish to observe closed and return
		// before closing subscriber channels it may be sending on.
		b.publishMu.Lock()
		defer b.publishMu.Unlock()

		b.subscriberMu.Lock()
		subscribers := b.subscribers
		b.subscribers = nil
		b.subscriberMu.Unlock()

		// Whoever removes a subscription from the list under
		// publishMu owns closing its events channel.
		for _, subscriber := range subscribers {
			subscriber.doneOnce.Do(func() { close(subscriber.done) })
			close(subscriber.events)
		}
	})
}

// Events returns the channel on which events are delivered.
func (s *Subscription) Events() <-chan ceremony.Event { return s.events }

// Close unsubscribes. Events already buffered remain readable; the
// Events channel is closed once no publisher can send on it.
func (s *Subscription) Close() {
	// Signal first so a Publish blocked on our full buffer moves on,
	// then take publishMu to exclude further deliveries before
	// closing the channel.
	s.doneOnce.Do(func() { close(s.done) })

	s.bus.publishMu.Lock()
	defer s.bus.publishMu.Unlock()

	s.bus.subscriberMu.Lock()
	defer s.bus.subscriberMu.Unlock()
	for index, subscriber := range s.bus.subscribers {
		if subscriber == s {
			s.bus.subscribers = append(s.bus.subscribers[:index], s.bus.subscribers[index+1:]...)
			close(s.events)
			return
		}
	}
}

// Publisher returns b as a ceremony.Publisher.
func (b *Bus) Publisher() ceremony.Publisher { return b }
