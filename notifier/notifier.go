// Package notifier implements the in-process publish/subscribe channel that
// broadcasts newly added persons to live subscription streams.
package notifier

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/c360/phonebook/errors"
	"github.com/c360/phonebook/store"
)

// subscriberBuffer bounds each subscriber's event queue so a slow consumer
// never blocks the publishing mutation. This channel has no replay, so
// dropping on overflow loses nothing a late subscriber would have seen.
const subscriberBuffer = 16

// Notifier is a single-topic broadcast channel for person-added events.
// It is explicitly constructed at process start and torn down at shutdown;
// there is no ambient global registry.
type Notifier struct {
	mu     sync.RWMutex
	subs   map[string]*Subscription
	closed bool
	logger *slog.Logger
}

// Subscription is one independent event stream, live only while the
// subscribing connection remains open.
type Subscription struct {
	id       string
	events   chan store.Person
	done     chan struct{}
	notifier *Notifier
	once     sync.Once
}

// New creates a notifier
func New(logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		subs:   make(map[string]*Subscription),
		logger: logger.With("component", "notifier"),
	}
}

// Subscribe registers a new subscriber. The subscription is removed when the
// given context is cancelled or Unsubscribe is called, whichever comes first.
// Events published before Subscribe returns are never delivered.
func (n *Notifier) Subscribe(ctx context.Context) (*Subscription, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return nil, errors.WrapFatal(errors.ErrAlreadyStopped, "Notifier", "Subscribe",
			"notifier closed")
	}

	sub := &Subscription{
		id:       uuid.NewString(),
		events:   make(chan store.Person, subscriberBuffer),
		done:     make(chan struct{}),
		notifier: n,
	}
	n.subs[sub.id] = sub

	go func() {
		select {
		case <-ctx.Done():
			sub.Unsubscribe()
		case <-sub.done:
		}
	}()

	n.logger.Debug("subscriber added", "subscriber", sub.id, "total", len(n.subs))
	return sub, nil
}

// Events returns the subscriber's event stream. The channel is closed when
// the subscription ends.
func (s *Subscription) Events() <-chan store.Person {
	return s.events
}

// Unsubscribe removes the subscription and closes its event stream.
// Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		n := s.notifier
		n.mu.Lock()
		delete(n.subs, s.id)
		total := len(n.subs)
		n.mu.Unlock()

		close(s.done)
		close(s.events)
		n.logger.Debug("subscriber removed", "subscriber", s.id, "total", total)
	})
}

// Publish delivers the event to every currently subscribed listener.
// Delivery is best effort per subscriber: a full buffer drops the event for
// that subscriber rather than blocking the publisher.
func (n *Notifier) Publish(person store.Person) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	if n.closed {
		return
	}

	for id, sub := range n.subs {
		select {
		case sub.events <- person:
		default:
			n.logger.Warn("subscriber buffer full, dropping event",
				"subscriber", id, "person", person.Name)
		}
	}
}

// SubscriberCount returns the number of live subscriptions
func (n *Notifier) SubscriberCount() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.subs)
}

// Close tears down the notifier and every live subscription.
// Publish and Subscribe become no-ops afterwards.
func (n *Notifier) Close() {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return
	}
	n.closed = true
	subs := make([]*Subscription, 0, len(n.subs))
	for _, sub := range n.subs {
		subs = append(subs, sub)
	}
	n.mu.Unlock()

	for _, sub := range subs {
		sub.Unsubscribe()
	}

	n.logger.Debug("notifier closed")
}
