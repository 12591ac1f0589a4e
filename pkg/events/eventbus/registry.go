package eventbus

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	dserrors "github.com/vnykmshr/dispatch/pkg/common/errors"
)

// Event is what a handler receives for one publish.
type Event[T any] struct {
	Topic       string
	Payload     T
	PublishedAt time.Time
}

// Handler reacts to an event. A returned error or a panic is reported as a
// handler failure; it never affects the publisher or sibling handlers.
type Handler[T any] func(ctx context.Context, ev Event[T]) error

// SubscriptionID identifies one registration. Seq is unique across the whole
// registry, so an ID is never reused, even after Clear.
type SubscriptionID struct {
	Topic string
	Seq   uint64
}

func (id SubscriptionID) String() string {
	return fmt.Sprintf("%s#%d", id.Topic, id.Seq)
}

// Subscription is a registered handler as returned in a snapshot.
type Subscription[T any] struct {
	ID      SubscriptionID
	Handler Handler[T]

	// Once subscriptions are removed by the first snapshot that includes them.
	Once bool
}

// Registry maps topics to their handlers in subscription order.
//
// Mutations take the write lock; HandlersFor takes the read lock and returns a
// copy, so callers invoke handlers without holding any lock.
type Registry[T any] struct {
	mu     sync.RWMutex
	topics map[string][]Subscription[T]
	once   map[string]int // pending once-subscriptions per topic
	seq    uint64
	total  int
}

// NewRegistry creates an empty registry.
func NewRegistry[T any]() *Registry[T] {
	return &Registry[T]{
		topics: make(map[string][]Subscription[T]),
		once:   make(map[string]int),
	}
}

// Subscribe appends handler to topic and returns its ID. It panics on a nil
// handler.
func (r *Registry[T]) Subscribe(topic string, handler Handler[T]) SubscriptionID {
	return r.add(topic, handler, false)
}

// SubscribeOnce is Subscribe for a handler that runs for at most one publish.
func (r *Registry[T]) SubscribeOnce(topic string, handler Handler[T]) SubscriptionID {
	return r.add(topic, handler, true)
}

func (r *Registry[T]) add(topic string, handler Handler[T], once bool) SubscriptionID {
	if handler == nil {
		panic(dserrors.NewValidationError("eventbus", "handler", nil, "cannot be nil"))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	id := SubscriptionID{Topic: topic, Seq: r.seq}
	r.topics[topic] = append(r.topics[topic], Subscription[T]{ID: id, Handler: handler, Once: once})
	if once {
		r.once[topic]++
	}
	r.total++
	return id
}

// Unsubscribe removes the subscription with the given ID. It reports false
// when no such subscription exists, including when it was already removed.
func (r *Registry[T]) Unsubscribe(id SubscriptionID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	subs := r.topics[id.Topic]
	i := slices.IndexFunc(subs, func(s Subscription[T]) bool { return s.ID == id })
	if i < 0 {
		return false
	}

	if subs[i].Once {
		r.once[id.Topic]--
	}
	r.setLocked(id.Topic, slices.Delete(subs, i, i+1))
	r.total--
	return true
}

// HandlersFor returns a point-in-time copy of topic's subscriptions in
// subscription order. Once-subscriptions in the copy are removed from the
// registry before HandlersFor returns, so concurrent snapshots never both
// see the same one.
func (r *Registry[T]) HandlersFor(topic string) []Subscription[T] {
	r.mu.RLock()
	if r.once[topic] == 0 {
		out := slices.Clone(r.topics[topic])
		r.mu.RUnlock()
		return out
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	subs := r.topics[topic]
	out := slices.Clone(subs)
	if r.once[topic] > 0 {
		kept := make([]Subscription[T], 0, len(subs))
		for _, s := range subs {
			if !s.Once {
				kept = append(kept, s)
			}
		}
		r.total -= len(subs) - len(kept)
		delete(r.once, topic)
		r.setLocked(topic, kept)
	}
	return out
}

// Len returns the number of handlers subscribed to topic.
func (r *Registry[T]) Len(topic string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.topics[topic])
}

// Total returns the number of subscriptions across all topics.
func (r *Registry[T]) Total() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.total
}

// Topics returns the topics with at least one subscription, sorted.
func (r *Registry[T]) Topics() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	topics := make([]string, 0, len(r.topics))
	for topic := range r.topics {
		topics = append(topics, topic)
	}
	sort.Strings(topics)
	return topics
}

// Clear removes every subscription. Sequence numbers keep increasing.
func (r *Registry[T]) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.topics = make(map[string][]Subscription[T])
	r.once = make(map[string]int)
	r.total = 0
}

// setLocked stores subs for topic, dropping empty topics (must hold lock).
func (r *Registry[T]) setLocked(topic string, subs []Subscription[T]) {
	if len(subs) == 0 {
		delete(r.topics, topic)
		delete(r.once, topic)
		return
	}
	r.topics[topic] = subs
}
