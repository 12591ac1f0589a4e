package eventbus

import (
	"context"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	dserrors "github.com/vnykmshr/dispatch/pkg/common/errors"
	"github.com/vnykmshr/dispatch/pkg/logging"
	"github.com/vnykmshr/dispatch/pkg/report"
)

// DefaultName names buses created without Config.Name.
const DefaultName = "default"

// Config holds configuration for a Bus.
type Config struct {
	// Name identifies the bus in logs, failure reports and metrics.
	Name string

	// Logger receives subscription changes at debug level. Nil disables logging.
	Logger *zerolog.Logger

	// Reporter receives every handler failure. Nil logs failures through
	// Logger, or through zerolog's global logger when Logger is nil too.
	Reporter report.Reporter
}

// Bus delivers published payloads to the handlers subscribed to a topic.
// Delivery is synchronous: Publish returns after every handler in its
// snapshot has run on the publishing goroutine.
type Bus[T any] struct {
	name     string
	logger   zerolog.Logger
	reporter report.Reporter
	registry *Registry[T]

	published   atomic.Int64
	invocations atomic.Int64
	failures    atomic.Int64

	metrics atomic.Pointer[busMetrics]
}

// New creates a bus with an empty registry.
func New[T any](config Config) *Bus[T] {
	name := config.Name
	if name == "" {
		name = DefaultName
	}
	logger := logging.OrNop(config.Logger).With().
		Str("component", "eventbus").
		Str("bus", name).
		Logger()

	reporter := config.Reporter
	if reporter == nil {
		reporter = report.NewLogReporter(logging.OrGlobal(config.Logger).With().
			Str("component", "eventbus").
			Str("bus", name).
			Logger())
	}

	return &Bus[T]{
		name:     name,
		logger:   logger,
		reporter: reporter,
		registry: NewRegistry[T](),
	}
}

// Name returns the bus name used in logs, reports and metrics.
func (b *Bus[T]) Name() string {
	return b.name
}

// Subscribe registers handler for topic. Handlers of a topic run in the order
// they subscribed. It panics on a nil handler.
func (b *Bus[T]) Subscribe(topic string, handler Handler[T]) SubscriptionID {
	id := b.registry.Subscribe(topic, handler)
	b.logger.Debug().Stringer("subscription", id).Msg("subscribed")
	b.subscriptionsChanged()
	return id
}

// SubscribeOnce registers handler for the next publish on topic only.
func (b *Bus[T]) SubscribeOnce(topic string, handler Handler[T]) SubscriptionID {
	id := b.registry.SubscribeOnce(topic, handler)
	b.logger.Debug().Stringer("subscription", id).Bool("once", true).Msg("subscribed")
	b.subscriptionsChanged()
	return id
}

// Unsubscribe removes a subscription and reports whether it existed.
// A publish already in progress may still invoke the handler once.
func (b *Bus[T]) Unsubscribe(id SubscriptionID) bool {
	ok := b.registry.Unsubscribe(id)
	if ok {
		b.logger.Debug().Stringer("subscription", id).Msg("unsubscribed")
		b.subscriptionsChanged()
	}
	return ok
}

// Publish invokes every handler subscribed to topic at the moment of the
// call, in subscription order, and returns how many were invoked. Failing
// handlers are reported; the rest still run.
//
// No lock is held while handlers run, so handlers may publish, subscribe or
// unsubscribe on the same bus. Changes they make apply to later publishes.
func (b *Bus[T]) Publish(ctx context.Context, topic string, payload T) int {
	if ctx == nil {
		ctx = context.Background()
	}

	start := time.Now()
	subs := b.registry.HandlersFor(topic)
	ev := Event[T]{Topic: topic, Payload: payload, PublishedAt: start}

	failed := 0
	for _, sub := range subs {
		if err := invoke(ctx, sub.Handler, ev); err != nil {
			failed++
			f := report.NewFailure(report.HandlerFailure, b.name, err)
			f.Topic = topic
			f.Subscription = sub.ID.Seq
			report.Deliver(ctx, b.reporter, f)
		}
	}

	b.published.Add(1)
	b.invocations.Add(int64(len(subs)))
	b.failures.Add(int64(failed))

	if m := b.metrics.Load(); m != nil {
		m.published(topic, len(subs), failed, time.Since(start))
		if hasOnce(subs) {
			m.subscriptions(b.registry.Total())
		}
	}

	return len(subs)
}

// HandlerCount returns the number of handlers subscribed to topic.
func (b *Bus[T]) HandlerCount(topic string) int {
	return b.registry.Len(topic)
}

// Topics returns the topics with at least one subscriber, sorted.
func (b *Bus[T]) Topics() []string {
	return b.registry.Topics()
}

// Clear drops every subscription.
func (b *Bus[T]) Clear() {
	b.registry.Clear()
	b.logger.Debug().Msg("subscriptions cleared")
	b.subscriptionsChanged()
}

// Stats reports publish activity since the bus was created.
type Stats struct {
	Published     int64
	Invocations   int64
	Failures      int64
	Subscriptions int
}

// Stats returns a snapshot of the bus counters.
func (b *Bus[T]) Stats() Stats {
	return Stats{
		Published:     b.published.Load(),
		Invocations:   b.invocations.Load(),
		Failures:      b.failures.Load(),
		Subscriptions: b.registry.Total(),
	}
}

func (b *Bus[T]) subscriptionsChanged() {
	if m := b.metrics.Load(); m != nil {
		m.subscriptions(b.registry.Total())
	}
}

// invoke runs one handler, converting a panic into an *errors.PanicError.
func invoke[T any](ctx context.Context, h Handler[T], ev Event[T]) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = dserrors.NewPanicError(r, debug.Stack())
		}
	}()
	return h(ctx, ev)
}

func hasOnce[T any](subs []Subscription[T]) bool {
	for _, s := range subs {
		if s.Once {
			return true
		}
	}
	return false
}
