/*
Package eventbus provides in-process, synchronous publish/subscribe keyed by
topic.

A Bus owns a Registry mapping each topic to its handlers in subscription
order. Publish takes a snapshot of a topic's handlers under a read lock,
releases the lock, and then calls each handler in turn on the publishing
goroutine:

	bus := eventbus.New[Order](eventbus.Config{Name: "orders"})

	id := bus.Subscribe("order.created", func(ctx context.Context, ev eventbus.Event[Order]) error {
		return index(ctx, ev.Payload)
	})

	n := bus.Publish(ctx, "order.created", order) // handlers invoked
	bus.Unsubscribe(id)

Because no lock is held during delivery, a handler may publish, subscribe or
unsubscribe on the same bus. Those changes affect later publishes, never the
snapshot already being delivered.

A handler that returns an error or panics is reported to Config.Reporter as a
report.HandlerFailure and counted; the publisher and the remaining handlers
are unaffected. Publishing to a topic with no subscribers is not an error and
returns 0.

SubscribeOnce registers a handler that runs for at most one publish, even
when several goroutines publish to its topic at the same time.
*/
package eventbus
