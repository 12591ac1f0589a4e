/*
Package dispatch provides a bounded worker pool and an in-process event bus
for concurrent Go applications.

Job Execution (pkg/scheduling):
  - queue: Shared FIFO with block or reject overflow policies
  - workerpool: Fixed workers, graceful draining shutdown, contained failures
  - scheduler: Delayed, repeating and cron dispatch into a pool

Events (pkg/events):
  - eventbus: Topic publish/subscribe with ordered, synchronous delivery

Supporting packages:
  - report: Failure reports for jobs and handlers (log, Redis stream)
  - metrics: Prometheus collectors for every component
  - config: Layered configuration for the dispatchd command
  - logging: zerolog setup

Example usage:

	import (
		"github.com/vnykmshr/dispatch/pkg/events/eventbus"
		"github.com/vnykmshr/dispatch/pkg/scheduling/workerpool"
	)

	pool := workerpool.New(5, 100) // 5 workers, queue 100
	defer pool.Shutdown()

	bus := eventbus.New[string](eventbus.Config{})
	bus.Subscribe("greet", func(ctx context.Context, ev eventbus.Event[string]) error {
		return pool.Submit(workerpool.JobFunc(func(ctx context.Context) error {
			fmt.Println("hello,", ev.Payload)
			return nil
		}))
	})
	bus.Publish(ctx, "greet", "world")
*/
package dispatch
