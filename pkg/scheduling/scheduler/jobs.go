package scheduler

import (
	"context"
	"time"

	"github.com/vnykmshr/dispatch/pkg/events/eventbus"
	"github.com/vnykmshr/dispatch/pkg/scheduling/workerpool"
)

// BackoffJob wraps a job with retry logic.
type BackoffJob struct {
	Job          workerpool.Job
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// Execute implements workerpool.Job with exponential backoff. It returns the
// last error once the retries are used up.
func (bj BackoffJob) Execute(ctx context.Context) error {
	var lastErr error
	delay := bj.InitialDelay

	for attempt := 0; attempt <= bj.MaxRetries; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			}
		}

		lastErr = bj.Job.Execute(ctx)
		if lastErr == nil {
			return nil
		}

		// Double delay for next attempt
		delay *= 2
		if bj.MaxDelay > 0 && delay > bj.MaxDelay {
			delay = bj.MaxDelay
		}
	}

	return lastErr
}

// PublishJob returns a job that publishes the value produced by payload to
// topic on bus. Scheduling it gives timed events.
func PublishJob[T any](bus *eventbus.Bus[T], topic string, payload func(time.Time) T) workerpool.Job {
	return workerpool.JobFunc(func(ctx context.Context) error {
		bus.Publish(ctx, topic, payload(time.Now()))
		return nil
	})
}
