/*
Package scheduler dispatches jobs into a worker pool at a point in time, at a
fixed interval, or on a cron schedule.

The scheduler never runs jobs itself. On every tick it pops the entries that
are due from a min-heap ordered by next run time and submits their jobs to
the configured workerpool.Pool, so scheduled work obeys the same queueing,
failure containment and shutdown rules as any other job.

Basic Usage:

	pool := workerpool.New(4, 100)
	defer pool.Shutdown()

	s, err := scheduler.New(scheduler.Config{Pool: pool})
	if err != nil {
		return err
	}
	s.Start()
	defer func() { <-s.Stop() }()

	// Once, at a given time or after a delay
	s.Schedule("report", job, time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC))
	s.ScheduleAfter("warmup", job, 5*time.Minute)

	// Every interval, starting on the next tick
	s.ScheduleRepeating("heartbeat", job, 30*time.Second)

	// Cron expressions, with optional seconds field and descriptors
	s.ScheduleCron("weekday-digest", "0 9 * * MON-FRI", job)
	s.ScheduleCron("poll", "@every 10s", job)

Timed Events:

PublishJob wraps an event bus publish in a job, so a schedule can drive
events:

	s.ScheduleRepeating("tick", scheduler.PublishJob(bus, "clock.tick", func(now time.Time) time.Time {
		return now
	}), time.Second)

Retries:

BackoffJob retries a failing job with exponential backoff inside a single
dispatch:

	s.ScheduleCron("sync", "@hourly", scheduler.BackoffJob{
		Job:          syncJob,
		MaxRetries:   3,
		InitialDelay: time.Second,
		MaxDelay:     30 * time.Second,
	})

Rejections:

If the pool refuses a dispatch (it is shutting down, or its queue is full
with the Reject policy) the run is skipped, logged at warn level and counted
in the scheduler_rejected_total metric. Repeating and cron entries stay
scheduled.

When Config.Pool is nil the scheduler creates its own small pool, which Stop
shuts down after the dispatch loop exits.
*/
package scheduler
