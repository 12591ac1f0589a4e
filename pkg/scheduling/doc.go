/*
Package scheduling provides job queueing and execution primitives.

  - queue: FIFO shared by many producers and many takers, bounded or not
  - workerpool: Fixed set of workers draining a shared queue
  - scheduler: Time-based and cron dispatch into a worker pool

Worker Pool:

The worker pool provides controlled concurrent execution:

	pool := workerpool.New(4, 100) // 4 workers, queue size 100
	defer pool.Shutdown()

	job := workerpool.JobFunc(func(ctx context.Context) error {
		// Do work
		return nil
	})

	if err := pool.Submit(job); err != nil {
		// errors.ErrClosed after Shutdown, errors.ErrFull under the Reject policy
	}

Failures never reach the submitter. A job that returns an error or panics
is handed to the pool's report.Reporter and its worker moves on.

Scheduler:

The scheduler dispatches jobs into a pool when they come due:

	s, _ := scheduler.New(scheduler.Config{Pool: pool})
	_ = s.Start()
	defer func() { <-s.Stop() }()

	_ = s.ScheduleAfter("warmup", job, time.Minute)
	_ = s.ScheduleRepeating("sync", job, time.Hour)
	_ = s.ScheduleCron("report", "0 9 * * MON-FRI", job) // Weekdays at 9 AM

All scheduling components are safe for concurrent use.
*/
package scheduling
