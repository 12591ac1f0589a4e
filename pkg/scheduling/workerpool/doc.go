/*
Package workerpool runs jobs on a fixed set of worker goroutines fed by a
shared FIFO queue.

The number of workers is fixed when the pool is created and every worker is
started immediately. Producers submit jobs from any goroutine; workers take
them in submission order and run them one at a time. A job that returns an
error or panics is reported and discarded, and its worker moves on to the next
job.

Basic usage:

	pool := workerpool.New(4, 100) // 4 workers, queue size 100
	defer pool.Shutdown()

	job := workerpool.JobFunc(func(ctx context.Context) error {
		// Do work
		return nil
	})

	if err := pool.Submit(job); err != nil {
		log.Printf("Failed to submit: %v", err)
	}

Job Interface:

Jobs implement a simple interface:

	type Job interface {
		Execute(ctx context.Context) error
	}

Jobs produce no results for the pool. Anything a job computes should be
published by the job itself, for example on a channel it closes over or
through an event bus.

Configuration Options:

	pool, err := workerpool.NewWithConfig(workerpool.Config{
		WorkerCount: 8,
		QueueSize:   1000,
		Overflow:    queue.Reject,
		JobTimeout:  30 * time.Second,
		Name:        "ingest",
		Logger:      &logger,
		Reporter:    report.Multi(report.NewLogReporter(logger), redisReporter),
		OnJobComplete: func(workerID int, result workerpool.Result) {
			log.Printf("worker %d finished in %v", workerID, result.Duration)
		},
	})

Queue Configurations:

	// Bounded queue, submitters wait for space
	pool := workerpool.New(4, 100)

	// Unbounded queue, must be asked for explicitly
	pool := workerpool.New(4, 0)

	// Bounded queue that fails fast with errors.ErrFull
	pool, _ := workerpool.NewWithConfig(workerpool.Config{
		WorkerCount: 4, QueueSize: 100, Overflow: queue.Reject,
	})

Failure Handling:

Failures never escape a worker. Each one becomes a report.Failure of kind
report.JobFailure carrying the worker ID and, for panics, the recovered value
(as *errors.PanicError) and the stack trace. Without Config.Reporter,
failures are logged through Config.Logger. Panics in lifecycle hooks are
contained the same way.

Graceful Shutdown:

Shutdown is the only way to stop a pool:

	pool.Shutdown() // blocks until every accepted job has run

	// Or bound how long the caller waits; the drain carries on regardless.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := pool.ShutdownContext(ctx); err != nil {
		log.Printf("still draining: %v", err)
	}

Once Shutdown has been called every submission fails with errors.ErrClosed
without blocking. Shutdown is idempotent and may be called from several
goroutines at once; each call returns when the pool is Terminated. Calling it
from inside one of the pool's own jobs deadlocks.

Monitoring and Metrics:

	fmt.Printf("State: %s\n", pool.State())
	fmt.Printf("Queue size: %d\n", pool.QueueSize())
	fmt.Printf("Active workers: %d\n", pool.ActiveWorkers())
	fmt.Printf("Completed: %d, failed: %d\n", pool.TotalCompleted(), pool.TotalFailed())

NewWithMetrics and EnableMetrics export the same figures to Prometheus
through the metrics package.

Thread Safety:

All pool operations are safe for concurrent use from multiple goroutines.
*/
package workerpool
