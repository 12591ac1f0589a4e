package workerpool

import (
	"context"
	"errors"
	"runtime/debug"
	"time"

	dserrors "github.com/vnykmshr/dispatch/pkg/common/errors"
	"github.com/vnykmshr/dispatch/pkg/common/validation"
	"github.com/vnykmshr/dispatch/pkg/report"
	"github.com/vnykmshr/dispatch/pkg/scheduling/queue"
)

// Submit adds a job to the pool for execution.
//
// It returns errors.ErrClosed once shutdown has begun, and errors.ErrFull when
// the queue is bounded, full and configured with the Reject policy. With the
// Block policy it waits for space.
func (p *Pool) Submit(job Job) error {
	return p.SubmitWithContext(context.Background(), job)
}

// SubmitWithTimeout submits a job, giving up with errors.ErrTimeout if it
// cannot be queued within timeout.
func (p *Pool) SubmitWithTimeout(job Job, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	err := p.SubmitWithContext(ctx, job)
	if errors.Is(err, context.DeadlineExceeded) {
		return dserrors.NewOperationError("workerpool", "SubmitWithTimeout", dserrors.ErrTimeout).
			WithContext("waited " + timeout.String())
	}
	return err
}

// SubmitWithContext adds a job to the pool. The context bounds only the wait
// for queue space; it is not passed to the job.
func (p *Pool) SubmitWithContext(ctx context.Context, job Job) error {
	if err := validation.ValidateNotNil("workerpool", "job", job); err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if p.State() != Running {
		p.observeRejected(dserrors.ErrClosed)
		return dserrors.ErrClosed
	}

	// Check if context is already canceled before attempting to queue
	if err := ctx.Err(); err != nil {
		p.observeRejected(err)
		return err
	}

	if err := p.queue.Submit(ctx, envelope{job: job, enqueued: time.Now()}); err != nil {
		p.observeRejected(err)
		return err
	}

	p.totalSubmitted.Add(1)
	if m := p.metrics.Load(); m != nil {
		m.jobSubmitted(p)
	}
	return nil
}

// Shutdown stops accepting jobs, lets the workers drain every job already
// accepted, and blocks until all workers have stopped. It is idempotent and
// safe to call from several goroutines; every caller returns only once the
// pool is Terminated.
//
// Shutdown must not be called from inside a job of the same pool.
func (p *Pool) Shutdown() {
	p.beginShutdown()
	<-p.done
}

// ShutdownContext is like Shutdown but stops waiting when ctx ends. The drain
// continues in the background and no accepted job is dropped; call Shutdown
// or watch Done to learn when it finishes.
func (p *Pool) ShutdownContext(ctx context.Context) error {
	p.beginShutdown()

	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return dserrors.NewOperationError("workerpool", "Shutdown", ctx.Err()).
			WithContext("pool still draining")
	}
}

// Done returns a channel closed when the pool reaches Terminated.
func (p *Pool) Done() <-chan struct{} {
	return p.done
}

func (p *Pool) beginShutdown() {
	p.shutdownOnce.Do(func() {
		p.state.Store(int32(ShuttingDown))
		p.logger.Debug().Int("queued", p.queue.Len()).Msg("worker pool shutting down")

		// Takers drain what is queued, then see (zero, false) and exit.
		p.queue.Close()

		go func() {
			p.wg.Wait()
			p.state.Store(int32(Terminated))
			if m := p.metrics.Load(); m != nil {
				m.refresh(p)
			}
			p.logger.Debug().
				Int64("completed", p.totalCompleted.Load()).
				Int64("failed", p.totalFailed.Load()).
				Msg("worker pool terminated")
			close(p.done)
		}()
	})
}

// Name returns the pool name used in logs, reports and metrics.
func (p *Pool) Name() string {
	return p.name
}

// Size returns the number of workers in the pool.
func (p *Pool) Size() int {
	return len(p.workers)
}

// QueueSize returns the current number of queued jobs waiting for execution.
func (p *Pool) QueueSize() int {
	return p.queue.Len()
}

// QueueStats returns a snapshot of the underlying queue's counters.
func (p *Pool) QueueStats() queue.Stats {
	return p.queue.Stats()
}

// ActiveWorkers returns the number of workers currently executing jobs.
func (p *Pool) ActiveWorkers() int {
	return int(p.active.Load())
}

// State returns the pool lifecycle state.
func (p *Pool) State() State {
	return State(p.state.Load())
}

// WorkerStates returns the current state of every worker, indexed by worker ID.
func (p *Pool) WorkerStates() []WorkerState {
	states := make([]WorkerState, len(p.workers))
	for i, w := range p.workers {
		states[i] = w.State()
	}
	return states
}

// TotalSubmitted returns the total number of jobs accepted by the pool.
func (p *Pool) TotalSubmitted() int64 {
	return p.totalSubmitted.Load()
}

// TotalCompleted returns the number of jobs that finished, failed ones included.
func (p *Pool) TotalCompleted() int64 {
	return p.totalCompleted.Load()
}

// TotalFailed returns the number of jobs that returned an error or panicked.
func (p *Pool) TotalFailed() int64 {
	return p.totalFailed.Load()
}

func (p *Pool) observeRejected(err error) {
	if m := p.metrics.Load(); m != nil {
		m.jobRejected(err)
	}
}

// run is the main loop for a worker.
func (w *Worker) run() {
	p := w.pool
	defer p.wg.Done()

	if p.config.OnWorkerStart != nil {
		w.hook("OnWorkerStart", func() { p.config.OnWorkerStart(w.id) })
	}
	p.logger.Debug().Int("worker_id", w.id).Msg("worker started")

	for {
		env, ok := p.queue.Take()
		if !ok {
			break
		}
		w.execute(env)
	}

	w.state.Store(int32(WorkerStopped))
	if p.config.OnWorkerStop != nil {
		w.hook("OnWorkerStop", func() { p.config.OnWorkerStop(w.id) })
	}
	p.logger.Debug().Int("worker_id", w.id).Msg("worker stopped")
}

// execute runs a single job and records its outcome.
func (w *Worker) execute(env envelope) {
	p := w.pool

	w.state.Store(int32(WorkerExecuting))
	p.active.Add(1)

	start := time.Now()
	wait := start.Sub(env.enqueued)
	m := p.metrics.Load()
	if m != nil {
		m.jobStarted(p, wait)
	}

	if p.config.OnJobStart != nil {
		w.hook("OnJobStart", func() { p.config.OnJobStart(w.id, env.job) })
	}

	err := w.runJob(env.job)

	result := Result{
		Job:       env.job,
		Err:       err,
		Duration:  time.Since(start),
		QueueWait: wait,
		WorkerID:  w.id,
	}

	if err != nil {
		p.totalFailed.Add(1)
		w.reportFailure(err)
	}
	p.totalCompleted.Add(1)

	if p.config.OnJobComplete != nil {
		w.hook("OnJobComplete", func() { p.config.OnJobComplete(w.id, result) })
	}

	p.active.Add(-1)
	w.state.Store(int32(WorkerIdle))
	if m != nil {
		m.jobFinished(p, result)
	}
}

// runJob executes the job, converting a panic into an *errors.PanicError.
func (w *Worker) runJob(job Job) (err error) {
	ctx := w.pool.baseCtx
	if timeout := w.pool.config.JobTimeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			err = dserrors.NewPanicError(r, debug.Stack())
		}
	}()

	return job.Execute(ctx)
}

// hook runs a lifecycle callback, reporting a panic instead of propagating it.
func (w *Worker) hook(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			err := dserrors.NewOperationError("workerpool", name, dserrors.NewPanicError(r, debug.Stack()))
			w.reportFailure(err)
		}
	}()
	fn()
}

func (w *Worker) reportFailure(err error) {
	f := report.NewFailure(report.JobFailure, w.pool.name, err)
	f.WorkerID = w.id
	report.Deliver(w.pool.baseCtx, w.pool.reporter, f)
}
