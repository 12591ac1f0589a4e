package workerpool

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/vnykmshr/dispatch/pkg/common/validation"
	"github.com/vnykmshr/dispatch/pkg/logging"
	"github.com/vnykmshr/dispatch/pkg/report"
	"github.com/vnykmshr/dispatch/pkg/scheduling/queue"
)

// Job represents a unit of work that can be executed by a worker.
type Job interface {
	// Execute runs the job. A returned error is reported and discarded; it
	// never stops the worker.
	Execute(ctx context.Context) error
}

// JobFunc is a function type that implements the Job interface.
type JobFunc func(ctx context.Context) error

// Execute implements the Job interface for JobFunc.
func (f JobFunc) Execute(ctx context.Context) error {
	return f(ctx)
}

// Result describes one finished job. It is passed to Config.OnJobComplete.
type Result struct {
	// Job is the original job that was executed
	Job Job

	// Err is the error returned by the job, or an *errors.PanicError if it panicked
	Err error

	// Duration is how long the job took to execute
	Duration time.Duration

	// QueueWait is how long the job waited in the queue before a worker took it
	QueueWait time.Duration

	// WorkerID identifies which worker executed the job
	WorkerID int
}

// WorkerState is the observable state of a single worker.
type WorkerState int32

const (
	// WorkerIdle means the worker is waiting for a job.
	WorkerIdle WorkerState = iota
	// WorkerExecuting means the worker is running a job.
	WorkerExecuting
	// WorkerStopped means the worker saw a closed, drained queue and exited.
	WorkerStopped
)

func (s WorkerState) String() string {
	switch s {
	case WorkerIdle:
		return "idle"
	case WorkerExecuting:
		return "executing"
	case WorkerStopped:
		return "stopped"
	default:
		return fmt.Sprintf("WorkerState(%d)", int32(s))
	}
}

// State is the lifecycle state of a Pool.
type State int32

const (
	// Running pools accept jobs.
	Running State = iota
	// ShuttingDown pools reject new jobs and drain the queue.
	ShuttingDown
	// Terminated pools have no live workers. No transition leaves Terminated.
	Terminated
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case ShuttingDown:
		return "shutting_down"
	case Terminated:
		return "terminated"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// DefaultName names pools created without Config.Name.
const DefaultName = "default"

// Config holds configuration options for creating a worker pool.
type Config struct {
	// WorkerCount is the number of workers in the pool.
	// Must be greater than 0.
	WorkerCount int

	// QueueSize is the maximum number of jobs that can be queued.
	// If 0, the queue is unbounded.
	QueueSize int

	// Overflow selects what Submit does when a bounded queue is full.
	// The zero value is queue.Block.
	Overflow queue.Policy

	// JobTimeout bounds the context handed to each job. Zero means no timeout.
	// Cancellation is cooperative; a job ignoring its context runs to completion.
	JobTimeout time.Duration

	// Name identifies the pool in logs, failure reports and metrics.
	Name string

	// Logger receives lifecycle events at debug level. Nil disables logging.
	Logger *zerolog.Logger

	// Reporter receives every job failure. Nil logs failures through Logger,
	// or through zerolog's global logger when Logger is nil too.
	Reporter report.Reporter

	// OnWorkerStart is called when a worker starts.
	// Useful for per-worker initialization (e.g., database connections).
	OnWorkerStart func(workerID int)

	// OnWorkerStop is called when a worker stops.
	// Useful for per-worker cleanup.
	OnWorkerStop func(workerID int)

	// OnJobStart is called before a job begins execution.
	OnJobStart func(workerID int, job Job)

	// OnJobComplete is called after a job completes (success or failure).
	OnJobComplete func(workerID int, result Result)
}

// Pool runs jobs on a fixed set of workers fed by a shared queue.
type Pool struct {
	config   Config
	name     string
	logger   zerolog.Logger
	reporter report.Reporter
	baseCtx  context.Context

	queue   *queue.Queue[envelope]
	workers []*Worker
	wg      sync.WaitGroup

	state        atomic.Int32
	shutdownOnce sync.Once
	done         chan struct{}

	active         atomic.Int32
	totalSubmitted atomic.Int64
	totalCompleted atomic.Int64
	totalFailed    atomic.Int64

	metrics atomic.Pointer[poolMetrics]
}

// envelope is what travels through the queue.
type envelope struct {
	job      Job
	enqueued time.Time
}

// Worker is one execution unit of a pool.
type Worker struct {
	id    int
	pool  *Pool
	state atomic.Int32
}

// ID returns the worker's index, 0..Size()-1.
func (w *Worker) ID() int { return w.id }

// State returns the worker's current state.
func (w *Worker) State() WorkerState { return WorkerState(w.state.Load()) }

// New creates a new worker pool with the specified number of workers and queue size.
// It panics on invalid arguments; use NewWithConfig to get an error instead.
func New(workerCount, queueSize int) *Pool {
	p, err := NewWithConfig(Config{
		WorkerCount: workerCount,
		QueueSize:   queueSize,
	})
	if err != nil {
		panic(err)
	}
	return p
}

// NewWithConfig creates a new worker pool and starts all of its workers.
func NewWithConfig(config Config) (*Pool, error) {
	if err := validation.ValidatePositive("workerpool", "WorkerCount", config.WorkerCount); err != nil {
		return nil, err
	}
	if err := validation.ValidateNonNegative("workerpool", "QueueSize", config.QueueSize); err != nil {
		return nil, err
	}
	if err := validation.ValidateNonNegativeDuration("workerpool", "JobTimeout", config.JobTimeout); err != nil {
		return nil, err
	}

	q, err := queue.NewWithConfig[envelope](queue.Config{
		Capacity: config.QueueSize,
		Policy:   config.Overflow,
	})
	if err != nil {
		return nil, err
	}

	name := config.Name
	if name == "" {
		name = DefaultName
	}
	logger := logging.OrNop(config.Logger).With().
		Str("component", "workerpool").
		Str("pool", name).
		Logger()

	reporter := config.Reporter
	if reporter == nil {
		reporter = report.NewLogReporter(logging.OrGlobal(config.Logger).With().
			Str("component", "workerpool").
			Str("pool", name).
			Logger())
	}

	p := &Pool{
		config:   config,
		name:     name,
		logger:   logger,
		reporter: reporter,
		baseCtx:  logger.WithContext(context.Background()),
		queue:    q,
		done:     make(chan struct{}),
	}

	p.workers = make([]*Worker, config.WorkerCount)
	for i := range p.workers {
		p.workers[i] = &Worker{id: i, pool: p}
	}

	p.wg.Add(len(p.workers))
	for _, w := range p.workers {
		go w.run()
	}

	p.logger.Debug().
		Int("workers", config.WorkerCount).
		Int("queue_size", config.QueueSize).
		Stringer("overflow", config.Overflow).
		Msg("worker pool started")

	return p, nil
}
