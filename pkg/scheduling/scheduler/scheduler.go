package scheduler

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	dserrors "github.com/vnykmshr/dispatch/pkg/common/errors"
	"github.com/vnykmshr/dispatch/pkg/common/validation"
	"github.com/vnykmshr/dispatch/pkg/logging"
	"github.com/vnykmshr/dispatch/pkg/metrics"
	"github.com/vnykmshr/dispatch/pkg/scheduling/workerpool"
)

const (
	// DefaultTickInterval is how often ready entries are checked for.
	DefaultTickInterval = 50 * time.Millisecond

	// DefaultMaxEntries caps the number of live entries.
	DefaultMaxEntries = 10000

	maxIDLength = 255
)

var (
	// ErrDuplicateID is returned when an entry with the same ID is scheduled.
	ErrDuplicateID = errors.New("scheduler: entry already exists")

	// ErrLimitReached is returned when MaxEntries entries are already scheduled.
	ErrLimitReached = errors.New("scheduler: maximum number of entries reached")
)

// Entry describes a scheduled job.
type Entry struct {
	ID       string
	NextRun  time.Time
	Interval time.Duration // Zero for one-time and cron entries
	CronExpr string        // Empty unless scheduled with ScheduleCron
	Created  time.Time

	// Dispatched counts the runs handed to the pool.
	Dispatched int64
}

// Config holds scheduler configuration.
type Config struct {
	// Pool executes due jobs. When nil the scheduler creates and owns a pool
	// of four workers, shut down by Stop.
	Pool *workerpool.Pool

	// Name identifies the scheduler in logs and metrics.
	Name string

	// Location is used to evaluate cron expressions. Defaults to time.Local.
	Location *time.Location

	// TickInterval is how often to check for ready entries (default: 50ms).
	TickInterval time.Duration

	// MaxEntries is the maximum number of scheduled entries (default: 10000).
	MaxEntries int

	// Logger receives dispatch and rejection events. Nil disables logging.
	Logger *zerolog.Logger

	// Metrics configures Prometheus collection. The zero value disables it.
	Metrics metrics.Config
}

type entry struct {
	id       string
	job      workerpool.Job
	next     time.Time
	interval time.Duration
	cronExpr string
	schedule cron.Schedule
	created  time.Time

	dispatched int64
	seq        uint64
	index      int
}

// Scheduler dispatches jobs into a worker pool at given times, at fixed
// intervals, or on cron schedules.
type Scheduler struct {
	pool         *workerpool.Pool
	ownPool      bool
	name         string
	location     *time.Location
	tickInterval time.Duration
	maxEntries   int
	logger       zerolog.Logger
	metrics      *metrics.Registry

	mu       sync.Mutex
	entries  map[string]*entry
	queue    entryHeap
	seq      uint64
	running  bool
	stopped  bool
	cancel   context.CancelFunc
	loopDone chan struct{}
}

// New creates a scheduler with the given configuration. It does not start
// dispatching until Start is called.
func New(cfg Config) (*Scheduler, error) {
	if err := validation.ValidateNonNegativeDuration("scheduler", "TickInterval", cfg.TickInterval); err != nil {
		return nil, err
	}
	if err := validation.ValidateNonNegative("scheduler", "MaxEntries", cfg.MaxEntries); err != nil {
		return nil, err
	}

	name := cfg.Name
	if name == "" {
		name = "default"
	}
	logger := logging.OrNop(cfg.Logger).With().
		Str("component", "scheduler").
		Str("scheduler", name).
		Logger()

	pool := cfg.Pool
	ownPool := false
	if pool == nil {
		var err error
		pool, err = workerpool.NewWithConfig(workerpool.Config{
			WorkerCount: 4,
			QueueSize:   100,
			Name:        name,
			Logger:      cfg.Logger,
		})
		if err != nil {
			return nil, err
		}
		ownPool = true
	}

	location := cfg.Location
	if location == nil {
		location = time.Local
	}

	tickInterval := cfg.TickInterval
	if tickInterval == 0 {
		tickInterval = DefaultTickInterval
	}

	maxEntries := cfg.MaxEntries
	if maxEntries == 0 {
		maxEntries = DefaultMaxEntries
	}

	registry, err := cfg.Metrics.Build()
	if err != nil {
		if ownPool {
			pool.Shutdown()
		}
		return nil, err
	}

	return &Scheduler{
		pool:         pool,
		ownPool:      ownPool,
		name:         name,
		location:     location,
		tickInterval: tickInterval,
		maxEntries:   maxEntries,
		logger:       logger,
		metrics:      registry,
		entries:      make(map[string]*entry),
	}, nil
}

// Schedule runs job once at runAt. A runAt in the past runs on the next tick.
func (s *Scheduler) Schedule(id string, job workerpool.Job, runAt time.Time) error {
	if err := validateEntry(id, job); err != nil {
		return err
	}
	if runAt.IsZero() {
		return dserrors.NewValidationError("scheduler", "runAt", runAt, "cannot be zero")
	}

	return s.add(&entry{id: id, job: job, next: runAt})
}

// ScheduleAfter runs job once after delay.
func (s *Scheduler) ScheduleAfter(id string, job workerpool.Job, delay time.Duration) error {
	return s.Schedule(id, job, time.Now().Add(delay))
}

// ScheduleRepeating runs job now and then every interval until canceled.
func (s *Scheduler) ScheduleRepeating(id string, job workerpool.Job, interval time.Duration) error {
	if err := validateEntry(id, job); err != nil {
		return err
	}
	if interval <= 0 {
		return dserrors.NewValidationError("scheduler", "interval", interval, "must be positive")
	}

	return s.add(&entry{id: id, job: job, next: time.Now(), interval: interval})
}

// Cancel removes an entry. It reports false when no entry has that ID.
// A run already handed to the pool is not affected.
func (s *Scheduler) Cancel(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return false
	}
	s.removeLocked(e)
	s.updateGaugeLocked()
	return true
}

// CancelAll removes every entry.
func (s *Scheduler) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make(map[string]*entry)
	s.queue = nil
	s.updateGaugeLocked()
}

// List returns all entries ordered by next run time.
func (s *Scheduler) List() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, Entry{
			ID:         e.id,
			NextRun:    e.next,
			Interval:   e.interval,
			CronExpr:   e.cronExpr,
			Created:    e.created,
			Dispatched: e.dispatched,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].NextRun.Before(out[j].NextRun)
	})
	return out
}

// Len returns the number of scheduled entries.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Pool returns the pool jobs are dispatched into.
func (s *Scheduler) Pool() *workerpool.Pool {
	return s.pool
}

// Start begins dispatching. It fails if the scheduler is already running or
// has been stopped.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return dserrors.ErrClosed
	}
	if s.running {
		return fmt.Errorf("scheduler already running, call Stop() first")
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.running = true
	s.cancel = cancel
	s.loopDone = make(chan struct{})

	go s.run(ctx, s.loopDone)
	s.logger.Debug().Dur("tick", s.tickInterval).Msg("scheduler started")
	return nil
}

// Stop halts dispatching. The returned channel closes once the dispatch loop
// has exited and, when the scheduler owns its pool, the pool has drained.
func (s *Scheduler) Stop() <-chan struct{} {
	s.mu.Lock()
	if s.running {
		s.running = false
		s.cancel()
	}
	s.stopped = true
	loopDone := s.loopDone
	s.mu.Unlock()

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		if loopDone != nil {
			<-loopDone
		}
		if s.ownPool {
			s.pool.Shutdown()
		}
		s.logger.Debug().Msg("scheduler stopped")
	}()

	return stopped
}

func (s *Scheduler) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.dispatchReady(ctx, now)
		}
	}
}

// dispatchReady submits every entry due at now, rescheduling repeating ones.
func (s *Scheduler) dispatchReady(ctx context.Context, now time.Time) {
	s.mu.Lock()
	var ready []*entry
	for {
		e := s.queue.peek()
		if e == nil || e.next.After(now) {
			break
		}
		ready = append(ready, e)
		e.dispatched++

		switch {
		case e.interval > 0:
			e.next = now.Add(e.interval)
			heap.Fix(&s.queue, e.index)
		case e.schedule != nil:
			e.next = e.schedule.Next(now.In(s.location))
			if e.next.IsZero() {
				// No firing time left within the cron search window.
				s.removeLocked(e)
				continue
			}
			heap.Fix(&s.queue, e.index)
		default:
			s.removeLocked(e)
		}
	}
	if len(ready) > 0 {
		s.updateGaugeLocked()
	}
	s.mu.Unlock()

	for _, e := range ready {
		err := s.pool.SubmitWithContext(ctx, e.job)
		if err != nil {
			s.logger.Warn().Err(err).Str("entry", e.id).Msg("scheduled job rejected")
			if s.metrics != nil {
				s.metrics.SchedulerRejected.WithLabelValues(s.name).Inc()
			}
			continue
		}
		s.logger.Debug().Str("entry", e.id).Msg("scheduled job dispatched")
		if s.metrics != nil {
			s.metrics.SchedulerDispatched.WithLabelValues(s.name).Inc()
		}
	}
}

func (s *Scheduler) add(e *entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[e.id]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateID, e.id)
	}
	if len(s.entries) >= s.maxEntries {
		return fmt.Errorf("%w (%d)", ErrLimitReached, s.maxEntries)
	}

	s.seq++
	e.seq = s.seq
	e.created = time.Now()
	s.entries[e.id] = e
	heap.Push(&s.queue, e)
	s.updateGaugeLocked()
	return nil
}

// removeLocked drops e from the map and the heap (must hold lock).
func (s *Scheduler) removeLocked(e *entry) {
	delete(s.entries, e.id)
	if e.index >= 0 && e.index < len(s.queue) && s.queue[e.index] == e {
		heap.Remove(&s.queue, e.index)
	}
}

func (s *Scheduler) updateGaugeLocked() {
	if s.metrics != nil {
		s.metrics.ScheduledEntries.WithLabelValues(s.name).Set(float64(len(s.entries)))
	}
}

func validateEntry(id string, job workerpool.Job) error {
	if err := validation.ValidateNotEmpty("scheduler", "id", id); err != nil {
		return err
	}
	if err := validation.ValidateMaxLength("scheduler", "id", id, maxIDLength); err != nil {
		return err
	}
	return validation.ValidateNotNil("scheduler", "job", job)
}
