package scheduler

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/vnykmshr/dispatch/internal/testutil"
	dserrors "github.com/vnykmshr/dispatch/pkg/common/errors"
	"github.com/vnykmshr/dispatch/pkg/events/eventbus"
	"github.com/vnykmshr/dispatch/pkg/metrics"
	"github.com/vnykmshr/dispatch/pkg/report"
	"github.com/vnykmshr/dispatch/pkg/scheduling/workerpool"
)

func newStarted(t *testing.T, cfg Config) *Scheduler {
	t.Helper()
	if cfg.TickInterval == 0 {
		cfg.TickInterval = 5 * time.Millisecond
	}
	s, err := New(cfg)
	testutil.AssertNoError(t, err)
	testutil.AssertNoError(t, s.Start())
	return s
}

func counting(n *int32) workerpool.Job {
	return workerpool.JobFunc(func(context.Context) error {
		atomic.AddInt32(n, 1)
		return nil
	})
}

func TestScheduler_BasicScheduling(t *testing.T) {
	s := newStarted(t, Config{})
	defer func() { <-s.Stop() }()

	var executed int32
	job := counting(&executed)

	// Test immediate scheduling
	testutil.AssertNoError(t, s.Schedule("test1", job, time.Now()))

	// Test delayed scheduling
	testutil.AssertNoError(t, s.ScheduleAfter("test2", job, 30*time.Millisecond))

	testutil.WaitForInt32(t, &executed, 2, time.Second)
	testutil.Eventually(t, func() bool { return s.Len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestScheduler_RepeatingJob(t *testing.T) {
	s := newStarted(t, Config{})
	defer func() { <-s.Stop() }()

	var executed int32
	testutil.AssertNoError(t, s.ScheduleRepeating("repeat", counting(&executed), 20*time.Millisecond))

	testutil.Eventually(t, func() bool { return atomic.LoadInt32(&executed) >= 3 }, time.Second, 5*time.Millisecond)

	entries := s.List()
	testutil.AssertEqual(t, len(entries), 1)
	testutil.AssertEqual(t, entries[0].Interval, 20*time.Millisecond)
	if entries[0].Dispatched < 3 {
		t.Errorf("dispatched %d, want >= 3", entries[0].Dispatched)
	}
}

func TestScheduler_CronJob(t *testing.T) {
	s := newStarted(t, Config{})
	defer func() { <-s.Stop() }()

	var executed int32
	testutil.AssertNoError(t, s.ScheduleCron("cron", "@every 1s", counting(&executed)))

	next, ok := s.NextRun("cron")
	testutil.AssertEqual(t, ok, true)
	if time.Until(next) > time.Second+50*time.Millisecond {
		t.Errorf("next run too far away: %v", next)
	}

	testutil.WaitForInt32(t, &executed, 1, 2*time.Second)
	testutil.AssertEqual(t, s.List()[0].CronExpr, "@every 1s")
}

func TestScheduler_Cancel(t *testing.T) {
	s := newStarted(t, Config{})
	defer func() { <-s.Stop() }()

	var executed int32
	testutil.AssertNoError(t, s.ScheduleAfter("later", counting(&executed), 100*time.Millisecond))
	testutil.AssertNoError(t, s.ScheduleAfter("other", counting(&executed), time.Hour))

	testutil.AssertEqual(t, s.Cancel("later"), true)
	testutil.AssertEqual(t, s.Cancel("later"), false)
	testutil.AssertEqual(t, s.Len(), 1)

	time.Sleep(150 * time.Millisecond)
	testutil.AssertEqual(t, atomic.LoadInt32(&executed), int32(0))

	s.CancelAll()
	testutil.AssertEqual(t, s.Len(), 0)
	_, ok := s.NextRun("other")
	testutil.AssertEqual(t, ok, false)
}

func TestScheduler_Validation(t *testing.T) {
	s, err := New(Config{})
	testutil.AssertNoError(t, err)
	defer func() { <-s.Stop() }()

	var n int32
	job := counting(&n)

	testutil.AssertErrorIs(t, s.Schedule("", job, time.Now()), dserrors.ErrInvalidConfiguration)
	testutil.AssertErrorIs(t, s.Schedule(strings.Repeat("x", 256), job, time.Now()), dserrors.ErrInvalidConfiguration)
	testutil.AssertErrorIs(t, s.Schedule("nil", nil, time.Now()), dserrors.ErrInvalidConfiguration)
	testutil.AssertErrorIs(t, s.Schedule("zero", job, time.Time{}), dserrors.ErrInvalidConfiguration)
	testutil.AssertErrorIs(t, s.ScheduleRepeating("neg", job, 0), dserrors.ErrInvalidConfiguration)
	testutil.AssertErrorIs(t, s.ScheduleCron("bad", "not a cron", job), dserrors.ErrInvalidConfiguration)
	testutil.AssertErrorIs(t, s.ScheduleCron("empty", "", job), dserrors.ErrInvalidConfiguration)
	testutil.AssertErrorIs(t, s.Schedule("typed-nil", workerpool.JobFunc(nil), time.Now()), dserrors.ErrInvalidConfiguration)

	testutil.AssertNoError(t, s.ScheduleAfter("dup", job, time.Hour))
	testutil.AssertErrorIs(t, s.ScheduleAfter("dup", job, time.Hour), ErrDuplicateID)

	_, err = New(Config{TickInterval: -time.Second})
	testutil.AssertErrorIs(t, err, dserrors.ErrInvalidConfiguration)
}

func TestScheduler_CronNeverFires(t *testing.T) {
	s, err := New(Config{})
	testutil.AssertNoError(t, err)
	defer func() { <-s.Stop() }()

	var n int32
	err = s.ScheduleCron("feb30", "0 0 30 2 *", counting(&n))
	testutil.AssertErrorIs(t, err, dserrors.ErrInvalidConfiguration)
	if !strings.Contains(err.Error(), "never fires") {
		t.Errorf("unexpected error: %v", err)
	}
	testutil.AssertEqual(t, s.Len(), 0)
}

// lastRun fires once at the time it is given and never again.
type lastRun struct{}

func (lastRun) Next(time.Time) time.Time { return time.Time{} }

func TestScheduler_ExhaustedCronEntryIsRemoved(t *testing.T) {
	s := newStarted(t, Config{})
	defer func() { <-s.Stop() }()

	var executed int32
	testutil.AssertNoError(t, s.add(&entry{
		id:       "final",
		job:      counting(&executed),
		next:     time.Now(),
		cronExpr: "final",
		schedule: lastRun{},
	}))

	testutil.WaitForInt32(t, &executed, 1, time.Second)

	lenDone := make(chan int, 1)
	go func() { lenDone <- s.Len() }()
	select {
	case n := <-lenDone:
		testutil.AssertEqual(t, n, 0)
	case <-time.After(time.Second):
		t.Fatal("scheduler lock not released after the last cron run")
	}

	time.Sleep(30 * time.Millisecond)
	testutil.AssertEqual(t, atomic.LoadInt32(&executed), int32(1))
}

func TestScheduler_MaxEntries(t *testing.T) {
	s, err := New(Config{MaxEntries: 2})
	testutil.AssertNoError(t, err)
	defer func() { <-s.Stop() }()

	var n int32
	testutil.AssertNoError(t, s.ScheduleAfter("a", counting(&n), time.Hour))
	testutil.AssertNoError(t, s.ScheduleAfter("b", counting(&n), time.Hour))
	testutil.AssertErrorIs(t, s.ScheduleAfter("c", counting(&n), time.Hour), ErrLimitReached)
}

func TestScheduler_ListOrderedByNextRun(t *testing.T) {
	s, err := New(Config{})
	testutil.AssertNoError(t, err)
	defer func() { <-s.Stop() }()

	var n int32
	testutil.AssertNoError(t, s.ScheduleAfter("third", counting(&n), 3*time.Hour))
	testutil.AssertNoError(t, s.ScheduleAfter("first", counting(&n), time.Hour))
	testutil.AssertNoError(t, s.ScheduleAfter("second", counting(&n), 2*time.Hour))

	var ids []string
	for _, e := range s.List() {
		ids = append(ids, e.ID)
	}
	testutil.AssertSliceEqual(t, ids, []string{"first", "second", "third"})
}

func TestScheduler_StartStop(t *testing.T) {
	s, err := New(Config{})
	testutil.AssertNoError(t, err)

	testutil.AssertNoError(t, s.Start())
	testutil.AssertError(t, s.Start())

	<-s.Stop()
	<-s.Stop()
	testutil.AssertErrorIs(t, s.Start(), dserrors.ErrClosed)

	// An owned pool is shut down with the scheduler.
	testutil.AssertEqual(t, s.Pool().State(), workerpool.Terminated)
}

func TestScheduler_SharedPoolOutlivesScheduler(t *testing.T) {
	pool := workerpool.New(2, 10)
	defer pool.Shutdown()

	s := newStarted(t, Config{Pool: pool})
	var executed int32
	testutil.AssertNoError(t, s.Schedule("once", counting(&executed), time.Now()))
	testutil.WaitForInt32(t, &executed, 1, time.Second)
	<-s.Stop()

	testutil.AssertEqual(t, pool.State(), workerpool.Running)
	testutil.AssertNoError(t, pool.Submit(counting(&executed)))
}

func TestScheduler_RejectedDispatch(t *testing.T) {
	pool := workerpool.New(1, 1)
	pool.Shutdown()

	reg := prometheus.NewRegistry()
	s := newStarted(t, Config{
		Pool:    pool,
		Name:    "rejects",
		Metrics: metrics.Config{Enabled: true, Registry: reg},
	})
	defer func() { <-s.Stop() }()

	var n int32
	testutil.AssertNoError(t, s.Schedule("once", counting(&n), time.Now()))

	testutil.Eventually(t, func() bool {
		count, err := promtest.GatherAndCount(reg, "dispatch_scheduler_rejected_total")
		return err == nil && count == 1
	}, time.Second, 5*time.Millisecond)
	testutil.AssertEqual(t, atomic.LoadInt32(&n), int32(0))
}

func TestScheduler_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	s := newStarted(t, Config{
		Name:    "metered",
		Metrics: metrics.Config{Enabled: true, Registry: reg},
	})
	defer func() { <-s.Stop() }()

	var n int32
	testutil.AssertNoError(t, s.Schedule("now", counting(&n), time.Now()))
	testutil.AssertNoError(t, s.ScheduleAfter("later", counting(&n), time.Hour))
	testutil.WaitForInt32(t, &n, 1, time.Second)

	testutil.Eventually(t, func() bool {
		count, err := promtest.GatherAndCount(reg, "dispatch_scheduler_dispatched_total")
		return err == nil && count == 1
	}, time.Second, 5*time.Millisecond)

	expected := `
# HELP dispatch_scheduler_entries Number of entries currently scheduled
# TYPE dispatch_scheduler_entries gauge
dispatch_scheduler_entries{scheduler_name="metered"} 1
`
	testutil.AssertNoError(t, promtest.GatherAndCompare(reg, strings.NewReader(expected), "dispatch_scheduler_entries"))
}

func TestBackoffJob(t *testing.T) {
	var attempts int32
	job := BackoffJob{
		Job: workerpool.JobFunc(func(context.Context) error {
			if atomic.AddInt32(&attempts, 1) < 3 {
				return errors.New("transient")
			}
			return nil
		}),
		MaxRetries:   5,
		InitialDelay: time.Millisecond,
		MaxDelay:     4 * time.Millisecond,
	}

	testutil.AssertNoError(t, job.Execute(context.Background()))
	testutil.AssertEqual(t, atomic.LoadInt32(&attempts), int32(3))
}

func TestBackoffJobExhausted(t *testing.T) {
	var attempts int32
	job := BackoffJob{
		Job: workerpool.JobFunc(func(context.Context) error {
			atomic.AddInt32(&attempts, 1)
			return errors.New("permanent")
		}),
		MaxRetries:   2,
		InitialDelay: time.Millisecond,
	}

	err := job.Execute(context.Background())
	testutil.AssertError(t, err)
	testutil.AssertEqual(t, err.Error(), "permanent")
	testutil.AssertEqual(t, atomic.LoadInt32(&attempts), int32(3))
}

func TestBackoffJobCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	job := BackoffJob{
		Job: workerpool.JobFunc(func(context.Context) error {
			cancel()
			return errors.New("fail")
		}),
		MaxRetries:   3,
		InitialDelay: time.Hour,
	}

	testutil.AssertErrorIs(t, job.Execute(ctx), context.Canceled)
}

func TestPublishJob(t *testing.T) {
	bus := eventbus.New[string](eventbus.Config{Reporter: report.Nop()})
	var got testutil.Recorder[string]
	bus.Subscribe("tick", func(_ context.Context, ev eventbus.Event[string]) error {
		got.Add(ev.Payload)
		return nil
	})

	s := newStarted(t, Config{})
	defer func() { <-s.Stop() }()

	testutil.AssertNoError(t, s.Schedule("tick", PublishJob(bus, "tick", func(time.Time) string { return "ping" }), time.Now()))
	testutil.Eventually(t, func() bool { return got.Len() == 1 }, time.Second, 5*time.Millisecond)
	testutil.AssertSliceEqual(t, got.Values(), []string{"ping"})
}

func TestDescribeCron(t *testing.T) {
	from := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	desc, err := DescribeCron("0 9 * * *", from, time.UTC)
	testutil.AssertNoError(t, err)

	testutil.AssertEqual(t, desc.TimeZone, "UTC")
	testutil.AssertEqual(t, desc.Description, "Custom schedule: 0 9 * * *")
	testutil.AssertEqual(t, len(desc.NextRuns), 5)
	testutil.AssertEqual(t, desc.NextRuns[0].Equal(time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)), true)
	testutil.AssertEqual(t, desc.NextRuns[1].Equal(time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)), true)

	daily, err := DescribeCron("@daily", from, time.UTC)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, daily.Description, "Once a day (at midnight)")

	testutil.AssertNoError(t, ValidateCronExpression("*/10 * * * * *"))
	testutil.AssertError(t, ValidateCronExpression("61 * * * *"))
}

func TestScheduler_MetricsRegistrationError(t *testing.T) {
	cfg := metrics.Config{Enabled: true, Registry: prometheus.NewRegistry(), Labels: prometheus.Labels{"env": "test"}}

	s, err := New(Config{Metrics: cfg})
	testutil.AssertNoError(t, err)
	defer func() { <-s.Stop() }()

	// The second scheduler's own pool is shut down again when its metrics fail.
	dup, err := New(Config{Metrics: cfg})
	testutil.AssertError(t, err)
	if dup != nil {
		t.Fatal("expected nil scheduler")
	}
}
