package errors_test

import (
	"context"
	"errors"
	"testing"
	"time"

	dserrors "github.com/vnykmshr/dispatch/pkg/common/errors"
	"github.com/vnykmshr/dispatch/pkg/report"
	"github.com/vnykmshr/dispatch/pkg/scheduling/queue"
	"github.com/vnykmshr/dispatch/pkg/scheduling/workerpool"
)

// The tests below check the errors the dispatch packages actually return.

func TestQueueErrors(t *testing.T) {
	q, err := queue.NewWithConfig[int](queue.Config{Capacity: 1, Policy: queue.Reject})
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if err := q.Submit(ctx, 1); err != nil {
		t.Fatal(err)
	}
	err = q.Submit(ctx, 2)
	if !errors.Is(err, dserrors.ErrFull) || !dserrors.IsRetryable(err) {
		t.Errorf("full queue: got %v, want retryable ErrFull", err)
	}

	q.Close()
	err = q.TrySubmit(3)
	if !errors.Is(err, dserrors.ErrClosed) || dserrors.IsRetryable(err) {
		t.Errorf("closed queue: got %v, want non-retryable ErrClosed", err)
	}

	_, err = queue.NewWithConfig[int](queue.Config{Capacity: -1})
	var verr *dserrors.ValidationError
	if !errors.As(err, &verr) || verr.Module != "queue" || verr.Field != "Capacity" {
		t.Errorf("negative capacity: got %v", err)
	}

	_, err = queue.ParsePolicy("drop")
	if !errors.As(err, &verr) || verr.Hint == "" {
		t.Errorf("unknown policy: got %v, want ValidationError with a hint", err)
	}
}

func TestPoolErrors(t *testing.T) {
	var failures []report.Failure
	done := make(chan struct{})
	pool, err := workerpool.NewWithConfig(workerpool.Config{
		WorkerCount: 1,
		QueueSize:   1,
		Reporter: report.Func(func(_ context.Context, f report.Failure) {
			failures = append(failures, f)
			close(done)
		}),
	})
	if err != nil {
		t.Fatal(err)
	}

	release := make(chan struct{})
	started := make(chan struct{})
	_ = pool.Submit(workerpool.JobFunc(func(context.Context) error {
		close(started)
		<-release
		panic("ledger corrupted")
	}))
	<-started
	_ = pool.Submit(workerpool.JobFunc(func(context.Context) error { return nil }))

	err = pool.SubmitWithTimeout(workerpool.JobFunc(func(context.Context) error { return nil }), 10*time.Millisecond)
	var opErr *dserrors.OperationError
	if !errors.As(err, &opErr) || opErr.Module != "workerpool" || opErr.Operation != "SubmitWithTimeout" {
		t.Fatalf("submit timeout: got %v", err)
	}
	if !errors.Is(err, dserrors.ErrTimeout) || !dserrors.IsRetryable(err) {
		t.Errorf("submit timeout should wrap ErrTimeout and be retryable: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	err = pool.ShutdownContext(ctx)
	if !errors.As(err, &opErr) || !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("shutdown deadline: got %v", err)
	}

	close(release)
	pool.Shutdown()
	<-done

	if len(failures) != 1 {
		t.Fatalf("got %d failures, want 1", len(failures))
	}
	var perr *dserrors.PanicError
	if !errors.As(failures[0].Err, &perr) || perr.Value != "ledger corrupted" {
		t.Errorf("panic failure: got %v", failures[0].Err)
	}

	err = pool.Submit(workerpool.JobFunc(func(context.Context) error { return nil }))
	if !errors.Is(err, dserrors.ErrClosed) {
		t.Errorf("submit after shutdown: got %v", err)
	}
}
