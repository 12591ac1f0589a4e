// Package report delivers contained job and handler failures to an external sink.
//
// Workers and the event bus never let a failing unit of work escape; instead
// they build a Failure and hand it to a Reporter. Reporters are called inline
// on the worker or publishing goroutine, so they should be quick.
package report

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	dserrors "github.com/vnykmshr/dispatch/pkg/common/errors"
	"github.com/vnykmshr/dispatch/pkg/metrics"
)

// Kind classifies where a failure was contained.
type Kind string

const (
	// JobFailure is a job that returned an error or panicked inside a worker.
	JobFailure Kind = "job"

	// HandlerFailure is an event handler that returned an error or panicked during publish.
	HandlerFailure Kind = "handler"
)

// Failure describes one contained failure.
type Failure struct {
	// ID uniquely identifies the report. Filled in by Deliver when empty.
	ID string

	Kind Kind

	// Component is the name of the pool or bus that contained the failure.
	Component string

	// WorkerID is the executing worker for job failures, -1 otherwise.
	WorkerID int

	// Topic and Subscription identify the handler for handler failures.
	Topic        string
	Subscription uint64

	Err error

	// Panicked is set when Err wraps a recovered panic; Stack then holds the
	// goroutine stack captured at recovery.
	Panicked bool
	Stack    []byte

	Time time.Time
}

// Reporter receives contained failures.
type Reporter interface {
	Report(ctx context.Context, f Failure)
}

// Func adapts a function to the Reporter interface.
type Func func(ctx context.Context, f Failure)

// Report implements Reporter.
func (fn Func) Report(ctx context.Context, f Failure) {
	fn(ctx, f)
}

type nopReporter struct{}

func (nopReporter) Report(context.Context, Failure) {}

// Nop returns a Reporter that discards everything.
func Nop() Reporter {
	return nopReporter{}
}

type multiReporter []Reporter

func (m multiReporter) Report(ctx context.Context, f Failure) {
	for _, r := range m {
		Deliver(ctx, r, f)
	}
}

// Multi fans each failure out to every non-nil reporter in order. A panic in
// one reporter does not prevent the others from running.
func Multi(reporters ...Reporter) Reporter {
	out := make(multiReporter, 0, len(reporters))
	for _, r := range reporters {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

type metricsReporter struct {
	next     Reporter
	registry *metrics.Registry
}

func (m metricsReporter) Report(ctx context.Context, f Failure) {
	m.registry.FailuresReported.WithLabelValues(string(f.Kind), f.Component).Inc()
	Deliver(ctx, m.next, f)
}

// WithMetrics counts every failure in registry before forwarding to next.
// A nil registry returns next unchanged.
func WithMetrics(next Reporter, registry *metrics.Registry) Reporter {
	if registry == nil {
		return next
	}
	if next == nil {
		next = Nop()
	}
	return metricsReporter{next: next, registry: registry}
}

// NewFailure builds a Failure from an error returned or recovered by a unit of
// work, detecting wrapped panics.
func NewFailure(kind Kind, component string, err error) Failure {
	f := Failure{
		Kind:      kind,
		Component: component,
		WorkerID:  -1,
		Err:       err,
	}
	var perr *dserrors.PanicError
	if errors.As(err, &perr) {
		f.Panicked = true
		f.Stack = perr.Stack
	}
	return f
}

// Deliver fills in ID and Time when missing and calls r.Report. A panicking
// reporter is recovered so that reporting can never take down the caller.
func Deliver(ctx context.Context, r Reporter, f Failure) {
	if r == nil {
		return
	}
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.Time.IsZero() {
		f.Time = time.Now()
	}
	defer func() {
		if rec := recover(); rec != nil {
			zerolog.Ctx(ctx).Error().
				Str("failure_id", f.ID).
				Str("reporter", fmt.Sprintf("%T", r)).
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Msg("failure reporter panicked")
		}
	}()
	r.Report(ctx, f)
}
