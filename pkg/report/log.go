package report

import (
	"context"

	"github.com/rs/zerolog"
)

// LogReporter writes each failure as one structured error line.
type LogReporter struct {
	logger zerolog.Logger
}

// NewLogReporter creates a LogReporter writing to logger.
func NewLogReporter(logger zerolog.Logger) *LogReporter {
	return &LogReporter{logger: logger}
}

// Report implements Reporter.
//
// Line format: level=error, message "job failed" or "handler failed", with
// fields failure_id, kind, component, worker_id (jobs) or topic and
// subscription (handlers), panicked, error, and stack when panicked.
func (r *LogReporter) Report(_ context.Context, f Failure) {
	ev := r.logger.Error().
		Str("failure_id", f.ID).
		Str("kind", string(f.Kind)).
		Str("component", f.Component).
		Time("failed_at", f.Time).
		Bool("panicked", f.Panicked).
		Err(f.Err)

	switch f.Kind {
	case JobFailure:
		ev = ev.Int("worker_id", f.WorkerID)
	case HandlerFailure:
		ev = ev.Str("topic", f.Topic).Uint64("subscription", f.Subscription)
	}
	if f.Panicked && len(f.Stack) > 0 {
		ev = ev.Bytes("stack", f.Stack)
	}
	ev.Msg(string(f.Kind) + " failed")
}
