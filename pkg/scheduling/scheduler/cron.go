package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	dserrors "github.com/vnykmshr/dispatch/pkg/common/errors"
	"github.com/vnykmshr/dispatch/pkg/scheduling/workerpool"
)

// cronParser accepts standard five-field expressions, an optional leading
// seconds field, and descriptors such as "@hourly" or "@every 5m".
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// CronDescription provides human-readable information about a cron expression.
type CronDescription struct {
	Expression  string
	Description string
	NextRuns    []time.Time // Next 5 execution times
	TimeZone    string
}

// ScheduleCron runs job each time the cron expression fires, evaluated in
// the scheduler's location.
//
// Examples:
//
//	"0 */2 * * *"     - Every 2 hours
//	"30 14 * * 1-5"   - 2:30 PM on weekdays
//	"*/10 * * * * *"  - Every 10 seconds
//	"@every 1m30s"    - Every 90 seconds
//	"@daily"          - Every day at midnight
func (s *Scheduler) ScheduleCron(id, cronExpr string, job workerpool.Job) error {
	if err := validateEntry(id, job); err != nil {
		return err
	}

	schedule, err := parseCron(cronExpr)
	if err != nil {
		return err
	}

	next := schedule.Next(time.Now().In(s.location))
	if next.IsZero() {
		return dserrors.NewValidationError("scheduler", "cronExpr", cronExpr, "expression never fires")
	}

	return s.add(&entry{
		id:       id,
		job:      job,
		next:     next,
		cronExpr: cronExpr,
		schedule: schedule,
	})
}

// NextRun returns the next dispatch time of an entry.
func (s *Scheduler) NextRun(id string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return time.Time{}, false
	}
	return e.next, true
}

// ValidateCronExpression validates a cron expression without scheduling it.
func ValidateCronExpression(cronExpr string) error {
	_, err := parseCron(cronExpr)
	return err
}

// DescribeCron returns a description of cronExpr and its next five firing
// times after from, evaluated in loc (time.Local when nil).
func DescribeCron(cronExpr string, from time.Time, loc *time.Location) (CronDescription, error) {
	schedule, err := parseCron(cronExpr)
	if err != nil {
		return CronDescription{}, err
	}
	if loc == nil {
		loc = time.Local
	}

	nextRuns := make([]time.Time, 5)
	current := from.In(loc)
	for i := range nextRuns {
		current = schedule.Next(current)
		nextRuns[i] = current
	}

	return CronDescription{
		Expression:  cronExpr,
		Description: describe(cronExpr),
		NextRuns:    nextRuns,
		TimeZone:    loc.String(),
	}, nil
}

func parseCron(cronExpr string) (cron.Schedule, error) {
	if cronExpr == "" {
		return nil, dserrors.NewValidationError("scheduler", "cronExpr", cronExpr, "cannot be empty")
	}
	schedule, err := cronParser.Parse(cronExpr)
	if err != nil {
		return nil, dserrors.NewValidationError("scheduler", "cronExpr", cronExpr, err.Error()).
			WithHint(`use five fields ("m h dom mon dow"), six with seconds, or a descriptor like "@hourly"`)
	}
	return schedule, nil
}

// describe generates a human-readable description.
func describe(cronExpr string) string {
	switch cronExpr {
	case "@yearly", "@annually":
		return "Once a year (January 1st at midnight)"
	case "@monthly":
		return "Once a month (1st day at midnight)"
	case "@weekly":
		return "Once a week (Sunday at midnight)"
	case "@daily", "@midnight":
		return "Once a day (at midnight)"
	case "@hourly":
		return "Once an hour (at minute 0)"
	}
	return fmt.Sprintf("Custom schedule: %s", cronExpr)
}
