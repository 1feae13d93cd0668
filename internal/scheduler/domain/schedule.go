package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"

	validation "github.com/jellydator/validation"
	cronlib "github.com/robfig/cron/v3"

	"github.com/allisson/courier/internal/errors"
	customValidation "github.com/allisson/courier/internal/validation"
)

// Schedule computes the next execution time of a recurring task.
type Schedule interface {
	// Next returns the first execution time strictly after now.
	Next(now time.Time) time.Time
	String() string
}

// cronParser supports standard 5-field cron and descriptors like "@every 30s".
var cronParser = cronlib.NewParser(
	cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow | cronlib.Descriptor,
)

type fixedDelay struct {
	delay time.Duration
}

// FixedDelay runs the task delay after the previous completion.
func FixedDelay(delay time.Duration) (Schedule, error) {
	if delay <= 0 {
		return nil, errors.Wrapf(ErrInvalidSchedule, "fixed delay must be positive, got %s", delay)
	}
	return fixedDelay{delay: delay}, nil
}

func (f fixedDelay) Next(now time.Time) time.Time {
	return now.Add(f.delay)
}

func (f fixedDelay) String() string {
	return "fixed-delay(" + f.delay.String() + ")"
}

type clockTime struct {
	hour   int
	minute int
}

type daily struct {
	loc   *time.Location
	times []clockTime
}

// Daily runs the task every day at each of the given HH:MM wall-clock times in loc.
func Daily(loc *time.Location, times ...string) (Schedule, error) {
	if loc == nil {
		loc = time.UTC
	}
	if len(times) == 0 {
		return nil, errors.Wrap(ErrInvalidSchedule, "daily schedule needs at least one time")
	}

	parsed := make([]clockTime, 0, len(times))
	for _, t := range times {
		if err := validation.Validate(t, validation.Required, customValidation.ClockTime); err != nil {
			return nil, errors.Wrapf(ErrInvalidSchedule, "daily time %q: %v", t, err)
		}
		var ct clockTime
		if _, err := fmt.Sscanf(t, "%d:%d", &ct.hour, &ct.minute); err != nil {
			return nil, errors.Wrapf(ErrInvalidSchedule, "daily time %q: %v", t, err)
		}
		parsed = append(parsed, ct)
	}

	sort.Slice(parsed, func(i, j int) bool {
		if parsed[i].hour != parsed[j].hour {
			return parsed[i].hour < parsed[j].hour
		}
		return parsed[i].minute < parsed[j].minute
	})

	return daily{loc: loc, times: parsed}, nil
}

func (d daily) Next(now time.Time) time.Time {
	local := now.In(d.loc)
	for day := 0; day <= 1; day++ {
		y, m, dd := local.AddDate(0, 0, day).Date()
		for _, ct := range d.times {
			candidate := time.Date(y, m, dd, ct.hour, ct.minute, 0, 0, d.loc)
			if candidate.After(now) {
				return candidate.UTC()
			}
		}
	}
	// Unreachable: the first time of tomorrow is always after now.
	y, m, dd := local.AddDate(0, 0, 2).Date()
	return time.Date(y, m, dd, d.times[0].hour, d.times[0].minute, 0, 0, d.loc).UTC()
}

func (d daily) String() string {
	parts := make([]string, 0, len(d.times))
	for _, ct := range d.times {
		parts = append(parts, fmt.Sprintf("%02d:%02d", ct.hour, ct.minute))
	}
	return "daily(" + strings.Join(parts, ",") + " " + d.loc.String() + ")"
}

type cronSchedule struct {
	expr     string
	schedule cronlib.Schedule
}

// Cron runs the task on a cron expression, e.g. "0 3 * * *" or "@every 1h".
func Cron(expr string) (Schedule, error) {
	schedule, err := cronParser.Parse(expr)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidSchedule, "cron %q: %v", expr, err)
	}
	if schedule.Next(time.Now()).IsZero() {
		return nil, errors.Wrapf(ErrInvalidSchedule, "cron %q never fires", expr)
	}
	return cronSchedule{expr: expr, schedule: schedule}, nil
}

// cronHorizon is returned past now when the expression has no firing inside the parser's
// search window, keeping Next strictly after now.
const cronHorizon = 5 * 365 * 24 * time.Hour

func (c cronSchedule) Next(now time.Time) time.Time {
	next := c.schedule.Next(now)
	if next.IsZero() {
		return now.Add(cronHorizon).UTC()
	}
	return next.UTC()
}

func (c cronSchedule) String() string {
	return "cron(" + c.expr + ")"
}
