package schedule

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FieldKind tags the form of a parsed cron field.
type FieldKind int

// Field kinds.
const (
	Wildcard FieldKind = iota
	Value
	Interval
)

func (k FieldKind) String() string {
	switch k {
	case Wildcard:
		return "wildcard"
	case Value:
		return "value"
	case Interval:
		return "interval"
	}
	return "FieldKind(" + strconv.Itoa(int(k)) + ")"
}

// Field is one time-unit slot of a cron expression. N is the value for
// Value fields and the step for Interval fields.
type Field struct {
	Kind FieldKind
	N    int
}

// Matches reports whether v satisfies the field. Intervals count from zero.
func (f Field) Matches(v int) bool {
	switch f.Kind {
	case Value:
		return v == f.N
	case Interval:
		return v%f.N == 0
	default:
		return true
	}
}

func (f Field) String() string {
	switch f.Kind {
	case Value:
		return strconv.Itoa(f.N)
	case Interval:
		return "*/" + strconv.Itoa(f.N)
	default:
		return "*"
	}
}

// Cron is a parsed five-field cron expression.
type Cron struct {
	Minute     Field
	Hour       Field
	DayOfMonth Field
	Month      Field
	DayOfWeek  Field
}

func (c Cron) String() string {
	return strings.Join([]string{
		c.Minute.String(), c.Hour.String(), c.DayOfMonth.String(), c.Month.String(), c.DayOfWeek.String(),
	}, " ")
}

// CronError reports an unparseable cron expression.
type CronError struct {
	Expr   string
	Field  string
	Reason string
}

func (e *CronError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid cron expression %q: %s", e.Expr, e.Reason)
	}
	return fmt.Sprintf("invalid cron expression %q: %s: %s", e.Expr, e.Field, e.Reason)
}

// ErrNoNextRun is returned when no matching instant exists within the search
// horizon.
var ErrNoNextRun = errors.New("no matching time within search horizon")

// searchHorizon bounds NextRun so impossible combinations such as
// "0 0 31 2 *" terminate.
const searchHorizon = 4 * 366 * 24 * time.Hour

var fieldSpecs = [5]struct {
	name     string
	min, max int
}{
	{"minute", 0, 59},
	{"hour", 0, 23},
	{"day-of-month", 1, 31},
	{"month", 1, 12},
	{"day-of-week", 0, 6},
}

// ParseCron parses "minute hour day-of-month month day-of-week". Each field is
// "*", a single integer or "*/N".
func ParseCron(expr string) (Cron, error) {
	parts := strings.Fields(expr)
	if len(parts) != len(fieldSpecs) {
		return Cron{}, &CronError{Expr: expr, Reason: fmt.Sprintf("expected 5 fields, got %d", len(parts))}
	}
	var fields [5]Field
	for i, raw := range parts {
		spec := fieldSpecs[i]
		f, err := parseField(raw, spec.min, spec.max)
		if err != nil {
			return Cron{}, &CronError{Expr: expr, Field: spec.name, Reason: err.Error()}
		}
		fields[i] = f
	}
	return Cron{
		Minute:     fields[0],
		Hour:       fields[1],
		DayOfMonth: fields[2],
		Month:      fields[3],
		DayOfWeek:  fields[4],
	}, nil
}

func parseField(raw string, min, max int) (Field, error) {
	if raw == "*" {
		return Field{Kind: Wildcard}, nil
	}
	if step, ok := strings.CutPrefix(raw, "*/"); ok {
		n, err := strconv.Atoi(step)
		if err != nil {
			return Field{}, fmt.Errorf("invalid step %q", step)
		}
		if n < 1 || n > max {
			return Field{}, fmt.Errorf("step %d out of range 1-%d", n, max)
		}
		return Field{Kind: Interval, N: n}, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return Field{}, fmt.Errorf("invalid value %q", raw)
	}
	if n < min || n > max {
		return Field{}, fmt.Errorf("value %d out of range %d-%d", n, min, max)
	}
	return Field{Kind: Value, N: n}, nil
}

// Matches reports whether t, in its own location, satisfies every field.
// Day-of-month and day-of-week must both match.
func (c Cron) Matches(t time.Time) bool {
	return c.Minute.Matches(t.Minute()) &&
		c.Hour.Matches(t.Hour()) &&
		c.DayOfMonth.Matches(t.Day()) &&
		c.Month.Matches(int(t.Month())) &&
		c.DayOfWeek.Matches(int(t.Weekday()))
}

// Next returns the first minute strictly after from that matches c,
// evaluated in from's location.
func (c Cron) Next(from time.Time) (time.Time, error) {
	loc := from.Location()
	t := from.Truncate(time.Minute).Add(time.Minute)
	limit := t.Add(searchHorizon)

	for t.Before(limit) {
		if !c.Month.Matches(int(t.Month())) {
			t = time.Date(t.Year(), t.Month()+1, 1, 0, 0, 0, 0, loc)
			continue
		}
		if !c.DayOfMonth.Matches(t.Day()) || !c.DayOfWeek.Matches(int(t.Weekday())) {
			t = time.Date(t.Year(), t.Month(), t.Day()+1, 0, 0, 0, 0, loc)
			continue
		}
		if !c.Hour.Matches(t.Hour()) {
			t = time.Date(t.Year(), t.Month(), t.Day(), t.Hour()+1, 0, 0, 0, loc)
			continue
		}
		if !c.Minute.Matches(t.Minute()) {
			t = t.Add(time.Minute)
			continue
		}
		return t, nil
	}
	return time.Time{}, ErrNoNextRun
}

// NextRun parses expr and returns its next run strictly after from, in UTC.
func NextRun(expr string, from time.Time) (time.Time, error) {
	c, err := ParseCron(expr)
	if err != nil {
		return time.Time{}, err
	}
	next, err := c.Next(from)
	if err != nil {
		return time.Time{}, fmt.Errorf("next run of %q: %w", expr, err)
	}
	return next.UTC(), nil
}
