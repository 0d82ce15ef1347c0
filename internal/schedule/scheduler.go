// Package schedule runs reports on cron schedules.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/johnwards/insights/internal/aggregate"
	"github.com/johnwards/insights/internal/domain"
	"github.com/johnwards/insights/internal/notify"
	"github.com/johnwards/insights/internal/report"
)

const kind = "schedule"

// Scheduler is an in-memory registry of scheduled reports.
type Scheduler struct {
	reports *report.Manager
	loc     *time.Location
	now     func() time.Time
	policy  domain.FailurePolicy
	logger  *slog.Logger
	runs    RunLog

	mu        sync.RWMutex
	schedules map[string]*domain.ScheduledReport
}

// RunLog records the outcome of every scheduled execution.
type RunLog interface {
	Record(ctx context.Context, run domain.ScheduleRun) error
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLocation sets the zone cron expressions are evaluated in.
func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) { s.loc = loc }
}

// WithClock overrides the clock.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// WithFailurePolicy sets how RunDue handles a failing schedule.
func WithFailurePolicy(p domain.FailurePolicy) Option {
	return func(s *Scheduler) { s.policy = p }
}

// WithLogger sets the scheduler logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// WithRunLog records every execution RunDue performs.
func WithRunLog(l RunLog) Option {
	return func(s *Scheduler) { s.runs = l }
}

// New creates a scheduler that executes reports through reports.
func New(reports *report.Manager, opts ...Option) *Scheduler {
	s := &Scheduler{
		reports:   reports,
		loc:       time.UTC,
		now:       time.Now,
		policy:    domain.Isolate,
		logger:    slog.Default(),
		schedules: make(map[string]*domain.ScheduledReport),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NextRun returns the next run of expr after from in the scheduler's zone.
func (s *Scheduler) NextRun(expr string, from time.Time) (time.Time, error) {
	return NextRun(expr, from.In(s.loc))
}

// Schedule validates cfg and registers a new scheduled report.
func (s *Scheduler) Schedule(cfg domain.ScheduleConfig) (*domain.ScheduledReport, error) {
	if err := domain.Validate(&cfg); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	next, err := s.NextRun(cfg.Cron, now)
	if err != nil {
		return nil, cronInvalid(err)
	}
	format := cfg.Format
	if format == "" {
		format = domain.FormatJSON
	}
	enabled := true
	if cfg.Enabled != nil {
		enabled = *cfg.Enabled
	}
	sr := &domain.ScheduledReport{
		ID:         cfg.ID,
		ReportID:   cfg.ReportID,
		Cron:       cfg.Cron,
		Recipients: append([]string(nil), cfg.Recipients...),
		Format:     format,
		Enabled:    enabled,
		NextRun:    next,
		CreatedAt:  now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.schedules[sr.ID]; exists {
		return nil, &domain.ConflictError{Kind: kind, ID: sr.ID}
	}
	s.schedules[sr.ID] = sr
	s.logger.Info("report scheduled", "id", sr.ID, "report", sr.ReportID, "cron", sr.Cron, "next_run", sr.NextRun)
	return sr.Clone(), nil
}

// cronInvalid turns a cron parse failure into a ValidationError on "cron".
func cronInvalid(err error) error {
	var ce *CronError
	if errors.As(err, &ce) {
		return domain.Invalid("cron", "%s", ce.Error())
	}
	return domain.Invalid("cron", "%s", err.Error())
}

// Unschedule removes the schedule and reports whether it existed.
func (s *Scheduler) Unschedule(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.schedules[id]; !ok {
		return false
	}
	delete(s.schedules, id)
	return true
}

// GetSchedule returns the schedule with the given id.
func (s *Scheduler) GetSchedule(id string) (*domain.ScheduledReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sr, ok := s.schedules[id]
	if !ok {
		return nil, &domain.NotFoundError{Kind: kind, ID: id}
	}
	return sr.Clone(), nil
}

// ListSchedules returns every schedule ordered by id.
func (s *Scheduler) ListSchedules() []*domain.ScheduledReport {
	s.mu.RLock()
	out := make([]*domain.ScheduledReport, 0, len(s.schedules))
	for _, sr := range s.schedules {
		out = append(out, sr.Clone())
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// SetEnabled toggles a schedule. Enabling recomputes nextRun from now so a
// long-disabled schedule does not fire immediately.
func (s *Scheduler) SetEnabled(id string, enabled bool) (*domain.ScheduledReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sr, ok := s.schedules[id]
	if !ok {
		return nil, &domain.NotFoundError{Kind: kind, ID: id}
	}
	if enabled && !sr.Enabled {
		next, err := s.NextRun(sr.Cron, s.now())
		if err != nil {
			return nil, cronInvalid(err)
		}
		sr.NextRun = next
	}
	sr.Enabled = enabled
	return sr.Clone(), nil
}

// CheckDue returns the enabled schedules whose nextRun is not after now,
// ordered by nextRun then id.
func (s *Scheduler) CheckDue(now time.Time) []*domain.ScheduledReport {
	s.mu.RLock()
	var due []*domain.ScheduledReport
	for _, sr := range s.schedules {
		if sr.Enabled && !sr.NextRun.After(now) {
			due = append(due, sr.Clone())
		}
	}
	s.mu.RUnlock()

	sort.Slice(due, func(i, j int) bool {
		if !due[i].NextRun.Equal(due[j].NextRun) {
			return due[i].NextRun.Before(due[j].NextRun)
		}
		return due[i].ID < due[j].ID
	})
	return due
}

// RunDue executes every due schedule against src, delivers successful results
// through n and returns the ids of the schedules that ran. Delivery failures
// are logged. Execution failures follow the failure policy.
//
// Due schedules are claimed before they run: their nextRun moves past now
// under the write lock, so overlapping calls never run the same due time
// twice.
func (s *Scheduler) RunDue(ctx context.Context, src aggregate.Source, n notify.Notifier) ([]string, error) {
	now := s.now().UTC()
	claims := s.claimDue(now)

	executed := make([]string, 0, len(claims))
	var errs []error
	for i, c := range claims {
		sr := c.sr
		res, runErr := s.reports.Execute(ctx, sr.ReportID, nil, src)
		s.finish(sr.ID, now, runErr)
		s.record(ctx, sr, now, res, runErr)
		executed = append(executed, sr.ID)

		if runErr != nil {
			scheduleRuns.WithLabelValues("error").Inc()
			s.logger.Error("scheduled report failed", "schedule", sr.ID, "report", sr.ReportID, "error", runErr)
			err := fmt.Errorf("schedule %s: %w", sr.ID, runErr)
			if s.policy == domain.FailFast {
				s.release(claims[i+1:])
				return executed, err
			}
			errs = append(errs, err)
			continue
		}
		scheduleRuns.WithLabelValues("ok").Inc()

		if n == nil {
			continue
		}
		d := notify.Delivery{ScheduleID: sr.ID, Recipients: sr.Recipients, Format: sr.Format, Result: res}
		if err := n.Deliver(ctx, d); err != nil {
			s.logger.Warn("report delivery failed", "schedule", sr.ID, "error", err)
		}
	}
	return executed, errors.Join(errs...)
}

// claim is a due schedule taken by one RunDue call. sr is the schedule as it
// was when claimed; next is the nextRun it was advanced to.
type claim struct {
	sr       *domain.ScheduledReport
	next     time.Time
	disabled bool
}

// claimDue advances every schedule due at now and returns the claims ordered
// by the original nextRun then id. A schedule with no further run is
// disabled.
func (s *Scheduler) claimDue(now time.Time) []claim {
	s.mu.Lock()
	defer s.mu.Unlock()

	var claims []claim
	for _, cur := range s.schedules {
		if !cur.Enabled || cur.NextRun.After(now) {
			continue
		}
		c := claim{sr: cur.Clone()}
		next, err := s.NextRun(cur.Cron, now)
		if err != nil {
			s.logger.Error("schedule has no next run", "schedule", cur.ID, "error", err)
			cur.Enabled = false
			c.disabled = true
		} else {
			cur.NextRun = next
			c.next = next
		}
		claims = append(claims, c)
	}
	sort.Slice(claims, func(i, j int) bool {
		a, b := claims[i].sr, claims[j].sr
		if !a.NextRun.Equal(b.NextRun) {
			return a.NextRun.Before(b.NextRun)
		}
		return a.ID < b.ID
	})
	return claims
}

// release hands back claims that were not run, restoring their nextRun
// unless the schedule changed in the meantime.
func (s *Scheduler) release(claims []claim) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range claims {
		cur, ok := s.schedules[c.sr.ID]
		if !ok {
			continue
		}
		switch {
		case c.disabled && !cur.Enabled:
			cur.Enabled = true
		case !c.disabled && cur.NextRun.Equal(c.next):
			cur.NextRun = c.sr.NextRun
		}
	}
}

func (s *Scheduler) record(ctx context.Context, sr *domain.ScheduledReport, now time.Time, res *domain.ReportResult, runErr error) {
	if s.runs == nil {
		return
	}
	run := domain.ScheduleRun{ScheduleID: sr.ID, ReportID: sr.ReportID, RanAt: now, Status: domain.RunOK}
	if runErr != nil {
		run.Status = domain.RunError
		run.Error = runErr.Error()
	} else {
		run.Rows = len(res.Data)
		run.DurationMs = res.Metadata.ExecutionTimeMs
	}
	if err := s.runs.Record(ctx, run); err != nil {
		s.logger.Warn("record schedule run failed", "schedule", sr.ID, "error", err)
	}
}

// finish records the outcome of a run at now on the stored schedule.
func (s *Scheduler) finish(id string, now time.Time, runErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.schedules[id]
	if !ok {
		return
	}
	ran := now
	cur.LastRun = &ran
	cur.LastError = ""
	if runErr != nil {
		cur.LastError = runErr.Error()
	}
}
