package domain

import "time"

// ScheduledReport binds a report to a cron expression and a recipient list.
type ScheduledReport struct {
	ID         string     `json:"id" yaml:"id"`
	ReportID   string     `json:"reportId" yaml:"reportId"`
	Cron       string     `json:"cron" yaml:"cron"`
	Recipients []string   `json:"recipients" yaml:"recipients"`
	Format     Format     `json:"format" yaml:"format"`
	Enabled    bool       `json:"enabled" yaml:"enabled"`
	LastRun    *time.Time `json:"lastRun" yaml:"lastRun"`
	NextRun    time.Time  `json:"nextRun" yaml:"nextRun"`
	LastError  string     `json:"lastError,omitempty" yaml:"lastError,omitempty"`
	CreatedAt  time.Time  `json:"createdAt" yaml:"createdAt"`
}

// Clone returns a copy that shares no mutable state with s.
func (s *ScheduledReport) Clone() *ScheduledReport {
	out := *s
	out.Recipients = append([]string(nil), s.Recipients...)
	if s.LastRun != nil {
		t := *s.LastRun
		out.LastRun = &t
	}
	return &out
}

// ScheduleConfig is the input for scheduling a report. Enabled defaults to
// true when omitted.
type ScheduleConfig struct {
	ID         string   `json:"id" yaml:"id" validate:"required"`
	ReportID   string   `json:"reportId" yaml:"reportId" validate:"required"`
	Cron       string   `json:"cron" yaml:"cron" validate:"required"`
	Recipients []string `json:"recipients" yaml:"recipients" validate:"required,min=1,dive,required"`
	Format     Format   `json:"format,omitempty" yaml:"format,omitempty" validate:"omitempty,oneof=table chart json"`
	Enabled    *bool    `json:"enabled,omitempty" yaml:"enabled,omitempty"`
}

// Run statuses.
const (
	RunOK    = "ok"
	RunError = "error"
)

// ScheduleRun is one recorded execution of a scheduled report.
type ScheduleRun struct {
	ID         int64     `json:"id"`
	ScheduleID string    `json:"scheduleId"`
	ReportID   string    `json:"reportId"`
	RanAt      time.Time `json:"ranAt"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
	Rows       int       `json:"rows"`
	DurationMs int64     `json:"durationMs"`
}
