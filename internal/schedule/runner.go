package schedule

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/johnwards/insights/internal/aggregate"
	"github.com/johnwards/insights/internal/notify"
)

// Runner drives RunDue once a minute.
type Runner struct {
	scheduler *Scheduler
	src       aggregate.Source
	notifier  notify.Notifier
	cron      *cron.Cron
	logger    *slog.Logger
}

// NewRunner returns a runner that calls s.RunDue every minute in the
// scheduler's zone. A tick still running when the next one fires causes that
// next tick to be skipped.
func NewRunner(s *Scheduler, src aggregate.Source, n notify.Notifier) (*Runner, error) {
	r := &Runner{
		scheduler: s,
		src:       src,
		notifier:  n,
		logger:    s.logger,
	}
	r.cron = cron.New(
		cron.WithLocation(s.loc),
		cron.WithLogger(cronLogger{s.logger}),
		cron.WithChain(cron.SkipIfStillRunning(cronLogger{s.logger})),
	)
	if _, err := r.cron.AddFunc("* * * * *", r.Tick); err != nil {
		return nil, err
	}
	return r, nil
}

// Tick runs every due schedule once.
func (r *Runner) Tick() {
	ids, err := r.scheduler.RunDue(context.Background(), r.src, r.notifier)
	if err != nil {
		r.logger.Error("scheduled run finished with errors", "executed", len(ids), "error", err)
		return
	}
	if len(ids) > 0 {
		r.logger.Info("scheduled run finished", "executed", ids)
	}
}

// Start begins ticking in the background.
func (r *Runner) Start() {
	r.cron.Start()
}

// Stop halts ticking. The returned context is done once a running tick
// completes.
func (r *Runner) Stop() context.Context {
	return r.cron.Stop()
}

// cronLogger routes robfig/cron's logging to slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
