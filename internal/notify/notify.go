// Package notify delivers executed report results to recipients.
package notify

import (
	"context"
	"errors"
	"log/slog"

	"github.com/johnwards/insights/internal/domain"
)

// Delivery is one report result addressed to a schedule's recipients.
type Delivery struct {
	ScheduleID string               `json:"scheduleId"`
	Recipients []string             `json:"recipients"`
	Format     domain.Format        `json:"format"`
	Result     *domain.ReportResult `json:"result"`
}

// Notifier hands a delivery to its recipients.
type Notifier interface {
	Deliver(ctx context.Context, d Delivery) error
}

// NotifierFunc adapts a function to a Notifier.
type NotifierFunc func(ctx context.Context, d Delivery) error

// Deliver calls f.
func (f NotifierFunc) Deliver(ctx context.Context, d Delivery) error { return f(ctx, d) }

// Log writes deliveries to a structured logger.
type Log struct {
	Logger *slog.Logger
}

// Deliver logs a summary of d.
func (l Log) Deliver(ctx context.Context, d Delivery) error {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	rows := 0
	report := ""
	if d.Result != nil {
		rows = len(d.Result.Data)
		report = d.Result.ReportID
	}
	logger.InfoContext(ctx, "report delivered",
		"schedule", d.ScheduleID,
		"report", report,
		"format", d.Format,
		"recipients", d.Recipients,
		"rows", rows,
	)
	return nil
}

// Multi fans a delivery out to every notifier. All notifiers are attempted;
// their errors are joined.
type Multi []Notifier

// Deliver calls Deliver on each notifier in order.
func (m Multi) Deliver(ctx context.Context, d Delivery) error {
	var errs []error
	for _, n := range m {
		if err := n.Deliver(ctx, d); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
