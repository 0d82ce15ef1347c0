// Package definitions loads reports, dashboards, schedules and sample records
// from a YAML file and registers them at startup.
package definitions

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/johnwards/insights/internal/dashboard"
	"github.com/johnwards/insights/internal/domain"
	"github.com/johnwards/insights/internal/report"
	"github.com/johnwards/insights/internal/schedule"
	"github.com/johnwards/insights/internal/store"
)

// File is the top-level layout of a definitions file.
type File struct {
	Reports    []domain.Report             `yaml:"reports"`
	Dashboards []domain.Dashboard          `yaml:"dashboards"`
	Schedules  []domain.ScheduleConfig     `yaml:"schedules"`
	Objects    map[string][]map[string]any `yaml:"objects"`
}

// Load reads and decodes the definitions file at path. Unknown keys are
// rejected.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read definitions: %w", err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Parse decodes a definitions document.
func Parse(data []byte) (*File, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse definitions: %w", err)
	}
	return &f, nil
}

// Targets are the registries a File is applied to. Objects may be nil when
// no sample records should be written.
type Targets struct {
	Reports    *report.Manager
	Dashboards *dashboard.Manager
	Schedules  *schedule.Scheduler
	Objects    store.ObjectStore
	Logger     *slog.Logger
}

// Apply registers every definition: sample records first, then reports,
// dashboards and schedules, so later entries can refer to earlier ones.
// Sample records are only written for object types that have none yet.
func Apply(ctx context.Context, f *File, t Targets) error {
	logger := t.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if t.Objects != nil {
		if err := applyObjects(ctx, f.Objects, t.Objects, logger); err != nil {
			return err
		}
	}
	for i := range f.Reports {
		if _, err := t.Reports.Create(&f.Reports[i]); err != nil {
			return fmt.Errorf("reports[%d] (%s): %w", i, f.Reports[i].ID, err)
		}
	}
	for i := range f.Dashboards {
		if _, err := t.Dashboards.Create(&f.Dashboards[i]); err != nil {
			return fmt.Errorf("dashboards[%d] (%s): %w", i, f.Dashboards[i].ID, err)
		}
	}
	for i, c := range f.Schedules {
		if _, err := t.Reports.Get(c.ReportID); err != nil {
			return fmt.Errorf("schedules[%d] (%s): %w", i, c.ID, err)
		}
		if _, err := t.Schedules.Schedule(c); err != nil {
			return fmt.Errorf("schedules[%d] (%s): %w", i, c.ID, err)
		}
	}
	logger.Info("definitions applied",
		"reports", len(f.Reports),
		"dashboards", len(f.Dashboards),
		"schedules", len(f.Schedules),
	)
	return nil
}

func applyObjects(ctx context.Context, objects map[string][]map[string]any, s store.ObjectStore, logger *slog.Logger) error {
	names := make([]string, 0, len(objects))
	for name := range objects {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		existing, err := s.FetchRecords(ctx, name)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("objects.%s: %w", name, err)
		}
		if len(existing) > 0 {
			logger.Info("sample records skipped", "object", name, "existing", len(existing))
			continue
		}

		inputs := make([]domain.CreateInput, len(objects[name]))
		for i, rec := range objects[name] {
			props := make(map[string]string, len(rec))
			for k, v := range rec {
				if v == nil {
					continue
				}
				props[k] = fmt.Sprint(v)
			}
			inputs[i] = domain.CreateInput{Properties: props}
		}
		if _, err := s.BatchCreate(ctx, name, inputs); err != nil {
			return fmt.Errorf("objects.%s: %w", name, err)
		}
		logger.Info("sample records written", "object", name, "count", len(inputs))
	}
	return nil
}
