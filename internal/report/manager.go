// Package report keeps the registry of reusable report definitions and
// executes them with parameters.
package report

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/johnwards/insights/internal/aggregate"
	"github.com/johnwards/insights/internal/domain"
)

const kind = "report"

// Manager is an in-memory report registry.
type Manager struct {
	engine *aggregate.Engine
	now    func() time.Time
	logger *slog.Logger

	mu      sync.RWMutex
	reports map[string]*domain.Report
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides the clock used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithLogger sets the manager logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// NewManager creates an empty report registry executing through engine.
func NewManager(engine *aggregate.Engine, opts ...Option) *Manager {
	m := &Manager{
		engine:  engine,
		now:     time.Now,
		logger:  slog.Default(),
		reports: make(map[string]*domain.Report),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ListFilter narrows List. Empty fields match everything.
type ListFilter struct {
	ObjectName string
	CreatedBy  string
}

func (f ListFilter) matches(r *domain.Report) bool {
	if f.ObjectName != "" && r.ObjectName != f.ObjectName {
		return false
	}
	if f.CreatedBy != "" && r.CreatedBy != f.CreatedBy {
		return false
	}
	return true
}

// Create validates and registers r. An empty id is generated.
func (m *Manager) Create(r *domain.Report) (*domain.Report, error) {
	rep := r.Clone()
	if rep.ID == "" {
		rep.ID = uuid.NewString()
	}
	if rep.Format == "" {
		rep.Format = domain.FormatTable
	}
	if err := m.validate(rep); err != nil {
		return nil, err
	}

	now := m.now().UTC()
	rep.CreatedAt = now
	rep.UpdatedAt = now

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.reports[rep.ID]; exists {
		return nil, &domain.ConflictError{Kind: kind, ID: rep.ID}
	}
	m.reports[rep.ID] = rep
	m.logger.Info("report created", "id", rep.ID, "object", rep.ObjectName)
	return rep.Clone(), nil
}

func (m *Manager) validate(r *domain.Report) error {
	if err := domain.Validate(r); err != nil {
		return err
	}
	return m.engine.Validate(r.Pipeline())
}

// Get returns the report with the given id.
func (m *Manager) Get(id string) (*domain.Report, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.reports[id]
	if !ok {
		return nil, &domain.NotFoundError{Kind: kind, ID: id}
	}
	return r.Clone(), nil
}

// Update merges patch into the stored report. The id and createdAt never
// change.
func (m *Manager) Update(id string, patch domain.ReportPatch) (*domain.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.reports[id]
	if !ok {
		return nil, &domain.NotFoundError{Kind: kind, ID: id}
	}
	next := cur.Clone()
	if patch.Name != nil {
		next.Name = *patch.Name
	}
	if patch.Description != nil {
		next.Description = *patch.Description
	}
	if patch.ObjectName != nil {
		next.ObjectName = *patch.ObjectName
	}
	if patch.Stages != nil {
		next.Stages = domain.CloneStages(patch.Stages)
	}
	if patch.Format != nil {
		next.Format = *patch.Format
	}
	if patch.Parameters != nil {
		next.Parameters = (&domain.Report{Parameters: *patch.Parameters}).Clone().Parameters
	}
	if patch.CreatedBy != nil {
		next.CreatedBy = *patch.CreatedBy
	}
	if err := m.validate(next); err != nil {
		return nil, err
	}
	next.UpdatedAt = m.now().UTC()
	m.reports[id] = next
	return next.Clone(), nil
}

// Delete removes the report and reports whether it existed.
func (m *Manager) Delete(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.reports[id]; !ok {
		return false
	}
	delete(m.reports, id)
	return true
}

// List returns the reports matching filter ordered by creation time.
func (m *Manager) List(filter ListFilter) []*domain.Report {
	m.mu.RLock()
	out := make([]*domain.Report, 0, len(m.reports))
	for _, r := range m.reports {
		if filter.matches(r) {
			out = append(out, r.Clone())
		}
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Execute runs the report against src with params substituted for its
// "$param.<name>" tokens.
func (m *Manager) Execute(ctx context.Context, id string, params map[string]any, src aggregate.Source) (*domain.ReportResult, error) {
	rep, err := m.Get(id)
	if err != nil {
		return nil, err
	}

	values, err := resolveParams(rep.Parameters, params)
	if err != nil {
		return nil, &domain.ExecutionError{Op: "execute report " + id, Err: err}
	}
	p := domain.Pipeline{ObjectName: rep.ObjectName, Stages: interpolate(rep.Stages, values)}

	res, err := m.engine.Execute(ctx, p, src)
	if err != nil {
		// Bodies are only compiled once parameters are substituted, so a
		// malformed one is a failure of this execution.
		var ee *domain.ExecutionError
		if errors.As(err, &ee) {
			return nil, err
		}
		return nil, &domain.ExecutionError{Op: "execute report " + id, Err: err}
	}
	return &domain.ReportResult{
		ReportID:   rep.ID,
		ReportName: rep.Name,
		Data:       res.Data,
		Columns:    res.Columns,
		Metadata:   res.Metadata,
		ExecutedAt: m.now().UTC(),
	}, nil
}
