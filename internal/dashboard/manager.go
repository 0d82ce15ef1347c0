// Package dashboard keeps the registry of dashboards and executes their
// widgets.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/johnwards/insights/internal/aggregate"
	"github.com/johnwards/insights/internal/domain"
	"github.com/johnwards/insights/internal/report"
)

const (
	kind       = "dashboard"
	widgetKind = "widget"
)

// Manager is an in-memory dashboard registry.
type Manager struct {
	engine      *aggregate.Engine
	reports     *report.Manager
	policy      domain.FailurePolicy
	concurrency int
	now         func() time.Time
	logger      *slog.Logger

	mu         sync.RWMutex
	dashboards map[string]*domain.Dashboard
}

// Option configures a Manager.
type Option func(*Manager)

// WithFailurePolicy sets how ExecuteDashboard handles widget errors.
func WithFailurePolicy(p domain.FailurePolicy) Option {
	return func(m *Manager) { m.policy = p }
}

// WithConcurrency bounds the number of widgets executed at once. n <= 0
// means unbounded.
func WithConcurrency(n int) Option {
	return func(m *Manager) { m.concurrency = n }
}

// WithClock overrides the clock used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithLogger sets the manager logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// NewManager creates an empty dashboard registry. Report-backed widgets run
// through reports.
func NewManager(engine *aggregate.Engine, reports *report.Manager, opts ...Option) *Manager {
	m := &Manager{
		engine:      engine,
		reports:     reports,
		concurrency: 4,
		now:         time.Now,
		logger:      slog.Default(),
		dashboards:  make(map[string]*domain.Dashboard),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create validates and registers d, including any widgets it carries.
func (m *Manager) Create(d *domain.Dashboard) (*domain.Dashboard, error) {
	dash := d.Clone()
	if dash.ID == "" {
		dash.ID = uuid.NewString()
	}
	if dash.Widgets == nil {
		dash.Widgets = []domain.Widget{}
	}
	if err := domain.Validate(dash); err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(dash.Widgets))
	for i := range dash.Widgets {
		w := &dash.Widgets[i]
		if w.ID == "" {
			w.ID = uuid.NewString()
		}
		if seen[w.ID] {
			return nil, &domain.ConflictError{Kind: widgetKind, ID: w.ID}
		}
		seen[w.ID] = true
		if err := m.checkWidget(w, fmt.Sprintf("widgets[%d].", i)); err != nil {
			return nil, err
		}
	}

	now := m.now().UTC()
	dash.CreatedAt = now
	dash.UpdatedAt = now

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.dashboards[dash.ID]; exists {
		return nil, &domain.ConflictError{Kind: kind, ID: dash.ID}
	}
	m.dashboards[dash.ID] = dash
	m.logger.Info("dashboard created", "id", dash.ID, "widgets", len(dash.Widgets))
	return dash.Clone(), nil
}

// checkWidget enforces that exactly one data source is set and that an
// inline pipeline is well formed. prefix qualifies reported field names.
func (m *Manager) checkWidget(w *domain.Widget, prefix string) error {
	if err := domain.Validate(w); err != nil {
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			ve.Field = prefix + ve.Field
		}
		return err
	}
	hasPipeline := w.Pipeline != nil
	hasReport := w.ReportID != ""
	if hasPipeline == hasReport {
		return domain.Invalid(prefix+"pipeline", "exactly one of pipeline or reportId must be set")
	}
	if hasPipeline {
		if err := m.engine.Check(*w.Pipeline); err != nil {
			var ve *domain.ValidationError
			if errors.As(err, &ve) {
				ve.Field = prefix + "pipeline." + ve.Field
			}
			return err
		}
	}
	return nil
}

// Get returns the dashboard with the given id.
func (m *Manager) Get(id string) (*domain.Dashboard, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.dashboards[id]
	if !ok {
		return nil, &domain.NotFoundError{Kind: kind, ID: id}
	}
	return d.Clone(), nil
}

// Update merges patch into the dashboard's own fields.
func (m *Manager) Update(id string, patch domain.DashboardPatch) (*domain.Dashboard, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.dashboards[id]
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
	if patch.Layout != nil {
		next.Layout = *patch.Layout
	}
	if patch.Owner != nil {
		next.Owner = *patch.Owner
	}
	if patch.Shared != nil {
		next.Shared = *patch.Shared
	}
	if err := domain.Validate(next); err != nil {
		return nil, err
	}
	next.UpdatedAt = m.now().UTC()
	m.dashboards[id] = next
	return next.Clone(), nil
}

// Delete removes the dashboard and reports whether it existed.
func (m *Manager) Delete(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.dashboards[id]; !ok {
		return false
	}
	delete(m.dashboards, id)
	return true
}

// List returns the dashboards visible to userID: those it owns plus shared
// ones. An empty userID lists everything.
func (m *Manager) List(userID string) []*domain.Dashboard {
	m.mu.RLock()
	out := make([]*domain.Dashboard, 0, len(m.dashboards))
	for _, d := range m.dashboards {
		if userID == "" || d.Owner == userID || d.Shared {
			out = append(out, d.Clone())
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

// AddWidget appends w to the dashboard.
func (m *Manager) AddWidget(dashboardID string, w domain.Widget) (*domain.Widget, error) {
	widget := w.Clone()
	if widget.ID == "" {
		widget.ID = uuid.NewString()
	}
	if err := m.checkWidget(&widget, ""); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.dashboards[dashboardID]
	if !ok {
		return nil, &domain.NotFoundError{Kind: kind, ID: dashboardID}
	}
	if _, exists := d.Widget(widget.ID); exists {
		return nil, &domain.ConflictError{Kind: widgetKind, ID: widget.ID}
	}
	d.Widgets = append(d.Widgets, widget)
	d.UpdatedAt = m.now().UTC()
	out := widget.Clone()
	return &out, nil
}

// UpdateWidget merges patch into a widget. Setting a pipeline clears the
// report reference and the other way around.
func (m *Manager) UpdateWidget(dashboardID, widgetID string, patch domain.WidgetPatch) (*domain.Widget, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.dashboards[dashboardID]
	if !ok {
		return nil, &domain.NotFoundError{Kind: kind, ID: dashboardID}
	}
	cur, ok := d.Widget(widgetID)
	if !ok {
		return nil, &domain.NotFoundError{Kind: widgetKind, ID: widgetID}
	}
	next := cur.Clone()
	if patch.Type != nil {
		next.Type = *patch.Type
	}
	if patch.Title != nil {
		next.Title = *patch.Title
	}
	if patch.Pipeline != nil {
		p := patch.Pipeline.Clone()
		next.Pipeline = &p
		next.ReportID = ""
	}
	if patch.ReportID != nil {
		next.ReportID = *patch.ReportID
		if patch.Pipeline == nil {
			next.Pipeline = nil
		}
	}
	if patch.Size != nil {
		next.Size = *patch.Size
	}
	if patch.Position != nil {
		next.Position = *patch.Position
	}
	if err := m.checkWidget(&next, ""); err != nil {
		return nil, err
	}
	*cur = next
	d.UpdatedAt = m.now().UTC()
	out := next.Clone()
	return &out, nil
}

// RemoveWidget deletes a widget from the dashboard.
func (m *Manager) RemoveWidget(dashboardID, widgetID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.dashboards[dashboardID]
	if !ok {
		return &domain.NotFoundError{Kind: kind, ID: dashboardID}
	}
	for i := range d.Widgets {
		if d.Widgets[i].ID == widgetID {
			d.Widgets = append(d.Widgets[:i], d.Widgets[i+1:]...)
			d.UpdatedAt = m.now().UTC()
			return nil
		}
	}
	return &domain.NotFoundError{Kind: widgetKind, ID: widgetID}
}

// ExecuteWidget runs one widget against src.
func (m *Manager) ExecuteWidget(ctx context.Context, dashboardID, widgetID string, src aggregate.Source) (*domain.WidgetResult, error) {
	d, err := m.Get(dashboardID)
	if err != nil {
		return nil, err
	}
	w, ok := d.Widget(widgetID)
	if !ok {
		return nil, &domain.NotFoundError{Kind: widgetKind, ID: widgetID}
	}
	return m.runWidget(ctx, *w, src)
}

func (m *Manager) runWidget(ctx context.Context, w domain.Widget, src aggregate.Source) (*domain.WidgetResult, error) {
	if w.Pipeline != nil {
		res, err := m.engine.Execute(ctx, *w.Pipeline, src)
		if err != nil {
			return nil, err
		}
		return &domain.WidgetResult{WidgetID: w.ID, Data: res.Data, Columns: res.Columns, Metadata: res.Metadata}, nil
	}
	res, err := m.reports.Execute(ctx, w.ReportID, nil, src)
	if err != nil {
		return nil, err
	}
	return &domain.WidgetResult{WidgetID: w.ID, Data: res.Data, Columns: res.Columns, Metadata: res.Metadata}, nil
}

// ExecuteDashboard runs every widget of the dashboard concurrently and
// returns the results keyed by widget id.
func (m *Manager) ExecuteDashboard(ctx context.Context, dashboardID string, src aggregate.Source) (map[string]*domain.WidgetResult, error) {
	d, err := m.Get(dashboardID)
	if err != nil {
		return nil, err
	}

	var (
		mu      sync.Mutex
		results = make(map[string]*domain.WidgetResult, len(d.Widgets))
	)
	g, gctx := errgroup.WithContext(ctx)
	if m.concurrency > 0 {
		g.SetLimit(m.concurrency)
	}
	for _, w := range d.Widgets {
		g.Go(func() error {
			res, err := m.runWidget(gctx, w, src)
			if err != nil {
				if m.policy == domain.FailFast {
					return fmt.Errorf("widget %s: %w", w.ID, err)
				}
				m.logger.Warn("widget failed", "dashboard", dashboardID, "widget", w.ID, "error", err)
				res = &domain.WidgetResult{WidgetID: w.ID, Data: []domain.Record{}, Error: err.Error()}
			}
			mu.Lock()
			results[w.ID] = res
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
