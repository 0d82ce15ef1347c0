package domain

import (
	"encoding/json"
	"time"
)

// Layout is the grid configuration of a dashboard.
type Layout struct {
	Columns   int `json:"columns" yaml:"columns" validate:"gte=0"`
	RowHeight int `json:"rowHeight" yaml:"rowHeight" validate:"gte=0"`
}

// Size is a widget's extent in grid units.
type Size struct {
	W int `json:"w" yaml:"w" validate:"gte=0"`
	H int `json:"h" yaml:"h" validate:"gte=0"`
}

// Position is a widget's grid origin.
type Position struct {
	X int `json:"x" yaml:"x" validate:"gte=0"`
	Y int `json:"y" yaml:"y" validate:"gte=0"`
}

// Widget is a dashboard panel backed by either an inline pipeline or a report.
type Widget struct {
	ID       string    `json:"id" yaml:"id"`
	Type     string    `json:"type" yaml:"type" validate:"required"`
	Title    string    `json:"title" yaml:"title"`
	Pipeline *Pipeline `json:"pipeline,omitempty" yaml:"pipeline,omitempty"`
	ReportID string    `json:"reportId,omitempty" yaml:"reportId,omitempty"`
	Size     Size      `json:"size" yaml:"size"`
	Position Position  `json:"position" yaml:"position"`
}

// Clone returns a deep copy of the widget.
func (w Widget) Clone() Widget {
	if w.Pipeline != nil {
		p := w.Pipeline.Clone()
		w.Pipeline = &p
	}
	return w
}

// WidgetPatch is a partial update of a widget. Setting Pipeline clears
// ReportID and the other way around.
type WidgetPatch struct {
	Type     *string   `json:"type,omitempty"`
	Title    *string   `json:"title,omitempty"`
	Pipeline *Pipeline `json:"pipeline,omitempty"`
	ReportID *string   `json:"reportId,omitempty"`
	Size     *Size     `json:"size,omitempty"`
	Position *Position `json:"position,omitempty"`
}

// Dashboard is a named collection of widgets.
type Dashboard struct {
	ID          string    `json:"id" yaml:"id"`
	Name        string    `json:"name" yaml:"name" validate:"required"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	Widgets     []Widget  `json:"widgets" yaml:"widgets"`
	Layout      Layout    `json:"layout" yaml:"layout"`
	Owner       string    `json:"owner" yaml:"owner" validate:"required"`
	Shared      bool      `json:"shared" yaml:"shared"`
	CreatedAt   time.Time `json:"createdAt" yaml:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt" yaml:"updatedAt"`
}

// Clone returns a deep copy of the dashboard.
func (d *Dashboard) Clone() *Dashboard {
	out := *d
	if d.Widgets != nil {
		out.Widgets = make([]Widget, len(d.Widgets))
		for i, w := range d.Widgets {
			out.Widgets[i] = w.Clone()
		}
	}
	return &out
}

// Widget returns the widget with the given id.
func (d *Dashboard) Widget(id string) (*Widget, bool) {
	for i := range d.Widgets {
		if d.Widgets[i].ID == id {
			return &d.Widgets[i], true
		}
	}
	return nil, false
}

// DashboardPatch is a partial update of a dashboard's own fields. Widgets are
// changed through the widget operations.
type DashboardPatch struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Layout      *Layout `json:"layout,omitempty"`
	Owner       *string `json:"owner,omitempty"`
	Shared      *bool   `json:"shared,omitempty"`
}

// WidgetResult is the output of executing one widget.
type WidgetResult struct {
	WidgetID string   `json:"widgetId"`
	Data     []Record `json:"data"`
	Columns  []string `json:"-"`
	Metadata Metadata `json:"metadata"`
	Error    string   `json:"error,omitempty"`
}

// MarshalJSON encodes the result with its records in column order.
func (r WidgetResult) MarshalJSON() ([]byte, error) {
	type plain WidgetResult
	data, err := MarshalRecords(r.Data, r.Columns)
	if err != nil {
		return nil, err
	}
	return json.Marshal(struct {
		plain
		Data json.RawMessage `json:"data"`
	}{plain(r), data})
}
