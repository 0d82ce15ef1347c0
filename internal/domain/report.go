package domain

import (
	"encoding/json"
	"time"
)

// Format is the presentation format of a report.
type Format string

// Report formats.
const (
	FormatTable Format = "table"
	FormatChart Format = "chart"
	FormatJSON  Format = "json"
)

// ParameterType is the declared type of a report parameter.
type ParameterType string

// Parameter types.
const (
	ParamString  ParameterType = "string"
	ParamNumber  ParameterType = "number"
	ParamBoolean ParameterType = "boolean"
	ParamDate    ParameterType = "date"
	ParamAny     ParameterType = "any"
)

// Parameter is a named placeholder referenced from report stages as
// "$param.<name>".
type Parameter struct {
	Name         string        `json:"name" yaml:"name" validate:"required"`
	Type         ParameterType `json:"type" yaml:"type" validate:"omitempty,oneof=string number boolean date any"`
	Required     bool          `json:"required,omitempty" yaml:"required,omitempty"`
	DefaultValue any           `json:"defaultValue,omitempty" yaml:"defaultValue,omitempty"`
}

// Report is a named, reusable pipeline definition.
type Report struct {
	ID          string      `json:"id" yaml:"id"`
	Name        string      `json:"name" yaml:"name" validate:"required"`
	Description string      `json:"description,omitempty" yaml:"description,omitempty"`
	ObjectName  string      `json:"objectName" yaml:"objectName" validate:"required"`
	Stages      []Stage     `json:"stages" yaml:"stages" validate:"required,min=1"`
	Format      Format      `json:"format" yaml:"format" validate:"required,oneof=table chart json"`
	Parameters  []Parameter `json:"parameters,omitempty" yaml:"parameters,omitempty" validate:"omitempty,unique=Name,dive"`
	CreatedBy   string      `json:"createdBy" yaml:"createdBy"`
	CreatedAt   time.Time   `json:"createdAt" yaml:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt" yaml:"updatedAt"`
}

// Pipeline returns the report's pipeline.
func (r *Report) Pipeline() Pipeline {
	return Pipeline{ObjectName: r.ObjectName, Stages: r.Stages}
}

// Clone returns a deep copy of the report.
func (r *Report) Clone() *Report {
	out := *r
	out.Stages = CloneStages(r.Stages)
	if r.Parameters != nil {
		out.Parameters = make([]Parameter, len(r.Parameters))
		for i, p := range r.Parameters {
			p.DefaultValue = CloneValue(p.DefaultValue)
			out.Parameters[i] = p
		}
	}
	return &out
}

// ReportPatch is a partial update of a report. Nil fields are left unchanged.
type ReportPatch struct {
	Name        *string      `json:"name,omitempty"`
	Description *string      `json:"description,omitempty"`
	ObjectName  *string      `json:"objectName,omitempty"`
	Stages      []Stage      `json:"stages,omitempty"`
	Format      *Format      `json:"format,omitempty"`
	Parameters  *[]Parameter `json:"parameters,omitempty"`
	CreatedBy   *string      `json:"createdBy,omitempty"`
}

// ReportResult is the output of executing a report.
type ReportResult struct {
	ReportID   string    `json:"reportId"`
	ReportName string    `json:"reportName"`
	Data       []Record  `json:"data"`
	Columns    []string  `json:"-"`
	Metadata   Metadata  `json:"metadata"`
	ExecutedAt time.Time `json:"executedAt"`
}

// MarshalJSON encodes the result with its records in column order.
func (r ReportResult) MarshalJSON() ([]byte, error) {
	type plain ReportResult
	data, err := MarshalRecords(r.Data, r.Columns)
	if err != nil {
		return nil, err
	}
	return json.Marshal(struct {
		plain
		Data json.RawMessage `json:"data"`
	}{plain(r), data})
}
