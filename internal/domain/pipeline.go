package domain

import "encoding/json"

// Record is a single object record: field name to scalar, slice or nested
// mapping.
type Record map[string]any

// Clone returns a deep copy of the record.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = CloneValue(v)
	}
	return out
}

// StageType identifies the kind of a pipeline stage.
type StageType string

// Known stage types.
const (
	StageMatch     StageType = "match"
	StageGroup     StageType = "group"
	StageSort      StageType = "sort"
	StageLimit     StageType = "limit"
	StageSkip      StageType = "skip"
	StageProject   StageType = "project"
	StageAddFields StageType = "addFields"
	StageCount     StageType = "count"
)

// StageTypes lists every known stage type in documentation order.
var StageTypes = []StageType{
	StageMatch, StageGroup, StageSort, StageLimit,
	StageSkip, StageProject, StageAddFields, StageCount,
}

// Valid reports whether t is one of the known stage types.
func (t StageType) Valid() bool {
	for _, known := range StageTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Stage is one transformation step of a pipeline.
type Stage struct {
	Type StageType `json:"type" yaml:"type"`
	Body Document  `json:"body" yaml:"body"`
}

// Pipeline is an ordered list of stages applied to the records of one object.
type Pipeline struct {
	ObjectName string  `json:"objectName" yaml:"objectName"`
	Stages     []Stage `json:"stages" yaml:"stages"`
}

// Clone returns a deep copy of the pipeline.
func (p Pipeline) Clone() Pipeline {
	return Pipeline{ObjectName: p.ObjectName, Stages: CloneStages(p.Stages)}
}

// CloneStages deep-copies a stage slice.
func CloneStages(stages []Stage) []Stage {
	if stages == nil {
		return nil
	}
	out := make([]Stage, len(stages))
	for i, s := range stages {
		out[i] = Stage{Type: s.Type, Body: s.Body.Clone()}
	}
	return out
}

// Metadata describes a single pipeline execution.
type Metadata struct {
	ExecutionTimeMs  int64 `json:"executionTimeMs"`
	RecordsProcessed int   `json:"recordsProcessed"`
	StagesExecuted   int   `json:"stagesExecuted"`
}

// AggregationResult is the output of one pipeline execution. Columns is the
// key order set by project, group, count and addFields; it shapes the
// encoded data and is not emitted itself.
type AggregationResult struct {
	Data     []Record `json:"data"`
	Columns  []string `json:"-"`
	Metadata Metadata `json:"metadata"`
}

// MarshalJSON encodes the result with its records in column order.
func (r AggregationResult) MarshalJSON() ([]byte, error) {
	type plain AggregationResult
	data, err := MarshalRecords(r.Data, r.Columns)
	if err != nil {
		return nil, err
	}
	return json.Marshal(struct {
		plain
		Data json.RawMessage `json:"data"`
	}{plain(r), data})
}
