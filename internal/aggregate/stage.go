package aggregate

import (
	"fmt"
	"slices"
	"strings"

	"github.com/johnwards/insights/internal/domain"
)

// stage is the compiled form of one pipeline stage. The set of
// implementations is closed: compileStage is the only constructor.
type stage interface {
	apply(records []domain.Record) []domain.Record
	// columns maps the key order of incoming records to the key order of
	// outgoing ones. nil means no fixed order.
	columns(in []string) []string
}

// compileStage turns a validated Stage into its typed form, rejecting
// malformed bodies.
func compileStage(i int, s domain.Stage) (stage, error) {
	field := fmt.Sprintf("stages[%d].body", i)
	switch s.Type {
	case domain.StageMatch:
		return compileMatch(field, s.Body)
	case domain.StageGroup:
		return compileGroup(field, s.Body)
	case domain.StageSort:
		return compileSort(field, s.Body)
	case domain.StageLimit:
		n, err := countArg(field, s.Body)
		if err != nil {
			return nil, err
		}
		return limitStage{n: n}, nil
	case domain.StageSkip:
		n, err := countArg(field, s.Body)
		if err != nil {
			return nil, err
		}
		return skipStage{n: n}, nil
	case domain.StageProject:
		return compileProject(field, s.Body)
	case domain.StageAddFields:
		return compileAddFields(field, s.Body)
	case domain.StageCount:
		return compileCount(field, s.Body)
	default:
		return nil, domain.Invalid(fmt.Sprintf("stages[%d].type", i), "unknown stage type %q", s.Type)
	}
}

// compile validates p and compiles every stage.
func compile(p domain.Pipeline, maxStages int) ([]stage, error) {
	if err := ValidatePipeline(p, maxStages); err != nil {
		return nil, err
	}
	out := make([]stage, len(p.Stages))
	for i, s := range p.Stages {
		st, err := compileStage(i, s)
		if err != nil {
			return nil, err
		}
		out[i] = st
	}
	return out, nil
}

// --- match ---

type comparison struct {
	op      string
	operand any
}

type condition struct {
	field string
	cmps  []comparison
}

type matchStage struct {
	conds []condition
}

var matchOperators = map[string]bool{
	"$eq": true, "$ne": true, "$gt": true, "$gte": true, "$lt": true, "$lte": true,
	"$in": true, "$nin": true, "$exists": true,
}

func compileMatch(field string, body domain.Document) (stage, error) {
	st := matchStage{}
	for _, f := range body {
		if strings.HasPrefix(f.Key, "$") {
			return nil, domain.Invalid(field+"."+f.Key, "unsupported match key")
		}
		cond := condition{field: f.Key}
		m, isMap := asMap(f.Value)
		if !isMap || !hasOperatorKey(m) {
			cond.cmps = []comparison{{op: "$eq", operand: normalize(f.Value)}}
			st.conds = append(st.conds, cond)
			continue
		}
		ops := make([]string, 0, len(m))
		for op := range m {
			ops = append(ops, op)
		}
		slices.Sort(ops)
		for _, op := range ops {
			operand := m[op]
			if !matchOperators[op] {
				return nil, domain.Invalid(field+"."+f.Key, "unknown operator %q", op)
			}
			switch op {
			case "$in", "$nin":
				list, ok := asSlice(operand)
				if !ok {
					return nil, domain.Invalid(field+"."+f.Key+"."+op, "must be an array")
				}
				operand = list
			case "$exists":
				if _, ok := operand.(bool); !ok {
					return nil, domain.Invalid(field+"."+f.Key+"."+op, "must be a boolean")
				}
			}
			cond.cmps = append(cond.cmps, comparison{op: op, operand: operand})
		}
		st.conds = append(st.conds, cond)
	}
	return st, nil
}

func (matchStage) columns(in []string) []string { return in }

func hasOperatorKey(m map[string]any) bool {
	for k := range m {
		if strings.HasPrefix(k, "$") {
			return true
		}
	}
	return false
}

func (s matchStage) apply(records []domain.Record) []domain.Record {
	out := make([]domain.Record, 0, len(records))
	for _, rec := range records {
		if s.matches(rec) {
			out = append(out, rec)
		}
	}
	return out
}

func (s matchStage) matches(rec domain.Record) bool {
	for _, c := range s.conds {
		v, present := lookup(rec, c.field)
		for _, cmp := range c.cmps {
			if !evalComparison(cmp, v, present) {
				return false
			}
		}
	}
	return true
}

func evalComparison(c comparison, v any, present bool) bool {
	switch c.op {
	case "$eq":
		return equalValues(v, c.operand)
	case "$ne":
		return !equalValues(v, c.operand)
	case "$exists":
		return present == c.operand.(bool)
	case "$in":
		return inList(v, c.operand.([]any))
	case "$nin":
		return !inList(v, c.operand.([]any))
	}
	r, ok := rangeCompare(v, c.operand)
	if !ok {
		return false
	}
	switch c.op {
	case "$gt":
		return r > 0
	case "$gte":
		return r >= 0
	case "$lt":
		return r < 0
	case "$lte":
		return r <= 0
	}
	return false
}

func inList(v any, list []any) bool {
	for _, item := range list {
		if equalValues(v, item) {
			return true
		}
	}
	return false
}

// --- sort ---

type sortKey struct {
	field string
	desc  bool
}

type sortStage struct {
	keys []sortKey
}

func compileSort(field string, body domain.Document) (stage, error) {
	if len(body) == 0 {
		return nil, domain.Invalid(field, "must name at least one field")
	}
	st := sortStage{}
	for _, f := range body {
		dir, ok := toInt(f.Value)
		if !ok || (dir != 1 && dir != -1) {
			return nil, domain.Invalid(field+"."+f.Key, "sort direction must be 1 or -1")
		}
		st.keys = append(st.keys, sortKey{field: f.Key, desc: dir == -1})
	}
	return st, nil
}

func (sortStage) columns(in []string) []string { return in }

func (s sortStage) apply(records []domain.Record) []domain.Record {
	out := slices.Clone(records)
	slices.SortStableFunc(out, func(a, b domain.Record) int {
		for _, k := range s.keys {
			av, _ := lookup(a, k.field)
			bv, _ := lookup(b, k.field)
			r := compareValues(av, bv)
			if k.desc {
				r = -r
			}
			if r != 0 {
				return r
			}
		}
		return 0
	})
	return out
}

// --- limit / skip ---

type limitStage struct{ n int }

type skipStage struct{ n int }

func countArg(field string, body domain.Document) (int, error) {
	v, ok := body.Get("n")
	if !ok {
		return 0, domain.Invalid(field+".n", "is required")
	}
	n, ok := toInt(v)
	if !ok || n < 0 {
		return 0, domain.Invalid(field+".n", "must be a non-negative integer")
	}
	return n, nil
}

func (limitStage) columns(in []string) []string { return in }

func (skipStage) columns(in []string) []string { return in }

func (s limitStage) apply(records []domain.Record) []domain.Record {
	if s.n < len(records) {
		return records[:s.n]
	}
	return records
}

func (s skipStage) apply(records []domain.Record) []domain.Record {
	if s.n >= len(records) {
		return []domain.Record{}
	}
	return records[s.n:]
}

// --- project ---

type projectStage struct {
	include bool
	fields  []string
}

func compileProject(field string, body domain.Document) (stage, error) {
	if len(body) == 0 {
		return nil, domain.Invalid(field, "must name at least one field")
	}
	var includes, excludes int
	st := projectStage{}
	for _, f := range body {
		on, ok := projectFlag(f.Value)
		if !ok {
			return nil, domain.Invalid(field+"."+f.Key, "must be 1 or 0")
		}
		if on {
			includes++
		} else {
			excludes++
		}
		st.fields = append(st.fields, f.Key)
	}
	if includes > 0 && excludes > 0 {
		return nil, domain.Invalid(field, "cannot mix inclusion and exclusion")
	}
	st.include = includes > 0
	return st, nil
}

// columns keeps the listed order in inclusion mode and drops the excluded
// fields otherwise.
func (s projectStage) columns(in []string) []string {
	if s.include {
		return slices.Clone(s.fields)
	}
	if in == nil {
		return nil
	}
	return slices.DeleteFunc(slices.Clone(in), func(c string) bool {
		return slices.Contains(s.fields, c)
	})
}

func projectFlag(v any) (bool, bool) {
	if b, ok := v.(bool); ok {
		return b, true
	}
	n, ok := toInt(v)
	if !ok || (n != 0 && n != 1) {
		return false, false
	}
	return n == 1, true
}

func (s projectStage) apply(records []domain.Record) []domain.Record {
	out := make([]domain.Record, len(records))
	for i, rec := range records {
		var next domain.Record
		if s.include {
			next = make(domain.Record, len(s.fields))
			for _, f := range s.fields {
				if v, ok := lookup(rec, f); ok {
					next[f] = v
				}
			}
		} else {
			next = make(domain.Record, len(rec))
			for k, v := range rec {
				next[k] = v
			}
			for _, f := range s.fields {
				delete(next, f)
			}
		}
		out[i] = next
	}
	return out
}

// --- addFields ---

type computedField struct {
	name string
	expr Expr
}

type addFieldsStage struct {
	fields []computedField
}

func compileAddFields(field string, body domain.Document) (stage, error) {
	if len(body) == 0 {
		return nil, domain.Invalid(field, "must define at least one field")
	}
	st := addFieldsStage{}
	for _, f := range body {
		e, err := ParseExpr(f.Value)
		if err != nil {
			return nil, domain.Invalid(field+"."+f.Key, "%v", err)
		}
		st.fields = append(st.fields, computedField{name: f.Key, expr: e})
	}
	return st, nil
}

// columns appends the new fields after the existing ones.
func (s addFieldsStage) columns(in []string) []string {
	if in == nil {
		return nil
	}
	out := slices.Clone(in)
	for _, f := range s.fields {
		if !slices.Contains(out, f.name) {
			out = append(out, f.name)
		}
	}
	return out
}

// apply evaluates every expression against the record as it entered the
// stage, so fields added earlier in the same body are not visible to later
// ones.
func (s addFieldsStage) apply(records []domain.Record) []domain.Record {
	out := make([]domain.Record, len(records))
	for i, rec := range records {
		next := make(domain.Record, len(rec)+len(s.fields))
		for k, v := range rec {
			next[k] = v
		}
		for _, f := range s.fields {
			next[f.name] = Eval(f.expr, rec)
		}
		out[i] = next
	}
	return out
}

// --- count ---

type countStage struct {
	as string
}

func compileCount(field string, body domain.Document) (stage, error) {
	v, ok := body.Get("as")
	if !ok {
		return nil, domain.Invalid(field+".as", "is required")
	}
	as, ok := v.(string)
	if !ok || as == "" {
		return nil, domain.Invalid(field+".as", "must be a non-empty string")
	}
	return countStage{as: as}, nil
}

func (s countStage) columns([]string) []string { return []string{s.as} }

func (s countStage) apply(records []domain.Record) []domain.Record {
	return []domain.Record{{s.as: len(records)}}
}
