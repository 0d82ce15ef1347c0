package aggregate

import (
	"strings"

	"github.com/johnwards/insights/internal/domain"
)

type accumulatorKind int

const (
	accSum accumulatorKind = iota
	accAvg
	accMin
	accMax
	accCount
	accFirst
	accLast
	accPush
)

var accumulatorNames = map[string]accumulatorKind{
	"$sum":   accSum,
	"$avg":   accAvg,
	"$min":   accMin,
	"$max":   accMax,
	"$count": accCount,
	"$first": accFirst,
	"$last":  accLast,
	"$push":  accPush,
}

// accumulator computes one output field of a group.
type accumulator struct {
	name  string
	kind  accumulatorKind
	field string
	// constant is added per record by {$sum: <number>}.
	constant *float64
}

type groupStage struct {
	// by is the grouping field; empty means a single group keyed nil.
	by   string
	accs []accumulator
}

func compileGroup(field string, body domain.Document) (stage, error) {
	idVal, ok := body.Get("_id")
	if !ok {
		return nil, domain.Invalid(field+"._id", "is required")
	}
	st := groupStage{}
	switch id := idVal.(type) {
	case nil:
	case string:
		st.by = strings.TrimPrefix(id, "$")
		if st.by == "" {
			return nil, domain.Invalid(field+"._id", "must name a field")
		}
	default:
		return nil, domain.Invalid(field+"._id", "must be a field name or null")
	}
	for _, f := range body {
		if f.Key == "_id" {
			continue
		}
		acc, err := compileAccumulator(field+"."+f.Key, f.Key, f.Value)
		if err != nil {
			return nil, err
		}
		st.accs = append(st.accs, acc)
	}
	return st, nil
}

func compileAccumulator(path, name string, v any) (accumulator, error) {
	m, ok := asMap(v)
	if !ok || len(m) != 1 {
		return accumulator{}, domain.Invalid(path, "must be an object with exactly one accumulator")
	}
	var op string
	var arg any
	for k, val := range m {
		op, arg = k, val
	}
	kind, known := accumulatorNames[op]
	if !known {
		return accumulator{}, domain.Invalid(path, "unknown accumulator %q", op)
	}
	acc := accumulator{name: name, kind: kind}
	switch kind {
	case accCount:
		if b, ok := arg.(bool); !ok || !b {
			return accumulator{}, domain.Invalid(path+"."+op, "must be true")
		}
		return acc, nil
	case accSum:
		if isNumber(arg) {
			f, _ := toFloat(arg)
			acc.constant = &f
			return acc, nil
		}
	}
	s, ok := arg.(string)
	s = strings.TrimPrefix(s, "$")
	if !ok || s == "" {
		return accumulator{}, domain.Invalid(path+"."+op, "must name a source field")
	}
	acc.field = s
	return acc, nil
}

// accState is the running value of one accumulator in one group.
type accState struct {
	sum   float64
	n     int
	value any
	seen  bool
	items []any
}

type group struct {
	id     any
	states []accState
}

// apply emits one record per distinct grouping value, in first-seen order.
// Records without the grouping field fall into the nil group.
func (s groupStage) apply(records []domain.Record) []domain.Record {
	index := make(map[string]*group)
	var order []*group
	for _, rec := range records {
		var id any
		if s.by != "" {
			id, _ = lookup(rec, s.by)
		}
		key := groupKey(id)
		g, ok := index[key]
		if !ok {
			g = &group{id: id, states: make([]accState, len(s.accs))}
			index[key] = g
			order = append(order, g)
		}
		for i, acc := range s.accs {
			acc.add(&g.states[i], rec)
		}
	}
	out := make([]domain.Record, 0, len(order))
	for _, g := range order {
		rec := domain.Record{"_id": g.id}
		for i, acc := range s.accs {
			rec[acc.name] = acc.result(&g.states[i])
		}
		out = append(out, rec)
	}
	return out
}

// columns puts _id first, then the accumulators in declaration order.
func (s groupStage) columns([]string) []string {
	out := make([]string, 0, len(s.accs)+1)
	out = append(out, "_id")
	for _, acc := range s.accs {
		out = append(out, acc.name)
	}
	return out
}

func (a accumulator) add(st *accState, rec domain.Record) {
	switch a.kind {
	case accCount:
		st.n++
		return
	case accSum:
		if a.constant != nil {
			st.sum += *a.constant
			return
		}
	}
	v, present := lookup(rec, a.field)
	switch a.kind {
	case accSum, accAvg:
		if f, ok := toFloat(v); ok {
			st.sum += f
			st.n++
		}
	case accMin, accMax:
		if v == nil {
			return
		}
		r := 0
		if st.seen {
			r = compareValues(v, st.value)
		}
		if !st.seen || (a.kind == accMin && r < 0) || (a.kind == accMax && r > 0) {
			st.value = v
			st.seen = true
		}
	case accFirst:
		if !st.seen {
			st.value = v
			st.seen = true
		}
	case accLast:
		st.value = v
		st.seen = true
	case accPush:
		if present {
			st.items = append(st.items, v)
		}
	}
}

func (a accumulator) result(st *accState) any {
	switch a.kind {
	case accSum:
		return st.sum
	case accAvg:
		if st.n == 0 {
			return nil
		}
		return st.sum / float64(st.n)
	case accCount:
		return st.n
	case accPush:
		if st.items == nil {
			return []any{}
		}
		return st.items
	default:
		return st.value
	}
}
