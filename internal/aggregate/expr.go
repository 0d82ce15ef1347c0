package aggregate

import (
	"fmt"
	"math"
	"strings"

	"github.com/johnwards/insights/internal/domain"
)

// Expr is an addFields expression: a Literal, a FieldRef or an Operator.
type Expr interface {
	expr()
}

// Literal is a constant value.
type Literal struct {
	Value any
}

// FieldRef reads a field of the current record ("$salary").
type FieldRef struct {
	Path string
}

// Operator applies a named operator to its argument expressions.
type Operator struct {
	Name string
	Args []Expr
}

func (Literal) expr()  {}
func (FieldRef) expr() {}
func (Operator) expr() {}

// arity bounds per operator; max < 0 means unbounded.
var operators = map[string]struct{ min, max int }{
	"$add":      {1, -1},
	"$subtract": {2, 2},
	"$multiply": {1, -1},
	"$divide":   {2, 2},
	"$mod":      {2, 2},
	"$concat":   {1, -1},
	"$round":    {1, 2},
	"$ifNull":   {2, -1},
	"$toString": {1, 1},
	"$toNumber": {1, 1},
}

// ParseExpr builds an expression from a decoded body value. Strings starting
// with "$" are field references, single-key mappings whose key is a known
// operator are operator calls, everything else is a literal.
func ParseExpr(v any) (Expr, error) {
	if s, ok := v.(string); ok {
		if len(s) > 1 && s[0] == '$' && s[1] != '$' {
			return FieldRef{Path: s[1:]}, nil
		}
		return Literal{Value: s}, nil
	}
	m, ok := asMap(v)
	if !ok || len(m) != 1 {
		return Literal{Value: normalize(v)}, nil
	}
	var name string
	var raw any
	for k, val := range m {
		name, raw = k, val
	}
	if !strings.HasPrefix(name, "$") {
		return Literal{Value: normalize(v)}, nil
	}
	bounds, known := operators[name]
	if !known {
		return nil, fmt.Errorf("unknown operator %q", name)
	}
	rawArgs, isList := asSlice(raw)
	if !isList {
		rawArgs = []any{raw}
	}
	if len(rawArgs) < bounds.min || (bounds.max >= 0 && len(rawArgs) > bounds.max) {
		return nil, fmt.Errorf("operator %s takes %s, got %d", name, arityText(bounds.min, bounds.max), len(rawArgs))
	}
	args := make([]Expr, len(rawArgs))
	for i, a := range rawArgs {
		arg, err := ParseExpr(a)
		if err != nil {
			return nil, fmt.Errorf("%s argument %d: %w", name, i, err)
		}
		args[i] = arg
	}
	return Operator{Name: name, Args: args}, nil
}

func arityText(min, max int) string {
	switch {
	case max < 0:
		return fmt.Sprintf("at least %d argument(s)", min)
	case min == max:
		return fmt.Sprintf("%d argument(s)", min)
	default:
		return fmt.Sprintf("%d to %d arguments", min, max)
	}
}

// Eval evaluates e against rec. Missing fields evaluate to nil and arithmetic
// over nil or non-numeric operands yields nil; Eval never fails.
func Eval(e Expr, rec domain.Record) any {
	switch x := e.(type) {
	case Literal:
		return domain.CloneValue(x.Value)
	case FieldRef:
		v, _ := lookup(rec, x.Path)
		return v
	case Operator:
		args := make([]any, len(x.Args))
		for i, a := range x.Args {
			args[i] = Eval(a, rec)
		}
		return applyOperator(x.Name, args)
	}
	return nil
}

func applyOperator(name string, args []any) any {
	switch name {
	case "$add", "$multiply":
		nums, ok := numbers(args)
		if !ok {
			return nil
		}
		acc := nums[0]
		for _, n := range nums[1:] {
			if name == "$add" {
				acc += n
			} else {
				acc *= n
			}
		}
		return acc
	case "$subtract", "$divide", "$mod":
		nums, ok := numbers(args)
		if !ok {
			return nil
		}
		a, b := nums[0], nums[1]
		switch name {
		case "$subtract":
			return a - b
		case "$divide":
			if b == 0 {
				return nil
			}
			return a / b
		default:
			if b == 0 {
				return nil
			}
			return math.Mod(a, b)
		}
	case "$concat":
		var sb strings.Builder
		for _, a := range args {
			if a == nil {
				return nil
			}
			sb.WriteString(stringOf(a))
		}
		return sb.String()
	case "$round":
		x, ok := toFloat(args[0])
		if !ok || args[0] == nil {
			return nil
		}
		places := 0.0
		if len(args) == 2 {
			p, ok := toFloat(args[1])
			if !ok {
				return nil
			}
			places = math.Trunc(p)
		}
		scale := math.Pow(10, places)
		return math.Round(x*scale) / scale
	case "$ifNull":
		for _, a := range args {
			if a != nil {
				return a
			}
		}
		return nil
	case "$toString":
		if args[0] == nil {
			return nil
		}
		return stringOf(args[0])
	case "$toNumber":
		f, ok := toFloat(args[0])
		if !ok {
			return nil
		}
		return f
	}
	return nil
}

func numbers(args []any) ([]float64, bool) {
	out := make([]float64, len(args))
	for i, a := range args {
		f, ok := toFloat(a)
		if !ok {
			return nil, false
		}
		out[i] = f
	}
	return out, true
}
