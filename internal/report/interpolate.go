package report

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/johnwards/insights/internal/domain"
)

const paramPrefix = "$param."

// resolveParams computes the value of every declared parameter. Provided
// values win, then defaults; a required parameter with neither is an error.
// Undeclared entries of params are passed through so ad hoc tokens still
// resolve.
func resolveParams(decl []domain.Parameter, params map[string]any) (map[string]any, error) {
	values := make(map[string]any, len(decl)+len(params))
	for name, v := range params {
		values[name] = v
	}
	for _, p := range decl {
		v, provided := params[p.Name]
		switch {
		case provided:
			if err := checkType(p, v); err != nil {
				return nil, err
			}
		case p.DefaultValue != nil:
			v = p.DefaultValue
		case p.Required:
			return nil, domain.Invalid("params."+p.Name, "required parameter missing: %s", p.Name)
		default:
			v = nil
		}
		values[p.Name] = v
	}
	return values, nil
}

func checkType(p domain.Parameter, v any) error {
	if v == nil {
		return nil
	}
	ok := true
	switch p.Type {
	case domain.ParamString:
		_, ok = v.(string)
	case domain.ParamBoolean:
		_, ok = v.(bool)
	case domain.ParamNumber:
		switch n := v.(type) {
		case float64, float32, int, int32, int64, json.Number:
		case string:
			var f float64
			_, err := fmt.Sscan(n, &f)
			ok = err == nil
		default:
			ok = false
		}
	case domain.ParamDate:
		switch d := v.(type) {
		case time.Time:
		case string:
			_, err := time.Parse(time.RFC3339, d)
			if err != nil {
				_, err = time.Parse(time.DateOnly, d)
			}
			ok = err == nil
		default:
			ok = false
		}
	}
	if !ok {
		return domain.Invalid("params."+p.Name, "must be of type %s, got %T", p.Type, v)
	}
	return nil
}

// interpolate returns a deep copy of stages with every "$param.<name>" token
// replaced. A string that is exactly one token takes the parameter's value
// with its type; a token embedded in a longer string is replaced by the
// value's text. Tokens without a resolved value are left untouched.
func interpolate(stages []domain.Stage, values map[string]any) []domain.Stage {
	out := make([]domain.Stage, len(stages))
	for i, s := range stages {
		body := make(domain.Document, len(s.Body))
		for j, f := range s.Body {
			body[j] = domain.Field{Key: f.Key, Value: substitute(f.Value, values)}
		}
		out[i] = domain.Stage{Type: s.Type, Body: body}
	}
	return out
}

func substitute(v any, values map[string]any) any {
	switch t := v.(type) {
	case string:
		return substituteString(t, values)
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, val := range t {
			m[k] = substitute(val, values)
		}
		return m
	case []any:
		s := make([]any, len(t))
		for i, val := range t {
			s[i] = substitute(val, values)
		}
		return s
	case domain.Document:
		d := make(domain.Document, len(t))
		for i, f := range t {
			d[i] = domain.Field{Key: f.Key, Value: substitute(f.Value, values)}
		}
		return d
	default:
		return domain.CloneValue(v)
	}
}

func substituteString(s string, values map[string]any) any {
	if !strings.Contains(s, paramPrefix) {
		return s
	}
	if name, ok := strings.CutPrefix(s, paramPrefix); ok && isParamName(name) {
		if v, found := values[name]; found {
			return domain.CloneValue(v)
		}
		return s
	}
	var sb strings.Builder
	rest := s
	for {
		idx := strings.Index(rest, paramPrefix)
		if idx < 0 {
			sb.WriteString(rest)
			break
		}
		sb.WriteString(rest[:idx])
		after := rest[idx+len(paramPrefix):]
		end := 0
		for end < len(after) && isParamRune(after[end]) {
			end++
		}
		name := after[:end]
		if v, found := values[name]; found && name != "" {
			sb.WriteString(textOf(v))
		} else {
			sb.WriteString(paramPrefix + name)
		}
		rest = after[end:]
	}
	return sb.String()
}

func isParamName(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isParamRune(s[i]) {
			return false
		}
	}
	return true
}

func isParamRune(c byte) bool {
	return c == '_' || c == '-' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func textOf(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case time.Time:
		return t.UTC().Format(time.RFC3339)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}
