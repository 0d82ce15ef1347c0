package aggregate_test

import (
	"testing"

	"github.com/johnwards/insights/internal/aggregate"
	"github.com/johnwards/insights/internal/domain"
)

func TestParseExpr(t *testing.T) {
	e, err := aggregate.ParseExpr("$salary")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if ref, ok := e.(aggregate.FieldRef); !ok || ref.Path != "salary" {
		t.Errorf("got %#v, want FieldRef(salary)", e)
	}

	e, err = aggregate.ParseExpr(map[string]any{"$add": []any{"$a", 1.0}})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	op, ok := e.(aggregate.Operator)
	if !ok || op.Name != "$add" || len(op.Args) != 2 {
		t.Fatalf("got %#v, want $add with 2 args", e)
	}

	e, err = aggregate.ParseExpr(map[string]any{"city": "Oslo"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if _, ok := e.(aggregate.Literal); !ok {
		t.Errorf("plain mapping parsed as %#v, want Literal", e)
	}

	if _, err := aggregate.ParseExpr(map[string]any{"$subtract": []any{1.0}}); err == nil {
		t.Error("expected arity error for $subtract with one argument")
	}
}

func TestEval(t *testing.T) {
	rec := domain.Record{
		"price":    "19.5",
		"qty":      4,
		"name":     "Widget",
		"discount": nil,
		"address":  map[string]any{"city": "Oslo"},
	}
	tests := []struct {
		name string
		expr any
		want any
	}{
		{"numeric string times int", map[string]any{"$multiply": []any{"$price", "$qty"}}, 78.0},
		{"subtract", map[string]any{"$subtract": []any{10, "$qty"}}, 6.0},
		{"divide", map[string]any{"$divide": []any{"$qty", 8}}, 0.5},
		{"divide by zero", map[string]any{"$divide": []any{"$qty", 0}}, nil},
		{"mod", map[string]any{"$mod": []any{"$qty", 3}}, 1.0},
		{"round", map[string]any{"$round": []any{3.14159, 2}}, 3.14},
		{"ifNull", map[string]any{"$ifNull": []any{"$discount", 0}}, 0},
		{"toString", map[string]any{"$toString": "$qty"}, "4"},
		{"toNumber", map[string]any{"$toNumber": "$price"}, 19.5},
		{"nested", map[string]any{"$add": []any{map[string]any{"$multiply": []any{"$qty", 2}}, 1}}, 9.0},
		{"dotted path", "$address.city", "Oslo"},
		{"concat with nil", map[string]any{"$concat": []any{"$name", "$discount"}}, nil},
		{"escaped dollar literal", "$$5", "$$5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := aggregate.ParseExpr(tt.expr)
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if got := aggregate.Eval(e, rec); got != tt.want {
				t.Errorf("Eval = %#v, want %#v", got, tt.want)
			}
		})
	}
}
