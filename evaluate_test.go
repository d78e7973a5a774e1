package reactiveschema

import (
	"reflect"
	"testing"
)

func eval(t *testing.T, ev *Evaluator, logic any, primary any) any {
	t.Helper()
	n := mustCompile(t, logic)
	v, err := ev.Evaluate(n, NewScope(primary))
	if err != nil {
		t.Fatalf("Evaluate(%v) error: %v", logic, err)
	}
	return v
}

func TestEvaluateArithmeticWithRef(t *testing.T) {
	ev := NewEvaluator()
	// Mirrors spec.md S1: {"+": [{"$ref":"$params.a"}, {"var":"y"}]}
	logic := map[string]any{"+": []any{
		map[string]any{"$ref": "$params.a"},
		map[string]any{"var": "y"},
	}}
	scope := NewScope(map[string]any{"y": 3.0}).With(map[string]any{"$params": map[string]any{"a": 2.0}})
	n := mustCompile(t, logic)
	v, err := ev.Evaluate(n, scope)
	if err != nil {
		t.Fatalf("eval error: %v", err)
	}
	if v != 5.0 {
		t.Fatalf("expected 5, got %v", v)
	}
}

func TestEvaluateLogicalShortCircuit(t *testing.T) {
	ev := NewEvaluator()
	if v := eval(t, ev, map[string]any{"and": []any{true, false, true}}, nil); v != false {
		t.Errorf("and -> %v", v)
	}
	if v := eval(t, ev, map[string]any{"or": []any{false, 0, "hit"}}, nil); v != "hit" {
		t.Errorf("or -> %v", v)
	}
	if v := eval(t, ev, map[string]any{"!": []any{false}}, nil); v != true {
		t.Errorf("! -> %v", v)
	}
}

func TestEvaluateComparisons(t *testing.T) {
	ev := NewEvaluator()
	if v := eval(t, ev, map[string]any{"==": []any{"1", 1}}, nil); v != true {
		t.Errorf("loose == expected true, got %v", v)
	}
	if v := eval(t, ev, map[string]any{"===": []any{"1", 1}}, nil); v != false {
		t.Errorf("strict === expected false, got %v", v)
	}
	if v := eval(t, ev, map[string]any{">": []any{2, 1}}, nil); v != true {
		t.Errorf("> expected true, got %v", v)
	}
}

func TestEvaluateNumberNormalization(t *testing.T) {
	ev := NewEvaluator()
	v := eval(t, ev, map[string]any{"+": []any{0.1, 0.2}}, nil)
	f, ok := v.(float64)
	if !ok || f < 0.29999 || f > 0.30001 {
		t.Fatalf("expected ~0.3, got %v", v)
	}
}

func TestEvaluateIf(t *testing.T) {
	ev := NewEvaluator()
	logic := map[string]any{"if": []any{false, "a", true, "b", "c"}}
	if v := eval(t, ev, logic, nil); v != "b" {
		t.Fatalf("expected b, got %v", v)
	}
}

func TestEvaluateVarDefault(t *testing.T) {
	ev := NewEvaluator()
	logic := map[string]any{"var": []any{"missing", "fallback"}}
	if v := eval(t, ev, logic, map[string]any{}); v != "fallback" {
		t.Fatalf("expected fallback, got %v", v)
	}
}

func TestEvaluateArrayMapFilter(t *testing.T) {
	ev := NewEvaluator()
	data := map[string]any{"nums": []any{1.0, 2.0, 3.0}}
	mapped := eval(t, ev, map[string]any{"map": []any{
		map[string]any{"var": "nums"},
		map[string]any{"*": []any{map[string]any{"var": ""}, 2}},
	}}, data)
	if !reflect.DeepEqual(mapped, []any{2.0, 4.0, 6.0}) {
		t.Fatalf("unexpected map result: %v", mapped)
	}

	filtered := eval(t, ev, map[string]any{"filter": []any{
		map[string]any{"var": "nums"},
		map[string]any{">": []any{map[string]any{"var": ""}, 1}},
	}}, data)
	if !reflect.DeepEqual(filtered, []any{2.0, 3.0}) {
		t.Fatalf("unexpected filter result: %v", filtered)
	}
}

func TestEvaluateStringOps(t *testing.T) {
	ev := NewEvaluator()
	if v := eval(t, ev, map[string]any{"cat": []any{"a", "b", "c"}}, nil); v != "abc" {
		t.Errorf("cat -> %v", v)
	}
	if v := eval(t, ev, map[string]any{"left": []any{"hello", 3}}, nil); v != "hel" {
		t.Errorf("left -> %v", v)
	}
	if v := eval(t, ev, map[string]any{"length": []any{"hello"}}, nil); v != float64(5) {
		t.Errorf("length -> %v", v)
	}
}

func TestEvaluateTableValueAt(t *testing.T) {
	ev := NewEvaluator()
	rows := []any{
		map[string]any{"sku": "a", "price": 10.0},
		map[string]any{"sku": "b", "price": 20.0},
	}
	v := eval(t, ev, map[string]any{"VALUEAT": []any{
		map[string]any{"var": "rows"}, 1.0, "price",
	}}, map[string]any{"rows": rows})
	if v != 20.0 {
		t.Fatalf("expected 20, got %v", v)
	}
}

func TestEvaluateTableValueAtOutOfRangeYieldsNull(t *testing.T) {
	ev := NewEvaluator()
	v := eval(t, ev, map[string]any{"VALUEAT": []any{
		map[string]any{"var": "rows"}, -1.0, "price",
	}}, map[string]any{"rows": []any{}})
	if v != nil {
		t.Fatalf("expected nil for out-of-range index, got %v", v)
	}
}

func TestEvaluateMatch(t *testing.T) {
	ev := NewEvaluator()
	rows := []any{
		map[string]any{"sku": "a", "price": 10.0},
		map[string]any{"sku": "b", "price": 20.0},
	}
	v := eval(t, ev, map[string]any{"MATCH": []any{
		map[string]any{"var": "rows"},
		[]any{"==", "b", "sku"},
	}}, map[string]any{"rows": rows})
	row, ok := v.(map[string]any)
	if !ok || row["price"] != 20.0 {
		t.Fatalf("expected row b, got %v", v)
	}
}

func TestEvaluateSum(t *testing.T) {
	ev := NewEvaluator()
	v := eval(t, ev, map[string]any{"SUM": []any{
		map[string]any{"var": "nums"},
	}}, map[string]any{"nums": []any{1.0, 2.0, 3.0}})
	if v != 6.0 {
		t.Fatalf("expected 6, got %v", v)
	}
}

func TestEvaluateMissingSome(t *testing.T) {
	ev := NewEvaluator()
	v := eval(t, ev, map[string]any{"missing_some": []any{
		2, []any{"a", "b"},
	}}, map[string]any{"a": "x"})
	missing, ok := v.([]any)
	if !ok || len(missing) != 1 || missing[0] != "b" {
		t.Fatalf("expected [b], got %v", v)
	}
}

func TestEvaluateRecursionLimit(t *testing.T) {
	ev := NewEvaluator(WithMaxDepth(2))
	n := mustCompile(t, map[string]any{"+": []any{
		map[string]any{"-": []any{
			map[string]any{"+": []any{1, 1}},
			1,
		}},
		1,
	}})
	_, err := ev.Evaluate(n, NewScope(nil))
	if err == nil {
		t.Fatal("expected recursion limit error")
	}
}
