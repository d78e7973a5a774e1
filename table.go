package reactiveschema

import "fmt"

// MaterializeTable runs the six-step table materialisation algorithm
// described in spec.md §4.E against data, returning the resulting row array.
// Grounded on original_source/src/table_evaluate.rs line-for-line: data-plan
// ordering, clear-does-not-early-return, forward-column fixed point, and the
// frozen-snapshot backward sweep. The in-progress row array is published
// back into data after every row so a forward-referencing VALUEAT lookup
// inside the same table can see sibling rows as they are produced.
func MaterializeTable(tm *TableMetadata, ev *Evaluator, data *EvalData) ([]any, error) {
	tablePath := ToCanonical(dataPath(tm.Path))
	scope := data.Scope()

	// Step 1: $datas, bound into scope as "$<name>" bindings.
	if len(tm.Datas) > 0 {
		bindings := make(map[string]any, len(tm.Datas))
		for _, de := range tm.Datas {
			v, err := resolveValueShape(de.Logic, de.Literal, ev, scope)
			if err != nil {
				return nil, fmt.Errorf("%w: table %s $datas.%s: %v", ErrTableEvaluation, tm.Path, de.Name, err)
			}
			bindings["$"+de.Name] = v
		}
		scope = scope.With(bindings)
	}

	// Step 2: init empty array.
	rows := []any{}
	data.Set(tablePath, rows)

	// Step 3: $skip.
	skipVal, err := resolveValueShape(tm.SkipLogic, tm.SkipLiteral, ev, scope)
	if err != nil {
		return nil, fmt.Errorf("%w: table %s $skip: %v", ErrTableEvaluation, tm.Path, err)
	}
	if truthy(skipVal) {
		return rows, nil
	}

	// Step 4: $clear. Per the original, this does not early-return: row
	// plans still run (so that $datas-derived scope stays consistent for
	// any sibling evaluation reading through this table's dependency), but
	// a true $clear discards the row-plan output and leaves the table empty.
	clearVal, err := resolveValueShape(tm.ClearLogic, tm.ClearLiteral, ev, scope)
	if err != nil {
		return nil, fmt.Errorf("%w: table %s $clear: %v", ErrTableEvaluation, tm.Path, err)
	}
	cleared := truthy(clearVal)

	var built []any
	for _, rp := range tm.RowPlans {
		switch r := rp.(type) {
		case StaticRow:
			row, err := evalStaticRow(r, ev, scope)
			if err != nil {
				return nil, fmt.Errorf("%w: table %s: %v", ErrTableEvaluation, tm.Path, err)
			}
			built = append(built, row)
			data.Set(tablePath, built)
		case RepeatRow:
			repeated, err := evalRepeatRow(r, ev, scope, data, tablePath, built)
			if err != nil {
				return nil, fmt.Errorf("%w: table %s: %v", ErrTableEvaluation, tm.Path, err)
			}
			built = append(built, repeated...)
			data.Set(tablePath, built)
		}
	}

	if cleared {
		rows = []any{}
		data.Set(tablePath, rows)
		return rows, nil
	}
	if built == nil {
		built = []any{}
	}
	data.Set(tablePath, built)
	return built, nil
}

// resolveValueShape evaluates logic if present, otherwise returns literal
// unchanged (the $evaluation/value convention shared across $datas, $skip,
// $clear, repeat bounds, and plain columns).
func resolveValueShape(logic *Node, literal any, ev *Evaluator, scope *Scope) (any, error) {
	if logic == nil {
		return literal, nil
	}
	return ev.Evaluate(logic, scope)
}

func evalStaticRow(r StaticRow, ev *Evaluator, scope *Scope) (map[string]any, error) {
	row := map[string]any{}
	s := scope
	for _, col := range r.Columns {
		var v any
		var err error
		if col.HasLogic {
			v, err = ev.Evaluate(col.Logic, s)
		} else {
			v = col.Literal
		}
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", col.Name, err)
		}
		row[col.Name] = v
		s = s.With(map[string]any{col.ScopeVar(): v})
	}
	return row, nil
}

// evalRepeatRow implements spec.md §4.E's repeat-row algorithm: a forward
// pass over normal-set columns (schema order, row by row, each row seeing
// its predecessors), then up to three alternating-direction backward-sweep
// passes resolving forward-set columns against a frozen per-row scope
// snapshot. existing holds rows already produced by an earlier StaticRow
// plan on the same table, published so repeat rows can reference them.
func evalRepeatRow(r RepeatRow, ev *Evaluator, scope *Scope, data *EvalData, tablePath string, existing []any) ([]any, error) {
	startVal, err := resolveValueShape(r.StartLogic, r.StartLiteral, ev, scope)
	if err != nil {
		return nil, fmt.Errorf("$repeat start: %w", err)
	}
	endVal, err := resolveValueShape(r.EndLogic, r.EndLiteral, ev, scope)
	if err != nil {
		return nil, fmt.Errorf("$repeat end: %w", err)
	}
	start := int(toF64(startVal))
	end := int(toF64(endVal))
	if start > end {
		return []any{}, nil
	}
	count := end - start + 1

	rows := make([]map[string]any, count)
	for i := range rows {
		rows[i] = map[string]any{}
	}
	rowScope := make([]*Scope, count)

	publish := func() {
		all := make([]any, 0, len(existing)+count)
		all = append(all, existing...)
		for _, row := range rows {
			all = append(all, row)
		}
		data.Set(tablePath, all)
	}

	// Phase I: forward pass, normal-set columns only.
	for i := 0; i < count; i++ {
		iter := start + i
		s := scope.With(map[string]any{
			"$iteration": float64(iter),
			"$threshold": float64(end),
		})
		for _, col := range r.Columns {
			if r.ForwardSet[col.Name] {
				continue
			}
			var v any
			var err error
			if col.HasLogic {
				v, err = ev.Evaluate(col.Logic, s)
			} else {
				v = col.Literal
			}
			if err != nil {
				return nil, fmt.Errorf("row %d column %q: %w", iter, col.Name, err)
			}
			rows[i][col.Name] = v
			s = s.With(map[string]any{col.ScopeVar(): v})
		}
		rowScope[i] = s
		publish()
	}

	// Phase II: up to three alternating-direction backward-sweep passes for
	// forward-set columns, against the frozen per-row scope snapshot plus
	// whatever a previous pass already wrote for that row.
	if len(r.ForwardSet) > 0 {
		for pass := 0; pass < 3; pass++ {
			reverse := pass%2 == 0
			for idx := 0; idx < count; idx++ {
				i := idx
				if reverse {
					i = count - 1 - idx
				}
				s := rowScope[i]
				for _, col := range r.Columns {
					if !r.ForwardSet[col.Name] {
						continue
					}
					var v any
					var err error
					if col.HasLogic {
						v, err = ev.Evaluate(col.Logic, s)
					} else {
						v = col.Literal
					}
					if err != nil {
						return nil, fmt.Errorf("row %d column %q: %w", start+i, col.Name, err)
					}
					rows[i][col.Name] = v
					s = s.With(map[string]any{col.ScopeVar(): v})
				}
				rowScope[i] = s
				publish()
			}
		}
	}

	out := make([]any, count)
	for i, row := range rows {
		out[i] = row
	}
	return out, nil
}
