package reactiveschema

// evalUIOp implements the UI helpers group (spec.md §4.B): RANGEOPTIONS
// MAPOPTIONS MAPOPTIONSIF, all producing {label, value} arrays for form
// widgets downstream of this engine.
func (e *Evaluator) evalUIOp(n *Node, scope *Scope, depth int) (any, error) {
	switch n.Kind {
	case KindRangeOptions:
		return e.evalRangeOptions(n, scope, depth)
	case KindMapOptions:
		return e.evalMapOptions(n, scope, depth)
	case KindMapOptionsIf:
		return e.evalMapOptionsIf(n, scope, depth)
	}
	return nil, nil
}

func option(label, value any) map[string]any {
	return map[string]any{"label": label, "value": value}
}

func (e *Evaluator) evalRangeOptions(n *Node, scope *Scope, depth int) (any, error) {
	startV, err := e.arg(n, 0, scope, depth)
	if err != nil {
		return nil, err
	}
	endV, err := e.arg(n, 1, scope, depth)
	if err != nil {
		return nil, err
	}
	start, end := int(toF64(startV)), int(toF64(endV))
	var out []any
	for i := start; i <= end; i++ {
		out = append(out, option(float64(i), float64(i)))
	}
	if out == nil {
		out = []any{}
	}
	return out, nil
}

func (e *Evaluator) evalMapOptions(n *Node, scope *Scope, depth int) (any, error) {
	rows, err := e.rowsArg(n, scope, depth)
	if err != nil {
		return nil, err
	}
	labelCol, err := e.stringArg(n, 1, scope, depth)
	if err != nil {
		return nil, err
	}
	valueCol, err := e.stringArg(n, 2, scope, depth)
	if err != nil {
		return nil, err
	}
	out := make([]any, 0, len(rows))
	for _, r := range rows {
		m, ok := r.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, option(m[labelCol], m[valueCol]))
	}
	return out, nil
}

func (e *Evaluator) evalMapOptionsIf(n *Node, scope *Scope, depth int) (any, error) {
	rows, err := e.rowsArg(n, scope, depth)
	if err != nil {
		return nil, err
	}
	if len(n.Items) < 3 {
		return []any{}, nil
	}
	labelCol, err := e.evalDepth(n.Items[1], scope, depth+1)
	if err != nil {
		return nil, err
	}
	valueCol, err := e.evalDepth(n.Items[2], scope, depth+1)
	if err != nil {
		return nil, err
	}
	labelColName, valueColName := toStringValue(labelCol), toStringValue(valueCol)
	var out []any
	for _, r := range rows {
		ok, err := e.rowMatchesConds(n.Cond, r, scope, depth)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		m, ok := r.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, option(m[labelColName], m[valueColName]))
	}
	if out == nil {
		out = []any{}
	}
	return out, nil
}
