package reactiveschema

// evalIterationOp implements the Iteration group (spec.md §4.B): SUM, FOR,
// MULTIPLIES, DIVIDES.
func (e *Evaluator) evalIterationOp(n *Node, scope *Scope, depth int) (any, error) {
	switch n.Kind {
	case KindSum:
		return e.evalSum(n, scope, depth)
	case KindFor:
		return e.evalFor(n, scope, depth)
	case KindMultiplies:
		return e.evalFold(n, scope, depth, 1, func(acc, v float64) float64 { return acc * v })
	case KindDivides:
		return e.evalFold(n, scope, depth, 0, func(acc, v float64) float64 {
			if v == 0 {
				return acc
			}
			return acc / v
		})
	}
	return nil, nil
}

// evalSum(array) or evalSum(v1, v2, ...): sums the numeric contents,
// flattening one array level so SUM({"var":"$table"}) sums a column-valued
// list.
func (e *Evaluator) evalSum(n *Node, scope *Scope, depth int) (any, error) {
	vals, err := e.evalEach(n.Items, scope, depth)
	if err != nil {
		return nil, err
	}
	var total float64
	for _, v := range vals {
		if arr, ok := v.([]any); ok {
			for _, el := range arr {
				total += toF64(el)
			}
			continue
		}
		total += toF64(v)
	}
	return normalizeNumber(total), nil
}

func (e *Evaluator) evalFold(n *Node, scope *Scope, depth int, identity float64, fold func(acc, v float64) float64) (any, error) {
	vals, err := e.evalEach(n.Items, scope, depth)
	if err != nil {
		return nil, err
	}
	if len(vals) == 0 {
		return normalizeNumber(identity), nil
	}
	acc := toF64(vals[0])
	for _, v := range vals[1:] {
		acc = fold(acc, toF64(v))
	}
	return normalizeNumber(acc), nil
}

// evalFor implements FOR(start, end, expr): evaluates expr once per
// iteration in [start, end], binding $loopIteration (distinct from the
// table materialiser's $iteration), and returns the array of results.
func (e *Evaluator) evalFor(n *Node, scope *Scope, depth int) (any, error) {
	if len(n.Items) < 3 {
		return []any{}, nil
	}
	startV, err := e.arg(n, 0, scope, depth)
	if err != nil {
		return nil, err
	}
	endV, err := e.arg(n, 1, scope, depth)
	if err != nil {
		return nil, err
	}
	start, end := int(toF64(startV)), int(toF64(endV))
	expr := n.Items[2]
	var out []any
	for i := start; i <= end; i++ {
		loopScope := scope.With(map[string]any{"$loopIteration": float64(i)})
		v, err := e.evalDepth(expr, loopScope, depth+1)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if out == nil {
		out = []any{}
	}
	return out, nil
}
