package reactiveschema

// evalTableOp implements the Table lookup group (spec.md §4.B): VALUEAT
// MAXAT INDEXAT MATCH MATCHRANGE CHOOSE FINDINDEX. Out-of-range or negative
// row indices yield Null rather than an error (spec.md §9 Open Question c),
// which matters for VALUEAT(..., $iteration-1, ...) at iteration 0.
func (e *Evaluator) evalTableOp(n *Node, scope *Scope, depth int) (any, error) {
	switch n.Kind {
	case KindValueAt:
		return e.evalValueAt(n, scope, depth)
	case KindIndexAt:
		return e.evalIndexAt(n, scope, depth)
	case KindMaxAt:
		return e.evalMaxAt(n, scope, depth)
	case KindMatch:
		return e.evalMatch(n, scope, depth)
	case KindMatchRange:
		return e.evalMatchRange(n, scope, depth)
	case KindChoose:
		return e.evalChoose(n, scope, depth)
	case KindFindIndex:
		return e.evalFindIndex(n, scope, depth)
	}
	return nil, nil
}

func (e *Evaluator) rowsArg(n *Node, scope *Scope, depth int) ([]any, error) {
	v, err := e.arg(n, 0, scope, depth)
	if err != nil {
		return nil, err
	}
	return toArrayValue(v), nil
}

func (e *Evaluator) evalValueAt(n *Node, scope *Scope, depth int) (any, error) {
	rows, err := e.rowsArg(n, scope, depth)
	if err != nil {
		return nil, err
	}
	idxV, err := e.arg(n, 1, scope, depth)
	if err != nil {
		return nil, err
	}
	idx := int(toF64(idxV))
	if idx < 0 || idx >= len(rows) {
		return nil, nil
	}
	row := rows[idx]
	if len(n.Items) < 3 {
		return row, nil
	}
	col, err := e.stringArg(n, 2, scope, depth)
	if err != nil {
		return nil, err
	}
	if m, ok := row.(map[string]any); ok {
		return m[col], nil
	}
	return row, nil
}

func (e *Evaluator) evalIndexAt(n *Node, scope *Scope, depth int) (any, error) {
	rows, err := e.rowsArg(n, scope, depth)
	if err != nil {
		return nil, err
	}
	idxV, err := e.arg(n, 1, scope, depth)
	if err != nil {
		return nil, err
	}
	idx := int(toF64(idxV))
	if idx < 0 || idx >= len(rows) {
		return nil, nil
	}
	return rows[idx], nil
}

func (e *Evaluator) evalMaxAt(n *Node, scope *Scope, depth int) (any, error) {
	rows, err := e.rowsArg(n, scope, depth)
	if err != nil {
		return nil, err
	}
	col, err := e.stringArg(n, 1, scope, depth)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	max := 0.0
	found := false
	for _, r := range rows {
		m, ok := r.(map[string]any)
		if !ok {
			continue
		}
		v, ok := m[col]
		if !ok {
			continue
		}
		f := toF64(v)
		if !found || f > max {
			max, found = f, true
		}
	}
	if !found {
		return nil, nil
	}
	return normalizeNumber(max), nil
}

// rowMatchesConds evaluates every condition in n.Cond with row bound as the
// child scope's primary value, returning true iff all are truthy.
func (e *Evaluator) rowMatchesConds(conds []*Node, row any, scope *Scope, depth int) (bool, error) {
	rowScope := scope.WithPrimary(row)
	for _, c := range conds {
		v, err := e.evalDepth(c, rowScope, depth+1)
		if err != nil {
			return false, err
		}
		if !truthy(v) {
			return false, nil
		}
	}
	return true, nil
}

func (e *Evaluator) evalMatch(n *Node, scope *Scope, depth int) (any, error) {
	rows, err := e.rowsArg(n, scope, depth)
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		ok, err := e.rowMatchesConds(n.Cond, r, scope, depth)
		if err != nil {
			return nil, err
		}
		if ok {
			return r, nil
		}
	}
	return nil, nil
}

func (e *Evaluator) evalFindIndex(n *Node, scope *Scope, depth int) (any, error) {
	rows, err := e.rowsArg(n, scope, depth)
	if err != nil {
		return nil, err
	}
	for i, r := range rows {
		ok, err := e.rowMatchesConds(n.Cond, r, scope, depth)
		if err != nil {
			return nil, err
		}
		if ok {
			return float64(i), nil
		}
	}
	return nil, nil
}

// evalMatchRange implements MATCHRANGE(tableRef, testValue, lowCol,
// highCol): the first Cond slot (pre-processed like every table-condition
// operator) is evaluated once against the outer scope to get the value
// being searched for; rows are matched where row[lowCol] <= value <=
// row[highCol].
func (e *Evaluator) evalMatchRange(n *Node, scope *Scope, depth int) (any, error) {
	rows, err := e.rowsArg(n, scope, depth)
	if err != nil {
		return nil, err
	}
	if len(n.Items) < 3 || len(n.Cond) < 1 {
		return nil, nil
	}
	testV, err := e.evalDepth(n.Cond[0], scope, depth+1)
	if err != nil {
		return nil, err
	}
	test := toF64(testV)
	lowCol, err := e.evalDepth(n.Items[1], scope, depth+1)
	if err != nil {
		return nil, err
	}
	highCol, err := e.evalDepth(n.Items[2], scope, depth+1)
	if err != nil {
		return nil, err
	}
	lowColName, highColName := toStringValue(lowCol), toStringValue(highCol)
	for _, r := range rows {
		m, ok := r.(map[string]any)
		if !ok {
			continue
		}
		low, hasLow := m[lowColName]
		high, hasHigh := m[highColName]
		if !hasLow || !hasHigh {
			continue
		}
		if test >= toF64(low) && test <= toF64(high) {
			return r, nil
		}
	}
	return nil, nil
}

// evalChoose implements CHOOSE(index, opt1, opt2, ...): picks the
// (1-indexed, spreadsheet-style) option at index, returning Null if out of
// range.
func (e *Evaluator) evalChoose(n *Node, scope *Scope, depth int) (any, error) {
	idxV, err := e.arg(n, 0, scope, depth)
	if err != nil {
		return nil, err
	}
	idx := int(toF64(idxV))
	opts := n.Items[1:]
	if idx < 1 || idx > len(opts) {
		return nil, nil
	}
	return e.evalDepth(opts[idx-1], scope, depth+1)
}
