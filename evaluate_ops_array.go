package reactiveschema

// evalArrayOp implements map/filter/reduce/all/some/none/merge/in (spec.md
// §4.B Array group). Each operator (except merge/in) takes [array, callback]
// where the callback is evaluated once per element with the element bound
// as the Primary of a child scope (so `{"var": ""}` refers to the element,
// and `{"var": "name"}` to one of its fields).
func (e *Evaluator) evalArrayOp(n *Node, scope *Scope, depth int) (any, error) {
	switch n.Kind {
	case KindMerge:
		return e.evalMerge(n, scope, depth)
	case KindIn:
		return e.evalIn(n, scope, depth)
	}

	arrVal, err := e.arg(n, 0, scope, depth)
	if err != nil {
		return nil, err
	}
	arr := toArrayValue(arrVal)
	callback := (*Node)(nil)
	if len(n.Items) > 1 {
		callback = n.Items[1]
	}

	switch n.Kind {
	case KindMap:
		out := make([]any, len(arr))
		for i, el := range arr {
			v, err := e.evalDepth(callback, scope.WithPrimary(el), depth+1)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	case KindFilter:
		var out []any
		for _, el := range arr {
			v, err := e.evalDepth(callback, scope.WithPrimary(el), depth+1)
			if err != nil {
				return nil, err
			}
			if truthy(v) {
				out = append(out, el)
			}
		}
		if out == nil {
			out = []any{}
		}
		return out, nil
	case KindReduce:
		var acc any
		if len(n.Items) > 2 {
			acc, err = e.arg(n, 2, scope, depth)
			if err != nil {
				return nil, err
			}
		}
		for _, el := range arr {
			reduceCtx := map[string]any{"current": el, "accumulator": acc}
			v, err := e.evalDepth(callback, scope.WithPrimary(reduceCtx), depth+1)
			if err != nil {
				return nil, err
			}
			acc = v
		}
		return acc, nil
	case KindAll:
		if len(arr) == 0 {
			return false, nil
		}
		for _, el := range arr {
			v, err := e.evalDepth(callback, scope.WithPrimary(el), depth+1)
			if err != nil {
				return nil, err
			}
			if !truthy(v) {
				return false, nil
			}
		}
		return true, nil
	case KindSome:
		for _, el := range arr {
			v, err := e.evalDepth(callback, scope.WithPrimary(el), depth+1)
			if err != nil {
				return nil, err
			}
			if truthy(v) {
				return true, nil
			}
		}
		return false, nil
	case KindNone:
		for _, el := range arr {
			v, err := e.evalDepth(callback, scope.WithPrimary(el), depth+1)
			if err != nil {
				return nil, err
			}
			if truthy(v) {
				return false, nil
			}
		}
		return true, nil
	}
	return nil, nil
}

func (e *Evaluator) evalMerge(n *Node, scope *Scope, depth int) (any, error) {
	vals, err := e.evalEach(n.Items, scope, depth)
	if err != nil {
		return nil, err
	}
	var out []any
	for _, v := range vals {
		if arr, ok := v.([]any); ok {
			out = append(out, arr...)
		} else {
			out = append(out, v)
		}
	}
	if out == nil {
		out = []any{}
	}
	return out, nil
}

func (e *Evaluator) evalIn(n *Node, scope *Scope, depth int) (any, error) {
	needle, err := e.arg(n, 0, scope, depth)
	if err != nil {
		return nil, err
	}
	hay, err := e.arg(n, 1, scope, depth)
	if err != nil {
		return nil, err
	}
	if s, ok := hay.(string); ok {
		return containsSubstring(s, toStringValue(needle)), nil
	}
	for _, el := range toArrayValue(hay) {
		if looseEqual(el, needle) {
			return true, nil
		}
	}
	return false, nil
}
