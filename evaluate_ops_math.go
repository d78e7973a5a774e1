package reactiveschema

import "math"

// evalMathOp implements the `abs`/`max`/`min` operators (spec.md §4.B Math
// group).
func (e *Evaluator) evalMathOp(n *Node, scope *Scope, depth int) (any, error) {
	vals, err := e.evalEach(n.Items, scope, depth)
	if err != nil {
		return nil, err
	}
	switch n.Kind {
	case KindAbs:
		if len(vals) == 0 {
			return float64(0), nil
		}
		return normalizeNumber(math.Abs(toF64(vals[0]))), nil
	case KindMax:
		return normalizeNumber(foldNumbers(vals, math.Inf(-1), math.Max)), nil
	case KindMin:
		return normalizeNumber(foldNumbers(vals, math.Inf(1), math.Min)), nil
	}
	return nil, nil
}

func foldNumbers(vals []any, identity float64, fold func(a, b float64) float64) float64 {
	acc := identity
	seen := false
	for _, v := range vals {
		// A Max/Min argument may itself be an array (flattened Items list
		// can contain a literal array argument); flatten one level.
		if arr, ok := v.([]any); ok {
			for _, elem := range arr {
				acc = fold(acc, toF64(elem))
				seen = true
			}
			continue
		}
		acc = fold(acc, toF64(v))
		seen = true
	}
	if !seen {
		return 0
	}
	return acc
}

// evalRoundOp implements `round`/`roundup`/`rounddown` (spec.md §4.B Math
// group). The second argument, if present, is the number of decimal places
// (default 0).
func (e *Evaluator) evalRoundOp(n *Node, scope *Scope, depth int) (any, error) {
	v, err := e.arg(n, 0, scope, depth)
	if err != nil {
		return nil, err
	}
	places := 0.0
	if len(n.Items) > 1 {
		p, err := e.arg(n, 1, scope, depth)
		if err != nil {
			return nil, err
		}
		places = toF64(p)
	}
	mult := math.Pow(10, places)
	f := toF64(v) * mult
	// Snap binary representation noise (1.005*100 = 100.49999999999999) to
	// nine decimals so a decimal half rounds as written.
	if math.Abs(f) < 1e15 {
		f = math.Round(f*1e9) / 1e9
	}
	var r float64
	switch n.Kind {
	case KindRoundUp:
		if f >= 0 {
			r = math.Ceil(f)
		} else {
			r = math.Floor(f)
		}
	case KindRoundDown:
		if f >= 0 {
			r = math.Floor(f)
		} else {
			r = math.Ceil(f)
		}
	default: // KindRound
		r = math.Round(f)
	}
	return normalizeNumber(r / mult), nil
}
