package reactiveschema

import (
	"fmt"
	"math"
	"strconv"

	"github.com/goccy/go-json"
)

// EvalOption configures an Evaluator via functional options, mirroring the
// teacher's compiler.go WithEncoderJSON/WithDecoderJSON constructor idiom.
type EvalOption func(*Evaluator)

// WithMaxDepth overrides the default recursion-depth bound (spec.md §4.B).
func WithMaxDepth(depth int) EvalOption {
	return func(e *Evaluator) { e.maxDepth = depth }
}

// WithTimezoneOffset sets the minutes-from-UTC offset applied by the `today`
// and `now` date operators. A nil offset means UTC (spec.md §6
// set_timezone_offset).
func WithTimezoneOffset(minutes *int) EvalOption {
	return func(e *Evaluator) { e.tzOffsetMinutes = minutes }
}

// WithSafeNaN controls whether `pow` yields 0 (true) or Null (false, the
// default) on a non-finite result (spec.md §4.B).
func WithSafeNaN(safe bool) EvalOption {
	return func(e *Evaluator) { e.safeNaN = safe }
}

// Evaluator evaluates compiled expressions against a Scope. It holds no
// mutable evaluation state of its own; all per-call state lives in the
// Scope and the depth counter threaded through evalDepth.
type Evaluator struct {
	maxDepth        int
	tzOffsetMinutes *int
	safeNaN         bool
}

// NewEvaluator constructs an Evaluator with the documented defaults
// (recursion limit 1000, UTC, safe-NaN off).
func NewEvaluator(opts ...EvalOption) *Evaluator {
	e := &Evaluator{maxDepth: 1000}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate runs a compiled expression against primary/internal contexts
// bundled in scope (spec.md §4.B "Evaluate contract").
func (e *Evaluator) Evaluate(n *Node, scope *Scope) (any, error) {
	return e.evalDepth(n, scope, 0)
}

func (e *Evaluator) evalDepth(n *Node, scope *Scope, depth int) (any, error) {
	if n == nil {
		return nil, nil
	}
	if depth > e.maxDepth {
		return nil, ErrRecursionLimit
	}

	switch n.Kind {
	case KindNull:
		return nil, nil
	case KindBool:
		return n.Bool, nil
	case KindNumber:
		return parseNumberLiteral(n.Num), nil
	case KindString:
		return n.Str, nil
	case KindArray:
		return e.evalEach(n.Items, scope, depth)
	case KindVar, KindRef:
		return e.evalVar(n, scope, depth)
	case KindReturn:
		return n.Raw, nil

	case KindAnd:
		return e.evalAnd(n, scope, depth)
	case KindOr:
		return e.evalOr(n, scope, depth)
	case KindNot:
		v, err := e.arg(n, 0, scope, depth)
		if err != nil {
			return nil, err
		}
		return !truthy(v), nil
	case KindXor:
		a, err := e.arg(n, 0, scope, depth)
		if err != nil {
			return nil, err
		}
		b, err := e.arg(n, 1, scope, depth)
		if err != nil {
			return nil, err
		}
		return truthy(a) != truthy(b), nil
	case KindIf:
		return e.evalIf(n, scope, depth)

	case KindEqual:
		return e.evalCompare(n, scope, depth, func(a, b any) bool { return looseEqual(a, b) })
	case KindNotEqual:
		return e.evalCompare(n, scope, depth, func(a, b any) bool { return !looseEqual(a, b) })
	case KindStrictEqual:
		return e.evalCompare(n, scope, depth, strictEqual)
	case KindStrictNotEqual:
		return e.evalCompare(n, scope, depth, func(a, b any) bool { return !strictEqual(a, b) })
	case KindLessThan:
		return e.evalNumericCompare(n, scope, depth, func(a, b float64) bool { return a < b })
	case KindLessThanOrEqual:
		return e.evalNumericCompare(n, scope, depth, func(a, b float64) bool { return a <= b })
	case KindGreaterThan:
		return e.evalNumericCompare(n, scope, depth, func(a, b float64) bool { return a > b })
	case KindGreaterThanOrEqual:
		return e.evalNumericCompare(n, scope, depth, func(a, b float64) bool { return a >= b })

	case KindAdd:
		return e.evalArith(n, scope, depth, 0, func(acc, v float64) float64 { return acc + v })
	case KindMultiply:
		return e.evalArith(n, scope, depth, 1, func(acc, v float64) float64 { return acc * v })
	case KindSubtract:
		return e.evalSubtract(n, scope, depth)
	case KindDivide:
		return e.evalDivide(n, scope, depth)
	case KindModulo:
		a, b, err := e.binaryF64(n, scope, depth)
		if err != nil {
			return nil, err
		}
		if b == 0 {
			return nil, nil
		}
		return normalizeNumber(math.Mod(a, b)), nil
	case KindPower:
		return e.evalPow(n, scope, depth)

	case KindIfNull:
		a, err := e.arg(n, 0, scope, depth)
		if err != nil {
			return nil, err
		}
		if a != nil {
			return a, nil
		}
		return e.arg(n, 1, scope, depth)
	case KindIsEmpty:
		v, err := e.arg(n, 0, scope, depth)
		if err != nil {
			return nil, err
		}
		return isEmptyValue(v), nil
	case KindEmpty:
		v, err := e.arg(n, 0, scope, depth)
		if err != nil {
			return nil, err
		}
		if isEmptyValue(v) {
			return nil, nil
		}
		return v, nil

	case KindMissing, KindMissingSome:
		return e.evalMissing(n, scope, depth)

	case KindMap, KindFilter, KindReduce, KindAll, KindSome, KindNone, KindMerge, KindIn:
		return e.evalArrayOp(n, scope, depth)

	case KindCat, KindSubstr, KindSearch, KindLeft, KindRight, KindMid, KindLen,
		KindSplitText, KindConcat, KindSplitValue, KindLength:
		return e.evalStringOp(n, scope, depth)

	case KindAbs, KindMax, KindMin:
		return e.evalMathOp(n, scope, depth)
	case KindRound, KindRoundUp, KindRoundDown:
		return e.evalRoundOp(n, scope, depth)

	case KindToday, KindNow, KindDays, KindYear, KindMonth, KindDay, KindDate, KindYearFrac, KindDateDif:
		return e.evalDateOp(n, scope, depth)

	case KindSum, KindFor, KindMultiplies, KindDivides:
		return e.evalIterationOp(n, scope, depth)

	case KindValueAt, KindMaxAt, KindIndexAt, KindMatch, KindMatchRange, KindChoose, KindFindIndex:
		return e.evalTableOp(n, scope, depth)

	case KindRangeOptions, KindMapOptions, KindMapOptionsIf:
		return e.evalUIOp(n, scope, depth)
	}
	return nil, fmt.Errorf("%w: kind %d", ErrMalformedEvaluation, n.Kind)
}

// arg evaluates the i'th Items entry, returning nil if it is absent.
func (e *Evaluator) arg(n *Node, i int, scope *Scope, depth int) (any, error) {
	if i >= len(n.Items) {
		return nil, nil
	}
	return e.evalDepth(n.Items[i], scope, depth+1)
}

func (e *Evaluator) evalEach(items []*Node, scope *Scope, depth int) ([]any, error) {
	out := make([]any, len(items))
	for i, it := range items {
		v, err := e.evalDepth(it, scope, depth+1)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (e *Evaluator) evalVar(n *Node, scope *Scope, depth int) (any, error) {
	v, ok := scope.Resolve(n.Name)
	if ok && v != nil {
		return v, nil
	}
	if n.Default != nil {
		return e.evalDepth(n.Default, scope, depth+1)
	}
	return nil, nil
}

func (e *Evaluator) evalAnd(n *Node, scope *Scope, depth int) (any, error) {
	var last any
	for _, it := range n.Items {
		v, err := e.evalDepth(it, scope, depth+1)
		if err != nil {
			return nil, err
		}
		last = v
		if !truthy(v) {
			return v, nil
		}
	}
	return last, nil
}

func (e *Evaluator) evalOr(n *Node, scope *Scope, depth int) (any, error) {
	var last any
	for _, it := range n.Items {
		v, err := e.evalDepth(it, scope, depth+1)
		if err != nil {
			return nil, err
		}
		last = v
		if truthy(v) {
			return v, nil
		}
	}
	return last, nil
}

func (e *Evaluator) evalIf(n *Node, scope *Scope, depth int) (any, error) {
	items := n.Items
	i := 0
	for ; i+1 < len(items); i += 2 {
		cond, err := e.evalDepth(items[i], scope, depth+1)
		if err != nil {
			return nil, err
		}
		if truthy(cond) {
			return e.evalDepth(items[i+1], scope, depth+1)
		}
	}
	if i < len(items) {
		return e.evalDepth(items[i], scope, depth+1)
	}
	return nil, nil
}

type compareFn func(a, b any) bool

func (e *Evaluator) evalCompare(n *Node, scope *Scope, depth int, cmp compareFn) (any, error) {
	a, err := e.arg(n, 0, scope, depth)
	if err != nil {
		return nil, err
	}
	b, err := e.arg(n, 1, scope, depth)
	if err != nil {
		return nil, err
	}
	return cmp(a, b), nil
}

func (e *Evaluator) evalNumericCompare(n *Node, scope *Scope, depth int, cmp func(a, b float64) bool) (any, error) {
	a, b, err := e.binaryF64(n, scope, depth)
	if err != nil {
		return nil, err
	}
	return cmp(a, b), nil
}

func (e *Evaluator) binaryF64(n *Node, scope *Scope, depth int) (float64, float64, error) {
	a, err := e.arg(n, 0, scope, depth)
	if err != nil {
		return 0, 0, err
	}
	b, err := e.arg(n, 1, scope, depth)
	if err != nil {
		return 0, 0, err
	}
	return toF64(a), toF64(b), nil
}

func (e *Evaluator) evalArith(n *Node, scope *Scope, depth int, identity float64, fold func(acc, v float64) float64) (any, error) {
	if len(n.Items) == 1 {
		v, err := e.evalDepth(n.Items[0], scope, depth+1)
		if err != nil {
			return nil, err
		}
		if identity == 0 { // unary "+": numeric coercion
			return normalizeNumber(toF64(v)), nil
		}
		return normalizeNumber(toF64(v)), nil
	}
	acc := identity
	for _, it := range n.Items {
		v, err := e.evalDepth(it, scope, depth+1)
		if err != nil {
			return nil, err
		}
		acc = fold(acc, toF64(v))
	}
	return normalizeNumber(acc), nil
}

func (e *Evaluator) evalSubtract(n *Node, scope *Scope, depth int) (any, error) {
	if len(n.Items) == 1 {
		v, err := e.evalDepth(n.Items[0], scope, depth+1)
		if err != nil {
			return nil, err
		}
		return normalizeNumber(-toF64(v)), nil
	}
	vals, err := e.evalEach(n.Items, scope, depth)
	if err != nil {
		return nil, err
	}
	acc := toF64(vals[0])
	for _, v := range vals[1:] {
		acc -= toF64(v)
	}
	return normalizeNumber(acc), nil
}

func (e *Evaluator) evalDivide(n *Node, scope *Scope, depth int) (any, error) {
	a, b, err := e.binaryF64(n, scope, depth)
	if err != nil {
		return nil, err
	}
	if b == 0 {
		return nil, nil
	}
	return normalizeNumber(a / b), nil
}

func (e *Evaluator) evalPow(n *Node, scope *Scope, depth int) (any, error) {
	a, b, err := e.binaryF64(n, scope, depth)
	if err != nil {
		return nil, err
	}
	r := math.Pow(a, b)
	if math.IsNaN(r) || math.IsInf(r, 0) {
		if e.safeNaN {
			return float64(0), nil
		}
		return nil, nil
	}
	return normalizeNumber(r), nil
}

func (e *Evaluator) evalMissing(n *Node, scope *Scope, depth int) (any, error) {
	var names []string
	if n.Kind == KindMissingSome {
		if len(n.Items) < 2 {
			return []any{}, nil
		}
		minReq, err := e.arg(n, 0, scope, depth)
		if err != nil {
			return nil, err
		}
		keysVal, err := e.arg(n, 1, scope, depth)
		if err != nil {
			return nil, err
		}
		keys, _ := keysVal.([]any)
		present := 0
		var missing []any
		for _, k := range keys {
			ks, _ := k.(string)
			names = append(names, ks)
			v, ok := scope.Resolve(ToCanonical(ks))
			if ok && !isEmptyValue(v) {
				present++
			} else {
				missing = append(missing, ks)
			}
		}
		if present >= int(toF64(minReq)) {
			return []any{}, nil
		}
		if missing == nil {
			missing = []any{}
		}
		return missing, nil
	}
	vals, err := e.evalEach(n.Items, scope, depth)
	if err != nil {
		return nil, err
	}
	var missing []any
	for i, it := range n.Items {
		if it.Kind == KindVar || it.Kind == KindRef {
			if isEmptyValue(vals[i]) {
				missing = append(missing, it.Name)
			}
		}
	}
	if missing == nil {
		missing = []any{}
	}
	return missing, nil
}

// --- shared value helpers -------------------------------------------------

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case float64:
		return t != 0
	case int:
		return t != 0
	case string:
		return t != ""
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	default:
		return true
	}
}

// toF64 coerces a value to float64: numbers pass through, booleans become
// 1.0/0.0, strings are parsed, a single-element array recurses into its
// element, everything else is 0.0. Grounded on
// original_source/src/rlogic/evaluator.rs's to_f64.
func toF64(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return 0
		}
		return f
	case bool:
		if t {
			return 1
		}
		return 0
	case string:
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return 0
		}
		return f
	case []any:
		if len(t) == 1 {
			return toF64(t[0])
		}
		return 0
	default:
		return 0
	}
}

// normalizeNumber snaps near-integer and near-zero floats per spec.md §4.B:
// integer-valued results (fractional part < 1e-10) normalise to integer
// representation; |x| < 1e-10 normalises to 0.
func normalizeNumber(f float64) float64 {
	if math.Abs(f) < 1e-10 {
		return 0
	}
	rounded := math.Round(f)
	if math.Abs(f-rounded) < 1e-10 {
		return rounded
	}
	return f
}

func parseNumberLiteral(text string) float64 {
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0
	}
	return f
}

func isEmptyValue(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case []any:
		return len(t) == 0
	default:
		return false
	}
}

// looseEqual follows JavaScript-like coercion: string<->number parse,
// bool<->number as 0/1, null only equals null.
func looseEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if strictEqual(a, b) {
		return true
	}
	an, aIsNum := asComparableNumber(a)
	bn, bIsNum := asComparableNumber(b)
	if aIsNum && bIsNum {
		return an == bn
	}
	as, aIsStr := a.(string)
	bs, bIsStr := b.(string)
	if aIsStr && bIsStr {
		return as == bs
	}
	return toF64(a) == toF64(b)
}

func asComparableNumber(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case bool:
		if t {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

func strictEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch av := a.(type) {
	case float64:
		bv, ok := b.(float64)
		return ok && av == bv
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	default:
		return false
	}
}

func toStringValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		if t {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprint(v)
	}
}

func toArrayValue(v any) []any {
	if arr, ok := v.([]any); ok {
		return arr
	}
	if v == nil {
		return nil
	}
	return []any{v}
}
