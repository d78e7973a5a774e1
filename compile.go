package reactiveschema

import (
	"fmt"
	"math/big"

	"github.com/goccy/go-json"
)

// aliases maps every documented operator spelling (spec.md §4.B operator
// catalogue) to its Kind. Operators with multiple spellings (e.g.
// round/ROUND) list every alias.
var aliases = map[string]Kind{
	"and": KindAnd, "or": KindOr, "!": KindNot, "not": KindNot, "if": KindIf, "xor": KindXor,

	"==": KindEqual, "===": KindStrictEqual, "!=": KindNotEqual, "!==": KindStrictNotEqual,
	"<": KindLessThan, "<=": KindLessThanOrEqual, ">": KindGreaterThan, ">=": KindGreaterThanOrEqual,

	"+": KindAdd, "-": KindSubtract, "*": KindMultiply, "/": KindDivide, "%": KindModulo, "^": KindPower,

	"map": KindMap, "filter": KindFilter, "reduce": KindReduce,
	"all": KindAll, "some": KindSome, "none": KindNone, "merge": KindMerge, "in": KindIn,

	"cat": KindCat, "substr": KindSubstr, "search": KindSearch, "SEARCH": KindSearch,
	"left": KindLeft, "LEFT": KindLeft, "right": KindRight, "RIGHT": KindRight,
	"mid": KindMid, "MID": KindMid, "len": KindLen, "LEN": KindLen, "length": KindLength,
	"splittext": KindSplitText, "SPLITTEXT": KindSplitText,
	"concat": KindConcat, "CONCAT": KindConcat,
	"splitvalue": KindSplitValue, "SPLITVALUE": KindSplitValue,

	"missing": KindMissing, "missing_some": KindMissingSome,

	"abs": KindAbs, "max": KindMax, "min": KindMin, "pow": KindPower, "**": KindPower,
	"round": KindRound, "ROUND": KindRound,
	"roundup": KindRoundUp, "ROUNDUP": KindRoundUp,
	"rounddown": KindRoundDown, "ROUNDDOWN": KindRoundDown,

	"ifnull": KindIfNull, "IFNULL": KindIfNull,
	"isempty": KindIsEmpty, "ISEMPTY": KindIsEmpty,
	"empty": KindEmpty, "EMPTY": KindEmpty,

	"today": KindToday, "TODAY": KindToday, "now": KindNow, "NOW": KindNow,
	"days": KindDays, "DAYS": KindDays, "year": KindYear, "YEAR": KindYear,
	"month": KindMonth, "MONTH": KindMonth, "day": KindDay, "DAY": KindDay,
	"date": KindDate, "DATE": KindDate,
	"yearfrac": KindYearFrac, "YEARFRAC": KindYearFrac,
	"datedif": KindDateDif, "DATEDIF": KindDateDif,

	"sum": KindSum, "SUM": KindSum, "FOR": KindFor,
	"VALUEAT": KindValueAt, "MAXAT": KindMaxAt, "INDEXAT": KindIndexAt,
	"MATCH": KindMatch, "MATCHRANGE": KindMatchRange, "CHOOSE": KindChoose, "FINDINDEX": KindFindIndex,
	"MULTIPLIES": KindMultiplies, "DIVIDES": KindDivides,

	"RANGEOPTIONS": KindRangeOptions, "MAPOPTIONS": KindMapOptions, "MAPOPTIONSIF": KindMapOptionsIf,

	"return": KindReturn,
}

// tableConditionOps are the operators whose condition slots receive the
// bare-string/triplet shorthand coercion described in spec.md §9 Open
// Question (a). This asymmetry is deliberate and must not be generalised to
// other operators.
var tableConditionOps = map[Kind]bool{
	KindMatch: true, KindMatchRange: true, KindFindIndex: true, KindMapOptionsIf: true,
}

// Compile turns a raw JSON value (as produced by decoding with
// github.com/goccy/go-json using UseNumber, or an equivalently-shaped Go
// value built in-process) into a compiled expression tree (spec.md §4.B
// "Compile contract").
func Compile(value any) (*Node, error) {
	return compileValue(value)
}

func compileValue(value any) (*Node, error) {
	switch v := value.(type) {
	case nil:
		return &Node{Kind: KindNull}, nil
	case bool:
		return &Node{Kind: KindBool, Bool: v}, nil
	case json.Number:
		return &Node{Kind: KindNumber, Num: string(v)}, nil
	case float64:
		return &Node{Kind: KindNumber, Num: formatFloat(v)}, nil
	case int:
		return &Node{Kind: KindNumber, Num: fmt.Sprintf("%d", v)}, nil
	case string:
		return &Node{Kind: KindString, Str: v}, nil
	case []any:
		items := make([]*Node, len(v))
		for i, e := range v {
			n, err := compileValue(e)
			if err != nil {
				return nil, err
			}
			items[i] = n
		}
		return &Node{Kind: KindArray, Items: items}, nil
	case map[string]any:
		if len(v) != 1 {
			return nil, fmt.Errorf("%w: operator object must have exactly one key, got %d", ErrMalformedEvaluation, len(v))
		}
		for op, arg := range v {
			return compileOperator(op, arg)
		}
	}
	return nil, fmt.Errorf("%w: unsupported literal shape %T", ErrMalformedEvaluation, value)
}

// asArgs normalises an operator's value into its argument list: an array
// value is used as-is, anything else is treated as a single argument.
func asArgs(value any) []any {
	if arr, ok := value.([]any); ok {
		return arr
	}
	return []any{value}
}

func compileOperator(op string, value any) (*Node, error) {
	if op == "var" {
		return compileVarLike(KindVar, value)
	}
	if op == "$ref" || op == "ref" {
		return compileVarLike(KindRef, value)
	}

	kind, ok := aliases[op]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownOperator, op)
	}

	switch kind {
	case KindReturn:
		return &Node{Kind: KindReturn, Raw: value}, nil
	case KindMatch, KindFindIndex:
		return compileTableCondList(kind, value, 0)
	case KindMatchRange:
		return compileTableCondList(kind, value, 2)
	case KindMapOptionsIf:
		return compileTableCondList(kind, value, 2)
	case KindChoose:
		return compileFlat(kind, value)
	default:
		n, err := compileFlat(kind, value)
		if err != nil {
			return nil, err
		}
		switch kind {
		case KindAnd:
			n.Items = flattenSameKind(KindAnd, n.Items)
		case KindOr:
			n.Items = flattenSameKind(KindOr, n.Items)
		case KindAdd:
			n.Items = flattenSameKind(KindAdd, n.Items)
		case KindMultiply:
			n.Items = flattenSameKind(KindMultiply, n.Items)
		case KindCat:
			n.Items = flattenSameKind(KindCat, n.Items)
		case KindNot:
			// Double-negation elimination: !(!x) -> x.
			if len(n.Items) == 1 && n.Items[0].Kind == KindNot && len(n.Items[0].Items) == 1 {
				return n.Items[0].Items[0], nil
			}
		}
		return n, nil
	}
}

// compileFlat compiles every element of asArgs(value) and stores them in
// Items, with no further structural interpretation.
func compileFlat(kind Kind, value any) (*Node, error) {
	args := asArgs(value)
	items := make([]*Node, len(args))
	for i, a := range args {
		n, err := compileValue(a)
		if err != nil {
			return nil, err
		}
		items[i] = n
	}
	return &Node{Kind: kind, Items: items}, nil
}

// compileVarLike compiles "var"/"$ref"/"ref" nodes: a single path string
// (optionally followed by a default value), canonicalised at compile time
// per spec.md §4.B.
func compileVarLike(kind Kind, value any) (*Node, error) {
	args := asArgs(value)
	if len(args) == 0 {
		return &Node{Kind: kind, Name: ""}, nil
	}
	path, _ := args[0].(string)
	n := &Node{Kind: kind, Name: ToCanonical(path)}
	if len(args) > 1 {
		def, err := compileValue(args[1])
		if err != nil {
			return nil, err
		}
		n.Default = def
	}
	return n, nil
}

// compileTableCondList compiles a table-lookup operator whose value is
// [tableRef, cond1, cond2, ..., trailingArgsCount-more-trailing-args]. The
// first trailingN arguments after the conditions (e.g. low/high column
// names for MATCHRANGE, label/value columns for MAPOPTIONSIF) are kept in
// Items alongside the table reference; every argument identified as a
// condition slot goes through preprocessTableCondition before compiling.
func compileTableCondList(kind Kind, value any, trailingN int) (*Node, error) {
	args := asArgs(value)
	if len(args) < 1+trailingN {
		return nil, fmt.Errorf("%w: operator requires a table reference and %d trailing argument(s)", ErrOperatorArity, trailingN)
	}
	tableRefRaw := args[0]
	trailingRaw := args[len(args)-trailingN:]
	condRaw := args[1 : len(args)-trailingN]

	tableRef, err := compileValue(tableRefRaw)
	if err != nil {
		return nil, err
	}
	items := []*Node{tableRef}
	for _, t := range trailingRaw {
		tn, err := compileValue(t)
		if err != nil {
			return nil, err
		}
		items = append(items, tn)
	}

	conds := make([]*Node, len(condRaw))
	for i, c := range condRaw {
		preprocessed := preprocessTableCondition(c)
		cn, err := compileValue(preprocessed)
		if err != nil {
			return nil, err
		}
		conds[i] = cn
	}
	return &Node{Kind: kind, Items: items, Cond: conds}, nil
}

// preprocessTableCondition applies the table-lookup-only shorthand coercion
// documented in spec.md §9 Open Question (a): a bare string becomes
// {"var": s}; a comparison triplet ["op", value, "col"] becomes
// {"op": [{"var": col}, value]}. Any other shape passes through unchanged.
// Grounded on rlogic/compiled.rs's preprocess_table_condition; the string-
// to-var coercion is intentionally scoped to this function's callers only.
func preprocessTableCondition(raw any) any {
	switch v := raw.(type) {
	case string:
		return map[string]any{"var": v}
	case []any:
		if len(v) == 3 {
			op, opOK := v[0].(string)
			col, colOK := v[2].(string)
			if opOK && colOK {
				return map[string]any{op: []any{map[string]any{"var": col}, v[1]}}
			}
		}
	}
	return raw
}

// flattenSameKind folds nested same-kind children into a single flat list
// (spec.md §3 "Associativity-flat variants", §4.B "Associative flatten").
func flattenSameKind(kind Kind, items []*Node) []*Node {
	out := make([]*Node, 0, len(items))
	for _, it := range items {
		if it.Kind == kind {
			out = append(out, flattenSameKind(kind, it.Items)...)
		} else {
			out = append(out, it)
		}
	}
	return out
}

// hasForwardReference implements spec.md §4.B: true iff the expression
// contains a VALUEAT whose index argument is, directly or transitively, an
// Add containing both a reference to $iteration and a positive numeric
// literal.
func hasForwardReference(n *Node) bool {
	if n == nil {
		return false
	}
	if n.Kind == KindValueAt && len(n.Items) >= 2 && containsIterationPlusPositive(n.Items[1]) {
		return true
	}
	for _, it := range n.Items {
		if hasForwardReference(it) {
			return true
		}
	}
	for _, c := range n.Cond {
		if hasForwardReference(c) {
			return true
		}
	}
	if hasForwardReference(n.A) || hasForwardReference(n.B) || hasForwardReference(n.C) || hasForwardReference(n.D) || hasForwardReference(n.Default) {
		return true
	}
	return false
}

func containsIterationPlusPositive(n *Node) bool {
	if n == nil {
		return false
	}
	if n.Kind == KindAdd {
		hasIteration, hasPositive := false, false
		for _, it := range n.Items {
			if (it.Kind == KindVar || it.Kind == KindRef) && (it.Name == "$iteration" || it.Name == "/$iteration") {
				hasIteration = true
			}
			if it.Kind == KindNumber {
				if f, ok := new(big.Float).SetString(it.Num); ok && f.Sign() > 0 {
					hasPositive = true
				}
			}
		}
		if hasIteration && hasPositive {
			return true
		}
	}
	for _, it := range n.Items {
		if containsIterationPlusPositive(it) {
			return true
		}
	}
	return false
}

// collectVars walks the compiled IR collecting every canonical Var/Ref path
// string into out, deduplicated via seen (spec.md §4.B "Referenced
// variables"). KindReturn stores its argument verbatim, uncompiled, in
// Node.Raw (compile.go's KindReturn case), so a var/$ref nested inside a
// "return" payload is invisible to the rest of this walk; collectRawRefs
// recovers it by scanning the raw value directly, matching
// original_source/src/parse_schema/legacy.rs:38-75's collect_refs, which
// recurses over the uncompiled logic regardless of whether the compiler
// ever visits that subtree.
func collectVars(n *Node, seen map[string]bool, out *[]string) {
	if n == nil {
		return
	}
	if (n.Kind == KindVar || n.Kind == KindRef) && n.Name != "" {
		if !seen[n.Name] {
			seen[n.Name] = true
			*out = append(*out, n.Name)
		}
	}
	if n.Kind == KindReturn && n.Raw != nil {
		collectRawRefs(n.Raw, seen, out)
	}
	for _, it := range n.Items {
		collectVars(it, seen, out)
	}
	for _, c := range n.Cond {
		collectVars(c, seen, out)
	}
	collectVars(n.A, seen, out)
	collectVars(n.B, seen, out)
	collectVars(n.C, seen, out)
	collectVars(n.D, seen, out)
	collectVars(n.Default, seen, out)
}

// collectRawRefs recursively scans a pre-compile logic value (plain JSON:
// map[string]any / []any / scalars) for nested "var"/"$ref"/"ref" keys,
// appending each one's canonicalised path to out (deduplicated via seen).
func collectRawRefs(value any, seen map[string]bool, out *[]string) {
	switch v := value.(type) {
	case map[string]any:
		for key, val := range v {
			if key == "var" || key == "$ref" || key == "ref" {
				if path := rawRefPath(val); path != "" {
					canon := ToCanonical(path)
					if !seen[canon] {
						seen[canon] = true
						*out = append(*out, canon)
					}
				}
			}
			collectRawRefs(val, seen, out)
		}
	case []any:
		for _, it := range v {
			collectRawRefs(it, seen, out)
		}
	}
}

// rawRefPath extracts the path string argument from a raw (uncompiled)
// var/$ref/ref value, which is either a bare string or an array whose first
// element is the path (the same two shapes compileVarLike accepts).
func rawRefPath(value any) string {
	if s, ok := value.(string); ok {
		return s
	}
	if arr, ok := value.([]any); ok && len(arr) > 0 {
		if s, ok2 := arr[0].(string); ok2 {
			return s
		}
	}
	return ""
}

func formatFloat(f float64) string {
	return new(big.Float).SetFloat64(f).Text('f', -1)
}
