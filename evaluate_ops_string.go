package reactiveschema

import "strings"

// evalStringOp implements the String group (spec.md §4.B): cat substr
// search left right mid splittext concat splitvalue length len.
func (e *Evaluator) evalStringOp(n *Node, scope *Scope, depth int) (any, error) {
	switch n.Kind {
	case KindCat, KindConcat:
		vals, err := e.evalEach(n.Items, scope, depth)
		if err != nil {
			return nil, err
		}
		var b strings.Builder
		for _, v := range vals {
			b.WriteString(toStringValue(v))
		}
		return b.String(), nil

	case KindSubstr:
		s, err := e.stringArg(n, 0, scope, depth)
		if err != nil {
			return nil, err
		}
		start, err := e.intArg(n, 1, scope, depth)
		if err != nil {
			return nil, err
		}
		r := []rune(s)
		start = clampIndex(start, len(r))
		if len(n.Items) > 2 {
			length, err := e.intArg(n, 2, scope, depth)
			if err != nil {
				return nil, err
			}
			end := start + length
			if length < 0 {
				end = len(r) + length
			}
			end = clampIndex(end, len(r))
			if end < start {
				return "", nil
			}
			return string(r[start:end]), nil
		}
		return string(r[start:]), nil

	case KindLeft:
		s, err := e.stringArg(n, 0, scope, depth)
		if err != nil {
			return nil, err
		}
		count, err := e.intArg(n, 1, scope, depth)
		if err != nil {
			return nil, err
		}
		r := []rune(s)
		count = clampIndex(count, len(r))
		return string(r[:count]), nil

	case KindRight:
		s, err := e.stringArg(n, 0, scope, depth)
		if err != nil {
			return nil, err
		}
		count, err := e.intArg(n, 1, scope, depth)
		if err != nil {
			return nil, err
		}
		r := []rune(s)
		count = clampIndex(count, len(r))
		return string(r[len(r)-count:]), nil

	case KindMid:
		s, err := e.stringArg(n, 0, scope, depth)
		if err != nil {
			return nil, err
		}
		start, err := e.intArg(n, 1, scope, depth)
		if err != nil {
			return nil, err
		}
		length, err := e.intArg(n, 2, scope, depth)
		if err != nil {
			return nil, err
		}
		r := []rune(s)
		// Mid is 1-indexed like spreadsheet MID().
		start0 := clampIndex(start-1, len(r))
		end := clampIndex(start0+length, len(r))
		if end < start0 {
			return "", nil
		}
		return string(r[start0:end]), nil

	case KindLen, KindLength:
		v, err := e.arg(n, 0, scope, depth)
		if err != nil {
			return nil, err
		}
		switch t := v.(type) {
		case string:
			return float64(len([]rune(t))), nil
		case []any:
			return float64(len(t)), nil
		default:
			return float64(0), nil
		}

	case KindSearch:
		haystack, err := e.stringArg(n, 0, scope, depth)
		if err != nil {
			return nil, err
		}
		needle, err := e.stringArg(n, 1, scope, depth)
		if err != nil {
			return nil, err
		}
		startAt := 0
		if len(n.Items) > 2 {
			sa, err := e.intArg(n, 2, scope, depth)
			if err != nil {
				return nil, err
			}
			startAt = clampIndex(sa-1, len([]rune(haystack)))
		}
		idx := strings.Index(strings.ToLower(haystack[byteOffset(haystack, startAt):]), strings.ToLower(needle))
		if idx < 0 {
			return nil, nil
		}
		// 1-indexed result, measured in runes.
		runeIdx := len([]rune(haystack[:byteOffset(haystack, startAt)+idx]))
		return float64(runeIdx + 1), nil

	case KindSplitText:
		s, err := e.stringArg(n, 0, scope, depth)
		if err != nil {
			return nil, err
		}
		sep, err := e.stringArg(n, 1, scope, depth)
		if err != nil {
			return nil, err
		}
		parts := strings.Split(s, sep)
		out := make([]any, len(parts))
		for i, p := range parts {
			out[i] = p
		}
		return out, nil

	case KindSplitValue:
		s, err := e.stringArg(n, 0, scope, depth)
		if err != nil {
			return nil, err
		}
		sep, err := e.stringArg(n, 1, scope, depth)
		if err != nil {
			return nil, err
		}
		idx, err := e.intArg(n, 2, scope, depth)
		if err != nil {
			return nil, err
		}
		parts := strings.Split(s, sep)
		if idx < 0 || idx >= len(parts) {
			return nil, nil
		}
		return parts[idx], nil
	}
	return nil, nil
}

func (e *Evaluator) stringArg(n *Node, i int, scope *Scope, depth int) (string, error) {
	v, err := e.arg(n, i, scope, depth)
	if err != nil {
		return "", err
	}
	return toStringValue(v), nil
}

func (e *Evaluator) intArg(n *Node, i int, scope *Scope, depth int) (int, error) {
	v, err := e.arg(n, i, scope, depth)
	if err != nil {
		return 0, err
	}
	return int(toF64(v)), nil
}

func clampIndex(i, length int) int {
	if i < 0 {
		return 0
	}
	if i > length {
		return length
	}
	return i
}

func byteOffset(s string, runeIdx int) int {
	count := 0
	for i := range s {
		if count == runeIdx {
			return i
		}
		count++
	}
	return len(s)
}

func containsSubstring(haystack, needle string) bool {
	return strings.Contains(haystack, needle)
}
