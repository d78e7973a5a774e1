package reactiveschema

import "strings"

// Scope carries the two evaluation contexts described in spec.md §4.B
// "Variable resolution": Primary (user data, or the current row/iteration
// object while evaluating inside a table) and Internal (ephemeral scope
// variables such as $iteration, $threshold, $loopIteration, per-column
// $<name> bindings, and $value/$refValue inside dependent evaluations).
// Lookup order for a non-empty name is internal first, then primary; an
// empty name denotes the primary root.
type Scope struct {
	Primary  any
	Internal map[string]any
}

// NewScope builds a Scope with an empty internal map.
func NewScope(primary any) *Scope {
	return &Scope{Primary: primary, Internal: map[string]any{}}
}

// With returns a child scope sharing Primary but with internal bindings
// overlaid on top of the receiver's (the receiver is left untouched).
func (s *Scope) With(bindings map[string]any) *Scope {
	merged := make(map[string]any, len(s.Internal)+len(bindings))
	for k, v := range s.Internal {
		merged[k] = v
	}
	for k, v := range bindings {
		merged[k] = v
	}
	return &Scope{Primary: s.Primary, Internal: merged}
}

// WithPrimary returns a child scope with a different Primary value but the
// same internal bindings as the receiver.
func (s *Scope) WithPrimary(primary any) *Scope {
	return &Scope{Primary: primary, Internal: s.Internal}
}

// Resolve looks up a canonical path ("" = root, "$name" = scope variable,
// "a.b"/"a/b" = nested data path) against the scope, internal first.
func (s *Scope) Resolve(name string) (any, bool) {
	if name == "" {
		return s.Primary, true
	}
	if v, ok := s.lookupInternal(name); ok {
		return v, true
	}
	return lookupPath(s.Primary, name)
}

func (s *Scope) lookupInternal(name string) (any, bool) {
	if s.Internal == nil {
		return nil, false
	}
	if v, ok := s.Internal[name]; ok {
		return v, true
	}
	if isScopeVariable(name) {
		return nil, false
	}
	// A dotted/rooted path may still resolve against internal bindings,
	// e.g. "$params.a" when $params is bound internally.
	root, rest := splitRoot(name)
	if base, ok := s.Internal[root]; ok {
		return lookupPath(base, rest)
	}
	return nil, false
}

// splitRoot splits "a.b.c" or "/a/b/c" into its first segment and the
// remainder (dotted form), e.g. "a.b.c" -> ("a", "b.c").
func splitRoot(name string) (root, rest string) {
	n := strings.TrimPrefix(name, "/")
	n = strings.ReplaceAll(n, "/", ".")
	i := strings.IndexByte(n, '.')
	if i < 0 {
		return n, ""
	}
	return n[:i], n[i+1:]
}

// lookupPath navigates a dotted or "/"-separated path through nested
// map[string]any / []any values, returning (nil, false) on any miss.
func lookupPath(root any, path string) (any, bool) {
	if path == "" {
		return root, true
	}
	p := strings.ReplaceAll(strings.TrimPrefix(path, "/"), "/", ".")
	cur := root
	for _, seg := range strings.Split(p, ".") {
		if seg == "" {
			continue
		}
		switch c := cur.(type) {
		case map[string]any:
			v, ok := c[seg]
			if !ok {
				return nil, false
			}
			cur = v
		case []any:
			idx, ok := parseIndex(seg)
			if !ok || idx < 0 || idx >= len(c) {
				return nil, false
			}
			cur = c[idx]
		default:
			return nil, false
		}
	}
	return cur, true
}

func parseIndex(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
		n = n*10 + int(r-'0')
	}
	return n, true
}
