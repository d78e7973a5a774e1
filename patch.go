package reactiveschema

import "strings"

// schemaPointerSegments splits a "#/a/properties/b" schema pointer into its
// raw segments, dropping the leading "#". Used to navigate Schema.Raw, which
// retains "properties"/"$layout"/"items" structure verbatim.
func schemaPointerSegments(p string) []string {
	p = strings.TrimPrefix(p, "#")
	p = strings.TrimPrefix(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

// navigateParent walks root to the map/array owning the final segment of
// pointer, returning that container, the final segment, and whether the walk
// succeeded. Intermediate containers are created (as map[string]any) if
// missing, since GetEvaluatedSchema's patches always target a schema pointer
// that already exists in Schema.Raw under normal operation; the creation
// fallback only guards against a parser/walk mismatch.
func navigateParent(root any, pointer string) (container any, lastSeg string, ok bool) {
	segs := schemaPointerSegments(pointer)
	if len(segs) == 0 {
		return nil, "", false
	}
	cur := root
	for _, seg := range segs[:len(segs)-1] {
		switch c := cur.(type) {
		case map[string]any:
			next, exists := c[seg]
			if !exists {
				next = map[string]any{}
				c[seg] = next
			}
			cur = next
		case []any:
			idx, valid := parseIndex(seg)
			if !valid || idx < 0 || idx >= len(c) {
				return nil, "", false
			}
			cur = c[idx]
		default:
			return nil, "", false
		}
	}
	return cur, segs[len(segs)-1], true
}

// nodeAt reads the value at pointer within root, following map/array
// structure; ok is false on any missing segment.
func nodeAt(root any, pointer string) (any, bool) {
	segs := schemaPointerSegments(pointer)
	cur := root
	for _, seg := range segs {
		switch c := cur.(type) {
		case map[string]any:
			v, exists := c[seg]
			if !exists {
				return nil, false
			}
			cur = v
		case []any:
			idx, valid := parseIndex(seg)
			if !valid || idx < 0 || idx >= len(c) {
				return nil, false
			}
			cur = c[idx]
		default:
			return nil, false
		}
	}
	return cur, true
}

// patchNode whole-node-replaces the value at pointer within root (spec.md
// §4.F step 7's generic-field write-back: the computed result replaces the
// entire node, not just a "value" sub-key).
func patchNode(root any, pointer string, value any) {
	container, seg, ok := navigateParent(root, pointer)
	if !ok {
		return
	}
	switch c := container.(type) {
	case map[string]any:
		c[seg] = value
	case []any:
		if idx, valid := parseIndex(seg); valid && idx >= 0 && idx < len(c) {
			c[idx] = value
		}
	}
}

// patchRuleNode writes back a resolved rule's value under its own "value"
// key, removing the "$evaluation" wrapper it was compiled from (spec.md
// §4.F step 7's rules write-back: "strip $evaluation, insert value", as
// opposed to the whole-node-replace generic fields receive).
func patchRuleNode(root any, rulePointer string, value any) {
	node, ok := nodeAt(root, rulePointer)
	if !ok {
		return
	}
	obj, ok := node.(map[string]any)
	if !ok {
		return
	}
	delete(obj, "$evaluation")
	obj["value"] = value
}

// deepCopyJSON recursively copies a map[string]any/[]any tree, leaving
// scalar leaves shared (they are never mutated in place).
func deepCopyJSON(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			out[k] = deepCopyJSON(vv)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, vv := range t {
			out[i] = deepCopyJSON(vv)
		}
		return out
	default:
		return v
	}
}

// stripLayoutPaths deletes the "$layout" key from every node named by
// layoutPaths (each "<path>/$layout/elements"), used when
// GetEvaluatedSchema is asked to omit layout (spec.md §6
// "skip_layout"). layoutPaths is sorted deepest-first so stripping a nested
// node's $layout can't disturb a not-yet-visited ancestor pointer.
func stripLayoutPaths(root any, layoutPaths []string) {
	for _, lp := range layoutPaths {
		owner := strings.TrimSuffix(lp, "/$layout/elements")
		node, ok := nodeAt(root, owner)
		if !ok {
			continue
		}
		if obj, ok := node.(map[string]any); ok {
			delete(obj, "$layout")
		}
	}
}

// stripSiblingStructure shallow-copies node (a map) with its "properties",
// "$layout", and "items" keys removed, for DependentRecord.ParentField
// (spec.md §4.G "$parentField: parent with properties and $layout
// stripped").
func stripSiblingStructure(node any) any {
	obj, ok := node.(map[string]any)
	if !ok {
		return node
	}
	out := make(map[string]any, len(obj))
	for k, v := range obj {
		if k == "properties" || k == "$layout" || k == "items" {
			continue
		}
		out[k] = v
	}
	return out
}

// parentSchemaPointer returns the schema pointer of the nearest enclosing
// field for a dotted data path p, with top-level fields under the schema's
// root "properties" key, trimming back to the last "/properties/" boundary
// (or the root "#" if there is none), per spec.md §4.G's "$parentField"
// derivation.
func parentSchemaPointer(p string) string {
	sp := "#/properties" + strings.TrimPrefix(DottedToSchemaPointer(p), "#")
	idx := strings.LastIndex(sp, "/properties/")
	if idx < 0 {
		return "#"
	}
	return sp[:idx]
}
