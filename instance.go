package reactiveschema

import "strings"

// Validate runs field-rule validation over the engine's current data,
// skipping any field whose condition.hidden or condition.disabled currently
// evaluates true (spec.md §6 `validate`, §4.H). A non-empty paths filter
// restricts validation to the named dotted fields, their descendants, and
// their ancestors.
func (e *Engine) Validate(paths ...string) *ValidationResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.schema == nil {
		return NewValidationResult()
	}

	rules := e.resolvedFieldRules
	if len(paths) > 0 {
		filter := normalizeFilterSet(paths)
		rules = make(FieldRules, len(e.resolvedFieldRules))
		for path, r := range e.resolvedFieldRules {
			if filter.allows(ToCanonical(path)) {
				rules[path] = r
			}
		}
	}

	isHidden := func(path string) bool {
		if cond, ok := e.schema.ConditionalHidden[path]; ok {
			if hidden, _ := e.evalBoolCondition(cond); hidden {
				return true
			}
		}
		if cond, ok := e.schema.ConditionalDisabled[path]; ok {
			if disabled, _ := e.evalBoolCondition(cond); disabled {
				return true
			}
		}
		return false
	}
	return NewValidator().Validate(rules, e.data.Scope(), isHidden)
}

// GetEvaluatedSchema returns a deep copy of the schema document with every
// computed evaluation, table, and rule result spliced in at its schema
// pointer (spec.md §6 `get_evaluated_schema`). skipLayout additionally
// strips every node's "$layout" key.
func (e *Engine) GetEvaluatedSchema(skipLayout bool) any {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.evaluatedSchemaLocked(skipLayout)
}

// GetEvaluatedSchemaWithoutParams is GetEvaluatedSchema with the root
// "$params" key removed (spec.md §6
// `get_evaluated_schema_without_params`).
func (e *Engine) GetEvaluatedSchemaWithoutParams(skipLayout bool) any {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := e.evaluatedSchemaLocked(skipLayout)
	if obj, ok := out.(map[string]any); ok {
		delete(obj, "$params")
	}
	return out
}

func (e *Engine) evaluatedSchemaLocked(skipLayout bool) any {
	if e.schema == nil {
		return nil
	}
	root := deepCopyJSON(e.schema.Raw)

	for key := range e.schema.Evaluations {
		if v, ok := e.data.Get(ToCanonical(dataPath(key))); ok {
			patchNode(root, key, v)
		}
	}
	for key := range e.schema.Tables {
		if v, ok := e.data.Get(ToCanonical(dataPath(key))); ok {
			patchNode(root, key, v)
		}
	}
	for urlPtr, resolved := range e.resolvedTemplates {
		patchNode(root, urlPtr, resolved)
	}
	for dotted, rules := range e.resolvedFieldRules {
		fieldPtr := DottedToSchemaPointer(dotted)
		if _, ok := nodeAt(root, fieldPtr); !ok {
			fieldPtr = "#/properties" + strings.TrimPrefix(fieldPtr, "#")
		}
		for name, r := range rules {
			patchRuleNode(root, fieldPtr+"/rules/"+name, r.Value)
		}
	}

	if skipLayout {
		stripLayoutPaths(root, e.schema.LayoutPaths)
	}
	return root
}

// GetValueByPath returns the current value at dottedPath from the
// evaluation document, optionally suppressing fields under a "$layout" node
// (skipLayout has no effect here since data paths never contain layout
// structure; retained for API symmetry with GetEvaluatedSchema per
// spec.md §6 `get_value_by_path`).
func (e *Engine) GetValueByPath(dottedPath string, skipLayout bool) (any, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	_ = skipLayout
	return e.data.Get(ToCanonical(dottedPath))
}

// GetSchemaValue returns a deep copy of the live evaluation document
// (spec.md §6 `get_schema_value`), with each $evaluation/table result
// already present (since evaluation writes land directly in the document).
// The copy is overlaid with a schema "value" only for a field listed in
// ValueEvaluations (one carrying both a literal "value" and an
// "$evaluation") that has no entry in the document; a field with only a
// literal "value" is not overlaid.
func (e *Engine) GetSchemaValue() any {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.schema == nil {
		return nil
	}
	doc := deepCopyJSON(e.data.Document())
	m, ok := doc.(map[string]any)
	if !ok {
		return doc
	}
	for _, path := range e.schema.ValueEvaluations {
		dotted := dataPath(path)
		if _, exists := e.data.Get(ToCanonical(dotted)); exists {
			continue
		}
		if v, ok := nodeAt(e.schema.Raw, path+"/value"); ok {
			patchNode(doc, DottedToSchemaPointer(dotted), v)
		}
	}
	return m
}

// CacheStats returns a snapshot of the result cache's hit/miss/entry
// counters (spec.md §6 `cache_stats`).
func (e *Engine) CacheStats() CacheStats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cache.Stats()
}

// ClearCache empties the result cache (spec.md §6 `clear_cache`).
func (e *Engine) ClearCache() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cache.Clear()
}

// CacheLen reports the result cache's current entry count (spec.md §6
// `cache_len`).
func (e *Engine) CacheLen() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cache.Len()
}

// CompileAndRunLogic compiles an ad-hoc DSL expression and evaluates it
// against data (or, if data is nil, the engine's current document),
// entirely independent of the loaded schema's dependency graph and cache
// (spec.md §6 `compile_and_run_logic`).
func (e *Engine) CompileAndRunLogic(logic any, data map[string]any) (any, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	node, err := Compile(logic)
	if err != nil {
		return nil, err
	}

	var scope *Scope
	if data != nil {
		scope = NewScope(map[string]any(data))
	} else if e.data != nil {
		scope = e.data.Scope()
	} else {
		scope = NewScope(map[string]any{})
	}

	expr := e.expr
	if expr == nil {
		expr = NewEvaluator(WithMaxDepth(e.maxDepth), WithTimezoneOffset(e.tzOffsetMinutes), WithSafeNaN(e.safeNaN))
	}
	return expr.Evaluate(node, scope)
}
