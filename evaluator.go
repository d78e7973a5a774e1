package reactiveschema

import "sort"

// Evaluate runs the full evaluation pipeline described in spec.md §4.F over
// the engine's schema: level-batched evaluation keys and tables in
// dependency order, a field-rules resolution pass, and URL-template
// substitution. A non-nil dataMap/context replaces the current document
// before evaluating (spec.md §6 `evaluate`); pathsFilter, if non-empty,
// restricts which nodes actually (re-)run (spec.md §4.F "targeted
// evaluation").
func (e *Engine) Evaluate(dataMap, context map[string]any, pathsFilter []string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if dataMap != nil || context != nil {
		e.data.SetData(dataMap, context)
	}
	return e.evaluateLocked(pathsFilter)
}

// evaluateLocked assumes e.mu is already held.
func (e *Engine) evaluateLocked(pathsFilter []string) error {
	if e.schema == nil {
		return ErrSchemaNotLoaded
	}
	filter := normalizeFilterSet(pathsFilter)
	for _, batch := range e.schema.Batches {
		for _, key := range batch {
			if !filter.allows(key) {
				continue
			}
			if err := e.evaluateNode(key); err != nil {
				return err
			}
		}
	}
	e.resolvedFieldRules = e.resolveFieldRules()
	e.substituteURLTemplates()
	return nil
}

// evaluateNode dispatches a single DAG key to its table or scalar evaluator.
func (e *Engine) evaluateNode(key string) error {
	if tm, ok := e.schema.Tables[key]; ok {
		return e.evaluateTable(key, tm)
	}
	if node, ok := e.schema.Evaluations[key]; ok {
		return e.evaluateScalar(key, node)
	}
	return nil
}

func (e *Engine) evaluateScalar(key string, node *Node) error {
	deps := e.schema.Dependencies[key]
	hash := ComputeValueHash(e.dependencyValues(deps))
	ck := CacheKey{EvaluationKey: key, ValueHash: hash, InstanceID: e.data.InstanceID()}
	if v, ok := e.cache.Get(ck); ok {
		e.data.Set(ToCanonical(dataPath(key)), v)
		return nil
	}
	v, err := e.expr.Evaluate(node, e.data.Scope())
	if err != nil {
		return err
	}
	e.cache.Insert(ck, v)
	e.data.Set(ToCanonical(dataPath(key)), v)
	return nil
}

func (e *Engine) evaluateTable(key string, tm *TableMetadata) error {
	deps := e.schema.Dependencies[key]
	hash := ComputeValueHash(e.dependencyValues(deps))
	ck := CacheKey{EvaluationKey: key, ValueHash: hash, InstanceID: e.data.InstanceID()}
	if v, ok := e.cache.Get(ck); ok {
		e.data.Set(ToCanonical(dataPath(key)), v)
		return nil
	}
	rows, err := MaterializeTable(tm, e.expr, e.data)
	if err != nil {
		return err
	}
	e.cache.Insert(ck, rows)
	e.data.Set(ToCanonical(dataPath(key)), rows)
	return nil
}

// dependencyValues resolves each dependency path against the current
// document, in order, for cache-key hashing.
func (e *Engine) dependencyValues(deps []string) []any {
	if len(deps) == 0 {
		return nil
	}
	out := make([]any, len(deps))
	for i, d := range deps {
		v, _ := e.data.Get(ToCanonical(d))
		out[i] = v
	}
	return out
}

// resolveFieldRules builds a fresh FieldRules snapshot for this evaluate
// call, resolving any rule whose parameter is itself an $evaluation
// (spec.md §4.F step 5) before Validate ever sees it.
func (e *Engine) resolveFieldRules() FieldRules {
	src := e.schema.FieldRules
	if len(src) == 0 {
		return nil
	}
	out := make(FieldRules, len(src))
	scope := e.data.Scope()
	for path, rules := range src {
		resolved := make(map[string]Rule, len(rules))
		for name, r := range rules {
			if r.Logic != nil {
				v, err := e.expr.Evaluate(r.Logic, scope)
				if err == nil {
					r.Value = v
				}
				r.Logic = nil
			}
			resolved[name] = r
		}
		out[path] = resolved
	}
	return out
}

// substituteURLTemplates resolves every registered "url" placeholder against
// its sibling "params" object (spec.md §4.F step 6). Results are kept apart
// from the evaluation document since a URL string is schema metadata, not a
// data field.
func (e *Engine) substituteURLTemplates() {
	if len(e.schema.Templates) == 0 {
		return
	}
	resolved := make(map[string]string, len(e.schema.Templates))
	for _, tpl := range e.schema.Templates {
		resolved[tpl.URLPointer] = replace(tpl.Template, e.resolveParams(tpl.ParamsPointer))
	}
	e.resolvedTemplates = resolved
}

// resolveParams builds the placeholder map for one URL template's sibling
// "params" object. Each key's value comes from the evaluation document if it
// was itself a computed $evaluation (so it appears there under its own data
// path), falling back to the literal "value" recorded in the raw schema tree
// otherwise — "params" entries follow the same value/$evaluation convention
// as any other field, so an entry with an $evaluation is an ordinary
// dependency-graph node (spec.md §4.C step 5 registers only the template
// string).
func (e *Engine) resolveParams(paramsPointer string) map[string]any {
	node, ok := nodeAt(e.schema.Raw, paramsPointer)
	if !ok {
		return nil
	}
	obj, ok := node.(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]any, len(obj))
	for key, raw := range obj {
		dotted := dataPath(paramsPointer) + "." + key
		if v, ok := e.data.Get(ToCanonical(dotted)); ok {
			out[key] = v
			continue
		}
		if entry, ok := raw.(map[string]any); ok {
			if v, ok := entry["value"]; ok {
				out[key] = v
				continue
			}
		}
		out[key] = raw
	}
	return out
}

// filterSet is the targeted-evaluation predicate built from a pathsFilter
// argument: empty means "allow everything"; otherwise a node is allowed if
// its own canonical data path matches, or nests inside, or contains, one of
// the requested paths (so a caller can target a whole table by its own path
// and still reach its internal column keys, or vice versa).
type filterSet struct {
	paths []string
}

func normalizeFilterSet(paths []string) filterSet {
	if len(paths) == 0 {
		return filterSet{}
	}
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		out = append(out, ToCanonical(dataPath(DottedToSchemaPointer(p))))
	}
	sort.Strings(out)
	return filterSet{paths: out}
}

func (f filterSet) allows(nodeKey string) bool {
	if len(f.paths) == 0 {
		return true
	}
	nodeData := ToCanonical(dataPath(nodeKey))
	for _, p := range f.paths {
		if p == nodeData || pathNests(p, nodeData) || pathNests(nodeData, p) {
			return true
		}
	}
	return false
}

// pathNests reports whether child is nested under parent (parent+"/" is a
// prefix of child), both already in canonical "/"-separated form.
func pathNests(parent, child string) bool {
	if parent == "" {
		return true
	}
	return len(child) > len(parent) && child[:len(parent)] == parent && child[len(parent)] == '/'
}
