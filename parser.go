package reactiveschema

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/goccy/go-yaml"
)

// ParseSchema decodes a raw schema document and performs the single
// recursive walk described in spec.md §4.C, producing a fully populated
// Schema (evaluations, tables, rules, dependents, layout, templates,
// conditional visibility, and the batched dependency graph). Grounded on
// original_source/src/parse_schema.rs's structural walk and on the teacher's
// own recursive initializeNestedSchemasCore walk in schema.go (accumulate a
// path string, recurse into children in document order, assign stable keys)
// for the Go idiom.
func ParseSchema(data []byte) (*Schema, error) {
	data = normalizeSchemaSource(data)
	decoded, err := decodeOrderedJSON(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedJSON, err)
	}
	root, ok := decoded.(*OrderedObject)
	if !ok {
		return nil, fmt.Errorf("%w: schema root must be a JSON object", ErrMalformedJSON)
	}

	s := &Schema{
		Evaluations:         map[string]*Node{},
		Dependencies:        map[string][]string{},
		Tables:              map[string]*TableMetadata{},
		FieldRules:          FieldRules{},
		ConditionalHidden:   map[string]*Node{},
		ConditionalReadonly: map[string]*Node{},
		ConditionalDisabled: map[string]*Node{},
		Dependents:          map[string][]*DependentItem{},
		ReffedBy:            map[string][]string{},
	}
	if plain, ok := toPlainJSON(root).(map[string]any); ok {
		s.Raw = plain
	}

	if err := parseWalk(root, "#", s); err != nil {
		return nil, err
	}

	aggregateTableDependencies(s)
	substituteTablePaths(s)

	sort.Slice(s.LayoutPaths, func(i, j int) bool {
		return strings.Count(s.LayoutPaths[i], "/") > strings.Count(s.LayoutPaths[j], "/")
	})

	batches, nonBatched, err := buildDependencyGraph(s)
	if err != nil {
		return nil, err
	}
	s.Batches = batches
	s.NonBatched = append(s.NonBatched, nonBatched...)
	sort.Strings(s.NonBatched)

	return s, nil
}

// normalizeSchemaSource converts a YAML-authored schema document into JSON
// before decoding, mirroring the teacher's "application/yaml" media-type
// handler (compiler.go's setupMediaTypes) minus the HTTP-loader indirection
// this engine has no use for: a schema source is taken as JSON if it already
// looks like a JSON object, YAML otherwise. Order is not preserved across
// this conversion (goccy/go-yaml decodes into a plain map), which only
// matters for schemas whose table columns depend on declaration order — an
// author relying on that should write the schema directly as JSON.
func normalizeSchemaSource(data []byte) []byte {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] == '{' {
		return data
	}
	var generic any
	if err := yaml.Unmarshal(data, &generic); err != nil {
		return data
	}
	converted, err := json.Marshal(generic)
	if err != nil {
		return data
	}
	return converted
}

// compileIfEvaluation reports whether raw (an *OrderedObject) carries an
// "$evaluation" key; if so it compiles the inner logic (unwrapping the
// optional "logic" sub-key) and returns it along with the raw inner value,
// for callers that also need to scan the uncompiled subtree.
func compileIfEvaluation(raw any) (compiled *Node, rawInner any, was bool, err error) {
	obj, ok := raw.(*OrderedObject)
	if !ok {
		return nil, nil, false, nil
	}
	ev, ok := obj.Get("$evaluation")
	if !ok {
		return nil, nil, false, nil
	}
	inner := ev
	if wrapper, ok2 := ev.(*OrderedObject); ok2 {
		if l, ok3 := wrapper.Get("logic"); ok3 {
			inner = l
		}
	}
	compiled, err = Compile(toPlainJSON(inner))
	return compiled, inner, true, err
}

// parseValueShape interprets a node that may be `{"$evaluation": ...}`,
// `{"value": ...}`, or a bare literal (the convention shared by $datas
// entries, $skip/$clear, repeat bounds, and generic-field/column values).
func parseValueShape(raw any) (logic *Node, literal any, hasLogic bool, err error) {
	compiled, _, was, cerr := compileIfEvaluation(raw)
	if was {
		return compiled, nil, cerr == nil, cerr
	}
	if obj, ok := raw.(*OrderedObject); ok {
		if v, ok2 := obj.Get("value"); ok2 {
			return nil, toPlainJSON(v), false, nil
		}
	}
	return nil, toPlainJSON(raw), false, nil
}

func parseWalk(node any, path string, s *Schema) error {
	obj, ok := node.(*OrderedObject)
	if !ok {
		return nil
	}

	skip := map[string]bool{}

	// Step 1: $evaluation -> compiled expression + dependency set.
	if compiled, _, was, err := compileIfEvaluation(obj); was {
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		s.Evaluations[path] = compiled
		deps := append([]string(nil), compiled.ReferencedVars()...)
		out := deps[:0]
		for _, v := range deps {
			if !isScopeVariable(v) {
				out = append(out, v)
			}
		}
		s.Dependencies[path] = out
		skip["$evaluation"] = true
	}

	// Step 2: $table.
	if obj.Has("$table") {
		tm, err := parseTableMetadata(obj, path)
		if err != nil {
			return err
		}
		s.Tables[path] = tm
		skip["$table"] = true
		skip["$datas"] = true
		skip["$skip"] = true
		skip["$clear"] = true
		skip["$repeat"] = true
		skip["properties"] = true
	}

	// Step 3: $layout.elements.
	if layoutRaw, ok2 := obj.Get("$layout"); ok2 {
		if lo, ok3 := layoutRaw.(*OrderedObject); ok3 {
			if lo.Has("elements") {
				s.LayoutPaths = append(s.LayoutPaths, path+"/$layout/elements")
			}
		}
		skip["$layout"] = true
	}

	// Step 4: rules.
	if rulesRaw, ok2 := obj.Get("rules"); ok2 {
		if !isInternalPseudoPath(path) {
			dotted := dataPath(path)
			fieldRules, err := parseFieldRules(rulesRaw)
			if err != nil {
				return err
			}
			if len(fieldRules) > 0 {
				s.FieldRules[dotted] = fieldRules
			}
		}
		skip["rules"] = true
	}

	// Step 5: url templates.
	if urlRaw, ok2 := obj.Get("url"); ok2 {
		if urlStr, ok3 := urlRaw.(string); ok3 && strings.Contains(urlStr, "{") {
			s.Templates = append(s.Templates, URLTemplate{
				URLPointer:    path + "/url",
				Template:      urlStr,
				ParamsPointer: path + "/params",
			})
		}
	}

	// Step 6: subform detection (array of objects); halt recursion into items.
	if typeRaw, ok2 := obj.Get("type"); ok2 {
		if typeStr, ok3 := typeRaw.(string); ok3 && typeStr == "array" {
			if obj.Has("items") {
				skip["items"] = true
			}
		}
	}

	// Step 7: condition.hidden / condition.disabled.
	if condRaw, ok2 := obj.Get("condition"); ok2 {
		if co, ok3 := condRaw.(*OrderedObject); ok3 {
			dotted := dataPath(path)
			if hiddenRaw, ok4 := co.Get("hidden"); ok4 {
				node, err := compileCondition(hiddenRaw)
				if err != nil {
					return fmt.Errorf("%s/condition/hidden: %w", path, err)
				}
				s.ConditionalHidden[dotted] = node
				if node != nil {
					for _, v := range node.ReferencedVars() {
						if !isScopeVariable(v) {
							s.ReffedBy[v] = append(s.ReffedBy[v], dotted)
						}
					}
				}
			}
			if disabledRaw, ok4 := co.Get("disabled"); ok4 {
				node, err := compileCondition(disabledRaw)
				if err != nil {
					return fmt.Errorf("%s/condition/disabled: %w", path, err)
				}
				// condition.disabled always means "skip this field in
				// validation" (spec.md §4.H); it additionally means "force
				// the field to its literal value" only when a "value" is
				// also present (the readonly pass in dependents.go).
				s.ConditionalDisabled[dotted] = node
				if obj.Has("value") {
					s.ConditionalReadonly[dotted] = node
				}
			}
		}
		skip["condition"] = true
	}

	// Step 8: dependents.
	if depsRaw, ok2 := obj.Get("dependents"); ok2 {
		if arr, ok3 := depsRaw.([]any); ok3 {
			items, err := parseDependents(arr, path, s)
			if err != nil {
				return err
			}
			if len(items) > 0 {
				dotted := dataPath(path)
				s.Dependents[dotted] = append(s.Dependents[dotted], items...)
			}
		}
		skip["dependents"] = true
	}

	// Step 9: value-evaluation candidate bookkeeping. Kept only as a
	// descriptive record: scheduling is fully subsumed by the dependency
	// graph's zero-dependency batch, so nothing downstream reads this list
	// as a scheduling source (see DESIGN.md Open Question decisions).
	if obj.Has("value") && obj.Has("$evaluation") && !isSpecialSegmentPath(path) {
		s.ValueEvaluations = append(s.ValueEvaluations, path)
	}

	// Step 10: recurse into children, document order, honoring the skip set.
	for _, key := range obj.Keys {
		if skip[key] {
			continue
		}
		child := obj.Values[key]
		childPath := path + "/" + key
		if err := parseWalk(child, childPath, s); err != nil {
			return err
		}
		if arr, ok2 := child.([]any); ok2 {
			for i, e := range arr {
				if err := parseWalk(e, childPath+"/"+strconv.Itoa(i), s); err != nil {
					return err
				}
			}
		}
	}

	return nil
}

// compileCondition compiles a condition.hidden/disabled value. A bare
// boolean literal compiles to a constant node rather than going through the
// $evaluation convention (these are written directly as `true`/`false` in
// practice, not wrapped).
func compileCondition(raw any) (*Node, error) {
	if b, ok := raw.(bool); ok {
		return &Node{Kind: KindBool, Bool: b}, nil
	}
	return Compile(toPlainJSON(raw))
}

// isInternalPseudoPath reports whether any segment of path is "$"-prefixed,
// meaning it sits inside a pseudo-structural subtree ($table, $datas,
// $layout, $repeat) rather than being a real field's own path.
func isInternalPseudoPath(path string) bool {
	for _, seg := range strings.Split(strings.TrimPrefix(path, "#"), "/") {
		if strings.HasPrefix(seg, "$") {
			return true
		}
	}
	return false
}

// isSpecialSegmentPath reports whether path descends through one of the
// non-DAG structural subtrees, per spec.md §4.D's node-set exclusions.
func isSpecialSegmentPath(path string) bool {
	for _, seg := range []string{"/$layout/", "/items/", "/options/", "/dependents/", "/rules/", "/condition/", "/config/"} {
		if strings.Contains(path, seg) {
			return true
		}
	}
	return false
}

// parseFieldRules builds a rule-name -> Rule map from a "rules" node's raw
// value. A rule entry whose "value" is itself an $evaluation is compiled and
// stashed on Rule.Logic for the orchestrator's rules pass to resolve before
// validation runs (spec.md §4.F step 5's rule value/evaluation write-back).
func parseFieldRules(raw any) (map[string]Rule, error) {
	obj, ok := raw.(*OrderedObject)
	if !ok {
		return nil, nil
	}
	rules := map[string]Rule{}
	for _, name := range obj.Keys {
		v := obj.Values[name]
		ro, ok2 := v.(*OrderedObject)
		if !ok2 {
			rules[name] = Rule{Value: toPlainJSON(v)}
			continue
		}
		var message string
		if m, ok3 := ro.Get("message"); ok3 {
			if ms, ok4 := m.(string); ok4 {
				message = ms
			}
		}
		if compiled, _, was, err := compileIfEvaluation(ro); was {
			if err != nil {
				return nil, fmt.Errorf("rules.%s: %w", name, err)
			}
			rules[name] = Rule{Logic: compiled, Message: message}
			continue
		}
		val, ok3 := ro.Get("value")
		if !ok3 {
			continue
		}
		rules[name] = Rule{Value: toPlainJSON(val), Message: message}
	}
	return rules, nil
}

// parseDependents builds the DependentItem list for one "dependents" array,
// compiling any $evaluation-wrapped clear/value entry and registering it in
// Evaluations under a synthetic key ("<path>/dependents/<i>/clear" or
// ".../value"). Those keys stay out of the dependency graph; the dependents
// pass evaluates the compiled node stored on the item directly, without the
// result cache.
func parseDependents(arr []any, path string, s *Schema) ([]*DependentItem, error) {
	items := make([]*DependentItem, 0, len(arr))
	for i, raw := range arr {
		eo, ok := raw.(*OrderedObject)
		if !ok {
			continue
		}
		refRaw, ok2 := eo.Get("$ref")
		if !ok2 {
			continue
		}
		refStr, _ := refRaw.(string)
		item := &DependentItem{RefPath: dataPath(ToCanonical(refStr))}

		if clearRaw, ok3 := eo.Get("clear"); ok3 {
			item.HasClear = true
			if compiled, _, was, err := compileIfEvaluation(clearRaw); was {
				if err != nil {
					return nil, fmt.Errorf("%s/dependents/%d/clear: %w", path, i, err)
				}
				key := fmt.Sprintf("%s/dependents/%d/clear", path, i)
				s.Evaluations[key] = compiled
				item.ClearLogic = compiled
			} else {
				item.ClearLiteral = toPlainJSON(clearRaw)
			}
		}

		if valueRaw, ok3 := eo.Get("value"); ok3 {
			item.HasValue = true
			if compiled, _, was, err := compileIfEvaluation(valueRaw); was {
				if err != nil {
					return nil, fmt.Errorf("%s/dependents/%d/value: %w", path, i, err)
				}
				key := fmt.Sprintf("%s/dependents/%d/value", path, i)
				s.Evaluations[key] = compiled
				item.ValueLogic = compiled
			} else {
				item.ValueLiteral = toPlainJSON(valueRaw)
			}
		}

		items = append(items, item)
	}
	return items, nil
}

// parseTableMetadata builds a TableMetadata from a "$table": true node's
// sibling keys ($datas, $skip, $clear, properties, $repeat).
func parseTableMetadata(obj *OrderedObject, path string) (*TableMetadata, error) {
	tm := &TableMetadata{Path: path, SkipLiteral: false, ClearLiteral: false}

	if rawDatas, ok := obj.Get("$datas"); ok {
		arr, _ := rawDatas.([]any)
		for _, entry := range arr {
			eo, ok2 := entry.(*OrderedObject)
			if !ok2 {
				continue
			}
			nameRaw, _ := eo.Get("name")
			name, _ := nameRaw.(string)
			logic, literal, _, err := parseValueShape(eo)
			if err != nil {
				return nil, fmt.Errorf("%s/$datas[%s]: %w", path, name, err)
			}
			tm.Datas = append(tm.Datas, DataPlanEntry{Name: name, Logic: logic, Literal: literal})
		}
	}

	if rawSkip, ok := obj.Get("$skip"); ok {
		logic, literal, _, err := parseValueShape(rawSkip)
		if err != nil {
			return nil, fmt.Errorf("%s/$skip: %w", path, err)
		}
		tm.SkipLogic, tm.SkipLiteral = logic, literal
	}

	if rawClear, ok := obj.Get("$clear"); ok {
		logic, literal, _, err := parseValueShape(rawClear)
		if err != nil {
			return nil, fmt.Errorf("%s/$clear: %w", path, err)
		}
		tm.ClearLogic, tm.ClearLiteral = logic, literal
	}

	if rawProps, ok := obj.Get("properties"); ok {
		if po, ok2 := rawProps.(*OrderedObject); ok2 {
			cols, err := parseColumnPlans(po)
			if err != nil {
				return nil, fmt.Errorf("%s/properties: %w", path, err)
			}
			if len(cols) > 0 {
				tm.RowPlans = append(tm.RowPlans, StaticRow{Columns: cols})
			}
		}
	}

	if rawRepeat, ok := obj.Get("$repeat"); ok {
		arr, ok2 := rawRepeat.([]any)
		if ok2 && len(arr) == 3 {
			startLogic, startLit, _, err := parseValueShape(arr[0])
			if err != nil {
				return nil, fmt.Errorf("%s/$repeat[0]: %w", path, err)
			}
			endLogic, endLit, _, err := parseValueShape(arr[1])
			if err != nil {
				return nil, fmt.Errorf("%s/$repeat[1]: %w", path, err)
			}
			tplObj, _ := arr[2].(*OrderedObject)
			cols, err := parseColumnPlans(tplObj)
			if err != nil {
				return nil, fmt.Errorf("%s/$repeat[2]: %w", path, err)
			}
			forward, normal := computeForwardNormalSets(cols)
			tm.RowPlans = append(tm.RowPlans, RepeatRow{
				StartLogic: startLogic, StartLiteral: startLit,
				EndLogic: endLogic, EndLiteral: endLit,
				Columns:    cols,
				ForwardSet: forward,
				NormalSet:  normal,
			})
		}
	}

	return tm, nil
}

func parseColumnPlans(obj *OrderedObject) ([]ColumnPlan, error) {
	if obj == nil {
		return nil, nil
	}
	cols := make([]ColumnPlan, 0, len(obj.Keys))
	for _, name := range obj.Keys {
		raw := obj.Values[name]
		logic, literal, hasLogic, err := parseValueShape(raw)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", name, err)
		}
		col := ColumnPlan{Name: name, Logic: logic, Literal: literal, HasLogic: hasLogic}
		if hasLogic {
			col.Vars = logic.ReferencedVars()
			col.HasForwardReference = logic.HasForwardReference()
		}
		cols = append(cols, col)
	}
	return cols, nil
}

// computeForwardNormalSets derives the forward/normal column partition via
// the transitive closure described in spec.md §4.E: a column belongs to the
// forward set if it itself contains a forward reference, or if it reads
// another forward-set column's scope variable ($col).
func computeForwardNormalSets(cols []ColumnPlan) (forward, normal map[string]bool) {
	forward = map[string]bool{}
	for _, c := range cols {
		if c.HasForwardReference {
			forward[c.Name] = true
		}
	}
	changed := true
	for changed {
		changed = false
		for _, c := range cols {
			if forward[c.Name] {
				continue
			}
			for _, v := range c.Vars {
				name := strings.TrimPrefix(v, "/")
				if isScopeVariable(name) && forward[strings.TrimPrefix(name, "$")] {
					forward[c.Name] = true
					changed = true
					break
				}
			}
		}
	}
	normal = map[string]bool{}
	for _, c := range cols {
		if !forward[c.Name] {
			normal[c.Name] = true
		}
	}
	return forward, normal
}

// aggregateTableDependencies computes each table's dependency set as the
// union of its $datas/$skip/$clear and every row plan's column dependencies
// (spec.md §3 "rows inside tables do not appear individually in the graph;
// their containing table path inherits them").
func aggregateTableDependencies(s *Schema) {
	for path, tm := range s.Tables {
		seen := map[string]bool{}
		var deps []string
		add := func(n *Node) {
			if n == nil {
				return
			}
			for _, v := range n.ReferencedVars() {
				if isScopeVariable(v) {
					continue
				}
				if !seen[v] {
					seen[v] = true
					deps = append(deps, v)
				}
			}
		}
		for _, de := range tm.Datas {
			add(de.Logic)
		}
		add(tm.SkipLogic)
		add(tm.ClearLogic)
		for _, rp := range tm.RowPlans {
			switch r := rp.(type) {
			case StaticRow:
				for _, c := range r.Columns {
					add(c.Logic)
				}
			case RepeatRow:
				add(r.StartLogic)
				add(r.EndLogic)
				for _, c := range r.Columns {
					add(c.Logic)
				}
			}
		}
		s.Dependencies[path] = deps
	}
}

// substituteTablePaths rewrites every recorded dependency that falls at or
// beneath a known table's own data address to that table's canonical data
// path (spec.md §4.D "table path substitution"): a dependency on a column
// living inside a table is really a dependency on the materialised table.
func substituteTablePaths(s *Schema) {
	type tableAddr struct {
		schemaPath string
		dataPath   string
	}
	var tables []tableAddr
	for sp := range s.Tables {
		tables = append(tables, tableAddr{sp, ToCanonical(dataPath(sp))})
	}
	if len(tables) == 0 {
		return
	}
	rewrite := func(dep string) string {
		for _, t := range tables {
			if dep == t.dataPath || strings.HasPrefix(dep, t.dataPath+"/") {
				return t.dataPath
			}
		}
		return dep
	}
	for key, deps := range s.Dependencies {
		seen := map[string]bool{}
		var out []string
		for _, d := range deps {
			r := rewrite(d)
			if !seen[r] {
				seen[r] = true
				out = append(out, r)
			}
		}
		s.Dependencies[key] = out
	}
}
