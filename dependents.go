package reactiveschema

import (
	"strings"

	"github.com/goccy/go-json"
)

// dependentWorkItem is one entry of the breadth-first propagation queue
// described in spec.md §4.G: a dotted data path plus whether it was reached
// transitively (through another item firing) rather than directly changed.
type dependentWorkItem struct {
	path         string
	isTransitive bool
}

// EvaluateDependents runs the five-step dependent-propagation algorithm of
// spec.md §4.G over changedPaths. A non-nil newData/context installs a fresh
// document first (spec.md §6 `evaluate_dependents`). When reEvaluate is
// true, the full evaluation pipeline reruns after the direct dependents
// pass, followed by the readonly and hidden sweeps. cancelled is polled at
// the top of every queue pop; on a fire, any paths still queued are appended
// to cancelledOut (if non-nil) and ErrCancelled is returned alongside the
// records already produced.
func (e *Engine) EvaluateDependents(changedPaths []string, newData, context map[string]any, reEvaluate bool, cancelled <-chan struct{}, cancelledOut *[]string) ([]*DependentRecord, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.schema == nil {
		return nil, ErrSchemaNotLoaded
	}

	dotted := make([]string, 0, len(changedPaths))
	for _, p := range changedPaths {
		dotted = append(dotted, normalizeDotted(p))
	}

	// Step 1: snapshot, install, purge.
	var before *EvalData
	if newData != nil || context != nil {
		before = e.data.Clone()
		e.data.SetData(newData, context)
		e.purgeCacheForChanges(before, dotted)
	}

	records := []*DependentRecord{}
	seen := map[string]bool{}
	queue := make([]dependentWorkItem, 0, len(dotted))
	for _, p := range dotted {
		queue = append(queue, dependentWorkItem{path: p})
	}

	if err := e.drainDependentQueue(&queue, seen, &records, cancelled, cancelledOut); err != nil {
		return records, err
	}

	if !reEvaluate {
		return records, nil
	}

	// Step 4: re-evaluate, then the readonly and hidden sweeps.
	e.cache.Clear()
	if err := e.evaluateLocked(nil); err != nil {
		return records, err
	}

	if err := e.runReadonlyPass(&queue, seen, &records); err != nil {
		return records, err
	}
	if err := e.drainDependentQueue(&queue, seen, &records, cancelled, cancelledOut); err != nil {
		return records, err
	}

	e.runHiddenPass(&queue, &records)
	if err := e.drainDependentQueue(&queue, seen, &records, cancelled, cancelledOut); err != nil {
		return records, err
	}

	return records, nil
}

// drainDependentQueue processes queue until empty, expanding each popped
// path's dependents (spec.md §4.G step 3). Shared by the initial pass and
// by the post-readonly/post-hidden drains.
func (e *Engine) drainDependentQueue(queue *[]dependentWorkItem, seen map[string]bool, records *[]*DependentRecord, cancelled <-chan struct{}, cancelledOut *[]string) error {
	for len(*queue) > 0 {
		if cancelled != nil {
			select {
			case <-cancelled:
				if cancelledOut != nil {
					for _, item := range *queue {
						*cancelledOut = append(*cancelledOut, item.path)
					}
				}
				*queue = nil
				return ErrCancelled
			default:
			}
		}

		item := (*queue)[0]
		*queue = (*queue)[1:]
		if seen[item.path] {
			continue
		}
		seen[item.path] = true

		for _, di := range e.schema.Dependents[item.path] {
			rec, fired, err := e.applyDependentItem(item.path, di, item.isTransitive)
			if err != nil {
				return err
			}
			if fired {
				*records = append(*records, rec)
				*queue = append(*queue, dependentWorkItem{path: di.RefPath, isTransitive: true})
			}
		}
	}
	return nil
}

// applyDependentItem evaluates one dependent item's clear/value logic
// against {$value: owner's current value, $refValue: ref path's current
// value} and writes the outcome into e.data (spec.md §4.G step 3).
func (e *Engine) applyDependentItem(ownerPath string, di *DependentItem, transitive bool) (*DependentRecord, bool, error) {
	refCanonical := ToCanonical(di.RefPath)
	ownerVal, _ := e.data.Get(ToCanonical(ownerPath))
	refVal, _ := e.data.Get(refCanonical)

	scope := e.data.Scope().With(map[string]any{"$value": ownerVal, "$refValue": refVal})

	rec := NewDependentRecord(di.RefPath, transitive)
	rec.Field = refVal
	if parentNode, ok := nodeAt(e.schema.Raw, parentSchemaPointer(di.RefPath)); ok {
		rec.ParentField = stripSiblingStructure(parentNode)
	}

	fired := false

	if di.HasClear {
		clearResult, err := resolveDependentOutcome(di.ClearLogic, di.ClearLiteral, e.expr, scope)
		if err != nil {
			return nil, false, err
		}
		if truthy(clearResult) {
			e.data.Set(refCanonical, nil)
			rec.Clear = true
			fired = true
		}
	}

	if di.HasValue {
		valResult, err := resolveDependentOutcome(di.ValueLogic, di.ValueLiteral, e.expr, scope)
		if err != nil {
			return nil, false, err
		}
		if valResult != nil && !strictDeepEqual(valResult, refVal) {
			e.data.Set(refCanonical, valResult)
			rec.Value = valResult
			fired = true
		}
	}

	if !fired {
		return nil, false, nil
	}
	return rec, true, nil
}

func resolveDependentOutcome(logic *Node, literal any, ev *Evaluator, scope *Scope) (any, error) {
	if logic == nil {
		return literal, nil
	}
	return ev.Evaluate(logic, scope)
}

// runReadonlyPass implements spec.md §4.G step 4's readonly sweep: every
// conditionally-readonly field that is currently disabled emits a record
// unconditionally, and is additionally written back (and re-queued) when its
// schema value differs from the data's current value.
func (e *Engine) runReadonlyPass(queue *[]dependentWorkItem, seen map[string]bool, records *[]*DependentRecord) error {
	if e.configFlag("skipReadOnlyValue") {
		return nil
	}
	for dotted, cond := range e.schema.ConditionalReadonly {
		disabled, err := e.evalBoolCondition(cond)
		if err != nil {
			return err
		}
		if !disabled {
			continue
		}
		ptr := DottedToSchemaPointer(dotted)
		schemaVal, ok := nodeAt(e.schema.Raw, ptr+"/value")
		if !ok {
			// Top-level fields nested under the schema's root "properties".
			schemaVal, ok = nodeAt(e.schema.Raw, "#/properties"+strings.TrimPrefix(ptr, "#")+"/value")
		}
		if !ok {
			continue
		}
		current, _ := e.data.Get(ToCanonical(dotted))

		rec := NewDependentRecord(dotted, false)
		rec.Readonly = true
		rec.Value = schemaVal
		*records = append(*records, rec)

		if !strictDeepEqual(schemaVal, current) {
			e.data.Set(ToCanonical(dotted), schemaVal)
			delete(seen, dotted)
			*queue = append(*queue, dependentWorkItem{path: dotted, isTransitive: true})
		}
	}
	return nil
}

// runHiddenPass implements spec.md §4.G step 4's hidden sweep: every
// currently-hidden field holding a non-empty value is cleared, and the
// clearing propagates recursively through reffed_by.
func (e *Engine) runHiddenPass(queue *[]dependentWorkItem, records *[]*DependentRecord) {
	if e.configFlag("keepHiddenValue") {
		return
	}
	for dotted, cond := range e.schema.ConditionalHidden {
		hidden, err := e.evalBoolCondition(cond)
		if err != nil || !hidden {
			continue
		}
		current, _ := e.data.Get(ToCanonical(dotted))
		if isEmptyValue(current) {
			continue
		}
		e.clearHiddenRecursive(dotted, false, records, queue)
	}
}

func (e *Engine) clearHiddenRecursive(dotted string, transitive bool, records *[]*DependentRecord, queue *[]dependentWorkItem) {
	e.data.Set(ToCanonical(dotted), nil)

	rec := NewDependentRecord(dotted, transitive)
	rec.Hidden = true
	rec.Clear = true
	*records = append(*records, rec)
	*queue = append(*queue, dependentWorkItem{path: dotted, isTransitive: true})

	for _, child := range e.schema.ReffedBy[ToCanonical(dotted)] {
		cond := e.schema.ConditionalHidden[child]
		hidden, err := e.evalBoolCondition(cond)
		if err != nil || !hidden {
			continue
		}
		childVal, _ := e.data.Get(ToCanonical(child))
		if isEmptyValue(childVal) {
			continue
		}
		e.clearHiddenRecursive(child, true, records, queue)
	}
}

func (e *Engine) evalBoolCondition(cond *Node) (bool, error) {
	if cond == nil {
		return false, nil
	}
	v, err := e.expr.Evaluate(cond, e.data.Scope())
	if err != nil {
		return false, err
	}
	return truthy(v), nil
}

// purgeCacheForChanges discards every cache entry whose dependency set
// intersects a changed path whose value actually differs pre/post update
// (spec.md §4.G step 1).
func (e *Engine) purgeCacheForChanges(before *EvalData, changedDotted []string) {
	changedSet := map[string]bool{}
	for _, p := range changedDotted {
		c := ToCanonical(p)
		oldV, _ := before.Get(c)
		newV, _ := e.data.Get(c)
		if !strictDeepEqual(oldV, newV) {
			changedSet[c] = true
		}
	}
	if len(changedSet) == 0 {
		return
	}
	e.cache.Retain(func(k CacheKey) bool {
		for _, d := range e.schema.Dependencies[k.EvaluationKey] {
			if changedSet[ToCanonical(d)] {
				return false
			}
		}
		return true
	})
}

// configFlag reads a boolean under the schema's top-level "config.all"
// object (e.g. "skipReadOnlyValue", "keepHiddenValue").
func (e *Engine) configFlag(name string) bool {
	cfg, _ := e.schema.Raw["config"].(map[string]any)
	if cfg == nil {
		return false
	}
	all, _ := cfg["all"].(map[string]any)
	if all == nil {
		return false
	}
	v, _ := all[name].(bool)
	return v
}

// normalizeDotted reduces any of the three path dialects to pure dotted
// data-path form (no "properties" segments).
func normalizeDotted(p string) string {
	return dataPath(ToCanonical(p))
}

// strictDeepEqual compares two decoded JSON values structurally via
// marshalled-form comparison, adequate for the arbitrarily nested
// maps/arrays/scalars that flow through evaluation data.
func strictDeepEqual(a, b any) bool {
	if a == nil && b == nil {
		return true
	}
	ab, err1 := json.Marshal(a)
	bb, err2 := json.Marshal(b)
	if err1 != nil || err2 != nil {
		return false
	}
	return string(ab) == string(bb)
}
