package reactiveschema

import "sync"

// Rule is the wire shape a field's rule object unmarshals to (spec.md §6
// "Rule objects"): the parameter that drives the predicate lives in Value,
// not a boolean "is this rule on" flag — e.g. `required: {value: true}` and
// `minLength: {value: 3}` both encode their parameter the same way.
type Rule struct {
	Value   any
	Message string

	// Logic is set instead of Value when the rule's parameter is itself an
	// `$evaluation` (e.g. a maxValue computed from a sibling field). The
	// orchestrator's rules pass resolves Logic to a Value before Validate
	// ever sees the rule (spec.md §4.F step 5); Validate itself never reads
	// Logic.
	Logic *Node
}

// FieldRules is `fields_with_rules`: dotted field path to its rule-name-to-
// Rule map.
type FieldRules map[string]map[string]Rule

// ruleOrder fixes the priority in which a field's rules are checked so that
// "one error per field maximum" (spec.md §4.H) is deterministic across runs.
var ruleOrder = []string{"required", "minLength", "maxLength", "minValue", "maxValue", "pattern"}

// Validator walks fields_with_rules against evaluation data, skipping hidden
// fields, and accumulates at most one error per field (spec.md §4.H).
// Grounded on the teacher's validate.go dispatch-by-keyword style, adapted
// from schema-keyword dispatch to rule-object dispatch. The regex cache
// mirrors spec.md §5's "single per-instance read-write map... built lazily
// on first use".
type Validator struct {
	regexCache sync.Map // pattern string -> *regexp.Regexp
}

// NewValidator constructs an empty Validator.
func NewValidator() *Validator {
	return &Validator{}
}

// IsHidden reports whether a field path should be skipped during
// validation (spec.md §4.H "if the field is hidden... skip").
type IsHidden func(path string) bool

// Validate applies rules to scope, skipping any path for which isHidden
// returns true. isHidden may be nil (nothing is hidden).
func (v *Validator) Validate(rules FieldRules, scope *Scope, isHidden IsHidden) *ValidationResult {
	result := NewValidationResult()
	for path, fieldRules := range rules {
		if isHidden != nil && isHidden(path) {
			continue
		}
		value, _ := scope.Resolve(ToCanonical(path))
		if err := v.validateField(path, fieldRules, value); err != nil {
			result.Add(err)
		}
	}
	return result
}

// validateField returns the first firing rule's error, in ruleOrder
// priority, or nil if every rule passes.
func (v *Validator) validateField(path string, rules map[string]Rule, value any) *ValidationError {
	for _, name := range ruleOrder {
		rule, ok := rules[name]
		if !ok {
			continue
		}
		var err *ValidationError
		switch name {
		case "required":
			err = evaluateRequired(path, rule, value)
		case "minLength":
			err = evaluateMinLength(path, rule, value)
		case "maxLength":
			err = evaluateMaxLength(path, rule, value)
		case "minValue":
			err = evaluateMinValue(path, rule, value)
		case "maxValue":
			err = evaluateMaxValue(path, rule, value)
		case "pattern":
			err = v.evaluatePattern(path, rule, value)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// valueLength returns the length spreadsheet-string/array rules operate on:
// rune count for strings, element count for arrays, 0 otherwise.
func valueLength(value any) int {
	switch t := value.(type) {
	case string:
		return len([]rune(t))
	case []any:
		return len(t)
	default:
		return 0
	}
}
