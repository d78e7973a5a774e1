package reactiveschema

// evaluateMaxValue implements spec.md §4.H: fires when the value is
// greater than the rule parameter. Grounded on the teacher's maximum.go,
// rebased onto this engine's float64 numeric model.
func evaluateMaxValue(path string, rule Rule, value any) *ValidationError {
	if toF64(value) <= toF64(rule.Value) {
		return nil
	}
	return NewValidationError(path, "maxValue", rule.Message, map[string]any{"Parameter": rule.Value})
}
