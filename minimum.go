package reactiveschema

// evaluateMinValue implements spec.md §4.H: fires when the value is less
// than the rule parameter. Grounded on the teacher's minimum.go, rebased
// from arbitrary-precision *Rat comparison onto this engine's float64
// numeric model (spec.md §4.B numeric coercion).
func evaluateMinValue(path string, rule Rule, value any) *ValidationError {
	if toF64(value) >= toF64(rule.Value) {
		return nil
	}
	return NewValidationError(path, "minValue", rule.Message, map[string]any{"Parameter": rule.Value})
}
