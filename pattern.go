package reactiveschema

import "regexp"

// evaluatePattern implements spec.md §4.H: fires when the rule parameter is
// a regular expression the string value does not match. A malformed pattern
// is treated as invalid input rather than a firing rule, surfacing as its
// own error so a broken schema doesn't silently let every value through.
// Grounded on the teacher's pattern.go; the per-schema compiledStringPattern
// field is replaced with the validator-wide regex cache described in
// spec.md §5 "Regex cache".
func (v *Validator) evaluatePattern(path string, rule Rule, value any) *ValidationError {
	pattern, ok := rule.Value.(string)
	if !ok || pattern == "" {
		return nil
	}
	s, ok := value.(string)
	if !ok {
		return nil
	}
	re, err := v.compiledPattern(pattern)
	if err != nil {
		return NewValidationError(path, "pattern", "Invalid regular expression pattern", map[string]any{"Parameter": pattern})
	}
	if re.MatchString(s) {
		return nil
	}
	return NewValidationError(path, "pattern", rule.Message, map[string]any{"Parameter": pattern})
}

func (v *Validator) compiledPattern(pattern string) (*regexp.Regexp, error) {
	if cached, ok := v.regexCache.Load(pattern); ok {
		return cached.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	v.regexCache.Store(pattern, re)
	return re, nil
}
