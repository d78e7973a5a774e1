package reactiveschema

import "testing"

func TestValidatorRequiredFires(t *testing.T) {
	v := NewValidator()
	rules := FieldRules{
		"name": {"required": {Value: true, Message: "Name is required"}},
	}
	scope := NewScope(map[string]any{"name": ""})
	result := v.Validate(rules, scope, nil)
	if !result.HasError || result.Errors[0].RuleType != "required" {
		t.Fatalf("expected required error, got %+v", result)
	}
}

func TestValidatorRequiredPassesWhenPresent(t *testing.T) {
	v := NewValidator()
	rules := FieldRules{
		"name": {"required": {Value: true}},
	}
	scope := NewScope(map[string]any{"name": "Alice"})
	result := v.Validate(rules, scope, nil)
	if result.HasError {
		t.Fatalf("expected no error, got %+v", result)
	}
}

func TestValidatorMinLengthMaxLength(t *testing.T) {
	v := NewValidator()
	rules := FieldRules{
		"sku": {"minLength": {Value: 3.0}},
	}
	scope := NewScope(map[string]any{"sku": "ab"})
	result := v.Validate(rules, scope, nil)
	if !result.HasError || result.Errors[0].RuleType != "minLength" {
		t.Fatalf("expected minLength error, got %+v", result)
	}

	rules = FieldRules{"sku": {"maxLength": {Value: 2.0}}}
	scope = NewScope(map[string]any{"sku": "abcd"})
	result = v.Validate(rules, scope, nil)
	if !result.HasError || result.Errors[0].RuleType != "maxLength" {
		t.Fatalf("expected maxLength error, got %+v", result)
	}
}

func TestValidatorMinValueMaxValue(t *testing.T) {
	v := NewValidator()
	rules := FieldRules{"qty": {"minValue": {Value: 5.0}}}
	scope := NewScope(map[string]any{"qty": 2.0})
	result := v.Validate(rules, scope, nil)
	if !result.HasError || result.Errors[0].RuleType != "minValue" {
		t.Fatalf("expected minValue error, got %+v", result)
	}

	rules = FieldRules{"qty": {"maxValue": {Value: 5.0}}}
	scope = NewScope(map[string]any{"qty": 10.0})
	result = v.Validate(rules, scope, nil)
	if !result.HasError || result.Errors[0].RuleType != "maxValue" {
		t.Fatalf("expected maxValue error, got %+v", result)
	}
}

func TestValidatorPattern(t *testing.T) {
	v := NewValidator()
	rules := FieldRules{"code": {"pattern": {Value: "^[A-Z]{3}$"}}}
	scope := NewScope(map[string]any{"code": "ab1"})
	result := v.Validate(rules, scope, nil)
	if !result.HasError || result.Errors[0].RuleType != "pattern" {
		t.Fatalf("expected pattern error, got %+v", result)
	}

	scope = NewScope(map[string]any{"code": "ABC"})
	result = v.Validate(rules, scope, nil)
	if result.HasError {
		t.Fatalf("expected no error for matching pattern, got %+v", result)
	}
}

func TestValidatorSkipsHiddenFields(t *testing.T) {
	v := NewValidator()
	rules := FieldRules{"name": {"required": {Value: true}}}
	scope := NewScope(map[string]any{"name": ""})
	result := v.Validate(rules, scope, func(path string) bool { return path == "name" })
	if result.HasError {
		t.Fatalf("expected hidden field to be skipped, got %+v", result)
	}
}

func TestValidatorOneErrorPerField(t *testing.T) {
	v := NewValidator()
	rules := FieldRules{
		"name": {
			"required":  {Value: true},
			"minLength": {Value: 5.0},
		},
	}
	scope := NewScope(map[string]any{"name": ""})
	result := v.Validate(rules, scope, nil)
	if len(result.Errors) != 1 {
		t.Fatalf("expected exactly one error per field, got %+v", result.Errors)
	}
	if result.Errors[0].RuleType != "required" {
		t.Fatalf("expected required to win priority over minLength, got %s", result.Errors[0].RuleType)
	}
}

func TestValidatorRegexCacheReused(t *testing.T) {
	v := NewValidator()
	re1, err := v.compiledPattern("^a+$")
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	re2, err := v.compiledPattern("^a+$")
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	if re1 != re2 {
		t.Fatal("expected cached regex to be reused")
	}
}

func TestValidatorInvalidPatternReportsError(t *testing.T) {
	v := NewValidator()
	rules := FieldRules{"code": {"pattern": {Value: "("}}}
	scope := NewScope(map[string]any{"code": "x"})
	result := v.Validate(rules, scope, nil)
	if !result.HasError || result.Errors[0].RuleType != "pattern" {
		t.Fatalf("expected pattern compile error to surface, got %+v", result)
	}
}
