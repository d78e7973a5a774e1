package reactiveschema

import "testing"

func TestValidationResultAccumulates(t *testing.T) {
	r := NewValidationResult()
	if r.HasError {
		t.Fatal("new result should not have errors")
	}
	r.Add(NewValidationError("name", "required", "This field is required.", nil))
	if !r.HasError || len(r.Errors) != 1 {
		t.Fatalf("expected one accumulated error, got %+v", r)
	}
}

func TestValidationErrorFallsBackToDefaultMessage(t *testing.T) {
	e := NewValidationError("age", "minValue", "", nil)
	if e.Message != "Validation failed" {
		t.Fatalf("expected fallback message, got %q", e.Message)
	}
}

func TestValidationErrorLocalize(t *testing.T) {
	bundle, err := GetI18n()
	if err != nil {
		t.Fatalf("GetI18n error: %v", err)
	}
	localizer := bundle.NewLocalizer("zh-Hans")
	e := NewValidationError("name", "required", "This field is required.", nil)
	localized := e.Localize(localizer)
	if localized == "" || localized == e.Message {
		t.Fatalf("expected localized message distinct from default, got %q", localized)
	}
}

func TestValidationResultLocalize(t *testing.T) {
	bundle, err := GetI18n()
	if err != nil {
		t.Fatalf("GetI18n error: %v", err)
	}
	localizer := bundle.NewLocalizer("en")
	r := NewValidationResult()
	r.Add(NewValidationError("sku", "required", "This field is required.", nil))
	out := r.Localize(localizer)
	if out["sku"] == "" {
		t.Fatalf("expected a localized message for sku, got %+v", out)
	}
}

func TestNewDependentRecordMarksTransitive(t *testing.T) {
	r := NewDependentRecord("a.b", true)
	if r.Ref != "a.b" || !r.Transitive {
		t.Fatalf("unexpected record: %+v", r)
	}
}
