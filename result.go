package reactiveschema

import "github.com/kaptinlin/go-i18n"

// ValidationError is the wire shape described in spec.md §6 "Validation
// error": one per offending field, keyed by dotted path.
type ValidationError struct {
	Path     string         `json:"path"`
	RuleType string         `json:"rule_type"`
	Message  string         `json:"message"`
	Params   map[string]any `json:"-"`
}

// NewValidationError builds a ValidationError, falling back to "Validation
// failed" when the rule supplies no message (spec.md §4.H).
func NewValidationError(path, ruleType, message string, params map[string]any) *ValidationError {
	if message == "" {
		message = "Validation failed"
	}
	return &ValidationError{Path: path, RuleType: ruleType, Message: message, Params: params}
}

func (e *ValidationError) Error() string {
	return replace(e.Message, e.Params)
}

// Localize renders the error through a localizer keyed by rule type, falling
// back to the literal message when no localizer is supplied.
func (e *ValidationError) Localize(localizer *i18n.Localizer) string {
	if localizer == nil {
		return e.Error()
	}
	return localizer.Get(e.RuleType, i18n.Vars(e.Params))
}

// ValidationResult is the `{has_error, errors[]}` shape returned by
// `validate` (spec.md §6).
type ValidationResult struct {
	HasError bool               `json:"has_error"`
	Errors   []*ValidationError `json:"errors"`
}

// NewValidationResult builds an empty, passing result.
func NewValidationResult() *ValidationResult {
	return &ValidationResult{Errors: []*ValidationError{}}
}

// Add records a field failure; one error per field, first-failure-wins is
// enforced by the caller (validator.go), not here.
func (r *ValidationResult) Add(err *ValidationError) {
	r.HasError = true
	r.Errors = append(r.Errors, err)
}

// Localize renders every error's message through localizer, returning a
// dotted-path-keyed map convenient for API responses.
func (r *ValidationResult) Localize(localizer *i18n.Localizer) map[string]string {
	out := make(map[string]string, len(r.Errors))
	for _, e := range r.Errors {
		if localizer != nil {
			out[e.Path] = e.Localize(localizer)
		} else {
			out[e.Path] = e.Error()
		}
	}
	return out
}

// DependentRecord is the wire shape emitted by `evaluate_dependents`
// (spec.md §6 "Dependent records"). Every key except `$ref` and
// `transitive` carries `omitempty`, so a false flag or nil value is left out
// of the JSON form.
type DependentRecord struct {
	Ref         string `json:"$ref"`
	Field       any    `json:"$field,omitempty"`
	ParentField any    `json:"$parentField,omitempty"`
	Transitive  bool   `json:"transitive"`
	Clear       bool   `json:"clear,omitempty"`
	Value       any    `json:"value,omitempty"`
	Readonly    bool   `json:"$readonly,omitempty"`
	Hidden      bool   `json:"$hidden,omitempty"`
}

// NewDependentRecord constructs a record for path, marked transitive when it
// was reached through a chain rather than being a directly changed path.
func NewDependentRecord(path string, transitive bool) *DependentRecord {
	return &DependentRecord{Ref: path, Transitive: transitive}
}
