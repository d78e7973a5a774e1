package reactiveschema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testInstanceSchema = `{
	"type": "object",
	"properties": {
		"name": {
			"type": "string",
			"rules": {
				"required": {"value": true, "message": "Name is required"}
			}
		},
		"detail": {
			"type": "string",
			"condition": {"hidden": {"==": [{"var": "kind"}, "simple"]}},
			"rules": {
				"required": {"value": true, "message": "Detail is required"}
			}
		},
		"archived": {
			"type": "string",
			"condition": {"disabled": true},
			"rules": {
				"required": {"value": true, "message": "Archived is required"}
			}
		},
		"kind": {"type": "string"},
		"a": {"type": "number", "value": 2},
		"sum": {"type": "number", "$evaluation": {"+": [{"var": "a"}, 1]}},
		"$layout": {"elements": ["name", "detail"]}
	}
}`

func newTestInstanceEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine([]byte(testInstanceSchema), nil, map[string]any{
		"kind": "simple",
		"a":    2.0,
	})
	require.NoError(t, err)
	require.NoError(t, e.Evaluate(nil, nil, nil))
	return e
}

func TestValidateReportsMissingRequiredAndSkipsHidden(t *testing.T) {
	e := newTestInstanceEngine(t)
	result := e.Validate()
	assert.True(t, result.HasError, "expected a validation error for missing 'name'")

	var sawName bool
	for _, err := range result.Errors {
		assert.NotEqual(t, "detail", err.Path, "expected 'detail' to be skipped since condition.hidden is true")
		if err.Path == "name" {
			sawName = true
		}
	}
	assert.True(t, sawName, "expected a 'name' error, got %+v", result.Errors)
}

func TestValidateSkipsDisabledFieldWithoutLiteralValue(t *testing.T) {
	e := newTestInstanceEngine(t)
	result := e.Validate()
	for _, err := range result.Errors {
		assert.NotEqual(t, "archived", err.Path, "expected 'archived' to be skipped since condition.disabled is true")
	}
}

func TestValidateWithPathsFilter(t *testing.T) {
	e := newTestInstanceEngine(t)
	result := e.Validate("kind")
	assert.False(t, result.HasError, "expected no errors when filtering to 'kind' only")
}

func TestGetEvaluatedSchemaSplicesResultsAndStripsLayout(t *testing.T) {
	e := newTestInstanceEngine(t)
	out := e.GetEvaluatedSchema(true)
	root, ok := out.(map[string]any)
	require.True(t, ok, "expected a map root, got %T", out)

	_, hasLayout := root["$layout"]
	assert.False(t, hasLayout, "expected no $layout at the root")

	props := root["properties"].(map[string]any)
	_, hasLayout = props["$layout"]
	assert.False(t, hasLayout, "expected $layout to be stripped")
	assert.Equal(t, 3.0, props["sum"], "expected the sum node replaced by its computed result")
}

func TestGetValueByPath(t *testing.T) {
	e := newTestInstanceEngine(t)
	v, ok := e.GetValueByPath("sum", false)
	require.True(t, ok)
	assert.Equal(t, 3.0, v)

	_, ok = e.GetValueByPath("nonexistent", false)
	assert.False(t, ok)
}

func TestGetSchemaValueReturnsDataAndComputedValues(t *testing.T) {
	e := newTestInstanceEngine(t)
	out := e.GetSchemaValue().(map[string]any)
	assert.Equal(t, 2.0, out["a"], "expected the supplied 'a' = 2")
	assert.Equal(t, 3.0, out["sum"], "expected computed 'sum' = 3 to already be present")
}

func TestCacheStatsClearAndLen(t *testing.T) {
	e := newTestInstanceEngine(t)
	require.NotZero(t, e.CacheLen(), "expected a populated cache after evaluation")

	stats := e.CacheStats()
	assert.Equal(t, e.CacheLen(), stats.Entries)

	e.ClearCache()
	assert.Zero(t, e.CacheLen())
}

func TestCompileAndRunLogicAgainstExplicitData(t *testing.T) {
	e := newTestInstanceEngine(t)
	v, err := e.CompileAndRunLogic(map[string]any{"+": []any{map[string]any{"var": "x"}, 10}}, map[string]any{"x": 5.0})
	require.NoError(t, err)
	assert.Equal(t, 15.0, v)
}

func TestCompileAndRunLogicAgainstEngineDocument(t *testing.T) {
	e := newTestInstanceEngine(t)
	v, err := e.CompileAndRunLogic(map[string]any{"var": "sum"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 3.0, v)
}
