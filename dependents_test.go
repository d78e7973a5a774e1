package reactiveschema

import (
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDependentsSchema = `{
	"type": "object",
	"properties": {
		"owner": {
			"type": "number",
			"dependents": [
				{"$ref": "dependent", "clear": true}
			]
		},
		"dependent": {"type": "string"},
		"ro": {"type": "number", "value": 42, "condition": {"disabled": true}},
		"flag": {"type": "boolean"},
		"hid": {"type": "string", "condition": {"hidden": {"var": "flag"}}}
	}
}`

func newTestDependentsEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine([]byte(testDependentsSchema), nil, map[string]any{
		"owner":     1.0,
		"dependent": "something",
		"flag":      true,
		"hid":       "secret",
	})
	require.NoError(t, err)
	require.NoError(t, e.Evaluate(nil, nil, nil))
	return e
}

func TestEvaluateDependentsClearsRef(t *testing.T) {
	e := newTestDependentsEngine(t)
	records, err := e.EvaluateDependents([]string{"owner"}, nil, nil, false, nil, nil)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "dependent", records[0].Ref)
	assert.True(t, records[0].Clear)

	v, _ := e.GetValueByPath("dependent", false)
	assert.Nil(t, v, "expected 'dependent' to be cleared in the document")
}

func TestEvaluateDependentsReadonlyPassForcesSchemaValue(t *testing.T) {
	e := newTestDependentsEngine(t)
	records, err := e.EvaluateDependents([]string{"owner"}, nil, nil, true, nil, nil)
	require.NoError(t, err)

	var sawReadonly bool
	for _, r := range records {
		if r.Ref == "ro" && r.Readonly {
			sawReadonly = true
			assert.Equal(t, json.Number("42"), r.Value)
		}
	}
	assert.True(t, sawReadonly, "expected a readonly record for 'ro', got %+v", records)

	v, _ := e.GetValueByPath("ro", false)
	assert.Equal(t, json.Number("42"), v)
}

func TestEvaluateDependentsHiddenPassClearsValue(t *testing.T) {
	e := newTestDependentsEngine(t)
	records, err := e.EvaluateDependents([]string{"owner"}, nil, nil, true, nil, nil)
	require.NoError(t, err)

	var sawHidden bool
	for _, r := range records {
		if r.Ref == "hid" && r.Hidden {
			sawHidden = true
		}
	}
	assert.True(t, sawHidden, "expected a hidden-clear record for 'hid', got %+v", records)

	v, _ := e.GetValueByPath("hid", false)
	assert.Nil(t, v, "expected 'hid' cleared since its condition.hidden is true")
}

func TestEvaluateDependentsCancellation(t *testing.T) {
	e := newTestDependentsEngine(t)
	cancelled := make(chan struct{})
	close(cancelled)
	var stillQueued []string
	_, err := e.EvaluateDependents([]string{"owner"}, nil, nil, false, cancelled, &stillQueued)
	assert.ErrorIs(t, err, ErrCancelled)
}
