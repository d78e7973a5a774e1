package reactiveschema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testEvaluatorSchema = `{
	"type": "object",
	"properties": {
		"base": {"type": "number", "value": 10},
		"sum": {"type": "number", "$evaluation": {"+": [{"var": "base"}, 5]}},
		"rows": {
			"$table": true,
			"properties": {
				"x": {"value": 1},
				"y": {"$evaluation": {"+": [{"var": "$x"}, {"var": "base"}]}}
			}
		},
		"link": {
			"type": "string",
			"url": "api/items/{id}",
			"params": {"id": {"value": 7}}
		}
	}
}`

func TestEngineEvaluateFullPipeline(t *testing.T) {
	e, err := NewEngine([]byte(testEvaluatorSchema), nil, map[string]any{"base": 10.0})
	require.NoError(t, err)
	require.NoError(t, e.Evaluate(nil, nil, nil))

	sum, ok := e.GetValueByPath("sum", false)
	require.True(t, ok)
	assert.Equal(t, 15.0, sum)

	rows, ok := e.GetValueByPath("rows", false)
	require.True(t, ok, "expected rows to be materialised")
	rowList, ok := rows.([]any)
	require.True(t, ok)
	require.Len(t, rowList, 1)
	row := rowList[0].(map[string]any)
	assert.Equal(t, 11.0, row["y"])

	assert.Equal(t, "api/items/7", e.resolvedTemplates["#/properties/link/url"])
}

func TestEngineEvaluateCachesResults(t *testing.T) {
	e, err := NewEngine([]byte(testEvaluatorSchema), nil, map[string]any{"base": 10.0})
	require.NoError(t, err)
	require.NoError(t, e.Evaluate(nil, nil, nil))
	statsAfterFirst := e.CacheStats()

	require.NoError(t, e.Evaluate(nil, nil, nil))
	statsAfterSecond := e.CacheStats()
	assert.Greater(t, statsAfterSecond.Hits, statsAfterFirst.Hits)
}

func TestFilterSetRestrictsEvaluation(t *testing.T) {
	e, err := NewEngine([]byte(testEvaluatorSchema), nil, map[string]any{"base": 10.0})
	require.NoError(t, err)
	require.NoError(t, e.Evaluate(nil, nil, []string{"sum"}))

	_, ok := e.GetValueByPath("sum", false)
	assert.True(t, ok, "expected 'sum' to be evaluated under its own filter")

	_, ok = e.GetValueByPath("rows", false)
	assert.False(t, ok, "expected 'rows' to be skipped when filtered to 'sum' only")
}
