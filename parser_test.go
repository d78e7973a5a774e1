package reactiveschema

import (
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSchemaBuildsEvaluationsAndDependencies(t *testing.T) {
	schema := []byte(`{
		"type": "object",
		"properties": {
			"a": {"type": "number", "value": 2},
			"b": {"type": "number", "$evaluation": {"+": [{"var": "a"}, 1]}},
			"sum": {"type": "number", "$evaluation": {"+": [{"var": "a"}, {"var": "b"}]}}
		}
	}`)

	s, err := ParseSchema(schema)
	require.NoError(t, err)

	assert.Contains(t, s.Evaluations, "#/properties/b")
	assert.Contains(t, s.Evaluations, "#/properties/sum")

	deps := s.Dependencies["#/properties/sum"]
	assert.Len(t, deps, 2)

	require.NotEmpty(t, s.Batches, "expected at least one dependency batch")
	order := map[string]int{}
	for i, batch := range s.Batches {
		for _, k := range batch {
			order[k] = i
		}
	}
	assert.Less(t, order["#/properties/b"], order["#/properties/sum"], "expected b's batch before sum's batch")
}

func TestParseSchemaFieldRules(t *testing.T) {
	schema := []byte(`{
		"type": "object",
		"properties": {
			"name": {
				"type": "string",
				"rules": {
					"required": {"value": true, "message": "Name is required"},
					"minLength": {"value": 3}
				}
			}
		}
	}`)

	s, err := ParseSchema(schema)
	require.NoError(t, err)

	rules, ok := s.FieldRules["name"]
	require.True(t, ok, "expected field rules for 'name'")
	assert.Equal(t, true, rules["required"].Value)
	assert.Equal(t, "Name is required", rules["required"].Message)
	assert.Equal(t, json.Number("3"), rules["minLength"].Value)
}

func TestParseSchemaAcceptsYAMLSource(t *testing.T) {
	schema := []byte(`
type: object
properties:
  a:
    type: number
    value: 2
  sum:
    type: number
    $evaluation:
      +:
        - var: a
        - 1
`)
	s, err := ParseSchema(schema)
	require.NoError(t, err)
	assert.Contains(t, s.Evaluations, "#/properties/sum")
}

func TestParseSchemaDependenciesReachIntoReturnPayload(t *testing.T) {
	schema := []byte(`{
		"type": "object",
		"properties": {
			"a": {"type": "number", "value": 2},
			"summary": {
				"type": "object",
				"$evaluation": {
					"return": {
						"doubled": {"*": [{"var": "a"}, 2]}
					}
				}
			}
		}
	}`)

	s, err := ParseSchema(schema)
	require.NoError(t, err)

	require.Contains(t, s.Evaluations, "#/properties/summary")
	assert.Contains(t, s.Dependencies["#/properties/summary"], "/a")
}

func TestParseSchemaConditionalHiddenAndDependents(t *testing.T) {
	schema := []byte(`{
		"type": "object",
		"properties": {
			"kind": {"type": "string"},
			"detail": {
				"type": "string",
				"condition": {"hidden": {"==": [{"var": "kind"}, "simple"]}}
			}
		},
		"dependents": [
			{"$ref": "detail", "clear": true}
		]
	}`)

	s, err := ParseSchema(schema)
	require.NoError(t, err)

	_, ok := s.ConditionalHidden["detail"]
	require.True(t, ok, "expected a conditional-hidden entry for 'detail'")

	assert.Contains(t, s.ReffedBy["/kind"], "detail")

	items, ok := s.Dependents[""]
	require.True(t, ok)
	require.Len(t, items, 1)
	assert.Equal(t, "detail", items[0].RefPath)
}
