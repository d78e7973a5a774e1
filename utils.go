package reactiveschema

import (
	"fmt"
	"math/big"
	"reflect"
	"strings"

	"github.com/goccy/go-json"
)

// replace substitutes "{key}" placeholders in template with the stringified
// value of params[key]. Reused verbatim for spec.md §4.F step 6's URL
// template substitution as well as error-message formatting.
func replace(template string, params map[string]any) string {
	for key, value := range params {
		placeholder := "{" + key + "}"
		template = strings.ReplaceAll(template, placeholder, fmt.Sprint(value))
	}
	return template
}

// mergeIntMaps merges two integer-set maps. The values in the second map
// overwrite the first where keys overlap.
func mergeIntMaps(map1, map2 map[int]bool) map[int]bool {
	for key, value := range map2 {
		map1[key] = value
	}
	return map1
}

// mergeStringMaps merges two string-set maps. The values in the second map
// overwrite the first where keys overlap.
func mergeStringMaps(map1, map2 map[string]bool) map[string]bool {
	for key, value := range map2 {
		map1[key] = value
	}
	return map1
}

// getDataType classifies a decoded JSON value into one of the reactive
// schema's field types ("null", "boolean", "integer", "number", "string",
// "array", "object").
func getDataType(v any) string {
	switch v := v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case json.Number:
		if _, ok := new(big.Int).SetString(string(v), 10); ok {
			return "integer"
		}
		if bigFloat, ok := new(big.Float).SetString(string(v)); ok {
			if _, acc := bigFloat.Int(nil); acc == big.Exact {
				return "integer"
			}
			return "number"
		}
	case float32, float64:
		bigFloat := new(big.Float).SetFloat64(reflect.ValueOf(v).Float())
		if _, acc := bigFloat.Int(nil); acc == big.Exact {
			return "integer"
		}
		return "number"
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return "integer"
	case string:
		return "string"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	}
	return "unknown"
}
