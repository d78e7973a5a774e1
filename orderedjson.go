package reactiveschema

import (
	"bytes"

	"github.com/goccy/go-json"
)

// OrderedObject preserves a JSON object's key order. The table materialiser
// evaluates static-row and repeat-row columns in literal schema order, not
// topological order (spec.md §4.E); a plain map[string]any loses that order,
// so the parser decodes schema documents into this tree instead.
type OrderedObject struct {
	Keys   []string
	Values map[string]any
}

// Get looks up a key, reporting whether it was present.
func (o *OrderedObject) Get(key string) (any, bool) {
	if o == nil {
		return nil, false
	}
	v, ok := o.Values[key]
	return v, ok
}

// Has reports whether key is present.
func (o *OrderedObject) Has(key string) bool {
	if o == nil {
		return false
	}
	_, ok := o.Values[key]
	return ok
}

// decodeOrderedJSON parses a JSON document into a tree of *OrderedObject,
// []any and scalars (bool, json.Number, string, nil), preserving object key
// order at every level. Grounded on goccy/go-json's encoding/json-compatible
// streaming Decoder/Token API, used here instead of a plain Unmarshal into
// map[string]any specifically to retain the ordering information the table
// materialiser depends on.
func decodeOrderedJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return decodeOrderedValue(dec)
}

func decodeOrderedValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); ok {
		switch delim {
		case '{':
			return decodeOrderedObject(dec)
		case '[':
			return decodeOrderedArray(dec)
		}
	}
	return tok, nil
}

func decodeOrderedObject(dec *json.Decoder) (*OrderedObject, error) {
	obj := &OrderedObject{Values: map[string]any{}}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, _ := keyTok.(string)
		val, err := decodeOrderedValue(dec)
		if err != nil {
			return nil, err
		}
		obj.Keys = append(obj.Keys, key)
		obj.Values[key] = val
	}
	if _, err := dec.Token(); err != nil { // consume closing '}'
		return nil, err
	}
	return obj, nil
}

func decodeOrderedArray(dec *json.Decoder) ([]any, error) {
	var arr []any
	for dec.More() {
		val, err := decodeOrderedValue(dec)
		if err != nil {
			return nil, err
		}
		arr = append(arr, val)
	}
	if _, err := dec.Token(); err != nil { // consume closing ']'
		return nil, err
	}
	return arr, nil
}

// toPlainJSON recursively converts an OrderedObject tree into ordinary
// map[string]any / []any / scalars, the shape Compile and the evaluator
// operate on. Key order is irrelevant once an expression is compiled.
func toPlainJSON(v any) any {
	switch t := v.(type) {
	case *OrderedObject:
		m := make(map[string]any, len(t.Keys))
		for _, k := range t.Keys {
			m[k] = toPlainJSON(t.Values[k])
		}
		return m
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = toPlainJSON(e)
		}
		return out
	default:
		return v
	}
}
