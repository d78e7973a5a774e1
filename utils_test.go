package reactiveschema

import "testing"

func TestGetDataType(t *testing.T) {
	cases := []struct {
		v    any
		want string
	}{
		{nil, "null"},
		{true, "boolean"},
		{"x", "string"},
		{1.0, "integer"},
		{1.5, "number"},
		{[]any{1.0}, "array"},
		{map[string]any{"a": 1}, "object"},
	}
	for _, c := range cases {
		if got := getDataType(c.v); got != c.want {
			t.Errorf("getDataType(%v) = %q, want %q", c.v, got, c.want)
		}
	}
}

func TestReplaceTemplate(t *testing.T) {
	got := replace("Must be at least {Parameter} characters", map[string]any{"Parameter": 3})
	if got != "Must be at least 3 characters" {
		t.Errorf("replace -> %q", got)
	}
}

func TestMergeStringMaps(t *testing.T) {
	a := map[string]bool{"x": true}
	b := map[string]bool{"y": true}
	merged := mergeStringMaps(a, b)
	if !merged["x"] || !merged["y"] {
		t.Errorf("expected merged map to contain both keys, got %v", merged)
	}
}
