package reactiveschema

import (
	"strings"

	"github.com/kaptinlin/jsonpointer"
)

// Path provides the three pure, deterministic path-normalisation functions
// described in spec.md §4.A. The three dialects (dotted, schema pointer with
// "/properties/" segments, and plain data pointer) never mix at core
// boundaries: every ingress point sanitises to canonical form before
// dependency recording, cache-key construction, or data access. Pointer
// parsing/formatting goes through jsonpointer.Parse/Format rather than a
// hand-rolled "/"-split, matching the teacher's own use of that package in
// schema.go/ref.go — so a field name containing a literal "/" or "~"
// round-trips correctly through ~1/~0 escaping instead of corrupting the
// segment boundary.

// collapseSlashes folds any run of consecutive "/"s into one, so a
// malformed "//"-doubled pointer doesn't parse into spurious empty segments.
func collapseSlashes(p string) string {
	for strings.Contains(p, "//") {
		p = strings.ReplaceAll(p, "//", "/")
	}
	return p
}

// asPointerSegments parses a bare pointer body (no leading "#", with or
// without a leading "/") into its unescaped tokens via jsonpointer.Parse,
// which expects a leading "/"; one is added if missing.
func asPointerSegments(body string) []string {
	if body == "" {
		return nil
	}
	body = collapseSlashes(body)
	if !strings.HasPrefix(body, "/") {
		body = "/" + body
	}
	return jsonpointer.Parse(body)
}

// ToCanonical normalises any of the three path dialects to the canonical
// pointer form: a leading "/", segments separated by single "/"s, no
// "properties" stripping (callers that need data-addressing semantics use
// PointerToDotted / dataPath instead). The root path is the empty string.
func ToCanonical(path string) string {
	if path == "" {
		return ""
	}
	p := path
	switch {
	case strings.HasPrefix(p, "#/"):
		p = p[1:]
	case strings.HasPrefix(p, "/"):
		// already a pointer
	case strings.Contains(p, "."):
		p = "/" + strings.ReplaceAll(p, ".", "/")
	default:
		p = "/" + p
	}
	segs := asPointerSegments(p)
	if len(segs) == 0 {
		return ""
	}
	return jsonpointer.Format(segs...)
}

// DottedToSchemaPointer converts a dotted path ("a.b.c") into schema-pointer
// form ("#/a/properties/b/properties/c"). An input that already starts with
// "#" or "/" is returned unchanged. Any literal "properties" segment present
// in a dotted input is elided, matching the Rust original's
// dot_notation_to_schema_pointer.
func DottedToSchemaPointer(path string) string {
	if path == "" {
		return "#"
	}
	if strings.HasPrefix(path, "#") || strings.HasPrefix(path, "/") {
		return path
	}
	var segments []string
	for _, s := range strings.Split(path, ".") {
		if s == "properties" {
			continue
		}
		segments = append(segments, s)
	}
	if len(segments) == 0 {
		return "#"
	}
	expanded := make([]string, 0, len(segments)*2-1)
	expanded = append(expanded, segments[0])
	for _, s := range segments[1:] {
		expanded = append(expanded, "properties", s)
	}
	return "#" + jsonpointer.Format(expanded...)
}

// PointerToDotted converts a schema or data pointer ("#/a/properties/b" or
// "/a/b") into dotted form ("a.b"). It does NOT strip "properties" segments
// — callers addressing data (not schema) must ensure the pointer they pass
// in is already a data pointer (see dataPath).
func PointerToDotted(ptr string) string {
	p := strings.TrimPrefix(ptr, "#")
	p = strings.TrimPrefix(p, "/")
	segs := asPointerSegments(p)
	return strings.Join(segs, ".")
}

// dataPath converts a schema pointer into a data pointer by eliding
// "properties" segments, then returns its dotted form. This is the bridge
// used whenever an evaluation key (schema pointer) must address the
// evaluation-data document (which has no "properties" indirection).
func dataPath(schemaPointer string) string {
	p := strings.TrimPrefix(schemaPointer, "#")
	p = strings.TrimPrefix(p, "/")
	var out []string
	for _, s := range asPointerSegments(p) {
		if s == "properties" {
			continue
		}
		out = append(out, s)
	}
	return strings.Join(out, ".")
}

// ephemeralScopeNames are the "$"-prefixed names bound transiently by the
// engine rather than addressing the data document (spec.md §3 "Dependency
// Set", §6 "Reserved scope variables").
var ephemeralScopeNames = map[string]bool{
	"$iteration":    true,
	"$threshold":    true,
	"$loopIteration": true,
	"$value":        true,
	"$refValue":     true,
}

// isScopeVariable reports whether name is an ephemeral "$"-prefixed scope
// variable with no path structure (e.g. "$iteration", "$a", a table
// column-local reference), as opposed to a rooted dependency path such as
// "$params.a" or "$context.user". "$params" and "$context" bare roots are
// themselves treated as real dependency paths, not scope variables.
func isScopeVariable(name string) bool {
	if len(name) < 2 || name[0] != '$' {
		return false
	}
	if name == "$params" || name == "$context" {
		return false
	}
	if ephemeralScopeNames[name] {
		return true
	}
	// A bare "$<name>" with no further path structure is a table
	// column-local scope reference (e.g. "$a" inside a $table row).
	return !strings.ContainsAny(name[1:], "./")
}
