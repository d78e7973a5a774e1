package reactiveschema

import "sync"

// Engine is the mutex-guarded, per-instance evaluator construct described in
// spec.md §5 ("process-local exclusion lock per evaluator instance") and
// §6 (new/reload_schema/set_timezone_offset). Grounded on the teacher's
// Compiler struct (a single RWMutex-guarded cache of parsed artefacts behind
// a functional-options constructor) but rebuilt around one schema generation
// at a time rather than a URI-keyed registry, since this dialect has no
// cross-document $ref resolution.
type Engine struct {
	mu sync.Mutex

	schema *Schema
	expr   *Evaluator
	cache  *ResultCache
	data   *EvalData

	tzOffsetMinutes *int
	maxDepth        int
	safeNaN         bool

	lastSchemaBytes []byte

	resolvedFieldRules FieldRules
	resolvedTemplates  map[string]string
}

// EngineOption configures an Engine at construction, mirroring the teacher's
// WithEncoderJSON/WithDecoderJSON functional-options idiom.
type EngineOption func(*Engine)

// WithEngineMaxDepth overrides the expression evaluator's recursion bound.
func WithEngineMaxDepth(depth int) EngineOption {
	return func(e *Engine) { e.maxDepth = depth }
}

// WithEngineSafeNaN controls the `pow` 0-vs-Null fallback (spec.md §4.B).
func WithEngineSafeNaN(safe bool) EngineOption {
	return func(e *Engine) { e.safeNaN = safe }
}

// NewEngine parses schemaBytes and builds an Engine seeded with context and
// data (spec.md §6 `new`).
func NewEngine(schemaBytes []byte, context, data map[string]any, opts ...EngineOption) (*Engine, error) {
	e := &Engine{maxDepth: 1000}
	for _, opt := range opts {
		opt(e)
	}
	if err := e.ReloadSchema(schemaBytes, context, data); err != nil {
		return nil, err
	}
	return e, nil
}

// ReloadSchema reparses schemaBytes, replacing the schema, a fresh cache, and
// a fresh evaluation document in one locked step (spec.md §6
// `reload_schema`: "clears cache").
func (e *Engine) ReloadSchema(schemaBytes []byte, context, data map[string]any) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	parsed, err := ParseSchema(schemaBytes)
	if err != nil {
		return err
	}

	e.schema = parsed
	e.lastSchemaBytes = schemaBytes
	e.expr = NewEvaluator(
		WithMaxDepth(e.maxDepth),
		WithTimezoneOffset(e.tzOffsetMinutes),
		WithSafeNaN(e.safeNaN),
	)
	e.cache = NewResultCache()
	e.resolvedFieldRules = nil
	e.resolvedTemplates = map[string]string{}

	params, _ := e.schema.Raw["$params"].(map[string]any)
	e.data = NewEvalData(params, data, context)
	return nil
}

// SetTimezoneOffset recompiles the expression evaluator with a new offset
// and reparses the schema, clearing the cache (spec.md §6
// `set_timezone_offset`: "recompiles engine + reparses + clears cache").
func (e *Engine) SetTimezoneOffset(minutes *int) error {
	e.mu.Lock()
	schemaBytes := e.lastSchemaBytes
	var existingData map[string]any
	var existingContext map[string]any
	if e.data != nil {
		doc := e.data.Document()
		existingData = make(map[string]any, len(doc))
		for k, v := range doc {
			if k == "$params" || k == "$context" {
				continue
			}
			existingData[k] = v
		}
		if c, ok := doc["$context"].(map[string]any); ok {
			existingContext = c
		}
	}
	e.mu.Unlock()

	e.tzOffsetMinutes = minutes
	return e.ReloadSchema(schemaBytes, existingContext, existingData)
}

// Schema returns the engine's current parsed schema (read-only; callers must
// not mutate it, per spec.md §5 "immutable after schema parse").
func (e *Engine) Schema() *Schema {
	return e.schema
}
