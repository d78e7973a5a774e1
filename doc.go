// Package reactiveschema implements a schema-driven reactive evaluation
// engine: given a declarative schema document whose nodes embed a compact
// JsonLogic-like expression DSL, plus an input data document and an optional
// context document, it produces an "evaluated schema" in which every
// embedded expression has been replaced by its computed value. It also
// validates data against per-field rules, reactively re-evaluates fields
// transitively affected by a change, and resolves templated URL fields.
package reactiveschema
