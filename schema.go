package reactiveschema

// Schema holds one parsed generation of schema artefacts (spec.md §3
// "Lifecycles": built once per reload, shared immutably for the lifetime of
// the evaluator instance). Grounded on the teacher's Schema struct shape
// (a tree walked once at compile time, cross-referenced by pointer/URI) but
// rebuilt around this dialect's evaluation/table/dependents/rules model
// instead of JSON-Schema 2020-12 keywords.
type Schema struct {
	// Raw is the decoded schema document, numbers preserved as json.Number.
	Raw map[string]any

	// Evaluations maps an evaluation key (a "#"-prefixed schema pointer) to
	// its compiled expression.
	Evaluations map[string]*Node

	// Dependencies maps an evaluation key (or table path) to the canonical
	// data paths it reads (spec.md §3 "Dependency Set").
	Dependencies map[string][]string

	// Tables maps a table path to its parse-time metadata.
	Tables map[string]*TableMetadata

	// LayoutPaths lists every "<path>/$layout/elements" pointer, sorted by
	// depth descending (spec.md §4.C step 3 and post-walk sort).
	LayoutPaths []string

	// FieldRules maps a dotted field path to its rule-name -> Rule map,
	// collected from every node with a "rules" key (spec.md §4.C step 4).
	FieldRules FieldRules

	// Templates lists every "url" field containing "{...}" placeholders
	// (spec.md §4.C step 5).
	Templates []URLTemplate

	// ConditionalHidden, ConditionalReadonly, and ConditionalDisabled hold
	// every path whose node carries a "condition.hidden" /
	// "condition.disabled"+"value" / "condition.disabled" condition
	// respectively (spec.md §4.C step 7), keyed by dotted field path, valued
	// by the compiled condition (a bare literal true/false compiles to a
	// constant KindBool node). ConditionalReadonly is the
	// narrower "disabled and carries a literal value" pair the dependents
	// readonly pass forces back onto the document; ConditionalDisabled holds
	// every condition.disabled regardless of whether a value is present, and
	// is what validation consults to skip a disabled field (spec.md §4.H).
	ConditionalHidden   map[string]*Node
	ConditionalReadonly map[string]*Node
	ConditionalDisabled map[string]*Node

	// Dependents maps a dotted data path to the list of items that react
	// to a change at that path (spec.md §3 "Dependent Item").
	Dependents map[string][]*DependentItem

	// ReffedBy maps a canonical data path P (e.g. "/kind") to every dotted
	// field path whose condition.hidden references P (spec.md §4.G
	// "reffed_by graph").
	ReffedBy map[string][]string

	// ValueEvaluations lists the schema pointer of every node outside the
	// special-segment paths that carries both a "value" and an
	// "$evaluation" (spec.md §4.C step 9). Nodes with only a literal "value"
	// are not listed, and the list is not filtered by dependencies.
	ValueEvaluations []string

	// Batches is the dependency graph's level-batched topological order,
	// table paths substituted for their member evaluation keys
	// (spec.md §4.D "Level batching").
	Batches [][]string

	// NonBatched lists every evaluation key excluded from the DAG (rules,
	// options, condition, $layout, config, items — spec.md §4.D "Node
	// set"). Evaluate does not run these keys; the dependents/<i>/clear|value
	// logic among them is evaluated by the dependents pass.
	NonBatched []string

	// nextSyntheticKey is not read or written by the parser; synthetic
	// dependents/<i>/clear|value keys use the item's array index.
	nextSyntheticKey int
}

// URLTemplate is a registered "url" field containing "{param}" placeholders
// (spec.md §4.C step 5, §4.F step 6).
type URLTemplate struct {
	URLPointer    string // schema pointer to the field holding the template string
	Template      string // the raw template, e.g. "api/users/{id}"
	ParamsPointer string // schema pointer to the sibling "params" object
}

// DependentItem is one entry of a node's "dependents" array
// (spec.md §3 "Dependent Item").
type DependentItem struct {
	RefPath string // dotted data path this item mutates when its owner changes

	// ClearLogic/ClearLiteral: at most one is set. ClearLogic is set when
	// "clear" was an $evaluation-shaped wrapper; ClearLiteral otherwise
	// (including the common case of a bare `true`).
	ClearLogic   *Node
	ClearLiteral any
	HasClear     bool

	ValueLogic   *Node
	ValueLiteral any
	HasValue     bool
}

// TableMetadata is the parse-time description of one "$table" node
// (spec.md §3 "Table Metadata", §4.E).
type TableMetadata struct {
	Path string // the table's own schema pointer

	Datas []DataPlanEntry

	SkipLogic   *Node
	SkipLiteral any

	ClearLogic   *Node
	ClearLiteral any

	RowPlans []RowPlan
}

// DataPlanEntry is one "$datas" entry: a named value computed once per
// table materialisation and bound into row-evaluation scope.
type DataPlanEntry struct {
	Name    string
	Logic   *Node
	Literal any
}

// RowPlan is either a StaticRow or a RepeatRow.
type RowPlan interface {
	isRowPlan()
}

// StaticRow evaluates its columns once, in schema order.
type StaticRow struct {
	Columns []ColumnPlan
}

func (StaticRow) isRowPlan() {}

// RepeatRow evaluates its column template once per iteration between
// [Start, End] inclusive (spec.md §4.E "Repeat row").
type RepeatRow struct {
	StartLogic, EndLogic     *Node
	StartLiteral, EndLiteral any

	Columns []ColumnPlan

	// ForwardSet/NormalSet hold column names, precomputed at parse time
	// via the column dependency graph's transitive closure from every
	// has_forward_reference column (spec.md §3 "Table Metadata", §4.E
	// "Forward-column expansion").
	ForwardSet map[string]bool
	NormalSet  map[string]bool
}

func (RepeatRow) isRowPlan() {}

// ColumnPlan is one table column (spec.md §3 "Table Metadata").
type ColumnPlan struct {
	Name    string
	Logic   *Node
	Literal any
	HasLogic bool

	// Vars is the set of scope variables the compiled expression reads
	// (used to build the forward/normal-set transitive closure).
	Vars []string

	HasForwardReference bool
}

// ScopeVar is the column's "$"-prefixed scope binding name.
func (c ColumnPlan) ScopeVar() string {
	return "$" + c.Name
}
