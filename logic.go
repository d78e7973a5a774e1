package reactiveschema

// LogicID is a small integer handle returned by the engine for a compiled
// expression. Identity-equal LogicIDs reuse the same compiled tree
// (spec.md §3 "Logic Id").
type LogicID int

// Kind tags the shape of a compiled expression node.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber // Num holds the decimal text form, preserved for precision.
	KindString
	KindArray // Items holds the element nodes.

	KindVar // Name holds the canonical path; Default is optional.
	KindRef // Name holds the canonical path; Default is optional.

	KindAnd
	KindOr
	KindNot
	KindIf
	KindXor

	KindEqual
	KindStrictEqual
	KindNotEqual
	KindStrictNotEqual
	KindLessThan
	KindLessThanOrEqual
	KindGreaterThan
	KindGreaterThanOrEqual

	KindAdd
	KindSubtract
	KindMultiply
	KindDivide
	KindModulo
	KindPower

	KindMap
	KindFilter
	KindReduce
	KindAll
	KindSome
	KindNone
	KindMerge
	KindIn

	KindCat
	KindSubstr
	KindSearch
	KindLeft
	KindRight
	KindMid
	KindLen
	KindSplitText
	KindConcat
	KindSplitValue
	KindLength

	KindMissing
	KindMissingSome

	KindAbs
	KindMax
	KindMin
	KindRound
	KindRoundUp
	KindRoundDown

	KindIfNull
	KindIsEmpty
	KindEmpty

	KindToday
	KindNow
	KindDays
	KindYear
	KindMonth
	KindDay
	KindDate
	KindYearFrac
	KindDateDif

	KindSum
	KindFor
	KindValueAt
	KindMaxAt
	KindIndexAt
	KindMatch
	KindMatchRange
	KindChoose
	KindFindIndex
	KindMultiplies
	KindDivides

	KindRangeOptions
	KindMapOptions
	KindMapOptionsIf

	KindReturn
)

// Node is a tagged tree representing a compiled expression (spec.md §3
// "Compiled Expression (IR)"). A single struct (rather than a Go interface
// per node kind) keeps the tree cheap to build and walk; Kind determines
// which fields are meaningful for any given node, mirroring how the
// original Rust CompiledLogic enum packs distinct payload shapes.
type Node struct {
	Kind Kind

	Bool bool
	Num  string // decimal text, for KindNumber
	Str  string // literal string, for KindString; also op-name scratch

	Name    string // canonical path for KindVar/KindRef
	Default *Node  // optional default for KindVar/KindRef

	Items []*Node // KindArray, and flattened children of And/Or/Add/Multiply/Cat/Merge/Min/Max/In(rhs)

	A, B, C, D *Node // generic operand slots; Compile leaves them nil, operands live in Items

	Cond []*Node // condition list for Match/MatchRange/FindIndex/MapOptionsIf

	Raw any // verbatim literal payload for KindReturn

	forwardRef    bool // memoised has_forward_reference result
	forwardRefSet bool

	vars    []string // memoised referenced-variable set
	varsSet bool
}

// HasForwardReference reports whether this expression contains a VALUEAT
// node whose row-index argument is, directly or
// transitively, an Add of $iteration and a positive numeric literal
// (spec.md §4.B "Forward-reference detection").
func (n *Node) HasForwardReference() bool {
	if n == nil {
		return false
	}
	if n.forwardRefSet {
		return n.forwardRef
	}
	n.forwardRef = hasForwardReference(n)
	n.forwardRefSet = true
	return n.forwardRef
}

// ReferencedVars returns the set of canonical path strings appearing in this
// expression's Var/Ref leaves (spec.md §4.B "Referenced variables").
func (n *Node) ReferencedVars() []string {
	if n == nil {
		return nil
	}
	if n.varsSet {
		return n.vars
	}
	seen := map[string]bool{}
	var out []string
	collectVars(n, seen, &out)
	n.vars = out
	n.varsSet = true
	return out
}
