// Package signal implements the declarative entry/exit expression engine:
// a small boolean grammar over OHLCV columns and indicator columns,
// compiled to a vectorized evaluator rather than interpreted through a
// host-language eval (spec.md §9's non-negotiable design note).
package signal

// NodeKind tags the variant of an expression-tree node.
type NodeKind int

const (
	NodeIdent NodeKind = iota
	NodeNumber
	NodeCompare
	NodeAnd
	NodeOr
	NodeNot
	NodeHelper
)

// CompareOp enumerates the relational operators the grammar accepts.
type CompareOp string

const (
	OpLT CompareOp = "<"
	OpLE CompareOp = "<="
	OpGT CompareOp = ">"
	OpGE CompareOp = ">="
	OpEQ CompareOp = "=="
	OpNE CompareOp = "!="
)

// HelperKind enumerates the recognized helper predicates.
type HelperKind string

const (
	HelperCrossover  HelperKind = "crossover"
	HelperCrossunder HelperKind = "crossunder"
	HelperAbove      HelperKind = "above"
	HelperBelow      HelperKind = "below"
)

// Node is one element-tree node. Only the fields relevant to Kind are
// populated; the rest are zero.
type Node struct {
	Kind NodeKind

	// NodeIdent
	Ident string
	// NodeNumber
	Number float64
	// NodeCompare
	Op          CompareOp
	Left, Right *Node
	// NodeAnd / NodeOr: Children holds operands (flattened chain).
	Children []*Node
	// NodeNot
	Operand *Node
	// NodeHelper
	Helper HelperKind
	Args   []*Node
}
