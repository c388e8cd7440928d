package signal

import (
	"fmt"
	"math"
)

// Resolver looks up a named column (an OHLCV field or a bound indicator
// column) as an aligned float64 series. ok is false for unknown names.
type Resolver func(name string) ([]float64, bool)

// Mask is the boolean result of evaluating an expression tree: one value per
// bar, aligned to the input series length.
type Mask []bool

// Validate walks the tree checking every identifier and helper name resolves
// before any evaluation runs (spec.md §4.3's preflight requirement — silent
// coercion to false on an unbound reference is forbidden).
func Validate(node *Node, resolve Resolver) error {
	switch node.Kind {
	case NodeIdent:
		if _, ok := resolve(node.Ident); !ok {
			return fmt.Errorf("%w: %q", ErrUnboundIdentifier, node.Ident)
		}
	case NodeNumber:
	case NodeCompare:
		if err := Validate(node.Left, resolve); err != nil {
			return err
		}
		return Validate(node.Right, resolve)
	case NodeAnd, NodeOr:
		for _, c := range node.Children {
			if err := Validate(c, resolve); err != nil {
				return err
			}
		}
	case NodeNot:
		return Validate(node.Operand, resolve)
	case NodeHelper:
		for _, a := range node.Args {
			if err := Validate(a, resolve); err != nil {
				return err
			}
		}
	}
	return nil
}

// Eval evaluates a boolean expression tree over n bars, vectorizing AND/OR/
// NOT as element-wise operations rather than scalar short-circuit (spec.md
// §4.3: short-circuit evaluation is forbidden, it silently breaks precedence
// on mixed series/scalar expressions).
func Eval(node *Node, n int, resolve Resolver) (Mask, error) {
	switch node.Kind {
	case NodeAnd:
		return evalConnective(node.Children, n, resolve, func(a, b bool) bool { return a && b })
	case NodeOr:
		return evalConnective(node.Children, n, resolve, func(a, b bool) bool { return a || b })
	case NodeNot:
		operand, err := Eval(node.Operand, n, resolve)
		if err != nil {
			return nil, err
		}
		out := make(Mask, n)
		for i, v := range operand {
			out[i] = !v
		}
		return out, nil
	case NodeCompare:
		return evalCompare(node, n, resolve)
	case NodeHelper:
		return evalHelper(node, n, resolve)
	default:
		return nil, fmt.Errorf("%w: %v is not a boolean expression", ErrTypeMismatch, node.Kind)
	}
}

func evalConnective(children []*Node, n int, resolve Resolver, op func(a, b bool) bool) (Mask, error) {
	out := make(Mask, n)
	for i, child := range children {
		m, err := Eval(child, n, resolve)
		if err != nil {
			return nil, err
		}
		if i == 0 {
			copy(out, m)
			continue
		}
		for j := range out {
			out[j] = op(out[j], m[j])
		}
	}
	return out, nil
}

func evalCompare(node *Node, n int, resolve Resolver) (Mask, error) {
	left, err := evalNumeric(node.Left, n, resolve)
	if err != nil {
		return nil, err
	}
	right, err := evalNumeric(node.Right, n, resolve)
	if err != nil {
		return nil, err
	}

	out := make(Mask, n)
	for i := range out {
		if math.IsNaN(left[i]) || math.IsNaN(right[i]) {
			out[i] = false
			continue
		}
		out[i] = compareOp(node.Op, left[i], right[i])
	}
	return out, nil
}

func compareOp(op CompareOp, a, b float64) bool {
	switch op {
	case OpLT:
		return a < b
	case OpLE:
		return a <= b
	case OpGT:
		return a > b
	case OpGE:
		return a >= b
	case OpEQ:
		return a == b
	case OpNE:
		return a != b
	default:
		return false
	}
}

// evalNumeric evaluates an atom (identifier or literal) to an aligned
// series. Connectives, comparisons, and helpers are boolean-only and cannot
// appear where a numeric value is expected.
func evalNumeric(node *Node, n int, resolve Resolver) ([]float64, error) {
	switch node.Kind {
	case NodeIdent:
		series, ok := resolve(node.Ident)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnboundIdentifier, node.Ident)
		}
		if len(series) != n {
			return nil, fmt.Errorf("%w: column %q has length %d, expected %d", ErrTypeMismatch, node.Ident, len(series), n)
		}
		return series, nil
	case NodeNumber:
		out := make([]float64, n)
		for i := range out {
			out[i] = node.Number
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: expected a column or numeric literal", ErrTypeMismatch)
	}
}

func evalHelper(node *Node, n int, resolve Resolver) (Mask, error) {
	switch node.Helper {
	case HelperCrossover:
		return evalCrossover(node, n, resolve, false)
	case HelperCrossunder:
		return evalCrossover(node, n, resolve, true)
	case HelperAbove:
		return evalThreshold(node, n, resolve, false)
	case HelperBelow:
		return evalThreshold(node, n, resolve, true)
	default:
		return nil, fmt.Errorf("%w: unrecognized helper %q", ErrSyntax, node.Helper)
	}
}

// evalCrossover implements crossover(a,b) / crossunder(a,b):
// crossover is true at bar t iff a[t-1] <= b[t-1] and a[t] > b[t];
// crossunder is the symmetric strict-decrease case.
func evalCrossover(node *Node, n int, resolve Resolver, under bool) (Mask, error) {
	a, err := evalNumeric(node.Args[0], n, resolve)
	if err != nil {
		return nil, err
	}
	b, err := evalNumeric(node.Args[1], n, resolve)
	if err != nil {
		return nil, err
	}

	out := make(Mask, n)
	for i := 1; i < n; i++ {
		if math.IsNaN(a[i-1]) || math.IsNaN(b[i-1]) || math.IsNaN(a[i]) || math.IsNaN(b[i]) {
			continue
		}
		if under {
			out[i] = a[i-1] >= b[i-1] && a[i] < b[i]
		} else {
			out[i] = a[i-1] <= b[i-1] && a[i] > b[i]
		}
	}
	return out, nil
}

// evalThreshold implements above(a,b,n) / below(a,b,n): true iff the
// relation held for every one of the trailing n bars (inclusive of the
// current bar).
func evalThreshold(node *Node, n int, resolve Resolver, below bool) (Mask, error) {
	a, err := evalNumeric(node.Args[0], n, resolve)
	if err != nil {
		return nil, err
	}
	b, err := evalNumeric(node.Args[1], n, resolve)
	if err != nil {
		return nil, err
	}
	if node.Args[2].Kind != NodeNumber {
		return nil, fmt.Errorf("%w: above/below's third argument must be a numeric literal window size", ErrSyntax)
	}
	window := int(node.Args[2].Number)
	if window < 1 {
		return nil, fmt.Errorf("%w: above/below window must be >= 1", ErrSyntax)
	}

	out := make(Mask, n)
	for i := window - 1; i < n; i++ {
		held := true
		for j := i - window + 1; j <= i; j++ {
			if math.IsNaN(a[j]) || math.IsNaN(b[j]) {
				held = false
				break
			}
			rel := a[j] > b[j]
			if below {
				rel = a[j] < b[j]
			}
			if !rel {
				held = false
				break
			}
		}
		out[i] = held
	}
	return out, nil
}
