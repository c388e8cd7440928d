package signal

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mapResolver(columns map[string][]float64) Resolver {
	return func(name string) ([]float64, bool) {
		s, ok := columns[name]
		return s, ok
	}
}

func TestParse_PrecedenceNotAndOr(t *testing.T) {
	node, err := Parse("a > 1 OR b > 1 AND NOT c > 1")
	require.NoError(t, err)
	// Top level must be OR (lowest precedence), with a 2-ary AND on the right.
	require.Equal(t, NodeOr, node.Kind)
	require.Len(t, node.Children, 2)
	require.Equal(t, NodeAnd, node.Children[1].Kind)
	require.Equal(t, NodeNot, node.Children[1].Children[1].Kind)
}

func TestParse_Parentheses(t *testing.T) {
	node, err := Parse("(a > 1 OR b > 1) AND c > 1")
	require.NoError(t, err)
	require.Equal(t, NodeAnd, node.Kind)
	require.Equal(t, NodeOr, node.Children[0].Kind)
}

func TestParse_UnknownHelperIsUnboundIdentifier(t *testing.T) {
	_, err := Parse("wiggle(a, b)")
	assert.ErrorIs(t, err, ErrUnboundIdentifier)
}

func TestParse_HelperArityMismatch(t *testing.T) {
	_, err := Parse("crossover(a, b, c)")
	assert.ErrorIs(t, err, ErrSyntax)
}

func TestParse_BareEqualsIsRejected(t *testing.T) {
	_, err := Parse("close = 10")
	assert.ErrorIs(t, err, ErrSyntax)
}

func TestValidate_UnboundIdentifierFails(t *testing.T) {
	node, err := Parse("close > rsi14")
	require.NoError(t, err)
	resolve := mapResolver(map[string][]float64{"close": {1, 2, 3}})
	err = Validate(node, resolve)
	assert.ErrorIs(t, err, ErrUnboundIdentifier)
}

func TestEval_ComparisonWithNaNYieldsFalse(t *testing.T) {
	node, err := Parse("rsi > 70")
	require.NoError(t, err)
	resolve := mapResolver(map[string][]float64{"rsi": {math.NaN(), 80, 60}})
	mask, err := Eval(node, 3, resolve)
	require.NoError(t, err)
	assert.Equal(t, Mask{false, true, false}, mask)
}

func TestEval_AndOrVectorized(t *testing.T) {
	node, err := Parse("a > 1 AND b > 1")
	require.NoError(t, err)
	resolve := mapResolver(map[string][]float64{
		"a": {0, 2, 2},
		"b": {2, 0, 2},
	})
	mask, err := Eval(node, 3, resolve)
	require.NoError(t, err)
	assert.Equal(t, Mask{false, false, true}, mask)
}

func TestEval_NotBindsTighterThanAnd(t *testing.T) {
	// "NOT a > 1 AND b > 1" parses as "(NOT (a>1)) AND (b>1)" since NOT binds
	// tighter than AND but applies to the adjacent comparison only. The third
	// row tells the groupings apart: "NOT (a>1 AND b>1)" would be true there.
	node, err := Parse("NOT a > 1 AND b > 1")
	require.NoError(t, err)
	resolve := mapResolver(map[string][]float64{
		"a": {0, 2, 0},
		"b": {2, 2, 0},
	})
	mask, err := Eval(node, 3, resolve)
	require.NoError(t, err)
	assert.Equal(t, Mask{true, false, false}, mask)
}

func TestEval_Crossover(t *testing.T) {
	node, err := Parse("crossover(fast, slow)")
	require.NoError(t, err)
	resolve := mapResolver(map[string][]float64{
		"fast": {1, 2, 5, 4},
		"slow": {3, 3, 3, 3},
	})
	mask, err := Eval(node, 4, resolve)
	require.NoError(t, err)
	assert.Equal(t, Mask{false, false, true, false}, mask)
}

func TestEval_Crossunder(t *testing.T) {
	node, err := Parse("crossunder(fast, slow)")
	require.NoError(t, err)
	resolve := mapResolver(map[string][]float64{
		"fast": {5, 4, 2, 3},
		"slow": {3, 3, 3, 3},
	})
	mask, err := Eval(node, 4, resolve)
	require.NoError(t, err)
	assert.Equal(t, Mask{false, false, true, false}, mask)
}

func TestEval_Above(t *testing.T) {
	node, err := Parse("above(a, b, 3)")
	require.NoError(t, err)
	resolve := mapResolver(map[string][]float64{
		"a": {5, 6, 7, 2, 8},
		"b": {1, 1, 1, 1, 1},
	})
	mask, err := Eval(node, 5, resolve)
	require.NoError(t, err)
	// a > b holds at every bar here, so once the 3-bar window fills at index
	// 2, every subsequent bar also satisfies it.
	assert.Equal(t, Mask{false, false, true, true, true}, mask)
}

func TestEval_Below(t *testing.T) {
	node, err := Parse("below(a, b, 2)")
	require.NoError(t, err)
	resolve := mapResolver(map[string][]float64{
		"a": {5, 0, -1, 6},
		"b": {1, 1, 1, 1},
	})
	mask, err := Eval(node, 4, resolve)
	require.NoError(t, err)
	assert.Equal(t, Mask{false, false, true, false}, mask)
}

func TestCompile_RunProducesEntryAndExitMasks(t *testing.T) {
	columns := map[string][]float64{
		"close": {1, 2, 3, 4, 5},
		"ma":    {2, 2, 2, 2, 2},
	}
	resolve := mapResolver(columns)

	compiled, err := Compile("close > ma", "close < ma", resolve)
	require.NoError(t, err)

	entry, exit, err := compiled.Run(5, resolve)
	require.NoError(t, err)
	assert.Equal(t, Mask{false, false, true, true, true}, entry)
	assert.Equal(t, Mask{true, false, false, false, false}, exit)
}

func TestCompile_RejectsUnboundExitLogic(t *testing.T) {
	resolve := mapResolver(map[string][]float64{"close": {1, 2}})
	_, err := Compile("close > 1", "missing_column < 1", resolve)
	assert.ErrorIs(t, err, ErrUnboundIdentifier)
}
