package graph_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillfield/implicore/graph"
	"github.com/quillfield/implicore/value"
)

func TestNewFunctionHasBeginAndEnd(t *testing.T) {
	f := graph.NewFunction(1, "F")
	begin := f.Node(f.Begin())
	end := f.Node(f.End())
	require.NotNil(t, begin)
	require.NotNil(t, end)
	assert.Equal(t, graph.KindBegin, begin.Kind)
	assert.Equal(t, graph.KindEnd, end.Kind)
}

func TestCreateNodeRegistersSignature(t *testing.T) {
	f := graph.NewFunction(1, "F")
	add := f.CreateNode(graph.KindAdd)
	aID, ok := add.ParamID("A")
	require.True(t, ok)
	bID, ok := add.ParamID("B")
	require.True(t, ok)
	resID, ok := add.OutputID("Result")
	require.True(t, ok)
	assert.NotEqual(t, aID, bID)
	assert.NotNil(t, f.Parameter(aID))
	assert.NotNil(t, f.Port(resID))
}

func TestCreateNodeUniqueNaming(t *testing.T) {
	f := graph.NewFunction(1, "F")
	n1 := f.CreateNode(graph.KindAdd)
	n2 := f.CreateNode(graph.KindAdd)
	assert.NotEqual(t, n1.UniqueName, n2.UniqueName)
}

func TestLinkAndUnlink(t *testing.T) {
	f := graph.NewFunction(1, "F")
	cs := f.CreateNode(graph.KindConstantScalar)
	add := f.CreateNode(graph.KindAdd)
	out, _ := cs.OutputID("Result")
	in, _ := add.ParamID("A")

	require.NoError(t, f.Link(out, in, false))
	p := f.Parameter(in)
	require.NotNil(t, p.Source)
	assert.Equal(t, out, p.Source.Port)

	require.NoError(t, f.Unlink(in))
	assert.Nil(t, f.Parameter(in).Source)
}

func TestLinkUnknownIDs(t *testing.T) {
	f := graph.NewFunction(1, "F")
	err := f.Link(999, 998, true)
	assert.ErrorIs(t, err, graph.ErrUnknownPort)
}

func TestLinkRejectsCycle(t *testing.T) {
	f := graph.NewFunction(1, "F")
	a := f.CreateNode(graph.KindAdd)
	b := f.CreateNode(graph.KindAdd)
	aOut, _ := a.OutputID("Result")
	bOut, _ := b.OutputID("Result")
	aIn, _ := a.ParamID("A")
	bIn, _ := b.ParamID("A")

	// b.A <- a.Result is fine.
	require.NoError(t, f.Link(aOut, bIn, false))
	// a.A <- b.Result would close a cycle a -> b -> a.
	err := f.Link(bOut, aIn, false)
	assert.ErrorIs(t, err, graph.ErrWouldCycle)
}

func TestRemoveNodeUnbindsConsumers(t *testing.T) {
	f := graph.NewFunction(1, "F")
	cs := f.CreateNode(graph.KindConstantScalar)
	add := f.CreateNode(graph.KindAdd)
	out, _ := cs.OutputID("Result")
	in, _ := add.ParamID("A")
	require.NoError(t, f.Link(out, in, false))

	require.NoError(t, f.RemoveNode(cs.ID))
	assert.Nil(t, f.Node(cs.ID))
	assert.Nil(t, f.Parameter(in).Source, "removing a node must clear every parameter that sourced one of its ports")
}

func TestRemoveBeginOrEndFails(t *testing.T) {
	f := graph.NewFunction(1, "F")
	assert.ErrorIs(t, f.RemoveNode(f.Begin()), graph.ErrStructuralNode)
	assert.ErrorIs(t, f.RemoveNode(f.End()), graph.ErrStructuralNode)
}

func TestRebuildTopologicalOrderTieBreak(t *testing.T) {
	f := graph.NewFunction(1, "F")
	// Three independent constants feeding nothing: with no
	// dependencies, order must still be ascending by id.
	var ids []int
	for i := 0; i < 3; i++ {
		n := f.CreateNode(graph.KindConstantScalar)
		ids = append(ids, int(n.ID))
	}
	require.NoError(t, f.Rebuild())
	order := f.Order()
	require.Len(t, order, 3+2) // + Begin + End
	for i := 1; i < len(order); i++ {
		assert.Less(t, int(order[i-1]), int(order[i]), "order must be ascending by id")
	}
}

func TestRebuildDetectsCycleAsInvalid(t *testing.T) {
	f := graph.NewFunction(1, "F")
	a := f.CreateNode(graph.KindAdd)
	b := f.CreateNode(graph.KindAdd)
	aOut, _ := a.OutputID("Result")
	bOut, _ := b.OutputID("Result")
	aIn, _ := a.ParamID("A")
	bIn, _ := b.ParamID("A")
	require.NoError(t, f.Link(aOut, bIn, true))
	require.NoError(t, f.Link(bOut, aIn, true)) // skip_check bypasses the cycle guard

	require.NoError(t, f.Rebuild())
	assert.False(t, f.Acyclic())
}

func TestSimplifyRemovesDeadNodes(t *testing.T) {
	f := graph.NewFunction(1, "F")
	f.AddOutput("Distance", value.Scalar, graph.ScalarLiteral(0))
	live := f.CreateNode(graph.KindConstantScalar)
	dead := f.CreateNode(graph.KindConstantScalar)

	end := f.Node(f.End())
	distParam, _ := end.ParamID("Distance")
	liveOut, _ := live.OutputID("Result")
	require.NoError(t, f.Link(liveOut, distParam, false))

	removed := f.Simplify()
	assert.Equal(t, 1, removed)
	assert.Nil(t, f.Node(dead.ID))
	assert.NotNil(t, f.Node(live.ID))
}

func TestSimplifyIsIdempotent(t *testing.T) {
	f := graph.NewFunction(1, "F")
	f.CreateNode(graph.KindConstantScalar)
	f.Simplify()
	second := f.Simplify()
	assert.Equal(t, 0, second)
}
