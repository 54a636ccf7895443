package assembly_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillfield/implicore/assembly"
	"github.com/quillfield/implicore/graph"
	"github.com/quillfield/implicore/value"
)

func TestAddIfMissingCreatesOnce(t *testing.T) {
	a := assembly.New()
	f1 := a.AddIfMissing(1, "Scene")
	f2 := a.AddIfMissing(1, "Scene")
	assert.Same(t, f1, f2)
	assert.Equal(t, 1, a.Len())
}

func TestFindAndDeleteFunction(t *testing.T) {
	a := assembly.New()
	a.AddIfMissing(1, "F")
	_, ok := a.FindFunction(1)
	require.True(t, ok)
	a.DeleteFunction(1)
	_, ok = a.FindFunction(1)
	assert.False(t, ok)
}

func TestNextResourceIDAboveMax(t *testing.T) {
	a := assembly.New()
	a.AddIfMissing(5, "F")
	a.AddIfMissing(2, "G")
	id := a.NextResourceID()
	assert.Equal(t, uint64(6), id)
	assert.Equal(t, uint64(7), a.NextResourceID())
}

func TestFunctionsEnumeratesAscending(t *testing.T) {
	a := assembly.New()
	a.AddIfMissing(3, "C")
	a.AddIfMissing(1, "A")
	a.AddIfMissing(2, "B")
	var order []uint64
	a.Functions(func(id uint64, _ *graph.Function) { order = append(order, id) })
	assert.Equal(t, []uint64{1, 2, 3}, order)
}

func buildAddFunction(id uint64) *graph.Function {
	f := graph.NewFunction(id, "Add1")
	f.AddArgument("X", value.Scalar)
	f.AddOutput("Result", value.Scalar, graph.ScalarLiteral(0))

	add := f.CreateNode(graph.KindAdd)
	begin := f.Node(f.Begin())
	xOut, _ := begin.OutputID("X")
	a, _ := add.ParamID("A")
	b, _ := add.ParamID("B")
	f.Link(xOut, a, false)
	bParam := f.Parameter(b)
	bParam.Type = value.Scalar
	bParam.Value = graph.ScalarLiteral(1)

	end := f.Node(f.End())
	resParam, _ := end.ParamID("Result")
	addOut, _ := add.OutputID("Result")
	f.Link(addOut, resParam, false)
	f.Infer()
	return f
}

func TestPropagateCallIOMirrorsCallee(t *testing.T) {
	a := assembly.New()
	callee := buildAddFunction(10)
	a.InsertFunction(callee)

	caller := graph.NewFunction(1, "Caller")
	a.InsertFunction(caller)
	call := caller.CreateNode(graph.KindFunctionCall)
	funcIDParam, err := caller.AddNodeParam(call.ID, graph.ParamSpec{Name: "FunctionId", Type: value.ResourceId, Modifiable: true})
	require.NoError(t, err)
	p := caller.Parameter(funcIDParam)
	p.Value = graph.ResourceLiteral(10)

	linker := assembly.NewLinker(a, nil)
	linker.PropagateCallIO()

	_, ok := call.ParamID("X")
	assert.True(t, ok, "call node should gain a mirrored X parameter")
	_, ok = call.OutputID("Result")
	assert.True(t, ok, "call node should gain a mirrored Result output")
	assert.True(t, call.Valid)
}

func TestPropagateCallIOInvalidatesUnresolvedCall(t *testing.T) {
	a := assembly.New()
	caller := graph.NewFunction(1, "Caller")
	a.InsertFunction(caller)
	call := caller.CreateNode(graph.KindFunctionCall)

	linker := assembly.NewLinker(a, nil)
	linker.PropagateCallIO()

	assert.False(t, call.Valid)
}

func TestEqualDetectsIdenticalAndDifferentAssemblies(t *testing.T) {
	a := assembly.New()
	a.InsertFunction(buildAddFunction(1))
	b := assembly.New()
	b.InsertFunction(buildAddFunction(1))
	assert.True(t, assembly.Equal(a, b))

	c := assembly.New()
	f := buildAddFunction(1)
	f.CreateNode(graph.KindConstantScalar)
	c.InsertFunction(f)
	assert.False(t, assembly.Equal(a, c))
}

func TestResolveDuplicatesRewritesReferences(t *testing.T) {
	original := assembly.New()
	original.InsertFunction(buildAddFunction(1))

	merged := assembly.New()
	merged.InsertFunction(buildAddFunction(1))   // identical, same id
	merged.InsertFunction(buildAddFunction(200)) // identical function, different id: a duplicate

	referrer := graph.NewFunction(300, "Referrer")
	rid := referrer.CreateNode(graph.KindResourceId)
	rid.ResourceRef = 200
	merged.InsertFunction(referrer)

	removed := assembly.ResolveDuplicates(original, merged)
	assert.Equal(t, 1, removed)
	_, ok := merged.FindFunction(200)
	assert.False(t, ok)

	ref, _ := merged.FindFunction(300)
	node := ref.Node(rid.ID)
	assert.Equal(t, uint64(1), node.ResourceRef)
}
