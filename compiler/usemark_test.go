package compiler_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillfield/implicore/assembly"
	"github.com/quillfield/implicore/compiler"
	"github.com/quillfield/implicore/graph"
	"github.com/quillfield/implicore/internal/idset"
	"github.com/quillfield/implicore/value"
)

func outID(n *graph.Node, name string) idset.ID {
	id, _ := n.OutputID(name)
	return id
}

// buildScale builds a callee function with two End outputs, only one
// of which the caller will end up consuming.
func buildScale(id uint64) *graph.Function {
	f := graph.NewFunction(id, "Scale")
	f.AddArgument("X", value.Scalar)
	f.AddOutput("Doubled", value.Scalar, graph.ScalarLiteral(0))
	f.AddOutput("Tripled", value.Scalar, graph.ScalarLiteral(0))

	begin := f.Node(f.Begin())
	xOut, _ := begin.OutputID("X")

	two := f.CreateNode(graph.KindConstantScalar)
	twoVal, _ := two.ParamID("Value")
	f.Parameter(twoVal).Value = graph.ScalarLiteral(2)
	mulTwo := f.CreateNode(graph.KindMul)
	a, _ := mulTwo.ParamID("A")
	b, _ := mulTwo.ParamID("B")
	f.Link(xOut, a, false)
	f.Link(outID(two, "Result"), b, false)

	three := f.CreateNode(graph.KindConstantScalar)
	threeVal, _ := three.ParamID("Value")
	f.Parameter(threeVal).Value = graph.ScalarLiteral(3)
	mulThree := f.CreateNode(graph.KindMul)
	a2, _ := mulThree.ParamID("A")
	b2, _ := mulThree.ParamID("B")
	f.Link(xOut, a2, false)
	f.Link(outID(three, "Result"), b2, false)

	end := f.Node(f.End())
	doubledParam, _ := end.ParamID("Doubled")
	tripledParam, _ := end.ParamID("Tripled")
	f.Link(outID(mulTwo, "Result"), doubledParam, false)
	f.Link(outID(mulThree, "Result"), tripledParam, false)

	f.Infer()
	return f
}

func TestMarkUsesPropagatesIntoCallee(t *testing.T) {
	asm := assembly.New()
	callee := buildScale(10)
	asm.InsertFunction(callee)

	caller := graph.NewFunction(1, "Caller")
	asm.InsertFunction(caller)
	call := caller.CreateNode(graph.KindFunctionCall)
	funcIDParam, err := caller.AddNodeParam(call.ID, graph.ParamSpec{Name: "FunctionId", Type: value.ResourceId, Modifiable: true})
	require.NoError(t, err)
	caller.Parameter(funcIDParam).Value = graph.ResourceLiteral(10)

	linker := assembly.NewLinker(asm, nil)
	linker.PropagateCallIO()

	caller.AddOutput("Final", value.Scalar, graph.ScalarLiteral(0))
	end := caller.Node(caller.End())
	finalParam, _ := end.ParamID("Final")
	doubledOut, ok := call.OutputID("Doubled")
	require.True(t, ok)
	require.NoError(t, caller.Link(doubledOut, finalParam, false))

	compiler.MarkUses(asm)

	calleeEnd := callee.Node(callee.End())
	doubledP, _ := calleeEnd.ParamID("Doubled")
	tripledP, _ := calleeEnd.ParamID("Tripled")
	assert.True(t, callee.Parameter(doubledP).ConsumedByFunction)
	assert.False(t, callee.Parameter(tripledP).ConsumedByFunction)
}
