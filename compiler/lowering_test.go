package compiler_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillfield/implicore/assembly"
	"github.com/quillfield/implicore/compiler"
	"github.com/quillfield/implicore/graph"
	"github.com/quillfield/implicore/value"
)

// buildSphere builds F(Pos) = Length(Pos) - 1, a signed distance to
// the unit sphere (§8 scenario 2).
func buildSphere(id uint64) *graph.Function {
	f := graph.NewFunction(id, "Sphere")
	f.AddArgument("Pos", value.Vec3)
	f.AddOutput("Distance", value.Scalar, graph.ScalarLiteral(0))

	begin := f.Node(f.Begin())
	posOut, _ := begin.OutputID("Pos")

	length := f.CreateNode(graph.KindLength)
	a, _ := length.ParamID("A")
	require.NoError(nil, f.Link(posOut, a, false))

	one := f.CreateNode(graph.KindConstantScalar)
	oneVal, _ := one.ParamID("Value")
	f.Parameter(oneVal).Value = graph.ScalarLiteral(1)

	sub := f.CreateNode(graph.KindSub)
	sa, _ := sub.ParamID("A")
	sb, _ := sub.ParamID("B")
	lenOut, _ := length.OutputID("Result")
	oneOut, _ := one.OutputID("Result")
	f.Link(lenOut, sa, false)
	f.Link(oneOut, sb, false)

	end := f.Node(f.End())
	distParam, _ := end.ParamID("Distance")
	subOut, _ := sub.OutputID("Result")
	f.Link(subOut, distParam, false)

	f.Infer()
	return f
}

func buildGradientCaller(asm *assembly.Assembly, sphereID uint64) (*graph.Function, *graph.Node) {
	caller := graph.NewFunction(1, "Caller")
	asm.InsertFunction(caller)

	grad := caller.CreateNode(graph.KindFunctionGradient)
	fid, _ := grad.ParamID("FunctionId")
	caller.Parameter(fid).Value = graph.ResourceLiteral(sphereID)
	grad.ScalarOutput = "Distance"
	grad.VectorInput = "Pos"
	stepID, _ := grad.ParamID("StepSize")
	caller.Parameter(stepID).Value = graph.ScalarLiteral(0.01)

	linker := assembly.NewLinker(asm, nil)
	linker.MirrorNode(caller, grad)

	caller.AddArgument("Pos", value.Vec3)
	caller.AddOutput("Vector", value.Vec3, graph.Vec3Literal(value.V3{}))
	begin := caller.Node(caller.Begin())
	posOut, _ := begin.OutputID("Pos")
	posParam, _ := grad.ParamID("Pos")
	caller.Link(posOut, posParam, false)

	end := caller.Node(caller.End())
	vecParam, _ := end.ParamID("Vector")
	vecOut, _ := grad.OutputID("Vector")
	caller.Link(vecOut, vecParam, false)

	return caller, grad
}

func TestLowerFunctionGradientRemovesHighLevelNode(t *testing.T) {
	asm := assembly.New()
	sphere := buildSphere(10)
	asm.InsertFunction(sphere)
	caller, _ := buildGradientCaller(asm, 10)

	linker := assembly.NewLinker(asm, nil)
	failed := compiler.Lower(asm, linker)
	require.Equal(t, 0, failed)

	hasGradient := false
	caller.Nodes(func(n *graph.Node) {
		if n.Kind == graph.KindFunctionGradient {
			hasGradient = true
		}
	})
	assert.False(t, hasGradient)
}

func TestLowerFunctionGradientMemoizesHelper(t *testing.T) {
	asm := assembly.New()
	sphere := buildSphere(10)
	asm.InsertFunction(sphere)
	_, grad1 := buildGradientCaller(asm, 10)

	caller2 := graph.NewFunction(2, "Caller2")
	asm.InsertFunction(caller2)
	grad2 := caller2.CreateNode(graph.KindFunctionGradient)
	fid, _ := grad2.ParamID("FunctionId")
	caller2.Parameter(fid).Value = graph.ResourceLiteral(10)
	grad2.ScalarOutput = "Distance"
	grad2.VectorInput = "Pos"
	stepID, _ := grad2.ParamID("StepSize")
	caller2.Parameter(stepID).Value = graph.ScalarLiteral(0.01)
	linker := assembly.NewLinker(asm, nil)
	linker.MirrorNode(caller2, grad2)

	before := asm.Len()
	compiler.Lower(asm, linker)
	after := asm.Len()

	// Two gradient nodes over the same (callee, scalar, vector)
	// signature share one synthesized helper: sphere + caller +
	// caller2 + exactly one helper.
	assert.Equal(t, before+1, after)
	_ = grad1
}

func TestLowerNormalizeDistanceFieldProducesNoHighLevelNodes(t *testing.T) {
	asm := assembly.New()
	sphere := buildSphere(10)
	asm.InsertFunction(sphere)

	caller := graph.NewFunction(1, "Caller")
	asm.InsertFunction(caller)
	norm := caller.CreateNode(graph.KindNormalizeDistanceField)
	fid, _ := norm.ParamID("FunctionId")
	caller.Parameter(fid).Value = graph.ResourceLiteral(10)
	norm.ScalarOutput = "Distance"
	norm.VectorInput = "Pos"

	linker := assembly.NewLinker(asm, nil)
	linker.MirrorNode(caller, norm)

	caller.AddArgument("Pos", value.Vec3)
	caller.AddOutput("Result", value.Scalar, graph.ScalarLiteral(0))
	begin := caller.Node(caller.Begin())
	posOut, _ := begin.OutputID("Pos")
	posParam, _ := norm.ParamID("Pos")
	caller.Link(posOut, posParam, false)

	end := caller.Node(caller.End())
	resultParam, _ := end.ParamID("Result")
	resultOut, _ := norm.OutputID("Result")
	caller.Link(resultOut, resultParam, false)

	failed := compiler.Lower(asm, linker)
	require.Equal(t, 0, failed)

	hasHighLevel := false
	caller.Nodes(func(n *graph.Node) {
		if n.Kind.IsHighLevel() {
			hasHighLevel = true
		}
	})
	assert.False(t, hasHighLevel)

	asm.Functions(func(_ uint64, f *graph.Function) {
		f.Nodes(func(n *graph.Node) {
			assert.False(t, n.Kind == graph.KindFunctionGradient || n.Kind == graph.KindNormalizeDistanceField,
				"function %d still has high-level node %s", f.ResourceID, n.UniqueName)
		})
	})
	_ = math.Sqrt
}

func TestLowerReportsInfeasibleGradientAndLeavesNodeIntact(t *testing.T) {
	asm := assembly.New()
	sphere := buildSphere(10)
	asm.InsertFunction(sphere)
	caller, grad := buildGradientCaller(asm, 10)
	grad.ScalarOutput = "NoSuchOutput"

	linker := assembly.NewLinker(asm, nil)
	failed := compiler.Lower(asm, linker)
	assert.Equal(t, 1, failed)

	found := false
	caller.Nodes(func(n *graph.Node) {
		if n.ID == grad.ID {
			found = true
		}
	})
	assert.True(t, found)
}
