package cmdstream_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillfield/implicore/assembly"
	"github.com/quillfield/implicore/backend/cmdstream"
	"github.com/quillfield/implicore/compiler"
	"github.com/quillfield/implicore/graph"
	"github.com/quillfield/implicore/value"
)

type recordingSink struct{ warnings []string }

func (s *recordingSink) Warningf(format string, args ...interface{}) {
	s.warnings = append(s.warnings, format)
}

// buildModel mirrors the kernel backend's fixture: Color is a constant
// vector, Distance is Length(Pos) - 1.
func buildModel(id uint64) *graph.Function {
	f := graph.NewFunction(id, "Model")
	f.AddArgument("Pos", value.Vec3)
	f.AddOutput("Color", value.Vec3, graph.Vec3Literal(value.V3{1, 1, 1}))
	f.AddOutput("Distance", value.Scalar, graph.ScalarLiteral(0))

	begin := f.Node(f.Begin())
	posOut, _ := begin.OutputID("Pos")

	length := f.CreateNode(graph.KindLength)
	a, _ := length.ParamID("A")
	f.Link(posOut, a, false)

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

	color := f.CreateNode(graph.KindConstantVector)
	cx, _ := color.ParamID("X")
	cy, _ := color.ParamID("Y")
	cz, _ := color.ParamID("Z")
	f.Parameter(cx).Value = graph.ScalarLiteral(1)
	f.Parameter(cy).Value = graph.ScalarLiteral(0)
	f.Parameter(cz).Value = graph.ScalarLiteral(0)

	end := f.Node(f.End())
	distParam, _ := end.ParamID("Distance")
	colorParam, _ := end.ParamID("Color")
	subOut, _ := sub.OutputID("Result")
	colorOut, _ := color.OutputID("Result")
	f.Link(subOut, distParam, false)
	f.Link(colorOut, colorParam, false)

	f.Infer()
	return f
}

func TestBuildAssemblyEmitsEndCommand(t *testing.T) {
	asm := assembly.New()
	model := buildModel(1)
	asm.InsertFunction(model)
	asm.SetAssemblyFunction(1)

	prog, err := cmdstream.Build(asm, nil)
	require.NoError(t, err)
	require.NotEmpty(t, prog.Commands)

	last := prog.Commands[len(prog.Commands)-1]
	assert.Equal(t, cmdstream.OpEnd, last.Op)
	assert.Len(t, last.Args, 2)

	assert.GreaterOrEqual(t, prog.Scratch, 4)
}

func TestBuildResolvesQueryPositionSeed(t *testing.T) {
	asm := assembly.New()
	model := buildModel(1)
	asm.InsertFunction(model)
	asm.SetAssemblyFunction(1)

	prog, err := cmdstream.Build(asm, nil)
	require.NoError(t, err)

	var length cmdstream.Command
	found := false
	for _, c := range prog.Commands {
		if c.Op == cmdstream.OpLength {
			length = c
			found = true
			break
		}
	}
	require.True(t, found, "expected a LENGTH command")
	require.Len(t, length.Args, 1)
	idx, isScratch := cmdstream.DecodeArg(length.Args[0])
	assert.True(t, isScratch)
	assert.Equal(t, 1, idx)
}

func TestBuildMissingAssemblyFunctionErrors(t *testing.T) {
	asm := assembly.New()
	_, err := cmdstream.Build(asm, nil)
	assert.Error(t, err)
}

func TestBuildInlinesFunctionCall(t *testing.T) {
	asm := assembly.New()
	callee := buildModel(2)
	asm.InsertFunction(callee)

	caller := graph.NewFunction(1, "Caller")
	caller.AddArgument("Pos", value.Vec3)
	caller.AddOutput("Color", value.Vec3, graph.Vec3Literal(value.V3{}))
	caller.AddOutput("Distance", value.Scalar, graph.ScalarLiteral(0))

	begin := caller.Node(caller.Begin())
	posOut, _ := begin.OutputID("Pos")

	call := caller.CreateNode(graph.KindFunctionCall)
	call.FunctionID = 2
	fidParam, err := caller.AddNodeParam(call.ID, graph.ParamSpec{Name: "FunctionId", Type: value.ResourceId, Modifiable: true})
	require.NoError(t, err)
	caller.Parameter(fidParam).Value = graph.ResourceLiteral(2)
	posParam, err := caller.AddNodeParam(call.ID, graph.ParamSpec{Name: "Pos", Type: value.Vec3})
	require.NoError(t, err)
	caller.Link(posOut, posParam, false)
	colorOutID, err := caller.AddNodeOutput(call.ID, graph.PortSpec{Name: "Color", Type: value.Vec3})
	require.NoError(t, err)
	distOutID, err := caller.AddNodeOutput(call.ID, graph.PortSpec{Name: "Distance", Type: value.Scalar})
	require.NoError(t, err)

	end := caller.Node(caller.End())
	cParam, _ := end.ParamID("Color")
	dParam, _ := end.ParamID("Distance")
	caller.Link(colorOutID, cParam, false)
	caller.Link(distOutID, dParam, false)

	caller.Infer()
	asm.InsertFunction(caller)
	asm.SetAssemblyFunction(1)

	// Build skips call nodes the linker has not validated and binds
	// only the callee outputs that use-marking flagged as consumed.
	assembly.NewLinker(asm, nil).PropagateCallIO()
	compiler.MarkUses(asm)

	prog, err := cmdstream.Build(asm, nil)
	require.NoError(t, err)

	hasSub := false
	for _, c := range prog.Commands {
		if c.Op == cmdstream.OpSubScalar {
			hasSub = true
		}
	}
	assert.True(t, hasSub, "expected the callee's SUB_SCALAR command to be inlined")
}

func TestBuildWarnsAndSkipsFunctionGradient(t *testing.T) {
	asm := assembly.New()
	model := buildModel(1)

	grad := model.CreateNode(graph.KindFunctionGradient)
	grad.FunctionID = 1
	fid, _ := grad.ParamID("FunctionId")
	model.Parameter(fid).Value = graph.ResourceLiteral(1)
	model.Infer()

	asm.InsertFunction(model)
	asm.SetAssemblyFunction(1)

	sink := &recordingSink{}
	_, err := cmdstream.Build(asm, sink)
	require.NoError(t, err)
	assert.NotEmpty(t, sink.warnings)
}
