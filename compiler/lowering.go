package compiler

import (
	"fmt"

	"github.com/quillfield/implicore/assembly"
	"github.com/quillfield/implicore/graph"
	"github.com/quillfield/implicore/internal/idset"
	"github.com/quillfield/implicore/value"
)

// defaultNormalizeStep is the central-difference step the synthesized
// FunctionGradient uses when lowering NormalizeDistanceField; the
// spec does not expose a user-facing step for this internally
// generated gradient, so a small fixed value is used (§4.4.6).
const defaultNormalizeStep = 1e-4

// gradientSig is the memoization key for a synthesized gradient
// helper (§4.4.5: "synthesize once (memoized)").
type gradientSig struct {
	calleeID   uint64
	scalarName string
	vectorName string
}

// distanceSig is the memoization key for a synthesized
// NormalizeDistanceField numerator helper (§4.4.6).
type distanceSig struct {
	calleeID   uint64
	scalarName string
}

// lowerState threads the memoization caches and the linker across
// however many functions Lower visits, so two gradient nodes with the
// same (callee, scalar, vector) signature anywhere in the assembly
// share one synthesized helper (§4.4.5).
type lowerState struct {
	asm         *assembly.Assembly
	linker      *assembly.Linker
	gradHelpers map[gradientSig]uint64
	distHelpers map[distanceSig]uint64
}

// Lower rewrites every NormalizeDistanceField and FunctionGradient
// node across asm into pure node subgraphs plus synthesized, managed
// helper functions (§4.4.5, §4.4.6). NormalizeDistanceField expands
// first: each instance produces a FunctionCall (numerator), a fresh
// FunctionGradient node (denominator basis) and the Max/Divide pair
// around them. The FunctionGradient pass that follows then reduces
// every remaining high-level node — original and
// normalize-synthesized alike — to pure arithmetic, so one Lower call
// fully lowers the assembly no matter which high-level node a caller
// started with (§4.4.6: "This keeps lowering compositional").
//
// A node whose callee, scalar output or vector input cannot be
// resolved is reported through linker.Sink and left in place (§7
// "Lowering infeasible"); Lower continues with the rest of the
// assembly. It returns the number of nodes it could not lower.
func Lower(asm *assembly.Assembly, linker *assembly.Linker) int {
	st := &lowerState{
		asm:         asm,
		linker:      linker,
		gradHelpers: make(map[gradientSig]uint64),
		distHelpers: make(map[distanceSig]uint64),
	}
	failed := 0
	asm.Functions(func(_ uint64, f *graph.Function) {
		failed += st.lowerNormalizeIn(f)
	})
	asm.Functions(func(_ uint64, f *graph.Function) {
		failed += st.lowerGradientIn(f)
	})
	linker.PropagateCallIO()
	return failed
}

func scalarOutput(callee *graph.Function, name string) (idset.ID, bool) {
	end := callee.Node(callee.End())
	id, ok := end.ParamID(name)
	if !ok || callee.Parameter(id).Type != value.Scalar {
		return 0, false
	}
	return id, true
}

func vectorInput(callee *graph.Function, name string) (idset.ID, bool) {
	begin := callee.Node(callee.Begin())
	id, ok := begin.OutputID(name)
	if !ok || callee.Port(id).Type != value.Vec3 {
		return 0, false
	}
	return id, true
}

// forwardArgs links each of src's non-structural parameters onto the
// like-named parameter of dst, either by copying the bound source or
// the literal value (skipping type/cycle checks: both nodes already
// passed them once via the linker's mirroring).
func forwardArgs(f *graph.Function, src, dst *graph.Node, skip map[string]bool) {
	for _, name := range src.ParamNames() {
		if skip[name] {
			continue
		}
		dstID, ok := dst.ParamID(name)
		if !ok {
			continue
		}
		srcID, _ := src.ParamID(name)
		srcP := f.Parameter(srcID)
		if srcP.Bound() {
			f.Link(srcP.Source.Port, dstID, true)
		} else {
			f.Parameter(dstID).Value = srcP.Value
		}
	}
}

// rewireConsumers repoints every parameter in f bound to any of
// oldPorts onto its replacement in newPorts (matched positionally).
// It does not remove the node the old ports belonged to. Used when a
// lowered node's outputs migrate to a freshly built replacement.
func rewireConsumers(f *graph.Function, oldPorts, newPorts []idset.ID) {
	remap := make(map[idset.ID]idset.ID, len(oldPorts))
	for i, old := range oldPorts {
		remap[old] = newPorts[i]
	}
	f.Nodes(func(n *graph.Node) {
		for _, pname := range n.ParamNames() {
			pid, _ := n.ParamID(pname)
			p := f.Parameter(pid)
			if p.Source == nil {
				continue
			}
			if to, ok := remap[p.Source.Port]; ok {
				newPort := f.Port(to)
				p.Source = &graph.Source{Port: to, Name: f.PortSourceName(newPort)}
			}
		}
	})
}

func constScalar(f *graph.Function, v float32) idset.ID {
	n := f.CreateNode(graph.KindConstantScalar)
	vid, _ := n.ParamID("Value")
	f.Parameter(vid).Value = graph.ScalarLiteral(v)
	rid, _ := n.OutputID("Result")
	return rid
}

func link(f *graph.Function, srcPort idset.ID, n *graph.Node, paramName string) {
	pid, _ := n.ParamID(paramName)
	f.Link(srcPort, pid, true)
}

func out(n *graph.Node, name string) idset.ID {
	id, _ := n.OutputID(name)
	return id
}

func buildCall(f *graph.Function, calleeID uint64, linker *assembly.Linker) *graph.Node {
	call := f.CreateNode(graph.KindFunctionCall)
	id, _ := f.AddNodeParam(call.ID, graph.ParamSpec{Name: "FunctionId", Type: value.ResourceId, Modifiable: true})
	f.Parameter(id).Value = graph.ResourceLiteral(calleeID)
	linker.MirrorNode(f, call)
	return call
}

// synthesizeGradientHelper builds (once, memoized) the pure helper
// function §4.4.5 describes for differentiating callee's scalarName
// output with respect to its vectorName input by central differences.
func (st *lowerState) synthesizeGradientHelper(callee *graph.Function, calleeID uint64, scalarName, vectorName string) uint64 {
	sig := gradientSig{calleeID, scalarName, vectorName}
	if id, ok := st.gradHelpers[sig]; ok {
		return id
	}

	resID := st.asm.NextResourceID()
	helper := graph.NewFunction(resID, fmt.Sprintf("Gradient_%d_%s_%s", calleeID, scalarName, vectorName))
	helper.Managed = true

	calleeBegin := callee.Node(callee.Begin())
	for _, argName := range calleeBegin.OutputNames() {
		id, _ := calleeBegin.OutputID(argName)
		helper.AddArgument(argName, callee.Port(id).Type)
	}
	helper.AddArgument("StepSize", value.Scalar)
	helper.AddOutput("Vector", value.Vec3, graph.Vec3Literal(value.V3{}))
	helper.AddOutput("Magnitude", value.Scalar, graph.ScalarLiteral(0))

	hBegin := helper.Node(helper.Begin())
	basePort, _ := hBegin.OutputID(vectorName)
	stepPort, _ := hBegin.OutputID("StepSize")

	absH := helper.CreateNode(graph.KindAbs)
	link(helper, stepPort, absH, "A")
	epsConst := constScalar(helper, 1e-8)
	maxH := helper.CreateNode(graph.KindMax)
	link(helper, out(absH, "Result"), maxH, "A")
	link(helper, epsConst, maxH, "B")
	safeH := out(maxH, "Result")

	twoConst := constScalar(helper, 2)

	axisNames := [3]string{"X", "Y", "Z"}
	var partials [3]idset.ID
	for axis, axisName := range axisNames {
		offset := helper.CreateNode(graph.KindComposeVector)
		link(helper, safeH, offset, axisName)
		offsetPort := out(offset, "Vector")

		plusPos := helper.CreateNode(graph.KindAdd)
		link(helper, basePort, plusPos, "A")
		link(helper, offsetPort, plusPos, "B")
		minusPos := helper.CreateNode(graph.KindSub)
		link(helper, basePort, minusPos, "A")
		link(helper, offsetPort, minusPos, "B")

		callPlus := buildCall(helper, calleeID, st.linker)
		callMinus := buildCall(helper, calleeID, st.linker)
		for _, argName := range calleeBegin.OutputNames() {
			if argName == vectorName {
				link(helper, out(plusPos, "Result"), callPlus, vectorName)
				link(helper, out(minusPos, "Result"), callMinus, vectorName)
				continue
			}
			link(helper, basePortOf(hBegin, argName), callPlus, argName)
			link(helper, basePortOf(hBegin, argName), callMinus, argName)
		}

		diff := helper.CreateNode(graph.KindSub)
		link(helper, out(callPlus, scalarName), diff, "A")
		link(helper, out(callMinus, scalarName), diff, "B")

		twoH := helper.CreateNode(graph.KindMul)
		link(helper, twoConst, twoH, "A")
		link(helper, safeH, twoH, "B")

		partial := helper.CreateNode(graph.KindDiv)
		link(helper, out(diff, "Result"), partial, "A")
		link(helper, out(twoH, "Result"), partial, "B")
		partials[axis] = out(partial, "Result")
	}

	gradVec := helper.CreateNode(graph.KindComposeVector)
	link(helper, partials[0], gradVec, "X")
	link(helper, partials[1], gradVec, "Y")
	link(helper, partials[2], gradVec, "Z")
	gradVecPort := out(gradVec, "Vector")

	length := helper.CreateNode(graph.KindLength)
	link(helper, gradVecPort, length, "A")
	lengthPort := out(length, "Result")

	safeLen := helper.CreateNode(graph.KindMax)
	link(helper, lengthPort, safeLen, "A")
	link(helper, epsConst, safeLen, "B")

	safeLenVec := helper.CreateNode(graph.KindVectorFromScalar)
	link(helper, out(safeLen, "Result"), safeLenVec, "X")

	normalized := helper.CreateNode(graph.KindDiv)
	link(helper, gradVecPort, normalized, "A")
	link(helper, out(safeLenVec, "Result"), normalized, "B")

	oneConst := constScalar(helper, 1)
	zeroConst := constScalar(helper, 0)
	mask := helper.CreateNode(graph.KindSelect)
	link(helper, epsConst, mask, "A")
	link(helper, lengthPort, mask, "B")
	link(helper, oneConst, mask, "C")
	link(helper, zeroConst, mask, "D")
	maskVec := helper.CreateNode(graph.KindVectorFromScalar)
	link(helper, out(mask, "Result"), maskVec, "X")

	finalVec := helper.CreateNode(graph.KindMul)
	link(helper, out(normalized, "Result"), finalVec, "A")
	link(helper, out(maskVec, "Result"), finalVec, "B")

	hEnd := helper.Node(helper.End())
	vecParam, _ := hEnd.ParamID("Vector")
	magParam, _ := hEnd.ParamID("Magnitude")
	helper.Link(out(finalVec, "Result"), vecParam, true)
	helper.Link(lengthPort, magParam, true)

	helper.Infer()
	st.asm.InsertFunction(helper)
	st.gradHelpers[sig] = resID
	return resID
}

func basePortOf(begin *graph.Node, name string) idset.ID {
	id, _ := begin.OutputID(name)
	return id
}

// synthesizeDistanceHelper builds (once, memoized) the helper whose
// End.Distance equals callee's chosen scalar output, arguments
// mirrored 1:1 (§4.4.6).
func (st *lowerState) synthesizeDistanceHelper(callee *graph.Function, calleeID uint64, scalarName string) uint64 {
	sig := distanceSig{calleeID, scalarName}
	if id, ok := st.distHelpers[sig]; ok {
		return id
	}

	resID := st.asm.NextResourceID()
	helper := graph.NewFunction(resID, fmt.Sprintf("Distance_%d_%s", calleeID, scalarName))
	helper.Managed = true

	calleeBegin := callee.Node(callee.Begin())
	for _, argName := range calleeBegin.OutputNames() {
		id, _ := calleeBegin.OutputID(argName)
		helper.AddArgument(argName, callee.Port(id).Type)
	}
	helper.AddOutput("Distance", value.Scalar, graph.ScalarLiteral(0))

	hBegin := helper.Node(helper.Begin())
	call := buildCall(helper, calleeID, st.linker)
	for _, argName := range calleeBegin.OutputNames() {
		link(helper, basePortOf(hBegin, argName), call, argName)
	}

	hEnd := helper.Node(helper.End())
	distParam, _ := hEnd.ParamID("Distance")
	helper.Link(out(call, scalarName), distParam, true)

	helper.Infer()
	st.asm.InsertFunction(helper)
	st.distHelpers[sig] = resID
	return resID
}

// lowerGradientIn rewrites every FunctionGradient node in f into a
// FunctionCall to its synthesized helper (§4.4.5 "Rewrite").
func (st *lowerState) lowerGradientIn(f *graph.Function) int {
	failed := 0
	var nodes []*graph.Node
	f.Nodes(func(n *graph.Node) {
		if n.Kind == graph.KindFunctionGradient {
			nodes = append(nodes, n)
		}
	})
	touched := false
	for _, n := range nodes {
		calleeID := n.FunctionID
		if calleeID == 0 {
			if p := f.Parameter(mustParamID(n, "FunctionId")); p != nil {
				calleeID = p.Value.Resource
			}
		}
		callee, ok := st.asm.FindFunction(calleeID)
		if !ok {
			st.linker.Sink.Warningf("compiler: FunctionGradient %s: function %d not found", n.UniqueName, calleeID)
			failed++
			continue
		}
		if _, ok := scalarOutput(callee, n.ScalarOutput); !ok {
			st.linker.Sink.Warningf("compiler: FunctionGradient %s: scalar output %q invalid", n.UniqueName, n.ScalarOutput)
			failed++
			continue
		}
		if _, ok := vectorInput(callee, n.VectorInput); !ok {
			st.linker.Sink.Warningf("compiler: FunctionGradient %s: vector input %q invalid", n.UniqueName, n.VectorInput)
			failed++
			continue
		}

		helperID := st.synthesizeGradientHelper(callee, calleeID, n.ScalarOutput, n.VectorInput)
		call := buildCall(f, helperID, st.linker)
		forwardArgs(f, n, call, map[string]bool{"FunctionId": true})

		oldVec, oldMag := mustOutputID(n, "Vector"), mustOutputID(n, "Magnitude")
		newVec, newMag := mustOutputID(call, "Vector"), mustOutputID(call, "Magnitude")
		rewireConsumers(f, []idset.ID{oldVec, oldMag}, []idset.ID{newVec, newMag})

		f.RemoveNode(n.ID)
		touched = true
	}
	if touched {
		f.Infer()
	}
	return failed
}

// lowerNormalizeIn rewrites every NormalizeDistanceField node in f
// into the numerator call, denominator gradient/max, and final divide
// (§4.4.6).
func (st *lowerState) lowerNormalizeIn(f *graph.Function) int {
	failed := 0
	var nodes []*graph.Node
	f.Nodes(func(n *graph.Node) {
		if n.Kind == graph.KindNormalizeDistanceField {
			nodes = append(nodes, n)
		}
	})
	touched := false
	for _, n := range nodes {
		calleeID := n.FunctionID
		if calleeID == 0 {
			if p := f.Parameter(mustParamID(n, "FunctionId")); p != nil {
				calleeID = p.Value.Resource
			}
		}
		callee, ok := st.asm.FindFunction(calleeID)
		if !ok {
			st.linker.Sink.Warningf("compiler: NormalizeDistanceField %s: function %d not found", n.UniqueName, calleeID)
			failed++
			continue
		}
		if _, ok := scalarOutput(callee, n.ScalarOutput); !ok {
			st.linker.Sink.Warningf("compiler: NormalizeDistanceField %s: scalar output %q invalid", n.UniqueName, n.ScalarOutput)
			failed++
			continue
		}
		if _, ok := vectorInput(callee, n.VectorInput); !ok {
			st.linker.Sink.Warningf("compiler: NormalizeDistanceField %s: vector input %q invalid", n.UniqueName, n.VectorInput)
			failed++
			continue
		}

		numeratorID := st.synthesizeDistanceHelper(callee, calleeID, n.ScalarOutput)

		call1 := buildCall(f, numeratorID, st.linker)
		forwardArgs(f, n, call1, map[string]bool{"FunctionId": true})

		grad := f.CreateNode(graph.KindFunctionGradient)
		grad.ScalarOutput = "Distance"
		grad.VectorInput = n.VectorInput
		fid, _ := grad.ParamID("FunctionId")
		f.Parameter(fid).Value = graph.ResourceLiteral(numeratorID)
		stepID, _ := grad.ParamID("StepSize")
		f.Parameter(stepID).Value = graph.ScalarLiteral(defaultNormalizeStep)
		st.linker.MirrorNode(f, grad)
		forwardArgs(f, n, grad, map[string]bool{"FunctionId": true})

		maxNode := f.CreateNode(graph.KindMax)
		link(f, out(grad, "Magnitude"), maxNode, "A")
		link(f, constScalar(f, 1e-8), maxNode, "B")

		divNode := f.CreateNode(graph.KindDiv)
		link(f, out(call1, "Distance"), divNode, "A")
		link(f, out(maxNode, "Result"), divNode, "B")

		oldResult := mustOutputID(n, "Result")
		rewireConsumers(f, []idset.ID{oldResult}, []idset.ID{out(divNode, "Result")})

		f.RemoveNode(n.ID)
		touched = true
	}
	if touched {
		f.Infer()
	}
	return failed
}

func mustParamID(n *graph.Node, name string) idset.ID {
	id, _ := n.ParamID(name)
	return id
}

func mustOutputID(n *graph.Node, name string) idset.ID {
	id, _ := n.OutputID(name)
	return id
}
