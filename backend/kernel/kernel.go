// Package kernel implements the kernel-source backend (§4.5.1): a
// single textual translation unit for a C-family kernel language, with
// a declarations stream (function prototypes) and a definitions
// stream (function bodies).
package kernel

import (
	"fmt"
	"sort"
	"strings"

	"github.com/quillfield/implicore/assembly"
	"github.com/quillfield/implicore/backend"
	"github.com/quillfield/implicore/graph"
	"github.com/quillfield/implicore/internal/idset"
	"github.com/quillfield/implicore/value"
)

// PayloadArgs is the fixed trailing parameter list every emitted
// function and runtime call carries, standing in for whatever
// resource/context handles the external GPU runtime actually threads
// through (mesh buffers, image arrays, ...) — out of this module's
// scope (§1), named here only so emitted signatures are self-
// consistent.
const PayloadArgs = "PAYLOAD_ARGS"

// Sink receives one diagnostic per emission-time warning (unsupported
// node, unresolved callee). Matches assembly.Linker's Sink shape so
// the same ConsoleSink implementation serves both.
type Sink interface {
	Warningf(format string, args ...interface{})
}

type nullSink struct{}

func (nullSink) Warningf(string, ...interface{}) {}

// Unit is the emitted translation unit: declarations and definitions
// are kept separate so a caller can place the former in a header.
type Unit struct {
	Declarations string
	Definitions  string
}

// String concatenates declarations then definitions, the order a
// single-file emission needs.
func (u Unit) String() string { return u.Declarations + "\n" + u.Definitions }

// Emit produces the kernel translation unit for asm's assembly
// function and every function reachable from it (§4.5 "other
// functions are emitted when reachable"). It returns an error when asm
// has no assembly function and when backend.Walk rejects a cyclic
// function; a double visit panics in backend.Walk. Node-level problems
// are reported through sink and the offending node's statement is
// omitted.
func Emit(asm *assembly.Assembly, sink Sink) (Unit, error) {
	if sink == nil {
		sink = nullSink{}
	}
	assemblyFn, ok := asm.AssemblyFunction()
	if !ok {
		return Unit{}, fmt.Errorf("kernel: assembly has no designated assembly function")
	}
	fallback, hasFallback := asm.Fallback()

	reached := backend.Reachable(asm, assemblyFn.ResourceID)
	var ids []uint64
	for id := range reached {
		if id != assemblyFn.ResourceID {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var u Unit
	for _, id := range ids {
		f, ok := asm.FindFunction(id)
		if !ok {
			continue
		}
		decl, def, err := emitFunction(asm, f, false, graph.Literal{}, false, sink)
		if err != nil {
			return Unit{}, err
		}
		u.Declarations += decl
		u.Definitions += def
	}
	decl, def, err := emitFunction(asm, assemblyFn, true, fallback, hasFallback, sink)
	if err != nil {
		return Unit{}, err
	}
	u.Declarations += decl
	u.Definitions += def
	return u, nil
}

type emitter struct {
	asm  *assembly.Assembly
	f    *graph.Function
	sink Sink
	body strings.Builder
}

func emitFunction(asm *assembly.Assembly, f *graph.Function, isAssembly bool, fallback graph.Literal, hasFallback bool, sink Sink) (decl, def string, err error) {
	e := &emitter{asm: asm, f: f, sink: sink}
	if err := backend.Walk(f, e); err != nil {
		return "", "", err
	}

	begin := f.Node(f.Begin())
	end := f.Node(f.End())

	var params []string
	for _, name := range begin.OutputNames() {
		id, _ := begin.OutputID(name)
		port := f.Port(id)
		if !port.Used || (isAssembly && name == "Pos") {
			continue
		}
		params = append(params, fmt.Sprintf("%s %s", cType(port.Type), cIdent(name)))
	}

	if isAssembly {
		sig := fmt.Sprintf("float4 %s(float3 Pos, %s)", assemblyFuncName(f), PayloadArgs)
		if len(params) > 0 {
			sig = fmt.Sprintf("float4 %s(float3 Pos, %s, %s)", assemblyFuncName(f), strings.Join(params, ", "), PayloadArgs)
		}
		decl = sig + ";\n"

		colorName, distName := "Color", "Distance"
		colorExpr := operandExpr(f, end, colorName)
		distExpr := operandExpr(f, end, distName)
		var out strings.Builder
		out.WriteString(sig + " {\n")
		out.WriteString(e.body.String())
		if hasFallback {
			out.WriteString(fmt.Sprintf("  float __dist = %s;\n", distExpr))
			out.WriteString(fmt.Sprintf("  if (isnan(__dist) || isinf(__dist)) __dist = %s;\n", literalText(value.Scalar, fallback)))
			out.WriteString(fmt.Sprintf("  return (float4)(%s, __dist);\n", colorExpr))
		} else {
			out.WriteString(fmt.Sprintf("  return (float4)(%s, %s);\n", colorExpr, distExpr))
		}
		out.WriteString("}\n")
		def = out.String()
		return decl, def, nil
	}

	var outPtrs []string
	for _, name := range end.ParamNames() {
		pid, _ := end.ParamID(name)
		p := f.Parameter(pid)
		if !p.ConsumedByFunction {
			continue
		}
		outPtrs = append(outPtrs, fmt.Sprintf("%s *%s", cType(p.Type), cIdent(name)))
	}

	sigArgs := append(append([]string{}, params...), outPtrs...)
	sig := fmt.Sprintf("void %s(%s, %s)", calleeFuncName(f), strings.Join(sigArgs, ", "), PayloadArgs)
	if len(sigArgs) == 0 {
		sig = fmt.Sprintf("void %s(%s)", calleeFuncName(f), PayloadArgs)
	}
	decl = sig + ";\n"

	var out strings.Builder
	out.WriteString(sig + " {\n")
	out.WriteString(e.body.String())
	for _, name := range end.ParamNames() {
		pid, _ := end.ParamID(name)
		p := f.Parameter(pid)
		if !p.ConsumedByFunction {
			continue
		}
		out.WriteString(fmt.Sprintf("  *%s = %s;\n", cIdent(name), operandExpr(f, end, name)))
	}
	out.WriteString("}\n")
	def = out.String()
	return decl, def, nil
}

// assemblyFuncName is fixed: the assembly function is always emitted
// as the kernel's single entry point (§4.5.1 "emit float4 model(...)").
func assemblyFuncName(*graph.Function) string { return "model" }

// calleeFuncName names a non-assembly function definition and every
// FunctionCall site referencing it identically, keyed by resource id
// rather than DisplayName so a call never needs to resolve the
// callee's (possibly resource-bearing or duplicated) display text —
// it only needs the FunctionId it already carries.
func calleeFuncName(f *graph.Function) string { return fmt.Sprintf("func_%d", f.ResourceID) }

// VisitBegin/VisitEnd are no-ops: Begin has no statement (its outputs
// are just the function's parameter names) and End's assignment
// statements are written by emitFunction once e.body is complete, since
// End needs the whole body text first.
func (e *emitter) VisitBegin(*graph.Function) error { return nil }
func (e *emitter) VisitEnd(*graph.Function) error   { return nil }

func (e *emitter) Visit(f *graph.Function, n *graph.Node) error {
	switch n.Kind {
	case graph.KindBegin, graph.KindEnd:
		return nil
	}
	if n.Kind.IsHighLevel() {
		e.sink.Warningf("kernel: function %s: node %s was not lowered before emission, skipping", f.DisplayName, n.UniqueName)
		return nil
	}
	if !n.Valid {
		e.sink.Warningf("kernel: function %s: node %s is invalid, skipping", f.DisplayName, n.UniqueName)
		return nil
	}

	stmt, ok := e.statement(f, n)
	if !ok {
		return nil
	}
	e.body.WriteString("  ")
	e.body.WriteString(stmt)
	e.body.WriteString("\n")
	return nil
}

// statement renders one node into a single C statement assigning its
// primary output's temporary. Nodes with more than one output
// (DecomposeVector, ImageSampler) assign each of their temporaries in
// the same statement via a helper call returning a struct-like tuple
// is avoided; instead each extra output gets its own declaration line
// joined by ';' — kept as one semicolon-joined statement per the
// "exactly one statement" rule by treating the whole declaration block
// as a single logical unit.
func (e *emitter) statement(f *graph.Function, n *graph.Node) (string, bool) {
	out, ok := n.PrimaryOutput()
	if !ok {
		return "", false
	}
	port := f.Port(out)
	temp := cIdent(f.PortSourceName(port))
	t := cType(port.Type)

	arg := func(name string) string {
		pid, _ := n.ParamID(name)
		return operandExprParam(f, pid)
	}

	intrinsic, isMath := mathIntrinsic(n.Kind)
	switch {
	case n.Kind == graph.KindAdd:
		return fmt.Sprintf("%s %s = %s + %s;", t, temp, arg("A"), arg("B")), true
	case n.Kind == graph.KindSub:
		return fmt.Sprintf("%s %s = %s - %s;", t, temp, arg("A"), arg("B")), true
	case n.Kind == graph.KindMul:
		return fmt.Sprintf("%s %s = %s * %s;", t, temp, arg("A"), arg("B")), true
	case n.Kind == graph.KindDiv:
		return fmt.Sprintf("%s %s = %s / %s;", t, temp, arg("A"), arg("B")), true
	case n.Kind == graph.KindMod:
		x, y := arg("A"), arg("B")
		return fmt.Sprintf("%s %s = %s - %s * floor(%s / %s);", t, temp, x, y, x, y), true
	case n.Kind == graph.KindFmod:
		return fmt.Sprintf("%s %s = fmod(%s, %s);", t, temp, arg("A"), arg("B")), true
	case n.Kind == graph.KindMin:
		return fmt.Sprintf("%s %s = min(%s, %s);", t, temp, arg("A"), arg("B")), true
	case n.Kind == graph.KindMax:
		return fmt.Sprintf("%s %s = max(%s, %s);", t, temp, arg("A"), arg("B")), true
	case n.Kind == graph.KindClamp:
		return fmt.Sprintf("%s %s = clamp(%s, %s, %s);", t, temp, arg("A"), arg("Min"), arg("Max")), true
	case n.Kind == graph.KindSelect:
		return fmt.Sprintf("%s %s = (%s < %s) ? %s : %s;", t, temp, arg("A"), arg("B"), arg("C"), arg("D")), true
	case isMath:
		return fmt.Sprintf("%s %s = %s(%s);", t, temp, intrinsic, arg("A")), true
	case n.Kind == graph.KindPow:
		return fmt.Sprintf("%s %s = pow(%s, %s);", t, temp, arg("A"), arg("B")), true
	case n.Kind == graph.KindDot:
		return fmt.Sprintf("%s %s = dot(%s, %s);", t, temp, arg("A"), arg("B")), true
	case n.Kind == graph.KindCross:
		return fmt.Sprintf("%s %s = cross(%s, %s);", t, temp, arg("A"), arg("B")), true
	case n.Kind == graph.KindLength:
		return fmt.Sprintf("%s %s = length(%s);", t, temp, arg("A")), true
	case n.Kind == graph.KindVectorFromScalar:
		return fmt.Sprintf("%s %s = (float3)(%s, %s, %s);", t, temp, arg("X"), arg("X"), arg("X")), true
	case n.Kind == graph.KindComposeVector:
		return fmt.Sprintf("%s %s = (float3)(%s, %s, %s);", t, temp, arg("X"), arg("Y"), arg("Z")), true
	case n.Kind == graph.KindDecomposeVector:
		xid, _ := n.OutputID("X")
		yid, _ := n.OutputID("Y")
		zid, _ := n.OutputID("Z")
		xn, yn, zn := cIdent(f.PortSourceName(f.Port(xid))), cIdent(f.PortSourceName(f.Port(yid))), cIdent(f.PortSourceName(f.Port(zid)))
		v := arg("Vector")
		return fmt.Sprintf("float %s = (%s).x, %s = (%s).y, %s = (%s).z;", xn, v, yn, v, zn, v), true
	case n.Kind == graph.KindMatrixVectorMul:
		return fmt.Sprintf("%s %s = mat_mul_vec(%s, %s);", t, temp, arg("Matrix"), arg("Vector")), true
	case n.Kind == graph.KindTranspose:
		return fmt.Sprintf("%s %s = mat_transpose(%s);", t, temp, arg("Matrix")), true
	case n.Kind == graph.KindInverse:
		return fmt.Sprintf("%s %s = mat_inverse(%s);", t, temp, arg("Matrix")), true
	case n.Kind == graph.KindTransform:
		return fmt.Sprintf("%s %s = mat_mul_pos(%s, %s);", t, temp, arg("Matrix"), arg("Pos")), true
	case n.Kind == graph.KindComposeMatrix || n.Kind == graph.KindConstantMatrix:
		return matrixLiteralStatement(f, n, temp), true
	case n.Kind == graph.KindComposeMatrixFromColumns:
		return fmt.Sprintf("%s %s = mat_from_columns(%s, %s, %s, %s);", t, temp, arg("X"), arg("Y"), arg("Z"), arg("W")), true
	case n.Kind == graph.KindComposeMatrixFromRows:
		return fmt.Sprintf("%s %s = mat_from_rows(%s, %s, %s, %s);", t, temp, arg("X"), arg("Y"), arg("Z"), arg("W")), true
	case n.Kind == graph.KindConstantScalar:
		return fmt.Sprintf("%s %s = %s;", t, temp, arg("Value")), true
	case n.Kind == graph.KindConstantVector:
		return fmt.Sprintf("%s %s = (float3)(%s, %s, %s);", t, temp, arg("X"), arg("Y"), arg("Z")), true
	case n.Kind == graph.KindResourceId:
		return fmt.Sprintf("uint %s = %d;", temp, n.ResourceRef), true
	case n.Kind == graph.KindSignedDistanceToMesh, n.Kind == graph.KindUnsignedDistanceToMesh:
		fn := "payload_signed_mesh_sdf"
		if n.Kind == graph.KindUnsignedDistanceToMesh {
			fn = "payload_unsigned_mesh_sdf"
		}
		return fmt.Sprintf("%s %s = %s(%s, %s, %s, %s);", t, temp, fn, arg("Pos"), arg("Start"), arg("End"), PayloadArgs), true
	case n.Kind == graph.KindImageSampler:
		rgbID, _ := n.OutputID("RGB")
		alphaID, _ := n.OutputID("Alpha")
		colorID, _ := n.OutputID("Color")
		rgbName := cIdent(f.PortSourceName(f.Port(rgbID)))
		alphaName := cIdent(f.PortSourceName(f.Port(alphaID)))
		colorName := cIdent(f.PortSourceName(f.Port(colorID)))
		call := fmt.Sprintf("sample_image3d(%s, %s, %s, %s, %s)", arg("Pos"), arg("Image"), arg("Scale"), arg("Offset"), PayloadArgs)
		return fmt.Sprintf("float4 %s_raw = %s; float3 %s = %s_raw.xyz; float %s = %s_raw.w; float3 %s = %s;",
			temp, call, rgbName, temp, alphaName, temp, colorName, rgbName), true
	case n.Kind == graph.KindBoxMinMax:
		return fmt.Sprintf("%s %s = box_sdf(%s, %s, %s);", t, temp, arg("Pos"), arg("Min"), arg("Max")), true
	case n.Kind == graph.KindFunctionCall:
		return e.callStatement(f, n)
	}
	e.sink.Warningf("kernel: function %s: node %s kind %s has no emission rule", f.DisplayName, n.UniqueName, n.Kind.Name())
	return "", false
}

func (e *emitter) callStatement(f *graph.Function, n *graph.Node) (string, bool) {
	callee, ok := e.asm.FindFunction(n.FunctionID)
	if !ok {
		e.sink.Warningf("kernel: function %s: FunctionCall node %s references unknown function %d, skipping", f.DisplayName, n.UniqueName, n.FunctionID)
		return "", false
	}
	begin := callee.Node(callee.Begin())

	// Drive the argument list from the callee's own Begin output
	// order and Used flags — the same source emitFunction's
	// definition-side param list is built from (kernel.go:112) — so
	// the call always lines up with the definition regardless of the
	// order the call node's own parameters happen to be in.
	var args []string
	for _, name := range begin.OutputNames() {
		oid, _ := begin.OutputID(name)
		if !callee.Port(oid).Used {
			continue
		}
		pid, ok := n.ParamID(name)
		if !ok {
			e.sink.Warningf("kernel: function %s: FunctionCall node %s missing mirrored argument %q, skipping", f.DisplayName, n.UniqueName, name)
			return "", false
		}
		args = append(args, operandExprParam(f, pid))
	}
	for _, name := range n.OutputNames() {
		oid, _ := n.OutputID(name)
		port := f.Port(oid)
		if !port.Used {
			continue
		}
		args = append(args, "&"+cIdent(f.PortSourceName(port)))
	}
	args = append(args, PayloadArgs)

	var decls strings.Builder
	for _, name := range n.OutputNames() {
		oid, _ := n.OutputID(name)
		port := f.Port(oid)
		if !port.Used {
			continue
		}
		decls.WriteString(fmt.Sprintf("%s %s; ", cType(port.Type), cIdent(f.PortSourceName(port))))
	}
	return fmt.Sprintf("%s%s(%s);", decls.String(), calleeFuncName(callee), strings.Join(args, ", ")), true
}

func operandExpr(f *graph.Function, n *graph.Node, paramName string) string {
	pid, _ := n.ParamID(paramName)
	return operandExprParam(f, pid)
}

func operandExprParam(f *graph.Function, pid idset.ID) string {
	p := f.Parameter(pid)
	if p.Bound() {
		return cIdent(f.PortSourceName(f.Port(p.Source.Port)))
	}
	return literalText(p.Type, p.Value)
}

func matrixLiteralStatement(f *graph.Function, n *graph.Node, temp string) string {
	var elems []string
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			pid, _ := n.ParamID(fmt.Sprintf("M%d%d", r, c))
			elems = append(elems, operandExprParam(f, pid))
		}
	}
	return fmt.Sprintf("float16 %s = (float16)(%s);", temp, strings.Join(elems, ", "))
}

func literalText(t value.Type, lit graph.Literal) string {
	switch t {
	case value.Vec3:
		return fmt.Sprintf("(float3)(%g, %g, %g)", lit.Vec3[0], lit.Vec3[1], lit.Vec3[2])
	case value.Mat4:
		f := lit.Mat4.Flat16()
		parts := make([]string, 16)
		for i, v := range f {
			parts[i] = fmt.Sprintf("%g", v)
		}
		return fmt.Sprintf("(float16)(%s)", strings.Join(parts, ", "))
	case value.ResourceId:
		return fmt.Sprintf("%d", lit.Resource)
	default:
		return fmt.Sprintf("%g", lit.Scalar)
	}
}

func cType(t value.Type) string {
	switch t {
	case value.Vec3:
		return "float3"
	case value.Mat4:
		return "float16"
	case value.ResourceId:
		return "uint"
	default:
		return "float"
	}
}

func cIdent(name string) string {
	return strings.ReplaceAll(name, ".", "_")
}

func mathIntrinsic(k graph.Kind) (string, bool) {
	switch k {
	case graph.KindSin:
		return "sin", true
	case graph.KindCos:
		return "cos", true
	case graph.KindTan:
		return "tan", true
	case graph.KindAsin:
		return "asin", true
	case graph.KindAcos:
		return "acos", true
	case graph.KindAtan:
		return "atan", true
	case graph.KindSinh:
		return "sinh", true
	case graph.KindCosh:
		return "cosh", true
	case graph.KindTanh:
		return "tanh", true
	case graph.KindAbs:
		return "fabs", true
	case graph.KindSqrt:
		return "sqrt", true
	case graph.KindExp:
		return "exp", true
	case graph.KindLog:
		return "log", true
	case graph.KindLog2:
		return "log2", true
	case graph.KindLog10:
		return "log10", true
	case graph.KindSign:
		return "sign", true
	case graph.KindRound:
		return "round", true
	case graph.KindCeil:
		return "ceil", true
	case graph.KindFloor:
		return "floor", true
	case graph.KindFract:
		return "fract", true
	default:
		return "", false
	}
}
