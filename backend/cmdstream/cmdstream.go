package cmdstream

import (
	"fmt"

	"github.com/quillfield/implicore/assembly"
	"github.com/quillfield/implicore/backend"
	"github.com/quillfield/implicore/graph"
	"github.com/quillfield/implicore/value"
)

// reservedScratch is the size of the block reserved for the assembly's
// final (Color.xyz, Distance): slot 0 for Distance, slots 1..3 for
// Color, with slots 1..3 seeded with the query position before
// execution (§4.5.2). The END command writes no scratch slot; it names
// the final Color and Distance through its Args.
const reservedScratch = 4

// Sink receives one diagnostic per emission-time warning, matching the
// kernel backend's Sink shape.
type Sink interface {
	Warningf(format string, args ...interface{})
}

type nullSink struct{}

func (nullSink) Warningf(string, ...interface{}) {}

// Command is one fixed-shape instruction: an opcode, the id of the
// node it was emitted from (diagnostic only, except where NodeID
// carries a resource id — see below), up to 4 output scratch indices
// and up to 16 signed argument indices (§4.5.2).
//
// Outputs are always scratch indices (a node's outputs are always
// written to scratch, never to the parameter pool). Args are signed:
// non-negative is a parameter-pool index; negative is -(idx+1), an
// index into the scratch array (the +1 offset keeps scratch index 0
// from colliding with pool index 0 under negation).
//
// For the resource-consuming node kinds (mesh/image samplers),
// NodeID additionally carries the bound external resource id.
type Command struct {
	Op      Opcode
	NodeID  uint64
	Outputs []int32
	Args    []int32
}

// EncodeScratch converts a scratch slot index into its signed Arg
// encoding.
func EncodeScratch(idx int) int32 { return int32(-(idx + 1)) }

// DecodeArg reports whether arg refers to the scratch array, and if
// so, which index.
func DecodeArg(arg int32) (scratchIdx int, isScratch bool) {
	if arg < 0 {
		return int(-arg) - 1, true
	}
	return 0, false
}

// Program is the emitted command-stream artifact: a linear command
// array plus the literal parameter pool, sized scratch array included.
type Program struct {
	Commands []Command
	Params   []float32
	Scratch  int
}

// Build produces the command-stream program for asm's assembly
// function, inlining every FunctionCall reachable from it (§4.5.2):
// callees are flattened into the same linear buffer and OpFunctionCall
// is never emitted. It returns an error when asm has no assembly
// function, for a cyclic function, for a recursive function call, and
// when an End operand of the assembly function was never resolved; a
// double visit panics in backend.Walk. Unsupported nodes are reported
// through sink and skipped.
func Build(asm *assembly.Assembly, sink Sink) (*Program, error) {
	if sink == nil {
		sink = nullSink{}
	}
	assemblyFn, ok := asm.AssemblyFunction()
	if !ok {
		return nil, fmt.Errorf("cmdstream: assembly has no designated assembly function")
	}

	prog := &Program{Scratch: reservedScratch}
	e := &emitter{asm: asm, sink: sink, prog: prog, refs: map[string]int32{}}

	begin := assemblyFn.Node(assemblyFn.Begin())
	if posID, ok := begin.OutputID("Pos"); ok {
		posPort := assemblyFn.Port(posID)
		e.refs[assemblyFn.PortSourceName(posPort)] = EncodeScratch(1)
	}

	if err := backend.Walk(assemblyFn, e); err != nil {
		return nil, err
	}

	end := assemblyFn.Node(assemblyFn.End())
	colorArg, err := e.operandArg(assemblyFn, end, "Color")
	if err != nil {
		return nil, err
	}
	distArg, err := e.operandArg(assemblyFn, end, "Distance")
	if err != nil {
		return nil, err
	}
	prog.Commands = append(prog.Commands, Command{Op: OpEnd, Args: []int32{colorArg, distArg}})
	return prog, nil
}

// emitter drives one function's (or one inlined call's) traversal. A
// fresh emitter is created per call level so refs, keyed by the
// function-local "<nodeUnique>.<portShort>" name, never collide across
// nesting; prog is shared so scratch/params allocate from one pool.
type emitter struct {
	asm       *assembly.Assembly
	sink      Sink
	prog      *Program
	refs      map[string]int32
	callStack []uint64
}

func (e *emitter) VisitBegin(*graph.Function) error { return nil }
func (e *emitter) VisitEnd(*graph.Function) error    { return nil }

func (e *emitter) Visit(f *graph.Function, n *graph.Node) error {
	switch n.Kind {
	case graph.KindBegin, graph.KindEnd:
		return nil
	case graph.KindFunctionGradient:
		e.sink.Warningf("cmdstream: function %s: FunctionGradient node %s is unsupported in the command-stream backend, skipping", f.DisplayName, n.UniqueName)
		return nil
	}
	if n.Kind.IsHighLevel() {
		e.sink.Warningf("cmdstream: function %s: node %s was not lowered before emission, skipping", f.DisplayName, n.UniqueName)
		return nil
	}
	if !n.Valid {
		e.sink.Warningf("cmdstream: function %s: node %s is invalid, skipping", f.DisplayName, n.UniqueName)
		return nil
	}

	switch n.Kind {
	case graph.KindConstantScalar, graph.KindConstantVector, graph.KindConstantMatrix:
		return e.visitConstant(f, n)
	case graph.KindResourceId:
		return e.visitResourceId(f, n)
	case graph.KindFunctionCall:
		return e.visitCall(f, n)
	}
	return e.visitNode(f, n)
}

func (e *emitter) visitConstant(f *graph.Function, n *graph.Node) error {
	out, ok := n.PrimaryOutput()
	if !ok {
		return nil
	}
	port := f.Port(out)
	var lit graph.Literal
	switch n.Kind {
	case graph.KindConstantScalar:
		pid, _ := n.ParamID("Value")
		lit = f.Parameter(pid).Value
	case graph.KindConstantVector:
		xid, _ := n.ParamID("X")
		yid, _ := n.ParamID("Y")
		zid, _ := n.ParamID("Z")
		lit = graph.Vec3Literal(value.V3{
			f.Parameter(xid).Value.Scalar,
			f.Parameter(yid).Value.Scalar,
			f.Parameter(zid).Value.Scalar,
		})
	case graph.KindConstantMatrix:
		var m value.M4
		for r := 0; r < 4; r++ {
			for c := 0; c < 4; c++ {
				pid, _ := n.ParamID(fmt.Sprintf("M%d%d", r, c))
				m[r][c] = f.Parameter(pid).Value.Scalar
			}
		}
		lit = graph.Mat4Literal(m)
	}
	e.refs[f.PortSourceName(port)] = e.poolLiteral(port.Type, lit)
	return nil
}

func (e *emitter) visitResourceId(f *graph.Function, n *graph.Node) error {
	out, ok := n.PrimaryOutput()
	if !ok {
		return nil
	}
	port := f.Port(out)
	e.refs[f.PortSourceName(port)] = e.poolLiteral(value.ResourceId, graph.ResourceLiteral(n.ResourceRef))
	return nil
}

// visitNode handles every remaining node kind: arithmetic, math
// intrinsics, vector/matrix composition, and resource-sampling ops.
func (e *emitter) visitNode(f *graph.Function, n *graph.Node) error {
	arg := func(name string) int32 {
		v, err := e.operandArg(f, n, name)
		if err != nil {
			e.sink.Warningf("cmdstream: %v", err)
		}
		return v
	}

	op, resourceID, args, err := e.dispatch(n, arg)
	if err != nil {
		e.sink.Warningf("cmdstream: function %s: node %s kind %s has no emission rule", f.DisplayName, n.UniqueName, n.Kind.Name())
		return nil
	}

	outputs := make([]int32, 0, len(n.OutputNames()))
	for _, name := range n.OutputNames() {
		oid, _ := n.OutputID(name)
		port := f.Port(oid)
		idx := e.allocScratch(typeWidth(port.Type))
		e.refs[f.PortSourceName(port)] = EncodeScratch(idx)
		outputs = append(outputs, int32(idx))
	}

	nodeID := uint64(n.ID)
	switch n.Kind {
	case graph.KindSignedDistanceToMesh, graph.KindUnsignedDistanceToMesh, graph.KindImageSampler:
		nodeID = resourceID
	}
	e.prog.Commands = append(e.prog.Commands, Command{
		Op:      op,
		NodeID:  nodeID,
		Outputs: outputs,
		Args:    args,
	})
	return nil
}

// dispatch resolves a node's opcode, optional resource id, and
// argument list. It returns an error for kinds with no known mapping.
func (e *emitter) dispatch(n *graph.Node, arg func(string) int32) (Opcode, uint64, []int32, error) {
	if family := n.Kind.Name(); n.Rule != value.NoRule {
		if op, ok := opcodeForRule(family, n.Rule); ok {
			switch n.Kind {
			case graph.KindClamp:
				return op, 0, []int32{arg("A"), arg("Min"), arg("Max")}, nil
			case graph.KindSelect:
				return op, 0, []int32{arg("A"), arg("B"), arg("C"), arg("D")}, nil
			}
			if _, isBinary := binaryFamilies[family]; isBinary {
				return op, 0, []int32{arg("A"), arg("B")}, nil
			}
			return op, 0, []int32{arg("A")}, nil
		}
	}

	switch n.Kind {
	case graph.KindDot:
		return OpDot, 0, []int32{arg("A"), arg("B")}, nil
	case graph.KindCross:
		return OpCross, 0, []int32{arg("A"), arg("B")}, nil
	case graph.KindLength:
		return OpLength, 0, []int32{arg("A")}, nil
	case graph.KindVectorFromScalar:
		return OpVectorFromScalar, 0, []int32{arg("X")}, nil
	case graph.KindComposeVector:
		return OpComposeVector, 0, []int32{arg("X"), arg("Y"), arg("Z")}, nil
	case graph.KindDecomposeVector:
		return OpDecomposeVector, 0, []int32{arg("Vector")}, nil
	case graph.KindComposeMatrix:
		var args []int32
		for r := 0; r < 4; r++ {
			for c := 0; c < 4; c++ {
				args = append(args, arg(fmt.Sprintf("M%d%d", r, c)))
			}
		}
		return OpComposeMatrix, 0, args, nil
	case graph.KindComposeMatrixFromColumns:
		return OpComposeMatrixFromColumns, 0, []int32{arg("X"), arg("Y"), arg("Z"), arg("W")}, nil
	case graph.KindComposeMatrixFromRows:
		return OpComposeMatrixFromRows, 0, []int32{arg("X"), arg("Y"), arg("Z"), arg("W")}, nil
	case graph.KindMatrixVectorMul:
		return OpMatrixVectorMul, 0, []int32{arg("Matrix"), arg("Vector")}, nil
	case graph.KindTranspose:
		return OpTranspose, 0, []int32{arg("Matrix")}, nil
	case graph.KindInverse:
		return OpInverse, 0, []int32{arg("Matrix")}, nil
	case graph.KindTransform:
		return OpTransform, 0, []int32{arg("Matrix"), arg("Pos")}, nil
	case graph.KindSignedDistanceToMesh:
		return OpMeshSDF, n.ResourceRef, []int32{arg("Pos"), arg("Start"), arg("End")}, nil
	case graph.KindUnsignedDistanceToMesh:
		return OpUnsignedMeshSDF, n.ResourceRef, []int32{arg("Pos"), arg("Start"), arg("End")}, nil
	case graph.KindImageSampler:
		return OpImageSample, n.ResourceRef, []int32{arg("Pos"), arg("Image"), arg("Scale"), arg("Offset")}, nil
	case graph.KindBoxMinMax:
		return OpBoxMinMax, 0, []int32{arg("Pos"), arg("Min"), arg("Max")}, nil
	}
	return 0, 0, nil, fmt.Errorf("no mapping for kind %s", n.Kind.Name())
}

// binaryFamilies marks the polymorphic families with exactly two
// operands A, B (everything else polymorphic is unary).
var binaryFamilies = map[string]bool{
	"Add": true, "Sub": true, "Mul": true, "Div": true,
	"Pow": true, "Fmod": true, "Mod": true, "Min": true, "Max": true,
}

// visitCall inlines a FunctionCall node: the callee's body is appended
// to the same program, with its Begin outputs bound to the caller's
// resolved arguments and its End outputs bound back into the caller's
// refs under the call node's own output ports. No command is emitted
// for the FunctionCall node itself: OpFunctionCall is declared in
// opcode.go but this backend never emits it (§4.5.2).
func (e *emitter) visitCall(f *graph.Function, n *graph.Node) error {
	callee, ok := e.asm.FindFunction(n.FunctionID)
	if !ok {
		e.sink.Warningf("cmdstream: function %s: FunctionCall node %s references unknown function %d, skipping", f.DisplayName, n.UniqueName, n.FunctionID)
		return nil
	}
	for _, id := range e.callStack {
		if id == n.FunctionID {
			return fmt.Errorf("cmdstream: recursive function call detected at function %d", n.FunctionID)
		}
	}

	child := &emitter{
		asm:       e.asm,
		sink:      e.sink,
		prog:      e.prog,
		refs:      map[string]int32{},
		callStack: append(append([]uint64{}, e.callStack...), n.FunctionID),
	}

	begin := callee.Node(callee.Begin())
	for _, name := range begin.OutputNames() {
		if _, ok := n.ParamID(name); !ok {
			continue
		}
		arg, err := e.operandArg(f, n, name)
		if err != nil {
			e.sink.Warningf("cmdstream: %v", err)
			continue
		}
		oid, _ := begin.OutputID(name)
		child.refs[callee.PortSourceName(callee.Port(oid))] = arg
	}

	if err := backend.Walk(callee, child); err != nil {
		return err
	}

	end := callee.Node(callee.End())
	for _, name := range end.ParamNames() {
		pid, _ := end.ParamID(name)
		p := callee.Parameter(pid)
		if !p.ConsumedByFunction {
			continue
		}
		oid, ok := n.OutputID(name)
		if !ok {
			continue
		}
		arg, err := child.operandArg(callee, end, name)
		if err != nil {
			e.sink.Warningf("cmdstream: %v", err)
			continue
		}
		port := f.Port(oid)
		e.refs[f.PortSourceName(port)] = arg
	}
	return nil
}

func (e *emitter) operandArg(f *graph.Function, n *graph.Node, paramName string) (int32, error) {
	pid, ok := n.ParamID(paramName)
	if !ok {
		return 0, fmt.Errorf("function %s: node %s has no parameter %q", f.DisplayName, n.UniqueName, paramName)
	}
	p := f.Parameter(pid)
	if p.Bound() {
		port := f.Port(p.Source.Port)
		key := f.PortSourceName(port)
		arg, ok := e.refs[key]
		if !ok {
			return 0, fmt.Errorf("function %s: operand %s not yet resolved (visit order bug)", f.DisplayName, key)
		}
		return arg, nil
	}
	return e.poolLiteral(p.Type, p.Value), nil
}

func (e *emitter) poolLiteral(t value.Type, lit graph.Literal) int32 {
	start := len(e.prog.Params)
	switch t {
	case value.Vec3:
		e.prog.Params = append(e.prog.Params, lit.Vec3[0], lit.Vec3[1], lit.Vec3[2])
	case value.Mat4:
		flat := lit.Mat4.Flat16()
		e.prog.Params = append(e.prog.Params, flat[:]...)
	case value.ResourceId:
		e.prog.Params = append(e.prog.Params, float32(lit.Resource))
	default:
		e.prog.Params = append(e.prog.Params, lit.Scalar)
	}
	return int32(start)
}

func (e *emitter) allocScratch(width int) int {
	start := e.prog.Scratch
	e.prog.Scratch += width
	return start
}

func typeWidth(t value.Type) int {
	switch t {
	case value.Vec3:
		return 3
	case value.Mat4:
		return 16
	default:
		return 1
	}
}
