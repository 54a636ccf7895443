package assembly

import (
	"github.com/quillfield/implicore/graph"
	"github.com/quillfield/implicore/value"
)

// Sink receives one diagnostic per resolution failure. The linker
// does not depend on the logsink package directly; any type whose
// Warningf matches this shape (logsink's ConsoleSink among them)
// satisfies it.
type Sink interface {
	Warningf(format string, args ...interface{})
}

type nullSink struct{}

func (nullSink) Warningf(string, ...interface{}) {}

// Linker performs the single "re-mirror" pass over an Assembly's
// FunctionCall nodes (§4.3 "Propagate call I/O", §9 Open question: "a
// single re-mirror pass owned by the linker... is what this
// specification mandates"). Every mutation that can change a call's
// shape — editing the assembly, lowering, or restoring history —
// should finish by invoking PropagateCallIO once.
type Linker struct {
	Assembly *Assembly
	Sink     Sink
}

// NewLinker creates a Linker over asm. A nil sink is replaced with a
// no-op one.
func NewLinker(asm *Assembly, sink Sink) *Linker {
	if sink == nil {
		sink = nullSink{}
	}
	return &Linker{Assembly: asm, Sink: sink}
}

// PropagateCallIO resolves every call-family node's FunctionId
// parameter (FunctionCall, FunctionGradient, NormalizeDistanceField),
// mirrors the callee's Begin outputs as parameters on the node, and —
// for FunctionCall only, whose output shape is the callee's, unlike
// the other two kinds' fixed output shape — mirrors the callee's End
// parameters as output ports too. It re-registers them and re-runs
// type inference on the owning function (§4.3, §9 Open question: "a
// single re-mirror pass owned by the linker" generalized here to
// every call-family kind rather than FunctionCall alone, since all
// three share the same argument-mirroring need). A call whose
// FunctionId fails to resolve is marked invalid and the pass
// continues; it never aborts the whole assembly for one bad call
// (§4.4.8: "the call is reported as invalid and the pass continues").
func (l *Linker) PropagateCallIO() {
	l.Assembly.Functions(func(_ uint64, f *graph.Function) {
		touched := false
		f.Nodes(func(n *graph.Node) {
			switch n.Kind {
			case graph.KindFunctionCall, graph.KindFunctionGradient, graph.KindNormalizeDistanceField:
			default:
				return
			}
			if l.mirrorCall(f, n) {
				touched = true
			}
		})
		if touched {
			f.Infer()
		}
	})
}

// MirrorNode runs the single call-site mirroring step (the body of
// PropagateCallIO) for one call-family node, without touching the
// rest of the assembly. The lowering pass (§4.4.5, §4.4.6) uses this
// to mirror a freshly synthesized FunctionCall/FunctionGradient node
// against its callee immediately, rather than waiting for the next
// assembly-wide PropagateCallIO. It does not re-run type inference on
// the owning function; callers that build several nodes in one
// function should call Function.Infer once after all of them are in
// place.
func (l *Linker) MirrorNode(f *graph.Function, call *graph.Node) bool {
	return l.mirrorCall(f, call)
}

func (l *Linker) mirrorCall(f *graph.Function, call *graph.Node) bool {
	funcIDParam, ok := call.ParamID("FunctionId")
	if !ok {
		id, err := f.AddNodeParam(call.ID, graph.ParamSpec{Name: "FunctionId", Type: value.ResourceId, Modifiable: true})
		if err != nil {
			l.Sink.Warningf("linker: call %s: %v", call.UniqueName, err)
			return false
		}
		funcIDParam = id
	}
	p := f.Parameter(funcIDParam)

	calleeID := p.Value.Resource
	callee, ok := l.Assembly.FindFunction(calleeID)
	if !ok {
		call.Valid = false
		l.Sink.Warningf("linker: call %s: function %d not found", call.UniqueName, calleeID)
		return true
	}
	call.FunctionID = calleeID

	begin := callee.Node(callee.Begin())
	for _, argName := range begin.OutputNames() {
		outID, _ := begin.OutputID(argName)
		argType := callee.Port(outID).Type
		if _, has := call.ParamID(argName); !has {
			f.AddNodeParam(call.ID, graph.ParamSpec{Name: argName, Type: argType, Modifiable: true})
		}
	}

	if call.Kind == graph.KindFunctionCall {
		end := callee.Node(callee.End())
		wantOutputs := make(map[string]bool, len(end.ParamNames()))
		for _, outName := range end.ParamNames() {
			wantOutputs[outName] = true
			pid, _ := end.ParamID(outName)
			outType := callee.Parameter(pid).Type
			if _, has := call.OutputID(outName); !has {
				f.AddNodeOutput(call.ID, graph.PortSpec{Name: outName, Type: outType})
			}
		}
		for _, existing := range call.OutputNames() {
			if !wantOutputs[existing] {
				f.RemoveNodeOutput(call.ID, existing)
			}
		}
	}

	call.Valid = true
	return true
}
