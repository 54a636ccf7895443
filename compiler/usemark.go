// Package compiler implements the assembly-wide passes that sit above
// a single Function: output-use propagation, lowering of the
// high-level FunctionGradient/NormalizeDistanceField nodes, and
// undo/redo history (§4.4.3, §4.4.5-4.4.7).
package compiler

import (
	"github.com/quillfield/implicore/assembly"
	"github.com/quillfield/implicore/graph"
)

// MarkUses runs output-use propagation (§4.4.3) over the whole
// assembly: every output port referenced by some bound parameter is
// marked Used, then every FunctionCall propagates its used call
// outputs to the corresponding End parameter's ConsumedByFunction in
// the callee. Backends use ConsumedByFunction to omit dead outputs
// from a sub-function's emitted signature.
func MarkUses(asm *assembly.Assembly) {
	asm.Functions(func(_ uint64, f *graph.Function) {
		f.Nodes(func(n *graph.Node) {
			for _, pname := range n.ParamNames() {
				pid, _ := n.ParamID(pname)
				p := f.Parameter(pid)
				if !p.Bound() {
					continue
				}
				if port := f.Port(p.Source.Port); port != nil {
					port.Used = true
				}
			}
		})
	})

	asm.Functions(func(_ uint64, f *graph.Function) {
		f.Nodes(func(n *graph.Node) {
			if n.Kind != graph.KindFunctionCall {
				return
			}
			callee, ok := asm.FindFunction(n.FunctionID)
			if !ok {
				return
			}
			end := callee.Node(callee.End())
			for _, outName := range n.OutputNames() {
				outID, _ := n.OutputID(outName)
				port := f.Port(outID)
				if port == nil || !port.Used {
					continue
				}
				pid, ok := end.ParamID(outName)
				if !ok {
					continue
				}
				callee.Parameter(pid).ConsumedByFunction = true
			}
		})
	})
}
