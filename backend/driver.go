// Package backend implements the traversal shared by both executable
// backends (§4.5.3 "Shared traversal contract"): visit every function
// reachable from the assembly function, in each function's own
// topological order, calling a Visitor's VisitBegin/Visit/VisitEnd.
package backend

import (
	"fmt"

	"github.com/quillfield/implicore/assembly"
	"github.com/quillfield/implicore/core"
	"github.com/quillfield/implicore/graph"
	"github.com/quillfield/implicore/internal/idset"
	"github.com/quillfield/implicore/internal/markset"
)

// Visitor receives the traversal callbacks for one function. A backend
// implements this once per output form (kernel source, command
// stream).
type Visitor interface {
	// VisitBegin is called once per function before its first node.
	VisitBegin(f *graph.Function) error
	// Visit is called once per node, in topological order. Begin and
	// End are included.
	Visit(f *graph.Function, n *graph.Node) error
	// VisitEnd is called once per function after its last node.
	VisitEnd(f *graph.Function) error
}

// ErrDoubleVisit is a programming error (§7 "Only unrecoverable
// programming errors... become exceptions"): the driver visited the
// same node twice in one function.
var ErrDoubleVisit = fmt.Errorf("backend: node visited twice in the same function")

// ErrNotAcyclic is returned when a function scheduled for emission is
// cyclic; backends must refuse to emit for it (§4.4.8, §7). It wraps
// core.ErrCycle so callers can classify it by the shared §7 taxonomy.
var ErrNotAcyclic = fmt.Errorf("%w: function is not acyclic", core.ErrCycle)

// Walk drives one function's traversal: VisitBegin, then Visit for
// every node in the function's cached topological order (callers must
// have run Infer/Rebuild first), then VisitEnd. It rejects a function
// whose last Rebuild found a cycle, and panics on a double-visit
// attempt (guarded by an internal markset, per §4.5.3 "Each backend
// records that a node was visited to reject duplicate visitation").
func Walk(f *graph.Function, v Visitor) error {
	if !f.Acyclic() {
		return ErrNotAcyclic
	}
	if err := v.VisitBegin(f); err != nil {
		return err
	}
	var visited markset.Set
	for _, id := range f.Order() {
		if visited.Has(id) {
			panic(ErrDoubleVisit)
		}
		visited.Mark(id)
		n := f.Node(id)
		if err := v.Visit(f, n); err != nil {
			return err
		}
	}
	return v.VisitEnd(f)
}

// Reachable computes, starting from the assembly function, the set of
// function resource ids reachable via FunctionCall/FunctionGradient/
// NormalizeDistanceField references (§4.5 "other functions are emitted
// when reachable"). The assembly function's own id is always included
// even if nothing in it is itself reachable from anywhere else.
func Reachable(asm *assembly.Assembly, assemblyID uint64) map[uint64]bool {
	reached := map[uint64]bool{assemblyID: true}
	queue := []uint64{assemblyID}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		f, ok := asm.FindFunction(id)
		if !ok {
			continue
		}
		f.Nodes(func(n *graph.Node) {
			switch n.Kind {
			case graph.KindFunctionCall, graph.KindFunctionGradient, graph.KindNormalizeDistanceField:
			default:
				return
			}
			if n.FunctionID == 0 || reached[n.FunctionID] {
				return
			}
			reached[n.FunctionID] = true
			queue = append(queue, n.FunctionID)
		})
	}
	return reached
}

// OperandRef names where a Visit callback should read one operand of
// a node from: either a bound source port's unique name, or (Bound
// false) the literal value already resolved into text/float by the
// caller.
type OperandRef struct {
	Bound bool
	Name  string // "<nodeUnique>.<portShort>", only meaningful if Bound
	Param idset.ID
}

// ResolveOperand reports how to read parameter pid of node n: if
// bound, the source port's unique name; otherwise the parameter
// itself, for the caller to render its literal value.
func ResolveOperand(f *graph.Function, pid idset.ID) OperandRef {
	p := f.Parameter(pid)
	if p.Bound() {
		port := f.Port(p.Source.Port)
		return OperandRef{Bound: true, Name: f.PortSourceName(port), Param: pid}
	}
	return OperandRef{Bound: false, Param: pid}
}
