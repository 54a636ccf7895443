// Package graph implements the typed dataflow graph model: nodes,
// ports, parameters, links and per-function acyclic subgraphs (§3,
// §4.2).
package graph

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/quillfield/implicore/core"
	"github.com/quillfield/implicore/internal/idset"
	"github.com/quillfield/implicore/internal/markset"
	"github.com/quillfield/implicore/value"
)

var (
	// ErrUnknownNode is returned when an operation is given a node id
	// not present in the function's node table.
	ErrUnknownNode = errors.New("graph: unknown node id")
	// ErrUnknownParam is returned when an operation is given a
	// parameter id not present in the function's parameter registry.
	ErrUnknownParam = errors.New("graph: unknown parameter id")
	// ErrUnknownPort is returned when an operation is given a port id
	// not present in the function's port registry.
	ErrUnknownPort = errors.New("graph: unknown port id")
	// ErrStructuralNode is returned when a caller attempts to remove
	// Begin or End (invariant 4).
	ErrStructuralNode = errors.New("graph: cannot remove Begin or End")
	// ErrTypeMismatch is returned by Link when the source port and
	// target parameter are not compatible under the node's rule.
	ErrTypeMismatch = errors.New("graph: incompatible types")
	// ErrNotVariant names a target parameter that does not accept a
	// bound source. Link makes no such check and never returns it.
	ErrNotVariant = errors.New("graph: parameter does not accept a link")
	ErrWouldCycle = errors.New("graph: link would create a cycle")
	// ErrInvalidGraph is returned by Rebuild when a parameter's
	// source references a port outside the function (invariant 1).
	ErrInvalidGraph = errors.New("graph: dangling port reference")
)

// Function is a named dataflow graph with exactly one Begin (inputs)
// and one End (outputs), addressable by resource id within an
// Assembly (§3 "Function (Model)").
type Function struct {
	ResourceID  uint64
	DisplayName string
	Managed     bool

	dirty bool
	valid bool
	order []idset.ID

	nodes  idset.Arena[Node]
	ports  idset.Arena[Port]
	params idset.Arena[Parameter]

	beginID idset.ID
	endID   idset.ID

	names map[string]int // unique-name collision counters
}

// NewFunction creates a Function with a freshly allocated Begin and
// End (invariant 4).
func NewFunction(resourceID uint64, displayName string) *Function {
	f := &Function{ResourceID: resourceID, DisplayName: displayName, dirty: true}
	beginID, begin := f.nodes.Alloc()
	begin.ID = beginID
	begin.Kind = KindBegin
	begin.Category = CategoryInternal
	begin.UniqueName = f.uniqueName("Begin")
	begin.Valid = true
	f.beginID = beginID

	endID, end := f.nodes.Alloc()
	end.ID = endID
	end.Kind = KindEnd
	end.Category = CategoryInternal
	end.UniqueName = f.uniqueName("End")
	end.Valid = true
	f.endID = endID

	return f
}

// Begin returns the id of the function's single Begin node.
func (f *Function) Begin() idset.ID { return f.beginID }

// End returns the id of the function's single End node.
func (f *Function) End() idset.ID { return f.endID }

// Node returns a pointer to the node identified by id, or nil.
func (f *Function) Node(id idset.ID) *Node { return f.nodes.Get(id) }

// Port returns a pointer to the port identified by id, or nil.
func (f *Function) Port(id idset.ID) *Port { return f.ports.Get(id) }

// Parameter returns a pointer to the parameter identified by id, or
// nil.
func (f *Function) Parameter(id idset.ID) *Parameter { return f.params.Get(id) }

// Nodes calls visit for every node in the function, in arbitrary
// (arena) order; use Order for topological order.
func (f *Function) Nodes(visit func(*Node)) {
	f.nodes.Each(func(_ idset.ID, n *Node) { visit(n) })
}

// IsValid reports the function's last-computed aggregate validity
// (§4.4.1: "all-refs-resolved ∧ ¬cyclic ∧ types-consistent").
func (f *Function) IsValid() bool { return f.valid }

// Dirty reports whether the function has been mutated since the last
// Rebuild.
func (f *Function) Dirty() bool { return f.dirty }

func (f *Function) markDirty() { f.dirty = true }

// uniqueName returns a name guaranteed unique within the function,
// suffixing with an ascending integer on collision (§4.2 "Naming").
func (f *Function) uniqueName(base string) string {
	if f.names == nil {
		f.names = make(map[string]int)
	}
	n, seen := f.names[base]
	if !seen {
		f.names[base] = 1
		return base
	}
	for {
		candidate := base + strconv.Itoa(n)
		if _, collide := f.names[candidate]; !collide {
			f.names[base] = n + 1
			f.names[candidate] = 1
			return candidate
		}
		n++
	}
}

// CreateNode creates a new node of the given Kind with auto-assigned
// id and unique name, registering its signature's parameters and
// output ports (§4.2 "Create node").
func (f *Function) CreateNode(kind Kind) *Node {
	id, n := f.nodes.Alloc()
	n.ID = id
	n.Kind = kind
	n.Category = kind.Category()
	n.UniqueName = f.uniqueName(kind.Name())
	n.DisplayName = kind.Name()

	sig, hasStatic := signatures[kind]
	if hasStatic {
		for _, ps := range sig.Inputs {
			f.addParam(n, ps)
		}
		for _, os := range sig.Outputs {
			f.addOutput(n, os)
		}
	}
	f.markDirty()
	return n
}

func (f *Function) addParam(n *Node, ps ParamSpec) idset.ID {
	id, p := f.params.Alloc()
	p.ID = id
	p.Node = n.ID
	p.Type = ps.Type
	p.InputSourceRequired = ps.InputSourceRequired
	p.Modifiable = ps.Modifiable
	n.params.add(ps.Name, id)
	return id
}

func (f *Function) addOutput(n *Node, os PortSpec) idset.ID {
	id, p := f.ports.Alloc()
	p.ID = id
	p.Node = n.ID
	p.Type = os.Type
	p.Name = os.Name
	n.outputs.add(os.Name, id)
	return id
}

// AddNodeParam adds a new named parameter to an arbitrary node and
// returns its id. Used by the linker to mirror a callee's arguments
// onto a FunctionCall node (§4.3 "Propagate call I/O"); CreateNode
// covers every statically shaped Kind, so this is reserved for the
// call-family nodes whose shape is assembled at link time.
func (f *Function) AddNodeParam(nodeID idset.ID, spec ParamSpec) (idset.ID, error) {
	n := f.nodes.Get(nodeID)
	if n == nil {
		return 0, ErrUnknownNode
	}
	id := f.addParam(n, spec)
	f.markDirty()
	return id, nil
}

// AddNodeOutput adds a new named output port to an arbitrary node and
// returns its id (the call-family counterpart to AddNodeParam).
func (f *Function) AddNodeOutput(nodeID idset.ID, spec PortSpec) (idset.ID, error) {
	n := f.nodes.Get(nodeID)
	if n == nil {
		return 0, ErrUnknownNode
	}
	id := f.addOutput(n, spec)
	f.markDirty()
	return id, nil
}

// RemoveNodeOutput removes a named output port from a node, unbinding
// every parameter elsewhere in the function that sourced it. Used by
// the linker to drop a FunctionCall's mirrored outputs that no longer
// correspond to a callee End parameter.
func (f *Function) RemoveNodeOutput(nodeID idset.ID, name string) error {
	n := f.nodes.Get(nodeID)
	if n == nil {
		return ErrUnknownNode
	}
	id, ok := n.OutputID(name)
	if !ok {
		return nil
	}
	f.nodes.Each(func(_ idset.ID, other *Node) {
		for _, pname := range other.ParamNames() {
			pid, _ := other.ParamID(pname)
			p := f.params.Get(pid)
			if p != nil && p.Source != nil && p.Source.Port == id {
				p.Source = nil
			}
		}
	})
	n.outputs.remove(name)
	f.ports.Free(id)
	f.markDirty()
	return nil
}

// RemoveNodeParam removes a named parameter from a node.
func (f *Function) RemoveNodeParam(nodeID idset.ID, name string) error {
	n := f.nodes.Get(nodeID)
	if n == nil {
		return ErrUnknownNode
	}
	id, ok := n.ParamID(name)
	if !ok {
		return nil
	}
	n.params.remove(name)
	f.params.Free(id)
	f.markDirty()
	return nil
}

// AddArgument adds a function-signature input: an output port on
// Begin (mirroring the argument as a source) of the given name/type,
// and returns its port id. This is how a function's Begin.* sources
// are populated (§3 "Begin / End nodes").
func (f *Function) AddArgument(name string, t value.Type) idset.ID {
	begin := f.nodes.Get(f.beginID)
	id := f.addOutput(begin, PortSpec{Name: name, Type: t})
	f.markDirty()
	return id
}

// AddOutput adds a function-signature output: a parameter on End of
// the given name/type/default, and returns its parameter id.
func (f *Function) AddOutput(name string, t value.Type, def Literal) idset.ID {
	end := f.nodes.Get(f.endID)
	id := f.addParam(end, ParamSpec{Name: name, Type: t})
	p := f.params.Get(id)
	p.Value = def
	f.markDirty()
	return id
}

// InsertNode copies a node's logical structure (kind, names, literal
// values, parameter/output types) from srcFn's node src into f,
// reassigning its ports/parameters into f's id space. It does not
// rebind sources: callers copying a whole function do so in a second
// pass, once every node has been inserted, matching by unique port
// name rather than id (§4.4.7: "rebinds sources by matching unique
// port names... because ids are allocated fresh per copy").
func (f *Function) InsertNode(srcFn *Function, src *Node) *Node {
	dst := f.CreateNode(src.Kind)
	dst.DisplayName = src.DisplayName
	dst.FunctionID = src.FunctionID
	dst.ResourceRef = src.ResourceRef
	dst.Rule = src.Rule
	dst.ScalarOutput = src.ScalarOutput
	dst.VectorInput = src.VectorInput

	for _, name := range src.ParamNames() {
		srcID, _ := src.ParamID(name)
		srcP := srcFn.Parameter(srcID)
		dstID, ok := dst.ParamID(name)
		if !ok {
			dstID = f.addParam(dst, ParamSpec{Name: name})
		}
		dstP := f.Parameter(dstID)
		dstP.Type = srcP.Type
		dstP.Value = srcP.Value
		dstP.InputSourceRequired = srcP.InputSourceRequired
		dstP.Modifiable = srcP.Modifiable
		dstP.IsArgument = srcP.IsArgument
		dstP.ConsumedByFunction = srcP.ConsumedByFunction
	}
	for _, name := range src.OutputNames() {
		srcID, _ := src.OutputID(name)
		srcPort := srcFn.Port(srcID)
		dstID, ok := dst.OutputID(name)
		if !ok {
			dstID = f.addOutput(dst, PortSpec{Name: name})
		}
		dstPort := f.Port(dstID)
		dstPort.Type = srcPort.Type
		dstPort.Used = srcPort.Used
		dstPort.Hidden = srcPort.Hidden
	}
	f.markDirty()
	return dst
}

// RemoveNode removes a node and unbinds every consumer that
// referenced one of its output ports (§4.2 "Remove node", invariant
// 6). It is an error to remove Begin or End (invariant 4).
func (f *Function) RemoveNode(id idset.ID) error {
	if id == f.beginID || id == f.endID {
		return ErrStructuralNode
	}
	n := f.nodes.Get(id)
	if n == nil {
		return ErrUnknownNode
	}
	removed := make(map[idset.ID]bool, len(n.outputs.entries))
	for _, e := range n.outputs.entries {
		removed[e.id] = true
	}
	f.nodes.Each(func(_ idset.ID, other *Node) {
		for _, pname := range other.ParamNames() {
			pid, _ := other.ParamID(pname)
			p := f.params.Get(pid)
			if p != nil && p.Source != nil && removed[p.Source.Port] {
				p.Source = nil
			}
		}
	})
	for _, e := range n.params.entries {
		f.params.Free(e.id)
	}
	for _, e := range n.outputs.entries {
		f.ports.Free(e.id)
	}
	f.nodes.Free(id)
	f.markDirty()
	return nil
}

// Link binds a target parameter's source to a source port (§4.2
// "Link (port→parameter)"). It always verifies both ids are
// registered. Unless skipCheck is set, it also verifies that a
// non-modifiable target's type equals the source port's type (an
// Invalid type on either side passes) and that the link would not
// create a cycle. It does not check whether the target accepts a bound
// source. On any failure it returns an error without mutating the
// graph.
func (f *Function) Link(sourcePort, targetParam idset.ID, skipCheck bool) error {
	port := f.ports.Get(sourcePort)
	if port == nil {
		return fmt.Errorf("%w: source port %d", ErrUnknownPort, sourcePort)
	}
	param := f.params.Get(targetParam)
	if param == nil {
		return fmt.Errorf("%w: target parameter %d", ErrUnknownParam, targetParam)
	}
	if !skipCheck {
		if !param.Modifiable && param.Type != value.Invalid && port.Type != value.Invalid && param.Type != port.Type {
			return fmt.Errorf("%w: %w", core.ErrTypeMismatch, ErrTypeMismatch)
		}
		if f.wouldCycle(port.Node, param.Node) {
			return fmt.Errorf("%w: %w", core.ErrCycle, ErrWouldCycle)
		}
	}
	param.Source = &Source{Port: port.ID, Name: f.PortSourceName(port)}
	f.markDirty()
	return nil
}

// Unlink clears a parameter's bound source (§4.2 "Unlink").
func (f *Function) Unlink(targetParam idset.ID) error {
	param := f.params.Get(targetParam)
	if param == nil {
		return ErrUnknownParam
	}
	param.Source = nil
	f.markDirty()
	return nil
}

// wouldCycle reports whether adding an edge consumerNode ← sourceNode
// would create a cycle. That edge is only safe if consumerNode is not
// already reachable by walking sourceNode's existing dependencies: if
// it were, sourceNode would (transitively) depend on consumerNode, and
// the new edge would close a loop back through it.
func (f *Function) wouldCycle(sourceNode, consumerNode idset.ID) bool {
	if sourceNode == consumerNode {
		return true
	}
	var seen markset.Set
	var stack []idset.ID
	stack = append(stack, sourceNode)
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen.Has(cur) {
			continue
		}
		seen.Mark(cur)
		n := f.nodes.Get(cur)
		if n == nil {
			continue
		}
		for _, pname := range n.ParamNames() {
			pid, _ := n.ParamID(pname)
			p := f.params.Get(pid)
			if p == nil || p.Source == nil {
				continue
			}
			port := f.ports.Get(p.Source.Port)
			if port == nil {
				continue
			}
			if port.Node == consumerNode {
				return true
			}
			stack = append(stack, port.Node)
		}
	}
	return false
}
