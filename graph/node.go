package graph

import (
	"github.com/quillfield/implicore/internal/idset"
	"github.com/quillfield/implicore/value"
)

// namedRef is one entry of a Node's ordered parameter or output-port
// list: a name (unique within the node) paired with the id of the
// Parameter/Port it names.
type namedRef struct {
	name string
	id   idset.ID
}

// refList is an insertion-ordered, name-unique association list. It
// backs Node.Params and Node.Outputs (§3: "ordered map of parameters
// (names unique within the node)").
type refList struct {
	entries []namedRef
	byName  map[string]int
}

func (l *refList) add(name string, id idset.ID) {
	if l.byName == nil {
		l.byName = make(map[string]int)
	}
	if idx, ok := l.byName[name]; ok {
		l.entries[idx].id = id
		return
	}
	l.byName[name] = len(l.entries)
	l.entries = append(l.entries, namedRef{name, id})
}

func (l *refList) remove(name string) {
	idx, ok := l.byName[name]
	if !ok {
		return
	}
	l.entries = append(l.entries[:idx], l.entries[idx+1:]...)
	delete(l.byName, name)
	for i := idx; i < len(l.entries); i++ {
		l.byName[l.entries[i].name] = i
	}
}

func (l *refList) get(name string) (idset.ID, bool) {
	idx, ok := l.byName[name]
	if !ok {
		return 0, false
	}
	return l.entries[idx].id, true
}

// Names returns the list's names in insertion order.
func (l *refList) Names() []string {
	names := make([]string, len(l.entries))
	for i, e := range l.entries {
		names[i] = e.name
	}
	return names
}

func (l *refList) IDs() []idset.ID {
	ids := make([]idset.ID, len(l.entries))
	for i, e := range l.entries {
		ids[i] = e.id
	}
	return ids
}

// Node is one vertex of a Function's dataflow graph (§3 "Node").
type Node struct {
	ID          idset.ID
	Kind        Kind
	Category    Category
	DisplayName string
	UniqueName  string
	Rule        value.Rule
	Valid       bool

	// FunctionID is meaningful only for KindFunctionCall,
	// KindFunctionGradient and KindNormalizeDistanceField: the
	// resource id of the referenced function.
	FunctionID uint64

	// ResourceRef is meaningful only for resource-consuming node
	// kinds (KindResourceId, mesh/image samplers): the external
	// resource id (§5 "Shared-resource policy").
	ResourceRef uint64

	// ScalarOutput and VectorInput are meaningful only for
	// KindFunctionGradient and KindNormalizeDistanceField: the
	// callee's chosen scalar output name and Vec3 input name the
	// lowering pass differentiates with respect to (§4.4.5, §4.4.6).
	ScalarOutput string
	VectorInput  string

	params  refList
	outputs refList
}

// ParamNames returns the node's parameter names in declaration order.
func (n *Node) ParamNames() []string { return n.params.Names() }

// OutputNames returns the node's output port names in declaration
// order.
func (n *Node) OutputNames() []string { return n.outputs.Names() }

// ParamID returns the id of the named parameter, or ok=false if the
// node has no such parameter.
func (n *Node) ParamID(name string) (idset.ID, bool) { return n.params.get(name) }

// OutputID returns the id of the named output port, or ok=false if
// the node has no such output.
func (n *Node) OutputID(name string) (idset.ID, bool) { return n.outputs.get(name) }

// PrimaryOutput returns the id of the node's first declared output
// port, used by the command-stream backend to size a node's scratch
// range (§4.5.2). Nodes with no outputs (End, and a Begin with no
// arguments) return ok=false.
func (n *Node) PrimaryOutput() (idset.ID, bool) {
	ids := n.outputs.IDs()
	if len(ids) == 0 {
		return 0, false
	}
	return ids[0], true
}
