package graph

// InputsPseudoNode is the literal pseudo-node name the 3MF boundary
// uses to denote a function's Begin when parsing/writing source names
// of the form "nodeId.port" (§4.2 "Naming", §6.1).
const InputsPseudoNode = "inputs"

// PortSourceName returns the "<nodeUnique>.<portShort>" source name
// the 3MF boundary reads and writes for a port (§4.2 "Naming", §6.1).
// Begin's ports are named using the InputsPseudoNode convention
// instead of Begin's own unique name.
func (f *Function) PortSourceName(port *Port) string {
	node := f.nodes.Get(port.Node)
	if node == nil {
		return port.Name
	}
	owner := node.UniqueName
	if port.Node == f.beginID {
		owner = InputsPseudoNode
	}
	return owner + "." + port.Name
}
