package assembly

import (
	"github.com/quillfield/implicore/graph"
	"github.com/quillfield/implicore/internal/idset"
)

// Clone deep-copies every function in a into a brand-new Assembly,
// for the history snapshot stack (§4.4.7: "Copying the assembly
// deep-clones every function's nodes, regenerates the port/parameter
// registries, and rebinds sources by matching unique port names").
func Clone(a *Assembly) *Assembly {
	out := New()
	a.Functions(func(_ uint64, f *graph.Function) {
		out.InsertFunction(cloneFunction(f))
	})
	a.mu.Lock()
	out.assemblyID = a.assemblyID
	out.hasAssembly = a.hasAssembly
	out.fallback = a.fallback
	out.hasFallback = a.hasFallback
	out.nextManagedID = a.nextManagedID
	a.mu.Unlock()
	return out
}

// cloneFunction builds a structurally identical copy of src with
// freshly allocated node/port/parameter ids. Every node is copied via
// Function.InsertNode in a first pass; a second pass rebinds each
// bound parameter's source by the "<nodeUnique>.<portShort>" name of
// the source port it pointed at in src, not by the source's raw id,
// since ids are not preserved across the copy.
func cloneFunction(src *graph.Function) *graph.Function {
	dst := graph.NewFunction(src.ResourceID, src.DisplayName)
	dst.Managed = src.Managed

	portByName := make(map[string]idset.ID)
	nodeByID := make(map[idset.ID]*graph.Node)

	srcBegin := src.Node(src.Begin())
	for _, name := range srcBegin.OutputNames() {
		id, _ := srcBegin.OutputID(name)
		port := src.Port(id)
		newID := dst.AddArgument(name, port.Type)
		portByName[dst.PortSourceName(dst.Port(newID))] = newID
	}
	nodeByID[src.Begin()] = dst.Node(dst.Begin())

	srcEnd := src.Node(src.End())
	for _, name := range srcEnd.ParamNames() {
		id, _ := srcEnd.ParamID(name)
		p := src.Parameter(id)
		dst.AddOutput(name, p.Type, p.Value)
	}
	nodeByID[src.End()] = dst.Node(dst.End())

	src.Nodes(func(n *graph.Node) {
		if n.ID == src.Begin() || n.ID == src.End() {
			return
		}
		dstNode := dst.InsertNode(src, n)
		nodeByID[n.ID] = dstNode
		for _, oname := range dstNode.OutputNames() {
			oid, _ := dstNode.OutputID(oname)
			portByName[dst.PortSourceName(dst.Port(oid))] = oid
		}
	})

	src.Nodes(func(n *graph.Node) {
		dstNode := nodeByID[n.ID]
		for _, pname := range n.ParamNames() {
			pid, _ := n.ParamID(pname)
			srcP := src.Parameter(pid)
			if !srcP.Bound() {
				continue
			}
			srcPort := src.Port(srcP.Source.Port)
			name := src.PortSourceName(srcPort)
			dstPortID, ok := portByName[name]
			if !ok {
				continue
			}
			dstParamID, ok := dstNode.ParamID(pname)
			if !ok {
				continue
			}
			dst.Link(dstPortID, dstParamID, true)
		}
	})

	dst.Infer()
	return dst
}
