package graph

import (
	"fmt"
	"sort"

	"github.com/quillfield/implicore/core"
	"github.com/quillfield/implicore/internal/idset"
	"github.com/quillfield/implicore/internal/markset"
)

// Rebuild scans every parameter's source to build the dependency
// adjacency list, then computes a topological order, breaking ties by
// ascending node id for determinism (§4.2 "Rebuild & order", §4.4.2).
// If any parameter's source references a port id absent from the
// function's port registry, the function is marked invalid and the
// pass aborts without promoting partial state (ErrInvalidGraph).
func (f *Function) Rebuild() error {
	deps := make(map[idset.ID][]idset.ID) // node -> nodes it depends on
	indegree := make(map[idset.ID]int)

	var nodeIDs []idset.ID
	f.nodes.Each(func(id idset.ID, _ *Node) {
		nodeIDs = append(nodeIDs, id)
		indegree[id] = 0
	})

	for _, nid := range nodeIDs {
		n := f.nodes.Get(nid)
		seen := make(map[idset.ID]bool)
		for _, pname := range n.ParamNames() {
			pid, _ := n.ParamID(pname)
			p := f.params.Get(pid)
			if p == nil || p.Source == nil {
				continue
			}
			port := f.ports.Get(p.Source.Port)
			if port == nil {
				f.valid = false
				return fmt.Errorf("%w: %w", core.ErrReferenceResolution, ErrInvalidGraph)
			}
			if port.Node == nid || seen[port.Node] {
				continue
			}
			seen[port.Node] = true
			deps[nid] = append(deps[nid], port.Node)
			indegree[nid]++
		}
	}

	sort.Slice(nodeIDs, func(i, j int) bool { return nodeIDs[i] < nodeIDs[j] })

	// Kahn's algorithm, seeded with zero-indegree nodes in ascending
	// id order and re-sorting the ready set on every extraction so
	// ties always resolve to the lowest id (§4.4.2).
	var ready []idset.ID
	for _, id := range nodeIDs {
		if indegree[id] == 0 {
			ready = append(ready, id)
		}
	}
	// consumers[d] = nodes that depend on d
	consumers := make(map[idset.ID][]idset.ID)
	for nid, ds := range deps {
		for _, d := range ds {
			consumers[d] = append(consumers[d], nid)
		}
	}
	for _, cs := range consumers {
		sort.Slice(cs, func(i, j int) bool { return cs[i] < cs[j] })
	}

	order := make([]idset.ID, 0, len(nodeIDs))
	for len(ready) > 0 {
		sort.Slice(ready, func(i, j int) bool { return ready[i] < ready[j] })
		cur := ready[0]
		ready = ready[1:]
		order = append(order, cur)
		for _, c := range consumers[cur] {
			indegree[c]--
			if indegree[c] == 0 {
				ready = append(ready, c)
			}
		}
	}

	if len(order) != len(nodeIDs) {
		// A positive indegree remains on every node in a cycle:
		// function invalid, reported rather than silently corrected
		// (invariant 3).
		f.valid = false
		f.dirty = false
		f.order = nil
		return nil
	}

	f.order = order
	f.dirty = false
	return nil
}

// Order returns the function's cached topological order. Callers must
// call Rebuild first if Dirty() is true.
func (f *Function) Order() []idset.ID { return f.order }

// Acyclic reports whether the last Rebuild found no cycle (used by
// IsValid's aggregation and by backends refusing to emit, §4.4.8).
func (f *Function) Acyclic() bool { return len(f.order) == f.nodes.Len() }

// Reachable returns the set of node ids backward-reachable from End,
// plus Begin and End themselves (§4.2 "Simplify"). It does not mutate
// the function.
func (f *Function) Reachable() markset.Set {
	var seen markset.Set
	seen.Mark(f.beginID)
	seen.Mark(f.endID)
	var stack []idset.ID
	stack = append(stack, f.endID)
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
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
			if port == nil || seen.Has(port.Node) {
				continue
			}
			seen.Mark(port.Node)
			stack = append(stack, port.Node)
		}
	}
	return seen
}
