package graph

import "github.com/quillfield/implicore/internal/idset"

// Simplify removes every node not backward-reachable from End (Begin
// and End are always kept), using the public RemoveNode operation so
// consumer-unbinding runs for each removal (§4.2 "Simplify", §4.4.4).
// It returns the number of nodes removed. Only non-managed functions
// should be simplified (§4.4.4); Simplify itself does not check
// Managed, leaving that decision to the caller (the compiler pass
// that drives it across an Assembly).
func (f *Function) Simplify() int {
	reachable := f.Reachable()
	var dead []idset.ID
	f.nodes.Each(func(id idset.ID, _ *Node) {
		if !reachable.Has(id) {
			dead = append(dead, id)
		}
	})
	for _, id := range dead {
		f.RemoveNode(id)
	}
	return len(dead)
}
