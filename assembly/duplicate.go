package assembly

import (
	"sort"

	"golang.org/x/exp/maps"

	"github.com/quillfield/implicore/graph"
	"github.com/quillfield/implicore/value"
)

// ResolveDuplicates implements merge-time duplicate detection (§4.3
// "Duplicate detection"): every function in merged that is judged
// equivalent (FunctionEqual) to some function already in original is
// a duplicate. Every ResourceId-producing reference inside merged
// that points at a duplicate is rewritten to point at the original
// instead, the duplicate functions are deleted from merged, and the
// whole pass repeats until a round finds nothing new — rewriting a
// duplicate's own references can turn a function that looked unique
// into a newly recognizable duplicate of a third one.
//
// It returns the number of functions removed as duplicates.
func ResolveDuplicates(original, merged *Assembly) int {
	removed := 0
	for {
		remap := findDuplicates(original, merged)
		if len(remap) == 0 {
			return removed
		}
		merged.Functions(func(_ uint64, f *graph.Function) {
			rewriteResourceRefs(f, remap)
		})
		ids := maps.Keys(remap)
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		for _, dupID := range ids {
			merged.DeleteFunction(dupID)
			removed++
		}
	}
}

// findDuplicates returns, for every function in merged equivalent to
// some function in original (and not already the same resource id),
// a mapping from the duplicate's id to the original's id.
func findDuplicates(original, merged *Assembly) map[uint64]uint64 {
	remap := make(map[uint64]uint64)
	merged.Functions(func(eID uint64, e *graph.Function) {
		original.Functions(func(oID uint64, o *graph.Function) {
			if eID == oID {
				return
			}
			if _, already := remap[eID]; already {
				return
			}
			if FunctionEqual(e, o) {
				remap[eID] = oID
			}
		})
	})
	return remap
}

func rewriteResourceRefs(f *graph.Function, remap map[uint64]uint64) {
	f.Nodes(func(n *graph.Node) {
		if to, ok := remap[n.ResourceRef]; ok {
			n.ResourceRef = to
		}
		if to, ok := remap[n.FunctionID]; ok {
			n.FunctionID = to
		}
		for _, pname := range n.ParamNames() {
			pid, _ := n.ParamID(pname)
			p := f.Parameter(pid)
			if p.Bound() || p.Type != value.ResourceId {
				continue
			}
			if to, ok := remap[p.Value.Resource]; ok {
				p.Value.Resource = to
			}
		}
	})
}
