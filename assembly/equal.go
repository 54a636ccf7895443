package assembly

import (
	"fmt"
	"sort"
	"strings"

	"github.com/quillfield/implicore/graph"
	"github.com/quillfield/implicore/value"
)

// Equal is the assembly equality predicate (§4.3 "Equality"), used by
// the history to elide no-op undo/redo snapshots (§4.4.7) and by
// duplicate detection at the 3MF merge boundary (§4.3 "Duplicate
// detection"). It compares function count, then each pair of
// same-keyed functions structurally: node count, node kind/rule
// multiset, and every parameter's bound-source name or literal text.
func Equal(a, b *Assembly) bool {
	if a.Len() != b.Len() {
		return false
	}
	equal := true
	a.Functions(func(id uint64, fa *graph.Function) {
		if !equal {
			return
		}
		fb, ok := b.FindFunction(id)
		if !ok || !FunctionEqual(fa, fb) {
			equal = false
		}
	})
	return equal
}

// FunctionEqual reports whether fa and fb have the same size and the
// same multiset of node fingerprints. It does not attempt a true
// graph-isomorphism match: two functions built in a different node
// order with equivalent semantics may compare unequal. This is
// adequate for its two call sites, which compare a function against a
// copy of itself (history) or against a byte-identical import
// (merge), never against an independently re-authored equivalent.
func FunctionEqual(fa, fb *graph.Function) bool {
	var fpa, fpb []string
	fa.Nodes(func(n *graph.Node) { fpa = append(fpa, nodeFingerprint(fa, n)) })
	fb.Nodes(func(n *graph.Node) { fpb = append(fpb, nodeFingerprint(fb, n)) })
	if len(fpa) != len(fpb) {
		return false
	}
	sort.Strings(fpa)
	sort.Strings(fpb)
	for i := range fpa {
		if fpa[i] != fpb[i] {
			return false
		}
	}
	return true
}

func nodeFingerprint(f *graph.Function, n *graph.Node) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d|%d|%d|%d", n.Kind, n.Rule, n.FunctionID, n.ResourceRef)

	var params []string
	for _, pname := range n.ParamNames() {
		pid, _ := n.ParamID(pname)
		p := f.Parameter(pid)
		if p.Bound() {
			port := f.Port(p.Source.Port)
			params = append(params, fmt.Sprintf("%s=>%s", pname, f.PortSourceName(port)))
		} else {
			params = append(params, fmt.Sprintf("%s=%s", pname, literalText(p.Type, p.Value)))
		}
	}
	sort.Strings(params)
	for _, s := range params {
		b.WriteByte('|')
		b.WriteString(s)
	}

	var outs []string
	for _, oname := range n.OutputNames() {
		oid, _ := n.OutputID(oname)
		port := f.Port(oid)
		outs = append(outs, fmt.Sprintf("%s:%d:%t", oname, port.Type, port.Used))
	}
	sort.Strings(outs)
	for _, s := range outs {
		b.WriteByte('|')
		b.WriteString(s)
	}
	return b.String()
}

func literalText(t value.Type, lit graph.Literal) string {
	return fmt.Sprintf("%s(%v,%v,%v,%d)", t, lit.Scalar, lit.Vec3, lit.Mat4, lit.Resource)
}
