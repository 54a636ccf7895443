package graph

import (
	"github.com/quillfield/implicore/internal/idset"
	"github.com/quillfield/implicore/value"
)

// Source is a Parameter's binding to a Port (§3 "Link"). Name is a
// cached copy of the source port's unique name, refreshed whenever
// the binding is (re)established; it lets diagnostics avoid a registry
// lookup. The 3MF exporter does not read it: it derives source names
// from the port registry.
type Source struct {
	Port idset.ID
	Name string
}

// Parameter is a typed input endpoint on a node (§3 "Parameter").
// Exactly one of (Value, Source) is authoritative: when Source is
// non-nil the literal Value is ignored (invariant per §3).
type Parameter struct {
	ID                  idset.ID
	Node                idset.ID
	Type                value.Type
	Value               Literal
	Source              *Source
	InputSourceRequired bool
	Modifiable          bool
	IsArgument          bool
	ConsumedByFunction  bool
}

// Bound reports whether p's value comes from a linked Source rather
// than its literal Value.
func (p *Parameter) Bound() bool { return p.Source != nil }
