package graph

import (
	"github.com/quillfield/implicore/internal/idset"
	"github.com/quillfield/implicore/value"
)

// Port is a typed output endpoint on a node (§3 "Port"). Ports are
// owned by their node and registered in the owning Function's port
// registry; their id is stable for the node's lifetime (invariant 7).
type Port struct {
	ID     idset.ID
	Node   idset.ID
	Type   value.Type
	Name   string
	Used   bool
	Hidden bool
}
