// Package resource implements the core's view of the external,
// read-only-during-pass resource store (§5 "Shared-resource policy"):
// meshes, 3D image stacks, beam lattices and VDB grids, all referenced
// by nodes only through an opaque ResourceId. The core validates a
// reference's existence through this interface; it never inspects a
// resource's contents — that is the external GPU runtime's job.
package resource

import "sync"

// Kind identifies which external collaborator owns a resource id's
// backing data. The core only needs to distinguish these at the 3MF
// boundary (§6.1) and when a backend decides which shim function to
// call (§4.5.1 "payload(...)" vs "sample_image3d(...)").
type Kind int

const (
	KindUnknown Kind = iota
	KindMesh
	KindImage3D
	KindBeamLattice
	KindComponentsObject
)

func (k Kind) String() string {
	switch k {
	case KindMesh:
		return "Mesh"
	case KindImage3D:
		return "Image3D"
	case KindBeamLattice:
		return "BeamLattice"
	case KindComponentsObject:
		return "ComponentsObject"
	default:
		return "Unknown"
	}
}

// Table is the core's read-only-during-pass view onto the resource
// store: a lookup from ResourceId to Kind, nothing more (§5: "Nodes
// reference resources by id; ids are opaque to the core and validated
// only at the 3MF boundary and by the GPU runtime"). A default
// in-memory Table is provided for tests and for the 3MF importer to
// populate directly from archive contents; a GPU-backed Table is the
// external runtime's responsibility and is out of this module's
// scope.
type Table interface {
	Lookup(id uint64) (Kind, bool)
}

// Memory is an in-memory Table, safe for concurrent use. It is the
// default Table implementation: the 3MF importer registers one entry
// per mesh/image3D/beam-lattice/components resource it reads (§6.1),
// and tests populate it directly.
type Memory struct {
	mu      sync.RWMutex
	entries map[uint64]Kind
}

// NewMemory creates an empty Memory table.
func NewMemory() *Memory {
	return &Memory{entries: make(map[uint64]Kind)}
}

// Register records id as a resource of the given Kind, replacing any
// existing entry.
func (m *Memory) Register(id uint64, kind Kind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[id] = kind
}

// Lookup implements Table.
func (m *Memory) Lookup(id uint64) (Kind, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	k, ok := m.entries[id]
	return k, ok
}

// Len returns the number of registered resources.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
