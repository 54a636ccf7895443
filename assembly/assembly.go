// Package assembly implements the function table and linker (C3,
// §4.3): the set of functions that make up a scene, keyed by resource
// id, plus the one distinguished assembly function that the backends
// evaluate.
package assembly

import (
	"sort"
	"sync"

	"golang.org/x/exp/maps"

	"github.com/quillfield/implicore/graph"
)

// Assembly holds every function in a scene, keyed by resource id
// (§3 "Assembly"). Reads and writes are guarded by a mutex, the same
// pattern the teacher uses to protect its global driver registry,
// generalized here from a process-wide table to a per-scene one; §5
// still reserves actual concurrent mutation for the caller (core
// operations are single-threaded per assembly instance) — the mutex
// only protects the table itself against concurrent Find/Add/Delete.
type Assembly struct {
	mu        sync.Mutex
	functions map[uint64]*graph.Function

	assemblyID  uint64
	hasAssembly bool

	fallback    graph.Literal
	hasFallback bool

	nextManagedID uint64
}

// New creates an empty Assembly.
func New() *Assembly {
	return &Assembly{functions: make(map[uint64]*graph.Function)}
}

// FindFunction returns the function registered at id, or ok=false.
func (a *Assembly) FindFunction(id uint64) (*graph.Function, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	f, ok := a.functions[id]
	return f, ok
}

// AddIfMissing returns the function at id, creating an empty one
// (Begin/End only) if none exists yet (§4.3 "Add-if-missing").
func (a *Assembly) AddIfMissing(id uint64, displayName string) *graph.Function {
	a.mu.Lock()
	defer a.mu.Unlock()
	if f, ok := a.functions[id]; ok {
		return f
	}
	f := graph.NewFunction(id, displayName)
	a.functions[id] = f
	return f
}

// DeleteFunction removes the function at id, if any (§4.3 "Delete
// function").
func (a *Assembly) DeleteFunction(id uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.functions, id)
	if a.hasAssembly && a.assemblyID == id {
		a.hasAssembly = false
	}
}

// SetAssemblyFunction designates id as the assembly's top-level entry
// point (§3 "Assembly": "one distinguished id designates the assembly
// function").
func (a *Assembly) SetAssemblyFunction(id uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.assemblyID = id
	a.hasAssembly = true
}

// AssemblyFunction returns the distinguished top-level function, or
// ok=false if none has been designated or it no longer exists.
func (a *Assembly) AssemblyFunction() (*graph.Function, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.hasAssembly {
		return nil, false
	}
	f, ok := a.functions[a.assemblyID]
	return f, ok
}

// SetFallback records the scene-wide fallback value substituted when
// the assembly's distance output is NaN/Inf (§3 "Assembly").
func (a *Assembly) SetFallback(lit graph.Literal) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.fallback = lit
	a.hasFallback = true
}

// Fallback returns the scene-wide fallback value, if one was recorded.
func (a *Assembly) Fallback() (graph.Literal, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.fallback, a.hasFallback
}

// Functions calls visit for every function in ascending resource-id
// order (deterministic iteration, needed by backends and by the
// duplicate comparator).
func (a *Assembly) Functions(visit func(id uint64, f *graph.Function)) {
	a.mu.Lock()
	ids := maps.Keys(a.functions)
	funcs := make(map[uint64]*graph.Function, len(a.functions))
	for k, v := range a.functions {
		funcs[k] = v
	}
	a.mu.Unlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		visit(id, funcs[id])
	}
}

// Len returns the number of functions in the table.
func (a *Assembly) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.functions)
}

// NextResourceID allocates a resource id above the current maximum,
// for functions synthesized by lowering (§4.3 "Lowering... inserted
// with fresh resource ids allocated above the current maximum").
func (a *Assembly) NextResourceID() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	max := a.nextManagedID
	for id := range a.functions {
		if id >= max {
			max = id + 1
		}
	}
	if a.nextManagedID < max {
		a.nextManagedID = max
	}
	id := a.nextManagedID
	a.nextManagedID++
	return id
}

// InsertFunction installs f at its own ResourceID, replacing any
// function already there.
func (a *Assembly) InsertFunction(f *graph.Function) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.functions[f.ResourceID] = f
}
