package compiler

import "github.com/quillfield/implicore/assembly"

// snapshot is one entry of a history stack: a deep copy of an
// Assembly paired with the description of the edit that produced it
// (§4.4.7).
type snapshot struct {
	state       *assembly.Assembly
	description string
}

// History owns the undo/redo snapshot stacks for one Assembly (§4.4.7
// "History (undo/redo)"). There is no process-wide singleton: each
// Assembly being edited gets its own History, the same way the teacher
// keeps its stacks on the owning node.Graph rather than as a package
// global.
type History struct {
	undo []snapshot
	redo []snapshot

	// maxDepth bounds the undo stack; 0 means unbounded. Oldest entries
	// are dropped first once the bound is exceeded.
	maxDepth int
}

// NewHistory creates an empty History. maxDepth <= 0 means unbounded.
func NewHistory(maxDepth int) *History {
	return &History{maxDepth: maxDepth}
}

// StoreState pushes a deep copy of current onto the undo stack and
// clears the redo stack, unless the top of the undo stack is already
// structurally equal to current, in which case the push is skipped
// (§4.4.7: "skips the push if the top of undo equals the current
// assembly").
func (h *History) StoreState(current *assembly.Assembly, description string) bool {
	if len(h.undo) > 0 && assembly.Equal(h.undo[len(h.undo)-1].state, current) {
		return false
	}
	h.undo = append(h.undo, snapshot{state: assembly.Clone(current), description: description})
	h.redo = h.redo[:0]
	if h.maxDepth > 0 && len(h.undo) > h.maxDepth {
		h.undo = h.undo[len(h.undo)-h.maxDepth:]
	}
	return true
}

// CanUndo reports whether Undo has a snapshot to restore.
func (h *History) CanUndo() bool { return len(h.undo) > 0 }

// CanRedo reports whether Redo has a snapshot to restore.
func (h *History) CanRedo() bool { return len(h.redo) > 0 }

// Undo pops the most recent undo snapshot, pushes current onto redo
// under the same description, and returns the popped state for the
// caller to install as the live assembly (§4.4.7: "undo pushes the
// current assembly onto redo and restores the popped state"). ok is
// false if the undo stack is empty, in which case current is returned
// unchanged.
func (h *History) Undo(current *assembly.Assembly) (restored *assembly.Assembly, description string, ok bool) {
	if len(h.undo) == 0 {
		return current, "", false
	}
	top := h.undo[len(h.undo)-1]
	h.undo = h.undo[:len(h.undo)-1]
	h.redo = append(h.redo, snapshot{state: assembly.Clone(current), description: top.description})
	return top.state, top.description, true
}

// Redo is the symmetric counterpart of Undo: it pops the most recent
// redo snapshot, pushes current onto undo, and returns the popped
// state.
func (h *History) Redo(current *assembly.Assembly) (restored *assembly.Assembly, description string, ok bool) {
	if len(h.redo) == 0 {
		return current, "", false
	}
	top := h.redo[len(h.redo)-1]
	h.redo = h.redo[:len(h.redo)-1]
	h.undo = append(h.undo, snapshot{state: assembly.Clone(current), description: top.description})
	return top.state, top.description, true
}

// Describe returns the description recorded with the snapshot Undo
// would currently restore, or ok=false if the undo stack is empty.
func (h *History) Describe() (string, bool) {
	if len(h.undo) == 0 {
		return "", false
	}
	return h.undo[len(h.undo)-1].description, true
}

// UndoDepth and RedoDepth report the current stack sizes, mainly for
// tests and UI affordances (enabling/disabling undo/redo menu items).
func (h *History) UndoDepth() int { return len(h.undo) }
func (h *History) RedoDepth() int { return len(h.redo) }
