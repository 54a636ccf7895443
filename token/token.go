// Package token implements the two cooperative handles the core
// shares with its external collaborators (§5 "External collaboration
// with the GPU runtime uses two cooperative tokens"): an assembly
// token guarding the in-memory graph, and a compute token guarding
// the GPU runtime's codegen/launch sequence. Neither token causes a
// core pass to suspend; blocking happens only at acquisition (§5 "No
// operation within the core suspends").
package token

import (
	"context"
	"sync"
)

// Token represents exclusive access to the resource a Handle guards.
// Release must be called exactly once; calling it more than once is a
// caller bug (the same discipline the teacher applies to its driver
// handles: acquire once, release once).
type Token struct {
	release func()
	once    sync.Once
}

// Release gives up the token. Safe to call from any goroutine; a
// second call is a no-op.
func (t *Token) Release() {
	t.once.Do(func() {
		if t.release != nil {
			t.release()
		}
	})
}

// Handle is a single-holder mutex-like gate. It is the shared
// implementation behind AssemblyToken and ComputeToken: at most one
// Token is outstanding at a time.
type Handle struct {
	mu  sync.Mutex
	sem chan struct{}
}

// NewHandle creates a Handle ready to be acquired.
func NewHandle() *Handle {
	h := &Handle{sem: make(chan struct{}, 1)}
	h.sem <- struct{}{}
	return h
}

// Wait blocks until the handle is acquirable or ctx is done, whichever
// comes first. A nil *Token and ctx.Err() are returned on cancellation.
func (h *Handle) Wait(ctx context.Context) (*Token, error) {
	select {
	case <-h.sem:
		return h.newToken(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Request returns a Token immediately if the handle is free, or
// ok=false without blocking.
func (h *Handle) Request() (*Token, bool) {
	select {
	case <-h.sem:
		return h.newToken(), true
	default:
		return nil, false
	}
}

func (h *Handle) newToken() *Token {
	return &Token{release: func() {
		h.sem <- struct{}{}
	}}
}

// AssemblyToken guards exclusive read/write access to one in-memory
// Assembly (§5 "Assembly token"). The core never holds one itself —
// it is acquired by external callers (the GUI, the 3MF importer, a
// compile-then-execute driver loop) that need to serialize a batch of
// graph mutations or a pass invocation against concurrent access.
type AssemblyToken struct {
	*Handle
}

// NewAssemblyToken creates a fresh, unheld AssemblyToken handle.
func NewAssemblyToken() *AssemblyToken { return &AssemblyToken{NewHandle()} }

// ComputeToken guards the GPU runtime's codegen-then-launch sequence
// (§5 "Compute token. Symmetrical handle for the GPU runtime. Passes
// that will be followed by execution acquire it to serialize codegen
// and kernel launches").
type ComputeToken struct {
	*Handle
}

// NewComputeToken creates a fresh, unheld ComputeToken handle.
func NewComputeToken() *ComputeToken { return &ComputeToken{NewHandle()} }
