// Package core collects the error-kind taxonomy shared by the graph,
// assembly, compiler and backend packages (§7 "Error handling
// design"). Each sentinel here is wrapped with fmt.Errorf by the
// package that actually detects the failure, matching the teacher's
// own style of exported sentinel errors (driver.ErrNotInstalled,
// driver.ErrNoDevice, ...) rather than a bespoke error type hierarchy.
package core

import "errors"

// ErrReferenceResolution means a link, function call or resource-id
// node referenced something that does not exist: a missing port, a
// missing function, a missing resource (§7). The enclosing function
// is marked invalid; the pass reports this once and continues.
var ErrReferenceResolution = errors.New("core: reference resolution failure")

// ErrTypeMismatch means no rule matched a node's bound sources (§7).
// Reported per node; the node is marked invalid.
var ErrTypeMismatch = errors.New("core: type mismatch")

// ErrCycle means a function's dataflow graph is not acyclic (§7).
// The function is marked invalid; backends refuse to emit for it.
var ErrCycle = errors.New("core: cyclic graph")

// ErrLoweringInfeasible means a FunctionGradient or
// NormalizeDistanceField node named a callee, scalar output or vector
// input that could not be resolved (§7). The offending node is left
// intact; the lowering pass records the failure and continues.
var ErrLoweringInfeasible = errors.New("core: lowering infeasible")

// ErrUnsupportedOpcode means a backend encountered a node kind it
// cannot emit in its output form — currently only FunctionGradient
// reaching the command-stream backend unlowered (§4.5.2, §7). The
// enclosing function is skipped in that backend only; this is a
// warning, never a silent drop.
var ErrUnsupportedOpcode = errors.New("core: unsupported opcode in backend")

// ErrExternalIO means a failure at the 3MF import/export boundary
// (§7): a malformed archive entry, an unreadable stream, an
// unresolvable cross-reference in the source file. The importer
// leaves the assembly in a consistent state; it is not strict.
var ErrExternalIO = errors.New("core: external I/O failure")

// Kind classifies an error produced by this module against the §7
// taxonomy, by unwrapping until one of the sentinels above matches.
// Callers that want to branch on error kind (a GUI status bar, a test
// assertion) use this instead of comparing error strings.
func Kind(err error) error {
	for _, k := range []error{
		ErrReferenceResolution,
		ErrTypeMismatch,
		ErrCycle,
		ErrLoweringInfeasible,
		ErrUnsupportedOpcode,
		ErrExternalIO,
	} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
