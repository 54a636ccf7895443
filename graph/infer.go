package graph

import "github.com/quillfield/implicore/value"

// Infer runs type inference and rule selection (§4.1, §4.4.1): it
// rebuilds the function's topological order, then walks that order
// selecting a Rule for every polymorphic node, stamping any
// still-untyped parameter or output port with the chosen width, and
// aggregating function validity from all-refs-resolved ∧ ¬cyclic ∧
// types-consistent. FunctionCall and the high-level nodes
// (FunctionGradient, NormalizeDistanceField) are left untouched: their
// parameter/port types are the linker's responsibility (§4.3) and the
// lowering pass's respectively (§4.4.5, §4.4.6).
func (f *Function) Infer() error {
	if err := f.Rebuild(); err != nil {
		return err
	}
	if !f.Acyclic() {
		// Cyclic: Rebuild already marked the function invalid; abort
		// cleanly rather than stamp types over a partial order
		// (§4.4.8).
		return nil
	}

	allValid := true
	for _, id := range f.order {
		if id == f.beginID || id == f.endID {
			continue
		}
		n := f.nodes.Get(id)
		desc, ok := kindInfo[n.Kind]
		if !ok || n.Kind.IsHighLevel() || n.Kind == KindFunctionCall {
			continue
		}
		if !desc.poly {
			n.Valid = true
			continue
		}

		names := n.ParamNames()
		operands := make([]value.Type, 0, len(names))
		for _, pname := range names {
			pid, _ := n.ParamID(pname)
			operands = append(operands, f.operandType(f.params.Get(pid)))
		}

		rule := value.SelectRule(desc.op, operands)
		n.Rule = rule
		n.Valid = rule != value.NoRule
		if !n.Valid {
			allValid = false
			continue
		}

		for _, pname := range names {
			pid, _ := n.ParamID(pname)
			p := f.params.Get(pid)
			if p.Type == value.Invalid {
				p.Type = rule.Type()
			}
		}
		outType := value.OutType(desc.op, rule)
		for _, oname := range n.OutputNames() {
			oid, _ := n.OutputID(oname)
			port := f.ports.Get(oid)
			if port.Type == value.Invalid {
				port.Type = outType
			}
		}
	}

	f.valid = allValid
	return nil
}

// operandType resolves the effective type an inference pass should
// use for a parameter: the already-inferred type of its bound source
// port, or its own stamped literal type when unbound.
func (f *Function) operandType(p *Parameter) value.Type {
	if p == nil {
		return value.Invalid
	}
	if p.Source != nil {
		port := f.ports.Get(p.Source.Port)
		if port == nil {
			return value.Invalid
		}
		return port.Type
	}
	return p.Type
}
