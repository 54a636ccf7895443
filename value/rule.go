package value

// Rule is the chosen width-variant of a polymorphic node, fixed by
// type inference (§4.1/§4.4.1).
type Rule int

const (
	// NoRule means inference found no matching rule; the node is
	// invalid.
	NoRule Rule = iota
	RuleScalar
	RuleVec3
	RuleMat4
	// RuleDefault covers ops with exactly one shape regardless of
	// operand type (e.g. resource-id producing nodes).
	RuleDefault
)

// Type returns the Type a Rule stamps onto a node's ports/parameters
// of "rule width", i.e. excluding fixed-type operands such as a
// Clamp's own Scalar threshold count or a FunctionCall's per-argument
// types.
func (r Rule) Type() Type {
	switch r {
	case RuleScalar:
		return Scalar
	case RuleVec3:
		return Vec3
	case RuleMat4:
		return Mat4
	default:
		return Invalid
	}
}

// Op identifies a polymorphic operator family; see SPEC_FULL.md's node
// subtype catalogue.
type Op int

const (
	OpAdd Op = iota
	OpSub
	OpMul
	OpDiv
	OpAbs
	OpSqrt
	OpExp
	OpLog
	OpLog2
	OpLog10
	OpSign
	OpRound
	OpCeil
	OpFloor
	OpFract
	OpSin
	OpCos
	OpTan
	OpAsin
	OpAcos
	OpAtan
	OpSinh
	OpCosh
	OpTanh
	OpPow
	OpFmod
	OpMod
	OpMin
	OpMax
	OpClamp
	OpSelect
	OpDot
	OpCross
	OpLength
	OpMatVecMul
	OpTranspose
	OpInverse
)

// rules maps each Op to the set of Rules it accepts, in the order
// inference should try them. Rule selection (§4.1) walks this table
// and picks the first Rule whose Type matches every bound operand;
// this is a pure function of (op, operand types), per Design Notes
// ("encode the rule set as a table").
var rules = map[Op][]Rule{
	OpAdd: {RuleScalar, RuleVec3, RuleMat4},
	OpSub: {RuleScalar, RuleVec3, RuleMat4},
	OpMul: {RuleScalar, RuleVec3, RuleMat4},
	OpDiv: {RuleScalar, RuleVec3, RuleMat4},

	OpAbs:   {RuleScalar, RuleVec3, RuleMat4},
	OpSqrt:  {RuleScalar, RuleVec3, RuleMat4},
	OpExp:   {RuleScalar, RuleVec3, RuleMat4},
	OpLog:   {RuleScalar, RuleVec3, RuleMat4},
	OpLog2:  {RuleScalar, RuleVec3, RuleMat4},
	OpLog10: {RuleScalar, RuleVec3, RuleMat4},
	OpSign:  {RuleScalar, RuleVec3, RuleMat4},
	OpRound: {RuleScalar, RuleVec3, RuleMat4},
	OpCeil:  {RuleScalar, RuleVec3, RuleMat4},
	OpFloor: {RuleScalar, RuleVec3, RuleMat4},
	OpFract: {RuleScalar, RuleVec3, RuleMat4},

	OpSin:  {RuleScalar, RuleVec3, RuleMat4},
	OpCos:  {RuleScalar, RuleVec3, RuleMat4},
	OpTan:  {RuleScalar, RuleVec3, RuleMat4},
	OpAsin: {RuleScalar, RuleVec3, RuleMat4},
	OpAcos: {RuleScalar, RuleVec3, RuleMat4},
	OpAtan: {RuleScalar, RuleVec3, RuleMat4},
	OpSinh: {RuleScalar, RuleVec3, RuleMat4},
	OpCosh: {RuleScalar, RuleVec3, RuleMat4},
	OpTanh: {RuleScalar, RuleVec3, RuleMat4},

	OpPow:  {RuleScalar, RuleVec3, RuleMat4},
	OpFmod: {RuleScalar, RuleVec3, RuleMat4},
	OpMod:  {RuleScalar, RuleVec3, RuleMat4},
	OpMin:  {RuleScalar, RuleVec3, RuleMat4},
	OpMax:  {RuleScalar, RuleVec3, RuleMat4},

	OpClamp:  {RuleScalar, RuleVec3, RuleMat4},
	OpSelect: {RuleScalar, RuleVec3, RuleMat4},

	OpDot:    {RuleVec3},
	OpCross:  {RuleVec3},
	OpLength: {RuleVec3},

	OpMatVecMul: {RuleDefault},
	OpTranspose: {RuleMat4},
	OpInverse:   {RuleMat4},
}

// OutType returns the output Type produced by op under rule r. Most
// ops are elementwise (output type == r.Type()); the handful that are
// not (Dot, Length, MatVecMul) are special-cased here.
func OutType(op Op, r Rule) Type {
	switch op {
	case OpDot, OpLength:
		return Scalar
	case OpCross:
		return Vec3
	case OpMatVecMul:
		return Vec3
	case OpTranspose, OpInverse:
		return Mat4
	default:
		return r.Type()
	}
}

// SelectRule returns the first Rule accepted by op whose Type matches
// every type in operands, or NoRule if none matches (§4.1 "On
// failure... the node is marked invalid").
func SelectRule(op Op, operands []Type) Rule {
	candidates, ok := rules[op]
	if !ok {
		return NoRule
	}
	for _, r := range candidates {
		if r == RuleDefault {
			return r
		}
		want := r.Type()
		match := true
		for _, t := range operands {
			if t != want {
				match = false
				break
			}
		}
		if match {
			return r
		}
	}
	return NoRule
}
