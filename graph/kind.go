package graph

import "github.com/quillfield/implicore/value"

// Category is the closed set of node categories used for UI grouping
// and backend dispatch (§3 "Node. Attributes: ... category").
type Category int

const (
	CategoryInternal Category = iota
	CategoryMath
	CategoryPrimitive
	CategoryTransformation
	CategoryBoolOp
	CategoryLattice
	CategoryMisc
	CategoryExport
	Category3MF
)

// Kind is the closed set of node subtypes (SPEC_FULL.md's node
// subtype catalogue). Each Kind has one entry in kindInfo describing
// its category and, for polymorphic Kinds, the value.Op driving rule
// selection.
type Kind int

const (
	KindBegin Kind = iota
	KindEnd

	KindAdd
	KindSub
	KindMul
	KindDiv

	KindSin
	KindCos
	KindTan
	KindAsin
	KindAcos
	KindAtan
	KindSinh
	KindCosh
	KindTanh

	KindAbs
	KindSqrt
	KindPow
	KindExp
	KindLog
	KindLog2
	KindLog10
	KindSign
	KindRound
	KindCeil
	KindFloor
	KindFract
	KindFmod
	KindMod

	KindMin
	KindMax
	KindClamp
	KindSelect

	KindDot
	KindCross
	KindLength
	KindVectorFromScalar
	KindComposeVector
	KindDecomposeVector

	KindComposeMatrix
	KindComposeMatrixFromColumns
	KindComposeMatrixFromRows
	KindMatrixVectorMul
	KindTranspose
	KindInverse
	KindTransform

	KindConstantScalar
	KindConstantVector
	KindConstantMatrix

	KindResourceId
	KindSignedDistanceToMesh
	KindUnsignedDistanceToMesh
	KindImageSampler
	KindBoxMinMax

	KindFunctionCall
	KindFunctionGradient
	KindNormalizeDistanceField
)

// kindDesc describes one Kind's fixed metadata.
type kindDesc struct {
	name     string
	category Category
	op       value.Op
	poly     bool // true if rule is chosen by SelectRule over operand types
}

var kindInfo = map[Kind]kindDesc{
	KindBegin: {"Begin", CategoryInternal, 0, false},
	KindEnd:   {"End", CategoryInternal, 0, false},

	KindAdd: {"Add", CategoryMath, value.OpAdd, true},
	KindSub: {"Sub", CategoryMath, value.OpSub, true},
	KindMul: {"Mul", CategoryMath, value.OpMul, true},
	KindDiv: {"Div", CategoryMath, value.OpDiv, true},

	KindSin:  {"Sin", CategoryMath, value.OpSin, true},
	KindCos:  {"Cos", CategoryMath, value.OpCos, true},
	KindTan:  {"Tan", CategoryMath, value.OpTan, true},
	KindAsin: {"Asin", CategoryMath, value.OpAsin, true},
	KindAcos: {"Acos", CategoryMath, value.OpAcos, true},
	KindAtan: {"Atan", CategoryMath, value.OpAtan, true},
	KindSinh: {"Sinh", CategoryMath, value.OpSinh, true},
	KindCosh: {"Cosh", CategoryMath, value.OpCosh, true},
	KindTanh: {"Tanh", CategoryMath, value.OpTanh, true},

	KindAbs:   {"Abs", CategoryMath, value.OpAbs, true},
	KindSqrt:  {"Sqrt", CategoryMath, value.OpSqrt, true},
	KindPow:   {"Pow", CategoryMath, value.OpPow, true},
	KindExp:   {"Exp", CategoryMath, value.OpExp, true},
	KindLog:   {"Log", CategoryMath, value.OpLog, true},
	KindLog2:  {"Log2", CategoryMath, value.OpLog2, true},
	KindLog10: {"Log10", CategoryMath, value.OpLog10, true},
	KindSign:  {"Sign", CategoryMath, value.OpSign, true},
	KindRound: {"Round", CategoryMath, value.OpRound, true},
	KindCeil:  {"Ceil", CategoryMath, value.OpCeil, true},
	KindFloor: {"Floor", CategoryMath, value.OpFloor, true},
	KindFract: {"Fract", CategoryMath, value.OpFract, true},
	KindFmod:  {"Fmod", CategoryMath, value.OpFmod, true},
	KindMod:   {"Mod", CategoryMath, value.OpMod, true},

	KindMin:    {"Min", CategoryBoolOp, value.OpMin, true},
	KindMax:    {"Max", CategoryBoolOp, value.OpMax, true},
	KindClamp:  {"Clamp", CategoryBoolOp, value.OpClamp, true},
	KindSelect: {"Select", CategoryBoolOp, value.OpSelect, true},

	KindDot:               {"Dot", CategoryMath, value.OpDot, true},
	KindCross:             {"Cross", CategoryMath, value.OpCross, true},
	KindLength:            {"Length", CategoryMath, value.OpLength, true},
	KindVectorFromScalar:  {"VectorFromScalar", CategoryMisc, 0, false},
	KindComposeVector:     {"ComposeVector", CategoryMisc, 0, false},
	KindDecomposeVector:   {"DecomposeVector", CategoryMisc, 0, false},

	KindComposeMatrix:           {"ComposeMatrix", CategoryMisc, 0, false},
	KindComposeMatrixFromColumns: {"ComposeMatrixFromColumns", CategoryMisc, 0, false},
	KindComposeMatrixFromRows:   {"ComposeMatrixFromRows", CategoryMisc, 0, false},
	KindMatrixVectorMul:         {"MatrixVectorMul", CategoryMath, value.OpMatVecMul, true},
	KindTranspose:               {"Transpose", CategoryMath, value.OpTranspose, true},
	KindInverse:                 {"Inverse", CategoryMath, value.OpInverse, true},
	KindTransform:                {"Transform", CategoryTransformation, 0, false},

	KindConstantScalar: {"ConstantScalar", CategoryPrimitive, 0, false},
	KindConstantVector: {"ConstantVector", CategoryPrimitive, 0, false},
	KindConstantMatrix: {"ConstantMatrix", CategoryPrimitive, 0, false},

	KindResourceId:             {"ResourceId", CategoryPrimitive, 0, false},
	KindSignedDistanceToMesh:   {"SignedDistanceToMesh", CategoryLattice, 0, false},
	KindUnsignedDistanceToMesh: {"UnsignedDistanceToMesh", CategoryLattice, 0, false},
	KindImageSampler:           {"ImageSampler", CategoryLattice, 0, false},
	KindBoxMinMax:              {"BoxMinMax", CategoryLattice, 0, false},

	KindFunctionCall:           {"FunctionCall", CategoryExport, 0, false},
	KindFunctionGradient:       {"FunctionGradient", Category3MF, 0, false},
	KindNormalizeDistanceField: {"NormalizeDistanceField", Category3MF, 0, false},
}

// Name returns the node subtype's display name, used to derive
// unique names and kernel-emission helper names.
func (k Kind) Name() string {
	if d, ok := kindInfo[k]; ok {
		return d.name
	}
	return "Unknown"
}

// Category returns k's fixed Category.
func (k Kind) Category() Category { return kindInfo[k].category }

// IsHighLevel reports whether k is lowered away before backend
// emission (§4.4.5, §4.4.6).
func (k Kind) IsHighLevel() bool {
	return k == KindFunctionGradient || k == KindNormalizeDistanceField
}
