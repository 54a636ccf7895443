package graph

import "github.com/quillfield/implicore/value"

// ParamSpec describes one parameter slot in a node's fixed signature.
// Type == value.Invalid means the parameter's width/type is fixed by
// the node's selected Rule at inference time rather than being fixed
// in advance (§4.1: "each parameter and each output port is stamped
// with its concrete type" once a rule is chosen).
type ParamSpec struct {
	Name                string
	Type                value.Type
	InputSourceRequired bool
	Modifiable          bool
}

// PortSpec describes one output slot in a node's fixed signature.
type PortSpec struct {
	Name string
	Type value.Type
}

// Signature is a node subtype's fixed parameter/output shape. Begin,
// End and FunctionCall have no static Signature: their parameter and
// output lists are built dynamically (Begin/End from the function's
// argument/output lists, FunctionCall by the linker's call-site
// mirroring, §4.3). FunctionGradient and NormalizeDistanceField carry
// a small static signature (FunctionId, and for the gradient a
// StepSize) plus dynamically mirrored callee arguments, mirrored the
// same way as FunctionCall (§4.4.5, §4.4.6).
type Signature struct {
	Inputs  []ParamSpec
	Outputs []PortSpec
}

func unary(ruleTyped bool) Signature {
	t := value.Scalar
	if ruleTyped {
		t = value.Invalid
	}
	return Signature{
		Inputs:  []ParamSpec{{Name: "A", Type: t}},
		Outputs: []PortSpec{{Name: "Result", Type: t}},
	}
}

func binary() Signature {
	return Signature{
		Inputs:  []ParamSpec{{Name: "A", Type: value.Invalid}, {Name: "B", Type: value.Invalid}},
		Outputs: []PortSpec{{Name: "Result", Type: value.Invalid}},
	}
}

// signatures holds the static Signature for every Kind that has one.
var signatures = map[Kind]Signature{
	KindAdd: binary(), KindSub: binary(), KindMul: binary(), KindDiv: binary(),
	KindPow: binary(), KindFmod: binary(), KindMod: binary(), KindMin: binary(), KindMax: binary(),

	KindSin: unary(true), KindCos: unary(true), KindTan: unary(true),
	KindAsin: unary(true), KindAcos: unary(true), KindAtan: unary(true),
	KindSinh: unary(true), KindCosh: unary(true), KindTanh: unary(true),
	KindAbs: unary(true), KindSqrt: unary(true), KindExp: unary(true),
	KindLog: unary(true), KindLog2: unary(true), KindLog10: unary(true),
	KindSign: unary(true), KindRound: unary(true), KindCeil: unary(true),
	KindFloor: unary(true), KindFract: unary(true),

	KindClamp: {
		Inputs:  []ParamSpec{{Name: "A", Type: value.Invalid}, {Name: "Min", Type: value.Invalid}, {Name: "Max", Type: value.Invalid}},
		Outputs: []PortSpec{{Name: "Result", Type: value.Invalid}},
	},
	KindSelect: {
		Inputs: []ParamSpec{
			{Name: "A", Type: value.Invalid}, {Name: "B", Type: value.Invalid},
			{Name: "C", Type: value.Invalid}, {Name: "D", Type: value.Invalid},
		},
		Outputs: []PortSpec{{Name: "Result", Type: value.Invalid}},
	},

	KindDot: {
		Inputs:  []ParamSpec{{Name: "A", Type: value.Vec3}, {Name: "B", Type: value.Vec3}},
		Outputs: []PortSpec{{Name: "Result", Type: value.Scalar}},
	},
	KindCross: {
		Inputs:  []ParamSpec{{Name: "A", Type: value.Vec3}, {Name: "B", Type: value.Vec3}},
		Outputs: []PortSpec{{Name: "Result", Type: value.Vec3}},
	},
	KindLength: {
		Inputs:  []ParamSpec{{Name: "A", Type: value.Vec3}},
		Outputs: []PortSpec{{Name: "Result", Type: value.Scalar}},
	},
	KindVectorFromScalar: {
		Inputs:  []ParamSpec{{Name: "X", Type: value.Scalar}},
		Outputs: []PortSpec{{Name: "Result", Type: value.Vec3}},
	},
	KindComposeVector: {
		Inputs: []ParamSpec{
			{Name: "X", Type: value.Scalar}, {Name: "Y", Type: value.Scalar}, {Name: "Z", Type: value.Scalar},
		},
		Outputs: []PortSpec{{Name: "Vector", Type: value.Vec3}},
	},
	KindDecomposeVector: {
		Inputs: []ParamSpec{{Name: "Vector", Type: value.Vec3}},
		Outputs: []PortSpec{
			{Name: "X", Type: value.Scalar}, {Name: "Y", Type: value.Scalar}, {Name: "Z", Type: value.Scalar},
		},
	},

	KindComposeMatrix: composeMatrixSig(),
	KindComposeMatrixFromColumns: {
		Inputs: []ParamSpec{
			{Name: "X", Type: value.Vec3}, {Name: "Y", Type: value.Vec3},
			{Name: "Z", Type: value.Vec3}, {Name: "W", Type: value.Vec3},
		},
		Outputs: []PortSpec{{Name: "Matrix", Type: value.Mat4}},
	},
	KindComposeMatrixFromRows: {
		Inputs: []ParamSpec{
			{Name: "X", Type: value.Vec3}, {Name: "Y", Type: value.Vec3},
			{Name: "Z", Type: value.Vec3}, {Name: "W", Type: value.Vec3},
		},
		Outputs: []PortSpec{{Name: "Matrix", Type: value.Mat4}},
	},
	KindMatrixVectorMul: {
		Inputs:  []ParamSpec{{Name: "Matrix", Type: value.Mat4}, {Name: "Vector", Type: value.Vec3}},
		Outputs: []PortSpec{{Name: "Result", Type: value.Vec3}},
	},
	KindTranspose: {
		Inputs:  []ParamSpec{{Name: "Matrix", Type: value.Mat4}},
		Outputs: []PortSpec{{Name: "Result", Type: value.Mat4}},
	},
	KindInverse: {
		Inputs:  []ParamSpec{{Name: "Matrix", Type: value.Mat4}},
		Outputs: []PortSpec{{Name: "Result", Type: value.Mat4}},
	},
	KindTransform: {
		Inputs:  []ParamSpec{{Name: "Pos", Type: value.Vec3}, {Name: "Matrix", Type: value.Mat4}},
		Outputs: []PortSpec{{Name: "Result", Type: value.Vec3}},
	},

	KindConstantScalar: {
		Inputs:  []ParamSpec{{Name: "Value", Type: value.Scalar, Modifiable: true}},
		Outputs: []PortSpec{{Name: "Result", Type: value.Scalar}},
	},
	KindConstantVector: {
		Inputs: []ParamSpec{
			{Name: "X", Type: value.Scalar, Modifiable: true},
			{Name: "Y", Type: value.Scalar, Modifiable: true},
			{Name: "Z", Type: value.Scalar, Modifiable: true},
		},
		Outputs: []PortSpec{{Name: "Result", Type: value.Vec3}},
	},
	KindConstantMatrix: composeMatrixSig(),

	KindResourceId: {
		Outputs: []PortSpec{{Name: "Id", Type: value.ResourceId}},
	},
	KindSignedDistanceToMesh: {
		Inputs: []ParamSpec{
			{Name: "Pos", Type: value.Vec3}, {Name: "Start", Type: value.ResourceId}, {Name: "End", Type: value.ResourceId},
		},
		Outputs: []PortSpec{{Name: "Distance", Type: value.Scalar}},
	},
	KindUnsignedDistanceToMesh: {
		Inputs: []ParamSpec{
			{Name: "Pos", Type: value.Vec3}, {Name: "Start", Type: value.ResourceId}, {Name: "End", Type: value.ResourceId},
		},
		Outputs: []PortSpec{{Name: "Distance", Type: value.Scalar}},
	},
	KindImageSampler: {
		Inputs: []ParamSpec{
			{Name: "Pos", Type: value.Vec3}, {Name: "Image", Type: value.ResourceId},
			{Name: "Scale", Type: value.Scalar, Modifiable: true}, {Name: "Offset", Type: value.Scalar, Modifiable: true},
		},
		Outputs: []PortSpec{
			{Name: "RGB", Type: value.Vec3}, {Name: "Alpha", Type: value.Scalar}, {Name: "Color", Type: value.Vec3},
		},
	},
	KindFunctionGradient: {
		Inputs: []ParamSpec{
			{Name: "FunctionId", Type: value.ResourceId, Modifiable: true},
			{Name: "StepSize", Type: value.Scalar, Modifiable: true},
		},
		Outputs: []PortSpec{
			{Name: "Vector", Type: value.Vec3},
			{Name: "Magnitude", Type: value.Scalar},
		},
	},
	KindNormalizeDistanceField: {
		Inputs: []ParamSpec{
			{Name: "FunctionId", Type: value.ResourceId, Modifiable: true},
		},
		Outputs: []PortSpec{
			{Name: "Result", Type: value.Scalar},
		},
	},

	KindBoxMinMax: {
		Inputs: []ParamSpec{
			{Name: "Pos", Type: value.Vec3}, {Name: "Min", Type: value.Vec3}, {Name: "Max", Type: value.Vec3},
		},
		Outputs: []PortSpec{{Name: "Distance", Type: value.Scalar}},
	},
}

func composeMatrixSig() Signature {
	s := Signature{Outputs: []PortSpec{{Name: "Matrix", Type: value.Mat4}}}
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			s.Inputs = append(s.Inputs, ParamSpec{
				Name:       matName(r, c),
				Type:       value.Scalar,
				Modifiable: true,
			})
		}
	}
	return s
}

func matName(r, c int) string {
	digits := "0123456789"
	return "M" + string(digits[r]) + string(digits[c])
}
