package graph

import "github.com/quillfield/implicore/value"

// Literal holds a default value for a Parameter. Exactly one of its
// fields is meaningful, selected by the Parameter's Type.
type Literal struct {
	Scalar   float32
	Vec3     value.V3
	Mat4     value.M4
	Resource uint64
}

// ScalarLiteral builds a Literal carrying a Scalar value.
func ScalarLiteral(v float32) Literal { return Literal{Scalar: v} }

// Vec3Literal builds a Literal carrying a Vec3 value.
func Vec3Literal(v value.V3) Literal { return Literal{Vec3: v} }

// Mat4Literal builds a Literal carrying a Mat4 value.
func Mat4Literal(v value.M4) Literal { return Literal{Mat4: v} }

// ResourceLiteral builds a Literal carrying a ResourceId value.
func ResourceLiteral(id uint64) Literal { return Literal{Resource: id} }
