package value

import (
	"math"
	"testing"
)

func TestV3(t *testing.T) {
	v := V3{1, 2, 4}
	w := V3{0, -1, 2}

	var u V3
	u.Add(&v, &w)
	if u != (V3{1, 1, 6}) {
		t.Fatalf("V3.Add\nhave %v\nwant [1 1 6]", u)
	}
	u.Sub(&v, &w)
	if u != (V3{1, 3, 2}) {
		t.Fatalf("V3.Sub\nhave %v\nwant [1 3 2]", u)
	}
	u.Scale(-1, &v)
	if u != (V3{-1, -2, -4}) {
		t.Fatalf("V3.Scale\nhave %v\nwant [-1 -2 -4]", u)
	}
	if d := v.Dot(&w); d != 6 {
		t.Fatalf("V3.Dot\nhave %v\nwant 6", d)
	}
	if l := v.Len(); l != float32(math.Sqrt(21)) {
		t.Fatalf("V3.Len\nhave %v\nwant %v", l, math.Sqrt(21))
	}

	x := V3{0, 0, -2}
	var n V3
	n.Norm(&x)
	if n != (V3{0, 0, -1}) {
		t.Fatalf("V3.Norm\nhave %v\nwant [0 0 -1]", n)
	}
	var zero V3
	n.Norm(&zero)
	if n != (V3{}) {
		t.Fatalf("V3.Norm of zero vector\nhave %v\nwant [0 0 0]", n)
	}

	y := V3{0, 4, 0}
	var c V3
	c.Cross(&x, &y)
	if c != (V3{8, 0, 0}) {
		t.Fatalf("V3.Cross\nhave %v\nwant [8 0 0]", c)
	}
}

func TestM4Identity(t *testing.T) {
	var m M4
	m.I()
	var v, r V3 = V3{1, 2, 3}, V3{}
	m.MulPos(&r, &v)
	if r != v {
		t.Fatalf("M4.MulPos through identity\nhave %v\nwant %v", r, v)
	}
}

func TestM4FlatRoundTrip(t *testing.T) {
	var m M4
	m.I()
	m[3][0], m[3][1], m[3][2] = 1, 2, 3
	var n M4
	n.FromFlat16(m.Flat16())
	if n != m {
		t.Fatalf("M4 flat round trip\nhave %v\nwant %v", n, m)
	}
}

func TestM4Invert(t *testing.T) {
	var m M4
	m.I()
	m[3][0], m[3][1], m[3][2] = 1, 2, 3
	var inv M4
	inv.Invert(&m)
	var prod M4
	prod.Mul(&m, &inv)
	var id M4
	id.I()
	const eps = 1e-5
	for i := range prod {
		for j := range prod[i] {
			if diff := prod[i][j] - id[i][j]; diff > eps || diff < -eps {
				t.Fatalf("M4.Invert: m*inv(m) != I at [%d][%d]\nhave %v\nwant %v", i, j, prod, id)
			}
		}
	}
}

func TestTypeWidth(t *testing.T) {
	cases := map[Type]int{Scalar: 1, Vec3: 3, Mat4: 16, ResourceId: 1}
	for typ, want := range cases {
		if got := typ.Width(); got != want {
			t.Errorf("%v.Width() = %d, want %d", typ, got, want)
		}
	}
}

func TestSelectRule(t *testing.T) {
	if r := SelectRule(OpAdd, []Type{Scalar, Scalar}); r != RuleScalar {
		t.Errorf("SelectRule(Add, Scalar,Scalar) = %v, want RuleScalar", r)
	}
	if r := SelectRule(OpAdd, []Type{Vec3, Vec3}); r != RuleVec3 {
		t.Errorf("SelectRule(Add, Vec3,Vec3) = %v, want RuleVec3", r)
	}
	if r := SelectRule(OpAdd, []Type{Scalar, Vec3}); r != NoRule {
		t.Errorf("SelectRule(Add, Scalar,Vec3) = %v, want NoRule (width mismatch)", r)
	}
	if r := SelectRule(OpDot, []Type{Vec3, Vec3}); r != RuleVec3 {
		t.Errorf("SelectRule(Dot, Vec3,Vec3) = %v, want RuleVec3", r)
	}
	if OutType(OpDot, RuleVec3) != Scalar {
		t.Errorf("OutType(Dot, RuleVec3) != Scalar")
	}
	if OutType(OpAdd, RuleMat4) != Mat4 {
		t.Errorf("OutType(Add, RuleMat4) != Mat4")
	}
}
