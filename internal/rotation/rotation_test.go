package rotation

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

func axisAngle(axis r3.Vec, angle float64) quat.Number {
	return Exp(r3.Scale(angle, r3.Unit(axis)))
}

func quatClose(a, b quat.Number, tol float64) bool {
	return math.Abs(a.Real-b.Real) < tol && math.Abs(a.Imag-b.Imag) < tol &&
		math.Abs(a.Jmag-b.Jmag) < tol && math.Abs(a.Kmag-b.Kmag) < tol
}

func TestNormalize(t *testing.T) {
	tests := []quat.Number{
		{Real: 1},
		{Real: 2, Imag: 1, Jmag: -3, Kmag: 0.5},
		{Real: 1e-5, Imag: 1e-5, Jmag: 1e-5, Kmag: 1e-5},
		{Real: -4, Kmag: 9},
	}

	for _, q := range tests {
		n := quat.Abs(Normalize(q))
		if math.Abs(n-1) > 1e-6 {
			t.Errorf("Normalize(%v) has norm %v", q, n)
		}
	}
}

func TestNormalizeZeroIsNaN(t *testing.T) {
	n := quat.Abs(Normalize(quat.Number{}))
	if !math.IsNaN(n) {
		t.Errorf("expected NaN norm for zero quaternion, got %v", n)
	}
}

func TestToRotMatIsOrthonormal(t *testing.T) {
	q := axisAngle(r3.Vec{X: 1, Y: 2, Z: -0.5}, 1.1)
	R := ToRotMat(q).Dense()

	var rtr mat.Dense
	rtr.Mul(R.T(), R)
	if !mat.EqualApprox(&rtr, mat.NewDiagDense(3, []float64{1, 1, 1}), 1e-12) {
		t.Errorf("R^T R != I:\n%v", mat.Formatted(&rtr))
	}
	if det := mat.Det(R); math.Abs(det-1) > 1e-12 {
		t.Errorf("det(R) = %v, want 1", det)
	}
}

func TestToRotMatRotatesVector(t *testing.T) {
	q := axisAngle(r3.Vec{Z: 1}, math.Pi/2)
	got := ToRotMat(q).MulVec(r3.Vec{X: 1})
	if r3.Norm(r3.Sub(got, r3.Vec{Y: 1})) > 1e-12 {
		t.Errorf("rotating x by 90° about z gave %v", got)
	}
}

func TestFromRotMatRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		axis  r3.Vec
		angle float64
	}{
		{"identity", r3.Vec{Z: 1}, 0},
		{"small", r3.Vec{X: 1, Y: 1}, 1e-4},
		{"roll", r3.Vec{X: 1}, 0.7},
		{"pitch near pi", r3.Vec{Y: 1}, math.Pi - 1e-3},
		{"yaw near pi", r3.Vec{Z: 1}, math.Pi - 1e-3},
		{"oblique", r3.Vec{X: -1, Y: 0.3, Z: 2}, 2.4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := axisAngle(tt.axis, tt.angle)
			got := FromRotMat(ToRotMat(q))
			if !quatClose(got, q, 1e-9) && !quatClose(got, quat.Scale(-1, q), 1e-9) {
				t.Errorf("FromRotMat(ToRotMat(%v)) = %v", q, got)
			}
			if got.Real < 0 {
				t.Errorf("scalar part should be non-negative, got %v", got.Real)
			}
		})
	}
}

func TestBoxplusIComposesInInertialFrame(t *testing.T) {
	q := axisAngle(r3.Vec{X: 1}, 0.5)
	dphi := r3.Vec{Z: 0.3}
	got := ToRotMat(BoxplusI(q, dphi)).Dense()

	var want mat.Dense
	want.Mul(ToRotMat(Exp(dphi)).Dense(), ToRotMat(q).Dense())
	if !mat.EqualApprox(got, &want, 1e-12) {
		t.Errorf("boxplus mismatch:\n%v\nwant\n%v", mat.Formatted(got), mat.Formatted(&want))
	}
}

func TestBoxplusIZeroIncrement(t *testing.T) {
	q := axisAngle(r3.Vec{Y: 1}, 0.2)
	if got := BoxplusI(q, r3.Vec{}); !quatClose(got, q, 1e-15) {
		t.Errorf("zero increment changed quaternion: %v -> %v", q, got)
	}
}

func TestAngle(t *testing.T) {
	if a := Angle(quat.Number{Real: 1}); a != 0 {
		t.Errorf("identity angle = %v", a)
	}
	if a := Angle(axisAngle(r3.Vec{X: 1}, 0.8)); math.Abs(a-0.8) > 1e-12 {
		t.Errorf("angle = %v, want 0.8", a)
	}
	// slightly denormalised scalar part must not produce NaN
	if a := Angle(quat.Number{Real: 1 + 1e-15}); math.IsNaN(a) {
		t.Error("angle is NaN for w slightly above 1")
	}
}

func TestColumnsRoundTrip(t *testing.T) {
	m := ToRotMat(axisAngle(r3.Vec{X: 1, Y: -1, Z: 1}, 1.3))
	cols := m.Columns()
	if len(cols) != 9 {
		t.Fatalf("expected 9 columns entries, got %d", len(cols))
	}
	if c := m.Col(1); cols[3] != c.X || cols[4] != c.Y || cols[5] != c.Z {
		t.Errorf("column 1 = %v, flattened %v", c, cols[3:6])
	}
	if FromColumns(cols) != m {
		t.Error("FromColumns(Columns(m)) != m")
	}
	if m.T().T() != m {
		t.Error("double transpose changed matrix")
	}
}
