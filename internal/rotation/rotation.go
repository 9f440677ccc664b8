// Package rotation holds the attitude math used by the integrator:
// scalar-first unit quaternions (gonum quat.Number), rotation matrices and
// the inertial-frame boxplus retraction.
//
// A quaternion q maps body-frame vectors into the inertial frame,
// v_I = R(q) v_B.
package rotation

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// smallAngle is the rotation magnitude below which BoxplusI uses the
// first-order exponential.
const smallAngle = 1e-12

// Mat is a 3x3 rotation matrix, row-major.
type Mat [3][3]float64

// Identity returns the identity rotation.
func Identity() Mat {
	return Mat{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
}

// ToRotMat converts a unit quaternion to its rotation matrix. The
// quaternion is not renormalised.
func ToRotMat(q quat.Number) Mat {
	w, x, y, z := q.Real, q.Imag, q.Jmag, q.Kmag
	return Mat{
		{1 - 2*(y*y+z*z), 2 * (x*y - w*z), 2 * (x*z + w*y)},
		{2 * (x*y + w*z), 1 - 2*(x*x+z*z), 2 * (y*z - w*x)},
		{2 * (x*z - w*y), 2 * (y*z + w*x), 1 - 2*(x*x+y*y)},
	}
}

// FromRotMat recovers the unit quaternion of a rotation matrix using
// Shepperd's branch selection. The result has a non-negative scalar part.
func FromRotMat(m Mat) quat.Number {
	var q quat.Number
	tr := m[0][0] + m[1][1] + m[2][2]
	switch {
	case tr > 0:
		s := 2 * math.Sqrt(tr+1)
		q = quat.Number{
			Real: s / 4,
			Imag: (m[2][1] - m[1][2]) / s,
			Jmag: (m[0][2] - m[2][0]) / s,
			Kmag: (m[1][0] - m[0][1]) / s,
		}
	case m[0][0] > m[1][1] && m[0][0] > m[2][2]:
		s := 2 * math.Sqrt(1+m[0][0]-m[1][1]-m[2][2])
		q = quat.Number{
			Real: (m[2][1] - m[1][2]) / s,
			Imag: s / 4,
			Jmag: (m[0][1] + m[1][0]) / s,
			Kmag: (m[0][2] + m[2][0]) / s,
		}
	case m[1][1] > m[2][2]:
		s := 2 * math.Sqrt(1+m[1][1]-m[0][0]-m[2][2])
		q = quat.Number{
			Real: (m[0][2] - m[2][0]) / s,
			Imag: (m[0][1] + m[1][0]) / s,
			Jmag: s / 4,
			Kmag: (m[1][2] + m[2][1]) / s,
		}
	default:
		s := 2 * math.Sqrt(1+m[2][2]-m[0][0]-m[1][1])
		q = quat.Number{
			Real: (m[1][0] - m[0][1]) / s,
			Imag: (m[0][2] + m[2][0]) / s,
			Jmag: (m[1][2] + m[2][1]) / s,
			Kmag: s / 4,
		}
	}
	if q.Real < 0 {
		q = quat.Scale(-1, q)
	}
	return Normalize(q)
}

// Normalize divides q by its norm. A zero quaternion yields NaN
// components; callers detect that downstream rather than here.
func Normalize(q quat.Number) quat.Number {
	return quat.Scale(1/quat.Abs(q), q)
}

// Exp returns the unit quaternion of the rotation vector phi.
func Exp(phi r3.Vec) quat.Number {
	angle := r3.Norm(phi)
	if angle < smallAngle {
		return quat.Number{Real: 1, Imag: phi.X / 2, Jmag: phi.Y / 2, Kmag: phi.Z / 2}
	}
	s := math.Sin(angle/2) / angle
	return quat.Number{Real: math.Cos(angle / 2), Imag: s * phi.X, Jmag: s * phi.Y, Kmag: s * phi.Z}
}

// BoxplusI applies the inertial-frame rotation increment dphi to q:
// q' = exp(dphi) ⊗ q.
func BoxplusI(q quat.Number, dphi r3.Vec) quat.Number {
	return quat.Mul(Exp(dphi), q)
}

// Angle is the rotation angle 2·acos(w) of a unit quaternion.
func Angle(q quat.Number) float64 {
	return 2 * math.Acos(math.Max(-1, math.Min(1, q.Real)))
}

// Vec is the imaginary part of q.
func Vec(q quat.Number) r3.Vec {
	return r3.Vec{X: q.Imag, Y: q.Jmag, Z: q.Kmag}
}

// MulVec returns m·v.
func (m Mat) MulVec(v r3.Vec) r3.Vec {
	return r3.Vec{
		X: m[0][0]*v.X + m[0][1]*v.Y + m[0][2]*v.Z,
		Y: m[1][0]*v.X + m[1][1]*v.Y + m[1][2]*v.Z,
		Z: m[2][0]*v.X + m[2][1]*v.Y + m[2][2]*v.Z,
	}
}

// T returns the transpose, which is the inverse rotation.
func (m Mat) T() Mat {
	var t Mat
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			t[i][j] = m[j][i]
		}
	}
	return t
}

// Col returns column j, the world image of body axis j.
func (m Mat) Col(j int) r3.Vec {
	return r3.Vec{X: m[0][j], Y: m[1][j], Z: m[2][j]}
}

// Columns flattens m column by column.
func (m Mat) Columns() []float64 {
	out := make([]float64, 0, 9)
	for j := 0; j < 3; j++ {
		out = append(out, m[0][j], m[1][j], m[2][j])
	}
	return out
}

// FromColumns is the inverse of Columns. cols must hold 9 values.
func FromColumns(cols []float64) Mat {
	var m Mat
	for j := 0; j < 3; j++ {
		for i := 0; i < 3; i++ {
			m[i][j] = cols[3*j+i]
		}
	}
	return m
}

// Dense copies m into a gonum matrix.
func (m Mat) Dense() *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		m[0][0], m[0][1], m[0][2],
		m[1][0], m[1][1], m[1][2],
		m[2][0], m[2][1], m[2][2],
	})
}
