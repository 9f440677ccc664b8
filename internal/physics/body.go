package physics

import (
	"math"

	"github.com/san-kum/quadsim/internal/rotation"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Body is the generalized coordinate and velocity of one vehicle.
// AngVel is expressed in the inertial frame. LinAcc is the linear
// acceleration of the most recent step and is only read by the cable
// tension estimate.
type Body struct {
	Orientation quat.Number
	Position    r3.Vec
	AngVel      r3.Vec
	LinVel      r3.Vec
	LinAcc      r3.Vec
}

// Hover returns a body at the origin with identity attitude and no motion.
func Hover() Body {
	return Body{Orientation: quat.Number{Real: 1}}
}

func (b *Body) Rot() rotation.Mat {
	return rotation.ToRotMat(b.Orientation)
}

// BodyRate is the angular velocity in the body frame.
func (b *Body) BodyRate() r3.Vec {
	return b.Rot().T().MulVec(b.AngVel)
}

// Diverged reports whether the attitude has become NaN.
func (b *Body) Diverged() bool {
	return math.IsNaN(quat.Abs(b.Orientation))
}

// Wrench is the body-frame torque and collective thrust along body z.
type Wrench struct {
	Torque r3.Vec
	Thrust float64
}

// Load is the point mass hanging from the cable.
type Load struct {
	Position r3.Vec
	Velocity r3.Vec
}

func clamp(v, limit float64) float64 {
	return math.Max(-limit, math.Min(limit, v))
}

func clampVec(v r3.Vec, limit float64) r3.Vec {
	return r3.Vec{X: clamp(v.X, limit), Y: clamp(v.Y, limit), Z: clamp(v.Z, limit)}
}
